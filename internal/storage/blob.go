package storage

import (
	"encoding/binary"
	"fmt"

	"github.com/pierrec/lz4/v4"
)

// Registry blob formats. "tkz1" is a 4-byte LE uncompressed size
// followed by one lz4 block; "tkz0" is the raw JSON. Small snapshots
// that lz4 cannot shrink are stored raw.
const (
	FormatLZ4 = "tkz1"
	FormatRaw = "tkz0"
)

// CompressBlob encodes a registry snapshot for storage, picking
// whichever format is smaller.
func CompressBlob(raw []byte) (format string, data []byte) {
	buf := make([]byte, 4+lz4.CompressBlockBound(len(raw)))
	binary.LittleEndian.PutUint32(buf[:4], uint32(len(raw)))

	var c lz4.Compressor
	n, err := c.CompressBlock(raw, buf[4:])
	if err != nil || n == 0 || 4+n >= len(raw) {
		return FormatRaw, raw
	}
	return FormatLZ4, buf[:4+n]
}

// DecompressBlob decodes a stored registry snapshot.
func DecompressBlob(format string, data []byte) ([]byte, error) {
	switch format {
	case FormatRaw:
		return data, nil
	case FormatLZ4:
		if len(data) < 4 {
			return nil, fmt.Errorf("lz4 blob too short (%d bytes)", len(data))
		}
		size := binary.LittleEndian.Uint32(data[:4])
		if size > 1<<30 {
			return nil, fmt.Errorf("lz4 blob claims unreasonable size %d", size)
		}
		dst := make([]byte, size)
		n, err := lz4.UncompressBlock(data[4:], dst)
		if err != nil {
			return nil, fmt.Errorf("lz4 decompress: %w", err)
		}
		return dst[:n], nil
	default:
		return nil, fmt.Errorf("unknown registry blob format %q", format)
	}
}
