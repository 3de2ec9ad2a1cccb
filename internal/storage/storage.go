package storage

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	_ "modernc.org/sqlite"

	"github.com/lotas/tabkartei/internal/types"
)

// migration is a numbered schema change. Migrations are applied in order
// and tracked in the schema_migrations table so each runs exactly once.
type migration struct {
	Version     int
	Description string
	SQL         string
}

var migrations = []migration{
	{
		Version:     1,
		Description: "initial schema: single-row registry snapshot",
		SQL: `
CREATE TABLE IF NOT EXISTS registry_state (
    id          INTEGER PRIMARY KEY CHECK (id = 1),
    format      TEXT NOT NULL,
    data        BLOB NOT NULL,
    saved_at    DATETIME DEFAULT CURRENT_TIMESTAMP
);`,
	},
	{
		Version:     2,
		Description: "create enrichment_events history table",
		SQL: `
CREATE TABLE enrichment_events (
    id          INTEGER PRIMARY KEY,
    tab_id      INTEGER NOT NULL,
    url         TEXT NOT NULL,
    category    TEXT NOT NULL,
    source      TEXT NOT NULL DEFAULT 'keyword',
    created_at  DATETIME DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX idx_enrichment_events_created ON enrichment_events(created_at);`,
	},
}

// OpenDB opens (or creates) a SQLite database at the given path.
// It creates parent directories if needed, enables foreign keys and WAL mode,
// and runs any pending migrations.
func OpenDB(path string) (*sql.DB, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create directory %s: %w", dir, err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}

	// WAL keeps the agent's flushes from blocking readers.
	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}

	if err := runMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return db, nil
}

// runMigrations ensures the schema_migrations table exists and applies
// any pending migrations in order.
func runMigrations(db *sql.DB) error {
	_, err := db.Exec(`CREATE TABLE IF NOT EXISTS schema_migrations (
		version     INTEGER PRIMARY KEY,
		description TEXT NOT NULL,
		applied_at  DATETIME DEFAULT CURRENT_TIMESTAMP
	)`)
	if err != nil {
		return fmt.Errorf("create schema_migrations table: %w", err)
	}

	for _, m := range migrations {
		var exists int
		err := db.QueryRow("SELECT COUNT(*) FROM schema_migrations WHERE version = ?", m.Version).Scan(&exists)
		if err != nil {
			return fmt.Errorf("check migration %d: %w", m.Version, err)
		}
		if exists > 0 {
			continue
		}

		if _, err := db.Exec(m.SQL); err != nil {
			return fmt.Errorf("apply migration %d (%s): %w", m.Version, m.Description, err)
		}
		if _, err := db.Exec(
			"INSERT INTO schema_migrations (version, description) VALUES (?, ?)",
			m.Version, m.Description,
		); err != nil {
			return fmt.Errorf("record migration %d: %w", m.Version, err)
		}
	}

	return nil
}

// DefaultDBPath returns the default database file path:
// ~/.local/share/tabkartei/tabkartei.db
func DefaultDBPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("get home directory: %w", err)
	}
	return filepath.Join(home, ".local", "share", "tabkartei", "tabkartei.db"), nil
}

// SaveRegistry persists the full registry as the single flat snapshot
// row. The write is a whole-snapshot overwrite, so overlapping flushes
// are idempotent.
func SaveRegistry(db *sql.DB, records map[int]*types.TabRecord) error {
	keyed := make(map[string]*types.TabRecord, len(records))
	for id, rec := range records {
		keyed[strconv.Itoa(id)] = rec
	}

	raw, err := json.Marshal(keyed)
	if err != nil {
		return fmt.Errorf("marshal registry: %w", err)
	}
	format, data := CompressBlob(raw)

	_, err = db.Exec(`INSERT INTO registry_state (id, format, data, saved_at)
		VALUES (1, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(id) DO UPDATE SET format = excluded.format, data = excluded.data, saved_at = excluded.saved_at`,
		format, data,
	)
	if err != nil {
		return fmt.Errorf("save registry: %w", err)
	}
	return nil
}

// LoadRegistry reads the persisted registry snapshot. A missing row
// yields an empty map; a corrupt row is an error the caller recovers
// from by starting empty and reconciling.
func LoadRegistry(db *sql.DB) (map[int]*types.TabRecord, error) {
	var format string
	var data []byte
	err := db.QueryRow("SELECT format, data FROM registry_state WHERE id = 1").Scan(&format, &data)
	if err == sql.ErrNoRows {
		return make(map[int]*types.TabRecord), nil
	}
	if err != nil {
		return nil, fmt.Errorf("load registry: %w", err)
	}

	raw, err := DecompressBlob(format, data)
	if err != nil {
		return nil, fmt.Errorf("load registry: %w", err)
	}

	var keyed map[string]*types.TabRecord
	if err := json.Unmarshal(raw, &keyed); err != nil {
		return nil, fmt.Errorf("decode registry: %w", err)
	}

	records := make(map[int]*types.TabRecord, len(keyed))
	for key, rec := range keyed {
		id, err := strconv.Atoi(key)
		if err != nil || rec == nil {
			continue
		}
		rec.ID = id
		records[id] = rec
	}
	return records, nil
}

// EnrichmentEvent is one row of the enrichment history.
type EnrichmentEvent struct {
	ID        int64
	TabID     int
	URL       string
	Category  string
	Source    string // "keyword" or "analyst"
	CreatedAt time.Time
}

// RecordEnrichment appends an enrichment event to the history.
func RecordEnrichment(db *sql.DB, tabID int, url, category, source string) error {
	_, err := db.Exec(
		"INSERT INTO enrichment_events (tab_id, url, category, source) VALUES (?, ?, ?, ?)",
		tabID, url, category, source,
	)
	if err != nil {
		return fmt.Errorf("record enrichment: %w", err)
	}
	return nil
}

// RecentEnrichments returns the newest enrichment events, most recent
// first.
func RecentEnrichments(db *sql.DB, limit int) ([]EnrichmentEvent, error) {
	rows, err := db.Query(
		"SELECT id, tab_id, url, category, source, created_at FROM enrichment_events ORDER BY id DESC LIMIT ?",
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query enrichments: %w", err)
	}
	defer rows.Close()

	var result []EnrichmentEvent
	for rows.Next() {
		var e EnrichmentEvent
		if err := rows.Scan(&e.ID, &e.TabID, &e.URL, &e.Category, &e.Source, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan enrichment: %w", err)
		}
		result = append(result, e)
	}
	return result, rows.Err()
}

// PruneEnrichments deletes history older than the given age, keeping
// the table bounded.
func PruneEnrichments(db *sql.DB, maxAge time.Duration) (int64, error) {
	cutoff := time.Now().Add(-maxAge).UTC().Format("2006-01-02 15:04:05")
	res, err := db.Exec("DELETE FROM enrichment_events WHERE created_at < ?", cutoff)
	if err != nil {
		return 0, fmt.Errorf("prune enrichments: %w", err)
	}
	return res.RowsAffected()
}
