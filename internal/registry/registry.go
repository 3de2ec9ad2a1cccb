// Package registry owns the authoritative mapping from tab id to
// enriched record. All mutation goes through its API; callers only
// ever see copies.
package registry

import (
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/lotas/tabkartei/internal/applog"
	"github.com/lotas/tabkartei/internal/storage"
	"github.com/lotas/tabkartei/internal/types"
)

// Classifier assigns a category to a URL. Satisfied by
// *classify.Classifier.
type Classifier interface {
	Classify(url string) string
}

// InternalURL reports whether a URL points at a browser-internal
// surface that must not enter the registry.
type InternalURL func(url string) bool

// Registry is the process-wide tab record store. A nil db means
// in-memory only (used by tests); Flush is then a no-op.
type Registry struct {
	mu      sync.Mutex
	records map[int]*types.TabRecord
	db      *sql.DB

	classifier Classifier
	internal   InternalURL
}

// New creates an empty registry.
func New(db *sql.DB, classifier Classifier, internal InternalURL) *Registry {
	return &Registry{
		records:    make(map[int]*types.TabRecord),
		db:         db,
		classifier: classifier,
		internal:   internal,
	}
}

// Load hydrates the registry from the durable snapshot. A corrupt or
// unreadable snapshot leaves the registry empty; the caller rebuilds
// state via Reconcile instead of crashing.
func (r *Registry) Load() error {
	if r.db == nil {
		return nil
	}
	records, err := storage.LoadRegistry(r.db)
	if err != nil {
		applog.Error("registry.load", err)
		r.mu.Lock()
		r.records = make(map[int]*types.TabRecord)
		r.mu.Unlock()
		return fmt.Errorf("load registry: %w", err)
	}
	r.mu.Lock()
	r.records = records
	r.mu.Unlock()
	applog.Info("registry.loaded", "records", len(records))
	return nil
}

// Flush persists the full registry. Flushes are idempotent whole-
// snapshot overwrites, so overlapping calls are safe.
func (r *Registry) Flush() error {
	if r.db == nil {
		return nil
	}
	r.mu.Lock()
	snapshot := make(map[int]*types.TabRecord, len(r.records))
	for id, rec := range r.records {
		snapshot[id] = rec.Clone()
	}
	r.mu.Unlock()

	if err := storage.SaveRegistry(r.db, snapshot); err != nil {
		applog.Error("registry.flush", err)
		return err
	}
	return nil
}

// Len returns the number of records.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.records)
}

// Get returns a copy of the record for a tab id.
func (r *Registry) Get(id int) (*types.TabRecord, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.records[id]
	if !ok {
		return nil, false
	}
	return rec.Clone(), true
}

// Snapshot returns a copy of all records keyed by tab id.
func (r *Registry) Snapshot() map[int]*types.TabRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[int]*types.TabRecord, len(r.records))
	for id, rec := range r.records {
		out[id] = rec.Clone()
	}
	return out
}

// Upsert commits a record, last-writer-wins. A write whose observation
// time is older than the stored record's is stale and discarded, which
// keeps LastAccessed monotonic under racing enrichments.
func (r *Registry) Upsert(rec *types.TabRecord) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.records[rec.ID]; ok && existing.LastAccessed > rec.LastAccessed {
		applog.Info("registry.stale_write", "tab", rec.ID)
		return false
	}
	r.records[rec.ID] = rec.Clone()
	return true
}

// Remove deletes the record for a closed tab.
func (r *Registry) Remove(id int) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.records[id]; !ok {
		return false
	}
	delete(r.records, id)
	return true
}

// TouchAccessed raises a record's LastAccessed; it never moves
// backwards.
func (r *Registry) TouchAccessed(id int, t time.Time) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.records[id]
	if !ok {
		return false
	}
	if ms := t.UnixMilli(); ms > rec.LastAccessed {
		rec.LastAccessed = ms
	}
	return true
}

// Stats returns aggregate counts for the UI.
func (r *Registry) Stats(now time.Time, idleDays int) types.Stats {
	r.mu.Lock()
	defer r.mu.Unlock()
	categories := make(map[string]bool)
	s := types.Stats{TotalTabs: len(r.records)}
	for _, rec := range r.records {
		categories[rec.Category] = true
		if rec.IdleDays(now) >= idleDays {
			s.IdleTabs++
		}
	}
	s.Categories = len(categories)
	return s
}

// Reconcile aligns the registry with the live tab set. Records whose
// id is not live are evicted; live tabs with no record get a minimal
// placeholder synchronously and are returned for async enrichment.
// Internal tabs never enter the registry. The registry is flushed
// exactly once per reconcile, not once per tab.
func (r *Registry) Reconcile(live []types.Tab) (added []types.Tab, removed int) {
	now := time.Now().UnixMilli()

	r.mu.Lock()
	liveIDs := make(map[int]bool, len(live))
	for _, tab := range live {
		if tab.URL == "" || r.internal(tab.URL) {
			continue
		}
		liveIDs[tab.ID] = true
		if _, ok := r.records[tab.ID]; ok {
			continue
		}
		r.records[tab.ID] = placeholderRecord(tab, r.classifier.Classify(tab.URL), now)
		added = append(added, tab)
	}
	for id := range r.records {
		if !liveIDs[id] {
			delete(r.records, id)
			removed++
		}
	}
	r.mu.Unlock()

	if err := r.Flush(); err == nil {
		applog.Info("reconcile.done", "added", len(added), "removed", removed)
	}
	return added, removed
}

// placeholderRecord is the synchronous minimal record a newly-seen tab
// gets before its full enrichment lands.
func placeholderRecord(tab types.Tab, category string, nowMilli int64) *types.TabRecord {
	summary := tab.Title
	if summary == "" {
		summary = types.NoSummary
	}
	return &types.TabRecord{
		ID:           tab.ID,
		URL:          tab.URL,
		Title:        tab.Title,
		Category:     category,
		Summary:      summary,
		LastAccessed: nowMilli,
	}
}
