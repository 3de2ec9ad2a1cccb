// Package enrich turns a live tab into an enriched registry record:
// content snapshot, category, summary, and optional analyst fields.
package enrich

import (
	"context"
	"database/sql"
	"time"

	"github.com/lotas/tabkartei/internal/applog"
	"github.com/lotas/tabkartei/internal/classify"
	"github.com/lotas/tabkartei/internal/fetch"
	"github.com/lotas/tabkartei/internal/registry"
	"github.com/lotas/tabkartei/internal/storage"
	"github.com/lotas/tabkartei/internal/types"
)

// ContentFetcher resolves page content for a tab. Satisfied by
// *fetch.Fetcher.
type ContentFetcher interface {
	Fetch(ctx context.Context, tab types.Tab) types.PageContent
}

// Analyst is an optional external collaborator that derives category,
// summary, topics, and importance from page content. Satisfied by
// *OllamaAnalyst.
type Analyst interface {
	Analyze(ctx context.Context, tab types.Tab, content types.PageContent) (*Analysis, error)
}

// Analysis is what an analyst derives from a page.
type Analysis struct {
	Category   string
	Summary    string
	Topics     []string
	Importance string
}

// AnalystTimeout bounds a single analyst call; on expiry the keyword
// classifier result stands.
const AnalystTimeout = 15 * time.Second

// Engine produces enriched records and commits them to the registry.
type Engine struct {
	reg        *registry.Registry
	fetcher    ContentFetcher
	classifier *classify.Classifier
	analyst    Analyst // nil = keyword classification only
	db         *sql.DB // nil = no enrichment history
	notify     func(*types.TabRecord)
}

// New creates an Engine. analyst and db may be nil; notify may be nil
// when no presentation layer is listening.
func New(reg *registry.Registry, fetcher ContentFetcher, classifier *classify.Classifier, analyst Analyst, db *sql.DB, notify func(*types.TabRecord)) *Engine {
	return &Engine{
		reg:        reg,
		fetcher:    fetcher,
		classifier: classifier,
		analyst:    analyst,
		db:         db,
		notify:     notify,
	}
}

// Enrich builds a record for the tab and commits it. Returns the
// committed record, or ok=false when the tab is skipped (no URL, or a
// browser-internal surface). Enrichment itself never fails: analyst
// and fetch failures degrade the record instead of dropping it.
func (e *Engine) Enrich(ctx context.Context, tab types.Tab) (*types.TabRecord, bool) {
	if tab.URL == "" || fetch.IsInternalURL(tab.URL) {
		return nil, false
	}

	content := e.fetcher.Fetch(ctx, tab)
	category := e.classifier.Classify(tab.URL)
	source := "keyword"

	rec := &types.TabRecord{
		ID:           tab.ID,
		URL:          tab.URL,
		Title:        tab.Title,
		Category:     category,
		Content:      content,
		LastAccessed: time.Now().UnixMilli(),
	}

	if e.analyst != nil {
		actx, cancel := context.WithTimeout(ctx, AnalystTimeout)
		analysis, err := e.analyst.Analyze(actx, tab, content)
		cancel()
		if err != nil {
			applog.Error("enrich.analyst", err, "tab", tab.ID)
		} else {
			if analysis.Category != "" {
				rec.Category = analysis.Category
			}
			rec.Summary = analysis.Summary
			rec.Topics = analysis.Topics
			rec.Importance = analysis.Importance
			source = "analyst"
		}
	}

	rec.Summary = summaryFallback(rec.Summary, content.Title, tab.Title)

	if !e.reg.Upsert(rec) {
		// A newer observation landed while we were fetching.
		return rec, true
	}

	if e.db != nil {
		if err := storage.RecordEnrichment(e.db, tab.ID, tab.URL, rec.Category, source); err != nil {
			applog.Error("enrich.history", err, "tab", tab.ID)
		}
	}
	if e.notify != nil {
		e.notify(rec)
	}
	applog.Info("enrich.done", "tab", tab.ID, "category", rec.Category, "source", source)
	return rec, true
}

// summaryFallback picks the first non-empty of analyst summary, page
// title, tab title, or the placeholder.
func summaryFallback(summary, pageTitle, tabTitle string) string {
	for _, s := range []string{summary, pageTitle, tabTitle} {
		if s != "" {
			return s
		}
	}
	return types.NoSummary
}
