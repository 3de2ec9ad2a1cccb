// Package fetch retrieves page content for tabs. Fetching never fails
// outward: every failure path degrades to a best-effort content
// snapshot.
package fetch

import (
	"context"
	"strings"
	"time"

	"github.com/lotas/tabkartei/internal/applog"
	"github.com/lotas/tabkartei/internal/server"
	"github.com/lotas/tabkartei/internal/types"
)

// internalPrefixes are URL schemes for browser-internal surfaces.
// Tabs on these never get page access attempts.
var internalPrefixes = []string{
	"about:", "chrome:", "chrome-extension:", "moz-extension:",
	"edge:", "view-source:", "file:", "resource:", "data:",
	"devtools:", "javascript:",
}

// IsInternalURL reports whether a URL points at a browser-internal or
// privileged surface.
func IsInternalURL(rawURL string) bool {
	u := strings.ToLower(strings.TrimSpace(rawURL))
	for _, prefix := range internalPrefixes {
		if strings.HasPrefix(u, prefix) {
			return true
		}
	}
	return false
}

// Requester is the subset of the websocket server the fetcher uses for
// in-page extraction.
type Requester interface {
	Connected() bool
	Request(ctx context.Context, msg server.OutgoingMsg) (server.IncomingMsg, error)
}

// ExtractTimeout bounds a single in-page extraction request.
const ExtractTimeout = 5 * time.Second

// Fetcher resolves tab content with a fixed fallback chain: in-page
// extraction via the extension, then a direct HTTP fetch, then tab
// metadata.
type Fetcher struct {
	req Requester // nil = no extension link
}

// New creates a Fetcher. req may be nil, in which case only the HTTP
// path is attempted.
func New(req Requester) *Fetcher {
	return &Fetcher{req: req}
}

// Fetch returns the best available content for a tab. It never
// returns an error; inaccessible pages yield placeholder content.
func (f *Fetcher) Fetch(ctx context.Context, tab types.Tab) types.PageContent {
	if tab.URL == "" && tab.Title == "" {
		return types.PageContent{
			Title:    "Unknown Tab",
			BodyText: "[tab information unavailable]",
		}
	}

	// Privileged surfaces are expected to be inaccessible, not errors.
	if IsInternalURL(tab.URL) {
		return types.PageContent{Title: tab.Title}
	}

	if content, ok := f.extract(ctx, tab.ID); ok {
		return content
	}

	if content, ok := fetchReadable(ctx, tab.URL); ok {
		return content
	}

	return types.PageContent{
		Title:    tab.Title,
		BodyText: "[content not accessible] - " + tab.URL,
	}
}

// extract asks the extension to read title/meta/body from the live
// page.
func (f *Fetcher) extract(ctx context.Context, tabID int) (types.PageContent, bool) {
	if f.req == nil || !f.req.Connected() {
		return types.PageContent{}, false
	}

	ctx, cancel := context.WithTimeout(ctx, ExtractTimeout)
	defer cancel()

	reply, err := f.req.Request(ctx, server.OutgoingMsg{
		Action: server.ActionExtractContent,
		TabID:  tabID,
	})
	if err != nil {
		applog.Error("fetch.extract", err, "tab", tabID)
		return types.PageContent{}, false
	}

	content, err := server.ParseContent(reply)
	if err != nil {
		applog.Error("fetch.extract.parse", err, "tab", tabID)
		return types.PageContent{}, false
	}
	return content, true
}

// truncateBody bounds body text to the stored limit.
func truncateBody(s string) string {
	if len(s) > types.MaxBodyText {
		return s[:types.MaxBodyText]
	}
	return s
}
