package fetch

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/lotas/tabkartei/internal/server"
	"github.com/lotas/tabkartei/internal/types"
)

// fakeRequester simulates the extension side of extractContent.
type fakeRequester struct {
	connected bool
	content   *types.PageContent
	err       error
}

func (f *fakeRequester) Connected() bool { return f.connected }

func (f *fakeRequester) Request(ctx context.Context, msg server.OutgoingMsg) (server.IncomingMsg, error) {
	if f.err != nil {
		return server.IncomingMsg{}, f.err
	}
	raw, _ := json.Marshal(f.content)
	return server.IncomingMsg{Type: server.TypeContentResult, Content: raw}, nil
}

func TestIsInternalURL(t *testing.T) {
	internal := []string{
		"about:config",
		"chrome://settings",
		"chrome-extension://abc/popup.html",
		"moz-extension://abc/page",
		"view-source:https://example.com",
		"file:///home/user/doc.html",
		"resource://gre/modules",
		"data:text/html,hello",
		"devtools://devtools/bundled",
		"  ABOUT:blank",
	}
	for _, u := range internal {
		if !IsInternalURL(u) {
			t.Errorf("IsInternalURL(%q) = false, want true", u)
		}
	}

	external := []string{
		"https://example.com",
		"http://localhost:8080",
		"https://example.com/about:page",
		"",
	}
	for _, u := range external {
		if IsInternalURL(u) {
			t.Errorf("IsInternalURL(%q) = true, want false", u)
		}
	}
}

func TestFetchInternalURLSkipsPageAccess(t *testing.T) {
	// A requester that fails the test if it is ever called.
	f := New(&fakeRequester{connected: true, err: fmt.Errorf("must not be called")})

	got := f.Fetch(context.Background(), types.Tab{ID: 1, URL: "chrome://settings", Title: "Settings"})
	want := types.PageContent{Title: "Settings"}
	if got != want {
		t.Errorf("Fetch internal = %+v, want %+v", got, want)
	}
}

func TestFetchViaExtension(t *testing.T) {
	f := New(&fakeRequester{
		connected: true,
		content: &types.PageContent{
			Title:           "Page",
			MetaDescription: "desc",
			BodyText:        "body text",
		},
	})

	got := f.Fetch(context.Background(), types.Tab{ID: 1, URL: "https://example.com", Title: "T"})
	if got.Title != "Page" || got.BodyText != "body text" {
		t.Errorf("unexpected content: %+v", got)
	}
}

func TestFetchFallsBackToMetadata(t *testing.T) {
	// Extraction fails, HTTP fails (unroutable URL) — metadata fallback.
	f := New(&fakeRequester{connected: true, err: fmt.Errorf("tab not scriptable")})

	tab := types.Tab{ID: 1, URL: "http://127.0.0.1:1/nope", Title: "My Tab"}
	got := f.Fetch(context.Background(), tab)
	if got.Title != "My Tab" {
		t.Errorf("fallback title = %q, want tab title", got.Title)
	}
	if !strings.HasPrefix(got.BodyText, "[content not accessible] - ") {
		t.Errorf("fallback body = %q", got.BodyText)
	}
	if !strings.Contains(got.BodyText, tab.URL) {
		t.Errorf("fallback body should carry the URL, got %q", got.BodyText)
	}
}

func TestFetchUnknownTab(t *testing.T) {
	f := New(nil)

	got := f.Fetch(context.Background(), types.Tab{ID: 9})
	if got.Title != "Unknown Tab" || got.BodyText != "[tab information unavailable]" {
		t.Errorf("unexpected placeholder: %+v", got)
	}
}

func TestFetchReadableHTTP(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(`<!DOCTYPE html>
<html><head><title>Test Article</title></head>
<body>
<article>
<h1>Test Article</h1>
<p>This is the main content of the article. It has enough text to be considered readable content by the readability algorithm. The quick brown fox jumps over the lazy dog. This paragraph needs to be long enough for readability to pick it up as meaningful content.</p>
<p>Second paragraph with more meaningful content that helps the readability parser understand this is a real article and not just navigation or boilerplate. We need several sentences here to make this work properly.</p>
</article>
</body></html>`))
	}))
	defer srv.Close()

	// No extension connected — the HTTP path carries the fetch.
	f := New(&fakeRequester{connected: false})
	got := f.Fetch(context.Background(), types.Tab{ID: 1, URL: srv.URL, Title: "fallback"})

	if got.Title == "" || got.Title == "fallback" {
		t.Errorf("expected extracted title, got %q", got.Title)
	}
	if got.BodyText == "" || strings.HasPrefix(got.BodyText, "[content not accessible]") {
		t.Errorf("expected extracted body, got %q", got.BodyText)
	}
	if len(got.BodyText) > types.MaxBodyText {
		t.Errorf("body not truncated: %d chars", len(got.BodyText))
	}
}

func TestFetchReadableTruncates(t *testing.T) {
	long := strings.Repeat("All work and no play makes for a very long page body. ", 100)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprintf(w, `<!DOCTYPE html><html><head><title>Long</title></head><body><article><p>%s</p></article></body></html>`, long)
	}))
	defer srv.Close()

	f := New(nil)
	got := f.Fetch(context.Background(), types.Tab{ID: 1, URL: srv.URL, Title: "t"})
	if len(got.BodyText) != types.MaxBodyText {
		t.Errorf("body length = %d, want %d", len(got.BodyText), types.MaxBodyText)
	}
}

func TestFetchHTTPErrorFallsThrough(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(500)
	}))
	defer srv.Close()

	f := New(nil)
	got := f.Fetch(context.Background(), types.Tab{ID: 1, URL: srv.URL, Title: "t"})
	if !strings.HasPrefix(got.BodyText, "[content not accessible]") {
		t.Errorf("expected metadata fallback for HTTP 500, got %+v", got)
	}
}
