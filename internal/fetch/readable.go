package fetch

import (
	"context"
	"net/http"
	"strings"
	"time"

	readability "github.com/go-shiori/go-readability"

	"github.com/lotas/tabkartei/internal/applog"
	"github.com/lotas/tabkartei/internal/types"
)

var httpClient = &http.Client{Timeout: 15 * time.Second}

// fetchReadable fetches a URL directly and extracts readable content.
// Used when the page is not reachable through the extension.
func fetchReadable(ctx context.Context, rawURL string) (types.PageContent, bool) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return types.PageContent{}, false
	}
	// Many sites serve stripped pages to unknown clients.
	req.Header.Set("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36")

	resp, err := httpClient.Do(req)
	if err != nil {
		applog.Error("fetch.http", err, "url", rawURL)
		return types.PageContent{}, false
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		applog.Info("fetch.http.status", "url", rawURL, "status", resp.StatusCode)
		return types.PageContent{}, false
	}

	article, err := readability.FromReader(resp.Body, nil)
	if err != nil {
		applog.Error("fetch.readability", err, "url", rawURL)
		return types.PageContent{}, false
	}

	body := strings.TrimSpace(article.TextContent)
	if body == "" {
		return types.PageContent{}, false
	}

	return types.PageContent{
		Title:           article.Title,
		MetaDescription: article.Excerpt,
		BodyText:        truncateBody(body),
	}, true
}
