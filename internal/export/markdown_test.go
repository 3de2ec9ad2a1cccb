package export

import (
	"strings"
	"testing"
	"time"

	"github.com/lotas/tabkartei/internal/types"
)

func msAgo(d time.Duration) int64 {
	return time.Now().Add(-d).UnixMilli()
}

func TestGroups_OrderAndSorting(t *testing.T) {
	records := map[int]*types.TabRecord{
		1: {ID: 1, URL: "https://news.example", Category: "News", LastAccessed: msAgo(time.Hour)},
		2: {ID: 2, URL: "https://github.com/a", Category: "Development", LastAccessed: msAgo(3 * time.Hour)},
		3: {ID: 3, URL: "https://github.com/b", Category: "Development", LastAccessed: msAgo(time.Minute)},
		4: {ID: 4, URL: "https://random.example", Category: types.Uncategorized, LastAccessed: msAgo(time.Hour)},
	}

	groups := Groups(records, []string{"Development", "News"})

	if len(groups) != 3 {
		t.Fatalf("got %d groups, want 3", len(groups))
	}
	if groups[0].Name != "Development" || groups[1].Name != "News" {
		t.Errorf("label order not respected: %q, %q", groups[0].Name, groups[1].Name)
	}
	if groups[2].Name != types.Uncategorized {
		t.Errorf("unknown categories should trail, got %q", groups[2].Name)
	}
	// Most recently accessed first within a group.
	if groups[0].Tabs[0].ID != 3 || groups[0].Tabs[1].ID != 2 {
		t.Errorf("Development tabs not sorted by access: %d, %d", groups[0].Tabs[0].ID, groups[0].Tabs[1].ID)
	}
}

func TestGroups_Empty(t *testing.T) {
	groups := Groups(map[int]*types.TabRecord{}, []string{"Development"})
	if len(groups) != 0 {
		t.Errorf("expected no groups, got %d", len(groups))
	}
}

func TestMarkdown_GroupedOutput(t *testing.T) {
	records := map[int]*types.TabRecord{
		1: {ID: 1, Title: "Go docs", URL: "https://go.dev/doc", Category: "Documentation", Summary: "Go language documentation", LastAccessed: msAgo(3 * 24 * time.Hour)},
		2: {ID: 2, Title: "Bubble Tea", URL: "https://github.com/charmbracelet/bubbletea", Category: "Documentation", LastAccessed: msAgo(24 * time.Hour)},
		3: {ID: 3, Title: "Example", URL: "https://example.com", Category: types.Uncategorized, LastAccessed: msAgo(5 * time.Hour)},
	}

	result := Markdown(Groups(records, nil))

	if !strings.Contains(result, "# Open Tabs") {
		t.Errorf("missing header, got:\n%s", result)
	}
	if !strings.Contains(result, "## Documentation (2 tabs)") {
		t.Errorf("missing Documentation group heading, got:\n%s", result)
	}
	if !strings.Contains(result, "## Uncategorized (1 tab)") {
		t.Errorf("missing singular heading, got:\n%s", result)
	}
	if !strings.Contains(result, "[Go docs](https://go.dev/doc)") {
		t.Errorf("missing Go docs link, got:\n%s", result)
	}
	if !strings.Contains(result, "Go language documentation") {
		t.Errorf("missing summary line, got:\n%s", result)
	}
}

func TestMarkdown_TitleFallbackToURL(t *testing.T) {
	records := map[int]*types.TabRecord{
		1: {ID: 1, Title: "", URL: "https://notitle.com/page", Category: types.Uncategorized, LastAccessed: msAgo(0)},
	}

	result := Markdown(Groups(records, nil))

	if !strings.Contains(result, "[https://notitle.com/page](https://notitle.com/page)") {
		t.Errorf("expected URL as title fallback, got:\n%s", result)
	}
}

func TestMarkdown_PlaceholderSummaryOmitted(t *testing.T) {
	records := map[int]*types.TabRecord{
		1: {ID: 1, Title: "X", URL: "https://x.example", Category: types.Uncategorized, Summary: types.NoSummary, LastAccessed: msAgo(0)},
	}

	result := Markdown(Groups(records, nil))

	if strings.Contains(result, types.NoSummary) {
		t.Errorf("placeholder summary should not be rendered, got:\n%s", result)
	}
}

func TestMarkdown_RelativeTime(t *testing.T) {
	records := map[int]*types.TabRecord{
		1: {ID: 1, Title: "days", URL: "https://a.com", Category: "Time", LastAccessed: msAgo(3 * 24 * time.Hour)},
		2: {ID: 2, Title: "hours", URL: "https://b.com", Category: "Time", LastAccessed: msAgo(5 * time.Hour)},
		3: {ID: 3, Title: "minutes", URL: "https://c.com", Category: "Time", LastAccessed: msAgo(30 * time.Minute)},
		4: {ID: 4, Title: "just now", URL: "https://d.com", Category: "Time", LastAccessed: msAgo(0)},
	}

	result := Markdown(Groups(records, nil))

	for _, want := range []string{"3d ago", "5h ago", "30m ago", "just now"} {
		if !strings.Contains(result, want) {
			t.Errorf("expected %q in output, got:\n%s", want, result)
		}
	}
}

func TestMarkdown_EmptyRegistry(t *testing.T) {
	result := Markdown(nil)

	if !strings.Contains(result, "# Open Tabs") {
		t.Errorf("expected header even with no tabs, got:\n%s", result)
	}
}
