package export

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/lotas/tabkartei/internal/types"
)

func TestJSON_GroupedOutput(t *testing.T) {
	records := map[int]*types.TabRecord{
		1: {
			ID:           1,
			Title:        "Go docs",
			URL:          "https://go.dev/doc",
			Category:     "Documentation",
			Summary:      "Go language documentation",
			Topics:       []string{"go", "docs"},
			Importance:   "high",
			LastAccessed: msAgo(3 * 24 * time.Hour),
		},
		2: {
			ID:           2,
			Title:        "Example",
			URL:          "https://example.com",
			Category:     types.Uncategorized,
			LastAccessed: msAgo(5 * time.Hour),
		},
	}

	result, err := JSON(Groups(records, []string{"Documentation"}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var parsed jsonExport
	if err := json.Unmarshal([]byte(result), &parsed); err != nil {
		t.Fatalf("output is not valid JSON: %v", err)
	}

	if parsed.TabCount != 2 {
		t.Errorf("tab_count = %d, want 2", parsed.TabCount)
	}
	if len(parsed.Groups) != 2 {
		t.Fatalf("got %d groups, want 2", len(parsed.Groups))
	}
	if parsed.Groups[0].Name != "Documentation" {
		t.Errorf("first group = %q, want Documentation", parsed.Groups[0].Name)
	}

	tab := parsed.Groups[0].Tabs[0]
	if tab.Domain != "go.dev" {
		t.Errorf("domain = %q, want go.dev", tab.Domain)
	}
	if tab.IdleDays != 3 {
		t.Errorf("idle_days = %d, want 3", tab.IdleDays)
	}
	if tab.Summary != "Go language documentation" {
		t.Errorf("summary = %q", tab.Summary)
	}
	if len(tab.Topics) != 2 || tab.Importance != "high" {
		t.Errorf("analysis fields lost: topics=%v importance=%q", tab.Topics, tab.Importance)
	}
}

func TestJSON_EmptyRegistry(t *testing.T) {
	result, err := JSON(nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var parsed jsonExport
	if err := json.Unmarshal([]byte(result), &parsed); err != nil {
		t.Fatalf("output is not valid JSON: %v", err)
	}
	if parsed.TabCount != 0 || len(parsed.Groups) != 0 {
		t.Errorf("expected empty export, got %+v", parsed)
	}
}

func TestExtractDomain(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"https://go.dev/doc", "go.dev"},
		{"https://news.example:8080/x", "news.example"},
		{"not a url", "not a url"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := extractDomain(tt.in); got != tt.want {
			t.Errorf("extractDomain(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
