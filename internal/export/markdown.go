package export

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/lotas/tabkartei/internal/types"
)

// Group is a category bucket of records, ready for rendering.
type Group struct {
	Name string
	Tabs []*types.TabRecord
}

// Groups buckets a registry snapshot by category. Categories appear in
// the order of labelOrder, with any others (including Uncategorized)
// appended alphabetically. Tabs inside a group are ordered most
// recently accessed first.
func Groups(records map[int]*types.TabRecord, labelOrder []string) []Group {
	byCat := make(map[string][]*types.TabRecord)
	for _, rec := range records {
		byCat[rec.Category] = append(byCat[rec.Category], rec)
	}

	seen := make(map[string]bool, len(labelOrder))
	var names []string
	for _, label := range labelOrder {
		if len(byCat[label]) > 0 && !seen[label] {
			names = append(names, label)
			seen[label] = true
		}
	}
	var rest []string
	for name := range byCat {
		if !seen[name] {
			rest = append(rest, name)
		}
	}
	sort.Strings(rest)
	names = append(names, rest...)

	groups := make([]Group, 0, len(names))
	for _, name := range names {
		tabs := byCat[name]
		sort.Slice(tabs, func(i, j int) bool {
			if tabs[i].LastAccessed != tabs[j].LastAccessed {
				return tabs[i].LastAccessed > tabs[j].LastAccessed
			}
			return tabs[i].ID < tabs[j].ID
		})
		groups = append(groups, Group{Name: name, Tabs: tabs})
	}
	return groups
}

// Markdown formats grouped tab records as a markdown document.
func Markdown(groups []Group) string {
	var b strings.Builder

	b.WriteString("# Open Tabs\n")
	fmt.Fprintf(&b, "> Exported %s\n", time.Now().Format("2006-01-02 15:04"))

	for _, g := range groups {
		n := len(g.Tabs)
		noun := "tabs"
		if n == 1 {
			noun = "tab"
		}
		fmt.Fprintf(&b, "\n## %s (%d %s)\n\n", g.Name, n, noun)

		for _, rec := range g.Tabs {
			title := rec.Title
			if title == "" {
				title = rec.URL
			}
			fmt.Fprintf(&b, "- [%s](%s) — %s\n", title, rec.URL, relativeTime(rec.LastAccessedTime()))
			if rec.Summary != "" && rec.Summary != types.NoSummary {
				fmt.Fprintf(&b, "  %s\n", rec.Summary)
			}
		}
	}

	return b.String()
}

func relativeTime(t time.Time) string {
	if t.IsZero() {
		return "never"
	}
	d := time.Since(t)
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	default:
		return fmt.Sprintf("%dd ago", int(d.Hours()/24))
	}
}
