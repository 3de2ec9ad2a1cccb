package types

import "time"

// Tab is a live browser tab as reported by the extension.
type Tab struct {
	ID    int    `json:"id"`
	URL   string `json:"url"`
	Title string `json:"title"`
}

// PageContent is the content snapshot captured at enrichment time.
// BodyText is bounded to MaxBodyText characters.
type PageContent struct {
	Title           string `json:"title"`
	MetaDescription string `json:"metaDescription"`
	BodyText        string `json:"bodyText"`
}

// MaxBodyText is the upper bound on stored body text length.
const MaxBodyText = 1000

// TabRecord is the enriched view of a tab held by the registry.
// LastAccessed is epoch milliseconds and only ever increases for a
// given record.
type TabRecord struct {
	ID           int         `json:"id"`
	URL          string      `json:"url"`
	Title        string      `json:"title"`
	Category     string      `json:"category"`
	Summary      string      `json:"summary"`
	Topics       []string    `json:"topics,omitempty"`
	Importance   string      `json:"importance,omitempty"`
	Content      PageContent `json:"content"`
	LastAccessed int64       `json:"lastAccessed"`
}

// LastAccessedTime returns LastAccessed as a time.Time.
func (r *TabRecord) LastAccessedTime() time.Time {
	return time.UnixMilli(r.LastAccessed)
}

// IdleDays returns full days since the tab was last accessed.
func (r *TabRecord) IdleDays(now time.Time) int {
	d := now.Sub(r.LastAccessedTime())
	if d < 0 {
		return 0
	}
	return int(d.Hours() / 24)
}

// Clone returns a deep copy of the record. The registry hands out
// clones so callers never hold the authoritative copy.
func (r *TabRecord) Clone() *TabRecord {
	c := *r
	if r.Topics != nil {
		c.Topics = append([]string(nil), r.Topics...)
	}
	return &c
}

// Uncategorized is the category for URLs no classifier rule matches.
const Uncategorized = "Uncategorized"

// NoSummary is the summary placeholder when neither the analyst nor
// the page provides one.
const NoSummary = "No summary available"

// Stats holds aggregate registry statistics for the UI.
type Stats struct {
	TotalTabs  int
	Categories int
	IdleTabs   int
}

// FilterMode controls which records the list view shows.
type FilterMode int

const (
	FilterAll FilterMode = iota
	FilterIdle
)
