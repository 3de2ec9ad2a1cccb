package export

import (
	"encoding/json"
	"net/url"
	"time"
)

type jsonExport struct {
	ExportedAt time.Time   `json:"exported_at"`
	TabCount   int         `json:"tab_count"`
	Groups     []jsonGroup `json:"groups"`
}

type jsonGroup struct {
	Name string    `json:"name"`
	Tabs []jsonTab `json:"tabs"`
}

type jsonTab struct {
	ID                 int       `json:"id"`
	Title              string    `json:"title"`
	URL                string    `json:"url"`
	Domain             string    `json:"domain"`
	Summary            string    `json:"summary,omitempty"`
	Topics             []string  `json:"topics,omitempty"`
	Importance         string    `json:"importance,omitempty"`
	LastAccessed       time.Time `json:"last_accessed"`
	LastAccessedPretty string    `json:"last_accessed_pretty"`
	IdleDays           int       `json:"idle_days"`
}

// JSON formats grouped tab records as an indented JSON document.
func JSON(groups []Group) (string, error) {
	now := time.Now()
	out := jsonExport{
		ExportedAt: now,
		Groups:     make([]jsonGroup, 0, len(groups)),
	}

	for _, g := range groups {
		group := jsonGroup{
			Name: g.Name,
			Tabs: make([]jsonTab, 0, len(g.Tabs)),
		}
		for _, rec := range g.Tabs {
			group.Tabs = append(group.Tabs, jsonTab{
				ID:                 rec.ID,
				Title:              rec.Title,
				URL:                rec.URL,
				Domain:             extractDomain(rec.URL),
				Summary:            rec.Summary,
				Topics:             rec.Topics,
				Importance:         rec.Importance,
				LastAccessed:       rec.LastAccessedTime(),
				LastAccessedPretty: relativeTime(rec.LastAccessedTime()),
				IdleDays:           rec.IdleDays(now),
			})
			out.TabCount++
		}
		out.Groups = append(out.Groups, group)
	}

	b, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return "", err
	}
	return string(b) + "\n", nil
}

func extractDomain(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return rawURL
	}
	return u.Hostname()
}
