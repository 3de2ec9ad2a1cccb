package classify

import (
	"strings"
	"testing"

	"github.com/lotas/tabkartei/internal/types"
)

func TestClassify(t *testing.T) {
	c := NewWithRules(builtinRules)

	tests := []struct {
		url  string
		want string
	}{
		{"https://github.com/foo", "Development"},
		{"https://stackoverflow.com/questions/1234", "Development"},
		{"https://developer.mozilla.org/en-US/", "Documentation"},
		{"https://mail.google.com/mail/u/0/", "Email"},
		{"https://www.reddit.com/r/golang", "Social Media"},
		{"https://news.ycombinator.com/item?id=1", "News"},
		{"https://www.amazon.de/dp/B000", "Shopping"},
		{"https://www.youtube.com/watch?v=x", "Entertainment"},
		{"https://en.wikipedia.org/wiki/Go", "Reference"},
		{"https://www.booking.com/hotel", "Travel"},
		{"https://claude.ai/chat/abc", "AI"},
		{"https://example.com/plain-page", types.Uncategorized},
		{"", types.Uncategorized},
		{"not a url at all %%%", types.Uncategorized},
	}
	for _, tt := range tests {
		if got := c.Classify(tt.url); got != tt.want {
			t.Errorf("Classify(%q) = %q, want %q", tt.url, got, tt.want)
		}
	}
}

func TestClassifyDeterministic(t *testing.T) {
	c := NewWithRules(builtinRules)
	urls := []string{
		"https://github.com/foo",
		"https://example.com/x",
		"chrome://settings",
	}
	for _, u := range urls {
		first := c.Classify(u)
		for i := 0; i < 3; i++ {
			if got := c.Classify(u); got != first {
				t.Errorf("Classify(%q) not stable: %q then %q", u, first, got)
			}
		}
	}
}

func TestClassifyFirstMatchWins(t *testing.T) {
	c := NewWithRules(builtinRules)

	// Contains both a Development keyword (github.com) and a Reference
	// keyword (wikipedia.org); Development is declared first.
	url := "https://github.com/foo/wiki-mirror?src=wikipedia.org"
	if got := c.Classify(url); got != "Development" {
		t.Errorf("Classify(%q) = %q, want Development", url, got)
	}

	// Reversed rule order resolves the same URL the other way.
	rev := NewWithRules([]Rule{
		{"Reference", []string{"wikipedia.org"}},
		{"Development", []string{"github.com"}},
	})
	if got := rev.Classify(url); got != "Reference" {
		t.Errorf("reversed Classify(%q) = %q, want Reference", url, got)
	}
}

func TestClassifyCaseInsensitive(t *testing.T) {
	c := NewWithRules(builtinRules)
	if got := c.Classify("HTTPS://GITHUB.COM/Foo"); got != "Development" {
		t.Errorf("Classify uppercase = %q, want Development", got)
	}
}

func TestUserRulesPrecedeBuiltins(t *testing.T) {
	user := ParseRules("Work: jira.mycorp, github.com\n")
	c := NewWithRules(append(user, builtinRules...))

	if got := c.Classify("https://github.com/foo"); got != "Work" {
		t.Errorf("Classify with user rule = %q, want Work", got)
	}
}

func TestParseRules(t *testing.T) {
	text := `# comment
Work: jira.mycorp, Confluence.mycorp

malformed line without colon
: no label
Empty Keywords:
Media: youtube`

	rules := ParseRules(text)
	if len(rules) != 2 {
		t.Fatalf("expected 2 rules, got %d: %+v", len(rules), rules)
	}
	if rules[0].Label != "Work" || len(rules[0].Keywords) != 2 {
		t.Errorf("unexpected first rule: %+v", rules[0])
	}
	if rules[0].Keywords[1] != "confluence.mycorp" {
		t.Errorf("keywords should be lowercased, got %q", rules[0].Keywords[1])
	}
	if rules[1].Label != "Media" {
		t.Errorf("unexpected second rule: %+v", rules[1])
	}
}

func TestLabels(t *testing.T) {
	c := NewWithRules(builtinRules)
	labels := c.Labels()
	if len(labels) == 0 || labels[0] != "Development" {
		t.Fatalf("expected Development first, got %v", labels)
	}
	seen := make(map[string]bool)
	for _, l := range labels {
		if seen[l] {
			t.Errorf("duplicate label %q", l)
		}
		seen[l] = true
	}
}

func TestRulesFilePath(t *testing.T) {
	p := RulesFilePath()
	if p == "" {
		t.Skip("no home directory")
	}
	if !strings.Contains(p, "tabkartei") {
		t.Errorf("unexpected rules path %q", p)
	}
}
