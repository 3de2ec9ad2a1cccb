package classify

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/lotas/tabkartei/internal/types"
)

// Rule maps a category label to the URL keywords that select it.
// Rules are checked in declaration order and the first rule with any
// matching keyword wins.
type Rule struct {
	Label    string
	Keywords []string
}

var builtinRules = []Rule{
	{"Development", []string{
		"github.com", "gitlab.com", "bitbucket.org", "stackoverflow.com",
		"stackexchange.com", "localhost", "127.0.0.1", "godoc.org",
		"pkg.go.dev", "npmjs.com", "pypi.org", "crates.io", "hub.docker.com",
		"jenkins", "circleci", "/pull/", "/issues/", "/commit/",
	}},
	{"Documentation", []string{
		"/docs/", "/documentation/", "readthedocs", "developer.mozilla.org",
		"devdocs.io", "/reference/", "/manual/", "/api-docs",
		"wiki.archlinux.org", "man7.org",
	}},
	{"Communication", []string{
		"slack.com", "discord.com", "teams.microsoft", "zoom.us",
		"meet.google", "telegram.org", "web.whatsapp",
	}},
	{"Email", []string{
		"mail.google", "outlook.live", "outlook.office", "mail.proton",
		"mail.yahoo", "fastmail", "/webmail",
	}},
	{"Social Media", []string{
		"twitter.com", "x.com", "facebook.com", "instagram.com",
		"linkedin.com", "reddit.com", "mastodon", "bsky.app", "tiktok.com",
	}},
	{"News", []string{
		"news.ycombinator.com", "bbc.co", "cnn.com", "nytimes.com",
		"theguardian.com", "reuters.com", "spiegel.de", "zeit.de",
		"heise.de", "/news/", "lobste.rs",
	}},
	{"Shopping", []string{
		"amazon.", "ebay.", "etsy.com", "aliexpress", "/cart",
		"/checkout", "shopify", "idealo.", "otto.de",
	}},
	{"Entertainment", []string{
		"youtube.com", "youtu.be", "netflix.com", "twitch.tv",
		"spotify.com", "soundcloud.com", "vimeo.com", "hulu.com",
		"disneyplus", "steampowered.com",
	}},
	{"Reference", []string{
		"wikipedia.org", "arxiv.org", "scholar.google", "britannica",
		"wiktionary", "semanticscholar",
	}},
	{"Finance", []string{
		"paypal.com", "/banking", "coinbase", "kraken.com",
		"finance.yahoo", "tradingview", "wise.com",
	}},
	{"Travel", []string{
		"booking.com", "airbnb.", "expedia", "maps.google",
		"openstreetmap", "bahn.de", "skyscanner", "tripadvisor",
	}},
	{"AI", []string{
		"chatgpt.com", "chat.openai", "claude.ai", "gemini.google",
		"huggingface.co", "perplexity.ai", "ollama",
	}},
}

// Classifier holds an ordered rule table.
type Classifier struct {
	rules []Rule
}

// New returns a classifier over the built-in rule table, with any
// user rules from RulesFilePath prepended (user rules win on overlap).
func New() *Classifier {
	return &Classifier{rules: append(LoadUserRules(), builtinRules...)}
}

// NewWithRules returns a classifier over exactly the given rules.
func NewWithRules(rules []Rule) *Classifier {
	return &Classifier{rules: rules}
}

// Classify maps a URL to a category label. The URL may be malformed;
// matching is plain substring search over the lowercased string, so
// there is nothing to parse and nothing to fail.
func (c *Classifier) Classify(rawURL string) string {
	u := strings.ToLower(rawURL)
	if u == "" {
		return types.Uncategorized
	}
	for _, r := range c.rules {
		for _, kw := range r.Keywords {
			if strings.Contains(u, kw) {
				return r.Label
			}
		}
	}
	return types.Uncategorized
}

// Rules returns the active rule table in evaluation order.
func (c *Classifier) Rules() []Rule {
	return c.rules
}

// Labels returns the distinct labels in evaluation order.
func (c *Classifier) Labels() []string {
	seen := make(map[string]bool, len(c.rules))
	var labels []string
	for _, r := range c.rules {
		if !seen[r.Label] {
			seen[r.Label] = true
			labels = append(labels, r.Label)
		}
	}
	return labels
}

// RulesFilePath returns the path to the optional user rules file.
func RulesFilePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "tabkartei", "rules.txt")
}

// LoadUserRules reads the user rules file, returning nil if it does
// not exist. Each non-empty, non-comment line has the form
// "Label: keyword, keyword, ...".
func LoadUserRules() []Rule {
	data, err := os.ReadFile(RulesFilePath())
	if err != nil {
		return nil
	}
	return ParseRules(string(data))
}

// ParseRules parses rules in the user rules file format. Malformed
// lines are skipped.
func ParseRules(text string) []Rule {
	var rules []Rule
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		label, rest, ok := strings.Cut(line, ":")
		label = strings.TrimSpace(label)
		if !ok || label == "" {
			continue
		}
		var keywords []string
		for _, kw := range strings.Split(rest, ",") {
			kw = strings.ToLower(strings.TrimSpace(kw))
			if kw != "" {
				keywords = append(keywords, kw)
			}
		}
		if len(keywords) > 0 {
			rules = append(rules, Rule{Label: label, Keywords: keywords})
		}
	}
	return rules
}
