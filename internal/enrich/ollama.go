package enrich

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/lotas/tabkartei/internal/types"
)

const promptTemplate = `You organize browser tabs. Given a page, respond with ONLY a JSON object:
{"category": "<one of: %s>", "summary": "<one sentence>", "topics": ["<up to 3 topics>"], "importance": "<low|medium|high>"}

URL: %s
Title: %s
Description: %s
Body excerpt:
%s`

type ollamaRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	Stream bool   `json:"stream"`
}

type ollamaResponse struct {
	Response string `json:"response"`
}

type analysisPayload struct {
	Category   string   `json:"category"`
	Summary    string   `json:"summary"`
	Topics     []string `json:"topics"`
	Importance string   `json:"importance"`
}

// OllamaAnalyst asks a local Ollama instance to categorize and
// summarize a page. Labels constrains the categories the model may
// pick; anything else is rejected so the keyword result stands.
type OllamaAnalyst struct {
	Model  string
	Host   string
	Labels []string
}

// Analyze implements Analyst.
func (a *OllamaAnalyst) Analyze(ctx context.Context, tab types.Tab, content types.PageContent) (*Analysis, error) {
	prompt := fmt.Sprintf(promptTemplate,
		strings.Join(a.Labels, ", "),
		tab.URL,
		content.Title,
		content.MetaDescription,
		content.BodyText,
	)

	reqBody := ollamaRequest{
		Model:  a.Model,
		Prompt: prompt,
		Stream: false,
	}

	body, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.Host+"/api/generate", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("ollama request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("ollama returned HTTP %d", resp.StatusCode)
	}

	var result ollamaResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode ollama response: %w", err)
	}

	return a.parseAnalysis(result.Response)
}

// parseAnalysis extracts the JSON object from a model response.
// Models often wrap JSON in prose or code fences, so scan for the
// outermost braces.
func (a *OllamaAnalyst) parseAnalysis(response string) (*Analysis, error) {
	start := strings.Index(response, "{")
	end := strings.LastIndex(response, "}")
	if start < 0 || end <= start {
		return nil, fmt.Errorf("no JSON object in response %q", truncateForErr(response))
	}

	var payload analysisPayload
	if err := json.Unmarshal([]byte(response[start:end+1]), &payload); err != nil {
		return nil, fmt.Errorf("parse analysis: %w", err)
	}

	analysis := &Analysis{
		Summary:    strings.TrimSpace(payload.Summary),
		Topics:     payload.Topics,
		Importance: normalizeImportance(payload.Importance),
	}
	if canon, ok := a.canonicalLabel(payload.Category); ok {
		analysis.Category = canon
	}
	return analysis, nil
}

// canonicalLabel matches a model-provided category against the allowed
// labels, ignoring case.
func (a *OllamaAnalyst) canonicalLabel(label string) (string, bool) {
	label = strings.TrimSpace(label)
	for _, l := range a.Labels {
		if strings.EqualFold(l, label) {
			return l, true
		}
	}
	return "", false
}

func normalizeImportance(s string) string {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "low", "medium", "high":
		return strings.ToLower(strings.TrimSpace(s))
	default:
		return ""
	}
}

func truncateForErr(s string) string {
	if len(s) > 120 {
		return s[:120] + "…"
	}
	return s
}
