package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/tidwall/gjson"

	"github.com/zhouzirui/serene-care/backend/internal/model/chat"
)

const geminiReplyPath = "candidates.0.content.parts.0.text"

// GeminiConfig configures the generateContent provider.
type GeminiConfig struct {
	BaseURL    string
	Model      string
	APIKey     string
	Generation GenerationConfig
	Timeout    time.Duration
	HTTPClient *http.Client
}

// Gemini talks to the generative-content API, which has no system role and
// names the assistant "model".
type Gemini struct {
	cfg    GeminiConfig
	client *http.Client
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiContent struct {
	Role  string       `json:"role"`
	Parts []geminiPart `json:"parts"`
}

type geminiGenerationConfig struct {
	Temperature     float64 `json:"temperature"`
	TopP            float64 `json:"topP"`
	MaxOutputTokens int     `json:"maxOutputTokens"`
}

type geminiRequest struct {
	Contents         []geminiContent        `json:"contents"`
	GenerationConfig geminiGenerationConfig `json:"generationConfig"`
}

// NewGemini creates a Gemini provider.
func NewGemini(cfg GeminiConfig) *Gemini {
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}
	return &Gemini{cfg: cfg, client: client}
}

// Name implements Provider.
func (g *Gemini) Name() string { return "gemini" }

// Complete implements Provider.
func (g *Gemini) Complete(ctx context.Context, directive string, history []chat.Turn) (string, error) {
	if g.cfg.APIKey == "" {
		return "", &ConfigError{Provider: "Gemini"}
	}

	body, err := json.Marshal(geminiRequest{
		Contents: buildGeminiContents(directive, history),
		GenerationConfig: geminiGenerationConfig{
			Temperature:     g.cfg.Generation.Temperature,
			TopP:            g.cfg.Generation.TopP,
			MaxOutputTokens: g.cfg.Generation.MaxTokens,
		},
	})
	if err != nil {
		return "", errors.Wrap(err, "encode gemini request")
	}

	endpoint := strings.TrimRight(g.cfg.BaseURL, "/") + "/models/" + url.PathEscape(g.cfg.Model) +
		":generateContent?key=" + url.QueryEscape(g.cfg.APIKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return "", errors.Wrap(err, "build gemini request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		return "", errors.Wrap(redactKey(err, g.cfg.APIKey), "call gemini")
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", errors.Wrap(err, "read gemini response")
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", &UpstreamError{Provider: g.Name(), Status: resp.StatusCode, Body: string(raw)}
	}

	if !gjson.ValidBytes(raw) {
		return "", errors.New("gemini returned malformed JSON")
	}
	return gjson.GetBytes(raw, geminiReplyPath).String(), nil
}

// buildGeminiContents maps roles and folds the directive into the first
// content, or sends it alone when there is no history yet.
func buildGeminiContents(directive string, history []chat.Turn) []geminiContent {
	contents := make([]geminiContent, 0, len(history)+1)
	for _, turn := range history {
		role := "user"
		if turn.Role == chat.RoleAssistant {
			role = "model"
		}
		contents = append(contents, geminiContent{
			Role:  role,
			Parts: []geminiPart{{Text: turn.Content}},
		})
	}

	if len(contents) == 0 {
		return []geminiContent{{Role: "user", Parts: []geminiPart{{Text: directive}}}}
	}

	contents[0].Parts[0].Text = directive + "\n\n" + contents[0].Parts[0].Text
	return contents
}

// redactKey keeps the API key, which travels in the query string, out of
// transport errors that end up in logs and response details.
func redactKey(err error, key string) error {
	var urlErr *url.Error
	if key == "" || !errors.As(err, &urlErr) {
		return err
	}
	urlErr.URL = strings.ReplaceAll(urlErr.URL, url.QueryEscape(key), "REDACTED")
	return err
}
