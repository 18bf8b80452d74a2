package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/pkg/errors"
	openai "github.com/sashabaranov/go-openai"

	"github.com/zhouzirui/serene-care/backend/internal/model/chat"
)

// PerplexityConfig configures the chat-completion provider.
type PerplexityConfig struct {
	BaseURL    string
	Model      string
	APIKey     string
	Generation GenerationConfig
	Timeout    time.Duration
	HTTPClient *http.Client
}

// Perplexity speaks the OpenAI-compatible chat-completions format. Requests
// are sent with a plain http.Client so the raw upstream body survives on
// failure; go-openai provides the wire types.
type Perplexity struct {
	cfg    PerplexityConfig
	client *http.Client
}

// NewPerplexity creates a Perplexity provider.
func NewPerplexity(cfg PerplexityConfig) *Perplexity {
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}
	return &Perplexity{cfg: cfg, client: client}
}

// Name implements Provider.
func (p *Perplexity) Name() string { return "perplexity" }

// Complete implements Provider.
func (p *Perplexity) Complete(ctx context.Context, directive string, history []chat.Turn) (string, error) {
	if p.cfg.APIKey == "" {
		return "", &ConfigError{Provider: "Perplexity"}
	}

	body, err := json.Marshal(openai.ChatCompletionRequest{
		Model:       p.cfg.Model,
		Messages:    buildOpenAIMessages(directive, history),
		Temperature: float32(p.cfg.Generation.Temperature),
		TopP:        float32(p.cfg.Generation.TopP),
		MaxTokens:   p.cfg.Generation.MaxTokens,
	})
	if err != nil {
		return "", errors.Wrap(err, "encode perplexity request")
	}

	endpoint := strings.TrimRight(p.cfg.BaseURL, "/") + "/chat/completions"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return "", errors.Wrap(err, "build perplexity request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.cfg.APIKey)

	resp, err := p.client.Do(req)
	if err != nil {
		return "", errors.Wrap(err, "call perplexity")
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", errors.Wrap(err, "read perplexity response")
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", &UpstreamError{Provider: p.Name(), Status: resp.StatusCode, Body: string(raw)}
	}

	var completion openai.ChatCompletionResponse
	if err := json.Unmarshal(raw, &completion); err != nil {
		return "", errors.Wrap(err, "decode perplexity response")
	}
	if len(completion.Choices) == 0 {
		return "", nil
	}
	return completion.Choices[0].Message.Content, nil
}

func buildOpenAIMessages(directive string, history []chat.Turn) []openai.ChatCompletionMessage {
	messages := make([]openai.ChatCompletionMessage, 0, len(history)+1)
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleSystem,
		Content: directive,
	})
	for _, turn := range history {
		role := openai.ChatMessageRoleUser
		if turn.Role == chat.RoleAssistant {
			role = openai.ChatMessageRoleAssistant
		}
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    role,
			Content: turn.Content,
		})
	}
	return messages
}
