package ai

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino-ext/components/model/ark"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/pkg/errors"

	"github.com/zhouzirui/serene-care/backend/internal/config"
	"github.com/zhouzirui/serene-care/backend/internal/model/chat"
)

// Ark sends completions through an eino chat model backed by Volcengine Ark.
type Ark struct {
	chatModel model.BaseChatModel
}

// NewArk builds the Ark chat model. Without credentials no model is created
// and every call reports a configuration fault.
func NewArk(ctx context.Context, cfg config.ProviderConfig, gen GenerationConfig) (*Ark, error) {
	if !cfg.HasCredential() {
		return &Ark{}, nil
	}

	temperature := float32(gen.Temperature)
	topP := float32(gen.TopP)
	maxTokens := gen.MaxTokens

	chatModel, err := ark.NewChatModel(ctx, &ark.ChatModelConfig{
		BaseURL:     cfg.BaseURL,
		Region:      cfg.Region,
		APIKey:      cfg.APIKey,
		AccessKey:   cfg.AccessKey,
		SecretKey:   cfg.SecretKey,
		Model:       cfg.Model,
		MaxTokens:   &maxTokens,
		Temperature: &temperature,
		TopP:        &topP,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create ark chat model: %w", err)
	}
	return &Ark{chatModel: chatModel}, nil
}

// NewArkWithModel wraps an existing eino chat model.
func NewArkWithModel(chatModel model.BaseChatModel) *Ark {
	return &Ark{chatModel: chatModel}
}

// Name implements Provider.
func (a *Ark) Name() string { return "ark" }

// Complete implements Provider. The eino client hides the HTTP exchange, so
// a failed generation is reported as an upstream fault carrying the error
// text instead of the raw body.
func (a *Ark) Complete(ctx context.Context, directive string, history []chat.Turn) (string, error) {
	if a.chatModel == nil {
		return "", &ConfigError{Provider: "Ark"}
	}

	resp, err := a.chatModel.Generate(ctx, buildSchemaMessages(directive, history))
	if err != nil {
		if ctx.Err() != nil {
			return "", errors.Wrap(err, "ark generate")
		}
		return "", &UpstreamError{Provider: a.Name(), Body: err.Error()}
	}
	if resp == nil {
		return "", nil
	}
	return resp.Content, nil
}

func buildSchemaMessages(directive string, history []chat.Turn) []*schema.Message {
	messages := make([]*schema.Message, 0, len(history)+1)
	messages = append(messages, schema.SystemMessage(directive))
	for _, turn := range history {
		switch turn.Role {
		case chat.RoleAssistant:
			messages = append(messages, schema.AssistantMessage(turn.Content, nil))
		default:
			messages = append(messages, schema.UserMessage(turn.Content))
		}
	}
	return messages
}
