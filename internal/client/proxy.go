// Package client calls the healthchat proxy from Go programs.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/zhouzirui/serene-care/backend/internal/model/chat"
	"github.com/zhouzirui/serene-care/backend/internal/model/persona"
)

const (
	// CompletionPath is where the proxy is mounted.
	CompletionPath = "/functions/v1/healthchat"
	personaPath    = "/api/persona"
)

// MissingContentReply stands in for a 2xx response without content.
const MissingContentReply = "I'm sorry, I couldn't process that just now."

// Proxy is an HTTP client for the completion proxy. It satisfies the
// conversation store's Completer.
type Proxy struct {
	baseURL string
	http    *http.Client
}

// NewProxy creates a client for the server at baseURL.
func NewProxy(baseURL string, timeout time.Duration) *Proxy {
	return &Proxy{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
	}
}

// Complete posts the history and returns the assistant reply. Any non-2xx
// status is an error; the caller decides how to recover.
func (p *Proxy) Complete(ctx context.Context, turns []chat.Turn) (string, error) {
	if turns == nil {
		turns = []chat.Turn{}
	}
	body, err := json.Marshal(chat.CompletionRequest{Messages: turns})
	if err != nil {
		return "", errors.Wrap(err, "encode completion request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+CompletionPath, bytes.NewReader(body))
	if err != nil {
		return "", errors.Wrap(err, "build completion request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.http.Do(req)
	if err != nil {
		return "", errors.Wrap(err, "call healthchat proxy")
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("HTTP %d", resp.StatusCode)
	}

	var payload struct {
		Content *string `json:"content"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return "", errors.Wrap(err, "decode completion response")
	}
	if payload.Content == nil {
		return MissingContentReply, nil
	}
	return *payload.Content, nil
}

// Persona fetches the assistant profile used to seed a conversation.
func (p *Proxy) Persona(ctx context.Context) (persona.Persona, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+personaPath, nil)
	if err != nil {
		return persona.Persona{}, errors.Wrap(err, "build persona request")
	}

	resp, err := p.http.Do(req)
	if err != nil {
		return persona.Persona{}, errors.Wrap(err, "fetch persona")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return persona.Persona{}, fmt.Errorf("HTTP %d", resp.StatusCode)
	}

	var out persona.Persona
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return persona.Persona{}, errors.Wrap(err, "decode persona")
	}
	return out, nil
}
