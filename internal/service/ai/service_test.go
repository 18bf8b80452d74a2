package ai

import (
	"context"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhouzirui/serene-care/backend/internal/config"
	"github.com/zhouzirui/serene-care/backend/internal/metrics"
	"github.com/zhouzirui/serene-care/backend/internal/model/chat"
)

type stubProvider struct {
	calls     int
	directive string
	history   []chat.Turn
	reply     string
	err       error
}

func (s *stubProvider) Name() string { return "stub" }

func (s *stubProvider) Complete(_ context.Context, directive string, history []chat.Turn) (string, error) {
	s.calls++
	s.directive = directive
	s.history = history
	return s.reply, s.err
}

func TestServiceInjectsDirective(t *testing.T) {
	stub := &stubProvider{reply: "Rest, hydrate, and consider an OTC analgesic; seek care if severe or persistent."}
	svc := NewService(stub, testDirective, nil)

	turns := []chat.Turn{{Role: chat.RoleUser, Content: "I have a headache, what should I do?"}}
	reply, err := svc.Complete(context.Background(), turns)
	require.NoError(t, err)

	assert.Equal(t, stub.reply, reply)
	assert.Equal(t, testDirective, stub.directive)
	assert.Equal(t, turns, stub.history)
	assert.Equal(t, "stub", svc.ProviderName())
}

func TestServiceBlankReplyUsesFallback(t *testing.T) {
	m := metrics.New()
	svc := NewService(&stubProvider{reply: "  \n"}, testDirective, m)

	reply, err := svc.Complete(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, FallbackReply, reply)
	count, err := testutil.GatherAndCount(m.Registry(), "healthchat_upstream_requests_total")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestServicePropagatesErrorsWithoutRetry(t *testing.T) {
	stub := &stubProvider{err: &UpstreamError{Provider: "stub", Status: 503, Body: "down"}}
	svc := NewService(stub, testDirective, metrics.New())

	_, err := svc.Complete(context.Background(), nil)

	var upstreamErr *UpstreamError
	require.True(t, errors.As(err, &upstreamErr))
	assert.Equal(t, 1, stub.calls)
}

func TestClassify(t *testing.T) {
	assert.Equal(t, metrics.OutcomeConfig, classify(&ConfigError{Provider: "Gemini"}))
	assert.Equal(t, metrics.OutcomeUpstream, classify(&UpstreamError{}))
	assert.Equal(t, metrics.OutcomeUnexpected, classify(errors.New("boom")))
}

func TestNewProviderSelectsExactlyOne(t *testing.T) {
	ctx := context.Background()

	p, err := NewProvider(ctx, config.ProviderConfig{Name: config.ProviderGemini})
	require.NoError(t, err)
	assert.Equal(t, "gemini", p.Name())

	p, err = NewProvider(ctx, config.ProviderConfig{Name: config.ProviderPerplexity})
	require.NoError(t, err)
	assert.Equal(t, "perplexity", p.Name())

	p, err = NewProvider(ctx, config.ProviderConfig{Name: config.ProviderArk, Model: "m"})
	require.NoError(t, err)
	assert.Equal(t, "ark", p.Name())

	_, err = NewProvider(ctx, config.ProviderConfig{Name: "both"})
	assert.Error(t, err)
}
