package ai

import (
	"context"
	"strings"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/zhouzirui/serene-care/backend/internal/metrics"
	"github.com/zhouzirui/serene-care/backend/internal/model/chat"
)

// FallbackReply replaces an upstream answer that carried no usable text.
const FallbackReply = "Sorry, I couldn't find an answer."

// Service injects the safety directive and forwards a conversation to the
// configured provider. It keeps no history between calls.
type Service struct {
	provider  Provider
	directive string
	metrics   *metrics.Metrics
}

// NewService creates a new completion service. m may be nil.
func NewService(provider Provider, directive string, m *metrics.Metrics) *Service {
	return &Service{
		provider:  provider,
		directive: directive,
		metrics:   m,
	}
}

// ProviderName reports which upstream this deployment talks to.
func (s *Service) ProviderName() string {
	return s.provider.Name()
}

// Complete performs exactly one upstream call for the given history.
func (s *Service) Complete(ctx context.Context, turns []chat.Turn) (string, error) {
	entry := log.WithFields(log.Fields{
		"provider": s.provider.Name(),
		"turns":    len(turns),
	})

	start := time.Now()
	reply, err := s.provider.Complete(ctx, s.directive, turns)
	elapsed := time.Since(start)

	if err != nil {
		s.metrics.ObserveUpstream(s.provider.Name(), classify(err), elapsed)
		entry.WithError(err).Warn("[ai] completion failed")
		return "", err
	}

	if strings.TrimSpace(reply) == "" {
		s.metrics.ObserveUpstream(s.provider.Name(), metrics.OutcomeEmpty, elapsed)
		entry.Info("[ai] upstream returned no text, using fallback reply")
		return FallbackReply, nil
	}

	s.metrics.ObserveUpstream(s.provider.Name(), metrics.OutcomeSuccess, elapsed)
	entry.WithField("length", len(reply)).Infof("[ai] completion finished in %s", elapsed)
	return reply, nil
}

func classify(err error) string {
	var configErr *ConfigError
	if errors.As(err, &configErr) {
		return metrics.OutcomeConfig
	}
	var upstreamErr *UpstreamError
	if errors.As(err, &upstreamErr) {
		return metrics.OutcomeUpstream
	}
	return metrics.OutcomeUnexpected
}
