// Package orchestrator walks a routing decision's fallback chain, invoking
// provider adapters in order until one returns output that survives
// validation. The chain is walked sequentially: parallel attempts would risk
// double-billing and break first-valid-wins semantics.
package orchestrator

import (
	"context"
	"errors"
	"time"
	"unicode/utf8"

	"github.com/sirupsen/logrus"

	"github.com/promptpilot/ai-router/internal/keyring"
	"github.com/promptpilot/ai-router/internal/metrics"
	"github.com/promptpilot/ai-router/internal/providers"
	"github.com/promptpilot/ai-router/internal/types"
	"github.com/promptpilot/ai-router/internal/validate"
)

// ErrAllProvidersExhausted reports that every provider in the fallback chain
// failed. It is distinct from any single provider's error so callers can tell
// "everything is down" from one bad provider.
var ErrAllProvidersExhausted = errors.New("all providers exhausted")

const (
	defaultAttemptTimeout = 120 * time.Second
	previewLen            = 120
)

// Result is the outcome of a successful chain walk.
type Result struct {
	Text             string
	Provider         string
	Model            string
	Attempts         []types.ExecutionAttempt
	FallbackOccurred bool
}

// ExhaustedError carries the attempt trail when the whole chain failed.
type ExhaustedError struct {
	Attempts []types.ExecutionAttempt
}

func (e *ExhaustedError) Error() string { return ErrAllProvidersExhausted.Error() }
func (e *ExhaustedError) Unwrap() error { return ErrAllProvidersExhausted }

// Orchestrator executes decisions against the constructed provider adapters.
// Per-request state lives entirely on the stack of one call; the struct
// itself is safe for concurrent use.
type Orchestrator struct {
	adapters       map[string]providers.Provider
	keys           keyring.Keyring
	metrics        *metrics.Metrics
	logger         *logrus.Logger
	attemptTimeout time.Duration
}

// Option tunes an Orchestrator.
type Option func(*Orchestrator)

// WithAttemptTimeout bounds a single provider call. A provider exceeding it
// is treated as a transport failure and triggers fallback.
func WithAttemptTimeout(d time.Duration) Option {
	return func(o *Orchestrator) {
		if d > 0 {
			o.attemptTimeout = d
		}
	}
}

// New builds an orchestrator over the adapters that were constructed at
// startup, keyed by provider identifier.
func New(adapters map[string]providers.Provider, keys keyring.Keyring, m *metrics.Metrics, logger *logrus.Logger, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		adapters:       adapters,
		keys:           keys,
		metrics:        m,
		logger:         logger,
		attemptTimeout: defaultAttemptTimeout,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Execute walks the context's fallback chain and returns the first response
// that transports and validates successfully. All per-attempt errors are
// recovered here and recorded; only exhaustion propagates.
func (o *Orchestrator) Execute(ctx context.Context, rc *types.RoutingContext) (*Result, error) {
	var attempts []types.ExecutionAttempt

	for i, providerID := range rc.FallbackChain {
		attempt, resp := o.attemptBuffered(ctx, rc, providerID)
		attempts = append(attempts, attempt)
		o.metrics.RecordAttempt(providerID, attempt.Succeeded)

		if attempt.Succeeded {
			return &Result{
				Text:             resp.Text,
				Provider:         providerID,
				Model:            resp.Model,
				Attempts:         attempts,
				FallbackOccurred: i > 0,
			}, nil
		}

		o.logger.WithFields(logrus.Fields{
			"provider": providerID,
			"reason":   attempt.FailureReason,
		}).Warn("Provider attempt failed, falling back")
		o.metrics.FallbacksTotal.WithLabelValues(string(attempt.FailureReason)).Inc()
	}

	o.metrics.ExhaustionsTotal.Inc()
	return nil, &ExhaustedError{Attempts: attempts}
}

func (o *Orchestrator) attemptBuffered(ctx context.Context, rc *types.RoutingContext, providerID string) (types.ExecutionAttempt, *providers.Response) {
	attempt := types.ExecutionAttempt{ProviderID: providerID, StartedAt: time.Now().UTC()}

	adapter, err := o.resolve(providerID)
	if err != nil {
		attempt.FailureReason = types.FailureKeyMissing
		return attempt, nil
	}

	callCtx, cancel := context.WithTimeout(ctx, o.attemptTimeout)
	defer cancel()

	resp, err := adapter.Generate(callCtx, o.buildRequest(rc, providerID))
	attempt.DurationMs = time.Since(attempt.StartedAt).Milliseconds()
	if err != nil {
		attempt.FailureReason = failureReason(err)
		return attempt, nil
	}

	if validate.IsMalformed(resp.Text, rc.RequiresStructuredOutput) {
		attempt.FailureReason = types.FailureMalformedOutput
		attempt.OutputPreview = preview(resp.Text)
		return attempt, nil
	}

	attempt.Succeeded = true
	attempt.OutputPreview = preview(resp.Text)
	return attempt, resp
}

// resolve confirms the provider was constructed and still has a credential.
func (o *Orchestrator) resolve(providerID string) (providers.Provider, error) {
	adapter, ok := o.adapters[providerID]
	if !ok {
		return nil, providers.ErrMissingCredential
	}
	if o.keys != nil {
		if _, err := o.keys.APIKey(providerID); err != nil {
			return nil, providers.ErrMissingCredential
		}
	}
	return adapter, nil
}

func (o *Orchestrator) buildRequest(rc *types.RoutingContext, providerID string) *providers.Request {
	req := &providers.Request{
		Prompt:   rc.Prompt,
		JSONMode: rc.RequiresStructuredOutput,
	}
	// The routed model belongs to the primary provider; fallbacks run their
	// own default model.
	if providerID == rc.PrimaryProviderHint {
		req.Model = rc.PrimaryModelHint
	}
	return req
}

func failureReason(err error) types.FailureReason {
	if errors.Is(err, providers.ErrMissingCredential) {
		return types.FailureKeyMissing
	}
	if providers.KindOf(err) == providers.KindProvider {
		return types.FailureProviderError
	}
	return types.FailureTransportError
}

func preview(text string) string {
	if len(text) <= previewLen {
		return text
	}
	// Back up to a rune boundary so the preview stays valid UTF-8.
	cut := previewLen
	for cut > 0 && !utf8.RuneStart(text[cut]) {
		cut--
	}
	return text[:cut]
}
