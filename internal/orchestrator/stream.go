package orchestrator

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/promptpilot/ai-router/internal/types"
	"github.com/promptpilot/ai-router/internal/validate"
)

// ErrConsumerGone reports that the stream consumer disconnected mid-request.
// There is no one left to answer, so the chain walk stops without further
// fallbacks and without a terminal event.
var ErrConsumerGone = errors.New("stream consumer disconnected")

// ConsumerGoneError wraps ErrConsumerGone with the attempts completed before
// the disconnect, so the decision log still gets the partial trail.
type ConsumerGoneError struct {
	Attempts []types.ExecutionAttempt
}

func (e *ConsumerGoneError) Error() string { return ErrConsumerGone.Error() }

func (e *ConsumerGoneError) Unwrap() error { return ErrConsumerGone }

// EmitFunc forwards one event to the consumer. Returning an error marks the
// consumer as gone; the orchestrator will not call emit again.
type EmitFunc func(types.StreamEvent) error

// ExecuteStream walks the fallback chain like Execute, but forwards output
// incrementally. The caller emits the initial routing event; this method
// emits delta, fallback and the terminal done/error events. A provider
// abandoned mid-stream yields a fallback event telling the consumer to
// discard the deltas received so far.
func (o *Orchestrator) ExecuteStream(ctx context.Context, rc *types.RoutingContext, emit EmitFunc) (*Result, error) {
	started := time.Now()
	var attempts []types.ExecutionAttempt

	for i, providerID := range rc.FallbackChain {
		attempt, text, consumerErr := o.attemptStream(ctx, rc, providerID, emit)
		if consumerErr != nil {
			return nil, &ConsumerGoneError{Attempts: attempts}
		}
		attempts = append(attempts, attempt)
		o.metrics.RecordAttempt(providerID, attempt.Succeeded)

		if attempt.Succeeded {
			result := &Result{
				Text:             text,
				Provider:         providerID,
				Model:            o.buildRequest(rc, providerID).Model,
				Attempts:         attempts,
				FallbackOccurred: i > 0,
			}
			done := types.StreamEvent{
				Type:       types.EventDone,
				Content:    text,
				Provider:   providerID,
				Model:      result.Model,
				DurationMs: time.Since(started).Milliseconds(),
			}
			if err := emit(done); err != nil {
				return nil, &ConsumerGoneError{Attempts: attempts}
			}
			return result, nil
		}

		o.logger.WithFields(logrus.Fields{
			"provider": providerID,
			"reason":   attempt.FailureReason,
		}).Warn("Provider stream failed, falling back")
		o.metrics.FallbacksTotal.WithLabelValues(string(attempt.FailureReason)).Inc()

		if i < len(rc.FallbackChain)-1 {
			fallback := types.StreamEvent{
				Type:   types.EventFallback,
				From:   providerID,
				Reason: attempt.FailureReason,
			}
			if err := emit(fallback); err != nil {
				return nil, &ConsumerGoneError{Attempts: attempts}
			}
		}
	}

	o.metrics.ExhaustionsTotal.Inc()
	if err := emit(types.StreamEvent{Type: types.EventError, Error: ErrAllProvidersExhausted.Error()}); err != nil {
		return nil, &ConsumerGoneError{Attempts: attempts}
	}
	return nil, &ExhaustedError{Attempts: attempts}
}

// attemptStream runs one provider to completion or failure. A non-nil
// consumer error aborts the whole walk; any provider-side failure is folded
// into the attempt record.
func (o *Orchestrator) attemptStream(ctx context.Context, rc *types.RoutingContext, providerID string, emit EmitFunc) (types.ExecutionAttempt, string, error) {
	attempt := types.ExecutionAttempt{ProviderID: providerID, StartedAt: time.Now().UTC()}

	adapter, err := o.resolve(providerID)
	if err != nil {
		attempt.FailureReason = types.FailureKeyMissing
		return attempt, "", nil
	}

	callCtx, cancel := context.WithTimeout(ctx, o.attemptTimeout)
	defer cancel()

	chunks, err := adapter.GenerateStream(callCtx, o.buildRequest(rc, providerID))
	if err != nil {
		attempt.DurationMs = time.Since(attempt.StartedAt).Milliseconds()
		attempt.FailureReason = failureReason(err)
		return attempt, "", nil
	}

	var buf strings.Builder
	for chunk := range chunks {
		if chunk.Err != nil {
			attempt.DurationMs = time.Since(attempt.StartedAt).Milliseconds()
			attempt.FailureReason = failureReason(chunk.Err)
			attempt.OutputPreview = preview(buf.String())
			// Cancel so the adapter's reader goroutine winds down before we
			// move to the next provider.
			cancel()
			return attempt, "", nil
		}

		buf.WriteString(chunk.Text)
		if err := emit(types.StreamEvent{Type: types.EventDelta, Content: chunk.Text}); err != nil {
			cancel()
			return attempt, "", ErrConsumerGone
		}
	}

	text := buf.String()
	attempt.DurationMs = time.Since(attempt.StartedAt).Milliseconds()
	attempt.OutputPreview = preview(text)

	if validate.IsMalformed(text, rc.RequiresStructuredOutput) {
		attempt.FailureReason = types.FailureMalformedOutput
		return attempt, "", nil
	}

	attempt.Succeeded = true
	return attempt, text, nil
}
