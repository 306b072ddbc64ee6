package server

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/goccy/go-json"
	"github.com/sirupsen/logrus"

	"github.com/promptpilot/ai-router/internal/orchestrator"
	"github.com/promptpilot/ai-router/internal/routing"
	"github.com/promptpilot/ai-router/internal/types"
)

// handleStream executes the fallback chain over SSE. The event contract:
// exactly one routing event first, then deltas, then one terminal done or
// error - unless the consumer disconnects, in which case the stream just
// stops (there is no one left to tell).
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request, requestID string, rc *types.RoutingContext, dec *routing.Decision, start time.Time) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		s.writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	emit := func(event types.StreamEvent) error {
		data, err := json.Marshal(event)
		if err != nil {
			return err
		}
		if _, err := fmt.Fprintf(w, "data: %s\n\n", data); err != nil {
			return err
		}
		flusher.Flush()
		return nil
	}

	// Routing event: decision shape minus confidence.
	info := routingInfo(rc, dec, false)
	routingEvent := types.StreamEvent{
		Type:          types.EventRouting,
		Routing:       &info,
		FallbackChain: rc.FallbackChain,
	}
	if err := emit(routingEvent); err != nil {
		s.logger.WithField("request_id", requestID).Debug("Consumer gone before routing event")
		return
	}

	result, err := s.orch.ExecuteStream(r.Context(), rc, emit)
	durationMs := time.Since(start).Milliseconds()

	switch {
	case err == nil:
		s.recordDecision(requestID, rc, dec, result.Attempts, true, durationMs)
	case errors.Is(err, orchestrator.ErrConsumerGone):
		var gone *orchestrator.ConsumerGoneError
		if errors.As(err, &gone) {
			s.recordDecision(requestID, rc, dec, gone.Attempts, false, durationMs)
		}
		s.logger.WithFields(logrus.Fields{
			"request_id":  requestID,
			"duration_ms": durationMs,
		}).Info("Stream consumer disconnected")
	default:
		var exhausted *orchestrator.ExhaustedError
		if errors.As(err, &exhausted) {
			s.recordDecision(requestID, rc, dec, exhausted.Attempts, false, durationMs)
		}
		s.logger.WithFields(logrus.Fields{
			"request_id": requestID,
			"chain":      rc.FallbackChain,
		}).Error("Streaming fallback chain exhausted")
	}
}
