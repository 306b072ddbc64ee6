package server

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/promptpilot/ai-router/internal/decisionlog"
	"github.com/promptpilot/ai-router/internal/orchestrator"
	"github.com/promptpilot/ai-router/internal/routing"
	"github.com/promptpilot/ai-router/internal/types"
)

// handleRoute is the single inspect-or-execute endpoint. execute=false
// returns the routing decision without touching any provider; otherwise the
// fallback chain is executed, buffered or streamed.
func (s *Server) handleRoute(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	requestID := uuid.NewString()

	var req types.RouteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, fmt.Sprintf("Invalid JSON: %v", err))
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		s.writeError(w, http.StatusBadRequest, "message is required")
		return
	}

	if !req.ShouldExecute() {
		s.handleInspect(w, &req, start)
		return
	}

	rc, dec, err := s.route(&req)
	if err != nil {
		s.writeError(w, http.StatusServiceUnavailable, "No providers available")
		return
	}
	s.metrics.DecisionsTotal.WithLabelValues(dec.Model.Provider).Inc()

	if req.Stream {
		s.handleStream(w, r, requestID, rc, dec, start)
		return
	}

	result, err := s.orch.Execute(r.Context(), rc)
	durationMs := time.Since(start).Milliseconds()

	if err != nil {
		var exhausted *orchestrator.ExhaustedError
		if errors.As(err, &exhausted) {
			s.recordDecision(requestID, rc, dec, exhausted.Attempts, false, durationMs)
		}
		s.logger.WithFields(logrus.Fields{
			"request_id": requestID,
			"chain":      rc.FallbackChain,
		}).Error("Fallback chain exhausted")
		s.writeJSON(w, http.StatusBadGateway, types.ErrorResponse{Success: false, Error: "All providers exhausted"})
		return
	}

	s.recordDecision(requestID, rc, dec, result.Attempts, true, durationMs)
	s.writeJSON(w, http.StatusOK, types.ExecuteResponse{
		Success:    true,
		Response:   result.Text,
		Provider:   result.Provider,
		Routing:    routingInfo(rc, dec, true),
		DurationMs: durationMs,
	})
}

func (s *Server) handleInspect(w http.ResponseWriter, req *types.RouteRequest, start time.Time) {
	key := inspectKey(req, s.registry.Generation())
	if cached, ok := s.inspectCache.Get(key); ok {
		resp := cached.(types.InspectResponse)
		resp.DurationMs = time.Since(start).Milliseconds()
		s.writeJSON(w, http.StatusOK, resp)
		return
	}

	rc, dec, err := s.route(req)
	if err != nil {
		s.writeError(w, http.StatusServiceUnavailable, "No providers available")
		return
	}
	s.metrics.DecisionsTotal.WithLabelValues(dec.Model.Provider).Inc()
	s.recordDecision(uuid.NewString(), rc, dec, nil, true, time.Since(start).Milliseconds())

	resp := types.InspectResponse{
		Success:       true,
		Routing:       routingInfo(rc, dec, true),
		FallbackChain: rc.FallbackChain,
		DurationMs:    time.Since(start).Milliseconds(),
	}
	s.inspectCache.SetDefault(key, resp)
	s.writeJSON(w, http.StatusOK, resp)
}

// route runs feature extraction and the decision engine for one request.
func (s *Server) route(req *types.RouteRequest) (*types.RoutingContext, *routing.Decision, error) {
	rc := s.extractor.Analyze(req.Message, types.ParseMode(req.Mode), req.Provider)
	dec, err := s.router.Route(&rc, nil)
	if err != nil {
		return nil, nil, err
	}
	return &rc, dec, nil
}

// handleStatus serves aggregate counters. Read-only, no side effects.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	stats := s.decisions.Stats()
	s.writeJSON(w, http.StatusOK, map[string]any{
		"decisionsLogged":     stats.DecisionsLogged,
		"entriesDropped":      stats.EntriesDropped,
		"providers":           stats.Providers,
		"configuredProviders": s.router.Configured(),
		"registryGeneration":  s.registry.Generation(),
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]any{
		"status":    "healthy",
		"providers": s.router.Configured(),
		"timestamp": time.Now().Unix(),
	})
}

func (s *Server) recordDecision(requestID string, rc *types.RoutingContext, dec *routing.Decision, attempts []types.ExecutionAttempt, succeeded bool, durationMs int64) {
	entry := &decisionlog.Entry{
		RequestID:        requestID,
		Timestamp:        time.Now().UTC(),
		Mode:             rc.Mode,
		Intent:           rc.Intent,
		ComplexityScore:  rc.ComplexityScore,
		Provider:         dec.Model.Provider,
		Model:            dec.Model.ID,
		Reason:           dec.Reason,
		Confidence:       dec.Confidence,
		EstimatedCostUSD: dec.CostEstimate,
		FallbackChain:    rc.FallbackChain,
		Attempts:         attempts,
		Succeeded:        succeeded,
		DurationMs:       durationMs,
	}
	if !succeeded && len(attempts) > 0 {
		entry.FailureReason = attempts[len(attempts)-1].FailureReason
	}
	s.decisions.Record(entry)
}

func routingInfo(rc *types.RoutingContext, dec *routing.Decision, withConfidence bool) types.RoutingInfo {
	info := types.RoutingInfo{
		Provider:               dec.Model.Provider,
		Model:                  dec.Model.ID,
		Reason:                 dec.Reason,
		RequiresReasoningDepth: rc.RequiresReasoningDepth,
		RequiresJSON:           rc.RequiresStructuredOutput,
		RequiresValidation:     rc.RequiresValidation,
		HighRisk:               rc.HighRisk,
		CostSensitivity:        rc.CostSensitivity,
		ComplexityScore:        rc.ComplexityScore,
		WordCount:              rc.WordCount,
		IsBulkTask:             rc.IsBulkTask,
		HasMultiStep:           rc.HasMultiStep,
		EstimatedCostUSD:       dec.CostEstimate,
	}
	if withConfidence {
		confidence := dec.Confidence
		info.Confidence = &confidence
	}
	return info
}

func inspectKey(req *types.RouteRequest, generation uint64) string {
	return fmt.Sprintf("%s|%s|%s|%d", req.Message, req.Mode, req.Provider, generation)
}
