package routing

import (
	"github.com/promptpilot/ai-router/internal/registry"
)

// Decision is the router's output for one request. It is created once,
// never mutated, and consumed by the orchestrator and the decision logger.
// Decisions reference models, never the other way around.
type Decision struct {
	// The selected model descriptor.
	Model registry.ModelDescriptor `json:"selectedModel"`

	// Human-readable one-line justification naming the rule that fired.
	// This is a contract, not cosmetics: tests assert on the rule prefix
	// and the decision logger audits it.
	Reason string `json:"reason"`

	// Confidence in [0,1].
	Confidence float64 `json:"confidence"`

	// Estimated cost in USD for this request on the selected model.
	CostEstimate float64 `json:"costEstimate"`
}

// Rule reason prefixes. The full Reason string is the prefix plus the
// selected model; the prefix identifies which precedence rule fired.
const (
	ReasonModelOverride    = "explicit model override"
	ReasonProviderOverride = "explicit provider override"
	ReasonCostSensitive    = "cost-sensitive low-complexity request"
	ReasonStructuredOutput = "structured output required"
	ReasonDeepReasoning    = "deep reasoning required"
	ReasonReasoningCeiling = "deep reasoning under cost ceiling"
	ReasonDefaultChat      = "general chat default"
)

// Per-rule confidence constants. Overrides are honored at a fixed high
// confidence regardless of extracted features.
const (
	confidenceOverride   = 0.95
	confidenceReasoning  = 0.9
	confidenceStructured = 0.85
	confidenceCost       = 0.8
	confidenceDefault    = 0.6
)
