package types

import "time"

// Mode selects the execution profile requested by the caller.
type Mode string

const (
	ModeSingle   Mode = "single"
	ModeSuper    Mode = "super"
	ModeAdvanced Mode = "advanced"
	ModeRoadmap  Mode = "roadmap"
	ModeCouncil  Mode = "council"
)

// ParseMode maps a request string onto a known mode. Unknown or empty
// values fall back to single-shot execution.
func ParseMode(s string) Mode {
	switch Mode(s) {
	case ModeSuper, ModeAdvanced, ModeRoadmap, ModeCouncil:
		return Mode(s)
	default:
		return ModeSingle
	}
}

// CostSensitivity expresses how much the caller cares about spend.
type CostSensitivity string

const (
	CostSensitivityLow    CostSensitivity = "low"
	CostSensitivityMedium CostSensitivity = "medium"
	CostSensitivityHigh   CostSensitivity = "high"
)

// Intent is the primary classification of a prompt. Exactly one intent is
// assigned per request; overlaps are resolved by the classifier's fixed
// priority order.
type Intent string

const (
	IntentCrypto         Intent = "crypto"
	IntentFinance        Intent = "finance"
	IntentCode           Intent = "code"
	IntentLegal          Intent = "legal"
	IntentMedical        Intent = "medical"
	IntentCreative       Intent = "creative"
	IntentTranslation    Intent = "translation"
	IntentSummarization  Intent = "summarization"
	IntentDataExtraction Intent = "data_extraction"
	IntentGeneralChat    Intent = "general_chat"
)

// RoutingContext is the structured feature set extracted from one request.
// It is built once per request and not modified after the router has filled
// in the provider hints and fallback chain.
type RoutingContext struct {
	Prompt string `json:"-"`
	Mode   Mode   `json:"mode"`
	Intent Intent `json:"intent"`

	WordCount                int             `json:"wordCount"`
	RequiresReasoningDepth   bool            `json:"requiresReasoningDepth"`
	RequiresStructuredOutput bool            `json:"requiresJson"`
	RequiresValidation       bool            `json:"requiresValidation"`
	HighRisk                 bool            `json:"highRisk"`
	CostSensitivity          CostSensitivity `json:"costSensitivity"`
	ComplexityScore          float64         `json:"complexityScore"`
	IsBulkTask               bool            `json:"isBulkTask"`
	HasMultiStep             bool            `json:"hasMultiStep"`
	EstimatedCostUSD         float64         `json:"estimatedCostUsd"`

	// Filled in by the router. FallbackChain[0] matches PrimaryProviderHint
	// unless the caller supplied an explicit override.
	PrimaryProviderHint string   `json:"primaryProviderHint,omitempty"`
	PrimaryModelHint    string   `json:"primaryModelHint,omitempty"`
	ProviderOverride    bool     `json:"providerOverride,omitempty"`
	FallbackChain       []string `json:"fallbackChain,omitempty"`
}

// FailureReason classifies why a single provider attempt failed.
type FailureReason string

const (
	FailureKeyMissing      FailureReason = "key_missing"
	FailureTransportError  FailureReason = "transport_error"
	FailureMalformedOutput FailureReason = "malformed_output"
	FailureProviderError   FailureReason = "provider_error"
)

// ExecutionAttempt records one provider tried while walking the fallback
// chain. Attempts are owned by the orchestrator for the lifetime of a single
// request and summarized into the decision log afterwards.
type ExecutionAttempt struct {
	ProviderID    string        `json:"providerId"`
	StartedAt     time.Time     `json:"startedAt"`
	Succeeded     bool          `json:"succeeded"`
	FailureReason FailureReason `json:"failureReason,omitempty"`
	DurationMs    int64         `json:"durationMs"`
	OutputPreview string        `json:"outputPreview,omitempty"`
}
