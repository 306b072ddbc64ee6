package types

// RouteRequest is the inspect-or-execute request body accepted by the
// routing endpoint.
type RouteRequest struct {
	Message  string `json:"message"`
	Mode     string `json:"mode,omitempty"`
	Provider string `json:"provider,omitempty"`
	Execute  *bool  `json:"execute,omitempty"` // default true
	Stream   bool   `json:"stream,omitempty"`
}

// ShouldExecute reports whether the caller asked for execution rather than
// an inspect-only routing decision.
func (r *RouteRequest) ShouldExecute() bool {
	return r.Execute == nil || *r.Execute
}

// RoutingInfo is the wire shape of a routing decision. Confidence is omitted
// on streaming routing events.
type RoutingInfo struct {
	Provider                 string          `json:"provider"`
	Model                    string          `json:"model"`
	Reason                   string          `json:"reason"`
	RequiresReasoningDepth   bool            `json:"requiresReasoningDepth"`
	RequiresJSON             bool            `json:"requiresJson"`
	RequiresValidation       bool            `json:"requiresValidation"`
	HighRisk                 bool            `json:"highRisk"`
	CostSensitivity          CostSensitivity `json:"costSensitivity"`
	ComplexityScore          float64         `json:"complexityScore"`
	WordCount                int             `json:"wordCount"`
	IsBulkTask               bool            `json:"isBulkTask"`
	HasMultiStep             bool            `json:"hasMultiStep"`
	EstimatedCostUSD         float64         `json:"estimatedCostUsd"`
	Confidence               *float64        `json:"confidence,omitempty"`
}

// InspectResponse is returned when execute=false.
type InspectResponse struct {
	Success       bool        `json:"success"`
	Routing       RoutingInfo `json:"routing"`
	FallbackChain []string    `json:"fallbackChain"`
	DurationMs    int64       `json:"durationMs"`
}

// ExecuteResponse is returned for buffered execution.
type ExecuteResponse struct {
	Success    bool        `json:"success"`
	Response   string      `json:"response"`
	Provider   string      `json:"provider"`
	Routing    RoutingInfo `json:"routing"`
	DurationMs int64       `json:"durationMs"`
}

// ErrorResponse is the structured failure shape. A failed request is always
// reported explicitly, never as an empty success.
type ErrorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}
