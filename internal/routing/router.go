package routing

import (
	"errors"
	"fmt"
	"sort"

	"github.com/sirupsen/logrus"

	"github.com/promptpilot/ai-router/internal/registry"
	"github.com/promptpilot/ai-router/internal/types"
)

// ErrNoProviders is the terminal condition reported when nothing is
// configured. It is never retried and never swallowed.
var ErrNoProviders = errors.New("no providers available")

// Policy carries optional caller overrides. A model override wins over a
// provider override; both still get a fallback chain computed behind them.
type Policy struct {
	ModelOverride    string
	ProviderOverride string
}

// jsonReliableProviders lists provider families with an enforced structured
// output mode. Order is irrelevant; membership gates the structured-output
// rule.
var jsonReliableProviders = map[string]bool{
	"openai":     true,
	"openrouter": true,
}

// Router is the decision engine. It owns no network and no mutable state:
// the registry is read-only at request time and the configured provider set
// is fixed at construction.
type Router struct {
	registry   *registry.Registry
	configured []string
	logger     *logrus.Logger
}

// New builds a router over the given registry and the identifiers of the
// providers that were actually constructed (credentialed) at startup.
func New(reg *registry.Registry, configured []string, logger *logrus.Logger) *Router {
	names := make([]string, len(configured))
	copy(names, configured)
	return &Router{registry: reg, configured: names, logger: logger}
}

// Configured returns the configured provider identifiers.
func (r *Router) Configured() []string {
	out := make([]string, len(r.configured))
	copy(out, r.configured)
	return out
}

// Route selects the primary model for the routing context and fills in the
// context's provider hints and fallback chain. Routing itself cannot fail:
// every rule degrades to the default chat model. The only error is the
// terminal absence of any configured provider.
func (r *Router) Route(rc *types.RoutingContext, pol *Policy) (*Decision, error) {
	if len(r.configured) == 0 {
		return nil, ErrNoProviders
	}

	decision := r.decide(rc, pol)

	if !rc.ProviderOverride {
		rc.PrimaryProviderHint = decision.Model.Provider
	}
	rc.PrimaryModelHint = decision.Model.ID
	rc.FallbackChain = r.BuildFallbackChain(rc)

	r.logger.WithFields(logrus.Fields{
		"provider":   decision.Model.Provider,
		"model":      decision.Model.ID,
		"reason":     decision.Reason,
		"confidence": decision.Confidence,
		"chain":      rc.FallbackChain,
	}).Debug("Request routed")

	return decision, nil
}

func (r *Router) decide(rc *types.RoutingContext, pol *Policy) *Decision {
	// Rule 0: explicit overrides, honored at fixed confidence.
	if pol != nil && pol.ModelOverride != "" {
		if m, ok := r.registry.Get(pol.ModelOverride); ok {
			return r.decision(m, ReasonModelOverride, confidenceOverride, rc)
		}
		// Unknown model id: trust the caller, attach it to the override
		// provider or the first configured one.
		provider := pol.ProviderOverride
		if provider == "" {
			provider = r.configured[0]
		}
		m := registry.ModelDescriptor{ID: pol.ModelOverride, DisplayName: pol.ModelOverride, Provider: provider}
		return r.decision(m, ReasonModelOverride, confidenceOverride, rc)
	}

	if rc.ProviderOverride && rc.PrimaryProviderHint != "" {
		return r.decision(r.bestForProvider(rc.PrimaryProviderHint), ReasonProviderOverride, confidenceOverride, rc)
	}

	// Rule 1: cost-sensitive and simple goes to the cheapest fast tier.
	if rc.CostSensitivity == types.CostSensitivityHigh && rc.ComplexityScore < 0.4 &&
		!rc.RequiresReasoningDepth && !rc.RequiresStructuredOutput {
		if m, ok := r.firstConfigured(registry.TaskRequirements{Speed: 1.0, MaxCostTier: registry.CostTierLow}); ok {
			return r.decision(m, ReasonCostSensitive, confidenceCost, rc)
		}
	}

	// Rule 2: structured output goes to a family with an enforced JSON mode.
	if rc.RequiresStructuredOutput {
		if m, ok := r.firstConfiguredWhere(
			registry.TaskRequirements{Reasoning: 0.4, Coding: 0.3, Speed: 0.3},
			func(m registry.ModelDescriptor) bool { return jsonReliableProviders[m.Provider] },
		); ok {
			return r.decision(m, ReasonStructuredOutput, confidenceStructured, rc)
		}
		// No JSON-reliable provider configured: best effort, the output
		// validator still enforces the contract downstream.
		if m, ok := r.firstConfigured(registry.TaskRequirements{Reasoning: 0.4, Coding: 0.3, Speed: 0.3}); ok {
			return r.decision(m, ReasonStructuredOutput, confidenceStructured, rc)
		}
	}

	// Rule 3: reasoning depth or multi-step picks the highest-reasoning
	// model regardless of cost, unless cost sensitivity is high, which
	// degrades to the best model under a cost ceiling.
	if rc.RequiresReasoningDepth || rc.HasMultiStep {
		req := registry.TaskRequirements{Reasoning: 1.0}
		reason := ReasonDeepReasoning
		confidence := confidenceReasoning
		if rc.CostSensitivity == types.CostSensitivityHigh {
			req.MaxCostTier = registry.CostTierMedium
			reason = ReasonReasoningCeiling
		}
		if m, ok := r.firstConfigured(req); ok {
			return r.decision(m, reason, confidence, rc)
		}
	}

	// Default: balanced chat model.
	if m, ok := r.firstConfigured(registry.TaskRequirements{Speed: 0.6, Reasoning: 0.4, MaxCostTier: registry.CostTierMedium}); ok {
		return r.decision(m, ReasonDefaultChat, confidenceDefault, rc)
	}

	// The registry has no entry for any configured provider; degrade to the
	// first configured provider's adapter default.
	m := registry.ModelDescriptor{Provider: r.configured[0]}
	return r.decision(m, ReasonDefaultChat, confidenceDefault, rc)
}

func (r *Router) decision(m registry.ModelDescriptor, reason string, confidence float64, rc *types.RoutingContext) *Decision {
	name := m.DisplayName
	if name == "" {
		name = m.ID
	}
	if name == "" {
		name = m.Provider + " default"
	}
	return &Decision{
		Model:        m,
		Reason:       fmt.Sprintf("%s: selected %s", reason, name),
		Confidence:   confidence,
		CostEstimate: r.estimateCost(m, rc),
	}
}

// estimateCost scales the extractor's raw estimate by the selected model's
// cost tier.
func (r *Router) estimateCost(m registry.ModelDescriptor, rc *types.RoutingContext) float64 {
	multiplier := 1.0
	switch m.CostTier {
	case registry.CostTierFree:
		multiplier = 0
	case registry.CostTierLow:
		multiplier = 0.4
	case registry.CostTierMedium:
		multiplier = 1.0
	case registry.CostTierHigh:
		multiplier = 2.5
	}
	return rc.EstimatedCostUSD * multiplier
}

// firstConfigured returns the highest-ranked model whose provider is
// configured.
func (r *Router) firstConfigured(req registry.TaskRequirements) (registry.ModelDescriptor, bool) {
	return r.firstConfiguredWhere(req, nil)
}

func (r *Router) firstConfiguredWhere(req registry.TaskRequirements, keep func(registry.ModelDescriptor) bool) (registry.ModelDescriptor, bool) {
	configured := make(map[string]bool, len(r.configured))
	for _, p := range r.configured {
		configured[p] = true
	}
	for _, m := range r.registry.ByTask(req) {
		if !configured[m.Provider] {
			continue
		}
		if keep != nil && !keep(m) {
			continue
		}
		return m, true
	}
	return registry.ModelDescriptor{}, false
}

// bestForProvider picks the provider's strongest model, or a bare descriptor
// when the registry knows nothing about it (the adapter default applies).
func (r *Router) bestForProvider(provider string) registry.ModelDescriptor {
	models := r.registry.ByProvider(provider)
	if len(models) == 0 {
		return registry.ModelDescriptor{Provider: provider}
	}
	best := models[0]
	bestScore := -1.0
	for _, m := range models {
		score := float64(m.Capabilities.Reasoning+m.Capabilities.Coding+m.Capabilities.Speed) + m.Reliability
		if score > bestScore {
			best, bestScore = m, score
		}
	}
	return best
}

// BuildFallbackChain orders the providers to attempt: the primary hint
// first, then every other configured provider by descending registry
// reliability, deduplicated. Length is at least 1 whenever anything is
// configured and at most the number of configured providers (plus an
// unconfigured override head, which the orchestrator will skip as
// key_missing).
func (r *Router) BuildFallbackChain(rc *types.RoutingContext) []string {
	var chain []string
	seen := make(map[string]bool)

	if rc.PrimaryProviderHint != "" {
		chain = append(chain, rc.PrimaryProviderHint)
		seen[rc.PrimaryProviderHint] = true
	}

	rest := make([]string, 0, len(r.configured))
	for _, p := range r.configured {
		if !seen[p] {
			rest = append(rest, p)
		}
	}
	sort.SliceStable(rest, func(i, j int) bool {
		ri := r.registry.ProviderReliability(rest[i])
		rj := r.registry.ProviderReliability(rest[j])
		if ri != rj {
			return ri > rj
		}
		return rest[i] < rest[j]
	})

	chain = append(chain, rest...)

	if len(chain) == 0 && len(r.configured) > 0 {
		chain = append(chain, r.configured[0])
	}
	return chain
}
