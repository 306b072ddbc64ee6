package features

import (
	"strings"

	"github.com/promptpilot/ai-router/internal/types"
)

// Config holds the tunable tables and thresholds behind feature extraction.
// The exact values are configuration, not contract; the extractor only
// guarantees monotonicity of the complexity score and the fixed intent
// priority order.
type Config struct {
	ReasoningKeywords  []string `yaml:"reasoning_keywords"`
	StructuredKeywords []string `yaml:"structured_keywords"`
	ValidationKeywords []string `yaml:"validation_keywords"`
	BulkKeywords       []string `yaml:"bulk_keywords"`
	MultiStepKeywords  []string `yaml:"multi_step_keywords"`
	CostKeywords       []string `yaml:"cost_keywords"`
	BuildKeywords      []string `yaml:"build_keywords"`

	// Complexity shape. WordCountSaturation is the word count at which the
	// length component alone reaches its maximum contribution.
	WordCountSaturation  int     `yaml:"word_count_saturation"`
	ReasoningThreshold   float64 `yaml:"reasoning_threshold"`
	HighComplexityFloor  float64 `yaml:"high_complexity_floor"`
	CostPer1KTokensCheap float64 `yaml:"cost_per_1k_tokens_cheap"`
	CostPer1KTokensDeep  float64 `yaml:"cost_per_1k_tokens_deep"`
}

// DefaultConfig returns the shipped keyword tables and thresholds.
func DefaultConfig() Config {
	return Config{
		ReasoningKeywords: []string{
			"why", "explain", "analyze", "analyse", "compare", "evaluate",
			"prove", "reason", "architecture", "design", "trade-off",
			"tradeoff", "step by step",
		},
		StructuredKeywords: []string{
			"json", "csv", "yaml", "xml", "schema", "structured",
			"as a table", "key-value",
		},
		ValidationKeywords: []string{
			"verify", "validate", "double-check", "fact-check", "accurate",
		},
		BulkKeywords: []string{
			"all of", "each of", "every", "batch", "bulk", "for each",
			"list of", "100", "1000",
		},
		MultiStepKeywords: []string{
			"step 1", "first,", "then", "after that", "finally", "roadmap",
			"plan", "phases", "milestones", "pipeline",
		},
		CostKeywords: []string{
			"cheap", "cheapest", "budget", "low cost", "free tier",
			"as fast as possible",
		},
		BuildKeywords: []string{
			"build", "implement", "debug", "create", "develop", "write a",
			"fix", "refactor", "optimize", "optimise",
		},
		WordCountSaturation:  400,
		ReasoningThreshold:   0.55,
		HighComplexityFloor:  0.35,
		CostPer1KTokensCheap: 0.0006,
		CostPer1KTokensDeep:  0.015,
	}
}

// Extractor turns raw request text plus a mode into a routing context. It is
// pure: no I/O, deterministic for a given config, and it never fails --
// unrecognized input degrades to a general-chat classification.
type Extractor struct {
	cfg   Config
	rules []intentRule
}

// New builds an extractor. Zero-valued config fields fall back to defaults so
// partial overrides from the config file stay safe.
func New(cfg Config) *Extractor {
	def := DefaultConfig()
	if len(cfg.ReasoningKeywords) == 0 {
		cfg.ReasoningKeywords = def.ReasoningKeywords
	}
	if len(cfg.StructuredKeywords) == 0 {
		cfg.StructuredKeywords = def.StructuredKeywords
	}
	if len(cfg.ValidationKeywords) == 0 {
		cfg.ValidationKeywords = def.ValidationKeywords
	}
	if len(cfg.BulkKeywords) == 0 {
		cfg.BulkKeywords = def.BulkKeywords
	}
	if len(cfg.MultiStepKeywords) == 0 {
		cfg.MultiStepKeywords = def.MultiStepKeywords
	}
	if len(cfg.CostKeywords) == 0 {
		cfg.CostKeywords = def.CostKeywords
	}
	if len(cfg.BuildKeywords) == 0 {
		cfg.BuildKeywords = def.BuildKeywords
	}
	if cfg.WordCountSaturation <= 0 {
		cfg.WordCountSaturation = def.WordCountSaturation
	}
	if cfg.ReasoningThreshold <= 0 {
		cfg.ReasoningThreshold = def.ReasoningThreshold
	}
	if cfg.HighComplexityFloor <= 0 {
		cfg.HighComplexityFloor = def.HighComplexityFloor
	}
	if cfg.CostPer1KTokensCheap <= 0 {
		cfg.CostPer1KTokensCheap = def.CostPer1KTokensCheap
	}
	if cfg.CostPer1KTokensDeep <= 0 {
		cfg.CostPer1KTokensDeep = def.CostPer1KTokensDeep
	}

	return &Extractor{cfg: cfg, rules: defaultIntentRules()}
}

// Analyze extracts the routing context for one request. The provider
// override, when present, becomes the primary provider hint and is marked as
// an explicit override so the router honors it as chain head.
func (e *Extractor) Analyze(prompt string, mode types.Mode, providerOverride string) types.RoutingContext {
	lower := strings.ToLower(prompt)
	words := strings.Fields(prompt)
	intent := e.Classify(prompt)

	rc := types.RoutingContext{
		Prompt:    prompt,
		Mode:      mode,
		Intent:    intent,
		WordCount: len(words),
	}

	rc.ComplexityScore = e.complexity(lower, len(words))

	rc.RequiresStructuredOutput = containsAny(lower, e.cfg.StructuredKeywords) ||
		intent == types.IntentDataExtraction

	rc.HasMultiStep = containsAny(lower, e.cfg.MultiStepKeywords) ||
		mode == types.ModeRoadmap

	rc.IsBulkTask = containsAny(lower, e.cfg.BulkKeywords)

	rc.HighRisk = intent == types.IntentLegal ||
		intent == types.IntentMedical ||
		intent == types.IntentFinance

	rc.RequiresReasoningDepth = rc.ComplexityScore >= e.cfg.ReasoningThreshold ||
		containsAny(lower, e.cfg.ReasoningKeywords) && containsAny(lower, e.cfg.BuildKeywords) ||
		mode == types.ModeCouncil ||
		mode == types.ModeAdvanced

	rc.RequiresValidation = rc.HighRisk ||
		mode == types.ModeCouncil ||
		containsAny(lower, e.cfg.ValidationKeywords)

	rc.CostSensitivity = e.costSensitivity(lower, rc)

	rc.EstimatedCostUSD = e.estimateCost(rc)

	if providerOverride != "" {
		rc.PrimaryProviderHint = providerOverride
		rc.ProviderOverride = true
	}

	return rc
}

// complexity is a monotonic function of word count, question-mark density,
// and presence of build-class keywords, saturating at 1.0.
func (e *Extractor) complexity(lower string, wordCount int) float64 {
	lengthPart := float64(wordCount) / float64(e.cfg.WordCountSaturation)
	if lengthPart > 1 {
		lengthPart = 1
	}

	questions := strings.Count(lower, "?")
	questionPart := 0.0
	if wordCount > 0 {
		questionPart = float64(questions) / float64(wordCount) * 4
		if questionPart > 1 {
			questionPart = 1
		}
	}

	buildPart := 0.0
	for _, kw := range e.cfg.BuildKeywords {
		if strings.Contains(lower, kw) {
			buildPart += 0.2
		}
	}
	if buildPart > 1 {
		buildPart = 1
	}

	score := 0.5*lengthPart + 0.15*questionPart + 0.35*buildPart
	if score > 1 {
		score = 1
	}
	return score
}

func (e *Extractor) costSensitivity(lower string, rc types.RoutingContext) types.CostSensitivity {
	if containsAny(lower, e.cfg.CostKeywords) || rc.IsBulkTask {
		return types.CostSensitivityHigh
	}
	if rc.Mode == types.ModeSuper || rc.Mode == types.ModeAdvanced || rc.Mode == types.ModeCouncil {
		return types.CostSensitivityLow
	}
	return types.CostSensitivityMedium
}

// estimateCost is a rough pre-routing estimate: token count approximated from
// words, priced by whether the request will land on a deep or a cheap model.
func (e *Extractor) estimateCost(rc types.RoutingContext) float64 {
	tokens := float64(rc.WordCount) * 4.0 / 3.0
	// Assume output roughly matches input for estimation purposes.
	tokens *= 2

	rate := e.cfg.CostPer1KTokensCheap
	if rc.RequiresReasoningDepth || rc.ComplexityScore >= e.cfg.HighComplexityFloor {
		rate = e.cfg.CostPer1KTokensDeep
	}
	return tokens / 1000 * rate
}

func containsAny(haystack string, needles []string) bool {
	for _, n := range needles {
		if strings.Contains(haystack, n) {
			return true
		}
	}
	return false
}
