package features

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/promptpilot/ai-router/internal/types"
)

func TestAnalyze_BitcoinPriceQuestion(t *testing.T) {
	e := New(DefaultConfig())

	rc := e.Analyze("What's the price of bitcoin?", types.ModeSingle, "")

	assert.Equal(t, types.IntentCrypto, rc.Intent)
	assert.False(t, rc.RequiresReasoningDepth)
	assert.Less(t, rc.ComplexityScore, 0.3)
	assert.Equal(t, 5, rc.WordCount)
}

func TestAnalyze_LongImplementAndDebugPrompt(t *testing.T) {
	e := New(DefaultConfig())

	// 400 words asking to implement and debug a function.
	prompt := "Please implement and debug the following function. " +
		strings.Repeat("The code keeps failing on edge cases and needs careful work. ", 40)

	rc := e.Analyze(prompt, types.ModeSingle, "")

	assert.Equal(t, types.IntentCode, rc.Intent)
	assert.True(t, rc.RequiresReasoningDepth)
	assert.Greater(t, rc.ComplexityScore, 0.55)
}

func TestAnalyze_IsDeterministic(t *testing.T) {
	e := New(DefaultConfig())

	prompt := "Summarize this report and extract the key figures as JSON."
	first := e.Analyze(prompt, types.ModeSingle, "")
	second := e.Analyze(prompt, types.ModeSingle, "")

	assert.Equal(t, first, second)
}

func TestAnalyze_NeverPanicsOnDegenerateInput(t *testing.T) {
	e := New(DefaultConfig())

	for _, prompt := range []string{"", "   ", "????", strings.Repeat("a", 100000)} {
		rc := e.Analyze(prompt, types.ModeSingle, "")
		assert.GreaterOrEqual(t, rc.ComplexityScore, 0.0)
		assert.LessOrEqual(t, rc.ComplexityScore, 1.0)
	}
}

func TestAnalyze_EmptyInputIsGeneralChat(t *testing.T) {
	e := New(DefaultConfig())

	rc := e.Analyze("", types.ModeSingle, "")
	assert.Equal(t, types.IntentGeneralChat, rc.Intent)
	assert.Zero(t, rc.ComplexityScore)
}

func TestClassify_PriorityOrderBreaksOverlaps(t *testing.T) {
	e := New(DefaultConfig())

	// Mentions both a currency amount (finance) and a cryptocurrency name;
	// crypto sits above finance in the priority list.
	intent := e.Classify("Is $500 enough to start buying ethereum?")
	assert.Equal(t, types.IntentCrypto, intent)
}

func TestClassify_Families(t *testing.T) {
	e := New(DefaultConfig())

	cases := map[string]types.Intent{
		"Review this contract clause for liability issues": types.IntentLegal,
		"What are the symptoms of the flu?":                 types.IntentMedical,
		"Write a poem about autumn":                         types.IntentCreative,
		"Translate this paragraph in spanish":               types.IntentTranslation,
		"Give me a tl;dr of this article":                   types.IntentSummarization,
		"Extract the fields from this invoice":              types.IntentDataExtraction,
		"How was your day?":                                 types.IntentGeneralChat,
	}

	for prompt, want := range cases {
		assert.Equal(t, want, e.Classify(prompt), "prompt: %s", prompt)
	}
}

func TestComplexity_MonotonicInWordCount(t *testing.T) {
	e := New(DefaultConfig())

	prev := -1.0
	for _, n := range []int{1, 10, 50, 100, 200, 400, 800} {
		prompt := strings.Repeat("word ", n)
		rc := e.Analyze(prompt, types.ModeSingle, "")
		require.GreaterOrEqual(t, rc.ComplexityScore, prev, "score must not decrease at %d words", n)
		prev = rc.ComplexityScore
	}
}

func TestComplexity_SaturatesAtOne(t *testing.T) {
	e := New(DefaultConfig())

	prompt := strings.Repeat("implement debug build create develop fix? ", 500)
	rc := e.Analyze(prompt, types.ModeSingle, "")
	assert.LessOrEqual(t, rc.ComplexityScore, 1.0)
	assert.Greater(t, rc.ComplexityScore, 0.9)
}

func TestAnalyze_ModeInfluence(t *testing.T) {
	e := New(DefaultConfig())

	roadmap := e.Analyze("Ship the new onboarding flow", types.ModeRoadmap, "")
	assert.True(t, roadmap.HasMultiStep)

	council := e.Analyze("Ship the new onboarding flow", types.ModeCouncil, "")
	assert.True(t, council.RequiresReasoningDepth)
	assert.True(t, council.RequiresValidation)
}

func TestAnalyze_StructuredOutputAndRisk(t *testing.T) {
	e := New(DefaultConfig())

	rc := e.Analyze("Return the answer as JSON with fields name and age", types.ModeSingle, "")
	assert.True(t, rc.RequiresStructuredOutput)

	risky := e.Analyze("What medication dosage should I take?", types.ModeSingle, "")
	assert.True(t, risky.HighRisk)
	assert.True(t, risky.RequiresValidation)
}

func TestAnalyze_ProviderOverrideBecomesHint(t *testing.T) {
	e := New(DefaultConfig())

	rc := e.Analyze("hello", types.ModeSingle, "anthropic")
	assert.True(t, rc.ProviderOverride)
	assert.Equal(t, "anthropic", rc.PrimaryProviderHint)
}

func TestAnalyze_BulkAndCostSensitivity(t *testing.T) {
	e := New(DefaultConfig())

	bulk := e.Analyze("Process each of these 1000 records", types.ModeSingle, "")
	assert.True(t, bulk.IsBulkTask)
	assert.Equal(t, types.CostSensitivityHigh, bulk.CostSensitivity)

	super := e.Analyze("Design a distributed cache", types.ModeSuper, "")
	assert.Equal(t, types.CostSensitivityLow, super.CostSensitivity)
}
