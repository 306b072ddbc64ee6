package orchestrator

import (
	"context"
	"errors"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/promptpilot/ai-router/internal/keyring"
	"github.com/promptpilot/ai-router/internal/metrics"
	"github.com/promptpilot/ai-router/internal/providers"
	"github.com/promptpilot/ai-router/internal/providers/mock"
	"github.com/promptpilot/ai-router/internal/types"
)

func testLogger() *logrus.Logger {
	l := logrus.New()
	l.SetLevel(logrus.FatalLevel)
	return l
}

func newOrchestrator(adapters map[string]providers.Provider, keys keyring.Keyring) *Orchestrator {
	return New(adapters, keys, metrics.New(), testLogger())
}

func chatContext(chain ...string) *types.RoutingContext {
	return &types.RoutingContext{
		Prompt:              "hello",
		Mode:                types.ModeSingle,
		Intent:              types.IntentGeneralChat,
		PrimaryProviderHint: chain[0],
		PrimaryModelHint:    "primary-model",
		FallbackChain:       chain,
	}
}

func jsonContext(chain ...string) *types.RoutingContext {
	rc := chatContext(chain...)
	rc.RequiresStructuredOutput = true
	return rc
}

func generateText(text string) func(context.Context, *providers.Request) (*providers.Response, error) {
	return func(_ context.Context, req *providers.Request) (*providers.Response, error) {
		return &providers.Response{Text: text, Model: req.Model}, nil
	}
}

func generateErr(err error) func(context.Context, *providers.Request) (*providers.Response, error) {
	return func(context.Context, *providers.Request) (*providers.Response, error) {
		return nil, err
	}
}

func TestExecute_PrimarySucceeds(t *testing.T) {
	primary := &mock.Provider{GenerateFn: generateText("the answer")}
	secondary := &mock.Provider{}
	o := newOrchestrator(map[string]providers.Provider{"openai": primary, "anthropic": secondary}, nil)

	res, err := o.Execute(context.Background(), chatContext("openai", "anthropic"))
	require.NoError(t, err)

	assert.Equal(t, "the answer", res.Text)
	assert.Equal(t, "openai", res.Provider)
	assert.False(t, res.FallbackOccurred)
	require.Len(t, res.Attempts, 1)
	assert.True(t, res.Attempts[0].Succeeded)
	assert.Equal(t, 0, secondary.Calls, "fallback provider must not be touched")
}

func TestExecute_ModelHintOnlyForPrimary(t *testing.T) {
	var models []string
	record := func(_ context.Context, req *providers.Request) (*providers.Response, error) {
		models = append(models, req.Model)
		return nil, providers.NewProviderError("x", errors.New("boom"))
	}
	o := newOrchestrator(map[string]providers.Provider{
		"openai":    &mock.Provider{GenerateFn: record},
		"anthropic": &mock.Provider{GenerateFn: record},
	}, nil)

	_, err := o.Execute(context.Background(), chatContext("openai", "anthropic"))
	require.Error(t, err)
	assert.Equal(t, []string{"primary-model", ""}, models)
}

func TestExecute_TransportErrorFallsBack(t *testing.T) {
	o := newOrchestrator(map[string]providers.Provider{
		"openai":    &mock.Provider{GenerateFn: generateErr(providers.NewTransportError("openai", errors.New("dial tcp: refused")))},
		"anthropic": &mock.Provider{GenerateFn: generateText("backup answer")},
	}, nil)

	res, err := o.Execute(context.Background(), chatContext("openai", "anthropic"))
	require.NoError(t, err)

	assert.Equal(t, "anthropic", res.Provider)
	assert.True(t, res.FallbackOccurred)
	require.Len(t, res.Attempts, 2)
	assert.Equal(t, types.FailureTransportError, res.Attempts[0].FailureReason)
	assert.True(t, res.Attempts[1].Succeeded)
}

func TestExecute_MissingAdapterSkippedAsKeyMissing(t *testing.T) {
	o := newOrchestrator(map[string]providers.Provider{
		"anthropic": &mock.Provider{GenerateFn: generateText("still here")},
	}, nil)

	res, err := o.Execute(context.Background(), chatContext("openai", "anthropic"))
	require.NoError(t, err)

	assert.Equal(t, "anthropic", res.Provider)
	require.Len(t, res.Attempts, 2)
	assert.Equal(t, types.FailureKeyMissing, res.Attempts[0].FailureReason)
}

func TestExecute_KeyringRevocationSkips(t *testing.T) {
	keys := keyring.Static{"anthropic": "sk-ant"}
	o := newOrchestrator(map[string]providers.Provider{
		"openai":    &mock.Provider{GenerateFn: generateText("never called")},
		"anthropic": &mock.Provider{GenerateFn: generateText("backup")},
	}, keys)

	res, err := o.Execute(context.Background(), chatContext("openai", "anthropic"))
	require.NoError(t, err)

	assert.Equal(t, "anthropic", res.Provider)
	assert.Equal(t, types.FailureKeyMissing, res.Attempts[0].FailureReason)
}

func TestExecute_FirstValidJSONWins(t *testing.T) {
	o := newOrchestrator(map[string]providers.Provider{
		"openai":    &mock.Provider{GenerateFn: generateText(`{"truncated": tru`)},
		"anthropic": &mock.Provider{GenerateFn: generateText(`{"ok": true}`)},
	}, nil)

	res, err := o.Execute(context.Background(), jsonContext("openai", "anthropic"))
	require.NoError(t, err)

	assert.Equal(t, "anthropic", res.Provider)
	assert.Equal(t, `{"ok": true}`, res.Text)
	assert.Equal(t, types.FailureMalformedOutput, res.Attempts[0].FailureReason)
}

func TestExecute_EmptyOutputIsMalformed(t *testing.T) {
	o := newOrchestrator(map[string]providers.Provider{
		"openai":    &mock.Provider{GenerateFn: generateText("   \n")},
		"anthropic": &mock.Provider{GenerateFn: generateText("real text")},
	}, nil)

	res, err := o.Execute(context.Background(), chatContext("openai", "anthropic"))
	require.NoError(t, err)

	assert.Equal(t, "anthropic", res.Provider)
	assert.Equal(t, types.FailureMalformedOutput, res.Attempts[0].FailureReason)
}

func TestExecute_ExhaustionCarriesAttemptTrail(t *testing.T) {
	o := newOrchestrator(map[string]providers.Provider{
		"openai":    &mock.Provider{GenerateFn: generateErr(providers.NewTransportError("openai", errors.New("timeout")))},
		"anthropic": &mock.Provider{GenerateFn: generateErr(providers.NewProviderError("anthropic", errors.New("400 bad request")))},
	}, nil)

	_, err := o.Execute(context.Background(), chatContext("openai", "anthropic"))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrAllProvidersExhausted)

	var exhausted *ExhaustedError
	require.ErrorAs(t, err, &exhausted)
	require.Len(t, exhausted.Attempts, 2)
	assert.Equal(t, types.FailureTransportError, exhausted.Attempts[0].FailureReason)
	assert.Equal(t, types.FailureProviderError, exhausted.Attempts[1].FailureReason)
}

func TestExecute_OutputPreviewIsBounded(t *testing.T) {
	long := make([]byte, 4096)
	for i := range long {
		long[i] = 'a'
	}
	o := newOrchestrator(map[string]providers.Provider{
		"openai": &mock.Provider{GenerateFn: generateText(string(long))},
	}, nil)

	res, err := o.Execute(context.Background(), chatContext("openai"))
	require.NoError(t, err)
	assert.Len(t, res.Attempts[0].OutputPreview, previewLen)
}

func TestExecute_OutputPreviewKeepsValidUTF8(t *testing.T) {
	// Multi-byte runes positioned so a naive byte cut would split one.
	long := "a" + strings.Repeat("é", previewLen)
	o := newOrchestrator(map[string]providers.Provider{
		"openai": &mock.Provider{GenerateFn: generateText(long)},
	}, nil)

	res, err := o.Execute(context.Background(), chatContext("openai"))
	require.NoError(t, err)

	p := res.Attempts[0].OutputPreview
	assert.True(t, utf8.ValidString(p))
	assert.LessOrEqual(t, len(p), previewLen)
	assert.NotEmpty(t, p)
}
