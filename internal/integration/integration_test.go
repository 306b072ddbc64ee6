package integration_test

import (
	"context"
	"errors"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/promptpilot/ai-router/internal/decisionlog"
	"github.com/promptpilot/ai-router/internal/features"
	"github.com/promptpilot/ai-router/internal/metrics"
	"github.com/promptpilot/ai-router/internal/orchestrator"
	"github.com/promptpilot/ai-router/internal/providers"
	"github.com/promptpilot/ai-router/internal/providers/mock"
	"github.com/promptpilot/ai-router/internal/registry"
	"github.com/promptpilot/ai-router/internal/routing"
	"github.com/promptpilot/ai-router/internal/types"
)

// TestPipeline walks the full request path: feature extraction, routing,
// chain execution, and decision logging, without any HTTP in between.
func TestPipeline(t *testing.T) {
	logger := logrus.New()
	logger.SetLevel(logrus.WarnLevel)

	reg := registry.New(registry.DefaultCatalog())
	extractor := features.New(features.DefaultConfig())
	router := routing.New(reg, []string{"openai", "anthropic"}, logger)

	adapters := map[string]providers.Provider{
		"openai": &mock.Provider{GenerateFn: func(context.Context, *providers.Request) (*providers.Response, error) {
			return nil, providers.NewTransportError("openai", errors.New("connection refused"))
		}},
		"anthropic": &mock.Provider{GenerateFn: func(_ context.Context, req *providers.Request) (*providers.Response, error) {
			return &providers.Response{Text: `{"price": "unavailable"}`, Model: req.Model}, nil
		}},
	}
	orch := orchestrator.New(adapters, nil, metrics.New(), logger)

	store := decisionlog.NewMemoryStore()
	decisions := decisionlog.New(store, logger, 16)

	rc := extractor.Analyze("Extract the current bitcoin price as JSON", types.ModeSingle, "")
	require.True(t, rc.RequiresStructuredOutput)

	dec, err := router.Route(&rc, nil)
	require.NoError(t, err)
	require.NotEmpty(t, rc.FallbackChain)

	result, err := orch.Execute(context.Background(), &rc)
	require.NoError(t, err)

	assert.Equal(t, "anthropic", result.Provider)
	assert.True(t, result.FallbackOccurred)
	assert.JSONEq(t, `{"price": "unavailable"}`, result.Text)

	decisions.Record(&decisionlog.Entry{
		RequestID:     "integration-1",
		Mode:          rc.Mode,
		Intent:        rc.Intent,
		Provider:      dec.Model.Provider,
		Model:         dec.Model.ID,
		Reason:        dec.Reason,
		FallbackChain: rc.FallbackChain,
		Attempts:      result.Attempts,
		Succeeded:     true,
	})
	require.NoError(t, decisions.Close())

	entries := store.Entries()
	require.Len(t, entries, 1)
	assert.Len(t, entries[0].Attempts, 2)

	stats := decisions.Stats()
	assert.Equal(t, int64(1), stats.DecisionsLogged)
	assert.Equal(t, int64(1), stats.Providers["openai"].Failures)
	assert.Equal(t, int64(1), stats.Providers["anthropic"].Successes)
}
