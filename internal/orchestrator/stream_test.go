package orchestrator

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/promptpilot/ai-router/internal/providers"
	"github.com/promptpilot/ai-router/internal/providers/mock"
	"github.com/promptpilot/ai-router/internal/types"
)

// collector gathers emitted events and can simulate a consumer disconnect.
type collector struct {
	events  []types.StreamEvent
	failAt  int // fail the Nth emit (1-based); 0 never fails
	emitted int
}

func (c *collector) emit(e types.StreamEvent) error {
	c.emitted++
	if c.failAt > 0 && c.emitted >= c.failAt {
		return errors.New("broken pipe")
	}
	c.events = append(c.events, e)
	return nil
}

func (c *collector) ofType(t types.StreamEventType) []types.StreamEvent {
	var out []types.StreamEvent
	for _, e := range c.events {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}

func TestExecuteStream_HappyPath(t *testing.T) {
	o := newOrchestrator(map[string]providers.Provider{
		"openai": &mock.Provider{StreamChunks: []string{"hel", "lo ", "world"}},
	}, nil)
	c := &collector{}

	res, err := o.ExecuteStream(context.Background(), chatContext("openai"), c.emit)
	require.NoError(t, err)

	assert.Equal(t, "hello world", res.Text)
	require.NotEmpty(t, c.events)

	last := c.events[len(c.events)-1]
	assert.Equal(t, types.EventDone, last.Type)
	assert.Equal(t, "hello world", last.Content)
	assert.Equal(t, "openai", last.Provider)

	deltas := c.ofType(types.EventDelta)
	require.Len(t, deltas, 3)
	var joined strings.Builder
	for _, d := range deltas {
		joined.WriteString(d.Content)
	}
	assert.Equal(t, "hello world", joined.String())
}

func TestExecuteStream_MidStreamFailureFallsBack(t *testing.T) {
	o := newOrchestrator(map[string]providers.Provider{
		"openai": &mock.Provider{
			StreamChunks: []string{"partial "},
			StreamErr:    providers.NewTransportError("openai", errors.New("connection reset")),
		},
		"anthropic": &mock.Provider{StreamChunks: []string{"clean answer"}},
	}, nil)
	c := &collector{}

	res, err := o.ExecuteStream(context.Background(), chatContext("openai", "anthropic"), c.emit)
	require.NoError(t, err)

	assert.Equal(t, "clean answer", res.Text)
	assert.Equal(t, "anthropic", res.Provider)
	assert.True(t, res.FallbackOccurred)

	fallbacks := c.ofType(types.EventFallback)
	require.Len(t, fallbacks, 1)
	assert.Equal(t, "openai", fallbacks[0].From)
	assert.Equal(t, types.FailureTransportError, fallbacks[0].Reason)

	// The done event carries the clean text only; the abandoned provider's
	// partial output never reaches the final content.
	last := c.events[len(c.events)-1]
	assert.Equal(t, types.EventDone, last.Type)
	assert.NotContains(t, last.Content, "partial")
}

func TestExecuteStream_MalformedJSONFallsBackAfterStreamEnd(t *testing.T) {
	o := newOrchestrator(map[string]providers.Provider{
		"openai":    &mock.Provider{StreamChunks: []string{`{"broken": `}},
		"anthropic": &mock.Provider{StreamChunks: []string{`{"ok":`, ` true}`}},
	}, nil)
	c := &collector{}

	res, err := o.ExecuteStream(context.Background(), jsonContext("openai", "anthropic"), c.emit)
	require.NoError(t, err)

	assert.Equal(t, `{"ok": true}`, res.Text)
	fallbacks := c.ofType(types.EventFallback)
	require.Len(t, fallbacks, 1)
	assert.Equal(t, types.FailureMalformedOutput, fallbacks[0].Reason)
}

func TestExecuteStream_ExhaustionEmitsTerminalError(t *testing.T) {
	openErr := providers.NewTransportError("x", errors.New("unreachable"))
	o := newOrchestrator(map[string]providers.Provider{
		"openai":    &mock.Provider{OpenErr: openErr},
		"anthropic": &mock.Provider{OpenErr: openErr},
	}, nil)
	c := &collector{}

	_, err := o.ExecuteStream(context.Background(), chatContext("openai", "anthropic"), c.emit)
	assert.ErrorIs(t, err, ErrAllProvidersExhausted)

	require.NotEmpty(t, c.events)
	last := c.events[len(c.events)-1]
	assert.Equal(t, types.EventError, last.Type)
	assert.Equal(t, "all providers exhausted", last.Error)

	// Exactly one terminal event, and nothing after it.
	terminals := 0
	for _, e := range c.events {
		if e.IsTerminal() {
			terminals++
		}
	}
	assert.Equal(t, 1, terminals)
}

func TestExecuteStream_ConsumerDisconnectStopsEverything(t *testing.T) {
	backup := &mock.Provider{StreamChunks: []string{"never sent"}}
	o := newOrchestrator(map[string]providers.Provider{
		"openai":    &mock.Provider{StreamChunks: []string{"a", "b", "c", "d"}},
		"anthropic": backup,
	}, nil)
	c := &collector{failAt: 2}

	_, err := o.ExecuteStream(context.Background(), chatContext("openai", "anthropic"), c.emit)
	assert.ErrorIs(t, err, ErrConsumerGone)

	// No terminal event and no fallback once the consumer is gone.
	for _, e := range c.events {
		assert.False(t, e.IsTerminal())
		assert.NotEqual(t, types.EventFallback, e.Type)
	}
	assert.Equal(t, 0, backup.Calls)
}

func TestExecuteStream_ConsumerDisconnectCarriesCompletedAttempts(t *testing.T) {
	o := newOrchestrator(map[string]providers.Provider{
		"openai": &mock.Provider{
			StreamChunks: []string{"partial "},
			StreamErr:    providers.NewTransportError("openai", errors.New("connection reset")),
		},
		"anthropic": &mock.Provider{StreamChunks: []string{"never sent"}},
	}, nil)
	// First emit is the delta, second is the fallback event, which fails.
	c := &collector{failAt: 2}

	_, err := o.ExecuteStream(context.Background(), chatContext("openai", "anthropic"), c.emit)
	assert.ErrorIs(t, err, ErrConsumerGone)

	var gone *ConsumerGoneError
	require.ErrorAs(t, err, &gone)
	require.Len(t, gone.Attempts, 1)
	assert.Equal(t, "openai", gone.Attempts[0].ProviderID)
	assert.Equal(t, types.FailureTransportError, gone.Attempts[0].FailureReason)
}

func TestExecuteStream_KeyMissingSkipsWithFallbackEvent(t *testing.T) {
	o := newOrchestrator(map[string]providers.Provider{
		"anthropic": &mock.Provider{StreamChunks: []string{"answer"}},
	}, nil)
	c := &collector{}

	res, err := o.ExecuteStream(context.Background(), chatContext("openai", "anthropic"), c.emit)
	require.NoError(t, err)
	assert.Equal(t, "anthropic", res.Provider)

	fallbacks := c.ofType(types.EventFallback)
	require.Len(t, fallbacks, 1)
	assert.Equal(t, types.FailureKeyMissing, fallbacks[0].Reason)
}
