package openrouter

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/promptpilot/ai-router/internal/providers"
)

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.FatalLevel)
	return logger
}

func TestNew_FailsFastWithoutCredential(t *testing.T) {
	_, err := New("", testLogger())
	require.Error(t, err)
	assert.True(t, errors.Is(err, providers.ErrMissingCredential))
}

func TestProvider_NameAndDefaultModel(t *testing.T) {
	p, err := New("test-key", testLogger())
	require.NoError(t, err)
	assert.Equal(t, "openrouter", p.Name())

	req := p.buildRequest(&providers.Request{Prompt: "hi"}, false)
	assert.Equal(t, defaultModel, req.Model)
}

func TestGenerate_AgainstStubServer(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"id": "gen-1",
			"object": "chat.completion",
			"model": "meta-llama/llama-3.1-70b-instruct",
			"choices": [{"index": 0, "message": {"role": "assistant", "content": "routed"}, "finish_reason": "stop"}],
			"usage": {"prompt_tokens": 1, "completion_tokens": 1, "total_tokens": 2}
		}`))
	}))
	defer srv.Close()

	p, err := New("test-key", testLogger(), WithBaseURL(srv.URL))
	require.NoError(t, err)

	resp, err := p.Generate(context.Background(), &providers.Request{Prompt: "hello"})
	require.NoError(t, err)
	assert.Equal(t, "routed", resp.Text)
}
