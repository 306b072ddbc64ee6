package openai

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/sashabaranov/go-openai"
	"github.com/sirupsen/logrus"

	"github.com/promptpilot/ai-router/internal/providers"
)

const providerName = "openai"

// defaultModel is used when the router supplies no model hint.
const defaultModel = "gpt-4o-mini"

// Provider adapts the OpenAI chat completions API to the uniform generate
// capability.
type Provider struct {
	client *openai.Client
	model  string
	logger *logrus.Logger
}

// Option tweaks adapter construction.
type Option func(*options)

type options struct {
	baseURL string
	model   string
}

// WithBaseURL points the adapter at an OpenAI-compatible endpoint.
func WithBaseURL(url string) Option {
	return func(o *options) { o.baseURL = url }
}

// WithDefaultModel overrides the model used when requests carry no hint.
func WithDefaultModel(model string) Option {
	return func(o *options) { o.model = model }
}

// New constructs the adapter from a credential string. An empty credential
// fails immediately, before any network call.
func New(apiKey string, logger *logrus.Logger, opts ...Option) (*Provider, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("openai: %w", providers.ErrMissingCredential)
	}

	o := options{model: defaultModel}
	for _, opt := range opts {
		opt(&o)
	}

	cfg := openai.DefaultConfig(apiKey)
	if o.baseURL != "" {
		cfg.BaseURL = o.baseURL
	}

	return &Provider{
		client: openai.NewClientWithConfig(cfg),
		model:  o.model,
		logger: logger,
	}, nil
}

// Name returns the provider identifier used in fallback chains.
func (p *Provider) Name() string {
	return providerName
}

// Generate performs a buffered completion.
func (p *Provider) Generate(ctx context.Context, req *providers.Request) (*providers.Response, error) {
	resp, err := p.client.CreateChatCompletion(ctx, p.buildRequest(req, false))
	if err != nil {
		p.logger.WithError(err).WithField("provider", providerName).Error("Completion failed")
		return nil, classify(err)
	}

	if len(resp.Choices) == 0 {
		return nil, providers.NewProviderError(providerName, fmt.Errorf("response contained no choices"))
	}

	return &providers.Response{
		Text:         resp.Choices[0].Message.Content,
		Model:        resp.Model,
		InputTokens:  resp.Usage.PromptTokens,
		OutputTokens: resp.Usage.CompletionTokens,
	}, nil
}

// GenerateStream performs a streaming completion. The returned channel is
// closed after the final chunk; a chunk carrying an error is always last.
func (p *Provider) GenerateStream(ctx context.Context, req *providers.Request) (<-chan providers.Chunk, error) {
	stream, err := p.client.CreateChatCompletionStream(ctx, p.buildRequest(req, true))
	if err != nil {
		p.logger.WithError(err).WithField("provider", providerName).Error("Stream open failed")
		return nil, classify(err)
	}

	chunks := make(chan providers.Chunk, 16)
	go func() {
		defer close(chunks)
		defer stream.Close()

		for {
			resp, err := stream.Recv()
			if errors.Is(err, io.EOF) {
				return
			}
			if err != nil {
				select {
				case chunks <- providers.Chunk{Err: classify(err)}:
				case <-ctx.Done():
				}
				return
			}

			if len(resp.Choices) == 0 {
				continue
			}
			delta := resp.Choices[0].Delta.Content
			if delta == "" {
				continue
			}

			select {
			case chunks <- providers.Chunk{Text: delta}:
			case <-ctx.Done():
				return
			}
		}
	}()

	return chunks, nil
}

func (p *Provider) buildRequest(req *providers.Request, stream bool) openai.ChatCompletionRequest {
	model := req.Model
	if model == "" {
		model = p.model
	}

	out := openai.ChatCompletionRequest{
		Model: model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: req.Prompt},
		},
		Stream: stream,
	}
	if req.MaxTokens > 0 {
		out.MaxTokens = req.MaxTokens
	}
	if req.JSONMode {
		out.ResponseFormat = &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		}
	}
	return out
}

// classify maps go-openai errors into the uniform taxonomy: server-side and
// connection failures are transport errors (retryable on another provider),
// request-level rejections are provider errors.
func classify(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		if apiErr.HTTPStatusCode >= 500 || apiErr.HTTPStatusCode == 429 {
			return providers.NewTransportError(providerName, err)
		}
		return providers.NewProviderError(providerName, err)
	}

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return providers.NewTransportError(providerName, err)
	}

	return providers.Classify(providerName, err)
}

var _ providers.Provider = (*Provider)(nil)
