package openrouter

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/sashabaranov/go-openai"
	"github.com/sirupsen/logrus"

	"github.com/promptpilot/ai-router/internal/providers"
)

const providerName = "openrouter"

// DefaultBaseURL is OpenRouter's OpenAI-compatible endpoint.
const DefaultBaseURL = "https://openrouter.ai/api/v1"

const defaultModel = "meta-llama/llama-3.1-70b-instruct"

// Provider adapts OpenRouter's OpenAI-compatible API to the uniform generate
// capability. The wire format is OpenAI's; only the endpoint, model namespace
// and error surface differ.
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

// WithBaseURL overrides the API endpoint.
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
		return nil, fmt.Errorf("openrouter: %w", providers.ErrMissingCredential)
	}

	o := options{baseURL: DefaultBaseURL, model: defaultModel}
	for _, opt := range opts {
		opt(&o)
	}

	cfg := openai.DefaultConfig(apiKey)
	cfg.BaseURL = o.baseURL

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

// GenerateStream performs a streaming completion.
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
