package anthropic

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/sirupsen/logrus"

	"github.com/promptpilot/ai-router/internal/providers"
)

const providerName = "anthropic"

const defaultModel = "claude-3-5-sonnet-20241022"

// Anthropic requires max_tokens on every request.
const defaultMaxTokens = 4096

// jsonSystemPrompt is prepended for JSON-mode requests; Claude has no strict
// structured-output mode, so the contract is enforced downstream by the
// output validator.
const jsonSystemPrompt = "Respond with a single valid JSON value and nothing else. No prose, no code fences."

// Provider adapts the Anthropic Messages API to the uniform generate
// capability.
type Provider struct {
	client *anthropic.Client
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
		return nil, fmt.Errorf("anthropic: %w", providers.ErrMissingCredential)
	}

	o := options{model: defaultModel}
	for _, opt := range opts {
		opt(&o)
	}

	reqOpts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if o.baseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(o.baseURL))
	}

	client := anthropic.NewClient(reqOpts...)
	return &Provider{
		client: &client,
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
	resp, err := p.client.Messages.New(ctx, p.buildParams(req))
	if err != nil {
		p.logger.WithError(err).WithField("provider", providerName).Error("Completion failed")
		return nil, classify(err)
	}

	var text strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}

	return &providers.Response{
		Text:         text.String(),
		Model:        string(resp.Model),
		InputTokens:  int(resp.Usage.InputTokens),
		OutputTokens: int(resp.Usage.OutputTokens),
	}, nil
}

// GenerateStream performs a streaming completion. The returned channel is
// closed after the final chunk; a chunk carrying an error is always last.
func (p *Provider) GenerateStream(ctx context.Context, req *providers.Request) (<-chan providers.Chunk, error) {
	stream := p.client.Messages.NewStreaming(ctx, p.buildParams(req))

	chunks := make(chan providers.Chunk, 16)
	go func() {
		defer close(chunks)
		defer stream.Close()

		for stream.Next() {
			event := stream.Current()
			switch eventVariant := event.AsAny().(type) {
			case anthropic.ContentBlockDeltaEvent:
				switch deltaVariant := eventVariant.Delta.AsAny().(type) {
				case anthropic.TextDelta:
					if deltaVariant.Text == "" {
						continue
					}
					select {
					case chunks <- providers.Chunk{Text: deltaVariant.Text}:
					case <-ctx.Done():
						return
					}
				}
			}
		}

		if err := stream.Err(); err != nil {
			select {
			case chunks <- providers.Chunk{Err: classify(err)}:
			case <-ctx.Done():
			}
		}
	}()

	return chunks, nil
}

func (p *Provider) buildParams(req *providers.Request) anthropic.MessageNewParams {
	model := req.Model
	if model == "" {
		model = p.model
	}
	maxTokens := int64(req.MaxTokens)
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(model),
		MaxTokens: maxTokens,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(req.Prompt)),
		},
	}
	if req.JSONMode {
		params.System = []anthropic.TextBlockParam{
			{Text: jsonSystemPrompt, Type: "text"},
		}
	}
	return params
}

// classify maps SDK errors into the uniform taxonomy.
func classify(err error) error {
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		if apiErr.StatusCode >= 500 || apiErr.StatusCode == 429 || apiErr.StatusCode == 529 {
			return providers.NewTransportError(providerName, err)
		}
		return providers.NewProviderError(providerName, err)
	}
	return providers.Classify(providerName, err)
}

var _ providers.Provider = (*Provider)(nil)
