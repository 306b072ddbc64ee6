package mock

import (
	"context"

	"github.com/promptpilot/ai-router/internal/providers"
)

// Provider is a scriptable test double implementing providers.Provider.
type Provider struct {
	NameValue    string
	GenerateFn   func(ctx context.Context, req *providers.Request) (*providers.Response, error)
	StreamChunks []string
	StreamErr    error
	OpenErr      error

	// Calls counts Generate/GenerateStream invocations.
	Calls int
}

func (p *Provider) Name() string {
	if p.NameValue != "" {
		return p.NameValue
	}
	return "mock"
}

func (p *Provider) Generate(ctx context.Context, req *providers.Request) (*providers.Response, error) {
	p.Calls++
	if p.GenerateFn != nil {
		return p.GenerateFn(ctx, req)
	}
	return &providers.Response{Text: "mock response", Model: "mock-model"}, nil
}

func (p *Provider) GenerateStream(ctx context.Context, req *providers.Request) (<-chan providers.Chunk, error) {
	p.Calls++
	if p.OpenErr != nil {
		return nil, p.OpenErr
	}

	ch := make(chan providers.Chunk, len(p.StreamChunks)+1)
	go func() {
		defer close(ch)
		for _, text := range p.StreamChunks {
			select {
			case ch <- providers.Chunk{Text: text}:
			case <-ctx.Done():
				return
			}
		}
		if p.StreamErr != nil {
			ch <- providers.Chunk{Err: p.StreamErr}
		}
	}()
	return ch, nil
}

var _ providers.Provider = (*Provider)(nil)
