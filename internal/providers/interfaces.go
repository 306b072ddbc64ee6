package providers

import "context"

// Request is the uniform generation request handed to every adapter. Each
// adapter owns the translation into its backend's wire format.
type Request struct {
	Prompt    string
	Model     string // optional hint; adapters fall back to their default
	MaxTokens int
	JSONMode  bool
}

// Response is a fully-buffered generation result.
type Response struct {
	Text         string
	Model        string
	InputTokens  int
	OutputTokens int
}

// Chunk is one element of a streamed generation. A chunk with Err set is the
// final element; streams are finite and not restartable.
type Chunk struct {
	Text string
	Err  error
}

// Provider is the uniform capability implemented once per upstream backend.
// Adapters are constructed from a credential string alone and fail fast at
// construction when it is missing, before any network call.
type Provider interface {
	Name() string
	Generate(ctx context.Context, req *Request) (*Response, error)
	GenerateStream(ctx context.Context, req *Request) (<-chan Chunk, error)
}
