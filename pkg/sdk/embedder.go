package ragq

import (
	"context"
	"fmt"

	"github.com/kailas-cloud/ragq/internal/domain"
)

// Embedder converts text to vector embeddings.
// Vectors must match the dimensions of the indexed passages.
type Embedder interface {
	Embed(ctx context.Context, text string) (EmbeddingResult, error)
}

// EmbeddingResult carries the embedding vector and token counts.
type EmbeddingResult struct {
	Embedding    []float32
	PromptTokens int
	TotalTokens  int
}

// Completer sends one prompt to a language model and returns its reply.
type Completer interface {
	Complete(ctx context.Context, req CompletionRequest) (CompletionResult, error)
}

// CompletionRequest is a single-turn prompt.
type CompletionRequest struct {
	Model     string
	Prompt    string
	MaxTokens int
}

// CompletionResult carries the reply text and token counts.
type CompletionResult struct {
	Text         string
	PromptTokens int
	OutputTokens int
}

// LookupFetcher reads the published entity list document.
type LookupFetcher interface {
	FetchObject(ctx context.Context, bucket, key string) ([]byte, error)
}

// embedderAdapter wraps public Embedder to satisfy internal domain.Embedder.
type embedderAdapter struct {
	inner Embedder
}

func (a *embedderAdapter) Embed(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	r, err := a.inner.Embed(ctx, text)
	if err != nil {
		return domain.EmbeddingResult{}, fmt.Errorf("%w: %w", domain.ErrEmbeddingProviderError, err)
	}
	return domain.EmbeddingResult{
		Embedding:    r.Embedding,
		PromptTokens: r.PromptTokens,
		TotalTokens:  r.TotalTokens,
	}, nil
}

// completerAdapter wraps public Completer to satisfy internal domain.Completer.
type completerAdapter struct {
	inner Completer
}

func (a *completerAdapter) Complete(ctx context.Context, req domain.CompletionRequest) (domain.CompletionResult, error) {
	r, err := a.inner.Complete(ctx, CompletionRequest{
		Model:     req.Model,
		Prompt:    req.Prompt,
		MaxTokens: req.MaxTokens,
	})
	if err != nil {
		return domain.CompletionResult{}, fmt.Errorf("%w: %w", domain.ErrCompletionProvider, err)
	}
	return domain.CompletionResult{
		Text:             r.Text,
		PromptTokens:     r.PromptTokens,
		CompletionTokens: r.OutputTokens,
		TotalTokens:      r.PromptTokens + r.OutputTokens,
	}, nil
}
