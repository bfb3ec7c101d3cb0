package domain

import "context"

// Completer sends a single prompt to a language model and returns its text.
type Completer interface {
	Complete(ctx context.Context, req CompletionRequest) (CompletionResult, error)
}

// CompletionRequest is one single-turn completion call.
type CompletionRequest struct {
	Model     string
	Prompt    string
	MaxTokens int
}

// CompletionResult carries the model text and token usage.
type CompletionResult struct {
	Text             string
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// LookupFetcher reads a single object from storage.
type LookupFetcher interface {
	FetchObject(ctx context.Context, bucket, key string) ([]byte, error)
}
