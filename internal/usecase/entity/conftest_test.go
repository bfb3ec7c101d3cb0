package entity

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/kailas-cloud/ragq/internal/domain"
)

type fakeFetcher struct {
	data  []byte
	err   error
	calls atomic.Int32
}

func (f *fakeFetcher) FetchObject(context.Context, string, string) ([]byte, error) {
	f.calls.Add(1)
	if f.err != nil {
		return nil, f.err
	}
	return f.data, nil
}

type fakeCompleter struct {
	mu      sync.Mutex
	text    string
	err     error
	prompts []string
}

func (f *fakeCompleter) Complete(_ context.Context, req domain.CompletionRequest) (domain.CompletionResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.prompts = append(f.prompts, req.Prompt)
	if f.err != nil {
		return domain.CompletionResult{}, f.err
	}
	return domain.CompletionResult{Text: f.text}, nil
}

// fakeLoader counts loads and can block until released.
type fakeLoader struct {
	lookup  domain.EntityLookup
	err     error
	calls   atomic.Int32
	release chan struct{}
}

func (f *fakeLoader) FetchLookup(context.Context, string, string) (domain.EntityLookup, error) {
	f.calls.Add(1)
	if f.release != nil {
		<-f.release
	}
	return f.lookup, f.err
}
