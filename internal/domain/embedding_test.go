package domain

import (
	"context"
	"errors"
	"testing"
)

type stubEmbedder struct {
	result EmbeddingResult
	err    error
	got    []string
}

func (s *stubEmbedder) Embed(_ context.Context, text string) (EmbeddingResult, error) {
	s.got = append(s.got, text)
	return s.result, s.err
}

type stubBatchEmbedder struct {
	stubEmbedder
	batch    BatchEmbeddingResult
	batchErr error
	texts    []string
}

func (s *stubBatchEmbedder) BatchEmbed(_ context.Context, texts []string) (BatchEmbeddingResult, error) {
	s.texts = texts
	return s.batch, s.batchErr
}

func TestQueryInstructionEmbedder_Prefixes(t *testing.T) {
	inner := &stubEmbedder{result: EmbeddingResult{Embedding: []float32{0.1, 0.2}}}
	emb := NewQueryInstructionEmbedder(inner, "query: ")

	res, err := emb.Embed(context.Background(), "who scored")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if inner.got[0] != "query: who scored" {
		t.Errorf("expected prefixed text, got %q", inner.got[0])
	}
	if len(res.Embedding) != 2 {
		t.Errorf("expected 2-element vector, got %d", len(res.Embedding))
	}
}

func TestQueryInstructionEmbedder_Error(t *testing.T) {
	innerErr := errors.New("provider down")
	emb := NewQueryInstructionEmbedder(&stubEmbedder{err: innerErr}, "")

	_, err := emb.Embed(context.Background(), "x")
	if !errors.Is(err, innerErr) {
		t.Errorf("expected wrapped inner error, got %v", err)
	}
}

func TestEmbedAll_UsesBatch(t *testing.T) {
	inner := &stubBatchEmbedder{batch: BatchEmbeddingResult{
		Embeddings:  [][]float32{{1}, {2}},
		TotalTokens: 7,
	}}

	res, err := EmbedAll(context.Background(), inner, []string{"a", "b"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(inner.texts) != 2 {
		t.Errorf("expected batch call with 2 texts, got %d", len(inner.texts))
	}
	if len(inner.got) != 0 {
		t.Errorf("expected no single calls, got %d", len(inner.got))
	}
	if res.TotalTokens != 7 {
		t.Errorf("expected 7 tokens, got %d", res.TotalTokens)
	}
}

func TestEmbedAll_BatchCountMismatch(t *testing.T) {
	inner := &stubBatchEmbedder{batch: BatchEmbeddingResult{Embeddings: [][]float32{{1}}}}

	_, err := EmbedAll(context.Background(), inner, []string{"a", "b"})
	if !errors.Is(err, ErrEmbeddingProviderError) {
		t.Fatalf("expected ErrEmbeddingProviderError, got %v", err)
	}
}

func TestEmbedAll_FallbackKeepsOrder(t *testing.T) {
	inner := &stubEmbedder{result: EmbeddingResult{Embedding: []float32{0.5}, PromptTokens: 2, TotalTokens: 2}}

	res, err := EmbedAll(context.Background(), inner, []string{"first", "second", "third"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []string{"first", "second", "third"}
	for i, w := range want {
		if inner.got[i] != w {
			t.Errorf("call %d: expected %q, got %q", i, w, inner.got[i])
		}
	}
	if len(res.Embeddings) != 3 || res.TotalTokens != 6 {
		t.Errorf("unexpected result: %+v", res)
	}
}

func TestBatchFallback_Error(t *testing.T) {
	inner := &stubEmbedder{err: errors.New("boom")}

	if _, err := BatchFallback(context.Background(), inner, []string{"a"}); err == nil {
		t.Fatal("expected error")
	}
}
