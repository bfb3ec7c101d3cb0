package encode

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/kailas-cloud/ragq/internal/domain"
)

// singleEmbedder encodes a text as its length.
type singleEmbedder struct {
	err   error
	calls int
}

func (s *singleEmbedder) Embed(_ context.Context, text string) (domain.EmbeddingResult, error) {
	s.calls++
	if s.err != nil {
		return domain.EmbeddingResult{}, s.err
	}
	return domain.EmbeddingResult{Embedding: []float32{float32(len(text))}}, nil
}

type batchEmbedder struct {
	singleEmbedder
	drop       bool
	batchCalls int
}

func (b *batchEmbedder) BatchEmbed(_ context.Context, texts []string) (domain.BatchEmbeddingResult, error) {
	b.batchCalls++
	out := domain.BatchEmbeddingResult{}
	for _, t := range texts {
		out.Embeddings = append(out.Embeddings, []float32{float32(len(t))})
	}
	if b.drop {
		out.Embeddings = out.Embeddings[1:]
	}
	return out, nil
}

func subs(texts ...string) *domain.SubqueryMap {
	m := domain.NewSubqueryMap()
	for i, t := range texts {
		m.Add(string(rune('1'+i)), t)
	}
	return m
}

func TestEncode(t *testing.T) {
	v, err := New(&singleEmbedder{}, zap.NewNop()).Encode(context.Background(), "abc")
	require.NoError(t, err)
	assert.Equal(t, []float32{3}, v)
}

func TestEncode_Failure(t *testing.T) {
	_, err := New(&singleEmbedder{err: domain.ErrEmbeddingProviderError}, zap.NewNop()).Encode(context.Background(), "abc")
	require.ErrorIs(t, err, domain.ErrEncoding)
	assert.ErrorIs(t, err, domain.ErrEmbeddingProviderError)
	assert.True(t, domain.IsFatal(err))
}

func TestEncodeMany_UsesBatchInKeyOrder(t *testing.T) {
	e := &batchEmbedder{}
	vs, err := New(e, zap.NewNop()).EncodeMany(context.Background(), subs("a", "bbb", "cc"))
	require.NoError(t, err)
	assert.Equal(t, [][]float32{{1}, {3}, {2}}, vs)
	assert.Equal(t, 1, e.batchCalls)
	assert.Equal(t, 0, e.calls)
}

func TestEncodeMany_FallsBackToSingleCalls(t *testing.T) {
	e := &singleEmbedder{}
	vs, err := New(e, zap.NewNop()).EncodeMany(context.Background(), subs("a", "bb"))
	require.NoError(t, err)
	assert.Len(t, vs, 2)
	assert.Equal(t, 2, e.calls)
}

func TestEncodeMany_CountMismatch(t *testing.T) {
	_, err := New(&batchEmbedder{drop: true}, zap.NewNop()).EncodeMany(context.Background(), subs("a", "b"))
	assert.ErrorIs(t, err, domain.ErrEncoding)
}
