package retrieve

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/kailas-cloud/ragq/internal/domain"
)

// fakeIndex answers with the vector's first component as text, after a random delay.
type fakeIndex struct {
	mu      sync.Mutex
	queries []domain.VectorQuery
	failOn  map[string]bool // filter string -> fail
	jitter  bool
}

func (f *fakeIndex) Query(ctx context.Context, q domain.VectorQuery) ([]domain.Passage, error) {
	f.mu.Lock()
	f.queries = append(f.queries, q)
	fail := f.failOn[q.Filter.String()]
	f.mu.Unlock()

	if f.jitter {
		select {
		case <-time.After(time.Duration(rand.IntN(20)) * time.Millisecond):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if fail {
		return nil, domain.ErrVectorIndex
	}
	label := q.Filter.String()
	return []domain.Passage{{Text: vecLabel(q.Vector) + "|" + label}}, nil
}

func vecLabel(v []float32) string {
	return string(rune('a' + int(v[0])))
}

func newService(t *testing.T, idx domain.VectorIndex) *Service {
	t.Helper()
	s, err := New(idx, Config{Workers: 3}, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(s.Release)
	return s
}

func TestRetrieve_NoOptionalConstraints(t *testing.T) {
	idx := &fakeIndex{}
	out, report, err := newService(t, idx).Retrieve(context.Background(), Input{
		Query:      []float32{0},
		Subqueries: [][]float32{{1}, {2}},
	})
	require.NoError(t, err)
	assert.Len(t, idx.queries, 3)
	assert.Equal(t, domain.ContextList{"a|*", "b|*", "c|*"}, out)
	assert.Equal(t, []string{"main", "subquery_1", "subquery_2"}, report.Executed)
	assert.Empty(t, report.Skipped)

	for _, q := range idx.queries {
		assert.True(t, q.Filter.IsEmpty())
		assert.Equal(t, domain.DefaultTopK, q.TopK)
	}
}

func TestRetrieve_AllConstraintsInOrder(t *testing.T) {
	idx := &fakeIndex{jitter: true}
	in := Input{
		Query:      []float32{0},
		Subqueries: [][]float32{{1}, {2}, {3}},
		Metadata: domain.MetadataFilter{
			Years: domain.NewAttribute("2021", "2022"),
			Clubs: domain.NewAttribute("Arsenal"),
		},
		Entities: domain.NewAttribute("Erling Haaland"),
	}

	want := domain.ContextList{
		"a|*", "b|*", "c|*", "d|*",
		"a|year IN (2021, 2022)",
		"a|club IN (Arsenal)",
		"a|entities IN (Erling Haaland)",
	}
	// completion order is random; the context order must not be
	for range 5 {
		out, report, err := newService(t, &fakeIndex{jitter: true}).Retrieve(context.Background(), in)
		require.NoError(t, err)
		assert.Equal(t, want, out)
		assert.Len(t, report.Executed, 7)
	}

	_, _, err := newService(t, idx).Retrieve(context.Background(), in)
	require.NoError(t, err)
	assert.Len(t, idx.queries, 7)
}

func TestRetrieve_OptionalFailureIsSkipped(t *testing.T) {
	idx := &fakeIndex{failOn: map[string]bool{"year IN (2022)": true}}
	out, report, err := newService(t, idx).Retrieve(context.Background(), Input{
		Query:    []float32{0},
		Metadata: domain.MetadataFilter{Years: domain.NewAttribute("2022"), Clubs: domain.NewAttribute("Chelsea")},
	})
	require.NoError(t, err)
	assert.Equal(t, domain.ContextList{"a|*", "a|club IN (Chelsea)"}, out)
	assert.Equal(t, []string{"years"}, report.Skipped)
	assert.Equal(t, 2, report.Passages)
}

func TestRetrieve_MandatoryFailureIsFatal(t *testing.T) {
	idx := &fakeIndex{failOn: map[string]bool{"*": true}}
	out, _, err := newService(t, idx).Retrieve(context.Background(), Input{
		Query:    []float32{0},
		Metadata: domain.MetadataFilter{Years: domain.NewAttribute("2022")},
	})
	require.ErrorIs(t, err, domain.ErrRetrieval)
	assert.ErrorIs(t, err, domain.ErrVectorIndex)
	assert.True(t, domain.IsFatal(err))
	assert.Nil(t, out)
}

// stallingIndex blocks the main vector until cancelled and fails every other search at once.
type stallingIndex struct {
	cause error
}

func (f stallingIndex) Query(ctx context.Context, q domain.VectorQuery) ([]domain.Passage, error) {
	if q.Vector[0] == 0 {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	return nil, f.cause
}

func TestRetrieve_ReportsFailingPassNotCancelledOnes(t *testing.T) {
	cause := fmt.Errorf("%w: %w", domain.ErrTimeout, domain.ErrVectorIndex)

	_, _, err := newService(t, stallingIndex{cause: cause}).Retrieve(context.Background(), Input{
		Query:      []float32{0},
		Subqueries: [][]float32{{1}},
	})
	require.ErrorIs(t, err, domain.ErrRetrieval)
	assert.ErrorIs(t, err, domain.ErrTimeout)
	assert.ErrorIs(t, err, domain.ErrVectorIndex)
	assert.NotErrorIs(t, err, context.Canceled)
	assert.Contains(t, err.Error(), "pass subquery_1")
}

// sameTextIndex returns one identical passage for every search.
type sameTextIndex struct{}

func (sameTextIndex) Query(context.Context, domain.VectorQuery) ([]domain.Passage, error) {
	return []domain.Passage{{Text: "Arsenal won the 2023 Community Shield."}}, nil
}

func TestRetrieve_KeepsDuplicatePassages(t *testing.T) {
	out, report, err := newService(t, sameTextIndex{}).Retrieve(context.Background(), Input{
		Query:    []float32{0},
		Metadata: domain.MetadataFilter{Years: domain.NewAttribute("2023")},
	})
	require.NoError(t, err)
	assert.Equal(t, domain.ContextList{
		"Arsenal won the 2023 Community Shield.",
		"Arsenal won the 2023 Community Shield.",
	}, out)
	assert.Equal(t, []string{"main", "years"}, report.Executed)
	assert.Equal(t, 2, report.Passages)
}

func TestRetrieve_EntityPassGatedOnPresence(t *testing.T) {
	idx := &fakeIndex{}
	_, report, err := newService(t, idx).Retrieve(context.Background(), Input{
		Query:    []float32{0},
		Entities: domain.Absent(),
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"main"}, report.Executed)
}

func TestRetrieve_RequiresQueryVector(t *testing.T) {
	_, _, err := newService(t, &fakeIndex{}).Retrieve(context.Background(), Input{})
	assert.ErrorIs(t, err, domain.ErrRetrieval)
}

func TestRetrieve_ReleasedPool(t *testing.T) {
	s, err := New(&fakeIndex{}, Config{Workers: 1}, zap.NewNop())
	require.NoError(t, err)
	s.Release()

	_, _, err = s.Retrieve(context.Background(), Input{Query: []float32{0}})
	assert.True(t, errors.Is(err, domain.ErrRetrieval))
}

func TestPlan(t *testing.T) {
	passes := Plan(Input{
		Query:      []float32{0},
		Subqueries: [][]float32{{1}},
		Metadata:   domain.MetadataFilter{Clubs: domain.NewAttribute("Arsenal")},
		Entities:   domain.NewAttribute("Saka"),
	})
	names := make([]string, len(passes))
	for i, p := range passes {
		names[i] = p.Name
	}
	assert.Equal(t, []string{"main", "subquery_1", "clubs", "entities"}, names)
	assert.False(t, passes[1].Optional)
	assert.True(t, passes[2].Optional)
}
