package kafka

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// --- Mocks ---

type fakeReader struct {
	mu        sync.Mutex
	msgs      []kafka.Message
	fetchErrs []error
	committed []int64
	closed    bool
	drained   chan struct{}
}

func newFakeReader(msgs ...kafka.Message) *fakeReader {
	return &fakeReader{msgs: msgs, drained: make(chan struct{})}
}

func (r *fakeReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	r.mu.Lock()
	if len(r.fetchErrs) > 0 {
		err := r.fetchErrs[0]
		r.fetchErrs = r.fetchErrs[1:]
		r.mu.Unlock()
		return kafka.Message{}, err
	}
	if len(r.msgs) > 0 {
		m := r.msgs[0]
		r.msgs = r.msgs[1:]
		r.mu.Unlock()
		return m, nil
	}
	r.mu.Unlock()
	select {
	case <-r.drained:
	default:
		close(r.drained)
	}
	<-ctx.Done()
	return kafka.Message{}, ctx.Err()
}

func (r *fakeReader) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range msgs {
		r.committed = append(r.committed, m.Offset)
	}
	return nil
}

func (r *fakeReader) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	return nil
}

type recordingInvalidator struct {
	mu     sync.Mutex
	events []PublishEvent
}

func (i *recordingInvalidator) Invalidate(bucket, key, version string) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.events = append(i.events, PublishEvent{Bucket: bucket, Key: key, Version: version})
}

// --- Tests ---

func runUntilDrained(t *testing.T, l *Listener, r *fakeReader) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- l.Run(ctx) }()

	select {
	case <-r.drained:
	case <-time.After(2 * time.Second):
		t.Fatal("listener did not drain messages")
	}
	cancel()
	if err := <-done; err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestListener_InvalidatesAndCommits(t *testing.T) {
	r := newFakeReader(
		kafka.Message{Offset: 1, Value: []byte(`{"bucket":"rag-training-lookup","key":"entity-list.json","version":"v2"}`)},
		kafka.Message{Offset: 2, Value: []byte(`not json`)},
		kafka.Message{Offset: 3, Value: []byte(`{"bucket":"b"}`)},
	)
	inv := &recordingInvalidator{}
	l := newListener(r, inv, zap.NewNop())

	runUntilDrained(t, l, r)

	if len(inv.events) != 1 {
		t.Fatalf("expected 1 invalidation, got %d", len(inv.events))
	}
	if inv.events[0].Version != "v2" || inv.events[0].Key != "entity-list.json" {
		t.Errorf("unexpected event %+v", inv.events[0])
	}
	if len(r.committed) != 3 {
		t.Errorf("expected every message committed, got %v", r.committed)
	}
	if !r.closed {
		t.Error("expected reader to be closed")
	}
}

func TestListener_RecoversFromFetchError(t *testing.T) {
	r := newFakeReader(kafka.Message{Offset: 7, Value: []byte(`{"bucket":"b","key":"k"}`)})
	r.fetchErrs = []error{errors.New("broker unavailable")}
	inv := &recordingInvalidator{}
	l := newListener(r, inv, zap.NewNop())
	l.backoff = time.Millisecond

	runUntilDrained(t, l, r)

	if len(inv.events) != 1 {
		t.Fatalf("expected 1 invalidation after recovery, got %d", len(inv.events))
	}
}

func TestDecodeEvent(t *testing.T) {
	if _, err := DecodeEvent([]byte(`{"bucket":"b","key":"k"}`)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := DecodeEvent([]byte(`{"key":"k"}`)); err == nil {
		t.Error("expected error for missing bucket")
	}
}
