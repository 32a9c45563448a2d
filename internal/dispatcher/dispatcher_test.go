package dispatcher

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/local/sheetpress/internal/export"
	"github.com/local/sheetpress/internal/storage"
	"github.com/local/sheetpress/internal/store"
)

type fakeQueue struct {
	mu        sync.Mutex
	delayed   [][]byte
	dlq       []string
	cancelled map[string]bool
	idemDone  map[string]bool
}

func newFakeQueue() *fakeQueue {
	return &fakeQueue{cancelled: map[string]bool{}, idemDone: map[string]bool{}}
}

func (q *fakeQueue) Dequeue(ctx context.Context, consumer string, timeout time.Duration) (string, []byte, error) {
	return "", nil, nil
}

func (q *fakeQueue) EnqueueDelayed(ctx context.Context, payload []byte, executeAt time.Time) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.delayed = append(q.delayed, payload)
	return nil
}

func (q *fakeQueue) Ack(ctx context.Context, msgID string) error { return nil }

func (q *fakeQueue) AddDLQ(ctx context.Context, payload []byte, reason string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.dlq = append(q.dlq, reason)
	return nil
}

func (q *fakeQueue) IsCancelled(ctx context.Context, jobID string) (bool, error) {
	return q.cancelled[jobID], nil
}

func (q *fakeQueue) IsIdemDone(ctx context.Context, key string) (bool, error) {
	return q.idemDone[key], nil
}

func (q *fakeQueue) MarkIdemDone(ctx context.Context, key string, ttl time.Duration) error {
	q.idemDone[key] = true
	return nil
}

type fakeStatus struct {
	mu sync.Mutex
	m  map[string]store.Status
}

func newFakeStatus() *fakeStatus { return &fakeStatus{m: map[string]store.Status{}} }

func (s *fakeStatus) Set(ctx context.Context, jobID string, st store.Status) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.m[jobID] = st
	return nil
}

func (s *fakeStatus) Get(ctx context.Context, jobID string) (store.Status, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.m[jobID]
	return st, ok, nil
}

func TestIsInputError(t *testing.T) {
	assert.True(t, isInputError(&InputError{Reason: "no title"}))
	assert.True(t, isInputError(fmt.Errorf("wrap: %w", export.ErrNoContent)))

	var probe map[string]any
	jsonErr := json.Unmarshal([]byte("{not json"), &probe)
	require.Error(t, jsonErr)
	assert.True(t, isInputError(jsonErr))

	assert.True(t, isInputError(errors.New(`unknown block type "wobble"`)))
	assert.False(t, isInputError(errors.New("redis: connection refused")))
	assert.False(t, isInputError(nil))
}

func TestIsTimeoutError(t *testing.T) {
	assert.True(t, isTimeoutError(context.DeadlineExceeded))
	assert.True(t, isTimeoutError(errors.New("dial tcp: i/o timeout")))
	assert.False(t, isTimeoutError(errors.New("boom")))
}

func TestBackoffGrows(t *testing.T) {
	w := New(Config{RetryBaseDelay: 2 * time.Second, RetryBackoffFactor: 2.0, RetryJitter: 0}, newFakeQueue(), newFakeStatus(), nil, nil, nil, nil)
	assert.Equal(t, 2*time.Second, w.backoff(1))
	assert.Equal(t, 4*time.Second, w.backoff(2))
	assert.Equal(t, 8*time.Second, w.backoff(3))
}

func TestProgressPercent(t *testing.T) {
	assert.Equal(t, 10, progressPercent("prepare", 1, 1))
	assert.Equal(t, 50, progressPercent("render", 3, 6))
	assert.Equal(t, 90, progressPercent("render", 6, 6))
	assert.Equal(t, 95, progressPercent("package", 1, 1))
}

func TestFailTransientSchedulesRetry(t *testing.T) {
	q := newFakeQueue()
	st := newFakeStatus()
	w := New(Config{MaxAttempts: 3, RetryBaseDelay: time.Second, RetryJitter: 0}, q, st, nil, nil, nil, nil)

	job := Job{JobID: "j1", Worksheet: json.RawMessage(`{"id":"d1"}`), Attempt: 1}
	raw, _ := json.Marshal(job)
	w.fail(context.Background(), job, raw, errors.New("redis: connection reset"))

	require.Len(t, q.delayed, 1)
	assert.Empty(t, q.dlq)

	var requeued Job
	require.NoError(t, json.Unmarshal(q.delayed[0], &requeued))
	assert.Equal(t, 2, requeued.Attempt)

	got, ok, _ := st.Get(context.Background(), "j1")
	require.True(t, ok)
	assert.Equal(t, "processing", got.Status)
	assert.Equal(t, "retry", got.Phase)
}

func TestFailAfterMaxAttemptsGoesToDLQ(t *testing.T) {
	q := newFakeQueue()
	st := newFakeStatus()
	w := New(Config{MaxAttempts: 3}, q, st, nil, nil, nil, nil)

	job := Job{JobID: "j2", Worksheet: json.RawMessage(`{"id":"d2"}`), Attempt: 3}
	raw, _ := json.Marshal(job)
	w.fail(context.Background(), job, raw, errors.New("font table corrupt"))

	assert.Empty(t, q.delayed)
	require.Len(t, q.dlq, 1)

	got, ok, _ := st.Get(context.Background(), "j2")
	require.True(t, ok)
	assert.Equal(t, "failed", got.Status)
	assert.NotNil(t, got.End)
}

func TestFailInputGoesStraightToDLQ(t *testing.T) {
	q := newFakeQueue()
	st := newFakeStatus()
	w := New(Config{MaxAttempts: 3}, q, st, nil, nil, nil, nil)

	job := Job{JobID: "j3", Attempt: 1}
	raw, _ := json.Marshal(job)
	w.fail(context.Background(), job, raw, &InputError{Reason: "worksheet empty"})

	assert.Empty(t, q.delayed, "input errors must not retry")
	require.Len(t, q.dlq, 1)
	assert.Contains(t, q.dlq[0], "worksheet empty")
}

func TestProcessMalformedPayload(t *testing.T) {
	q := newFakeQueue()
	st := newFakeStatus()
	archives, err := storage.NewLocalStore(t.TempDir())
	require.NoError(t, err)
	w := New(Config{}, q, st, export.New(nil, nil, 1), nil, archives, nil)

	w.process("1-0", []byte("{broken"))
	require.Len(t, q.dlq, 1)
	assert.Equal(t, "malformed payload", q.dlq[0])
}
