package conversation

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryQueue is an unbounded in-process FIFO queueClient. Send never blocks
// beyond transient lock contention, which keeps the webhook boundary fast at
// the cost of backpressure; a bounded queue is the production hardening.
type MemoryQueue struct {
	mu     sync.Mutex
	items  []queueMessage
	signal chan struct{}
}

// NewMemoryQueue creates an empty unbounded queue.
func NewMemoryQueue() *MemoryQueue {
	return &MemoryQueue{
		signal: make(chan struct{}, 1),
	}
}

// Send enqueues a payload. It never fails and never blocks on consumers.
func (q *MemoryQueue) Send(_ context.Context, body string) error {
	msg := queueMessage{
		ID:            uuid.NewString(),
		Body:          body,
		ReceiptHandle: uuid.NewString(),
	}

	q.mu.Lock()
	q.items = append(q.items, msg)
	q.mu.Unlock()

	select {
	case q.signal <- struct{}{}:
	default:
	}
	return nil
}

// Receive returns up to maxMessages envelopes in FIFO order, blocking until
// at least one is available, ctx is done, or waitSeconds elapses.
func (q *MemoryQueue) Receive(ctx context.Context, maxMessages int, waitSeconds int) ([]queueMessage, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if maxMessages <= 0 {
		maxMessages = 1
	}

	var timeout <-chan time.Time
	if waitSeconds > 0 {
		timer := time.NewTimer(time.Duration(waitSeconds) * time.Second)
		defer timer.Stop()
		timeout = timer.C
	}

	for {
		if batch := q.take(maxMessages); len(batch) > 0 {
			return batch, nil
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-timeout:
			return nil, nil
		case <-q.signal:
		}
	}
}

// Delete is a no-op for the in-memory queue.
func (q *MemoryQueue) Delete(_ context.Context, _ string) error {
	return nil
}

// Len reports the number of queued envelopes.
func (q *MemoryQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

func (q *MemoryQueue) take(max int) []queueMessage {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.items) == 0 {
		return nil
	}
	if max > len(q.items) {
		max = len(q.items)
	}

	batch := make([]queueMessage, max)
	copy(batch, q.items[:max])
	q.items = q.items[max:]

	// More items may remain; keep the signal armed for the next Receive.
	if len(q.items) > 0 {
		select {
		case q.signal <- struct{}{}:
		default:
		}
	}
	return batch
}

var _ queueClient = (*MemoryQueue)(nil)
