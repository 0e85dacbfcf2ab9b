package queue

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// DeadLetter is an escalated job as it lands on the in-memory DLQ.
type DeadLetter struct {
	Job    Job
	Reason string
	At     time.Time
}

// MemoryQueue implements Queue in process, with the same visibility-window
// and delivery-count contract as SQS. Used by tests and local development.
type MemoryQueue struct {
	mu         sync.Mutex
	visibility time.Duration
	now        func() time.Time
	nextID     int
	items      map[string]*memItem
	dead       []DeadLetter
}

type memItem struct {
	job           Job
	deliveryCount int
	visibleAt     time.Time
	acked         bool
}

func NewMemoryQueue(visibility time.Duration) *MemoryQueue {
	return &MemoryQueue{
		visibility: visibility,
		now:        time.Now,
		items:      make(map[string]*memItem),
	}
}

// WithClock overrides the clock, for tests.
func (q *MemoryQueue) WithClock(now func() time.Time) *MemoryQueue {
	q.now = now
	return q
}

func (q *MemoryQueue) Enqueue(ctx context.Context, job Job) (string, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.nextID++
	id := fmt.Sprintf("mem-%d", q.nextID)
	q.items[id] = &memItem{job: job, visibleAt: q.now()}
	return id, nil
}

// Poll returns currently visible messages without blocking; wait is ignored
// beyond a zero-check since in-process delivery is immediate. Each delivery
// bumps the count and hides the message for the visibility window.
func (q *MemoryQueue) Poll(ctx context.Context, max int, wait time.Duration) ([]Message, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	now := q.now()
	var msgs []Message
	for id, it := range q.items {
		if len(msgs) >= max {
			break
		}
		if it.acked || now.Before(it.visibleAt) {
			continue
		}
		it.deliveryCount++
		it.visibleAt = now.Add(q.visibility)
		msgs = append(msgs, Message{
			Job:           it.job,
			Handle:        id,
			DeliveryCount: it.deliveryCount,
		})
	}
	return msgs, nil
}

func (q *MemoryQueue) Acknowledge(ctx context.Context, handle string) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	it, ok := q.items[handle]
	if !ok {
		return fmt.Errorf("unknown handle %q", handle)
	}
	it.acked = true
	return nil
}

func (q *MemoryQueue) Escalate(ctx context.Context, job Job, reason string) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.dead = append(q.dead, DeadLetter{Job: job, Reason: reason, At: q.now()})
	return nil
}

// DeadLetters returns a copy of the dead-letter channel contents.
func (q *MemoryQueue) DeadLetters() []DeadLetter {
	q.mu.Lock()
	defer q.mu.Unlock()

	out := make([]DeadLetter, len(q.dead))
	copy(out, q.dead)
	return out
}

// Pending reports how many messages are neither acknowledged nor escalated.
func (q *MemoryQueue) Pending() int {
	q.mu.Lock()
	defer q.mu.Unlock()

	n := 0
	for _, it := range q.items {
		if !it.acked {
			n++
		}
	}
	return n
}
