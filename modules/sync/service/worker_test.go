package service

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"testing"
	"time"

	"seva-signup/core/config"
	"seva-signup/core/queue"
	eventent "seva-signup/modules/event/entity"
	signupent "seva-signup/modules/signup/entity"
	"seva-signup/modules/sync/entity"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

type memLedger struct {
	mu      sync.Mutex
	entries map[string]*entity.LedgerEntry
	pending []entity.PendingSync
}

func newMemLedger() *memLedger {
	return &memLedger{entries: make(map[string]*entity.LedgerEntry)}
}

func ledgerKey(id uuid.UUID, kind queue.JobKind) string {
	return id.String() + "|" + string(kind)
}

func (l *memLedger) Get(ctx context.Context, signupID uuid.UUID, kind queue.JobKind) (*entity.LedgerEntry, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	e, ok := l.entries[ledgerKey(signupID, kind)]
	if !ok {
		return nil, nil
	}
	cp := *e
	return &cp, nil
}

func (l *memLedger) UpsertSuccess(ctx context.Context, signupID uuid.UUID, kind queue.JobKind, externalRef string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries[ledgerKey(signupID, kind)] = &entity.LedgerEntry{
		SignupID:    signupID,
		Kind:        kind,
		Status:      entity.SyncSuccess,
		ExternalRef: sql.NullString{String: externalRef, Valid: externalRef != ""},
		SyncedAt:    sql.NullTime{Time: time.Now(), Valid: true},
	}
	return nil
}

func (l *memLedger) UpsertFailure(ctx context.Context, signupID uuid.UUID, kind queue.JobKind, lastError string, retryCount int) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries[ledgerKey(signupID, kind)] = &entity.LedgerEntry{
		SignupID:   signupID,
		Kind:       kind,
		Status:     entity.SyncFailed,
		LastError:  sql.NullString{String: lastError, Valid: true},
		RetryCount: retryCount,
	}
	return nil
}

func (l *memLedger) ListPending(ctx context.Context, grace time.Duration, limit int) ([]entity.PendingSync, error) {
	if len(l.pending) > limit {
		return l.pending[:limit], nil
	}
	return l.pending, nil
}

type fakeRoster struct {
	mu       sync.Mutex
	upserts  int
	cancels  int
	failures int // fail this many leading calls
	ref      string
}

func (r *fakeRoster) Upsert(ctx context.Context, d *signupent.SignupDetail) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.upserts++
	if r.upserts <= r.failures {
		return "", fmt.Errorf("sheets unavailable")
	}
	return r.ref, nil
}

func (r *fakeRoster) MarkCancelled(ctx context.Context, d *signupent.SignupDetail) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cancels++
	return nil
}

type fakeMailer struct {
	confirmations int
	cancellations int
	messageID     string
}

func (m *fakeMailer) SendConfirmation(ctx context.Context, d *signupent.SignupDetail) (string, error) {
	m.confirmations++
	return m.messageID, nil
}

func (m *fakeMailer) SendCancellation(ctx context.Context, d *signupent.SignupDetail) (string, error) {
	m.cancellations++
	return m.messageID, nil
}

type fakeSource struct {
	detail *signupent.SignupDetail
}

func (s *fakeSource) GetSignupDetail(ctx context.Context, signupID uuid.UUID) (*signupent.SignupDetail, error) {
	if s.detail == nil || s.detail.Signup.ID != signupID {
		return nil, nil
	}
	return s.detail, nil
}

func testDetail() *signupent.SignupDetail {
	d := &signupent.SignupDetail{}
	d.Signup.ID = uuid.New()
	d.Signup.Name = "Asha Patel"
	d.Signup.Email = "asha@example.org"
	d.Signup.Status = signupent.SignupConfirmed
	d.Slot.Capacity = 4
	d.Slot.FilledCount = 2
	d.Day.Date = time.Date(2026, 9, 12, 0, 0, 0, 0, time.UTC)
	d.Seva = eventent.SevaType{Name: "Kitchen"}
	d.Event.Name = "Fall Seva"
	d.Event.ShiftLabel = "5:30 PM - 9:00 PM"
	return d
}

type testClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *testClock) now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *testClock) advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

func testWorkerConfig() config.WorkerConfig {
	return config.WorkerConfig{
		MaxRetries:    2,
		LocalAttempts: 1,
		BackoffBase:   time.Millisecond,
		PollBatch:     5,
		PollWait:      0,
	}
}

func newTestWorker(q queue.Queue, ledger *memLedger, roster *fakeRoster, mailer *fakeMailer, detail *signupent.SignupDetail, cfg config.WorkerConfig) *Worker {
	return NewWorker(q, &fakeSource{detail: detail}, ledger, roster, mailer, cfg).
		WithSleep(func(ctx context.Context, d time.Duration) {})
}

// drain polls and processes until the queue is empty, advancing the clock
// past the visibility window between rounds. Returns deliveries handled.
func drain(t *testing.T, w *Worker, q *queue.MemoryQueue, clock *testClock, visibility time.Duration) int {
	t.Helper()
	handled := 0
	for round := 0; round < 50; round++ {
		msgs, err := q.Poll(context.Background(), 10, 0)
		require.NoError(t, err)
		for _, msg := range msgs {
			w.Process(context.Background(), msg)
			handled++
		}
		if q.Pending() == 0 {
			return handled
		}
		clock.advance(visibility + time.Second)
	}
	t.Fatal("queue never drained")
	return handled
}

func TestProcessAppliesEffectOnceAcrossDuplicates(t *testing.T) {
	clock := &testClock{t: time.Now()}
	visibility := 30 * time.Second
	q := queue.NewMemoryQueue(visibility).WithClock(clock.now)
	ledger := newMemLedger()
	roster := &fakeRoster{ref: "sheet-1#7"}
	detail := testDetail()
	w := newTestWorker(q, ledger, roster, &fakeMailer{}, detail, testWorkerConfig())

	job := queue.Job{Kind: queue.KindUpsertExternalRecord, SignupID: detail.Signup.ID}

	// The reconciliation sweep can enqueue a job that already ran; the
	// second delivery must short-circuit on the ledger.
	for i := 0; i < 3; i++ {
		_, err := q.Enqueue(context.Background(), job)
		require.NoError(t, err)
	}
	drain(t, w, q, clock, visibility)

	require.Equal(t, 1, roster.upserts)
	entry, err := ledger.Get(context.Background(), detail.Signup.ID, queue.KindUpsertExternalRecord)
	require.NoError(t, err)
	require.NotNil(t, entry)
	require.Equal(t, entity.SyncSuccess, entry.Status)
	require.Equal(t, "sheet-1#7", entry.ExternalRef.String)
	require.Empty(t, q.DeadLetters())
}

func TestProcessEscalatesAfterBoundedRetries(t *testing.T) {
	clock := &testClock{t: time.Now()}
	visibility := 30 * time.Second
	q := queue.NewMemoryQueue(visibility).WithClock(clock.now)
	ledger := newMemLedger()
	roster := &fakeRoster{failures: 1000}
	detail := testDetail()
	cfg := testWorkerConfig()
	w := newTestWorker(q, ledger, roster, &fakeMailer{}, detail, cfg)

	_, err := q.Enqueue(context.Background(), queue.Job{Kind: queue.KindUpsertExternalRecord, SignupID: detail.Signup.ID})
	require.NoError(t, err)

	handled := drain(t, w, q, clock, visibility)

	// Deliveries 1..MaxRetries leave the message for redelivery; the next
	// one escalates and acknowledges.
	require.Equal(t, cfg.MaxRetries+1, handled)

	dead := q.DeadLetters()
	require.Len(t, dead, 1)
	require.Equal(t, queue.KindUpsertExternalRecord, dead[0].Job.Kind)

	entry, err := ledger.Get(context.Background(), detail.Signup.ID, queue.KindUpsertExternalRecord)
	require.NoError(t, err)
	require.NotNil(t, entry)
	require.Equal(t, entity.SyncFailed, entry.Status)
	require.Equal(t, cfg.MaxRetries, entry.RetryCount)
	require.True(t, entry.LastError.Valid)
}

func TestProcessShortCircuitsOnLedgerSuccess(t *testing.T) {
	clock := &testClock{t: time.Now()}
	q := queue.NewMemoryQueue(30 * time.Second).WithClock(clock.now)
	ledger := newMemLedger()
	roster := &fakeRoster{ref: "sheet-1#3"}
	detail := testDetail()
	w := newTestWorker(q, ledger, roster, &fakeMailer{}, detail, testWorkerConfig())

	require.NoError(t, ledger.UpsertSuccess(context.Background(), detail.Signup.ID, queue.KindUpsertExternalRecord, "sheet-1#3"))

	_, err := q.Enqueue(context.Background(), queue.Job{Kind: queue.KindUpsertExternalRecord, SignupID: detail.Signup.ID})
	require.NoError(t, err)
	msgs, err := q.Poll(context.Background(), 1, 0)
	require.NoError(t, err)
	require.Len(t, msgs, 1)

	w.Process(context.Background(), msgs[0])

	require.Equal(t, 0, roster.upserts)
	require.Equal(t, 0, q.Pending())
}

func TestProcessParksInvalidJob(t *testing.T) {
	clock := &testClock{t: time.Now()}
	q := queue.NewMemoryQueue(30 * time.Second).WithClock(clock.now)
	ledger := newMemLedger()
	detail := testDetail()
	w := newTestWorker(q, ledger, &fakeRoster{}, &fakeMailer{}, detail, testWorkerConfig())

	_, err := q.Enqueue(context.Background(), queue.Job{Kind: "REFORMAT_DISK", SignupID: detail.Signup.ID})
	require.NoError(t, err)
	msgs, err := q.Poll(context.Background(), 1, 0)
	require.NoError(t, err)
	require.Len(t, msgs, 1)

	w.Process(context.Background(), msgs[0])

	require.Len(t, q.DeadLetters(), 1)
	require.Equal(t, 0, q.Pending())
	require.Empty(t, ledger.entries)
}

func TestProcessRecordsMailerMessageID(t *testing.T) {
	clock := &testClock{t: time.Now()}
	q := queue.NewMemoryQueue(30 * time.Second).WithClock(clock.now)
	ledger := newMemLedger()
	mailer := &fakeMailer{messageID: "ses-0123"}
	detail := testDetail()
	w := newTestWorker(q, ledger, &fakeRoster{}, mailer, detail, testWorkerConfig())

	_, err := q.Enqueue(context.Background(), queue.Job{Kind: queue.KindSendConfirmation, SignupID: detail.Signup.ID})
	require.NoError(t, err)
	msgs, err := q.Poll(context.Background(), 1, 0)
	require.NoError(t, err)

	w.Process(context.Background(), msgs[0])

	require.Equal(t, 1, mailer.confirmations)
	entry, err := ledger.Get(context.Background(), detail.Signup.ID, queue.KindSendConfirmation)
	require.NoError(t, err)
	require.NotNil(t, entry)
	require.Equal(t, entity.SyncSuccess, entry.Status)
	require.Equal(t, "ses-0123", entry.ExternalRef.String)
}

func TestLocalRetriesRecoverFromTransientFailure(t *testing.T) {
	clock := &testClock{t: time.Now()}
	q := queue.NewMemoryQueue(30 * time.Second).WithClock(clock.now)
	ledger := newMemLedger()
	roster := &fakeRoster{failures: 2, ref: "sheet-1#9"}
	detail := testDetail()
	cfg := testWorkerConfig()
	cfg.LocalAttempts = 3

	var slept []time.Duration
	w := NewWorker(q, &fakeSource{detail: detail}, ledger, roster, &fakeMailer{}, cfg).
		WithSleep(func(ctx context.Context, d time.Duration) { slept = append(slept, d) })

	_, err := q.Enqueue(context.Background(), queue.Job{Kind: queue.KindUpsertExternalRecord, SignupID: detail.Signup.ID})
	require.NoError(t, err)
	msgs, err := q.Poll(context.Background(), 1, 0)
	require.NoError(t, err)

	w.Process(context.Background(), msgs[0])

	require.Equal(t, 3, roster.upserts)
	require.Equal(t, []time.Duration{cfg.BackoffBase, 2 * cfg.BackoffBase}, slept)
	require.Equal(t, 0, q.Pending())
	entry, err := ledger.Get(context.Background(), detail.Signup.ID, queue.KindUpsertExternalRecord)
	require.NoError(t, err)
	require.Equal(t, entity.SyncSuccess, entry.Status)
}

// blockingRoster parks Upsert until released, to hold a handler in flight.
type blockingRoster struct {
	started chan struct{}
	release chan struct{}
	ref     string
	upserts int
}

func (r *blockingRoster) Upsert(ctx context.Context, d *signupent.SignupDetail) (string, error) {
	r.upserts++
	close(r.started)
	<-r.release
	return r.ref, nil
}

func (r *blockingRoster) MarkCancelled(ctx context.Context, d *signupent.SignupDetail) error {
	return nil
}

func TestShutdownLetsInFlightHandlerFinish(t *testing.T) {
	clock := &testClock{t: time.Now()}
	q := queue.NewMemoryQueue(30 * time.Second).WithClock(clock.now)
	ledger := newMemLedger()
	roster := &blockingRoster{
		started: make(chan struct{}),
		release: make(chan struct{}),
		ref:     "sheet-1#4",
	}
	detail := testDetail()
	w := NewWorker(q, &fakeSource{detail: detail}, ledger, roster, &fakeMailer{}, testWorkerConfig()).
		WithSleep(func(ctx context.Context, d time.Duration) {})

	_, err := q.Enqueue(context.Background(), queue.Job{Kind: queue.KindUpsertExternalRecord, SignupID: detail.Signup.ID})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		w.Run(ctx)
		close(done)
	}()

	// Cancel while the handler holds the message, then let it finish.
	<-roster.started
	cancel()
	close(roster.release)

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancellation")
	}

	require.Equal(t, 1, roster.upserts)
	require.Equal(t, 0, q.Pending())
	entry, err := ledger.Get(context.Background(), detail.Signup.ID, queue.KindUpsertExternalRecord)
	require.NoError(t, err)
	require.NotNil(t, entry)
	require.Equal(t, entity.SyncSuccess, entry.Status)
}

func TestWorkerAlwaysAttemptsAtLeastOnce(t *testing.T) {
	clock := &testClock{t: time.Now()}
	q := queue.NewMemoryQueue(30 * time.Second).WithClock(clock.now)
	ledger := newMemLedger()
	roster := &fakeRoster{ref: "sheet-1#5"}
	detail := testDetail()
	cfg := testWorkerConfig()
	cfg.LocalAttempts = 0
	w := newTestWorker(q, ledger, roster, &fakeMailer{}, detail, cfg)

	_, err := q.Enqueue(context.Background(), queue.Job{Kind: queue.KindUpsertExternalRecord, SignupID: detail.Signup.ID})
	require.NoError(t, err)
	msgs, err := q.Poll(context.Background(), 1, 0)
	require.NoError(t, err)
	require.Len(t, msgs, 1)

	w.Process(context.Background(), msgs[0])

	// Success may only be recorded once the side effect actually ran.
	require.Equal(t, 1, roster.upserts)
	entry, err := ledger.Get(context.Background(), detail.Signup.ID, queue.KindUpsertExternalRecord)
	require.NoError(t, err)
	require.NotNil(t, entry)
	require.Equal(t, entity.SyncSuccess, entry.Status)
	require.Equal(t, "sheet-1#5", entry.ExternalRef.String)
}

func TestReconcilerReenqueuesPendingWork(t *testing.T) {
	clock := &testClock{t: time.Now()}
	q := queue.NewMemoryQueue(30 * time.Second).WithClock(clock.now)
	ledger := newMemLedger()
	id1, id2 := uuid.New(), uuid.New()
	ledger.pending = []entity.PendingSync{
		{SignupID: id1, Kind: queue.KindUpsertExternalRecord},
		{SignupID: id1, Kind: queue.KindSendConfirmation},
		{SignupID: id2, Kind: queue.KindMarkExternalCancelled},
	}

	r := NewReconciler(ledger, q, 10*time.Minute)
	n, err := r.Sweep(context.Background())
	require.NoError(t, err)
	require.Equal(t, 3, n)
	require.Equal(t, 3, q.Pending())
}
