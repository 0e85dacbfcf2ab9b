package queue

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestDeliveryCountStartsAtOne(t *testing.T) {
	// Pins the transport contract: the first delivery carries count 1, so
	// retryAttempt = deliveryCount - 1 is zero on first processing.
	now := time.Unix(1000, 0)
	q := NewMemoryQueue(30 * time.Second).WithClock(func() time.Time { return now })
	ctx := context.Background()

	_, err := q.Enqueue(ctx, Job{Kind: KindSendConfirmation, SignupID: uuid.New()})
	require.NoError(t, err)

	msgs, err := q.Poll(ctx, 10, 0)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	require.Equal(t, 1, msgs[0].DeliveryCount)
}

func TestRedeliveryAfterVisibilityWindow(t *testing.T) {
	now := time.Unix(1000, 0)
	q := NewMemoryQueue(30 * time.Second).WithClock(func() time.Time { return now })
	ctx := context.Background()

	_, err := q.Enqueue(ctx, Job{Kind: KindUpsertExternalRecord, SignupID: uuid.New()})
	require.NoError(t, err)

	msgs, err := q.Poll(ctx, 1, 0)
	require.NoError(t, err)
	require.Len(t, msgs, 1)

	// Still invisible inside the window.
	msgs, err = q.Poll(ctx, 1, 0)
	require.NoError(t, err)
	require.Empty(t, msgs)

	// Reappears after the window with an incremented delivery count.
	now = now.Add(31 * time.Second)
	msgs, err = q.Poll(ctx, 1, 0)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	require.Equal(t, 2, msgs[0].DeliveryCount)
}

func TestAcknowledgeStopsRedelivery(t *testing.T) {
	now := time.Unix(1000, 0)
	q := NewMemoryQueue(time.Second).WithClock(func() time.Time { return now })
	ctx := context.Background()

	_, err := q.Enqueue(ctx, Job{Kind: KindSendCancellation, SignupID: uuid.New()})
	require.NoError(t, err)

	msgs, err := q.Poll(ctx, 1, 0)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	require.NoError(t, q.Acknowledge(ctx, msgs[0].Handle))

	now = now.Add(time.Minute)
	msgs, err = q.Poll(ctx, 1, 0)
	require.NoError(t, err)
	require.Empty(t, msgs)
	require.Equal(t, 0, q.Pending())
}

func TestEscalateRecordsDeadLetter(t *testing.T) {
	q := NewMemoryQueue(time.Second)
	ctx := context.Background()
	id := uuid.New()

	require.NoError(t, q.Escalate(ctx, Job{Kind: KindMarkExternalCancelled, SignupID: id}, "boom"))

	dead := q.DeadLetters()
	require.Len(t, dead, 1)
	require.Equal(t, KindMarkExternalCancelled, dead[0].Job.Kind)
	require.Equal(t, id, dead[0].Job.SignupID)
	require.Equal(t, "boom", dead[0].Reason)
}

func TestJobKindValid(t *testing.T) {
	for _, k := range []JobKind{KindUpsertExternalRecord, KindMarkExternalCancelled, KindSendConfirmation, KindSendCancellation} {
		require.True(t, k.Valid(), string(k))
	}
	require.False(t, JobKind("SOMETHING_ELSE").Valid())
}
