//go:build integration

package integration

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/passadis/azure-a2a-translation/internal/queue"
)

func newQueue(t *testing.T) *queue.RedisQueue {
	t.Helper()
	client := queue.NewClient(testRedisAddr)
	t.Cleanup(func() { _ = client.Close() })
	q := queue.NewRedisQueue(client)
	require.NoError(t, q.Ping(context.Background()))
	return q
}

func TestQueue_EnqueueDequeueAck(t *testing.T) {
	q := newQueue(t)
	ctx := context.Background()
	name := "itest-basic"

	id, err := q.Enqueue(ctx, name, []byte(`{"task_id":"t1"}`))
	require.NoError(t, err)
	require.NotEmpty(t, id)

	msgs, err := q.Dequeue(ctx, name, 1, time.Minute)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, id, msgs[0].ID)
	assert.Equal(t, []byte(`{"task_id":"t1"}`), msgs[0].Body)
	assert.Equal(t, 1, msgs[0].DeliveryCount)

	require.NoError(t, q.Ack(ctx, name, msgs[0].Receipt))

	// Acked messages are gone for good.
	again, err := q.Dequeue(ctx, name, 1, time.Minute)
	require.NoError(t, err)
	assert.Empty(t, again)
}

func TestQueue_FIFOAcrossBatch(t *testing.T) {
	q := newQueue(t)
	ctx := context.Background()
	name := "itest-fifo"

	first, err := q.Enqueue(ctx, name, []byte("first"))
	require.NoError(t, err)
	second, err := q.Enqueue(ctx, name, []byte("second"))
	require.NoError(t, err)

	msgs, err := q.Dequeue(ctx, name, 10, time.Minute)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, first, msgs[0].ID)
	assert.Equal(t, second, msgs[1].ID)
}

func TestQueue_InvisibleWhileClaimed(t *testing.T) {
	q := newQueue(t)
	ctx := context.Background()
	name := "itest-claimed"

	_, err := q.Enqueue(ctx, name, []byte("x"))
	require.NoError(t, err)

	msgs, err := q.Dequeue(ctx, name, 1, time.Minute)
	require.NoError(t, err)
	require.Len(t, msgs, 1)

	// A second consumer must see nothing while the claim holds.
	other, err := q.Dequeue(ctx, name, 1, time.Minute)
	require.NoError(t, err)
	assert.Empty(t, other)
}

func TestQueue_RedeliveryAfterVisibilityTimeout(t *testing.T) {
	q := newQueue(t)
	ctx := context.Background()
	name := "itest-redelivery"

	id, err := q.Enqueue(ctx, name, []byte("x"))
	require.NoError(t, err)

	msgs, err := q.Dequeue(ctx, name, 1, 100*time.Millisecond)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	firstReceipt := msgs[0].Receipt

	time.Sleep(200 * time.Millisecond)

	redelivered, err := q.Dequeue(ctx, name, 1, time.Minute)
	require.NoError(t, err)
	require.Len(t, redelivered, 1)
	assert.Equal(t, id, redelivered[0].ID)
	assert.Equal(t, 2, redelivered[0].DeliveryCount, "delivery count must grow on redelivery")
	assert.NotEqual(t, firstReceipt, redelivered[0].Receipt, "each delivery gets its own receipt")

	// The receipt from the expired claim is dead.
	assert.ErrorIs(t, q.Ack(ctx, name, firstReceipt), queue.ErrUnknownReceipt)
}

func TestQueue_ExtendVisibilityDefersRedelivery(t *testing.T) {
	q := newQueue(t)
	ctx := context.Background()
	name := "itest-extend"

	_, err := q.Enqueue(ctx, name, []byte("x"))
	require.NoError(t, err)

	msgs, err := q.Dequeue(ctx, name, 1, 200*time.Millisecond)
	require.NoError(t, err)
	require.Len(t, msgs, 1)

	require.NoError(t, q.ExtendVisibility(ctx, name, msgs[0].Receipt, time.Minute))
	time.Sleep(300 * time.Millisecond)

	// Without the extension this would be redelivered by now.
	other, err := q.Dequeue(ctx, name, 1, time.Minute)
	require.NoError(t, err)
	assert.Empty(t, other)

	require.NoError(t, q.Ack(ctx, name, msgs[0].Receipt))
}

func TestQueue_ExtendUnknownReceipt(t *testing.T) {
	q := newQueue(t)

	err := q.ExtendVisibility(context.Background(), "itest-extend-unknown", "no-such-receipt", time.Minute)
	assert.ErrorIs(t, err, queue.ErrUnknownReceipt)
}

func TestQueue_Len(t *testing.T) {
	q := newQueue(t)
	ctx := context.Background()
	name := "itest-len"

	for i := 0; i < 3; i++ {
		_, err := q.Enqueue(ctx, name, []byte("x"))
		require.NoError(t, err)
	}

	n, err := q.Len(ctx, name)
	require.NoError(t, err)
	assert.EqualValues(t, 3, n)

	_, err = q.Dequeue(ctx, name, 2, time.Minute)
	require.NoError(t, err)

	n, err = q.Len(ctx, name)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n, "claimed messages are not visible")
}
