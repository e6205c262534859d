// Package queue provides a uniform enqueue/dequeue/ack abstraction over the
// named durable queues (jobs, results) so gateway, worker and reconciler code
// stays queue-implementation-agnostic. The adapter adds no semantics beyond
// what the backing queue guarantees: at-least-once delivery, no cross-producer
// ordering, and a single visibility-timeout window per delivery.
package queue

import (
	"context"
	"errors"
	"time"
)

// ErrUnknownReceipt is returned by Ack and ExtendVisibility when the receipt
// no longer identifies an in-flight delivery, typically because the
// visibility timeout already elapsed and the message was redelivered.
var ErrUnknownReceipt = errors.New("queue: unknown or expired receipt handle")

// Message is a single delivery of a queued payload. Receipt identifies this
// delivery (not the message) and is what Ack and ExtendVisibility consume.
// DeliveryCount is 1 on first delivery and grows on each redelivery; consumers
// use it to bound retries of messages that keep failing.
type Message struct {
	ID            string
	Body          []byte
	Receipt       string
	DeliveryCount int
}

// Queue is the adapter contract over a durable at-least-once queue service.
type Queue interface {
	// Enqueue appends a payload to the named queue and returns its message ID.
	Enqueue(ctx context.Context, queue string, body []byte) (string, error)

	// Dequeue claims up to maxMessages messages. Claimed messages are hidden
	// from other consumers for the visibility duration; a message that is not
	// acked within that window becomes eligible for redelivery. Returns an
	// empty slice when the queue has no visible messages.
	Dequeue(ctx context.Context, queue string, maxMessages int, visibility time.Duration) ([]Message, error)

	// Ack deletes the message behind the receipt handle. Only acked messages
	// are gone for good; everything else eventually comes back.
	Ack(ctx context.Context, queue string, receipt string) error

	// ExtendVisibility pushes the redelivery deadline of an in-flight message
	// further out, for jobs whose processing outlives the original window.
	ExtendVisibility(ctx context.Context, queue string, receipt string, d time.Duration) error
}
