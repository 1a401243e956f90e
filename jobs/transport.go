package jobs

import (
	"context"

	"github.com/sdcpainting/referral_site/models"
)

// Transport moves envelopes between the dispatcher and workers. Delivery is
// at-least-once: a popped envelope that is never acked may be delivered
// again. Order is FIFO within a job name only.
type Transport interface {
	Push(ctx context.Context, env models.JobEnvelope) error
	// Pop blocks until an envelope is available or ctx is done.
	Pop(ctx context.Context) (*models.JobEnvelope, error)
	Ack(ctx context.Context, id string) error
	// Release hands an unacked envelope back for immediate redelivery.
	Release(ctx context.Context, id string) error
	// Pending lists every envelope not yet acked, in flight or waiting.
	Pending(ctx context.Context) ([]models.JobEnvelope, error)
}
