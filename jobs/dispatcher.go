package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/sdcpainting/referral_site/models"
)

// Enqueuer is what request-path code depends on.
type Enqueuer interface {
	Enqueue(ctx context.Context, job Job) (string, error)
}

type Dispatcher struct {
	transport Transport
	log       *zap.Logger
	now       func() time.Time
}

func NewDispatcher(transport Transport, log *zap.Logger) *Dispatcher {
	return &Dispatcher{
		transport: transport,
		log:       log,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Enqueue wraps job in an envelope and pushes it. It returns as soon as the
// transport has accepted the envelope.
func (d *Dispatcher) Enqueue(ctx context.Context, job Job) (string, error) {
	payload, err := json.Marshal(job)
	if err != nil {
		return "", fmt.Errorf("encode %s: %w", job.Kind(), err)
	}

	env := models.JobEnvelope{
		ID:         uuid.NewString(),
		JobName:    string(job.Kind()),
		Payload:    payload,
		EnqueuedAt: d.now(),
	}
	if err := d.transport.Push(ctx, env); err != nil {
		return "", fmt.Errorf("enqueue %s: %w", job.Kind(), err)
	}

	d.log.Debug("job enqueued", zap.String("job_id", env.ID), zap.String("job_name", env.JobName))
	return env.ID, nil
}
