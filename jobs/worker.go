package jobs

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/sdcpainting/referral_site/models"
	"github.com/sdcpainting/referral_site/store"
)

var ErrNoHandler = errors.New("no handler registered")

// Handlers has one field per job kind; dispatch switches over the kinds, so
// adding a kind without a handler fails loudly instead of being skipped.
type Handlers struct {
	SendEmail    func(ctx context.Context, job SendEmail) error
	ProcessMedia func(ctx context.Context, job ProcessMedia) error
}

type RetryPolicy struct {
	MaxAttempts     int
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: 3, InitialInterval: 2 * time.Second, MaxInterval: 30 * time.Second}
}

// Outcome describes what happened to one delivery.
type Outcome struct {
	JobID        string
	Attempts     int
	Delivered    bool
	DeadLettered bool
	Reason       string
}

type Worker struct {
	transport   Transport
	handlers    Handlers
	deadLetters store.Collection[*models.DeadLetter]
	policy      RetryPolicy
	log         *zap.Logger
	now         func() time.Time

	// OnDeadLetter, when set, is called after a dead letter is recorded.
	OnDeadLetter func(dl *models.DeadLetter)
}

func NewWorker(transport Transport, handlers Handlers, deadLetters store.Collection[*models.DeadLetter], policy RetryPolicy, log *zap.Logger) *Worker {
	if policy.MaxAttempts < 1 {
		policy.MaxAttempts = 1
	}
	return &Worker{
		transport:   transport,
		handlers:    handlers,
		deadLetters: deadLetters,
		policy:      policy,
		log:         log,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// Run processes jobs until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) error {
	w.log.Info("worker started", zap.Int("max_attempts", w.policy.MaxAttempts))
	for {
		env, err := w.transport.Pop(ctx)
		if err != nil {
			if ctx.Err() != nil {
				w.log.Info("worker stopped")
				return nil
			}
			w.log.Error("pop failed", zap.Error(err))
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(time.Second):
			}
			continue
		}
		w.Process(ctx, *env)
	}
}

// Process runs one delivery to completion: success, dead letter, or (when
// ctx is cancelled mid-retry or the dead letter cannot be written) released
// back to the transport for redelivery.
func (w *Worker) Process(ctx context.Context, env models.JobEnvelope) Outcome {
	log := w.log.With(zap.String("job_id", env.ID), zap.String("job_name", env.JobName))
	out := Outcome{JobID: env.ID}

	job, err := Decode(env)
	if err != nil {
		return w.deadLetter(ctx, env, out, err, log)
	}

	operation := func() error {
		out.Attempts++
		err := w.dispatch(ctx, job)
		if err == nil {
			return nil
		}
		log.Warn("job attempt failed", zap.Int("attempt", out.Attempts), zap.Error(err))
		if IsPermanent(err) {
			return backoff.Permanent(err)
		}
		return err
	}

	err = backoff.Retry(operation, backoff.WithContext(w.backOff(), ctx))
	if err == nil {
		if ackErr := w.transport.Ack(ctx, env.ID); ackErr != nil {
			log.Error("ack failed", zap.Error(ackErr))
		}
		out.Delivered = true
		log.Info("job delivered", zap.Int("attempts", out.Attempts))
		return out
	}

	if ctx.Err() != nil && !IsPermanent(err) {
		log.Warn("job interrupted, releasing for redelivery", zap.Error(err))
		out.Reason = err.Error()
		w.release(ctx, env.ID, log)
		return out
	}
	return w.deadLetter(ctx, env, out, err, log)
}

func (w *Worker) dispatch(ctx context.Context, job Job) error {
	switch j := job.(type) {
	case SendEmail:
		if w.handlers.SendEmail == nil {
			return Permanent(fmt.Errorf("%w: %s", ErrNoHandler, j.Kind()))
		}
		return w.handlers.SendEmail(ctx, j)
	case ProcessMedia:
		if w.handlers.ProcessMedia == nil {
			return Permanent(fmt.Errorf("%w: %s", ErrNoHandler, j.Kind()))
		}
		return w.handlers.ProcessMedia(ctx, j)
	default:
		return Permanent(fmt.Errorf("%w: %T", ErrUnknownKind, job))
	}
}

func (w *Worker) backOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = w.policy.InitialInterval
	b.MaxInterval = w.policy.MaxInterval
	b.Multiplier = 2
	b.MaxElapsedTime = 0
	return backoff.WithMaxRetries(b, uint64(w.policy.MaxAttempts-1))
}

func (w *Worker) release(ctx context.Context, id string, log *zap.Logger) {
	releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	if err := w.transport.Release(releaseCtx, id); err != nil {
		log.Error("release failed", zap.Error(err))
	}
}

// deadLetter records the failure before acking. If the record cannot be
// written the envelope is released so it is delivered again rather than
// lost.
func (w *Worker) deadLetter(ctx context.Context, env models.JobEnvelope, out Outcome, cause error, log *zap.Logger) Outcome {
	out.Reason = cause.Error()

	// Recording must not be skipped because the run context was cancelled.
	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()

	dl := &models.DeadLetter{
		Base:     models.Base{ID: uuid.NewString()},
		Envelope: env,
		Attempts: out.Attempts,
		Reason:   out.Reason,
		FailedAt: w.now(),
	}
	if err := w.deadLetters.Insert(writeCtx, dl); err != nil {
		log.Error("dead-letter write failed, releasing for redelivery", zap.Error(err), zap.String("reason", out.Reason))
		w.release(writeCtx, env.ID, log)
		return out
	}
	if err := w.transport.Ack(writeCtx, env.ID); err != nil {
		log.Error("ack after dead-letter failed", zap.Error(err))
	}

	out.DeadLettered = true
	if w.OnDeadLetter != nil {
		w.OnDeadLetter(dl)
	}
	log.Error("job dead-lettered",
		zap.String("dead_letter_id", dl.ID),
		zap.Int("attempts", out.Attempts),
		zap.String("reason", out.Reason),
	)
	return out
}

var ErrAlreadyRequeued = errors.New("dead letter already requeued")

// Requeue pushes a dead letter's envelope back onto the queue and stamps it
// so it cannot be requeued twice.
func Requeue(ctx context.Context, deadLetters store.Collection[*models.DeadLetter], transport Transport, id string) (string, error) {
	dl, err := deadLetters.Get(ctx, id)
	if err != nil {
		return "", err
	}
	if dl.RequeuedAt != nil {
		return "", ErrAlreadyRequeued
	}

	now := time.Now().UTC()
	dl.RequeuedAt = &now
	if err := deadLetters.CompareAndSwap(ctx, dl); err != nil {
		if errors.Is(err, store.ErrConflict) {
			return "", ErrAlreadyRequeued
		}
		return "", err
	}

	env := dl.Envelope
	env.ID = uuid.NewString()
	env.Attempts = 0
	env.EnqueuedAt = now
	if err := transport.Push(ctx, env); err != nil {
		// Release the claim so the dead letter stays listed and can be retried.
		dl.RequeuedAt = nil
		if relErr := deadLetters.CompareAndSwap(context.WithoutCancel(ctx), dl); relErr != nil {
			return "", fmt.Errorf("requeue %s: %w (release claim: %v)", id, err, relErr)
		}
		return "", fmt.Errorf("requeue %s: %w", id, err)
	}
	return env.ID, nil
}
