package jobs

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/sdcpainting/referral_site/models"
	"github.com/sdcpainting/referral_site/store"
)

// StoreTransport is a durable queue on top of the Record Store. Pop leases
// the oldest available row with a compare-and-swap so concurrent workers
// never both take it; an expired lease makes the row available again.
type StoreTransport struct {
	jobs  store.Collection[*models.QueuedJob]
	lease time.Duration
	poll  time.Duration
	now   func() time.Time
}

func NewStoreTransport(jobs store.Collection[*models.QueuedJob], lease, poll time.Duration) *StoreTransport {
	return &StoreTransport{
		jobs:  jobs,
		lease: lease,
		poll:  poll,
		now:   func() time.Time { return time.Now().UTC() },
	}
}

func (t *StoreTransport) Push(ctx context.Context, env models.JobEnvelope) error {
	qj := &models.QueuedJob{
		Base:     models.Base{ID: env.ID},
		Envelope: env,
		Sequence: env.EnqueuedAt.UnixNano(),
	}
	return t.jobs.Insert(ctx, qj)
}

func (t *StoreTransport) Pop(ctx context.Context) (*models.JobEnvelope, error) {
	for {
		env, err := t.tryLease(ctx)
		if err != nil {
			return nil, err
		}
		if env != nil {
			return env, nil
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(t.poll):
		}
	}
}

func (t *StoreTransport) tryLease(ctx context.Context) (*models.JobEnvelope, error) {
	queued, err := t.jobs.List(ctx)
	if err != nil {
		return nil, err
	}

	now := t.now()
	available := queued[:0]
	for _, qj := range queued {
		if qj.LeaseUntil == nil || !qj.LeaseUntil.After(now) {
			available = append(available, qj)
		}
	}
	sort.SliceStable(available, func(i, j int) bool {
		if available[i].Sequence != available[j].Sequence {
			return available[i].Sequence < available[j].Sequence
		}
		return available[i].ID < available[j].ID
	})

	for _, qj := range available {
		until := now.Add(t.lease)
		qj.LeaseUntil = &until
		qj.Deliveries++
		err := t.jobs.CompareAndSwap(ctx, qj)
		if errors.Is(err, store.ErrConflict) || errors.Is(err, store.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}

		env := qj.Envelope
		env.Attempts = qj.Deliveries
		return &env, nil
	}
	return nil, nil
}

func (t *StoreTransport) Ack(ctx context.Context, id string) error {
	err := t.jobs.Delete(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil
	}
	return err
}

// Release drops the lease so the row can be taken again without waiting for
// it to expire.
func (t *StoreTransport) Release(ctx context.Context, id string) error {
	qj, err := t.jobs.Get(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	qj.LeaseUntil = nil
	err = t.jobs.CompareAndSwap(ctx, qj)
	if errors.Is(err, store.ErrNotFound) {
		return nil
	}
	return err
}

func (t *StoreTransport) Pending(ctx context.Context) ([]models.JobEnvelope, error) {
	queued, err := t.jobs.List(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]models.JobEnvelope, 0, len(queued))
	for _, qj := range queued {
		out = append(out, qj.Envelope)
	}
	return out, nil
}
