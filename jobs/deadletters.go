package jobs

import (
	"context"
	"sort"

	"github.com/sdcpainting/referral_site/models"
	"github.com/sdcpainting/referral_site/store"
)

// DeadLetterAdmin is the operator view of failed jobs.
type DeadLetterAdmin struct {
	deadLetters store.Collection[*models.DeadLetter]
	transport   Transport
}

func NewDeadLetterAdmin(deadLetters store.Collection[*models.DeadLetter], transport Transport) *DeadLetterAdmin {
	return &DeadLetterAdmin{deadLetters: deadLetters, transport: transport}
}

// List returns dead letters, most recent failure first. Requeued entries are
// skipped unless includeRequeued is set.
func (a *DeadLetterAdmin) List(ctx context.Context, includeRequeued bool) ([]*models.DeadLetter, error) {
	all, err := a.deadLetters.List(ctx)
	if err != nil {
		return nil, err
	}
	out := all[:0]
	for _, dl := range all {
		if includeRequeued || dl.RequeuedAt == nil {
			out = append(out, dl)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].FailedAt.After(out[j].FailedAt)
	})
	return out, nil
}

func (a *DeadLetterAdmin) Get(ctx context.Context, id string) (*models.DeadLetter, error) {
	return a.deadLetters.Get(ctx, id)
}

func (a *DeadLetterAdmin) Requeue(ctx context.Context, id string) (string, error) {
	return Requeue(ctx, a.deadLetters, a.transport, id)
}
