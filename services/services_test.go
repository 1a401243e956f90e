package services

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sdcpainting/referral_site/jobs"
	"github.com/sdcpainting/referral_site/models"
	"github.com/sdcpainting/referral_site/notifications"
	"github.com/sdcpainting/referral_site/store"
)

type fakeQueue struct {
	mu   sync.Mutex
	jobs []jobs.Job
	err  error
}

func (q *fakeQueue) Enqueue(_ context.Context, job jobs.Job) (string, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.err != nil {
		return "", q.err
	}
	q.jobs = append(q.jobs, job)
	return "job-" + string(job.Kind()), nil
}

func (q *fakeQueue) emails() []jobs.SendEmail {
	q.mu.Lock()
	defer q.mu.Unlock()
	var out []jobs.SendEmail
	for _, j := range q.jobs {
		if e, ok := j.(jobs.SendEmail); ok {
			out = append(out, e)
		}
	}
	return out
}

func (q *fakeQueue) templates() []notifications.Template {
	var out []notifications.Template
	for _, e := range q.emails() {
		out = append(out, e.Template)
	}
	return out
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []Event
}

func (p *recordingPublisher) Publish(e Event) {
	p.mu.Lock()
	p.events = append(p.events, e)
	p.mu.Unlock()
}

type fixture struct {
	store     *store.Store
	queue     *fakeQueue
	events    *recordingPublisher
	referrals *ReferralService
	estimates *EstimateService
	auth      *AuthService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	st, err := store.OpenJSON(t.TempDir())
	require.NoError(t, err)

	f := &fixture{store: st, queue: &fakeQueue{}, events: &recordingPublisher{}}
	log := zap.NewNop()
	f.referrals = NewReferralService(st, f.queue, ReferralOptions{MaxPerUser: 20, DiscountPercent: 10, SiteURL: "https://sdcpainting.test"}, log)
	f.estimates = NewEstimateService(st, f.referrals, f.queue, f.events, nil, "admin@sdcpainting.test", 10, log)
	f.auth = NewAuthService(st, f.queue, "test-secret", 0, log)
	return f
}

func (f *fixture) user(t *testing.T, name, email string) *models.User {
	t.Helper()
	u := &models.User{Base: models.Base{ID: email}, FullName: name, Email: email, Role: models.RoleCustomer}
	require.NoError(t, f.store.Users.Insert(context.Background(), u))
	return u
}
