package services

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sdcpainting/referral_site/models"
	"github.com/sdcpainting/referral_site/notifications"
)

func validEstimate() EstimateInput {
	return EstimateInput{
		FullName: "Carla Reyes",
		Email:    "Carla@Example.com",
		Phone:    "555-0100",
		Street:   "12 Oak St",
		City:     "San Diego",
		State:    "CA",
		Postal:   "92101",
		Budget:   "$3,000 - $6,000",
		Scope:    "Repaint exterior trim and front door",
	}
}

func TestSubmitInvalidEmail(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	in := validEstimate()
	in.Email = "not-an-email"

	_, err := f.estimates.Submit(ctx, in, "")
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Fields, "email")

	all, err := f.store.Estimates.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, all)
	assert.Empty(t, f.queue.jobs)
}

func TestSubmitReportsEveryBadField(t *testing.T) {
	f := newFixture(t)
	_, err := f.estimates.Submit(context.Background(), EstimateInput{Email: "x", Budget: "lots"}, "")
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, []string{"budget", "city", "email", "full_name", "postal", "scope", "state", "street"}, verr.FieldNames())
}

func TestSubmitWithReferral(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	owner := f.user(t, "Ana Lopez", "ana@example.com")
	code, err := f.referrals.GenerateCode(ctx, owner.ID)
	require.NoError(t, err)
	f.queue.jobs = nil

	in := validEstimate()
	in.ReferralCode = code.Code
	est, err := f.estimates.Submit(ctx, in, "")
	require.NoError(t, err)

	all, err := f.store.Estimates.List(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	stored := all[0]
	assert.Equal(t, est.ID, stored.ID)
	assert.Equal(t, models.EstimateStatusNew, stored.Status)
	assert.Equal(t, "carla@example.com", stored.Email)
	assert.Equal(t, int64(3000), stored.BudgetMin)
	require.NotNil(t, stored.BudgetMax)
	assert.Equal(t, int64(6000), *stored.BudgetMax)
	assert.True(t, stored.ReferralMatched)
	require.NotNil(t, stored.ReferralOwnerID)
	assert.Equal(t, owner.ID, *stored.ReferralOwnerID)
	assert.Equal(t, 10, stored.DiscountPercent)

	redeemed, err := f.store.Referrals.Get(ctx, code.ID)
	require.NoError(t, err)
	assert.True(t, redeemed.Used)

	assert.ElementsMatch(t, []notifications.Template{
		notifications.TemplateReferralUsed,
		notifications.TemplateEstimateAdminNotify,
		notifications.TemplateEstimateCustomerConfirm,
	}, f.queue.templates())

	for _, e := range f.queue.emails() {
		switch e.Template {
		case notifications.TemplateEstimateAdminNotify:
			assert.Equal(t, "admin@sdcpainting.test", e.Recipient)
			assert.Equal(t, "true", e.Context["referral_matched"])
		case notifications.TemplateEstimateCustomerConfirm:
			assert.Equal(t, "carla@example.com", e.Recipient)
		case notifications.TemplateReferralUsed:
			assert.Equal(t, "ana@example.com", e.Recipient)
			assert.Equal(t, "Carla Reyes", e.Context["customer_name"])
		}
	}

	require.Len(t, f.events.events, 1)
	assert.Equal(t, EventEstimateSubmitted, f.events.events[0].Type)
}

func TestSubmitWithUnknownReferralStillSucceeds(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	in := validEstimate()
	in.ReferralCode = "bogus123"

	est, err := f.estimates.Submit(ctx, in, "user-1")
	require.NoError(t, err)
	assert.False(t, est.ReferralMatched)
	assert.Equal(t, "bogus123", est.ReferralCode)
	require.NotNil(t, est.UserID)
	assert.Equal(t, "user-1", *est.UserID)
	assert.Len(t, f.queue.emails(), 2)
}

func TestSubmitSurvivesQueueFailure(t *testing.T) {
	f := newFixture(t)
	f.queue.err = errors.New("queue down")

	est, err := f.estimates.Submit(context.Background(), validEstimate(), "")
	require.NoError(t, err)
	assert.NotEmpty(t, est.ID)
}

func TestUpdateStatusTransitions(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	est, err := f.estimates.Submit(ctx, validEstimate(), "")
	require.NoError(t, err)
	f.queue.jobs = nil

	updated, err := f.estimates.UpdateStatus(ctx, est.ID, models.EstimateStatusContacted, "admin@sdcpainting.test", true)
	require.NoError(t, err)
	assert.Equal(t, models.EstimateStatusContacted, updated.Status)
	assert.Equal(t, "admin@sdcpainting.test", updated.StatusChangedBy)
	assert.NotNil(t, updated.StatusChangedAt)
	assert.Equal(t, []notifications.Template{notifications.TemplateEstimateStatusUpdate}, f.queue.templates())

	_, err = f.estimates.UpdateStatus(ctx, est.ID, models.EstimateStatusNew, "admin", false)
	assert.ErrorIs(t, err, ErrInvalidTransition)

	_, err = f.estimates.UpdateStatus(ctx, est.ID, models.EstimateStatusClosed, "admin", false)
	require.NoError(t, err)

	_, err = f.estimates.UpdateStatus(ctx, est.ID, models.EstimateStatusContacted, "admin", false)
	assert.ErrorIs(t, err, ErrInvalidTransition)

	_, err = f.estimates.UpdateStatus(ctx, "missing", models.EstimateStatusClosed, "admin", false)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestListEstimates(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	first, err := f.estimates.Submit(ctx, validEstimate(), "")
	require.NoError(t, err)
	other := validEstimate()
	other.FullName = "Dev Patel"
	other.Email = "dev@example.com"
	_, err = f.estimates.Submit(ctx, other, "")
	require.NoError(t, err)
	_, err = f.estimates.UpdateStatus(ctx, first.ID, models.EstimateStatusClosed, "admin", false)
	require.NoError(t, err)

	all, err := f.estimates.List(ctx, EstimateFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 2)

	byName, err := f.estimates.List(ctx, EstimateFilter{Search: "PATEL"})
	require.NoError(t, err)
	require.Len(t, byName, 1)
	assert.Equal(t, "dev@example.com", byName[0].Email)

	closed, err := f.estimates.List(ctx, EstimateFilter{Status: models.EstimateStatusClosed})
	require.NoError(t, err)
	require.Len(t, closed, 1)
	assert.Equal(t, first.ID, closed[0].ID)
}

type fakePDF struct{ html string }

func (p *fakePDF) RenderPDF(_ context.Context, html string) ([]byte, error) {
	p.html = html
	return []byte("%PDF-1.4"), nil
}

func TestExportPDF(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	pdf := &fakePDF{}
	f.estimates.pdf = pdf

	in := validEstimate()
	in.Scope = "Paint <b>fence</b>"
	est, err := f.estimates.Submit(ctx, in, "")
	require.NoError(t, err)

	out, err := f.estimates.ExportPDF(ctx, est.ID)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(out), "%PDF"))
	assert.Contains(t, pdf.html, "Carla Reyes")
	assert.Contains(t, pdf.html, "12 Oak St, San Diego, CA 92101")
	assert.Contains(t, pdf.html, "Paint &lt;b&gt;fence&lt;/b&gt;")

	_, err = f.estimates.ExportPDF(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}
