package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sdcpainting/referral_site/models"
)

func TestTestimonialLifecycle(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	svc := NewTestimonialService(f.store, f.events, zap.NewNop())
	author := f.user(t, "Gina Park", "gina@example.com")

	_, err := svc.Submit(ctx, author.ID, TestimonialInput{})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Fields, "text")

	_, err = svc.Submit(ctx, author.ID, TestimonialInput{VideoURL: "not a url"})
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Fields, "video_url")

	tm, err := svc.Submit(ctx, author.ID, TestimonialInput{Text: "Flawless cabinet refinish."})
	require.NoError(t, err)
	assert.Equal(t, "Gina Park", tm.AuthorName)
	assert.Equal(t, models.ModerationPending, tm.Moderation)
	require.Len(t, f.events.events, 1)
	assert.Equal(t, EventTestimonialSubmitted, f.events.events[0].Type)

	approved, err := svc.ListApproved(ctx)
	require.NoError(t, err)
	assert.Empty(t, approved)

	_, err = svc.Approve(ctx, tm.ID)
	require.NoError(t, err)
	_, err = svc.Approve(ctx, tm.ID)
	assert.ErrorIs(t, err, ErrInvalidTransition)

	approved, err = svc.ListApproved(ctx)
	require.NoError(t, err)
	assert.Len(t, approved, 1)

	pending, err := svc.ListAll(ctx, models.ModerationPending)
	require.NoError(t, err)
	assert.Empty(t, pending)

	require.NoError(t, svc.Delete(ctx, tm.ID))
	assert.ErrorIs(t, svc.Delete(ctx, tm.ID), ErrNotFound)

	_, err = svc.Submit(ctx, "ghost", TestimonialInput{Text: "hi"})
	assert.ErrorIs(t, err, ErrNotFound)
}
