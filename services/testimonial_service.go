package services

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/sdcpainting/referral_site/models"
	"github.com/sdcpainting/referral_site/store"
)

type TestimonialInput struct {
	Text     string `json:"text" validate:"max=4000"`
	VideoURL string `json:"video_url" validate:"omitempty,url,max=500"`
}

type TestimonialService struct {
	testimonials store.Collection[*models.Testimonial]
	users        store.Collection[*models.User]
	events       Publisher
	log          *zap.Logger
	now          func() time.Time
}

func NewTestimonialService(st *store.Store, events Publisher, log *zap.Logger) *TestimonialService {
	return &TestimonialService{
		testimonials: st.Testimonials,
		users:        st.Users,
		events:       publisherOrNop(events),
		log:          log.Named("testimonials"),
		now:          func() time.Time { return time.Now().UTC() },
	}
}

// Submit records a pending testimonial by userID. Either text or a video
// URL is required.
func (s *TestimonialService) Submit(ctx context.Context, userID string, in TestimonialInput) (*models.Testimonial, error) {
	in.Text = strings.TrimSpace(in.Text)
	in.VideoURL = strings.TrimSpace(in.VideoURL)
	if err := validateStruct(in); err != nil {
		return nil, err
	}
	if in.Text == "" && in.VideoURL == "" {
		return nil, &ValidationError{Fields: map[string]string{"text": "text or video_url is required"}}
	}

	author, err := s.users.Get(ctx, userID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	t := &models.Testimonial{
		Base:       models.Base{ID: uuid.NewString()},
		UserID:     userID,
		AuthorName: author.FullName,
		Text:       in.Text,
		VideoURL:   in.VideoURL,
		Moderation: models.ModerationPending,
	}
	if err := s.testimonials.Insert(ctx, t); err != nil {
		return nil, err
	}

	s.log.Info("testimonial submitted", zap.String("testimonial_id", t.ID))
	s.events.Publish(Event{Type: EventTestimonialSubmitted, Payload: t})
	return t, nil
}

func (s *TestimonialService) list(ctx context.Context, keep func(*models.Testimonial) bool) ([]*models.Testimonial, error) {
	all, err := s.testimonials.List(ctx)
	if err != nil {
		return nil, err
	}
	out := all[:0]
	for _, t := range all {
		if keep(t) {
			out = append(out, t)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (s *TestimonialService) ListApproved(ctx context.Context) ([]*models.Testimonial, error) {
	return s.list(ctx, func(t *models.Testimonial) bool { return t.Moderation == models.ModerationApproved })
}

func (s *TestimonialService) ListAll(ctx context.Context, moderation string) ([]*models.Testimonial, error) {
	return s.list(ctx, func(t *models.Testimonial) bool { return moderation == "" || t.Moderation == moderation })
}

func (s *TestimonialService) Approve(ctx context.Context, id string) (*models.Testimonial, error) {
	return s.moderate(ctx, id, models.ModerationApproved)
}

func (s *TestimonialService) Reject(ctx context.Context, id string) (*models.Testimonial, error) {
	return s.moderate(ctx, id, models.ModerationRejected)
}

func (s *TestimonialService) moderate(ctx context.Context, id, target string) (*models.Testimonial, error) {
	for attempt := 0; attempt < casAttempts; attempt++ {
		t, err := s.testimonials.Get(ctx, id)
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrNotFound
		}
		if err != nil {
			return nil, err
		}
		if err := checkModeration(t.Moderation, target); err != nil {
			return nil, err
		}

		now := s.now()
		t.Moderation = target
		t.ModeratedAt = &now
		err = s.testimonials.CompareAndSwap(ctx, t)
		if errors.Is(err, store.ErrConflict) {
			continue
		}
		if err != nil {
			return nil, err
		}
		return t, nil
	}
	return nil, store.ErrConflict
}

func (s *TestimonialService) Delete(ctx context.Context, id string) error {
	err := s.testimonials.Delete(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return ErrNotFound
	}
	return err
}
