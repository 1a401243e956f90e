package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/sdcpainting/referral_site/jobs"
	"github.com/sdcpainting/referral_site/models"
	"github.com/sdcpainting/referral_site/notifications"
	"github.com/sdcpainting/referral_site/store"
	"github.com/sdcpainting/referral_site/utils"
)

const (
	codeInsertAttempts = 5
	casAttempts        = 5
)

type ReferralOptions struct {
	MaxPerUser      int
	DiscountPercent int
	SiteURL         string
}

type ReferralService struct {
	referrals store.Collection[*models.ReferralCode]
	users     store.Collection[*models.User]
	estimates store.Collection[*models.Estimate]
	queue     jobs.Enqueuer
	opts      ReferralOptions
	log       *zap.Logger
	now       func() time.Time
	newCode   func() (string, error)
}

func NewReferralService(st *store.Store, queue jobs.Enqueuer, opts ReferralOptions, log *zap.Logger) *ReferralService {
	return &ReferralService{
		referrals: st.Referrals,
		users:     st.Users,
		estimates: st.Estimates,
		queue:     queue,
		opts:      opts,
		log:       log.Named("referrals"),
		now:       func() time.Time { return time.Now().UTC() },
		newCode:   utils.GenerateReferralCode,
	}
}

// NormalizeCode is applied to every code before it is stored or looked up.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// GenerateCode creates and persists a fresh unused code for ownerID.
func (s *ReferralService) GenerateCode(ctx context.Context, ownerID string) (*models.ReferralCode, error) {
	owner, err := s.users.Get(ctx, ownerID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	if s.opts.MaxPerUser > 0 {
		owned, err := s.referrals.FindBy(ctx, "owner_id", ownerID)
		if err != nil {
			return nil, err
		}
		if len(owned) >= s.opts.MaxPerUser {
			return nil, ErrReferralLimit
		}
	}

	var rec *models.ReferralCode
	for attempt := 1; attempt <= codeInsertAttempts; attempt++ {
		code, err := s.newCode()
		if err != nil {
			return nil, fmt.Errorf("generate referral code: %w", err)
		}
		candidate := &models.ReferralCode{
			Base:    models.Base{ID: uuid.NewString()},
			OwnerID: ownerID,
			Code:    NormalizeCode(code),
		}
		err = s.referrals.Insert(ctx, candidate)
		if errors.Is(err, store.ErrDuplicate) {
			s.log.Warn("referral code collision", zap.Int("attempt", attempt))
			continue
		}
		if err != nil {
			return nil, err
		}
		rec = candidate
		break
	}
	if rec == nil {
		return nil, ErrDuplicateCode
	}

	s.log.Info("referral code created", zap.String("owner_id", ownerID), zap.String("code", rec.Code))
	enqueueEmail(ctx, s.queue, s.log, notifications.TemplateReferralCreated, owner.Email, map[string]string{
		"name": owner.FullName,
		"code": rec.Code,
		"url":  s.ShareURL(rec.Code),
	})
	return rec, nil
}

func (s *ReferralService) ShareURL(code string) string {
	return s.opts.SiteURL + "/estimate?ref=" + code
}

// Redeem marks code as used by estimateID. It reports false for codes that
// do not exist or were already used; in both cases nothing is written.
func (s *ReferralService) Redeem(ctx context.Context, code, estimateID string) (bool, error) {
	rec, err := s.redeem(ctx, code, estimateID)
	return rec != nil, err
}

// redeem returns the updated record when this call performed the
// used=false→true transition, nil otherwise. The transition is a
// compare-and-swap, so of several concurrent callers exactly one wins.
func (s *ReferralService) redeem(ctx context.Context, code, estimateID string) (*models.ReferralCode, error) {
	normalized := NormalizeCode(code)
	if normalized == "" {
		return nil, nil
	}
	log := s.log.With(zap.String("code", normalized), zap.String("estimate_id", estimateID))

	for attempt := 0; attempt < casAttempts; attempt++ {
		found, err := s.referrals.FindBy(ctx, "code", normalized)
		if err != nil {
			return nil, err
		}
		if len(found) == 0 {
			log.Info("referral code not found")
			return nil, nil
		}

		rec := found[0]
		if rec.Used {
			log.Info("referral code already used")
			return nil, nil
		}

		now := s.now()
		rec.Used = true
		rec.UsedByEstimateID = &estimateID
		rec.UsedAt = &now
		err = s.referrals.CompareAndSwap(ctx, rec)
		if errors.Is(err, store.ErrConflict) {
			continue
		}
		if err != nil {
			return nil, err
		}

		log.Info("referral code redeemed", zap.String("owner_id", rec.OwnerID))
		s.notifyOwner(ctx, rec, estimateID)
		return rec, nil
	}
	return nil, fmt.Errorf("redeem %s: %w", normalized, store.ErrConflict)
}

func (s *ReferralService) notifyOwner(ctx context.Context, rec *models.ReferralCode, estimateID string) {
	owner, err := s.users.Get(ctx, rec.OwnerID)
	if err != nil {
		s.log.Warn("referral owner lookup failed", zap.String("owner_id", rec.OwnerID), zap.Error(err))
		return
	}

	data := map[string]string{"name": owner.FullName, "code": rec.Code}
	if est, err := s.estimates.Get(ctx, estimateID); err == nil {
		data["customer_name"] = est.FullName
	}
	enqueueEmail(ctx, s.queue, s.log, notifications.TemplateReferralUsed, owner.Email, data)
}

// ListByOwner returns ownerID's codes, newest first.
func (s *ReferralService) ListByOwner(ctx context.Context, ownerID string) ([]*models.ReferralCode, error) {
	codes, err := s.referrals.FindBy(ctx, "owner_id", ownerID)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(codes, func(i, j int) bool {
		return codes[i].CreatedAt.After(codes[j].CreatedAt)
	})
	return codes, nil
}

// Lookup reports whether code exists and is still unused, for the public
// form's live check.
func (s *ReferralService) Lookup(ctx context.Context, code string) (*models.ReferralCode, error) {
	found, err := s.referrals.FindBy(ctx, "code", NormalizeCode(code))
	if err != nil {
		return nil, err
	}
	if len(found) == 0 {
		return nil, ErrNotFound
	}
	return found[0], nil
}
