package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/sdcpainting/referral_site/jobs"
	"github.com/sdcpainting/referral_site/models"
	"github.com/sdcpainting/referral_site/notifications"
	"github.com/sdcpainting/referral_site/store"
)

type EstimateInput struct {
	FullName      string `json:"full_name" validate:"required,max=255"`
	Email         string `json:"email" validate:"required,email,max=255"`
	Phone         string `json:"phone" validate:"omitempty,max=50"`
	Street        string `json:"street" validate:"required,max=255"`
	City          string `json:"city" validate:"required,max=120"`
	State         string `json:"state" validate:"required,max=60"`
	Postal        string `json:"postal" validate:"required,max=20"`
	Budget        string `json:"budget" validate:"required,budget"`
	Scope         string `json:"scope" validate:"required,max=5000"`
	PreferredDate string `json:"preferred_date" validate:"omitempty,datetime=2006-01-02"`
	ReferralCode  string `json:"referral_code" validate:"omitempty,max=32"`
}

func (in *EstimateInput) trim() {
	for _, f := range []*string{&in.FullName, &in.Email, &in.Phone, &in.Street, &in.City, &in.State, &in.Postal, &in.Budget, &in.Scope, &in.PreferredDate, &in.ReferralCode} {
		*f = strings.TrimSpace(*f)
	}
	in.Email = strings.ToLower(in.Email)
}

type EstimateFilter struct {
	Search string
	Status string
}

type EstimateService struct {
	estimates  store.Collection[*models.Estimate]
	referrals  *ReferralService
	queue      jobs.Enqueuer
	events     Publisher
	pdf        PDFRenderer
	adminEmail string
	discount   int
	log        *zap.Logger
	now        func() time.Time
}

func NewEstimateService(st *store.Store, referrals *ReferralService, queue jobs.Enqueuer, events Publisher, pdf PDFRenderer, adminEmail string, discountPercent int, log *zap.Logger) *EstimateService {
	return &EstimateService{
		estimates:  st.Estimates,
		referrals:  referrals,
		queue:      queue,
		events:     publisherOrNop(events),
		pdf:        pdf,
		adminEmail: adminEmail,
		discount:   discountPercent,
		log:        log.Named("estimates"),
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// Submit validates and records an estimate request. userID is empty for
// anonymous submissions. The referral outcome never blocks the request.
func (s *EstimateService) Submit(ctx context.Context, in EstimateInput, userID string) (*models.Estimate, error) {
	in.trim()
	if err := validateStruct(in); err != nil {
		return nil, err
	}
	budget, err := ParseBudget(in.Budget)
	if err != nil {
		return nil, &ValidationError{Fields: map[string]string{"budget": err.Error()}}
	}

	est := &models.Estimate{
		Base:     models.Base{ID: uuid.NewString()},
		FullName: in.FullName,
		Email:    in.Email,
		Phone:    in.Phone,
		Address: models.Address{
			Street: in.Street,
			City:   in.City,
			State:  in.State,
			Postal: in.Postal,
		},
		Budget:        in.Budget,
		BudgetMin:     budget.Min,
		BudgetMax:     budget.Max,
		Scope:         in.Scope,
		PreferredDate: in.PreferredDate,
		ReferralCode:  in.ReferralCode,
		Status:        models.EstimateStatusNew,
	}
	if userID != "" {
		est.UserID = &userID
	}
	if err := s.estimates.Insert(ctx, est); err != nil {
		return nil, fmt.Errorf("save estimate: %w", err)
	}
	log := s.log.With(zap.String("estimate_id", est.ID))
	log.Info("estimate submitted", zap.Bool("has_referral", in.ReferralCode != ""))

	if in.ReferralCode != "" {
		s.applyReferral(ctx, est, log)
	}

	enqueueEmail(ctx, s.queue, log, notifications.TemplateEstimateAdminNotify, s.adminEmail, adminNotifyContext(est))
	enqueueEmail(ctx, s.queue, log, notifications.TemplateEstimateCustomerConfirm, est.Email, map[string]string{
		"name":      est.FullName,
		"full_name": est.FullName,
		"scope":     est.Scope,
	})
	s.events.Publish(Event{Type: EventEstimateSubmitted, Payload: est})
	return est, nil
}

func (s *EstimateService) applyReferral(ctx context.Context, est *models.Estimate, log *zap.Logger) {
	rec, err := s.referrals.redeem(ctx, est.ReferralCode, est.ID)
	if err != nil {
		log.Error("referral redemption failed", zap.String("code", est.ReferralCode), zap.Error(err))
		return
	}
	if rec == nil {
		return
	}

	est.ReferralMatched = true
	est.ReferralOwnerID = &rec.OwnerID
	est.DiscountPercent = s.discount
	if err := s.estimates.CompareAndSwap(ctx, est); err != nil {
		log.Error("record referral match failed", zap.Error(err))
	}
}

func adminNotifyContext(est *models.Estimate) map[string]string {
	return map[string]string{
		"estimate_id":      est.ID,
		"full_name":        est.FullName,
		"email":            est.Email,
		"phone":            est.Phone,
		"address":          formatAddress(est.Address),
		"budget":           est.Budget,
		"scope":            est.Scope,
		"preferred_date":   est.PreferredDate,
		"referral_code":    est.ReferralCode,
		"referral_matched": strconv.FormatBool(est.ReferralMatched),
	}
}

func formatAddress(a models.Address) string {
	parts := make([]string, 0, 3)
	for _, p := range []string{a.Street, a.City, strings.TrimSpace(a.State + " " + a.Postal)} {
		if p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, ", ")
}

func (s *EstimateService) Get(ctx context.Context, id string) (*models.Estimate, error) {
	est, err := s.estimates.Get(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrNotFound
	}
	return est, err
}

// List returns matching estimates, newest first.
func (s *EstimateService) List(ctx context.Context, f EstimateFilter) ([]*models.Estimate, error) {
	all, err := s.estimates.List(ctx)
	if err != nil {
		return nil, err
	}

	search := strings.ToLower(strings.TrimSpace(f.Search))
	out := all[:0]
	for _, est := range all {
		if f.Status != "" && est.Status != f.Status {
			continue
		}
		if search != "" &&
			!strings.Contains(strings.ToLower(est.FullName), search) &&
			!strings.Contains(strings.ToLower(est.Email), search) {
			continue
		}
		out = append(out, est)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

var estimateTransitions = map[string][]string{
	models.EstimateStatusNew:       {models.EstimateStatusContacted, models.EstimateStatusClosed},
	models.EstimateStatusContacted: {models.EstimateStatusClosed},
}

func canTransition(from, to string) bool {
	for _, next := range estimateTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// UpdateStatus moves an estimate along new→contacted→closed (or straight to
// closed) and optionally emails the customer.
func (s *EstimateService) UpdateStatus(ctx context.Context, id, status, actor string, notify bool) (*models.Estimate, error) {
	for attempt := 0; attempt < casAttempts; attempt++ {
		est, err := s.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		if !canTransition(est.Status, status) {
			return nil, fmt.Errorf("%w: %s to %s", ErrInvalidTransition, est.Status, status)
		}

		now := s.now()
		est.Status = status
		est.StatusChangedBy = actor
		est.StatusChangedAt = &now
		err = s.estimates.CompareAndSwap(ctx, est)
		if errors.Is(err, store.ErrConflict) {
			continue
		}
		if err != nil {
			return nil, err
		}

		s.log.Info("estimate status changed", zap.String("estimate_id", id), zap.String("status", status), zap.String("by", actor))
		if notify {
			enqueueEmail(ctx, s.queue, s.log, notifications.TemplateEstimateStatusUpdate, est.Email, map[string]string{
				"name":      est.FullName,
				"full_name": est.FullName,
				"status":    status,
			})
		}
		return est, nil
	}
	return nil, store.ErrConflict
}

// ExportPDF renders the estimate as a printable PDF.
func (s *EstimateService) ExportPDF(ctx context.Context, id string) ([]byte, error) {
	if s.pdf == nil {
		return nil, errors.New("pdf export is not configured")
	}
	est, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	html, err := renderEstimateHTML(est)
	if err != nil {
		return nil, fmt.Errorf("render estimate sheet: %w", err)
	}
	return s.pdf.RenderPDF(ctx, html)
}
