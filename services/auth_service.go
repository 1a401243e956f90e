package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/sdcpainting/referral_site/jobs"
	"github.com/sdcpainting/referral_site/models"
	"github.com/sdcpainting/referral_site/notifications"
	"github.com/sdcpainting/referral_site/store"
)

type SignupInput struct {
	FullName string `json:"full_name" validate:"required,min=2,max=255"`
	Email    string `json:"email" validate:"required,email,max=255"`
	Password string `json:"password" validate:"required,min=8,max=72"`
}

type ProfileInput struct {
	FullName string `json:"full_name" validate:"required,min=2,max=255"`
}

type PasswordInput struct {
	CurrentPassword string `json:"current_password" validate:"required"`
	NewPassword     string `json:"new_password" validate:"required,min=8,max=72"`
}

type AuthService struct {
	users    store.Collection[*models.User]
	queue    jobs.Enqueuer
	secret   []byte
	tokenTTL time.Duration
	log      *zap.Logger
	now      func() time.Time
}

func NewAuthService(st *store.Store, queue jobs.Enqueuer, jwtSecret string, tokenTTL time.Duration, log *zap.Logger) *AuthService {
	return &AuthService{
		users:    st.Users,
		queue:    queue,
		secret:   []byte(jwtSecret),
		tokenTTL: tokenTTL,
		log:      log.Named("auth"),
		now:      time.Now,
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (s *AuthService) Signup(ctx context.Context, in SignupInput) (*models.User, error) {
	in.FullName = strings.TrimSpace(in.FullName)
	in.Email = normalizeEmail(in.Email)
	if err := validateStruct(in); err != nil {
		return nil, err
	}

	user, err := s.createUser(ctx, in.FullName, in.Email, in.Password, models.RoleCustomer)
	if err != nil {
		return nil, err
	}

	s.log.Info("user signed up", zap.String("user_id", user.ID))
	enqueueEmail(ctx, s.queue, s.log, notifications.TemplateSignupWelcome, user.Email, map[string]string{"name": user.FullName})
	return user, nil
}

func (s *AuthService) createUser(ctx context.Context, fullName, email, password, role string) (*models.User, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user := &models.User{
		Base:         models.Base{ID: uuid.NewString()},
		FullName:     fullName,
		Email:        email,
		PasswordHash: string(hash),
		Role:         role,
	}
	if err := s.users.Insert(ctx, user); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return nil, ErrEmailTaken
		}
		return nil, err
	}
	return user, nil
}

func (s *AuthService) findByEmail(ctx context.Context, email string) (*models.User, error) {
	found, err := s.users.FindBy(ctx, "email", normalizeEmail(email))
	if err != nil {
		return nil, err
	}
	if len(found) == 0 {
		return nil, ErrNotFound
	}
	return found[0], nil
}

// Login checks credentials and returns a signed HS256 token.
func (s *AuthService) Login(ctx context.Context, email, password string) (string, *models.User, error) {
	user, err := s.findByEmail(ctx, email)
	if errors.Is(err, ErrNotFound) {
		return "", nil, ErrInvalidCredentials
	}
	if err != nil {
		return "", nil, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return "", nil, ErrInvalidCredentials
	}

	token, err := s.IssueToken(user)
	if err != nil {
		return "", nil, err
	}
	return token, user, nil
}

func (s *AuthService) IssueToken(user *models.User) (string, error) {
	claims := jwt.MapClaims{
		"user_id": user.ID,
		"role":    user.Role,
		"exp":     s.now().Add(s.tokenTTL).Unix(),
	}
	t, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return t, nil
}

func (s *AuthService) Get(ctx context.Context, id string) (*models.User, error) {
	user, err := s.users.Get(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrNotFound
	}
	return user, err
}

func (s *AuthService) UpdateProfile(ctx context.Context, id string, in ProfileInput) (*models.User, error) {
	in.FullName = strings.TrimSpace(in.FullName)
	if err := validateStruct(in); err != nil {
		return nil, err
	}
	return s.update(ctx, id, func(u *models.User) error {
		u.FullName = in.FullName
		return nil
	})
}

func (s *AuthService) ChangePassword(ctx context.Context, id string, in PasswordInput) error {
	if err := validateStruct(in); err != nil {
		return err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(in.NewPassword), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	_, err = s.update(ctx, id, func(u *models.User) error {
		if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(in.CurrentPassword)) != nil {
			return ErrInvalidCredentials
		}
		u.PasswordHash = string(hash)
		return nil
	})
	return err
}

func (s *AuthService) update(ctx context.Context, id string, mutate func(*models.User) error) (*models.User, error) {
	for attempt := 0; attempt < casAttempts; attempt++ {
		user, err := s.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		if err := mutate(user); err != nil {
			return nil, err
		}
		err = s.users.CompareAndSwap(ctx, user)
		if errors.Is(err, store.ErrConflict) {
			continue
		}
		if err != nil {
			return nil, err
		}
		return user, nil
	}
	return nil, store.ErrConflict
}

// ListUsers returns every account, newest first.
func (s *AuthService) ListUsers(ctx context.Context) ([]*models.User, error) {
	users, err := s.users.List(ctx)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(users, func(i, j int) bool {
		return users[i].CreatedAt.After(users[j].CreatedAt)
	})
	return users, nil
}

// DeleteUser removes an account. Admins cannot delete themselves.
func (s *AuthService) DeleteUser(ctx context.Context, actorID, id string) error {
	if actorID == id {
		return ErrForbidden
	}
	err := s.users.Delete(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return ErrNotFound
	}
	if err != nil {
		return err
	}
	s.log.Info("user deleted", zap.String("user_id", id), zap.String("by", actorID))
	return nil
}

// SeedAdmin creates the admin account if no user holds that email yet, and
// promotes an existing one otherwise. It reports whether anything changed.
func (s *AuthService) SeedAdmin(ctx context.Context, email, password, fullName string) (bool, error) {
	email = normalizeEmail(email)
	if email == "" || password == "" {
		return false, errors.New("admin email and password are required")
	}

	existing, err := s.findByEmail(ctx, email)
	switch {
	case errors.Is(err, ErrNotFound):
		if _, err := s.createUser(ctx, fullName, email, password, models.RoleAdmin); err != nil {
			return false, err
		}
		s.log.Info("admin account created", zap.String("email", email))
		return true, nil
	case err != nil:
		return false, err
	case existing.IsAdmin():
		return false, nil
	}

	if _, err := s.update(ctx, existing.ID, func(u *models.User) error {
		u.Role = models.RoleAdmin
		return nil
	}); err != nil {
		return false, err
	}
	s.log.Info("existing account promoted to admin", zap.String("email", email))
	return true, nil
}
