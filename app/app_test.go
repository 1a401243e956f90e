package app

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	config "github.com/sdcpainting/referral_site/configs"
	"github.com/sdcpainting/referral_site/jobs"
	"github.com/sdcpainting/referral_site/media"
	"github.com/sdcpainting/referral_site/models"
	"github.com/sdcpainting/referral_site/notifications"
	"github.com/sdcpainting/referral_site/services"
)

func testConfig(t *testing.T) config.Config {
	dir := t.TempDir()
	return config.Config{
		Env:         "test",
		SiteURL:     "http://localhost:8080",
		JWTSecret:   "test-secret",
		TokenTTL:    time.Hour,
		DataDir:     filepath.Join(dir, "data"),
		StoreDriver: "json",
		Queue: config.QueueConfig{
			Driver:         "memory",
			MaxAttempts:    2,
			BackoffInitial: time.Millisecond,
			BackoffMax:     time.Millisecond,
		},
		Admin:    config.AdminConfig{Email: "owner@sdcpainting.test", Password: "paint-it-all", FullName: "Owner"},
		Referral: config.ReferralConfig{MaxPerUser: 5, DiscountPercent: 10},
		Media: config.MediaConfig{
			UploadDir:      filepath.Join(dir, "uploads"),
			StorageDriver:  "local",
			ThumbSize:      320,
			SignedURLTTL:   time.Hour,
			MaxUploadBytes: 1 << 20,
			PendingTTL:     time.Hour,
		},
		Email: config.EmailConfig{Driver: "log"},
	}
}

func TestNewWiresLocalStack(t *testing.T) {
	a, err := New(testConfig(t), zap.NewNop())
	require.NoError(t, err)
	defer a.Close()

	assert.IsType(t, &jobs.MemoryTransport{}, a.Transport)
	assert.IsType(t, &media.Locators{}, a.Storage)
	assert.NotNil(t, a.LocalMedia)

	h := a.Handler()
	assert.Equal(t, "test-secret", h.JWTSecret)
	assert.Same(t, a.Estimates, h.Estimates)
}

func TestNewRejectsUnknownDrivers(t *testing.T) {
	cfg := testConfig(t)
	cfg.Queue.Driver = "kafka"
	_, err := New(cfg, zap.NewNop())
	assert.ErrorContains(t, err, "queue driver")

	cfg = testConfig(t)
	cfg.Media.StorageDriver = "cloudinary"
	_, err = New(cfg, zap.NewNop())
	assert.ErrorContains(t, err, "CLOUDINARY_URL")

	cfg = testConfig(t)
	cfg.Email.Driver = "pigeon"
	_, err = New(cfg, zap.NewNop())
	assert.ErrorContains(t, err, "email driver")
}

func TestSignupEmailFlowsThroughWorker(t *testing.T) {
	a, err := New(testConfig(t), zap.NewNop())
	require.NoError(t, err)
	ctx := context.Background()

	_, err = a.Auth.Signup(ctx, services.SignupInput{FullName: "Jane Doe", Email: "jane@example.com", Password: "longenough"})
	require.NoError(t, err)

	transport := a.Transport.(*jobs.MemoryTransport)
	require.Equal(t, 1, transport.Len())
	env, err := transport.Pop(ctx)
	require.NoError(t, err)
	assert.Equal(t, string(jobs.KindSendEmail), env.JobName)

	out := a.Worker().Process(ctx, *env)
	assert.True(t, out.Delivered)
	assert.Equal(t, 1, out.Attempts)
}

func TestUnknownTemplateIsDeadLetteredWithoutRetry(t *testing.T) {
	a, err := New(testConfig(t), zap.NewNop())
	require.NoError(t, err)
	ctx := context.Background()

	_, err = a.Dispatcher.Enqueue(ctx, jobs.SendEmail{Template: notifications.Template("nope"), Recipient: "x@example.com"})
	require.NoError(t, err)
	env, err := a.Transport.Pop(ctx)
	require.NoError(t, err)

	out := a.Worker().Process(ctx, *env)
	require.True(t, out.DeadLettered)
	assert.Equal(t, 1, out.Attempts)

	dead, err := a.DeadLetters.List(ctx, false)
	require.NoError(t, err)
	require.Len(t, dead, 1)
	assert.Contains(t, dead[0].Reason, "unknown email template")
}

func TestSeedAdmin(t *testing.T) {
	a, err := New(testConfig(t), zap.NewNop())
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, a.SeedAdmin(ctx))
	require.NoError(t, a.SeedAdmin(ctx))

	_, user, err := a.Auth.Login(ctx, "owner@sdcpainting.test", "paint-it-all")
	require.NoError(t, err)
	assert.Equal(t, models.RoleAdmin, user.Role)
}
