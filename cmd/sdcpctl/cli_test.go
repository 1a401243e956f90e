package main

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sdcpainting/referral_site/app"
	config "github.com/sdcpainting/referral_site/configs"
	"github.com/sdcpainting/referral_site/models"
)

func useTestApp(t *testing.T, queueDriver string) {
	t.Helper()
	dir := t.TempDir()
	cfg := config.Config{
		Env:         "test",
		SiteURL:     "http://localhost:8080",
		JWTSecret:   "test-secret",
		TokenTTL:    time.Hour,
		DataDir:     filepath.Join(dir, "data"),
		StoreDriver: "json",
		Queue:       config.QueueConfig{Driver: queueDriver, Lease: time.Minute, PollInterval: 10 * time.Millisecond},
		Admin:       config.AdminConfig{FullName: "Owner"},
		Media: config.MediaConfig{
			UploadDir:     filepath.Join(dir, "uploads"),
			StorageDriver: "local",
			PendingTTL:    time.Hour,
		},
		Email: config.EmailConfig{Driver: "log"},
	}
	openApp = func() (*app.App, error) { return app.New(cfg, zap.NewNop()) }
	t.Cleanup(func() { openApp = loadApp })
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func seedDeadLetter(t *testing.T) string {
	t.Helper()
	a, err := openApp()
	require.NoError(t, err)
	dl := &models.DeadLetter{
		Base: models.Base{ID: uuid.NewString()},
		Envelope: models.JobEnvelope{
			ID:         uuid.NewString(),
			JobName:    "send-email",
			Payload:    []byte(`{"template":"signup-welcome","recipient":"jane@example.com"}`),
			EnqueuedAt: time.Now().UTC(),
		},
		Attempts: 3,
		Reason:   "smtp unavailable",
		FailedAt: time.Now().UTC(),
	}
	require.NoError(t, a.Store.DeadLetters.Insert(context.Background(), dl))
	return dl.ID
}

func TestDeadLettersListAndRequeue(t *testing.T) {
	useTestApp(t, "store")

	out, err := run(t, "deadletters", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "no dead letters")

	id := seedDeadLetter(t)
	out, err = run(t, "deadletters", "list")
	require.NoError(t, err)
	assert.Contains(t, out, id)
	assert.Contains(t, out, "smtp unavailable")

	out, err = run(t, "dl", "show", id)
	require.NoError(t, err)
	assert.Contains(t, out, `"reason": "smtp unavailable"`)

	out, err = run(t, "deadletters", "requeue", id)
	require.NoError(t, err)
	assert.Contains(t, out, id+" requeued as job")

	_, err = run(t, "deadletters", "requeue", id)
	assert.ErrorContains(t, err, "1 of 1 dead letters not requeued")

	a, err := openApp()
	require.NoError(t, err)
	queued, err := a.Store.Jobs.List(context.Background())
	require.NoError(t, err)
	assert.Len(t, queued, 1)
}

func TestRequeueRefusesMemoryQueue(t *testing.T) {
	useTestApp(t, "memory")
	id := seedDeadLetter(t)

	_, err := run(t, "deadletters", "requeue", id)
	assert.ErrorContains(t, err, "QUEUE_DRIVER=store")
}

func TestSeedAdminCommand(t *testing.T) {
	useTestApp(t, "store")

	out, err := run(t, "seed-admin", "--email", "owner@sdcpainting.test", "--password", "paint-it-all")
	require.NoError(t, err)
	assert.Contains(t, out, "created admin owner@sdcpainting.test")

	out, err = run(t, "seed-admin", "--email", "owner@sdcpainting.test", "--password", "paint-it-all")
	require.NoError(t, err)
	assert.Contains(t, out, "owner@sdcpainting.test is an admin")
}

func TestGCCommands(t *testing.T) {
	useTestApp(t, "store")

	out, err := run(t, "gc", "orphans")
	require.NoError(t, err)
	assert.Contains(t, out, "removed 0 orphaned artifacts")

	out, err = run(t, "gc", "pending")
	require.NoError(t, err)
	assert.Contains(t, out, "removed 0 stale pending uploads")
}
