package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("ENV", "development")
	t.Setenv("JWT_SECRET", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "json", cfg.StoreDriver)
	assert.Equal(t, "store", cfg.Queue.Driver)
	assert.Equal(t, 3, cfg.Queue.MaxAttempts)
	assert.Equal(t, 320, cfg.Media.ThumbSize)
	assert.Equal(t, 20, cfg.Referral.MaxPerUser)
	assert.NotEmpty(t, cfg.JWTSecret)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("JWT_SECRET", "s3cret")
	t.Setenv("ADMIN_EMAIL", "Boss@Example.com")
	t.Setenv("MEDIA_TOOL_TIMEOUT", "45s")
	t.Setenv("MEDIA_TRANSCODE", "true")
	t.Setenv("SITE_URL", "https://paint.example.com/")
	t.Setenv("TELEGRAM_ADMIN_CHAT_ID", "12345")
	t.Setenv("JOB_MAX_ATTEMPTS", "not-a-number")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "boss@example.com", cfg.Admin.Email)
	assert.Equal(t, 45*time.Second, cfg.Media.ToolTimeout)
	assert.True(t, cfg.Media.Transcode)
	assert.Equal(t, "https://paint.example.com", cfg.SiteURL)
	assert.Equal(t, int64(12345), cfg.Telegram.ChatID)
	assert.Equal(t, 3, cfg.Queue.MaxAttempts)
}

func TestLoadRequiresSecretInProduction(t *testing.T) {
	t.Setenv("ENV", "production")
	t.Setenv("JWT_SECRET", "")

	_, err := Load()
	assert.Error(t, err)
}

func TestLoadNormalisesDrivers(t *testing.T) {
	t.Setenv("QUEUE_DRIVER", "Memory")
	t.Setenv("STORE_DRIVER", "SQL")
	t.Setenv("DB_DRIVER", "MySQL")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "memory", cfg.Queue.Driver)
	assert.Equal(t, "sql", cfg.StoreDriver)
	assert.Equal(t, "mysql", cfg.DB.Driver)
	assert.True(t, cfg.QueueInProcess())

	cfg.Queue.Driver = "MEMORY"
	assert.True(t, cfg.QueueInProcess())
	cfg.Queue.Driver = "store"
	assert.False(t, cfg.QueueInProcess())
}
