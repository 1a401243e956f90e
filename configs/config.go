package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Env         string
	LogLevel    string
	HTTPPort    string
	SiteURL     string
	JWTSecret   string
	TokenTTL    time.Duration
	DataDir     string
	StoreDriver string
	DB          DBConfig
	Queue       QueueConfig
	Admin       AdminConfig
	Referral    ReferralConfig
	Media       MediaConfig
	Email       EmailConfig
	Telegram    TelegramConfig
}

type DBConfig struct {
	Driver       string
	DSN          string
	MaxOpenConns int
	MaxIdleConns int
}

type QueueConfig struct {
	Driver          string
	Lease           time.Duration
	PollInterval    time.Duration
	MaxAttempts     int
	BackoffInitial  time.Duration
	BackoffMax      time.Duration
	EmbeddedWorkers int
}

type AdminConfig struct {
	Email    string
	Password string
	FullName string
}

type ReferralConfig struct {
	MaxPerUser      int
	DiscountPercent int
}

type MediaConfig struct {
	UploadDir        string
	StorageDriver    string
	CloudinaryURL    string
	CloudinaryFolder string
	ThumbSize        int
	Transcode        bool
	ToolTimeout      time.Duration
	FFmpegPath       string
	FFprobePath      string
	SignedURLTTL     time.Duration
	MaxUploadBytes   int
	PendingTTL       time.Duration
}

type EmailConfig struct {
	Driver      string
	BrevoAPIKey string
	SenderEmail string
	SenderName  string
	SMTPHost    string
	SMTPPort    int
	SMTPUser    string
	SMTPPass    string
}

type TelegramConfig struct {
	BotToken string
	ChatID   int64
}

// Load reads .env when present, then the process environment.
func Load() (Config, error) {
	if err := godotenv.Load(".env"); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}

	cfg := Config{
		Env:         getEnv("ENV", "development"),
		LogLevel:    getEnv("LOG_LEVEL", ""),
		HTTPPort:    getEnv("HTTP_PORT", "8080"),
		SiteURL:     strings.TrimRight(getEnv("SITE_URL", "http://localhost:8080"), "/"),
		JWTSecret:   getEnv("JWT_SECRET", ""),
		TokenTTL:    getEnvDuration("JWT_TTL", 72*time.Hour),
		DataDir:     getEnv("DATA_DIR", "data"),
		StoreDriver: strings.ToLower(getEnv("STORE_DRIVER", "json")),
		DB: DBConfig{
			Driver:       strings.ToLower(getEnv("DB_DRIVER", "postgres")),
			DSN:          getEnv("DATABASE_URL", ""),
			MaxOpenConns: getEnvInt("DB_MAX_OPEN_CONNS", 10),
			MaxIdleConns: getEnvInt("DB_MAX_IDLE_CONNS", 5),
		},
		Queue: QueueConfig{
			Driver:          strings.ToLower(getEnv("QUEUE_DRIVER", "store")),
			Lease:           getEnvDuration("QUEUE_LEASE", 15*time.Minute),
			PollInterval:    getEnvDuration("QUEUE_POLL_INTERVAL", time.Second),
			MaxAttempts:     getEnvInt("JOB_MAX_ATTEMPTS", 3),
			BackoffInitial:  getEnvDuration("JOB_BACKOFF_INITIAL", 2*time.Second),
			BackoffMax:      getEnvDuration("JOB_BACKOFF_MAX", 30*time.Second),
			EmbeddedWorkers: getEnvInt("QUEUE_EMBEDDED_WORKERS", 1),
		},
		Admin: AdminConfig{
			Email:    strings.ToLower(getEnv("ADMIN_EMAIL", "")),
			Password: getEnv("ADMIN_PASSWORD", ""),
			FullName: getEnv("ADMIN_FULL_NAME", "Site Admin"),
		},
		Referral: ReferralConfig{
			MaxPerUser:      getEnvInt("REFERRAL_MAX_PER_USER", 20),
			DiscountPercent: getEnvInt("REFERRAL_DISCOUNT_PERCENT", 10),
		},
		Media: MediaConfig{
			UploadDir:        getEnv("UPLOAD_DIR", "uploads"),
			StorageDriver:    strings.ToLower(getEnv("MEDIA_STORAGE", "local")),
			CloudinaryURL:    getEnv("CLOUDINARY_URL", ""),
			CloudinaryFolder: getEnv("CLOUDINARY_FOLDER", "sdcp_gallery"),
			ThumbSize:        getEnvInt("MEDIA_THUMB_SIZE", 320),
			Transcode:        getEnvBool("MEDIA_TRANSCODE", false),
			ToolTimeout:      getEnvDuration("MEDIA_TOOL_TIMEOUT", 2*time.Minute),
			FFmpegPath:       getEnv("FFMPEG_PATH", "ffmpeg"),
			FFprobePath:      getEnv("FFPROBE_PATH", "ffprobe"),
			SignedURLTTL:     getEnvDuration("MEDIA_SIGNED_URL_TTL", time.Hour),
			MaxUploadBytes:   getEnvInt("MAX_CONTENT_LENGTH", 40*1024*1024),
			PendingTTL:       getEnvDuration("PENDING_UPLOAD_TTL", 48*time.Hour),
		},
		Email: EmailConfig{
			Driver:      strings.ToLower(getEnv("EMAIL_DRIVER", "log")),
			BrevoAPIKey: getEnv("BREVO_API_KEY", ""),
			SenderEmail: getEnv("EMAIL_SENDER", ""),
			SenderName:  getEnv("EMAIL_SENDER_NAME", "Sergio Diaz Custom Painting"),
			SMTPHost:    getEnv("SMTP_HOST", ""),
			SMTPPort:    getEnvInt("SMTP_PORT", 465),
			SMTPUser:    getEnv("SMTP_USER", ""),
			SMTPPass:    getEnv("SMTP_PASS", ""),
		},
		Telegram: TelegramConfig{
			BotToken: getEnv("TELEGRAM_BOT_TOKEN", ""),
			ChatID:   getEnvInt64("TELEGRAM_ADMIN_CHAT_ID", 0),
		},
	}

	if cfg.JWTSecret == "" {
		if cfg.IsProduction() {
			return Config{}, errors.New("JWT_SECRET is required in production")
		}
		cfg.JWTSecret = "dev-insecure-secret"
	}

	return cfg, nil
}

// QueueInProcess reports whether jobs live only inside the api process, so
// the api must run its own workers.
func (c Config) QueueInProcess() bool {
	return strings.EqualFold(c.Queue.Driver, "memory")
}

func (c Config) IsProduction() bool {
	return strings.EqualFold(c.Env, "production")
}

func getEnv(key, fallback string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	parsed, err := strconv.Atoi(os.Getenv(key))
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvInt64(key string, fallback int64) int64 {
	parsed, err := strconv.ParseInt(os.Getenv(key), 10, 64)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	parsed, err := time.ParseDuration(os.Getenv(key))
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvBool(key string, fallback bool) bool {
	parsed, err := strconv.ParseBool(os.Getenv(key))
	if err != nil {
		return fallback
	}
	return parsed
}
