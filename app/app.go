// Package app assembles the services shared by the api, worker and sdcpctl
// binaries from a Config.
package app

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	config "github.com/sdcpainting/referral_site/configs"
	"github.com/sdcpainting/referral_site/database"
	"github.com/sdcpainting/referral_site/handlers"
	"github.com/sdcpainting/referral_site/jobs"
	"github.com/sdcpainting/referral_site/media"
	"github.com/sdcpainting/referral_site/models"
	"github.com/sdcpainting/referral_site/notifications"
	"github.com/sdcpainting/referral_site/services"
	"github.com/sdcpainting/referral_site/store"
	"github.com/sdcpainting/referral_site/websocket"
)

type App struct {
	Config config.Config
	Log    *zap.Logger

	Store      *store.Store
	Transport  jobs.Transport
	Dispatcher *jobs.Dispatcher
	Storage    media.Storage
	LocalMedia *media.LocalStorage
	Pipeline   *media.Pipeline
	Sender     *notifications.Sender
	Hub        *websocket.Hub

	Auth         *services.AuthService
	Referrals    *services.ReferralService
	Estimates    *services.EstimateService
	Gallery      *services.GalleryService
	Testimonials *services.TestimonialService
	DeadLetters  *jobs.DeadLetterAdmin
	Maintenance  *jobs.Maintenance

	closers []func() error
}

// New wires every component. Nothing is started; callers decide which loops
// to run.
func New(cfg config.Config, log *zap.Logger) (*App, error) {
	a := &App{Config: cfg, Log: log}

	st, err := a.openStore()
	if err != nil {
		return nil, err
	}
	a.Store = st

	switch strings.ToLower(cfg.Queue.Driver) {
	case "memory":
		a.Transport = jobs.NewMemoryTransport()
	case "store":
		a.Transport = jobs.NewStoreTransport(st.Jobs, cfg.Queue.Lease, cfg.Queue.PollInterval)
	default:
		return nil, fmt.Errorf("unsupported queue driver %q", cfg.Queue.Driver)
	}
	a.Dispatcher = jobs.NewDispatcher(a.Transport, log)

	if err := a.buildStorage(); err != nil {
		return nil, err
	}
	var video media.VideoTool = media.NewFFmpeg(cfg.Media.FFmpegPath, cfg.Media.FFprobePath, cfg.Media.ToolTimeout)
	a.Pipeline = media.NewPipeline(a.Storage, video, st.Gallery, st.Orphans, media.PipelineOptions{
		ThumbSize: cfg.Media.ThumbSize,
		Transcode: cfg.Media.Transcode,
	}, log.Named("media"))

	mailer, err := a.buildMailer()
	if err != nil {
		return nil, err
	}
	var alerter notifications.AdminAlerter
	if cfg.Telegram.BotToken != "" && cfg.Telegram.ChatID != 0 {
		tg, err := notifications.NewTelegramAlerter(cfg.Telegram.BotToken, cfg.Telegram.ChatID)
		if err != nil {
			// Alerts are optional; email still goes out.
			log.Warn("telegram alerts disabled", zap.Error(err))
		} else {
			alerter = tg
		}
	}
	a.Sender = notifications.NewSender(mailer, alerter, log.Named("email"))

	a.Hub = websocket.NewHub(log)

	a.Auth = services.NewAuthService(st, a.Dispatcher, cfg.JWTSecret, cfg.TokenTTL, log.Named("auth"))
	a.Referrals = services.NewReferralService(st, a.Dispatcher, services.ReferralOptions{
		MaxPerUser:      cfg.Referral.MaxPerUser,
		DiscountPercent: cfg.Referral.DiscountPercent,
		SiteURL:         cfg.SiteURL,
	}, log.Named("referrals"))
	a.Estimates = services.NewEstimateService(st, a.Referrals, a.Dispatcher, a.Hub,
		services.ChromePDF{Timeout: 30 * time.Second}, cfg.Admin.Email, cfg.Referral.DiscountPercent, log.Named("estimates"))
	a.Gallery = services.NewGalleryService(st, a.Pipeline, a.Dispatcher, a.Hub, services.GalleryOptions{
		PendingDir:     a.PendingDir(),
		MaxUploadBytes: int64(cfg.Media.MaxUploadBytes),
		SignedURLTTL:   cfg.Media.SignedURLTTL,
	}, log.Named("gallery"))
	a.Testimonials = services.NewTestimonialService(st, a.Hub, log.Named("testimonials"))
	a.DeadLetters = jobs.NewDeadLetterAdmin(st.DeadLetters, a.Transport)
	a.Maintenance = jobs.NewMaintenance(st.Orphans, st.DeadLetters, a.Transport, a.Storage, a.PendingDir(), cfg.Media.PendingTTL, log.Named("maintenance"))

	return a, nil
}

func (a *App) openStore() (*store.Store, error) {
	switch strings.ToLower(a.Config.StoreDriver) {
	case "json":
		a.Log.Info("using json record store", zap.String("dir", a.Config.DataDir))
		return store.OpenJSON(a.Config.DataDir)
	case "sql":
		db, err := database.Connect(a.Config.DB, a.Log)
		if err != nil {
			return nil, err
		}
		if err := database.Migrate(db); err != nil {
			return nil, err
		}
		sqlDB, err := db.DB()
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, sqlDB.Close)
		return database.OpenStore(db), nil
	default:
		return nil, fmt.Errorf("unsupported store driver %q", a.Config.StoreDriver)
	}
}

func (a *App) buildStorage() error {
	cfg := a.Config.Media
	local, err := media.NewLocalStorage(cfg.UploadDir, a.Config.SiteURL, a.Config.JWTSecret)
	if err != nil {
		return err
	}
	a.LocalMedia = local
	locators := &media.Locators{Local: local, Default: local}

	if cfg.CloudinaryURL != "" {
		cld, err := media.NewCloudinaryStorage(cfg.CloudinaryURL, cfg.CloudinaryFolder)
		if err != nil {
			return err
		}
		locators.Cloudinary = cld
	}
	switch strings.ToLower(cfg.StorageDriver) {
	case "local":
	case "cloudinary":
		if locators.Cloudinary == nil {
			return fmt.Errorf("MEDIA_STORAGE=cloudinary requires CLOUDINARY_URL")
		}
		locators.Default = locators.Cloudinary
	default:
		return fmt.Errorf("unsupported media storage %q", cfg.StorageDriver)
	}
	a.Storage = locators
	return nil
}

func (a *App) buildMailer() (notifications.Mailer, error) {
	cfg := a.Config.Email
	switch strings.ToLower(cfg.Driver) {
	case "log":
		return notifications.NewLogMailer(a.Log.Named("mailer")), nil
	case "brevo":
		return notifications.NewBrevoService(cfg.BrevoAPIKey, cfg.SenderEmail, cfg.SenderName, a.Log.Named("mailer"))
	case "smtp":
		if cfg.SMTPHost == "" {
			return nil, fmt.Errorf("EMAIL_DRIVER=smtp requires SMTP_HOST")
		}
		return notifications.NewSMTPMailer(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPass, cfg.SenderEmail, cfg.SenderName), nil
	default:
		return nil, fmt.Errorf("unsupported email driver %q", cfg.Driver)
	}
}

// PendingDir is where accepted uploads wait for the media worker.
func (a *App) PendingDir() string {
	return filepath.Join(a.Config.Media.UploadDir, "pending")
}

// Handler exposes the services to the HTTP layer.
func (a *App) Handler() *handlers.Handler {
	return &handlers.Handler{
		Auth:         a.Auth,
		Referrals:    a.Referrals,
		Estimates:    a.Estimates,
		Gallery:      a.Gallery,
		Testimonials: a.Testimonials,
		DeadLetters:  a.DeadLetters,
		LocalMedia:   a.LocalMedia,
		Hub:          a.Hub,
		JWTSecret:    a.Config.JWTSecret,
		Log:          a.Log.Named("http"),
	}
}

// Worker builds a queue worker with a handler for every job kind. Dead
// letters are also announced on the admin feed of this process.
func (a *App) Worker() *jobs.Worker {
	q := a.Config.Queue
	w := jobs.NewWorker(a.Transport, jobs.Handlers{
		SendEmail: func(ctx context.Context, job jobs.SendEmail) error {
			if !job.Template.Valid() {
				return jobs.Permanent(fmt.Errorf("unknown email template %q", job.Template))
			}
			return a.Sender.Send(ctx, job.Template, job.Recipient, job.Context)
		},
		ProcessMedia: a.Gallery.HandleProcessMedia,
	}, a.Store.DeadLetters, jobs.RetryPolicy{
		MaxAttempts:     q.MaxAttempts,
		InitialInterval: q.BackoffInitial,
		MaxInterval:     q.BackoffMax,
	}, a.Log.Named("worker"))
	w.OnDeadLetter = func(dl *models.DeadLetter) {
		a.Hub.Publish(services.Event{Type: services.EventJobDeadLettered, Payload: dl})
	}
	return w
}

// SeedAdmin creates or promotes the configured admin account. It is a no-op
// when ADMIN_EMAIL or ADMIN_PASSWORD is unset.
func (a *App) SeedAdmin(ctx context.Context) error {
	adm := a.Config.Admin
	if adm.Email == "" || adm.Password == "" {
		return nil
	}
	created, err := a.Auth.SeedAdmin(ctx, adm.Email, adm.Password, adm.FullName)
	if err != nil {
		return fmt.Errorf("seed admin: %w", err)
	}
	a.Log.Info("admin account ready", zap.String("email", adm.Email), zap.Bool("created", created))
	return nil
}

func (a *App) Close() {
	for _, c := range a.closers {
		if err := c(); err != nil {
			a.Log.Warn("close failed", zap.Error(err))
		}
	}
}
