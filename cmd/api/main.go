package main

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/sdcpainting/referral_site/app"
	config "github.com/sdcpainting/referral_site/configs"
	"github.com/sdcpainting/referral_site/handlers"
	"github.com/sdcpainting/referral_site/logger"
	"github.com/sdcpainting/referral_site/routes"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}
	log, err := logger.New(cfg.Env, cfg.LogLevel)
	if err != nil {
		panic(err)
	}
	defer func() { _ = log.Sync() }()

	a, err := app.New(cfg, log)
	if err != nil {
		log.Fatal("startup failed", zap.Error(err))
	}
	defer a.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := a.SeedAdmin(ctx); err != nil {
		log.Fatal("startup failed", zap.Error(err))
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		a.Hub.Run(ctx)
	}()

	// The memory queue only exists in this process, so it must be drained
	// here. With the store queue a separate cmd/worker may do it instead.
	workers := cfg.Queue.EmbeddedWorkers
	if cfg.QueueInProcess() && workers < 1 {
		workers = 1
	}
	for i := 0; i < workers; i++ {
		w := a.Worker()
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = w.Run(ctx)
		}()
	}
	if workers > 0 {
		c := cron.New()
		if err := a.Maintenance.Schedule(ctx, c); err != nil {
			log.Fatal("schedule maintenance failed", zap.Error(err))
		}
		c.Start()
		defer c.Stop()
		log.Info("embedded workers started", zap.Int("count", workers))
	}

	server := fiber.New(fiber.Config{
		Prefork:       false,
		AppName:       "SDC Painting Referral Site",
		CaseSensitive: true,
		StrictRouting: true,
		BodyLimit:     cfg.Media.MaxUploadBytes + 1<<20,
		ReadTimeout:   30 * time.Second,
		WriteTimeout:  30 * time.Second,
		IdleTimeout:   60 * time.Second,
		ErrorHandler:  handlers.ErrorHandler(log),
	})

	server.Use(cors.New(cors.Config{
		AllowOrigins:  "*",
		AllowHeaders:  "Origin, Content-Type, Accept, Authorization, Sec-WebSocket-Key, Sec-WebSocket-Version",
		AllowMethods:  "GET, POST, PUT, PATCH, DELETE, OPTIONS",
		ExposeHeaders: "Content-Length, Content-Disposition",
		MaxAge:        86400,
	}))
	server.Use(recover.New())
	server.Use(fiberlogger.New(fiberlogger.Config{
		TimeFormat: "2006-01-02 15:04:05",
		Format:     "[${time}] ${status} - ${latency} ${method} ${path}\n",
	}))

	server.Get("/", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "success",
			"message": "Welcome to the SDC Painting API",
		})
	})
	routes.Register(server, a.Handler())

	go func() {
		<-ctx.Done()
		log.Info("shutting down")
		if err := server.ShutdownWithTimeout(10 * time.Second); err != nil {
			log.Error("shutdown failed", zap.Error(err))
		}
	}()

	log.Info("server listening", zap.String("port", cfg.HTTPPort))
	if err := server.Listen(":" + cfg.HTTPPort); err != nil {
		log.Error("server stopped", zap.Error(err))
		stop()
	}
	wg.Wait()
}
