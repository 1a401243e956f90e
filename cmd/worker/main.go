package main

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/sdcpainting/referral_site/app"
	config "github.com/sdcpainting/referral_site/configs"
	"github.com/sdcpainting/referral_site/logger"
)

// The worker drains the durable queue and runs the maintenance schedule.
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

	if cfg.QueueInProcess() {
		log.Fatal("QUEUE_DRIVER=memory is in-process only; the api drains it itself")
	}

	a, err := app.New(cfg, log)
	if err != nil {
		log.Fatal("startup failed", zap.Error(err))
	}
	defer a.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	c := cron.New()
	if err := a.Maintenance.Schedule(ctx, c); err != nil {
		log.Fatal("schedule maintenance failed", zap.Error(err))
	}
	c.Start()

	workers := cfg.Queue.EmbeddedWorkers
	if workers < 1 {
		workers = 1
	}
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		w := a.Worker()
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = w.Run(ctx)
		}()
	}
	log.Info("worker running", zap.Int("concurrency", workers))

	wg.Wait()
	<-c.Stop().Done()
	log.Info("worker exited")
}
