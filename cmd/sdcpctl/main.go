// Command sdcpctl is the operator CLI: dead-letter inspection and requeue,
// maintenance runs, and admin seeding.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/sdcpainting/referral_site/app"
	config "github.com/sdcpainting/referral_site/configs"
	"github.com/sdcpainting/referral_site/logger"
)

var (
	verbose bool
	timeout time.Duration

	// openApp is replaced in tests.
	openApp = loadApp
)

var rootCmd = &cobra.Command{
	Use:           "sdcpctl",
	Short:         "Operate the SDC Painting referral site",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 2*time.Minute, "Operation timeout")

	deadLettersListCmd.Flags().Bool("all", false, "Include dead letters that were already requeued")
	deadLettersCmd.AddCommand(deadLettersListCmd)
	deadLettersCmd.AddCommand(deadLettersShowCmd)
	deadLettersCmd.AddCommand(deadLettersRequeueCmd)

	gcCmd.AddCommand(gcOrphansCmd)
	gcCmd.AddCommand(gcPendingCmd)

	seedAdminCmd.Flags().String("email", "", "Admin email (default: ADMIN_EMAIL)")
	seedAdminCmd.Flags().String("password", "", "Admin password (default: ADMIN_PASSWORD)")
	seedAdminCmd.Flags().String("name", "", "Admin display name (default: ADMIN_FULL_NAME)")

	rootCmd.AddCommand(deadLettersCmd)
	rootCmd.AddCommand(gcCmd)
	rootCmd.AddCommand(seedAdminCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func loadApp() (*app.App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	level := "warn"
	if verbose {
		level = "debug"
	}
	log, err := logger.New(cfg.Env, level)
	if err != nil {
		return nil, err
	}
	return app.New(cfg, log)
}

// withApp opens the application for one command run.
func withApp(fn func(ctx context.Context, a *app.App) error) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()
	defer func() { _ = a.Log.Sync() }()

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	return fn(ctx, a)
}
