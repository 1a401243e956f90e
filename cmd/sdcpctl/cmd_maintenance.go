package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sdcpainting/referral_site/app"
)

var gcCmd = &cobra.Command{
	Use:   "gc",
	Short: "Run maintenance tasks once, outside the worker schedule",
}

var gcOrphansCmd = &cobra.Command{
	Use:   "orphans",
	Short: "Retry deleting media artifacts whose cleanup failed",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withApp(func(ctx context.Context, a *app.App) error {
			n := a.Maintenance.CollectOrphans(ctx)
			fmt.Fprintf(cmd.OutOrStdout(), "removed %d orphaned artifacts\n", n)
			return nil
		})
	},
}

var gcPendingCmd = &cobra.Command{
	Use:   "pending",
	Short: "Remove stale uploads that never finished processing",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withApp(func(ctx context.Context, a *app.App) error {
			n := a.Maintenance.SweepPendingUploads(ctx)
			fmt.Fprintf(cmd.OutOrStdout(), "removed %d stale pending uploads\n", n)
			return nil
		})
	},
}

var seedAdminCmd = &cobra.Command{
	Use:   "seed-admin",
	Short: "Create the admin account, or promote an existing user",
	Args:  cobra.NoArgs,
	RunE:  runSeedAdmin,
}

func runSeedAdmin(cmd *cobra.Command, _ []string) error {
	return withApp(func(ctx context.Context, a *app.App) error {
		adm := a.Config.Admin
		if v, _ := cmd.Flags().GetString("email"); v != "" {
			adm.Email = v
		}
		if v, _ := cmd.Flags().GetString("password"); v != "" {
			adm.Password = v
		}
		if v, _ := cmd.Flags().GetString("name"); v != "" {
			adm.FullName = v
		}
		if adm.Email == "" || adm.Password == "" {
			return errors.New("admin email and password are required")
		}

		created, err := a.Auth.SeedAdmin(ctx, adm.Email, adm.Password, adm.FullName)
		if err != nil {
			return err
		}
		a.Log.Debug("seed-admin finished", zap.Bool("created", created))
		if created {
			fmt.Fprintf(cmd.OutOrStdout(), "created admin %s\n", adm.Email)
		} else {
			fmt.Fprintf(cmd.OutOrStdout(), "%s is an admin\n", adm.Email)
		}
		return nil
	})
}
