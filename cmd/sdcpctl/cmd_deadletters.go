package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/sdcpainting/referral_site/app"
)

var deadLettersCmd = &cobra.Command{
	Use:     "deadletters",
	Aliases: []string{"dl"},
	Short:   "Inspect and requeue jobs that exhausted their retries",
}

var deadLettersListCmd = &cobra.Command{
	Use:   "list",
	Short: "List dead letters, newest first",
	Args:  cobra.NoArgs,
	RunE:  runDeadLettersList,
}

var deadLettersShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Print one dead letter as JSON",
	Args:  cobra.ExactArgs(1),
	RunE:  runDeadLettersShow,
}

var deadLettersRequeueCmd = &cobra.Command{
	Use:   "requeue <id>...",
	Short: "Push dead letters back onto the queue",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runDeadLettersRequeue,
}

func runDeadLettersList(cmd *cobra.Command, _ []string) error {
	all, _ := cmd.Flags().GetBool("all")
	return withApp(func(ctx context.Context, a *app.App) error {
		list, err := a.DeadLetters.List(ctx, all)
		if err != nil {
			return err
		}
		if len(list) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "no dead letters")
			return nil
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tJOB\tATTEMPTS\tFAILED AT\tREQUEUED\tREASON")
		for _, dl := range list {
			requeued := "-"
			if dl.RequeuedAt != nil {
				requeued = dl.RequeuedAt.Format("2006-01-02 15:04")
			}
			fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%s\t%s\n",
				dl.ID, dl.Envelope.JobName, dl.Attempts, dl.FailedAt.Format("2006-01-02 15:04"), requeued, dl.Reason)
		}
		return w.Flush()
	})
}

func runDeadLettersShow(cmd *cobra.Command, args []string) error {
	return withApp(func(ctx context.Context, a *app.App) error {
		dl, err := a.DeadLetters.Get(ctx, args[0])
		if err != nil {
			return err
		}
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(dl)
	})
}

func runDeadLettersRequeue(cmd *cobra.Command, args []string) error {
	return withApp(func(ctx context.Context, a *app.App) error {
		if a.Config.QueueInProcess() {
			return errors.New("requeue needs QUEUE_DRIVER=store; the memory queue lives inside the api process")
		}
		var failed int
		for _, id := range args {
			jobID, err := a.DeadLetters.Requeue(ctx, id)
			if err != nil {
				failed++
				fmt.Fprintf(cmd.ErrOrStderr(), "%s: %v\n", id, err)
				continue
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s requeued as job %s\n", id, jobID)
		}
		if failed > 0 {
			return fmt.Errorf("%d of %d dead letters not requeued", failed, len(args))
		}
		return nil
	})
}
