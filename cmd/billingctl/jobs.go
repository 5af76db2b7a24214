package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/invoiceflow/invoiceflow-backend-go/internal/app"
	"github.com/invoiceflow/invoiceflow-backend-go/internal/config"
	"github.com/invoiceflow/invoiceflow-backend-go/internal/pkg/cron"
	"github.com/spf13/cobra"
)

// jobCmds exposes each billing job as a one-shot command for operators and external schedulers
func jobCmds() []*cobra.Command {
	var date string
	processRecurring := jobCommand("process-recurring", "Generate invoices for schedules due on a day",
		func(ctx context.Context, jobs *cron.BillingJobs, out io.Writer) error {
			day := time.Now().UTC()
			if date != "" {
				parsed, err := time.Parse(time.DateOnly, date)
				if err != nil {
					return fmt.Errorf("--date must be YYYY-MM-DD: %w", err)
				}
				day = parsed
			}
			result, err := jobs.ProcessRecurring(ctx, truncateDay(day))
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "recurring: total=%d success=%d failed=%d skipped=%d\n", result.Total, result.Success, result.Failed, result.Skipped)
			return nil
		})
	processRecurring.Flags().StringVar(&date, "date", "", "run date (YYYY-MM-DD), defaults to today")

	return []*cobra.Command{
		processRecurring,
		jobCommand("process-retries", "Retry collection of failed recurring invoices",
			func(ctx context.Context, jobs *cron.BillingJobs, out io.Writer) error {
				result, err := jobs.ProcessRetries(ctx)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "retries: processed=%d recovered=%d retried=%d exhausted=%d\n", result.Processed, result.Recovered, result.Retried, result.Exhausted)
				return nil
			}),
		jobCommand("mark-overdue", "Flag invoices past their due date",
			func(ctx context.Context, jobs *cron.BillingJobs, out io.Writer) error {
				n, err := jobs.MarkOverdue(ctx)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "overdue: flagged=%d\n", n)
				return nil
			}),
		jobCommand("expire-estimates", "Expire estimates past their expiry date",
			func(ctx context.Context, jobs *cron.BillingJobs, out io.Writer) error {
				n, err := jobs.ExpireEstimates(ctx)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "estimates: expired=%d\n", n)
				return nil
			}),
		jobCommand("process-reminders", "Send payment reminders due today",
			func(ctx context.Context, jobs *cron.BillingJobs, out io.Writer) error {
				result, err := jobs.ProcessReminders(ctx)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "reminders: processed=%d sent=%d failed=%d\n", result.Processed, result.Sent, result.Failed)
				return nil
			}),
		jobCommand("reconcile-payments", "Verify recent gateway payments against the provider",
			func(ctx context.Context, jobs *cron.BillingJobs, out io.Writer) error {
				s, err := jobs.ReconcilePayments(ctx)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "reconcile: checked=%d verified=%d mismatch=%d failed=%d\n", s.Checked, s.Verified, s.Mismatch, s.Failed)
				return nil
			}),
		jobCommand("process-recoveries", "Retry settlement of payments stuck after a failed webhook",
			func(ctx context.Context, jobs *cron.BillingJobs, out io.Writer) error {
				s, err := jobs.ProcessRecoveries(ctx)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "recoveries: attempted=%d successful=%d failed=%d\n", s.Attempted, s.Successful, s.Failed)
				return nil
			}),
		jobCommand("deliver-webhooks", "Send queued outbound webhook deliveries",
			func(ctx context.Context, jobs *cron.BillingJobs, out io.Writer) error {
				r, err := jobs.DeliverWebhooks(ctx)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "webhooks: attempted=%d delivered=%d failed=%d\n", r.Attempted, r.Delivered, r.Failed)
				return nil
			}),
		jobCommand("cleanup-invitations", "Mark pending invitations past expiry as expired",
			func(ctx context.Context, jobs *cron.BillingJobs, out io.Writer) error {
				n, err := jobs.CleanupInvitations(ctx)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "invitations: expired=%d\n", n)
				return nil
			}),
	}
}

func jobCommand(use, short string, run func(ctx context.Context, jobs *cron.BillingJobs, out io.Writer) error) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			cfg, err := config.Load()
			if err != nil {
				return err
			}
			application, err := app.New(ctx, cfg)
			if err != nil {
				return err
			}
			defer application.Close()

			return run(ctx, application.Jobs, cmd.OutOrStdout())
		},
	}
}

func truncateDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
