package main

import (
	"context"
	"fmt"
	"io"
	"os/signal"
	"syscall"
	"time"

	"github.com/Maddyahamco00/Nigeria-bece-sub000/app"
	"github.com/Maddyahamco00/Nigeria-bece-sub000/config"
	"github.com/Maddyahamco00/Nigeria-bece-sub000/models"
	"github.com/Maddyahamco00/Nigeria-bece-sub000/services"
	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
)

func reconcileCmd() *cobra.Command {
	var (
		minAge time.Duration
		maxAge time.Duration
		limit  int
	)
	cmd := &cobra.Command{
		Use:   "reconcile",
		Short: "Re-verify pending payments with the gateway once",
		Long: `Lists payments still pending after --min-age (and younger than --max-age)
and settles each against the gateway, exactly as the verify endpoint would.

Examples:
  becectl reconcile
  becectl reconcile --min-age 1h --limit 500`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig()
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			a, err := app.New(ctx, cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			r := services.NewReconciler(a.PaymentsDB, a.Payments, minAge, maxAge, limit, a.Logger)
			results, err := r.RunOnce(ctx)
			if err != nil {
				return err
			}
			renderReconcile(cmd.OutOrStdout(), results)
			return nil
		},
	}
	cmd.Flags().DurationVar(&minAge, "min-age", 15*time.Minute, "skip payments younger than this")
	cmd.Flags().DurationVar(&maxAge, "max-age", 72*time.Hour, "skip payments older than this")
	cmd.Flags().IntVar(&limit, "limit", 100, "maximum payments per pass")
	return cmd
}

func renderReconcile(w io.Writer, results []services.ReconcileResult) {
	if len(results) == 0 {
		color.New(color.FgYellow).Fprintln(w, "No pending payments to reconcile")
		return
	}

	green := color.New(color.FgGreen).SprintFunc()
	red := color.New(color.FgRed).SprintFunc()
	yellow := color.New(color.FgYellow).SprintFunc()

	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Reference", "Status", "Code", "Error"})

	counts := map[string]int{}
	for _, res := range results {
		status := string(res.Status)
		errText := ""
		if res.Err != nil {
			status = "error"
			errText = res.Err.Error()
		}
		counts[status]++

		var shown string
		switch status {
		case string(models.PaymentStatusSuccess):
			shown = green(status)
		case string(models.PaymentStatusFailed), "error":
			shown = red(status)
		default:
			shown = yellow(status)
		}
		table.Append([]string{res.Reference, shown, res.Code, errText})
	}
	table.Render()

	fmt.Fprintf(w, "%d checked: %d success, %d failed, %d pending, %d error\n",
		len(results), counts[string(models.PaymentStatusSuccess)], counts[string(models.PaymentStatusFailed)],
		counts[string(models.PaymentStatusPending)], counts["error"])
}
