package commands

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/cloudvigil/cloudvigil/internal/app"
	"github.com/cloudvigil/cloudvigil/pkg/findings"
	"github.com/cloudvigil/cloudvigil/pkg/report"
	"github.com/cloudvigil/cloudvigil/pkg/scan"
)

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Run one scan and print the findings summary",
	Long: `Run a full detection scan over the configured account and wait for
it to finish. Useful for CI/CD pipelines or cron jobs.

Example:
  cloudvigil scan --account 123456789012 --region us-west-2`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		a, err := app.New(ctx, cfg)
		if err != nil {
			return err
		}
		defer a.Close(ctx)

		account := a.Account()
		if account.ID == "" && !cfg.Scan.Mock {
			return fmt.Errorf("an account ID is required (--account or config)")
		}
		if account.ID == "" {
			account.ID = "mock-account"
		}

		collectors, err := a.Collectors(ctx, account)
		if err != nil {
			return err
		}

		runID, err := a.Orchestrator.StartScan(ctx, account, collectors)
		if err != nil {
			return err
		}

		run, err := a.Orchestrator.Wait(ctx, runID)
		switch {
		case errors.Is(err, scan.ErrPartialResult):
			fmt.Fprintln(cmd.ErrOrStderr(), "warning: some resource families failed; findings are partial")
		case err != nil:
			return err
		}
		if run.Status != scan.StatusCompleted {
			return fmt.Errorf("scan %s: %s", run.Status, run.FailureReason)
		}

		all, err := a.Findings.List(ctx, account.ID, findings.Filter{})
		if err != nil {
			return err
		}
		doc := report.Build(account.ID, all, time.Now())
		fmt.Fprint(cmd.OutOrStdout(), report.Summary(doc))
		return nil
	},
}
