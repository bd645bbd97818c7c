package commands

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/cloudvigil/cloudvigil/internal/app"
	"github.com/cloudvigil/cloudvigil/pkg/detect"
	"github.com/cloudvigil/cloudvigil/pkg/findings"
	"github.com/cloudvigil/cloudvigil/pkg/inventory"
	"github.com/cloudvigil/cloudvigil/pkg/report"
)

var findingsCmd = &cobra.Command{
	Use:   "findings",
	Short: "Show or export persisted findings",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		a, err := app.New(ctx, cfg)
		if err != nil {
			return err
		}
		defer a.Close(ctx)

		account := cfg.Account.ID
		if account == "" {
			account = "mock-account"
		}

		status, _ := cmd.Flags().GetString("status")
		family, _ := cmd.Flags().GetString("family")
		minConfidence, _ := cmd.Flags().GetString("min-confidence")

		all, err := a.Findings.List(ctx, account, findings.Filter{
			Status:        findings.Status(status),
			Family:        inventory.Family(family),
			MinConfidence: detect.Confidence(minConfidence),
		})
		if err != nil {
			return err
		}
		doc := report.Build(account, all, time.Now())

		format, _ := cmd.Flags().GetString("format")
		switch format {
		case "json":
			return report.WriteJSON(os.Stdout, doc)
		case "csv":
			return report.WriteCSV(os.Stdout, doc)
		case "table":
			fmt.Fprint(cmd.OutOrStdout(), report.Summary(doc))
			return nil
		default:
			return fmt.Errorf("unknown format %q (want table, json or csv)", format)
		}
	},
}

func init() {
	findingsCmd.Flags().String("format", "table", "Output format: table, json or csv")
	findingsCmd.Flags().String("status", "", "Filter by status (open, resolved)")
	findingsCmd.Flags().String("family", "", "Filter by resource family")
	findingsCmd.Flags().String("min-confidence", "", "Minimum confidence tier")
}
