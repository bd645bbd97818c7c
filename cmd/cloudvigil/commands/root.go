package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/cloudvigil/cloudvigil/pkg/config"
	"github.com/cloudvigil/cloudvigil/pkg/version"
)

var (
	cfgFile string
	cfg     config.Config
)

var rootCmd = &cobra.Command{
	Use:   "cloudvigil",
	Short: "Orphaned cloud resource detection",
	Long: `CloudVigil scans cloud accounts for resources that cost money but
serve nothing: unattached volumes, stopped machines, load balancers with
no backends, orphaned snapshots, empty buckets.`,
	Version:       version.Current,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loaded, err := config.Load(cfgFile)
		if err != nil {
			return err
		}
		applyFlagOverrides(cmd, &loaded)
		cfg = loaded
		return nil
	},
}

func applyFlagOverrides(cmd *cobra.Command, c *config.Config) {
	if cmd.Flags().Changed("account") {
		c.Account.ID, _ = cmd.Flags().GetString("account")
	}
	if cmd.Flags().Changed("tenant") {
		c.Account.TenantID, _ = cmd.Flags().GetString("tenant")
	}
	if cmd.Flags().Changed("region") {
		regions, _ := cmd.Flags().GetStringSlice("region")
		c.Account.Regions = regions
	}
	if cmd.Flags().Changed("mock") {
		c.Scan.Mock, _ = cmd.Flags().GetBool("mock")
	}
	if cmd.Flags().Changed("static-pricing") {
		c.Pricing.Static, _ = cmd.Flags().GetBool("static-pricing")
	}
	if cmd.Flags().Changed("policies") {
		c.Policies.File, _ = cmd.Flags().GetString("policies")
	}
}

// Execute runs the CLI.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Path to config file")
	rootCmd.PersistentFlags().String("account", "", "Cloud account ID")
	rootCmd.PersistentFlags().String("tenant", "default", "Tenant whose rule overrides apply")
	rootCmd.PersistentFlags().StringSlice("region", nil, "Regions to scan")
	rootCmd.PersistentFlags().Bool("mock", false, "Scan a simulated estate instead of a real account")
	rootCmd.PersistentFlags().Bool("static-pricing", false, "Use the shipped price table instead of the vendor API")
	rootCmd.PersistentFlags().String("policies", "", "YAML file of custom detection scenarios")

	rootCmd.AddCommand(scanCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(findingsCmd)
	rootCmd.AddCommand(rulesCmd)
}
