package main

import (
	"github.com/spf13/cobra"
)

func newRootCommand() *cobra.Command {
	opts := &globalOptions{}
	ctx := newCommandContext(opts)

	rootCmd := &cobra.Command{
		Use:           "opsctl",
		Short:         "Operator commands for sermon-publisher bulk video management",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			_, err := ctx.ensureConfig()
			return err
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&opts.configPath, "config", "c", "", "Configuration file path (defaults to CONFIG_PATH)")
	flags.StringVar(&opts.server, "server", "", "Base URL of a sermon-publisher instance; discovered through etcd when empty")
	flags.StringVar(&opts.operator, "operator", "", "Operator name recorded in the admin token (defaults to $USER)")
	flags.DurationVar(&opts.timeout, "timeout", 0, "Request timeout (default 10m)")
	flags.BoolVar(&opts.json, "json", false, "Print the result as JSON")

	rootCmd.AddCommand(newApproveCommand(ctx))
	rootCmd.AddCommand(newRejectCommand(ctx))
	rootCmd.AddCommand(newRetryFailedCommand(ctx))
	rootCmd.AddCommand(newCleanupCommand(ctx))
	rootCmd.AddCommand(newUpdateMetadataCommand(ctx))

	return rootCmd
}
