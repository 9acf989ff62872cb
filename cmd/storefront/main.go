package main

import (
	"context"
	"fmt"
	"os"

	"gozon/storefront/internal/app"
	"gozon/storefront/internal/config"

	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "storefront:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var envFile string

	root := &cobra.Command{
		Use:           "storefront",
		Short:         "Storefront order fulfillment service",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.Serve(loadConfig(envFile))
		},
	}
	root.PersistentFlags().StringVar(&envFile, "env-file", "", "dotenv file to load before reading the environment (default .env)")

	root.AddCommand(&cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API, outbox dispatcher and tracking stream",
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.Serve(loadConfig(envFile))
		},
	})

	root.AddCommand(&cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			return app.Migrate(ctx, loadConfig(envFile))
		},
	})

	return root
}

func loadConfig(envFile string) config.Config {
	if envFile == "" {
		return config.Load()
	}
	return config.Load(envFile)
}
