package main

import (
	"github.com/spf13/cobra"

	"github.com/hiddenhill/api/internal/config"
	"github.com/hiddenhill/api/internal/logger"
)

func newRootCommand() *cobra.Command {
	var cfg *config.Config

	rootCmd := &cobra.Command{
		Use:           "hiddenhill",
		Short:         "Hidden Hill video job service",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			loaded, err := config.Load()
			if err != nil {
				return err
			}
			logger.Configure(loaded.Server.LogLevel)
			*cfg = *loaded
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}
	cfg = &config.Config{}

	rootCmd.AddCommand(newServeCommand(cfg))
	rootCmd.AddCommand(newAPICommand(cfg))
	rootCmd.AddCommand(newWorkerCommand(cfg))
	rootCmd.AddCommand(newMigrateCommand(cfg))
	rootCmd.AddCommand(newVideosCommand(cfg))

	return rootCmd
}

func newServeCommand(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the background worker in one process",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(cfg, func(rt *runtime) error {
				return rt.serve(cmd.Context())
			})
		},
	}
}

func newAPICommand(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "api",
		Short: "Run the HTTP API only",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(cfg, func(rt *runtime) error {
				return rt.runAPI(cmd.Context())
			})
		},
	}
}

func newWorkerCommand(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "worker",
		Short: "Run the background worker only",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(cfg, func(rt *runtime) error {
				return rt.runWorker(cmd.Context())
			})
		},
	}
}

func newMigrateCommand(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cfg, func(rt *runtime) error {
				logger.Info("Database schema is up to date")
				return nil
			})
		},
	}
}
