package cmd

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/psds-microservice/helpdesk-service/internal/config"
	"github.com/psds-microservice/helpdesk-service/internal/logger"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:          "helpdesk-service",
	Short:        "Support tickets with role-gated workflow and per-ticket real-time updates",
	RunE:         runAPI,
	SilenceUsage: true,
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "optional YAML config file (env vars override it)")
	rootCmd.AddCommand(apiCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(workerCmd)
}

func loadConfig() (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, err
	}
	return cfg, logger.New(cfg.AppEnv, cfg.LogLevel), nil
}
