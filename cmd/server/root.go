package main

import (
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"medword/internal/config"
	"medword/internal/pkg/logger"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "medword",
	Short: "Document bridge for the medical writing assistant",
	Long: `medword keeps the writing assistant's state next to the word processor:
chat sessions grounded in the open document, the knowledge source list,
the prompt library, translation and generation, and dataset charts.

  medword serve              # run the bridge API
  medword sources            # print the reconciled knowledge sources
  medword token --role admin # mint a bridge token`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if configPath != "" {
			return os.Setenv("CONFIG_FILE", configPath)
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to the TOML config file (default configs/config.toml)")
	rootCmd.AddCommand(serveCmd, sourcesCmd, tokenCmd)
}

// loadRuntime reads the config and builds the logger shared by every command.
func loadRuntime() (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	return cfg, logger.New(cfg.App.LogFile, cfg.IsProduction()), nil
}
