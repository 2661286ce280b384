package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"medword/internal/backend"
	"medword/internal/model"
)

var sourcesCmd = &cobra.Command{
	Use:   "sources",
	Short: "Print the knowledge sources known to the inference backend",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := loadRuntime()
		if err != nil {
			return err
		}
		defer func() { _ = logger.Sync() }()

		client := backend.New(
			backend.WithBaseURL(cfg.Backend.BaseURL),
			backend.WithAPIKey(cfg.Backend.APIKey),
			backend.WithTimeouts(cfg.RequestTimeout(), cfg.ListTimeout(), cfg.UploadTimeout()),
			backend.WithLogger(logger),
		)
		ctx, cancel := context.WithTimeout(cmd.Context(), cfg.ListTimeout())
		defer cancel()

		records, err := client.ListSources(ctx)
		if err != nil {
			return err
		}
		sources := make([]model.Source, 0, len(records))
		for _, r := range records {
			sources = append(sources, model.SourceFromRecord(r))
		}

		out, err := json.MarshalIndent(sources, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(out))
		return nil
	},
}
