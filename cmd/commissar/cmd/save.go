package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/solatis/commissar/internal/core/api"
	"github.com/solatis/commissar/internal/enforce"
	"github.com/solatis/commissar/internal/ruleset"
	"github.com/solatis/commissar/internal/types"
)

var saveCmd = &cobra.Command{
	Use:   "save",
	Short: "Enforce rules on a record document and store it",
	RunE:  runSave,
}

func init() {
	rootCmd.AddCommand(saveCmd)
	saveCmd.Flags().String("rules", "", "rule file (default rules.file)")
	saveCmd.Flags().String("file", "", "record document (JSON)")
	saveCmd.MarkFlagRequired("file")
}

func runSave(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	logger := slog.Default()

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("rules") {
		cfg.Rules.File, _ = cmd.Flags().GetString("rules")
	}
	if cfg.Database.URL == "" {
		return fmt.Errorf("--db-url required")
	}

	file, _ := cmd.Flags().GetString("file")
	rec, err := readDocument(file)
	if err != nil {
		return err
	}

	book, err := ruleset.LoadFile(cfg.Rules.File, logger)
	if err != nil {
		return fmt.Errorf("failed to load rules: %w", err)
	}

	st, closeStore, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	enforcer, err := enforce.New(book, st, enforce.WithLogger(logger))
	if err != nil {
		return err
	}

	card, saveErr := enforcer.Save(ctx, rec)
	if saveErr != nil && !errors.Is(saveErr, types.ErrSaveAborted) {
		return saveErr
	}

	if err := writeJSON(cmd.OutOrStdout(), api.NewSaveResponse(card, rec, saveErr == nil)); err != nil {
		return err
	}
	return saveErr
}
