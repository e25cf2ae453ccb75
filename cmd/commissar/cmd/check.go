package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/solatis/commissar/internal/core/api"
	"github.com/solatis/commissar/internal/enforce"
	"github.com/solatis/commissar/internal/entity"
	"github.com/solatis/commissar/internal/ruleset"
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Evaluate rules against a stored record or a record file",
	Long: `Evaluate rules against a record without saving it.

The record is read from the database with --type and --id, or from a JSON
document with --file.`,
	RunE: runCheck,
}

func init() {
	rootCmd.AddCommand(checkCmd)
	checkCmd.Flags().String("rules", "", "rule file (default rules.file)")
	checkCmd.Flags().String("type", "", "record type")
	checkCmd.Flags().String("id", "", "record ID")
	checkCmd.Flags().String("file", "", "record document (JSON)")
	checkCmd.Flags().String("event", enforce.EventSave, "event to evaluate")
}

func runCheck(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	logger := slog.Default()

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("rules") {
		cfg.Rules.File, _ = cmd.Flags().GetString("rules")
	}

	typeName, _ := cmd.Flags().GetString("type")
	id, _ := cmd.Flags().GetString("id")
	file, _ := cmd.Flags().GetString("file")
	event, _ := cmd.Flags().GetString("event")
	if hasFile, hasID := file != "", typeName != "" && id != ""; hasFile == hasID {
		return fmt.Errorf("either --file or both --type and --id required")
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

	var rec *entity.Record
	if file != "" {
		rec, err = readDocument(file)
	} else {
		rec, err = st.FindByID(ctx, typeName, id)
	}
	if err != nil {
		return err
	}

	card := enforcer.CheckRecord(ctx, rec, event)
	if err := writeJSON(cmd.OutOrStdout(), api.NewResponse(card)); err != nil {
		return err
	}
	if card.AbortEvent() {
		return fmt.Errorf("%s would be aborted by %d failing rules", rec, len(card.Errors()))
	}
	return nil
}

func readDocument(path string) (*entity.Record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read record: %w", err)
	}
	var doc entity.Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse record %s: %w", path, err)
	}
	return doc.Record()
}
