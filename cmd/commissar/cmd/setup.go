package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"

	"github.com/jmoiron/sqlx"
	"github.com/spf13/cobra"

	"github.com/solatis/commissar/internal/core/config"
	"github.com/solatis/commissar/internal/core/db"
	"github.com/solatis/commissar/internal/store"
)

// loadConfig applies the root --db-url flag over file and environment.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.LoadConfig(configFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if cmd.Flags().Changed("db-url") {
		cfg.Database.URL = dbURL
	}
	return cfg, nil
}

func schemaFor(cfg *config.Config) (*store.Schema, error) {
	assocs := make([]store.Association, len(cfg.Schema.Associations))
	for i, a := range cfg.Schema.Associations {
		assocs[i] = store.Association{Type: a.Type, Field: a.Field, ChildType: a.ChildType, ForeignKey: a.ForeignKey}
	}
	return store.NewSchema(assocs...)
}

// openStore returns the SQL store for cfg.Database.URL, or the in-memory
// store when no URL is configured. The returned close func is never nil.
func openStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (store.Store, func() error, error) {
	schema, err := schemaFor(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid schema: %w", err)
	}

	if cfg.Database.URL == "" {
		logger.Warn("No database configured, records are kept in memory")
		return store.NewMemoryStore(schema), func() error { return nil }, nil
	}

	conn, err := openDatabase(ctx, cfg.Database.URL)
	if err != nil {
		return nil, nil, err
	}
	st, err := store.NewSQLStore(conn, schema, logger)
	if err != nil {
		conn.Close()
		return nil, nil, err
	}
	return st, conn.Close, nil
}

// openDatabase opens url and refuses to continue when migrations are
// pending.
func openDatabase(ctx context.Context, url string) (*sqlx.DB, error) {
	conn, err := db.Open(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	statuses, err := db.MigrateStatus(ctx, conn)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to check migrations: %w", err)
	}
	for _, s := range statuses {
		if !s.Applied {
			conn.Close()
			return nil, fmt.Errorf("migration %s not applied - run 'commissar migrate' first", s.ID)
		}
	}
	return conn, nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
