package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"github.com/uptrace/bun"

	"trivia-engine/internal/config"
	"trivia-engine/internal/infra/sqlstore"
	"trivia-engine/internal/telemetry"
)

// newMigrateCmd applies database migrations for the configured SQL store.
func newMigrateCmd(f *flags) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := f.load()
			if err != nil {
				return err
			}
			log := telemetry.NewLogger(os.Stderr, cfg.Log.Level, cfg.Log.Format)

			db, err := openSQL(cfg)
			if err != nil {
				return err
			}
			defer db.Close()

			if err := sqlstore.Migrate(cmd.Context(), db); err != nil {
				return err
			}
			log.Info("migrations applied", "driver", cfg.Store.Driver)
			return nil
		},
	}
}

// openSQL opens the database behind the sql store drivers.
func openSQL(cfg config.Config) (*bun.DB, error) {
	switch cfg.Store.Driver {
	case "postgres":
		return sqlstore.OpenPostgres(cfg.Postgres.URL), nil
	case "sqlite":
		return sqlstore.OpenSQLite(cfg.Store.SQLitePath)
	default:
		return nil, fmt.Errorf("store driver %q has no database", cfg.Store.Driver)
	}
}

func openMigrated(ctx context.Context, cfg config.Config, log *slog.Logger) (*bun.DB, error) {
	db, err := openSQL(cfg)
	if err != nil {
		return nil, err
	}
	if err := sqlstore.Migrate(ctx, db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	log.Info("database ready", "driver", cfg.Store.Driver)
	return db, nil
}
