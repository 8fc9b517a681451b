package cli

import (
	"os"

	"github.com/spf13/cobra"

	"trivia-engine/internal/infra/memory"
	"trivia-engine/internal/infra/sqlstore"
	"trivia-engine/internal/telemetry"
)

func newCatalogCmd(f *flags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "Manage the quiz catalog",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "import <file>",
		Short: "Insert or replace quizzes from a YAML catalog file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := f.load()
			if err != nil {
				return err
			}
			log := telemetry.NewLogger(os.Stderr, cfg.Log.Level, cfg.Log.Format)

			quizzes, err := memory.ReadCatalogFile(args[0])
			if err != nil {
				return err
			}
			db, err := openMigrated(cmd.Context(), cfg, log)
			if err != nil {
				return err
			}
			defer db.Close()

			if err := sqlstore.NewCatalog(db).Upsert(cmd.Context(), quizzes); err != nil {
				return err
			}
			log.Info("catalog imported", "file", args[0], "quizzes", len(quizzes))
			return nil
		},
	})
	return cmd
}
