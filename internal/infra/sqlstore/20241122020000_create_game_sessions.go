package sqlstore

import (
	"context"

	"github.com/uptrace/bun"
)

func init() {
	Migrations.MustRegister(
		func(ctx context.Context, db *bun.DB) error {
			return db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
				if _, err := tx.NewCreateTable().Model((*sessionRow)(nil)).IfNotExists().Exec(ctx); err != nil {
					return err
				}
				if _, err := tx.NewCreateIndex().Model((*sessionRow)(nil)).
					Index("game_sessions_code_idx").Column("code").IfNotExists().Exec(ctx); err != nil {
					return err
				}

				if _, err := tx.NewCreateTable().Model((*playerRow)(nil)).IfNotExists().
					ForeignKey(`("session_id") REFERENCES "game_sessions" ("id") ON DELETE CASCADE`).
					Exec(ctx); err != nil {
					return err
				}
				if _, err := tx.NewCreateIndex().Model((*playerRow)(nil)).
					Index("players_session_idx").Column("session_id").IfNotExists().Exec(ctx); err != nil {
					return err
				}

				_, err := tx.NewCreateTable().Model((*answerRow)(nil)).IfNotExists().
					ForeignKey(`("session_id") REFERENCES "game_sessions" ("id") ON DELETE CASCADE`).
					ForeignKey(`("player_id") REFERENCES "players" ("id") ON DELETE CASCADE`).
					Exec(ctx)
				return err
			})
		},
		func(ctx context.Context, db *bun.DB) error {
			return db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
				for _, model := range []interface{}{(*answerRow)(nil), (*playerRow)(nil), (*sessionRow)(nil)} {
					if _, err := tx.NewDropTable().Model(model).IfExists().Exec(ctx); err != nil {
						return err
					}
				}
				return nil
			})
		},
	)
}
