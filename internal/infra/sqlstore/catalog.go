package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/uptrace/bun"

	"trivia-engine/internal/domain"
)

// Catalog stores whole quizzes as JSON documents in the quizzes table.
type Catalog struct {
	db *bun.DB
}

func NewCatalog(db *bun.DB) *Catalog {
	return &Catalog{db: db}
}

func (c *Catalog) LoadQuiz(ctx context.Context, quizID int64) (domain.Quiz, error) {
	var row quizRow
	err := c.db.NewSelect().Model(&row).Where("q.id = ?", quizID).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Quiz{}, domain.ErrQuizNotFound
	}
	if err != nil {
		return domain.Quiz{}, fmt.Errorf("load quiz: %w", err)
	}

	quiz := row.Data
	quiz.ID = row.ID
	return quiz, nil
}

// Upsert inserts or replaces quizzes by id in one transaction.
func (c *Catalog) Upsert(ctx context.Context, quizzes []domain.Quiz) error {
	if len(quizzes) == 0 {
		return nil
	}
	rows := make([]quizRow, 0, len(quizzes))
	for _, q := range quizzes {
		rows = append(rows, quizRow{ID: q.ID, Title: q.Title, Data: q})
	}

	return c.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		_, err := tx.NewInsert().Model(&rows).
			On("CONFLICT (id) DO UPDATE").
			Set("title = EXCLUDED.title").
			Set("data = EXCLUDED.data").
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("upsert quizzes: %w", err)
		}
		return nil
	})
}
