package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/uptrace/bun"

	"trivia-engine/internal/domain"
	"trivia-engine/internal/metrics"
)

// Store implements app.Store on a bun database.
type Store struct {
	db *bun.DB
}

func NewStore(db *bun.DB) *Store {
	return &Store{db: db}
}

func (s *Store) CreateSession(ctx context.Context, session *domain.Session) error {
	defer metrics.RecordStoreOperation("create_session", time.Now())

	row := sessionRow{
		Code:      session.Code,
		QuizID:    session.QuizID,
		Status:    session.Status.String(),
		StartedAt: session.StartedAt,
		EndedAt:   session.EndedAt,
	}
	if _, err := s.db.NewInsert().Model(&row).Returning("id").Exec(ctx); err != nil {
		return fmt.Errorf("insert session: %w", err)
	}
	session.ID = row.ID
	return nil
}

func (s *Store) GetSession(ctx context.Context, id int64) (domain.Session, error) {
	var row sessionRow
	err := s.db.NewSelect().Model(&row).Where("gs.id = ?", id).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Session{}, domain.ErrSessionNotFound
	}
	if err != nil {
		return domain.Session{}, fmt.Errorf("select session: %w", err)
	}
	return row.toDomain(), nil
}

func (s *Store) FindSessionByCode(ctx context.Context, code string) (domain.Session, error) {
	var row sessionRow
	err := s.db.NewSelect().Model(&row).
		Where("gs.code = ?", code).
		OrderExpr("gs.id DESC").
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Session{}, domain.ErrSessionNotFound
	}
	if err != nil {
		return domain.Session{}, fmt.Errorf("select session by code: %w", err)
	}
	return row.toDomain(), nil
}

func (s *Store) UpdateSessionStatus(ctx context.Context, id int64, status domain.Status, endedAt *time.Time) error {
	q := s.db.NewUpdate().Model((*sessionRow)(nil)).
		Set("status = ?", status.String()).
		Where("id = ?", id)
	if endedAt != nil {
		q = q.Set("ended_at = ?", *endedAt)
	}
	res, err := q.Exec(ctx)
	if err != nil {
		return fmt.Errorf("update session: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return domain.ErrSessionNotFound
	}
	return nil
}

func (s *Store) AddPlayer(ctx context.Context, p *domain.Player) error {
	defer metrics.RecordStoreOperation("add_player", time.Now())

	row := playerRow{
		SessionID: p.SessionID,
		Name:      p.Name,
		Score:     p.Score,
		JoinedAt:  p.JoinedAt,
	}
	if _, err := s.db.NewInsert().Model(&row).Returning("id").Exec(ctx); err != nil {
		return fmt.Errorf("insert player: %w", err)
	}
	p.ID = row.ID
	return nil
}

func (s *Store) GetPlayer(ctx context.Context, id int64) (domain.Player, error) {
	var row playerRow
	err := s.db.NewSelect().Model(&row).Where("p.id = ?", id).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Player{}, domain.ErrPlayerNotFound
	}
	if err != nil {
		return domain.Player{}, fmt.Errorf("select player: %w", err)
	}
	return row.toDomain(), nil
}

func (s *Store) ListPlayers(ctx context.Context, sessionID int64) ([]domain.Player, error) {
	var rows []playerRow
	err := s.db.NewSelect().Model(&rows).
		Where("p.session_id = ?", sessionID).
		OrderExpr("p.joined_at ASC, p.id ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("select players: %w", err)
	}
	players := make([]domain.Player, 0, len(rows))
	for _, r := range rows {
		players = append(players, r.toDomain())
	}
	return players, nil
}

// RecordAnswer inserts the ledger row and bumps the score in one transaction.
// The answer_once constraint turns a concurrent duplicate into a unique violation.
// The session row is touched first: it must still be InProgress, and the row lock
// holds back a concurrent status change until the answer commits.
func (s *Store) RecordAnswer(ctx context.Context, r *domain.AnswerRecord) (int, error) {
	defer metrics.RecordStoreOperation("record_answer", time.Now())

	row := answerRow{
		SessionID:      r.SessionID,
		PlayerID:       r.PlayerID,
		QuestionID:     r.QuestionID,
		AnswerID:       r.AnswerID,
		IsCorrect:      r.IsCorrect,
		ResponseTimeNS: int64(r.ResponseTime),
		PointsEarned:   r.PointsEarned,
		AnsweredAt:     r.AnsweredAt,
	}

	var total int
	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		res, err := tx.NewUpdate().Model((*sessionRow)(nil)).
			Set("status = status").
			Where("id = ?", r.SessionID).
			Where("status = ?", domain.StatusInProgress.String()).
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("lock session: %w", err)
		}
		if n, err := res.RowsAffected(); err == nil && n == 0 {
			return domain.ErrGameNotInProgress
		}

		if _, err := tx.NewInsert().Model(&row).Returning("id").Exec(ctx); err != nil {
			if isUniqueViolation(err) {
				return domain.ErrDuplicateSubmission
			}
			return fmt.Errorf("insert answer: %w", err)
		}

		res, err = tx.NewUpdate().Model((*playerRow)(nil)).
			Set("score = score + ?", r.PointsEarned).
			Where("id = ?", r.PlayerID).
			Where("session_id = ?", r.SessionID).
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("update score: %w", err)
		}
		if n, err := res.RowsAffected(); err == nil && n == 0 {
			return domain.ErrPlayerNotInSession
		}

		return tx.NewSelect().Model((*playerRow)(nil)).
			Column("score").
			Where("p.id = ?", r.PlayerID).
			Scan(ctx, &total)
	})
	if err != nil {
		return 0, err
	}
	r.ID = row.ID
	return total, nil
}

func (s *Store) GetAnswerRecord(ctx context.Context, id int64) (domain.AnswerRecord, error) {
	var row answerRow
	err := s.db.NewSelect().Model(&row).Where("ar.id = ?", id).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.AnswerRecord{}, domain.ErrAnswerRecordNotFound
	}
	if err != nil {
		return domain.AnswerRecord{}, fmt.Errorf("select answer: %w", err)
	}
	return row.toDomain(), nil
}

func (s *Store) ListAnswerRecords(ctx context.Context, sessionID int64) ([]domain.AnswerRecord, error) {
	var rows []answerRow
	err := s.db.NewSelect().Model(&rows).
		Where("ar.session_id = ?", sessionID).
		OrderExpr("ar.id ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("select answers: %w", err)
	}
	records := make([]domain.AnswerRecord, 0, len(rows))
	for _, r := range rows {
		records = append(records, r.toDomain())
	}
	return records, nil
}

func (s *Store) AnsweredQuestionIDs(ctx context.Context, sessionID int64) ([]int64, error) {
	var ids []int64
	err := s.db.NewSelect().Model((*answerRow)(nil)).
		ColumnExpr("DISTINCT ar.question_id").
		Where("ar.session_id = ?", sessionID).
		OrderExpr("ar.question_id ASC").
		Scan(ctx, &ids)
	if err != nil {
		return nil, fmt.Errorf("select answered questions: %w", err)
	}
	return ids, nil
}
