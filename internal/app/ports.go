package app

import (
	"context"
	"time"

	"trivia-engine/internal/domain"
)

// Store persists sessions, players and the answer ledger (in-memory, SQL, etc).
type Store interface {
	// CreateSession inserts s and assigns its ID.
	CreateSession(ctx context.Context, s *domain.Session) error
	GetSession(ctx context.Context, id int64) (domain.Session, error)
	// FindSessionByCode returns the most recent session that was issued code.
	FindSessionByCode(ctx context.Context, code string) (domain.Session, error)
	UpdateSessionStatus(ctx context.Context, id int64, status domain.Status, endedAt *time.Time) error

	// AddPlayer inserts p and assigns its ID.
	AddPlayer(ctx context.Context, p *domain.Player) error
	GetPlayer(ctx context.Context, id int64) (domain.Player, error)
	// ListPlayers returns the roster of a session in join order.
	ListPlayers(ctx context.Context, sessionID int64) ([]domain.Player, error)

	// RecordAnswer inserts r and adds r.PointsEarned to the player's score as one
	// atomic unit, returning the new total. A second record for the same
	// session, player and question fails with domain.ErrDuplicateSubmission.
	RecordAnswer(ctx context.Context, r *domain.AnswerRecord) (int, error)
	GetAnswerRecord(ctx context.Context, id int64) (domain.AnswerRecord, error)
	ListAnswerRecords(ctx context.Context, sessionID int64) ([]domain.AnswerRecord, error)
	// AnsweredQuestionIDs returns the distinct question ids present in the session's ledger.
	AnsweredQuestionIDs(ctx context.Context, sessionID int64) ([]int64, error)
}

// CodeRegistry tracks join codes held by sessions that are not yet terminal.
type CodeRegistry interface {
	// Claim reserves code and reports false if another session already holds it.
	Claim(ctx context.Context, code string) (bool, error)
	Release(ctx context.Context, code string) error
}

// QuizRepository loads quiz content (from cache/backing store).
type QuizRepository interface {
	GetQuiz(ctx context.Context, quizID int64) (domain.Quiz, error)
}
