package sqlstore

import (
	"time"

	"github.com/uptrace/bun"

	"trivia-engine/internal/domain"
)

type sessionRow struct {
	bun.BaseModel `bun:"table:game_sessions,alias:gs"`

	ID        int64      `bun:"id,pk,autoincrement"`
	Code      string     `bun:"code,notnull"`
	QuizID    int64      `bun:"quiz_id,notnull"`
	Status    string     `bun:"status,notnull"`
	StartedAt time.Time  `bun:"started_at,notnull"`
	EndedAt   *time.Time `bun:"ended_at"`
}

func (r sessionRow) toDomain() domain.Session {
	status, _ := domain.ParseStatus(r.Status)
	return domain.Session{
		ID:        r.ID,
		Code:      r.Code,
		QuizID:    r.QuizID,
		Status:    status,
		StartedAt: r.StartedAt,
		EndedAt:   r.EndedAt,
	}
}

type playerRow struct {
	bun.BaseModel `bun:"table:players,alias:p"`

	ID        int64     `bun:"id,pk,autoincrement"`
	SessionID int64     `bun:"session_id,notnull"`
	Name      string    `bun:"name,notnull"`
	Score     int       `bun:"score,notnull,default:0"`
	JoinedAt  time.Time `bun:"joined_at,notnull"`
}

func (r playerRow) toDomain() domain.Player {
	return domain.Player{
		ID:        r.ID,
		SessionID: r.SessionID,
		Name:      r.Name,
		Score:     r.Score,
		JoinedAt:  r.JoinedAt,
	}
}

// answerRow enforces one answer per session, player and question with the answer_once constraint.
type answerRow struct {
	bun.BaseModel `bun:"table:answer_records,alias:ar"`

	ID             int64     `bun:"id,pk,autoincrement"`
	SessionID      int64     `bun:"session_id,notnull,unique:answer_once"`
	PlayerID       int64     `bun:"player_id,notnull,unique:answer_once"`
	QuestionID     int64     `bun:"question_id,notnull,unique:answer_once"`
	AnswerID       int64     `bun:"answer_id,notnull"`
	IsCorrect      bool      `bun:"is_correct,notnull"`
	ResponseTimeNS int64     `bun:"response_time_ns,notnull"`
	PointsEarned   int       `bun:"points_earned,notnull"`
	AnsweredAt     time.Time `bun:"answered_at,notnull"`
}

func (r answerRow) toDomain() domain.AnswerRecord {
	return domain.AnswerRecord{
		ID:           r.ID,
		SessionID:    r.SessionID,
		PlayerID:     r.PlayerID,
		QuestionID:   r.QuestionID,
		AnswerID:     r.AnswerID,
		IsCorrect:    r.IsCorrect,
		ResponseTime: time.Duration(r.ResponseTimeNS),
		PointsEarned: r.PointsEarned,
		AnsweredAt:   r.AnsweredAt,
	}
}

// quizRow holds a whole quiz document; the Postgres loader reads the same table.
// bun marshals Data to a JSON object exactly once.
type quizRow struct {
	bun.BaseModel `bun:"table:quizzes,alias:q"`

	ID    int64       `bun:"id,pk"`
	Title string      `bun:"title,notnull"`
	Data  domain.Quiz `bun:"data,type:jsonb,notnull"`
}
