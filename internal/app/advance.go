package app

import (
	"context"
	"fmt"

	"trivia-engine/internal/broadcast"
	"trivia-engine/internal/domain"
	"trivia-engine/internal/metrics"
)

// Advance presents the lowest ordered question nobody has answered yet. Progress is
// derived from the answer ledger, so calling it again before an answer lands
// re-broadcasts the same question. When every question has been answered the
// session completes and ok is false.
func (e *Engine) Advance(ctx context.Context, sessionID int64) (question domain.Question, ok bool, err error) {
	unlock := e.sessions.Lock(sessionID)
	defer unlock()

	session, err := e.store.GetSession(ctx, sessionID)
	if err != nil {
		return domain.Question{}, false, err
	}
	switch session.Status {
	case domain.StatusCancelled:
		return domain.Question{}, false, domain.ErrGameCancelled
	case domain.StatusCompleted:
		return domain.Question{}, false, nil
	}

	quiz, err := e.quizzes.GetQuiz(ctx, session.QuizID)
	if err != nil {
		return domain.Question{}, false, err
	}
	answered, err := e.store.AnsweredQuestionIDs(ctx, sessionID)
	if err != nil {
		return domain.Question{}, false, fmt.Errorf("answered questions: %w", err)
	}

	next, found := nextQuestion(quiz, answered)
	if !found {
		return domain.Question{}, false, e.complete(ctx, &session)
	}

	if session.Status == domain.StatusWaitingToStart {
		if err := e.store.UpdateSessionStatus(ctx, sessionID, domain.StatusInProgress, nil); err != nil {
			return domain.Question{}, false, fmt.Errorf("update session status: %w", err)
		}
		metrics.SessionTransitions.WithLabelValues(domain.StatusInProgress.String()).Inc()
		e.log.InfoContext(ctx, "session in progress", "session_id", sessionID)
	}

	broadcasted := next
	if e.redact {
		broadcasted = next.Redacted()
	}
	e.hub.Publish(ctx, session.Code, broadcast.NewQuestion(broadcasted))
	return next, true, nil
}

// complete reads the roster only after the status change: from then on the store
// rejects answers, so the published leaderboard is final.
func (e *Engine) complete(ctx context.Context, session *domain.Session) error {
	if err := e.finish(ctx, session, domain.StatusCompleted); err != nil {
		return err
	}
	players, err := e.store.ListPlayers(ctx, session.ID)
	if err != nil {
		return fmt.Errorf("list players: %w", err)
	}
	e.hub.Publish(ctx, session.Code, broadcast.GameCompleted(domain.Leaderboard(players)))
	return nil
}

func nextQuestion(quiz domain.Quiz, answered []int64) (domain.Question, bool) {
	done := make(map[int64]struct{}, len(answered))
	for _, id := range answered {
		done[id] = struct{}{}
	}
	for _, q := range quiz.OrderedQuestions() {
		if _, ok := done[q.ID]; !ok {
			return q, true
		}
	}
	return domain.Question{}, false
}
