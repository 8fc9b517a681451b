package app

import (
	"context"
	"errors"
	"fmt"

	"trivia-engine/internal/broadcast"
	"trivia-engine/internal/domain"
	"trivia-engine/internal/metrics"
)

// Submit scores and records one answer. The store enforces one record per
// session, player and question and applies the score increment atomically with it.
func (e *Engine) Submit(ctx context.Context, sub domain.AnswerSubmission) (domain.ScoredAnswer, error) {
	scored, err := e.submit(ctx, sub)
	switch {
	case err == nil && scored.IsCorrect:
		metrics.AnswersSubmitted.WithLabelValues("correct").Inc()
	case err == nil:
		metrics.AnswersSubmitted.WithLabelValues("wrong").Inc()
	case errors.Is(err, domain.ErrDuplicateSubmission):
		metrics.AnswersSubmitted.WithLabelValues("duplicate").Inc()
	default:
		metrics.AnswersSubmitted.WithLabelValues("rejected").Inc()
	}
	return scored, err
}

func (e *Engine) submit(ctx context.Context, sub domain.AnswerSubmission) (domain.ScoredAnswer, error) {
	session, err := e.store.GetSession(ctx, sub.SessionID)
	if errors.Is(err, domain.ErrNotFound) {
		return domain.ScoredAnswer{}, domain.ErrGameNotInProgress
	}
	if err != nil {
		return domain.ScoredAnswer{}, err
	}
	if session.Status != domain.StatusInProgress {
		return domain.ScoredAnswer{}, domain.ErrGameNotInProgress
	}

	if sub.ResponseTime < 0 {
		return domain.ScoredAnswer{}, domain.ErrNegativeResponseTime
	}

	player, err := e.store.GetPlayer(ctx, sub.PlayerID)
	if errors.Is(err, domain.ErrNotFound) || (err == nil && player.SessionID != session.ID) {
		return domain.ScoredAnswer{}, domain.ErrPlayerNotInSession
	}
	if err != nil {
		return domain.ScoredAnswer{}, err
	}

	quiz, err := e.quizzes.GetQuiz(ctx, session.QuizID)
	if err != nil {
		return domain.ScoredAnswer{}, err
	}
	question, ok := quiz.Question(sub.QuestionID)
	if !ok {
		return domain.ScoredAnswer{}, domain.ErrQuestionNotFound
	}
	answer, ok := question.Answer(sub.AnswerID)
	if !ok {
		return domain.ScoredAnswer{}, domain.ErrAnswerNotFound
	}

	points := e.scorer.WithMaxPoints(question.Points).Score(answer.IsCorrect, sub.ResponseTime, question.TimeLimitDuration())
	record := domain.AnswerRecord{
		SessionID:    session.ID,
		PlayerID:     player.ID,
		QuestionID:   question.ID,
		AnswerID:     answer.ID,
		IsCorrect:    answer.IsCorrect,
		ResponseTime: sub.ResponseTime,
		PointsEarned: points,
		AnsweredAt:   e.now().UTC(),
	}
	total, err := e.store.RecordAnswer(ctx, &record)
	if errors.Is(err, domain.ErrDuplicateSubmission) || errors.Is(err, domain.ErrGameNotInProgress) {
		return domain.ScoredAnswer{}, err
	}
	if err != nil {
		return domain.ScoredAnswer{}, fmt.Errorf("record answer: %w", err)
	}

	e.log.DebugContext(ctx, "answer recorded",
		"session_id", session.ID, "player_id", player.ID, "question_id", question.ID,
		"correct", answer.IsCorrect, "points", points, "total", total)

	e.hub.Publish(ctx, session.Code, broadcast.AnswerSubmittedEvent(broadcast.AnswerSubmitted{
		PlayerID:   player.ID,
		PlayerName: player.Name,
		Score:      total,
		IsCorrect:  answer.IsCorrect,
	}))
	return domain.ScoredAnswer{AnswerRecord: record, TotalScore: total}, nil
}
