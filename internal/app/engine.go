package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"trivia-engine/internal/broadcast"
	"trivia-engine/internal/domain"
	"trivia-engine/internal/metrics"
	"trivia-engine/internal/scoring"
)

// Engine runs trivia sessions: lifecycle, roster, answer ledger and event fan-out.
type Engine struct {
	store     Store
	quizzes   QuizRepository
	directory *Directory
	hub       *broadcast.Hub

	scorer scoring.Scorer
	redact bool
	now    func() time.Time
	log    *slog.Logger

	sessions *keyedMutex
}

type Option func(*Engine)

func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		e.log = l
	}
}

// WithClock is used by tests for deterministic timestamps.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		e.now = now
	}
}

func WithScorer(s scoring.Scorer) Option {
	return func(e *Engine) {
		e.scorer = s
	}
}

// WithRedactedAnswers strips correctness flags from broadcast questions and session views.
func WithRedactedAnswers(redact bool) Option {
	return func(e *Engine) {
		e.redact = redact
	}
}

func NewEngine(store Store, quizzes QuizRepository, directory *Directory, hub *broadcast.Hub, opts ...Option) *Engine {
	e := &Engine{
		store:     store,
		quizzes:   quizzes,
		directory: directory,
		hub:       hub,
		scorer:    scoring.Default(),
		now:       time.Now,
		log:       slog.Default(),
		sessions:  newKeyedMutex(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Start creates a session for quizID in WaitingToStart with a fresh join code.
func (e *Engine) Start(ctx context.Context, quizID int64) (domain.Session, error) {
	if _, err := e.quizzes.GetQuiz(ctx, quizID); err != nil {
		return domain.Session{}, err
	}

	code, err := e.directory.Allocate(ctx)
	if err != nil {
		return domain.Session{}, err
	}

	session := domain.Session{
		Code:      code,
		QuizID:    quizID,
		Status:    domain.StatusWaitingToStart,
		StartedAt: e.now().UTC(),
	}
	if err := e.store.CreateSession(ctx, &session); err != nil {
		e.directory.Release(ctx, code)
		return domain.Session{}, fmt.Errorf("create session: %w", err)
	}

	metrics.SessionTransitions.WithLabelValues(session.Status.String()).Inc()
	e.log.InfoContext(ctx, "session started", "session_id", session.ID, "code", code, "quiz_id", quizID)
	return session, nil
}

// Join adds a player to the session holding code while it is still waiting to start.
// PlayerJoined goes to every channel member except the excluded ones, typically the
// joining client's own subscription.
func (e *Engine) Join(ctx context.Context, code, name string, exclude ...broadcast.SubscriberID) (domain.Player, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return domain.Player{}, domain.ErrPlayerNameRequired
	}

	session, err := e.directory.Resolve(ctx, code)
	if errors.Is(err, domain.ErrNotFound) {
		return domain.Player{}, domain.ErrJoinUnavailable
	}
	if err != nil {
		return domain.Player{}, err
	}

	unlock := e.sessions.Lock(session.ID)
	defer unlock()

	// Re-read under the lock so a concurrent advance cannot slip a late player in.
	session, err = e.store.GetSession(ctx, session.ID)
	if err != nil {
		return domain.Player{}, err
	}
	if session.Status != domain.StatusWaitingToStart {
		return domain.Player{}, domain.ErrJoinUnavailable
	}

	player := domain.Player{
		SessionID: session.ID,
		Name:      name,
		JoinedAt:  e.now().UTC(),
	}
	if err := e.store.AddPlayer(ctx, &player); err != nil {
		return domain.Player{}, fmt.Errorf("add player: %w", err)
	}

	metrics.PlayersJoined.Inc()
	e.log.InfoContext(ctx, "player joined", "session_id", session.ID, "player_id", player.ID)
	e.hub.Publish(ctx, session.Code, broadcast.PlayerJoined(player), exclude...)
	return player, nil
}

// Watch attaches a participant endpoint to the channel of code.
func (e *Engine) Watch(ctx context.Context, code string) (*broadcast.Subscription, error) {
	if _, err := e.directory.Resolve(ctx, code); err != nil {
		return nil, err
	}
	return e.hub.Subscribe(code, broadcast.RoleParticipant), nil
}

// Host attaches a host endpoint to the channel of code and replays the current roster to it.
func (e *Engine) Host(ctx context.Context, code string) (*broadcast.Subscription, error) {
	session, err := e.directory.Resolve(ctx, code)
	if err != nil {
		return nil, err
	}

	// Holding the session lock keeps joins from landing between the roster read and the attach.
	unlock := e.sessions.Lock(session.ID)
	defer unlock()

	players, err := e.store.ListPlayers(ctx, session.ID)
	if err != nil {
		return nil, fmt.Errorf("list players: %w", err)
	}
	roster := make([]broadcast.Event, 0, len(players))
	for _, p := range players {
		roster = append(roster, broadcast.PlayerJoined(p))
	}
	return e.hub.AttachHost(session.Code, roster), nil
}

// Leaderboard returns the session's players by score descending, join order on ties.
func (e *Engine) Leaderboard(ctx context.Context, sessionID int64) ([]domain.LeaderboardEntry, error) {
	if _, err := e.store.GetSession(ctx, sessionID); err != nil {
		return nil, err
	}
	players, err := e.store.ListPlayers(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("list players: %w", err)
	}
	return domain.Leaderboard(players), nil
}

// Session returns the session with its quiz and roster.
func (e *Engine) Session(ctx context.Context, sessionID int64) (domain.SessionView, error) {
	session, err := e.store.GetSession(ctx, sessionID)
	if err != nil {
		return domain.SessionView{}, err
	}
	return e.view(ctx, session)
}

// SessionByCode resolves code and returns the session with its quiz and roster.
func (e *Engine) SessionByCode(ctx context.Context, code string) (domain.SessionView, error) {
	session, err := e.directory.Resolve(ctx, code)
	if err != nil {
		return domain.SessionView{}, err
	}
	return e.view(ctx, session)
}

func (e *Engine) view(ctx context.Context, session domain.Session) (domain.SessionView, error) {
	quiz, err := e.quizzes.GetQuiz(ctx, session.QuizID)
	if err != nil {
		return domain.SessionView{}, err
	}
	players, err := e.store.ListPlayers(ctx, session.ID)
	if err != nil {
		return domain.SessionView{}, fmt.Errorf("list players: %w", err)
	}
	if e.redact {
		quiz = redactQuiz(quiz)
	}
	return domain.SessionView{Session: session, Quiz: quiz, Players: players}, nil
}

func (e *Engine) Player(ctx context.Context, playerID int64) (domain.Player, error) {
	return e.store.GetPlayer(ctx, playerID)
}

func (e *Engine) Answer(ctx context.Context, answerID int64) (domain.AnswerRecord, error) {
	return e.store.GetAnswerRecord(ctx, answerID)
}

// Cancel aborts a session that has not finished yet and frees its join code.
func (e *Engine) Cancel(ctx context.Context, sessionID int64) (domain.Session, error) {
	unlock := e.sessions.Lock(sessionID)
	defer unlock()

	session, err := e.store.GetSession(ctx, sessionID)
	if err != nil {
		return domain.Session{}, err
	}
	if session.Status.Terminal() {
		return domain.Session{}, domain.ErrGameFinished
	}

	if err := e.finish(ctx, &session, domain.StatusCancelled); err != nil {
		return domain.Session{}, err
	}
	e.hub.Publish(ctx, session.Code, broadcast.GameCancelledEvent(session.ID))
	return session, nil
}

// finish moves session into a terminal status. Callers hold the session lock.
func (e *Engine) finish(ctx context.Context, session *domain.Session, status domain.Status) error {
	endedAt := e.now().UTC()
	if err := e.store.UpdateSessionStatus(ctx, session.ID, status, &endedAt); err != nil {
		return fmt.Errorf("update session status: %w", err)
	}
	session.Status = status
	session.EndedAt = &endedAt
	e.directory.Release(ctx, session.Code)

	metrics.SessionTransitions.WithLabelValues(status.String()).Inc()
	e.log.InfoContext(ctx, "session finished", "session_id", session.ID, "status", status.String())
	return nil
}

func redactQuiz(q domain.Quiz) domain.Quiz {
	questions := make([]domain.Question, len(q.Questions))
	for i, question := range q.Questions {
		questions[i] = question.Redacted()
	}
	q.Questions = questions
	return q
}
