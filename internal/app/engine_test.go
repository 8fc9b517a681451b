package app_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"trivia-engine/internal/app"
	"trivia-engine/internal/broadcast"
	"trivia-engine/internal/domain"
	"trivia-engine/internal/infra/memory"
)

const (
	questionA int64 = 1
	questionB int64 = 2

	answerX     int64 = 11 // correct for A
	answerWrong int64 = 12
	answerY     int64 = 21 // correct for B
	answerZ     int64 = 22
)

type fixture struct {
	engine *app.Engine
	store  *memory.Store
	hub    *broadcast.Hub
	now    time.Time
}

func newFixture(t *testing.T, opts ...app.Option) *fixture {
	t.Helper()

	f := &fixture{
		store: memory.NewStore(),
		hub:   broadcast.NewHub(broadcast.WithBuffer(64)),
		now:   time.Date(2024, 11, 22, 9, 0, 0, 0, time.UTC),
	}
	quizzes := memory.NewQuizRepository(memory.NewStaticQuizLoader(map[int64]domain.Quiz{
		1: sampleQuiz(),
	}), time.Minute)
	directory := app.NewDirectory(f.store, memory.NewCodeRegistry())

	opts = append([]app.Option{app.WithClock(func() time.Time { return f.now })}, opts...)
	f.engine = app.NewEngine(f.store, quizzes, directory, f.hub, opts...)
	return f
}

// sampleQuiz lists B before A to make sure ordering comes from question ids.
func sampleQuiz() domain.Quiz {
	return domain.Quiz{
		ID:    1,
		Title: "Letters",
		Questions: []domain.Question{
			{
				ID:   questionB,
				Text: "Pick y",
				Answers: []domain.Answer{
					{ID: answerY, Text: "y", IsCorrect: true},
					{ID: answerZ, Text: "z"},
				},
			},
			{
				ID:     questionA,
				Text:   "Pick x",
				Points: 1000,
				Answers: []domain.Answer{
					{ID: answerX, Text: "x", IsCorrect: true},
					{ID: answerWrong, Text: "w"},
				},
			},
		},
	}
}

func (f *fixture) startInProgress(t *testing.T, players ...string) (domain.Session, []domain.Player) {
	t.Helper()
	ctx := context.Background()

	session, err := f.engine.Start(ctx, 1)
	require.NoError(t, err)

	joined := make([]domain.Player, 0, len(players))
	for _, name := range players {
		p, err := f.engine.Join(ctx, session.Code, name)
		require.NoError(t, err)
		joined = append(joined, p)
	}

	_, ok, err := f.engine.Advance(ctx, session.ID)
	require.NoError(t, err)
	require.True(t, ok)
	return session, joined
}

func TestEngine_FullGame(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	session, err := f.engine.Start(ctx, 1)
	require.NoError(t, err)
	require.Len(t, session.Code, 6)
	require.Equal(t, domain.StatusWaitingToStart, session.Status)

	host, err := f.engine.Host(ctx, session.Code)
	require.NoError(t, err)
	defer host.Close()

	alice, err := f.engine.Join(ctx, session.Code, "Alice")
	require.NoError(t, err)
	require.Equal(t, int64(1), alice.ID)
	requireEvent(t, host, broadcast.EventPlayerJoined)

	q, ok, err := f.engine.Advance(ctx, session.ID)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, questionA, q.ID)
	requireEvent(t, host, broadcast.EventNewQuestion)

	scored, err := f.engine.Submit(ctx, domain.AnswerSubmission{
		SessionID: session.ID, PlayerID: alice.ID, QuestionID: questionA, AnswerID: answerX,
		ResponseTime: 4 * time.Second,
	})
	require.NoError(t, err)
	assert.Equal(t, 800, scored.PointsEarned)
	assert.Equal(t, 800, scored.TotalScore)
	assert.True(t, scored.IsCorrect)

	e := requireEvent(t, host, broadcast.EventAnswerSubmitted)
	assert.Equal(t, broadcast.AnswerSubmitted{PlayerID: alice.ID, PlayerName: "Alice", Score: 800, IsCorrect: true}, e.Payload)

	lb, err := f.engine.Leaderboard(ctx, session.ID)
	require.NoError(t, err)
	require.Equal(t, []domain.LeaderboardEntry{{PlayerID: alice.ID, PlayerName: "Alice", Score: 800}}, lb)

	q, ok, err = f.engine.Advance(ctx, session.ID)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, questionB, q.ID)
	requireEvent(t, host, broadcast.EventNewQuestion)

	scored, err = f.engine.Submit(ctx, domain.AnswerSubmission{
		SessionID: session.ID, PlayerID: alice.ID, QuestionID: questionB, AnswerID: answerZ,
		ResponseTime: 2 * time.Second,
	})
	require.NoError(t, err)
	assert.Zero(t, scored.PointsEarned)
	assert.Equal(t, 800, scored.TotalScore)
	requireEvent(t, host, broadcast.EventAnswerSubmitted)

	f.now = f.now.Add(time.Minute)
	_, ok, err = f.engine.Advance(ctx, session.ID)
	require.NoError(t, err)
	require.False(t, ok)

	e = requireEvent(t, host, broadcast.EventGameCompleted)
	assert.Equal(t, []domain.LeaderboardEntry{{PlayerID: alice.ID, PlayerName: "Alice", Score: 800}}, e.Payload)

	view, err := f.engine.Session(ctx, session.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCompleted, view.Status)
	require.NotNil(t, view.EndedAt)
	assert.Equal(t, f.now, *view.EndedAt)
	assert.Len(t, view.Players, 1)

	// Completed sessions keep reporting the end of the game without re-announcing it.
	_, ok, err = f.engine.Advance(ctx, session.ID)
	require.NoError(t, err)
	require.False(t, ok)
	select {
	case extra := <-host.C():
		t.Fatalf("unexpected event after completion: %+v", extra)
	default:
	}
}

func TestEngine_AdvanceRebroadcastsUnansweredQuestion(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	session, _ := f.startInProgress(t, "Alice")

	q, ok, err := f.engine.Advance(ctx, session.ID)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, questionA, q.ID)
}

func TestEngine_AdvanceReturnsEachQuestionOnce(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	session, err := f.engine.Start(ctx, 1)
	require.NoError(t, err)
	alice, err := f.engine.Join(ctx, session.Code, "Alice")
	require.NoError(t, err)

	var seen []int64
	for {
		q, ok, err := f.engine.Advance(ctx, session.ID)
		require.NoError(t, err)
		if !ok {
			break
		}
		seen = append(seen, q.ID)
		_, err = f.engine.Submit(ctx, domain.AnswerSubmission{
			SessionID: session.ID, PlayerID: alice.ID, QuestionID: q.ID, AnswerID: q.Answers[0].ID,
		})
		require.NoError(t, err)
	}
	assert.Equal(t, []int64{questionA, questionB}, seen)
}

func TestEngine_SubmitErrors(t *testing.T) {
	ctx := context.Background()

	tests := map[string]struct {
		arrange func(t *testing.T, f *fixture) domain.AnswerSubmission
		wantErr error
		kind    error
	}{
		"unknown session": {
			arrange: func(t *testing.T, f *fixture) domain.AnswerSubmission {
				return domain.AnswerSubmission{SessionID: 99, PlayerID: 1, QuestionID: questionA, AnswerID: answerX}
			},
			wantErr: domain.ErrGameNotInProgress,
			kind:    domain.ErrInvalidState,
		},
		"session still waiting to start": {
			arrange: func(t *testing.T, f *fixture) domain.AnswerSubmission {
				s, err := f.engine.Start(ctx, 1)
				require.NoError(t, err)
				p, err := f.engine.Join(ctx, s.Code, "Alice")
				require.NoError(t, err)
				return domain.AnswerSubmission{SessionID: s.ID, PlayerID: p.ID, QuestionID: questionA, AnswerID: answerX}
			},
			wantErr: domain.ErrGameNotInProgress,
			kind:    domain.ErrInvalidState,
		},
		"unknown answer": {
			arrange: func(t *testing.T, f *fixture) domain.AnswerSubmission {
				s, players := f.startInProgress(t, "Alice")
				return domain.AnswerSubmission{SessionID: s.ID, PlayerID: players[0].ID, QuestionID: questionA, AnswerID: 999}
			},
			wantErr: domain.ErrAnswerNotFound,
			kind:    domain.ErrInvalidInput,
		},
		"answer of another question": {
			arrange: func(t *testing.T, f *fixture) domain.AnswerSubmission {
				s, players := f.startInProgress(t, "Alice")
				return domain.AnswerSubmission{SessionID: s.ID, PlayerID: players[0].ID, QuestionID: questionA, AnswerID: answerY}
			},
			wantErr: domain.ErrAnswerNotFound,
			kind:    domain.ErrInvalidInput,
		},
		"question outside the quiz": {
			arrange: func(t *testing.T, f *fixture) domain.AnswerSubmission {
				s, players := f.startInProgress(t, "Alice")
				return domain.AnswerSubmission{SessionID: s.ID, PlayerID: players[0].ID, QuestionID: 77, AnswerID: answerX}
			},
			wantErr: domain.ErrQuestionNotFound,
			kind:    domain.ErrInvalidInput,
		},
		"player of another session": {
			arrange: func(t *testing.T, f *fixture) domain.AnswerSubmission {
				other, err := f.engine.Start(ctx, 1)
				require.NoError(t, err)
				stranger, err := f.engine.Join(ctx, other.Code, "Mallory")
				require.NoError(t, err)
				s, _ := f.startInProgress(t, "Alice")
				return domain.AnswerSubmission{SessionID: s.ID, PlayerID: stranger.ID, QuestionID: questionA, AnswerID: answerX}
			},
			wantErr: domain.ErrPlayerNotInSession,
			kind:    domain.ErrInvalidInput,
		},
		"negative response time": {
			arrange: func(t *testing.T, f *fixture) domain.AnswerSubmission {
				s, players := f.startInProgress(t, "Alice")
				return domain.AnswerSubmission{
					SessionID: s.ID, PlayerID: players[0].ID, QuestionID: questionA, AnswerID: answerX,
					ResponseTime: -time.Second,
				}
			},
			wantErr: domain.ErrNegativeResponseTime,
			kind:    domain.ErrInvalidInput,
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			f := newFixture(t)
			sub := tt.arrange(t, f)

			_, err := f.engine.Submit(ctx, sub)
			require.ErrorIs(t, err, tt.wantErr)
			require.ErrorIs(t, err, tt.kind)
		})
	}
}

func TestEngine_DuplicateSubmission(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	session, players := f.startInProgress(t, "Alice")
	alice := players[0]

	_, err := f.engine.Submit(ctx, domain.AnswerSubmission{
		SessionID: session.ID, PlayerID: alice.ID, QuestionID: questionA, AnswerID: answerX,
		ResponseTime: 4 * time.Second,
	})
	require.NoError(t, err)

	_, err = f.engine.Submit(ctx, domain.AnswerSubmission{
		SessionID: session.ID, PlayerID: alice.ID, QuestionID: questionA, AnswerID: answerX,
		ResponseTime: time.Second,
	})
	require.ErrorIs(t, err, domain.ErrDuplicateSubmission)

	lb, err := f.engine.Leaderboard(ctx, session.ID)
	require.NoError(t, err)
	assert.Equal(t, 800, lb[0].Score)
}

func TestEngine_ConcurrentDuplicateSubmissions(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	session, players := f.startInProgress(t, "Alice")
	alice := players[0]

	var successes, duplicates atomic.Int32
	var g errgroup.Group
	for i := 0; i < 32; i++ {
		g.Go(func() error {
			_, err := f.engine.Submit(ctx, domain.AnswerSubmission{
				SessionID: session.ID, PlayerID: alice.ID, QuestionID: questionA, AnswerID: answerX,
			})
			switch {
			case err == nil:
				successes.Add(1)
			case errors.Is(err, domain.ErrDuplicateSubmission):
				duplicates.Add(1)
			default:
				return err
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())

	assert.EqualValues(t, 1, successes.Load())
	assert.EqualValues(t, 31, duplicates.Load())

	lb, err := f.engine.Leaderboard(ctx, session.ID)
	require.NoError(t, err)
	assert.Equal(t, 1000, lb[0].Score)
}

func TestEngine_ScoreMatchesLedger(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	session, players := f.startInProgress(t, "Alice", "Bob", "Carol")

	var g errgroup.Group
	for i, p := range players {
		p := p
		rt := time.Duration(i+1) * 3 * time.Second
		g.Go(func() error {
			_, err := f.engine.Submit(ctx, domain.AnswerSubmission{
				SessionID: session.ID, PlayerID: p.ID, QuestionID: questionA, AnswerID: answerX, ResponseTime: rt,
			})
			return err
		})
		g.Go(func() error {
			_, err := f.engine.Submit(ctx, domain.AnswerSubmission{
				SessionID: session.ID, PlayerID: p.ID, QuestionID: questionB, AnswerID: answerY, ResponseTime: rt,
			})
			return err
		})
	}
	require.NoError(t, g.Wait())

	records, err := f.store.ListAnswerRecords(ctx, session.ID)
	require.NoError(t, err)
	require.Len(t, records, 6)

	sums := make(map[int64]int)
	for _, r := range records {
		sums[r.PlayerID] += r.PointsEarned
	}
	roster, err := f.store.ListPlayers(ctx, session.ID)
	require.NoError(t, err)
	for _, p := range roster {
		assert.Equal(t, sums[p.ID], p.Score, "player %s", p.Name)
	}
}

func TestEngine_LateJoinRejected(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	session, _ := f.startInProgress(t, "Alice")

	_, err := f.engine.Join(ctx, session.Code, "Bob")
	require.ErrorIs(t, err, domain.ErrJoinUnavailable)
	require.ErrorIs(t, err, domain.ErrNotFound)

	_, err = f.engine.Join(ctx, "000000", "Bob")
	require.ErrorIs(t, err, domain.ErrJoinUnavailable)
	assert.Equal(t, err.Error(), domain.ErrJoinUnavailable.Error())

	_, err = f.engine.Join(ctx, session.Code, "   ")
	require.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestEngine_JoinNotifiesOthersOnly(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	session, err := f.engine.Start(ctx, 1)
	require.NoError(t, err)

	joiner, err := f.engine.Watch(ctx, session.Code)
	require.NoError(t, err)
	defer joiner.Close()
	other, err := f.engine.Watch(ctx, session.Code)
	require.NoError(t, err)
	defer other.Close()

	_, err = f.engine.Join(ctx, session.Code, "Alice", joiner.ID)
	require.NoError(t, err)

	requireEvent(t, other, broadcast.EventPlayerJoined)
	select {
	case e := <-joiner.C():
		t.Fatalf("joining client received its own broadcast: %+v", e)
	default:
	}
}

func TestEngine_HostReplaysRoster(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	session, err := f.engine.Start(ctx, 1)
	require.NoError(t, err)

	for _, name := range []string{"Alice", "Bob"} {
		_, err := f.engine.Join(ctx, session.Code, name)
		require.NoError(t, err)
	}

	host, err := f.engine.Host(ctx, session.Code)
	require.NoError(t, err)
	defer host.Close()

	for _, want := range []string{"Alice", "Bob"} {
		e := requireEvent(t, host, broadcast.EventPlayerJoined)
		assert.Equal(t, want, e.Payload.(domain.Player).Name)
	}

	_, err = f.engine.Host(ctx, "000000")
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestEngine_LeaderboardStableOnTies(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	session, players := f.startInProgress(t, "Alice", "Bob", "Carol")

	// Bob and Carol tie, Alice scores nothing.
	for _, p := range players[1:] {
		_, err := f.engine.Submit(ctx, domain.AnswerSubmission{
			SessionID: session.ID, PlayerID: p.ID, QuestionID: questionA, AnswerID: answerX, ResponseTime: 5 * time.Second,
		})
		require.NoError(t, err)
	}

	lb, err := f.engine.Leaderboard(ctx, session.ID)
	require.NoError(t, err)
	names := make([]string, 0, len(lb))
	for _, e := range lb {
		names = append(names, e.PlayerName)
	}
	assert.Equal(t, []string{"Bob", "Carol", "Alice"}, names)

	_, err = f.engine.Leaderboard(ctx, 404)
	require.ErrorIs(t, err, domain.ErrSessionNotFound)
}

func TestEngine_Cancel(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	session, _ := f.startInProgress(t, "Alice")

	watcher, err := f.engine.Watch(ctx, session.Code)
	require.NoError(t, err)
	defer watcher.Close()

	cancelled, err := f.engine.Cancel(ctx, session.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCancelled, cancelled.Status)
	assert.NotNil(t, cancelled.EndedAt)

	e := requireEvent(t, watcher, broadcast.EventGameCancelled)
	assert.Equal(t, broadcast.GameCancelled{SessionID: session.ID}, e.Payload)

	_, _, err = f.engine.Advance(ctx, session.ID)
	require.ErrorIs(t, err, domain.ErrGameCancelled)

	_, err = f.engine.Cancel(ctx, session.ID)
	require.ErrorIs(t, err, domain.ErrGameFinished)
}

func TestEngine_StartUnknownQuiz(t *testing.T) {
	f := newFixture(t)
	_, err := f.engine.Start(context.Background(), 404)
	require.ErrorIs(t, err, domain.ErrQuizNotFound)
}

func TestEngine_RedactedAnswers(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, app.WithRedactedAnswers(true))

	session, err := f.engine.Start(ctx, 1)
	require.NoError(t, err)
	watcher, err := f.engine.Watch(ctx, session.Code)
	require.NoError(t, err)
	defer watcher.Close()

	q, _, err := f.engine.Advance(ctx, session.ID)
	require.NoError(t, err)
	assert.True(t, q.Answers[0].IsCorrect, "host still receives the full question")

	e := requireEvent(t, watcher, broadcast.EventNewQuestion)
	for _, a := range e.Payload.(domain.Question).Answers {
		assert.False(t, a.IsCorrect)
	}
}

func TestEngine_LookupsByID(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	session, players := f.startInProgress(t, "Alice")

	scored, err := f.engine.Submit(ctx, domain.AnswerSubmission{
		SessionID: session.ID, PlayerID: players[0].ID, QuestionID: questionA, AnswerID: answerX,
	})
	require.NoError(t, err)

	p, err := f.engine.Player(ctx, players[0].ID)
	require.NoError(t, err)
	assert.Equal(t, 1000, p.Score)

	a, err := f.engine.Answer(ctx, scored.ID)
	require.NoError(t, err)
	assert.Equal(t, scored.AnswerRecord, a)

	view, err := f.engine.SessionByCode(ctx, session.Code)
	require.NoError(t, err)
	assert.Equal(t, session.ID, view.ID)
	assert.Equal(t, "Letters", view.Quiz.Title)

	_, err = f.engine.Player(ctx, 404)
	require.ErrorIs(t, err, domain.ErrNotFound)
	_, err = f.engine.Answer(ctx, 404)
	require.ErrorIs(t, err, domain.ErrNotFound)
	_, err = f.engine.SessionByCode(ctx, "000000")
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func requireEvent(t *testing.T, sub *broadcast.Subscription, name string) broadcast.Event {
	t.Helper()
	select {
	case e := <-sub.C():
		require.Equal(t, name, e.Name)
		return e
	case <-time.After(time.Second):
		t.Fatalf("timed out waiting for %s", name)
		return broadcast.Event{}
	}
}
