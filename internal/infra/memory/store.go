package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"trivia-engine/internal/domain"
)

// Store is an in-memory implementation of app.Store. Each session's roster and
// ledger sit behind their own mutex, so sessions never contend with each other.
type Store struct {
	mu          sync.RWMutex
	sessions    map[int64]*sessionRecord
	playerOwner map[int64]*sessionRecord
	answerOwner map[int64]*sessionRecord

	lastSession int64
	lastPlayer  int64
	lastAnswer  int64
}

type answerKey struct {
	playerID   int64
	questionID int64
}

type sessionRecord struct {
	mu        sync.Mutex
	session   domain.Session
	players   []domain.Player
	playerIdx map[int64]int
	answers   []domain.AnswerRecord
	answerIdx map[int64]int
	submitted map[answerKey]struct{}
}

func NewStore() *Store {
	return &Store{
		sessions:    make(map[int64]*sessionRecord),
		playerOwner: make(map[int64]*sessionRecord),
		answerOwner: make(map[int64]*sessionRecord),
	}
}

func (s *Store) CreateSession(_ context.Context, session *domain.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.lastSession++
	session.ID = s.lastSession
	s.sessions[session.ID] = &sessionRecord{
		session:   *session,
		playerIdx: make(map[int64]int),
		answerIdx: make(map[int64]int),
		submitted: make(map[answerKey]struct{}),
	}
	return nil
}

func (s *Store) GetSession(_ context.Context, id int64) (domain.Session, error) {
	rec, ok := s.record(id)
	if !ok {
		return domain.Session{}, domain.ErrSessionNotFound
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()
	return rec.session, nil
}

func (s *Store) FindSessionByCode(_ context.Context, code string) (domain.Session, error) {
	s.mu.RLock()
	var newest *sessionRecord
	for id, rec := range s.sessions {
		if rec.session.Code != code {
			continue
		}
		if newest == nil || id > newest.session.ID {
			newest = rec
		}
	}
	s.mu.RUnlock()

	if newest == nil {
		return domain.Session{}, domain.ErrSessionNotFound
	}
	newest.mu.Lock()
	defer newest.mu.Unlock()
	return newest.session, nil
}

func (s *Store) UpdateSessionStatus(_ context.Context, id int64, status domain.Status, endedAt *time.Time) error {
	rec, ok := s.record(id)
	if !ok {
		return domain.ErrSessionNotFound
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()
	rec.session.Status = status
	if endedAt != nil {
		t := *endedAt
		rec.session.EndedAt = &t
	}
	return nil
}

func (s *Store) AddPlayer(_ context.Context, p *domain.Player) error {
	rec, ok := s.record(p.SessionID)
	if !ok {
		return domain.ErrSessionNotFound
	}

	s.mu.Lock()
	s.lastPlayer++
	p.ID = s.lastPlayer
	s.playerOwner[p.ID] = rec
	s.mu.Unlock()

	rec.mu.Lock()
	defer rec.mu.Unlock()
	rec.playerIdx[p.ID] = len(rec.players)
	rec.players = append(rec.players, *p)
	return nil
}

func (s *Store) GetPlayer(_ context.Context, id int64) (domain.Player, error) {
	s.mu.RLock()
	rec, ok := s.playerOwner[id]
	s.mu.RUnlock()
	if !ok {
		return domain.Player{}, domain.ErrPlayerNotFound
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()
	idx, ok := rec.playerIdx[id]
	if !ok {
		return domain.Player{}, domain.ErrPlayerNotFound
	}
	return rec.players[idx], nil
}

func (s *Store) ListPlayers(_ context.Context, sessionID int64) ([]domain.Player, error) {
	rec, ok := s.record(sessionID)
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()
	return append([]domain.Player(nil), rec.players...), nil
}

func (s *Store) RecordAnswer(_ context.Context, r *domain.AnswerRecord) (int, error) {
	rec, ok := s.record(r.SessionID)
	if !ok {
		return 0, domain.ErrSessionNotFound
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()

	// Checked under the record lock so a concurrent completion cannot let a late answer in.
	if rec.session.Status != domain.StatusInProgress {
		return 0, domain.ErrGameNotInProgress
	}
	idx, ok := rec.playerIdx[r.PlayerID]
	if !ok {
		return 0, domain.ErrPlayerNotInSession
	}
	key := answerKey{playerID: r.PlayerID, questionID: r.QuestionID}
	if _, dup := rec.submitted[key]; dup {
		return 0, domain.ErrDuplicateSubmission
	}

	s.mu.Lock()
	s.lastAnswer++
	r.ID = s.lastAnswer
	s.answerOwner[r.ID] = rec
	s.mu.Unlock()

	rec.submitted[key] = struct{}{}
	rec.answerIdx[r.ID] = len(rec.answers)
	rec.answers = append(rec.answers, *r)
	rec.players[idx].Score += r.PointsEarned
	return rec.players[idx].Score, nil
}

func (s *Store) GetAnswerRecord(_ context.Context, id int64) (domain.AnswerRecord, error) {
	s.mu.RLock()
	rec, ok := s.answerOwner[id]
	s.mu.RUnlock()
	if !ok {
		return domain.AnswerRecord{}, domain.ErrAnswerRecordNotFound
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()
	idx, ok := rec.answerIdx[id]
	if !ok {
		return domain.AnswerRecord{}, domain.ErrAnswerRecordNotFound
	}
	return rec.answers[idx], nil
}

func (s *Store) ListAnswerRecords(_ context.Context, sessionID int64) ([]domain.AnswerRecord, error) {
	rec, ok := s.record(sessionID)
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()
	return append([]domain.AnswerRecord(nil), rec.answers...), nil
}

func (s *Store) AnsweredQuestionIDs(_ context.Context, sessionID int64) ([]int64, error) {
	rec, ok := s.record(sessionID)
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	rec.mu.Lock()
	seen := make(map[int64]struct{})
	for _, a := range rec.answers {
		seen[a.QuestionID] = struct{}{}
	}
	rec.mu.Unlock()

	ids := make([]int64, 0, len(seen))
	for id := range seen {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

func (s *Store) record(id int64) (*sessionRecord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.sessions[id]
	return rec, ok
}
