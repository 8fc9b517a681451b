package domain

import (
	"encoding/json"
	"sort"
	"time"
)

const (
	// DefaultQuestionPoints is the point budget of a question that does not set one.
	DefaultQuestionPoints = 1000
	// DefaultQuestionTimeLimit is the time limit, in seconds, of a question that does not set one.
	DefaultQuestionTimeLimit = 20
)

// Status is the lifecycle state of a game session.
type Status int

const (
	StatusWaitingToStart Status = iota
	StatusInProgress
	StatusCompleted
	StatusCancelled
)

var statusNames = map[Status]string{
	StatusWaitingToStart: "WaitingToStart",
	StatusInProgress:     "InProgress",
	StatusCompleted:      "Completed",
	StatusCancelled:      "Cancelled",
}

func (s Status) String() string {
	if name, ok := statusNames[s]; ok {
		return name
	}
	return "Unknown"
}

// Terminal reports whether no further transition is possible.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// ParseStatus converts a stored status name back to a Status.
func ParseStatus(name string) (Status, bool) {
	for status, n := range statusNames {
		if n == name {
			return status, true
		}
	}
	return 0, false
}

func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *Status) UnmarshalText(text []byte) error {
	status, ok := ParseStatus(string(text))
	if !ok {
		return ErrInvalidInput
	}
	*s = status
	return nil
}

// Session is one live run of a quiz, joined through its code.
type Session struct {
	ID        int64      `json:"id"`
	Code      string     `json:"code"`
	QuizID    int64      `json:"quizId"`
	Status    Status     `json:"status"`
	StartedAt time.Time  `json:"startTime"`
	EndedAt   *time.Time `json:"endTime,omitempty"`
}

// SessionView is a session together with its quiz and roster.
type SessionView struct {
	Session
	Quiz    Quiz     `json:"quiz"`
	Players []Player `json:"players"`
}

// Player represents a participant of exactly one session and their accumulated score.
type Player struct {
	ID        int64     `json:"id"`
	SessionID int64     `json:"gameSessionId"`
	Name      string    `json:"name"`
	Score     int       `json:"score"`
	JoinedAt  time.Time `json:"joinedAt"`
}

// Answer is one option of a question.
type Answer struct {
	ID        int64  `json:"id" yaml:"id"`
	Text      string `json:"text" yaml:"text"`
	IsCorrect bool   `json:"isCorrect" yaml:"correct"`
}

// Question models a timed multiple choice question.
type Question struct {
	ID        int64    `json:"id" yaml:"id"`
	Text      string   `json:"text" yaml:"text"`
	Points    int      `json:"points" yaml:"points"`        // defaults to DefaultQuestionPoints if zero
	TimeLimit int      `json:"timeLimit" yaml:"time_limit"` // seconds, defaults to DefaultQuestionTimeLimit if zero
	Answers   []Answer `json:"answers" yaml:"answers"`
}

// PointBudget returns the maximum points a correct answer can earn.
func (q Question) PointBudget() int {
	if q.Points <= 0 {
		return DefaultQuestionPoints
	}
	return q.Points
}

// TimeLimitDuration returns the question's time limit.
func (q Question) TimeLimitDuration() time.Duration {
	if q.TimeLimit <= 0 {
		return DefaultQuestionTimeLimit * time.Second
	}
	return time.Duration(q.TimeLimit) * time.Second
}

// Answer looks up one of the question's answers.
func (q Question) Answer(id int64) (Answer, bool) {
	for _, a := range q.Answers {
		if a.ID == id {
			return a, true
		}
	}
	return Answer{}, false
}

// Redacted returns a copy without correctness flags.
func (q Question) Redacted() Question {
	answers := make([]Answer, len(q.Answers))
	for i, a := range q.Answers {
		answers[i] = Answer{ID: a.ID, Text: a.Text}
	}
	q.Answers = answers
	return q
}

// Quiz is a collection of questions owned by the catalog.
type Quiz struct {
	ID          int64      `json:"id" yaml:"id"`
	Title       string     `json:"title" yaml:"title"`
	Description string     `json:"description" yaml:"description"`
	Questions   []Question `json:"questions" yaml:"questions"`
}

// OrderedQuestions returns the questions in ascending catalog order.
func (q Quiz) OrderedQuestions() []Question {
	ordered := make([]Question, len(q.Questions))
	copy(ordered, q.Questions)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].ID < ordered[j].ID
	})
	return ordered
}

// Question looks up a question by id.
func (q Quiz) Question(id int64) (Question, bool) {
	for _, question := range q.Questions {
		if question.ID == id {
			return question, true
		}
	}
	return Question{}, false
}

// AnswerSubmission is a player's attempt as sent by clients. Points are never client supplied.
// Transports convert the wire responseTimeMs into ResponseTime.
type AnswerSubmission struct {
	SessionID    int64         `json:"gameSessionId"`
	PlayerID     int64         `json:"playerId"`
	QuestionID   int64         `json:"questionId"`
	AnswerID     int64         `json:"answerId"`
	ResponseTime time.Duration `json:"-"`
}

// AnswerRecord is one scored entry of the answer ledger.
type AnswerRecord struct {
	ID           int64         `json:"id"`
	SessionID    int64         `json:"gameSessionId"`
	PlayerID     int64         `json:"playerId"`
	QuestionID   int64         `json:"questionId"`
	AnswerID     int64         `json:"answerId"`
	IsCorrect    bool          `json:"isCorrect"`
	ResponseTime time.Duration `json:"-"`
	PointsEarned int           `json:"scoreEarned"`
	AnsweredAt   time.Time     `json:"answeredAt"`
}

// plainRecord drops the AnswerRecord methods so the marshalers below do not recurse.
type plainRecord AnswerRecord

// MarshalJSON reports the response time as whole milliseconds, the unit clients submit in.
func (r AnswerRecord) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		plainRecord
		ResponseTimeMS int64 `json:"responseTimeMs"`
	}{plainRecord(r), r.ResponseTime.Milliseconds()})
}

// ScoredAnswer summarizes the outcome of a submission for a single player.
type ScoredAnswer struct {
	AnswerRecord
	TotalScore int `json:"totalScore"`
}

// MarshalJSON keeps TotalScore, which the promoted AnswerRecord marshaler would drop.
func (s ScoredAnswer) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		plainRecord
		ResponseTimeMS int64 `json:"responseTimeMs"`
		TotalScore     int   `json:"totalScore"`
	}{plainRecord(s.AnswerRecord), s.ResponseTime.Milliseconds(), s.TotalScore})
}

// LeaderboardEntry is a snapshot-friendly view of a player.
type LeaderboardEntry struct {
	PlayerID   int64  `json:"playerId"`
	PlayerName string `json:"playerName"`
	Score      int    `json:"score"`
}

// Leaderboard orders players by score descending, keeping join order on ties.
// The input must already be in join order.
func Leaderboard(players []Player) []LeaderboardEntry {
	entries := make([]LeaderboardEntry, 0, len(players))
	for _, p := range players {
		entries = append(entries, LeaderboardEntry{
			PlayerID:   p.ID,
			PlayerName: p.Name,
			Score:      p.Score,
		})
	}
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Score > entries[j].Score
	})
	return entries
}
