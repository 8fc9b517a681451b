package broadcast

import "trivia-engine/internal/domain"

// Event names pushed on a session's channel.
const (
	EventPlayerJoined    = "PlayerJoined"
	EventAnswerSubmitted = "AnswerSubmitted"
	EventNewQuestion     = "NewQuestion"
	EventGameCompleted   = "GameCompleted"
	EventGameCancelled   = "GameCancelled"
)

// Event is a named message delivered to every member of a channel.
type Event struct {
	Name    string `json:"type"`
	Payload any    `json:"payload"`
}

// AnswerSubmitted carries the running total, not the points of the single answer.
type AnswerSubmitted struct {
	PlayerID   int64  `json:"playerId"`
	PlayerName string `json:"playerName"`
	Score      int    `json:"score"`
	IsCorrect  bool   `json:"isCorrect"`
}

type GameCancelled struct {
	SessionID int64 `json:"gameSessionId"`
}

func PlayerJoined(p domain.Player) Event {
	return Event{Name: EventPlayerJoined, Payload: p}
}

func NewQuestion(q domain.Question) Event {
	return Event{Name: EventNewQuestion, Payload: q}
}

func GameCompleted(leaderboard []domain.LeaderboardEntry) Event {
	return Event{Name: EventGameCompleted, Payload: leaderboard}
}

func AnswerSubmittedEvent(p AnswerSubmitted) Event {
	return Event{Name: EventAnswerSubmitted, Payload: p}
}

func GameCancelledEvent(sessionID int64) Event {
	return Event{Name: EventGameCancelled, Payload: GameCancelled{SessionID: sessionID}}
}
