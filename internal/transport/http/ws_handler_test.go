package http

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trivia-engine/internal/app"
	"trivia-engine/internal/broadcast"
	"trivia-engine/internal/domain"
)

type wsMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

func newWSServer(t *testing.T) (*app.Engine, *httptest.Server) {
	t.Helper()
	engine := newTestEngine(t)
	wsHandler := NewWSHandler(engine, slog.New(slog.NewTextHandler(io.Discard, nil)))

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", wsHandler.ServeWS)
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return engine, server
}

func dial(t *testing.T, server *httptest.Server, query string) *websocket.Conn {
	t.Helper()
	u := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws?" + query
	conn, _, err := websocket.DefaultDialer.Dial(u, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	readNext(t, conn, "subscribed")
	return conn
}

func readNext(t *testing.T, conn *websocket.Conn, expect string) wsMessage {
	t.Helper()
	var msg wsMessage
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	require.NoError(t, conn.ReadJSON(&msg))
	if expect != "" {
		require.Equal(t, expect, msg.Type, string(msg.Payload))
	}
	return msg
}

func send(t *testing.T, conn *websocket.Conn, typ string, payload any) {
	t.Helper()
	require.NoError(t, conn.WriteJSON(map[string]any{"type": typ, "payload": payload}))
}

func TestWebSocket_PlayerFlow(t *testing.T) {
	ctx := context.Background()
	engine, server := newWSServer(t)

	session, err := engine.Start(ctx, 1)
	require.NoError(t, err)

	host := dial(t, server, "role=host&code="+session.Code)
	player := dial(t, server, "code="+session.Code)

	send(t, player, "join", map[string]string{"playerName": "Alice"})
	var joined domain.Player
	require.NoError(t, json.Unmarshal(readNext(t, player, "joined").Payload, &joined))
	assert.Equal(t, "Alice", joined.Name)

	var announced domain.Player
	require.NoError(t, json.Unmarshal(readNext(t, host, broadcast.EventPlayerJoined).Payload, &announced))
	assert.Equal(t, joined.ID, announced.ID)

	_, ok, err := engine.Advance(ctx, session.ID)
	require.NoError(t, err)
	require.True(t, ok)

	// The joining client is excluded from its own PlayerJoined, so the question comes next.
	var question domain.Question
	require.NoError(t, json.Unmarshal(readNext(t, player, broadcast.EventNewQuestion).Payload, &question))
	readNext(t, host, broadcast.EventNewQuestion)

	correct := question.Answers[0].ID
	for _, a := range question.Answers {
		if a.IsCorrect {
			correct = a.ID
		}
	}
	send(t, player, "answer", map[string]any{"questionId": question.ID, "answerId": correct, "responseTimeMs": 0})

	seen := map[string]wsMessage{}
	for len(seen) < 2 {
		msg := readNext(t, player, "")
		seen[msg.Type] = msg
	}
	require.Contains(t, seen, "answerResult")
	require.Contains(t, seen, broadcast.EventAnswerSubmitted)

	var scored domain.ScoredAnswer
	require.NoError(t, json.Unmarshal(seen["answerResult"].Payload, &scored))
	assert.Equal(t, joined.ID, scored.PlayerID)
	assert.Equal(t, domain.DefaultQuestionPoints, scored.TotalScore)

	var update broadcast.AnswerSubmitted
	require.NoError(t, json.Unmarshal(readNext(t, host, broadcast.EventAnswerSubmitted).Payload, &update))
	assert.Equal(t, broadcast.AnswerSubmitted{PlayerID: joined.ID, PlayerName: "Alice", Score: domain.DefaultQuestionPoints, IsCorrect: true}, update)

	send(t, player, "answer", map[string]any{"questionId": question.ID, "answerId": correct})
	var failure errorResponse
	require.NoError(t, json.Unmarshal(readNext(t, player, "error").Payload, &failure))
	assert.Equal(t, "already_answered", failure.Code)
}

func TestWebSocket_HostReceivesRoster(t *testing.T) {
	ctx := context.Background()
	engine, server := newWSServer(t)

	session, err := engine.Start(ctx, 1)
	require.NoError(t, err)
	for _, name := range []string{"Alice", "Bob"} {
		_, err := engine.Join(ctx, session.Code, name)
		require.NoError(t, err)
	}

	host := dial(t, server, "role=host&code="+session.Code)
	var names []string
	for i := 0; i < 2; i++ {
		var p domain.Player
		require.NoError(t, json.Unmarshal(readNext(t, host, broadcast.EventPlayerJoined).Payload, &p))
		names = append(names, p.Name)
	}
	assert.Equal(t, []string{"Alice", "Bob"}, names)
}

func TestWebSocket_Rejections(t *testing.T) {
	ctx := context.Background()
	engine, server := newWSServer(t)

	base := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws?"
	_, resp, err := websocket.DefaultDialer.Dial(base+"code=000000", nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	_, resp, err = websocket.DefaultDialer.Dial(base+"code=123456&role=judge", nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	session, err := engine.Start(ctx, 1)
	require.NoError(t, err)
	player := dial(t, server, "code="+session.Code)

	send(t, player, "dance", nil)
	var failure errorResponse
	require.NoError(t, json.Unmarshal(readNext(t, player, "error").Payload, &failure))
	assert.Equal(t, "invalid_input", failure.Code)

	send(t, player, "join", map[string]string{"playerName": "  "})
	require.NoError(t, json.Unmarshal(readNext(t, player, "error").Payload, &failure))
	assert.Equal(t, "invalid_input", failure.Code)
}

func TestWebSocket_LeaveDetaches(t *testing.T) {
	ctx := context.Background()
	engine, server := newWSServer(t)

	session, err := engine.Start(ctx, 1)
	require.NoError(t, err)
	player := dial(t, server, "code="+session.Code)

	send(t, player, "leave", nil)
	_ = player.SetReadDeadline(time.Now().Add(5 * time.Second))
	var msg wsMessage
	require.Error(t, player.ReadJSON(&msg))

	view, err := engine.SessionByCode(ctx, session.Code)
	require.NoError(t, err)
	assert.Empty(t, view.Players)
}
