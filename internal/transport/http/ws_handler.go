package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"trivia-engine/internal/app"
	"trivia-engine/internal/broadcast"
	"trivia-engine/internal/domain"
)

const (
	roleHost   = "host"
	rolePlayer = "player"

	sendQueue    = 32
	writeTimeout = 10 * time.Second
)

// WSHandler attaches websocket clients to a session's event channel.
type WSHandler struct {
	engine   *app.Engine
	log      *slog.Logger
	upgrader websocket.Upgrader
}

func NewWSHandler(engine *app.Engine, log *slog.Logger) *WSHandler {
	if log == nil {
		log = slog.Default()
	}
	return &WSHandler{
		engine: engine,
		log:    log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

type inboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type joinPayload struct {
	Name string `json:"playerName"`
}

type answerPayload struct {
	SessionID      int64 `json:"gameSessionId"`
	PlayerID       int64 `json:"playerId"`
	QuestionID     int64 `json:"questionId"`
	AnswerID       int64 `json:"answerId"`
	ResponseTimeMS int64 `json:"responseTimeMs"`
}

type subscribedPayload struct {
	SubscriberID broadcast.SubscriberID `json:"subscriberId"`
	Code         string                 `json:"code"`
	Role         string                 `json:"role"`
}

type outboundMessage struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

func errorMessage(err error) outboundMessage {
	_, code := classify(err)
	return outboundMessage{Type: "error", Payload: errorResponse{Code: code, Message: err.Error()}}
}

// ServeWS upgrades the request and keeps the client attached until it leaves or disconnects.
// Query parameters: code (required) and role, either "player" (default) or "host".
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	code := r.URL.Query().Get("code")
	role := r.URL.Query().Get("role")
	if role == "" {
		role = rolePlayer
	}
	if code == "" || (role != rolePlayer && role != roleHost) {
		http.Error(w, "missing code or unknown role", http.StatusBadRequest)
		return
	}

	var (
		sub *broadcast.Subscription
		err error
	)
	if role == roleHost {
		sub, err = h.engine.Host(r.Context(), code)
	} else {
		sub, err = h.engine.Watch(r.Context(), code)
	}
	if err != nil {
		status, _ := classify(err)
		http.Error(w, err.Error(), status)
		return
	}
	defer sub.Close()

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("ws: upgrade failed", "code", code, "error", err)
		return
	}
	defer conn.Close()

	c := &wsClient{
		handler:    h,
		conn:       conn,
		sub:        sub,
		send:       make(chan outboundMessage, sendQueue),
		writerDone: make(chan struct{}),
	}
	c.run(r.Context(), role)
}

// wsClient owns one connection. Only the writer goroutine writes to conn.
type wsClient struct {
	handler *WSHandler
	conn    *websocket.Conn
	sub     *broadcast.Subscription

	send       chan outboundMessage
	writerDone chan struct{}

	playerID  int64
	sessionID int64
}

func (c *wsClient) run(ctx context.Context, role string) {
	go c.writeLoop()

	c.enqueue(outboundMessage{Type: "subscribed", Payload: subscribedPayload{
		SubscriberID: c.sub.ID,
		Code:         c.sub.Code,
		Role:         role,
	}})

	forwardDone := make(chan struct{})
	go func() {
		defer close(forwardDone)
		for e := range c.sub.C() {
			if !c.enqueue(outboundMessage{Type: e.Name, Payload: e.Payload}) {
				return
			}
		}
	}()

	c.readLoop(ctx)

	// Closing the subscription ends the forwarder; only then is send safe to close.
	c.sub.Close()
	<-forwardDone
	close(c.send)
	<-c.writerDone
}

func (c *wsClient) writeLoop() {
	defer close(c.writerDone)
	for msg := range c.send {
		_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		if err := c.conn.WriteJSON(msg); err != nil {
			c.handler.log.Debug("ws: write failed", "code", c.sub.Code, "error", err)
			// Drain so producers never block on a dead connection.
			for range c.send {
			}
			return
		}
	}
}

// enqueue reports false once the writer has given up on the connection.
func (c *wsClient) enqueue(msg outboundMessage) bool {
	select {
	case c.send <- msg:
		return true
	case <-c.writerDone:
		return false
	}
}

func (c *wsClient) readLoop(ctx context.Context) {
	for {
		var in inboundMessage
		if err := c.conn.ReadJSON(&in); err != nil {
			return
		}
		switch in.Type {
		case "join":
			c.join(ctx, in.Payload)
		case "answer":
			c.answer(ctx, in.Payload)
		case "leave":
			return
		default:
			c.enqueue(outboundMessage{Type: "error", Payload: errorResponse{
				Code:    "invalid_input",
				Message: "unsupported message type " + in.Type,
			}})
		}
	}
}

func (c *wsClient) join(ctx context.Context, raw json.RawMessage) {
	var p joinPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		c.enqueue(errorMessage(domain.ErrPlayerNameRequired))
		return
	}
	player, err := c.handler.engine.Join(ctx, c.sub.Code, p.Name, c.sub.ID)
	if err != nil {
		c.enqueue(errorMessage(err))
		return
	}
	c.playerID = player.ID
	c.sessionID = player.SessionID
	c.enqueue(outboundMessage{Type: "joined", Payload: player})
}

// answer fills in the session and player this connection joined as when the payload omits them.
func (c *wsClient) answer(ctx context.Context, raw json.RawMessage) {
	var p answerPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		c.enqueue(outboundMessage{Type: "error", Payload: errorResponse{
			Code:    "invalid_input",
			Message: "invalid answer payload",
		}})
		return
	}
	if p.PlayerID == 0 {
		p.PlayerID = c.playerID
	}
	if p.SessionID == 0 {
		p.SessionID = c.sessionID
	}
	if p.SessionID == 0 {
		view, err := c.handler.engine.SessionByCode(ctx, c.sub.Code)
		if err != nil {
			c.enqueue(errorMessage(err))
			return
		}
		p.SessionID = view.ID
	}

	scored, err := c.handler.engine.Submit(ctx, domain.AnswerSubmission{
		SessionID:    p.SessionID,
		PlayerID:     p.PlayerID,
		QuestionID:   p.QuestionID,
		AnswerID:     p.AnswerID,
		ResponseTime: time.Duration(p.ResponseTimeMS) * time.Millisecond,
	})
	if err != nil {
		c.enqueue(errorMessage(err))
		return
	}
	c.enqueue(outboundMessage{Type: "answerResult", Payload: scored})
}
