package http

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"trivia-engine/internal/app"
	"trivia-engine/internal/domain"
)

type gameHandler struct {
	engine    *app.Engine
	log       *slog.Logger
	publicURL string
}

type joinRequest struct {
	Name string `json:"playerName" binding:"required"`
}

type submitRequest struct {
	SessionID      int64 `json:"gameSessionId" binding:"required"`
	PlayerID       int64 `json:"playerId" binding:"required"`
	QuestionID     int64 `json:"questionId" binding:"required"`
	AnswerID       int64 `json:"answerId" binding:"required"`
	ResponseTimeMS int64 `json:"responseTimeMs"`
}

func (h *gameHandler) start(c *gin.Context) {
	quizID, ok := h.idParam(c, "quizId")
	if !ok {
		return
	}
	session, err := h.engine.Start(c.Request.Context(), quizID)
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusCreated, session)
}

func (h *gameHandler) session(c *gin.Context) {
	id, ok := h.idParam(c, "id")
	if !ok {
		return
	}
	view, err := h.engine.Session(c.Request.Context(), id)
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (h *gameHandler) sessionByCode(c *gin.Context) {
	view, err := h.engine.SessionByCode(c.Request.Context(), c.Param("code"))
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (h *gameHandler) join(c *gin.Context) {
	var req joinRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, h.log, domain.ErrPlayerNameRequired)
		return
	}
	player, err := h.engine.Join(c.Request.Context(), c.Param("code"), req.Name)
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusCreated, player)
}

func (h *gameHandler) player(c *gin.Context) {
	id, ok := h.idParam(c, "id")
	if !ok {
		return
	}
	player, err := h.engine.Player(c.Request.Context(), id)
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, player)
}

func (h *gameHandler) submit(c *gin.Context) {
	var req submitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, errorResponse{Code: "invalid_input", Message: err.Error()})
		return
	}
	scored, err := h.engine.Submit(c.Request.Context(), domain.AnswerSubmission{
		SessionID:    req.SessionID,
		PlayerID:     req.PlayerID,
		QuestionID:   req.QuestionID,
		AnswerID:     req.AnswerID,
		ResponseTime: time.Duration(req.ResponseTimeMS) * time.Millisecond,
	})
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusCreated, scored)
}

func (h *gameHandler) answer(c *gin.Context) {
	id, ok := h.idParam(c, "id")
	if !ok {
		return
	}
	record, err := h.engine.Answer(c.Request.Context(), id)
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, record)
}

// advance answers 204 once every question has been played.
func (h *gameHandler) advance(c *gin.Context) {
	id, ok := h.idParam(c, "id")
	if !ok {
		return
	}
	question, more, err := h.engine.Advance(c.Request.Context(), id)
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	if !more {
		c.Status(http.StatusNoContent)
		return
	}
	c.JSON(http.StatusOK, question)
}

func (h *gameHandler) leaderboard(c *gin.Context) {
	id, ok := h.idParam(c, "id")
	if !ok {
		return
	}
	entries, err := h.engine.Leaderboard(c.Request.Context(), id)
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, entries)
}

func (h *gameHandler) cancel(c *gin.Context) {
	id, ok := h.idParam(c, "id")
	if !ok {
		return
	}
	session, err := h.engine.Cancel(c.Request.Context(), id)
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, session)
}

func (h *gameHandler) idParam(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		c.AbortWithStatusJSON(http.StatusBadRequest, errorResponse{
			Code:    "invalid_input",
			Message: name + " must be a positive integer",
		})
		return 0, false
	}
	return id, true
}
