package http

import (
	"log/slog"
	"net/http"

	"github.com/gin-contrib/pprof"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"trivia-engine/internal/app"
)

type RouterConfig struct {
	// PublicURL is the externally visible base URL encoded in join QR codes.
	PublicURL string
	// Profile registers pprof handlers under /debug/pprof.
	Profile bool
	Logger  *slog.Logger
}

// NewRouter wires the REST API, the event channel endpoint and operational routes.
func NewRouter(engine *app.Engine, cfg RouterConfig) *gin.Engine {
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}

	r := gin.New()
	r.Use(gin.Recovery(), metricsMiddleware())

	r.GET("/healthz", func(c *gin.Context) {
		c.String(http.StatusOK, "ok")
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	if cfg.Profile {
		pprof.Register(r, "/debug/pprof")
	}

	ws := NewWSHandler(engine, log)
	r.GET("/ws", gin.WrapF(ws.ServeWS))

	h := &gameHandler{engine: engine, log: log, publicURL: cfg.PublicURL}
	api := r.Group("/api")
	{
		api.POST("/quizzes/:quizId/games", h.start)

		api.GET("/games/:id", h.session)
		api.POST("/games/:id/next-question", h.advance)
		api.GET("/games/:id/leaderboard", h.leaderboard)
		api.POST("/games/:id/cancel", h.cancel)

		api.GET("/sessions/:code", h.sessionByCode)
		api.GET("/sessions/:code/qr", h.joinQR)
		api.POST("/sessions/:code/players", h.join)

		api.GET("/players/:id", h.player)

		api.POST("/answers", h.submit)
		api.GET("/answers/:id", h.answer)
	}
	return r
}
