package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"trivia-engine/internal/app"
	"trivia-engine/internal/broadcast"
	"trivia-engine/internal/config"
	"trivia-engine/internal/domain"
	"trivia-engine/internal/infra/memory"
	pgloader "trivia-engine/internal/infra/postgres"
	redisinfra "trivia-engine/internal/infra/redis"
	"trivia-engine/internal/infra/sqlstore"
	"trivia-engine/internal/scoring"
	"trivia-engine/internal/telemetry"
	transport "trivia-engine/internal/transport/http"
)

const shutdownTimeout = 10 * time.Second

// newStartCmd builds the CLI subcommand that runs the server.
func newStartCmd(f *flags) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the trivia server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := f.load()
			if err != nil {
				return err
			}
			return runServer(cmd.Context(), cfg)
		},
	}
}

// deps is everything the server owns and must release on shutdown.
type deps struct {
	engine  *app.Engine
	hub     *broadcast.Hub
	closers []func()
}

func (r *deps) close() {
	for i := len(r.closers) - 1; i >= 0; i-- {
		r.closers[i]()
	}
}

func runServer(ctx context.Context, cfg config.Config) error {
	log := telemetry.NewLogger(os.Stderr, cfg.Log.Level, cfg.Log.Format)
	slog.SetDefault(log)

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	rt, err := wire(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer rt.close()

	if cfg.Log.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	server := &http.Server{
		Addr: ":" + cfg.Server.Port,
		Handler: transport.NewRouter(rt.engine, transport.RouterConfig{
			PublicURL: cfg.Server.PublicURL,
			Profile:   cfg.Server.Profile,
			Logger:    log,
		}),
		ReadHeaderTimeout: 15 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("starting trivia engine", "addr", server.Addr, "store", cfg.Store.Driver)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		err := server.Shutdown(shutdownCtx)
		rt.hub.Stop()
		return err
	})
	return g.Wait()
}

// wire builds the engine and its adapters from cfg.
func wire(ctx context.Context, cfg config.Config, log *slog.Logger) (*deps, error) {
	rt := &deps{}
	fail := func(err error) (*deps, error) {
		rt.close()
		return nil, err
	}

	var (
		store   app.Store
		catalog *sqlstore.Catalog
	)
	switch cfg.Store.Driver {
	case "memory":
		store = memory.NewStore()
	default:
		bdb, err := openMigrated(ctx, cfg, log)
		if err != nil {
			return fail(err)
		}
		rt.closers = append(rt.closers, func() { _ = bdb.Close() })
		store = sqlstore.NewStore(bdb)
		catalog = sqlstore.NewCatalog(bdb)
	}

	loader, err := quizLoader(ctx, cfg, catalog, rt, log)
	if err != nil {
		return fail(err)
	}

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		rt.closers = append(rt.closers, func() { _ = redisClient.Close() })
		if err := telemetry.MonitorRedis(redisClient, log); err != nil {
			return fail(fmt.Errorf("instrument redis: %w", err))
		}
		if err := redisClient.Ping(ctx).Err(); err != nil {
			return fail(fmt.Errorf("ping redis: %w", err))
		}
	}

	quizTTL := config.Duration(cfg.Quiz.TTL, 10*time.Minute)
	codeTTL := config.Duration(cfg.Codes.TTL, 24*time.Hour)
	hubOpts := []broadcast.Option{
		broadcast.WithLogger(log),
		broadcast.WithSinkTimeout(config.Duration(cfg.Broadcast.SinkTimeout, 5*time.Second)),
	}
	if cfg.Broadcast.Buffer > 0 {
		hubOpts = append(hubOpts, broadcast.WithBuffer(cfg.Broadcast.Buffer))
	}

	var (
		quizzes app.QuizRepository
		codes   app.CodeRegistry
	)
	if redisClient != nil {
		quizzes = redisinfra.NewQuizRepository(redisClient, loader, quizTTL, cfg.Redis.Prefix)
		codes = redisinfra.NewCodeRegistry(redisClient, codeTTL, cfg.Redis.Prefix)
		hubOpts = append(hubOpts, broadcast.WithSink(redisinfra.NewEventPublisher(redisClient, cfg.Redis.Prefix)))
	} else {
		quizzes = memory.NewQuizRepository(loader, quizTTL)
		codes = memory.NewCodeRegistry()
	}

	dirOpts := []app.DirectoryOption{app.WithDirectoryLogger(log)}
	if cfg.Codes.MaxAttempts > 0 {
		dirOpts = append(dirOpts, app.WithMaxAttempts(cfg.Codes.MaxAttempts))
	}

	scorer := scoring.Default()
	if cfg.Scoring.MaxPoints > 0 {
		scorer.MaxPoints = cfg.Scoring.MaxPoints
	}
	scorer.ReferenceWindow = config.Duration(cfg.Scoring.ReferenceWindow, scoring.DefaultReferenceWindow)

	rt.hub = broadcast.NewHub(hubOpts...)
	rt.engine = app.NewEngine(store, quizzes, app.NewDirectory(store, codes, dirOpts...), rt.hub,
		app.WithLogger(log),
		app.WithScorer(scorer),
		app.WithRedactedAnswers(cfg.Broadcast.RedactAnswers),
	)
	return rt, nil
}

// quizLoader picks the quiz source: a YAML catalog file, the Postgres quizzes
// table read through pgx, the SQLite catalog, or the built-in sample quiz.
func quizLoader(ctx context.Context, cfg config.Config, catalog *sqlstore.Catalog, rt *deps, log *slog.Logger) (memory.QuizLoader, error) {
	switch {
	case cfg.Quiz.File != "":
		log.Info("loading quizzes from file", "file", cfg.Quiz.File)
		return memory.NewFileQuizLoader(cfg.Quiz.File)
	case cfg.Postgres.URL != "":
		pool, err := pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		rt.closers = append(rt.closers, pool.Close)
		return pgloader.NewQuizLoader(pool), nil
	case catalog != nil:
		return catalog, nil
	default:
		log.Warn("no quiz source configured, serving the sample quiz")
		return memory.NewStaticQuizLoader(map[int64]domain.Quiz{1: sampleQuiz()}), nil
	}
}

func sampleQuiz() domain.Quiz {
	return domain.Quiz{
		ID:    1,
		Title: "Warm-up",
		Questions: []domain.Question{
			{
				ID:   1,
				Text: "What is 2 + 2?",
				Answers: []domain.Answer{
					{ID: 1, Text: "3"},
					{ID: 2, Text: "4", IsCorrect: true},
					{ID: 3, Text: "5"},
				},
			},
			{
				ID:   2,
				Text: "Which planet is closest to the sun?",
				Answers: []domain.Answer{
					{ID: 4, Text: "Mercury", IsCorrect: true},
					{ID: 5, Text: "Venus"},
					{ID: 6, Text: "Mars"},
				},
			},
		},
	}
}
