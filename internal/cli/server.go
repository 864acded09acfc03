package cli

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"caretoplay/internal/app"
	"caretoplay/internal/config"
	"caretoplay/internal/infra/firebase"
	"caretoplay/internal/infra/memory"
	"caretoplay/internal/infra/postgres"
	redisstore "caretoplay/internal/infra/redis"
	transport "caretoplay/internal/transport/http"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the quiz set server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), *configPath, *port)
		},
	}
}

func setupLogging(level string) {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)
	zerolog.TimeFieldFormat = time.RFC3339
	log.Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
}

// backends bundles the storage chosen from config.
type backends struct {
	store    app.QuizSetStore
	stats    app.StatsCounter
	caches   app.DeviceCaches
	sessions app.SessionRepository
	close    func()
}

// openBackends picks Firebase, then Postgres, then memory for quiz sets, fronted by
// a Redis or in-process read cache.
func openBackends(ctx context.Context, cfg config.Config) (backends, error) {
	b := backends{close: func() {}}
	var closers []func()

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		closers = append(closers, func() { _ = redisClient.Close() })
	}
	redisTTL := config.TTLDuration(cfg.Redis.TTL, 24*time.Hour)
	cacheTTL := config.TTLDuration(cfg.Store.CacheTTL, 10*time.Minute)

	var backing memory.Backing
	switch {
	case cfg.Firebase.DatabaseURL != "":
		fb, err := firebase.NewStore(ctx, cfg.Firebase.CredentialsFile, cfg.Firebase.DatabaseURL)
		if err != nil {
			return b, err
		}
		backing, b.stats = fb, fb
		log.Info().Str("databaseURL", cfg.Firebase.DatabaseURL).Msg("using firebase store")
	case cfg.Postgres.URL != "":
		pool, err := pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return b, err
		}
		closers = append(closers, pool.Close)
		backing, b.stats = postgres.NewQuizSetStore(pool), postgres.NewStats(pool)
		log.Info().Msg("using postgres store")
	default:
		backing = memory.NewQuizSetStore()
		log.Warn().Msg("no database configured, quiz sets are kept in memory")
	}

	if redisClient != nil {
		b.store = redisstore.NewCachedQuizSetStore(redisClient, backing, cacheTTL)
		b.caches = redisstore.NewDeviceCaches(redisClient, redisTTL)
		b.sessions = redisstore.NewSessionStore(redisClient, redisTTL)
		if b.stats == nil {
			b.stats = redisstore.NewStats(redisClient)
		}
	} else {
		b.store = memory.NewCachedQuizSetStore(backing, cacheTTL)
		b.caches = memory.NewDeviceCaches()
		b.sessions = memory.NewSessionStore()
	}
	if b.stats == nil {
		b.stats = memory.NewStats()
	}

	b.close = func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}
	return b, nil
}

func runServer(ctx context.Context, configPath, portFlag string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	setupLogging(cfg.Log.Level)

	if cfg.Postgres.URL != "" && cfg.Firebase.DatabaseURL == "" {
		if err := runMigrationsWithConfig(ctx, cfg); err != nil {
			return err
		}
	}

	finalPort := portFlag
	if finalPort == "" {
		finalPort = cfg.Server.Port
	}
	if finalPort == "" {
		finalPort = "8080"
	}
	publicURL := cfg.Server.PublicURL
	if publicURL == "" {
		publicURL = "http://localhost:" + finalPort
	}

	b, err := openBackends(ctx, cfg)
	if err != nil {
		return err
	}
	defer b.close()

	logger := log.Logger
	pages := app.NewHTTPPageBuilder(publicURL, 10*time.Second)
	quizSets := app.NewQuizSetService(b.store, b.stats, pages, logger.With().Str("component", "quizsets").Logger())
	play := app.NewPlayService(b.sessions, app.PlayConfig{
		Backend:      quizSets,
		Caches:       b.caches,
		ShareBaseURL: publicURL,
		StageDelay:   config.TTLDuration(cfg.Flow.StageDelay, 0),
		ShareTimeout: config.TTLDuration(cfg.Flow.ShareTimeout, 30*time.Second),
		Logger:       logger.With().Str("component", "play").Logger(),
	})

	router := transport.NewRouter(
		transport.NewAPIHandler(quizSets, logger.With().Str("component", "api").Logger()),
		transport.NewWSHandler(play, logger.With().Str("component", "ws").Logger()),
		cfg.Server.CorsOrigins,
	)
	server := &http.Server{
		Addr:        ":" + finalPort,
		Handler:     router,
		ReadTimeout: 15 * time.Second,
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info().Str("port", finalPort).Str("publicURL", publicURL).Msg("starting caretoplay")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msg("shutting down server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
