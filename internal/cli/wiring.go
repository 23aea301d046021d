package cli

import (
	"context"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"quizboard-service/internal/app"
	"quizboard-service/internal/config"
	"quizboard-service/internal/infra/memory"
	"quizboard-service/internal/infra/postgres"
	redisinfra "quizboard-service/internal/infra/redis"
	"quizboard-service/internal/metrics"
)

type backingStore interface {
	app.Store
	app.CatalogStore
}

type services struct {
	scoring  *app.ScoringService
	attempts *app.AttemptService
	catalog  *app.CatalogService
	feed     *app.ReportFeed
	metrics  *metrics.Metrics

	closers []func()
}

func (s *services) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
}

// buildServices picks Postgres or the in-memory store, and Redis or in-process
// caching, depending on what is configured. The in-memory store starts with
// the sample catalog.
func buildServices(ctx context.Context, cfg config.Config, log *zap.Logger) (*services, error) {
	svc := &services{feed: app.NewReportFeed(), metrics: metrics.New()}

	var (
		store  backingStore
		loader memory.QuizLoader
		seed   bool
	)
	if cfg.Postgres.URL != "" {
		if err := runMigrationsWithConfig(ctx, cfg, log); err != nil {
			return nil, err
		}
		db := postgres.Open(cfg.Postgres.URL)
		svc.closers = append(svc.closers, func() { _ = db.Close() })

		pool, err := pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			svc.Close()
			return nil, err
		}
		svc.closers = append(svc.closers, pool.Close)

		store = postgres.NewStore(db)
		loader = postgres.NewQuizLoader(pool)
		log.Info("using postgres store")
	} else {
		mem := memory.NewStore()
		store = mem
		loader = app.NewStoreQuizLoader(mem)
		seed = true
		log.Info("using in-memory store")
	}

	quizTTL := config.TTLDuration(cfg.Quiz.TTL, 10*time.Minute)
	var (
		quizzes app.QuizRepository
		guard   app.SubmissionGuard
	)
	if cfg.Redis.Addr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		svc.closers = append(svc.closers, func() { _ = client.Close() })
		quizzes = redisinfra.NewQuizRepository(client, loader, quizTTL)
		guard = redisinfra.NewSubmissionGuard(client, config.TTLDuration(cfg.Redis.TTL, 30*time.Second))
		log.Info("using redis cache", zap.String("addr", cfg.Redis.Addr))
	} else {
		quizzes = memory.NewQuizRepository(loader, quizTTL)
		guard = memory.NewSubmissionGuard()
	}

	svc.scoring = app.NewScoringService(store, quizzes)
	svc.attempts = app.NewAttemptService(store, quizzes, svc.scoring, log.Named("attempts"),
		app.WithSubmissionGuard(guard),
		app.WithReportFeed(svc.feed),
		app.WithAttemptObserver(svc.metrics),
	)
	svc.catalog = app.NewCatalogService(store, quizzes, log.Named("catalog"))

	if seed {
		if err := seedSample(ctx, svc.catalog); err != nil {
			svc.Close()
			return nil, err
		}
	}
	return svc, nil
}
