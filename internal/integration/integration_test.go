package integration

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	goredis "github.com/redis/go-redis/v9"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"github.com/uptrace/bun/migrate"
	"go.uber.org/zap/zaptest"

	"quizboard-service/internal/app"
	"quizboard-service/internal/domain"
	"quizboard-service/internal/infra/postgres"
	pgmigrations "quizboard-service/internal/infra/postgres/migrations"
	infraredis "quizboard-service/internal/infra/redis"
)

type stack struct {
	store    *postgres.Store
	quizzes  *infraredis.QuizRepository
	scoring  *app.ScoringService
	attempts *app.AttemptService
	catalog  *app.CatalogService
}

func newStack(t *testing.T, ctx context.Context) *stack {
	t.Helper()
	requireDocker(t)

	pgURL, pgCleanup := startPostgres(t, ctx)
	t.Cleanup(pgCleanup)
	redisURL, redisCleanup := startRedis(t, ctx)
	t.Cleanup(redisCleanup)

	db := postgres.Open(pgURL)
	t.Cleanup(func() { _ = db.Close() })
	migrator := migrate.NewMigrator(db, pgmigrations.Migrations)
	if err := migrator.Init(ctx); err != nil {
		t.Fatalf("migrator init: %v", err)
	}
	if _, err := migrator.Migrate(ctx); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	pool, err := pgxpool.Connect(ctx, pgURL)
	if err != nil {
		t.Fatalf("connect pg: %v", err)
	}
	t.Cleanup(pool.Close)

	redisClient, err := redisClientFromURL(redisURL)
	if err != nil {
		t.Fatalf("redis client: %v", err)
	}
	t.Cleanup(func() { _ = redisClient.Close() })

	log := zaptest.NewLogger(t)
	s := &stack{store: postgres.NewStore(db)}
	s.quizzes = infraredis.NewQuizRepository(redisClient, postgres.NewQuizLoader(pool), 5*time.Minute)
	s.scoring = app.NewScoringService(s.store, s.quizzes)
	s.attempts = app.NewAttemptService(s.store, s.quizzes, s.scoring, log,
		app.WithSubmissionGuard(infraredis.NewSubmissionGuard(redisClient, 30*time.Second)),
	)
	s.catalog = app.NewCatalogService(s.store, s.quizzes, log)
	return s
}

type seeded struct {
	user                    domain.User
	quiz                    domain.Quiz
	correct, partial, wrong domain.Choice
}

func seedQuiz(t *testing.T, ctx context.Context, catalog *app.CatalogService, username string) seeded {
	t.Helper()
	var (
		s   seeded
		err error
	)
	if s.user, err = catalog.CreateUser(ctx, username); err != nil {
		t.Fatalf("create user: %v", err)
	}
	if s.quiz, err = catalog.CreateQuiz(ctx, "Arithmetic", "math", domain.DifficultyEasy); err != nil {
		t.Fatalf("create quiz: %v", err)
	}
	question, err := catalog.CreateQuestion(ctx, s.quiz.ID, "Which equal four?")
	if err != nil {
		t.Fatalf("create question: %v", err)
	}
	for _, c := range []struct {
		dst   *domain.Choice
		text  string
		point domain.Point
	}{
		{&s.correct, "2 + 2", domain.PointCorrect},
		{&s.partial, "roughly 4", domain.PointPartial},
		{&s.wrong, "5", domain.PointWrong},
	} {
		if *c.dst, err = catalog.CreateChoice(ctx, question.ID, c.text, c.point); err != nil {
			t.Fatalf("create choice: %v", err)
		}
	}
	return s
}

func TestSubmitAndScoreEndToEnd(t *testing.T) {
	ctx := context.Background()
	s := newStack(t, ctx)
	fx := seedQuiz(t, ctx, s.catalog, "alice")

	content, err := s.attempts.BeginAttempt(ctx, fx.user.ID, fx.quiz.ID)
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	if len(content.Questions) != 1 || len(content.Questions[0].Choices) != 3 {
		t.Fatalf("unexpected quiz content %+v", content)
	}

	if _, err := s.attempts.SubmitAttempt(ctx, fx.user.ID, fx.quiz.ID, []int64{fx.correct.ID, fx.partial.ID}); err != nil {
		t.Fatalf("submit: %v", err)
	}
	if _, err := s.attempts.SubmitAttempt(ctx, fx.user.ID, fx.quiz.ID, []int64{fx.correct.ID}); !errors.Is(err, domain.ErrAlreadyAttempted) {
		t.Fatalf("expected already attempted, got %v", err)
	}

	score, err := s.scoring.ComputeScore(ctx, fx.user.ID, fx.quiz.ID)
	if err != nil {
		t.Fatalf("score: %v", err)
	}
	if score != (domain.Score{Score: 0.5, Total: 1}) {
		t.Fatalf("expected 0.5/1, got %+v", score)
	}

	reports, err := s.scoring.AllUsersReports(ctx)
	if err != nil {
		t.Fatalf("all reports: %v", err)
	}
	if len(reports) != 1 || reports[0].UserName != "alice" || reports[0].Score != 0.5 {
		t.Fatalf("unexpected reports %+v", reports)
	}
}

func TestConcurrentSubmissionsRecordOnce(t *testing.T) {
	ctx := context.Background()
	s := newStack(t, ctx)
	fx := seedQuiz(t, ctx, s.catalog, "bob")

	// Bypass the Redis guard so the unique constraint is what decides the race.
	bare := app.NewAttemptService(s.store, s.quizzes, s.scoring, zaptest.NewLogger(t))

	const racers = 8
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
		failures  []error
	)
	start := make(chan struct{})
	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			_, err := bare.SubmitAttempt(ctx, fx.user.ID, fx.quiz.ID, []int64{fx.correct.ID})
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				successes++
				return
			}
			failures = append(failures, err)
		}()
	}
	close(start)
	wg.Wait()

	if successes != 1 {
		t.Fatalf("expected exactly one recorded attempt, got %d (failures %v)", successes, failures)
	}
	for _, err := range failures {
		if !errors.Is(err, domain.ErrAlreadyAttempted) {
			t.Fatalf("expected already attempted, got %v", err)
		}
	}
}

func TestCatalogCascadesAndInvalidates(t *testing.T) {
	ctx := context.Background()
	s := newStack(t, ctx)
	fx := seedQuiz(t, ctx, s.catalog, "carol")

	if _, err := s.attempts.SubmitAttempt(ctx, fx.user.ID, fx.quiz.ID, []int64{fx.correct.ID}); err != nil {
		t.Fatalf("submit: %v", err)
	}
	if err := s.catalog.DeleteChoice(ctx, fx.wrong.ID); err != nil {
		t.Fatalf("delete choice: %v", err)
	}
	content, err := s.quizzes.GetQuiz(ctx, fx.quiz.ID)
	if err != nil {
		t.Fatalf("get quiz: %v", err)
	}
	if got := len(content.Questions[0].Choices); got != 2 {
		t.Fatalf("expected cache to drop the deleted choice, got %d choices", got)
	}

	if err := s.catalog.DeleteQuiz(ctx, fx.quiz.ID); err != nil {
		t.Fatalf("delete quiz: %v", err)
	}
	if attempted, err := s.store.HasAttempt(ctx, fx.user.ID, fx.quiz.ID); err != nil || attempted {
		t.Fatalf("expected attempt to cascade away, got %v %v", attempted, err)
	}
	if _, err := s.store.FindChoice(ctx, fx.correct.ID); !errors.Is(err, domain.ErrChoiceNotFound) {
		t.Fatalf("expected choice to cascade away, got %v", err)
	}
	if _, err := s.quizzes.GetQuiz(ctx, fx.quiz.ID); !errors.Is(err, domain.ErrQuizNotFound) {
		t.Fatalf("expected quiz not found, got %v", err)
	}
	if _, err := s.catalog.CreateUser(ctx, "carol"); !errors.Is(err, domain.ErrUsernameTaken) {
		t.Fatalf("expected username taken, got %v", err)
	}
}

func startPostgres(t *testing.T, ctx context.Context) (string, func()) {
	t.Helper()
	req := tc.ContainerRequest{
		Image:        "postgres:15-alpine",
		Env:          map[string]string{"POSTGRES_USER": "quiz", "POSTGRES_PASSWORD": "quizpass", "POSTGRES_DB": "quizdb"},
		ExposedPorts: []string{"5432/tcp"},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(60 * time.Second),
	}
	container, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		if strings.Contains(err.Error(), "Cannot connect to the Docker daemon") {
			t.Skipf("docker not available: %v", err)
		}
		t.Fatalf("start postgres: %v", err)
	}
	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("host: %v", err)
	}
	port, err := container.MappedPort(ctx, "5432/tcp")
	if err != nil {
		t.Fatalf("port: %v", err)
	}
	dsn := fmt.Sprintf("postgres://quiz:quizpass@%s:%s/quizdb?sslmode=disable", host, port.Port())
	return dsn, func() {
		_ = container.Terminate(ctx)
	}
}

func startRedis(t *testing.T, ctx context.Context) (string, func()) {
	t.Helper()
	req := tc.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForListeningPort("6379/tcp").WithStartupTimeout(30 * time.Second),
	}
	container, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		if strings.Contains(err.Error(), "Cannot connect to the Docker daemon") {
			t.Skipf("docker not available: %v", err)
		}
		t.Fatalf("start redis: %v", err)
	}
	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("redis host: %v", err)
	}
	port, err := container.MappedPort(ctx, "6379/tcp")
	if err != nil {
		t.Fatalf("redis port: %v", err)
	}
	url := fmt.Sprintf("redis://%s:%s", host, port.Port())
	return url, func() {
		_ = container.Terminate(ctx)
	}
}

func redisClientFromURL(url string) (*goredis.Client, error) {
	opts, err := goredis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	return goredis.NewClient(opts), nil
}

func requireDocker(t *testing.T) {
	t.Helper()
	if _, err := tc.NewDockerProvider(); err != nil {
		t.Skipf("docker not available: %v", err)
	}
}
