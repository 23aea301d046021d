package app_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"quizboard-service/internal/app"
	"quizboard-service/internal/domain"
	"quizboard-service/internal/infra/memory"
)

type env struct {
	store    *memory.Store
	quizzes  *memory.QuizRepository
	scoring  *app.ScoringService
	attempts *app.AttemptService
	catalog  *app.CatalogService
}

func newEnv(t *testing.T, opts ...app.AttemptOption) *env {
	t.Helper()
	log := zaptest.NewLogger(t)
	store := memory.NewStore()
	quizzes := memory.NewQuizRepository(app.NewStoreQuizLoader(store), time.Minute)
	scoring := app.NewScoringService(store, quizzes)
	return &env{
		store:    store,
		quizzes:  quizzes,
		scoring:  scoring,
		attempts: app.NewAttemptService(store, quizzes, scoring, log, opts...),
		catalog:  app.NewCatalogService(store, quizzes, log),
	}
}

func (e *env) user(t *testing.T, name string) domain.User {
	t.Helper()
	u, err := e.catalog.CreateUser(context.Background(), name)
	if err != nil {
		t.Fatalf("create user %s: %v", name, err)
	}
	return u
}

func (e *env) quiz(t *testing.T, name string) domain.Quiz {
	t.Helper()
	q, err := e.catalog.CreateQuiz(context.Background(), name, "", domain.DifficultyMedium)
	if err != nil {
		t.Fatalf("create quiz %s: %v", name, err)
	}
	return q
}

// question adds a question whose choices carry the given points, in order.
func (e *env) question(t *testing.T, quizID int64, text string, points ...domain.Point) []domain.Choice {
	t.Helper()
	ctx := context.Background()
	q, err := e.catalog.CreateQuestion(ctx, quizID, text)
	if err != nil {
		t.Fatalf("create question: %v", err)
	}
	choices := make([]domain.Choice, 0, len(points))
	for i, p := range points {
		c, err := e.catalog.CreateChoice(ctx, q.ID, text+" choice "+string(rune('a'+i)), p)
		if err != nil {
			t.Fatalf("create choice: %v", err)
		}
		choices = append(choices, c)
	}
	return choices
}

func ids(choices ...domain.Choice) []int64 {
	out := make([]int64, 0, len(choices))
	for _, c := range choices {
		out = append(out, c.ID)
	}
	return out
}

type recordingObserver struct {
	mu       sync.Mutex
	outcomes []string
}

func (o *recordingObserver) ObserveAttempt(outcome string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.outcomes = append(o.outcomes, outcome)
}

func (o *recordingObserver) snapshot() []string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]string(nil), o.outcomes...)
}
