package app_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"quizboard-service/internal/app"
	"quizboard-service/internal/domain"
	"quizboard-service/internal/infra/memory"
)

func TestBeginAttempt(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	user := e.user(t, "ann")
	quiz := e.quiz(t, "Geo")
	choices := e.question(t, quiz.ID, "Capital?", domain.PointCorrect, domain.PointWrong)

	content, err := e.attempts.BeginAttempt(ctx, user.ID, quiz.ID)
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	if content.ID != quiz.ID || len(content.Questions) != 1 || len(content.Questions[0].Choices) != 2 {
		t.Fatalf("unexpected content %+v", content)
	}
	if attempted, _ := e.store.HasAttempt(ctx, user.ID, quiz.ID); attempted {
		t.Fatalf("begin must not record an attempt")
	}

	if _, err := e.attempts.SubmitAttempt(ctx, user.ID, quiz.ID, ids(choices[0])); err != nil {
		t.Fatalf("submit: %v", err)
	}
	if _, err := e.attempts.BeginAttempt(ctx, user.ID, quiz.ID); !errors.Is(err, domain.ErrAlreadyAttempted) {
		t.Fatalf("expected already attempted, got %v", err)
	}
	if _, err := e.attempts.BeginAttempt(ctx, 999, quiz.ID); !errors.Is(err, domain.ErrUserNotFound) {
		t.Fatalf("expected user not found, got %v", err)
	}
	if _, err := e.attempts.BeginAttempt(ctx, user.ID, 999); !errors.Is(err, domain.ErrQuizNotFound) {
		t.Fatalf("expected quiz not found, got %v", err)
	}
}

func TestSubmitAttemptIsExactlyOnce(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	user := e.user(t, "ann")
	quiz := e.quiz(t, "Sample")
	choices := e.question(t, quiz.ID, "Pick", domain.PointCorrect, domain.PointPartial, domain.PointWrong)

	attempt, err := e.attempts.SubmitAttempt(ctx, user.ID, quiz.ID, ids(choices[0]))
	if err != nil {
		t.Fatalf("first submit: %v", err)
	}
	if attempt.UserID != user.ID || attempt.QuizID != quiz.ID || attempt.ID == 0 {
		t.Fatalf("unexpected attempt %+v", attempt)
	}

	if _, err := e.attempts.SubmitAttempt(ctx, user.ID, quiz.ID, ids(choices[1], choices[2])); !errors.Is(err, domain.ErrAlreadyAttempted) {
		t.Fatalf("expected already attempted, got %v", err)
	}
	score, err := e.scoring.ComputeScore(ctx, user.ID, quiz.ID)
	if err != nil {
		t.Fatalf("score: %v", err)
	}
	if score != (domain.Score{Score: 1, Total: 1}) {
		t.Fatalf("second submission leaked into the score: %+v", score)
	}
}

func TestSubmitAttemptConcurrent(t *testing.T) {
	cases := []struct {
		name string
		opts []app.AttemptOption
	}{
		{"store constraint only", nil},
		{"with submission guard", []app.AttemptOption{app.WithSubmissionGuard(memory.NewSubmissionGuard())}},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			ctx := context.Background()
			e := newEnv(t, c.opts...)
			user := e.user(t, "ann")
			quiz := e.quiz(t, "Race")
			choices := e.question(t, quiz.ID, "Pick", domain.PointCorrect, domain.PointWrong)

			const racers = 16
			var (
				wg        sync.WaitGroup
				mu        sync.Mutex
				successes int
				others    []error
			)
			start := make(chan struct{})
			for i := 0; i < racers; i++ {
				wg.Add(1)
				go func(i int) {
					defer wg.Done()
					<-start
					_, err := e.attempts.SubmitAttempt(ctx, user.ID, quiz.ID, ids(choices[i%2]))
					mu.Lock()
					defer mu.Unlock()
					if err == nil {
						successes++
						return
					}
					others = append(others, err)
				}(i)
			}
			close(start)
			wg.Wait()

			if successes != 1 {
				t.Fatalf("expected exactly one success, got %d", successes)
			}
			for _, err := range others {
				if !errors.Is(err, domain.ErrAlreadyAttempted) {
					t.Fatalf("expected already attempted, got %v", err)
				}
			}
			selected, err := e.store.FindUserSelections(ctx, user.ID, choices[0].QuestionID)
			if err != nil {
				t.Fatalf("selections: %v", err)
			}
			if len(selected) != 1 {
				t.Fatalf("expected the winner's single selection, got %d", len(selected))
			}
		})
	}
}

func TestSubmitAttemptRejectsInvalidInput(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	user := e.user(t, "ann")
	quiz := e.quiz(t, "Mine")
	other := e.quiz(t, "Other")
	mine := e.question(t, quiz.ID, "Mine?", domain.PointCorrect)
	foreign := e.question(t, other.ID, "Other?", domain.PointCorrect)

	cases := []struct {
		name    string
		choices []int64
	}{
		{"empty", nil},
		{"unknown choice", []int64{mine[0].ID, 9999}},
		{"choice of another quiz", ids(mine[0], foreign[0])},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if _, err := e.attempts.SubmitAttempt(ctx, user.ID, quiz.ID, c.choices); !errors.Is(err, domain.ErrInvalidInput) {
				t.Fatalf("expected invalid input, got %v", err)
			}
			if attempted, _ := e.store.HasAttempt(ctx, user.ID, quiz.ID); attempted {
				t.Fatalf("rejected submission recorded an attempt")
			}
		})
	}

	if _, err := e.attempts.SubmitAttempt(ctx, 999, quiz.ID, ids(mine[0])); !errors.Is(err, domain.ErrUserNotFound) {
		t.Fatalf("expected user not found, got %v", err)
	}
	if _, err := e.attempts.SubmitAttempt(ctx, user.ID, 999, ids(mine[0])); !errors.Is(err, domain.ErrQuizNotFound) {
		t.Fatalf("expected quiz not found, got %v", err)
	}
}

func TestSubmitAttemptCollapsesDuplicateIDs(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	user := e.user(t, "ann")
	quiz := e.quiz(t, "Dup")
	choices := e.question(t, quiz.ID, "Pick", domain.PointCorrect, domain.PointCorrect)

	if _, err := e.attempts.SubmitAttempt(ctx, user.ID, quiz.ID, []int64{choices[0].ID, choices[0].ID}); err != nil {
		t.Fatalf("submit: %v", err)
	}
	score, err := e.scoring.ComputeScore(ctx, user.ID, quiz.ID)
	if err != nil {
		t.Fatalf("score: %v", err)
	}
	if score != (domain.Score{Score: 1, Total: 2}) {
		t.Fatalf("got %+v", score)
	}
}

type stubGuard struct {
	acquired bool
	err      error
	released int
}

func (g *stubGuard) Acquire(context.Context, int64, int64) (bool, error) { return g.acquired, g.err }

func (g *stubGuard) Release(context.Context, int64, int64) { g.released++ }

func TestSubmitAttemptGuard(t *testing.T) {
	ctx := context.Background()

	t.Run("stays busy", func(t *testing.T) {
		guard := &stubGuard{acquired: false}
		e := newEnv(t, app.WithSubmissionGuard(guard), app.WithGuardWait(30*time.Millisecond))
		user := e.user(t, "ann")
		quiz := e.quiz(t, "Held")
		choices := e.question(t, quiz.ID, "Pick", domain.PointCorrect)
		if _, err := e.attempts.SubmitAttempt(ctx, user.ID, quiz.ID, ids(choices...)); err != nil {
			t.Fatalf("a busy guard is not an attempt: %v", err)
		}
		if guard.released != 0 {
			t.Fatalf("released a guard that was never acquired")
		}
		if attempted, _ := e.store.HasAttempt(ctx, user.ID, quiz.ID); !attempted {
			t.Fatalf("attempt not recorded")
		}
	})

	t.Run("cancelled while waiting", func(t *testing.T) {
		guard := &stubGuard{acquired: false}
		e := newEnv(t, app.WithSubmissionGuard(guard), app.WithGuardWait(time.Minute))
		user := e.user(t, "ann")
		quiz := e.quiz(t, "Held")
		choices := e.question(t, quiz.ID, "Pick", domain.PointCorrect)
		cctx, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
		defer cancel()
		if _, err := e.attempts.SubmitAttempt(cctx, user.ID, quiz.ID, ids(choices...)); !errors.Is(err, context.DeadlineExceeded) {
			t.Fatalf("expected deadline exceeded, got %v", err)
		}
		if attempted, _ := e.store.HasAttempt(ctx, user.ID, quiz.ID); attempted {
			t.Fatalf("cancelled submission recorded an attempt")
		}
	})

	t.Run("unavailable", func(t *testing.T) {
		guard := &stubGuard{err: errors.New("redis down")}
		e := newEnv(t, app.WithSubmissionGuard(guard))
		user := e.user(t, "ann")
		quiz := e.quiz(t, "Open")
		choices := e.question(t, quiz.ID, "Pick", domain.PointCorrect)
		if _, err := e.attempts.SubmitAttempt(ctx, user.ID, quiz.ID, ids(choices...)); err != nil {
			t.Fatalf("guard outage must not block submissions: %v", err)
		}
	})

	t.Run("released", func(t *testing.T) {
		guard := &stubGuard{acquired: true}
		e := newEnv(t, app.WithSubmissionGuard(guard))
		user := e.user(t, "ann")
		quiz := e.quiz(t, "Free")
		choices := e.question(t, quiz.ID, "Pick", domain.PointCorrect)
		if _, err := e.attempts.SubmitAttempt(ctx, user.ID, quiz.ID, ids(choices...)); err != nil {
			t.Fatalf("submit: %v", err)
		}
		if guard.released != 1 {
			t.Fatalf("expected one release, got %d", guard.released)
		}
	})
}

// heldGuard wraps a real guard, reports the first successful Acquire and holds
// every Release until gate is closed.
type heldGuard struct {
	app.SubmissionGuard
	acquired chan struct{}
	gate     chan struct{}
	refused  atomic.Int32
}

func (g *heldGuard) Acquire(ctx context.Context, userID, quizID int64) (bool, error) {
	ok, err := g.SubmissionGuard.Acquire(ctx, userID, quizID)
	switch {
	case err != nil:
	case ok:
		select {
		case g.acquired <- struct{}{}:
		default:
		}
	default:
		g.refused.Add(1)
	}
	return ok, err
}

func (g *heldGuard) Release(ctx context.Context, userID, quizID int64) {
	<-g.gate
	g.SubmissionGuard.Release(ctx, userID, quizID)
}

func TestSubmitAttemptAfterFailedSubmissionHeldGuard(t *testing.T) {
	ctx := context.Background()
	guard := &heldGuard{
		SubmissionGuard: memory.NewSubmissionGuard(),
		acquired:        make(chan struct{}, 1),
		gate:            make(chan struct{}),
	}
	e := newEnv(t, app.WithSubmissionGuard(guard), app.WithGuardWait(5*time.Second))
	user := e.user(t, "ann")
	quiz := e.quiz(t, "Retry")
	choices := e.question(t, quiz.ID, "Pick", domain.PointCorrect)

	failed := make(chan error, 1)
	go func() {
		_, err := e.attempts.SubmitAttempt(ctx, user.ID, quiz.ID, nil)
		failed <- err
	}()
	select {
	case <-guard.acquired:
	case <-time.After(time.Second):
		t.Fatal("first submission never took the guard")
	}

	retried := make(chan error, 1)
	go func() {
		_, err := e.attempts.SubmitAttempt(ctx, user.ID, quiz.ID, ids(choices...))
		retried <- err
	}()
	deadline := time.Now().Add(time.Second)
	for guard.refused.Load() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("second submission never found the guard busy")
		}
		time.Sleep(5 * time.Millisecond)
	}
	close(guard.gate)

	if err := <-failed; !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}
	if err := <-retried; err != nil {
		t.Fatalf("second submission: %v", err)
	}
	if attempted, _ := e.store.HasAttempt(ctx, user.ID, quiz.ID); !attempted {
		t.Fatalf("attempt not recorded")
	}
}

func TestSubmitAttemptPublishesAndObserves(t *testing.T) {
	ctx := context.Background()
	feed := app.NewReportFeed()
	observer := &recordingObserver{}
	e := newEnv(t, app.WithReportFeed(feed), app.WithAttemptObserver(observer))
	user := e.user(t, "ann")
	quiz := e.quiz(t, "Live")
	choices := e.question(t, quiz.ID, "Pick", domain.PointCorrect, domain.PointPartial)

	rows, cancel := feed.Subscribe()
	defer cancel()

	if _, err := e.attempts.SubmitAttempt(ctx, user.ID, quiz.ID, ids(choices...)); err != nil {
		t.Fatalf("submit: %v", err)
	}
	_, _ = e.attempts.SubmitAttempt(ctx, user.ID, quiz.ID, ids(choices...))
	_, _ = e.attempts.SubmitAttempt(ctx, user.ID, quiz.ID+100, ids(choices...))

	select {
	case row := <-rows:
		want := domain.UserReport{QuizID: quiz.ID, QuizName: "Live", UserID: user.ID, UserName: "ann", Score: 0.5, Total: 1}
		if row != want {
			t.Fatalf("got %+v, want %+v", row, want)
		}
	default:
		t.Fatalf("expected a report row")
	}
	select {
	case row := <-rows:
		t.Fatalf("rejected submissions must not publish, got %+v", row)
	default:
	}

	got := observer.snapshot()
	want := []string{app.OutcomeRecorded, app.OutcomeAlreadyAttempted, app.OutcomeNotFound}
	if len(got) != len(want) {
		t.Fatalf("got outcomes %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got outcomes %v, want %v", got, want)
		}
	}
}

func TestAvailableQuizzes(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	user := e.user(t, "ann")
	first := e.quiz(t, "First")
	second := e.quiz(t, "Second")
	choices := e.question(t, first.ID, "Pick", domain.PointCorrect)

	if _, err := e.attempts.SubmitAttempt(ctx, user.ID, first.ID, ids(choices...)); err != nil {
		t.Fatalf("submit: %v", err)
	}
	open, err := e.attempts.AvailableQuizzes(ctx, user.ID)
	if err != nil {
		t.Fatalf("available: %v", err)
	}
	if len(open) != 1 || open[0].ID != second.ID {
		t.Fatalf("expected only the second quiz, got %+v", open)
	}
}

func TestOutcome(t *testing.T) {
	cases := map[string]error{
		app.OutcomeRecorded:         nil,
		app.OutcomeAlreadyAttempted: domain.ErrAlreadyAttempted,
		app.OutcomeInvalidInput:     fmt.Errorf("%w: no choice selected", domain.ErrInvalidInput),
		app.OutcomeNotFound:         domain.ErrChoiceNotFound,
		app.OutcomeError:            errors.New("boom"),
	}
	for want, err := range cases {
		if got := app.Outcome(err); got != want {
			t.Fatalf("Outcome(%v)=%s, want %s", err, got, want)
		}
	}
}
