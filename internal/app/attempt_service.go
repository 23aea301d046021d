package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"quizboard-service/internal/domain"
)

// Attempt outcome labels passed to AttemptObserver.
const (
	OutcomeRecorded         = "recorded"
	OutcomeAlreadyAttempted = "already_attempted"
	OutcomeInvalidInput     = "invalid_input"
	OutcomeNotFound         = "not_found"
	OutcomeError            = "error"
)

const (
	defaultGuardWait  = 2 * time.Second
	guardPollInterval = 20 * time.Millisecond
)

// AttemptService gates quiz access and records completed attempts.
type AttemptService struct {
	store     Store
	quizzes   QuizRepository
	scoring   *ScoringService
	guard     SubmissionGuard
	guardWait time.Duration
	feed      *ReportFeed
	observer  AttemptObserver
	log       *zap.Logger
}

// AttemptOption customizes an AttemptService.
type AttemptOption func(*AttemptService)

// WithSubmissionGuard short-circuits concurrent submissions for the same (user, quiz).
func WithSubmissionGuard(g SubmissionGuard) AttemptOption {
	return func(s *AttemptService) { s.guard = g }
}

// WithReportFeed publishes a report row for every recorded attempt.
// WithGuardWait bounds how long a submission waits for a busy guard before
// going ahead without it.
func WithGuardWait(d time.Duration) AttemptOption {
	return func(s *AttemptService) { s.guardWait = d }
}

func WithReportFeed(f *ReportFeed) AttemptOption {
	return func(s *AttemptService) { s.feed = f }
}

func WithAttemptObserver(o AttemptObserver) AttemptOption {
	return func(s *AttemptService) { s.observer = o }
}

func NewAttemptService(store Store, quizzes QuizRepository, scoring *ScoringService, log *zap.Logger, opts ...AttemptOption) *AttemptService {
	s := &AttemptService{
		store:     store,
		quizzes:   quizzes,
		scoring:   scoring,
		guard:     noopGuard{},
		guardWait: defaultGuardWait,
		log:       log,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// AvailableQuizzes lists the quizzes the user may still take.
func (s *AttemptService) AvailableQuizzes(ctx context.Context, userID int64) ([]domain.Quiz, error) {
	if _, err := s.store.FindUser(ctx, userID); err != nil {
		return nil, err
	}
	return s.store.ListUnattemptedQuizzes(ctx, userID)
}

// BeginAttempt returns the quiz for presentation unless the user already took it. It never writes.
func (s *AttemptService) BeginAttempt(ctx context.Context, userID, quizID int64) (domain.QuizContent, error) {
	if _, err := s.store.FindUser(ctx, userID); err != nil {
		return domain.QuizContent{}, err
	}
	attempted, err := s.store.HasAttempt(ctx, userID, quizID)
	if err != nil {
		return domain.QuizContent{}, fmt.Errorf("check attempt: %w", err)
	}
	if attempted {
		return domain.QuizContent{}, domain.ErrAlreadyAttempted
	}
	return s.quizzes.GetQuiz(ctx, quizID)
}

// SubmitAttempt records the attempt and the user's selections in one transaction.
// A racing duplicate is reported as domain.ErrAlreadyAttempted.
func (s *AttemptService) SubmitAttempt(ctx context.Context, userID, quizID int64, choiceIDs []int64) (domain.Attempt, error) {
	attempt, user, quiz, err := s.submit(ctx, userID, quizID, choiceIDs)
	s.observe(err)
	if err != nil {
		return domain.Attempt{}, err
	}

	s.log.Info("attempt recorded",
		zap.Int64("attempt_id", attempt.ID),
		zap.Int64("user_id", userID),
		zap.Int64("quiz_id", quizID),
		zap.Int("selections", len(choiceIDs)),
	)
	s.publish(ctx, attempt, user, quiz)
	return attempt, nil
}

func (s *AttemptService) submit(ctx context.Context, userID, quizID int64, choiceIDs []int64) (domain.Attempt, domain.User, domain.QuizContent, error) {
	var (
		none    domain.Attempt
		noUser  domain.User
		noQuiz  domain.QuizContent
		attempt domain.Attempt
	)

	release, err := s.holdGuard(ctx, userID, quizID)
	if err != nil {
		return none, noUser, noQuiz, err
	}
	defer release()

	attempted, err := s.store.HasAttempt(ctx, userID, quizID)
	if err != nil {
		return none, noUser, noQuiz, fmt.Errorf("check attempt: %w", err)
	}
	if attempted {
		return none, noUser, noQuiz, domain.ErrAlreadyAttempted
	}

	ids := uniqueIDs(choiceIDs)
	if len(ids) == 0 {
		return none, noUser, noQuiz, fmt.Errorf("%w: no choice selected", domain.ErrInvalidInput)
	}

	user, err := s.store.FindUser(ctx, userID)
	if err != nil {
		return none, noUser, noQuiz, err
	}
	quiz, err := s.quizzes.GetQuiz(ctx, quizID)
	if err != nil {
		return none, noUser, noQuiz, err
	}
	if err := s.validateChoices(ctx, quiz, ids); err != nil {
		return none, noUser, noQuiz, err
	}

	err = s.store.RunInTx(ctx, func(ctx context.Context, w AttemptWriter) error {
		created, err := w.CreateAttempt(ctx, userID, quizID)
		if err != nil {
			return err
		}
		for _, id := range ids {
			if err := w.AddSelection(ctx, id, userID); err != nil {
				return fmt.Errorf("add selection %d: %w", id, err)
			}
		}
		attempt = created
		return nil
	})
	if errors.Is(err, domain.ErrDuplicateAttempt) {
		return none, noUser, noQuiz, domain.ErrAlreadyAttempted
	}
	if err != nil {
		return none, noUser, noQuiz, fmt.Errorf("record attempt: %w", err)
	}
	return attempt, user, quiz, nil
}

// holdGuard waits for the pair's guard. A busy guard only means another
// submission is in flight, so after guardWait, or when the guard fails, the
// submission goes ahead unguarded and HasAttempt plus the store constraint decide.
func (s *AttemptService) holdGuard(ctx context.Context, userID, quizID int64) (func(), error) {
	noop := func() {}
	deadline := time.NewTimer(s.guardWait)
	defer deadline.Stop()
	ticker := time.NewTicker(guardPollInterval)
	defer ticker.Stop()

	for {
		acquired, err := s.guard.Acquire(ctx, userID, quizID)
		if err != nil {
			s.log.Warn("submission guard unavailable", zap.Error(err))
			return noop, nil
		}
		if acquired {
			return func() { s.guard.Release(ctx, userID, quizID) }, nil
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-deadline.C:
			s.log.Warn("submission guard busy, continuing without it",
				zap.Int64("user_id", userID), zap.Int64("quiz_id", quizID))
			return noop, nil
		case <-ticker.C:
		}
	}
}

// validateChoices requires every id to name an existing choice of one of the quiz's questions.
func (s *AttemptService) validateChoices(ctx context.Context, quiz domain.QuizContent, ids []int64) error {
	choices, err := s.store.FindChoices(ctx, ids)
	if err != nil {
		return fmt.Errorf("load choices: %w", err)
	}
	if len(choices) != len(ids) {
		return fmt.Errorf("%w: unknown choice", domain.ErrInvalidInput)
	}

	questions := make(map[int64]struct{}, len(quiz.Questions))
	for _, q := range quiz.Questions {
		questions[q.ID] = struct{}{}
	}
	for _, c := range choices {
		if _, ok := questions[c.QuestionID]; !ok {
			return fmt.Errorf("%w: choice %d does not belong to quiz %d", domain.ErrInvalidInput, c.ID, quiz.ID)
		}
	}
	return nil
}

func (s *AttemptService) publish(ctx context.Context, attempt domain.Attempt, user domain.User, quiz domain.QuizContent) {
	if s.feed == nil || s.scoring == nil {
		return
	}
	score, err := s.scoring.scoreContent(ctx, attempt.UserID, quiz)
	if err != nil {
		s.log.Warn("score for report feed", zap.Int64("attempt_id", attempt.ID), zap.Error(err))
		return
	}
	s.feed.Publish(domain.UserReport{
		QuizID:   quiz.ID,
		QuizName: quiz.Name,
		UserID:   user.ID,
		UserName: user.Username,
		Score:    score.Score,
		Total:    score.Total,
	})
}

func (s *AttemptService) observe(err error) {
	if s.observer == nil {
		return
	}
	s.observer.ObserveAttempt(Outcome(err))
}

// Outcome maps a submission error to its label.
func Outcome(err error) string {
	switch {
	case err == nil:
		return OutcomeRecorded
	case errors.Is(err, domain.ErrAlreadyAttempted):
		return OutcomeAlreadyAttempted
	case errors.Is(err, domain.ErrInvalidInput):
		return OutcomeInvalidInput
	case errors.Is(err, domain.ErrNotFound):
		return OutcomeNotFound
	default:
		return OutcomeError
	}
}

func uniqueIDs(ids []int64) []int64 {
	seen := make(map[int64]struct{}, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

type noopGuard struct{}

func (noopGuard) Acquire(context.Context, int64, int64) (bool, error) { return true, nil }

func (noopGuard) Release(context.Context, int64, int64) {}
