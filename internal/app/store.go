package app

import (
	"context"

	"quizboard-service/internal/domain"
)

// Store is the persistence contract the scoring engine and attempt recorder read from and write to.
// Lookups of missing rows return the matching domain.Err*NotFound error.
type Store interface {
	FindUser(ctx context.Context, userID int64) (domain.User, error)
	FindQuiz(ctx context.Context, quizID int64) (domain.Quiz, error)
	// FindQuizQuestions returns the questions of a quiz in creation order.
	FindQuizQuestions(ctx context.Context, quizID int64) ([]domain.Question, error)
	// FindQuestionChoices returns the choices of a question in creation order.
	FindQuestionChoices(ctx context.Context, questionID int64) ([]domain.Choice, error)
	// FindUserSelections returns the choices of a question the user has selected.
	FindUserSelections(ctx context.Context, userID, questionID int64) ([]domain.Choice, error)
	// FindChoices returns the existing choices among ids; unknown ids are skipped.
	FindChoices(ctx context.Context, choiceIDs []int64) ([]domain.Choice, error)

	HasAttempt(ctx context.Context, userID, quizID int64) (bool, error)
	// RunInTx runs fn atomically: either every write made through the writer takes effect or none does.
	RunInTx(ctx context.Context, fn func(ctx context.Context, w AttemptWriter) error) error

	// ListAttemptedQuizzes returns the quizzes the user has an attempt for, in creation order.
	ListAttemptedQuizzes(ctx context.Context, userID int64) ([]domain.Quiz, error)
	// ListUnattemptedQuizzes returns the quizzes the user has not taken yet, in creation order.
	ListUnattemptedQuizzes(ctx context.Context, userID int64) ([]domain.Quiz, error)
	// ListQuizzesWithAttempts returns quizzes with at least one attempt, ordered by name then id.
	ListQuizzesWithAttempts(ctx context.Context) ([]domain.Quiz, error)
	// ListAttemptedUsers returns the users who took a quiz, in attempt order.
	ListAttemptedUsers(ctx context.Context, quizID int64) ([]domain.User, error)
}

// AttemptWriter is the write side available inside Store.RunInTx.
type AttemptWriter interface {
	// CreateAttempt fails with domain.ErrDuplicateAttempt when the pair already exists.
	CreateAttempt(ctx context.Context, userID, quizID int64) (domain.Attempt, error)
	AddSelection(ctx context.Context, choiceID, userID int64) error
}

// CatalogStore holds the administrator-authored content. Deletes cascade to children.
type CatalogStore interface {
	CreateUser(ctx context.Context, username string) (domain.User, error)

	CreateQuiz(ctx context.Context, quiz domain.Quiz) (domain.Quiz, error)
	DeleteQuiz(ctx context.Context, quizID int64) error
	FindQuiz(ctx context.Context, quizID int64) (domain.Quiz, error)
	// ListQuizzes returns every quiz ordered by name then id.
	ListQuizzes(ctx context.Context) ([]domain.Quiz, error)

	CreateQuestion(ctx context.Context, question domain.Question) (domain.Question, error)
	DeleteQuestion(ctx context.Context, questionID int64) error
	FindQuestion(ctx context.Context, questionID int64) (domain.Question, error)
	FindQuizQuestions(ctx context.Context, quizID int64) ([]domain.Question, error)

	CreateChoice(ctx context.Context, choice domain.Choice) (domain.Choice, error)
	DeleteChoice(ctx context.Context, choiceID int64) error
	FindChoice(ctx context.Context, choiceID int64) (domain.Choice, error)
	FindQuestionChoices(ctx context.Context, questionID int64) ([]domain.Choice, error)
}

// QuizRepository serves quiz content (from cache/backing store).
type QuizRepository interface {
	GetQuiz(ctx context.Context, quizID int64) (domain.QuizContent, error)
	// Invalidate drops any cached copy so the next GetQuiz reloads.
	Invalidate(ctx context.Context, quizID int64) error
}

// SubmissionGuard serializes in-flight submissions per (user, quiz).
// It is best effort; the store's uniqueness constraint stays authoritative.
type SubmissionGuard interface {
	Acquire(ctx context.Context, userID, quizID int64) (bool, error)
	Release(ctx context.Context, userID, quizID int64)
}

// AttemptObserver receives the outcome label of every submission.
type AttemptObserver interface {
	ObserveAttempt(outcome string)
}

// StoreQuizLoader assembles quiz content from the per-entity store reads.
type StoreQuizLoader struct {
	store Store
}

func NewStoreQuizLoader(store Store) *StoreQuizLoader {
	return &StoreQuizLoader{store: store}
}

func (l *StoreQuizLoader) LoadQuiz(ctx context.Context, quizID int64) (domain.QuizContent, error) {
	quiz, err := l.store.FindQuiz(ctx, quizID)
	if err != nil {
		return domain.QuizContent{}, err
	}
	questions, err := l.store.FindQuizQuestions(ctx, quizID)
	if err != nil {
		return domain.QuizContent{}, err
	}
	content := domain.QuizContent{Quiz: quiz, Questions: make([]domain.QuestionContent, 0, len(questions))}
	for _, q := range questions {
		choices, err := l.store.FindQuestionChoices(ctx, q.ID)
		if err != nil {
			return domain.QuizContent{}, err
		}
		content.Questions = append(content.Questions, domain.QuestionContent{Question: q, Choices: choices})
	}
	return content, nil
}
