package app

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"

	"quizboard-service/internal/domain"
)

// Field limits for administrator-authored content.
const (
	MaxUsernameLen     = 30
	MaxQuizNameLen     = 20
	MaxQuizSubjectLen  = 200
	MaxQuestionTextLen = 500
	MaxChoiceTextLen   = 300
)

// CatalogService is the administrator side: users, quizzes, questions and choices.
// Every content change invalidates the cached quiz it belongs to.
type CatalogService struct {
	store   CatalogStore
	quizzes QuizRepository
	log     *zap.Logger
}

func NewCatalogService(store CatalogStore, quizzes QuizRepository, log *zap.Logger) *CatalogService {
	return &CatalogService{store: store, quizzes: quizzes, log: log}
}

func (s *CatalogService) CreateUser(ctx context.Context, username string) (domain.User, error) {
	username = strings.TrimSpace(username)
	if err := checkText("username", username, MaxUsernameLen, true); err != nil {
		return domain.User{}, err
	}
	return s.store.CreateUser(ctx, username)
}

func (s *CatalogService) CreateQuiz(ctx context.Context, name, subject string, difficulty domain.Difficulty) (domain.Quiz, error) {
	name = strings.TrimSpace(name)
	subject = strings.TrimSpace(subject)
	if err := checkText("name", name, MaxQuizNameLen, true); err != nil {
		return domain.Quiz{}, err
	}
	if err := checkText("subject", subject, MaxQuizSubjectLen, false); err != nil {
		return domain.Quiz{}, err
	}
	if !difficulty.Valid() {
		return domain.Quiz{}, fmt.Errorf("%w: difficulty %d", domain.ErrInvalidInput, difficulty)
	}
	return s.store.CreateQuiz(ctx, domain.Quiz{Name: name, Subject: subject, Difficulty: difficulty})
}

// DeleteQuiz removes the quiz with its questions, choices, selections and attempts.
func (s *CatalogService) DeleteQuiz(ctx context.Context, quizID int64) error {
	if err := s.store.DeleteQuiz(ctx, quizID); err != nil {
		return err
	}
	s.invalidate(ctx, quizID)
	return nil
}

// ListQuizzes returns all quizzes ordered by name.
func (s *CatalogService) ListQuizzes(ctx context.Context) ([]domain.Quiz, error) {
	return s.store.ListQuizzes(ctx)
}

func (s *CatalogService) CreateQuestion(ctx context.Context, quizID int64, text string) (domain.Question, error) {
	text = strings.TrimSpace(text)
	if err := checkText("text", text, MaxQuestionTextLen, true); err != nil {
		return domain.Question{}, err
	}
	if _, err := s.store.FindQuiz(ctx, quizID); err != nil {
		return domain.Question{}, err
	}
	question, err := s.store.CreateQuestion(ctx, domain.Question{QuizID: quizID, Text: text})
	if err != nil {
		return domain.Question{}, err
	}
	s.invalidate(ctx, quizID)
	return question, nil
}

func (s *CatalogService) DeleteQuestion(ctx context.Context, questionID int64) error {
	question, err := s.store.FindQuestion(ctx, questionID)
	if err != nil {
		return err
	}
	if err := s.store.DeleteQuestion(ctx, questionID); err != nil {
		return err
	}
	s.invalidate(ctx, question.QuizID)
	return nil
}

// ListQuestions returns the questions of a quiz ordered by text.
func (s *CatalogService) ListQuestions(ctx context.Context, quizID int64) ([]domain.Question, error) {
	if _, err := s.store.FindQuiz(ctx, quizID); err != nil {
		return nil, err
	}
	questions, err := s.store.FindQuizQuestions(ctx, quizID)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(questions, func(i, j int) bool {
		return questions[i].Text < questions[j].Text
	})
	return questions, nil
}

func (s *CatalogService) CreateChoice(ctx context.Context, questionID int64, text string, point domain.Point) (domain.Choice, error) {
	text = strings.TrimSpace(text)
	if err := checkText("text", text, MaxChoiceTextLen, true); err != nil {
		return domain.Choice{}, err
	}
	if !point.Valid() {
		return domain.Choice{}, fmt.Errorf("%w: point %d", domain.ErrInvalidInput, point)
	}
	question, err := s.store.FindQuestion(ctx, questionID)
	if err != nil {
		return domain.Choice{}, err
	}
	choice, err := s.store.CreateChoice(ctx, domain.Choice{QuestionID: questionID, Text: text, Point: point})
	if err != nil {
		return domain.Choice{}, err
	}
	s.invalidate(ctx, question.QuizID)
	return choice, nil
}

func (s *CatalogService) DeleteChoice(ctx context.Context, choiceID int64) error {
	choice, err := s.store.FindChoice(ctx, choiceID)
	if err != nil {
		return err
	}
	question, err := s.store.FindQuestion(ctx, choice.QuestionID)
	if err != nil {
		return err
	}
	if err := s.store.DeleteChoice(ctx, choiceID); err != nil {
		return err
	}
	s.invalidate(ctx, question.QuizID)
	return nil
}

// ListChoices returns the choices of a question ordered by text.
func (s *CatalogService) ListChoices(ctx context.Context, questionID int64) ([]domain.Choice, error) {
	if _, err := s.store.FindQuestion(ctx, questionID); err != nil {
		return nil, err
	}
	choices, err := s.store.FindQuestionChoices(ctx, questionID)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(choices, func(i, j int) bool {
		return choices[i].Text < choices[j].Text
	})
	return choices, nil
}

// invalidate is best effort: a failed eviction only delays visibility until the cache TTL.
func (s *CatalogService) invalidate(ctx context.Context, quizID int64) {
	if s.quizzes == nil {
		return
	}
	if err := s.quizzes.Invalidate(ctx, quizID); err != nil {
		s.log.Warn("invalidate quiz cache", zap.Int64("quiz_id", quizID), zap.Error(err))
	}
}

func checkText(field, value string, max int, required bool) error {
	if required && value == "" {
		return fmt.Errorf("%w: %s is required", domain.ErrInvalidInput, field)
	}
	if utf8.RuneCountInString(value) > max {
		return fmt.Errorf("%w: %s longer than %d characters", domain.ErrInvalidInput, field, max)
	}
	return nil
}
