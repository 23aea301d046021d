package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"

	"quizboard-service/internal/app"
	"quizboard-service/internal/domain"
)

const (
	foreignKeyViolation = "23503"
	uniqueViolation     = "23505"
)

// Open connects bun to Postgres through pgdriver.
func Open(dsn string) *bun.DB {
	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn)))
	return bun.NewDB(sqldb, pgdialect.New())
}

// Store implements app.Store and app.CatalogStore on Postgres.
// Uniqueness of (user, quiz) attempts and cascading deletes are enforced by the schema.
type Store struct {
	db *bun.DB
}

func NewStore(db *bun.DB) *Store {
	return &Store{db: db}
}

func (s *Store) FindUser(ctx context.Context, userID int64) (domain.User, error) {
	var m userModel
	if err := s.db.NewSelect().Model(&m).Where("u.id = ?", userID).Scan(ctx); err != nil {
		return domain.User{}, notFound(err, domain.ErrUserNotFound, "find user")
	}
	return m.toDomain(), nil
}

func (s *Store) FindQuiz(ctx context.Context, quizID int64) (domain.Quiz, error) {
	var m quizModel
	if err := s.db.NewSelect().Model(&m).Where("qz.id = ?", quizID).Scan(ctx); err != nil {
		return domain.Quiz{}, notFound(err, domain.ErrQuizNotFound, "find quiz")
	}
	return m.toDomain(), nil
}

func (s *Store) FindQuestion(ctx context.Context, questionID int64) (domain.Question, error) {
	var m questionModel
	if err := s.db.NewSelect().Model(&m).Where("qn.id = ?", questionID).Scan(ctx); err != nil {
		return domain.Question{}, notFound(err, domain.ErrQuestionNotFound, "find question")
	}
	return m.toDomain(), nil
}

func (s *Store) FindChoice(ctx context.Context, choiceID int64) (domain.Choice, error) {
	var m choiceModel
	if err := s.db.NewSelect().Model(&m).Where("ch.id = ?", choiceID).Scan(ctx); err != nil {
		return domain.Choice{}, notFound(err, domain.ErrChoiceNotFound, "find choice")
	}
	return m.toDomain(), nil
}

func (s *Store) FindQuizQuestions(ctx context.Context, quizID int64) ([]domain.Question, error) {
	if _, err := s.FindQuiz(ctx, quizID); err != nil {
		return nil, err
	}
	var models []questionModel
	if err := s.db.NewSelect().Model(&models).Where("qn.quiz_id = ?", quizID).OrderExpr("qn.id ASC").Scan(ctx); err != nil {
		return nil, fmt.Errorf("list questions: %w", err)
	}
	out := make([]domain.Question, 0, len(models))
	for _, m := range models {
		out = append(out, m.toDomain())
	}
	return out, nil
}

func (s *Store) FindQuestionChoices(ctx context.Context, questionID int64) ([]domain.Choice, error) {
	if _, err := s.FindQuestion(ctx, questionID); err != nil {
		return nil, err
	}
	var models []choiceModel
	if err := s.db.NewSelect().Model(&models).Where("ch.question_id = ?", questionID).OrderExpr("ch.id ASC").Scan(ctx); err != nil {
		return nil, fmt.Errorf("list choices: %w", err)
	}
	return choicesToDomain(models), nil
}

func (s *Store) FindUserSelections(ctx context.Context, userID, questionID int64) ([]domain.Choice, error) {
	var models []choiceModel
	err := s.db.NewSelect().
		Model(&models).
		Join("JOIN choice_selections AS cs ON cs.choice_id = ch.id").
		Where("cs.user_id = ?", userID).
		Where("ch.question_id = ?", questionID).
		OrderExpr("ch.id ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("list selections: %w", err)
	}
	return choicesToDomain(models), nil
}

func (s *Store) FindChoices(ctx context.Context, choiceIDs []int64) ([]domain.Choice, error) {
	if len(choiceIDs) == 0 {
		return nil, nil
	}
	var models []choiceModel
	if err := s.db.NewSelect().Model(&models).Where("ch.id IN (?)", bun.In(choiceIDs)).OrderExpr("ch.id ASC").Scan(ctx); err != nil {
		return nil, fmt.Errorf("find choices: %w", err)
	}
	return choicesToDomain(models), nil
}

func (s *Store) HasAttempt(ctx context.Context, userID, quizID int64) (bool, error) {
	return s.db.NewSelect().
		Model((*attemptModel)(nil)).
		Where("qa.user_id = ?", userID).
		Where("qa.quiz_id = ?", quizID).
		Exists(ctx)
}

func (s *Store) RunInTx(ctx context.Context, fn func(ctx context.Context, w app.AttemptWriter) error) error {
	return s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		return fn(ctx, &txWriter{db: tx})
	})
}

func (s *Store) ListAttemptedQuizzes(ctx context.Context, userID int64) ([]domain.Quiz, error) {
	var models []quizModel
	err := s.db.NewSelect().
		Model(&models).
		Join("JOIN quiz_attempts AS qa ON qa.quiz_id = qz.id").
		Where("qa.user_id = ?", userID).
		OrderExpr("qz.id ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return quizzesToDomain(models), nil
}

func (s *Store) ListUnattemptedQuizzes(ctx context.Context, userID int64) ([]domain.Quiz, error) {
	var models []quizModel
	err := s.db.NewSelect().
		Model(&models).
		Where("NOT EXISTS (SELECT 1 FROM quiz_attempts AS qa WHERE qa.quiz_id = qz.id AND qa.user_id = ?)", userID).
		OrderExpr("qz.id ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return quizzesToDomain(models), nil
}

func (s *Store) ListQuizzesWithAttempts(ctx context.Context) ([]domain.Quiz, error) {
	var models []quizModel
	err := s.db.NewSelect().
		Model(&models).
		Where("EXISTS (SELECT 1 FROM quiz_attempts AS qa WHERE qa.quiz_id = qz.id)").
		OrderExpr("qz.name ASC, qz.id ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return quizzesToDomain(models), nil
}

func (s *Store) ListAttemptedUsers(ctx context.Context, quizID int64) ([]domain.User, error) {
	var models []userModel
	err := s.db.NewSelect().
		Model(&models).
		Join("JOIN quiz_attempts AS qa ON qa.user_id = u.id").
		Where("qa.quiz_id = ?", quizID).
		OrderExpr("qa.id ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]domain.User, 0, len(models))
	for _, m := range models {
		out = append(out, m.toDomain())
	}
	return out, nil
}

func (s *Store) CreateUser(ctx context.Context, username string) (domain.User, error) {
	m := userModel{Username: username}
	if _, err := s.db.NewInsert().Model(&m).Returning("*").Exec(ctx); err != nil {
		if hasCode(err, uniqueViolation) {
			return domain.User{}, domain.ErrUsernameTaken
		}
		return domain.User{}, fmt.Errorf("insert user: %w", err)
	}
	return m.toDomain(), nil
}

func (s *Store) CreateQuiz(ctx context.Context, quiz domain.Quiz) (domain.Quiz, error) {
	m := quizModel{Name: quiz.Name, Subject: quiz.Subject, Difficulty: int16(quiz.Difficulty)}
	if _, err := s.db.NewInsert().Model(&m).Returning("*").Exec(ctx); err != nil {
		return domain.Quiz{}, fmt.Errorf("insert quiz: %w", err)
	}
	return m.toDomain(), nil
}

func (s *Store) DeleteQuiz(ctx context.Context, quizID int64) error {
	res, err := s.db.NewDelete().Model((*quizModel)(nil)).Where("id = ?", quizID).Exec(ctx)
	return deleted(res, err, domain.ErrQuizNotFound, "delete quiz")
}

func (s *Store) ListQuizzes(ctx context.Context) ([]domain.Quiz, error) {
	var models []quizModel
	if err := s.db.NewSelect().Model(&models).OrderExpr("qz.name ASC, qz.id ASC").Scan(ctx); err != nil {
		return nil, err
	}
	return quizzesToDomain(models), nil
}

func (s *Store) CreateQuestion(ctx context.Context, question domain.Question) (domain.Question, error) {
	m := questionModel{QuizID: question.QuizID, Text: question.Text}
	if _, err := s.db.NewInsert().Model(&m).Returning("*").Exec(ctx); err != nil {
		if hasCode(err, foreignKeyViolation) {
			return domain.Question{}, domain.ErrQuizNotFound
		}
		return domain.Question{}, fmt.Errorf("insert question: %w", err)
	}
	return m.toDomain(), nil
}

func (s *Store) DeleteQuestion(ctx context.Context, questionID int64) error {
	res, err := s.db.NewDelete().Model((*questionModel)(nil)).Where("id = ?", questionID).Exec(ctx)
	return deleted(res, err, domain.ErrQuestionNotFound, "delete question")
}

func (s *Store) CreateChoice(ctx context.Context, choice domain.Choice) (domain.Choice, error) {
	m := choiceModel{QuestionID: choice.QuestionID, Text: choice.Text, Point: int16(choice.Point)}
	if _, err := s.db.NewInsert().Model(&m).Returning("*").Exec(ctx); err != nil {
		if hasCode(err, foreignKeyViolation) {
			return domain.Choice{}, domain.ErrQuestionNotFound
		}
		return domain.Choice{}, fmt.Errorf("insert choice: %w", err)
	}
	return m.toDomain(), nil
}

func (s *Store) DeleteChoice(ctx context.Context, choiceID int64) error {
	res, err := s.db.NewDelete().Model((*choiceModel)(nil)).Where("id = ?", choiceID).Exec(ctx)
	return deleted(res, err, domain.ErrChoiceNotFound, "delete choice")
}

type txWriter struct {
	db bun.Tx
}

func (w *txWriter) CreateAttempt(ctx context.Context, userID, quizID int64) (domain.Attempt, error) {
	m := attemptModel{UserID: userID, QuizID: quizID}
	if _, err := w.db.NewInsert().Model(&m).Returning("*").Exec(ctx); err != nil {
		if hasCode(err, uniqueViolation) {
			return domain.Attempt{}, domain.ErrDuplicateAttempt
		}
		return domain.Attempt{}, fmt.Errorf("insert attempt: %w", err)
	}
	return m.toDomain(), nil
}

func (w *txWriter) AddSelection(ctx context.Context, choiceID, userID int64) error {
	m := selectionModel{ChoiceID: choiceID, UserID: userID}
	if _, err := w.db.NewInsert().Model(&m).On("CONFLICT DO NOTHING").Exec(ctx); err != nil {
		if hasCode(err, foreignKeyViolation) {
			return domain.ErrChoiceNotFound
		}
		return err
	}
	return nil
}

// hasCode reports whether err carries the given SQLSTATE.
func hasCode(err error, code string) bool {
	var pgErr pgdriver.Error
	if errors.As(err, &pgErr) {
		return pgErr.Field('C') == code
	}
	return false
}

func notFound(err, sentinel error, op string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return sentinel
	}
	return fmt.Errorf("%s: %w", op, err)
}

func deleted(res sql.Result, err, sentinel error, op string) error {
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if n == 0 {
		return sentinel
	}
	return nil
}
