package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"quizboard-service/internal/domain"
)

// QuizLoader loads a quiz tree from Postgres in two round trips.
type QuizLoader struct {
	pool *pgxpool.Pool
}

func NewQuizLoader(pool *pgxpool.Pool) *QuizLoader {
	return &QuizLoader{pool: pool}
}

func (l *QuizLoader) LoadQuiz(ctx context.Context, quizID int64) (domain.QuizContent, error) {
	var (
		content    domain.QuizContent
		difficulty int16
	)
	err := l.pool.QueryRow(ctx,
		`SELECT id, name, subject, difficulty, created_at FROM quizzes WHERE id=$1`, quizID,
	).Scan(&content.ID, &content.Name, &content.Subject, &difficulty, &content.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.QuizContent{}, domain.ErrQuizNotFound
	}
	if err != nil {
		return domain.QuizContent{}, fmt.Errorf("load quiz: %w", err)
	}
	content.Difficulty = domain.Difficulty(difficulty)

	rows, err := l.pool.Query(ctx, `
		SELECT qn.id, qn.text, ch.id, ch.text, ch.point
		FROM questions qn
		LEFT JOIN choices ch ON ch.question_id = qn.id
		WHERE qn.quiz_id=$1
		ORDER BY qn.id, ch.id`, quizID)
	if err != nil {
		return domain.QuizContent{}, fmt.Errorf("load questions: %w", err)
	}
	defer rows.Close()

	content.Questions = []domain.QuestionContent{}
	for rows.Next() {
		var (
			questionID   int64
			questionText string
			choiceID     *int64
			choiceText   *string
			point        *int16
		)
		if err := rows.Scan(&questionID, &questionText, &choiceID, &choiceText, &point); err != nil {
			return domain.QuizContent{}, fmt.Errorf("scan question: %w", err)
		}

		n := len(content.Questions)
		if n == 0 || content.Questions[n-1].ID != questionID {
			content.Questions = append(content.Questions, domain.QuestionContent{
				Question: domain.Question{ID: questionID, QuizID: quizID, Text: questionText},
				Choices:  []domain.Choice{},
			})
			n++
		}
		if choiceID == nil {
			continue
		}
		content.Questions[n-1].Choices = append(content.Questions[n-1].Choices, domain.Choice{
			ID:         *choiceID,
			QuestionID: questionID,
			Text:       *choiceText,
			Point:      domain.Point(*point),
		})
	}
	if err := rows.Err(); err != nil {
		return domain.QuizContent{}, fmt.Errorf("load questions: %w", err)
	}
	return content, nil
}
