package postgres

import (
	"time"

	"github.com/uptrace/bun"

	"quizboard-service/internal/domain"
)

type userModel struct {
	bun.BaseModel `bun:"table:users,alias:u"`

	ID       int64  `bun:"id,pk,autoincrement"`
	Username string `bun:"username,notnull"`
}

func (m userModel) toDomain() domain.User {
	return domain.User{ID: m.ID, Username: m.Username}
}

type quizModel struct {
	bun.BaseModel `bun:"table:quizzes,alias:qz"`

	ID         int64     `bun:"id,pk,autoincrement"`
	Name       string    `bun:"name,notnull"`
	Subject    string    `bun:"subject,notnull"`
	Difficulty int16     `bun:"difficulty,notnull"`
	CreatedAt  time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
}

func (m quizModel) toDomain() domain.Quiz {
	return domain.Quiz{
		ID:         m.ID,
		Name:       m.Name,
		Subject:    m.Subject,
		Difficulty: domain.Difficulty(m.Difficulty),
		CreatedAt:  m.CreatedAt,
	}
}

type questionModel struct {
	bun.BaseModel `bun:"table:questions,alias:qn"`

	ID     int64  `bun:"id,pk,autoincrement"`
	QuizID int64  `bun:"quiz_id,notnull"`
	Text   string `bun:"text,notnull"`
}

func (m questionModel) toDomain() domain.Question {
	return domain.Question{ID: m.ID, QuizID: m.QuizID, Text: m.Text}
}

type choiceModel struct {
	bun.BaseModel `bun:"table:choices,alias:ch"`

	ID         int64  `bun:"id,pk,autoincrement"`
	QuestionID int64  `bun:"question_id,notnull"`
	Text       string `bun:"text,notnull"`
	Point      int16  `bun:"point,notnull"`
}

func (m choiceModel) toDomain() domain.Choice {
	return domain.Choice{ID: m.ID, QuestionID: m.QuestionID, Text: m.Text, Point: domain.Point(m.Point)}
}

type attemptModel struct {
	bun.BaseModel `bun:"table:quiz_attempts,alias:qa"`

	ID        int64     `bun:"id,pk,autoincrement"`
	UserID    int64     `bun:"user_id,notnull"`
	QuizID    int64     `bun:"quiz_id,notnull"`
	CreatedAt time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
}

func (m attemptModel) toDomain() domain.Attempt {
	return domain.Attempt{ID: m.ID, UserID: m.UserID, QuizID: m.QuizID, CreatedAt: m.CreatedAt}
}

type selectionModel struct {
	bun.BaseModel `bun:"table:choice_selections,alias:cs"`

	ChoiceID int64 `bun:"choice_id,pk"`
	UserID   int64 `bun:"user_id,pk"`
}

func quizzesToDomain(models []quizModel) []domain.Quiz {
	out := make([]domain.Quiz, 0, len(models))
	for _, m := range models {
		out = append(out, m.toDomain())
	}
	return out
}

func choicesToDomain(models []choiceModel) []domain.Choice {
	out := make([]domain.Choice, 0, len(models))
	for _, m := range models {
		out = append(out, m.toDomain())
	}
	return out
}
