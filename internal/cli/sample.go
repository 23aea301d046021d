package cli

import (
	"context"
	"errors"

	"quizboard-service/internal/app"
	"quizboard-service/internal/domain"
)

type sampleQuestion struct {
	text    string
	choices []sampleChoice
}

type sampleChoice struct {
	text  string
	point domain.Point
}

type sampleQuiz struct {
	name       string
	subject    string
	difficulty domain.Difficulty
	questions  []sampleQuestion
}

var sampleUsers = []string{"admin", "alice", "bob"}

var sampleQuizzes = []sampleQuiz{
	{
		name:       "Django basics",
		subject:    "django",
		difficulty: domain.DifficultyMedium,
		questions: []sampleQuestion{
			{text: "A?", choices: []sampleChoice{{"1", domain.PointWrong}, {"2", domain.PointPartial}}},
			{text: "B?", choices: []sampleChoice{{"3", domain.PointCorrect}, {"4", domain.PointWrong}}},
		},
	},
	{
		name:       "Math",
		subject:    "math",
		difficulty: domain.DifficultyHard,
		questions: []sampleQuestion{
			{text: "C?", choices: []sampleChoice{{"5", domain.PointPartial}, {"6", domain.PointCorrect}}},
			{text: "D?", choices: []sampleChoice{{"7", domain.PointPartial}, {"8", domain.PointWrong}}},
		},
	},
}

// seedSample creates the sample users and quizzes. Users that already exist are skipped.
func seedSample(ctx context.Context, catalog *app.CatalogService) error {
	for _, name := range sampleUsers {
		if _, err := catalog.CreateUser(ctx, name); err != nil && !errors.Is(err, domain.ErrUsernameTaken) {
			return err
		}
	}
	for _, sq := range sampleQuizzes {
		quiz, err := catalog.CreateQuiz(ctx, sq.name, sq.subject, sq.difficulty)
		if err != nil {
			return err
		}
		for _, sqn := range sq.questions {
			question, err := catalog.CreateQuestion(ctx, quiz.ID, sqn.text)
			if err != nil {
				return err
			}
			for _, sc := range sqn.choices {
				if _, err := catalog.CreateChoice(ctx, question.ID, sc.text, sc.point); err != nil {
					return err
				}
			}
		}
	}
	return nil
}
