package app

import (
	"context"
	"fmt"

	"quizboard-service/internal/domain"
)

// ScoringService computes scores and scoreboards from persisted selections. It never writes.
type ScoringService struct {
	store   Store
	quizzes QuizRepository
}

func NewScoringService(store Store, quizzes QuizRepository) *ScoringService {
	return &ScoringService{store: store, quizzes: quizzes}
}

// ScoreQuestion scores one question from the user's selected choices.
// Any wrong selection zeroes the question; otherwise every partial selection halves the
// number of correct selections. total is the number of correct choices on offer.
// The score is not clamped to total.
func ScoreQuestion(selected, choices []domain.Choice) (float64, int) {
	total := 0
	for _, c := range choices {
		if c.Point == domain.PointCorrect {
			total++
		}
	}

	var numWrong, numPartial, numCorrect int
	for _, c := range selected {
		switch c.Point {
		case domain.PointWrong:
			numWrong++
		case domain.PointPartial:
			numPartial++
		case domain.PointCorrect:
			numCorrect++
		}
	}
	if numWrong > 0 {
		return 0, total
	}

	score := float64(numCorrect)
	for i := 0; i < numPartial; i++ {
		score *= 0.5
	}
	return score, total
}

// ComputeScore scores a user on a quiz. Unknown ids surface as not-found errors.
func (s *ScoringService) ComputeScore(ctx context.Context, userID, quizID int64) (domain.Score, error) {
	if _, err := s.store.FindUser(ctx, userID); err != nil {
		return domain.Score{}, err
	}
	quiz, err := s.quizzes.GetQuiz(ctx, quizID)
	if err != nil {
		return domain.Score{}, err
	}
	return s.scoreContent(ctx, userID, quiz)
}

// MyReports returns one row per quiz the user attempted, in quiz creation order.
func (s *ScoringService) MyReports(ctx context.Context, userID int64) ([]domain.Report, error) {
	if _, err := s.store.FindUser(ctx, userID); err != nil {
		return nil, err
	}
	quizzes, err := s.store.ListAttemptedQuizzes(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list attempted quizzes: %w", err)
	}

	reports := make([]domain.Report, 0, len(quizzes))
	for _, quiz := range quizzes {
		content, err := s.quizzes.GetQuiz(ctx, quiz.ID)
		if err != nil {
			return nil, err
		}
		score, err := s.scoreContent(ctx, userID, content)
		if err != nil {
			return nil, err
		}
		reports = append(reports, domain.Report{
			QuizID:   quiz.ID,
			QuizName: quiz.Name,
			Score:    score.Score,
			Total:    score.Total,
		})
	}
	return reports, nil
}

// AllUsersReports returns a row per (quiz, user) attempt. Quizzes are ordered by name and
// quizzes nobody attempted are left out.
func (s *ScoringService) AllUsersReports(ctx context.Context) ([]domain.UserReport, error) {
	quizzes, err := s.store.ListQuizzesWithAttempts(ctx)
	if err != nil {
		return nil, fmt.Errorf("list attempted quizzes: %w", err)
	}

	reports := []domain.UserReport{}
	for _, quiz := range quizzes {
		content, err := s.quizzes.GetQuiz(ctx, quiz.ID)
		if err != nil {
			return nil, err
		}
		users, err := s.store.ListAttemptedUsers(ctx, quiz.ID)
		if err != nil {
			return nil, fmt.Errorf("list users of quiz %d: %w", quiz.ID, err)
		}
		for _, user := range users {
			score, err := s.scoreContent(ctx, user.ID, content)
			if err != nil {
				return nil, err
			}
			reports = append(reports, domain.UserReport{
				QuizID:   quiz.ID,
				QuizName: quiz.Name,
				UserID:   user.ID,
				UserName: user.Username,
				Score:    score.Score,
				Total:    score.Total,
			})
		}
	}
	return reports, nil
}

func (s *ScoringService) scoreContent(ctx context.Context, userID int64, quiz domain.QuizContent) (domain.Score, error) {
	var result domain.Score
	for _, q := range quiz.Questions {
		selected, err := s.store.FindUserSelections(ctx, userID, q.ID)
		if err != nil {
			return domain.Score{}, fmt.Errorf("load selections: %w", err)
		}
		score, total := ScoreQuestion(selected, q.Choices)
		result.Score += score
		result.Total += total
	}
	return result, nil
}
