package domain

import "time"

// Difficulty grades a quiz.
type Difficulty int

const (
	DifficultyEasy Difficulty = iota
	DifficultyMedium
	DifficultyHard
)

func (d Difficulty) Valid() bool {
	return d >= DifficultyEasy && d <= DifficultyHard
}

func (d Difficulty) String() string {
	switch d {
	case DifficultyEasy:
		return "easy"
	case DifficultyMedium:
		return "medium"
	case DifficultyHard:
		return "hard"
	}
	return "unknown"
}

// Point is the value of a choice.
type Point int

const (
	PointWrong Point = iota
	PointPartial
	PointCorrect
)

func (p Point) Valid() bool {
	return p >= PointWrong && p <= PointCorrect
}

// User is an identity owned by the authentication layer; the service only keeps its name.
type User struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
}

// Quiz is the header of a quiz; questions are loaded separately.
type Quiz struct {
	ID         int64      `json:"id"`
	Name       string     `json:"name"`
	Subject    string     `json:"subject"`
	Difficulty Difficulty `json:"difficulty"`
	CreatedAt  time.Time  `json:"createdAt"`
}

// Question belongs to exactly one quiz.
type Question struct {
	ID     int64  `json:"id"`
	QuizID int64  `json:"quizId"`
	Text   string `json:"text"`
}

// Choice belongs to exactly one question.
type Choice struct {
	ID         int64  `json:"id"`
	QuestionID int64  `json:"questionId"`
	Text       string `json:"text"`
	Point      Point  `json:"point"`
}

// QuestionContent is a question together with all of its choices.
type QuestionContent struct {
	Question
	Choices []Choice `json:"choices"`
}

// QuizContent is the full tree of a quiz, as presented to a taker and as used for scoring.
type QuizContent struct {
	Quiz
	Questions []QuestionContent `json:"questions"`
}

// Attempt records that a user completed a quiz. At most one exists per (user, quiz).
type Attempt struct {
	ID        int64     `json:"id"`
	UserID    int64     `json:"userId"`
	QuizID    int64     `json:"quizId"`
	CreatedAt time.Time `json:"createdAt"`
}

// Score is the outcome of scoring one user on one quiz.
type Score struct {
	Score float64 `json:"score"`
	Total int     `json:"total"`
}

// Report is one row of a user's own scoreboard.
type Report struct {
	QuizID   int64   `json:"quizId"`
	QuizName string  `json:"quizName"`
	Score    float64 `json:"score"`
	Total    int     `json:"total"`
}

// UserReport is one row of the all-users scoreboard.
type UserReport struct {
	QuizID   int64   `json:"quizId"`
	QuizName string  `json:"quizName"`
	UserID   int64   `json:"userId"`
	UserName string  `json:"userName"`
	Score    float64 `json:"score"`
	Total    int     `json:"total"`
}
