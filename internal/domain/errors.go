package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is the root of every lookup failure.
	ErrNotFound = errors.New("not found")
	// ErrUserNotFound is returned when a referenced user does not exist.
	ErrUserNotFound = fmt.Errorf("user %w", ErrNotFound)
	// ErrQuizNotFound indicates the quiz content could not be loaded.
	ErrQuizNotFound = fmt.Errorf("quiz %w", ErrNotFound)
	// ErrQuestionNotFound indicates a referenced question id is invalid.
	ErrQuestionNotFound = fmt.Errorf("question %w", ErrNotFound)
	// ErrChoiceNotFound indicates a referenced choice id is invalid.
	ErrChoiceNotFound = fmt.Errorf("choice %w", ErrNotFound)

	// ErrAlreadyAttempted is returned when a user tries to take a quiz a second time.
	ErrAlreadyAttempted = errors.New("quiz already attempted")
	// ErrInvalidInput covers empty submissions, unknown choices and malformed catalog entries.
	ErrInvalidInput = errors.New("invalid input")
	// ErrDuplicateAttempt is raised by stores when the (user, quiz) uniqueness constraint fires.
	ErrDuplicateAttempt = errors.New("duplicate attempt")
	// ErrUsernameTaken is returned when creating a user whose name already exists.
	ErrUsernameTaken = errors.New("username already taken")
)
