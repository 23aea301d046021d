package memory

import (
	"context"
	"sync"
)

// SubmissionGuard is an in-process implementation of app.SubmissionGuard.
type SubmissionGuard struct {
	mu       sync.Mutex
	inFlight map[guardKey]struct{}
}

type guardKey struct {
	userID int64
	quizID int64
}

func NewSubmissionGuard() *SubmissionGuard {
	return &SubmissionGuard{
		inFlight: make(map[guardKey]struct{}),
	}
}

func (g *SubmissionGuard) Acquire(_ context.Context, userID, quizID int64) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	key := guardKey{userID: userID, quizID: quizID}
	if _, ok := g.inFlight[key]; ok {
		return false, nil
	}
	g.inFlight[key] = struct{}{}
	return true, nil
}

func (g *SubmissionGuard) Release(_ context.Context, userID, quizID int64) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.inFlight, guardKey{userID: userID, quizID: quizID})
}
