package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"quizboard-service/internal/app"
	"quizboard-service/internal/domain"
)

// Store is an in-memory implementation of app.Store and app.CatalogStore.
// Ids are assigned from one sequence per table, starting at 1.
type Store struct {
	clock func() time.Time

	mu         sync.RWMutex
	seq        map[string]int64
	users      map[int64]domain.User
	usernames  map[string]int64
	quizzes    map[int64]domain.Quiz
	questions  map[int64]domain.Question
	choices    map[int64]domain.Choice
	attempts   map[attemptKey]domain.Attempt
	selections map[int64]map[int64]struct{} // choice id -> user ids
}

type attemptKey struct {
	userID int64
	quizID int64
}

func NewStore() *Store {
	return NewStoreWithClock(time.Now)
}

// NewStoreWithClock allows deterministic timestamps in tests.
func NewStoreWithClock(now func() time.Time) *Store {
	return &Store{
		clock:      now,
		seq:        make(map[string]int64),
		users:      make(map[int64]domain.User),
		usernames:  make(map[string]int64),
		quizzes:    make(map[int64]domain.Quiz),
		questions:  make(map[int64]domain.Question),
		choices:    make(map[int64]domain.Choice),
		attempts:   make(map[attemptKey]domain.Attempt),
		selections: make(map[int64]map[int64]struct{}),
	}
}

func (s *Store) nextID(table string) int64 {
	s.seq[table]++
	return s.seq[table]
}

func (s *Store) FindUser(_ context.Context, userID int64) (domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	user, ok := s.users[userID]
	if !ok {
		return domain.User{}, domain.ErrUserNotFound
	}
	return user, nil
}

func (s *Store) FindQuiz(_ context.Context, quizID int64) (domain.Quiz, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	quiz, ok := s.quizzes[quizID]
	if !ok {
		return domain.Quiz{}, domain.ErrQuizNotFound
	}
	return quiz, nil
}

func (s *Store) FindQuestion(_ context.Context, questionID int64) (domain.Question, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	question, ok := s.questions[questionID]
	if !ok {
		return domain.Question{}, domain.ErrQuestionNotFound
	}
	return question, nil
}

func (s *Store) FindChoice(_ context.Context, choiceID int64) (domain.Choice, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	choice, ok := s.choices[choiceID]
	if !ok {
		return domain.Choice{}, domain.ErrChoiceNotFound
	}
	return choice, nil
}

func (s *Store) FindQuizQuestions(_ context.Context, quizID int64) ([]domain.Question, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, ok := s.quizzes[quizID]; !ok {
		return nil, domain.ErrQuizNotFound
	}
	out := []domain.Question{}
	for _, q := range s.questions {
		if q.QuizID == quizID {
			out = append(out, q)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) FindQuestionChoices(_ context.Context, questionID int64) ([]domain.Choice, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, ok := s.questions[questionID]; !ok {
		return nil, domain.ErrQuestionNotFound
	}
	return s.questionChoicesLocked(questionID), nil
}

func (s *Store) FindUserSelections(_ context.Context, userID, questionID int64) ([]domain.Choice, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []domain.Choice{}
	for _, c := range s.questionChoicesLocked(questionID) {
		if _, ok := s.selections[c.ID][userID]; ok {
			out = append(out, c)
		}
	}
	return out, nil
}

func (s *Store) FindChoices(_ context.Context, choiceIDs []int64) ([]domain.Choice, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Choice, 0, len(choiceIDs))
	for _, id := range choiceIDs {
		if c, ok := s.choices[id]; ok {
			out = append(out, c)
		}
	}
	return out, nil
}

func (s *Store) HasAttempt(_ context.Context, userID, quizID int64) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.attempts[attemptKey{userID: userID, quizID: quizID}]
	return ok, nil
}

// RunInTx holds the write lock for the whole of fn and applies staged writes only if fn succeeds.
// fn must not call back into the store other than through the writer.
func (s *Store) RunInTx(ctx context.Context, fn func(ctx context.Context, w app.AttemptWriter) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &txWriter{store: s}
	if err := fn(ctx, tx); err != nil {
		return err
	}
	for _, a := range tx.attempts {
		s.attempts[attemptKey{userID: a.UserID, quizID: a.QuizID}] = a
	}
	for _, sel := range tx.selections {
		users, ok := s.selections[sel.choiceID]
		if !ok {
			users = make(map[int64]struct{})
			s.selections[sel.choiceID] = users
		}
		users[sel.userID] = struct{}{}
	}
	s.seq["attempts"] += int64(len(tx.attempts))
	return nil
}

func (s *Store) ListAttemptedQuizzes(_ context.Context, userID int64) ([]domain.Quiz, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []domain.Quiz{}
	for key := range s.attempts {
		if key.userID == userID {
			out = append(out, s.quizzes[key.quizID])
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) ListUnattemptedQuizzes(_ context.Context, userID int64) ([]domain.Quiz, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []domain.Quiz{}
	for id, quiz := range s.quizzes {
		if _, ok := s.attempts[attemptKey{userID: userID, quizID: id}]; !ok {
			out = append(out, quiz)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) ListQuizzesWithAttempts(_ context.Context) ([]domain.Quiz, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	seen := make(map[int64]struct{})
	out := []domain.Quiz{}
	for key := range s.attempts {
		if _, ok := seen[key.quizID]; ok {
			continue
		}
		seen[key.quizID] = struct{}{}
		out = append(out, s.quizzes[key.quizID])
	}
	sortByName(out)
	return out, nil
}

func (s *Store) ListAttemptedUsers(_ context.Context, quizID int64) ([]domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var attempts []domain.Attempt
	for key, a := range s.attempts {
		if key.quizID == quizID {
			attempts = append(attempts, a)
		}
	}
	sort.Slice(attempts, func(i, j int) bool { return attempts[i].ID < attempts[j].ID })
	out := make([]domain.User, 0, len(attempts))
	for _, a := range attempts {
		out = append(out, s.users[a.UserID])
	}
	return out, nil
}

func (s *Store) CreateUser(_ context.Context, username string) (domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.usernames[username]; ok {
		return domain.User{}, domain.ErrUsernameTaken
	}
	user := domain.User{ID: s.nextID("users"), Username: username}
	s.users[user.ID] = user
	s.usernames[username] = user.ID
	return user, nil
}

func (s *Store) CreateQuiz(_ context.Context, quiz domain.Quiz) (domain.Quiz, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	quiz.ID = s.nextID("quizzes")
	quiz.CreatedAt = s.clock()
	s.quizzes[quiz.ID] = quiz
	return quiz, nil
}

func (s *Store) DeleteQuiz(_ context.Context, quizID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.quizzes[quizID]; !ok {
		return domain.ErrQuizNotFound
	}
	for id, q := range s.questions {
		if q.QuizID == quizID {
			s.deleteQuestionLocked(id)
		}
	}
	for key := range s.attempts {
		if key.quizID == quizID {
			delete(s.attempts, key)
		}
	}
	delete(s.quizzes, quizID)
	return nil
}

func (s *Store) ListQuizzes(_ context.Context) ([]domain.Quiz, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Quiz, 0, len(s.quizzes))
	for _, quiz := range s.quizzes {
		out = append(out, quiz)
	}
	sortByName(out)
	return out, nil
}

func (s *Store) CreateQuestion(_ context.Context, question domain.Question) (domain.Question, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.quizzes[question.QuizID]; !ok {
		return domain.Question{}, domain.ErrQuizNotFound
	}
	question.ID = s.nextID("questions")
	s.questions[question.ID] = question
	return question, nil
}

func (s *Store) DeleteQuestion(_ context.Context, questionID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.questions[questionID]; !ok {
		return domain.ErrQuestionNotFound
	}
	s.deleteQuestionLocked(questionID)
	return nil
}

func (s *Store) CreateChoice(_ context.Context, choice domain.Choice) (domain.Choice, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.questions[choice.QuestionID]; !ok {
		return domain.Choice{}, domain.ErrQuestionNotFound
	}
	choice.ID = s.nextID("choices")
	s.choices[choice.ID] = choice
	return choice, nil
}

func (s *Store) DeleteChoice(_ context.Context, choiceID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.choices[choiceID]; !ok {
		return domain.ErrChoiceNotFound
	}
	delete(s.choices, choiceID)
	delete(s.selections, choiceID)
	return nil
}

func (s *Store) deleteQuestionLocked(questionID int64) {
	for id, c := range s.choices {
		if c.QuestionID == questionID {
			delete(s.choices, id)
			delete(s.selections, id)
		}
	}
	delete(s.questions, questionID)
}

func (s *Store) questionChoicesLocked(questionID int64) []domain.Choice {
	out := []domain.Choice{}
	for _, c := range s.choices {
		if c.QuestionID == questionID {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func sortByName(quizzes []domain.Quiz) {
	sort.Slice(quizzes, func(i, j int) bool {
		if quizzes[i].Name != quizzes[j].Name {
			return quizzes[i].Name < quizzes[j].Name
		}
		return quizzes[i].ID < quizzes[j].ID
	})
}

type selection struct {
	choiceID int64
	userID   int64
}

// txWriter stages writes under the store's write lock.
type txWriter struct {
	store      *Store
	attempts   []domain.Attempt
	selections []selection
}

func (w *txWriter) CreateAttempt(_ context.Context, userID, quizID int64) (domain.Attempt, error) {
	s := w.store
	if _, ok := s.users[userID]; !ok {
		return domain.Attempt{}, domain.ErrUserNotFound
	}
	if _, ok := s.quizzes[quizID]; !ok {
		return domain.Attempt{}, domain.ErrQuizNotFound
	}
	key := attemptKey{userID: userID, quizID: quizID}
	if _, ok := s.attempts[key]; ok {
		return domain.Attempt{}, domain.ErrDuplicateAttempt
	}
	for _, a := range w.attempts {
		if a.UserID == userID && a.QuizID == quizID {
			return domain.Attempt{}, domain.ErrDuplicateAttempt
		}
	}
	attempt := domain.Attempt{
		ID:        s.seq["attempts"] + int64(len(w.attempts)) + 1,
		UserID:    userID,
		QuizID:    quizID,
		CreatedAt: s.clock(),
	}
	w.attempts = append(w.attempts, attempt)
	return attempt, nil
}

func (w *txWriter) AddSelection(_ context.Context, choiceID, userID int64) error {
	s := w.store
	if _, ok := s.choices[choiceID]; !ok {
		return domain.ErrChoiceNotFound
	}
	if _, ok := s.users[userID]; !ok {
		return domain.ErrUserNotFound
	}
	w.selections = append(w.selections, selection{choiceID: choiceID, userID: userID})
	return nil
}
