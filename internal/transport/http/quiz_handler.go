package http

import (
	"net/http"

	"go.uber.org/zap"

	"quizboard-service/internal/app"
	"quizboard-service/internal/domain"
)

// QuizHandler serves the quiz taker endpoints.
type QuizHandler struct {
	attempts *app.AttemptService
	scoring  *app.ScoringService
	log      *zap.Logger
}

func NewQuizHandler(attempts *app.AttemptService, scoring *app.ScoringService, log *zap.Logger) *QuizHandler {
	return &QuizHandler{attempts: attempts, scoring: scoring, log: log}
}

// choiceView hides the point value from the taker.
type choiceView struct {
	ID   int64  `json:"id"`
	Text string `json:"text"`
}

type questionView struct {
	ID      int64        `json:"id"`
	Text    string       `json:"text"`
	Choices []choiceView `json:"choices"`
}

type quizView struct {
	domain.Quiz
	Questions []questionView `json:"questions"`
}

func newQuizView(content domain.QuizContent) quizView {
	view := quizView{Quiz: content.Quiz, Questions: make([]questionView, 0, len(content.Questions))}
	for _, q := range content.Questions {
		qv := questionView{ID: q.ID, Text: q.Text, Choices: make([]choiceView, 0, len(q.Choices))}
		for _, c := range q.Choices {
			qv.Choices = append(qv.Choices, choiceView{ID: c.ID, Text: c.Text})
		}
		view.Questions = append(view.Questions, qv)
	}
	return view
}

type submitRequest struct {
	Choices []int64 `json:"choices"`
}

func (h *QuizHandler) ListAvailable(w http.ResponseWriter, r *http.Request) {
	id, _ := identityFrom(r.Context())
	quizzes, err := h.attempts.AvailableQuizzes(r.Context(), id.UserID)
	if err != nil {
		writeError(w, h.log, r, err)
		return
	}
	writeJSON(w, http.StatusOK, quizzes)
}

func (h *QuizHandler) Begin(w http.ResponseWriter, r *http.Request) {
	quizID, err := pathID(r, "quizID")
	if err != nil {
		writeError(w, h.log, r, err)
		return
	}
	id, _ := identityFrom(r.Context())
	content, err := h.attempts.BeginAttempt(r.Context(), id.UserID, quizID)
	if err != nil {
		writeError(w, h.log, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newQuizView(content))
}

func (h *QuizHandler) Submit(w http.ResponseWriter, r *http.Request) {
	quizID, err := pathID(r, "quizID")
	if err != nil {
		writeError(w, h.log, r, err)
		return
	}
	var req submitRequest
	if err := decode(r, &req); err != nil {
		writeError(w, h.log, r, err)
		return
	}
	id, _ := identityFrom(r.Context())
	attempt, err := h.attempts.SubmitAttempt(r.Context(), id.UserID, quizID, req.Choices)
	if err != nil {
		writeError(w, h.log, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, attempt)
}

func (h *QuizHandler) MyReports(w http.ResponseWriter, r *http.Request) {
	id, _ := identityFrom(r.Context())
	reports, err := h.scoring.MyReports(r.Context(), id.UserID)
	if err != nil {
		writeError(w, h.log, r, err)
		return
	}
	writeJSON(w, http.StatusOK, reports)
}

// Score returns one user's score on one quiz. Only the user themself or an admin may read it.
func (h *QuizHandler) Score(w http.ResponseWriter, r *http.Request) {
	userID, err := pathID(r, "userID")
	if err != nil {
		writeError(w, h.log, r, err)
		return
	}
	quizID, err := pathID(r, "quizID")
	if err != nil {
		writeError(w, h.log, r, err)
		return
	}
	id, _ := identityFrom(r.Context())
	if id.UserID != userID && !id.Admin {
		writeError(w, h.log, r, errForbidden)
		return
	}
	score, err := h.scoring.ComputeScore(r.Context(), userID, quizID)
	if err != nil {
		writeError(w, h.log, r, err)
		return
	}
	writeJSON(w, http.StatusOK, score)
}
