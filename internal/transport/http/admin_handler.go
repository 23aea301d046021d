package http

import (
	"context"
	"net/http"

	"go.uber.org/zap"

	"quizboard-service/internal/app"
	"quizboard-service/internal/domain"
)

// AdminHandler serves catalog management and the all-users scoreboard.
type AdminHandler struct {
	catalog *app.CatalogService
	scoring *app.ScoringService
	log     *zap.Logger
}

func NewAdminHandler(catalog *app.CatalogService, scoring *app.ScoringService, log *zap.Logger) *AdminHandler {
	return &AdminHandler{catalog: catalog, scoring: scoring, log: log}
}

type createUserRequest struct {
	Username string `json:"username"`
}

type createQuizRequest struct {
	Name       string            `json:"name"`
	Subject    string            `json:"subject"`
	Difficulty domain.Difficulty `json:"difficulty"`
}

type createQuestionRequest struct {
	Text string `json:"text"`
}

type createChoiceRequest struct {
	Text  string       `json:"text"`
	Point domain.Point `json:"point"`
}

func (h *AdminHandler) AllReports(w http.ResponseWriter, r *http.Request) {
	reports, err := h.scoring.AllUsersReports(r.Context())
	if err != nil {
		writeError(w, h.log, r, err)
		return
	}
	writeJSON(w, http.StatusOK, reports)
}

func (h *AdminHandler) CreateUser(w http.ResponseWriter, r *http.Request) {
	var req createUserRequest
	if err := decode(r, &req); err != nil {
		writeError(w, h.log, r, err)
		return
	}
	user, err := h.catalog.CreateUser(r.Context(), req.Username)
	if err != nil {
		writeError(w, h.log, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, user)
}

func (h *AdminHandler) CreateQuiz(w http.ResponseWriter, r *http.Request) {
	var req createQuizRequest
	if err := decode(r, &req); err != nil {
		writeError(w, h.log, r, err)
		return
	}
	quiz, err := h.catalog.CreateQuiz(r.Context(), req.Name, req.Subject, req.Difficulty)
	if err != nil {
		writeError(w, h.log, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, quiz)
}

func (h *AdminHandler) ListQuizzes(w http.ResponseWriter, r *http.Request) {
	quizzes, err := h.catalog.ListQuizzes(r.Context())
	if err != nil {
		writeError(w, h.log, r, err)
		return
	}
	writeJSON(w, http.StatusOK, quizzes)
}

func (h *AdminHandler) DeleteQuiz(w http.ResponseWriter, r *http.Request) {
	h.delete(w, r, "quizID", h.catalog.DeleteQuiz)
}

func (h *AdminHandler) CreateQuestion(w http.ResponseWriter, r *http.Request) {
	quizID, err := pathID(r, "quizID")
	if err != nil {
		writeError(w, h.log, r, err)
		return
	}
	var req createQuestionRequest
	if err := decode(r, &req); err != nil {
		writeError(w, h.log, r, err)
		return
	}
	question, err := h.catalog.CreateQuestion(r.Context(), quizID, req.Text)
	if err != nil {
		writeError(w, h.log, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, question)
}

func (h *AdminHandler) ListQuestions(w http.ResponseWriter, r *http.Request) {
	quizID, err := pathID(r, "quizID")
	if err != nil {
		writeError(w, h.log, r, err)
		return
	}
	questions, err := h.catalog.ListQuestions(r.Context(), quizID)
	if err != nil {
		writeError(w, h.log, r, err)
		return
	}
	writeJSON(w, http.StatusOK, questions)
}

func (h *AdminHandler) DeleteQuestion(w http.ResponseWriter, r *http.Request) {
	h.delete(w, r, "questionID", h.catalog.DeleteQuestion)
}

func (h *AdminHandler) CreateChoice(w http.ResponseWriter, r *http.Request) {
	questionID, err := pathID(r, "questionID")
	if err != nil {
		writeError(w, h.log, r, err)
		return
	}
	var req createChoiceRequest
	if err := decode(r, &req); err != nil {
		writeError(w, h.log, r, err)
		return
	}
	choice, err := h.catalog.CreateChoice(r.Context(), questionID, req.Text, req.Point)
	if err != nil {
		writeError(w, h.log, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, choice)
}

func (h *AdminHandler) ListChoices(w http.ResponseWriter, r *http.Request) {
	questionID, err := pathID(r, "questionID")
	if err != nil {
		writeError(w, h.log, r, err)
		return
	}
	choices, err := h.catalog.ListChoices(r.Context(), questionID)
	if err != nil {
		writeError(w, h.log, r, err)
		return
	}
	writeJSON(w, http.StatusOK, choices)
}

func (h *AdminHandler) DeleteChoice(w http.ResponseWriter, r *http.Request) {
	h.delete(w, r, "choiceID", h.catalog.DeleteChoice)
}

func (h *AdminHandler) delete(w http.ResponseWriter, r *http.Request, param string, del func(ctx context.Context, id int64) error) {
	id, err := pathID(r, param)
	if err != nil {
		writeError(w, h.log, r, err)
		return
	}
	if err := del(r.Context(), id); err != nil {
		writeError(w, h.log, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
