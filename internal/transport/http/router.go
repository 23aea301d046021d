package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"quizboard-service/internal/app"
)

// RouterConfig carries the dependencies of the HTTP surface.
type RouterConfig struct {
	Attempts *app.AttemptService
	Scoring  *app.ScoringService
	Catalog  *app.CatalogService
	Feed     *app.ReportFeed
	Tokens   TokenParser
	Log      *zap.Logger

	// Optional.
	Metrics        func(http.Handler) http.Handler
	MetricsHandler http.Handler
}

func NewRouter(cfg RouterConfig) http.Handler {
	log := cfg.Log
	if log == nil {
		log = zap.NewNop()
	}
	quizzes := NewQuizHandler(cfg.Attempts, cfg.Scoring, log)
	admin := NewAdminHandler(cfg.Catalog, cfg.Scoring, log)
	ws := NewWSHandler(cfg.Scoring, cfg.Feed, log)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(log))
	r.Use(middleware.Recoverer)
	if cfg.Metrics != nil {
		r.Use(cfg.Metrics)
	}

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	if cfg.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", cfg.MetricsHandler)
	}

	r.Group(func(r chi.Router) {
		r.Use(authenticate(cfg.Tokens, log))

		r.Get("/quizzes", quizzes.ListAvailable)
		r.Get("/quizzes/{quizID}", quizzes.Begin)
		r.Post("/quizzes/{quizID}/attempts", quizzes.Submit)
		r.Get("/reports/me", quizzes.MyReports)
		r.Get("/reports/users/{userID}/quizzes/{quizID}", quizzes.Score)

		r.Group(func(r chi.Router) {
			r.Use(requireAdmin(log))

			r.Get("/ws/reports", ws.ServeWS)
			r.Route("/admin", func(r chi.Router) {
				r.Get("/reports", admin.AllReports)
				r.Post("/users", admin.CreateUser)

				r.Post("/quizzes", admin.CreateQuiz)
				r.Get("/quizzes", admin.ListQuizzes)
				r.Delete("/quizzes/{quizID}", admin.DeleteQuiz)

				r.Post("/quizzes/{quizID}/questions", admin.CreateQuestion)
				r.Get("/quizzes/{quizID}/questions", admin.ListQuestions)
				r.Delete("/questions/{questionID}", admin.DeleteQuestion)

				r.Post("/questions/{questionID}/choices", admin.CreateChoice)
				r.Get("/questions/{questionID}/choices", admin.ListChoices)
				r.Delete("/choices/{choiceID}", admin.DeleteChoice)
			})
		})
	})
	return r
}
