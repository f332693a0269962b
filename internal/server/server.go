package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/atmsim/terminal/internal/domain"
)

// Server exposes the terminal session over HTTP. Each endpoint maps to one
// session operation, so remote callers drive the same state machine the
// console does.
type Server struct {
	session *domain.Session
	router  *chi.Mux
}

// NewServer creates the terminal API server around the given session.
func NewServer(session *domain.Session) *Server {
	s := &Server{
		session: session,
		router:  chi.NewRouter(),
	}

	s.router.Use(middleware.Logger)
	s.router.Use(middleware.Recoverer)

	s.router.Get("/health", s.handleHealth)
	s.router.Route("/api/v1/session", func(r chi.Router) {
		r.Get("/", s.handleGetSession)
		r.Post("/card", s.handleInsertCard)
		r.Delete("/card", s.handleEjectCard)
		r.Post("/pin", s.handleEnterPIN)
		r.Post("/withdrawals", s.handleWithdraw)
		r.Post("/deposits", s.handleDeposit)
		r.Get("/balance", s.handleBalance)
	})

	return s
}

// Handler returns the HTTP handler for mounting or serving.
func (s *Server) Handler() http.Handler {
	return s.router
}
