package server

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/atmsim/terminal/internal/models"
	"github.com/atmsim/terminal/internal/service"
)

// timestampLayout is the wire format for operation timestamps, UTC with
// millisecond precision.
const timestampLayout = "2006-01-02T15:04:05.000Z"

type operationItem struct {
	EventID    string `json:"eventId"`
	TerminalID string `json:"terminalId"`
	SessionID  string `json:"sessionId,omitempty"`
	Operation  string `json:"operation"`
	State      string `json:"state"`
	ResultCode string `json:"resultCode"`
	Amount     string `json:"amount"`
	Balance    string `json:"balance"`
	Message    string `json:"message,omitempty"`
	Timestamp  string `json:"timestamp"`
}

type operationsResponse struct {
	Content []operationItem `json:"content"`
	AfterID string          `json:"afterId,omitempty"`
}

// AnalyticsServer exposes the terminal operation history over HTTP.
type AnalyticsServer struct {
	service *service.AnalyticsService
	router  *chi.Mux
}

// NewAnalyticsServer creates the analytics API server around the given
// service.
func NewAnalyticsServer(svc *service.AnalyticsService) *AnalyticsServer {
	s := &AnalyticsServer{
		service: svc,
		router:  chi.NewRouter(),
	}

	s.router.Use(middleware.Logger)
	s.router.Use(middleware.Recoverer)

	s.router.Get("/health", s.handleHealth)
	s.router.Get("/api/v1/terminals/{terminalID}/operations", s.handleListOperations)

	return s
}

// Handler returns the HTTP handler for mounting or serving.
func (s *AnalyticsServer) Handler() http.Handler {
	return s.router
}

func (s *AnalyticsServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleListOperations returns the operation history of one terminal, most
// recent first, paginated with limit and afterId query parameters.
func (s *AnalyticsServer) handleListOperations(w http.ResponseWriter, r *http.Request) {
	terminalID := chi.URLParam(r, "terminalID")

	var limit int32
	if v := r.URL.Query().Get("limit"); v != "" {
		parsed, err := strconv.ParseInt(v, 10, 32)
		if err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_ARGUMENT", "limit must be a 32-bit integer")
			return
		}
		limit = int32(parsed)
	}

	page, err := s.service.ListTerminalOperations(r.Context(), terminalID, limit, r.URL.Query().Get("afterId"))
	if err != nil {
		if errors.Is(err, service.ErrInvalidRequest) {
			writeError(w, http.StatusBadRequest, "INVALID_ARGUMENT", err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, "INTERNAL", "An internal error occurred")
		return
	}

	resp := operationsResponse{
		Content: make([]operationItem, 0, len(page.Content)),
		AfterID: page.AfterID,
	}
	for _, op := range page.Content {
		resp.Content = append(resp.Content, operationItemFromModel(op))
	}

	writeJSON(w, http.StatusOK, resp)
}

func operationItemFromModel(op *models.TerminalOperation) operationItem {
	return operationItem{
		EventID:    op.EventID,
		TerminalID: op.TerminalID,
		SessionID:  op.SessionID,
		Operation:  op.Operation,
		State:      op.State,
		ResultCode: op.ResultCode,
		Amount:     op.Amount.StringFixed(2),
		Balance:    op.Balance.StringFixed(2),
		Message:    op.Message,
		Timestamp:  op.Timestamp.UTC().Format(timestampLayout),
	}
}
