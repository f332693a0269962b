package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/atmsim/terminal/internal/domain"
)

type pinRequest struct {
	PIN int `json:"pin"`
}

type amountRequest struct {
	Amount string `json:"amount"`
}

type sessionResponse struct {
	TerminalID    string `json:"terminalId"`
	SessionID     string `json:"sessionId,omitempty"`
	State         string `json:"state"`
	Authenticated bool   `json:"authenticated"`
	Message       string `json:"message,omitempty"`
}

type operationResponse struct {
	Operation string `json:"operation"`
	Amount    string `json:"amount,omitempty"`
	Balance   string `json:"balance"`
	Message   string `json:"message"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleGetSession reports the current session state without changing it.
func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	snap := s.session.Snapshot()
	writeJSON(w, http.StatusOK, sessionResponse{
		TerminalID:    snap.TerminalID,
		SessionID:     snap.SessionID,
		State:         string(snap.State),
		Authenticated: snap.State == domain.StateAuthenticated,
	})
}

func (s *Server) handleInsertCard(w http.ResponseWriter, r *http.Request) {
	upd, err := s.session.InsertCard()
	if err != nil {
		handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sessionResponseFromUpdate(upd))
}

func (s *Server) handleEjectCard(w http.ResponseWriter, r *http.Request) {
	upd, err := s.session.EjectCard()
	if err != nil {
		handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sessionResponseFromUpdate(upd))
}

func (s *Server) handleEnterPIN(w http.ResponseWriter, r *http.Request) {
	var req pinRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_REQUEST", "Failed to parse request body")
		return
	}
	if req.PIN <= 0 {
		writeError(w, http.StatusBadRequest, "INVALID_REQUEST", "pin is required")
		return
	}

	upd, err := s.session.EnterPIN(req.PIN)
	if err != nil {
		handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sessionResponseFromUpdate(upd))
}

func (s *Server) handleWithdraw(w http.ResponseWriter, r *http.Request) {
	amount, ok := decodeAmount(w, r)
	if !ok {
		return
	}

	res, err := s.session.Withdraw(amount)
	if err != nil {
		handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, operationResponseFromResult(res))
}

func (s *Server) handleDeposit(w http.ResponseWriter, r *http.Request) {
	amount, ok := decodeAmount(w, r)
	if !ok {
		return
	}

	res, err := s.session.Deposit(amount)
	if err != nil {
		handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, operationResponseFromResult(res))
}

func (s *Server) handleBalance(w http.ResponseWriter, r *http.Request) {
	res, err := s.session.CheckBalance()
	if err != nil {
		handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, operationResponse{
		Operation: string(res.Operation),
		Balance:   domain.FormatAmount(res.Balance),
		Message:   res.Message,
	})
}

// decodeAmount parses the request body of a transaction endpoint. The second
// return value reports whether the caller should proceed; the error response
// has already been written otherwise.
func decodeAmount(w http.ResponseWriter, r *http.Request) (decimal.Decimal, bool) {
	var req amountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_REQUEST", "Failed to parse request body")
		return decimal.Zero, false
	}

	amount, err := domain.ParseAmount(req.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, domain.ErrorCode(err), err.Error())
		return decimal.Zero, false
	}
	return amount, true
}

func sessionResponseFromUpdate(upd *domain.SessionUpdate) sessionResponse {
	return sessionResponse{
		TerminalID:    upd.TerminalID,
		SessionID:     upd.SessionID,
		State:         string(upd.State),
		Authenticated: upd.State == domain.StateAuthenticated,
		Message:       upd.Message,
	}
}

func operationResponseFromResult(res *domain.OperationResult) operationResponse {
	return operationResponse{
		Operation: string(res.Operation),
		Amount:    domain.FormatAmount(res.Amount),
		Balance:   domain.FormatAmount(res.Balance),
		Message:   res.Message,
	}
}

// handleDomainError converts session errors to HTTP responses: lifecycle
// conflicts are 409, a rejected PIN is 401, amount validation failures are
// 400 and declined withdrawals are 422.
func handleDomainError(w http.ResponseWriter, err error) {
	code := domain.ErrorCode(err)

	switch {
	case errors.Is(err, domain.ErrCardAlreadyInserted),
		errors.Is(err, domain.ErrNoCardToEject),
		errors.Is(err, domain.ErrNoCard),
		errors.Is(err, domain.ErrNotAuthenticated),
		errors.Is(err, domain.ErrAlreadyAuthenticated):
		writeError(w, http.StatusConflict, code, err.Error())
	case errors.Is(err, domain.ErrIncorrectPIN):
		writeError(w, http.StatusUnauthorized, code, err.Error())
	case errors.Is(err, domain.ErrAmountOutOfRange),
		errors.Is(err, domain.ErrInvalidAmount):
		writeError(w, http.StatusBadRequest, code, err.Error())
	case errors.Is(err, domain.ErrInsufficientFunds):
		writeError(w, http.StatusUnprocessableEntity, code, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "INTERNAL", "An internal error occurred")
	}
}
