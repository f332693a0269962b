package server

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/google/uuid"
)

// ErrorResponse is the error envelope returned by all HTTP endpoints. The ID
// is unique per response so individual failures can be found in logs.
type ErrorResponse struct {
	Code        string `json:"code"`
	Description string `json:"description,omitempty"`
	ID          string `json:"id"`
}

// writeJSON sends a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, statusCode int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Printf("Error encoding response: %v", err)
	}
}

// writeError sends an error response in the envelope format.
func writeError(w http.ResponseWriter, statusCode int, code, description string) {
	writeJSON(w, statusCode, ErrorResponse{
		Code:        code,
		Description: description,
		ID:          uuid.New().String(),
	})
}
