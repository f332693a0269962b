package models

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/atmsim/terminal/internal/domain"
)

// TerminalOperation is a row in the terminal_operations table: one terminal
// event flattened for analytical queries.
type TerminalOperation struct {
	EventID    string
	TerminalID string
	SessionID  string
	Operation  string
	State      string
	ResultCode string
	Amount     decimal.Decimal
	Balance    decimal.Decimal
	Message    string
	Timestamp  time.Time
}

// OperationFromEvent converts a consumed terminal event into its stored
// form. Card and PIN operations carry no amount; those fields are stored as
// zero.
func OperationFromEvent(event *domain.TerminalEvent) (*TerminalOperation, error) {
	timestamp, err := event.ParsedTimestamp()
	if err != nil {
		return nil, fmt.Errorf("failed to parse timestamp: %w", err)
	}

	amount := decimal.Zero
	if event.Amount != "" {
		amount, err = decimal.NewFromString(event.Amount)
		if err != nil {
			return nil, fmt.Errorf("failed to parse amount: %w", err)
		}
	}

	balance := decimal.Zero
	if event.Balance != "" {
		balance, err = decimal.NewFromString(event.Balance)
		if err != nil {
			return nil, fmt.Errorf("failed to parse balance: %w", err)
		}
	}

	return &TerminalOperation{
		EventID:    event.EventID,
		TerminalID: event.TerminalID,
		SessionID:  event.SessionID,
		Operation:  string(event.Operation),
		State:      string(event.State),
		ResultCode: event.ResultCode,
		Amount:     amount,
		Balance:    balance,
		Message:    event.Message,
		Timestamp:  timestamp,
	}, nil
}
