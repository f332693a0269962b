package domain

import "errors"

var (
	// ErrCardAlreadyInserted is returned when a card insert is attempted
	// while a card is already in the terminal.
	ErrCardAlreadyInserted = errors.New("card already inserted")

	// ErrNoCardToEject is returned when an eject is attempted while the
	// terminal is idle.
	ErrNoCardToEject = errors.New("no card to eject")

	// ErrNoCard is returned when a PIN is entered before any card is inserted.
	ErrNoCard = errors.New("no card inserted")

	// ErrNotAuthenticated is returned when a transaction is attempted before
	// a successful PIN entry.
	ErrNotAuthenticated = errors.New("not authenticated")

	// ErrAlreadyAuthenticated is returned when a PIN is entered twice in the
	// same card cycle.
	ErrAlreadyAuthenticated = errors.New("PIN already entered")

	// ErrIncorrectPIN is returned when the entered PIN does not match. The
	// session force-ejects the card and returns to idle.
	ErrIncorrectPIN = errors.New("incorrect PIN")

	// ErrAmountOutOfRange is returned when a requested amount falls outside
	// the terminal's per-request entry bound.
	ErrAmountOutOfRange = errors.New("amount outside allowed range")

	// ErrInvalidAmount is returned when an amount is malformed or not positive.
	ErrInvalidAmount = errors.New("invalid amount: must be positive")

	// ErrInsufficientFunds is returned when a withdrawal exceeds the balance.
	ErrInsufficientFunds = errors.New("insufficient funds")
)

// CodeOK is the result code reported for successful operations.
const CodeOK = "OK"

// ErrorCode maps a domain error to its stable machine-readable code, used in
// terminal events and API error envelopes. Unknown errors map to INTERNAL.
func ErrorCode(err error) string {
	switch {
	case err == nil:
		return CodeOK
	case errors.Is(err, ErrCardAlreadyInserted):
		return "CARD_ALREADY_INSERTED"
	case errors.Is(err, ErrNoCardToEject):
		return "NO_CARD_TO_EJECT"
	case errors.Is(err, ErrNoCard):
		return "NO_CARD"
	case errors.Is(err, ErrNotAuthenticated):
		return "NOT_AUTHENTICATED"
	case errors.Is(err, ErrAlreadyAuthenticated):
		return "ALREADY_AUTHENTICATED"
	case errors.Is(err, ErrIncorrectPIN):
		return "INCORRECT_PIN"
	case errors.Is(err, ErrAmountOutOfRange):
		return "AMOUNT_OUT_OF_RANGE"
	case errors.Is(err, ErrInvalidAmount):
		return "INVALID_AMOUNT"
	case errors.Is(err, ErrInsufficientFunds):
		return "INSUFFICIENT_FUNDS"
	default:
		return "INTERNAL"
	}
}
