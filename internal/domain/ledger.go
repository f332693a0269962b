package domain

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Ledger holds the funds available to an authenticated session. The balance
// never goes negative: a withdrawal that would overdraw is rejected and
// leaves the balance untouched.
type Ledger struct {
	balance decimal.Decimal
}

// NewLedger creates a ledger with the given opening balance. The opening
// balance must be non-negative.
func NewLedger(opening decimal.Decimal) *Ledger {
	return &Ledger{balance: opening}
}

// Balance returns the current balance.
func (l *Ledger) Balance() decimal.Decimal {
	return l.balance
}

// Withdraw debits amount from the ledger and returns the new balance.
// The amount must be positive and must not exceed the current balance.
func (l *Ledger) Withdraw(amount decimal.Decimal) (decimal.Decimal, error) {
	if amount.Sign() <= 0 {
		return l.balance, fmt.Errorf("%w: withdrawal amount must be positive", ErrInvalidAmount)
	}

	if amount.GreaterThan(l.balance) {
		return l.balance, fmt.Errorf("%w: balance %s, requested %s",
			ErrInsufficientFunds, FormatAmount(l.balance), FormatAmount(amount))
	}

	l.balance = l.balance.Sub(amount)
	return l.balance, nil
}

// Deposit credits amount to the ledger and returns the new balance.
// The amount must be positive.
func (l *Ledger) Deposit(amount decimal.Decimal) (decimal.Decimal, error) {
	if amount.Sign() <= 0 {
		return l.balance, fmt.Errorf("%w: deposit amount must be positive", ErrInvalidAmount)
	}

	l.balance = l.balance.Add(amount)
	return l.balance, nil
}
