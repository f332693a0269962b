package domain

import (
	"fmt"
	"regexp"

	"github.com/shopspring/decimal"
)

// OperationKind identifies a terminal operation in events and analytics.
type OperationKind string

const (
	OpInsertCard   OperationKind = "INSERT_CARD"
	OpEjectCard    OperationKind = "EJECT_CARD"
	OpEnterPIN     OperationKind = "ENTER_PIN"
	OpWithdraw     OperationKind = "WITHDRAW"
	OpDeposit      OperationKind = "DEPOSIT"
	OpBalanceCheck OperationKind = "BALANCE_CHECK"
)

// amountRegex validates the textual form of an amount: a positive number
// with an optional dot and up to 2 decimal places.
var amountRegex = regexp.MustCompile(`^\d+(\.\d{1,2})?$`)

// ParseAmount parses a raw amount string from user or API input into a
// decimal value. The string must be a plain non-negative number with at
// most two decimal places and the parsed value must be positive; anything
// else yields ErrInvalidAmount.
func ParseAmount(value string) (decimal.Decimal, error) {
	if value == "" {
		return decimal.Zero, fmt.Errorf("%w: amount cannot be empty", ErrInvalidAmount)
	}

	if !amountRegex.MatchString(value) {
		return decimal.Zero, fmt.Errorf("%w: invalid amount format: %s", ErrInvalidAmount, value)
	}

	amount, err := decimal.NewFromString(value)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %s", ErrInvalidAmount, value)
	}

	if amount.Sign() <= 0 {
		return decimal.Zero, fmt.Errorf("%w: amount must be greater than zero", ErrInvalidAmount)
	}

	return amount, nil
}

// FormatAmount renders a monetary value with exactly two decimal places.
func FormatAmount(amount decimal.Decimal) string {
	return amount.StringFixed(2)
}

// ValidateEntryAmount applies the terminal's per-request entry bound shared
// by withdrawals and deposits: the amount must be positive and must not
// exceed limit. The bound is checked before any balance check, so an
// oversized withdrawal is rejected as out of range even when the balance
// would not cover it anyway.
func ValidateEntryAmount(amount, limit decimal.Decimal, kind OperationKind) error {
	switch kind {
	case OpWithdraw, OpDeposit:
		if amount.Sign() <= 0 || amount.GreaterThan(limit) {
			return fmt.Errorf("%w: must be above 0 and at most %s", ErrAmountOutOfRange, FormatAmount(limit))
		}
		return nil
	default:
		return fmt.Errorf("operation %s does not take an amount", kind)
	}
}
