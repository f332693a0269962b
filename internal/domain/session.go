package domain

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	// DefaultTerminalID identifies the terminal when none is configured.
	DefaultTerminalID = "atm-001"
	// DefaultPIN is the accepted PIN when none is configured.
	DefaultPIN = 1234
)

var (
	// DefaultInitialBalance is granted on each successful authentication
	// when no opening balance is configured.
	DefaultInitialBalance = decimal.NewFromInt(1000)
	// DefaultEntryLimit caps single withdrawal and deposit requests when no
	// limit is configured.
	DefaultEntryLimit = decimal.NewFromInt(1000)
)

// eventPublishTimeout bounds each background event publish so a stalled
// broker cannot hold publish goroutines open indefinitely.
const eventPublishTimeout = 5 * time.Second

// SessionConfig carries the terminal parameters for a session. Zero-value
// fields fall back to the package defaults.
type SessionConfig struct {
	TerminalID     string
	PIN            int
	InitialBalance decimal.Decimal
	EntryLimit     decimal.Decimal
}

// SessionUpdate reports the state reached by a card or PIN operation.
type SessionUpdate struct {
	TerminalID string
	SessionID  string
	State      State
	Message    string
}

// OperationResult reports a completed transaction or balance check.
type OperationResult struct {
	Operation OperationKind
	Amount    decimal.Decimal
	Balance   decimal.Decimal
	Message   string
}

// SessionOption configures optional session collaborators.
type SessionOption func(*Session)

// WithNotifier attaches a notifier that receives every status line.
func WithNotifier(n Notifier) SessionOption {
	return func(s *Session) {
		s.notifier = n
	}
}

// WithEventPublisher attaches a publisher for terminal events. Without one,
// no events are emitted.
func WithEventPublisher(p EventPublisher) SessionOption {
	return func(s *Session) {
		s.publisher = p
	}
}

// WithClock overrides the time source used for event timestamps.
func WithClock(now func() time.Time) SessionOption {
	return func(s *Session) {
		s.now = now
	}
}

// Session is a single-terminal ATM session: a state machine over the card
// lifecycle (idle, card inserted, authenticated) that owns the ledger of the
// authenticated cardholder. All operations are safe for concurrent use; one
// operation completes, including its notifications, before the next begins.
//
// Authentication resets the ledger to the configured opening balance, so
// each card cycle starts from a clean slate. The session performs no I/O of
// its own: status lines go through the Notifier and analytics events through
// the EventPublisher.
type Session struct {
	mu sync.Mutex

	terminalID     string
	pin            int
	initialBalance decimal.Decimal
	entryLimit     decimal.Decimal

	state     State
	sessionID string
	ledger    *Ledger

	notifier  Notifier
	publisher EventPublisher
	now       func() time.Time
}

// NewSession creates a terminal session in the idle state.
func NewSession(cfg SessionConfig, opts ...SessionOption) *Session {
	s := &Session{
		terminalID:     cfg.TerminalID,
		pin:            cfg.PIN,
		initialBalance: cfg.InitialBalance,
		entryLimit:     cfg.EntryLimit,
		state:          StateIdle,
		now:            time.Now,
	}

	if s.terminalID == "" {
		s.terminalID = DefaultTerminalID
	}
	if s.pin == 0 {
		s.pin = DefaultPIN
	}
	if s.initialBalance.IsZero() {
		s.initialBalance = DefaultInitialBalance
	}
	if s.entryLimit.IsZero() {
		s.entryLimit = DefaultEntryLimit
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// TerminalID returns the configured terminal identifier.
func (s *Session) TerminalID() string {
	return s.terminalID
}

// EntryLimit returns the per-request amount cap.
func (s *Session) EntryLimit() decimal.Decimal {
	return s.entryLimit
}

// State returns the current state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Snapshot returns a consistent view of the session for status reporting.
func (s *Session) Snapshot() SessionUpdate {
	s.mu.Lock()
	defer s.mu.Unlock()
	return SessionUpdate{
		TerminalID: s.terminalID,
		SessionID:  s.sessionID,
		State:      s.state,
	}
}

// InsertCard accepts a card while the terminal is idle and starts a new card
// cycle with a fresh session identifier.
func (s *Session) InsertCard() (*SessionUpdate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateIdle {
		return nil, s.reject(OpInsertCard, ErrCardAlreadyInserted, "Card is already inserted", "", "")
	}

	s.sessionID = uuid.New().String()
	s.notifyLine("Card inserted")
	if err := s.transition(StateCardInserted); err != nil {
		return nil, err
	}
	s.emit(OpInsertCard, CodeOK, "", "", "Card inserted")

	return s.update("Card inserted"), nil
}

// EjectCard returns the card and ends the current card cycle. It is allowed
// both before and after authentication.
func (s *Session) EjectCard() (*SessionUpdate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateIdle {
		return nil, s.reject(OpEjectCard, ErrNoCardToEject, "No card to eject", "", "")
	}

	s.notifyLine("Card ejected")
	if err := s.transition(StateIdle); err != nil {
		return nil, err
	}
	s.emit(OpEjectCard, CodeOK, "", "", "Card ejected")

	upd := s.update("Card ejected")
	s.endCycle()
	return upd, nil
}

// EnterPIN verifies the PIN for the inserted card. A correct PIN
// authenticates the session and resets the ledger to the opening balance. An
// incorrect PIN ejects the card and returns the terminal to idle.
func (s *Session) EnterPIN(pin int) (*SessionUpdate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.state {
	case StateIdle:
		return nil, s.reject(OpEnterPIN, ErrNoCard, "Please insert a card before entering PIN", "", "")
	case StateAuthenticated:
		return nil, s.reject(OpEnterPIN, ErrAlreadyAuthenticated, "PIN is already entered", "", "")
	}

	if pin != s.pin {
		s.notifyLine("Incorrect PIN. Card ejected.")
		if err := s.transition(StateIdle); err != nil {
			return nil, err
		}
		s.emit(OpEnterPIN, ErrorCode(ErrIncorrectPIN), "", "", "Incorrect PIN. Card ejected.")
		s.endCycle()
		return nil, ErrIncorrectPIN
	}

	s.ledger = NewLedger(s.initialBalance)
	s.notifyLine("PIN accepted")
	if err := s.transition(StateAuthenticated); err != nil {
		return nil, err
	}
	s.emit(OpEnterPIN, CodeOK, "", s.balanceString(), "PIN accepted")

	return s.update("PIN accepted"), nil
}

// Withdraw debits the given amount from the session ledger. The amount must
// pass the entry bound before the balance is consulted, so an oversized
// request is reported as out of range even when funds would not cover it.
func (s *Session) Withdraw(amount decimal.Decimal) (*OperationResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.requireAuthenticated(OpWithdraw, FormatAmount(amount)); err != nil {
		return nil, err
	}

	if err := ValidateEntryAmount(amount, s.entryLimit, OpWithdraw); err != nil {
		msg := fmt.Sprintf("Invalid withdrawal amount. Please enter an amount between 0 and %s.", FormatAmount(s.entryLimit))
		return nil, s.reject(OpWithdraw, err, msg, FormatAmount(amount), s.balanceString())
	}

	balance, err := s.ledger.Withdraw(amount)
	if err != nil {
		return nil, s.reject(OpWithdraw, err, "Insufficient funds", FormatAmount(amount), s.balanceString())
	}

	s.notifyLine(fmt.Sprintf("Withdrawing cash: %s", FormatAmount(amount)))
	s.notifyLine(fmt.Sprintf("Remaining balance: %s", FormatAmount(balance)))
	msg := fmt.Sprintf("Withdrawing cash: %s", FormatAmount(amount))
	s.emit(OpWithdraw, CodeOK, FormatAmount(amount), FormatAmount(balance), msg)

	return s.result(OpWithdraw, amount, balance, msg), nil
}

// Deposit credits the given amount to the session ledger. The same entry
// bound as for withdrawals applies.
func (s *Session) Deposit(amount decimal.Decimal) (*OperationResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.requireAuthenticated(OpDeposit, FormatAmount(amount)); err != nil {
		return nil, err
	}

	if err := ValidateEntryAmount(amount, s.entryLimit, OpDeposit); err != nil {
		msg := fmt.Sprintf("Invalid deposit amount. Please enter an amount between 0 and %s.", FormatAmount(s.entryLimit))
		return nil, s.reject(OpDeposit, err, msg, FormatAmount(amount), s.balanceString())
	}

	balance, err := s.ledger.Deposit(amount)
	if err != nil {
		return nil, s.reject(OpDeposit, err, "Invalid deposit amount", FormatAmount(amount), s.balanceString())
	}

	s.notifyLine(fmt.Sprintf("Depositing cash: %s", FormatAmount(amount)))
	s.notifyLine(fmt.Sprintf("Updated balance: %s", FormatAmount(balance)))
	msg := fmt.Sprintf("Depositing cash: %s", FormatAmount(amount))
	s.emit(OpDeposit, CodeOK, FormatAmount(amount), FormatAmount(balance), msg)

	return s.result(OpDeposit, amount, balance, msg), nil
}

// CheckBalance reports the current balance without changing it.
func (s *Session) CheckBalance() (*OperationResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.requireAuthenticated(OpBalanceCheck, ""); err != nil {
		return nil, err
	}

	balance := s.ledger.Balance()
	s.notifyLine("Checking balance...")
	s.notifyLine(fmt.Sprintf("Current balance: %s", FormatAmount(balance)))
	msg := fmt.Sprintf("Current balance: %s", FormatAmount(balance))
	s.emit(OpBalanceCheck, CodeOK, "", FormatAmount(balance), msg)

	return s.result(OpBalanceCheck, decimal.Zero, balance, msg), nil
}

// requireAuthenticated rejects transactions attempted before a successful
// PIN entry, with a message matching how far the cardholder got.
func (s *Session) requireAuthenticated(op OperationKind, amount string) error {
	switch s.state {
	case StateAuthenticated:
		return nil
	case StateCardInserted:
		return s.reject(op, ErrNotAuthenticated, "Please enter your PIN first", amount, "")
	default:
		return s.reject(op, ErrNotAuthenticated, "Please insert a card and enter PIN", amount, "")
	}
}

// transition moves the session to the next state and announces it through
// the notifier. Operations only request transitions listed in
// validTransitions; anything else is a programming error.
func (s *Session) transition(to State) error {
	if !CanTransition(s.state, to) {
		return fmt.Errorf("invalid transition from %s to %s", s.state, to)
	}
	s.state = to
	s.notifyLine(fmt.Sprintf("ATM state: %s", to.Display()))
	return nil
}

// reject records a declined operation: the notifier receives the human
// message, an event carrying the mapped result code is emitted, and the
// domain error is returned for the caller to propagate.
func (s *Session) reject(op OperationKind, err error, msg, amount, balance string) error {
	s.notifyLine(msg)
	s.emit(op, ErrorCode(err), amount, balance, msg)
	return err
}

// endCycle clears the per-cycle identifier and ledger after the card left
// the terminal.
func (s *Session) endCycle() {
	s.sessionID = ""
	s.ledger = nil
}

func (s *Session) update(msg string) *SessionUpdate {
	return &SessionUpdate{
		TerminalID: s.terminalID,
		SessionID:  s.sessionID,
		State:      s.state,
		Message:    msg,
	}
}

func (s *Session) result(op OperationKind, amount, balance decimal.Decimal, msg string) *OperationResult {
	return &OperationResult{
		Operation: op,
		Amount:    amount,
		Balance:   balance,
		Message:   msg,
	}
}

func (s *Session) balanceString() string {
	if s.ledger == nil {
		return ""
	}
	return FormatAmount(s.ledger.Balance())
}

func (s *Session) notifyLine(msg string) {
	if s.notifier != nil {
		s.notifier(msg)
	}
}

// emit publishes a terminal event describing the operation outcome.
// Publishing is best-effort and runs in a goroutine so a slow broker never
// delays the cardholder. Each attempt is abandoned after eventPublishTimeout;
// failures are logged and the operation stands.
func (s *Session) emit(op OperationKind, code, amount, balance, msg string) {
	if s.publisher == nil {
		return
	}

	now := s.now().UTC().Format(time.RFC3339Nano)
	event := &TerminalEvent{
		EventID:        uuid.New().String(),
		EventType:      EventTypeTerminalOperation,
		EventTimestamp: now,
		TerminalID:     s.terminalID,
		SessionID:      s.sessionID,
		Operation:      op,
		State:          s.state,
		ResultCode:     code,
		Amount:         amount,
		Balance:        balance,
		Message:        msg,
		Timestamp:      now,
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), eventPublishTimeout)
		defer cancel()
		if err := s.publisher.PublishTerminalEvent(ctx, event); err != nil {
			log.Printf("Warning: failed to publish terminal event %s: %v", event.EventID, err)
		}
	}()
}
