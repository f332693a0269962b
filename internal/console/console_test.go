package console

import (
	"bytes"
	"fmt"
	"strings"
	"testing"

	"github.com/atmsim/terminal/internal/domain"
)

// runScript feeds the given input lines to a console and returns the full
// output, including the session notifications.
func runScript(t *testing.T, input string) (string, *domain.Session) {
	t.Helper()

	var out bytes.Buffer
	session := domain.NewSession(domain.SessionConfig{}, domain.WithNotifier(func(msg string) {
		fmt.Fprintln(&out, msg)
	}))

	c := New(session, strings.NewReader(input), &out)
	if err := c.Run(); err != nil {
		t.Fatalf("console run: %v", err)
	}

	return out.String(), session
}

func TestConsoleFullSession(t *testing.T) {
	output, session := runScript(t, "1\n1234\n5\n3\n300\n4\n50.25\n2\n0\n")

	wantLines := []string{
		"ATM Simulator",
		"Card inserted",
		"ATM state: card inserted",
		"PIN accepted",
		"ATM state: authenticated",
		"Checking balance...",
		"Current balance: 1000.00",
		"Withdrawing cash: 300.00",
		"Remaining balance: 700.00",
		"Depositing cash: 50.25",
		"Updated balance: 750.25",
		"Card ejected",
		"ATM state: idle",
		"Exiting ATM. Goodbye.",
	}
	for _, want := range wantLines {
		if !strings.Contains(output, want) {
			t.Errorf("expected output to contain %q\noutput:\n%s", want, output)
		}
	}

	if got := session.State(); got != domain.StateIdle {
		t.Errorf("expected state %s after session, got %s", domain.StateIdle, got)
	}
}

func TestConsoleIncorrectPIN(t *testing.T) {
	output, session := runScript(t, "1\n9999\n0\n")

	if !strings.Contains(output, "Incorrect PIN. Card ejected.") {
		t.Errorf("expected forced eject message\noutput:\n%s", output)
	}
	if got := session.State(); got != domain.StateIdle {
		t.Errorf("expected state %s after incorrect PIN, got %s", domain.StateIdle, got)
	}
}

func TestConsoleInvalidPINFormatReprompts(t *testing.T) {
	output, session := runScript(t, "1\nabcd\n1234\n0\n")

	if !strings.Contains(output, "Invalid PIN format.") {
		t.Errorf("expected PIN format error\noutput:\n%s", output)
	}
	if got := session.State(); got != domain.StateAuthenticated {
		t.Errorf("expected state %s after retry, got %s", domain.StateAuthenticated, got)
	}
}

func TestConsoleInvalidChoice(t *testing.T) {
	output, _ := runScript(t, "9\n0\n")

	if !strings.Contains(output, "Invalid choice. Please try again.") {
		t.Errorf("expected invalid choice message\noutput:\n%s", output)
	}
}

func TestConsoleInvalidAmount(t *testing.T) {
	output, session := runScript(t, "1\n1234\n3\nabc\n0\n")

	if !strings.Contains(output, "Invalid amount.") {
		t.Errorf("expected invalid amount message\noutput:\n%s", output)
	}

	// The rejected input never reached the session; the balance is intact.
	res, err := session.CheckBalance()
	if err != nil {
		t.Fatalf("check balance: %v", err)
	}
	if got := domain.FormatAmount(res.Balance); got != "1000.00" {
		t.Errorf("expected untouched balance 1000.00, got %s", got)
	}
}

func TestConsoleTransactionBeforeCard(t *testing.T) {
	output, _ := runScript(t, "3\n100\n0\n")

	if !strings.Contains(output, "Please insert a card and enter PIN") {
		t.Errorf("expected authentication prompt\noutput:\n%s", output)
	}
}

func TestConsoleStopsAtEOF(t *testing.T) {
	output, session := runScript(t, "1\n1234\n")

	if !strings.Contains(output, "PIN accepted") {
		t.Errorf("expected authentication before EOF\noutput:\n%s", output)
	}
	if got := session.State(); got != domain.StateAuthenticated {
		t.Errorf("expected state %s at EOF, got %s", domain.StateAuthenticated, got)
	}
}
