package console

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/atmsim/terminal/internal/domain"
)

// Console runs the interactive terminal menu over a session. Input is read
// line by line, so both interactive use and scripted input work.
//
// Operation outcomes are reported through the session's notifier; the
// console itself only prints the menu, prompts and input format errors. The
// session should therefore be constructed with a notifier writing to the
// same output.
type Console struct {
	session *domain.Session
	in      *bufio.Scanner
	out     io.Writer
}

// New creates a console over the given session, reading menu choices from in
// and printing to out.
func New(session *domain.Session, in io.Reader, out io.Writer) *Console {
	return &Console{
		session: session,
		in:      bufio.NewScanner(in),
		out:     out,
	}
}

// Run executes the menu loop until the user exits or the input ends.
func (c *Console) Run() error {
	c.printMenu()

	for {
		fmt.Fprint(c.out, "Enter your choice: ")
		line, ok := c.readLine()
		if !ok {
			return nil
		}

		switch strings.TrimSpace(line) {
		case "1":
			c.insertCard()
		case "2":
			c.session.EjectCard()
		case "3":
			c.withdraw()
		case "4":
			c.deposit()
		case "5":
			c.session.CheckBalance()
		case "0":
			fmt.Fprintln(c.out, "Exiting ATM. Goodbye.")
			return nil
		default:
			fmt.Fprintln(c.out, "Invalid choice. Please try again.")
		}
	}
}

func (c *Console) printMenu() {
	fmt.Fprintln(c.out, "ATM Simulator")
	fmt.Fprintln(c.out, "1. Insert Card")
	fmt.Fprintln(c.out, "2. Eject Card")
	fmt.Fprintln(c.out, "3. Withdraw Cash")
	fmt.Fprintln(c.out, "4. Deposit Cash")
	fmt.Fprintln(c.out, "5. Check Balance")
	fmt.Fprintln(c.out, "0. Exit")
}

// insertCard accepts the card and immediately prompts for the PIN, matching
// the cardholder flow at a physical terminal.
func (c *Console) insertCard() {
	if _, err := c.session.InsertCard(); err != nil {
		return
	}

	for {
		fmt.Fprint(c.out, "Enter PIN: ")
		line, ok := c.readLine()
		if !ok {
			return
		}

		pin, err := strconv.Atoi(strings.TrimSpace(line))
		if err != nil {
			fmt.Fprintln(c.out, "Invalid PIN format. Please enter digits only.")
			continue
		}

		c.session.EnterPIN(pin)
		return
	}
}

func (c *Console) withdraw() {
	fmt.Fprint(c.out, "Enter withdrawal amount: ")
	amount, ok := c.readAmount()
	if !ok {
		return
	}
	c.session.Withdraw(amount)
}

func (c *Console) deposit() {
	fmt.Fprint(c.out, "Enter deposit amount: ")
	amount, ok := c.readAmount()
	if !ok {
		return
	}
	c.session.Deposit(amount)
}

func (c *Console) readAmount() (decimal.Decimal, bool) {
	line, ok := c.readLine()
	if !ok {
		return decimal.Zero, false
	}

	amount, err := domain.ParseAmount(strings.TrimSpace(line))
	if err != nil {
		fmt.Fprintf(c.out, "Invalid amount. Please enter a positive number up to %s with at most two decimal places.\n",
			domain.FormatAmount(c.session.EntryLimit()))
		return decimal.Zero, false
	}
	return amount, true
}

func (c *Console) readLine() (string, bool) {
	if !c.in.Scan() {
		return "", false
	}
	return c.in.Text(), true
}
