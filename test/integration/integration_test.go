package integration

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"testing"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/shopspring/decimal"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/clickhouse"
	"github.com/testcontainers/testcontainers-go/modules/rabbitmq"

	"github.com/atmsim/terminal/internal/config"
	"github.com/atmsim/terminal/internal/db"
	"github.com/atmsim/terminal/internal/domain"
	"github.com/atmsim/terminal/internal/messaging"
	"github.com/atmsim/terminal/internal/models"
	"github.com/atmsim/terminal/internal/repository"
	"github.com/atmsim/terminal/internal/server"
	"github.com/atmsim/terminal/internal/service"
)

const (
	testTerminalID = "atm-itest"
	testExchange   = "test.atm.events"
	testQueue      = "test.terminal-operations"
	testRoutingKey = "test.terminal.operation"
)

func TestFullIntegration(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	ctx := context.Background()

	// Start ClickHouse container
	clickhouseContainer, clickhouseCfg, err := startClickHouseContainer(ctx)
	if err != nil {
		t.Fatalf("Failed to start ClickHouse container: %v", err)
	}
	defer clickhouseContainer.Terminate(ctx)

	t.Logf("ClickHouse started at: %s", clickhouseCfg.Addr())

	// Start RabbitMQ container
	rabbitmqContainer, rabbitmqCfg, err := startRabbitMQContainer(ctx)
	if err != nil {
		t.Fatalf("Failed to start RabbitMQ container: %v", err)
	}
	defer rabbitmqContainer.Terminate(ctx)

	t.Logf("RabbitMQ started at: %s", rabbitmqCfg.URL())

	// Initialize ClickHouse client and schema
	clickhouseClient, err := db.NewClickHouseClient(clickhouseCfg)
	if err != nil {
		t.Fatalf("Failed to connect to ClickHouse: %v", err)
	}
	defer clickhouseClient.Close()

	repo := repository.NewOperationRepository(clickhouseClient)
	if err := repo.EnsureSchema(ctx); err != nil {
		t.Fatalf("Failed to create schema: %v", err)
	}

	// Start the analytics query API
	analyticsServer := server.NewAnalyticsServer(service.NewAnalyticsService(repo))
	httpServer := httptest.NewServer(analyticsServer.Handler())
	defer httpServer.Close()

	t.Logf("Analytics API started at: %s", httpServer.URL)

	// Start RabbitMQ consumer
	consumer, err := messaging.NewRabbitMQConsumer(rabbitmqCfg, repo)
	if err != nil {
		t.Fatalf("Failed to create RabbitMQ consumer: %v", err)
	}
	defer consumer.Close()

	consumerCtx, cancelConsumer := context.WithCancel(ctx)
	defer cancelConsumer()

	go func() {
		if err := consumer.Start(consumerCtx); err != nil && err != context.Canceled {
			t.Logf("Consumer error: %v", err)
		}
	}()

	// Wait for consumer to initialize
	time.Sleep(2 * time.Second)

	// Drive a terminal session whose events flow through the broker
	publisher, err := messaging.NewRabbitMQPublisher(rabbitmqCfg)
	if err != nil {
		t.Fatalf("Failed to create RabbitMQ publisher: %v", err)
	}
	defer publisher.Close()

	session := domain.NewSession(
		domain.SessionConfig{TerminalID: testTerminalID},
		domain.WithEventPublisher(publisher),
	)

	if _, err := session.InsertCard(); err != nil {
		t.Fatalf("InsertCard failed: %v", err)
	}
	if _, err := session.EnterPIN(1234); err != nil {
		t.Fatalf("EnterPIN failed: %v", err)
	}
	if _, err := session.Withdraw(decimal.NewFromInt(300)); err != nil {
		t.Fatalf("Withdraw failed: %v", err)
	}

	t.Log("Published terminal events to RabbitMQ")

	operations := waitForOperations(t, ctx, repo, 3)

	withdrawal := findOperation(operations, domain.OpWithdraw, domain.CodeOK)
	if withdrawal == nil {
		t.Fatal("Withdrawal operation not found in ClickHouse")
	}
	if got := withdrawal.Amount.StringFixed(2); got != "300.00" {
		t.Errorf("Expected withdrawal amount 300.00, got %s", got)
	}
	if got := withdrawal.Balance.StringFixed(2); got != "700.00" {
		t.Errorf("Expected balance 700.00, got %s", got)
	}
	if withdrawal.SessionID == "" {
		t.Error("Expected withdrawal to carry a session ID")
	}

	t.Logf("Verified operation: %+v", withdrawal)

	// A malformed message must be dropped without stopping the consumer
	if err := publishRawMessage(rabbitmqCfg, []byte("not a terminal event")); err != nil {
		t.Fatalf("Failed to publish malformed message: %v", err)
	}

	if _, err := session.Deposit(decimal.RequireFromString("50.25")); err != nil {
		t.Fatalf("Deposit failed: %v", err)
	}
	if _, err := session.Withdraw(decimal.NewFromInt(5000)); err == nil {
		t.Fatal("Expected oversized withdrawal to be declined")
	}

	operations = waitForOperations(t, ctx, repo, 5)

	deposit := findOperation(operations, domain.OpDeposit, domain.CodeOK)
	if deposit == nil {
		t.Fatal("Deposit operation not found in ClickHouse")
	}
	if got := deposit.Balance.StringFixed(2); got != "750.25" {
		t.Errorf("Expected balance 750.25 after deposit, got %s", got)
	}

	declined := findOperation(operations, domain.OpWithdraw, "AMOUNT_OUT_OF_RANGE")
	if declined == nil {
		t.Fatal("Declined withdrawal not found in ClickHouse")
	}
	if got := declined.Amount.StringFixed(2); got != "5000.00" {
		t.Errorf("Expected declined amount 5000.00, got %s", got)
	}

	for _, op := range operations {
		if op.SessionID != withdrawal.SessionID {
			t.Errorf("Expected all operations in session %s, got %s for %s",
				withdrawal.SessionID, op.SessionID, op.Operation)
		}
	}

	// Verify operations via the HTTP API
	payload := listOperationsViaHTTP(t, httpServer.URL)

	if len(payload.Content) != 5 {
		t.Fatalf("Expected 5 operations from HTTP API, got %d", len(payload.Content))
	}

	httpFound := false
	for _, op := range payload.Content {
		if op.Operation == string(domain.OpWithdraw) && op.ResultCode == domain.CodeOK {
			httpFound = true
			if op.Amount != "300.00" {
				t.Errorf("Expected amount 300.00, got %s", op.Amount)
			}
			if op.Balance != "700.00" {
				t.Errorf("Expected balance 700.00, got %s", op.Balance)
			}
			if op.TerminalID != testTerminalID {
				t.Errorf("Expected terminal %s, got %s", testTerminalID, op.TerminalID)
			}
		}
	}
	if !httpFound {
		t.Error("Withdrawal not found in HTTP API response")
	}

	t.Log("✓ Integration test passed: Session → RabbitMQ → ClickHouse → HTTP API")
}

func startClickHouseContainer(ctx context.Context) (*clickhouse.ClickHouseContainer, config.ClickHouseConfig, error) {
	clickhouseContainer, err := clickhouse.Run(ctx,
		"clickhouse/clickhouse-server:23.3.8.21-alpine",
		clickhouse.WithUsername("default"),
		clickhouse.WithPassword("clickhouse"),
		clickhouse.WithDatabase("default"),
	)
	if err != nil {
		return nil, config.ClickHouseConfig{}, fmt.Errorf("failed to start ClickHouse container: %w", err)
	}

	hostPort, err := clickhouseContainer.ConnectionHost(ctx)
	if err != nil {
		return nil, config.ClickHouseConfig{}, err
	}

	host, portStr, err := net.SplitHostPort(hostPort)
	if err != nil {
		return nil, config.ClickHouseConfig{}, fmt.Errorf("unexpected connection host %q: %w", hostPort, err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return nil, config.ClickHouseConfig{}, fmt.Errorf("unexpected port %q: %w", portStr, err)
	}

	cfg := config.ClickHouseConfig{
		Host:     host,
		Port:     port,
		Database: "default",
		User:     "default",
		Password: "clickhouse",
	}
	return clickhouseContainer, cfg, nil
}

func startRabbitMQContainer(ctx context.Context) (testcontainers.Container, config.RabbitMQConfig, error) {
	rabbitmqContainer, err := rabbitmq.Run(ctx,
		"rabbitmq:3.13-management",
		rabbitmq.WithAdminUsername("guest"),
		rabbitmq.WithAdminPassword("guest"),
	)
	if err != nil {
		return nil, config.RabbitMQConfig{}, fmt.Errorf("failed to start RabbitMQ container: %w", err)
	}

	connectionString, err := rabbitmqContainer.AmqpURL(ctx)
	if err != nil {
		return nil, config.RabbitMQConfig{}, err
	}

	u, err := url.Parse(connectionString)
	if err != nil {
		return nil, config.RabbitMQConfig{}, fmt.Errorf("unexpected AMQP URL %q: %w", connectionString, err)
	}
	port, err := strconv.Atoi(u.Port())
	if err != nil {
		return nil, config.RabbitMQConfig{}, fmt.Errorf("unexpected port in AMQP URL %q: %w", connectionString, err)
	}
	password, _ := u.User.Password()

	cfg := config.RabbitMQConfig{
		Host:       u.Hostname(),
		Port:       port,
		User:       u.User.Username(),
		Password:   password,
		Exchange:   testExchange,
		Queue:      testQueue,
		RoutingKey: testRoutingKey,
	}
	return rabbitmqContainer, cfg, nil
}

// waitForOperations polls ClickHouse until the expected number of operations
// for the test terminal has been consumed.
func waitForOperations(t *testing.T, ctx context.Context, repo *repository.OperationRepository, want int) []*models.TerminalOperation {
	t.Helper()

	deadline := time.Now().Add(20 * time.Second)
	for {
		operations, err := repo.ListTerminalOperations(ctx, testTerminalID, 50, "")
		if err == nil && len(operations) >= want {
			if len(operations) > want {
				t.Fatalf("Expected %d operations, got %d", want, len(operations))
			}
			return operations
		}
		if time.Now().After(deadline) {
			if err != nil {
				t.Fatalf("Failed to query operations from ClickHouse: %v", err)
			}
			t.Fatalf("Expected %d operations in ClickHouse, got %d", want, len(operations))
		}
		time.Sleep(500 * time.Millisecond)
	}
}

func findOperation(operations []*models.TerminalOperation, op domain.OperationKind, resultCode string) *models.TerminalOperation {
	for _, operation := range operations {
		if operation.Operation == string(op) && operation.ResultCode == resultCode {
			return operation
		}
	}
	return nil
}

func publishRawMessage(cfg config.RabbitMQConfig, body []byte) error {
	conn, err := amqp.Dial(cfg.URL())
	if err != nil {
		return fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}
	defer conn.Close()

	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("failed to open channel: %w", err)
	}
	defer ch.Close()

	err = ch.Publish(
		cfg.Exchange,   // exchange
		cfg.RoutingKey, // routing key
		false,          // mandatory
		false,          // immediate
		amqp.Publishing{
			ContentType: "application/json",
			Body:        body,
		},
	)
	if err != nil {
		return fmt.Errorf("failed to publish message: %w", err)
	}
	return nil
}

type operationPayload struct {
	EventID    string `json:"eventId"`
	TerminalID string `json:"terminalId"`
	SessionID  string `json:"sessionId"`
	Operation  string `json:"operation"`
	State      string `json:"state"`
	ResultCode string `json:"resultCode"`
	Amount     string `json:"amount"`
	Balance    string `json:"balance"`
	Message    string `json:"message"`
	Timestamp  string `json:"timestamp"`
}

type operationsPayload struct {
	Content []operationPayload `json:"content"`
	AfterID string             `json:"afterId"`
}

func listOperationsViaHTTP(t *testing.T, baseURL string) operationsPayload {
	t.Helper()

	resp, err := http.Get(fmt.Sprintf("%s/api/v1/terminals/%s/operations?limit=10", baseURL, testTerminalID))
	if err != nil {
		t.Fatalf("Failed to call analytics API: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected status 200 from analytics API, got %d", resp.StatusCode)
	}

	var payload operationsPayload
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		t.Fatalf("Failed to decode analytics API response: %v", err)
	}
	return payload
}
