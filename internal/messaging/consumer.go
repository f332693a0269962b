package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/atmsim/terminal/internal/config"
	"github.com/atmsim/terminal/internal/domain"
	"github.com/atmsim/terminal/internal/models"
)

// errUnprocessable marks messages that can never succeed (malformed JSON,
// missing fields) and must be dropped instead of requeued.
var errUnprocessable = errors.New("unprocessable message")

// OperationStore defines the interface for persisting consumed operations.
type OperationStore interface {
	InsertOperation(ctx context.Context, op *models.TerminalOperation) error
}

// RabbitMQConsumer consumes terminal events from RabbitMQ and persists them
// through the operation store.
type RabbitMQConsumer struct {
	conn    *amqp.Connection
	channel *amqp.Channel
	config  config.RabbitMQConfig
	repo    OperationStore
}

// NewRabbitMQConsumer connects to RabbitMQ and sets up the exchange, queue
// and binding the consumer reads from.
func NewRabbitMQConsumer(cfg config.RabbitMQConfig, repo OperationStore) (*RabbitMQConsumer, error) {
	conn, err := amqp.Dial(cfg.URL())
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	// Declare exchange (topic exchange for routing)
	err = channel.ExchangeDeclare(
		cfg.Exchange, // name
		"topic",      // type
		true,         // durable
		false,        // auto-deleted
		false,        // internal
		false,        // no-wait
		nil,          // arguments
	)
	if err != nil {
		channel.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to declare exchange: %w", err)
	}

	// Declare queue
	queue, err := channel.QueueDeclare(
		cfg.Queue, // name
		true,      // durable
		false,     // delete when unused
		false,     // exclusive
		false,     // no-wait
		nil,       // arguments
	)
	if err != nil {
		channel.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to declare queue: %w", err)
	}

	// Bind queue to exchange with routing key
	err = channel.QueueBind(
		queue.Name,     // queue name
		cfg.RoutingKey, // routing key
		cfg.Exchange,   // exchange
		false,
		nil,
	)
	if err != nil {
		channel.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to bind queue: %w", err)
	}

	log.Printf("RabbitMQ consumer initialized: exchange=%s, queue=%s, routing_key=%s",
		cfg.Exchange, cfg.Queue, cfg.RoutingKey)

	return &RabbitMQConsumer{
		conn:    conn,
		channel: channel,
		config:  cfg,
		repo:    repo,
	}, nil
}

// Start begins consuming messages from the queue until the context is
// cancelled. Transient failures requeue the message; unprocessable messages
// are dropped.
func (c *RabbitMQConsumer) Start(ctx context.Context) error {
	msgs, err := c.channel.Consume(
		c.config.Queue, // queue
		"",             // consumer tag (auto-generated)
		false,          // auto-ack (we'll ack manually)
		false,          // exclusive
		false,          // no-local
		false,          // no-wait
		nil,            // args
	)
	if err != nil {
		return fmt.Errorf("failed to register consumer: %w", err)
	}

	log.Printf("RabbitMQ consumer started, waiting for messages on queue: %s", c.config.Queue)

	for {
		select {
		case <-ctx.Done():
			log.Println("Context cancelled, stopping RabbitMQ consumer")
			return nil

		case msg, ok := <-msgs:
			if !ok {
				return fmt.Errorf("message channel closed")
			}

			if err := c.handleMessage(ctx, msg); err != nil {
				log.Printf("Error handling message: %v", err)
				if errors.Is(err, errUnprocessable) {
					msg.Nack(false, false)
				} else {
					msg.Nack(false, true)
				}
			} else {
				msg.Ack(false)
			}
		}
	}
}

// handleMessage processes a single terminal event message.
func (c *RabbitMQConsumer) handleMessage(ctx context.Context, msg amqp.Delivery) error {
	var event domain.TerminalEvent
	if err := json.Unmarshal(msg.Body, &event); err != nil {
		return fmt.Errorf("%w: failed to unmarshal event: %v", errUnprocessable, err)
	}

	log.Printf("Received terminal event: eventId=%s, terminal=%s, operation=%s, resultCode=%s",
		event.EventID, event.TerminalID, event.Operation, event.ResultCode)

	if err := c.validateEvent(&event); err != nil {
		return fmt.Errorf("%w: invalid event: %v", errUnprocessable, err)
	}

	operation, err := models.OperationFromEvent(&event)
	if err != nil {
		return fmt.Errorf("%w: %v", errUnprocessable, err)
	}

	if err := c.repo.InsertOperation(ctx, operation); err != nil {
		return fmt.Errorf("failed to insert operation: %w", err)
	}

	log.Printf("Successfully processed terminal event: eventId=%s", event.EventID)

	return nil
}

// validateEvent checks the terminal event structure. Declined operations are
// recorded as well, so any known result code is accepted.
func (c *RabbitMQConsumer) validateEvent(event *domain.TerminalEvent) error {
	if event.EventID == "" {
		return fmt.Errorf("event ID is required")
	}
	if event.TerminalID == "" {
		return fmt.Errorf("terminal ID is required")
	}
	if event.ResultCode == "" {
		return fmt.Errorf("result code is required")
	}
	if event.Timestamp == "" {
		return fmt.Errorf("timestamp is required")
	}

	switch event.Operation {
	case domain.OpInsertCard, domain.OpEjectCard, domain.OpEnterPIN,
		domain.OpWithdraw, domain.OpDeposit, domain.OpBalanceCheck:
		return nil
	default:
		return fmt.Errorf("unknown operation: %s", event.Operation)
	}
}

// Close closes the RabbitMQ connection and channel.
func (c *RabbitMQConsumer) Close() error {
	if c.channel != nil {
		if err := c.channel.Close(); err != nil {
			log.Printf("Error closing channel: %v", err)
		}
	}
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}
