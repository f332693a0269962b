package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/shopspring/decimal"
)

// Config holds the runtime configuration for the terminal and the analytics
// pipeline, loaded from environment variables with defaults suitable for
// local development.
type Config struct {
	Terminal   TerminalConfig
	HTTP       HTTPConfig
	Events     EventsConfig
	RabbitMQ   RabbitMQConfig
	ClickHouse ClickHouseConfig
}

// TerminalConfig describes the simulated terminal.
type TerminalConfig struct {
	TerminalID     string
	PIN            int
	InitialBalance decimal.Decimal
	EntryLimit     decimal.Decimal
}

// HTTPConfig holds the listen ports for the HTTP APIs.
type HTTPConfig struct {
	Port          int
	AnalyticsPort int
}

// EventsConfig controls publishing of terminal events to the broker.
type EventsConfig struct {
	Enabled bool
}

// RabbitMQConfig holds the connection and topology settings for the event
// broker.
type RabbitMQConfig struct {
	Host       string
	Port       int
	User       string
	Password   string
	Exchange   string
	Queue      string
	RoutingKey string
}

// URL builds the AMQP connection string.
func (c RabbitMQConfig) URL() string {
	return fmt.Sprintf("amqp://%s:%s@%s:%d/", c.User, c.Password, c.Host, c.Port)
}

// ClickHouseConfig holds the connection settings for the analytics store.
type ClickHouseConfig struct {
	Host     string
	Port     int
	Database string
	User     string
	Password string
}

// Addr returns the host:port address for the native protocol.
func (c ClickHouseConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// Load reads configuration from the environment. Unset or empty variables
// fall back to their defaults; malformed values are reported as errors
// rather than silently replaced.
func Load() (*Config, error) {
	pin, err := getEnvInt("ATM_PIN", 1234)
	if err != nil {
		return nil, err
	}
	if pin <= 0 {
		return nil, fmt.Errorf("invalid value for ATM_PIN: must be positive, got %d", pin)
	}

	initialBalance, err := getEnvDecimal("ATM_INITIAL_BALANCE", "1000")
	if err != nil {
		return nil, err
	}
	if initialBalance.Sign() < 0 {
		return nil, fmt.Errorf("invalid value for ATM_INITIAL_BALANCE: must not be negative, got %s", initialBalance)
	}

	entryLimit, err := getEnvDecimal("ATM_ENTRY_LIMIT", "1000")
	if err != nil {
		return nil, err
	}
	if entryLimit.Sign() <= 0 {
		return nil, fmt.Errorf("invalid value for ATM_ENTRY_LIMIT: must be positive, got %s", entryLimit)
	}

	httpPort, err := getEnvInt("HTTP_PORT", 8080)
	if err != nil {
		return nil, err
	}

	analyticsPort, err := getEnvInt("ANALYTICS_HTTP_PORT", 8081)
	if err != nil {
		return nil, err
	}

	eventsEnabled, err := getEnvBool("EVENTS_ENABLED", false)
	if err != nil {
		return nil, err
	}

	rabbitPort, err := getEnvInt("RABBITMQ_PORT", 5672)
	if err != nil {
		return nil, err
	}

	clickhousePort, err := getEnvInt("CLICKHOUSE_PORT", 9000)
	if err != nil {
		return nil, err
	}

	return &Config{
		Terminal: TerminalConfig{
			TerminalID:     getEnv("ATM_TERMINAL_ID", "atm-001"),
			PIN:            pin,
			InitialBalance: initialBalance,
			EntryLimit:     entryLimit,
		},
		HTTP: HTTPConfig{
			Port:          httpPort,
			AnalyticsPort: analyticsPort,
		},
		Events: EventsConfig{
			Enabled: eventsEnabled,
		},
		RabbitMQ: RabbitMQConfig{
			Host:       getEnv("RABBITMQ_HOST", "localhost"),
			Port:       rabbitPort,
			User:       getEnv("RABBITMQ_USER", "guest"),
			Password:   getEnv("RABBITMQ_PASSWORD", "guest"),
			Exchange:   getEnv("RABBITMQ_EXCHANGE", "atm.events"),
			Queue:      getEnv("RABBITMQ_QUEUE", "terminal-operations"),
			RoutingKey: getEnv("RABBITMQ_ROUTING_KEY", "terminal.operation"),
		},
		ClickHouse: ClickHouseConfig{
			Host:     getEnv("CLICKHOUSE_HOST", "localhost"),
			Port:     clickhousePort,
			Database: getEnv("CLICKHOUSE_DB", "default"),
			User:     getEnv("CLICKHOUSE_USER", "default"),
			Password: getEnv("CLICKHOUSE_PASSWORD", ""),
		},
	}, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid value for %s: %w", key, err)
	}
	return parsed, nil
}

func getEnvBool(key string, defaultValue bool) (bool, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return false, fmt.Errorf("invalid value for %s: %w", key, err)
	}
	return parsed, nil
}

func getEnvDecimal(key, defaultValue string) (decimal.Decimal, error) {
	value := os.Getenv(key)
	if value == "" {
		value = defaultValue
	}
	parsed, err := decimal.NewFromString(value)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid value for %s: %w", key, err)
	}
	return parsed, nil
}
