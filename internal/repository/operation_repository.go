package repository

import (
	"context"
	"fmt"

	"github.com/atmsim/terminal/internal/db"
	"github.com/atmsim/terminal/internal/models"
)

// schema for the terminal operations table. MergeTree ordered by terminal
// and time serves the per-terminal history queries.
const schema = `
	CREATE TABLE IF NOT EXISTS terminal_operations (
		event_id String,
		terminal_id String,
		session_id String,
		operation Enum8('INSERT_CARD' = 1, 'EJECT_CARD' = 2, 'ENTER_PIN' = 3, 'WITHDRAW' = 4, 'DEPOSIT' = 5, 'BALANCE_CHECK' = 6),
		state String,
		result_code String,
		amount Decimal(18, 2),
		balance Decimal(18, 2),
		message String,
		timestamp DateTime64(3),
		created_at DateTime DEFAULT now()
	) ENGINE = MergeTree()
	ORDER BY (terminal_id, timestamp)
	PRIMARY KEY (terminal_id, timestamp)
`

// OperationRepository persists terminal operations in ClickHouse.
type OperationRepository struct {
	db *db.ClickHouseClient
}

// NewOperationRepository creates a new operation repository.
func NewOperationRepository(db *db.ClickHouseClient) *OperationRepository {
	return &OperationRepository{db: db}
}

// EnsureSchema creates the terminal_operations table if it does not exist,
// so the analytics service can start against an empty database.
func (r *OperationRepository) EnsureSchema(ctx context.Context) error {
	if err := r.db.Conn().Exec(ctx, schema); err != nil {
		return fmt.Errorf("failed to create terminal_operations table: %w", err)
	}
	return nil
}

// InsertOperation inserts one consumed terminal operation.
func (r *OperationRepository) InsertOperation(ctx context.Context, op *models.TerminalOperation) error {
	query := `
		INSERT INTO terminal_operations (
			event_id, terminal_id, session_id, operation, state,
			result_code, amount, balance, message, timestamp
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	err := r.db.Conn().Exec(ctx, query,
		op.EventID,
		op.TerminalID,
		op.SessionID,
		op.Operation,
		op.State,
		op.ResultCode,
		op.Amount,
		op.Balance,
		op.Message,
		op.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("failed to insert operation %s: %w", op.EventID, err)
	}

	return nil
}

// ListTerminalOperations retrieves operations for a terminal, most recent
// first, with optional pagination by event ID.
func (r *OperationRepository) ListTerminalOperations(
	ctx context.Context,
	terminalID string,
	limit int32,
	afterID string,
) ([]*models.TerminalOperation, error) {
	query := `
		SELECT
			event_id, terminal_id, session_id, operation, state,
			result_code, amount, balance, message, timestamp
		FROM terminal_operations
		WHERE terminal_id = ?
	`

	args := []interface{}{terminalID}

	if afterID != "" {
		query += " AND event_id > ?"
		args = append(args, afterID)
	}

	query += " ORDER BY timestamp DESC"

	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := r.db.Conn().Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query operations for terminal %s: %w", terminalID, err)
	}
	defer rows.Close()

	var operations []*models.TerminalOperation

	for rows.Next() {
		var op models.TerminalOperation

		err := rows.Scan(
			&op.EventID,
			&op.TerminalID,
			&op.SessionID,
			&op.Operation,
			&op.State,
			&op.ResultCode,
			&op.Amount,
			&op.Balance,
			&op.Message,
			&op.Timestamp,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan operation row: %w", err)
		}

		operations = append(operations, &op)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating operation rows: %w", err)
	}

	return operations, nil
}
