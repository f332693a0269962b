package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/atmsim/terminal/internal/models"
)

// ErrInvalidRequest marks request validation failures so transports can map
// them to client errors.
var ErrInvalidRequest = errors.New("invalid request")

// OperationRepository defines the interface for operation data access.
type OperationRepository interface {
	InsertOperation(ctx context.Context, op *models.TerminalOperation) error
	ListTerminalOperations(ctx context.Context, terminalID string, limit int32, afterID string) ([]*models.TerminalOperation, error)
}

// OperationPage is one page of terminal operation history.
type OperationPage struct {
	Content []*models.TerminalOperation
	AfterID string
}

// AnalyticsService serves terminal operation history queries.
type AnalyticsService struct {
	repo OperationRepository
}

// NewAnalyticsService creates a new analytics service.
func NewAnalyticsService(repo OperationRepository) *AnalyticsService {
	return &AnalyticsService{
		repo: repo,
	}
}

// ListTerminalOperations returns operation history for a terminal with
// pagination. The returned after ID is the last event ID of the page and can
// be passed back to fetch the next one.
func (s *AnalyticsService) ListTerminalOperations(
	ctx context.Context,
	terminalID string,
	limit int32,
	afterID string,
) (*OperationPage, error) {
	if terminalID == "" {
		return nil, fmt.Errorf("%w: terminal_id is required", ErrInvalidRequest)
	}
	if limit < 0 {
		return nil, fmt.Errorf("%w: limit cannot be negative", ErrInvalidRequest)
	}

	operations, err := s.repo.ListTerminalOperations(ctx, terminalID, limit, afterID)
	if err != nil {
		return nil, fmt.Errorf("failed to list operations: %w", err)
	}

	var lastID string
	if len(operations) > 0 {
		lastID = operations[len(operations)-1].EventID
	}

	return &OperationPage{
		Content: operations,
		AfterID: lastID,
	}, nil
}
