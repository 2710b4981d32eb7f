package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/garyjia/budget-import/internal/application/port"
	"github.com/garyjia/budget-import/internal/domain/entity"
	"github.com/garyjia/budget-import/internal/infrastructure/persistence/repository"
)

// ErrRequestNotFound is returned when the referenced budget request does not
// exist.
var ErrRequestNotFound = errors.New("budget request not found")

// RequestService is the read side for committed budget requests.
type RequestService interface {
	List(ctx context.Context, limit, offset int) ([]*entity.BudgetRequest, error)
	Get(ctx context.Context, id uuid.UUID) (*entity.BudgetRequest, error)
}

type requestServiceImpl struct {
	requestRepo port.BudgetRequestRepository
	logger      *zap.Logger
}

// NewRequestService creates a new RequestService.
func NewRequestService(requestRepo port.BudgetRequestRepository, logger *zap.Logger) RequestService {
	return &requestServiceImpl{
		requestRepo: requestRepo,
		logger:      logger,
	}
}

// List returns request summaries without items, newest first.
func (s *requestServiceImpl) List(ctx context.Context, limit, offset int) ([]*entity.BudgetRequest, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	return s.requestRepo.List(ctx, limit, offset)
}

// Get returns one request with all of its items.
func (s *requestServiceImpl) Get(ctx context.Context, id uuid.UUID) (*entity.BudgetRequest, error) {
	req, err := s.requestRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrRequestNotFound, id)
		}
		return nil, err
	}
	return req, nil
}
