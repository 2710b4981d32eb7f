package port

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/garyjia/budget-import/internal/domain/entity"
	"github.com/garyjia/budget-import/internal/domain/workflow"
)

// ImportRunRepository defines persistence operations for ImportRun.
type ImportRunRepository interface {
	Create(ctx context.Context, run *entity.ImportRun) error
	GetByID(ctx context.Context, id uuid.UUID) (*entity.ImportRun, error)
	List(ctx context.Context, limit, offset int) ([]*entity.ImportRun, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status workflow.State) error

	// UpdateStatusIf performs an atomic conditional status move and fails
	// with a conflict when the run is no longer in the expected status.
	UpdateStatusIf(ctx context.Context, id uuid.UUID, from, to workflow.State) error

	SaveParseResult(ctx context.Context, run *entity.ImportRun) error
	MarkCommitted(ctx context.Context, tx *sql.Tx, id, requestID uuid.UUID, at time.Time) error
	MarkFailed(ctx context.Context, id uuid.UUID, status workflow.State, message string) error
}

// BudgetRequestRepository defines persistence operations for BudgetRequest.
type BudgetRequestRepository interface {
	CreateWithItems(ctx context.Context, tx *sql.Tx, req *entity.BudgetRequest, items []*entity.BudgetItem) error
	GetByID(ctx context.Context, id uuid.UUID) (*entity.BudgetRequest, error)
	List(ctx context.Context, limit, offset int) ([]*entity.BudgetRequest, error)
}

// AuditLogRepository defines persistence operations for AuditLog.
type AuditLogRepository interface {
	Create(ctx context.Context, tx *sql.Tx, log *entity.AuditLog) error
	ListByEntity(ctx context.Context, entityType string, entityID uuid.UUID) ([]*entity.AuditLog, error)
}

// Transactor runs a function inside a single database transaction.
type Transactor interface {
	WithTransaction(fn func(*sql.Tx) error) error
}
