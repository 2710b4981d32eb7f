package entity

import (
	"time"

	"github.com/google/uuid"

	"github.com/garyjia/budget-import/internal/domain/workflow"
)

// ImportRun tracks one attempt to bring a budget workbook into the system,
// from upload through commit. The run is the exclusive owner of its parsed
// snapshot: the three JSON columns are written once per successful parse and
// never partially updated.
type ImportRun struct {
	ID uuid.UUID

	FileName      string
	StoragePath   string
	FileSizeBytes int64
	ContentType   string

	Status       workflow.State
	ErrorMessage string

	ParsedHeaderJSON     string
	ParsedItemsJSON      string
	ValidationIssuesJSON string
	ParsedRowCount       int
	ErrorCount           int

	ParsedAt    *time.Time
	CommittedAt *time.Time

	// BudgetRequestID is set exactly once, when commit succeeds. It is
	// non-nil if and only if Status is Committed.
	BudgetRequestID *uuid.UUID

	CreatedBy string
	CreatedAt time.Time
	UpdatedAt time.Time
}
