package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/garyjia/budget-import/internal/domain/entity"
	"github.com/garyjia/budget-import/internal/domain/workflow"
)

// ImportRunRepository handles import run database operations. The run row is
// the single source of truth for the import state machine, so every status
// write goes through one of the Update* methods here.
type ImportRunRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewImportRunRepository creates a new import run repository.
func NewImportRunRepository(db *sql.DB, logger *zap.Logger) *ImportRunRepository {
	return &ImportRunRepository{
		db:     db,
		logger: logger,
	}
}

// Create inserts a new import run record.
func (r *ImportRunRepository) Create(ctx context.Context, run *entity.ImportRun) error {
	query := `
		INSERT INTO import_runs (
			id, file_name, storage_path, file_size_bytes, content_type,
			status, created_by, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	now := time.Now().UTC()
	run.CreatedAt = now
	run.UpdatedAt = now

	_, err := r.db.ExecContext(ctx, query,
		run.ID.String(),
		run.FileName,
		run.StoragePath,
		run.FileSizeBytes,
		run.ContentType,
		run.Status.String(),
		run.CreatedBy,
		run.CreatedAt,
		run.UpdatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to create import run", zap.Error(err))
		return fmt.Errorf("failed to create import run: %w", err)
	}
	return nil
}

// GetByID retrieves an import run, or ErrNotFound.
func (r *ImportRunRepository) GetByID(ctx context.Context, id uuid.UUID) (*entity.ImportRun, error) {
	query := `
		SELECT id, file_name, storage_path, file_size_bytes, content_type,
			status, error_message,
			parsed_header_json, parsed_items_json, validation_issues_json,
			parsed_row_count, error_count,
			parsed_at, committed_at, budget_request_id,
			created_by, created_at, updated_at
		FROM import_runs
		WHERE id = ?
	`
	return r.scanRun(r.db.QueryRowContext(ctx, query, id.String()))
}

// List returns import runs ordered by creation time, newest first.
func (r *ImportRunRepository) List(ctx context.Context, limit, offset int) ([]*entity.ImportRun, error) {
	query := `
		SELECT id, file_name, storage_path, file_size_bytes, content_type,
			status, error_message,
			parsed_header_json, parsed_items_json, validation_issues_json,
			parsed_row_count, error_count,
			parsed_at, committed_at, budget_request_id,
			created_by, created_at, updated_at
		FROM import_runs
		ORDER BY created_at DESC
		LIMIT ? OFFSET ?
	`

	rows, err := r.db.QueryContext(ctx, query, limit, offset)
	if err != nil {
		r.logger.Error("Failed to list import runs", zap.Error(err))
		return nil, fmt.Errorf("failed to list import runs: %w", err)
	}
	defer rows.Close()

	var runs []*entity.ImportRun
	for rows.Next() {
		run, err := r.scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// UpdateStatus sets the run status unconditionally.
func (r *ImportRunRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status workflow.State) error {
	query := `UPDATE import_runs SET status = ?, updated_at = ? WHERE id = ?`

	res, err := r.db.ExecContext(ctx, query, status.String(), time.Now().UTC(), id.String())
	if err != nil {
		r.logger.Error("Failed to update import run status", zap.Error(err))
		return fmt.Errorf("failed to update status: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

// UpdateStatusIf moves the run from one status to another in a single
// conditional UPDATE. When the row is no longer in the expected prior
// status it returns ErrStatusConflict and changes nothing, so two
// concurrent commit attempts cannot both enter Committing.
func (r *ImportRunRepository) UpdateStatusIf(ctx context.Context, id uuid.UUID, from, to workflow.State) error {
	query := `UPDATE import_runs SET status = ?, updated_at = ? WHERE id = ? AND status = ?`

	res, err := r.db.ExecContext(ctx, query, to.String(), time.Now().UTC(), id.String(), from.String())
	if err != nil {
		r.logger.Error("Failed to update import run status", zap.Error(err))
		return fmt.Errorf("failed to update status: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: import run %s is not in status %s", ErrStatusConflict, id, from)
	}
	return nil
}

// SaveParseResult writes the full parse outcome: snapshot blobs, counts,
// timestamps and the new status, in one statement.
func (r *ImportRunRepository) SaveParseResult(ctx context.Context, run *entity.ImportRun) error {
	query := `
		UPDATE import_runs SET
			status = ?,
			error_message = ?,
			parsed_header_json = ?,
			parsed_items_json = ?,
			validation_issues_json = ?,
			parsed_row_count = ?,
			error_count = ?,
			parsed_at = ?,
			updated_at = ?
		WHERE id = ?
	`

	run.UpdatedAt = time.Now().UTC()
	_, err := r.db.ExecContext(ctx, query,
		run.Status.String(),
		run.ErrorMessage,
		run.ParsedHeaderJSON,
		run.ParsedItemsJSON,
		run.ValidationIssuesJSON,
		run.ParsedRowCount,
		run.ErrorCount,
		run.ParsedAt,
		run.UpdatedAt,
		run.ID.String(),
	)
	if err != nil {
		r.logger.Error("Failed to save parse result", zap.Error(err))
		return fmt.Errorf("failed to save parse result: %w", err)
	}
	return nil
}

// MarkCommitted links the run to its budget request and finalizes the
// Committed status. It runs inside the commit transaction so the request
// insert and the run linkage succeed or fail together.
func (r *ImportRunRepository) MarkCommitted(ctx context.Context, tx *sql.Tx, id, requestID uuid.UUID, at time.Time) error {
	query := `
		UPDATE import_runs SET
			status = ?,
			budget_request_id = ?,
			committed_at = ?,
			updated_at = ?
		WHERE id = ?
	`

	_, err := tx.ExecContext(ctx, query,
		workflow.StateCommitted.String(),
		requestID.String(),
		at,
		time.Now().UTC(),
		id.String(),
	)
	if err != nil {
		r.logger.Error("Failed to mark import run committed", zap.Error(err))
		return fmt.Errorf("failed to mark committed: %w", err)
	}
	return nil
}

// MarkFailed records a failure status with its message.
func (r *ImportRunRepository) MarkFailed(ctx context.Context, id uuid.UUID, status workflow.State, message string) error {
	query := `UPDATE import_runs SET status = ?, error_message = ?, updated_at = ? WHERE id = ?`

	_, err := r.db.ExecContext(ctx, query, status.String(), message, time.Now().UTC(), id.String())
	if err != nil {
		r.logger.Error("Failed to mark import run failed", zap.Error(err))
		return fmt.Errorf("failed to mark failed: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (r *ImportRunRepository) scanRun(row rowScanner) (*entity.ImportRun, error) {
	var run entity.ImportRun
	var id string
	var status string
	var contentType, errorMessage sql.NullString
	var headerJSON, itemsJSON, issuesJSON sql.NullString
	var rowCount, errorCount sql.NullInt64
	var parsedAt, committedAt sql.NullTime
	var budgetRequestID sql.NullString

	err := row.Scan(
		&id,
		&run.FileName,
		&run.StoragePath,
		&run.FileSizeBytes,
		&contentType,
		&status,
		&errorMessage,
		&headerJSON,
		&itemsJSON,
		&issuesJSON,
		&rowCount,
		&errorCount,
		&parsedAt,
		&committedAt,
		&budgetRequestID,
		&run.CreatedBy,
		&run.CreatedAt,
		&run.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		r.logger.Error("Failed to scan import run", zap.Error(err))
		return nil, fmt.Errorf("failed to scan import run: %w", err)
	}

	run.ID, err = uuid.Parse(id)
	if err != nil {
		return nil, fmt.Errorf("invalid import run id %q: %w", id, err)
	}
	run.Status = workflow.State(status)
	run.ContentType = contentType.String
	run.ErrorMessage = errorMessage.String
	run.ParsedHeaderJSON = headerJSON.String
	run.ParsedItemsJSON = itemsJSON.String
	run.ValidationIssuesJSON = issuesJSON.String
	run.ParsedRowCount = int(rowCount.Int64)
	run.ErrorCount = int(errorCount.Int64)
	if parsedAt.Valid {
		t := parsedAt.Time
		run.ParsedAt = &t
	}
	if committedAt.Valid {
		t := committedAt.Time
		run.CommittedAt = &t
	}
	if budgetRequestID.Valid {
		reqID, err := uuid.Parse(budgetRequestID.String)
		if err != nil {
			return nil, fmt.Errorf("invalid budget request id %q: %w", budgetRequestID.String, err)
		}
		run.BudgetRequestID = &reqID
	}
	return &run, nil
}
