package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/garyjia/budget-import/internal/domain/entity"
)

// AuditLogRepository handles the append-only audit trail. Entries are
// inserted and read, never updated or deleted.
type AuditLogRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewAuditLogRepository creates a new audit log repository.
func NewAuditLogRepository(db *sql.DB, logger *zap.Logger) *AuditLogRepository {
	return &AuditLogRepository{
		db:     db,
		logger: logger,
	}
}

// Create appends an audit entry. When tx is non-nil the insert joins the
// caller's transaction.
func (r *AuditLogRepository) Create(ctx context.Context, tx *sql.Tx, log *entity.AuditLog) error {
	query := `
		INSERT INTO audit_logs (
			id, entity_type, entity_id, action,
			user_id, user_name, timestamp, payload_json
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	if log.ID == uuid.Nil {
		log.ID = uuid.New()
	}
	if log.Timestamp.IsZero() {
		log.Timestamp = time.Now().UTC()
	}

	args := []any{
		log.ID.String(),
		log.EntityType,
		log.EntityID.String(),
		log.Action,
		log.UserID,
		log.UserName,
		log.Timestamp,
		log.PayloadJSON,
	}

	var err error
	if tx != nil {
		_, err = tx.ExecContext(ctx, query, args...)
	} else {
		_, err = r.db.ExecContext(ctx, query, args...)
	}
	if err != nil {
		r.logger.Error("Failed to create audit log", zap.Error(err))
		return fmt.Errorf("failed to create audit log: %w", err)
	}
	return nil
}

// ListByEntity returns all audit entries for one entity, oldest first.
func (r *AuditLogRepository) ListByEntity(ctx context.Context, entityType string, entityID uuid.UUID) ([]*entity.AuditLog, error) {
	query := `
		SELECT id, entity_type, entity_id, action,
			user_id, user_name, timestamp, payload_json
		FROM audit_logs
		WHERE entity_type = ? AND entity_id = ?
		ORDER BY timestamp
	`

	rows, err := r.db.QueryContext(ctx, query, entityType, entityID.String())
	if err != nil {
		r.logger.Error("Failed to list audit logs", zap.Error(err))
		return nil, fmt.Errorf("failed to list audit logs: %w", err)
	}
	defer rows.Close()

	var logs []*entity.AuditLog
	for rows.Next() {
		var log entity.AuditLog
		var id, eid string
		err := rows.Scan(
			&id,
			&log.EntityType,
			&eid,
			&log.Action,
			&log.UserID,
			&log.UserName,
			&log.Timestamp,
			&log.PayloadJSON,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan audit log: %w", err)
		}
		if log.ID, err = uuid.Parse(id); err != nil {
			return nil, fmt.Errorf("invalid audit log id %q: %w", id, err)
		}
		if log.EntityID, err = uuid.Parse(eid); err != nil {
			return nil, fmt.Errorf("invalid entity id %q: %w", eid, err)
		}
		logs = append(logs, &log)
	}
	return logs, rows.Err()
}
