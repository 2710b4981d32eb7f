package entity

import (
	"time"

	"github.com/google/uuid"
)

// AuditLog is an append-only trail entry. Entries are written once and never
// mutated or deleted by this service.
type AuditLog struct {
	ID uuid.UUID

	EntityType string
	EntityID   uuid.UUID
	Action     string

	UserID   string
	UserName string

	Timestamp time.Time

	// PayloadJSON carries relevant context, e.g. import provenance.
	PayloadJSON string
}
