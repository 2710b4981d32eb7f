package entity

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// BudgetRequestStatus is the review lifecycle of a committed request.
type BudgetRequestStatus string

const (
	BudgetRequestStatusDraft    BudgetRequestStatus = "Draft"
	BudgetRequestStatusPending  BudgetRequestStatus = "Pending"
	BudgetRequestStatusApproved BudgetRequestStatus = "Approved"
	BudgetRequestStatusRejected BudgetRequestStatus = "Rejected"
	BudgetRequestStatusArchived BudgetRequestStatus = "Archived"
)

// BudgetRequest is the durable header-level record materialized from a
// committed import snapshot. Requests are created only by the commit
// transaction, never directly by clients.
type BudgetRequest struct {
	ID            uuid.UUID
	RequestNumber string
	Title         string
	Description   string

	Channel   string
	Owner     string
	Frequency string
	Vendor    string

	TotalAmount decimal.Decimal
	Currency    string

	Status BudgetRequestStatus

	FiscalYear    int
	FiscalQuarter *int

	ExtrasJSON string

	// ImportRunID links back to the run this request was committed from.
	ImportRunID *uuid.UUID

	CreatedBy string
	CreatedAt time.Time
	UpdatedAt time.Time

	Items []*BudgetItem
}

// BudgetItem is a durable line item owned by a BudgetRequest.
// BudgetRequestID is the sole back-reference.
type BudgetItem struct {
	ID              uuid.UUID
	BudgetRequestID uuid.UUID

	RowNumber       int
	LineDescription string
	Category        string
	SubCategory     string

	Amount    decimal.Decimal
	Quantity  *decimal.Decimal
	UnitPrice *decimal.Decimal

	CostCenter  string
	AccountCode string

	// Optional monthly allocation breakdown.
	Jan *decimal.Decimal
	Feb *decimal.Decimal
	Mar *decimal.Decimal
	Apr *decimal.Decimal
	May *decimal.Decimal
	Jun *decimal.Decimal
	Jul *decimal.Decimal
	Aug *decimal.Decimal
	Sep *decimal.Decimal
	Oct *decimal.Decimal
	Nov *decimal.Decimal
	Dec *decimal.Decimal

	ExtrasJSON string

	CreatedBy string
	CreatedAt time.Time
}
