package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/garyjia/budget-import/internal/domain/entity"
)

// BudgetRequestRepository handles budget request and item database
// operations. Amounts are stored as decimal strings so they round-trip
// without floating point loss.
type BudgetRequestRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewBudgetRequestRepository creates a new budget request repository.
func NewBudgetRequestRepository(db *sql.DB, logger *zap.Logger) *BudgetRequestRepository {
	return &BudgetRequestRepository{
		db:     db,
		logger: logger,
	}
}

// CreateWithItems inserts a request and all of its items inside the caller's
// transaction. The commit transactor is the only caller; requests are never
// created by any other path.
func (r *BudgetRequestRepository) CreateWithItems(ctx context.Context, tx *sql.Tx, req *entity.BudgetRequest, items []*entity.BudgetItem) error {
	query := `
		INSERT INTO budget_requests (
			id, request_number, title, description,
			channel, owner, frequency, vendor,
			total_amount, currency, status,
			fiscal_year, fiscal_quarter, extras_json,
			import_run_id, created_by, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	now := time.Now().UTC()
	req.CreatedAt = now
	req.UpdatedAt = now

	var importRunID any
	if req.ImportRunID != nil {
		importRunID = req.ImportRunID.String()
	}

	_, err := tx.ExecContext(ctx, query,
		req.ID.String(),
		req.RequestNumber,
		req.Title,
		req.Description,
		req.Channel,
		req.Owner,
		req.Frequency,
		req.Vendor,
		req.TotalAmount.String(),
		req.Currency,
		string(req.Status),
		req.FiscalYear,
		req.FiscalQuarter,
		req.ExtrasJSON,
		importRunID,
		req.CreatedBy,
		req.CreatedAt,
		req.UpdatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to create budget request", zap.Error(err))
		return fmt.Errorf("failed to create budget request: %w", err)
	}

	itemQuery := `
		INSERT INTO budget_items (
			id, budget_request_id, row_number,
			line_description, category, sub_category,
			amount, quantity, unit_price, cost_center, account_code,
			jan, feb, mar, apr, may, jun, jul, aug, sep, oct, nov, dec,
			extras_json, created_by, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	for _, item := range items {
		item.CreatedAt = now
		_, err := tx.ExecContext(ctx, itemQuery,
			item.ID.String(),
			item.BudgetRequestID.String(),
			item.RowNumber,
			item.LineDescription,
			item.Category,
			item.SubCategory,
			item.Amount.String(),
			decimalString(item.Quantity),
			decimalString(item.UnitPrice),
			item.CostCenter,
			item.AccountCode,
			decimalString(item.Jan),
			decimalString(item.Feb),
			decimalString(item.Mar),
			decimalString(item.Apr),
			decimalString(item.May),
			decimalString(item.Jun),
			decimalString(item.Jul),
			decimalString(item.Aug),
			decimalString(item.Sep),
			decimalString(item.Oct),
			decimalString(item.Nov),
			decimalString(item.Dec),
			item.ExtrasJSON,
			item.CreatedBy,
			item.CreatedAt,
		)
		if err != nil {
			r.logger.Error("Failed to create budget item",
				zap.Int("row_number", item.RowNumber),
				zap.Error(err))
			return fmt.Errorf("failed to create budget item (row %d): %w", item.RowNumber, err)
		}
	}

	return nil
}

// GetByID retrieves a budget request with its items, or ErrNotFound.
func (r *BudgetRequestRepository) GetByID(ctx context.Context, id uuid.UUID) (*entity.BudgetRequest, error) {
	query := `
		SELECT id, request_number, title, description,
			channel, owner, frequency, vendor,
			total_amount, currency, status,
			fiscal_year, fiscal_quarter, extras_json,
			import_run_id, created_by, created_at, updated_at
		FROM budget_requests
		WHERE id = ?
	`

	req, err := r.scanRequest(r.db.QueryRowContext(ctx, query, id.String()))
	if err != nil {
		return nil, err
	}

	items, err := r.getItems(ctx, id)
	if err != nil {
		return nil, err
	}
	req.Items = items
	return req, nil
}

// List returns budget requests ordered by creation time, newest first,
// without items.
func (r *BudgetRequestRepository) List(ctx context.Context, limit, offset int) ([]*entity.BudgetRequest, error) {
	query := `
		SELECT id, request_number, title, description,
			channel, owner, frequency, vendor,
			total_amount, currency, status,
			fiscal_year, fiscal_quarter, extras_json,
			import_run_id, created_by, created_at, updated_at
		FROM budget_requests
		ORDER BY created_at DESC
		LIMIT ? OFFSET ?
	`

	rows, err := r.db.QueryContext(ctx, query, limit, offset)
	if err != nil {
		r.logger.Error("Failed to list budget requests", zap.Error(err))
		return nil, fmt.Errorf("failed to list budget requests: %w", err)
	}
	defer rows.Close()

	var requests []*entity.BudgetRequest
	for rows.Next() {
		req, err := r.scanRequest(rows)
		if err != nil {
			return nil, err
		}
		requests = append(requests, req)
	}
	return requests, rows.Err()
}

func (r *BudgetRequestRepository) getItems(ctx context.Context, requestID uuid.UUID) ([]*entity.BudgetItem, error) {
	query := `
		SELECT id, budget_request_id, row_number,
			line_description, category, sub_category,
			amount, quantity, unit_price, cost_center, account_code,
			jan, feb, mar, apr, may, jun, jul, aug, sep, oct, nov, dec,
			extras_json, created_by, created_at
		FROM budget_items
		WHERE budget_request_id = ?
		ORDER BY row_number
	`

	rows, err := r.db.QueryContext(ctx, query, requestID.String())
	if err != nil {
		r.logger.Error("Failed to get budget items", zap.Error(err))
		return nil, fmt.Errorf("failed to get budget items: %w", err)
	}
	defer rows.Close()

	var items []*entity.BudgetItem
	for rows.Next() {
		var item entity.BudgetItem
		var id, reqID, amount string
		var quantity, unitPrice sql.NullString
		months := make([]sql.NullString, 12)

		err := rows.Scan(
			&id,
			&reqID,
			&item.RowNumber,
			&item.LineDescription,
			&item.Category,
			&item.SubCategory,
			&amount,
			&quantity,
			&unitPrice,
			&item.CostCenter,
			&item.AccountCode,
			&months[0], &months[1], &months[2], &months[3],
			&months[4], &months[5], &months[6], &months[7],
			&months[8], &months[9], &months[10], &months[11],
			&item.ExtrasJSON,
			&item.CreatedBy,
			&item.CreatedAt,
		)
		if err != nil {
			r.logger.Error("Failed to scan budget item", zap.Error(err))
			return nil, fmt.Errorf("failed to scan budget item: %w", err)
		}

		item.ID, err = uuid.Parse(id)
		if err != nil {
			return nil, fmt.Errorf("invalid budget item id %q: %w", id, err)
		}
		item.BudgetRequestID, err = uuid.Parse(reqID)
		if err != nil {
			return nil, fmt.Errorf("invalid budget request id %q: %w", reqID, err)
		}
		item.Amount, err = decimal.NewFromString(amount)
		if err != nil {
			return nil, fmt.Errorf("invalid amount %q: %w", amount, err)
		}
		if item.Quantity, err = scanDecimal(quantity); err != nil {
			return nil, err
		}
		if item.UnitPrice, err = scanDecimal(unitPrice); err != nil {
			return nil, err
		}
		monthPtrs := []**decimal.Decimal{
			&item.Jan, &item.Feb, &item.Mar, &item.Apr,
			&item.May, &item.Jun, &item.Jul, &item.Aug,
			&item.Sep, &item.Oct, &item.Nov, &item.Dec,
		}
		for i, ptr := range monthPtrs {
			if *ptr, err = scanDecimal(months[i]); err != nil {
				return nil, err
			}
		}

		items = append(items, &item)
	}
	return items, rows.Err()
}

func (r *BudgetRequestRepository) scanRequest(row rowScanner) (*entity.BudgetRequest, error) {
	var req entity.BudgetRequest
	var id, totalAmount, status string
	var fiscalQuarter sql.NullInt64
	var importRunID sql.NullString

	err := row.Scan(
		&id,
		&req.RequestNumber,
		&req.Title,
		&req.Description,
		&req.Channel,
		&req.Owner,
		&req.Frequency,
		&req.Vendor,
		&totalAmount,
		&req.Currency,
		&status,
		&req.FiscalYear,
		&fiscalQuarter,
		&req.ExtrasJSON,
		&importRunID,
		&req.CreatedBy,
		&req.CreatedAt,
		&req.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		r.logger.Error("Failed to scan budget request", zap.Error(err))
		return nil, fmt.Errorf("failed to scan budget request: %w", err)
	}

	req.ID, err = uuid.Parse(id)
	if err != nil {
		return nil, fmt.Errorf("invalid budget request id %q: %w", id, err)
	}
	req.TotalAmount, err = decimal.NewFromString(totalAmount)
	if err != nil {
		return nil, fmt.Errorf("invalid total amount %q: %w", totalAmount, err)
	}
	req.Status = entity.BudgetRequestStatus(status)
	if fiscalQuarter.Valid {
		q := int(fiscalQuarter.Int64)
		req.FiscalQuarter = &q
	}
	if importRunID.Valid {
		runID, err := uuid.Parse(importRunID.String)
		if err != nil {
			return nil, fmt.Errorf("invalid import run id %q: %w", importRunID.String, err)
		}
		req.ImportRunID = &runID
	}
	return &req, nil
}

func decimalString(d *decimal.Decimal) any {
	if d == nil {
		return nil
	}
	return d.String()
}

func scanDecimal(s sql.NullString) (*decimal.Decimal, error) {
	if !s.Valid || s.String == "" {
		return nil, nil
	}
	d, err := decimal.NewFromString(s.String)
	if err != nil {
		return nil, fmt.Errorf("invalid decimal %q: %w", s.String, err)
	}
	return &d, nil
}
