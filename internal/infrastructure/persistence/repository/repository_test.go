package repository

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/garyjia/budget-import/internal/domain/entity"
	"github.com/garyjia/budget-import/internal/domain/workflow"
	"github.com/garyjia/budget-import/pkg/database"
)

// openTestDB opens a throwaway sqlite database with the real migrations
// applied, so the tests exercise the actual schema.
func openTestDB(t *testing.T) *database.DB {
	t.Helper()

	db, err := database.New(database.Config{
		Path:         filepath.Join(t.TempDir(), "test.db"),
		MaxOpenConns: 1,
		MaxIdleConns: 1,
	}, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	migrator := database.NewMigrator(db, zap.NewNop())
	require.NoError(t, migrator.RunMigrations(filepath.Join("..", "..", "..", "..", "migrations")))
	return db
}

func newRun(fileName string) *entity.ImportRun {
	return &entity.ImportRun{
		ID:            uuid.New(),
		FileName:      fileName,
		StoragePath:   "2026/08/" + fileName,
		FileSizeBytes: 128,
		ContentType:   "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
		Status:        workflow.StateUploaded,
		CreatedBy:     "alice",
	}
}

func TestImportRunCreateAndGet(t *testing.T) {
	db := openTestDB(t)
	repo := NewImportRunRepository(db.DB, zap.NewNop())
	ctx := context.Background()

	run := newRun("budget.xlsx")
	require.NoError(t, repo.Create(ctx, run))

	got, err := repo.GetByID(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, run.ID, got.ID)
	assert.Equal(t, "budget.xlsx", got.FileName)
	assert.Equal(t, workflow.StateUploaded, got.Status)
	assert.Equal(t, int64(128), got.FileSizeBytes)
	assert.Equal(t, "alice", got.CreatedBy)
	assert.Nil(t, got.ParsedAt)
	assert.Nil(t, got.BudgetRequestID)
}

func TestImportRunGetUnknown(t *testing.T) {
	db := openTestDB(t)
	repo := NewImportRunRepository(db.DB, zap.NewNop())

	_, err := repo.GetByID(context.Background(), uuid.New())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestImportRunSaveParseResult(t *testing.T) {
	db := openTestDB(t)
	repo := NewImportRunRepository(db.DB, zap.NewNop())
	ctx := context.Background()

	run := newRun("budget.xlsx")
	require.NoError(t, repo.Create(ctx, run))

	now := time.Now().UTC()
	run.Status = workflow.StateParsed
	run.ParsedHeaderJSON = `{"title":"Q3"}`
	run.ParsedItemsJSON = `[{"rowNumber":1}]`
	run.ValidationIssuesJSON = `[]`
	run.ParsedRowCount = 1
	run.ErrorCount = 0
	run.ParsedAt = &now
	require.NoError(t, repo.SaveParseResult(ctx, run))

	got, err := repo.GetByID(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, workflow.StateParsed, got.Status)
	assert.Equal(t, `{"title":"Q3"}`, got.ParsedHeaderJSON)
	assert.Equal(t, 1, got.ParsedRowCount)
	require.NotNil(t, got.ParsedAt)
	assert.WithinDuration(t, now, *got.ParsedAt, time.Second)
}

func TestImportRunUpdateStatusIf(t *testing.T) {
	db := openTestDB(t)
	repo := NewImportRunRepository(db.DB, zap.NewNop())
	ctx := context.Background()

	run := newRun("budget.xlsx")
	run.Status = workflow.StateParsed
	require.NoError(t, repo.Create(ctx, run))

	// First caller wins the move into Committing.
	require.NoError(t, repo.UpdateStatusIf(ctx, run.ID, workflow.StateParsed, workflow.StateCommitting))

	// Second caller sees the row already moved and gets a conflict.
	err := repo.UpdateStatusIf(ctx, run.ID, workflow.StateParsed, workflow.StateCommitting)
	assert.ErrorIs(t, err, ErrStatusConflict)

	got, err := repo.GetByID(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, workflow.StateCommitting, got.Status)
}

func TestImportRunMarkFailed(t *testing.T) {
	db := openTestDB(t)
	repo := NewImportRunRepository(db.DB, zap.NewNop())
	ctx := context.Background()

	run := newRun("broken.xlsx")
	require.NoError(t, repo.Create(ctx, run))
	require.NoError(t, repo.MarkFailed(ctx, run.ID, workflow.StateParseFailed, "not a workbook"))

	got, err := repo.GetByID(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, workflow.StateParseFailed, got.Status)
	assert.Equal(t, "not a workbook", got.ErrorMessage)
}

func TestImportRunList(t *testing.T) {
	db := openTestDB(t)
	repo := NewImportRunRepository(db.DB, zap.NewNop())
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		require.NoError(t, repo.Create(ctx, newRun("f.xlsx")))
	}

	runs, err := repo.List(ctx, 2, 0)
	require.NoError(t, err)
	assert.Len(t, runs, 2)
}

func decP(s string) *decimal.Decimal {
	d := decimal.RequireFromString(s)
	return &d
}

func TestCommitTransactionRoundTrip(t *testing.T) {
	db := openTestDB(t)
	runRepo := NewImportRunRepository(db.DB, zap.NewNop())
	reqRepo := NewBudgetRequestRepository(db.DB, zap.NewNop())
	auditRepo := NewAuditLogRepository(db.DB, zap.NewNop())
	ctx := context.Background()

	run := newRun("budget.xlsx")
	run.Status = workflow.StateCommitting
	require.NoError(t, runRepo.Create(ctx, run))

	quarter := 3
	req := &entity.BudgetRequest{
		ID:            uuid.New(),
		RequestNumber: "BR-20260831-CAFE0001",
		Title:         "Q3 Media Budget",
		Description:   "Quarterly media spend",
		Channel:       "Online",
		Owner:         "alex",
		Vendor:        "AdCo",
		TotalAmount:   decimal.RequireFromString("150.25"),
		Currency:      "EUR",
		Status:        entity.BudgetRequestStatusDraft,
		FiscalYear:    2026,
		FiscalQuarter: &quarter,
		ImportRunID:   &run.ID,
		CreatedBy:     "bob",
	}
	items := []*entity.BudgetItem{
		{
			ID:              uuid.New(),
			BudgetRequestID: req.ID,
			RowNumber:       1,
			LineDescription: "Display ads",
			Category:        "Media",
			Amount:          decimal.RequireFromString("100.25"),
			Quantity:        decP("2"),
			UnitPrice:       decP("50.125"),
			Jan:             decP("33.42"),
			CreatedBy:       "bob",
		},
		{
			ID:              uuid.New(),
			BudgetRequestID: req.ID,
			RowNumber:       2,
			LineDescription: "Search ads",
			Amount:          decimal.RequireFromString("50.00"),
			CreatedBy:       "bob",
		},
	}

	committedAt := time.Now().UTC()
	err := db.WithTransaction(func(tx *sql.Tx) error {
		if err := reqRepo.CreateWithItems(ctx, tx, req, items); err != nil {
			return err
		}
		if err := runRepo.MarkCommitted(ctx, tx, run.ID, req.ID, committedAt); err != nil {
			return err
		}
		return auditRepo.Create(ctx, tx, &entity.AuditLog{
			EntityType:  "BudgetRequest",
			EntityID:    req.ID,
			Action:      "Created",
			UserID:      "bob",
			PayloadJSON: `{"source":"Import"}`,
		})
	})
	require.NoError(t, err)

	gotReq, err := reqRepo.GetByID(ctx, req.ID)
	require.NoError(t, err)
	assert.Equal(t, "BR-20260831-CAFE0001", gotReq.RequestNumber)
	assert.True(t, decimal.RequireFromString("150.25").Equal(gotReq.TotalAmount))
	assert.Equal(t, "EUR", gotReq.Currency)
	require.NotNil(t, gotReq.FiscalQuarter)
	assert.Equal(t, 3, *gotReq.FiscalQuarter)
	require.NotNil(t, gotReq.ImportRunID)
	assert.Equal(t, run.ID, *gotReq.ImportRunID)

	require.Len(t, gotReq.Items, 2)
	first := gotReq.Items[0]
	assert.Equal(t, 1, first.RowNumber)
	assert.True(t, decimal.RequireFromString("100.25").Equal(first.Amount))
	require.NotNil(t, first.UnitPrice)
	assert.Equal(t, "50.125", first.UnitPrice.String())
	require.NotNil(t, first.Jan)
	assert.Equal(t, "33.42", first.Jan.String())
	assert.Nil(t, first.Feb)
	assert.Nil(t, gotReq.Items[1].Quantity)

	gotRun, err := runRepo.GetByID(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, workflow.StateCommitted, gotRun.Status)
	require.NotNil(t, gotRun.BudgetRequestID)
	assert.Equal(t, req.ID, *gotRun.BudgetRequestID)
	require.NotNil(t, gotRun.CommittedAt)

	logs, err := auditRepo.ListByEntity(ctx, "BudgetRequest", req.ID)
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, "Created", logs[0].Action)
	assert.Equal(t, "bob", logs[0].UserID)
}

func TestCommitTransactionRollsBackTogether(t *testing.T) {
	db := openTestDB(t)
	runRepo := NewImportRunRepository(db.DB, zap.NewNop())
	reqRepo := NewBudgetRequestRepository(db.DB, zap.NewNop())
	ctx := context.Background()

	run := newRun("budget.xlsx")
	run.Status = workflow.StateCommitting
	require.NoError(t, runRepo.Create(ctx, run))

	req := &entity.BudgetRequest{
		ID:            uuid.New(),
		RequestNumber: "BR-20260831-00000001",
		Title:         "Doomed",
		TotalAmount:   decimal.Zero,
		Currency:      "USD",
		Status:        entity.BudgetRequestStatusDraft,
		FiscalYear:    2026,
	}

	err := db.WithTransaction(func(tx *sql.Tx) error {
		if err := reqRepo.CreateWithItems(ctx, tx, req, nil); err != nil {
			return err
		}
		if err := runRepo.MarkCommitted(ctx, tx, run.ID, req.ID, time.Now().UTC()); err != nil {
			return err
		}
		// Duplicate request number violates the unique constraint and must
		// unwind the run linkage above.
		dup := *req
		dup.ID = uuid.New()
		return reqRepo.CreateWithItems(ctx, tx, &dup, nil)
	})
	require.Error(t, err)

	_, err = reqRepo.GetByID(ctx, req.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	gotRun, err := runRepo.GetByID(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, workflow.StateCommitting, gotRun.Status)
	assert.Nil(t, gotRun.BudgetRequestID)
}

func TestBudgetRequestGetUnknown(t *testing.T) {
	db := openTestDB(t)
	repo := NewBudgetRequestRepository(db.DB, zap.NewNop())

	_, err := repo.GetByID(context.Background(), uuid.New())
	assert.ErrorIs(t, err, ErrNotFound)
}
