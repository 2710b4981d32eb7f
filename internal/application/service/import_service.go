package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/garyjia/budget-import/internal/application/port"
	"github.com/garyjia/budget-import/internal/domain/entity"
	"github.com/garyjia/budget-import/internal/domain/workflow"
	"github.com/garyjia/budget-import/internal/infrastructure/persistence/repository"
	"github.com/garyjia/budget-import/internal/validate"
)

var (
	// ErrImportRunNotFound is returned when the referenced run does not exist.
	ErrImportRunNotFound = errors.New("import run not found")

	// ErrNotCommittable is returned when commit is requested on a run whose
	// status is not Parsed.
	ErrNotCommittable = errors.New("import run is not in a committable state")

	// ErrValidationErrors is returned when commit is requested on a run that
	// still has blocking validation errors.
	ErrValidationErrors = errors.New("cannot commit import with validation errors")

	// ErrCommitConflict is returned when another commit for the same run won
	// the race into Committing.
	ErrCommitConflict = errors.New("import run is already being committed")
)

// UploadResult reports the outcome of an upload, including a failed parse:
// parse failures are carried in Status, they are not errors at this boundary.
type UploadResult struct {
	ImportRunID   uuid.UUID      `json:"importRunId"`
	FileName      string         `json:"fileName"`
	FileSizeBytes int64          `json:"fileSizeBytes"`
	Status        workflow.State `json:"status"`
	ErrorMessage  string         `json:"errorMessage,omitempty"`
}

// ImportPreview is the reviewable snapshot of a parsed run.
type ImportPreview struct {
	ImportRunID uuid.UUID                `json:"importRunId"`
	FileName    string                   `json:"fileName"`
	Status      workflow.State           `json:"status"`
	Header      *entity.ParsedHeader     `json:"header,omitempty"`
	Items       []entity.ParsedItem      `json:"items"`
	Issues      []entity.ValidationIssue `json:"issues"`
	CanCommit   bool                     `json:"canCommit"`
}

// CommitResult reports a successful commit.
type CommitResult struct {
	ImportRunID     uuid.UUID `json:"importRunId"`
	BudgetRequestID uuid.UUID `json:"budgetRequestId"`
	RequestNumber   string    `json:"requestNumber"`
	ItemCount       int       `json:"itemCount"`
}

// ImportService drives an import run through its lifecycle: upload and
// parse, preview, and the atomic commit into durable records. The actor
// performing each operation is always an explicit parameter.
type ImportService interface {
	Upload(ctx context.Context, content []byte, fileName, contentType, actor string) (*UploadResult, error)
	Preview(ctx context.Context, id uuid.UUID) (*ImportPreview, error)
	Commit(ctx context.Context, id uuid.UUID, actor string) (*CommitResult, error)
}

type importServiceImpl struct {
	runRepo     port.ImportRunRepository
	requestRepo port.BudgetRequestRepository
	auditRepo   port.AuditLogRepository
	storage     port.FileStorage
	parser      port.BudgetFileParser
	tx          port.Transactor
	logger      *zap.Logger
}

// NewImportService creates a new ImportService.
func NewImportService(
	runRepo port.ImportRunRepository,
	requestRepo port.BudgetRequestRepository,
	auditRepo port.AuditLogRepository,
	storage port.FileStorage,
	parser port.BudgetFileParser,
	tx port.Transactor,
	logger *zap.Logger,
) ImportService {
	return &importServiceImpl{
		runRepo:     runRepo,
		requestRepo: requestRepo,
		auditRepo:   auditRepo,
		storage:     storage,
		parser:      parser,
		tx:          tx,
		logger:      logger,
	}
}

// Upload stores the raw bytes, creates the run, and parses immediately so a
// preview is available. A parse-phase fault marks the run ParseFailed and is
// swallowed: the call still succeeds, carrying the failed status, and the
// run stays inert (a fresh upload is the only retry path).
func (s *importServiceImpl) Upload(ctx context.Context, content []byte, fileName, contentType, actor string) (*UploadResult, error) {
	path, err := s.storage.Save(content, fileName, contentType)
	if err != nil {
		s.logger.Error("Failed to store uploaded file", zap.Error(err))
		return nil, fmt.Errorf("store uploaded file: %w", err)
	}

	run := &entity.ImportRun{
		ID:            uuid.New(),
		FileName:      fileName,
		StoragePath:   path,
		FileSizeBytes: int64(len(content)),
		ContentType:   contentType,
		Status:        workflow.StateUploaded,
		CreatedBy:     actor,
	}
	if err := s.runRepo.Create(ctx, run); err != nil {
		return nil, fmt.Errorf("create import run: %w", err)
	}

	if err := s.parseRun(ctx, run); err != nil {
		s.logger.Warn("Parse phase failed",
			zap.String("import_run_id", run.ID.String()),
			zap.Error(err))
		failed, terr := workflow.Transition(run.Status, workflow.TriggerParseFail)
		if terr != nil {
			// The parse outcome could not be persisted after the in-memory
			// status moved past Parsing; the run still failed.
			failed = workflow.StateParseFailed
		}
		run.Status = failed
		run.ErrorMessage = err.Error()
		if markErr := s.runRepo.MarkFailed(ctx, run.ID, failed, err.Error()); markErr != nil {
			s.logger.Error("Failed to record parse failure", zap.Error(markErr))
		}
	}

	return &UploadResult{
		ImportRunID:   run.ID,
		FileName:      run.FileName,
		FileSizeBytes: run.FileSizeBytes,
		Status:        run.Status,
		ErrorMessage:  run.ErrorMessage,
	}, nil
}

// parseRun runs extraction and reconciliation and freezes the snapshot.
// Validation runs exactly once per parse, here, before the snapshot is
// serialized.
func (s *importServiceImpl) parseRun(ctx context.Context, run *entity.ImportRun) error {
	next, err := workflow.Transition(run.Status, workflow.TriggerBeginParse)
	if err != nil {
		return err
	}
	run.Status = next
	if err := s.runRepo.UpdateStatus(ctx, run.ID, next); err != nil {
		return fmt.Errorf("enter parsing state: %w", err)
	}

	rc, err := s.storage.Open(run.StoragePath)
	if err != nil {
		return fmt.Errorf("read uploaded file: %w", err)
	}
	defer rc.Close()

	data := s.parser.Parse(rc)
	validate.Snapshot(data)

	headerJSON, err := json.Marshal(data.Header)
	if err != nil {
		return fmt.Errorf("serialize header snapshot: %w", err)
	}
	itemsJSON, err := json.Marshal(data.Items)
	if err != nil {
		return fmt.Errorf("serialize items snapshot: %w", err)
	}
	issuesJSON, err := json.Marshal(data.Issues)
	if err != nil {
		return fmt.Errorf("serialize issues snapshot: %w", err)
	}

	next, err = workflow.Transition(run.Status, workflow.TriggerParseSucceed)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	run.Status = next
	run.ParsedHeaderJSON = string(headerJSON)
	run.ParsedItemsJSON = string(itemsJSON)
	run.ValidationIssuesJSON = string(issuesJSON)
	run.ParsedRowCount = len(data.Items)
	run.ErrorCount = data.ErrorCount()
	run.ParsedAt = &now

	if err := s.runRepo.SaveParseResult(ctx, run); err != nil {
		return fmt.Errorf("persist parse result: %w", err)
	}

	s.logger.Info("Import parsed",
		zap.String("import_run_id", run.ID.String()),
		zap.Int("rows", run.ParsedRowCount),
		zap.Int("errors", run.ErrorCount))
	return nil
}

// Preview returns the persisted snapshot and whether a commit is allowed.
func (s *importServiceImpl) Preview(ctx context.Context, id uuid.UUID) (*ImportPreview, error) {
	run, err := s.getRun(ctx, id)
	if err != nil {
		return nil, err
	}

	preview := &ImportPreview{
		ImportRunID: run.ID,
		FileName:    run.FileName,
		Status:      run.Status,
		Items:       []entity.ParsedItem{},
		Issues:      []entity.ValidationIssue{},
	}

	if run.ParsedHeaderJSON != "" {
		var header entity.ParsedHeader
		if err := json.Unmarshal([]byte(run.ParsedHeaderJSON), &header); err != nil {
			return nil, fmt.Errorf("deserialize header snapshot: %w", err)
		}
		preview.Header = &header
	}
	if run.ParsedItemsJSON != "" {
		if err := json.Unmarshal([]byte(run.ParsedItemsJSON), &preview.Items); err != nil {
			return nil, fmt.Errorf("deserialize items snapshot: %w", err)
		}
	}
	if run.ValidationIssuesJSON != "" {
		if err := json.Unmarshal([]byte(run.ValidationIssuesJSON), &preview.Issues); err != nil {
			return nil, fmt.Errorf("deserialize issues snapshot: %w", err)
		}
	}

	preview.CanCommit = run.Status == workflow.StateParsed && !hasError(preview.Issues)
	return preview, nil
}

// Commit materializes the validated snapshot into a budget request graph in
// one durable transaction, links it back to the run, and writes an audit
// entry. Unlike parse failures, a commit fault is recorded on the run and
// then returned to the caller.
func (s *importServiceImpl) Commit(ctx context.Context, id uuid.UUID, actor string) (*CommitResult, error) {
	run, err := s.getRun(ctx, id)
	if err != nil {
		return nil, err
	}

	// Preconditions checked before any mutation. The transition table is the
	// state precondition: BeginCommit is only legal from Parsed.
	committing, err := workflow.Transition(run.Status, workflow.TriggerBeginCommit)
	if err != nil {
		return nil, fmt.Errorf("%w: status is %s", ErrNotCommittable, run.Status)
	}
	if run.ErrorCount > 0 {
		return nil, fmt.Errorf("%w: %d blocking issues", ErrValidationErrors, run.ErrorCount)
	}

	// Atomic check-and-set into Committing: exactly one caller wins.
	if err := s.runRepo.UpdateStatusIf(ctx, run.ID, run.Status, committing); err != nil {
		if errors.Is(err, repository.ErrStatusConflict) {
			return nil, fmt.Errorf("%w: %s", ErrCommitConflict, run.ID)
		}
		return nil, err
	}
	run.Status = committing

	result, err := s.materialize(ctx, run, actor)
	if err != nil {
		s.logger.Error("Commit failed",
			zap.String("import_run_id", run.ID.String()),
			zap.Error(err))
		failed, terr := workflow.Transition(run.Status, workflow.TriggerCommitFail)
		if terr != nil {
			failed = workflow.StateCommitFailed
		}
		if markErr := s.runRepo.MarkFailed(ctx, run.ID, failed, err.Error()); markErr != nil {
			s.logger.Error("Failed to record commit failure", zap.Error(markErr))
		}
		return nil, err
	}
	return result, nil
}

func (s *importServiceImpl) materialize(ctx context.Context, run *entity.ImportRun, actor string) (*CommitResult, error) {
	var header entity.ParsedHeader
	if run.ParsedHeaderJSON != "" {
		if err := json.Unmarshal([]byte(run.ParsedHeaderJSON), &header); err != nil {
			return nil, fmt.Errorf("deserialize header snapshot: %w", err)
		}
	}
	var parsedItems []entity.ParsedItem
	if run.ParsedItemsJSON != "" {
		if err := json.Unmarshal([]byte(run.ParsedItemsJSON), &parsedItems); err != nil {
			return nil, fmt.Errorf("deserialize items snapshot: %w", err)
		}
	}

	req, items, err := buildRequest(run, &header, parsedItems, actor)
	if err != nil {
		return nil, err
	}

	payload, err := json.Marshal(map[string]any{
		"source":      "Import",
		"importRunId": run.ID,
		"fileName":    run.FileName,
		"itemCount":   len(items),
	})
	if err != nil {
		return nil, fmt.Errorf("serialize audit payload: %w", err)
	}

	committed, err := workflow.Transition(run.Status, workflow.TriggerCommitSucceed)
	if err != nil {
		return nil, err
	}
	committedAt := time.Now().UTC()

	// Request insert, run linkage, and audit entry succeed or fail together,
	// so a request can never exist without its run link.
	err = s.tx.WithTransaction(func(tx *sql.Tx) error {
		if err := s.requestRepo.CreateWithItems(ctx, tx, req, items); err != nil {
			return err
		}
		if err := s.runRepo.MarkCommitted(ctx, tx, run.ID, req.ID, committedAt); err != nil {
			return err
		}
		return s.auditRepo.Create(ctx, tx, &entity.AuditLog{
			EntityType:  "BudgetRequest",
			EntityID:    req.ID,
			Action:      "Created",
			UserID:      actor,
			Timestamp:   committedAt,
			PayloadJSON: string(payload),
		})
	})
	if err != nil {
		return nil, err
	}
	run.Status = committed
	run.CommittedAt = &committedAt
	run.BudgetRequestID = &req.ID

	s.logger.Info("Import committed",
		zap.String("import_run_id", run.ID.String()),
		zap.String("budget_request_id", req.ID.String()),
		zap.String("request_number", req.RequestNumber),
		zap.Int("item_count", len(items)))

	return &CommitResult{
		ImportRunID:     run.ID,
		BudgetRequestID: req.ID,
		RequestNumber:   req.RequestNumber,
		ItemCount:       len(items),
	}, nil
}

// buildRequest converts the snapshot into durable entities, applying header
// defaults. Items are copied verbatim; the snapshot was already validated at
// parse time and commit trusts it.
func buildRequest(run *entity.ImportRun, header *entity.ParsedHeader, parsedItems []entity.ParsedItem, actor string) (*entity.BudgetRequest, []*entity.BudgetItem, error) {
	req := &entity.BudgetRequest{
		ID:            uuid.New(),
		RequestNumber: generateRequestNumber(),
		Title:         fmt.Sprintf("Import %s", run.FileName),
		Currency:      "USD",
		Status:        entity.BudgetRequestStatusDraft,
		FiscalYear:    time.Now().UTC().Year(),
		ImportRunID:   &run.ID,
		CreatedBy:     actor,
	}

	if header.RequestNumber != nil {
		req.RequestNumber = *header.RequestNumber
	}
	if header.Title != nil {
		req.Title = *header.Title
	}
	if header.Description != nil {
		req.Description = *header.Description
	}
	if header.Channel != nil {
		req.Channel = *header.Channel
	}
	if header.Owner != nil {
		req.Owner = *header.Owner
	}
	if header.Frequency != nil {
		req.Frequency = *header.Frequency
	}
	if header.Vendor != nil {
		req.Vendor = *header.Vendor
	}
	if header.Currency != nil {
		req.Currency = *header.Currency
	}
	if header.FiscalYear != nil {
		req.FiscalYear = *header.FiscalYear
	}
	req.FiscalQuarter = header.FiscalQuarter

	if header.TotalAmount != nil {
		req.TotalAmount = *header.TotalAmount
	} else {
		snapshot := entity.ParsedBudgetData{Items: parsedItems}
		req.TotalAmount = snapshot.ItemAmountSum()
	}

	if len(header.Extras) > 0 {
		extras, err := json.Marshal(header.Extras)
		if err != nil {
			return nil, nil, fmt.Errorf("serialize header extras: %w", err)
		}
		req.ExtrasJSON = string(extras)
	}

	items := make([]*entity.BudgetItem, 0, len(parsedItems))
	for _, pi := range parsedItems {
		item := &entity.BudgetItem{
			ID:              uuid.New(),
			BudgetRequestID: req.ID,
			RowNumber:       pi.RowNumber,
			LineDescription: deref(pi.LineDescription),
			Category:        deref(pi.Category),
			SubCategory:     deref(pi.SubCategory),
			Quantity:        pi.Quantity,
			UnitPrice:       pi.UnitPrice,
			CostCenter:      deref(pi.CostCenter),
			AccountCode:     deref(pi.AccountCode),
			Jan:             pi.Jan,
			Feb:             pi.Feb,
			Mar:             pi.Mar,
			Apr:             pi.Apr,
			May:             pi.May,
			Jun:             pi.Jun,
			Jul:             pi.Jul,
			Aug:             pi.Aug,
			Sep:             pi.Sep,
			Oct:             pi.Oct,
			Nov:             pi.Nov,
			Dec:             pi.Dec,
			CreatedBy:       actor,
		}
		if pi.Amount != nil {
			item.Amount = *pi.Amount
		}
		if len(pi.Extras) > 0 {
			extras, err := json.Marshal(pi.Extras)
			if err != nil {
				return nil, nil, fmt.Errorf("serialize item extras (row %d): %w", pi.RowNumber, err)
			}
			item.ExtrasJSON = string(extras)
		}
		items = append(items, item)
	}

	return req, items, nil
}

func (s *importServiceImpl) getRun(ctx context.Context, id uuid.UUID) (*entity.ImportRun, error) {
	run, err := s.runRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrImportRunNotFound, id)
		}
		return nil, err
	}
	return run, nil
}

// generateRequestNumber builds "BR-<UTC date>-<8 uppercase hex chars>".
func generateRequestNumber() string {
	suffix := strings.ToUpper(uuid.New().String()[:8])
	return fmt.Sprintf("BR-%s-%s", time.Now().UTC().Format("20060102"), suffix)
}

func hasError(issues []entity.ValidationIssue) bool {
	for _, issue := range issues {
		if issue.Severity == entity.SeverityError {
			return true
		}
	}
	return false
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
