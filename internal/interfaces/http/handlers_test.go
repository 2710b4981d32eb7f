package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/garyjia/budget-import/internal/application/service"
	"github.com/garyjia/budget-import/internal/domain/entity"
	"github.com/garyjia/budget-import/internal/domain/workflow"
)

type stubImportService struct {
	uploadResult *service.UploadResult
	uploadErr    error
	uploadActor  string
	preview      *service.ImportPreview
	previewErr   error
	commitResult *service.CommitResult
	commitErr    error
	commitActor  string
}

func (s *stubImportService) Upload(ctx context.Context, content []byte, fileName, contentType, actor string) (*service.UploadResult, error) {
	s.uploadActor = actor
	return s.uploadResult, s.uploadErr
}

func (s *stubImportService) Preview(ctx context.Context, id uuid.UUID) (*service.ImportPreview, error) {
	return s.preview, s.previewErr
}

func (s *stubImportService) Commit(ctx context.Context, id uuid.UUID, actor string) (*service.CommitResult, error) {
	s.commitActor = actor
	return s.commitResult, s.commitErr
}

type stubRequestService struct {
	requests []*entity.BudgetRequest
	request  *entity.BudgetRequest
	getErr   error
}

func (s *stubRequestService) List(ctx context.Context, limit, offset int) ([]*entity.BudgetRequest, error) {
	return s.requests, nil
}

func (s *stubRequestService) Get(ctx context.Context, id uuid.UUID) (*entity.BudgetRequest, error) {
	return s.request, s.getErr
}

func newTestRouter(imports *stubImportService, requests *stubRequestService) http.Handler {
	server := NewServer(DefaultServerConfig(), imports, requests, zap.NewNop())
	return server.Router()
}

func multipartUpload(t *testing.T, fileName string, content []byte) (*bytes.Buffer, string) {
	t.Helper()
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile("file", fileName)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, writer.Close())
	return body, writer.FormDataContentType()
}

func decodeResponse(t *testing.T, rec *httptest.ResponseRecorder) Response {
	t.Helper()
	var resp Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func TestUploadReturnsOKEvenWhenParseFailed(t *testing.T) {
	imports := &stubImportService{
		uploadResult: &service.UploadResult{
			ImportRunID:  uuid.New(),
			FileName:     "broken.xlsx",
			Status:       workflow.StateParseFailed,
			ErrorMessage: "Failed to parse Excel file: not a workbook",
		},
	}
	router := newTestRouter(imports, &stubRequestService{})

	body, contentType := multipartUpload(t, "broken.xlsx", []byte("garbage"))
	req := httptest.NewRequest(http.MethodPost, "/api/imports/upload", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	resp := decodeResponse(t, rec)
	assert.True(t, resp.Success)
	assert.Contains(t, rec.Body.String(), string(workflow.StateParseFailed))
}

func TestUploadPassesActorHeader(t *testing.T) {
	imports := &stubImportService{
		uploadResult: &service.UploadResult{ImportRunID: uuid.New(), Status: workflow.StateParsed},
	}
	router := newTestRouter(imports, &stubRequestService{})

	body, contentType := multipartUpload(t, "budget.xlsx", []byte("bytes"))
	req := httptest.NewRequest(http.MethodPost, "/api/imports/upload", body)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set(actorHeader, "alice")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "alice", imports.uploadActor)
}

func TestUploadWithoutFile(t *testing.T) {
	router := newTestRouter(&stubImportService{}, &stubRequestService{})

	req := httptest.NewRequest(http.MethodPost, "/api/imports/upload", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.False(t, decodeResponse(t, rec).Success)
}

func TestPreviewStatusCodes(t *testing.T) {
	id := uuid.New()
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"found", nil, http.StatusOK},
		{"unknown run", service.ErrImportRunNotFound, http.StatusNotFound},
		{"internal fault", fmt.Errorf("snapshot corrupt"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			imports := &stubImportService{
				preview: &service.ImportPreview{
					ImportRunID: id,
					Status:      workflow.StateParsed,
					CanCommit:   true,
				},
				previewErr: tt.err,
			}
			router := newTestRouter(imports, &stubRequestService{})

			req := httptest.NewRequest(http.MethodGet, "/api/imports/"+id.String()+"/preview", nil)
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)

			assert.Equal(t, tt.want, rec.Code)
		})
	}
}

func TestPreviewInvalidID(t *testing.T) {
	router := newTestRouter(&stubImportService{}, &stubRequestService{})

	req := httptest.NewRequest(http.MethodGet, "/api/imports/not-a-uuid/preview", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCommitStatusCodes(t *testing.T) {
	id := uuid.New()
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"committed", nil, http.StatusOK},
		{"unknown run", service.ErrImportRunNotFound, http.StatusNotFound},
		{"not committable", service.ErrNotCommittable, http.StatusConflict},
		{"validation errors", service.ErrValidationErrors, http.StatusConflict},
		{"lost the race", service.ErrCommitConflict, http.StatusConflict},
		{"storage fault", fmt.Errorf("disk gone"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			imports := &stubImportService{
				commitResult: &service.CommitResult{
					ImportRunID:     id,
					BudgetRequestID: uuid.New(),
					RequestNumber:   "BR-20260831-CAFE0001",
					ItemCount:       3,
				},
				commitErr: tt.err,
			}
			router := newTestRouter(imports, &stubRequestService{})

			req := httptest.NewRequest(http.MethodPost, "/api/imports/"+id.String()+"/commit", nil)
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)

			assert.Equal(t, tt.want, rec.Code)
			if tt.err == nil {
				assert.Contains(t, rec.Body.String(), "BR-20260831-CAFE0001")
			} else {
				assert.False(t, decodeResponse(t, rec).Success)
			}
		})
	}
}

func TestGetRequestNotFound(t *testing.T) {
	router := newTestRouter(&stubImportService{}, &stubRequestService{
		getErr: service.ErrRequestNotFound,
	})

	req := httptest.NewRequest(http.MethodGet, "/api/requests/"+uuid.New().String(), nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestListRequests(t *testing.T) {
	router := newTestRouter(&stubImportService{}, &stubRequestService{
		requests: []*entity.BudgetRequest{
			{ID: uuid.New(), RequestNumber: "BR-20260831-00000001", Title: "Q3 Media Budget"},
		},
	})

	req := httptest.NewRequest(http.MethodGet, "/api/requests?limit=10", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Q3 Media Budget")
}

func TestHealthCheck(t *testing.T) {
	router := newTestRouter(&stubImportService{}, &stubRequestService{})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "healthy")
}
