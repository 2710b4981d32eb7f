package http

import (
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/garyjia/budget-import/internal/application/service"
)

// maxUploadBytes caps uploaded workbook size at 50 MB.
const maxUploadBytes = 50 << 20

// actorHeader carries the caller identity in development deployments.
const actorHeader = "X-User-ID"

const defaultActor = "dev-user"

// Handlers contains all HTTP request handlers
type Handlers struct {
	importService  service.ImportService
	requestService service.RequestService
	logger         *zap.Logger
}

// NewHandlers creates a new Handlers instance
func NewHandlers(
	importService service.ImportService,
	requestService service.RequestService,
	logger *zap.Logger,
) *Handlers {
	return &Handlers{
		importService:  importService,
		requestService: requestService,
		logger:         logger,
	}
}

// Response represents a standard JSON response
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// HealthCheck handles GET /health
func (h *Handlers) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, Response{
		Success: true,
		Data: gin.H{
			"status":    "healthy",
			"timestamp": time.Now().UTC().Format(time.RFC3339),
		},
	})
}

// Upload handles POST /api/imports/upload. The response is 200 even when the
// parse failed: clients branch on the returned status, not on the HTTP code.
func (h *Handlers) Upload(c *gin.Context) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, Response{
			Success: false,
			Error:   "no file provided",
		})
		return
	}
	if fileHeader.Size > maxUploadBytes {
		c.JSON(http.StatusBadRequest, Response{
			Success: false,
			Error:   "file exceeds maximum upload size",
		})
		return
	}

	f, err := fileHeader.Open()
	if err != nil {
		h.logger.Error("Failed to open uploaded file", zap.Error(err))
		c.JSON(http.StatusBadRequest, Response{
			Success: false,
			Error:   "failed to read uploaded file",
		})
		return
	}
	defer f.Close()

	content, err := io.ReadAll(io.LimitReader(f, maxUploadBytes+1))
	if err != nil {
		h.logger.Error("Failed to read uploaded file", zap.Error(err))
		c.JSON(http.StatusBadRequest, Response{
			Success: false,
			Error:   "failed to read uploaded file",
		})
		return
	}

	result, err := h.importService.Upload(c.Request.Context(),
		content, fileHeader.Filename, fileHeader.Header.Get("Content-Type"), h.actor(c))
	if err != nil {
		h.logger.Error("Upload failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, Response{
			Success: false,
			Error:   "upload failed",
		})
		return
	}

	c.JSON(http.StatusOK, Response{Success: true, Data: result})
}

// Preview handles GET /api/imports/:id/preview
func (h *Handlers) Preview(c *gin.Context) {
	id, ok := h.parseID(c)
	if !ok {
		return
	}

	preview, err := h.importService.Preview(c.Request.Context(), id)
	if err != nil {
		h.renderImportError(c, err)
		return
	}

	c.JSON(http.StatusOK, Response{Success: true, Data: preview})
}

// Commit handles POST /api/imports/:id/commit. Commit faults surface as
// protocol-level errors, unlike parse failures.
func (h *Handlers) Commit(c *gin.Context) {
	id, ok := h.parseID(c)
	if !ok {
		return
	}

	result, err := h.importService.Commit(c.Request.Context(), id, h.actor(c))
	if err != nil {
		h.renderImportError(c, err)
		return
	}

	c.JSON(http.StatusOK, Response{Success: true, Data: result})
}

// ListRequests handles GET /api/requests
func (h *Handlers) ListRequests(c *gin.Context) {
	var query struct {
		Limit  int `form:"limit"`
		Offset int `form:"offset"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		c.JSON(http.StatusBadRequest, Response{
			Success: false,
			Error:   "invalid query parameters",
		})
		return
	}

	requests, err := h.requestService.List(c.Request.Context(), query.Limit, query.Offset)
	if err != nil {
		h.logger.Error("Failed to list budget requests", zap.Error(err))
		c.JSON(http.StatusInternalServerError, Response{
			Success: false,
			Error:   "failed to list budget requests",
		})
		return
	}

	c.JSON(http.StatusOK, Response{Success: true, Data: requests})
}

// GetRequest handles GET /api/requests/:id
func (h *Handlers) GetRequest(c *gin.Context) {
	id, ok := h.parseID(c)
	if !ok {
		return
	}

	req, err := h.requestService.Get(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, service.ErrRequestNotFound) {
			c.JSON(http.StatusNotFound, Response{
				Success: false,
				Error:   err.Error(),
			})
			return
		}
		h.logger.Error("Failed to get budget request", zap.Error(err))
		c.JSON(http.StatusInternalServerError, Response{
			Success: false,
			Error:   "failed to get budget request",
		})
		return
	}

	c.JSON(http.StatusOK, Response{Success: true, Data: req})
}

func (h *Handlers) parseID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, Response{
			Success: false,
			Error:   "invalid id",
		})
		return uuid.Nil, false
	}
	return id, true
}

func (h *Handlers) actor(c *gin.Context) string {
	if actor := c.GetHeader(actorHeader); actor != "" {
		return actor
	}
	return defaultActor
}

func (h *Handlers) renderImportError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrImportRunNotFound):
		c.JSON(http.StatusNotFound, Response{Success: false, Error: err.Error()})
	case errors.Is(err, service.ErrNotCommittable),
		errors.Is(err, service.ErrValidationErrors),
		errors.Is(err, service.ErrCommitConflict):
		c.JSON(http.StatusConflict, Response{Success: false, Error: err.Error()})
	default:
		h.logger.Error("Import operation failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, Response{Success: false, Error: err.Error()})
	}
}
