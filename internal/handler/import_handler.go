package handler

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/Kilat-Pet-Delivery/service-zone/internal/application"
	"github.com/Kilat-Pet-Delivery/service-zone/internal/common/response"
)

// ImportHandler handles HTTP requests for uploading and staging zone documents.
type ImportHandler struct {
	importer       *application.ImportService
	staging        *application.StagingService
	maxUploadBytes int64
}

// NewImportHandler creates a new ImportHandler.
func NewImportHandler(importer *application.ImportService, staging *application.StagingService, maxUploadBytes int64) *ImportHandler {
	return &ImportHandler{importer: importer, staging: staging, maxUploadBytes: maxUploadBytes}
}

// RegisterRoutes registers all import routes on the given router group.
func (h *ImportHandler) RegisterRoutes(r *gin.RouterGroup) {
	imports := r.Group("/api/v1/zone-imports")
	{
		imports.POST("", h.Upload)
		imports.GET("/:batchId/drafts", h.ListDrafts)
		imports.GET("/:batchId/drafts/:draftId", h.GetDraft)
		imports.PUT("/:batchId/drafts/:draftId", h.ReviewDraft)
		imports.DELETE("/:batchId/drafts/:draftId", h.DiscardDraft)
		imports.POST("/:batchId/drafts/:draftId/submit", h.SubmitDraft)
		imports.POST("/:batchId/submit", h.SubmitAll)
	}
}

// Upload handles POST /api/v1/zone-imports.
func (h *ImportHandler) Upload(c *gin.Context) {
	if h.maxUploadBytes > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUploadBytes)
	}

	header, err := c.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			response.BadRequest(c, fmt.Sprintf("upload exceeds %d bytes", h.maxUploadBytes))
			return
		}
		response.BadRequest(c, "multipart field \"file\" is required")
		return
	}

	f, err := header.Open()
	if err != nil {
		response.BadRequest(c, "uploaded file cannot be read")
		return
	}
	defer f.Close()

	content, err := io.ReadAll(f)
	if err != nil {
		response.BadRequest(c, "uploaded file cannot be read")
		return
	}

	result, err := h.importer.Import(c.Request.Context(), application.ImportRequest{
		Filename:   header.Filename,
		Content:    content,
		StoreQuery: c.PostForm("store"),
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, result)
}

// ListDrafts handles GET /api/v1/zone-imports/:batchId/drafts.
func (h *ImportHandler) ListDrafts(c *gin.Context) {
	batchID, ok := parseID(c, "batchId", "invalid batch ID")
	if !ok {
		return
	}

	page, limit := parsePagination(c)
	result, err := h.staging.ListDrafts(c.Request.Context(), batchID, page, limit)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Paginated(c, result.Items, result.Total, result.Page, result.Limit)
}

// GetDraft handles GET /api/v1/zone-imports/:batchId/drafts/:draftId.
func (h *ImportHandler) GetDraft(c *gin.Context) {
	batchID, draftID, ok := parseDraftPath(c)
	if !ok {
		return
	}

	result, err := h.staging.GetDraft(c.Request.Context(), batchID, draftID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, result)
}

// ReviewDraft handles PUT /api/v1/zone-imports/:batchId/drafts/:draftId.
func (h *ImportHandler) ReviewDraft(c *gin.Context) {
	batchID, draftID, ok := parseDraftPath(c)
	if !ok {
		return
	}

	var req application.ReviewDraftRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	result, err := h.staging.ReviewDraft(c.Request.Context(), batchID, draftID, req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, result)
}

// DiscardDraft handles DELETE /api/v1/zone-imports/:batchId/drafts/:draftId.
func (h *ImportHandler) DiscardDraft(c *gin.Context) {
	batchID, draftID, ok := parseDraftPath(c)
	if !ok {
		return
	}

	if err := h.staging.DiscardDraft(c.Request.Context(), batchID, draftID); err != nil {
		response.Error(c, err)
		return
	}

	response.NoContent(c)
}

// SubmitDraft handles POST /api/v1/zone-imports/:batchId/drafts/:draftId/submit.
func (h *ImportHandler) SubmitDraft(c *gin.Context) {
	batchID, draftID, ok := parseDraftPath(c)
	if !ok {
		return
	}

	result, err := h.staging.SubmitDraft(c.Request.Context(), batchID, draftID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, result)
}

// SubmitAll handles POST /api/v1/zone-imports/:batchId/submit.
func (h *ImportHandler) SubmitAll(c *gin.Context) {
	batchID, ok := parseID(c, "batchId", "invalid batch ID")
	if !ok {
		return
	}

	report, err := h.staging.SubmitAll(c.Request.Context(), batchID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, report)
}

func parseDraftPath(c *gin.Context) (batchID, draftID uuid.UUID, ok bool) {
	if batchID, ok = parseID(c, "batchId", "invalid batch ID"); !ok {
		return
	}
	draftID, ok = parseID(c, "draftId", "invalid draft ID")
	return
}

func parseID(c *gin.Context, param, message string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(param))
	if err != nil {
		response.BadRequest(c, message)
		return uuid.Nil, false
	}
	return id, true
}

// parsePagination extracts page and limit query parameters with defaults.
func parsePagination(c *gin.Context) (int, int) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))

	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}

	return page, limit
}
