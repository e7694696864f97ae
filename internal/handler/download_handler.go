package handler

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/vegeteria/ytdownloader/internal/model"
	"github.com/vegeteria/ytdownloader/internal/service"
	"github.com/vegeteria/ytdownloader/pkg/logger"
	"github.com/vegeteria/ytdownloader/pkg/validator"
)

// DownloadHandler handles download-related requests
type DownloadHandler struct {
	downloadService *service.DownloadService
	quotaService    *service.QuotaService
	cfg             *model.Config
}

// NewDownloadHandler creates a new download handler
func NewDownloadHandler(ds *service.DownloadService, qs *service.QuotaService, cfg *model.Config) *DownloadHandler {
	return &DownloadHandler{
		downloadService: ds,
		quotaService:    qs,
		cfg:             cfg,
	}
}

// StartDownload handles POST /api/download
func (h *DownloadHandler) StartDownload(c *gin.Context) {
	var req model.DownloadRequest

	if err := c.ShouldBindJSON(&req); err != nil {
		logger.Logger.Warn("Invalid download request", zap.Error(err))
		c.JSON(http.StatusBadRequest, model.ErrorResponse{
			Error:   "invalid_request",
			Message: "Invalid request format",
			Code:    http.StatusBadRequest,
		})
		return
	}

	if !validator.ValidateURL(req.URL, h.cfg.Security.AllowedDomains) {
		logger.Logger.Warn("Invalid URL domain", zap.String("url", req.URL))
		c.JSON(http.StatusBadRequest, model.ErrorResponse{
			Error:   "invalid_domain",
			Message: "URL domain is not allowed",
			Code:    http.StatusBadRequest,
		})
		return
	}

	if h.cfg.Quota.Enabled {
		clientIP := c.ClientIP()
		allowed, _ := h.quotaService.CheckQuota(clientIP)
		if !allowed {
			c.JSON(http.StatusPaymentRequired, model.ErrorResponse{
				Error:   "quota_exhausted",
				Message: "Daily download quota exhausted. Please try again after quota reset.",
				Code:    http.StatusPaymentRequired,
			})
			return
		}
	}

	task, err := h.downloadService.StartTask(&req, c.ClientIP())
	if err != nil {
		c.JSON(http.StatusBadRequest, model.ErrorResponse{
			Error:   "invalid_request",
			Message: err.Error(),
			Code:    http.StatusBadRequest,
		})
		return
	}

	c.JSON(http.StatusOK, model.DownloadResponse{TaskID: task.ID})
}

// GetTaskStatus handles GET /api/task/:id
func (h *DownloadHandler) GetTaskStatus(c *gin.Context) {
	taskID := c.Param("id")

	status, ok := h.downloadService.TaskStatus(taskID)
	if !ok {
		c.JSON(http.StatusNotFound, model.ErrorResponse{
			Error:   "not_found",
			Message: "Task not found",
			Code:    http.StatusNotFound,
		})
		return
	}

	c.JSON(http.StatusOK, status)
}

// GetFile handles GET /api/file/:id
func (h *DownloadHandler) GetFile(c *gin.Context) {
	taskID := c.Param("id")

	path, filename, err := h.downloadService.FileForTask(taskID)
	if err != nil {
		logger.Logger.Warn("File not available", zap.String("task_id", taskID), zap.Error(err))
		c.JSON(http.StatusNotFound, model.ErrorResponse{
			Error:   "not_found",
			Message: "File not found or has expired",
			Code:    http.StatusNotFound,
		})
		return
	}

	c.Header("Content-Disposition", buildContentDispositionHeader(filename))
	c.Header("Content-Type", "application/octet-stream")
	c.File(path)

	logger.Logger.Info("File downloaded by user",
		zap.String("task_id", taskID),
		zap.String("filename", filename))
}

// buildContentDispositionHeader builds a proper Content-Disposition header
// with RFC 5987 encoding for unicode and special characters
func buildContentDispositionHeader(filename string) string {
	needsEncoding := false
	for _, r := range filename {
		if r > 127 || r == '"' || r == '\\' || r == ';' || r == ',' {
			needsEncoding = true
			break
		}
	}
	if strings.ContainsAny(filename, " \t\n\r") {
		needsEncoding = true
	}

	if !needsEncoding {
		return fmt.Sprintf(`attachment; filename="%s"`, filename)
	}

	encodedFilename := url.QueryEscape(filename)
	return fmt.Sprintf(`attachment; filename*=UTF-8''%s`, encodedFilename)
}
