package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/vegeteria/ytdownloader/internal/model"
	"github.com/vegeteria/ytdownloader/internal/probe"
	"github.com/vegeteria/ytdownloader/pkg/logger"
	"github.com/vegeteria/ytdownloader/pkg/validator"
)

// VideoHandler handles metadata requests.
type VideoHandler struct {
	prober *probe.Prober
	cfg    *model.Config
}

// NewVideoHandler creates a new video handler
func NewVideoHandler(p *probe.Prober, cfg *model.Config) *VideoHandler {
	return &VideoHandler{
		prober: p,
		cfg:    cfg,
	}
}

// GetVideoInfo handles GET /api/video/info
func (h *VideoHandler) GetVideoInfo(c *gin.Context) {
	videoURL := c.Query("url")

	if videoURL == "" {
		c.JSON(http.StatusBadRequest, model.ErrorResponse{
			Error:   "invalid_url",
			Message: "Video URL is required",
			Code:    http.StatusBadRequest,
		})
		return
	}

	if !validator.ValidateURL(videoURL, h.cfg.Security.AllowedDomains) {
		logger.Logger.Warn("Invalid URL domain", zap.String("url", videoURL))
		c.JSON(http.StatusBadRequest, model.ErrorResponse{
			Error:   "invalid_domain",
			Message: "URL domain is not allowed",
			Code:    http.StatusBadRequest,
		})
		return
	}

	if validator.ExtractVideoID(videoURL) == "" {
		c.JSON(http.StatusBadRequest, model.ErrorResponse{
			Error:   "invalid_url",
			Message: "Not a recognizable YouTube video URL",
			Code:    http.StatusBadRequest,
		})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(),
		time.Duration(h.cfg.Security.RequestTimeout)*time.Second)
	defer cancel()

	info, err := h.prober.Fetch(ctx, validator.CleanYouTubeURL(videoURL))
	if err != nil {
		logger.Logger.Error("Failed to probe video", zap.Error(err), zap.String("url", videoURL))
		c.JSON(http.StatusInternalServerError, model.ErrorResponse{
			Error:   "fetch_failed",
			Message: "Failed to fetch video information",
			Code:    http.StatusInternalServerError,
		})
		return
	}

	c.JSON(http.StatusOK, info)
}

// HealthCheck handles GET /api/health
func (h *VideoHandler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"service": "ytdownloader",
	})
}
