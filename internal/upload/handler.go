package upload

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	apierrors "github.com/eternisai/chat-relay/internal/errors"
	"github.com/eternisai/chat-relay/internal/logger"
	"github.com/eternisai/chat-relay/internal/metrics"
)

const formField = "image"

// FormOverhead is the room left for multipart boundaries and part headers on
// top of the file size limit.
const FormOverhead = 64 << 10

type Handler struct {
	uploader Uploader
	maxBytes int64
	logger   *logger.Logger
	metrics  *metrics.Metrics
}

func NewHandler(uploader Uploader, maxBytes int64, logger *logger.Logger, m *metrics.Metrics) *Handler {
	return &Handler{
		uploader: uploader,
		maxBytes: maxBytes,
		logger:   logger,
		metrics:  m,
	}
}

// Upload handles POST /api/upload with a multipart "image" field.
func (h *Handler) Upload(c *gin.Context) {
	log := h.logger.WithContext(c.Request.Context()).WithComponent("upload-handler")

	if h.maxBytes > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxBytes+FormOverhead)
	}

	header, err := c.FormFile(formField)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.abortTooLarge(c)
			return
		}
		apierrors.AbortWithBadRequest(c, "No file uploaded", nil)
		return
	}
	if h.maxBytes > 0 && header.Size > h.maxBytes {
		h.abortTooLarge(c)
		return
	}

	file, err := header.Open()
	if err != nil {
		log.Error("failed to open uploaded file", slog.String("error", err.Error()))
		apierrors.AbortWithInternal(c, "Upload failed", nil)
		return
	}
	defer file.Close()

	result, err := h.uploader.Upload(c.Request.Context(), File{
		Name:        header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Size:        header.Size,
		Body:        file,
	})
	h.metrics.ObserveUpload(h.uploader.Provider(), err)
	if err != nil {
		log.Error("upload failed",
			slog.String("error", err.Error()),
			slog.String("provider", h.uploader.Provider()),
			slog.Int64("size", header.Size))
		apierrors.AbortWithInternal(c, "Upload failed", nil)
		return
	}

	log.Info("image uploaded",
		slog.String("provider", h.uploader.Provider()),
		slog.String("public_id", result.PublicID))

	c.JSON(http.StatusOK, result)
}

func (h *Handler) abortTooLarge(c *gin.Context) {
	apierrors.AbortWithBadRequest(c, "File too large", map[string]any{"max_bytes": h.maxBytes})
}
