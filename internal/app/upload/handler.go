package upload

import (
	"net/http"

	"backend/internal/app/session"
	"backend/internal/providers/minio"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type Handler interface {
	UploadAttachment(c *gin.Context)
}

type handler struct {
	minioP   *minio.MinioProvider
	resolver session.Resolver
	logger   *zap.SugaredLogger
}

func NewHandler(minioP *minio.MinioProvider, resolver session.Resolver, logger *zap.Logger) Handler {
	return &handler{
		minioP:   minioP,
		resolver: resolver,
		logger:   logger.Sugar(),
	}
}

// UploadAttachment stages a file in tmp object storage. The returned
// descriptor is echoed back in a send request, which promotes the object.
func (h *handler) UploadAttachment(c *gin.Context) {
	if _, err := h.resolver.Resolve(c.Request.Context(), c.Query("session_key")); err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "session not found"})
		return
	}

	if h.minioP == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "attachment storage unavailable"})
		return
	}

	file, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file is required"})
		return
	}

	uploaded, err := h.minioP.UploadTmp(file)
	if err != nil {
		h.logger.Warnw("Attachment upload failed", "filename", file.Filename, "error", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, uploaded)
}
