package thread

import (
	"net/http"
	"strconv"

	"backend/internal/apperr"
	"backend/internal/app/session"

	"github.com/gin-gonic/gin"
)

type Handler interface {
	CreateThread(c *gin.Context)
	ListThreads(c *gin.Context)
}

type handler struct {
	service  Service
	resolver session.Resolver
}

func NewHandler(service Service, resolver session.Resolver) Handler {
	return &handler{
		service:  service,
		resolver: resolver,
	}
}

func (h *handler) CreateThread(c *gin.Context) {
	sess, err := h.resolver.Resolve(c.Request.Context(), c.Query("session_key"))
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "session not found"})
		return
	}

	var req CreateThreadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	t, err := h.service.CreateThread(c.Request.Context(), &req, sess.UserID)
	if err != nil {
		c.JSON(apperr.HTTPStatus(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, t)
}

func (h *handler) ListThreads(c *gin.Context) {
	sess, err := h.resolver.Resolve(c.Request.Context(), c.Query("session_key"))
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "session not found"})
		return
	}

	take, err := strconv.Atoi(c.DefaultQuery("take", "20"))
	if err != nil || take < 1 {
		take = 20
	}

	var cursor *uint64
	if cursorStr := c.Query("cursor"); cursorStr != "" {
		v, err := strconv.ParseUint(cursorStr, 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid cursor"})
			return
		}
		cursor = &v
	}

	threads, nextCursor, err := h.service.ListThreads(c.Request.Context(), sess.UserID, take, cursor)
	if err != nil {
		c.JSON(apperr.HTTPStatus(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, ThreadListResponse{
		Threads:    threads,
		NextCursor: nextCursor,
	})
}
