package message

import (
	"net/http"
	"strconv"

	"backend/internal/apperr"
	"backend/internal/app/session"

	"github.com/gin-gonic/gin"
)

type Handler interface {
	SendMessage(c *gin.Context)
	ListMessages(c *gin.Context)
	Acknowledge(c *gin.Context)
	BlockUser(c *gin.Context)
	UnblockUser(c *gin.Context)
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

func (h *handler) SendMessage(c *gin.Context) {
	sess, err := h.resolver.Resolve(c.Request.Context(), c.Query("session_key"))
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "session not found"})
		return
	}

	threadID, err := strconv.ParseUint(c.Param("thread_id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid thread ID"})
		return
	}

	var req SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	msg, err := h.service.SendMessage(c.Request.Context(), threadID, sess.UserID, &req)
	if err != nil {
		c.JSON(apperr.HTTPStatus(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, msg)
}

func (h *handler) ListMessages(c *gin.Context) {
	sess, err := h.resolver.Resolve(c.Request.Context(), c.Query("session_key"))
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "session not found"})
		return
	}

	threadID, err := strconv.ParseUint(c.Param("thread_id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid thread ID"})
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

	messages, nextCursor, err := h.service.ListMessages(c.Request.Context(), threadID, sess.UserID, take, cursor)
	if err != nil {
		c.JSON(apperr.HTTPStatus(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, MessageListResponse{
		Messages:   messages,
		NextCursor: nextCursor,
	})
}

func (h *handler) Acknowledge(c *gin.Context) {
	sess, err := h.resolver.Resolve(c.Request.Context(), c.Query("session_key"))
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "session not found"})
		return
	}

	messageID, err := strconv.ParseUint(c.Param("message_id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid message ID"})
		return
	}

	var req AcknowledgeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	if err := h.service.Acknowledge(c.Request.Context(), messageID, sess.UserID, req.Status); err != nil {
		c.JSON(apperr.HTTPStatus(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"acknowledged": true})
}

func (h *handler) BlockUser(c *gin.Context) {
	sess, err := h.resolver.Resolve(c.Request.Context(), c.Query("session_key"))
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "session not found"})
		return
	}

	var req BlockRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	if err := h.service.BlockUser(c.Request.Context(), sess.UserID, req.TargetID); err != nil {
		c.JSON(apperr.HTTPStatus(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"blocked": true})
}

func (h *handler) UnblockUser(c *gin.Context) {
	sess, err := h.resolver.Resolve(c.Request.Context(), c.Query("session_key"))
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "session not found"})
		return
	}

	targetID, err := strconv.ParseUint(c.Param("target_id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid target ID"})
		return
	}

	if err := h.service.UnblockUser(c.Request.Context(), sess.UserID, targetID); err != nil {
		c.JSON(apperr.HTTPStatus(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"blocked": false})
}
