package websocket

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"backend/internal/apperr"
	"backend/internal/eventbus"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// ServeWS authenticates and authorizes before upgrading: no subscription
// and no presence change happens for a rejected connection.
func (h *Hub) ServeWS(c *gin.Context) {
	threadIDStr := c.Query("thread_id")
	if threadIDStr == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "thread_id is required"})
		return
	}
	threadID, err := strconv.ParseUint(threadIDStr, 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid thread_id"})
		return
	}

	sess, err := h.resolver.Resolve(c.Request.Context(), c.Query("session_key"))
	if err != nil {
		h.logger.Warnw("WebSocket connection rejected: session not resolved",
			"client_ip", c.ClientIP(),
		)
		c.JSON(http.StatusUnauthorized, gin.H{"error": "session not found"})
		return
	}

	if _, err := h.threadSvc.GetThreadByID(c.Request.Context(), threadID); err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "thread not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load thread"})
		return
	}

	isMember, err := h.threadSvc.IsActiveParticipant(c.Request.Context(), threadID, sess.UserID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to check membership"})
		return
	}
	if !isMember {
		h.logger.Warnw("WebSocket connection rejected: not a participant",
			"thread_id", threadID,
			"user_id", sess.UserID,
		)
		c.JSON(http.StatusForbidden, gin.H{"error": "not a participant of this thread"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Errorw("Failed to upgrade connection",
			"thread_id", threadID,
			"user_id", sess.UserID,
			"error", err,
		)
		return
	}

	client := newClient(h, conn, threadID, sess.UserID)
	ctx := context.Background()

	h.subscribeClient(client)

	if err := h.presence.MarkOnline(ctx, threadID, sess.UserID); err != nil {
		h.logger.Warnw("Failed to mark user online", "user_id", sess.UserID, "error", err)
	}
	h.eventBus.Publish(ctx, eventbus.NewEvent(
		eventbus.EventParticipantPresence, threadID, sess.UserID,
		map[string]interface{}{"status": "online"},
	))

	h.register <- client
	go client.writePump()

	client.readPump()

	// Teardown order matters: subscriptions first so no handler touches
	// a closing client, then presence, then the offline broadcast.
	for _, unsubscribe := range client.unsubscribes {
		unsubscribe()
	}
	if err := h.presence.MarkOffline(ctx, threadID, sess.UserID); err != nil {
		h.logger.Warnw("Failed to mark user offline", "user_id", sess.UserID, "error", err)
	}
	h.eventBus.Publish(ctx, eventbus.NewEvent(
		eventbus.EventParticipantPresence, threadID, sess.UserID,
		map[string]interface{}{"status": "offline"},
	))

	h.unregister <- client
	close(client.send)
	conn.Close()
}
