package handler

import (
	"encoding/json"
	"net/http"

	"prakriti-service/internal/logger"
	"prakriti-service/internal/service"

	"github.com/gin-gonic/gin"
)

type NotificationHandler struct {
	notificationService *service.NotificationService
	log                 *logger.Logger
}

func NewNotificationHandler(notificationService *service.NotificationService, log *logger.Logger) *NotificationHandler {
	return &NotificationHandler{
		notificationService: notificationService,
		log:                 log,
	}
}

func (h *NotificationHandler) GetNotifications(c *gin.Context) {
	actor, ok := mustActor(c)
	if !ok {
		return
	}

	response, err := h.notificationService.GetUserNotifications(c.Request.Context(), actor.UserID)
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	c.JSON(http.StatusOK, response)
}

// StreamNotifications holds an SSE connection open until the client leaves
// or the hub shuts down.
func (h *NotificationHandler) StreamNotifications(c *gin.Context) {
	actor, ok := mustActor(c)
	if !ok {
		return
	}

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")
	client := h.notificationService.RegisterClient(actor.UserID)
	defer h.notificationService.UnregisterClient(client)

	c.SSEvent("connected", gin.H{"status": "connected", "user_id": actor.UserID.String()})
	c.Writer.Flush()

	clientGone := c.Request.Context().Done()
	for {
		select {
		case <-clientGone:
			return
		case notification, ok := <-client.Channel:
			if !ok {
				return
			}
			data, err := json.Marshal(notification)
			if err != nil {
				h.log.WithError(err).Warn("encode notification")
				continue
			}
			c.SSEvent("notification", string(data))
			c.Writer.Flush()
		}
	}
}

func (h *NotificationHandler) MarkAsRead(c *gin.Context) {
	actor, ok := mustActor(c)
	if !ok {
		return
	}
	notificationID, ok := paramUUID(c, "id")
	if !ok {
		return
	}

	if err := h.notificationService.MarkAsRead(c.Request.Context(), notificationID, actor.UserID); err != nil {
		respondError(c, h.log, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "marked as read"})
}

func (h *NotificationHandler) MarkAllAsRead(c *gin.Context) {
	actor, ok := mustActor(c)
	if !ok {
		return
	}

	if err := h.notificationService.MarkAllAsRead(c.Request.Context(), actor.UserID); err != nil {
		respondError(c, h.log, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "all marked as read"})
}
