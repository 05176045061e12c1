package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/yungbote/adstudio-backend/internal/http/response"
	"github.com/yungbote/adstudio-backend/internal/platform/logger"
	"github.com/yungbote/adstudio-backend/internal/realtime"
)

type RealtimeHandler struct {
	log *logger.Logger
	hub *realtime.SSEHub
}

func NewRealtimeHandler(log *logger.Logger, hub *realtime.SSEHub) *RealtimeHandler {
	return &RealtimeHandler{log: log.With("handler", "RealtimeHandler"), hub: hub}
}

// GET /api/events/stream
// Every connection of a user subscribes to that user's channel.
func (h *RealtimeHandler) SSEStream(c *gin.Context) {
	userID := currentUser(c)
	if userID == uuid.Nil {
		response.Abort(c, http.StatusUnauthorized, "unauthorized", "not authenticated")
		return
	}
	client := h.hub.NewSSEClient(userID)
	h.log.Info("SSEStream open", "user_id", userID.String(), "client_id", client.ID)

	h.hub.AddChannel(client, realtime.UserChannel(userID))
	defer h.hub.CloseClient(client)

	h.hub.ServeHTTP(c.Writer, c.Request, client)
	h.log.Debug("SSEStream closed", "client_id", client.ID)
}
