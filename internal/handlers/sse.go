package handlers

import (
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/yungbote/carebridge-backend/internal/sse"
)

// SSEHandler exposes the event stream plus channel management. Stream
// clients that want run progress subscribe to "run:<id>" or
// "client:<id>" channels.
type SSEHandler struct {
	hub *sse.SSEHub

	mu      sync.Mutex
	clients map[uuid.UUID]*sse.SSEClient
}

func NewSSEHandler(hub *sse.SSEHub) *SSEHandler {
	return &SSEHandler{
		hub:     hub,
		clients: make(map[uuid.UUID]*sse.SSEClient),
	}
}

// GET /api/sse/stream?channel=run:<id>&channel=client:<id>
func (h *SSEHandler) Stream(c *gin.Context) {
	userID := uuid.Nil
	if raw := c.Query("user_id"); raw != "" {
		if parsed, err := uuid.Parse(raw); err == nil {
			userID = parsed
		}
	}

	client := h.hub.NewSSEClient(userID)
	for _, ch := range c.QueryArray("channel") {
		h.hub.AddChannel(client, ch)
	}

	h.mu.Lock()
	h.clients[client.ID] = client
	h.mu.Unlock()

	c.Header("X-SSE-Client-ID", client.ID.String())
	h.hub.ServeHTTP(c.Writer, c.Request, client)

	h.mu.Lock()
	delete(h.clients, client.ID)
	h.mu.Unlock()
	h.hub.CloseClient(client)
}

type subscribeRequest struct {
	ClientID uuid.UUID `json:"client_id" binding:"required"`
	Channel  string    `json:"channel" binding:"required"`
}

// POST /api/sse/subscribe
func (h *SSEHandler) Subscribe(c *gin.Context) {
	var req subscribeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "validation_error", err)
		return
	}
	h.mu.Lock()
	client, ok := h.clients[req.ClientID]
	h.mu.Unlock()
	if !ok {
		RespondError(c, http.StatusNotFound, "not_found", nil)
		return
	}
	h.hub.AddChannel(client, req.Channel)
	RespondOK(c, gin.H{"subscribed": req.Channel})
}

// POST /api/sse/unsubscribe
func (h *SSEHandler) Unsubscribe(c *gin.Context) {
	var req subscribeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "validation_error", err)
		return
	}
	h.mu.Lock()
	client, ok := h.clients[req.ClientID]
	h.mu.Unlock()
	if !ok {
		RespondError(c, http.StatusNotFound, "not_found", nil)
		return
	}
	h.hub.RemoveChannel(client, req.Channel)
	RespondOK(c, gin.H{"unsubscribed": req.Channel})
}
