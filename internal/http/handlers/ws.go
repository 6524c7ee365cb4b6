package handlers

import (
	"chat-server/internal/ws"

	"github.com/gin-gonic/gin"
)

type WSHandler struct {
	Gateway *ws.Gateway
}

// Handle hands the request over to the gateway, which authenticates the
// handshake and runs the connection until it drops.
func (h *WSHandler) Handle(c *gin.Context) {
	h.Gateway.Serve(c.Writer, c.Request)
}
