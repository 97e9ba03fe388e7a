package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin:     func(*http.Request) bool { return true },
}

// StreamPortfolio upgrades to a websocket and pushes every portfolio state
// the tracker publishes, starting with the current one. The subscription is
// torn down when the client disconnects.
func (h *Handler) StreamPortfolio(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Warnf("websocket upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()
	states := h.tracker.Subscribe(ctx)

	// Drain reads so close frames are processed; a read error means the
	// client went away and the subscription should be torn down.
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for state := range states {
		if err := conn.WriteJSON(state); err != nil {
			h.log.Debugf("portfolio stream closed: %v", err)
			return
		}
	}
}
