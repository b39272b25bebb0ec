package controller

import (
	"net/http"
	"runtime/debug"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin: func(r *http.Request) bool {
		// TODO: In production, restrict to specific origins
		return true
	},
}

// ServerMessage represents messages sent to WebSocket clients.
type ServerMessage struct {
	Type    string      `json:"type"`    // "entry", "ping"
	Payload interface{} `json:"payload"` // Event-specific data
}

// HandleWebSocket upgrades the connection and streams every new audit entry
// to the client until it disconnects. Clients send nothing; the read loop
// exists only to detect the close.
func (c *Controller) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		c.App.Logger.Error("Failed to upgrade WebSocket connection", zap.Error(err))
		return
	}
	defer func(conn *websocket.Conn) {
		if err := conn.Close(); err != nil {
			c.App.Logger.Debug("Failed to close WebSocket connection", zap.Error(err))
		}
	}(conn)

	c.App.Logger.Info("WebSocket client connected", zap.String("remote_addr", r.RemoteAddr))

	entries, cancel := c.App.Recorder.Subscribe()
	defer cancel()

	done := make(chan struct{})

	// Read loop: detect client disconnect.
	go func() {
		defer func() {
			if rec := recover(); rec != nil {
				c.App.Logger.Error("WebSocket read loop panic",
					zap.Any("panic", rec), zap.ByteString("stack", debug.Stack()))
			}
			close(done)
		}()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ping := time.NewTicker(30 * time.Second)
	defer ping.Stop()

	for {
		select {
		case <-done:
			c.App.Logger.Info("WebSocket client disconnected", zap.String("remote_addr", r.RemoteAddr))
			return
		case e, ok := <-entries:
			if !ok {
				return
			}
			if err := conn.WriteJSON(ServerMessage{Type: "entry", Payload: e}); err != nil {
				return
			}
		case <-ping.C:
			if err := conn.WriteJSON(ServerMessage{Type: "ping", Payload: map[string]int64{"timestamp": c.App.Now()}}); err != nil {
				return
			}
		}
	}
}
