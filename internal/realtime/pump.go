package realtime

import (
	"context"
	"encoding/json"
	"time"

	"github.com/coder/websocket"
	"github.com/sirupsen/logrus"
)

// Subprotocol is the websocket subprotocol clients must negotiate.
const Subprotocol = "quiz"

const (
	writeTimeout = 5 * time.Second
	pingInterval = 30 * time.Second
)

// WritePump drains conn.OutChan onto c until the queue closes or ctx ends.
func WritePump(ctx context.Context, c *websocket.Conn, conn *Connection, logger *logrus.Logger) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-conn.OutChan:
			if !ok {
				// Removed from the hub; the room was closed or the client left.
				_ = c.Close(websocket.StatusNormalClosure, "session closed")
				return
			}
			data, err := json.Marshal(ev)
			if err != nil {
				logger.Warnf("realtime: failed to marshal %s for user %v: %v", ev.Type, conn.UserID, err)
				continue
			}
			writeCtx, cancel := context.WithTimeout(ctx, writeTimeout)
			err = c.Write(writeCtx, websocket.MessageText, data)
			cancel()
			if err != nil {
				logger.Debugf("realtime: write to user %v failed: %v", conn.UserID, err)
				conn.Cancel()
				return
			}
		case <-ticker.C:
			pingCtx, cancel := context.WithTimeout(ctx, writeTimeout)
			err := c.Ping(pingCtx)
			cancel()
			if err != nil {
				logger.Debugf("realtime: ping to user %v failed: %v", conn.UserID, err)
				conn.Cancel()
				return
			}
		}
	}
}
