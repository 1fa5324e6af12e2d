package realtime

import (
	"context"

	"github.com/coder/websocket"
	"github.com/google/uuid"
)

// StatusEvicted is sent when the registry drops a socket that cannot keep up
// or whose write failed.
const StatusEvicted websocket.StatusCode = 4408

// WSChannel adapts an accepted websocket connection to Channel.
type WSChannel struct {
	ID   string
	conn *websocket.Conn
}

func NewWSChannel(conn *websocket.Conn) *WSChannel {
	return &WSChannel{ID: uuid.NewString(), conn: conn}
}

func (c *WSChannel) Send(ctx context.Context, msg []byte) error {
	return c.conn.Write(ctx, websocket.MessageText, msg)
}

// Close starts the close handshake and returns at once; the handshake may
// wait on a peer that stopped reading.
func (c *WSChannel) Close(reason string) error {
	go c.conn.Close(StatusEvicted, reason)
	return nil
}
