package websocket

import (
	"encoding/json"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	maxMessageSize = 4096

	sendBuffer = 256
)

// Client is one websocket connection
type Client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte
	id   string
}

// ID returns the connection id handed to the broker
func (c *Client) ID() string {
	return c.id
}

// readPump reads requests one at a time, so actions from one connection are
// dispatched in the order they arrive.
func (c *Client) readPump() {
	defer func() {
		c.hub.leave(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.logger.Warn("websocket read failed", zap.String("conn", c.id), zap.Error(err))
			}
			return
		}
		c.handle(message)
	}
}

func (c *Client) handle(message []byte) {
	var req Request
	if err := json.Unmarshal(message, &req); err != nil {
		c.reply(Envelope{Event: eventError, Data: "invalid message: " + err.Error()})
		return
	}

	reply, err := c.hub.dispatch(c.id, req)
	if err != nil {
		c.hub.logger.Debug("action rejected",
			zap.String("conn", c.id),
			zap.String("action", string(req.Action)),
			zap.Error(err))
		c.reply(Envelope{ID: req.ID, Event: eventError, Data: err.Error()})
		return
	}
	c.reply(Envelope{ID: req.ID, Event: eventReply, Data: reply})
}

func (c *Client) reply(env Envelope) {
	data, err := encode(env)
	if err != nil {
		c.hub.logger.Error("failed to encode reply", zap.Error(err))
		return
	}
	c.hub.deliver(c.id, data)
}

// writePump writes queued messages, one per frame, and keeps the
// connection alive with pings.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// The hub closed the channel
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
