package websocket

import (
	"log"
	"time"

	"github.com/gorilla/websocket"
)

// Client is one connected UI screen. Screens never send application
// messages; the read side exists only to notice disconnects and answer
// pings.
type Client struct {
	id      string
	conn    *websocket.Conn
	manager *Manager
	send    chan []byte
}

func NewClient(id string, conn *websocket.Conn, manager *Manager) *Client {
	return &Client{
		id:      id,
		conn:    conn,
		manager: manager,
		send:    make(chan []byte, 256),
	}
}

// ReadPump discards everything the screen sends and tears the connection
// down when the read side fails.
func (c *Client) ReadPump() {
	defer func() {
		c.manager.Unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadDeadline(time.Now().Add(c.manager.pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(c.manager.pongWait))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("screen %s read error: %v", c.id, err)
			}
			return
		}
	}
}

// WritePump delivers broadcast events and keeps the connection alive with
// pings. One event per frame keeps the screen-side parser trivial.
func (c *Client) WritePump() {
	ticker := time.NewTicker(c.manager.pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(c.manager.writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(c.manager.writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
