package hub

import (
	"sync/atomic"
	"time"

	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = pongWait * 9 / 10
	maxInboundSize = 4 * 1024
	sendBuffer     = 256
)

// Conn is the part of a websocket connection a Client uses.
// *websocket.Conn from gofiber/websocket satisfies it.
type Conn interface {
	ReadMessage() (int, []byte, error)
	WriteMessage(messageType int, data []byte) error
	SetReadLimit(limit int64)
	SetReadDeadline(t time.Time) error
	SetWriteDeadline(t time.Time) error
	SetPongHandler(h func(appData string) error)
	Close() error
}

// Client is one subscriber. Feeds are one-way: anything the peer sends is
// read and discarded.
type Client struct {
	id   string
	hub  *Hub
	conn Conn
	send chan Message
	sent atomic.Int64
}

// NewClient registers conn with h. It returns nil once h has stopped.
func NewClient(h *Hub, conn Conn) *Client {
	c := &Client{
		id:   uuid.NewString(),
		hub:  h,
		conn: conn,
		send: make(chan Message, sendBuffer),
	}
	select {
	case h.register <- c:
		return c
	case <-h.done:
		return nil
	}
}

// ID identifies the client in logs.
func (c *Client) ID() string { return c.id }

// Sent returns how many messages were written to the peer.
func (c *Client) Sent() int64 { return c.sent.Load() }

// Serve pumps messages to the peer until either side goes away.
// It blocks, so call it from the websocket handler.
func (c *Client) Serve() {
	go c.write()
	c.read()
}

func (c *Client) read() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxInboundSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (c *Client) write() {
	ping := time.NewTicker(pingPeriod)
	defer func() {
		ping.Stop()
		c.conn.Close()
	}()

	for {
		var (
			op   int
			data []byte
		)
		select {
		case msg, ok := <-c.send:
			if !ok {
				c.conn.SetWriteDeadline(time.Now().Add(writeWait))
				c.conn.WriteMessage(websocket.CloseMessage, nil)
				return
			}
			op, data = msg.opcode(), msg.Data
		case <-ping.C:
			op = websocket.PingMessage
		}

		c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.conn.WriteMessage(op, data); err != nil {
			return
		}
		if op != websocket.PingMessage {
			c.sent.Add(1)
		}
	}
}
