// Package hub fans live gaze samples out to websocket clients.
// Broadcasts never block the caller: a client that cannot keep up is
// disconnected, and a hub that falls behind drops the broadcast.
package hub

import "github.com/gofiber/websocket/v2"

// Message is one websocket frame queued for every client.
type Message struct {
	Binary bool
	Data   []byte
}

func (m Message) opcode() int {
	if m.Binary {
		return websocket.BinaryMessage
	}
	return websocket.TextMessage
}
