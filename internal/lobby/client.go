package lobby

import (
	"sync"

	"github.com/DoyleJ11/word-guess-backend/internal/types"
)

// Client is one connection's outbound queue. The connection owns it; lobbies
// only ever try non-blocking sends, so a stalled socket never holds up a game.
type Client struct {
	ID   string
	send chan types.ServerMessage
	done chan struct{}
	once sync.Once
}

func NewClient(id string, buffer int) *Client {
	return &Client{
		ID:   id,
		send: make(chan types.ServerMessage, buffer),
		done: make(chan struct{}),
	}
}

func (c *Client) Outbox() <-chan types.ServerMessage { return c.send }
func (c *Client) Done() <-chan struct{}              { return c.done }

// Close marks the client gone. Later deliveries are skipped.
func (c *Client) Close() { c.once.Do(func() { close(c.done) }) }

// Deliver queues msg unless the client is closed or its queue is full.
func (c *Client) Deliver(msg types.ServerMessage) bool {
	select {
	case <-c.done:
		return false
	default:
	}

	select {
	case c.send <- msg:
		return true
	default:
		return false
	}
}
