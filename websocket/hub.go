// Package websocket fans admin dashboard events out to connected clients.
package websocket

import (
	"context"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/sdcpainting/referral_site/services"
)

// Conn is the part of a websocket connection the hub writes to.
type Conn interface {
	WriteJSON(v interface{}) error
	Close() error
}

type Client struct {
	UserID string
	Conn   Conn
}

type Hub struct {
	clients    map[*Client]struct{}
	register   chan *Client
	unregister chan *Client
	broadcast  chan services.Event
	done       chan struct{}
	count      atomic.Int64
	log        *zap.Logger
}

func NewHub(log *zap.Logger) *Hub {
	return &Hub{
		clients:    make(map[*Client]struct{}),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan services.Event, 64),
		done:       make(chan struct{}),
		log:        log.Named("hub"),
	}
}

func (h *Hub) Register(c *Client) {
	select {
	case h.register <- c:
	case <-h.done:
	}
}

func (h *Hub) Unregister(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}

// Publish queues e for every connected client. It never blocks the caller;
// when the buffer is full the event is dropped.
func (h *Hub) Publish(e services.Event) {
	select {
	case h.broadcast <- e:
	default:
		h.log.Warn("live feed buffer full, event dropped", zap.String("type", e.Type))
	}
}

// Clients reports how many connections are registered.
func (h *Hub) Clients() int {
	return int(h.count.Load())
}

// Run owns the client set until ctx is cancelled, then closes every
// connection.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			for c := range h.clients {
				c.Conn.Close()
				delete(h.clients, c)
			}
			h.count.Store(0)
			return
		case c := <-h.register:
			h.clients[c] = struct{}{}
			h.count.Store(int64(len(h.clients)))
			h.log.Debug("client registered", zap.String("user_id", c.UserID))
		case c := <-h.unregister:
			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				h.count.Store(int64(len(h.clients)))
				h.log.Debug("client unregistered", zap.String("user_id", c.UserID))
			}
		case e := <-h.broadcast:
			for c := range h.clients {
				if err := c.Conn.WriteJSON(e); err != nil {
					h.log.Warn("live feed write failed", zap.String("user_id", c.UserID), zap.Error(err))
					c.Conn.Close()
					delete(h.clients, c)
				}
			}
			h.count.Store(int64(len(h.clients)))
		}
	}
}
