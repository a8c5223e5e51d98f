// Package transport carries arena events over WebSocket connections.
package transport

import (
	"errors"
	"sync"

	"github.com/park285/cheese-arena/internal/obslog"
	"github.com/park285/cheese-arena/pkg/arenaproto"
	"go.uber.org/zap"
)

var (
	ErrUnknownConn    = errors.New("unknown connection")
	ErrSendBufferFull = errors.New("send buffer full")
)

// Hub tracks live connections and implements arenaproto.Sender. Send only
// enqueues; each connection's writer goroutine does the network write.
type Hub struct {
	mu    sync.RWMutex
	conns map[string]*Conn
}

func NewHub() *Hub {
	return &Hub{conns: make(map[string]*Conn)}
}

// Send queues ev for connID without blocking. A connection whose buffer is
// full is closed.
func (h *Hub) Send(connID string, ev arenaproto.Event) error {
	h.mu.RLock()
	c, ok := h.conns[connID]
	h.mu.RUnlock()
	if !ok {
		return ErrUnknownConn
	}
	if err := c.enqueue(ev); err != nil {
		if errors.Is(err, ErrSendBufferFull) {
			obslog.L().Warn("conn_send_buffer_full", zap.String("conn_id", connID), zap.String("event", ev.Type))
			c.shutdown()
		}
		return err
	}
	return nil
}

func (h *Hub) add(c *Conn) {
	h.mu.Lock()
	h.conns[c.id] = c
	h.mu.Unlock()
}

func (h *Hub) remove(id string) {
	h.mu.Lock()
	delete(h.conns, id)
	h.mu.Unlock()
}

// Len returns the number of registered connections.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns)
}

// CloseAll asks every connection to shut down.
func (h *Hub) CloseAll() {
	h.mu.RLock()
	conns := make([]*Conn, 0, len(h.conns))
	for _, c := range h.conns {
		conns = append(conns, c)
	}
	h.mu.RUnlock()
	for _, c := range conns {
		c.shutdown()
	}
}
