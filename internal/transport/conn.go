package transport

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/park285/cheese-arena/internal/obslog"
	"github.com/park285/cheese-arena/pkg/arenaproto"
	"go.uber.org/zap"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"
)

// Conn is one accepted WebSocket with a buffered outbound queue.
type Conn struct {
	id   string
	ws   *websocket.Conn
	out  chan arenaproto.Event
	done chan struct{}

	mu     sync.Mutex
	closed bool
	once   sync.Once
}

func newConn(id string, ws *websocket.Conn, buffer int) *Conn {
	return &Conn{id: id, ws: ws, out: make(chan arenaproto.Event, buffer), done: make(chan struct{})}
}

func (c *Conn) ID() string { return c.id }

func (c *Conn) enqueue(ev arenaproto.Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrUnknownConn
	}
	select {
	case c.out <- ev:
		return nil
	default:
		return ErrSendBufferFull
	}
}

// shutdown stops the writer and ping loops; the read loop ends when the socket closes.
func (c *Conn) shutdown() {
	c.once.Do(func() {
		c.mu.Lock()
		c.closed = true
		c.mu.Unlock()
		close(c.done)
	})
}

func (c *Conn) writeLoop(ctx context.Context, writeTimeout time.Duration) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-c.done:
			return
		case ev := <-c.out:
			wctx, cancel := context.WithTimeout(ctx, writeTimeout)
			err := wsjson.Write(wctx, c.ws, ev)
			cancel()
			if err != nil {
				obslog.L().Debug("conn_write_error", zap.String("conn_id", c.id), zap.String("event", ev.Type), zap.Error(err))
				c.shutdown()
				return
			}
		}
	}
}

// pingLoop closes the connection after two consecutive failed pings.
func (c *Conn) pingLoop(ctx context.Context, interval time.Duration) {
	t := time.NewTicker(interval)
	defer t.Stop()
	failures := 0
	for {
		select {
		case <-ctx.Done():
			return
		case <-c.done:
			return
		case <-t.C:
			pctx, cancel := context.WithTimeout(ctx, 3*time.Second)
			err := c.ws.Ping(pctx)
			cancel()
			if err == nil {
				failures = 0
				continue
			}
			failures++
			if failures >= 2 {
				obslog.L().Info("conn_ping_timeout", zap.String("conn_id", c.id))
				c.shutdown()
				return
			}
		}
	}
}

// readLoop decodes envelopes until the socket fails. Malformed frames get an
// error event and the connection stays open.
func (c *Conn) readLoop(ctx context.Context, handle func(arenaproto.Envelope), malformed func(error)) error {
	for {
		typ, raw, err := c.ws.Read(ctx)
		if err != nil {
			return err
		}
		if typ != websocket.MessageText {
			malformed(errBinaryFrame)
			continue
		}
		var env arenaproto.Envelope
		if err := json.Unmarshal(raw, &env); err != nil {
			malformed(err)
			continue
		}
		if env.Type == "" {
			malformed(errMissingType)
			continue
		}
		handle(env)
	}
}
