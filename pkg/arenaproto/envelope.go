package arenaproto

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Envelope is an inbound frame: the declared intent plus its raw payload.
type Envelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// Decode unmarshals the payload into v. An absent payload leaves v untouched.
func (e Envelope) Decode(v any) error {
	if len(e.Data) == 0 || string(e.Data) == "null" {
		return nil
	}
	if err := json.Unmarshal(e.Data, v); err != nil {
		return fmt.Errorf("decode %s: %w", e.Type, err)
	}
	return nil
}

// Event is an outbound frame.
type Event struct {
	Type string `json:"type"`
	Data any    `json:"data,omitempty"`
}

// NewEvent is shorthand for Event{Type: typ, Data: data}.
func NewEvent(typ string, data any) Event { return Event{Type: typ, Data: data} }

// Sender delivers one event to one connection. Implementations must not block on
// network I/O; a failed send reports an error and never panics.
type Sender interface {
	Send(connID string, ev Event) error
}

// SenderFunc adapts a function to Sender.
type SenderFunc func(connID string, ev Event) error

func (f SenderFunc) Send(connID string, ev Event) error { return f(connID, ev) }

// Broadcast sends ev to every connection in ids. A failure for one recipient
// does not stop delivery to the others; all failures are joined.
func Broadcast(s Sender, ids []string, ev Event) error {
	if s == nil {
		return nil
	}
	var errs []error
	for _, id := range ids {
		if id == "" {
			continue
		}
		if err := s.Send(id, ev); err != nil {
			errs = append(errs, fmt.Errorf("send %s to %s: %w", ev.Type, id, err))
		}
	}
	return errors.Join(errs...)
}
