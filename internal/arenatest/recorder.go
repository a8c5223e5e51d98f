// Package arenatest provides an in-memory arenaproto.Sender for tests.
package arenatest

import (
	"errors"
	"sync"

	"github.com/park285/cheese-arena/pkg/arenaproto"
)

var ErrGone = errors.New("arenatest: connection gone")

// Delivery is one recorded Send call.
type Delivery struct {
	ConnID string
	Event  arenaproto.Event
}

// Recorder records every event in delivery order.
type Recorder struct {
	mu   sync.Mutex
	log  []Delivery
	gone map[string]bool
}

func NewRecorder() *Recorder {
	return &Recorder{gone: make(map[string]bool)}
}

func (r *Recorder) Send(connID string, ev arenaproto.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.gone[connID] {
		return ErrGone
	}
	r.log = append(r.log, Delivery{ConnID: connID, Event: ev})
	return nil
}

// Drop makes later sends to connID fail.
func (r *Recorder) Drop(connID string) {
	r.mu.Lock()
	r.gone[connID] = true
	r.mu.Unlock()
}

func (r *Recorder) All() []Delivery {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Delivery(nil), r.log...)
}

// For returns the events delivered to connID.
func (r *Recorder) For(connID string) []arenaproto.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []arenaproto.Event
	for _, d := range r.log {
		if d.ConnID == connID {
			out = append(out, d.Event)
		}
	}
	return out
}

// Types returns the event types delivered to connID.
func (r *Recorder) Types(connID string) []string {
	evs := r.For(connID)
	out := make([]string, 0, len(evs))
	for _, ev := range evs {
		out = append(out, ev.Type)
	}
	return out
}

// Count returns how many events of typ were delivered to connID.
func (r *Recorder) Count(connID, typ string) int {
	n := 0
	for _, ev := range r.For(connID) {
		if ev.Type == typ {
			n++
		}
	}
	return n
}

// Last returns the most recent event of typ delivered to connID.
func (r *Recorder) Last(connID, typ string) (arenaproto.Event, bool) {
	evs := r.For(connID)
	for i := len(evs) - 1; i >= 0; i-- {
		if evs[i].Type == typ {
			return evs[i], true
		}
	}
	return arenaproto.Event{}, false
}

func (r *Recorder) Reset() {
	r.mu.Lock()
	r.log = nil
	r.mu.Unlock()
}
