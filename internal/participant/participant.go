package participant

import (
	"strings"
	"sync"

	"github.com/park285/cheese-arena/pkg/arenaproto"
)

// DefaultRating is the placeholder rating every participant starts with.
const DefaultRating = 1500

// Participant is the ephemeral identity behind one connection.
type Participant struct {
	ConnID string
	Name   string
	Rating int
	Avatar string
}

// Profile returns the public view sent to opponents.
func (p Participant) Profile() arenaproto.Profile {
	return arenaproto.Profile{Name: p.Name, Rating: p.Rating, Avatar: p.Avatar}
}

// New builds a participant with a generated display name.
func New(connID string, rating int) Participant {
	if rating <= 0 {
		rating = DefaultRating
	}
	return Participant{ConnID: connID, Name: GeneratedName(connID), Rating: rating}
}

// GeneratedName derives "Player-xxxxxx" from the connection id.
func GeneratedName(connID string) string {
	id := strings.ReplaceAll(strings.TrimSpace(connID), "-", "")
	if len(id) > 6 {
		id = id[:6]
	}
	if id == "" {
		id = "anon"
	}
	return "Player-" + id
}

// Registry holds one Participant per live connection.
type Registry struct {
	mu     sync.RWMutex
	byConn map[string]Participant
	rating int
}

func NewRegistry(defaultRating int) *Registry {
	if defaultRating <= 0 {
		defaultRating = DefaultRating
	}
	return &Registry{byConn: make(map[string]Participant), rating: defaultRating}
}

// Ensure returns the participant for connID, creating it on first use.
func (r *Registry) Ensure(connID string) Participant {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p, ok := r.byConn[connID]; ok {
		return p
	}
	p := New(connID, r.rating)
	r.byConn[connID] = p
	return p
}

// UpdateProfile overrides the display name and avatar; blank values keep the current ones.
func (r *Registry) UpdateProfile(connID, name, avatar string) Participant {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.byConn[connID]
	if !ok {
		p = New(connID, r.rating)
	}
	if n := strings.TrimSpace(name); n != "" {
		p.Name = n
	}
	if a := strings.TrimSpace(avatar); a != "" {
		p.Avatar = a
	}
	r.byConn[connID] = p
	return p
}

func (r *Registry) Get(connID string) (Participant, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.byConn[connID]
	return p, ok
}

// Forget drops the participant; no-op when absent.
func (r *Registry) Forget(connID string) {
	r.mu.Lock()
	delete(r.byConn, connID)
	r.mu.Unlock()
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byConn)
}
