// Package challenge runs puzzle-duel rooms: up to two players race to find one solution move.
package challenge

import (
	"errors"
	"time"

	"github.com/park285/cheese-arena/internal/puzzle"
	"github.com/park285/cheese-arena/pkg/arenaproto"
)

var (
	ErrRoomFull    = errors.New("room is full")
	ErrUnknownRoom = errors.New("unknown room")
	ErrNotInRoom   = errors.New("connection is not in this room")
	ErrRoomSolved  = errors.New("room already solved")
	ErrInvalidRoom = errors.New("invalid room id")
)

// MaxPlayers is the room capacity.
const MaxPlayers = 2

// DefaultCooldown is how long a solved room lingers so both clients can show the result.
const DefaultCooldown = 5 * time.Second

// Player is one occupant of a room.
type Player struct {
	ConnID  string
	Profile arenaproto.Profile
	Solved  bool
}

// Room is a single puzzle duel.
type Room struct {
	ID        string
	Puzzle    puzzle.Puzzle
	Players   []Player
	Winner    *string
	StartedAt time.Time // zero until the second player joins
	CreatedAt time.Time

	cleanup Stopper
}

func (r *Room) indexOf(connID string) int {
	for i, p := range r.Players {
		if p.ConnID == connID {
			return i
		}
	}
	return -1
}

func (r *Room) connIDs() []string {
	out := make([]string, 0, len(r.Players))
	for _, p := range r.Players {
		out = append(out, p.ConnID)
	}
	return out
}

func (r *Room) state() arenaproto.RoomState {
	players := make([]arenaproto.RoomPlayer, 0, len(r.Players))
	for _, p := range r.Players {
		players = append(players, arenaproto.RoomPlayer{Name: p.Profile.Name, Solved: p.Solved})
	}
	var winner *string
	if r.Winner != nil {
		w := *r.Winner
		winner = &w
	}
	return arenaproto.RoomState{RoomID: r.ID, Players: players, Puzzle: r.Puzzle.View(), Winner: winner}
}

func (r *Room) snapshot() Room {
	cp := *r
	cp.Players = append([]Player(nil), r.Players...)
	if r.Winner != nil {
		w := *r.Winner
		cp.Winner = &w
	}
	cp.cleanup = nil
	return cp
}

// Outcome describes a solved room for a RoomSink.
type Outcome struct {
	RoomID   string
	PuzzleID string
	Winner   arenaproto.Profile
	Players  []string
	Elapsed  time.Duration
	SolvedAt time.Time
}

// RoomSink receives solved rooms. RecordRoom must not block.
type RoomSink interface {
	RecordRoom(o Outcome)
}

// Stopper cancels a scheduled deletion.
type Stopper interface {
	Stop() bool
}

// AfterFunc schedules f after d; time.AfterFunc satisfies it through an adapter.
type AfterFunc func(d time.Duration, f func()) Stopper

func realAfterFunc(d time.Duration, f func()) Stopper { return time.AfterFunc(d, f) }
