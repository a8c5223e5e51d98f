// Package archive exports finished games and solved rooms to external stores.
// Nothing is read back; the engine stays in-memory.
package archive

import (
	"context"
	"time"

	"github.com/park285/cheese-arena/internal/challenge"
	"github.com/park285/cheese-arena/internal/livegame"
	"github.com/park285/cheese-arena/pkg/arenaproto"
)

const (
	KindGame = "game"
	KindRoom = "room"
)

// Record is one archived event. Exactly one of Game and Room is set.
type Record struct {
	Kind string      `json:"kind"`
	Game *GameRecord `json:"game,omitempty"`
	Room *RoomRecord `json:"room,omitempty"`
}

func (r Record) ID() string {
	switch {
	case r.Game != nil:
		return r.Game.GameID
	case r.Room != nil:
		return r.Room.RoomID
	}
	return ""
}

type GameRecord struct {
	GameID    string             `json:"gameId"`
	White     arenaproto.Profile `json:"white"`
	Black     arenaproto.Profile `json:"black"`
	Winner    string             `json:"winner,omitempty"` // white, black or "" for a draw
	Reason    string             `json:"reason"`
	MovesUCI  []string           `json:"movesUci"`
	MovesSAN  []string           `json:"movesSan,omitempty"`
	StartedAt time.Time          `json:"startedAt"`
	EndedAt   time.Time          `json:"endedAt"`
}

type RoomRecord struct {
	RoomID         string             `json:"roomId"`
	PuzzleID       string             `json:"puzzleId"`
	Winner         arenaproto.Profile `json:"winner"`
	Players        []string           `json:"players"`
	ElapsedSeconds float64            `json:"elapsedSeconds"`
	SolvedAt       time.Time          `json:"solvedAt"`
}

// FromGame converts a finished live game.
func FromGame(r livegame.Result) Record {
	return Record{Kind: KindGame, Game: &GameRecord{
		GameID:    r.Game.ID,
		White:     r.Game.White.Player.Profile(),
		Black:     r.Game.Black.Player.Profile(),
		Winner:    string(r.Winner),
		Reason:    r.Reason,
		MovesUCI:  append([]string(nil), r.Game.MovesUCI...),
		MovesSAN:  append([]string(nil), r.Game.MovesSAN...),
		StartedAt: r.Game.CreatedAt,
		EndedAt:   r.EndedAt,
	}}
}

// FromRoom converts a solved challenge room.
func FromRoom(o challenge.Outcome) Record {
	return Record{Kind: KindRoom, Room: &RoomRecord{
		RoomID:         o.RoomID,
		PuzzleID:       o.PuzzleID,
		Winner:         o.Winner,
		Players:        append([]string(nil), o.Players...),
		ElapsedSeconds: o.Elapsed.Seconds(),
		SolvedAt:       o.SolvedAt,
	}}
}

// Sink stores records somewhere outside the process.
type Sink interface {
	Name() string
	Write(ctx context.Context, rec Record) error
}
