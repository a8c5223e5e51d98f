package livegame

import (
	"strings"
	"time"

	"github.com/park285/cheese-arena/internal/participant"
)

// Color identifies a chess side.
type Color string

const (
	White Color = "white"
	Black Color = "black"
)

func (c Color) Opposite() Color {
	if c == White {
		return Black
	}
	return White
}

// Status is the LiveGame lifecycle. Finished games are removed from the table,
// so StatusFinished is only ever seen on snapshots handed out at the end.
type Status string

const (
	StatusPlaying  Status = "PLAYING"
	StatusFinished Status = "FINISHED"
)

// Seat is one side of a game.
type Seat struct {
	ConnID string
	Player participant.Participant
}

// Move is a relay-only move descriptor.
type Move struct {
	From      string
	To        string
	Promotion string
}

// UCI renders the move as e2e4 / e7e8q.
func (m Move) UCI() string {
	return strings.ToLower(strings.TrimSpace(m.From) + strings.TrimSpace(m.To) + strings.TrimSpace(m.Promotion))
}

// Game is a two-player live session.
type Game struct {
	ID        string
	White     Seat
	Black     Seat
	Status    Status
	MovesUCI  []string
	MovesSAN  []string
	CreatedAt time.Time

	board Board
}

func (g *Game) colorOf(connID string) Color {
	switch connID {
	case g.White.ConnID:
		return White
	case g.Black.ConnID:
		return Black
	}
	return ""
}

func (g *Game) seat(c Color) Seat {
	if c == White {
		return g.White
	}
	return g.Black
}

func (g *Game) snapshot() Game {
	cp := *g
	cp.MovesUCI = append([]string(nil), g.MovesUCI...)
	cp.MovesSAN = append([]string(nil), g.MovesSAN...)
	cp.board = nil
	return cp
}

// Verdict is a terminal condition detected by a RulesEngine. Winner is empty for draws.
type Verdict struct {
	Winner Color
	Method string
}

// RulesEngine creates per-game boards. A Table without one relays moves unchecked.
type RulesEngine interface {
	NewBoard() (Board, error)
}

// Board is the server-side copy of one game's position.
type Board interface {
	// Apply plays mv for side and returns its SAN. Returns ErrNotYourTurn or ErrIllegalMove.
	Apply(side Color, mv Move) (string, error)
	Terminal() (Verdict, bool)
}

// Result is the snapshot of a finished game handed to a ResultSink.
type Result struct {
	Game    Game
	Winner  Color
	Reason  string
	EndedAt time.Time
}

// ResultSink receives finished games. RecordGame must not block.
type ResultSink interface {
	RecordGame(r Result)
}
