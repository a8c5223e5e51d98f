package arenaproto

import (
	"encoding/json"
	"errors"
	"strings"
	"time"
)

// Profile is the public view of a participant.
type Profile struct {
	Name   string `json:"name"`
	Rating int    `json:"rating,omitempty"`
	Avatar string `json:"avatar,omitempty"`
}

type QueueJoinRequest struct {
	Name   string `json:"name,omitempty"`
	Avatar string `json:"avatar,omitempty"`
}

type QueueWaiting struct {
	Position int `json:"position"`
}

type MatchFound struct {
	GameID   string  `json:"gameId"`
	Color    string  `json:"color"`
	Opponent Profile `json:"opponentProfile"`
}

// MoveRequest is a relay-only move: endpoint squares plus an optional promotion piece.
type MoveRequest struct {
	GameID    string `json:"gameId"`
	From      string `json:"from"`
	To        string `json:"to"`
	Promotion string `json:"promotion,omitempty"`
}

type MoveRelayed struct {
	From      string `json:"from"`
	To        string `json:"to"`
	Promotion string `json:"promotion,omitempty"`
	SAN       string `json:"san,omitempty"`
}

type MoveRejected struct {
	GameID string `json:"gameId"`
	Reason string `json:"reason"`
}

// GameRef names a game for game.over / game.resign.
type GameRef struct {
	GameID string `json:"gameId"`
}

type GameOver struct {
	GameID      string   `json:"gameId"`
	Winner      *Profile `json:"winnerProfile"`
	RatingDelta int      `json:"ratingDelta"`
	Reason      string   `json:"reason"`
}

type ChatMessage struct {
	Sender    string    `json:"sender"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

type ChatRequest struct {
	GameID  string      `json:"gameId"`
	Message ChatMessage `json:"message"`
}

type RoomJoinRequest struct {
	RoomID     string `json:"roomId"`
	PlayerName string `json:"playerName"`
}

type RoomLeaveRequest struct {
	RoomID string `json:"roomId"`
}

type RoomMoveRequest struct {
	RoomID string       `json:"roomId"`
	Move   MoveNotation `json:"move"`
}

// MoveNotation accepts either "Qh5#" or {"san": "Qh5#"} on the wire.
type MoveNotation struct {
	SAN string `json:"san"`
}

func (m *MoveNotation) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		m.SAN = strings.TrimSpace(s)
		return nil
	}
	var obj struct {
		SAN string `json:"san"`
	}
	if err := json.Unmarshal(b, &obj); err != nil {
		return errors.New("move must be a string or an object with san")
	}
	m.SAN = strings.TrimSpace(obj.SAN)
	return nil
}

type RoomPlayer struct {
	Name   string `json:"name"`
	Solved bool   `json:"solved"`
}

// PuzzleView is the client-visible part of a puzzle; the solution stays on the server.
type PuzzleView struct {
	ID          string `json:"id"`
	FEN         string `json:"fen"`
	Description string `json:"description"`
}

type RoomState struct {
	RoomID  string       `json:"roomId"`
	Players []RoomPlayer `json:"players"`
	Puzzle  PuzzleView   `json:"puzzle"`
	Winner  *string      `json:"winner"`
}

type RoomStarted struct {
	RoomID    string    `json:"roomId"`
	StartedAt time.Time `json:"startedAt"`
}

type RoomResult struct {
	RoomID         string  `json:"roomId"`
	Winner         Profile `json:"winnerProfile"`
	ElapsedSeconds float64 `json:"elapsedSeconds"`
}

type RoomFull struct {
	RoomID  string `json:"roomId"`
	Message string `json:"message"`
}

type ErrorPayload struct {
	Message string `json:"message"`
}
