// Package arena wires the matchmaking queue, live games and challenge rooms
// behind one event dispatcher.
package arena

import (
	"errors"
	"time"

	"github.com/park285/cheese-arena/internal/challenge"
	"github.com/park285/cheese-arena/internal/livegame"
	"github.com/park285/cheese-arena/internal/matchmaking"
	"github.com/park285/cheese-arena/internal/msgcat"
	"github.com/park285/cheese-arena/internal/obslog"
	"github.com/park285/cheese-arena/internal/participant"
	"github.com/park285/cheese-arena/internal/puzzle"
	"github.com/park285/cheese-arena/pkg/arenaproto"
	"go.uber.org/zap"
)

// Archive receives finished games and solved rooms.
type Archive interface {
	livegame.ResultSink
	challenge.RoomSink
}

// Config carries the engine's tunables and optional collaborators.
type Config struct {
	Puzzles       puzzle.Selector
	Rules         livegame.RulesEngine // nil relays moves unchecked
	Archive       Archive              // nil disables export
	Messages      *msgcat.Catalog
	RoomCooldown  time.Duration
	RatingDelta   int // zero keeps livegame.DefaultRatingDelta
	DefaultRating int
}

// Engine owns the three stores and the participant registry.
type Engine struct {
	sender   arenaproto.Sender
	msgs     *msgcat.Catalog
	registry *participant.Registry
	queue    *matchmaking.Queue
	games    *livegame.Table
	rooms    *challenge.Table
}

func New(sender arenaproto.Sender, cfg Config) *Engine {
	msgs := cfg.Messages
	if msgs == nil {
		msgs = msgcat.Default()
	}
	selector := cfg.Puzzles
	if selector == nil {
		set, err := puzzle.Default()
		if err != nil {
			panic(err)
		}
		selector = puzzle.Uniform(set)
	}

	gameOpts := []livegame.Option{}
	if cfg.Rules != nil {
		gameOpts = append(gameOpts, livegame.WithRules(cfg.Rules))
	}
	if cfg.Archive != nil {
		gameOpts = append(gameOpts, livegame.WithResultSink(cfg.Archive))
	}
	if cfg.RatingDelta > 0 {
		gameOpts = append(gameOpts, livegame.WithRatingDelta(cfg.RatingDelta))
	}
	games := livegame.NewTable(sender, gameOpts...)

	roomOpts := []challenge.Option{
		challenge.WithFullMessage(func(roomID string) string {
			return msgs.Text("room.full", map[string]any{"RoomID": roomID}, "Room is full")
		}),
	}
	if cfg.RoomCooldown > 0 {
		roomOpts = append(roomOpts, challenge.WithCooldown(cfg.RoomCooldown))
	}
	if cfg.Archive != nil {
		roomOpts = append(roomOpts, challenge.WithRoomSink(cfg.Archive))
	}

	return &Engine{
		sender:   sender,
		msgs:     msgs,
		registry: participant.NewRegistry(cfg.DefaultRating),
		queue:    matchmaking.NewQueue(games, sender),
		games:    games,
		rooms:    challenge.NewTable(sender, selector, roomOpts...),
	}
}

// HandleEvent dispatches one inbound envelope from connID.
func (e *Engine) HandleEvent(connID string, env arenaproto.Envelope) {
	p := e.registry.Ensure(connID)
	var err error
	switch env.Type {
	case arenaproto.TypeQueueJoin:
		var req arenaproto.QueueJoinRequest
		if err = env.Decode(&req); err == nil {
			p = e.registry.UpdateProfile(connID, req.Name, req.Avatar)
			e.queue.Enqueue(p)
		}
	case arenaproto.TypeQueueCancel:
		e.queue.Cancel(connID)
	case arenaproto.TypeGameMove:
		var req arenaproto.MoveRequest
		if err = env.Decode(&req); err == nil {
			e.gameErr(connID, req.GameID, e.games.RelayMove(req.GameID, connID, livegame.Move{From: req.From, To: req.To, Promotion: req.Promotion}))
		}
	case arenaproto.TypeGameOver:
		var req arenaproto.GameRef
		if err = env.Decode(&req); err == nil {
			e.gameErr(connID, req.GameID, e.games.ReportGameOver(req.GameID, connID))
		}
	case arenaproto.TypeGameResign:
		var req arenaproto.GameRef
		if err = env.Decode(&req); err == nil {
			e.gameErr(connID, req.GameID, e.games.Resign(req.GameID, connID))
		}
	case arenaproto.TypeGameChat:
		var req arenaproto.ChatRequest
		if err = env.Decode(&req); err == nil {
			e.gameErr(connID, req.GameID, e.games.RelayChat(req.GameID, connID, req.Message.Content))
		}
	case arenaproto.TypeRoomJoin:
		var req arenaproto.RoomJoinRequest
		if err = env.Decode(&req); err == nil {
			p = e.registry.UpdateProfile(connID, req.PlayerName, "")
			e.roomErr(connID, req.RoomID, e.rooms.Join(req.RoomID, p))
		}
	case arenaproto.TypeRoomMove:
		var req arenaproto.RoomMoveRequest
		if err = env.Decode(&req); err == nil {
			_, serr := e.rooms.SubmitMove(req.RoomID, connID, req.Move.SAN)
			e.roomErr(connID, req.RoomID, serr)
		}
	case arenaproto.TypeRoomLeave:
		var req arenaproto.RoomLeaveRequest
		if err = env.Decode(&req); err == nil {
			e.roomErr(connID, req.RoomID, e.rooms.Leave(req.RoomID, connID))
		}
	default:
		e.sendError(connID, e.msgs.Text("envelope.unknown_type", map[string]any{"Type": env.Type}, "Unknown message type"))
		return
	}
	if err != nil {
		e.HandleMalformed(connID, err)
	}
}

// HandleMalformed answers an undecodable frame with an error event to the sender only.
func (e *Engine) HandleMalformed(connID string, err error) {
	obslog.L().Debug("envelope_malformed", zap.String("conn_id", connID), zap.Error(err))
	e.sendError(connID, e.msgs.Text("envelope.malformed", map[string]any{"Detail": err.Error()}, "Malformed message"))
}

// HandleDisconnect unwinds every store for a closed connection. Absence
// anywhere is the common case and is not an error.
func (e *Engine) HandleDisconnect(connID string) {
	queued := e.queue.Cancel(connID)
	inGame := e.games.HandleDisconnect(connID)
	rooms := e.rooms.HandleDisconnect(connID)
	e.registry.Forget(connID)
	obslog.L().Info("conn_reconciled",
		zap.String("conn_id", connID),
		zap.Bool("was_queued", queued),
		zap.Bool("was_in_game", inGame),
		zap.Int("rooms_left", rooms),
	)
}

// gameErr turns a store error into at most one targeted notification.
func (e *Engine) gameErr(connID, gameID string, err error) {
	switch {
	case err == nil:
	case errors.Is(err, livegame.ErrUnknownGame):
		obslog.L().Debug("game_unknown", zap.String("conn_id", connID), zap.String("game_id", gameID))
		e.sendError(connID, e.msgs.Text("game.unknown", map[string]any{"GameID": gameID}, "Unknown game"))
	case errors.Is(err, livegame.ErrNotInGame):
		obslog.L().Debug("game_not_participant", zap.String("conn_id", connID), zap.String("game_id", gameID))
	default:
		// rejected moves were already reported to the sender by the table
		obslog.L().Debug("game_event_rejected", zap.String("conn_id", connID), zap.String("game_id", gameID), zap.Error(err))
	}
}

func (e *Engine) roomErr(connID, roomID string, err error) {
	if err == nil {
		return
	}
	// room.full was sent by the table; everything else is absorbed.
	obslog.L().Debug("room_event_rejected", zap.String("conn_id", connID), zap.String("room_id", roomID), zap.Error(err))
}

func (e *Engine) sendError(connID, msg string) {
	if err := e.sender.Send(connID, arenaproto.NewEvent(arenaproto.TypeError, arenaproto.ErrorPayload{Message: msg})); err != nil {
		obslog.L().Debug("error_send_failed", zap.String("conn_id", connID), zap.Error(err))
	}
}

// Stats is the body of GET /stats.
type Stats struct {
	Queued       int `json:"queued"`
	Games        int `json:"games"`
	Rooms        int `json:"rooms"`
	Participants int `json:"participants"`
	Connections  int `json:"connections"`
}

func (e *Engine) Stats() Stats {
	return Stats{
		Queued:       e.queue.Len(),
		Games:        e.games.Len(),
		Rooms:        e.rooms.Len(),
		Participants: e.registry.Len(),
	}
}
