package livegame

import (
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/park285/cheese-arena/internal/obslog"
	"github.com/park285/cheese-arena/pkg/arenaproto"
	"go.uber.org/zap"
)

var (
	ErrUnknownGame   = errors.New("unknown game")
	ErrNotInGame     = errors.New("connection is not a participant of this game")
	ErrAlreadyInGame = errors.New("connection already has an active game")
	ErrInvalidSeats  = errors.New("invalid seats")
	ErrIllegalMove   = errors.New("illegal move")
	ErrNotYourTurn   = errors.New("not your turn")
	ErrGameNotOver   = errors.New("game is not over")
)

// DefaultRatingDelta is the cosmetic rating change announced with every decisive result.
const DefaultRatingDelta = 10

// Table maps game ids to live two-player sessions.
type Table struct {
	mu     sync.Mutex
	games  map[string]*Game
	byConn map[string]string // connID -> gameID

	sender      arenaproto.Sender
	rules       RulesEngine
	sink        ResultSink
	ratingDelta int
	now         func() time.Time
	newID       func() string
}

type Option func(*Table)

// WithRules enables server-side validation of every relayed move.
func WithRules(r RulesEngine) Option { return func(t *Table) { t.rules = r } }

func WithResultSink(s ResultSink) Option { return func(t *Table) { t.sink = s } }

func WithRatingDelta(d int) Option { return func(t *Table) { t.ratingDelta = d } }

func WithClock(now func() time.Time) Option { return func(t *Table) { t.now = now } }

func WithIDGenerator(f func() string) Option { return func(t *Table) { t.newID = f } }

func NewTable(sender arenaproto.Sender, opts ...Option) *Table {
	t := &Table{
		games:       make(map[string]*Game),
		byConn:      make(map[string]string),
		sender:      sender,
		ratingDelta: DefaultRatingDelta,
		now:         time.Now,
		newID:       func() string { return "game-" + uuid.NewString() },
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// CreateGame seats a as white and b as black, stores the game and notifies both
// players before returning. Both notifications carry the same game id.
func (t *Table) CreateGame(a, b Seat) (string, error) {
	if strings.TrimSpace(a.ConnID) == "" || strings.TrimSpace(b.ConnID) == "" || a.ConnID == b.ConnID {
		return "", ErrInvalidSeats
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, busy := t.byConn[a.ConnID]; busy {
		return "", ErrAlreadyInGame
	}
	if _, busy := t.byConn[b.ConnID]; busy {
		return "", ErrAlreadyInGame
	}

	g := &Game{
		ID:        t.newID(),
		White:     a,
		Black:     b,
		Status:    StatusPlaying,
		MovesUCI:  []string{},
		MovesSAN:  []string{},
		CreatedAt: t.now(),
	}
	if t.rules != nil {
		board, err := t.rules.NewBoard()
		if err != nil {
			return "", err
		}
		g.board = board
	}
	t.games[g.ID] = g
	t.byConn[a.ConnID] = g.ID
	t.byConn[b.ConnID] = g.ID

	obslog.L().Info("game_create",
		zap.String("game_id", g.ID),
		zap.String("white_conn", a.ConnID),
		zap.String("black_conn", b.ConnID),
		zap.Bool("validated", g.board != nil),
	)
	t.send(a.ConnID, arenaproto.NewEvent(arenaproto.TypeMatchFound, arenaproto.MatchFound{
		GameID: g.ID, Color: string(White), Opponent: b.Player.Profile(),
	}))
	t.send(b.ConnID, arenaproto.NewEvent(arenaproto.TypeMatchFound, arenaproto.MatchFound{
		GameID: g.ID, Color: string(Black), Opponent: a.Player.Profile(),
	}))
	return g.ID, nil
}

// RelayMove forwards mv verbatim to the opponent of from. With a RulesEngine the
// move is first checked for turn and legality, and a move that ends the game
// finishes it.
func (t *Table) RelayMove(gameID, from string, mv Move) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	g, err := t.lookup(gameID, from)
	if err != nil {
		return err
	}
	side := g.colorOf(from)
	opp := g.seat(side.Opposite())

	relayed := arenaproto.MoveRelayed{From: mv.From, To: mv.To, Promotion: mv.Promotion}
	if g.board != nil {
		san, aerr := g.board.Apply(side, mv)
		if aerr != nil {
			obslog.L().Debug("game_move_rejected", zap.String("game_id", g.ID), zap.String("conn_id", from), zap.Error(aerr))
			t.send(from, arenaproto.NewEvent(arenaproto.TypeMoveRejected, arenaproto.MoveRejected{GameID: g.ID, Reason: aerr.Error()}))
			return aerr
		}
		relayed.SAN = san
		g.MovesSAN = append(g.MovesSAN, san)
	}
	g.MovesUCI = append(g.MovesUCI, mv.UCI())
	t.send(opp.ConnID, arenaproto.NewEvent(arenaproto.TypeMoveRelayed, relayed))

	obslog.L().Debug("game_move_relay",
		zap.String("game_id", g.ID),
		zap.String("from_conn", from),
		zap.String("to_conn", opp.ConnID),
		zap.String("uci", mv.UCI()),
	)

	if g.board != nil {
		if v, over := g.board.Terminal(); over {
			reason := arenaproto.ReasonCheckmate
			if v.Winner == "" {
				reason = arenaproto.ReasonDraw
			}
			t.finish(g, v.Winner, reason, g.White.ConnID, g.Black.ConnID)
		}
	}
	return nil
}

// ReportGameOver ends the game on the reporter's word. The winner is the
// participant other than the reporter. With a RulesEngine the report is only
// honoured when the board agrees the game is over.
func (t *Table) ReportGameOver(gameID, reporter string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	g, err := t.lookup(gameID, reporter)
	if err != nil {
		return err
	}
	if g.board != nil {
		v, over := g.board.Terminal()
		if !over {
			t.send(reporter, arenaproto.NewEvent(arenaproto.TypeMoveRejected, arenaproto.MoveRejected{GameID: g.ID, Reason: ErrGameNotOver.Error()}))
			return ErrGameNotOver
		}
		reason := arenaproto.ReasonCheckmate
		if v.Winner == "" {
			reason = arenaproto.ReasonDraw
		}
		t.finish(g, v.Winner, reason, g.White.ConnID, g.Black.ConnID)
		return nil
	}
	winner := g.colorOf(reporter).Opposite()
	t.finish(g, winner, arenaproto.ReasonCheckmate, g.White.ConnID, g.Black.ConnID)
	return nil
}

// Resign ends the game in favour of the opponent of connID.
func (t *Table) Resign(gameID, connID string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	g, err := t.lookup(gameID, connID)
	if err != nil {
		return err
	}
	t.finish(g, g.colorOf(connID).Opposite(), arenaproto.ReasonResignation, g.White.ConnID, g.Black.ConnID)
	return nil
}

// RelayChat forwards a chat line to the opponent. The sender name is taken from
// the seat, never from the client payload.
func (t *Table) RelayChat(gameID, from, content string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	g, err := t.lookup(gameID, from)
	if err != nil {
		return err
	}
	side := g.colorOf(from)
	msg := arenaproto.ChatMessage{Sender: g.seat(side).Player.Name, Content: content, Timestamp: t.now()}
	t.send(g.seat(side.Opposite()).ConnID, arenaproto.NewEvent(arenaproto.TypeGameChat, msg))
	return nil
}

// HandleDisconnect awards the game owned by connID, if any, to the remaining
// player and notifies only that player. Reports whether a game was closed.
func (t *Table) HandleDisconnect(connID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	gameID, ok := t.byConn[connID]
	if !ok {
		return false
	}
	g, ok := t.games[gameID]
	if !ok {
		delete(t.byConn, connID)
		return false
	}
	remaining := g.colorOf(connID).Opposite()
	t.finish(g, remaining, arenaproto.ReasonOpponentLeft, g.seat(remaining).ConnID)
	return true
}

// InGame reports whether connID is seated in an active game.
func (t *Table) InGame(connID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.byConn[connID]
	return ok
}

// Get returns a copy of the game.
func (t *Table) Get(gameID string) (Game, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	g, ok := t.games[gameID]
	if !ok {
		return Game{}, false
	}
	return g.snapshot(), true
}

func (t *Table) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.games)
}

func (t *Table) lookup(gameID, connID string) (*Game, error) {
	g, ok := t.games[strings.TrimSpace(gameID)]
	if !ok {
		return nil, ErrUnknownGame
	}
	if g.colorOf(connID) == "" {
		return nil, ErrNotInGame
	}
	return g, nil
}

// finish delivers the terminal result to recipients and drops the game. Caller holds t.mu.
func (t *Table) finish(g *Game, winner Color, reason string, recipients ...string) {
	g.Status = StatusFinished
	payload := arenaproto.GameOver{GameID: g.ID, Reason: reason}
	if winner != "" {
		p := g.seat(winner).Player.Profile()
		payload.Winner = &p
		payload.RatingDelta = t.ratingDelta
	}
	if err := arenaproto.Broadcast(t.sender, recipients, arenaproto.NewEvent(arenaproto.TypeGameOver, payload)); err != nil {
		obslog.L().Warn("game_over_delivery", zap.String("game_id", g.ID), zap.Error(err))
	}

	delete(t.games, g.ID)
	delete(t.byConn, g.White.ConnID)
	delete(t.byConn, g.Black.ConnID)

	obslog.L().Info("game_over",
		zap.String("game_id", g.ID),
		zap.String("winner", string(winner)),
		zap.String("reason", reason),
		zap.Int("plies", len(g.MovesUCI)),
	)
	if t.sink != nil {
		t.sink.RecordGame(Result{Game: g.snapshot(), Winner: winner, Reason: reason, EndedAt: t.now()})
	}
}

func (t *Table) send(connID string, ev arenaproto.Event) {
	if t.sender == nil {
		return
	}
	if err := t.sender.Send(connID, ev); err != nil {
		obslog.L().Warn("game_send_error", zap.String("conn_id", connID), zap.String("event", ev.Type), zap.Error(err))
	}
}
