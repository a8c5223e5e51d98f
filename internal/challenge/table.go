package challenge

import (
	"strings"
	"sync"
	"time"

	"github.com/park285/cheese-arena/internal/obslog"
	"github.com/park285/cheese-arena/internal/participant"
	"github.com/park285/cheese-arena/internal/puzzle"
	"github.com/park285/cheese-arena/pkg/arenaproto"
	"go.uber.org/zap"
)

// Table maps room ids to puzzle duels.
type Table struct {
	mu    sync.Mutex
	rooms map[string]*Room

	sender      arenaproto.Sender
	selector    puzzle.Selector
	sink        RoomSink
	cooldown    time.Duration
	now         func() time.Time
	afterFunc   AfterFunc
	fullMessage func(roomID string) string
}

type Option func(*Table)

func WithCooldown(d time.Duration) Option { return func(t *Table) { t.cooldown = d } }

func WithRoomSink(s RoomSink) Option { return func(t *Table) { t.sink = s } }

func WithClock(now func() time.Time) Option { return func(t *Table) { t.now = now } }

// WithScheduler replaces time.AfterFunc for cooldown deletion.
func WithScheduler(f AfterFunc) Option { return func(t *Table) { t.afterFunc = f } }

// WithFullMessage sets the text carried by room.full.
func WithFullMessage(f func(roomID string) string) Option {
	return func(t *Table) { t.fullMessage = f }
}

func NewTable(sender arenaproto.Sender, selector puzzle.Selector, opts ...Option) *Table {
	t := &Table{
		rooms:       make(map[string]*Room),
		sender:      sender,
		selector:    selector,
		cooldown:    DefaultCooldown,
		now:         time.Now,
		afterFunc:   realAfterFunc,
		fullMessage: func(string) string { return "Room is full" },
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Join seats p in roomID, creating the room on first use. A third distinct
// connection gets ErrRoomFull and a room.full event; occupants are not touched.
func (t *Table) Join(roomID string, p participant.Participant) error {
	roomID = strings.TrimSpace(roomID)
	if roomID == "" {
		return ErrInvalidRoom
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	room, ok := t.rooms[roomID]
	if !ok {
		room = &Room{ID: roomID, Puzzle: t.selector.Pick(), CreatedAt: t.now()}
		t.rooms[roomID] = room
		obslog.L().Info("room_create", zap.String("room_id", roomID), zap.String("puzzle_id", room.Puzzle.ID))
	}

	if room.indexOf(p.ConnID) >= 0 {
		t.broadcastState(room)
		return nil
	}
	if len(room.Players) >= MaxPlayers {
		obslog.L().Info("room_full", zap.String("room_id", roomID), zap.String("conn_id", p.ConnID))
		t.send(p.ConnID, arenaproto.NewEvent(arenaproto.TypeRoomFull, arenaproto.RoomFull{
			RoomID:  roomID,
			Message: t.fullMessage(roomID),
		}))
		return ErrRoomFull
	}

	room.Players = append(room.Players, Player{ConnID: p.ConnID, Profile: p.Profile()})
	obslog.L().Info("room_join",
		zap.String("room_id", roomID),
		zap.String("conn_id", p.ConnID),
		zap.Int("players", len(room.Players)),
	)
	t.broadcastState(room)

	if len(room.Players) == MaxPlayers && room.StartedAt.IsZero() {
		room.StartedAt = t.now()
		t.broadcast(room, arenaproto.NewEvent(arenaproto.TypeRoomStarted, arenaproto.RoomStarted{
			RoomID:    roomID,
			StartedAt: room.StartedAt,
		}))
	}
	return nil
}

// SubmitMove compares san with the puzzle solution, ignoring trailing + and #.
// A match declares the submitter the winner and schedules the room's removal.
// A miss is silent.
func (t *Table) SubmitMove(roomID, connID, san string) (bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	room, ok := t.rooms[strings.TrimSpace(roomID)]
	if !ok {
		return false, ErrUnknownRoom
	}
	if room.Winner != nil {
		return false, ErrRoomSolved
	}
	idx := room.indexOf(connID)
	if idx < 0 {
		return false, ErrNotInRoom
	}
	if !room.Puzzle.Solves(san) {
		obslog.L().Debug("room_move_miss", zap.String("room_id", room.ID), zap.String("conn_id", connID))
		return false, nil
	}

	solvedAt := t.now()
	room.Players[idx].Solved = true
	winner := room.Players[idx].Profile
	name := winner.Name
	room.Winner = &name

	var elapsed time.Duration
	if !room.StartedAt.IsZero() {
		elapsed = solvedAt.Sub(room.StartedAt)
	}
	t.broadcast(room, arenaproto.NewEvent(arenaproto.TypeRoomResult, arenaproto.RoomResult{
		RoomID:         room.ID,
		Winner:         winner,
		ElapsedSeconds: elapsed.Seconds(),
	}))
	obslog.L().Info("room_solved",
		zap.String("room_id", room.ID),
		zap.String("conn_id", connID),
		zap.String("puzzle_id", room.Puzzle.ID),
		zap.Duration("elapsed", elapsed),
	)

	room.cleanup = t.afterFunc(t.cooldown, func() { t.expire(room) })

	if t.sink != nil {
		names := make([]string, 0, len(room.Players))
		for _, p := range room.Players {
			names = append(names, p.Profile.Name)
		}
		t.sink.RecordRoom(Outcome{
			RoomID:   room.ID,
			PuzzleID: room.Puzzle.ID,
			Winner:   winner,
			Players:  names,
			Elapsed:  elapsed,
			SolvedAt: solvedAt,
		})
	}
	return true, nil
}

// Leave removes connID from one room.
func (t *Table) Leave(roomID, connID string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	room, ok := t.rooms[strings.TrimSpace(roomID)]
	if !ok {
		return ErrUnknownRoom
	}
	if !t.removeLocked(room, connID) {
		return ErrNotInRoom
	}
	return nil
}

// HandleDisconnect removes connID from every room it occupies and returns how many rooms it left.
func (t *Table) HandleDisconnect(connID string) int {
	t.mu.Lock()
	defer t.mu.Unlock()

	n := 0
	for _, room := range t.rooms {
		if t.removeLocked(room, connID) {
			n++
		}
	}
	return n
}

// removeLocked drops connID, then either deletes the empty room or tells the rest.
// Deleting during range over t.rooms is safe.
func (t *Table) removeLocked(room *Room, connID string) bool {
	idx := room.indexOf(connID)
	if idx < 0 {
		return false
	}
	room.Players = append(room.Players[:idx], room.Players[idx+1:]...)
	obslog.L().Info("room_leave", zap.String("room_id", room.ID), zap.String("conn_id", connID), zap.Int("players", len(room.Players)))
	if len(room.Players) == 0 {
		t.deleteLocked(room, "empty")
		return true
	}
	t.broadcastState(room)
	return true
}

func (t *Table) expire(room *Room) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.deleteLocked(room, "cooldown")
}

// deleteLocked is idempotent: a room already replaced or removed is left alone.
func (t *Table) deleteLocked(room *Room, cause string) {
	if room.cleanup != nil {
		room.cleanup.Stop()
		room.cleanup = nil
	}
	if cur, ok := t.rooms[room.ID]; !ok || cur != room {
		return
	}
	delete(t.rooms, room.ID)
	obslog.L().Info("room_delete", zap.String("room_id", room.ID), zap.String("cause", cause))
}

// Get returns a copy of the room.
func (t *Table) Get(roomID string) (Room, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	room, ok := t.rooms[roomID]
	if !ok {
		return Room{}, false
	}
	return room.snapshot(), true
}

func (t *Table) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.rooms)
}

func (t *Table) broadcastState(room *Room) {
	t.broadcast(room, arenaproto.NewEvent(arenaproto.TypeRoomStateUpdate, room.state()))
}

func (t *Table) broadcast(room *Room, ev arenaproto.Event) {
	if t.sender == nil {
		return
	}
	if err := arenaproto.Broadcast(t.sender, room.connIDs(), ev); err != nil {
		obslog.L().Warn("room_broadcast_error", zap.String("room_id", room.ID), zap.String("event", ev.Type), zap.Error(err))
	}
}

func (t *Table) send(connID string, ev arenaproto.Event) {
	if t.sender == nil {
		return
	}
	if err := t.sender.Send(connID, ev); err != nil {
		obslog.L().Warn("room_send_error", zap.String("conn_id", connID), zap.Error(err))
	}
}
