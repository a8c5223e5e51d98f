// Package matchmaking pairs waiting participants into live games in arrival order.
package matchmaking

import (
	"sync"
	"time"

	"github.com/park285/cheese-arena/internal/livegame"
	"github.com/park285/cheese-arena/internal/obslog"
	"github.com/park285/cheese-arena/internal/participant"
	"github.com/park285/cheese-arena/pkg/arenaproto"
	"go.uber.org/zap"
)

// PairFailedMessage is sent to both participants when their game cannot be created.
const PairFailedMessage = "could not start a game, join the queue again"

// GameCreator is the part of livegame.Table the queue needs.
type GameCreator interface {
	CreateGame(white, black livegame.Seat) (string, error)
	InGame(connID string) bool
}

// Entry is one waiting participant.
type Entry struct {
	Participant participant.Participant
	JoinedAt    time.Time
}

// Queue is a FIFO of waiting participants. A connection appears at most once.
type Queue struct {
	mu      sync.Mutex
	entries []Entry
	queued  map[string]struct{}

	games  GameCreator
	sender arenaproto.Sender
	now    func() time.Time
}

func NewQueue(games GameCreator, sender arenaproto.Sender) *Queue {
	return &Queue{
		queued: make(map[string]struct{}),
		games:  games,
		sender: sender,
		now:    time.Now,
	}
}

// Enqueue appends p unless it is already queued or seated in a game. When two or
// more entries are waiting, the two oldest are paired immediately, the first as
// white. Returns the new game id, or "" when p keeps waiting.
func (q *Queue) Enqueue(p participant.Participant) string {
	q.mu.Lock()
	defer q.mu.Unlock()

	if _, dup := q.queued[p.ConnID]; dup {
		obslog.L().Debug("queue_join_duplicate", zap.String("conn_id", p.ConnID))
		return ""
	}
	if q.games.InGame(p.ConnID) {
		obslog.L().Debug("queue_join_in_game", zap.String("conn_id", p.ConnID))
		return ""
	}
	q.entries = append(q.entries, Entry{Participant: p, JoinedAt: q.now()})
	q.queued[p.ConnID] = struct{}{}
	obslog.L().Info("queue_join", zap.String("conn_id", p.ConnID), zap.Int("queued", len(q.entries)))

	if len(q.entries) < 2 {
		q.send(p.ConnID, arenaproto.NewEvent(arenaproto.TypeQueueWaiting, arenaproto.QueueWaiting{Position: len(q.entries)}))
		return ""
	}
	return q.pairLocked()
}

// pairLocked dequeues the two oldest entries and hands them to the game table.
// If the table refuses, both are told with an error event and stay dequeued.
func (q *Queue) pairLocked() string {
	a, b := q.entries[0], q.entries[1]
	q.entries = q.entries[2:]
	delete(q.queued, a.Participant.ConnID)
	delete(q.queued, b.Participant.ConnID)

	gameID, err := q.games.CreateGame(
		livegame.Seat{ConnID: a.Participant.ConnID, Player: a.Participant},
		livegame.Seat{ConnID: b.Participant.ConnID, Player: b.Participant},
	)
	if err != nil {
		obslog.L().Error("queue_pair_error",
			zap.String("white_conn", a.Participant.ConnID),
			zap.String("black_conn", b.Participant.ConnID),
			zap.Error(err),
		)
		failed := arenaproto.NewEvent(arenaproto.TypeError, arenaproto.ErrorPayload{Message: PairFailedMessage})
		q.send(a.Participant.ConnID, failed)
		q.send(b.Participant.ConnID, failed)
		return ""
	}
	obslog.L().Info("queue_pair",
		zap.String("game_id", gameID),
		zap.String("white_conn", a.Participant.ConnID),
		zap.String("black_conn", b.Participant.ConnID),
		zap.Duration("white_wait", q.now().Sub(a.JoinedAt)),
	)
	return gameID
}

// Cancel removes connID from the queue. No-op when absent.
func (q *Queue) Cancel(connID string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if _, ok := q.queued[connID]; !ok {
		return false
	}
	delete(q.queued, connID)
	for i, e := range q.entries {
		if e.Participant.ConnID == connID {
			q.entries = append(q.entries[:i], q.entries[i+1:]...)
			break
		}
	}
	obslog.L().Info("queue_cancel", zap.String("conn_id", connID), zap.Int("queued", len(q.entries)))
	return true
}

func (q *Queue) Contains(connID string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	_, ok := q.queued[connID]
	return ok
}

func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.entries)
}

func (q *Queue) send(connID string, ev arenaproto.Event) {
	if q.sender == nil {
		return
	}
	if err := q.sender.Send(connID, ev); err != nil {
		obslog.L().Warn("queue_send_error", zap.String("conn_id", connID), zap.Error(err))
	}
}
