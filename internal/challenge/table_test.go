package challenge

import (
	"errors"
	"testing"
	"time"

	"github.com/park285/cheese-arena/internal/arenatest"
	"github.com/park285/cheese-arena/internal/participant"
	"github.com/park285/cheese-arena/internal/puzzle"
	"github.com/park285/cheese-arena/pkg/arenaproto"
)

var mateInOne = puzzle.Puzzle{
	ID:          "p1",
	FEN:         "8/5pk1/5p1p/2R3p1/8/8/5PPP/6K1 w - - 0 1",
	Description: "White to play and checkmate in 1",
	Solution:    "Rc7#",
}

type fakeTimer struct {
	d       time.Duration
	fire    func()
	stopped bool
}

func (f *fakeTimer) Stop() bool {
	was := !f.stopped
	f.stopped = true
	return was
}

type fakeScheduler struct{ timers []*fakeTimer }

func (s *fakeScheduler) AfterFunc(d time.Duration, f func()) Stopper {
	ft := &fakeTimer{d: d, fire: f}
	s.timers = append(s.timers, ft)
	return ft
}

type roomSink struct{ got []Outcome }

func (r *roomSink) RecordRoom(o Outcome) { r.got = append(r.got, o) }

type fixture struct {
	tbl   *Table
	rec   *arenatest.Recorder
	sched *fakeScheduler
	sink  *roomSink
	clock *time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	now := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	f := &fixture{rec: arenatest.NewRecorder(), sched: &fakeScheduler{}, sink: &roomSink{}, clock: &now}
	f.tbl = NewTable(f.rec, puzzle.Fixed(mateInOne),
		WithScheduler(f.sched.AfterFunc),
		WithClock(func() time.Time { return *f.clock }),
		WithRoomSink(f.sink),
		WithFullMessage(func(id string) string { return id + " is full" }),
	)
	return f
}

func (f *fixture) advance(d time.Duration) { *f.clock = f.clock.Add(d) }

func named(id, name string) participant.Participant {
	p := participant.New(id, 0)
	p.Name = name
	return p
}

func TestScenarioSolveRoom(t *testing.T) {
	f := newFixture(t)
	if err := f.tbl.Join("r1", named("X", "xavier")); err != nil {
		t.Fatalf("join X: %v", err)
	}
	room, _ := f.tbl.Get("r1")
	if len(room.Players) != 1 || !room.StartedAt.IsZero() {
		t.Fatalf("after X: %+v", room)
	}
	if f.rec.Count("X", arenaproto.TypeRoomStarted) != 0 {
		t.Fatalf("started too early")
	}

	f.advance(time.Second)
	if err := f.tbl.Join("r1", named("Y", "yuna")); err != nil {
		t.Fatalf("join Y: %v", err)
	}
	for _, c := range []string{"X", "Y"} {
		if f.rec.Count(c, arenaproto.TypeRoomStarted) != 1 {
			t.Fatalf("%s room.started count: %v", c, f.rec.Types(c))
		}
	}
	room, _ = f.tbl.Get("r1")
	startedAt := room.StartedAt
	if startedAt.IsZero() {
		t.Fatalf("startedAt not set")
	}

	f.advance(12 * time.Second)
	if won, err := f.tbl.SubmitMove("r1", "Y", "Rc8"); won || err != nil {
		t.Fatalf("wrong move: won=%v err=%v", won, err)
	}
	if f.rec.Count("X", arenaproto.TypeRoomResult) != 0 {
		t.Fatalf("a miss must not broadcast")
	}
	if won, err := f.tbl.SubmitMove("r1", "X", "Rc7"); !won || err != nil {
		t.Fatalf("solution: won=%v err=%v", won, err)
	}
	for _, c := range []string{"X", "Y"} {
		ev, ok := f.rec.Last(c, arenaproto.TypeRoomResult)
		if !ok {
			t.Fatalf("%s: no room.result", c)
		}
		res := ev.Data.(arenaproto.RoomResult)
		if res.Winner.Name != "xavier" || res.ElapsedSeconds != 12 {
			t.Fatalf("%s: result %+v", c, res)
		}
	}

	before := len(f.rec.All())
	if won, err := f.tbl.SubmitMove("r1", "Y", "Rc7#"); won || !errors.Is(err, ErrRoomSolved) {
		t.Fatalf("late move: won=%v err=%v", won, err)
	}
	if len(f.rec.All()) != before {
		t.Fatalf("late move broadcast something")
	}
	room, _ = f.tbl.Get("r1")
	if room.Winner == nil || *room.Winner != "xavier" || !room.Players[0].Solved || !room.StartedAt.Equal(startedAt) {
		t.Fatalf("room after solve: %+v", room)
	}
	if len(f.sink.got) != 1 || f.sink.got[0].Elapsed != 12*time.Second {
		t.Fatalf("sink: %+v", f.sink.got)
	}

	if len(f.sched.timers) != 1 || f.sched.timers[0].d != DefaultCooldown {
		t.Fatalf("cooldown not scheduled: %+v", f.sched.timers)
	}
	f.sched.timers[0].fire()
	if _, ok := f.tbl.Get("r1"); ok {
		t.Fatalf("room should be gone after cooldown")
	}
}

func TestThirdJoinerGetsRoomFull(t *testing.T) {
	f := newFixture(t)
	f.tbl.Join("r1", named("X", "x"))
	f.tbl.Join("r1", named("Y", "y"))
	before := len(f.rec.For("X")) + len(f.rec.For("Y"))

	if err := f.tbl.Join("r1", named("Z", "z")); !errors.Is(err, ErrRoomFull) {
		t.Fatalf("third join: %v", err)
	}
	ev, ok := f.rec.Last("Z", arenaproto.TypeRoomFull)
	if !ok || ev.Data.(arenaproto.RoomFull).Message != "r1 is full" {
		t.Fatalf("room.full: %+v", ev)
	}
	if after := len(f.rec.For("X")) + len(f.rec.For("Y")); after != before {
		t.Fatalf("occupants disturbed: %d -> %d", before, after)
	}
	room, _ := f.tbl.Get("r1")
	if len(room.Players) != 2 {
		t.Fatalf("players = %d", len(room.Players))
	}
}

func TestDuplicateJoinDoesNotAppend(t *testing.T) {
	f := newFixture(t)
	f.tbl.Join("r1", named("X", "x"))
	if err := f.tbl.Join("r1", named("X", "x")); err != nil {
		t.Fatalf("duplicate join: %v", err)
	}
	f.tbl.Join("r1", named("Y", "y"))
	if err := f.tbl.Join("r1", named("Y", "y")); err != nil {
		t.Fatalf("duplicate join on full room: %v", err)
	}
	room, _ := f.tbl.Get("r1")
	if len(room.Players) != 2 {
		t.Fatalf("players = %d", len(room.Players))
	}
	if f.rec.Count("X", arenaproto.TypeRoomStarted) != 1 {
		t.Fatalf("room.started must fire once")
	}
}

func TestSubmitErrors(t *testing.T) {
	f := newFixture(t)
	if _, err := f.tbl.SubmitMove("nope", "X", "Rc7"); !errors.Is(err, ErrUnknownRoom) {
		t.Fatalf("unknown: %v", err)
	}
	f.tbl.Join("r1", named("X", "x"))
	if _, err := f.tbl.SubmitMove("r1", "Q", "Rc7"); !errors.Is(err, ErrNotInRoom) {
		t.Fatalf("outsider: %v", err)
	}
	if err := f.tbl.Join(" ", named("X", "x")); !errors.Is(err, ErrInvalidRoom) {
		t.Fatalf("blank id: %v", err)
	}
}

func TestSoloSolveHasZeroElapsed(t *testing.T) {
	f := newFixture(t)
	f.tbl.Join("r1", named("X", "x"))
	f.advance(30 * time.Second)
	if won, _ := f.tbl.SubmitMove("r1", "X", "Rc7+"); !won {
		t.Fatalf("expected win")
	}
	ev, _ := f.rec.Last("X", arenaproto.TypeRoomResult)
	if ev.Data.(arenaproto.RoomResult).ElapsedSeconds != 0 {
		t.Fatalf("elapsed = %v", ev.Data)
	}
}

func TestDisconnectLeavesEveryRoom(t *testing.T) {
	f := newFixture(t)
	f.tbl.Join("r1", named("X", "x"))
	f.tbl.Join("r1", named("Y", "y"))
	f.tbl.Join("r2", named("X", "x"))
	f.rec.Reset()

	if n := f.tbl.HandleDisconnect("X"); n != 2 {
		t.Fatalf("rooms left = %d", n)
	}
	if _, ok := f.tbl.Get("r2"); ok {
		t.Fatalf("empty room r2 should be deleted")
	}
	room, ok := f.tbl.Get("r1")
	if !ok || len(room.Players) != 1 || room.Players[0].ConnID != "Y" {
		t.Fatalf("r1 = %+v", room)
	}
	ev, ok := f.rec.Last("Y", arenaproto.TypeRoomStateUpdate)
	if !ok || len(ev.Data.(arenaproto.RoomState).Players) != 1 {
		t.Fatalf("Y state update: %+v", ev)
	}
	if len(f.rec.For("X")) != 0 {
		t.Fatalf("disconnected conn got %v", f.rec.Types("X"))
	}
	if f.tbl.HandleDisconnect("X") != 0 {
		t.Fatalf("second disconnect should be a no-op")
	}
}

func TestEmptyRoomCancelsCooldown(t *testing.T) {
	f := newFixture(t)
	f.tbl.Join("r1", named("X", "x"))
	f.tbl.SubmitMove("r1", "X", "Rc7#")
	if err := f.tbl.Leave("r1", "X"); err != nil {
		t.Fatalf("Leave: %v", err)
	}
	timer := f.sched.timers[0]
	if !timer.stopped {
		t.Fatalf("cooldown should be cancelled")
	}

	// A new room under the same id must survive the stale timer.
	f.tbl.Join("r1", named("Z", "z"))
	timer.fire()
	if _, ok := f.tbl.Get("r1"); !ok {
		t.Fatalf("stale cooldown deleted a fresh room")
	}
	if err := f.tbl.Leave("r1", "nobody"); !errors.Is(err, ErrNotInRoom) {
		t.Fatalf("leave outsider: %v", err)
	}
}

func TestRealSchedulerDeletesRoom(t *testing.T) {
	rec := arenatest.NewRecorder()
	tbl := NewTable(rec, puzzle.Fixed(mateInOne), WithCooldown(10*time.Millisecond))
	tbl.Join("r1", named("X", "x"))
	tbl.SubmitMove("r1", "X", "Rc7#")
	deadline := time.Now().Add(2 * time.Second)
	for tbl.Len() != 0 {
		if time.Now().After(deadline) {
			t.Fatalf("room not deleted after cooldown")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestResultReachesSolverWhenOpponentSendFails(t *testing.T) {
	f := newFixture(t)
	_ = f.tbl.Join("r1", named("X", "xavier"))
	_ = f.tbl.Join("r1", named("Y", "yuna"))
	f.rec.Drop("X")

	won, err := f.tbl.SubmitMove("r1", "Y", "Rc7#")
	if !won || err != nil {
		t.Fatalf("solve: won=%v err=%v", won, err)
	}
	if n := f.rec.Count("Y", arenaproto.TypeRoomResult); n != 1 {
		t.Fatalf("Y room.result count = %d", n)
	}
	ev, _ := f.rec.Last("Y", arenaproto.TypeRoomResult)
	if ev.Data.(arenaproto.RoomResult).Winner.Name != "yuna" {
		t.Fatalf("result: %+v", ev.Data)
	}
	if len(f.sink.got) != 1 || len(f.sched.timers) != 1 {
		t.Fatalf("sink=%d timers=%d", len(f.sink.got), len(f.sched.timers))
	}
}
