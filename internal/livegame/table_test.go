package livegame

import (
	"errors"
	"testing"
	"time"

	"github.com/park285/cheese-arena/internal/arenatest"
	"github.com/park285/cheese-arena/internal/participant"
	"github.com/park285/cheese-arena/pkg/arenaproto"
)

func seat(id string) Seat {
	return Seat{ConnID: id, Player: participant.New(id, 0)}
}

func newTestTable(t *testing.T, opts ...Option) (*Table, *arenatest.Recorder) {
	t.Helper()
	rec := arenatest.NewRecorder()
	n := 0
	opts = append([]Option{WithIDGenerator(func() string {
		n++
		return "game-" + string(rune('0'+n))
	})}, opts...)
	return NewTable(rec, opts...), rec
}

func TestCreateGameNotifiesBothWithColors(t *testing.T) {
	tbl, rec := newTestTable(t)
	id, err := tbl.CreateGame(seat("A"), seat("B"))
	if err != nil {
		t.Fatalf("CreateGame: %v", err)
	}
	evA, okA := rec.Last("A", arenaproto.TypeMatchFound)
	evB, okB := rec.Last("B", arenaproto.TypeMatchFound)
	if !okA || !okB {
		t.Fatalf("matchFound missing: A=%v B=%v", rec.Types("A"), rec.Types("B"))
	}
	mfA := evA.Data.(arenaproto.MatchFound)
	mfB := evB.Data.(arenaproto.MatchFound)
	if mfA.GameID != id || mfB.GameID != id {
		t.Fatalf("game ids differ: %q %q want %q", mfA.GameID, mfB.GameID, id)
	}
	if mfA.Color != "white" || mfB.Color != "black" {
		t.Fatalf("colors: A=%s B=%s", mfA.Color, mfB.Color)
	}
	if mfA.Opponent.Name != participant.GeneratedName("B") {
		t.Fatalf("A opponent = %q", mfA.Opponent.Name)
	}
	if !tbl.InGame("A") || !tbl.InGame("B") || tbl.Len() != 1 {
		t.Fatalf("table state wrong after create")
	}
}

func TestCreateGameRejectsBusyOrSameSeat(t *testing.T) {
	tbl, _ := newTestTable(t)
	if _, err := tbl.CreateGame(seat("A"), seat("A")); !errors.Is(err, ErrInvalidSeats) {
		t.Fatalf("same seat: %v", err)
	}
	if _, err := tbl.CreateGame(seat("A"), seat("B")); err != nil {
		t.Fatalf("CreateGame: %v", err)
	}
	if _, err := tbl.CreateGame(seat("A"), seat("C")); !errors.Is(err, ErrAlreadyInGame) {
		t.Fatalf("busy seat: %v", err)
	}
}

func TestRelayMoveGoesToOpponentOnly(t *testing.T) {
	tbl, rec := newTestTable(t)
	id, _ := tbl.CreateGame(seat("A"), seat("B"))
	rec.Reset()

	if err := tbl.RelayMove(id, "A", Move{From: "e2", To: "e4"}); err != nil {
		t.Fatalf("RelayMove: %v", err)
	}
	if got := rec.Count("B", arenaproto.TypeMoveRelayed); got != 1 {
		t.Fatalf("B moveRelayed count = %d", got)
	}
	if got := len(rec.For("A")); got != 0 {
		t.Fatalf("sender should receive nothing, got %v", rec.Types("A"))
	}
	ev, _ := rec.Last("B", arenaproto.TypeMoveRelayed)
	mv := ev.Data.(arenaproto.MoveRelayed)
	if mv.From != "e2" || mv.To != "e4" || mv.Promotion != "" {
		t.Fatalf("relayed move altered: %+v", mv)
	}
	g, _ := tbl.Get(id)
	if len(g.MovesUCI) != 1 || g.MovesUCI[0] != "e2e4" {
		t.Fatalf("moves = %v", g.MovesUCI)
	}
}

func TestRelayMoveErrors(t *testing.T) {
	tbl, rec := newTestTable(t)
	id, _ := tbl.CreateGame(seat("A"), seat("B"))
	rec.Reset()

	if err := tbl.RelayMove("nope", "A", Move{From: "e2", To: "e4"}); !errors.Is(err, ErrUnknownGame) {
		t.Fatalf("unknown game: %v", err)
	}
	if err := tbl.RelayMove(id, "C", Move{From: "e2", To: "e4"}); !errors.Is(err, ErrNotInGame) {
		t.Fatalf("outsider: %v", err)
	}
	if n := len(rec.All()); n != 0 {
		t.Fatalf("errors must not emit events, got %d", n)
	}
}

// A reports checkmate, so B is announced as winner to both players.
func TestReportGameOverWinnerIsOtherPlayer(t *testing.T) {
	tbl, rec := newTestTable(t)
	id, _ := tbl.CreateGame(seat("A"), seat("B"))

	if err := tbl.ReportGameOver(id, "A"); err != nil {
		t.Fatalf("ReportGameOver: %v", err)
	}
	for _, c := range []string{"A", "B"} {
		ev, ok := rec.Last(c, arenaproto.TypeGameOver)
		if !ok {
			t.Fatalf("%s: no game.over", c)
		}
		over := ev.Data.(arenaproto.GameOver)
		if over.Winner == nil || over.Winner.Name != participant.GeneratedName("B") {
			t.Fatalf("%s: winner = %+v", c, over.Winner)
		}
		if over.Reason != arenaproto.ReasonCheckmate || over.RatingDelta != DefaultRatingDelta {
			t.Fatalf("%s: payload = %+v", c, over)
		}
	}
	if tbl.Len() != 0 || tbl.InGame("A") || tbl.InGame("B") {
		t.Fatalf("game should be removed")
	}
	if err := tbl.RelayMove(id, "A", Move{From: "e2", To: "e4"}); !errors.Is(err, ErrUnknownGame) {
		t.Fatalf("move after game over: %v", err)
	}
}

func TestDisconnectNotifiesRemainingPlayerOnce(t *testing.T) {
	tbl, rec := newTestTable(t)
	tbl.CreateGame(seat("A"), seat("B"))
	rec.Reset()

	if !tbl.HandleDisconnect("A") {
		t.Fatalf("expected a game to be closed")
	}
	if tbl.HandleDisconnect("A") || tbl.HandleDisconnect("B") {
		t.Fatalf("second disconnect must be a no-op")
	}
	if got := rec.Count("B", arenaproto.TypeGameOver); got != 1 {
		t.Fatalf("B game.over count = %d", got)
	}
	if got := len(rec.For("A")); got != 0 {
		t.Fatalf("disconnected player got %v", rec.Types("A"))
	}
	ev, _ := rec.Last("B", arenaproto.TypeGameOver)
	over := ev.Data.(arenaproto.GameOver)
	if over.Reason != arenaproto.ReasonOpponentLeft || over.Winner.Name != participant.GeneratedName("B") {
		t.Fatalf("payload = %+v", over)
	}
}

func TestResignAndChat(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	tbl, rec := newTestTable(t, WithClock(func() time.Time { return now }))
	id, _ := tbl.CreateGame(seat("A"), seat("B"))
	rec.Reset()

	if err := tbl.RelayChat(id, "B", "gl hf"); err != nil {
		t.Fatalf("RelayChat: %v", err)
	}
	ev, ok := rec.Last("A", arenaproto.TypeGameChat)
	if !ok {
		t.Fatalf("chat not relayed")
	}
	msg := ev.Data.(arenaproto.ChatMessage)
	if msg.Sender != participant.GeneratedName("B") || msg.Content != "gl hf" || !msg.Timestamp.Equal(now) {
		t.Fatalf("chat = %+v", msg)
	}
	if rec.Count("B", arenaproto.TypeGameChat) != 0 {
		t.Fatalf("chat echoed to sender")
	}

	if err := tbl.Resign(id, "B"); err != nil {
		t.Fatalf("Resign: %v", err)
	}
	ev, _ = rec.Last("B", arenaproto.TypeGameOver)
	over := ev.Data.(arenaproto.GameOver)
	if over.Reason != arenaproto.ReasonResignation || over.Winner.Name != participant.GeneratedName("A") {
		t.Fatalf("resign payload = %+v", over)
	}
}

type fakeSink struct{ results []Result }

func (f *fakeSink) RecordGame(r Result) { f.results = append(f.results, r) }

// scriptedBoard accepts moves alternately and reports terminal after limit plies.
type scriptedBoard struct {
	turn    Color
	plies   int
	limit   int
	verdict Verdict
}

func (b *scriptedBoard) Apply(side Color, mv Move) (string, error) {
	if side != b.turn {
		return "", ErrNotYourTurn
	}
	if mv.From == mv.To {
		return "", ErrIllegalMove
	}
	b.turn = b.turn.Opposite()
	b.plies++
	return mv.To, nil
}

func (b *scriptedBoard) Terminal() (Verdict, bool) {
	if b.limit > 0 && b.plies >= b.limit {
		return b.verdict, true
	}
	return Verdict{}, false
}

type scriptedRules struct {
	limit   int
	verdict Verdict
}

func (r scriptedRules) NewBoard() (Board, error) {
	return &scriptedBoard{turn: White, limit: r.limit, verdict: r.verdict}, nil
}

func TestRulesRejectOutOfTurnAndIllegal(t *testing.T) {
	tbl, rec := newTestTable(t, WithRules(scriptedRules{}))
	id, _ := tbl.CreateGame(seat("A"), seat("B"))
	rec.Reset()

	if err := tbl.RelayMove(id, "B", Move{From: "e7", To: "e5"}); !errors.Is(err, ErrNotYourTurn) {
		t.Fatalf("out of turn: %v", err)
	}
	if err := tbl.RelayMove(id, "A", Move{From: "e2", To: "e2"}); !errors.Is(err, ErrIllegalMove) {
		t.Fatalf("illegal: %v", err)
	}
	if rec.Count("B", arenaproto.TypeMoveRejected) != 1 || rec.Count("A", arenaproto.TypeMoveRejected) != 1 {
		t.Fatalf("rejections: A=%v B=%v", rec.Types("A"), rec.Types("B"))
	}
	if rec.Count("A", arenaproto.TypeMoveRelayed)+rec.Count("B", arenaproto.TypeMoveRelayed) != 0 {
		t.Fatalf("rejected moves must not be relayed")
	}
	if err := tbl.ReportGameOver(id, "A"); !errors.Is(err, ErrGameNotOver) {
		t.Fatalf("premature game over: %v", err)
	}
	if tbl.Len() != 1 {
		t.Fatalf("game should still be live")
	}
}

func TestRulesFinishGameOnTerminalMove(t *testing.T) {
	sink := &fakeSink{}
	tbl, rec := newTestTable(t,
		WithRules(scriptedRules{limit: 2, verdict: Verdict{Winner: Black, Method: "Checkmate"}}),
		WithResultSink(sink),
	)
	id, _ := tbl.CreateGame(seat("A"), seat("B"))

	if err := tbl.RelayMove(id, "A", Move{From: "f2", To: "f3"}); err != nil {
		t.Fatalf("move 1: %v", err)
	}
	if err := tbl.RelayMove(id, "B", Move{From: "e7", To: "e5"}); err != nil {
		t.Fatalf("move 2: %v", err)
	}
	ev, ok := rec.Last("A", arenaproto.TypeGameOver)
	if !ok {
		t.Fatalf("no automatic game.over")
	}
	over := ev.Data.(arenaproto.GameOver)
	if over.Winner.Name != participant.GeneratedName("B") || over.Reason != arenaproto.ReasonCheckmate {
		t.Fatalf("payload = %+v", over)
	}
	relayed, _ := rec.Last("A", arenaproto.TypeMoveRelayed)
	if relayed.Data.(arenaproto.MoveRelayed).SAN != "e5" {
		t.Fatalf("relayed san missing: %+v", relayed.Data)
	}
	if len(sink.results) != 1 || sink.results[0].Winner != Black || len(sink.results[0].Game.MovesSAN) != 2 {
		t.Fatalf("sink = %+v", sink.results)
	}
}

func TestDrawHasNoWinner(t *testing.T) {
	tbl, rec := newTestTable(t, WithRules(scriptedRules{limit: 1, verdict: Verdict{Method: "Stalemate"}}))
	id, _ := tbl.CreateGame(seat("A"), seat("B"))
	if err := tbl.RelayMove(id, "A", Move{From: "a2", To: "a3"}); err != nil {
		t.Fatalf("RelayMove: %v", err)
	}
	ev, _ := rec.Last("B", arenaproto.TypeGameOver)
	over := ev.Data.(arenaproto.GameOver)
	if over.Winner != nil || over.RatingDelta != 0 || over.Reason != arenaproto.ReasonDraw {
		t.Fatalf("draw payload = %+v", over)
	}
}
