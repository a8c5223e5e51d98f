// Package chessrules backs livegame.RulesEngine with corentings/chess.
package chessrules

import (
	"fmt"
	"strings"

	chesslib "github.com/corentings/chess/v2"
	"github.com/park285/cheese-arena/internal/livegame"
)

// Engine creates boards at a fixed starting position.
type Engine struct {
	startFEN string
}

// New returns an Engine starting every game from the standard position.
func New() Engine { return Engine{} }

// NewAt returns an Engine whose games start from fen. Used for tests and odd starts.
func NewAt(fen string) Engine { return Engine{startFEN: fen} }

func (e Engine) NewBoard() (livegame.Board, error) {
	game, err := BuildGame(e.startFEN, nil)
	if err != nil {
		return nil, err
	}
	return &Board{game: game}, nil
}

// Board is a livegame.Board over a chesslib game. It is not safe for concurrent
// use; livegame.Table serialises access.
type Board struct {
	game *chesslib.Game
}

func (b *Board) Apply(side livegame.Color, mv livegame.Move) (string, error) {
	if colorFrom(b.game.Position().Turn()) != side {
		return "", livegame.ErrNotYourTurn
	}
	uci := mv.UCI()
	if len(uci) < 4 {
		return "", fmt.Errorf("%w: %q", livegame.ErrIllegalMove, uci)
	}
	pos := b.game.Position()
	if err := b.game.PushNotationMove(uci, chesslib.UCINotation{}, nil); err != nil {
		return "", fmt.Errorf("%w: %s", livegame.ErrIllegalMove, uci)
	}
	moves := b.game.Moves()
	last := moves[len(moves)-1]
	return chesslib.AlgebraicNotation{}.Encode(pos, last), nil
}

func (b *Board) Terminal() (livegame.Verdict, bool) {
	method := fmt.Sprint(b.game.Method())
	switch b.game.Outcome() {
	case chesslib.WhiteWon:
		return livegame.Verdict{Winner: livegame.White, Method: method}, true
	case chesslib.BlackWon:
		return livegame.Verdict{Winner: livegame.Black, Method: method}, true
	case chesslib.Draw:
		return livegame.Verdict{Method: method}, true
	}
	return livegame.Verdict{}, false
}

// FEN returns the current position.
func (b *Board) FEN() string { return b.game.FEN() }

// BuildGame replays UCI moves on top of fen, or the standard start when fen is
// blank or "startpos".
func BuildGame(fen string, moves []string) (*chesslib.Game, error) {
	var game *chesslib.Game
	if strings.TrimSpace(fen) == "" || fen == "startpos" {
		game = chesslib.NewGame()
	} else {
		option, err := chesslib.FEN(fen)
		if err != nil {
			return nil, fmt.Errorf("parse fen %q: %w", fen, err)
		}
		game = chesslib.NewGame(option)
	}
	for _, mv := range moves {
		if err := game.PushNotationMove(mv, chesslib.UCINotation{}, nil); err != nil {
			return nil, fmt.Errorf("apply move %q: %w", mv, err)
		}
	}
	return game, nil
}

// CheckSAN reports whether san is a legal move from fen. Check and mate
// suffixes are ignored.
func CheckSAN(fen, san string) error {
	game, err := BuildGame(fen, nil)
	if err != nil {
		return err
	}
	bare := strings.TrimRight(strings.TrimSpace(san), "+#")
	if bare == "" {
		return fmt.Errorf("empty move")
	}
	if err := game.PushNotationMove(bare, chesslib.AlgebraicNotation{}, nil); err != nil {
		return fmt.Errorf("move %q from %q: %w", san, fen, err)
	}
	return nil
}

// SANLine renders a UCI move list as SAN from the standard start.
func SANLine(moves []string) ([]string, error) {
	game := chesslib.NewGame()
	out := make([]string, 0, len(moves))
	for _, mv := range moves {
		pos := game.Position()
		if err := game.PushNotationMove(mv, chesslib.UCINotation{}, nil); err != nil {
			return out, fmt.Errorf("apply move %q: %w", mv, err)
		}
		all := game.Moves()
		out = append(out, chesslib.AlgebraicNotation{}.Encode(pos, all[len(all)-1]))
	}
	return out, nil
}

func colorFrom(c chesslib.Color) livegame.Color {
	if c == chesslib.White {
		return livegame.White
	}
	return livegame.Black
}
