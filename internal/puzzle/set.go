// Package puzzle holds the fixed puzzle set used by challenge rooms.
package puzzle

import (
	_ "embed"
	"errors"
	"fmt"
	"math/rand/v2"
	"os"
	"strings"

	"github.com/park285/cheese-arena/internal/chessrules"
	"github.com/park285/cheese-arena/pkg/arenaproto"
	yaml "gopkg.in/yaml.v3"
)

var ErrInvalidPuzzle = errors.New("invalid puzzle")

//go:embed puzzles.yaml
var embedded []byte

// Puzzle is one position with a single accepted solution move in SAN.
type Puzzle struct {
	ID          string `yaml:"id"`
	FEN         string `yaml:"fen"`
	Description string `yaml:"description"`
	Solution    string `yaml:"solution"`
}

// View strips the solution for clients.
func (p Puzzle) View() arenaproto.PuzzleView {
	return arenaproto.PuzzleView{ID: p.ID, FEN: p.FEN, Description: p.Description}
}

// Solves reports whether san matches the solution after normalisation.
func (p Puzzle) Solves(san string) bool {
	n := Normalize(san)
	return n != "" && n == Normalize(p.Solution)
}

// Normalize trims whitespace and trailing check/mate markers, so "Qh5#" and "Qh5" compare equal.
func Normalize(san string) string {
	return strings.TrimRight(strings.TrimSpace(san), "+#")
}

// Set is an immutable, validated list of puzzles.
type Set struct {
	puzzles []Puzzle
}

type file struct {
	Puzzles []Puzzle `yaml:"puzzles"`
}

// Default returns the embedded puzzle set.
func Default() (*Set, error) {
	return Parse(embedded)
}

// Load reads a puzzle file, or the embedded set when path is blank.
func Load(path string) (*Set, error) {
	if strings.TrimSpace(path) == "" {
		return Default()
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read puzzles %s: %w", path, err)
	}
	return Parse(b)
}

// Parse decodes and validates a YAML puzzle document.
func Parse(b []byte) (*Set, error) {
	var f file
	if err := yaml.Unmarshal(b, &f); err != nil {
		return nil, fmt.Errorf("parse puzzles: %w", err)
	}
	return NewSet(f.Puzzles...)
}

// NewSet validates every puzzle: its FEN must parse and its solution must be legal.
func NewSet(ps ...Puzzle) (*Set, error) {
	if len(ps) == 0 {
		return nil, fmt.Errorf("%w: empty set", ErrInvalidPuzzle)
	}
	seen := make(map[string]bool, len(ps))
	out := make([]Puzzle, 0, len(ps))
	for i, p := range ps {
		p.ID = strings.TrimSpace(p.ID)
		if p.ID == "" {
			p.ID = fmt.Sprintf("puzzle-%d", i+1)
		}
		if seen[p.ID] {
			return nil, fmt.Errorf("%w: duplicate id %s", ErrInvalidPuzzle, p.ID)
		}
		seen[p.ID] = true
		if Normalize(p.Solution) == "" {
			return nil, fmt.Errorf("%w: %s has no solution", ErrInvalidPuzzle, p.ID)
		}
		if err := chessrules.CheckSAN(p.FEN, p.Solution); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrInvalidPuzzle, p.ID, err)
		}
		out = append(out, p)
	}
	return &Set{puzzles: out}, nil
}

func (s *Set) Len() int { return len(s.puzzles) }

func (s *Set) At(i int) Puzzle { return s.puzzles[i] }

// Selector picks the puzzle for a new room.
type Selector interface {
	Pick() Puzzle
}

type uniform struct {
	set  *Set
	intn func(int) int
}

// Uniform picks uniformly at random from s.
func Uniform(s *Set) Selector {
	return uniform{set: s, intn: rand.IntN}
}

func (u uniform) Pick() Puzzle { return u.set.At(u.intn(u.set.Len())) }

// Fixed always returns p.
type Fixed Puzzle

func (f Fixed) Pick() Puzzle { return Puzzle(f) }
