package archive

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	_ "github.com/lib/pq"
	"github.com/park285/cheese-arena/internal/chessrules"
)

const schema = `
CREATE TABLE IF NOT EXISTS arena_games (
  game_id     TEXT PRIMARY KEY,
  white_name  TEXT NOT NULL,
  black_name  TEXT NOT NULL,
  result      TEXT NOT NULL,
  reason      TEXT NOT NULL,
  moves_uci   JSONB NOT NULL,
  moves_san   JSONB NOT NULL,
  pgn         TEXT NOT NULL,
  started_at  TIMESTAMPTZ NOT NULL,
  ended_at    TIMESTAMPTZ NOT NULL,
  duration_ms BIGINT NOT NULL
);
CREATE TABLE IF NOT EXISTS arena_rooms (
  room_id     TEXT NOT NULL,
  solved_at   TIMESTAMPTZ NOT NULL,
  puzzle_id   TEXT NOT NULL,
  winner_name TEXT NOT NULL,
  players     JSONB NOT NULL,
  elapsed_ms  BIGINT NOT NULL,
  PRIMARY KEY (room_id, solved_at)
);`

// PostgresSink upserts finished games (with PGN) and solved rooms.
type PostgresSink struct {
	db *sql.DB
}

func NewPostgresSink(ctx context.Context, databaseURL string) (*PostgresSink, error) {
	if strings.TrimSpace(databaseURL) == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(8)
	db.SetMaxIdleConns(4)
	db.SetConnMaxLifetime(30 * time.Minute)

	pctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	if _, err := db.ExecContext(pctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}
	return &PostgresSink{db: db}, nil
}

func (p *PostgresSink) Name() string { return "postgres" }

func (p *PostgresSink) Close() error {
	if p == nil || p.db == nil {
		return nil
	}
	return p.db.Close()
}

func (p *PostgresSink) Write(ctx context.Context, rec Record) error {
	switch {
	case rec.Game != nil:
		return p.saveGame(ctx, rec.Game)
	case rec.Room != nil:
		return p.saveRoom(ctx, rec.Room)
	}
	return nil
}

func (p *PostgresSink) saveGame(ctx context.Context, g *GameRecord) error {
	san := gameSAN(g)
	if san == nil {
		san = []string{}
	}
	result := pgnResult(g.Winner, g.Reason)
	pgn := BuildPGN(g, san)

	movesUCI, err := jsonColumn("moves_uci", g.MovesUCI)
	if err != nil {
		return fmt.Errorf("game %s: %w", g.GameID, err)
	}
	movesSAN, err := jsonColumn("moves_san", san)
	if err != nil {
		return fmt.Errorf("game %s: %w", g.GameID, err)
	}
	duration := g.EndedAt.Sub(g.StartedAt).Milliseconds()
	if duration < 0 {
		duration = 0
	}

	q := `INSERT INTO arena_games (
        game_id, white_name, black_name, result, reason,
        moves_uci, moves_san, pgn, started_at, ended_at, duration_ms
      ) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
      ON CONFLICT (game_id) DO UPDATE SET
        result=EXCLUDED.result,
        reason=EXCLUDED.reason,
        moves_uci=EXCLUDED.moves_uci,
        moves_san=EXCLUDED.moves_san,
        pgn=EXCLUDED.pgn,
        ended_at=EXCLUDED.ended_at,
        duration_ms=EXCLUDED.duration_ms`

	_, err = p.db.ExecContext(ctx, q,
		g.GameID, g.White.Name, g.Black.Name, result, g.Reason,
		movesUCI, movesSAN, pgn, g.StartedAt, g.EndedAt, duration,
	)
	return err
}

func (p *PostgresSink) saveRoom(ctx context.Context, r *RoomRecord) error {
	players, err := jsonColumn("players", r.Players)
	if err != nil {
		return fmt.Errorf("room %s: %w", r.RoomID, err)
	}
	q := `INSERT INTO arena_rooms (room_id, solved_at, puzzle_id, winner_name, players, elapsed_ms)
      VALUES ($1,$2,$3,$4,$5,$6)
      ON CONFLICT (room_id, solved_at) DO NOTHING`
	_, err = p.db.ExecContext(ctx, q,
		r.RoomID, r.SolvedAt, r.PuzzleID, r.Winner.Name, players,
		int64(r.ElapsedSeconds*1000),
	)
	return err
}

func jsonColumn(name string, v any) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("marshal %s: %w", name, err)
	}
	return string(b), nil
}

// gameSAN prefers SAN recorded by the rules engine and otherwise replays the
// relayed UCI moves. Unreplayable relay games keep whatever prefix was legal.
func gameSAN(g *GameRecord) []string {
	if len(g.MovesSAN) == len(g.MovesUCI) {
		return g.MovesSAN
	}
	san, _ := chessrules.SANLine(g.MovesUCI)
	return san
}

func pgnResult(winner, reason string) string {
	switch strings.ToLower(strings.TrimSpace(winner)) {
	case "white":
		return "1-0"
	case "black":
		return "0-1"
	}
	if reason == "draw" {
		return "1/2-1/2"
	}
	return "*"
}

// BuildPGN renders g with the given SAN list.
func BuildPGN(g *GameRecord, san []string) string {
	if g == nil {
		return ""
	}
	result := pgnResult(g.Winner, g.Reason)
	date := g.EndedAt
	if date.IsZero() {
		date = time.Now()
	}
	var b strings.Builder
	b.WriteString("[Event \"Arena Live\"]\n")
	b.WriteString("[Site \"cheese-arena\"]\n")
	b.WriteString(fmt.Sprintf("[Date \"%04d.%02d.%02d\"]\n", date.Year(), int(date.Month()), date.Day()))
	b.WriteString(fmt.Sprintf("[White \"%s\"]\n", sanitizePGN(g.White.Name)))
	b.WriteString(fmt.Sprintf("[Black \"%s\"]\n", sanitizePGN(g.Black.Name)))
	if strings.TrimSpace(g.Reason) != "" {
		b.WriteString(fmt.Sprintf("[Termination \"%s\"]\n", sanitizePGN(g.Reason)))
	}
	b.WriteString(fmt.Sprintf("[Result \"%s\"]\n\n", result))

	for i := 0; i < len(san); i += 2 {
		b.WriteString(fmt.Sprintf("%d. %s", i/2+1, strings.TrimSpace(san[i])))
		if i+1 < len(san) {
			b.WriteString(" ")
			b.WriteString(strings.TrimSpace(san[i+1]))
		}
		b.WriteString(" ")
	}
	b.WriteString(result)
	return b.String()
}

func sanitizePGN(s string) string {
	s = strings.ReplaceAll(s, "\\", " ")
	s = strings.ReplaceAll(s, "\"", "'")
	return strings.TrimSpace(s)
}
