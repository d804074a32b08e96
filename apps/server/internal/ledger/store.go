package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"darts-lite/dart"
	"darts-lite/darts"
	"darts-lite/replay"
)

type dialect int

const (
	dialectSQLite dialect = iota
	dialectPostgres
)

// schemaStatements is valid for both SQLite and Postgres.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS darts_games (
    game_id TEXT PRIMARY KEY,
    board_id TEXT NOT NULL DEFAULT '',
    game_type TEXT NOT NULL,
    double_out BOOLEAN NOT NULL DEFAULT FALSE,
    cricket_win TEXT NOT NULL DEFAULT '',
    status TEXT NOT NULL DEFAULT 'active',
    winner_name TEXT NOT NULL DEFAULT '',
    tape_digest TEXT NOT NULL DEFAULT '',
    started_at_ms BIGINT NOT NULL,
    finished_at_ms BIGINT,
    updated_at_ms BIGINT NOT NULL
)`,
	`CREATE INDEX IF NOT EXISTS idx_darts_games_started ON darts_games (started_at_ms DESC)`,
	`CREATE TABLE IF NOT EXISTS darts_game_players (
    game_id TEXT NOT NULL,
    player_order INTEGER NOT NULL,
    player_id TEXT NOT NULL,
    player_name TEXT NOT NULL,
    start_score INTEGER NOT NULL DEFAULT 0,
    final_score INTEGER NOT NULL DEFAULT 0,
    is_winner BOOLEAN NOT NULL DEFAULT FALSE,
    removed BOOLEAN NOT NULL DEFAULT FALSE,
    PRIMARY KEY (game_id, player_order)
)`,
	`CREATE INDEX IF NOT EXISTS idx_darts_game_players_name ON darts_game_players (player_name)`,
	`CREATE TABLE IF NOT EXISTS darts_throws (
    game_id TEXT NOT NULL,
    seq BIGINT NOT NULL,
    turn_number INTEGER NOT NULL,
    throw_in_turn INTEGER NOT NULL,
    player_order INTEGER NOT NULL,
    player_name TEXT NOT NULL,
    base_score INTEGER NOT NULL,
    multiplier INTEGER NOT NULL,
    actual_score INTEGER NOT NULL,
    score_before INTEGER NOT NULL,
    score_after INTEGER NOT NULL,
    is_bust BOOLEAN NOT NULL DEFAULT FALSE,
    is_finish BOOLEAN NOT NULL DEFAULT FALSE,
    thrown_at_ms BIGINT NOT NULL,
    PRIMARY KEY (game_id, seq)
)`,
	`CREATE TABLE IF NOT EXISTS darts_roster_changes (
    game_id TEXT NOT NULL,
    seq INTEGER NOT NULL,
    at_throw INTEGER NOT NULL,
    player_order INTEGER NOT NULL,
    action TEXT NOT NULL,
    PRIMARY KEY (game_id, seq)
)`,
	`CREATE TABLE IF NOT EXISTS darts_event_stream (
    game_id TEXT NOT NULL,
    seq BIGINT NOT NULL,
    event_type TEXT NOT NULL,
    envelope_b64 TEXT NOT NULL,
    server_ts_ms BIGINT,
    created_at_ms BIGINT NOT NULL,
    PRIMARY KEY (game_id, seq)
)`,
}

// sqlStore holds the queries shared by the SQLite and Postgres services.
// Queries are written with ? placeholders and rebound per dialect.
type sqlStore struct {
	db      *sql.DB
	dialect dialect
	logger  *zap.Logger
}

// openStore pings db and prepares the schema, closing db on failure.
func openStore(ctx context.Context, db *sql.DB, d dialect, logger *zap.Logger) (sqlStore, error) {
	s := sqlStore{db: db, dialect: d, logger: logger}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return sqlStore{}, fmt.Errorf("ping ledger database: %w", err)
	}
	if err := s.ensureSchema(ctx); err != nil {
		_ = db.Close()
		return sqlStore{}, err
	}
	return s, nil
}

func (s *sqlStore) rebind(q string) string {
	if s.dialect != dialectPostgres {
		return q
	}
	var b strings.Builder
	b.Grow(len(q) + 8)
	n := 0
	for _, r := range q {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (s *sqlStore) ensureSchema(ctx context.Context) error {
	for _, stmt := range schemaStatements {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("ensure ledger schema: %w", err)
		}
	}
	return nil
}

func (s *sqlStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *sqlStore) StartGame(ctx context.Context, meta GameMeta) error {
	if strings.TrimSpace(meta.GameID) == "" {
		return fmt.Errorf("start game: empty game id")
	}
	nowMs := time.Now().UTC().UnixMilli()
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, s.rebind(`
INSERT INTO darts_games (
    game_id, board_id, game_type, double_out, status, started_at_ms, updated_at_ms
)
VALUES (?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (game_id) DO NOTHING
`), meta.GameID, meta.BoardID, meta.GameType, meta.DoubleOut, statusActive, toMillis(meta.StartedAt), nowMs); err != nil {
		return fmt.Errorf("insert game: %w", err)
	}
	for _, p := range meta.Players {
		if _, err := tx.ExecContext(ctx, s.rebind(`
INSERT INTO darts_game_players (
    game_id, player_order, player_id, player_name, start_score, final_score
)
VALUES (?, ?, ?, ?, ?, ?)
ON CONFLICT (game_id, player_order) DO NOTHING
`), meta.GameID, p.Order, p.ID, p.Name, meta.StartScore, meta.StartScore); err != nil {
			return fmt.Errorf("insert player: %w", err)
		}
	}
	return tx.Commit()
}

func (s *sqlStore) AppendThrow(ctx context.Context, gameID string, t darts.Throw) error {
	_, err := s.db.ExecContext(ctx, s.rebind(insertThrowSQL), throwArgs(gameID, t)...)
	return err
}

const insertThrowSQL = `
INSERT INTO darts_throws (
    game_id, seq, turn_number, throw_in_turn, player_order, player_name,
    base_score, multiplier, actual_score, score_before, score_after,
    is_bust, is_finish, thrown_at_ms
)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (game_id, seq) DO NOTHING
`

func throwArgs(gameID string, t darts.Throw) []any {
	return []any{
		gameID, t.Seq, t.Turn, t.ThrowInTurn, t.PlayerOrder, t.PlayerName,
		t.Base, int(t.Multiplier), t.Actual, t.ScoreBefore, t.ScoreAfter,
		t.Bust, t.Finish, toMillis(t.At),
	}
}

func (s *sqlStore) AppendEvent(ctx context.Context, gameID string, item EventItem) error {
	if strings.TrimSpace(gameID) == "" {
		return nil
	}
	eventType := item.EventType
	if eventType == "" {
		eventType = "unknown"
	}
	var ts any
	if item.ServerTsMs != nil {
		ts = nullableInt64(*item.ServerTsMs)
	}
	_, err := s.db.ExecContext(ctx, s.rebind(`
INSERT INTO darts_event_stream (
    game_id, seq, event_type, envelope_b64, server_ts_ms, created_at_ms
)
VALUES (?, ?, ?, ?, ?, ?)
ON CONFLICT (game_id, seq) DO NOTHING
`), gameID, int64(item.Seq), eventType, item.EnvelopeB64, ts, time.Now().UTC().UnixMilli())
	return err
}

// FinishGame stores the final record. Running it again for the same result
// leaves the tables unchanged.
func (s *sqlStore) FinishGame(ctx context.Context, r darts.Result) error {
	if strings.TrimSpace(r.GameID) == "" {
		return fmt.Errorf("finish game: empty game id")
	}
	doc := replay.FromResult(r)
	// a game ended by command has no winner
	status, winner := statusEnded, ""
	if r.Winner != nil {
		status, winner = statusFinished, r.Winner.Name
	}
	var finishedMs any
	if r.FinishedAt != nil {
		finishedMs = toMillis(*r.FinishedAt)
	}
	nowMs := time.Now().UTC().UnixMilli()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, s.rebind(`
INSERT INTO darts_games (
    game_id, game_type, double_out, cricket_win, status, winner_name, tape_digest,
    started_at_ms, finished_at_ms, updated_at_ms
)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (game_id) DO UPDATE
SET
    cricket_win = EXCLUDED.cricket_win,
    status = EXCLUDED.status,
    winner_name = EXCLUDED.winner_name,
    tape_digest = EXCLUDED.tape_digest,
    finished_at_ms = EXCLUDED.finished_at_ms,
    updated_at_ms = EXCLUDED.updated_at_ms
`), r.GameID, r.GameType, r.DoubleOut, r.CricketWin, status, winner, doc.Digest,
		toMillis(r.StartedAt), finishedMs, nowMs); err != nil {
		return fmt.Errorf("upsert game: %w", err)
	}

	for _, p := range r.Players {
		if _, err := tx.ExecContext(ctx, s.rebind(`
INSERT INTO darts_game_players (
    game_id, player_order, player_id, player_name, start_score, final_score, is_winner, removed
)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (game_id, player_order) DO UPDATE
SET
    player_name = EXCLUDED.player_name,
    final_score = EXCLUDED.final_score,
    is_winner = EXCLUDED.is_winner,
    removed = EXCLUDED.removed
`), r.GameID, p.Order, p.ID, p.Name, p.StartScore, p.FinalScore, p.IsWinner, p.Removed); err != nil {
			return fmt.Errorf("upsert player %s: %w", p.ID, err)
		}
	}

	for _, t := range r.Throws {
		if _, err := tx.ExecContext(ctx, s.rebind(insertThrowSQL), throwArgs(r.GameID, t)...); err != nil {
			return fmt.Errorf("insert throw %d: %w", t.Seq, err)
		}
	}

	for i, c := range r.Roster {
		if _, err := tx.ExecContext(ctx, s.rebind(`
INSERT INTO darts_roster_changes (game_id, seq, at_throw, player_order, action)
VALUES (?, ?, ?, ?, ?)
ON CONFLICT (game_id, seq) DO NOTHING
`), r.GameID, i+1, c.AtThrow, c.PlayerOrder, string(c.Action)); err != nil {
			return fmt.Errorf("insert roster change %d: %w", i+1, err)
		}
	}
	return tx.Commit()
}

func (s *sqlStore) ListHistory(ctx context.Context, limit int) ([]HistoryItem, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, s.rebind(`
SELECT g.game_id, g.board_id, g.game_type, g.status, g.winner_name,
       g.started_at_ms, g.finished_at_ms,
       (SELECT COUNT(*) FROM darts_game_players p WHERE p.game_id = g.game_id)
FROM darts_games g
WHERE g.status <> ?
ORDER BY g.started_at_ms DESC, g.game_id DESC
LIMIT ?
`), statusActive, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]HistoryItem, 0, limit)
	for rows.Next() {
		var item HistoryItem
		var startedMs int64
		var finishedMs sql.NullInt64
		if err := rows.Scan(&item.GameID, &item.BoardID, &item.GameType, &item.Status, &item.Winner,
			&startedMs, &finishedMs, &item.PlayerCount); err != nil {
			return nil, err
		}
		item.StartedAt = fromMillis(startedMs)
		if finishedMs.Valid {
			t := fromMillis(finishedMs.Int64)
			item.FinishedAt = &t
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

func (s *sqlStore) GetReplay(ctx context.Context, gameID string) (replay.Document, error) {
	var doc replay.Document
	var startedMs int64
	var finishedMs sql.NullInt64
	err := s.db.QueryRowContext(ctx, s.rebind(`
SELECT game_id, game_type, double_out, cricket_win, tape_digest, started_at_ms, finished_at_ms
FROM darts_games
WHERE game_id = ?
`), gameID).Scan(&doc.GameID, &doc.GameType, &doc.DoubleOut, &doc.CricketWin, &doc.Digest, &startedMs, &finishedMs)
	if errors.Is(err, sql.ErrNoRows) {
		return replay.Document{}, ErrNotFound
	}
	if err != nil {
		return replay.Document{}, err
	}
	doc.StartedAt = fromMillis(startedMs)
	if finishedMs.Valid {
		t := fromMillis(finishedMs.Int64)
		doc.FinishedAt = &t
	}

	players, err := s.db.QueryContext(ctx, s.rebind(`
SELECT player_order, player_name, start_score, final_score, is_winner
FROM darts_game_players
WHERE game_id = ?
ORDER BY player_order ASC
`), gameID)
	if err != nil {
		return replay.Document{}, err
	}
	defer players.Close()
	for players.Next() {
		var p replay.PlayerRow
		if err := players.Scan(&p.PlayerOrder, &p.PlayerName, &p.StartScore, &p.FinalScore, &p.IsWinner); err != nil {
			return replay.Document{}, err
		}
		doc.Players = append(doc.Players, p)
	}
	if err := players.Err(); err != nil {
		return replay.Document{}, err
	}

	throws, err := s.db.QueryContext(ctx, s.rebind(`
SELECT turn_number, throw_in_turn, player_order, player_name, base_score, multiplier,
       actual_score, score_before, score_after, is_bust, is_finish
FROM darts_throws
WHERE game_id = ?
ORDER BY seq ASC
`), gameID)
	if err != nil {
		return replay.Document{}, err
	}
	defer throws.Close()
	for throws.Next() {
		var t replay.ThrowRow
		var mult int
		if err := throws.Scan(&t.TurnNumber, &t.ThrowInTurn, &t.PlayerOrder, &t.PlayerName, &t.BaseScore, &mult,
			&t.ActualScore, &t.ScoreBefore, &t.ScoreAfter, &t.IsBust, &t.IsFinish); err != nil {
			return replay.Document{}, err
		}
		t.Multiplier = dart.Multiplier(mult)
		doc.Throws = append(doc.Throws, t)
	}
	if err := throws.Err(); err != nil {
		return replay.Document{}, err
	}

	roster, err := s.db.QueryContext(ctx, s.rebind(`
SELECT at_throw, player_order, action
FROM darts_roster_changes
WHERE game_id = ?
ORDER BY seq ASC
`), gameID)
	if err != nil {
		return replay.Document{}, err
	}
	defer roster.Close()
	for roster.Next() {
		var c replay.RosterRow
		if err := roster.Scan(&c.AtThrow, &c.PlayerOrder, &c.Action); err != nil {
			return replay.Document{}, err
		}
		doc.Roster = append(doc.Roster, c)
	}
	if err := roster.Err(); err != nil {
		return replay.Document{}, err
	}
	if doc.Players == nil {
		doc.Players = []replay.PlayerRow{}
	}
	if doc.Throws == nil {
		doc.Throws = []replay.ThrowRow{}
	}
	return doc, nil
}

func (s *sqlStore) GetEvents(ctx context.Context, gameID string) ([]EventItem, error) {
	rows, err := s.db.QueryContext(ctx, s.rebind(`
SELECT seq, event_type, envelope_b64, server_ts_ms
FROM darts_event_stream
WHERE game_id = ?
ORDER BY seq ASC
`), gameID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]EventItem, 0, 64)
	for rows.Next() {
		var item EventItem
		var seq int64
		var ts sql.NullInt64
		if err := rows.Scan(&seq, &item.EventType, &item.EnvelopeB64, &ts); err != nil {
			return nil, err
		}
		item.Seq = uint64(seq)
		if ts.Valid {
			v := ts.Int64
			item.ServerTsMs = &v
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, ErrNotFound
	}
	return items, nil
}

func (s *sqlStore) PlayerStats(ctx context.Context, playerName string) (PlayerSummary, error) {
	rows, err := s.db.QueryContext(ctx, s.rebind(`
SELECT g.game_type, p.is_winner, p.final_score
FROM darts_game_players p
JOIN darts_games g ON g.game_id = p.game_id
WHERE p.player_name = ?
  AND g.status <> ?
ORDER BY g.started_at_ms ASC
`), playerName, statusActive)
	if err != nil {
		return PlayerSummary{}, err
	}
	defer rows.Close()

	var results []gameOutcome
	for rows.Next() {
		var o gameOutcome
		if err := rows.Scan(&o.gameType, &o.won, &o.finalScore); err != nil {
			return PlayerSummary{}, err
		}
		results = append(results, o)
	}
	if err := rows.Err(); err != nil {
		return PlayerSummary{}, err
	}
	if len(results) == 0 {
		return PlayerSummary{}, ErrNotFound
	}
	return summarize(playerName, results), nil
}

type gameOutcome struct {
	gameType   string
	won        bool
	finalScore int
}

func summarize(name string, results []gameOutcome) PlayerSummary {
	sum := PlayerSummary{PlayerName: name, ByGameType: make(map[string]GameTypeSummary)}
	total := 0
	scores := make(map[string]int)
	for _, o := range results {
		sum.TotalGames++
		total += o.finalScore
		gt := sum.ByGameType[o.gameType]
		gt.Games++
		if o.won {
			sum.Wins++
			gt.Wins++
		} else {
			gt.Losses++
		}
		scores[o.gameType] += o.finalScore
		sum.ByGameType[o.gameType] = gt
	}
	sum.Losses = sum.TotalGames - sum.Wins
	sum.WinRate = round2(float64(sum.Wins) * 100 / float64(sum.TotalGames))
	sum.AverageScore = round2(float64(total) / float64(sum.TotalGames))
	for k, gt := range sum.ByGameType {
		gt.AverageScore = round2(float64(scores[k]) / float64(gt.Games))
		sum.ByGameType[k] = gt
	}
	return sum
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
