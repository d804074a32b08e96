package ledger

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"darts-lite/darts"
	"darts-lite/replay"
)

var ErrNotFound = errors.New("not found")

// Service is the persistence collaborator. Writes are idempotent: replaying
// the same game, throw or event must not create duplicate rows.
type Service interface {
	Close() error
	StartGame(ctx context.Context, meta GameMeta) error
	AppendThrow(ctx context.Context, gameID string, t darts.Throw) error
	AppendEvent(ctx context.Context, gameID string, item EventItem) error
	FinishGame(ctx context.Context, r darts.Result) error
	ListHistory(ctx context.Context, limit int) ([]HistoryItem, error)
	GetReplay(ctx context.Context, gameID string) (replay.Document, error)
	GetEvents(ctx context.Context, gameID string) ([]EventItem, error)
	PlayerStats(ctx context.Context, playerName string) (PlayerSummary, error)
}

// GameMeta is written when a game starts, before any throw.
type GameMeta struct {
	GameID    string
	BoardID   string
	GameType  string
	DoubleOut bool
	StartedAt time.Time
	Players   []darts.Player
	// StartScore is the X01 starting score, 0 for Cricket.
	StartScore int
}

type HistoryItem struct {
	GameID      string     `json:"id"`
	BoardID     string     `json:"board_id"`
	GameType    string     `json:"game_type"`
	Status      string     `json:"status"`
	StartedAt   time.Time  `json:"started_at"`
	FinishedAt  *time.Time `json:"finished_at,omitempty"`
	Winner      string     `json:"winner,omitempty"`
	PlayerCount int        `json:"player_count"`
}

type EventItem struct {
	Seq         uint64 `json:"seq"`
	EventType   string `json:"event_type"`
	EnvelopeB64 string `json:"envelope_b64"`
	ServerTsMs  *int64 `json:"server_ts_ms,omitempty"`
}

type GameTypeSummary struct {
	Games        int     `json:"games"`
	Wins         int     `json:"wins"`
	Losses       int     `json:"losses"`
	AverageScore float64 `json:"average_score"`
}

// PlayerSummary aggregates every stored game a player name took part in.
type PlayerSummary struct {
	PlayerName   string                     `json:"player_name"`
	TotalGames   int                        `json:"total_games"`
	Wins         int                        `json:"wins"`
	Losses       int                        `json:"losses"`
	WinRate      float64                    `json:"win_rate"`
	AverageScore float64                    `json:"average_score"`
	ByGameType   map[string]GameTypeSummary `json:"by_game_type"`
}

const (
	statusActive   = "active"
	statusFinished = "finished"
	statusEnded    = "ended"
)

type noopService struct{}

func (n *noopService) Close() error { return nil }

func (n *noopService) StartGame(context.Context, GameMeta) error { return nil }

func (n *noopService) AppendThrow(context.Context, string, darts.Throw) error { return nil }

func (n *noopService) AppendEvent(context.Context, string, EventItem) error { return nil }

func (n *noopService) FinishGame(context.Context, darts.Result) error { return nil }

func (n *noopService) ListHistory(context.Context, int) ([]HistoryItem, error) {
	return []HistoryItem{}, nil
}

func (n *noopService) GetReplay(context.Context, string) (replay.Document, error) {
	return replay.Document{}, ErrNotFound
}

func (n *noopService) GetEvents(context.Context, string) ([]EventItem, error) {
	return []EventItem{}, nil
}

func (n *noopService) PlayerStats(_ context.Context, name string) (PlayerSummary, error) {
	return PlayerSummary{PlayerName: name, ByGameType: map[string]GameTypeSummary{}}, nil
}

// Options selects and configures a ledger backend.
type Options struct {
	Mode        string
	SQLitePath  string
	DatabaseURL string
	Logger      *zap.Logger
}

// NewService opens the backend named by opts.Mode and returns it together
// with the resolved mode name.
func NewService(opts Options) (Service, string, error) {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("ledger")

	switch strings.ToLower(strings.TrimSpace(opts.Mode)) {
	case "noop", "memory":
		return &noopService{}, "noop", nil
	case "", "sqlite", "local":
		svc, err := NewSQLiteService(opts.SQLitePath, logger)
		if err != nil {
			return nil, "", err
		}
		return svc, "sqlite", nil
	case "postgres":
		svc, err := NewPostgresService(opts.DatabaseURL, logger)
		if err != nil {
			return nil, "", err
		}
		return svc, "postgres", nil
	default:
		return nil, "", fmt.Errorf("unknown ledger mode %q", opts.Mode)
	}
}

func nullableInt64(v int64) any {
	if v == 0 {
		return nil
	}
	return v
}

func toMillis(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UTC().UnixMilli()
}

func fromMillis(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}
