package lobby

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"darts-lite/apps/server/internal/ledger"
	"darts-lite/apps/server/internal/table"
	"darts-lite/darts"
)

// Lobby is the registry of live sessions, one per dartboard.
type Lobby struct {
	mu     sync.RWMutex
	tables map[string]*table.Table
	hubs   map[string]*Hub

	writer      *ledger.Writer
	emitters    []table.Emitter
	sendsActual bool
	idleTTL     time.Duration
	logger      *zap.Logger
	tracer      trace.Tracer
}

type Options struct {
	Writer *ledger.Writer
	// Emitters receive every frame of every board next to the board's hub.
	Emitters []table.Emitter

	SendsActualScore bool
	IdleTTL          time.Duration
	Logger           *zap.Logger
}

// ActiveGame summarizes a live session for listings.
type ActiveGame struct {
	BoardID       string    `json:"board_id"`
	GameID        string    `json:"game_id"`
	GameType      string    `json:"game_type"`
	State         string    `json:"state"`
	Players       []string  `json:"players"`
	CurrentPlayer string    `json:"current_player,omitempty"`
	TurnNumber    int       `json:"turn_number"`
	StartedAt     time.Time `json:"started_at"`
}

func New(opts Options) *Lobby {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Lobby{
		tables:      make(map[string]*table.Table),
		hubs:        make(map[string]*Hub),
		writer:      opts.Writer,
		emitters:    opts.Emitters,
		sendsActual: opts.SendsActualScore,
		idleTTL:     opts.IdleTTL,
		logger:      logger.Named("lobby"),
		tracer:      otel.Tracer("darts-lite/lobby"),
	}
}

// AddEmitter attaches e to games started from now on.
func (l *Lobby) AddEmitter(e table.Emitter) {
	if e == nil {
		return
	}
	l.mu.Lock()
	l.emitters = append(l.emitters, e)
	l.mu.Unlock()
}

// StartGame opens a session on boardID. A board that still has a live
// session is refused with ErrSessionExists; end_game frees it.
func (l *Lobby) StartGame(ctx context.Context, boardID string, req StartRequest) (*table.Table, darts.Update, error) {
	boardID = strings.TrimSpace(boardID)
	_, span := l.tracer.Start(ctx, "lobby.start_game", trace.WithAttributes(
		attribute.String("board_id", boardID),
		attribute.String("game_type", req.GameType),
	))
	defer span.End()

	t, up, err := l.startGame(boardID, req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, Code(err))
		return nil, darts.Update{}, err
	}
	span.SetAttributes(attribute.String("game_id", t.GameID()))
	return t, up, nil
}

func (l *Lobby) startGame(boardID string, req StartRequest) (*table.Table, darts.Update, error) {
	if boardID == "" {
		return nil, darts.Update{}, fmt.Errorf("%w: empty board id", darts.ErrInvalidConfig)
	}
	cfg, err := req.config()
	if err != nil {
		return nil, darts.Update{}, err
	}
	cfg.ID = uuid.NewString()

	l.mu.Lock()
	defer l.mu.Unlock()

	if t, ok := l.tables[boardID]; ok && !t.IsClosed() {
		return nil, darts.Update{}, fmt.Errorf("%w: %s", ErrSessionExists, boardID)
	}

	hub := l.hubLocked(boardID)
	emitters := append(table.MultiEmitter{hub}, l.emitters...)
	t, up, err := table.New(table.Options{
		BoardID:          boardID,
		Game:             cfg,
		Players:          req.Players,
		Emitter:          emitters,
		Writer:           l.writer,
		Logger:           l.logger,
		SendsActualScore: l.sendsActual,
		IdleTTL:          l.idleTTL,
	})
	if err != nil {
		return nil, darts.Update{}, err
	}
	t.AddRetireHook(l.onRetire)
	l.tables[boardID] = t

	l.logger.Info("game started",
		zap.String("board_id", boardID),
		zap.String("game_id", cfg.ID),
		zap.String("game_type", cfg.GameType()),
		zap.Int("players", len(req.Players)))
	return t, up, nil
}

func (l *Lobby) onRetire(info table.RetireInfo) {
	l.mu.Lock()
	defer l.mu.Unlock()
	// a new game may already occupy the board
	if cur, ok := l.tables[info.BoardID]; ok && cur == info.Table {
		delete(l.tables, info.BoardID)
	}
	l.logger.Info("game retired", zap.String("board_id", info.BoardID), zap.String("game_id", info.GameID))
}

// Execute applies cmd to the session on boardID.
func (l *Lobby) Execute(ctx context.Context, boardID string, cmd Command) (darts.Update, error) {
	e, err := cmd.event()
	if err != nil {
		return darts.Update{}, err
	}
	t := l.Get(boardID)
	if t == nil {
		return darts.Update{}, fmt.Errorf("%w: %s", ErrNoSession, boardID)
	}
	e.Ctx = ctx
	return t.SubmitEvent(e)
}

// Get returns the live session on boardID, nil if there is none.
func (l *Lobby) Get(boardID string) *table.Table {
	l.mu.RLock()
	defer l.mu.RUnlock()
	t := l.tables[strings.TrimSpace(boardID)]
	if t == nil || t.IsClosed() {
		return nil
	}
	return t
}

// Hub returns the broadcast hub of boardID, creating it on first use.
func (l *Lobby) Hub(boardID string) *Hub {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.hubLocked(strings.TrimSpace(boardID))
}

func (l *Lobby) hubLocked(boardID string) *Hub {
	h, ok := l.hubs[boardID]
	if !ok {
		h = newHub(boardID)
		l.hubs[boardID] = h
	}
	return h
}

// List returns the live sessions ordered by board id.
func (l *Lobby) List() []ActiveGame {
	l.mu.RLock()
	tables := make([]*table.Table, 0, len(l.tables))
	for _, t := range l.tables {
		if !t.IsClosed() {
			tables = append(tables, t)
		}
	}
	l.mu.RUnlock()

	out := make([]ActiveGame, 0, len(tables))
	for _, t := range tables {
		snap := t.Snapshot()
		g := ActiveGame{
			BoardID:    t.BoardID,
			GameID:     t.GameID(),
			GameType:   snap.GameType,
			State:      snap.State,
			Players:    make([]string, 0, len(snap.Players)),
			TurnNumber: snap.TurnNumber,
			StartedAt:  t.Result().StartedAt,
		}
		for _, p := range snap.Players {
			g.Players = append(g.Players, p.Name)
		}
		if snap.CurrentPlayer >= 0 && snap.CurrentPlayer < len(snap.Players) {
			g.CurrentPlayer = snap.Players[snap.CurrentPlayer].Name
		}
		out = append(out, g)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].BoardID < out[j].BoardID })
	return out
}

// Shutdown ends every live session so that each reaches the ledger as ended.
func (l *Lobby) Shutdown(ctx context.Context) {
	l.mu.RLock()
	tables := make([]*table.Table, 0, len(l.tables))
	for _, t := range l.tables {
		tables = append(tables, t)
	}
	l.mu.RUnlock()

	for _, t := range tables {
		if t.IsClosed() {
			continue
		}
		if _, err := t.SubmitEvent(table.Event{Type: table.EventEndGame, Ctx: ctx}); err != nil {
			l.logger.Warn("end game on shutdown failed", zap.String("board_id", t.BoardID), zap.Error(err))
		}
	}
}
