package table

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"darts-lite/apps/server/internal/codec"
	"darts-lite/apps/server/internal/ledger"
	"darts-lite/dart"
	"darts-lite/darts"
)

// Table owns the game session of one dartboard. Every command goes through
// the actor goroutine, so commands against one board apply in strict order.
type Table struct {
	BoardID string

	mu           sync.RWMutex
	game         *darts.Game
	gameID       string
	closed       bool
	stopOnce     sync.Once
	lastActivity time.Time

	// Event channel for actor pattern
	events chan Event
	done   chan struct{}

	// Server sequence for event ordering
	serverSeq uint64

	emitter     Emitter
	writer      *ledger.Writer
	logger      *zap.Logger
	tracer      trace.Tracer
	sendsActual bool
	idleTTL     time.Duration

	retireHooks []RetireHook
}

// Emitter receives every event the session produces, in order. Emit is
// called from the actor goroutine and must not block.
type Emitter interface {
	Emit(frame codec.Frame)
}

type EmitterFunc func(frame codec.Frame)

func (f EmitterFunc) Emit(frame codec.Frame) { f(frame) }

// MultiEmitter fans one frame out to several emitters.
type MultiEmitter []Emitter

func (m MultiEmitter) Emit(frame codec.Frame) {
	for _, e := range m {
		if e != nil {
			e.Emit(frame)
		}
	}
}

// EventType names a command for the table actor.
type EventType int

const (
	EventThrow EventType = iota
	EventNextPlayer
	EventSkipToPlayer
	EventAddPlayer
	EventRemovePlayer
	EventPause
	EventResume
	EventTogglePause
	EventEndGame
	EventSetAdvice
	EventIdle
)

var eventTypeNames = map[EventType]string{
	EventThrow:        "manual_score",
	EventNextPlayer:   "next_player",
	EventSkipToPlayer: "skip_to_player",
	EventAddPlayer:    "add_player",
	EventRemovePlayer: "remove_player",
	EventPause:        "pause",
	EventResume:       "resume",
	EventTogglePause:  "toggle_pause",
	EventEndGame:      "end_game",
	EventSetAdvice:    "set_advice",
	EventIdle:         "idle_timeout",
}

func (e EventType) String() string {
	if s, ok := eventTypeNames[e]; ok {
		return s
	}
	return fmt.Sprintf("event_%d", int(e))
}

// ParseEventType maps a client command name to its event type. Idle
// timeouts are raised by the actor only and cannot be requested.
func ParseEventType(s string) (EventType, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	for et, name := range eventTypeNames {
		if name == s && et != EventIdle {
			return et, true
		}
	}
	return 0, false
}

// Event represents a message to the table actor
type Event struct {
	Type EventType
	// Score and Multiplier carry a throw as the dartboard reports it.
	Score      int
	Multiplier string
	PlayerID   string
	PlayerName string
	Show       bool

	Ctx       context.Context
	Timestamp time.Time
	Response  chan Response
}

type Response struct {
	Update darts.Update
	Err    error
}

// RetireInfo is handed to retire hooks once the session is over.
type RetireInfo struct {
	BoardID string
	GameID  string
	Result  darts.Result
	Table   *Table
}

type RetireHook func(info RetireInfo)

var ErrTableClosed = errors.New("table closed")

const tickInterval = 30 * time.Second

// Options configures a new table.
type Options struct {
	BoardID string
	Game    darts.Config
	Players []string

	Emitter Emitter
	Writer  *ledger.Writer
	Logger  *zap.Logger

	// SendsActualScore is set when the dartboard reports 60 for T20.
	SendsActualScore bool
	// IdleTTL ends the session after this long without commands; 0 disables.
	IdleTTL time.Duration
}

// New starts a game on a board and its actor goroutine. The returned update
// carries the game_started and game_state events, already emitted.
func New(opts Options) (*Table, darts.Update, error) {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	boardID := strings.TrimSpace(opts.BoardID)
	if boardID == "" {
		return nil, darts.Update{}, fmt.Errorf("%w: empty board id", darts.ErrInvalidConfig)
	}
	cfg := opts.Game
	cfg.Logger = logger.Named("game")
	game, up, err := darts.NewGame(cfg, opts.Players)
	if err != nil {
		return nil, darts.Update{}, err
	}
	cfg = game.Config()

	t := &Table{
		BoardID:      boardID,
		game:         game,
		gameID:       cfg.ID,
		lastActivity: time.Now(),
		events:       make(chan Event, 256),
		done:         make(chan struct{}),
		emitter:      opts.Emitter,
		writer:       opts.Writer,
		logger:       logger.Named("table").With(zap.String("board_id", boardID), zap.String("game_id", cfg.ID)),
		tracer:       otel.Tracer("darts-lite/table"),
		sendsActual:  opts.SendsActualScore,
		idleTTL:      opts.IdleTTL,
	}

	t.writer.StartGame(ledger.GameMeta{
		GameID:     cfg.ID,
		BoardID:    boardID,
		GameType:   cfg.GameType(),
		DoubleOut:  cfg.DoubleOut,
		StartedAt:  game.Result().StartedAt,
		Players:    game.Players(),
		StartScore: cfg.StartScore,
	})
	t.mu.Lock()
	t.publishLocked(up)
	t.mu.Unlock()

	go t.run()

	t.logger.Info("table created", zap.String("game_type", cfg.GameType()), zap.Int("players", len(opts.Players)))
	return t, up, nil
}

// run is the main actor loop
func (t *Table) run() {
	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()

	for {
		select {
		case event := <-t.events:
			up, retired, err := t.handleEvent(event)
			if event.Response != nil {
				event.Response <- Response{Update: up, Err: err}
			}
			if retired != nil {
				t.dispatchRetireHooks(*retired)
				t.Stop()
			}
		case <-ticker.C:
			t.tick()
		case <-t.done:
			t.logger.Debug("actor stopped")
			return
		}
	}
}

// handleEvent processes a single event
func (t *Table) handleEvent(e Event) (darts.Update, *RetireInfo, error) {
	ctx := e.Ctx
	if ctx == nil {
		ctx = context.Background()
	}
	_, span := t.tracer.Start(ctx, "table."+e.Type.String(), trace.WithAttributes(
		attribute.String("board_id", t.BoardID),
		attribute.String("game_id", t.gameID),
	))
	defer span.End()

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		span.SetStatus(codes.Error, ErrTableClosed.Error())
		return darts.Update{}, nil, fmt.Errorf("%w: %w", darts.ErrGameNotActive, ErrTableClosed)
	}

	up, err := t.applyLocked(e)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, darts.Code(err))
		t.logger.Debug("command rejected", zap.Stringer("command", e.Type), zap.Error(err))
		return darts.Update{}, nil, err
	}
	t.lastActivity = e.Timestamp
	if t.lastActivity.IsZero() {
		t.lastActivity = time.Now()
	}
	t.publishLocked(up)

	if up.Finished() || e.Type == EventEndGame || e.Type == EventIdle {
		info := t.retireLocked()
		return up, &info, nil
	}
	return up, nil, nil
}

func (t *Table) applyLocked(e Event) (darts.Update, error) {
	switch e.Type {
	case EventThrow:
		seg, err := t.segmentFromInput(e.Score, e.Multiplier)
		if err != nil {
			return darts.Update{}, err
		}
		return t.game.RecordThrow(seg)
	case EventNextPlayer:
		return t.game.NextPlayer()
	case EventSkipToPlayer:
		return t.game.SkipToPlayer(e.PlayerID)
	case EventAddPlayer:
		return t.game.AddPlayer(darts.PlayerRef{ID: e.PlayerID, Name: e.PlayerName})
	case EventRemovePlayer:
		return t.game.RemovePlayer(e.PlayerID)
	case EventPause:
		return t.game.Pause()
	case EventResume:
		return t.game.Resume()
	case EventTogglePause:
		return t.game.TogglePause()
	case EventEndGame, EventIdle:
		return t.game.End()
	case EventSetAdvice:
		return t.game.SetShowAdvice(e.Show)
	default:
		return darts.Update{}, fmt.Errorf("unknown event type: %d", e.Type)
	}
}

// segmentFromInput maps a dartboard payload to a segment. Errors wrap
// darts.ErrInvalidThrow.
func (t *Table) segmentFromInput(score int, multiplier string) (dart.Segment, error) {
	var (
		seg dart.Segment
		err error
	)
	switch m := strings.ToUpper(strings.TrimSpace(multiplier)); {
	case !t.sendsActual || m == "BULL" || m == "DBLBULL":
		seg, err = dart.ParseThrow(score, multiplier)
	default:
		var mult dart.Multiplier
		mult, err = dart.ParseMultiplier(multiplier)
		if err == nil {
			seg, err = dart.FromActual(score, mult)
		}
	}
	if err != nil {
		return dart.Segment{}, fmt.Errorf("%w: %v", darts.ErrInvalidThrow, err)
	}
	return seg, nil
}

// publishLocked emits the update's events and hands them to the ledger.
func (t *Table) publishLocked(up darts.Update) {
	if up.Throw != nil {
		t.writer.AppendThrow(t.gameID, *up.Throw)
	}
	for _, evt := range up.Events {
		frame := codec.WrapEvent(t.BoardID, t.gameID, t.nextSeq(), evt)
		if t.emitter != nil {
			t.emitter.Emit(frame)
		}
		t.appendTapeEvent(frame)
	}
}

func (t *Table) appendTapeEvent(frame codec.Frame) {
	if t.writer == nil {
		return
	}
	raw, err := codec.MarshalEnvelope(frame)
	if err != nil {
		t.logger.Warn("encode tape event failed", zap.Uint64("seq", frame.ServerSeq), zap.Error(err))
		return
	}
	ts := frame.ServerTsMs
	t.writer.AppendEvent(t.gameID, ledger.EventItem{
		Seq:         frame.ServerSeq,
		EventType:   string(frame.Event),
		EnvelopeB64: codec.EncodeB64(raw),
		ServerTsMs:  &ts,
	})
}

func (t *Table) retireLocked() RetireInfo {
	result := t.game.Result()
	t.writer.FinishGame(result)
	// the actor stops once the retiring command has been answered
	t.closed = true
	winner := ""
	if result.Winner != nil {
		winner = result.Winner.Name
	}
	t.logger.Info("table retired", zap.String("winner", winner), zap.Int("throws", len(result.Throws)))
	return RetireInfo{BoardID: t.BoardID, GameID: t.gameID, Result: result, Table: t}
}

func (t *Table) dispatchRetireHooks(info RetireInfo) {
	t.mu.RLock()
	hooks := append([]RetireHook(nil), t.retireHooks...)
	t.mu.RUnlock()
	for _, hook := range hooks {
		if hook == nil {
			continue
		}
		go func(cb RetireHook) {
			defer func() {
				if r := recover(); r != nil {
					t.logger.Error("retire hook panic", zap.Any("panic", r))
				}
			}()
			cb(info)
		}(hook)
	}
}

func (t *Table) tick() {
	t.mu.RLock()
	idle := !t.closed && t.idleTTL > 0 && time.Since(t.lastActivity) >= t.idleTTL
	t.mu.RUnlock()
	if !idle {
		return
	}
	t.logger.Info("ending idle session", zap.Duration("ttl", t.idleTTL))
	_, retired, err := t.handleEvent(Event{Type: EventIdle, Timestamp: time.Now()})
	if err != nil {
		t.logger.Warn("idle end failed", zap.Error(err))
		return
	}
	if retired != nil {
		t.dispatchRetireHooks(*retired)
		t.Stop()
	}
}

// SubmitEvent hands e to the actor and waits for the outcome.
func (t *Table) SubmitEvent(e Event) (darts.Update, error) {
	e.Timestamp = time.Now()
	if e.Response == nil {
		e.Response = make(chan Response, 1)
	}

	t.mu.RLock()
	closed := t.closed
	t.mu.RUnlock()
	if closed {
		return darts.Update{}, fmt.Errorf("%w: %w", darts.ErrGameNotActive, ErrTableClosed)
	}

	select {
	case t.events <- e:
	case <-t.done:
		return darts.Update{}, fmt.Errorf("%w: %w", darts.ErrGameNotActive, ErrTableClosed)
	}

	select {
	case resp := <-e.Response:
		return resp.Update, resp.Err
	case <-t.done:
		select {
		case resp := <-e.Response:
			return resp.Update, resp.Err
		default:
			return darts.Update{}, fmt.Errorf("%w: %w", darts.ErrGameNotActive, ErrTableClosed)
		}
	}
}

func (t *Table) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stopLocked()
}

func (t *Table) stopLocked() {
	t.closed = true
	t.stopOnce.Do(func() {
		close(t.done)
	})
}

func (t *Table) IsClosed() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.closed
}

func (t *Table) GameID() string { return t.gameID }

// Snapshot returns current game state (thread-safe)
func (t *Table) Snapshot() darts.Snapshot {
	return t.game.Snapshot()
}

func (t *Table) Result() darts.Result {
	return t.game.Result()
}

// AddRetireHook registers a callback run after the session ends.
func (t *Table) AddRetireHook(hook RetireHook) {
	if hook == nil {
		return
	}
	t.mu.Lock()
	t.retireHooks = append(t.retireHooks, hook)
	t.mu.Unlock()
}

func (t *Table) nextSeq() uint64 {
	t.serverSeq++
	return t.serverSeq
}
