package darts

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"darts-lite/dart"
)

type seat struct {
	player Player
	state  PlayerState
}

// Game is one live game session. All methods are safe for concurrent use;
// each one applies a single transition under the session lock.
type Game struct {
	cfg    Config
	rules  Rules
	logger *zap.Logger

	mu sync.Mutex

	order   TurnOrder
	seats   map[string]*seat
	removed map[string]Player
	nextOrd int

	state       State
	turn        int
	throwInTurn int
	// awaitingNext marks the pause entered at the end of a turn in ManualAdvance mode.
	awaitingNext bool
	showAdvice   bool

	ledger Ledger
	roster []RosterChange
	winner *Player

	startedAt  time.Time
	finishedAt time.Time
}

// NewGame starts a session: players are seated in list order, the first one
// throws first.
func NewGame(cfg Config, names []string) (*Game, Update, error) {
	if err := cfg.validate(); err != nil {
		return nil, Update{}, err
	}
	cfg = cfg.withDefaults()
	if len(names) == 0 {
		return nil, Update{}, fmt.Errorf("%w: at least one player is required", ErrEmptyRoster)
	}
	if cfg.MaxPlayers > 0 && len(names) > cfg.MaxPlayers {
		return nil, Update{}, fmt.Errorf("%w: %d players, max %d", ErrRosterFull, len(names), cfg.MaxPlayers)
	}
	rules, err := NewRules(cfg)
	if err != nil {
		return nil, Update{}, err
	}

	g := &Game{
		cfg:         cfg,
		rules:       rules,
		logger:      cfg.Logger.With(zap.String("game_id", cfg.ID), zap.String("game_type", cfg.GameType())),
		seats:       make(map[string]*seat, len(names)),
		removed:     make(map[string]Player),
		state:       StateInProgress,
		turn:        1,
		throwInTurn: 1,
		showAdvice:  cfg.ShowAdvice,
		startedAt:   cfg.Clock(),
	}
	for _, name := range names {
		g.seatLocked(g.newPlayerLocked(name))
	}

	g.logger.Info("game started", zap.Int("players", len(names)), zap.Bool("double_out", cfg.DoubleOut))
	snap := g.snapshotLocked()
	return g, Update{
		Snapshot: snap,
		Events: []Event{
			{Type: EventGameStarted, Data: snap},
			{Type: EventGameState, Data: snap},
		},
	}, nil
}

func (g *Game) Config() Config { return g.cfg }

func (g *Game) State() State {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state
}

func (g *Game) Winner() *Player {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.winnerCopyLocked()
}

// Players returns the roster in throwing order.
func (g *Game) Players() []Player {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]Player, 0, g.order.Len())
	for _, id := range g.order.IDs() {
		out = append(out, g.seats[id].player)
	}
	return out
}

func (g *Game) Throws() []Throw {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.ledger.Throws()
}

func (g *Game) newPlayerLocked(name string) Player {
	g.nextOrd++
	name = strings.TrimSpace(name)
	if name == "" {
		name = fmt.Sprintf("Player %d", g.order.Len()+1)
	}
	return Player{ID: fmt.Sprintf("p%d", g.nextOrd), Name: name, Order: g.nextOrd}
}

func (g *Game) seatLocked(p Player) {
	g.seats[p.ID] = &seat{player: p, state: g.rules.NewPlayerState(g.statesLocked())}
	g.order.Add(p.ID)
}

func (g *Game) statesLocked() []PlayerState {
	ids := g.order.IDs()
	out := make([]PlayerState, len(ids))
	for i, id := range ids {
		out[i] = g.seats[id].state
	}
	return out
}

func (g *Game) storeStatesLocked(states []PlayerState) {
	for i, id := range g.order.IDs() {
		g.seats[id].state = states[i]
	}
}

// requirePlayable rejects play while finished or paused. A pause entered at
// the end of a turn in ManualAdvance mode is released by next/skip.
func (g *Game) requirePlayable(allowTurnPause bool) error {
	switch g.state {
	case StateFinished:
		return ErrGameNotActive
	case StatePaused:
		if allowTurnPause && g.awaitingNext {
			return nil
		}
		return ErrGamePaused
	}
	return nil
}

func (g *Game) advanceLocked() {
	g.turn++
	g.throwInTurn = 1
	g.order.Advance()
	g.releaseTurnPauseLocked()
}

func (g *Game) releaseTurnPauseLocked() {
	if g.awaitingNext {
		g.awaitingNext = false
		g.state = StateInProgress
	}
}

func (g *Game) stateUpdateLocked(events ...Event) Update {
	snap := g.snapshotLocked()
	return Update{Snapshot: snap, Events: append(events, Event{Type: EventGameState, Data: snap})}
}

// RecordThrow applies one dart for the player at the board.
func (g *Game) RecordThrow(seg dart.Segment) (Update, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if err := g.requirePlayable(false); err != nil {
		return Update{}, err
	}
	if err := seg.Validate(); err != nil {
		return Update{}, fmt.Errorf("%w: %v", ErrInvalidThrow, err)
	}

	id, idx := g.order.Current()
	if id == "" {
		return Update{}, ErrEmptyRoster
	}
	out, err := g.rules.Apply(g.statesLocked(), idx, seg)
	if err != nil {
		return Update{}, err
	}

	player := g.seats[id].player
	rec, err := g.ledger.Append(Throw{
		Turn:        g.turn,
		ThrowInTurn: g.throwInTurn,
		PlayerID:    player.ID,
		PlayerName:  player.Name,
		PlayerOrder: player.Order,
		Base:        seg.Base,
		Multiplier:  seg.Multiplier,
		Actual:      seg.Score(),
		ScoreBefore: out.ScoreBefore,
		ScoreAfter:  out.ScoreAfter,
		Bust:        out.Bust,
		Finish:      out.Finish,
		At:          g.cfg.Clock(),
	})
	if err != nil {
		return Update{}, err
	}
	g.storeStatesLocked(out.States)

	g.logger.Debug("throw recorded",
		zap.String("player", player.Name),
		zap.Stringer("segment", seg),
		zap.Int("score_before", rec.ScoreBefore),
		zap.Int("score_after", rec.ScoreAfter),
		zap.Bool("bust", rec.Bust),
	)

	events := []Event{{Type: EventThrowRecorded, Data: rec}}
	switch {
	case out.Finish:
		g.finishLocked(&player)
		up := g.stateUpdateLocked(events...)
		up.Events = append(up.Events, Event{Type: EventGameEnd, Data: GameEndPayload{Winner: g.winnerCopyLocked(), Reason: "finished"}})
		up.Throw = &rec
		return up, nil
	case out.Bust || g.throwInTurn >= ThrowsPerTurn:
		if g.cfg.ManualAdvance {
			g.state = StatePaused
			g.awaitingNext = true
		} else {
			g.advanceLocked()
		}
	default:
		g.throwInTurn++
	}

	up := g.stateUpdateLocked(events...)
	up.Throw = &rec
	return up, nil
}

func (g *Game) finishLocked(winner *Player) {
	g.state = StateFinished
	g.awaitingNext = false
	g.finishedAt = g.cfg.Clock()
	if winner != nil {
		w := *winner
		g.winner = &w
		g.logger.Info("game finished", zap.String("winner", w.Name), zap.Int("throws", g.ledger.Len()))
	} else {
		g.logger.Info("game ended without winner", zap.Int("throws", g.ledger.Len()))
	}
}

func (g *Game) winnerCopyLocked() *Player {
	if g.winner == nil {
		return nil
	}
	w := *g.winner
	return &w
}

// NextPlayer hands the board to the next player in order.
func (g *Game) NextPlayer() (Update, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if err := g.requirePlayable(true); err != nil {
		return Update{}, err
	}
	g.advanceLocked()
	return g.stateUpdateLocked(), nil
}

// SkipToPlayer hands the board to id, starting a new turn.
func (g *Game) SkipToPlayer(id string) (Update, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if err := g.requirePlayable(true); err != nil {
		return Update{}, err
	}
	if !g.order.SetCurrent(id) {
		return Update{}, fmt.Errorf("%w: %s", ErrPlayerNotFound, id)
	}
	g.turn++
	g.throwInTurn = 1
	g.releaseTurnPauseLocked()
	return g.stateUpdateLocked(), nil
}

// AddPlayer appends a player to the end of the order. A ref with an ID
// brings back a player removed earlier in this game.
func (g *Game) AddPlayer(ref PlayerRef) (Update, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.state == StateFinished {
		return Update{}, ErrGameNotActive
	}
	if g.cfg.MaxPlayers > 0 && g.order.Len() >= g.cfg.MaxPlayers {
		return Update{}, ErrRosterFull
	}

	var p Player
	if ref.ID != "" {
		if _, ok := g.seats[ref.ID]; ok && g.order.IndexOf(ref.ID) >= 0 {
			return Update{}, fmt.Errorf("%w: %s", ErrDuplicatePlayer, ref.ID)
		}
		prev, ok := g.removed[ref.ID]
		if !ok {
			return Update{}, fmt.Errorf("%w: %s", ErrPlayerNotFound, ref.ID)
		}
		delete(g.removed, ref.ID)
		p = prev
		if name := strings.TrimSpace(ref.Name); name != "" {
			p.Name = name
		}
	} else {
		p = g.newPlayerLocked(ref.Name)
	}
	g.seatLocked(p)
	g.roster = append(g.roster, RosterChange{AtThrow: g.ledger.Len(), PlayerOrder: p.Order, Action: RosterJoin})

	g.logger.Info("player added", zap.String("player_id", p.ID), zap.String("player", p.Name))
	return g.stateUpdateLocked(Event{Type: EventPlayerAdded, Data: PlayerPayload{PlayerID: p.ID, PlayerName: p.Name}}), nil
}

// RemovePlayer takes id out of the order. If id was at the board the next
// player in order takes over with a fresh turn.
func (g *Game) RemovePlayer(id string) (Update, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.state == StateFinished {
		return Update{}, ErrGameNotActive
	}
	if g.order.IndexOf(id) < 0 {
		return Update{}, fmt.Errorf("%w: %s", ErrPlayerNotFound, id)
	}
	if g.order.Len() == 1 {
		return Update{}, fmt.Errorf("%w: cannot remove the last player", ErrEmptyRoster)
	}

	p := g.seats[id].player
	wasCurrent, _ := g.order.Remove(id)
	// the seat stays so the removed player's state can be reported in results
	g.removed[id] = p
	g.roster = append(g.roster, RosterChange{AtThrow: g.ledger.Len(), PlayerOrder: p.Order, Action: RosterLeave})
	if wasCurrent {
		g.turn++
		g.throwInTurn = 1
		g.releaseTurnPauseLocked()
	}
	g.storeStatesLocked(g.rules.Reconcile(g.statesLocked()))

	g.logger.Info("player removed", zap.String("player_id", p.ID), zap.String("player", p.Name), zap.Bool("was_current", wasCurrent))
	return g.stateUpdateLocked(Event{Type: EventPlayerRemoved, Data: PlayerPayload{PlayerID: p.ID, PlayerName: p.Name}}), nil
}

func (g *Game) Pause() (Update, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.pauseLocked()
}

// Resume continues a paused game. Resuming the end-of-turn pause of
// ManualAdvance mode moves to the next player.
func (g *Game) Resume() (Update, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.resumeLocked()
}

func (g *Game) TogglePause() (Update, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.state == StatePaused {
		return g.resumeLocked()
	}
	return g.pauseLocked()
}

func (g *Game) pauseLocked() (Update, error) {
	if g.state == StateFinished {
		return Update{}, ErrGameNotActive
	}
	g.state = StatePaused
	return g.stateUpdateLocked(), nil
}

func (g *Game) resumeLocked() (Update, error) {
	if g.state == StateFinished {
		return Update{}, ErrGameNotActive
	}
	if g.awaitingNext {
		g.advanceLocked()
	}
	g.state = StateInProgress
	return g.stateUpdateLocked(), nil
}

// End finishes the game without a winner.
func (g *Game) End() (Update, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.state == StateFinished {
		return Update{}, ErrGameNotActive
	}
	g.finishLocked(nil)
	up := g.stateUpdateLocked()
	up.Events = append(up.Events, Event{Type: EventGameEnd, Data: GameEndPayload{Reason: "ended"}})
	return up, nil
}

// SetShowAdvice switches checkout suggestions in snapshots on or off.
func (g *Game) SetShowAdvice(show bool) (Update, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.showAdvice = show
	return g.stateUpdateLocked(), nil
}
