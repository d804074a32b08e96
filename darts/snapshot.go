package darts

type PlayerView struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type TargetView struct {
	Hits   int          `json:"hits"`
	Closed bool         `json:"closed"`
	Status TargetStatus `json:"status"`
}

// PlayerData is the per-variant scoring view. Targets is only set for Cricket.
type PlayerData struct {
	Score   int                   `json:"score"`
	Targets map[string]TargetView `json:"targets,omitempty"`
}

type GameData struct {
	DoubleOut  bool         `json:"double_out"`
	StartScore int          `json:"start_score,omitempty"`
	Players    []PlayerData `json:"players"`
}

// Snapshot is the read-only projection of a session handed to observers.
type Snapshot struct {
	GameID        string       `json:"game_id,omitempty"`
	Players       []PlayerView `json:"players"`
	CurrentPlayer int          `json:"current_player"`
	IsStarted     bool         `json:"is_started"`
	IsPaused      bool         `json:"is_paused"`
	IsFinished    bool         `json:"is_finished"`
	State         string       `json:"state"`
	Winner        *PlayerView  `json:"winner,omitempty"`
	TurnNumber    int          `json:"turn_number"`
	CurrentThrow  int          `json:"current_throw"`
	GameType      string       `json:"game_type"`
	GameData      GameData     `json:"game_data"`

	ThrowoutAdvice     []string `json:"throwout_advice,omitempty"`
	ShowThrowoutAdvice bool     `json:"show_throwout_advice,omitempty"`

	LastThrow *Throw `json:"last_throw,omitempty"`
}

func (g *Game) Snapshot() Snapshot {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.snapshotLocked()
}

func (g *Game) snapshotLocked() Snapshot {
	_, cur := g.order.Current()
	s := Snapshot{
		GameID:        g.cfg.ID,
		CurrentPlayer: cur,
		IsStarted:     true,
		IsPaused:      g.state == StatePaused,
		IsFinished:    g.state == StateFinished,
		State:         g.state.String(),
		TurnNumber:    g.turn,
		CurrentThrow:  g.throwInTurn,
		GameType:      g.cfg.GameType(),
		GameData: GameData{
			DoubleOut:  g.cfg.DoubleOut,
			StartScore: g.cfg.StartScore,
		},
		ShowThrowoutAdvice: g.showAdvice,
	}

	for _, id := range g.order.IDs() {
		seat := g.seats[id]
		s.Players = append(s.Players, PlayerView{ID: seat.player.ID, Name: seat.player.Name})
		s.GameData.Players = append(s.GameData.Players, playerData(seat.state))
	}
	if g.winner != nil {
		s.Winner = &PlayerView{ID: g.winner.ID, Name: g.winner.Name}
	}
	if last, ok := g.ledger.Last(); ok {
		s.LastThrow = &last
	}

	if g.showAdvice && g.state != StateFinished && g.cfg.Variant == VariantX01 {
		if id, _ := g.order.Current(); id != "" {
			s.ThrowoutAdvice = CheckoutAdvice(g.seats[id].state.Score(), g.cfg.DoubleOut)
		}
	}
	return s
}

func playerData(st PlayerState) PlayerData {
	d := PlayerData{Score: st.Score()}
	if cs, ok := st.(*CricketState); ok {
		d.Targets = make(map[string]TargetView, len(CricketTargets))
		for i := range CricketTargets {
			hits := cs.Marks[i]
			if hits > marksToClose {
				hits = marksToClose
			}
			d.Targets[targetKey(i)] = TargetView{Hits: hits, Closed: cs.Closed(i), Status: cs.Status(i)}
		}
	}
	return d
}
