package darts

import (
	"sort"
	"time"
)

type PlayerResult struct {
	Order      int    `json:"player_order"`
	ID         string `json:"player_id"`
	Name       string `json:"player_name"`
	StartScore int    `json:"start_score"`
	FinalScore int    `json:"final_score"`
	IsWinner   bool   `json:"is_winner"`
	Removed    bool   `json:"removed,omitempty"`
}

// Result is everything the persistence collaborator stores for one game.
type Result struct {
	GameID     string         `json:"game_id"`
	GameType   string         `json:"game_type"`
	Variant    VariantKind    `json:"-"`
	StartScore int            `json:"start_score,omitempty"`
	DoubleOut  bool           `json:"double_out_enabled"`
	CricketWin string         `json:"cricket_win,omitempty"`
	StartedAt  time.Time      `json:"started_at"`
	FinishedAt *time.Time     `json:"finished_at,omitempty"`
	Winner     *Player        `json:"winner,omitempty"`
	Players    []PlayerResult `json:"players"`
	Throws     []Throw        `json:"throws"`
	Roster     []RosterChange `json:"roster,omitempty"`
}

type RosterAction string

const (
	RosterJoin  RosterAction = "join"
	RosterLeave RosterAction = "leave"
)

// RosterChange is a player joining or leaving after AtThrow darts of the
// game were recorded. Players seated by NewGame have no join entry.
type RosterChange struct {
	AtThrow     int          `json:"at_throw"`
	PlayerOrder int          `json:"player_order"`
	Action      RosterAction `json:"action"`
}

// Result captures the current game record. FinishedAt is nil until the game
// is finished. Removed players are included, flagged, so every ledger row has
// an owner.
func (g *Game) Result() Result {
	g.mu.Lock()
	defer g.mu.Unlock()

	r := Result{
		GameID:     g.cfg.ID,
		GameType:   g.cfg.GameType(),
		Variant:    g.cfg.Variant,
		StartScore: g.cfg.StartScore,
		DoubleOut:  g.cfg.DoubleOut,
		StartedAt:  g.startedAt,
		Winner:     g.winnerCopyLocked(),
		Throws:     g.ledger.Throws(),
		Roster:     append([]RosterChange(nil), g.roster...),
	}
	if g.cfg.Variant == VariantCricket {
		r.CricketWin = CricketWinPolicyDictionary[g.cfg.CricketWin]
	}
	if g.state == StateFinished {
		t := g.finishedAt
		r.FinishedAt = &t
	}
	for _, s := range g.seats {
		_, removed := g.removed[s.player.ID]
		r.Players = append(r.Players, PlayerResult{
			Order:      s.player.Order,
			ID:         s.player.ID,
			Name:       s.player.Name,
			StartScore: g.cfg.StartScore,
			FinalScore: s.state.Score(),
			IsWinner:   g.winner != nil && g.winner.ID == s.player.ID,
			Removed:    removed,
		})
	}
	sort.Slice(r.Players, func(i, j int) bool { return r.Players[i].Order < r.Players[j].Order })
	return r
}
