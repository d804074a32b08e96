package replay

import (
	"fmt"
	"sort"
	"time"

	"darts-lite/dart"
	"darts-lite/darts"
)

const (
	tapeVersion = 1
	maxTurnGap  = 1000
)

// Rebuild replays every stored throw through a fresh engine and checks that
// the engine reaches the recorded outcome at each step. The first divergence
// is returned as a *ReplayError.
//
// Roster joins and leaves are applied at the throw count they were recorded
// at. Turn handovers are not stored, so the board is handed to the recorded
// thrower whenever the engine disagrees about whose turn it is.
func Rebuild(doc Document) (*Tape, error) {
	variant, start, err := darts.ParseGameType(doc.GameType)
	if err != nil {
		return nil, &ReplayError{StepIndex: -1, Reason: "invalid_game_type", Message: err.Error()}
	}
	win, err := darts.ParseCricketWinPolicy(doc.CricketWin)
	if err != nil {
		return nil, &ReplayError{StepIndex: -1, Reason: "invalid_cricket_win", Message: err.Error()}
	}
	if len(doc.Players) == 0 {
		return nil, &ReplayError{StepIndex: -1, Reason: "invalid_players", Message: "at least one player is required"}
	}

	players := append([]PlayerRow(nil), doc.Players...)
	sort.Slice(players, func(i, j int) bool { return players[i].PlayerOrder < players[j].PlayerOrder })
	ids := make(map[int]string, len(players))
	docOrder := make(map[int]int, len(players))
	for i, p := range players {
		if _, dup := ids[p.PlayerOrder]; dup {
			return nil, &ReplayError{StepIndex: -1, Reason: "duplicate_player_order", Message: fmt.Sprintf("player_order %d listed twice", p.PlayerOrder)}
		}
		// seats are handed out as p1..pn in join order
		ids[p.PlayerOrder] = fmt.Sprintf("p%d", i+1)
		docOrder[i+1] = p.PlayerOrder
	}

	roster, err := newRosterPlan(doc.Roster, ids, len(doc.Throws))
	if err != nil {
		return nil, err
	}
	var names []string
	for i, p := range players {
		if roster.lateJoiner[p.PlayerOrder] {
			continue
		}
		if len(names) != i {
			return nil, &ReplayError{StepIndex: -1, Reason: "invalid_roster",
				Message: fmt.Sprintf("player_order %d starts the game after a later joiner", p.PlayerOrder)}
		}
		names = append(names, p.PlayerName)
	}

	game, up, err := darts.NewGame(darts.Config{
		ID:         doc.GameID,
		Variant:    variant,
		StartScore: start,
		DoubleOut:  doc.DoubleOut,
		CricketWin: win,
		Clock:      replayClock(doc.StartedAt),
	}, names)
	if err != nil {
		return nil, &ReplayError{StepIndex: -1, Reason: "engine_init_failed", Message: err.Error()}
	}

	b := &tapeBuilder{tape: &Tape{TapeVersion: tapeVersion, GameType: doc.GameType}}
	b.add(-1, up)

	for i, row := range doc.Throws {
		step := int32(i)
		if err := roster.apply(game, b, players, i); err != nil {
			return nil, err
		}
		id, ok := ids[row.PlayerOrder]
		if !ok {
			return nil, &ReplayError{StepIndex: step, Reason: "unknown_player", Message: fmt.Sprintf("player_order %d is not listed", row.PlayerOrder)}
		}

		snap := game.Snapshot()
		if snap.Players[snap.CurrentPlayer].ID != id || snap.TurnNumber < row.TurnNumber {
			if row.TurnNumber-snap.TurnNumber > maxTurnGap {
				return nil, &ReplayError{StepIndex: step, Reason: "turn_gap", Message: fmt.Sprintf("turn %d after %d", row.TurnNumber, snap.TurnNumber)}
			}
			// each handover opens a new turn, as next/skip/remove did live
			for {
				skip, err := game.SkipToPlayer(id)
				if err != nil {
					return nil, &ReplayError{StepIndex: step, Reason: "turn_handover_failed", Message: err.Error()}
				}
				b.add(step, skip)
				snap = skip.Snapshot
				if snap.TurnNumber >= row.TurnNumber {
					break
				}
			}
		}
		if snap.TurnNumber != row.TurnNumber || snap.CurrentThrow != row.ThrowInTurn {
			return nil, &ReplayError{StepIndex: step, Reason: "turn_mismatch",
				Message: fmt.Sprintf("recorded turn %d dart %d, engine turn %d dart %d", row.TurnNumber, row.ThrowInTurn, snap.TurnNumber, snap.CurrentThrow)}
		}

		seg := dart.New(row.BaseScore, row.Multiplier)
		res, err := game.RecordThrow(seg)
		if err != nil {
			return nil, &ReplayError{StepIndex: step, Reason: "throw_rejected", Message: err.Error()}
		}
		b.add(step, res)

		got := res.Throw
		exp := &ExpectedState{
			PlayerOrder: got.PlayerOrder,
			ScoreBefore: got.ScoreBefore,
			ScoreAfter:  got.ScoreAfter,
			IsBust:      got.Bust,
			IsFinish:    got.Finish,
		}
		switch {
		case got.ScoreBefore != row.ScoreBefore || got.ScoreAfter != row.ScoreAfter:
			return nil, &ReplayError{StepIndex: step, Reason: "score_mismatch", Expected: exp,
				Message: fmt.Sprintf("recorded %d->%d, engine %d->%d", row.ScoreBefore, row.ScoreAfter, got.ScoreBefore, got.ScoreAfter)}
		case got.Bust != row.IsBust:
			return nil, &ReplayError{StepIndex: step, Reason: "bust_mismatch", Expected: exp, Message: fmt.Sprintf("recorded bust=%v", row.IsBust)}
		case got.Finish != row.IsFinish:
			return nil, &ReplayError{StepIndex: step, Reason: "finish_mismatch", Expected: exp, Message: fmt.Sprintf("recorded finish=%v", row.IsFinish)}
		case got.Actual != row.ActualScore:
			return nil, &ReplayError{StepIndex: step, Reason: "actual_score_mismatch", Expected: exp, Message: fmt.Sprintf("recorded %d, engine %d", row.ActualScore, got.Actual)}
		}
	}

	if err := roster.apply(game, b, players, len(doc.Throws)); err != nil {
		return nil, err
	}

	result := game.Result()
	for i := range result.Players {
		result.Players[i].Order = docOrder[result.Players[i].Order]
	}
	for i := range result.Throws {
		result.Throws[i].PlayerOrder = docOrder[result.Throws[i].PlayerOrder]
	}
	final := FromResult(result)
	for i, p := range players {
		got := final.Players[i]
		if got.FinalScore != p.FinalScore || got.IsWinner != p.IsWinner {
			return nil, &ReplayError{StepIndex: int32(len(doc.Throws)), Reason: "final_mismatch",
				Message: fmt.Sprintf("player_order %d: recorded score=%d winner=%v, engine score=%d winner=%v",
					p.PlayerOrder, p.FinalScore, p.IsWinner, got.FinalScore, got.IsWinner)}
		}
	}
	if doc.Digest != "" && doc.Digest != final.Digest {
		return nil, &ReplayError{StepIndex: int32(len(doc.Throws)), Reason: "digest_mismatch",
			Message: fmt.Sprintf("recorded %s, engine %s", doc.Digest, final.Digest)}
	}

	b.tape.Final = final.Players
	b.tape.Stats = darts.ComputeStats(variant, result.Throws)
	b.tape.Digest = final.Digest
	return b.tape, nil
}

// Verify rebuilds doc and reports only the outcome.
func Verify(doc Document) error {
	_, err := Rebuild(doc)
	return err
}

// rosterPlan replays stored joins and leaves in recording order.
type rosterPlan struct {
	rows []RosterRow
	next int
	ids  map[int]string
	// lateJoiner marks players whose first roster row is a join.
	lateJoiner map[int]bool
	seated     map[int]bool
}

func newRosterPlan(rows []RosterRow, ids map[int]string, throws int) (*rosterPlan, error) {
	p := &rosterPlan{rows: rows, ids: ids, lateJoiner: make(map[int]bool), seated: make(map[int]bool)}
	last := 0
	for _, r := range rows {
		if r.AtThrow < last || r.AtThrow > throws {
			return nil, &ReplayError{StepIndex: -1, Reason: "invalid_roster",
				Message: fmt.Sprintf("roster change at throw %d out of order", r.AtThrow)}
		}
		last = r.AtThrow
		if _, ok := ids[r.PlayerOrder]; !ok {
			return nil, &ReplayError{StepIndex: int32(r.AtThrow), Reason: "unknown_player",
				Message: fmt.Sprintf("player_order %d is not listed", r.PlayerOrder)}
		}
		if r.Action != string(darts.RosterJoin) && r.Action != string(darts.RosterLeave) {
			return nil, &ReplayError{StepIndex: int32(r.AtThrow), Reason: "invalid_roster",
				Message: fmt.Sprintf("unknown roster action %q", r.Action)}
		}
	}
	seen := make(map[int]bool)
	for _, r := range rows {
		if !seen[r.PlayerOrder] {
			seen[r.PlayerOrder] = true
			p.lateJoiner[r.PlayerOrder] = r.Action == string(darts.RosterJoin)
		}
	}
	for order := range ids {
		if !p.lateJoiner[order] {
			p.seated[order] = true
		}
	}
	return p, nil
}

// apply runs every change recorded after at throws.
func (p *rosterPlan) apply(game *darts.Game, b *tapeBuilder, players []PlayerRow, at int) error {
	step := int32(at)
	for ; p.next < len(p.rows) && p.rows[p.next].AtThrow == at; p.next++ {
		r := p.rows[p.next]
		id := p.ids[r.PlayerOrder]
		var (
			up  darts.Update
			err error
		)
		switch {
		case r.Action == string(darts.RosterLeave):
			up, err = game.RemovePlayer(id)
		case p.seated[r.PlayerOrder]:
			up, err = game.AddPlayer(darts.PlayerRef{ID: id})
		default:
			up, err = game.AddPlayer(darts.PlayerRef{Name: playerName(players, r.PlayerOrder)})
			if err == nil && addedID(up) != id {
				return &ReplayError{StepIndex: step, Reason: "roster_mismatch",
					Message: fmt.Sprintf("player_order %d joined as %s, expected %s", r.PlayerOrder, addedID(up), id)}
			}
			p.seated[r.PlayerOrder] = true
		}
		if err != nil {
			return &ReplayError{StepIndex: step, Reason: "roster_change_failed", Message: err.Error()}
		}
		b.add(step, up)
	}
	return nil
}

func playerName(players []PlayerRow, order int) string {
	for _, p := range players {
		if p.PlayerOrder == order {
			return p.PlayerName
		}
	}
	return ""
}

func addedID(up darts.Update) string {
	for _, e := range up.Events {
		if p, ok := e.Data.(darts.PlayerPayload); ok && e.Type == darts.EventPlayerAdded {
			return p.PlayerID
		}
	}
	return ""
}

type tapeBuilder struct {
	tape *Tape
	seq  uint64
}

func (b *tapeBuilder) add(step int32, up darts.Update) {
	for _, e := range up.Events {
		b.seq++
		b.tape.Events = append(b.tape.Events, ReplayEvent{Type: string(e.Type), Seq: b.seq, Step: step, Value: e})
	}
}

func replayClock(start time.Time) func() time.Time {
	n := 0
	return func() time.Time {
		n++
		return start.Add(time.Duration(n) * time.Millisecond)
	}
}
