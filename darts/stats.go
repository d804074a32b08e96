package darts

// PlayerStats summarizes one player's darts in a ledger.
type PlayerStats struct {
	PlayerID   string  `json:"player_id"`
	PlayerName string  `json:"player_name"`
	Darts      int     `json:"darts"`
	Points     int     `json:"points"`
	Busts      int     `json:"busts"`
	Average    float64 `json:"three_dart_average"`
	// HighestTurn is the best points total of a single visit.
	HighestTurn int `json:"highest_turn"`
	// Checkout is the score finished from, 0 when the player did not finish.
	Checkout int `json:"checkout,omitempty"`
}

// ComputeStats aggregates a ledger per player in order of first appearance.
// Points are what the darts took off an X01 score, or the Cricket points won.
func ComputeStats(kind VariantKind, throws []Throw) []PlayerStats {
	var out []PlayerStats
	index := make(map[string]int)
	type visit struct {
		player string
		turn   int
	}
	visits := make(map[visit]int)
	turnStart := make(map[visit]int)

	for _, t := range throws {
		i, ok := index[t.PlayerID]
		if !ok {
			i = len(out)
			index[t.PlayerID] = i
			out = append(out, PlayerStats{PlayerID: t.PlayerID, PlayerName: t.PlayerName})
		}
		st := &out[i]
		st.Darts++

		points := t.ScoreAfter - t.ScoreBefore
		if kind == VariantX01 {
			points = t.ScoreBefore - t.ScoreAfter
		}
		st.Points += points
		if t.Bust {
			st.Busts++
		}

		v := visit{player: t.PlayerID, turn: t.Turn}
		if _, ok := turnStart[v]; !ok {
			turnStart[v] = t.ScoreBefore
		}
		visits[v] += points
		if visits[v] > st.HighestTurn {
			st.HighestTurn = visits[v]
		}
		if t.Finish && kind == VariantX01 {
			st.Checkout = turnStart[v]
		}
	}
	for i := range out {
		if out[i].Darts > 0 {
			out[i].Average = float64(out[i].Points) * ThrowsPerTurn / float64(out[i].Darts)
		}
	}
	return out
}
