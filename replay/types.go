package replay

import (
	"sort"
	"time"

	"darts-lite/dart"
	"darts-lite/darts"
)

// Document is the stored record of one game as served by the history API.
type Document struct {
	GameID     string      `json:"game_id,omitempty"`
	GameType   string      `json:"game_type"`
	StartedAt  time.Time   `json:"started_at"`
	FinishedAt *time.Time  `json:"finished_at,omitempty"`
	DoubleOut  bool        `json:"double_out_enabled"`
	CricketWin string      `json:"cricket_win,omitempty"`
	Players    []PlayerRow `json:"players"`
	Throws     []ThrowRow  `json:"throws"`
	Roster     []RosterRow `json:"roster,omitempty"`
	Digest     string      `json:"tape_digest,omitempty"`
}

// RosterRow is a join or leave applied once AtThrow throws were recorded.
type RosterRow struct {
	AtThrow     int    `json:"at_throw"`
	PlayerOrder int    `json:"player_order"`
	Action      string `json:"action"`
}

type PlayerRow struct {
	PlayerOrder int    `json:"player_order"`
	PlayerName  string `json:"player_name"`
	StartScore  int    `json:"start_score"`
	FinalScore  int    `json:"final_score"`
	IsWinner    bool   `json:"is_winner"`
}

type ThrowRow struct {
	TurnNumber  int             `json:"turn_number"`
	ThrowInTurn int             `json:"throw_in_turn"`
	PlayerOrder int             `json:"player_order"`
	PlayerName  string          `json:"player_name"`
	BaseScore   int             `json:"base_score"`
	Multiplier  dart.Multiplier `json:"multiplier"`
	ActualScore int             `json:"actual_score"`
	ScoreBefore int             `json:"score_before"`
	ScoreAfter  int             `json:"score_after"`
	IsBust      bool            `json:"is_bust"`
	IsFinish    bool            `json:"is_finish"`
}

// Tape is the deterministic event sequence produced by rebuilding a document.
type Tape struct {
	TapeVersion int                 `json:"tape_version"`
	GameType    string              `json:"game_type"`
	Events      []ReplayEvent       `json:"events"`
	Final       []PlayerRow         `json:"final"`
	Stats       []darts.PlayerStats `json:"stats"`
	Digest      string              `json:"tape_digest"`
}

type ReplayEvent struct {
	Type  string      `json:"type"`
	Seq   uint64      `json:"seq"`
	Step  int32       `json:"step"`
	Value darts.Event `json:"value"`
}

// FromResult converts a finished (or ended) engine result to its stored form.
func FromResult(r darts.Result) Document {
	doc := Document{
		GameID:     r.GameID,
		GameType:   r.GameType,
		StartedAt:  r.StartedAt,
		FinishedAt: r.FinishedAt,
		DoubleOut:  r.DoubleOut,
		CricketWin: r.CricketWin,
	}
	for _, p := range r.Players {
		doc.Players = append(doc.Players, PlayerRow{
			PlayerOrder: p.Order,
			PlayerName:  p.Name,
			StartScore:  p.StartScore,
			FinalScore:  p.FinalScore,
			IsWinner:    p.IsWinner,
		})
	}
	sort.Slice(doc.Players, func(i, j int) bool { return doc.Players[i].PlayerOrder < doc.Players[j].PlayerOrder })
	for _, t := range r.Throws {
		doc.Throws = append(doc.Throws, FromThrow(t))
	}
	for _, c := range r.Roster {
		doc.Roster = append(doc.Roster, RosterRow{AtThrow: c.AtThrow, PlayerOrder: c.PlayerOrder, Action: string(c.Action)})
	}
	doc.Digest = Digest(doc.Throws)
	return doc
}

func FromThrow(t darts.Throw) ThrowRow {
	return ThrowRow{
		TurnNumber:  t.Turn,
		ThrowInTurn: t.ThrowInTurn,
		PlayerOrder: t.PlayerOrder,
		PlayerName:  t.PlayerName,
		BaseScore:   t.Base,
		Multiplier:  t.Multiplier,
		ActualScore: t.Actual,
		ScoreBefore: t.ScoreBefore,
		ScoreAfter:  t.ScoreAfter,
		IsBust:      t.Bust,
		IsFinish:    t.Finish,
	}
}
