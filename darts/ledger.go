package darts

import (
	"fmt"
	"time"

	"darts-lite/dart"
)

// Throw is one recorded dart. Records are immutable once appended.
type Throw struct {
	Seq         int             `json:"seq"`
	Turn        int             `json:"turn_number"`
	ThrowInTurn int             `json:"throw_in_turn"`
	PlayerID    string          `json:"player_id"`
	PlayerName  string          `json:"player_name"`
	PlayerOrder int             `json:"player_order"`
	Base        int             `json:"base_score"`
	Multiplier  dart.Multiplier `json:"multiplier"`
	Actual      int             `json:"actual_score"`
	ScoreBefore int             `json:"score_before"`
	ScoreAfter  int             `json:"score_after"`
	Bust        bool            `json:"is_bust"`
	Finish      bool            `json:"is_finish"`
	At          time.Time       `json:"thrown_at"`
}

func (t Throw) Segment() dart.Segment { return dart.New(t.Base, t.Multiplier) }

// Ledger is the append-only throw record of one game, ordered by
// (turn, throw in turn).
type Ledger struct {
	throws []Throw
}

// Append stamps the next sequence number on t and stores it.
func (l *Ledger) Append(t Throw) (Throw, error) {
	if n := len(l.throws); n > 0 {
		last := l.throws[n-1]
		if t.Turn < last.Turn || (t.Turn == last.Turn && t.ThrowInTurn <= last.ThrowInTurn) {
			return Throw{}, fmt.Errorf("%w: (%d,%d) after (%d,%d)", ErrLedgerOrder,
				t.Turn, t.ThrowInTurn, last.Turn, last.ThrowInTurn)
		}
	}
	t.Seq = len(l.throws) + 1
	l.throws = append(l.throws, t)
	return t, nil
}

func (l *Ledger) Len() int { return len(l.throws) }

func (l *Ledger) Last() (Throw, bool) {
	if len(l.throws) == 0 {
		return Throw{}, false
	}
	return l.throws[len(l.throws)-1], true
}

// Throws returns a copy of the ledger.
func (l *Ledger) Throws() []Throw {
	out := make([]Throw, len(l.throws))
	copy(out, l.throws)
	return out
}
