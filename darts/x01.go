package darts

import (
	"fmt"

	"darts-lite/dart"
)

type X01State struct {
	Remaining int
}

func (s *X01State) Variant() VariantKind { return VariantX01 }
func (s *X01State) Score() int           { return s.Remaining }
func (s *X01State) clone() PlayerState   { c := *s; return &c }

// X01 counts down from StartScore to exactly zero.
type X01 struct {
	StartScore int
	DoubleOut  bool
}

func (r X01) Kind() VariantKind { return VariantX01 }

func (r X01) NewPlayerState([]PlayerState) PlayerState {
	return &X01State{Remaining: r.StartScore}
}

func (r X01) Reconcile(states []PlayerState) []PlayerState { return cloneStates(states) }

func (r X01) Apply(states []PlayerState, current int, seg dart.Segment) (Outcome, error) {
	if current < 0 || current >= len(states) {
		return Outcome{}, ErrInvalidState(fmt.Sprintf("current index %d out of range", current))
	}
	st, ok := states[current].(*X01State)
	if !ok {
		return Outcome{}, ErrInvalidState("x01 rules applied to a non-x01 player state")
	}

	before := st.Remaining
	bust, finish := r.judge(before, seg)

	out := Outcome{
		States:      cloneStates(states),
		Bust:        bust,
		Finish:      finish,
		ScoreBefore: before,
		ScoreAfter:  before,
	}
	if !bust {
		out.ScoreAfter = before - seg.Score()
		out.States[current].(*X01State).Remaining = out.ScoreAfter
	}
	return out, nil
}

// judge decides bust and finish for one dart thrown at remaining.
func (r X01) judge(remaining int, seg dart.Segment) (bust, finish bool) {
	if r.DoubleOut && remaining == 1 {
		// no double finishes 1; the leg is dead whatever lands
		return true, false
	}
	left := remaining - seg.Score()
	switch {
	case left < 0:
		return true, false
	case left == 1 && r.DoubleOut:
		return true, false
	case left == 0 && r.DoubleOut && !seg.IsDouble():
		return true, false
	case left == 0:
		return false, true
	}
	return false, false
}
