package darts

import (
	"fmt"

	"darts-lite/dart"
)

// PlayerState is the per-player scoring state of one variant. The concrete
// types are *X01State and *CricketState.
type PlayerState interface {
	Variant() VariantKind
	// Score is the remaining score for X01 and the points total for Cricket.
	Score() int
	clone() PlayerState
}

// Outcome is the result of applying one dart. States holds a fresh copy of
// every player's state in turn order; the inputs are never mutated.
type Outcome struct {
	States      []PlayerState
	Bust        bool
	Finish      bool
	ScoreBefore int
	ScoreAfter  int
}

// Rules is the scoring contract of one variant. It is chosen when the session
// starts and never changes afterwards.
type Rules interface {
	Kind() VariantKind
	NewPlayerState(existing []PlayerState) PlayerState
	Apply(states []PlayerState, current int, seg dart.Segment) (Outcome, error)
	// Reconcile re-derives shared state after the roster changed.
	Reconcile(states []PlayerState) []PlayerState
}

// NewRules returns the rules for a validated config.
func NewRules(cfg Config) (Rules, error) {
	switch cfg.Variant {
	case VariantX01:
		return X01{StartScore: cfg.StartScore, DoubleOut: cfg.DoubleOut}, nil
	case VariantCricket:
		return Cricket{Win: cfg.CricketWin}, nil
	}
	return nil, fmt.Errorf("%w: unknown variant %d", ErrInvalidConfig, cfg.Variant)
}

func cloneStates(states []PlayerState) []PlayerState {
	out := make([]PlayerState, len(states))
	for i, s := range states {
		out[i] = s.clone()
	}
	return out
}
