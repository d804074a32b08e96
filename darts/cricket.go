package darts

import (
	"fmt"
	"strconv"

	"darts-lite/dart"
)

// CricketTargets are the scoring numbers, bull last.
var CricketTargets = [7]int{15, 16, 17, 18, 19, 20, dart.Bull}

const marksToClose = 3

func cricketTargetIndex(base int) (int, bool) {
	for i, t := range CricketTargets {
		if t == base {
			return i, true
		}
	}
	return -1, false
}

// TargetStatus 0:open 1:closed by this player 2:closed for everyone
type TargetStatus byte

const (
	TargetOpen         TargetStatus = 0
	TargetClosed       TargetStatus = 1
	TargetClosedForAll TargetStatus = 2
)

type CricketState struct {
	Points int
	// Marks counts every mark ever landed; it never decreases.
	Marks [7]int
	// Dead is set once every player has closed the target and is never cleared.
	Dead [7]bool
}

func (s *CricketState) Variant() VariantKind { return VariantCricket }
func (s *CricketState) Score() int           { return s.Points }
func (s *CricketState) clone() PlayerState   { c := *s; return &c }

func (s *CricketState) Closed(i int) bool { return s.Marks[i] >= marksToClose }

func (s *CricketState) AllClosed() bool {
	for i := range CricketTargets {
		if !s.Closed(i) {
			return false
		}
	}
	return true
}

func (s *CricketState) Status(i int) TargetStatus {
	switch {
	case s.Dead[i]:
		return TargetClosedForAll
	case s.Closed(i):
		return TargetClosed
	}
	return TargetOpen
}

// CricketWinPolicy is the comparison a player who has closed every target must
// pass to win.
type CricketWinPolicy byte

const (
	// WinHighestScore: points >= every other player's points.
	WinHighestScore CricketWinPolicy = 0
	// WinHighestAmongClosed: points >= the points of every other player who
	// has also closed all targets.
	WinHighestAmongClosed CricketWinPolicy = 1
)

var CricketWinPolicyDictionary = map[CricketWinPolicy]string{
	WinHighestScore:       "highest_score",
	WinHighestAmongClosed: "highest_among_closed",
}

func ParseCricketWinPolicy(s string) (CricketWinPolicy, error) {
	if s == "" {
		return WinHighestScore, nil
	}
	for p, name := range CricketWinPolicyDictionary {
		if name == s {
			return p, nil
		}
	}
	return 0, fmt.Errorf("%w: unknown cricket win policy %q", ErrInvalidConfig, s)
}

// Wins reports whether the player at idx satisfies the policy.
func (p CricketWinPolicy) Wins(states []*CricketState, idx int) bool {
	me := states[idx]
	if !me.AllClosed() {
		return false
	}
	for i, other := range states {
		if i == idx {
			continue
		}
		if p == WinHighestAmongClosed && !other.AllClosed() {
			continue
		}
		if other.Points > me.Points {
			return false
		}
	}
	return true
}

type Cricket struct {
	Win CricketWinPolicy
}

func (r Cricket) Kind() VariantKind { return VariantCricket }

func (r Cricket) NewPlayerState(existing []PlayerState) PlayerState {
	st := &CricketState{}
	for _, other := range existing {
		if cs, ok := other.(*CricketState); ok {
			st.Dead = cs.Dead
			break
		}
	}
	return st
}

func (r Cricket) Reconcile(states []PlayerState) []PlayerState {
	out := cloneStates(states)
	cs, err := cricketStates(out)
	if err != nil || len(cs) == 0 {
		return out
	}
	for i := range CricketTargets {
		if closedByAll(cs, i) {
			killTarget(cs, i)
		}
	}
	return out
}

func (r Cricket) Apply(states []PlayerState, current int, seg dart.Segment) (Outcome, error) {
	if current < 0 || current >= len(states) {
		return Outcome{}, ErrInvalidState(fmt.Sprintf("current index %d out of range", current))
	}
	out := Outcome{States: cloneStates(states)}
	cs, err := cricketStates(out.States)
	if err != nil {
		return Outcome{}, err
	}
	me := cs[current]
	out.ScoreBefore = me.Points

	if i, ok := cricketTargetIndex(seg.Base); ok {
		face := CricketTargets[i]
		for m := 0; m < seg.Multiplier.Factor(); m++ {
			if me.Closed(i) && !me.Dead[i] {
				me.Points += face
			}
			me.Marks[i]++
			if !me.Dead[i] && me.Marks[i] == marksToClose && closedByAll(cs, i) {
				killTarget(cs, i)
			}
		}
	}

	out.ScoreAfter = me.Points
	out.Finish = r.Win.Wins(cs, current)
	return out, nil
}

func cricketStates(states []PlayerState) ([]*CricketState, error) {
	cs := make([]*CricketState, len(states))
	for i, s := range states {
		c, ok := s.(*CricketState)
		if !ok {
			return nil, ErrInvalidState("cricket rules applied to a non-cricket player state")
		}
		cs[i] = c
	}
	return cs, nil
}

func closedByAll(cs []*CricketState, i int) bool {
	for _, s := range cs {
		if !s.Closed(i) {
			return false
		}
	}
	return true
}

func killTarget(cs []*CricketState, i int) {
	for _, s := range cs {
		s.Dead[i] = true
	}
}

func targetKey(i int) string { return strconv.Itoa(CricketTargets[i]) }
