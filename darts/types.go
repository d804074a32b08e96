package darts

import (
	"fmt"
	"strconv"
	"strings"
)

// ThrowsPerTurn is the number of darts in one visit to the board.
const ThrowsPerTurn = 3

// State 会话状态. NotStarted is the absence of a session and has no value here.
type State byte

const (
	StateInProgress State = 1
	StatePaused     State = 2
	StateFinished   State = 3
)

var StateDictionary = map[State]string{
	StateInProgress: "in_progress",
	StatePaused:     "paused",
	StateFinished:   "finished",
}

func (s State) String() string {
	if v, ok := StateDictionary[s]; ok {
		return v
	}
	return "unknown"
}

// VariantKind is the closed set of supported games.
type VariantKind byte

const (
	VariantX01     VariantKind = 1
	VariantCricket VariantKind = 2
)

var VariantKindDictionary = map[VariantKind]string{
	VariantX01:     "x01",
	VariantCricket: "cricket",
}

func (v VariantKind) String() string {
	if s, ok := VariantKindDictionary[v]; ok {
		return s
	}
	return "unknown"
}

// ParseGameType maps a game_type string ("301", "501", "x01:701", "cricket")
// to a variant and, for X01, its start score.
func ParseGameType(s string) (VariantKind, int, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "cricket" {
		return VariantCricket, 0, nil
	}
	s = strings.TrimPrefix(s, "x01:")
	if s == "x01" {
		return VariantX01, 501, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 2 {
		return 0, 0, fmt.Errorf("%w: unknown game type %q", ErrInvalidConfig, s)
	}
	return VariantX01, n, nil
}

// Player is a participant. Order is the seat ordinal handed out on join and
// never reused inside a game, so ledgers stay attributable after removals.
type Player struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Order int    `json:"player_order"`
}

// PlayerRef names a player to add: an existing (previously removed) ID or a new Name.
type PlayerRef struct {
	ID   string `json:"player_id,omitempty"`
	Name string `json:"name,omitempty"`
}
