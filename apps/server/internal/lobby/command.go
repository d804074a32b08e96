package lobby

import (
	"errors"
	"fmt"
	"strings"

	"darts-lite/apps/server/internal/table"
	"darts-lite/darts"
)

var (
	ErrSessionExists  = errors.New("board already has an active game")
	ErrNoSession      = errors.New("no active game on board")
	ErrUnknownCommand = errors.New("unknown command")
)

// StartRequest opens a game on a board.
type StartRequest struct {
	// GameType is "301", "501", "x01:701" or "cricket".
	GameType      string   `json:"game_type"`
	Players       []string `json:"players"`
	DoubleOut     bool     `json:"double_out"`
	CricketWin    string   `json:"cricket_win,omitempty"`
	ManualAdvance bool     `json:"manual_advance,omitempty"`
	ShowAdvice    bool     `json:"show_throwout_advice,omitempty"`
}

func (r StartRequest) config() (darts.Config, error) {
	variant, start, err := darts.ParseGameType(r.GameType)
	if err != nil {
		return darts.Config{}, err
	}
	cfg := darts.Config{
		Variant:       variant,
		StartScore:    start,
		DoubleOut:     r.DoubleOut,
		ManualAdvance: r.ManualAdvance,
		ShowAdvice:    r.ShowAdvice,
	}
	if variant == darts.VariantCricket {
		if cfg.CricketWin, err = darts.ParseCricketWinPolicy(strings.TrimSpace(r.CricketWin)); err != nil {
			return darts.Config{}, err
		}
	}
	return cfg, nil
}

// Command is a session command as every transport receives it.
type Command struct {
	Type       string `json:"type"`
	Score      int    `json:"score,omitempty"`
	Multiplier string `json:"multiplier,omitempty"`
	PlayerID   string `json:"player_id,omitempty"`
	PlayerName string `json:"player_name,omitempty"`
	Show       bool   `json:"show,omitempty"`
}

func (c Command) event() (table.Event, error) {
	et, ok := table.ParseEventType(c.Type)
	if !ok {
		return table.Event{}, fmt.Errorf("%w: %q", ErrUnknownCommand, c.Type)
	}
	return table.Event{
		Type:       et,
		Score:      c.Score,
		Multiplier: c.Multiplier,
		PlayerID:   strings.TrimSpace(c.PlayerID),
		PlayerName: strings.TrimSpace(c.PlayerName),
		Show:       c.Show,
	}, nil
}

// Code extends darts.Code with the registry's own failures.
func Code(err error) string {
	switch {
	case errors.Is(err, ErrSessionExists):
		return "session_exists"
	case errors.Is(err, ErrNoSession):
		return "no_session"
	case errors.Is(err, ErrUnknownCommand):
		return "unknown_command"
	}
	return darts.Code(err)
}

// ErrorEvent is the error event sent back to the client whose command failed.
func ErrorEvent(err error) darts.Event {
	return darts.ErrorEvent(err, Code(err))
}
