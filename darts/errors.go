package darts

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidConfig  = errors.New("invalid config")
	ErrInvalidThrow   = errors.New("invalid throw")
	ErrPlayerNotFound = errors.New("player not found")
	ErrGameNotActive  = errors.New("game not active")
	ErrGamePaused     = errors.New("game paused")
	ErrEmptyRoster    = errors.New("empty roster")

	ErrRosterFull      = fmt.Errorf("%w: roster full", ErrInvalidConfig)
	ErrDuplicatePlayer = fmt.Errorf("%w: player already in game", ErrInvalidConfig)
	ErrLedgerOrder     = errors.New("ledger order violated")
)

type InvalidStateError string

func (e InvalidStateError) Error() string { return "invalid state: " + string(e) }

func ErrInvalidState(msg string) error { return InvalidStateError(msg) }

// Code maps an engine error to the stable code transports report to clients.
func Code(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrInvalidConfig):
		return "invalid_config"
	case errors.Is(err, ErrInvalidThrow):
		return "invalid_throw"
	case errors.Is(err, ErrPlayerNotFound):
		return "player_not_found"
	case errors.Is(err, ErrGameNotActive):
		return "game_not_active"
	case errors.Is(err, ErrGamePaused):
		return "game_paused"
	case errors.Is(err, ErrEmptyRoster):
		return "empty_roster"
	}
	return "internal"
}
