package darts

import (
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"
)

// CricketMaxPlayers is the roster cap for Cricket sessions.
const CricketMaxPlayers = 4

type Config struct {
	// ID is copied into snapshots and results; the engine does not interpret it.
	ID string

	Variant    VariantKind
	StartScore int // X01 only
	DoubleOut  bool

	CricketWin CricketWinPolicy

	// MaxPlayers caps the roster (0 => CricketMaxPlayers for Cricket, unlimited for X01)
	MaxPlayers int

	// ManualAdvance pauses the session at the end of a turn until NextPlayer is called.
	ManualAdvance bool
	ShowAdvice    bool

	Clock  func() time.Time
	Logger *zap.Logger
}

func (c Config) validate() error {
	switch c.Variant {
	case VariantX01:
		if c.StartScore < 2 {
			return fmt.Errorf("%w: x01 start score must be >= 2, got %d", ErrInvalidConfig, c.StartScore)
		}
	case VariantCricket:
		if c.StartScore != 0 {
			return fmt.Errorf("%w: cricket takes no start score", ErrInvalidConfig)
		}
		if c.CricketWin != WinHighestScore && c.CricketWin != WinHighestAmongClosed {
			return fmt.Errorf("%w: unknown cricket win policy %d", ErrInvalidConfig, c.CricketWin)
		}
	default:
		return fmt.Errorf("%w: unknown variant %d", ErrInvalidConfig, c.Variant)
	}
	if c.MaxPlayers < 0 {
		return fmt.Errorf("%w: MaxPlayers must be >= 0", ErrInvalidConfig)
	}
	if c.Variant == VariantCricket && c.MaxPlayers > CricketMaxPlayers {
		return fmt.Errorf("%w: cricket allows at most %d players", ErrInvalidConfig, CricketMaxPlayers)
	}
	return nil
}

func (c Config) withDefaults() Config {
	if c.Variant == VariantCricket && c.MaxPlayers == 0 {
		c.MaxPlayers = CricketMaxPlayers
	}
	if c.Clock == nil {
		c.Clock = time.Now
	}
	if c.Logger == nil {
		c.Logger = zap.NewNop()
	}
	return c
}

// GameType is the game_type label of the snapshot ("301", "501", "cricket").
func (c Config) GameType() string {
	if c.Variant == VariantCricket {
		return "cricket"
	}
	return strconv.Itoa(c.StartScore)
}
