package dart

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Bull is the face value of the bullseye ring. A Double Bull is the inner bull (50).
const Bull = 25

var ErrInvalidSegment = errors.New("invalid segment")

// Multiplier 1:SINGLE 2:DOUBLE 3:TRIPLE
type Multiplier byte

const (
	Single Multiplier = 1
	Double Multiplier = 2
	Triple Multiplier = 3
)

var MultiplierDictionary = map[Multiplier]string{
	Single: "SINGLE",
	Double: "DOUBLE",
	Triple: "TRIPLE",
}

func (m Multiplier) String() string {
	if s, ok := MultiplierDictionary[m]; ok {
		return s
	}
	return fmt.Sprintf("Multiplier(%d)", byte(m))
}

// Factor returns the score factor, 0 for an unknown multiplier.
func (m Multiplier) Factor() int {
	switch m {
	case Single, Double, Triple:
		return int(m)
	}
	return 0
}

func (m Multiplier) MarshalText() ([]byte, error) {
	if _, ok := MultiplierDictionary[m]; !ok {
		return nil, fmt.Errorf("%w: multiplier %d", ErrInvalidSegment, byte(m))
	}
	return []byte(m.String()), nil
}

func (m *Multiplier) UnmarshalText(b []byte) error {
	v, err := ParseMultiplier(string(b))
	if err != nil {
		return err
	}
	*m = v
	return nil
}

// ParseMultiplier accepts SINGLE/DOUBLE/TRIPLE, S/D/T and 1/2/3. Empty means SINGLE.
func ParseMultiplier(s string) (Multiplier, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "", "SINGLE", "S", "1":
		return Single, nil
	case "DOUBLE", "D", "2":
		return Double, nil
	case "TRIPLE", "T", "3":
		return Triple, nil
	}
	return 0, fmt.Errorf("%w: multiplier %q", ErrInvalidSegment, s)
}

// Segment is one dart: a face value and the ring it landed in.
type Segment struct {
	Base       int        `json:"base"`
	Multiplier Multiplier `json:"multiplier"`
}

func New(base int, m Multiplier) Segment { return Segment{Base: base, Multiplier: m} }

var Miss = Segment{Base: 0, Multiplier: Single}

func (s Segment) Validate() error {
	if s.Multiplier.Factor() == 0 {
		return fmt.Errorf("%w: multiplier %d", ErrInvalidSegment, byte(s.Multiplier))
	}
	switch {
	case s.Base < 0:
		return fmt.Errorf("%w: negative value %d", ErrInvalidSegment, s.Base)
	case s.Base == 0:
		if s.Multiplier != Single {
			return fmt.Errorf("%w: a miss cannot be %s", ErrInvalidSegment, s.Multiplier)
		}
	case s.Base == Bull:
		if s.Multiplier == Triple {
			return fmt.Errorf("%w: there is no triple bull", ErrInvalidSegment)
		}
	case s.Base > 20:
		return fmt.Errorf("%w: value %d is not on the board", ErrInvalidSegment, s.Base)
	}
	return nil
}

// Score is the actual score of the dart.
func (s Segment) Score() int { return s.Base * s.Multiplier.Factor() }

func (s Segment) IsDouble() bool { return s.Multiplier == Double }

func (s Segment) String() string {
	switch {
	case s.Base == 0:
		return "Miss"
	case s.Base == Bull && s.Multiplier == Double:
		return "Bull"
	case s.Multiplier == Double:
		return "D" + strconv.Itoa(s.Base)
	case s.Multiplier == Triple:
		return "T" + strconv.Itoa(s.Base)
	}
	return strconv.Itoa(s.Base)
}

// ParseSegment parses the notation produced by String ("T20", "D16", "20", "Bull", "25", "Miss").
func ParseSegment(str string) (Segment, error) {
	s := strings.ToUpper(strings.TrimSpace(str))
	switch s {
	case "":
		return Segment{}, fmt.Errorf("%w: empty segment", ErrInvalidSegment)
	case "MISS", "0":
		return Miss, nil
	case "BULL", "DBLBULL", "DB", "D25":
		return New(Bull, Double), nil
	case "SB", "OUTER", "S25":
		return New(Bull, Single), nil
	}

	m := Single
	switch s[0] {
	case 'S':
		s = s[1:]
	case 'D':
		m, s = Double, s[1:]
	case 'T':
		m, s = Triple, s[1:]
	}
	base, err := strconv.Atoi(s)
	if err != nil {
		return Segment{}, fmt.Errorf("%w: %q", ErrInvalidSegment, str)
	}
	seg := New(base, m)
	if err := seg.Validate(); err != nil {
		return Segment{}, err
	}
	return seg, nil
}

// ParseThrow builds a segment from a dartboard payload. The dartboard reports
// the outer and inner bull as the multipliers BULL and DBLBULL.
func ParseThrow(score int, multiplier string) (Segment, error) {
	switch strings.ToUpper(strings.TrimSpace(multiplier)) {
	case "BULL":
		return New(Bull, Single), nil
	case "DBLBULL":
		return New(Bull, Double), nil
	}
	m, err := ParseMultiplier(multiplier)
	if err != nil {
		return Segment{}, err
	}
	seg := New(score, m)
	if err := seg.Validate(); err != nil {
		return Segment{}, err
	}
	return seg, nil
}

// FromActual converts a dartboard that reports actual scores (60 for T20) back
// to the face value.
func FromActual(actual int, m Multiplier) (Segment, error) {
	f := m.Factor()
	if f == 0 {
		return Segment{}, fmt.Errorf("%w: multiplier %d", ErrInvalidSegment, byte(m))
	}
	if actual < 0 || actual%f != 0 {
		return Segment{}, fmt.Errorf("%w: actual score %d is not a %s", ErrInvalidSegment, actual, m)
	}
	seg := New(actual/f, m)
	if err := seg.Validate(); err != nil {
		return Segment{}, err
	}
	return seg, nil
}
