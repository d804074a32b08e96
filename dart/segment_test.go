package dart

import (
	"errors"
	"testing"
)

func TestSegmentValidate(t *testing.T) {
	valid := []Segment{New(0, Single), New(1, Triple), New(20, Double), New(Bull, Single), New(Bull, Double)}
	for _, s := range valid {
		if err := s.Validate(); err != nil {
			t.Fatalf("%v should be valid: %v", s, err)
		}
	}

	invalid := []Segment{New(-1, Single), New(21, Single), New(24, Double), New(Bull, Triple), New(0, Double), New(5, Multiplier(4))}
	for _, s := range invalid {
		if err := s.Validate(); !errors.Is(err, ErrInvalidSegment) {
			t.Fatalf("%+v should be invalid, got %v", s, err)
		}
	}
}

func TestSegmentScoreAndString(t *testing.T) {
	cases := []struct {
		seg   Segment
		score int
		str   string
	}{
		{New(20, Triple), 60, "T20"},
		{New(16, Double), 32, "D16"},
		{New(7, Single), 7, "7"},
		{New(Bull, Double), 50, "Bull"},
		{New(Bull, Single), 25, "25"},
		{Miss, 0, "Miss"},
	}
	for _, c := range cases {
		if got := c.seg.Score(); got != c.score {
			t.Fatalf("%v score: expected %d, got %d", c.seg, c.score, got)
		}
		if got := c.seg.String(); got != c.str {
			t.Fatalf("expected %q, got %q", c.str, got)
		}
		back, err := ParseSegment(c.str)
		if err != nil {
			t.Fatalf("parse %q: %v", c.str, err)
		}
		if back != c.seg {
			t.Fatalf("parse %q: expected %+v, got %+v", c.str, c.seg, back)
		}
	}
}

func TestParseThrowDartboardAliases(t *testing.T) {
	seg, err := ParseThrow(0, "DBLBULL")
	if err != nil || seg != New(Bull, Double) {
		t.Fatalf("DBLBULL: got %+v err=%v", seg, err)
	}
	seg, err = ParseThrow(25, "bull")
	if err != nil || seg != New(Bull, Single) {
		t.Fatalf("BULL: got %+v err=%v", seg, err)
	}
	if _, err := ParseThrow(25, "TRIPLE"); !errors.Is(err, ErrInvalidSegment) {
		t.Fatalf("triple bull should be rejected, got %v", err)
	}
	if _, err := ParseThrow(20, "QUAD"); !errors.Is(err, ErrInvalidSegment) {
		t.Fatalf("unknown multiplier should be rejected, got %v", err)
	}
}

func TestFromActual(t *testing.T) {
	seg, err := FromActual(60, Triple)
	if err != nil || seg != New(20, Triple) {
		t.Fatalf("60/T: got %+v err=%v", seg, err)
	}
	seg, err = FromActual(50, Double)
	if err != nil || seg != New(Bull, Double) {
		t.Fatalf("50/D: got %+v err=%v", seg, err)
	}
	if _, err := FromActual(61, Triple); !errors.Is(err, ErrInvalidSegment) {
		t.Fatalf("61/T should be rejected, got %v", err)
	}
	if _, err := FromActual(75, Triple); !errors.Is(err, ErrInvalidSegment) {
		t.Fatalf("75/T is a triple bull, got %v", err)
	}
}
