package darts

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"darts-lite/dart"
)

func TestComputeStats_X01(t *testing.T) {
	g := newX01(t, 101, true, "A", "B")
	for _, seg := range []dart.Segment{
		dart.New(20, dart.Triple), dart.New(1, dart.Single), dart.New(20, dart.Single), // A 20 left
		dart.New(5, dart.Single), dart.New(5, dart.Single), dart.New(5, dart.Single), // B 86
		dart.New(20, dart.Triple),                                                    // A bust
		dart.New(1, dart.Single), dart.New(1, dart.Single), dart.New(1, dart.Single), // B 83
		dart.New(10, dart.Double), // A finishes from 20
	} {
		mustThrow(t, g, seg)
	}

	got := ComputeStats(VariantX01, g.Throws())
	want := []PlayerStats{
		{PlayerID: "p1", PlayerName: "A", Darts: 5, Points: 101, Busts: 1, Average: 60.6, HighestTurn: 81, Checkout: 20},
		{PlayerID: "p2", PlayerName: "B", Darts: 6, Points: 18, Average: 9, HighestTurn: 15},
	}
	if diff := cmp.Diff(want, got, cmpopts.EquateApprox(0, 1e-9)); diff != "" {
		t.Fatalf("stats mismatch (-want +got):\n%s", diff)
	}
}

func TestComputeStats_CricketPoints(t *testing.T) {
	g := newCricket(t, WinHighestScore, "A", "B")
	mustThrow(t, g, dart.New(20, dart.Triple))
	mustThrow(t, g, dart.New(20, dart.Triple))

	got := ComputeStats(VariantCricket, g.Throws())
	if len(got) != 1 || got[0].Points != 60 || got[0].Darts != 2 {
		t.Fatalf("unexpected cricket stats: %+v", got)
	}
}
