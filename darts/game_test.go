package darts

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"darts-lite/dart"
)

func TestNewGame_Validation(t *testing.T) {
	if _, _, err := NewGame(Config{Variant: VariantX01, StartScore: 501}, nil); !errors.Is(err, ErrEmptyRoster) {
		t.Fatalf("expected ErrEmptyRoster, got %v", err)
	}
	if _, _, err := NewGame(Config{Variant: VariantX01}, []string{"A"}); !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("expected ErrInvalidConfig for missing start score, got %v", err)
	}
	if _, _, err := NewGame(Config{}, []string{"A"}); !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("expected ErrInvalidConfig for missing variant, got %v", err)
	}

	g, up, err := NewGame(Config{Variant: VariantX01, StartScore: 501}, []string{"A", " ", "C"})
	if err != nil {
		t.Fatalf("NewGame err: %v", err)
	}
	if up.Events[0].Type != EventGameStarted || up.Events[1].Type != EventGameState {
		t.Fatalf("unexpected start events: %+v", up.Events)
	}
	want := []Player{{ID: "p1", Name: "A", Order: 1}, {ID: "p2", Name: "Player 2", Order: 2}, {ID: "p3", Name: "C", Order: 3}}
	if diff := cmp.Diff(want, g.Players()); diff != "" {
		t.Fatalf("players mismatch (-want +got):\n%s", diff)
	}
	s := up.Snapshot
	if !s.IsStarted || s.IsPaused || s.CurrentPlayer != 0 || s.TurnNumber != 1 || s.CurrentThrow != 1 || s.GameType != "501" {
		t.Fatalf("unexpected initial snapshot: %+v", s)
	}
}

func TestRecordThrow_InvalidThrowMutatesNothing(t *testing.T) {
	g := newX01(t, 301, false, "A", "B")
	mustThrow(t, g, dart.New(20, dart.Single))
	before := g.Snapshot()

	for _, seg := range []dart.Segment{
		dart.New(dart.Bull, dart.Triple), dart.New(21, dart.Single), dart.New(-3, dart.Single), dart.New(0, dart.Double),
	} {
		if _, err := g.RecordThrow(seg); !errors.Is(err, ErrInvalidThrow) {
			t.Fatalf("%+v: expected ErrInvalidThrow, got %v", seg, err)
		}
	}
	if diff := cmp.Diff(before, g.Snapshot()); diff != "" {
		t.Fatalf("snapshot changed (-before +after):\n%s", diff)
	}
	if n := len(g.Throws()); n != 1 {
		t.Fatalf("expected 1 ledger entry, got %d", n)
	}
}

func TestRecordThrow_ThreeDartsRotate(t *testing.T) {
	g := newX01(t, 501, false, "A", "B")
	for i := 0; i < 3; i++ {
		mustThrow(t, g, dart.New(1, dart.Single))
	}
	s := g.Snapshot()
	if s.CurrentPlayer != 1 || s.TurnNumber != 2 || s.CurrentThrow != 1 {
		t.Fatalf("expected B turn 2 dart 1, got player=%d turn=%d throw=%d", s.CurrentPlayer, s.TurnNumber, s.CurrentThrow)
	}

	throws := g.Throws()
	for i := 1; i < len(throws); i++ {
		a, b := throws[i-1], throws[i]
		if b.Turn < a.Turn || (b.Turn == a.Turn && b.ThrowInTurn <= a.ThrowInTurn) || b.Seq != a.Seq+1 {
			t.Fatalf("ledger not monotonic: %+v then %+v", a, b)
		}
	}
}

func TestNextPlayer_Rotation(t *testing.T) {
	g := newX01(t, 501, false, "A", "B", "C")
	for n := 1; n <= 7; n++ {
		up, err := g.NextPlayer()
		if err != nil {
			t.Fatalf("NextPlayer err: %v", err)
		}
		if up.Snapshot.CurrentPlayer != n%3 || up.Snapshot.TurnNumber != n+1 {
			t.Fatalf("n=%d: expected player %d turn %d, got %d %d", n, n%3, n+1, up.Snapshot.CurrentPlayer, up.Snapshot.TurnNumber)
		}
	}
}

func TestPauseBlocksThrows(t *testing.T) {
	g := newX01(t, 501, false, "A")
	if _, err := g.Pause(); err != nil {
		t.Fatalf("Pause err: %v", err)
	}
	if _, err := g.RecordThrow(dart.New(20, dart.Single)); !errors.Is(err, ErrGamePaused) {
		t.Fatalf("expected ErrGamePaused, got %v", err)
	}
	if _, err := g.NextPlayer(); !errors.Is(err, ErrGamePaused) {
		t.Fatalf("expected ErrGamePaused for next while paused, got %v", err)
	}
	up, err := g.TogglePause()
	if err != nil || up.Snapshot.IsPaused {
		t.Fatalf("toggle should resume, paused=%v err=%v", up.Snapshot.IsPaused, err)
	}
	mustThrow(t, g, dart.New(20, dart.Single))
}

func TestEnd_NoWinnerAndTerminal(t *testing.T) {
	g := newX01(t, 501, false, "A", "B")
	up, err := g.End()
	if err != nil {
		t.Fatalf("End err: %v", err)
	}
	last := up.Events[len(up.Events)-1]
	payload, ok := last.Data.(GameEndPayload)
	if last.Type != EventGameEnd || !ok || payload.Winner != nil || payload.Reason != "ended" {
		t.Fatalf("unexpected end event: %+v", last)
	}
	if !up.Snapshot.IsFinished || up.Snapshot.Winner != nil {
		t.Fatalf("unexpected snapshot: %+v", up.Snapshot)
	}
	for name, op := range map[string]func() (Update, error){
		"end":    g.End,
		"next":   g.NextPlayer,
		"pause":  g.Pause,
		"remove": func() (Update, error) { return g.RemovePlayer("p1") },
		"add":    func() (Update, error) { return g.AddPlayer(PlayerRef{Name: "C"}) },
		"throw":  func() (Update, error) { return g.RecordThrow(dart.Miss) },
	} {
		if _, err := op(); !errors.Is(err, ErrGameNotActive) {
			t.Fatalf("%s after end: expected ErrGameNotActive, got %v", name, err)
		}
	}
	if r := g.Result(); r.FinishedAt == nil || r.Winner != nil {
		t.Fatalf("unexpected result: %+v", r)
	}
}

func TestSkipToPlayer(t *testing.T) {
	g := newX01(t, 501, false, "A", "B", "C")
	mustThrow(t, g, dart.New(20, dart.Single))

	up, err := g.SkipToPlayer("p3")
	if err != nil {
		t.Fatalf("SkipToPlayer err: %v", err)
	}
	if up.Snapshot.CurrentPlayer != 2 || up.Snapshot.CurrentThrow != 1 || up.Snapshot.TurnNumber != 2 {
		t.Fatalf("unexpected snapshot after skip: %+v", up.Snapshot)
	}
	if _, err := g.SkipToPlayer("nobody"); !errors.Is(err, ErrPlayerNotFound) {
		t.Fatalf("expected ErrPlayerNotFound, got %v", err)
	}
}

func TestRemovePlayer(t *testing.T) {
	g := newX01(t, 501, false, "A", "B", "C")
	if _, err := g.NextPlayer(); err != nil { // B at the board
		t.Fatal(err)
	}
	mustThrow(t, g, dart.New(20, dart.Single))

	up, err := g.RemovePlayer("p2")
	if err != nil {
		t.Fatalf("RemovePlayer err: %v", err)
	}
	s := up.Snapshot
	if len(s.Players) != 2 || s.Players[s.CurrentPlayer].Name != "C" {
		t.Fatalf("expected C to take over, got %+v", s)
	}
	if s.CurrentThrow != 1 || s.TurnNumber != 3 {
		t.Fatalf("expected a fresh turn 3, got turn=%d throw=%d", s.TurnNumber, s.CurrentThrow)
	}
	if up.Events[0].Type != EventPlayerRemoved {
		t.Fatalf("expected player_removed first, got %s", up.Events[0].Type)
	}

	if _, err := g.RemovePlayer("p2"); !errors.Is(err, ErrPlayerNotFound) {
		t.Fatalf("expected ErrPlayerNotFound, got %v", err)
	}
	if _, err := g.RemovePlayer("p1"); err != nil {
		t.Fatal(err)
	}
	if _, err := g.RemovePlayer("p3"); !errors.Is(err, ErrEmptyRoster) {
		t.Fatalf("expected ErrEmptyRoster, got %v", err)
	}
}

func TestAddPlayer(t *testing.T) {
	g := newX01(t, 501, false, "A", "B")
	if _, err := g.NextPlayer(); err != nil {
		t.Fatal(err)
	}
	up, err := g.AddPlayer(PlayerRef{Name: "C"})
	if err != nil {
		t.Fatalf("AddPlayer err: %v", err)
	}
	if up.Snapshot.CurrentPlayer != 1 || len(up.Snapshot.Players) != 3 || up.Snapshot.Players[2].Name != "C" {
		t.Fatalf("add must append without moving the turn: %+v", up.Snapshot)
	}
	if p, ok := up.Events[0].Data.(PlayerPayload); !ok || p.PlayerName != "C" {
		t.Fatalf("unexpected player_added payload: %+v", up.Events[0])
	}

	if _, err := g.AddPlayer(PlayerRef{ID: "p1"}); !errors.Is(err, ErrDuplicatePlayer) {
		t.Fatalf("expected ErrDuplicatePlayer, got %v", err)
	}
	if _, err := g.AddPlayer(PlayerRef{ID: "p9"}); !errors.Is(err, ErrPlayerNotFound) {
		t.Fatalf("expected ErrPlayerNotFound, got %v", err)
	}

	if _, err := g.RemovePlayer("p1"); err != nil {
		t.Fatal(err)
	}
	up, err = g.AddPlayer(PlayerRef{ID: "p1"})
	if err != nil {
		t.Fatalf("rejoin err: %v", err)
	}
	last := up.Snapshot.Players[len(up.Snapshot.Players)-1]
	if last.ID != "p1" || last.Name != "A" {
		t.Fatalf("expected A to rejoin at the end, got %+v", last)
	}
}

func TestManualAdvance(t *testing.T) {
	g, _, err := NewGame(Config{Variant: VariantX01, StartScore: 501, ManualAdvance: true}, []string{"A", "B"})
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 3; i++ {
		mustThrow(t, g, dart.New(20, dart.Single))
	}
	if g.State() != StatePaused {
		t.Fatalf("expected paused at turn end, got %v", g.State())
	}
	if _, err := g.RecordThrow(dart.Miss); !errors.Is(err, ErrGamePaused) {
		t.Fatalf("expected ErrGamePaused, got %v", err)
	}
	up, err := g.NextPlayer()
	if err != nil {
		t.Fatalf("NextPlayer err: %v", err)
	}
	if up.Snapshot.IsPaused || up.Snapshot.CurrentPlayer != 1 {
		t.Fatalf("expected B in progress, got %+v", up.Snapshot)
	}
}

func TestSnapshotJSONShape(t *testing.T) {
	x01 := newX01(t, 301, true, "A")
	raw, err := json.Marshal(x01.Snapshot())
	if err != nil {
		t.Fatal(err)
	}
	for _, key := range []string{`"players":[{"id":"p1","name":"A"}]`, `"current_player":0`, `"is_started":true`, `"is_paused":false`, `"game_type":"301"`, `"double_out":true`} {
		if !strings.Contains(string(raw), key) {
			t.Fatalf("x01 snapshot missing %s: %s", key, raw)
		}
	}
	if strings.Contains(string(raw), `"targets"`) {
		t.Fatalf("x01 snapshot must not carry targets: %s", raw)
	}

	cricket := newCricket(t, WinHighestScore, "A")
	raw, err = json.Marshal(cricket.Snapshot())
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(raw), `"targets":{"15":{"hits":0,"closed":false,"status":0}`) {
		t.Fatalf("cricket snapshot missing targets: %s", raw)
	}
}

func TestSnapshotAdvice(t *testing.T) {
	g, _, err := NewGame(Config{Variant: VariantX01, StartScore: 100, DoubleOut: true, ShowAdvice: true}, []string{"A"})
	if err != nil {
		t.Fatal(err)
	}
	s := g.Snapshot()
	if !s.ShowThrowoutAdvice || len(s.ThrowoutAdvice) == 0 || s.ThrowoutAdvice[0] != "T20, D20" {
		t.Fatalf("unexpected advice: %+v", s.ThrowoutAdvice)
	}
	up, err := g.SetShowAdvice(false)
	if err != nil {
		t.Fatal(err)
	}
	if up.Snapshot.ThrowoutAdvice != nil {
		t.Fatalf("advice should be hidden, got %v", up.Snapshot.ThrowoutAdvice)
	}
}

func TestCode(t *testing.T) {
	if got := Code(ErrRosterFull); got != "invalid_config" {
		t.Fatalf("expected invalid_config, got %s", got)
	}
	if got := Code(errors.New("boom")); got != "internal" {
		t.Fatalf("expected internal, got %s", got)
	}
	ev := ErrorEvent(ErrGamePaused, "")
	if p := ev.Data.(ErrorPayload); ev.Type != EventError || p.Code != "game_paused" {
		t.Fatalf("unexpected error event: %+v", ev)
	}
}
