package bus

import (
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"darts-lite/apps/server/internal/codec"
	"darts-lite/apps/server/internal/lobby"
	"darts-lite/darts"
)

type fakeExecutor struct {
	boards []string
	cmds   []lobby.Command
	err    error
}

func (f *fakeExecutor) Execute(_ context.Context, boardID string, cmd lobby.Command) (darts.Update, error) {
	f.boards = append(f.boards, boardID)
	f.cmds = append(f.cmds, cmd)
	if f.err != nil {
		return darts.Update{}, f.err
	}
	return darts.Update{Throw: &darts.Throw{Seq: len(f.cmds)}}, nil
}

func TestBoardFromSubject(t *testing.T) {
	cases := map[string]string{
		"darts.board.b1.throw":      "b1",
		"darts.board.kitchen.throw": "kitchen",
		"darts.board..throw":        "",
		"darts.board.b1.events":     "",
		"darts.board.a.b.throw":     "",
		"other.board.b1.throw":      "",
		"darts.boardroom.b1.throw":  "",
	}
	for subject, want := range cases {
		got, err := BoardFromSubject("darts", subject)
		if want == "" {
			if !errors.Is(err, ErrBadSubject) {
				t.Fatalf("%s: expected ErrBadSubject, got %q %v", subject, got, err)
			}
			continue
		}
		if err != nil || got != want {
			t.Fatalf("%s: expected %q, got %q %v", subject, want, got, err)
		}
	}
	if s := EventsSubject("darts", "b1"); s != "darts.board.b1.events" {
		t.Fatalf("unexpected events subject %q", s)
	}
}

func TestDecodeThrow(t *testing.T) {
	cmd, err := DecodeThrow([]byte(`{"score":20,"multiplier":"TRIPLE","user":"Player 1"}`))
	if err != nil {
		t.Fatal(err)
	}
	want := lobby.Command{Type: "manual_score", Score: 20, Multiplier: "TRIPLE"}
	if diff := cmp.Diff(want, cmd); diff != "" {
		t.Fatalf("command (-want +got):\n%s", diff)
	}
	if _, err := DecodeThrow([]byte(`{"score":`)); !errors.Is(err, darts.ErrInvalidThrow) {
		t.Fatalf("expected ErrInvalidThrow, got %v", err)
	}
}

func TestBus_IngestRoutesToBoard(t *testing.T) {
	exec := &fakeExecutor{}
	b := New(nil, "darts.", exec, nil)

	res := b.ingest("darts.board.b7.throw", []byte(`{"score":25,"multiplier":"BULL"}`))
	if !res.OK || res.Seq != 1 {
		t.Fatalf("unexpected reply %+v", res)
	}
	if exec.boards[0] != "b7" || exec.cmds[0].Multiplier != "BULL" {
		t.Fatalf("unexpected dispatch %v %+v", exec.boards, exec.cmds)
	}

	res = b.ingest("darts.board.b7.nope", []byte(`{}`))
	if res.OK || res.Code != "bad_subject" {
		t.Fatalf("unexpected reply %+v", res)
	}
	if len(exec.cmds) != 1 {
		t.Fatalf("bad subject must not dispatch")
	}
}

func TestBus_IngestReportsEngineErrors(t *testing.T) {
	exec := &fakeExecutor{err: darts.ErrGamePaused}
	b := New(nil, "", exec, nil)

	res := b.ingest("darts.board.b1.throw", []byte(`{"score":1,"multiplier":"SINGLE"}`))
	if res.OK || res.Code != "game_paused" {
		t.Fatalf("unexpected reply %+v", res)
	}
}

func TestBus_EmitWithoutConnection(t *testing.T) {
	var b *Bus
	b.Emit(codecFrame())
	New(nil, "darts", &fakeExecutor{}, nil).Emit(codecFrame())
}

func codecFrame() codec.Frame {
	return codec.WrapEvent("b1", "g1", 1, darts.Event{Type: darts.EventGameState})
}
