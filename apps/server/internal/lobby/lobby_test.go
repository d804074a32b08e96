package lobby

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"darts-lite/apps/server/internal/codec"
	"darts-lite/apps/server/internal/table"
	"darts-lite/darts"
)

func startX01(t *testing.T, l *Lobby, boardID string) {
	t.Helper()
	_, up, err := l.StartGame(context.Background(), boardID, StartRequest{
		GameType: "301",
		Players:  []string{"Ann", "Bob"},
	})
	if err != nil {
		t.Fatalf("StartGame err: %v", err)
	}
	if up.Snapshot.GameType != "301" || len(up.Snapshot.Players) != 2 {
		t.Fatalf("unexpected start snapshot: %+v", up.Snapshot)
	}
}

func TestLobby_StartGameRefusesBusyBoard(t *testing.T) {
	l := New(Options{})
	startX01(t, l, "b1")

	_, _, err := l.StartGame(context.Background(), "b1", StartRequest{GameType: "501", Players: []string{"Cy"}})
	if !errors.Is(err, ErrSessionExists) {
		t.Fatalf("expected ErrSessionExists, got %v", err)
	}
	if Code(err) != "session_exists" {
		t.Fatalf("unexpected code %q", Code(err))
	}

	// other boards are independent
	startX01(t, l, "b2")
	if n := len(l.List()); n != 2 {
		t.Fatalf("expected 2 active games, got %d", n)
	}
}

func TestLobby_ConcurrentStartsOpenOneSession(t *testing.T) {
	l := New(Options{})
	const n = 16

	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _, err := l.StartGame(context.Background(), "b1", StartRequest{GameType: "501", Players: []string{"Ann"}})
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	started, refused := 0, 0
	for err := range errs {
		switch {
		case err == nil:
			started++
		case errors.Is(err, ErrSessionExists):
			refused++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if started != 1 || refused != n-1 {
		t.Fatalf("expected 1 start and %d refusals, got %d/%d", n-1, started, refused)
	}
	if got := len(l.List()); got != 1 {
		t.Fatalf("expected 1 active game, got %d", got)
	}
}

func TestErrorEvent_UsesLobbyCodes(t *testing.T) {
	ev := ErrorEvent(ErrNoSession)
	p, ok := ev.Data.(darts.ErrorPayload)
	if ev.Type != darts.EventError || !ok || p.Code != "no_session" {
		t.Fatalf("unexpected error event: %+v", ev)
	}
	if p := ErrorEvent(darts.ErrGamePaused).Data.(darts.ErrorPayload); p.Code != "game_paused" {
		t.Fatalf("expected engine code, got %q", p.Code)
	}
}

func TestLobby_StartGameValidatesRequest(t *testing.T) {
	l := New(Options{})
	cases := []StartRequest{
		{GameType: "darts", Players: []string{"Ann"}},
		{GameType: "cricket", Players: []string{"A", "B", "C", "D", "E"}},
		{GameType: "cricket", Players: []string{"A"}, CricketWin: "most_marks"},
		{GameType: "301"},
	}
	for _, req := range cases {
		if _, _, err := l.StartGame(context.Background(), "b1", req); err == nil {
			t.Fatalf("expected error for %+v", req)
		}
	}
	if l.Get("b1") != nil {
		t.Fatalf("failed starts must not occupy the board")
	}
}

func TestLobby_ExecuteDispatchesCommands(t *testing.T) {
	l := New(Options{})
	startX01(t, l, "b1")

	up, err := l.Execute(context.Background(), "b1", Command{Type: "manual_score", Score: 20, Multiplier: "TRIPLE"})
	if err != nil {
		t.Fatalf("throw err: %v", err)
	}
	if up.Throw == nil || up.Throw.ScoreAfter != 241 {
		t.Fatalf("unexpected throw: %+v", up.Throw)
	}

	up, err = l.Execute(context.Background(), "b1", Command{Type: "next_player"})
	if err != nil {
		t.Fatalf("next_player err: %v", err)
	}
	if up.Snapshot.CurrentPlayer != 1 {
		t.Fatalf("expected Bob to be up, got %d", up.Snapshot.CurrentPlayer)
	}

	if _, err := l.Execute(context.Background(), "b1", Command{Type: "juggle"}); !errors.Is(err, ErrUnknownCommand) {
		t.Fatalf("expected ErrUnknownCommand, got %v", err)
	}
	if _, err := l.Execute(context.Background(), "b1", Command{Type: "idle_timeout"}); !errors.Is(err, ErrUnknownCommand) {
		t.Fatalf("idle_timeout must not be accepted from clients, got %v", err)
	}
	if _, err := l.Execute(context.Background(), "nope", Command{Type: "pause"}); !errors.Is(err, ErrNoSession) {
		t.Fatalf("expected ErrNoSession, got %v", err)
	}
	if _, err := l.Execute(context.Background(), "b1", Command{Type: "remove_player", PlayerID: "ghost"}); !errors.Is(err, darts.ErrPlayerNotFound) {
		t.Fatalf("expected ErrPlayerNotFound, got %v", err)
	}
}

func TestLobby_EndGameFreesBoard(t *testing.T) {
	l := New(Options{})
	startX01(t, l, "b1")

	if _, err := l.Execute(context.Background(), "b1", Command{Type: "end_game"}); err != nil {
		t.Fatalf("end_game err: %v", err)
	}
	if l.Get("b1") != nil {
		t.Fatalf("ended board should be free")
	}
	startX01(t, l, "b1")

	// the retire hook of the first game must not evict the second
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if l.Get("b1") == nil {
			t.Fatalf("new game was evicted")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestLobby_HubReceivesFrames(t *testing.T) {
	l := New(Options{})
	hub := l.Hub("b1")
	ch := hub.Subscribe()
	defer hub.Unsubscribe(ch)

	startX01(t, l, "b1")
	if _, err := l.Execute(context.Background(), "b1", Command{Type: "manual_score", Score: 5, Multiplier: "SINGLE"}); err != nil {
		t.Fatalf("throw err: %v", err)
	}

	want := []darts.EventType{darts.EventGameStarted, darts.EventGameState, darts.EventThrowRecorded, darts.EventGameState}
	for i, typ := range want {
		select {
		case f := <-ch:
			if f.Event != typ || f.ServerSeq != uint64(i+1) {
				t.Fatalf("frame %d: expected %s/%d, got %s/%d", i, typ, i+1, f.Event, f.ServerSeq)
			}
		case <-time.After(time.Second):
			t.Fatalf("frame %d not delivered", i)
		}
	}
}

func TestLobby_ExtraEmittersSeeAllBoards(t *testing.T) {
	seen := make(chan string, 16)
	l := New(Options{Emitters: []table.Emitter{table.EmitterFunc(func(f codec.Frame) {
		if f.Event == darts.EventGameStarted {
			seen <- f.BoardID
		}
	})}})
	startX01(t, l, "b1")
	startX01(t, l, "b2")

	got := map[string]bool{<-seen: true, <-seen: true}
	if !got["b1"] || !got["b2"] {
		t.Fatalf("expected both boards, got %v", got)
	}
}

func TestLobby_ListDescribesSessions(t *testing.T) {
	l := New(Options{})
	startX01(t, l, "b2")
	startX01(t, l, "b1")

	games := l.List()
	if len(games) != 2 || games[0].BoardID != "b1" || games[1].BoardID != "b2" {
		t.Fatalf("unexpected listing: %+v", games)
	}
	if games[0].CurrentPlayer != "Ann" || games[0].GameType != "301" || games[0].GameID == "" {
		t.Fatalf("unexpected summary: %+v", games[0])
	}
}

func TestLobby_ShutdownEndsSessions(t *testing.T) {
	l := New(Options{})
	startX01(t, l, "b1")
	startX01(t, l, "b2")

	l.Shutdown(context.Background())
	if n := len(l.List()); n != 0 {
		t.Fatalf("expected no active games, got %d", n)
	}
}

func TestHub_DropsForLaggingSubscriber(t *testing.T) {
	h := newHub("b1")
	slow := h.Subscribe()
	defer h.Unsubscribe(slow)

	for i := 0; i < subscriberBuffer+10; i++ {
		h.Emit(codec.Frame{ServerSeq: uint64(i + 1)})
	}
	if n := len(slow); n != subscriberBuffer {
		t.Fatalf("expected %d buffered frames, got %d", subscriberBuffer, n)
	}

	h.Unsubscribe(slow)
	h.Unsubscribe(slow)
	if h.Len() != 0 {
		t.Fatalf("expected no subscribers")
	}
}
