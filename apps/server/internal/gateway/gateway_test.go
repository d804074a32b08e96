package gateway

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"darts-lite/apps/server/internal/lobby"
)

type wireFrame struct {
	Event     string          `json:"event"`
	BoardID   string          `json:"board_id"`
	GameID    string          `json:"game_id"`
	ServerSeq uint64          `json:"server_seq"`
	Data      json.RawMessage `json:"data"`
}

func newServer(t *testing.T) (*httptest.Server, *lobby.Lobby) {
	t.Helper()
	lby := lobby.New(lobby.Options{})
	r := chi.NewRouter()
	New(lby, nil).Routes(r)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv, lby
}

func dial(t *testing.T, srv *httptest.Server, boardID string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/" + boardID
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readFrame(t *testing.T, conn *websocket.Conn) wireFrame {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var f wireFrame
	if err := json.Unmarshal(data, &f); err != nil {
		t.Fatalf("decode %s: %v", data, err)
	}
	return f
}

func send(t *testing.T, conn *websocket.Conn, msg string) {
	t.Helper()
	if err := conn.WriteMessage(websocket.TextMessage, []byte(msg)); err != nil {
		t.Fatalf("write: %v", err)
	}
}

func TestGateway_StartAndThrow(t *testing.T) {
	srv, _ := newServer(t)
	conn := dial(t, srv, "b1")

	send(t, conn, `{"type":"start_game","game":{"game_type":"301","players":["Ann","Bob"]}}`)
	for i, want := range []string{"game_started", "game_state"} {
		f := readFrame(t, conn)
		if f.Event != want || f.ServerSeq != uint64(i+1) || f.BoardID != "b1" {
			t.Fatalf("frame %d: unexpected %+v", i, f)
		}
	}

	send(t, conn, `{"type":"manual_score","score":20,"multiplier":"TRIPLE"}`)
	f := readFrame(t, conn)
	if f.Event != "throw_recorded" || f.ServerSeq != 3 {
		t.Fatalf("unexpected frame %+v", f)
	}
	var thr struct {
		ScoreAfter int `json:"score_after"`
	}
	if err := json.Unmarshal(f.Data, &thr); err != nil {
		t.Fatal(err)
	}
	if thr.ScoreAfter != 241 {
		t.Fatalf("expected 241 left, got %d", thr.ScoreAfter)
	}
	if f := readFrame(t, conn); f.Event != "game_state" {
		t.Fatalf("expected game_state, got %s", f.Event)
	}
}

func TestGateway_ErrorsGoToSenderOnly(t *testing.T) {
	srv, lby := newServer(t)
	if _, _, err := lby.StartGame(context.Background(), "b1", lobby.StartRequest{GameType: "501", Players: []string{"Ann"}}); err != nil {
		t.Fatal(err)
	}
	a := dial(t, srv, "b1")
	b := dial(t, srv, "b1")

	// both get the current state on join
	if f := readFrame(t, a); f.Event != "game_state" || f.ServerSeq != 0 {
		t.Fatalf("unexpected join frame %+v", f)
	}
	if f := readFrame(t, b); f.Event != "game_state" {
		t.Fatalf("unexpected join frame %+v", f)
	}

	send(t, a, `{"type":"manual_score","score":21,"multiplier":"SINGLE"}`)
	f := readFrame(t, a)
	if f.Event != "error" {
		t.Fatalf("expected error frame, got %+v", f)
	}
	var payload struct {
		Code string `json:"code"`
	}
	if err := json.Unmarshal(f.Data, &payload); err != nil {
		t.Fatal(err)
	}
	if payload.Code != "invalid_throw" {
		t.Fatalf("expected invalid_throw, got %q", payload.Code)
	}

	b.SetReadDeadline(time.Now().Add(200 * time.Millisecond))
	if _, data, err := b.ReadMessage(); err == nil {
		t.Fatalf("bystander received %s", data)
	}
}

func TestGateway_MalformedAndUnknownCommands(t *testing.T) {
	srv, _ := newServer(t)
	conn := dial(t, srv, "b1")

	send(t, conn, `not json`)
	if f := readFrame(t, conn); f.Event != "error" {
		t.Fatalf("expected error, got %+v", f)
	}
	send(t, conn, `{"type":"pause"}`)
	f := readFrame(t, conn)
	if f.Event != "error" || !strings.Contains(string(f.Data), "no_session") {
		t.Fatalf("expected no_session error, got %+v %s", f, f.Data)
	}
}

func TestGateway_BoardRequired(t *testing.T) {
	lby := lobby.New(lobby.Options{})
	rec := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/ws", nil)
	New(lby, nil).HandleWebSocket(rec, req)
	if rec.Code != 400 {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}
