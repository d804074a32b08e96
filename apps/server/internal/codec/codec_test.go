package codec

import (
	"encoding/json"
	"testing"

	"darts-lite/darts"
)

func TestEnvelopeRoundTrip(t *testing.T) {
	f := WrapEvent("board-1", "g-1", 7, darts.Event{
		Type: darts.EventPlayerAdded,
		Data: darts.PlayerPayload{PlayerID: "p3", PlayerName: "Cid"},
	})

	raw, err := MarshalEnvelope(f)
	if err != nil {
		t.Fatalf("MarshalEnvelope err: %v", err)
	}
	s, err := UnmarshalEnvelope(raw)
	if err != nil {
		t.Fatalf("UnmarshalEnvelope err: %v", err)
	}
	if got := EventType(s); got != string(darts.EventPlayerAdded) {
		t.Fatalf("expected player_added, got %q", got)
	}
	if seq := s.GetFields()["server_seq"].GetNumberValue(); seq != 7 {
		t.Fatalf("expected seq 7, got %v", seq)
	}
	data := s.GetFields()["data"].GetStructValue().GetFields()
	if data["player_name"].GetStringValue() != "Cid" {
		t.Fatalf("payload lost: %v", data)
	}

	js, err := EnvelopeJSON(raw)
	if err != nil {
		t.Fatalf("EnvelopeJSON err: %v", err)
	}
	var m map[string]any
	if err := json.Unmarshal(js, &m); err != nil {
		t.Fatalf("envelope json invalid: %v", err)
	}
	if m["board_id"] != "board-1" {
		t.Fatalf("unexpected json: %s", js)
	}
}

func TestMarshalEnvelopeIsDeterministic(t *testing.T) {
	f := WrapEvent("b", "g", 1, darts.Event{Type: darts.EventGameEnd, Data: darts.GameEndPayload{Reason: "ended"}})
	a, err := MarshalEnvelope(f)
	if err != nil {
		t.Fatal(err)
	}
	b, err := MarshalEnvelope(f)
	if err != nil {
		t.Fatal(err)
	}
	if string(a) != string(b) {
		t.Fatalf("envelope bytes differ between runs")
	}
}

func TestUnmarshalEnvelopeRejectsGarbage(t *testing.T) {
	if _, err := UnmarshalEnvelope([]byte{0xff, 0xff, 0xff}); err == nil {
		t.Fatalf("expected error for invalid bytes")
	}
}
