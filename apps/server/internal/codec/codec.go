package codec

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"time"

	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"

	"darts-lite/darts"
)

// Frame is one server event on the wire. The same frame is sent to websocket
// clients, published to the broker and stored in the event tape.
type Frame struct {
	Event      darts.EventType `json:"event"`
	BoardID    string          `json:"board_id"`
	GameID     string          `json:"game_id,omitempty"`
	ServerSeq  uint64          `json:"server_seq"`
	ServerTsMs int64           `json:"server_ts_ms"`
	Data       any             `json:"data,omitempty"`
}

// WrapEvent creates a Frame with common fields
func WrapEvent(boardID, gameID string, serverSeq uint64, evt darts.Event) Frame {
	return Frame{
		Event:      evt.Type,
		BoardID:    boardID,
		GameID:     gameID,
		ServerSeq:  serverSeq,
		ServerTsMs: time.Now().UnixMilli(),
		Data:       evt.Data,
	}
}

func EncodeFrame(f Frame) ([]byte, error) {
	return json.Marshal(f)
}

// FrameToProto converts a frame into a protobuf Struct envelope.
func FrameToProto(f Frame) (*structpb.Struct, error) {
	raw, err := json.Marshal(f)
	if err != nil {
		return nil, err
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, err
	}
	s, err := structpb.NewStruct(m)
	if err != nil {
		return nil, fmt.Errorf("frame to struct: %w", err)
	}
	return s, nil
}

// MarshalEnvelope is the binary form stored in the event tape.
func MarshalEnvelope(f Frame) ([]byte, error) {
	s, err := FrameToProto(f)
	if err != nil {
		return nil, err
	}
	return proto.MarshalOptions{Deterministic: true}.Marshal(s)
}

func UnmarshalEnvelope(b []byte) (*structpb.Struct, error) {
	var s structpb.Struct
	if err := proto.Unmarshal(b, &s); err != nil {
		return nil, fmt.Errorf("unmarshal envelope: %w", err)
	}
	return &s, nil
}

// EnvelopeJSON renders a stored envelope for API consumers.
func EnvelopeJSON(b []byte) (json.RawMessage, error) {
	s, err := UnmarshalEnvelope(b)
	if err != nil {
		return nil, err
	}
	out, err := protojson.Marshal(s)
	if err != nil {
		return nil, err
	}
	return json.RawMessage(out), nil
}

// EventType reads the event name back out of a stored envelope.
func EventType(s *structpb.Struct) string {
	if s == nil {
		return ""
	}
	if v, ok := s.GetFields()["event"]; ok {
		return v.GetStringValue()
	}
	return ""
}

// The event tape stores envelopes as base64 text.
func EncodeB64(b []byte) string {
	return base64.StdEncoding.EncodeToString(b)
}

func DecodeB64(s string) ([]byte, error) {
	b, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("decode envelope: %w", err)
	}
	return b, nil
}
