// Command dartreplay verifies a stored game document offline: it replays every
// throw through the engine and prints the rebuilt tape summary as JSON.
//
//	dartreplay game.json
//	curl -s localhost:18080/api/games/<id>/replay | dartreplay
package main

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"

	"darts-lite/replay"
)

type verifyResponse struct {
	OK     bool                `json:"ok"`
	Tape   *replay.Tape        `json:"tape,omitempty"`
	Digest string              `json:"tape_digest,omitempty"`
	Error  *replay.ReplayError `json:"error,omitempty"`
}

func main() {
	events := flag.Bool("events", false, "include the full event tape in the output")
	flag.Parse()

	raw, err := readInput(flag.Arg(0))
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	resp := handleVerify(raw, *events)
	os.Stdout.WriteString(mustJSON(resp) + "\n")
	if !resp.OK {
		os.Exit(1)
	}
}

// readInput reads path, or stdin for "" and "-". The file is closed before
// returning.
func readInput(path string) ([]byte, error) {
	if path == "" || path == "-" {
		raw, err := io.ReadAll(os.Stdin)
		if err != nil {
			return nil, fmt.Errorf("read input: %w", err)
		}
		return raw, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()
	raw, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return raw, nil
}

func handleVerify(raw []byte, withEvents bool) verifyResponse {
	var doc replay.Document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return verifyResponse{
			OK:    false,
			Error: &replay.ReplayError{StepIndex: -1, Reason: "invalid_json", Message: err.Error()},
		}
	}

	tape, err := replay.Rebuild(doc)
	if err != nil {
		var replayErr *replay.ReplayError
		if errors.As(err, &replayErr) {
			return verifyResponse{OK: false, Error: replayErr}
		}
		return verifyResponse{
			OK:    false,
			Error: &replay.ReplayError{StepIndex: -1, Reason: "replay_failed", Message: err.Error()},
		}
	}
	if !withEvents {
		tape.Events = nil
	}
	return verifyResponse{OK: true, Tape: tape, Digest: tape.Digest}
}

func mustJSON(v any) string {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		fallback := verifyResponse{
			OK:    false,
			Error: &replay.ReplayError{StepIndex: -1, Reason: "marshal_failed", Message: err.Error()},
		}
		b2, _ := json.Marshal(fallback)
		return string(b2)
	}
	return string(b)
}
