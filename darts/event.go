package darts

type EventType string

const (
	EventGameState     EventType = "game_state"
	EventGameStarted   EventType = "game_started"
	EventGameEnd       EventType = "game_end"
	EventPlayerAdded   EventType = "player_added"
	EventPlayerRemoved EventType = "player_removed"
	EventThrowRecorded EventType = "throw_recorded"
	EventError         EventType = "error"
)

// Event is pushed to observers after a mutation. Data is one of Snapshot,
// Throw, PlayerPayload, GameEndPayload or ErrorPayload.
type Event struct {
	Type EventType `json:"event"`
	Data any       `json:"data,omitempty"`
}

type PlayerPayload struct {
	PlayerID   string `json:"player_id"`
	PlayerName string `json:"player_name"`
}

type GameEndPayload struct {
	Winner *Player `json:"winner"`
	// Reason is "finished" or "ended".
	Reason string `json:"reason"`
}

type ErrorPayload struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

// ErrorEvent builds the event reported to the client whose command failed.
// An empty code is filled in with Code(err).
func ErrorEvent(err error, code string) Event {
	if code == "" {
		code = Code(err)
	}
	return Event{Type: EventError, Data: ErrorPayload{Message: err.Error(), Code: code}}
}

// Update is what every session operation returns: the snapshot after the
// mutation and the events it produced, in emission order.
type Update struct {
	Snapshot Snapshot
	Events   []Event
	Throw    *Throw
}

// Finished reports whether this update ended the game.
func (u Update) Finished() bool { return u.Snapshot.IsFinished }
