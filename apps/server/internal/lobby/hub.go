package lobby

import (
	"sync"

	"darts-lite/apps/server/internal/codec"
)

const subscriberBuffer = 64

// Hub fans the frames of one board out to its subscribers. Hubs outlive
// games, so a client watching a board sees the next game start.
type Hub struct {
	boardID string

	mu   sync.Mutex
	subs map[chan codec.Frame]struct{}
}

func newHub(boardID string) *Hub {
	return &Hub{
		boardID: boardID,
		subs:    make(map[chan codec.Frame]struct{}),
	}
}

func (h *Hub) Subscribe() chan codec.Frame {
	ch := make(chan codec.Frame, subscriberBuffer)
	h.mu.Lock()
	h.subs[ch] = struct{}{}
	h.mu.Unlock()
	return ch
}

// Unsubscribe removes a subscriber and closes its channel.
func (h *Hub) Unsubscribe(ch chan codec.Frame) {
	h.mu.Lock()
	if _, ok := h.subs[ch]; ok {
		delete(h.subs, ch)
		close(ch)
	}
	h.mu.Unlock()
}

// Emit delivers a frame to every subscriber. A lagging subscriber misses
// the frame; the next game_state carries the full picture again.
func (h *Hub) Emit(frame codec.Frame) {
	h.mu.Lock()
	for ch := range h.subs {
		select {
		case ch <- frame:
		default:
		}
	}
	h.mu.Unlock()
}

func (h *Hub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}
