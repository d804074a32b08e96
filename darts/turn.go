package darts

// TurnOrder is the roster in throwing order plus the index of the player at
// the board. The index stays valid across adds and removes.
type TurnOrder struct {
	ids []string
	cur int
}

func (t *TurnOrder) Len() int { return len(t.ids) }

// Current returns the id and index of the player at the board ("" when empty).
func (t *TurnOrder) Current() (string, int) {
	if len(t.ids) == 0 {
		return "", -1
	}
	return t.ids[t.cur], t.cur
}

func (t *TurnOrder) IDs() []string {
	out := make([]string, len(t.ids))
	copy(out, t.ids)
	return out
}

func (t *TurnOrder) IndexOf(id string) int {
	for i, v := range t.ids {
		if v == id {
			return i
		}
	}
	return -1
}

// Add appends id to the end of the order; the current player is unchanged.
func (t *TurnOrder) Add(id string) {
	t.ids = append(t.ids, id)
}

// Advance moves to the next player circularly and returns its id.
func (t *TurnOrder) Advance() string {
	if len(t.ids) == 0 {
		return ""
	}
	t.cur = (t.cur + 1) % len(t.ids)
	return t.ids[t.cur]
}

// SetCurrent jumps to id. It reports false when id is not in the order.
func (t *TurnOrder) SetCurrent(id string) bool {
	idx := t.IndexOf(id)
	if idx < 0 {
		return false
	}
	t.cur = idx
	return true
}

// Remove drops id. When id was at the board, the player positionally after it
// becomes current (wrapping to the front), which is exactly one advance.
func (t *TurnOrder) Remove(id string) (wasCurrent, ok bool) {
	idx := t.IndexOf(id)
	if idx < 0 {
		return false, false
	}
	wasCurrent = idx == t.cur
	t.ids = append(t.ids[:idx], t.ids[idx+1:]...)
	switch {
	case len(t.ids) == 0:
		t.cur = 0
	case idx < t.cur:
		t.cur--
	case wasCurrent && t.cur >= len(t.ids):
		t.cur = 0
	}
	return wasCurrent, true
}

// WalkOnce visits every player once, starting with the current one. Returning
// false from fn stops the walk.
func (t *TurnOrder) WalkOnce(fn func(id string, idx int) bool) {
	n := len(t.ids)
	for k := 0; k < n; k++ {
		i := (t.cur + k) % n
		if !fn(t.ids[i], i) {
			return
		}
	}
}
