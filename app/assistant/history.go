package assistant

import "sync"

// History keeps the last turns of every client in memory.
type History struct {
	mu    sync.Mutex
	limit int
	turns map[int64][]Message
}

func NewHistory(limit int) *History {
	if limit <= 0 {
		limit = 10
	}
	return &History{limit: limit, turns: make(map[int64][]Message)}
}

// Append adds turns for clientID and drops the oldest beyond the limit.
func (h *History) Append(clientID int64, msgs ...Message) {
	h.mu.Lock()
	defer h.mu.Unlock()
	t := append(h.turns[clientID], msgs...)
	if over := len(t) - h.limit; over > 0 {
		t = append([]Message(nil), t[over:]...)
	}
	h.turns[clientID] = t
}

// Recent returns a copy of the stored turns, oldest first.
func (h *History) Recent(clientID int64) []Message {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]Message(nil), h.turns[clientID]...)
}

// Reset forgets the client's conversation.
func (h *History) Reset(clientID int64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.turns, clientID)
}
