package dispatch

import "sync"

// conversationLocks serializes dispatch per conversation id so concurrent
// mentions on one thread cannot interleave their history appends. Entries are
// never removed; they are one mutex per conversation the process has seen.
type conversationLocks struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newConversationLocks() *conversationLocks {
	return &conversationLocks{locks: make(map[string]*sync.Mutex)}
}

func (c *conversationLocks) get(conversationID string) *sync.Mutex {
	c.mu.Lock()
	defer c.mu.Unlock()

	l, ok := c.locks[conversationID]
	if !ok {
		l = &sync.Mutex{}
		c.locks[conversationID] = l
	}
	return l
}
