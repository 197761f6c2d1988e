package engine

import "sync"

// TypingSet is the ephemeral set of users currently typing, scoped to one
// conversation at a time. Switching conversations resets the set; nothing is
// persisted.
type TypingSet struct {
	mu             sync.RWMutex
	conversationID string
	members        map[string]string
}

// NewTypingSet creates an empty typing set.
func NewTypingSet() *TypingSet {
	return &TypingSet{members: make(map[string]string)}
}

// Start records that userID is typing in conversationID. A different
// conversation id replaces the whole set.
func (t *TypingSet) Start(conversationID, userID, displayName string) {
	if conversationID == "" || userID == "" {
		return
	}

	t.mu.Lock()
	if t.conversationID != conversationID {
		t.conversationID = conversationID
		t.members = make(map[string]string)
	}
	t.members[userID] = displayName
	t.mu.Unlock()
}

// Stop removes userID from the set when the conversation matches.
func (t *TypingSet) Stop(conversationID, userID string) {
	t.mu.Lock()
	if t.conversationID == conversationID {
		delete(t.members, userID)
	}
	t.mu.Unlock()
}

// Active returns a copy of the typing members for conversationID.
func (t *TypingSet) Active(conversationID string) map[string]string {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if t.conversationID != conversationID {
		return map[string]string{}
	}
	active := make(map[string]string, len(t.members))
	for userID, displayName := range t.members {
		active[userID] = displayName
	}

	return active
}

// Reset empties the set, used on conversation change and disconnect.
func (t *TypingSet) Reset() {
	t.mu.Lock()
	t.conversationID = ""
	t.members = make(map[string]string)
	t.mu.Unlock()
}
