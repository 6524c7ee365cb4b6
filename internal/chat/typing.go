package chat

import "sync"

// TypingRegistry tracks which users are currently typing in a conversation
// or room channel. Purely in-memory: the sets start empty on every process
// restart and entries have no expiry. A client that never sends typing-stop
// stays listed until it does or a later SetTyping(false) clears it.
type TypingRegistry struct {
	mu     sync.RWMutex
	typing map[string]map[uint]struct{}
}

func NewTypingRegistry() *TypingRegistry {
	return &TypingRegistry{typing: make(map[string]map[uint]struct{})}
}

// SetTyping adds or removes the user from the channel's typing set.
// Both directions are idempotent.
func (r *TypingRegistry) SetTyping(channel string, userID uint, isTyping bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	set := r.typing[channel]
	if isTyping {
		if set == nil {
			set = make(map[uint]struct{})
			r.typing[channel] = set
		}
		set[userID] = struct{}{}
		return
	}
	if set != nil {
		delete(set, userID)
		if len(set) == 0 {
			delete(r.typing, channel)
		}
	}
}

// TypingUsers returns the ids currently typing in the channel.
func (r *TypingRegistry) TypingUsers(channel string) []uint {
	r.mu.RLock()
	defer r.mu.RUnlock()

	set := r.typing[channel]
	if len(set) == 0 {
		return nil
	}
	ids := make([]uint, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	return ids
}

// IsTyping reports whether the user is in the channel's typing set.
func (r *TypingRegistry) IsTyping(channel string, userID uint) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.typing[channel][userID]
	return ok
}
