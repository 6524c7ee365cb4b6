package chat

import "testing"

func TestTypingSetAndClear(t *testing.T) {
	r := NewTypingRegistry()

	r.SetTyping("conversation:1", 7, true)
	r.SetTyping("conversation:1", 7, true) // idempotent
	r.SetTyping("conversation:1", 9, true)

	if !r.IsTyping("conversation:1", 7) {
		t.Error("user 7 should be typing")
	}
	if got := len(r.TypingUsers("conversation:1")); got != 2 {
		t.Errorf("typing set size = %d, want 2", got)
	}

	r.SetTyping("conversation:1", 7, false)
	r.SetTyping("conversation:1", 7, false) // idempotent
	if r.IsTyping("conversation:1", 7) {
		t.Error("user 7 should no longer be typing")
	}
}

func TestTypingChannelsAreIndependent(t *testing.T) {
	r := NewTypingRegistry()

	r.SetTyping("room:3", 7, true)
	if r.IsTyping("conversation:3", 7) {
		t.Error("typing state leaked across channels")
	}
	if r.TypingUsers("room:99") != nil {
		t.Error("unknown channel should have an empty set")
	}
}

// A user who disconnected mid-typing stays in the set; a fresh connection
// issuing typing:start again must not trip anything up.
func TestTypingSurvivesAbandonedEntry(t *testing.T) {
	r := NewTypingRegistry()

	r.SetTyping("room:3", 7, true)
	// disconnect happens here, no typing-stop

	r.SetTyping("room:3", 7, true)
	if !r.IsTyping("room:3", 7) {
		t.Error("re-start from a new connection should keep the user typing")
	}
	r.SetTyping("room:3", 7, false)
	if r.IsTyping("room:3", 7) {
		t.Error("stop should clear the abandoned entry")
	}
}
