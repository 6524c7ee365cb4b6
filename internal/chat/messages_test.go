package chat

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"chat-server/internal/models"
)

func TestSendToConversationIncrementsPeerUnread(t *testing.T) {
	db, conversations, _, messages := newServices(t)
	a := seedUser(t, db, "Alice", "alice")
	b := seedUser(t, db, "Bob", "bob")

	conv, _ := conversations.FindOrCreate(a.ID, b.ID)

	msg, err := messages.SendToConversation(conv.ID, a.ID, SendParams{Content: "hi"})
	if err != nil {
		t.Fatalf("SendToConversation: %v", err)
	}
	if msg.Sender == nil || msg.Sender.ID != a.ID {
		t.Error("sender not resolved on returned message")
	}

	// Recipient's counter moves, sender's does not.
	if n, _ := conversations.UnreadCount(conv.ID, b.ID); n != 1 {
		t.Errorf("b unread = %d, want 1", n)
	}
	if n, _ := conversations.UnreadCount(conv.ID, a.ID); n != 0 {
		t.Errorf("a unread = %d, want 0", n)
	}

	conv, _ = conversations.GetByID(conv.ID)
	if conv.LastMessageID == nil || *conv.LastMessageID != msg.ID {
		t.Error("last message reference not updated")
	}
}

func TestSendRequiresParticipant(t *testing.T) {
	db, conversations, rooms, messages := newServices(t)
	a := seedUser(t, db, "Alice", "alice")
	b := seedUser(t, db, "Bob", "bob")
	outsider := seedUser(t, db, "Mallory", "mallory")

	conv, _ := conversations.FindOrCreate(a.ID, b.ID)
	if _, err := messages.SendToConversation(conv.ID, outsider.ID, SendParams{Content: "hi"}); !errors.Is(err, ErrUnauthorized) {
		t.Errorf("outsider send: got %v, want ErrUnauthorized", err)
	}

	room, _ := rooms.Create(a.ID, CreateRoomParams{Name: "general"})
	if _, err := messages.SendToRoom(room.ID, outsider.ID, SendParams{Content: "hi"}); !errors.Is(err, ErrUnauthorized) {
		t.Errorf("non-member send: got %v, want ErrUnauthorized", err)
	}
}

func TestSendValidation(t *testing.T) {
	db, conversations, _, messages := newServices(t)
	a := seedUser(t, db, "Alice", "alice")
	b := seedUser(t, db, "Bob", "bob")

	conv, _ := conversations.FindOrCreate(a.ID, b.ID)

	if _, err := messages.SendToConversation(conv.ID, a.ID, SendParams{Content: ""}); !errors.Is(err, ErrValidation) {
		t.Errorf("empty text: got %v, want ErrValidation", err)
	}
	long := strings.Repeat("x", models.MaxContentLen+1)
	if _, err := messages.SendToConversation(conv.ID, a.ID, SendParams{Content: long}); !errors.Is(err, ErrValidation) {
		t.Errorf("oversized content: got %v, want ErrValidation", err)
	}
	if _, err := messages.SendToConversation(conv.ID, a.ID, SendParams{Content: "hi", Type: "carrier-pigeon"}); !errors.Is(err, ErrValidation) {
		t.Errorf("unknown type: got %v, want ErrValidation", err)
	}
}

func TestMarkReadIsIdempotent(t *testing.T) {
	db, conversations, _, messages := newServices(t)
	a := seedUser(t, db, "Alice", "alice")
	b := seedUser(t, db, "Bob", "bob")

	conv, _ := conversations.FindOrCreate(a.ID, b.ID)
	msg, _ := messages.SendToConversation(conv.ID, a.ID, SendParams{Content: "hi"})

	if err := messages.MarkRead(msg.ID, b.ID); err != nil {
		t.Fatalf("MarkRead: %v", err)
	}
	if err := messages.MarkRead(msg.ID, b.ID); err != nil {
		t.Fatalf("second MarkRead: %v", err)
	}

	var count int64
	db.Model(&models.MessageRead{}).
		Where("message_id = ? AND user_id = ?", msg.ID, b.ID).
		Count(&count)
	if count != 1 {
		t.Errorf("read entries = %d, want exactly 1", count)
	}

	if err := messages.MarkRead(999, b.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("read of missing message: got %v, want ErrNotFound", err)
	}
}

func TestMarkReadRequiresMembership(t *testing.T) {
	db, conversations, rooms, messages := newServices(t)
	a := seedUser(t, db, "Alice", "alice")
	b := seedUser(t, db, "Bob", "bob")
	outsider := seedUser(t, db, "Mallory", "mallory")

	conv, _ := conversations.FindOrCreate(a.ID, b.ID)
	direct, _ := messages.SendToConversation(conv.ID, a.ID, SendParams{Content: "hi"})

	if err := messages.MarkRead(direct.ID, outsider.ID); !errors.Is(err, ErrUnauthorized) {
		t.Errorf("outsider read of direct message: got %v, want ErrUnauthorized", err)
	}

	room, _ := rooms.Create(a.ID, CreateRoomParams{Name: "general"})
	inRoom, _ := messages.SendToRoom(room.ID, a.ID, SendParams{Content: "hello room"})

	if err := messages.MarkRead(inRoom.ID, outsider.ID); !errors.Is(err, ErrUnauthorized) {
		t.Errorf("non-member read of room message: got %v, want ErrUnauthorized", err)
	}

	var count int64
	db.Model(&models.MessageRead{}).Where("user_id = ?", outsider.ID).Count(&count)
	if count != 0 {
		t.Errorf("outsider left %d read rows", count)
	}

	if err := messages.MarkRead(direct.ID, b.ID); err != nil {
		t.Fatalf("participant MarkRead: %v", err)
	}
}

func TestAttachmentMessages(t *testing.T) {
	db, conversations, _, messages := newServices(t)
	a := seedUser(t, db, "Alice", "alice")
	b := seedUser(t, db, "Bob", "bob")

	conv, _ := conversations.FindOrCreate(a.ID, b.ID)

	// Image and file messages carry attachment metadata; content is optional.
	msg, err := messages.SendToConversation(conv.ID, a.ID, SendParams{
		Type:           models.MessageImage,
		AttachmentURL:  "https://cdn.example.com/cat.png",
		AttachmentName: "cat.png",
	})
	if err != nil {
		t.Fatalf("send image: %v", err)
	}
	if msg.AttachmentURL != "https://cdn.example.com/cat.png" || msg.AttachmentName != "cat.png" {
		t.Errorf("attachment metadata not persisted: %+v", msg)
	}

	if _, err := messages.SendToConversation(conv.ID, a.ID, SendParams{Type: models.MessageFile}); !errors.Is(err, ErrValidation) {
		t.Errorf("file without attachment url: got %v, want ErrValidation", err)
	}
}

func TestEditOnlyBySender(t *testing.T) {
	db, conversations, _, messages := newServices(t)
	a := seedUser(t, db, "Alice", "alice")
	b := seedUser(t, db, "Bob", "bob")

	conv, _ := conversations.FindOrCreate(a.ID, b.ID)
	msg, _ := messages.SendToConversation(conv.ID, a.ID, SendParams{Content: "helo"})

	if _, err := messages.Edit(msg.ID, b.ID, "hijacked"); !errors.Is(err, ErrUnauthorized) {
		t.Errorf("edit by non-sender: got %v, want ErrUnauthorized", err)
	}

	edited, err := messages.Edit(msg.ID, a.ID, "hello")
	if err != nil {
		t.Fatalf("Edit: %v", err)
	}
	if edited.Content != "hello" || !edited.Edited || edited.EditedAt == nil {
		t.Errorf("edit not applied: %+v", edited)
	}
}

func TestSoftDeleteTombstone(t *testing.T) {
	db, conversations, _, messages := newServices(t)
	a := seedUser(t, db, "Alice", "alice")
	b := seedUser(t, db, "Bob", "bob")

	conv, _ := conversations.FindOrCreate(a.ID, b.ID)
	msg, _ := messages.SendToConversation(conv.ID, a.ID, SendParams{Content: "oops"})
	reply, _ := messages.SendToConversation(conv.ID, b.ID, SendParams{Content: "quoting you", ReplyToID: &msg.ID})

	if _, err := messages.SoftDelete(msg.ID, b.ID); !errors.Is(err, ErrUnauthorized) {
		t.Errorf("delete by non-sender: got %v, want ErrUnauthorized", err)
	}

	deleted, err := messages.SoftDelete(msg.ID, a.ID)
	if err != nil {
		t.Fatalf("SoftDelete: %v", err)
	}
	if deleted.Content != models.Tombstone || !deleted.Deleted || deleted.DeletedAt == nil {
		t.Errorf("tombstone not applied: %+v", deleted)
	}

	// Excluded from listings but still resolvable as a reply target.
	recent, _ := messages.RecentInConversation(conv.ID, 0)
	for _, m := range recent {
		if m.ID == msg.ID {
			t.Error("deleted message still listed")
		}
	}
	got, err := messages.Get(reply.ID)
	if err != nil {
		t.Fatalf("Get(reply): %v", err)
	}
	if got.ReplyTo == nil || got.ReplyTo.Content != models.Tombstone {
		t.Error("reply target not resolvable after delete")
	}
	if _, err := messages.Edit(msg.ID, a.ID, "resurrect"); !errors.Is(err, ErrValidation) {
		t.Errorf("edit of deleted message: got %v, want ErrValidation", err)
	}
}

func TestRecentNewestFirstWithLimit(t *testing.T) {
	db, conversations, _, messages := newServices(t)
	a := seedUser(t, db, "Alice", "alice")
	b := seedUser(t, db, "Bob", "bob")

	conv, _ := conversations.FindOrCreate(a.ID, b.ID)
	for i := 0; i < 5; i++ {
		if _, err := messages.SendToConversation(conv.ID, a.ID, SendParams{Content: fmt.Sprintf("m%d", i)}); err != nil {
			t.Fatalf("send %d: %v", i, err)
		}
	}

	recent, err := messages.RecentInConversation(conv.ID, 3)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(recent) != 3 {
		t.Fatalf("got %d messages, want 3", len(recent))
	}
	want := []string{"m4", "m3", "m2"}
	for i, m := range recent {
		if m.Content != want[i] {
			t.Errorf("recent[%d] = %q, want %q", i, m.Content, want[i])
		}
	}
}

func TestUnreadMessageCount(t *testing.T) {
	db, conversations, _, messages := newServices(t)
	a := seedUser(t, db, "Alice", "alice")
	b := seedUser(t, db, "Bob", "bob")

	conv, _ := conversations.FindOrCreate(a.ID, b.ID)

	first, _ := messages.SendToConversation(conv.ID, a.ID, SendParams{Content: "one"})
	messages.SendToConversation(conv.ID, a.ID, SendParams{Content: "two"})
	gone, _ := messages.SendToConversation(conv.ID, a.ID, SendParams{Content: "three"})
	messages.SendToConversation(conv.ID, b.ID, SendParams{Content: "own message"})

	if _, err := messages.SoftDelete(gone.ID, a.ID); err != nil {
		t.Fatalf("SoftDelete: %v", err)
	}
	if err := messages.MarkRead(first.ID, b.ID); err != nil {
		t.Fatalf("MarkRead: %v", err)
	}

	// Not sent by b, not read by b, not deleted: only "two" qualifies.
	n, err := messages.UnreadInConversation(conv.ID, b.ID)
	if err != nil {
		t.Fatalf("UnreadInConversation: %v", err)
	}
	if n != 1 {
		t.Errorf("unread = %d, want 1", n)
	}
}

func TestRoomMessageTouchesActivity(t *testing.T) {
	db, _, rooms, messages := newServices(t)
	a := seedUser(t, db, "Alice", "alice")

	room, _ := rooms.Create(a.ID, CreateRoomParams{Name: "general"})
	before := room.LastActivityAt

	msg, err := messages.SendToRoom(room.ID, a.ID, SendParams{Content: "hello room"})
	if err != nil {
		t.Fatalf("SendToRoom: %v", err)
	}
	if msg.RoomID == nil || *msg.RoomID != room.ID {
		t.Error("message not attached to the room")
	}

	room, _ = rooms.Get(room.ID)
	if room.LastActivityAt.Before(before) {
		t.Error("room activity went backwards")
	}
}
