package ws

import (
	"encoding/json"
	"fmt"
)

// Event is an outbound frame pushed to a connection. ID carries the
// correlation id of the request being replied to; broadcasts leave it empty.
type Event struct {
	ID   string      `json:"id,omitempty"`
	Type string      `json:"type"`
	Data interface{} `json:"data,omitempty"`
}

// Frame is an inbound command from a client.
type Frame struct {
	ID   string          `json:"id,omitempty"`
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// ErrorPayload is the data of an error reply. The connection survives; only
// the individual request fails.
type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Inbound command types.
const (
	CmdConversationStart   = "conversation:start"
	CmdConversationList    = "conversation:list"
	CmdConversationArchive = "conversation:archive"
	CmdConversationPin     = "conversation:pin"
	CmdSendConversation    = "message:send:conversation"
	CmdSendRoom            = "message:send:room"
	CmdRoomCreate          = "room:create"
	CmdRoomJoin            = "room:join"
	CmdRoomList            = "room:list"
	CmdMessageRead         = "message:read"
	CmdMessageEdit         = "message:edit"
	CmdMessageDelete       = "message:delete"
	CmdTypingStart         = "typing:start"
	CmdTypingStop          = "typing:stop"
)

// Outbound event types.
const (
	EvtMessageNew     = "message:new"
	EvtMessageEdited  = "message:edited"
	EvtMessageDeleted = "message:deleted"
	EvtUserOnline     = "user:online"
	EvtUserOffline    = "user:offline"
	EvtTypingStart    = "typing:start"
	EvtTypingStop     = "typing:stop"
	EvtError          = "error"
)

// Channel names. A channel is a broadcast group keyed by conversation or
// room id; every connection also sits in a personal channel.
func UserChannel(userID uint) string     { return fmt.Sprintf("user:%d", userID) }
func ConversationChannel(id uint) string { return fmt.Sprintf("conversation:%d", id) }
func RoomChannel(id uint) string         { return fmt.Sprintf("room:%d", id) }
