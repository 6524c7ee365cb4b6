package ws

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"chat-server/internal/auth"
	"chat-server/internal/chat"
	"chat-server/internal/models"
	"chat-server/internal/presence"

	"go.uber.org/zap"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"
)

// Gateway is the real-time connection layer. Each accepted websocket runs
// its own read loop; commands are dispatched synchronously and replied to
// with the request's correlation id. Broadcast events flow through the hub.
type Gateway struct {
	hub           *Hub
	verifier      auth.Verifier
	presence      *presence.Tracker
	conversations *chat.ConversationService
	rooms         *chat.RoomService
	messages      *chat.MessageService
	typing        *chat.TypingRegistry
	log           *zap.Logger

	insecureSkipVerify bool
}

func NewGateway(
	hub *Hub,
	verifier auth.Verifier,
	tracker *presence.Tracker,
	conversations *chat.ConversationService,
	rooms *chat.RoomService,
	messages *chat.MessageService,
	typing *chat.TypingRegistry,
	log *zap.Logger,
	insecureSkipVerify bool,
) *Gateway {
	return &Gateway{
		hub:                hub,
		verifier:           verifier,
		presence:           tracker,
		conversations:      conversations,
		rooms:              rooms,
		messages:           messages,
		typing:             typing,
		log:                log,
		insecureSkipVerify: insecureSkipVerify,
	}
}

// Serve upgrades the request and runs the connection until it closes.
// Browsers cannot set headers on the websocket handshake, so the bearer
// credential rides in the token query parameter. A missing or invalid
// credential refuses the connection before the upgrade.
func (g *Gateway) Serve(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		http.Error(w, "missing token", http.StatusUnauthorized)
		return
	}
	identity, err := g.verifier.Verify(token)
	if err != nil {
		http.Error(w, "invalid token", http.StatusUnauthorized)
		return
	}

	opts := &websocket.AcceptOptions{}
	if g.insecureSkipVerify {
		opts.InsecureSkipVerify = true
	}
	conn, err := websocket.Accept(w, r, opts)
	if err != nil {
		return
	}

	client := g.hub.AddClient(identity.UserID, conn)
	g.hub.Subscribe(client, UserChannel(identity.UserID))

	g.presence.MarkOnline(identity.UserID)
	g.hub.BroadcastToAll(Event{Type: EvtUserOnline, Data: presencePayload{UserID: identity.UserID}}, client)
	g.log.Info("connection opened",
		zap.String("conn_id", client.ID), zap.Uint("user_id", identity.UserID))

	g.readLoop(r.Context(), client)

	g.hub.RemoveClient(client)
	g.presence.MarkOffline(identity.UserID)
	g.hub.BroadcastToAll(Event{Type: EvtUserOffline, Data: presencePayload{UserID: identity.UserID}}, client)
	g.log.Info("connection closed",
		zap.String("conn_id", client.ID), zap.Uint("user_id", identity.UserID))
}

func (g *Gateway) readLoop(ctx context.Context, client *Client) {
	for {
		var frame Frame
		if err := wsjson.Read(ctx, client.Conn, &frame); err != nil {
			return
		}
		if reply := g.dispatch(client, frame); reply != nil {
			client.enqueue(*reply)
		}
	}
}

type presencePayload struct {
	UserID uint `json:"user_id"`
}

type startConversationReq struct {
	OtherUserID uint `json:"other_user_id"`
}

type listConversationsReq struct {
	IncludeArchived bool `json:"include_archived"`
}

type sendConversationReq struct {
	ConversationID uint   `json:"conversation_id"`
	Content        string `json:"content"`
	Type           string `json:"type"`
	ReplyToID      *uint  `json:"reply_to_id"`
	AttachmentURL  string `json:"attachment_url"`
	AttachmentName string `json:"attachment_name"`
}

type sendRoomReq struct {
	RoomID         uint   `json:"room_id"`
	Content        string `json:"content"`
	Type           string `json:"type"`
	ReplyToID      *uint  `json:"reply_to_id"`
	AttachmentURL  string `json:"attachment_url"`
	AttachmentName string `json:"attachment_name"`
}

type createRoomReq struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	IsPrivate   bool   `json:"is_private"`
	MaxMembers  int    `json:"max_members"`
	Category    string `json:"category"`
}

type joinRoomReq struct {
	RoomID     uint   `json:"room_id"`
	InviteCode string `json:"invite_code"`
}

type messageRef struct {
	MessageID uint `json:"message_id"`
}

type editMessageReq struct {
	MessageID uint   `json:"message_id"`
	Content   string `json:"content"`
}

type typingReq struct {
	ConversationID uint `json:"conversation_id"`
	RoomID         uint `json:"room_id"`
}

type typingEvent struct {
	UserID         uint `json:"user_id"`
	ConversationID uint `json:"conversation_id,omitempty"`
	RoomID         uint `json:"room_id,omitempty"`
}

// dispatch runs one client command and returns the reply frame, or nil for
// fire-and-forget commands. Failures are request-scoped: the reply carries
// an error payload and the connection stays open.
func (g *Gateway) dispatch(client *Client, frame Frame) *Event {
	switch frame.Type {
	case CmdConversationStart:
		return g.handleConversationStart(client, frame)
	case CmdConversationList:
		return g.handleConversationList(client, frame)
	case CmdConversationArchive:
		return g.handleConversationFlag(client, frame, g.conversations.SetArchived)
	case CmdConversationPin:
		return g.handleConversationFlag(client, frame, g.conversations.SetPinned)
	case CmdSendConversation:
		return g.handleSendConversation(client, frame)
	case CmdSendRoom:
		return g.handleSendRoom(client, frame)
	case CmdRoomCreate:
		return g.handleRoomCreate(client, frame)
	case CmdRoomJoin:
		return g.handleRoomJoin(client, frame)
	case CmdRoomList:
		return g.handleRoomList(client, frame)
	case CmdMessageRead:
		return g.handleMessageRead(client, frame)
	case CmdMessageEdit:
		return g.handleMessageEdit(client, frame)
	case CmdMessageDelete:
		return g.handleMessageDelete(client, frame)
	case CmdTypingStart:
		g.handleTyping(client, frame, true)
		return nil
	case CmdTypingStop:
		g.handleTyping(client, frame, false)
		return nil
	default:
		return errorReply(frame, "validation", "unknown command "+frame.Type)
	}
}

func (g *Gateway) handleConversationStart(client *Client, frame Frame) *Event {
	var req startConversationReq
	if err := json.Unmarshal(frame.Data, &req); err != nil {
		return errorReply(frame, "validation", "malformed payload")
	}

	conv, err := g.conversations.FindOrCreate(client.UserID, req.OtherUserID)
	if err != nil {
		return g.errorFor(frame, err)
	}

	// The requester is now viewing the conversation.
	g.hub.Subscribe(client, ConversationChannel(conv.ID))
	if err := g.conversations.ResetUnread(conv.ID, client.UserID); err != nil {
		g.log.Warn("reset unread failed", zap.Uint("conversation_id", conv.ID), zap.Error(err))
	}

	msgs, err := g.messages.RecentInConversation(conv.ID, chat.DefaultRecentLimit)
	if err != nil {
		return g.errorFor(frame, err)
	}

	return reply(frame, map[string]any{"conversation": conv, "messages": msgs})
}

func (g *Gateway) handleConversationList(client *Client, frame Frame) *Event {
	var req listConversationsReq
	if len(frame.Data) > 0 {
		if err := json.Unmarshal(frame.Data, &req); err != nil {
			return errorReply(frame, "validation", "malformed payload")
		}
	}

	convs, err := g.conversations.List(client.UserID, req.IncludeArchived)
	if err != nil {
		return g.errorFor(frame, err)
	}
	return reply(frame, map[string]any{"conversations": convs})
}

type conversationFlagReq struct {
	ConversationID uint `json:"conversation_id"`
	Value          bool `json:"value"`
}

// handleConversationFlag serves the archive and pin toggles, which share a
// payload shape and differ only in the state-engine setter.
func (g *Gateway) handleConversationFlag(client *Client, frame Frame, set func(conversationID, userID uint, value bool) error) *Event {
	var req conversationFlagReq
	if err := json.Unmarshal(frame.Data, &req); err != nil {
		return errorReply(frame, "validation", "malformed payload")
	}

	ok, err := g.conversations.IsParticipant(req.ConversationID, client.UserID)
	if err != nil {
		return g.errorFor(frame, err)
	}
	if !ok {
		return g.errorFor(frame, chat.ErrUnauthorized)
	}

	if err := set(req.ConversationID, client.UserID, req.Value); err != nil {
		return g.errorFor(frame, err)
	}
	return reply(frame, map[string]any{"conversation_id": req.ConversationID, "value": req.Value})
}

func (g *Gateway) handleSendConversation(client *Client, frame Frame) *Event {
	var req sendConversationReq
	if err := json.Unmarshal(frame.Data, &req); err != nil {
		return errorReply(frame, "validation", "malformed payload")
	}

	msg, err := g.messages.SendToConversation(req.ConversationID, client.UserID, chat.SendParams{
		Content:        req.Content,
		Type:           req.Type,
		ReplyToID:      req.ReplyToID,
		AttachmentURL:  req.AttachmentURL,
		AttachmentName: req.AttachmentName,
	})
	if err != nil {
		return g.errorFor(frame, err)
	}

	// Every subscriber of the parent channel gets the push, the sender's
	// other devices included.
	channel := ConversationChannel(req.ConversationID)
	g.hub.BroadcastToChannel(channel, Event{Type: EvtMessageNew, Data: msg}, nil)

	// The other participant may not have the conversation open; their
	// personal channel carries the direct notification.
	if conv, err := g.conversations.GetByID(req.ConversationID); err == nil {
		g.hub.NotifyUser(chat.OtherParticipant(conv, client.UserID), channel,
			Event{Type: EvtMessageNew, Data: msg})
	}

	return reply(frame, map[string]any{"message": msg})
}

func (g *Gateway) handleSendRoom(client *Client, frame Frame) *Event {
	var req sendRoomReq
	if err := json.Unmarshal(frame.Data, &req); err != nil {
		return errorReply(frame, "validation", "malformed payload")
	}

	msg, err := g.messages.SendToRoom(req.RoomID, client.UserID, chat.SendParams{
		Content:        req.Content,
		Type:           req.Type,
		ReplyToID:      req.ReplyToID,
		AttachmentURL:  req.AttachmentURL,
		AttachmentName: req.AttachmentName,
	})
	if err != nil {
		return g.errorFor(frame, err)
	}

	g.hub.BroadcastToChannel(RoomChannel(req.RoomID),
		Event{Type: EvtMessageNew, Data: msg}, nil)

	return reply(frame, map[string]any{"message": msg})
}

func (g *Gateway) handleRoomCreate(client *Client, frame Frame) *Event {
	var req createRoomReq
	if err := json.Unmarshal(frame.Data, &req); err != nil {
		return errorReply(frame, "validation", "malformed payload")
	}

	room, err := g.rooms.Create(client.UserID, chat.CreateRoomParams{
		Name:        req.Name,
		Description: req.Description,
		Private:     req.IsPrivate,
		MaxMembers:  req.MaxMembers,
		Category:    req.Category,
	})
	if err != nil {
		return g.errorFor(frame, err)
	}

	g.hub.Subscribe(client, RoomChannel(room.ID))
	return reply(frame, map[string]any{"room": room})
}

func (g *Gateway) handleRoomJoin(client *Client, frame Frame) *Event {
	var req joinRoomReq
	if err := json.Unmarshal(frame.Data, &req); err != nil {
		return errorReply(frame, "validation", "malformed payload")
	}

	var room *models.Room
	var err error
	if req.InviteCode != "" {
		room, err = g.rooms.GetByInviteCode(req.InviteCode)
	} else {
		room, err = g.rooms.Get(req.RoomID)
	}
	if err != nil {
		return g.errorFor(frame, err)
	}

	// A private room is joinable by id only for users already inside it;
	// everyone else needs the invite code. Reported as not-found so the
	// bare id does not confirm the room exists.
	if room.Private && req.InviteCode == "" {
		member, err := g.rooms.IsMember(room.ID, client.UserID)
		if err != nil {
			return g.errorFor(frame, err)
		}
		if !member {
			return g.errorFor(frame, chat.ErrNotFound)
		}
	}

	err = g.rooms.AddMember(room.ID, client.UserID, models.RoleMember)
	switch {
	case err == nil:
	case errors.Is(err, chat.ErrAlreadyMember):
		// Rejoining on a fresh connection re-subscribes to the channel.
	default:
		return g.errorFor(frame, err)
	}

	g.hub.Subscribe(client, RoomChannel(room.ID))

	room, err = g.rooms.Get(room.ID)
	if err != nil {
		return g.errorFor(frame, err)
	}
	msgs, err := g.messages.RecentInRoom(room.ID, chat.DefaultRecentLimit)
	if err != nil {
		return g.errorFor(frame, err)
	}
	return reply(frame, map[string]any{"room": room, "messages": msgs})
}

func (g *Gateway) handleRoomList(client *Client, frame Frame) *Event {
	rooms, err := g.rooms.List(client.UserID)
	if err != nil {
		return g.errorFor(frame, err)
	}
	return reply(frame, map[string]any{"rooms": rooms})
}

func (g *Gateway) handleMessageRead(client *Client, frame Frame) *Event {
	var req messageRef
	if err := json.Unmarshal(frame.Data, &req); err != nil {
		return errorReply(frame, "validation", "malformed payload")
	}
	if err := g.messages.MarkRead(req.MessageID, client.UserID); err != nil {
		return g.errorFor(frame, err)
	}
	return reply(frame, map[string]any{"message_id": req.MessageID})
}

func (g *Gateway) handleMessageEdit(client *Client, frame Frame) *Event {
	var req editMessageReq
	if err := json.Unmarshal(frame.Data, &req); err != nil {
		return errorReply(frame, "validation", "malformed payload")
	}

	msg, err := g.messages.Edit(req.MessageID, client.UserID, req.Content)
	if err != nil {
		return g.errorFor(frame, err)
	}

	g.hub.BroadcastToChannel(parentChannel(msg), Event{Type: EvtMessageEdited, Data: msg}, nil)
	return reply(frame, map[string]any{"message": msg})
}

func (g *Gateway) handleMessageDelete(client *Client, frame Frame) *Event {
	var req messageRef
	if err := json.Unmarshal(frame.Data, &req); err != nil {
		return errorReply(frame, "validation", "malformed payload")
	}

	msg, err := g.messages.SoftDelete(req.MessageID, client.UserID)
	if err != nil {
		return g.errorFor(frame, err)
	}

	g.hub.BroadcastToChannel(parentChannel(msg), Event{Type: EvtMessageDeleted, Data: msg}, nil)
	return reply(frame, map[string]any{"message": msg})
}

// handleTyping is fire-and-forget: no reply, broadcast to the channel's
// other subscribers only. An unauthorized or unknown target is dropped
// silently rather than failing the connection.
func (g *Gateway) handleTyping(client *Client, frame Frame, isTyping bool) {
	var req typingReq
	if err := json.Unmarshal(frame.Data, &req); err != nil {
		return
	}

	var channel string
	ev := typingEvent{UserID: client.UserID}
	switch {
	case req.ConversationID != 0:
		ok, err := g.conversations.IsParticipant(req.ConversationID, client.UserID)
		if err != nil || !ok {
			return
		}
		channel = ConversationChannel(req.ConversationID)
		ev.ConversationID = req.ConversationID
	case req.RoomID != 0:
		ok, err := g.rooms.IsMember(req.RoomID, client.UserID)
		if err != nil || !ok {
			return
		}
		channel = RoomChannel(req.RoomID)
		ev.RoomID = req.RoomID
	default:
		return
	}

	g.typing.SetTyping(channel, client.UserID, isTyping)

	evType := EvtTypingStop
	if isTyping {
		evType = EvtTypingStart
	}
	g.hub.BroadcastToChannel(channel, Event{Type: evType, Data: ev}, client)
}

func parentChannel(msg *models.Message) string {
	if msg.ConversationID != nil {
		return ConversationChannel(*msg.ConversationID)
	}
	if msg.RoomID != nil {
		return RoomChannel(*msg.RoomID)
	}
	return ""
}

func reply(frame Frame, data any) *Event {
	return &Event{ID: frame.ID, Type: frame.Type, Data: data}
}

func errorReply(frame Frame, code, message string) *Event {
	return &Event{ID: frame.ID, Type: EvtError, Data: ErrorPayload{Code: code, Message: message}}
}

// errorFor maps the service error taxonomy onto wire error codes.
func (g *Gateway) errorFor(frame Frame, err error) *Event {
	var code string
	switch {
	case errors.Is(err, chat.ErrUnauthorized):
		code = "unauthorized"
	case errors.Is(err, chat.ErrNotFound):
		code = "not_found"
	case errors.Is(err, chat.ErrValidation):
		code = "validation"
	case errors.Is(err, chat.ErrCapacityExceeded):
		code = "capacity_exceeded"
	case errors.Is(err, chat.ErrAlreadyMember):
		code = "already_member"
	case errors.Is(err, chat.ErrNotAMember):
		code = "not_a_member"
	case errors.Is(err, chat.ErrDuplicateName):
		code = "duplicate_name"
	default:
		code = "internal"
		g.log.Error("request failed", zap.String("type", frame.Type), zap.Error(err))
	}
	return errorReply(frame, code, err.Error())
}
