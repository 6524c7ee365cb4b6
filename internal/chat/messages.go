package chat

import (
	"errors"
	"fmt"
	"time"

	"chat-server/internal/models"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const DefaultRecentLimit = 50

// MessageService validates, persists and queries chat messages. Fan-out to
// live connections is the gateway's job; this layer only mutates state.
type MessageService struct {
	db            *gorm.DB
	conversations *ConversationService
	rooms         *RoomService
	log           *zap.Logger
}

func NewMessageService(db *gorm.DB, conversations *ConversationService, rooms *RoomService, log *zap.Logger) *MessageService {
	return &MessageService{db: db, conversations: conversations, rooms: rooms, log: log}
}

type SendParams struct {
	Content        string
	Type           string
	ReplyToID      *uint
	AttachmentURL  string
	AttachmentName string
}

func validateSend(p *SendParams) error {
	if p.Type == "" {
		p.Type = models.MessageText
	}
	switch p.Type {
	case models.MessageText:
		if p.Content == "" {
			return fmt.Errorf("%w: content is required", ErrValidation)
		}
	case models.MessageSystem:
	case models.MessageImage, models.MessageFile:
		if p.AttachmentURL == "" {
			return fmt.Errorf("%w: attachment url is required for %s messages", ErrValidation, p.Type)
		}
	default:
		return fmt.Errorf("%w: unknown message type %q", ErrValidation, p.Type)
	}
	if len(p.Content) > models.MaxContentLen {
		return fmt.Errorf("%w: content exceeds %d characters", ErrValidation, models.MaxContentLen)
	}
	return nil
}

// SendToConversation persists a direct message, bumps the conversation's
// last-message reference and increments the other participant's unread
// counter. Persist and parent update are separate atomic steps; a crash in
// between leaves stale activity, not data loss.
func (s *MessageService) SendToConversation(conversationID, senderID uint, p SendParams) (*models.Message, error) {
	if err := validateSend(&p); err != nil {
		return nil, err
	}

	conv, err := s.conversations.GetByID(conversationID)
	if err != nil {
		return nil, err
	}
	if conv.UserAID != senderID && conv.UserBID != senderID {
		return nil, ErrUnauthorized
	}

	msg := models.Message{
		SenderID:       senderID,
		ConversationID: &conversationID,
		Type:           p.Type,
		Content:        p.Content,
		AttachmentURL:  p.AttachmentURL,
		AttachmentName: p.AttachmentName,
		ReplyToID:      p.ReplyToID,
	}
	if err := s.db.Create(&msg).Error; err != nil {
		return nil, err
	}

	if err := s.conversations.UpdateLastMessage(conversationID, msg.ID); err != nil {
		s.log.Warn("update last message failed",
			zap.Uint("conversation_id", conversationID), zap.Error(err))
	}
	other := OtherParticipant(conv, senderID)
	if err := s.conversations.IncrementUnread(conversationID, other); err != nil {
		s.log.Warn("increment unread failed",
			zap.Uint("conversation_id", conversationID), zap.Uint("user_id", other), zap.Error(err))
	}

	return s.Get(msg.ID)
}

// SendToRoom persists a room message and bumps the room's activity.
func (s *MessageService) SendToRoom(roomID, senderID uint, p SendParams) (*models.Message, error) {
	if err := validateSend(&p); err != nil {
		return nil, err
	}

	member, err := s.rooms.IsMember(roomID, senderID)
	if err != nil {
		return nil, err
	}
	if !member {
		return nil, ErrUnauthorized
	}

	msg := models.Message{
		SenderID:       senderID,
		RoomID:         &roomID,
		Type:           p.Type,
		Content:        p.Content,
		AttachmentURL:  p.AttachmentURL,
		AttachmentName: p.AttachmentName,
		ReplyToID:      p.ReplyToID,
	}
	if err := s.db.Create(&msg).Error; err != nil {
		return nil, err
	}

	if err := s.rooms.TouchActivity(roomID); err != nil {
		s.log.Warn("touch room activity failed", zap.Uint("room_id", roomID), zap.Error(err))
	}

	return s.Get(msg.ID)
}

// Get fetches a single message with sender and reply target resolved.
// Deleted messages are returned too so reply references stay resolvable.
func (s *MessageService) Get(messageID uint) (*models.Message, error) {
	var msg models.Message
	err := s.db.Preload("Sender").Preload("ReplyTo").Preload("Reads").
		First(&msg, messageID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("message %d: %w", messageID, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &msg, nil
}

// MarkRead appends a read entry for the user, who must belong to the
// message's conversation or room. Re-reading is a no-op: the
// (message, reader) pair is unique.
func (s *MessageService) MarkRead(messageID, userID uint) error {
	var msg models.Message
	if err := s.db.First(&msg, messageID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("message %d: %w", messageID, ErrNotFound)
		}
		return err
	}

	switch {
	case msg.ConversationID != nil:
		ok, err := s.conversations.IsParticipant(*msg.ConversationID, userID)
		if err != nil {
			return err
		}
		if !ok {
			return ErrUnauthorized
		}
	case msg.RoomID != nil:
		ok, err := s.rooms.IsMember(*msg.RoomID, userID)
		if err != nil {
			return err
		}
		if !ok {
			return ErrUnauthorized
		}
	}

	read := models.MessageRead{MessageID: messageID, UserID: userID, ReadAt: time.Now()}
	return s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "message_id"}, {Name: "user_id"}},
		DoNothing: true,
	}).Create(&read).Error
}

// Edit rewrites a message's content. Only the original sender may edit.
func (s *MessageService) Edit(messageID, editorID uint, newContent string) (*models.Message, error) {
	if newContent == "" || len(newContent) > models.MaxContentLen {
		return nil, fmt.Errorf("%w: content must be 1-%d characters", ErrValidation, models.MaxContentLen)
	}

	msg, err := s.Get(messageID)
	if err != nil {
		return nil, err
	}
	if msg.SenderID != editorID {
		return nil, ErrUnauthorized
	}
	if msg.Deleted {
		return nil, fmt.Errorf("%w: message is deleted", ErrValidation)
	}

	now := time.Now()
	err = s.db.Model(&models.Message{}).Where("id = ?", messageID).
		Updates(map[string]any{
			"content":   newContent,
			"edited":    true,
			"edited_at": now,
		}).Error
	if err != nil {
		return nil, err
	}
	return s.Get(messageID)
}

// SoftDelete replaces the content with the tombstone and flags the message.
// The row stays queryable for reply-reference display.
func (s *MessageService) SoftDelete(messageID, requesterID uint) (*models.Message, error) {
	msg, err := s.Get(messageID)
	if err != nil {
		return nil, err
	}
	if msg.SenderID != requesterID {
		return nil, ErrUnauthorized
	}

	now := time.Now()
	err = s.db.Model(&models.Message{}).Where("id = ?", messageID).
		Updates(map[string]any{
			"content":    models.Tombstone,
			"deleted":    true,
			"deleted_at": now,
		}).Error
	if err != nil {
		return nil, err
	}
	return s.Get(messageID)
}

// RecentInConversation returns the newest non-deleted messages, newest first.
func (s *MessageService) RecentInConversation(conversationID uint, limit int) ([]models.Message, error) {
	return s.recent("conversation_id", conversationID, limit)
}

// RecentInRoom returns the newest non-deleted room messages, newest first.
func (s *MessageService) RecentInRoom(roomID uint, limit int) ([]models.Message, error) {
	return s.recent("room_id", roomID, limit)
}

func (s *MessageService) recent(parentColumn string, parentID uint, limit int) ([]models.Message, error) {
	if limit <= 0 {
		limit = DefaultRecentLimit
	}
	var msgs []models.Message
	err := s.db.Preload("Sender").Preload("ReplyTo").Preload("Reads").
		Where(parentColumn+" = ? AND deleted = ?", parentID, false).
		Order("created_at DESC").Order("id DESC").
		Limit(limit).
		Find(&msgs).Error
	if err != nil {
		return nil, err
	}
	return msgs, nil
}

// UnreadInConversation counts messages the user has neither sent nor read,
// excluding deleted ones.
func (s *MessageService) UnreadInConversation(conversationID, userID uint) (int64, error) {
	return s.unread("conversation_id", conversationID, userID)
}

func (s *MessageService) UnreadInRoom(roomID, userID uint) (int64, error) {
	return s.unread("room_id", roomID, userID)
}

func (s *MessageService) unread(parentColumn string, parentID, userID uint) (int64, error) {
	var count int64
	err := s.db.Model(&models.Message{}).
		Where(parentColumn+" = ? AND sender_id <> ? AND deleted = ?", parentID, userID, false).
		Where("NOT EXISTS (SELECT 1 FROM message_reads mr WHERE mr.message_id = messages.id AND mr.user_id = ?)", userID).
		Count(&count).Error
	return count, err
}
