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

// ConversationService owns direct-conversation state: the canonical user
// pair, per-participant unread counters and archive/pin flags.
type ConversationService struct {
	db  *gorm.DB
	log *zap.Logger
}

func NewConversationService(db *gorm.DB, log *zap.Logger) *ConversationService {
	return &ConversationService{db: db, log: log}
}

// canonicalPair orders a user pair so (A,B) and (B,A) address the same row.
func canonicalPair(userA, userB uint) (uint, uint) {
	if userA > userB {
		return userB, userA
	}
	return userA, userB
}

// FindOrCreate resolves the conversation between two users, creating it on
// first contact. Concurrent calls for the same pair race on the unique pair
// index; the loser re-fetches the winner's row. Both participant state rows
// are created together with the conversation.
func (s *ConversationService) FindOrCreate(userID, otherUserID uint) (*models.Conversation, error) {
	if userID == otherUserID {
		return nil, fmt.Errorf("%w: cannot start a conversation with yourself", ErrValidation)
	}

	var other models.User
	if err := s.db.First(&other, otherUserID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("user %d: %w", otherUserID, ErrNotFound)
		}
		return nil, err
	}

	a, b := canonicalPair(userID, otherUserID)
	conv := models.Conversation{UserAID: a, UserBID: b, LastActivityAt: time.Now()}

	err := s.db.Transaction(func(tx *gorm.DB) error {
		res := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_a_id"}, {Name: "user_b_id"}},
			DoNothing: true,
		}).Create(&conv)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			// Lost the upsert race or the pair already existed.
			return nil
		}
		states := []models.ConversationState{
			{ConversationID: conv.ID, UserID: a},
			{ConversationID: conv.ID, UserID: b},
		}
		return tx.Create(&states).Error
	})
	if err != nil {
		return nil, err
	}

	return s.Get(a, b)
}

// Get looks up the conversation for a (canonicalized) pair.
func (s *ConversationService) Get(userA, userB uint) (*models.Conversation, error) {
	a, b := canonicalPair(userA, userB)
	var conv models.Conversation
	err := s.db.Preload("States").Preload("LastMessage").
		Where("user_a_id = ? AND user_b_id = ?", a, b).
		First(&conv).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &conv, nil
}

func (s *ConversationService) GetByID(conversationID uint) (*models.Conversation, error) {
	var conv models.Conversation
	err := s.db.Preload("States").First(&conv, conversationID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("conversation %d: %w", conversationID, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &conv, nil
}

func (s *ConversationService) IsParticipant(conversationID, userID uint) (bool, error) {
	conv, err := s.GetByID(conversationID)
	if err != nil {
		return false, err
	}
	return conv.UserAID == userID || conv.UserBID == userID, nil
}

// OtherParticipant returns the peer of userID in the conversation.
func OtherParticipant(conv *models.Conversation, userID uint) uint {
	if conv.UserAID == userID {
		return conv.UserBID
	}
	return conv.UserAID
}

// UpdateLastMessage sets the last-message reference and bumps activity.
func (s *ConversationService) UpdateLastMessage(conversationID, messageID uint) error {
	return s.db.Model(&models.Conversation{}).
		Where("id = ?", conversationID).
		Updates(map[string]any{
			"last_message_id":  messageID,
			"last_activity_at": time.Now(),
		}).Error
}

func (s *ConversationService) IncrementUnread(conversationID, userID uint) error {
	return s.db.Model(&models.ConversationState{}).
		Where("conversation_id = ? AND user_id = ?", conversationID, userID).
		UpdateColumn("unread_count", gorm.Expr("unread_count + 1")).Error
}

func (s *ConversationService) ResetUnread(conversationID, userID uint) error {
	return s.db.Model(&models.ConversationState{}).
		Where("conversation_id = ? AND user_id = ?", conversationID, userID).
		UpdateColumn("unread_count", 0).Error
}

func (s *ConversationService) UnreadCount(conversationID, userID uint) (int, error) {
	st, err := s.state(conversationID, userID)
	if err != nil {
		return 0, err
	}
	return st.UnreadCount, nil
}

func (s *ConversationService) SetArchived(conversationID, userID uint, archived bool) error {
	return s.setFlag(conversationID, userID, "archived", archived)
}

func (s *ConversationService) SetPinned(conversationID, userID uint, pinned bool) error {
	return s.setFlag(conversationID, userID, "pinned", pinned)
}

func (s *ConversationService) IsArchivedFor(conversationID, userID uint) (bool, error) {
	st, err := s.state(conversationID, userID)
	if err != nil {
		return false, err
	}
	return st.Archived, nil
}

func (s *ConversationService) IsPinnedFor(conversationID, userID uint) (bool, error) {
	st, err := s.state(conversationID, userID)
	if err != nil {
		return false, err
	}
	return st.Pinned, nil
}

func (s *ConversationService) setFlag(conversationID, userID uint, column string, value bool) error {
	res := s.db.Model(&models.ConversationState{}).
		Where("conversation_id = ? AND user_id = ?", conversationID, userID).
		UpdateColumn(column, value)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *ConversationService) state(conversationID, userID uint) (*models.ConversationState, error) {
	var st models.ConversationState
	err := s.db.Where("conversation_id = ? AND user_id = ?", conversationID, userID).
		First(&st).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &st, nil
}

// List returns the user's conversations ordered by last activity descending,
// with conversations the user has pinned ahead of the rest.
func (s *ConversationService) List(userID uint, includeArchived bool) ([]models.Conversation, error) {
	q := s.db.Model(&models.Conversation{}).
		Joins("JOIN conversation_states cs ON cs.conversation_id = conversations.id").
		Where("cs.user_id = ?", userID)
	if !includeArchived {
		q = q.Where("cs.archived = ?", false)
	}

	var convs []models.Conversation
	err := q.Order("cs.pinned DESC").
		Order("conversations.last_activity_at DESC").
		Preload("States").
		Preload("LastMessage").
		Find(&convs).Error
	if err != nil {
		return nil, err
	}
	return convs, nil
}
