package models

import "time"

const (
	StatusOnline  = "online"
	StatusOffline = "offline"
)

type User struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	Name         string    `gorm:"size:120;not null" json:"name"`
	Handle       string    `gorm:"size:60;uniqueIndex;not null" json:"handle"`
	Email        string    `gorm:"size:190;uniqueIndex;not null" json:"email"`
	PasswordHash string    `gorm:"size:255;not null" json:"-"`
	Status       string    `gorm:"size:20;not null;default:offline" json:"status"`
	LastSeenAt   time.Time `json:"last_seen_at"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Conversation is a direct thread between exactly two users. The pair is
// stored in canonical order (UserAID < UserBID) so (A,B) and (B,A) hit the
// same unique index entry.
type Conversation struct {
	ID             uint      `gorm:"primaryKey" json:"id"`
	UserAID        uint      `gorm:"uniqueIndex:idx_conversation_pair;not null" json:"user_a_id"`
	UserBID        uint      `gorm:"uniqueIndex:idx_conversation_pair;not null" json:"user_b_id"`
	LastMessageID  *uint     `json:"last_message_id,omitempty"`
	LastActivityAt time.Time `gorm:"index" json:"last_activity_at"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`

	States      []ConversationState `gorm:"foreignKey:ConversationID" json:"states,omitempty"`
	LastMessage *Message            `gorm:"foreignKey:LastMessageID" json:"last_message,omitempty"`
}

// ConversationState holds one participant's derived view of a conversation.
// Both rows are created together with the conversation, never independently.
type ConversationState struct {
	ID             uint `gorm:"primaryKey" json:"id"`
	ConversationID uint `gorm:"uniqueIndex:idx_conversation_user;not null" json:"conversation_id"`
	UserID         uint `gorm:"uniqueIndex:idx_conversation_user;not null" json:"user_id"`
	UnreadCount    int  `gorm:"not null;default:0" json:"unread_count"`
	Archived       bool `gorm:"not null;default:false" json:"archived"`
	Pinned         bool `gorm:"not null;default:false" json:"pinned"`
}

const (
	RoleOwner  = "owner"
	RoleAdmin  = "admin"
	RoleMember = "member"

	DefaultMaxMembers = 100
	MinMaxMembers     = 2
	MaxMaxMembers     = 1000
)

type Room struct {
	ID             uint      `gorm:"primaryKey" json:"id"`
	Name           string    `gorm:"size:100;uniqueIndex;not null" json:"name"`
	OwnerID        uint      `gorm:"index;not null" json:"owner_id"`
	Description    string    `gorm:"size:500" json:"description"`
	Private        bool      `gorm:"not null;default:false" json:"private"`
	InviteCode     *string   `gorm:"size:8;uniqueIndex" json:"invite_code,omitempty"`
	MaxMembers     int       `gorm:"not null;default:100" json:"max_members"`
	Category       string    `gorm:"size:50;default:general" json:"category"`
	Active         bool      `gorm:"not null;default:true" json:"active"`
	LastActivityAt time.Time `gorm:"index" json:"last_activity_at"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`

	Members []RoomMember `gorm:"foreignKey:RoomID" json:"members,omitempty"`
}

type RoomMember struct {
	ID       uint      `gorm:"primaryKey" json:"id"`
	RoomID   uint      `gorm:"uniqueIndex:idx_room_user;not null" json:"room_id"`
	UserID   uint      `gorm:"uniqueIndex:idx_room_user;not null" json:"user_id"`
	Role     string    `gorm:"size:20;not null;default:member" json:"role"`
	JoinedAt time.Time `json:"joined_at"`
}

const (
	MessageText   = "text"
	MessageImage  = "image"
	MessageFile   = "file"
	MessageSystem = "system"

	MaxContentLen = 5000

	// Tombstone replaces the content of soft-deleted messages.
	Tombstone = "This message was deleted"
)

// Message belongs to exactly one of a conversation or a room.
type Message struct {
	ID             uint       `gorm:"primaryKey" json:"id"`
	SenderID       uint       `gorm:"index;not null" json:"sender_id"`
	ConversationID *uint      `gorm:"index" json:"conversation_id,omitempty"`
	RoomID         *uint      `gorm:"index" json:"room_id,omitempty"`
	Type           string     `gorm:"size:20;not null;default:text" json:"type"`
	Content        string     `gorm:"type:text" json:"content"`
	AttachmentURL  string     `gorm:"size:500" json:"attachment_url,omitempty"`
	AttachmentName string     `gorm:"size:255" json:"attachment_name,omitempty"`
	Edited         bool       `gorm:"not null;default:false" json:"edited"`
	EditedAt       *time.Time `json:"edited_at,omitempty"`
	Deleted        bool       `gorm:"not null;default:false;index" json:"deleted"`
	DeletedAt      *time.Time `json:"deleted_at,omitempty"`
	ReplyToID      *uint      `json:"reply_to_id,omitempty"`
	CreatedAt      time.Time  `gorm:"index" json:"created_at"`

	Sender  *User         `gorm:"foreignKey:SenderID" json:"sender,omitempty"`
	ReplyTo *Message      `gorm:"foreignKey:ReplyToID" json:"reply_to,omitempty"`
	Reads   []MessageRead `gorm:"foreignKey:MessageID" json:"reads,omitempty"`
}

type MessageRead struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	MessageID uint      `gorm:"uniqueIndex:idx_message_reader;not null" json:"message_id"`
	UserID    uint      `gorm:"uniqueIndex:idx_message_reader;not null" json:"user_id"`
	ReadAt    time.Time `json:"read_at"`
}
