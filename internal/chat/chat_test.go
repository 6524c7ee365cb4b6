package chat

import (
	"testing"

	"chat-server/internal/models"

	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// newTestDB opens an in-memory sqlite database with the full schema.
// The pool is pinned to one connection so every query sees the same
// in-memory database.
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{
		Logger: logger.Discard,
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("db handle: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)

	if err := db.AutoMigrate(
		&models.User{},
		&models.Conversation{},
		&models.ConversationState{},
		&models.Room{},
		&models.RoomMember{},
		&models.Message{},
		&models.MessageRead{},
	); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func seedUser(t *testing.T, db *gorm.DB, name, handle string) *models.User {
	t.Helper()

	u := models.User{
		Name:         name,
		Handle:       handle,
		Email:        handle + "@example.com",
		PasswordHash: "x",
		Status:       models.StatusOffline,
	}
	if err := db.Create(&u).Error; err != nil {
		t.Fatalf("seed user %s: %v", handle, err)
	}
	return &u
}

func newServices(t *testing.T) (*gorm.DB, *ConversationService, *RoomService, *MessageService) {
	t.Helper()

	db := newTestDB(t)
	log := zap.NewNop()
	conversations := NewConversationService(db, log)
	rooms := NewRoomService(db, log)
	messages := NewMessageService(db, conversations, rooms, log)
	return db, conversations, rooms, messages
}
