package database

import (
	"chat-server/internal/models"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"
)

func ConnectMySQL(dsn string) (*gorm.DB, error) {
	return gorm.Open(mysql.Open(dsn), &gorm.Config{})
}

// Migrate creates or updates the schema for every entity the server owns.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.User{},
		&models.Conversation{},
		&models.ConversationState{},
		&models.Room{},
		&models.RoomMember{},
		&models.Message{},
		&models.MessageRead{},
	)
}
