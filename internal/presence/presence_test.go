package presence

import (
	"testing"

	"chat-server/internal/models"

	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTracker(t *testing.T) (*Tracker, *gorm.DB) {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{
		Logger: logger.Discard,
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, _ := db.DB()
	sqlDB.SetMaxOpenConns(1)
	if err := db.AutoMigrate(&models.User{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return NewTracker(db, zap.NewNop()), db
}

func TestMarkOnlineOffline(t *testing.T) {
	tracker, db := newTracker(t)

	u := models.User{Name: "Alice", Handle: "alice", Email: "alice@example.com", PasswordHash: "x", Status: models.StatusOffline}
	if err := db.Create(&u).Error; err != nil {
		t.Fatalf("seed: %v", err)
	}

	if tracker.IsOnline(u.ID) {
		t.Error("user online before connecting")
	}

	tracker.MarkOnline(u.ID)
	if !tracker.IsOnline(u.ID) {
		t.Error("user not online after MarkOnline")
	}
	var got models.User
	db.First(&got, u.ID)
	if got.Status != models.StatusOnline {
		t.Errorf("persisted status = %q, want online", got.Status)
	}

	tracker.MarkOffline(u.ID)
	if tracker.IsOnline(u.ID) {
		t.Error("user still online after MarkOffline")
	}
	db.First(&got, u.ID)
	if got.Status != models.StatusOffline {
		t.Errorf("persisted status = %q, want offline", got.Status)
	}
	if got.LastSeenAt.IsZero() {
		t.Error("last seen not updated")
	}
}

// Connections are not deduplicated per user: the second device's disconnect
// flips the global status even while the first is still connected.
func TestPerConnectionToggle(t *testing.T) {
	tracker, db := newTracker(t)

	u := models.User{Name: "Bob", Handle: "bob", Email: "bob@example.com", PasswordHash: "x", Status: models.StatusOffline}
	db.Create(&u)

	tracker.MarkOnline(u.ID) // device 1
	tracker.MarkOnline(u.ID) // device 2
	tracker.MarkOffline(u.ID)

	if tracker.IsOnline(u.ID) {
		t.Error("single disconnect should mark the user offline")
	}
}
