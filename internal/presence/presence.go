package presence

import (
	"sync"
	"time"

	"chat-server/internal/models"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Tracker records which users currently have a live connection and mirrors
// the status into the persistent user record. Each connection toggles the
// user's global status independently: a disconnect on one device marks the
// user offline even if another device is still connected.
type Tracker struct {
	db  *gorm.DB
	log *zap.Logger

	mu     sync.RWMutex
	online map[uint]struct{}
}

func NewTracker(db *gorm.DB, log *zap.Logger) *Tracker {
	return &Tracker{db: db, log: log, online: make(map[uint]struct{})}
}

func (t *Tracker) MarkOnline(userID uint) {
	t.mu.Lock()
	t.online[userID] = struct{}{}
	t.mu.Unlock()

	t.persistStatus(userID, models.StatusOnline)
}

func (t *Tracker) MarkOffline(userID uint) {
	t.mu.Lock()
	delete(t.online, userID)
	t.mu.Unlock()

	t.persistStatus(userID, models.StatusOffline)
}

func (t *Tracker) IsOnline(userID uint) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	_, ok := t.online[userID]
	return ok
}

func (t *Tracker) persistStatus(userID uint, status string) {
	err := t.db.Model(&models.User{}).
		Where("id = ?", userID).
		Updates(map[string]any{
			"status":       status,
			"last_seen_at": time.Now(),
		}).Error
	if err != nil {
		t.log.Warn("persist presence failed",
			zap.Uint("user_id", userID), zap.String("status", status), zap.Error(err))
	}
}
