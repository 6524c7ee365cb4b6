package chat

import (
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"time"

	"chat-server/internal/models"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Alphabet for invite codes. Ambiguous characters (0/O, 1/I/L) are left out.
const inviteAlphabet = "ABCDEFGHJKMNPQRSTUVWXYZ23456789"

const inviteCodeLen = 8

// RoomService owns multi-member rooms: membership, roles, capacity and
// invite codes.
type RoomService struct {
	db  *gorm.DB
	log *zap.Logger
}

func NewRoomService(db *gorm.DB, log *zap.Logger) *RoomService {
	return &RoomService{db: db, log: log}
}

type CreateRoomParams struct {
	Name        string
	Description string
	Private     bool
	MaxMembers  int
	Category    string
}

// Create makes a new room with the creator as its owner and first member.
// Private rooms get a globally unique invite code.
func (s *RoomService) Create(ownerID uint, p CreateRoomParams) (*models.Room, error) {
	if len(p.Name) == 0 || len(p.Name) > 100 {
		return nil, fmt.Errorf("%w: room name must be 1-100 characters", ErrValidation)
	}
	if p.MaxMembers == 0 {
		p.MaxMembers = models.DefaultMaxMembers
	}
	if p.MaxMembers < models.MinMaxMembers || p.MaxMembers > models.MaxMaxMembers {
		return nil, fmt.Errorf("%w: max members must be between %d and %d",
			ErrValidation, models.MinMaxMembers, models.MaxMaxMembers)
	}
	if p.Category == "" {
		p.Category = "general"
	}

	var count int64
	if err := s.db.Model(&models.Room{}).Where("name = ?", p.Name).Count(&count).Error; err != nil {
		return nil, err
	}
	if count > 0 {
		return nil, fmt.Errorf("room %q: %w", p.Name, ErrDuplicateName)
	}

	room := models.Room{
		Name:           p.Name,
		OwnerID:        ownerID,
		Description:    p.Description,
		Private:        p.Private,
		MaxMembers:     p.MaxMembers,
		Category:       p.Category,
		Active:         true,
		LastActivityAt: time.Now(),
	}
	if p.Private {
		code, err := s.generateInviteCode()
		if err != nil {
			return nil, err
		}
		room.InviteCode = &code
	}

	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&room).Error; err != nil {
			return err
		}
		member := models.RoomMember{
			RoomID:   room.ID,
			UserID:   ownerID,
			Role:     models.RoleOwner,
			JoinedAt: time.Now(),
		}
		return tx.Create(&member).Error
	})
	if err != nil {
		return nil, err
	}

	return s.Get(room.ID)
}

// generateInviteCode draws 8 characters from the unambiguous alphabet and
// retries on the rare collision with an existing code.
func (s *RoomService) generateInviteCode() (string, error) {
	for attempt := 0; attempt < 5; attempt++ {
		buf := make([]byte, inviteCodeLen)
		for i := range buf {
			n, err := rand.Int(rand.Reader, big.NewInt(int64(len(inviteAlphabet))))
			if err != nil {
				return "", err
			}
			buf[i] = inviteAlphabet[n.Int64()]
		}
		code := string(buf)

		var count int64
		if err := s.db.Model(&models.Room{}).Where("invite_code = ?", code).Count(&count).Error; err != nil {
			return "", err
		}
		if count == 0 {
			return code, nil
		}
	}
	return "", fmt.Errorf("invite code: %w", ErrDuplicateName)
}

func (s *RoomService) Get(roomID uint) (*models.Room, error) {
	var room models.Room
	err := s.db.Preload("Members").First(&room, roomID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("room %d: %w", roomID, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &room, nil
}

// GetByInviteCode resolves a private room from its invite code.
func (s *RoomService) GetByInviteCode(code string) (*models.Room, error) {
	var room models.Room
	err := s.db.Preload("Members").Where("invite_code = ?", code).First(&room).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("invite code: %w", ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &room, nil
}

// AddMember joins a user to a room. The capacity check is read-then-write:
// two near-simultaneous joins can both pass it, a known narrow race kept
// from the original design.
func (s *RoomService) AddMember(roomID, userID uint, role string) error {
	if role != models.RoleAdmin && role != models.RoleMember {
		return fmt.Errorf("%w: invalid role %q", ErrValidation, role)
	}

	room, err := s.Get(roomID)
	if err != nil {
		return err
	}
	if !room.Active {
		return fmt.Errorf("room %d: %w", roomID, ErrNotFound)
	}
	for _, m := range room.Members {
		if m.UserID == userID {
			return ErrAlreadyMember
		}
	}
	if len(room.Members) >= room.MaxMembers {
		return ErrCapacityExceeded
	}

	member := models.RoomMember{
		RoomID:   roomID,
		UserID:   userID,
		Role:     role,
		JoinedAt: time.Now(),
	}
	return s.db.Create(&member).Error
}

func (s *RoomService) RemoveMember(roomID, userID uint) error {
	res := s.db.Where("room_id = ? AND user_id = ?", roomID, userID).
		Delete(&models.RoomMember{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotAMember
	}
	return nil
}

func (s *RoomService) UpdateMemberRole(roomID, userID uint, role string) error {
	if role != models.RoleOwner && role != models.RoleAdmin && role != models.RoleMember {
		return fmt.Errorf("%w: invalid role %q", ErrValidation, role)
	}
	res := s.db.Model(&models.RoomMember{}).
		Where("room_id = ? AND user_id = ?", roomID, userID).
		UpdateColumn("role", role)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotAMember
	}
	return nil
}

func (s *RoomService) IsMember(roomID, userID uint) (bool, error) {
	var count int64
	err := s.db.Model(&models.RoomMember{}).
		Where("room_id = ? AND user_id = ?", roomID, userID).
		Count(&count).Error
	return count > 0, err
}

func (s *RoomService) IsAdminOrOwner(roomID, userID uint) (bool, error) {
	var count int64
	err := s.db.Model(&models.RoomMember{}).
		Where("room_id = ? AND user_id = ? AND role IN ?",
			roomID, userID, []string{models.RoleOwner, models.RoleAdmin}).
		Count(&count).Error
	return count > 0, err
}

// TouchActivity bumps the room's last-activity timestamp.
func (s *RoomService) TouchActivity(roomID uint) error {
	return s.db.Model(&models.Room{}).
		Where("id = ?", roomID).
		UpdateColumn("last_activity_at", time.Now()).Error
}

// Deactivate soft-disables a room instead of deleting it.
func (s *RoomService) Deactivate(roomID uint) error {
	res := s.db.Model(&models.Room{}).
		Where("id = ?", roomID).
		UpdateColumn("active", false)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("room %d: %w", roomID, ErrNotFound)
	}
	return nil
}

// List returns active rooms visible to the user: every public room plus the
// private rooms the user belongs to, most recently active first.
func (s *RoomService) List(userID uint) ([]models.Room, error) {
	var rooms []models.Room
	err := s.db.Preload("Members").
		Where("active = ?", true).
		Where("private = ? OR id IN (?)", false,
			s.db.Model(&models.RoomMember{}).Select("room_id").Where("user_id = ?", userID)).
		Order("last_activity_at DESC").
		Find(&rooms).Error
	if err != nil {
		return nil, err
	}
	return rooms, nil
}
