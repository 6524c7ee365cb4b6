package handlers

import (
	"net/http"

	"chat-server/internal/http/middleware"
	"chat-server/internal/models"
	"chat-server/internal/presence"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

type UserHandler struct {
	DB       *gorm.DB
	Presence *presence.Tracker
}

func (h *UserHandler) Me(c *gin.Context) {
	userID := middleware.MustUserID(c)

	var u models.User
	if err := h.DB.First(&u, userID).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"message": "user not found"})
		return
	}
	c.JSON(http.StatusOK, u)
}

// Lookup finds a user by handle, for starting a conversation with someone
// whose id you do not know yet.
func (h *UserHandler) Lookup(c *gin.Context) {
	handle := c.Query("handle")
	if handle == "" {
		c.JSON(http.StatusBadRequest, gin.H{"message": "handle is required"})
		return
	}

	var u models.User
	if err := h.DB.Where("handle = ?", handle).First(&u).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"message": "user not found"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"id":     u.ID,
		"name":   u.Name,
		"handle": u.Handle,
		"online": h.Presence.IsOnline(u.ID),
	})
}
