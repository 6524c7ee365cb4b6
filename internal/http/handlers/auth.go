package handlers

import (
	"net/http"

	"chat-server/internal/auth"
	"chat-server/internal/models"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

type AuthHandler struct {
	DB     *gorm.DB
	Tokens *auth.TokenService
	Log    *zap.Logger
}

type registerReq struct {
	Name     string `json:"name" binding:"required"`
	Handle   string `json:"handle" binding:"required,min=2,max=60"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=6"`
}

func (h *AuthHandler) Register(c *gin.Context) {
	var req registerReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "invalid body", "error": err.Error()})
		return
	}

	hash, _ := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)

	u := models.User{
		Name:         req.Name,
		Handle:       req.Handle,
		Email:        req.Email,
		PasswordHash: string(hash),
		Status:       models.StatusOffline,
	}

	if err := h.DB.Create(&u).Error; err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "failed create user", "error": err.Error()})
		return
	}
	h.Log.Info("user registered", zap.Uint("user_id", u.ID), zap.String("handle", u.Handle))

	c.JSON(http.StatusCreated, gin.H{
		"id":     u.ID,
		"name":   u.Name,
		"handle": u.Handle,
		"email":  u.Email,
	})
}

type loginReq struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

func (h *AuthHandler) Login(c *gin.Context) {
	var req loginReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "invalid body", "error": err.Error()})
		return
	}

	var u models.User
	if err := h.DB.Where("email = ?", req.Email).First(&u).Error; err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"message": "wrong email/password"})
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(req.Password)); err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"message": "wrong email/password"})
		return
	}

	tokenStr, err := h.Tokens.Issue(u.ID, u.Email)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"message": "failed to issue token"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"access_token": tokenStr,
		"user": gin.H{
			"id":     u.ID,
			"name":   u.Name,
			"handle": u.Handle,
			"email":  u.Email,
		},
	})
}
