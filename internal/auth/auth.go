package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var ErrInvalidCredential = errors.New("invalid credential")

// Identity is the result of verifying a bearer credential.
type Identity struct {
	UserID uint
	Email  string
}

// Verifier turns a bearer credential into a user identity. The gateway and
// the HTTP middleware depend on this interface rather than on JWT directly.
type Verifier interface {
	Verify(credential string) (Identity, error)
}

type Claims struct {
	UserID uint   `json:"user_id"`
	Email  string `json:"email"`
	jwt.RegisteredClaims
}

// TokenService issues and verifies HMAC-signed bearer tokens.
type TokenService struct {
	secret []byte
	ttl    time.Duration
}

func NewTokenService(secret string, ttl time.Duration) *TokenService {
	return &TokenService{secret: []byte(secret), ttl: ttl}
}

func (s *TokenService) Issue(userID uint, email string) (string, error) {
	now := time.Now()
	claims := Claims{
		UserID: userID,
		Email:  email,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.secret)
}

func (s *TokenService) Verify(credential string) (Identity, error) {
	token, err := jwt.ParseWithClaims(credential, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		return s.secret, nil
	})
	if err != nil || !token.Valid {
		return Identity{}, ErrInvalidCredential
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || claims.UserID == 0 {
		return Identity{}, ErrInvalidCredential
	}
	return Identity{UserID: claims.UserID, Email: claims.Email}, nil
}
