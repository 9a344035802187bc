package auth

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/arnavshah/homestay-api/pkg/config"
	"github.com/arnavshah/homestay-api/pkg/database"
)

var jwtAlgorithm = jwt.SigningMethodHS256

// Claims represents the JWT claims
type Claims struct {
	Username string `json:"username"`
	jwt.RegisteredClaims
}

// Authenticator issues and verifies coordinator tokens and API keys
type Authenticator struct {
	jwtSecret    []byte
	masterSecret []byte
	expiration   time.Duration
	bcryptCost   int
}

// New builds an Authenticator from configuration
func New(cfg config.AuthConfig) *Authenticator {
	exp := cfg.JWTExpiration
	if exp <= 0 {
		exp = 24 * time.Hour
	}
	return &Authenticator{
		jwtSecret:    []byte(cfg.JWTSecret),
		masterSecret: []byte(cfg.APIMasterSecret),
		expiration:   exp,
		bcryptCost:   14,
	}
}

// HashPassword hashes a password using bcrypt
func (a *Authenticator) HashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), a.bcryptCost)
	return string(bytes), err
}

// CheckPasswordHash compares a password with its hash
func CheckPasswordHash(password, hash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	return err == nil
}

// CreateToken creates a new JWT token for a user
func (a *Authenticator) CreateToken(username string) (string, error) {
	claims := &Claims{
		Username: username,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(a.expiration)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}

	token := jwt.NewWithClaims(jwtAlgorithm, claims)
	return token.SignedString(a.jwtSecret)
}

// VerifyToken verifies a JWT token
func (a *Authenticator) VerifyToken(tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if token.Method != jwtAlgorithm {
			return nil, errors.New("unexpected signing method")
		}
		return a.jwtSecret, nil
	})

	if err != nil {
		return nil, err
	}

	if !token.Valid {
		return nil, errors.New("invalid token")
	}

	return claims, nil
}

// EnsureAdminExists creates the configured coordinator account when no admin exists yet
func (a *Authenticator) EnsureAdminExists(ctx context.Context, db *gorm.DB, username, password string) (bool, error) {
	var count int64
	if err := db.WithContext(ctx).Model(&database.MasterUser{}).Count(&count).Error; err != nil {
		return false, err
	}
	if count > 0 {
		return false, nil
	}

	hash, err := a.HashPassword(password)
	if err != nil {
		return false, err
	}

	user := database.MasterUser{
		Username:     username,
		PasswordHash: hash,
	}
	if err := db.WithContext(ctx).Create(&user).Error; err != nil {
		return false, err
	}
	return true, nil
}

// GenerateHMACKey creates a signed API key using HMAC-SHA256
func (a *Authenticator) GenerateHMACKey(userID string) string {
	return SignKey(a.masterSecret, userID)
}

// SignKey builds "<userID>.<hex hmac>" with the given secret
func SignKey(secret []byte, userID string) string {
	h := hmac.New(sha256.New, secret)
	h.Write([]byte(userID))
	return userID + "." + hex.EncodeToString(h.Sum(nil))
}

// VerifyHMACKey validates an HMAC-signed API key and returns its user ID
func (a *Authenticator) VerifyHMACKey(key string) (string, error) {
	idx := strings.LastIndex(key, ".")
	if idx <= 0 || idx == len(key)-1 {
		return "", errors.New("invalid key format")
	}

	userID := key[:idx]
	expected := SignKey(a.masterSecret, userID)

	// Constant-time comparison.
	if !hmac.Equal([]byte(key), []byte(expected)) {
		return "", errors.New("invalid signature")
	}

	return userID, nil
}

// KeyPreview masks all but the first and last characters of a key
func KeyPreview(key string) string {
	if len(key) <= 8 {
		return "****"
	}
	return key[:3] + "..." + key[len(key)-4:]
}
