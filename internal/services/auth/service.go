// Package auth gates the staff roles behind a bcrypt-checked password and signed
// session tokens carrying the role claim.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"smart-store/internal/config"
	"smart-store/internal/models"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidToken       = errors.New("invalid session token")
	ErrNotStaff           = errors.New("role does not require a session")
)

const issuer = "smart-store"

// Claims are the session token claims
type Claims struct {
	Role models.Role `json:"role"`
	jwt.RegisteredClaims
}

// Session is handed back to a tab after a successful staff login
type Session struct {
	Token     string      `json:"token"`
	Role      models.Role `json:"role"`
	ExpiresAt time.Time   `json:"expires_at"`
}

// Service checks the staff password and issues and verifies session tokens
type Service struct {
	passwordHash []byte
	secret       []byte
	ttl          time.Duration
	now          func() time.Time
}

// NewService hashes the configured plain password unless a bcrypt hash is given
func NewService(cfg config.AuthConfig) (*Service, error) {
	hash := []byte(cfg.StaffPasswordHash)
	if len(hash) == 0 {
		var err error
		hash, err = bcrypt.GenerateFromPassword([]byte(cfg.StaffPassword), bcrypt.DefaultCost)
		if err != nil {
			return nil, fmt.Errorf("failed to hash staff password: %w", err)
		}
	} else if _, err := bcrypt.Cost(hash); err != nil {
		return nil, fmt.Errorf("invalid staff password hash: %w", err)
	}

	ttl := cfg.TokenTTL
	if ttl <= 0 {
		ttl = 12 * time.Hour
	}

	return &Service{
		passwordHash: hash,
		secret:       []byte(cfg.TokenSecret),
		ttl:          ttl,
		now:          time.Now,
	}, nil
}

// Login verifies the staff password and returns a session for role
func (s *Service) Login(password string, role models.Role) (Session, error) {
	if !role.IsStaff() {
		return Session{}, ErrNotStaff
	}
	if err := bcrypt.CompareHashAndPassword(s.passwordHash, []byte(password)); err != nil {
		return Session{}, ErrInvalidCredentials
	}

	now := s.now()
	expires := now.Add(s.ttl)
	claims := Claims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expires),
		},
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return Session{}, fmt.Errorf("failed to sign token: %w", err)
	}

	return Session{Token: token, Role: role, ExpiresAt: expires.UTC()}, nil
}

// Verify parses a session token and returns its role
func (s *Service) Verify(tokenString string) (models.Role, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.secret, nil
	}, jwt.WithIssuer(issuer), jwt.WithTimeFunc(s.now))
	if err != nil || !token.Valid {
		return "", fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	role, err := models.ParseRole(string(claims.Role))
	if err != nil || !role.IsStaff() {
		return "", fmt.Errorf("%w: bad role claim", ErrInvalidToken)
	}
	return role, nil
}
