package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

type TokenType string

const (
	TokenTypeAccess  TokenType = "access"
	TokenTypeRefresh TokenType = "refresh"
)

// Identity is the claim set copied from the user record into every token.
type Identity struct {
	UserID uuid.UUID `json:"user_id"`
	Email  string    `json:"email"`
	Role   string    `json:"role"`
}

type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

// RefreshTokenRecord is persisted in the session store, keyed by the raw
// refresh-token string. The store owns it exclusively.
type RefreshTokenRecord struct {
	UserID    uuid.UUID `json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// ResetTokenRecord is a single-use password-reset record keyed by a random
// token string.
type ResetTokenRecord struct {
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// tokenClaims is the wire shape of both token classes. TokenType prevents
// cross-use of a refresh token as an access token; Version is compared
// against the configured token version at verify time.
type tokenClaims struct {
	Email     string    `json:"email"`
	Role      string    `json:"role"`
	TokenType TokenType `json:"token_type"`
	Version   int       `json:"version"`
	jwt.RegisteredClaims
}

// TokenInfo is the unverified view returned by Peek. Display only; nothing
// here is trusted.
type TokenInfo struct {
	UserID    string     `json:"user_id"`
	Email     string     `json:"email"`
	TokenType TokenType  `json:"token_type"`
	JTI       string     `json:"jti,omitempty"`
	IssuedAt  *time.Time `json:"issued_at,omitempty"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}
