package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// MinSecretLen is the minimum signing-secret length the codec accepts.
// Refusing short secrets at construction fails fast instead of per request.
const MinSecretLen = 32

const (
	defaultIssuer   = "crealith"
	defaultAudience = "crealith-api"
)

var signingMethod = jwt.SigningMethodHS512

type CodecConfig struct {
	AccessSecret  []byte `mapstructure:"-" json:"-"`
	RefreshSecret []byte `mapstructure:"-" json:"-"`

	AccessTokenTTL  time.Duration `mapstructure:"access_token_ttl" json:"access_token_ttl"`
	RefreshTokenTTL time.Duration `mapstructure:"refresh_token_ttl" json:"refresh_token_ttl"`

	Issuer   string `mapstructure:"issuer" json:"issuer"`
	Audience string `mapstructure:"audience" json:"audience"`

	// TokenVersion is a deploy-time kill switch: bumping it invalidates
	// every previously issued token without touching the store.
	TokenVersion int `mapstructure:"token_version" json:"token_version"`
}

// TokenCodec produces and validates signed, typed tokens. Access and refresh
// tokens are signed with independent secrets, so a leaked access secret
// cannot mint refresh tokens. The codec never persists anything.
type TokenCodec struct {
	cfg   CodecConfig
	ids   UUIDGenerator
	clock TimeGenerator
}

func NewTokenCodec(cfg CodecConfig, ids UUIDGenerator, clock TimeGenerator) (*TokenCodec, error) {
	if len(cfg.AccessSecret) < MinSecretLen || len(cfg.RefreshSecret) < MinSecretLen {
		return nil, fmt.Errorf("auth.NewTokenCodec: signing secrets must be at least %d bytes", MinSecretLen)
	}
	if string(cfg.AccessSecret) == string(cfg.RefreshSecret) {
		return nil, fmt.Errorf("auth.NewTokenCodec: access and refresh secrets must differ")
	}
	if cfg.AccessTokenTTL <= 0 || cfg.RefreshTokenTTL <= 0 {
		return nil, fmt.Errorf("auth.NewTokenCodec: token TTLs must be positive")
	}
	if ids == nil || clock == nil {
		return nil, fmt.Errorf("auth.NewTokenCodec: nil dependency")
	}
	if cfg.Issuer == "" {
		cfg.Issuer = defaultIssuer
	}
	if cfg.Audience == "" {
		cfg.Audience = defaultAudience
	}

	return &TokenCodec{cfg: cfg, ids: ids, clock: clock}, nil
}

func (c *TokenCodec) IssueAccess(id Identity) (string, error) {
	token, err := c.sign(id, TokenTypeAccess, c.cfg.AccessSecret, c.cfg.AccessTokenTTL, "")
	if err != nil {
		return "", fmt.Errorf("auth.TokenCodec.IssueAccess: %w", err)
	}

	return token, nil
}

func (c *TokenCodec) IssueRefresh(id Identity) (string, error) {
	jti, err := c.ids.New()
	if err != nil {
		return "", fmt.Errorf("auth.TokenCodec.IssueRefresh: %w", err)
	}

	token, err := c.sign(id, TokenTypeRefresh, c.cfg.RefreshSecret, c.cfg.RefreshTokenTTL, jti.String())
	if err != nil {
		return "", fmt.Errorf("auth.TokenCodec.IssueRefresh: %w", err)
	}

	return token, nil
}

func (c *TokenCodec) VerifyAccess(token string) (Identity, error) {
	id, err := c.verify(token, TokenTypeAccess, c.cfg.AccessSecret)
	if err != nil {
		return Identity{}, fmt.Errorf("auth.TokenCodec.VerifyAccess: %w", err)
	}

	return id, nil
}

func (c *TokenCodec) VerifyRefresh(token string) (Identity, error) {
	id, err := c.verify(token, TokenTypeRefresh, c.cfg.RefreshSecret)
	if err != nil {
		return Identity{}, fmt.Errorf("auth.TokenCodec.VerifyRefresh: %w", err)
	}

	return id, nil
}

// Peek decodes a token without verifying the signature. Display and debug
// only; never trust the result.
func (c *TokenCodec) Peek(token string) (TokenInfo, error) {
	claims := tokenClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil {
		return TokenInfo{}, fmt.Errorf("auth.TokenCodec.Peek: %s: %w", err.Error(), ErrMalformedToken())
	}

	info := TokenInfo{
		UserID:    claims.Subject,
		Email:     claims.Email,
		TokenType: claims.TokenType,
		JTI:       claims.ID,
	}
	if claims.IssuedAt != nil {
		t := claims.IssuedAt.Time
		info.IssuedAt = &t
	}
	if claims.ExpiresAt != nil {
		t := claims.ExpiresAt.Time
		info.ExpiresAt = &t
	}

	return info, nil
}

func (c *TokenCodec) sign(id Identity, typ TokenType, secret []byte, ttl time.Duration, jti string) (string, error) {
	if id.UserID == uuid.Nil {
		return "", fmt.Errorf("sign: user ID cannot be nil")
	}

	now := c.clock.Now()
	claims := tokenClaims{
		Email:     id.Email,
		Role:      id.Role,
		TokenType: typ,
		Version:   c.cfg.TokenVersion,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   id.UserID.String(),
			Issuer:    c.cfg.Issuer,
			Audience:  jwt.ClaimStrings{c.cfg.Audience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			ID:        jti,
		},
	}

	signed, err := jwt.NewWithClaims(signingMethod, claims).SignedString(secret)
	if err != nil {
		return "", fmt.Errorf("sign: %w", err)
	}

	return signed, nil
}

func (c *TokenCodec) verify(tokenStr string, want TokenType, secret []byte) (Identity, error) {
	claims := tokenClaims{}
	token, err := jwt.ParseWithClaims(tokenStr, &claims, func(t *jwt.Token) (interface{}, error) {
		if method, ok := t.Method.(*jwt.SigningMethodHMAC); !ok || method != signingMethod {
			return nil, fmt.Errorf("unexpected signing method %v", t.Method.Alg())
		}
		return secret, nil
	},
		jwt.WithIssuer(c.cfg.Issuer),
		jwt.WithAudience(c.cfg.Audience),
		jwt.WithIssuedAt(),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return Identity{}, ErrTokenExpired()
		}
		// A token of the other class is signed with the other secret, so it
		// dies on the signature check. Report that as a type mismatch, not a
		// forgery.
		if peeked := (tokenClaims{}); errors.Is(err, jwt.ErrTokenSignatureInvalid) || errors.Is(err, jwt.ErrSignatureInvalid) {
			if _, _, peekErr := jwt.NewParser().ParseUnverified(tokenStr, &peeked); peekErr == nil &&
				peeked.TokenType != "" && peeked.TokenType != want {
				return Identity{}, fmt.Errorf("token type %q, want %q: %w", peeked.TokenType, want, ErrInvalidTokenType())
			}
		}
		return Identity{}, fmt.Errorf("%s: %w", err.Error(), ErrInvalidToken())
	}
	if !token.Valid {
		return Identity{}, ErrInvalidToken()
	}

	if claims.TokenType != want {
		return Identity{}, fmt.Errorf("token type %q, want %q: %w", claims.TokenType, want, ErrInvalidTokenType())
	}
	if claims.Version != c.cfg.TokenVersion {
		return Identity{}, fmt.Errorf("token version %d, current %d: %w", claims.Version, c.cfg.TokenVersion, ErrInvalidTokenType())
	}

	userID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return Identity{}, fmt.Errorf("invalid subject claim: %w", ErrInvalidToken())
	}

	return Identity{UserID: userID, Email: claims.Email, Role: claims.Role}, nil
}
