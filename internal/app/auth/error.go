package auth

import (
	"github.com/crealith/authcore/internal/infrastructure/apperr"
)

const (
	CodeInvalidCredentials apperr.Code = "auth/invalid_credentials" //nolint:gosec
	CodeAccountLocked      apperr.Code = "auth/account_locked"
	CodeTokenExpired       apperr.Code = "auth/token_expired"
	CodeInvalidTokenType   apperr.Code = "auth/invalid_token_type"
	CodeInvalidToken       apperr.Code = "auth/invalid_token"
	CodeTokenRevoked       apperr.Code = "auth/token_revoked"
	CodeMalformedToken     apperr.Code = "auth/malformed_token"
	CodeValidationFailed   apperr.Code = "auth/validation_failed"
)

const (
	FieldEmail        apperr.Field = "email"
	FieldUserID       apperr.Field = "user_id"
	FieldToken        apperr.Field = "token"
	FieldRefreshToken apperr.Field = "refresh_token"
	FieldTTL          apperr.Field = "ttl"
)

// ErrInvalidCredentials is returned for unknown email and for a wrong
// password alike, so callers cannot enumerate accounts.
func ErrInvalidCredentials() error {
	return apperr.New("invalid email or password", CodeInvalidCredentials, apperr.ClassUnauthorized, apperr.LogLevelWarn)
}

func ErrAccountLocked() error {
	return apperr.New("account temporarily locked, try again later", CodeAccountLocked, apperr.ClassForbidden, apperr.LogLevelWarn)
}

func ErrTokenExpired() error {
	return apperr.New("token has expired", CodeTokenExpired, apperr.ClassUnauthorized, apperr.LogLevelWarn)
}

func ErrInvalidTokenType() error {
	return apperr.New("unexpected token type", CodeInvalidTokenType, apperr.ClassUnauthorized, apperr.LogLevelWarn)
}

func ErrInvalidToken() error {
	return apperr.New("invalid token", CodeInvalidToken, apperr.ClassUnauthorized, apperr.LogLevelWarn)
}

// ErrTokenRevoked covers refresh tokens that verify cryptographically but
// are absent from the store: logged out, already rotated, or expired there.
func ErrTokenRevoked() error {
	return apperr.New("token has been revoked", CodeTokenRevoked, apperr.ClassUnauthorized, apperr.LogLevelWarn)
}

func ErrMalformedToken() error {
	return apperr.New("malformed token", CodeMalformedToken, apperr.ClassBadRequest, apperr.LogLevelWarn)
}

func ErrResetTokenInvalid() error {
	return apperr.New("invalid or expired reset token", CodeInvalidToken, apperr.ClassBadRequest, apperr.LogLevelWarn).
		WithViolation(apperr.Violation{Field: FieldToken, Rule: apperr.RuleExpired})
}
