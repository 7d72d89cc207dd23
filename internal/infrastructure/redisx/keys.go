package redisx

import (
	"fmt"
	"regexp"
)

// Allow-listed key prefixes. Every key in the store is built through
// BuildKey so a user-controlled identifier can never collide with another
// namespace.
const (
	PrefixRefreshToken  = "refresh_token"
	PrefixResetToken    = "reset_token"
	PrefixUserTokens    = "user_tokens"
	PrefixLoginAttempts = "login_attempts"
	PrefixLock          = "lock"
	PrefixSession       = "session"
	PrefixSessionMeta   = "session_meta"
	PrefixUserSessions  = "user_sessions"
	PrefixCache         = "cache"
	PrefixRateLimit     = "rate_limit"
)

var allowedPrefixes = map[string]struct{}{
	PrefixRefreshToken:  {},
	PrefixResetToken:    {},
	PrefixUserTokens:    {},
	PrefixLoginAttempts: {},
	PrefixLock:          {},
	PrefixSession:       {},
	PrefixSessionMeta:   {},
	PrefixUserSessions:  {},
	PrefixCache:         {},
	PrefixRateLimit:     {},
}

var identifierStrip = regexp.MustCompile(`[^A-Za-z0-9_-]`)

// MaxValueSize bounds any serialized value written to the store. Oversized
// payloads are rejected, never truncated.
const MaxValueSize = 512 * 1024

// BuildKey joins an allow-listed prefix with a sanitized identifier.
// A prefix outside the allow list is rejected, not sanitized.
func BuildKey(prefix, id string) (string, error) {
	if _, ok := allowedPrefixes[prefix]; !ok {
		return "", fmt.Errorf("redisx.BuildKey: prefix %q is not allowed", prefix)
	}

	clean := identifierStrip.ReplaceAllString(id, "")
	if clean == "" {
		return "", fmt.Errorf("redisx.BuildKey: identifier is empty after sanitization")
	}

	return prefix + ":" + clean, nil
}

// CheckValueSize rejects values beyond MaxValueSize.
func CheckValueSize(data []byte) error {
	if len(data) > MaxValueSize {
		return fmt.Errorf("redisx.CheckValueSize: value of %d bytes exceeds %d byte limit", len(data), MaxValueSize)
	}

	return nil
}
