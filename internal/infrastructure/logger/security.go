package logger

import (
	"context"
	"strings"

	"github.com/rs/zerolog"
)

// Security returns an event on the dedicated security-audit channel.
// Lockouts, token-type confusion, malformed stored records and key-builder
// rejections go here, separate from ordinary application logs.
// Callers must mask sensitive values (MaskEmail, MaskToken) before attaching them.
func Security(ctx context.Context, event string) *zerolog.Event {
	ctx = context.WithoutCancel(ctx)
	return zerolog.Ctx(ctx).Warn().
		Str("channel", "security").
		Str("event", event)
}

// MaskEmail keeps the first character of the local part and the full domain.
func MaskEmail(email string) string {
	at := strings.LastIndex(email, "@")
	if at <= 0 {
		return "***"
	}
	return email[:1] + "***" + email[at:]
}

// MaskToken keeps enough of the token to correlate log lines, nothing more.
func MaskToken(token string) string {
	if len(token) <= 8 {
		return "***"
	}
	return token[:4] + "..." + token[len(token)-4:]
}
