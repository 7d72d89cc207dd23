package contextx

import (
	"context"
	"errors"
	"fmt"

	"github.com/crealith/authcore/internal/infrastructure/apperr"
	"github.com/google/uuid"
)

var ErrNotFound = fmt.Errorf("not found in context")

type contextKey string

func (key contextKey) String() string {
	return string(key)
}

const (
	ContextKeyUserID    = contextKey("user_id")
	ContextKeyUserEmail = contextKey("user_email")
	ContextKeyUserRole  = contextKey("user_role")
	ContextKeySessionID = contextKey("session_id")
)

func getValue[T any](ctx context.Context, key contextKey) (T, error) {
	var zero T

	value := ctx.Value(key)
	if value == nil {
		return zero, fmt.Errorf("key %v: %w", key, ErrNotFound)
	}

	v, ok := value.(T)
	if !ok {
		return zero, fmt.Errorf("key %v: wrong format in context, got %T, want %T", key, value, zero)
	}

	return v, nil
}

func GetUserID(ctx context.Context) (uuid.UUID, error) {
	userID, err := getValue[uuid.UUID](ctx, ContextKeyUserID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			err = apperr.ErrUnauthorized().WithDetail("current user ID not found in context")
		}
		return uuid.Nil, fmt.Errorf("contextx.GetUserID: %w", err)
	}
	if userID == uuid.Nil {
		return uuid.Nil, fmt.Errorf("contextx.GetUserID: user ID is nil")
	}

	return userID, nil
}

func GetUserEmail(ctx context.Context) (string, error) {
	email, err := getValue[string](ctx, ContextKeyUserEmail)
	if err != nil {
		return "", fmt.Errorf("contextx.GetUserEmail: %w", err)
	}

	return email, nil
}

func GetUserRole(ctx context.Context) (string, error) {
	role, err := getValue[string](ctx, ContextKeyUserRole)
	if err != nil {
		return "", fmt.Errorf("contextx.GetUserRole: %w", err)
	}

	return role, nil
}

func GetSessionID(ctx context.Context) (string, error) {
	sessionID, err := getValue[string](ctx, ContextKeySessionID)
	if err != nil {
		return "", fmt.Errorf("contextx.GetSessionID: %w", err)
	}

	return sessionID, nil
}

func SetUserID(ctx context.Context, userID uuid.UUID) context.Context {
	return context.WithValue(ctx, ContextKeyUserID, userID)
}

func SetUserEmail(ctx context.Context, email string) context.Context {
	return context.WithValue(ctx, ContextKeyUserEmail, email)
}

func SetUserRole(ctx context.Context, role string) context.Context {
	return context.WithValue(ctx, ContextKeyUserRole, role)
}

func SetSessionID(ctx context.Context, sessionID string) context.Context {
	return context.WithValue(ctx, ContextKeySessionID, sessionID)
}
