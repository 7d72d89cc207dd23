package session

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/crealith/authcore/internal/infrastructure/logger"
	"github.com/google/uuid"
)

const sessionIDBytes = 32

// Store persists session records. Data and Metadata are written together
// and expire together.
type Store interface {
	StoreSession(ctx context.Context, data Data, ttl time.Duration) error
	GetSession(ctx context.Context, sessionID string) (*Data, error)
	UpdateSession(ctx context.Context, data Data, ttl time.Duration) error
	DeleteSession(ctx context.Context, userID uuid.UUID, sessionID string) error
	ListUserSessionIDs(ctx context.Context, userID uuid.UUID) ([]string, error)
	DeleteAllUserSessions(ctx context.Context, userID uuid.UUID) (int, error)
}

type RNDGenerator interface {
	New(n int) (string, error)
}

type TimeGenerator interface {
	Now() time.Time
}

type Config struct {
	// IdleTimeout is the sliding window: a session untouched for longer is gone.
	IdleTimeout time.Duration `mapstructure:"idle_timeout" json:"idle_timeout"`
	// AbsoluteTTL is the Redis expiry re-armed on every validated request.
	// An abandoned session dies after this at the latest; an active one
	// keeps sliding.
	AbsoluteTTL time.Duration `mapstructure:"absolute_ttl" json:"absolute_ttl"`
	// MaxPerUser caps live sessions per user, oldest evicted first.
	MaxPerUser int `mapstructure:"max_per_user" json:"max_per_user"`
	// StrictIPCheck invalidates a session on client IP change instead of
	// only logging it. Off by default to tolerate mobile roaming.
	StrictIPCheck bool `mapstructure:"strict_ip_check" json:"strict_ip_check"`
}

type Manager struct {
	store   Store
	rndGen  RNDGenerator
	timeGen TimeGenerator
	cfg     Config
}

func NewManager(store Store, rndGen RNDGenerator, timeGen TimeGenerator, cfg Config) (*Manager, error) {
	if store == nil || rndGen == nil || timeGen == nil {
		return nil, fmt.Errorf("session.NewManager: nil dependency")
	}
	if cfg.IdleTimeout <= 0 || cfg.AbsoluteTTL <= 0 || cfg.MaxPerUser <= 0 {
		return nil, fmt.Errorf("session.NewManager: invalid config")
	}
	if cfg.IdleTimeout > cfg.AbsoluteTTL {
		return nil, fmt.Errorf("session.NewManager: idle timeout exceeds absolute TTL")
	}

	return &Manager{store: store, rndGen: rndGen, timeGen: timeGen, cfg: cfg}, nil
}

// Create registers a new session for the user and returns it. Sessions
// beyond the per-user cap are evicted oldest first before the new one is
// stored.
func (m *Manager) Create(ctx context.Context, userID uuid.UUID, email, role string, reqCtx RequestContext) (Data, error) {
	if userID == uuid.Nil {
		return Data{}, fmt.Errorf("session.Manager.Create: user ID cannot be nil")
	}

	if err := m.CleanupUserSessions(ctx, userID); err != nil {
		return Data{}, fmt.Errorf("session.Manager.Create: %w", err)
	}

	id, err := m.rndGen.New(sessionIDBytes)
	if err != nil {
		return Data{}, fmt.Errorf("session.Manager.Create: %w", err)
	}

	now := m.timeGen.Now()
	data := Data{
		ID:           id,
		UserID:       userID,
		Email:        email,
		Role:         role,
		IP:           reqCtx.IP,
		UserAgent:    reqCtx.UserAgent,
		Fingerprint:  reqCtx.Fingerprint(),
		Location:     reqCtx.Location,
		IsActive:     true,
		CreatedAt:    now,
		LastActivity: now,
	}

	if err = m.store.StoreSession(ctx, data, m.cfg.AbsoluteTTL); err != nil {
		return Data{}, fmt.Errorf("session.Manager.Create: %w", err)
	}

	return data, nil
}

// Validate loads the session and returns nil when it is absent, inactive or
// idle past the sliding timeout. On success the last-activity timestamp is
// refreshed. An IP change is logged as a security event and, under the
// strict policy, invalidates the session.
func (m *Manager) Validate(ctx context.Context, sessionID string, reqCtx RequestContext) (*Data, error) {
	if sessionID == "" {
		return nil, nil
	}

	data, err := m.store.GetSession(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("session.Manager.Validate: %w", err)
	}
	if data == nil || !data.IsActive {
		return nil, nil
	}

	now := m.timeGen.Now()
	if now.Sub(data.LastActivity) > m.cfg.IdleTimeout {
		if err = m.Invalidate(ctx, data.UserID, sessionID); err != nil {
			logger.Error(ctx, err).Str("session_id", sessionID).Msg("session.Manager.Validate.Invalidate")
		}
		return nil, nil
	}

	if reqCtx.IP != "" && data.IP != "" && reqCtx.IP != data.IP {
		logger.Security(ctx, "session_ip_mismatch").
			Str("session_id", sessionID).
			Str("expected_ip", data.IP).
			Str("actual_ip", reqCtx.IP).
			Msg("session presented from a different IP")
		if m.cfg.StrictIPCheck {
			if err = m.Invalidate(ctx, data.UserID, sessionID); err != nil {
				logger.Error(ctx, err).Str("session_id", sessionID).Msg("session.Manager.Validate.Invalidate")
			}
			return nil, nil
		}
	}

	if err = m.Touch(ctx, data); err != nil {
		return nil, fmt.Errorf("session.Manager.Validate: %w", err)
	}

	return data, nil
}

// Touch rewrites the session with a fresh last-activity timestamp and
// re-applies the TTL.
func (m *Manager) Touch(ctx context.Context, data *Data) error {
	data.LastActivity = m.timeGen.Now()
	if err := m.store.UpdateSession(ctx, *data, m.cfg.AbsoluteTTL); err != nil {
		return fmt.Errorf("session.Manager.Touch: %w", err)
	}

	return nil
}

func (m *Manager) Invalidate(ctx context.Context, userID uuid.UUID, sessionID string) error {
	if err := m.store.DeleteSession(ctx, userID, sessionID); err != nil {
		return fmt.Errorf("session.Manager.Invalidate: %w", err)
	}

	return nil
}

// InvalidateAll drops every session of the user, returning the count removed.
func (m *Manager) InvalidateAll(ctx context.Context, userID uuid.UUID) (int, error) {
	n, err := m.store.DeleteAllUserSessions(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("session.Manager.InvalidateAll: %w", err)
	}

	return n, nil
}

// List returns metadata for the user's live sessions, newest first.
func (m *Manager) List(ctx context.Context, userID uuid.UUID) ([]Metadata, error) {
	ids, err := m.store.ListUserSessionIDs(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("session.Manager.List: %w", err)
	}

	out := make([]Metadata, 0, len(ids))
	for _, id := range ids {
		data, getErr := m.store.GetSession(ctx, id)
		if getErr != nil {
			return nil, fmt.Errorf("session.Manager.List: %w", getErr)
		}
		if data == nil {
			continue
		}
		out = append(out, data.Metadata())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })

	return out, nil
}

// CleanupUserSessions prunes set members whose backing record has expired,
// then evicts the oldest sessions down to one below the cap so a new session
// can be created without exceeding it.
func (m *Manager) CleanupUserSessions(ctx context.Context, userID uuid.UUID) error {
	ids, err := m.store.ListUserSessionIDs(ctx, userID)
	if err != nil {
		return fmt.Errorf("session.Manager.CleanupUserSessions: %w", err)
	}

	live := make([]Data, 0, len(ids))
	for _, id := range ids {
		data, getErr := m.store.GetSession(ctx, id)
		if getErr != nil {
			return fmt.Errorf("session.Manager.CleanupUserSessions: %w", getErr)
		}
		if data == nil {
			if delErr := m.store.DeleteSession(ctx, userID, id); delErr != nil {
				logger.Error(ctx, delErr).Str("session_id", id).Msg("session.Manager.CleanupUserSessions.DeleteSession")
			}
			continue
		}
		live = append(live, *data)
	}

	if len(live) < m.cfg.MaxPerUser {
		return nil
	}

	sort.Slice(live, func(i, j int) bool { return live[i].CreatedAt.Before(live[j].CreatedAt) })
	evict := live[:len(live)-m.cfg.MaxPerUser+1]
	for _, data := range evict {
		if err = m.store.DeleteSession(ctx, userID, data.ID); err != nil {
			return fmt.Errorf("session.Manager.CleanupUserSessions: %w", err)
		}
	}

	return nil
}
