package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/crealith/authcore/internal/app/session"
	"github.com/crealith/authcore/internal/infrastructure/logger"
	"github.com/crealith/authcore/internal/infrastructure/redisx"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/samber/lo"
)

type repo struct {
	client *redis.Client
}

func NewRepository(client *redis.Client) (*repo, error) {
	if client == nil {
		return nil, fmt.Errorf("sessionredis.NewRepository: nil client")
	}

	return &repo{client: client}, nil
}

// StoreSession writes the session record, its metadata projection and the
// user-set membership in one transactional batch, all under the same TTL.
func (r *repo) StoreSession(ctx context.Context, data session.Data, ttl time.Duration) error {
	if ttl <= 0 {
		return fmt.Errorf("sessionredis.StoreSession: ttl must be positive")
	}

	dataKey, metaKey, setKey, err := r.keys(data.UserID, data.ID)
	if err != nil {
		return fmt.Errorf("sessionredis.StoreSession: %w", err)
	}

	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("sessionredis.StoreSession: %w", err)
	}
	if err = redisx.CheckValueSize(payload); err != nil {
		return fmt.Errorf("sessionredis.StoreSession: %w", err)
	}
	meta, err := json.Marshal(data.Metadata())
	if err != nil {
		return fmt.Errorf("sessionredis.StoreSession: %w", err)
	}

	_, err = r.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Set(ctx, dataKey, payload, ttl)
		p.Set(ctx, metaKey, meta, ttl)
		p.SAdd(ctx, setKey, data.ID)
		p.Expire(ctx, setKey, ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("sessionredis.StoreSession: %w", err)
	}

	return nil
}

// GetSession returns the stored record or nil. A record that cannot be
// deserialized is treated as absent and reported on the security channel.
func (r *repo) GetSession(ctx context.Context, sessionID string) (*session.Data, error) {
	dataKey, err := redisx.BuildKey(redisx.PrefixSession, sessionID)
	if err != nil {
		return nil, fmt.Errorf("sessionredis.GetSession: %w", err)
	}

	payload, err := r.client.Get(ctx, dataKey).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("sessionredis.GetSession: %w", err)
	}

	data := session.Data{}
	if err = json.Unmarshal(payload, &data); err != nil || data.UserID == uuid.Nil {
		logger.Security(ctx, "malformed_stored_record").
			Str("key_prefix", redisx.PrefixSession).
			Str("session_id", sessionID).
			Msg("stored session record failed to deserialize, treating as absent")
		return nil, nil
	}

	return &data, nil
}

func (r *repo) UpdateSession(ctx context.Context, data session.Data, ttl time.Duration) error {
	if err := r.StoreSession(ctx, data, ttl); err != nil {
		return fmt.Errorf("sessionredis.UpdateSession: %w", err)
	}

	return nil
}

func (r *repo) DeleteSession(ctx context.Context, userID uuid.UUID, sessionID string) error {
	dataKey, metaKey, setKey, err := r.keys(userID, sessionID)
	if err != nil {
		return fmt.Errorf("sessionredis.DeleteSession: %w", err)
	}

	_, err = r.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Del(ctx, dataKey, metaKey)
		p.SRem(ctx, setKey, sessionID)
		return nil
	})
	if err != nil {
		return fmt.Errorf("sessionredis.DeleteSession: %w", err)
	}

	return nil
}

func (r *repo) ListUserSessionIDs(ctx context.Context, userID uuid.UUID) ([]string, error) {
	setKey, err := redisx.BuildKey(redisx.PrefixUserSessions, userID.String())
	if err != nil {
		return nil, fmt.Errorf("sessionredis.ListUserSessionIDs: %w", err)
	}

	ids, err := r.client.SMembers(ctx, setKey).Result()
	if err != nil {
		return nil, fmt.Errorf("sessionredis.ListUserSessionIDs: %w", err)
	}

	return ids, nil
}

// DeleteAllUserSessions removes every session of the user and the set itself
// in one batch, returning the number of sessions removed.
func (r *repo) DeleteAllUserSessions(ctx context.Context, userID uuid.UUID) (int, error) {
	setKey, err := redisx.BuildKey(redisx.PrefixUserSessions, userID.String())
	if err != nil {
		return 0, fmt.Errorf("sessionredis.DeleteAllUserSessions: %w", err)
	}

	ids, err := r.client.SMembers(ctx, setKey).Result()
	if err != nil {
		return 0, fmt.Errorf("sessionredis.DeleteAllUserSessions: %w", err)
	}

	keys := lo.FlatMap(ids, func(id string, _ int) []string {
		dataKey, buildErr := redisx.BuildKey(redisx.PrefixSession, id)
		if buildErr != nil {
			return nil
		}
		metaKey, buildErr := redisx.BuildKey(redisx.PrefixSessionMeta, id)
		if buildErr != nil {
			return nil
		}
		return []string{dataKey, metaKey}
	})
	keys = append(keys, setKey)

	if err = r.client.Del(ctx, keys...).Err(); err != nil {
		return 0, fmt.Errorf("sessionredis.DeleteAllUserSessions: %w", err)
	}

	return len(ids), nil
}

func (r *repo) keys(userID uuid.UUID, sessionID string) (dataKey, metaKey, setKey string, err error) {
	dataKey, err = redisx.BuildKey(redisx.PrefixSession, sessionID)
	if err != nil {
		return "", "", "", err
	}
	metaKey, err = redisx.BuildKey(redisx.PrefixSessionMeta, sessionID)
	if err != nil {
		return "", "", "", err
	}
	setKey, err = redisx.BuildKey(redisx.PrefixUserSessions, userID.String())
	if err != nil {
		return "", "", "", err
	}

	return dataKey, metaKey, setKey, nil
}
