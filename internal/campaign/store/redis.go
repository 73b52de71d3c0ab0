package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"callpilot_backend/internal/campaign/domain"
)

const (
	groupKeyPrefix    = "callpilot:group:"
	ownerKeyPrefix    = "callpilot:owner:"
	sessionKeyPrefix  = "callpilot:session:"
	campaignKeyPrefix = "callpilot:campaign:"

	// Sessions are bound for the lifetime of a call plus generous slack
	// for late post-call webhooks.
	sessionTTL = 24 * time.Hour
)

// RedisStore persists groups as JSON documents in Redis. Group documents
// have no TTL; sessions expire after a day.
type RedisStore struct {
	rdb *redis.Client
}

// NewRedisStore wraps an already-connected client.
func NewRedisStore(rdb *redis.Client) *RedisStore {
	return &RedisStore{rdb: rdb}
}

func (s *RedisStore) Save(ctx context.Context, g *domain.Group) error {
	raw, err := json.Marshal(g)
	if err != nil {
		return fmt.Errorf("marshal group %s: %w", g.ID, err)
	}
	pipe := s.rdb.TxPipeline()
	pipe.Set(ctx, groupKeyPrefix+g.ID, raw, 0)
	pipe.SAdd(ctx, ownerKeyPrefix+g.OwnerID, g.ID)
	_, err = pipe.Exec(ctx)
	return err
}

func (s *RedisStore) Get(ctx context.Context, groupID string) (*domain.Group, error) {
	raw, err := s.rdb.Get(ctx, groupKeyPrefix+groupID).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	var g domain.Group
	if err := json.Unmarshal(raw, &g); err != nil {
		return nil, fmt.Errorf("unmarshal group %s: %w", groupID, err)
	}
	return &g, nil
}

func (s *RedisStore) ListByOwner(ctx context.Context, ownerID string) ([]*domain.Group, error) {
	ids, err := s.rdb.SMembers(ctx, ownerKeyPrefix+ownerID).Result()
	if err != nil {
		return nil, err
	}
	out := make([]*domain.Group, 0, len(ids))
	for _, id := range ids {
		g, err := s.Get(ctx, id)
		if errors.Is(err, ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, g)
	}
	return out, nil
}

func (s *RedisStore) Delete(ctx context.Context, groupID string) error {
	g, err := s.Get(ctx, groupID)
	if err != nil {
		return err
	}
	pipe := s.rdb.TxPipeline()
	pipe.Del(ctx, groupKeyPrefix+groupID)
	pipe.SRem(ctx, ownerKeyPrefix+g.OwnerID, groupID)
	_, err = pipe.Exec(ctx)
	return err
}

func (s *RedisStore) BindSession(ctx context.Context, sessionID string, ref SessionRef) error {
	raw, err := json.Marshal(ref)
	if err != nil {
		return err
	}
	return s.rdb.Set(ctx, sessionKeyPrefix+sessionID, raw, sessionTTL).Err()
}

func (s *RedisStore) ResolveSession(ctx context.Context, sessionID string) (SessionRef, error) {
	raw, err := s.rdb.Get(ctx, sessionKeyPrefix+sessionID).Bytes()
	if errors.Is(err, redis.Nil) {
		return SessionRef{}, ErrNotFound
	}
	if err != nil {
		return SessionRef{}, err
	}
	var ref SessionRef
	if err := json.Unmarshal(raw, &ref); err != nil {
		return SessionRef{}, err
	}
	return ref, nil
}

func (s *RedisStore) BindCampaign(ctx context.Context, campaignID, groupID string) error {
	return s.rdb.Set(ctx, campaignKeyPrefix+campaignID, groupID, 0).Err()
}

func (s *RedisStore) ResolveCampaign(ctx context.Context, campaignID string) (string, error) {
	gid, err := s.rdb.Get(ctx, campaignKeyPrefix+campaignID).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrNotFound
	}
	return gid, err
}
