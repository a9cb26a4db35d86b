package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore is the production Store. Family records and blacklist entries
// live under their own key prefixes with Redis-enforced TTLs; the per-user
// family index is a set.
type RedisStore struct {
	client *redis.Client
}

func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func familyKey(family string) string       { return familyPrefix + family }
func userFamiliesKey(userID string) string { return userFamiliesPrefix + userID }
func blacklistKey(jti string) string       { return blacklistPrefix + jti }

func (s *RedisStore) GetFamily(ctx context.Context, family string) (*FamilyRecord, error) {
	data, err := s.client.Get(ctx, familyKey(family)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrFamilyNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redis get family: %w", err)
	}
	var rec FamilyRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("redis decode family: %w", err)
	}
	return &rec, nil
}

func (s *RedisStore) PutFamily(ctx context.Context, rec *FamilyRecord, ttl time.Duration) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	if err := s.client.Set(ctx, familyKey(rec.Family), data, ttl).Err(); err != nil {
		return fmt.Errorf("redis put family: %w", err)
	}
	return nil
}

// CompareAndSwapFamily uses WATCH so two concurrent rotations cannot both
// win; the transaction of the later writer fails and surfaces as ErrConflict.
func (s *RedisStore) CompareAndSwapFamily(ctx context.Context, family, old, new string, ttl time.Duration) error {
	key := familyKey(family)
	err := s.client.Watch(ctx, func(tx *redis.Tx) error {
		data, err := tx.Get(ctx, key).Bytes()
		if errors.Is(err, redis.Nil) {
			return ErrFamilyNotFound
		}
		if err != nil {
			return err
		}
		var rec FamilyRecord
		if err := json.Unmarshal(data, &rec); err != nil {
			return err
		}
		if rec.Current != old {
			return ErrConflict
		}
		rec.Current = new
		updated, err := json.Marshal(&rec)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, updated, ttl)
			return nil
		})
		return err
	}, key)
	if errors.Is(err, redis.TxFailedErr) {
		return ErrConflict
	}
	return err
}

func (s *RedisStore) DeleteFamily(ctx context.Context, family string) error {
	return s.client.Del(ctx, familyKey(family)).Err()
}

func (s *RedisStore) AddUserFamily(ctx context.Context, userID, family string, ttl time.Duration) error {
	key := userFamiliesKey(userID)
	if err := s.client.SAdd(ctx, key, family).Err(); err != nil {
		return fmt.Errorf("redis add user family: %w", err)
	}
	// Index outlives the longest family it references.
	return s.client.Expire(ctx, key, ttl).Err()
}

func (s *RedisStore) UserFamilies(ctx context.Context, userID string) ([]string, error) {
	fams, err := s.client.SMembers(ctx, userFamiliesKey(userID)).Result()
	if err != nil {
		return nil, fmt.Errorf("redis user families: %w", err)
	}
	return fams, nil
}

func (s *RedisStore) RemoveUserFamily(ctx context.Context, userID, family string) error {
	return s.client.SRem(ctx, userFamiliesKey(userID), family).Err()
}

func (s *RedisStore) DeleteUserFamilies(ctx context.Context, userID string) error {
	return s.client.Del(ctx, userFamiliesKey(userID)).Err()
}

func (s *RedisStore) Blacklist(ctx context.Context, jti string, ttl time.Duration) error {
	if err := s.client.Set(ctx, blacklistKey(jti), "1", ttl).Err(); err != nil {
		return fmt.Errorf("redis blacklist: %w", err)
	}
	return nil
}

func (s *RedisStore) IsBlacklisted(ctx context.Context, jti string) (bool, error) {
	n, err := s.client.Exists(ctx, blacklistKey(jti)).Result()
	if err != nil {
		return false, fmt.Errorf("redis blacklist check: %w", err)
	}
	return n > 0, nil
}
