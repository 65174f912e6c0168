package refreshtokens

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/dmitrijs2005/ulpt/internal/common"
	"github.com/dmitrijs2005/ulpt/internal/cryptox"
	"github.com/dmitrijs2005/ulpt/internal/server/models"
	"github.com/redis/go-redis/v9"
)

const (
	tokenKeyPrefix = "rt:"
	userKeyPrefix  = "rt:user:"
)

// RedisRepository keeps the ledger in Redis. Each token is a hash at
// rt:<digest> whose TTL is the token validity; rt:user:<id> is a set of the
// user's digests used for bulk revocation. Expiry is enforced by Redis, so
// DeleteExpired has nothing to purge.
type RedisRepository struct {
	rdb redis.UniversalClient
	now func() time.Time
}

// NewRedisRepository wraps an existing client.
func NewRedisRepository(rdb redis.UniversalClient) *RedisRepository {
	return &RedisRepository{rdb: rdb, now: time.Now}
}

func tokenKey(digest string) string { return tokenKeyPrefix + digest }
func userKey(userID string) string  { return userKeyPrefix + userID }

func (r *RedisRepository) Create(ctx context.Context, userID string, token string, validity time.Duration) error {
	digest := cryptox.TokenDigest(token)
	now := r.now()

	_, err := r.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.HSet(ctx, tokenKey(digest),
			"user_id", userID,
			"expires_at", now.Add(validity).UnixMilli(),
			"created_at", now.UnixMilli(),
		)
		p.PExpire(ctx, tokenKey(digest), validity)
		p.SAdd(ctx, userKey(userID), digest)
		// the index only needs to outlive the newest token
		p.PExpire(ctx, userKey(userID), validity)
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis error: %w", err)
	}
	return nil
}

func (r *RedisRepository) Find(ctx context.Context, token string) (*models.RefreshToken, error) {
	digest := cryptox.TokenDigest(token)

	vals, err := r.rdb.HGetAll(ctx, tokenKey(digest)).Result()
	if err != nil {
		return nil, fmt.Errorf("redis error: %w", err)
	}
	if len(vals) == 0 {
		return nil, common.ErrorNotFound
	}

	expires, err := parseMillis(vals["expires_at"])
	if err != nil {
		return nil, fmt.Errorf("redis error: %w", err)
	}
	created, err := parseMillis(vals["created_at"])
	if err != nil {
		return nil, fmt.Errorf("redis error: %w", err)
	}
	if !expires.After(r.now()) {
		return nil, common.ErrorNotFound
	}

	return &models.RefreshToken{
		TokenDigest: digest,
		UserID:      vals["user_id"],
		Expires:     expires,
		CreatedAt:   created,
	}, nil
}

func (r *RedisRepository) Delete(ctx context.Context, token string) error {
	digest := cryptox.TokenDigest(token)

	userID, err := r.rdb.HGet(ctx, tokenKey(digest), "user_id").Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("redis error: %w", err)
	}

	n, err := r.rdb.Del(ctx, tokenKey(digest)).Result()
	if err != nil {
		return fmt.Errorf("redis error: %w", err)
	}
	if userID != "" {
		if err := r.rdb.SRem(ctx, userKey(userID), digest).Err(); err != nil {
			return fmt.Errorf("redis error: %w", err)
		}
	}
	if n == 0 {
		return common.ErrorNotFound
	}
	return nil
}

func (r *RedisRepository) DeleteByUser(ctx context.Context, userID string) error {
	digests, err := r.rdb.SMembers(ctx, userKey(userID)).Result()
	if err != nil {
		return fmt.Errorf("redis error: %w", err)
	}

	keys := make([]string, 0, len(digests)+1)
	for _, d := range digests {
		keys = append(keys, tokenKey(d))
	}
	keys = append(keys, userKey(userID))

	if err := r.rdb.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("redis error: %w", err)
	}
	return nil
}

func (r *RedisRepository) DeleteExpired(ctx context.Context) (int64, error) {
	return 0, nil
}

func parseMillis(s string) (time.Time, error) {
	ms, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return time.Time{}, err
	}
	return time.UnixMilli(ms), nil
}
