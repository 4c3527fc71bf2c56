package cache

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/oggyb/muzz-consent/internal/config"
)

// ErrLockHeld is returned by AcquireLock when another holder owns the key.
var ErrLockHeld = errors.New("lock held by another worker")

// releaseIfOwner deletes a lock only when the caller's token still owns it.
var releaseIfOwner = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

type RedisCache struct {
	Client *redis.Client
}

// NewRedisCache initializes Redis client from config.
// Only Addr is mandatory, Password/DB are optional.
func NewRedisCache(cfg *config.Config) *RedisCache {
	opts := &redis.Options{
		Addr: cfg.Redis.Addr,
	}
	if cfg.Redis.Password != "" {
		opts.Password = cfg.Redis.Password
	}
	if cfg.Redis.DB != 0 {
		opts.DB = cfg.Redis.DB
	}
	return &RedisCache{Client: redis.NewClient(opts)}
}

func (c *RedisCache) Ping(ctx context.Context) error {
	return c.Client.Ping(ctx).Err()
}

// KeyForDailyLikes generates the Redis key for a user's positive signal
// count on the UTC day containing day.
func (c *RedisCache) KeyForDailyLikes(userID uint64, day time.Time) string {
	return fmt.Sprintf("quota:likes:%d:%s", userID, day.UTC().Format("20060102"))
}

// GetDailyLikes returns the cached count and whether it was cached.
func (c *RedisCache) GetDailyLikes(ctx context.Context, userID uint64, day time.Time) (int64, bool, error) {
	val, err := c.Client.Get(ctx, c.KeyForDailyLikes(userID, day)).Result()
	if errors.Is(err, redis.Nil) {
		return 0, false, nil // cache miss
	} else if err != nil {
		return 0, false, err
	}
	n, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return 0, false, nil
	}
	return n, true, nil
}

// SetDailyLikes caches a freshly counted value. The key outlives the UTC
// day by an hour so late readers of yesterday's key still see a value.
func (c *RedisCache) SetDailyLikes(ctx context.Context, userID uint64, day time.Time, count int64) error {
	ttl := time.Until(endOfDay(day).Add(time.Hour))
	if ttl <= 0 {
		ttl = time.Hour
	}
	return c.Client.Set(ctx, c.KeyForDailyLikes(userID, day), count, ttl).Err()
}

// InvalidateDailyLikes drops the cached count so the next reader recounts
// from the database. Called after every committed positive signal.
func (c *RedisCache) InvalidateDailyLikes(ctx context.Context, userID uint64, day time.Time) error {
	return c.Client.Del(ctx, c.KeyForDailyLikes(userID, day)).Err()
}

// AcquireLock takes key for ttl and returns the token needed to release it.
func (c *RedisCache) AcquireLock(ctx context.Context, key string, ttl time.Duration) (string, error) {
	token := uuid.NewString()
	ok, err := c.Client.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return "", err
	}
	if !ok {
		return "", ErrLockHeld
	}
	return token, nil
}

// ReleaseLock drops key if token still owns it.
func (c *RedisCache) ReleaseLock(ctx context.Context, key, token string) error {
	return releaseIfOwner.Run(ctx, c.Client, []string{key}, token).Err()
}

func endOfDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d+1, 0, 0, 0, 0, time.UTC)
}
