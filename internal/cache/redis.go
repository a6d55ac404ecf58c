package cache

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"

	"shared-tasks/internal/config"
	"shared-tasks/pkg/logger"
)

const (
	versionKey    = "tasks:version"
	listKeyPrefix = "tasks:list:"
)

var (
	client *redis.Client
	once   sync.Once
)

// Client returns the global Redis client (initialized on first use).
// It returns nil when REDIS_URL is empty or Redis is unreachable at startup.
func Client(ctx context.Context) *redis.Client {
	once.Do(func() {
		cfg := config.Get()
		if !cfg.CacheEnabled() {
			logger.Info(ctx, "Task list cache disabled (no REDIS_URL)")
			return
		}
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			logger.Error(ctx, "Invalid REDIS_URL", "error", err)
			return
		}
		opts.PoolSize = cfg.RedisPoolSize
		c := redis.NewClient(opts)
		if err := c.Ping(ctx).Err(); err != nil {
			logger.Error(ctx, "Redis ping failed", "error", err)
			_ = c.Close()
			return
		}
		client = c
		logger.Info(ctx, "Redis client initialized", "pool_size", cfg.RedisPoolSize)
	})
	return client
}

// TaskList caches the serialized full task list. Entries are keyed by a version
// number that Invalidate bumps, so a fill computed before a mutation can never be
// served after it. With a nil client every Get misses and the version is local.
type TaskList struct {
	rdb   *redis.Client
	ttl   time.Duration
	local atomic.Int64
}

func NewTaskList(rdb *redis.Client, ttl time.Duration) *TaskList {
	return &TaskList{rdb: rdb, ttl: ttl}
}

// Enabled reports whether a Redis client backs the cache.
func (c *TaskList) Enabled() bool {
	return c.rdb != nil
}

// Version returns the current list version.
func (c *TaskList) Version(ctx context.Context) int64 {
	if c.rdb == nil {
		return c.local.Load()
	}
	v, err := c.rdb.Get(ctx, versionKey).Int64()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			logger.Debug(ctx, "Redis get version failed", "error", err)
			// fall back to the local counter so singleflight keys still move
			return -c.local.Load() - 1
		}
		return 0
	}
	return v
}

// Get returns the cached list for the current version.
func (c *TaskList) Get(ctx context.Context) ([]byte, int64, bool) {
	version := c.Version(ctx)
	if c.rdb == nil || version < 0 {
		return nil, version, false
	}
	b, err := c.rdb.Get(ctx, listKey(version)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, version, false
	}
	if err != nil {
		logger.Debug(ctx, "Redis get tasks failed", "error", err)
		return nil, version, false
	}
	return b, version, true
}

// Set stores raw as the list for version.
func (c *TaskList) Set(ctx context.Context, version int64, raw []byte) {
	if c.rdb == nil || version < 0 {
		return
	}
	if err := c.rdb.Set(ctx, listKey(version), raw, c.ttl).Err(); err != nil {
		logger.Debug(ctx, "Redis set tasks failed", "error", err)
	}
}

// SetAsync is Set detached from the request context.
func (c *TaskList) SetAsync(version int64, raw []byte) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	c.Set(ctx, version, raw)
}

// Invalidate moves the cache to a new version.
func (c *TaskList) Invalidate(ctx context.Context) {
	c.local.Add(1)
	if c.rdb == nil {
		return
	}
	if err := c.rdb.Incr(ctx, versionKey).Err(); err != nil {
		logger.Warn(ctx, "Redis invalidate tasks failed", "error", err)
	}
}

// Ping checks Redis; a disabled cache is always healthy.
func (c *TaskList) Ping(ctx context.Context) error {
	if c.rdb == nil {
		return nil
	}
	return c.rdb.Ping(ctx).Err()
}

func listKey(version int64) string {
	return listKeyPrefix + strconv.FormatInt(version, 10)
}
