// Package redis wraps go-redis with the key layout and the few atomic
// operations KitStock relies on: idempotency replies, the order number
// counter, rate limit windows and the cron lock.
package redis

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/angelmondragon/kitstock-backend/pkg/config"
	"github.com/angelmondragon/kitstock-backend/pkg/logger"
)

const keyNamespace = "ks"

var errNotInitialized = errors.New("redis client not initialized")

var (
	// releaseIfOwner deletes KEYS[1] only while it still holds ARGV[1].
	releaseIfOwner = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`)

	// raiseCounter lifts KEYS[1] to ARGV[1] if it is lower and returns the result.
	raiseCounter = redis.NewScript(`
local current = tonumber(redis.call("GET", KEYS[1]) or "0")
local floor = tonumber(ARGV[1])
if current < floor then
	redis.call("SET", KEYS[1], floor)
	return floor
end
return current`)

	// windowCounter increments KEYS[1] and starts its ARGV[1] ms expiry on the
	// first hit, so a counter never outlives its window.
	windowCounter = redis.NewScript(`
local n = redis.call("INCR", KEYS[1])
if n == 1 then
	redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
return n`)
)

// commands is the slice of go-redis the client uses; tests swap in a fake.
type commands interface {
	redis.Scripter
	Ping(context.Context) *redis.StatusCmd
	Set(context.Context, string, any, time.Duration) *redis.StatusCmd
	Get(context.Context, string) *redis.StringCmd
	SetNX(context.Context, string, any, time.Duration) *redis.BoolCmd
	Incr(context.Context, string) *redis.IntCmd
	Del(context.Context, ...string) *redis.IntCmd
	Close() error
}

type Client struct {
	rdb commands
}

// IdempotencyStore is what the idempotency middleware needs.
type IdempotencyStore interface {
	Get(context.Context, string) (string, error)
	SetNX(context.Context, string, any, time.Duration) (bool, error)
	Set(context.Context, string, any, time.Duration) error
	Del(context.Context, ...string) error
	IdempotencyKey(scope, id string) string
}

// New connects and pings. KITSTOCK_REDIS_URL wins over the discrete
// address settings; pool and timeout settings fill whatever the URL left unset.
func New(ctx context.Context, cfg config.RedisConfig, logg *logger.Logger) (*Client, error) {
	opts, err := options(cfg)
	if err != nil {
		return nil, err
	}
	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("ping redis at %s: %w", opts.Addr, err)
	}
	if logg != nil {
		logg.Debug(logg.WithField(ctx, "redis_addr", opts.Addr), "redis connected")
	}
	return &Client{rdb: rdb}, nil
}

func options(cfg config.RedisConfig) (*redis.Options, error) {
	var opts *redis.Options
	switch {
	case cfg.URL != "":
		parsed, err := redis.ParseURL(cfg.URL)
		if err != nil {
			return nil, fmt.Errorf("parse redis url: %w", err)
		}
		opts = parsed
	case cfg.Address != "":
		opts = &redis.Options{Addr: cfg.Address, Password: cfg.Password, DB: cfg.DB}
	default:
		return nil, errors.New("redis url or address is required")
	}

	fill := func(dst *time.Duration, v time.Duration) {
		if *dst == 0 {
			*dst = v
		}
	}
	if opts.PoolSize == 0 {
		opts.PoolSize = cfg.PoolSize
	}
	if opts.MinIdleConns == 0 {
		opts.MinIdleConns = cfg.MinIdleConns
	}
	fill(&opts.DialTimeout, cfg.DialTimeout)
	fill(&opts.ReadTimeout, cfg.ReadTimeout)
	fill(&opts.WriteTimeout, cfg.WriteTimeout)
	return opts, nil
}

func (c *Client) ready() error {
	if c == nil || c.rdb == nil {
		return errNotInitialized
	}
	return nil
}

func (c *Client) Ping(ctx context.Context) error {
	if err := c.ready(); err != nil {
		return err
	}
	return c.rdb.Ping(ctx).Err()
}

func (c *Client) Close() error {
	if c.ready() != nil {
		return nil
	}
	return c.rdb.Close()
}

func (c *Client) Get(ctx context.Context, key string) (string, error) {
	if err := c.ready(); err != nil {
		return "", err
	}
	return c.rdb.Get(ctx, key).Result()
}

func (c *Client) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	if err := c.ready(); err != nil {
		return err
	}
	return c.rdb.Set(ctx, key, value, ttl).Err()
}

func (c *Client) SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error) {
	if err := c.ready(); err != nil {
		return false, err
	}
	return c.rdb.SetNX(ctx, key, value, ttl).Result()
}

func (c *Client) Del(ctx context.Context, keys ...string) error {
	if err := c.ready(); err != nil {
		return err
	}
	return c.rdb.Del(ctx, keys...).Err()
}

// NextSequence increments the named counter; the first call returns 1.
func (c *Client) NextSequence(ctx context.Context, name string) (int64, error) {
	if err := c.ready(); err != nil {
		return 0, err
	}
	return c.rdb.Incr(ctx, c.SequenceKey(name)).Result()
}

// RaiseSequence makes sure the named counter is at least floor and returns
// its value. It never lowers a counter.
func (c *Client) RaiseSequence(ctx context.Context, name string, floor int64) (int64, error) {
	if err := c.ready(); err != nil {
		return 0, err
	}
	return raiseCounter.Run(ctx, c.rdb, []string{c.SequenceKey(name)}, floor).Int64()
}

// CompareAndDelete removes key only while it still holds value and reports
// whether it did.
func (c *Client) CompareAndDelete(ctx context.Context, key, value string) (bool, error) {
	if err := c.ready(); err != nil {
		return false, err
	}
	n, err := releaseIfOwner.Run(ctx, c.rdb, []string{key}, value).Int64()
	return n == 1, err
}

// IncrWithTTL counts one hit in a fixed window keyed by key. The window
// starts with the first hit and lasts ttl.
func (c *Client) IncrWithTTL(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	if err := c.ready(); err != nil {
		return 0, err
	}
	if ttl <= 0 {
		return 0, fmt.Errorf("rate window must be positive, got %s", ttl)
	}
	return windowCounter.Run(ctx, c.rdb, []string{key}, ttl.Milliseconds()).Int64()
}

// IdempotencyKey hashes the client-supplied key together with its scope, so
// arbitrary header values map to a fixed-length redis key.
func (c *Client) IdempotencyKey(scope, id string) string {
	sum := sha256.Sum256([]byte(scope + "\x00" + id))
	return joinKey("idem", hex.EncodeToString(sum[:]))
}

func (c *Client) SequenceKey(name string) string {
	return joinKey("seq", name)
}

// RateLimitKey namespaces a limiter counter by policy and subject
// (an actor id or a client address).
func (c *Client) RateLimitKey(policy, subject string) string {
	return joinKey("rl", policy, subject)
}

func (c *Client) LockKey(name string) string {
	return joinKey("lock", name)
}

func joinKey(parts ...string) string {
	key := keyNamespace
	for _, part := range parts {
		if part = strings.TrimSpace(part); part != "" {
			key += ":" + part
		}
	}
	return key
}
