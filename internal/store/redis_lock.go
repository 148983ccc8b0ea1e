package store

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// unlockScript deletes the key only while it still holds the caller's token.
var unlockScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0
`)

// RedisLocker is a Locker shared by every server instance pointed at the same
// Redis. Keys expire after TTL so a crashed holder cannot wedge a collection.
type RedisLocker struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
	retry  time.Duration
	log    *slog.Logger
}

// NewRedisLocker connects to the Redis at url (redis://host:port/db).
func NewRedisLocker(ctx context.Context, url string, log *slog.Logger) (*RedisLocker, error) {
	if log == nil {
		log = slog.Default()
	}
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return &RedisLocker{
		client: client,
		prefix: "playout:lock:",
		ttl:    30 * time.Second,
		retry:  50 * time.Millisecond,
		log:    log,
	}, nil
}

// Close releases the underlying client.
func (l *RedisLocker) Close() error {
	return l.client.Close()
}

// Lock implements Locker.Lock with SET NX, polling until the key is free.
func (l *RedisLocker) Lock(ctx context.Context, c Collection) (func(), error) {
	if err := checkCollection(c); err != nil {
		return nil, err
	}
	key := l.prefix + string(c)
	token := randomToken()

	ticker := time.NewTicker(l.retry)
	defer ticker.Stop()
	for {
		ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
		if err != nil {
			return nil, fmt.Errorf("lock %s: %w", c, err)
		}
		if ok {
			break
		}
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("lock %s: %w", c, ctx.Err())
		case <-ticker.C:
		}
	}

	return func() { l.release(key, token) }, nil
}

// release drops the key if it still holds token. A failure leaves the key
// in place until its TTL expires.
func (l *RedisLocker) release(key, token string) {
	// Background context: the lock must be released even if ctx was cancelled.
	if err := unlockScript.Run(context.Background(), l.client, []string{key}, token).Err(); err != nil {
		l.log.Warn("redis unlock failed", "key", key, "ttl", l.ttl.String(), "error", err)
	}
}

func randomToken() string {
	b := make([]byte, 16)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}
