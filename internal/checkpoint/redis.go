package checkpoint

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// cursorLayout is the stored cursor format.
const cursorLayout = time.RFC3339Nano

// Redis is a Store backed by a Redis key, scoped to one owner/dataset/source
// combination so multiple integrations can share an instance.
type Redis struct {
	client *redis.Client
	key    string
}

// NewRedis creates a Redis checkpoint store.
func NewRedis(ctx context.Context, redisURL, owner, dataset, source string) (*Redis, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	// Connection pool settings
	opt.PoolSize = 4
	opt.MinIdleConns = 1
	opt.PoolTimeout = 4 * time.Second
	opt.ConnMaxIdleTime = 5 * time.Minute

	client := redis.NewClient(opt)

	// Verify connection
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to ping Redis: %w", err)
	}

	return &Redis{client: client, key: cursorKey(owner, dataset, source)}, nil
}

func cursorKey(owner, dataset, source string) string {
	key := fmt.Sprintf("vocsync:cursor:%s/%s", owner, dataset)
	if source != "" {
		key += ":" + source
	}
	return key
}

// Load returns the saved cursor, if any.
func (r *Redis) Load(ctx context.Context) (time.Time, bool, error) {
	value, err := r.client.Get(ctx, r.key).Result()
	if errors.Is(err, redis.Nil) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, fmt.Errorf("load cursor: %w", err)
	}

	cursor, err := time.Parse(cursorLayout, value)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("parse cursor %q: %w", value, err)
	}
	return cursor, true, nil
}

// Save overwrites the cursor.
func (r *Redis) Save(ctx context.Context, cursor time.Time) error {
	if err := r.client.Set(ctx, r.key, cursor.UTC().Format(cursorLayout), 0).Err(); err != nil {
		return fmt.Errorf("save cursor: %w", err)
	}
	return nil
}

// Ping checks Redis connectivity.
func (r *Redis) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// Close closes the Redis client.
func (r *Redis) Close() error {
	return r.client.Close()
}
