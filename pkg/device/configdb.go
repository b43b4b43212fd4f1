package device

import (
	"context"
	"fmt"

	"github.com/go-redis/redis/v8"
)

// SONiC Redis database numbers.
const (
	ApplDBNum     = 0
	CountersDBNum = 2
	ConfigDBNum   = 4
	StateDBNum    = 6
)

// ConfigDBClient wraps a Redis client for CONFIG_DB access.
type ConfigDBClient struct {
	client *redis.Client
}

// NewConfigDBClient creates a new config_db client
func NewConfigDBClient(addr string) *ConfigDBClient {
	return &ConfigDBClient{
		client: redis.NewClient(&redis.Options{
			Addr: addr,
			DB:   ConfigDBNum,
		}),
	}
}

// Connect tests the connection
func (c *ConfigDBClient) Connect(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// Close closes the connection
func (c *ConfigDBClient) Close() error {
	return c.client.Close()
}

// Set writes a table entry. If fields is empty, a "NULL":"NULL" sentinel is
// written so the Redis key is actually created.
func (c *ConfigDBClient) Set(ctx context.Context, table, key string, fields map[string]string) error {
	redisKey := fmt.Sprintf("%s|%s", table, key)
	if len(fields) == 0 {
		return c.client.HSet(ctx, redisKey, "NULL", "NULL").Err()
	}
	// One HSET fires exactly one keyspace notification, so the daemon never
	// sees a partially written entry.
	args := make([]interface{}, 0, len(fields)*2)
	for k, v := range fields {
		args = append(args, k, v)
	}
	return c.client.HSet(ctx, redisKey, args...).Err()
}

// Delete removes a table entry. Deleting a missing key is not an error.
func (c *ConfigDBClient) Delete(ctx context.Context, table, key string) error {
	redisKey := fmt.Sprintf("%s|%s", table, key)
	return c.client.Del(ctx, redisKey).Err()
}

// Get reads a table entry
func (c *ConfigDBClient) Get(ctx context.Context, table, key string) (map[string]string, error) {
	redisKey := fmt.Sprintf("%s|%s", table, key)
	return c.client.HGetAll(ctx, redisKey).Result()
}

// TableKeys returns the entry keys of table with the "TABLE|" prefix stripped.
func (c *ConfigDBClient) TableKeys(ctx context.Context, table string) ([]string, error) {
	return tableKeys(ctx, c.client, table)
}

// Exists checks if a key exists
func (c *ConfigDBClient) Exists(ctx context.Context, table, key string) (bool, error) {
	redisKey := fmt.Sprintf("%s|%s", table, key)
	n, err := c.client.Exists(ctx, redisKey).Result()
	return n > 0, err
}

func tableKeys(ctx context.Context, client *redis.Client, table string) ([]string, error) {
	prefix := table + "|"
	keys, err := scanKeys(ctx, client, prefix+"*", 100)
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		out = append(out, k[len(prefix):])
	}
	return out, nil
}

// scanKeys iterates Redis keys matching the given pattern using cursor-based
// SCAN instead of the blocking O(N) KEYS command. The count hint controls
// how many keys Redis returns per iteration (not an exact limit).
func scanKeys(ctx context.Context, client *redis.Client, pattern string, countHint int64) ([]string, error) {
	var cursor uint64
	var keys []string
	for {
		batch, nextCursor, err := client.Scan(ctx, cursor, pattern, countHint).Result()
		if err != nil {
			return nil, err
		}
		keys = append(keys, batch...)
		cursor = nextCursor
		if cursor == 0 {
			break
		}
	}
	return keys, nil
}
