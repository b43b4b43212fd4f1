package device

import (
	"context"
	"fmt"
	"strconv"

	"github.com/go-redis/redis/v8"

	"github.com/newtron-network/routecheck/pkg/util"
)

// CountersDBClient wraps Redis client for COUNTERS_DB access (DB 2).
type CountersDBClient struct {
	client *redis.Client
}

// NewCountersDBClient creates a new counters_db client
func NewCountersDBClient(addr string) *CountersDBClient {
	return &CountersDBClient{
		client: redis.NewClient(&redis.Options{
			Addr: addr,
			DB:   CountersDBNum,
		}),
	}
}

// Connect tests the connection
func (c *CountersDBClient) Connect(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// Close closes the connection
func (c *CountersDBClient) Close() error {
	return c.client.Close()
}

// RoutePackets returns SAI_COUNTER_STAT_PACKETS of the route flow counter
// bound to prefix. The counter OID is looked up in COUNTERS_ROUTE_NAME_MAP.
func (c *CountersDBClient) RoutePackets(ctx context.Context, prefix string) (uint64, error) {
	oid, err := c.client.HGet(ctx, "COUNTERS_ROUTE_NAME_MAP", prefix).Result()
	if err == redis.Nil {
		return 0, fmt.Errorf("%s: %w", prefix, util.ErrNoRouteCounter)
	}
	if err != nil {
		return 0, err
	}
	raw, err := c.client.HGet(ctx, "COUNTERS:"+oid, "SAI_COUNTER_STAT_PACKETS").Result()
	if err == redis.Nil {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	n, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("counter %s: %w", oid, err)
	}
	return n, nil
}
