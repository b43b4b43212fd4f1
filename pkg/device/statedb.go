package device

import (
	"context"
	"fmt"

	"github.com/go-redis/redis/v8"
)

// StateDBClient wraps Redis client for state_db access (DB 6).
type StateDBClient struct {
	client *redis.Client
}

// NewStateDBClient creates a new state_db client
func NewStateDBClient(addr string) *StateDBClient {
	return &StateDBClient{
		client: redis.NewClient(&redis.Options{
			Addr: addr,
			DB:   StateDBNum,
		}),
	}
}

// Connect tests the connection
func (c *StateDBClient) Connect(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// Close closes the connection
func (c *StateDBClient) Close() error {
	return c.client.Close()
}

// GetEntry reads a single STATE_DB entry.
// Returns (nil, nil) if the entry does not exist.
func (c *StateDBClient) GetEntry(ctx context.Context, table, key string) (map[string]string, error) {
	redisKey := fmt.Sprintf("%s|%s", table, key)
	vals, err := c.client.HGetAll(ctx, redisKey).Result()
	if err != nil {
		return nil, err
	}
	if len(vals) == 0 {
		return nil, nil
	}
	return vals, nil
}

// TableKeys returns the entry keys of a STATE_DB table.
func (c *StateDBClient) TableKeys(ctx context.Context, table string) ([]string, error) {
	return tableKeys(ctx, c.client, table)
}

// BGPNeighborState returns the session state of a neighbor from
// BGP_NEIGHBOR_TABLE, trying the VRF-qualified key first. An empty string
// means bgpmon has not published the neighbor.
func (c *StateDBClient) BGPNeighborState(ctx context.Context, vrf, neighbor string) (string, error) {
	keys := []string{neighbor}
	if vrf != "" {
		keys = []string{vrf + "|" + neighbor, neighbor}
	}
	for _, k := range keys {
		vals, err := c.GetEntry(ctx, "BGP_NEIGHBOR_TABLE", k)
		if err != nil {
			return "", err
		}
		if vals != nil {
			return vals["state"], nil
		}
	}
	return "", nil
}

// MuxStates returns the mux cable state ("active", "standby", ...) of every
// port in MUX_CABLE_TABLE.
func (c *StateDBClient) MuxStates(ctx context.Context) (map[string]string, error) {
	ports, err := c.TableKeys(ctx, "MUX_CABLE_TABLE")
	if err != nil {
		return nil, err
	}
	states := make(map[string]string, len(ports))
	for _, p := range ports {
		vals, err := c.GetEntry(ctx, "MUX_CABLE_TABLE", p)
		if err != nil {
			return nil, err
		}
		states[p] = vals["state"]
	}
	return states, nil
}
