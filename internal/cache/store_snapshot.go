// Package cache shares the store directory snapshot between service instances through Valkey.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/valkey-io/valkey-go"

	"github.com/Kilat-Pet-Delivery/service-zone/internal/domain/store"
)

const storeSnapshotKey = "zone-import:store-snapshot"

// StoreSnapshotCache stores the directory listing as one JSON value with a TTL.
type StoreSnapshotCache struct {
	client valkey.Client
	ttl    time.Duration
}

// NewStoreSnapshotCache connects to Valkey at addr.
func NewStoreSnapshotCache(addr string, ttl time.Duration) (*StoreSnapshotCache, error) {
	client, err := valkey.NewClient(valkey.ClientOption{
		InitAddress: []string{addr},
	})
	if err != nil {
		return nil, fmt.Errorf("valkey connect: %w", err)
	}
	return &StoreSnapshotCache{client: client, ttl: ttl}, nil
}

// Get returns the cached snapshot. found is false on a cache miss.
func (c *StoreSnapshotCache) Get(ctx context.Context) (entries []store.Entry, found bool, err error) {
	b, err := c.client.Do(ctx, c.client.B().Get().Key(storeSnapshotKey).Build()).AsBytes()
	if valkey.IsValkeyNil(err) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("valkey get store snapshot: %w", err)
	}
	if err := json.Unmarshal(b, &entries); err != nil {
		return nil, false, fmt.Errorf("decode store snapshot: %w", err)
	}
	return entries, true, nil
}

// Set replaces the cached snapshot.
func (c *StoreSnapshotCache) Set(ctx context.Context, entries []store.Entry) error {
	b, err := json.Marshal(entries)
	if err != nil {
		return fmt.Errorf("encode store snapshot: %w", err)
	}
	cmd := c.client.B().Set().Key(storeSnapshotKey).Value(string(b)).Ex(c.ttl).Build()
	if err := c.client.Do(ctx, cmd).Error(); err != nil {
		return fmt.Errorf("valkey set store snapshot: %w", err)
	}
	return nil
}

// Invalidate drops the cached snapshot.
func (c *StoreSnapshotCache) Invalidate(ctx context.Context) error {
	if err := c.client.Do(ctx, c.client.B().Del().Key(storeSnapshotKey).Build()).Error(); err != nil {
		return fmt.Errorf("valkey del store snapshot: %w", err)
	}
	return nil
}

// PingContext checks that Valkey answers.
func (c *StoreSnapshotCache) PingContext(ctx context.Context) error {
	return c.client.Do(ctx, c.client.B().Ping().Build()).Error()
}

// Close releases the client.
func (c *StoreSnapshotCache) Close() {
	c.client.Close()
}
