package balance

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Cache stores computed balance sheets in Redis with a TTL. A miss or any
// Redis failure falls back to recomputation; the ledger rows stay the only
// source of truth.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewCache(client *redis.Client, ttl time.Duration) *Cache {
	return &Cache{client: client, ttl: ttl}
}

func cacheKey(periodID int64) string {
	return fmt.Sprintf("balance:period:%d", periodID)
}

// Get returns the cached sheet for a period, if present.
func (c *Cache) Get(ctx context.Context, periodID int64) (Sheet, bool) {
	if c == nil || c.client == nil {
		return Sheet{}, false
	}
	data, err := c.client.Get(ctx, cacheKey(periodID)).Bytes()
	if err != nil {
		return Sheet{}, false
	}
	var sheet Sheet
	if err := json.Unmarshal(data, &sheet); err != nil {
		return Sheet{}, false
	}
	return sheet, true
}

// Set stores the sheet for a period.
func (c *Cache) Set(ctx context.Context, sheet Sheet) error {
	if c == nil || c.client == nil {
		return errors.New("balance: cache not configured")
	}
	data, err := json.Marshal(sheet)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, cacheKey(sheet.PeriodID), data, c.ttl).Err()
}

// Invalidate drops the cached sheet for a period.
func (c *Cache) Invalidate(ctx context.Context, periodID int64) error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Del(ctx, cacheKey(periodID)).Err()
}
