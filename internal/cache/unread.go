package cache

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"clinic-chat-service/internal/models"
)

// UnreadCache is a read-through cache of per-(room, role) unread counts.
// Redis failures fall back to the underlying count; the cache is never
// authoritative.
type UnreadCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewUnreadCache builds an UnreadCache, or returns nil when addr is empty so
// callers can treat the cache as disabled.
func NewUnreadCache(addr, password string, ttl time.Duration) *UnreadCache {
	if addr == "" {
		return nil
	}
	return &UnreadCache{
		client: redis.NewClient(&redis.Options{Addr: addr, Password: password}),
		ttl:    ttl,
	}
}

// NewUnreadCacheWithClient wraps an existing client. Used by tests.
func NewUnreadCacheWithClient(client *redis.Client, ttl time.Duration) *UnreadCache {
	return &UnreadCache{client: client, ttl: ttl}
}

func unreadKey(roomID int, role models.Role) string {
	return fmt.Sprintf("unread:%d:%s", roomID, role)
}

// Get returns the cached count and whether it was present. Errors are
// reported as cache misses.
func (c *UnreadCache) Get(ctx context.Context, roomID int, role models.Role) (int, bool) {
	if c == nil {
		return 0, false
	}
	val, err := c.client.Get(ctx, unreadKey(roomID, role)).Result()
	if err != nil {
		return 0, false
	}
	count, err := strconv.Atoi(val)
	if err != nil {
		return 0, false
	}
	return count, true
}

// Set stores a computed count.
func (c *UnreadCache) Set(ctx context.Context, roomID int, role models.Role, count int) {
	if c == nil {
		return
	}
	_ = c.client.Set(ctx, unreadKey(roomID, role), strconv.Itoa(count), c.ttl).Err()
}

// Invalidate drops both roles' entries for a room. Called on message insert
// and on watermark writes.
func (c *UnreadCache) Invalidate(ctx context.Context, roomID int) {
	if c == nil {
		return
	}
	_ = c.client.Del(ctx, unreadKey(roomID, models.RolePatient), unreadKey(roomID, models.RoleAdmin)).Err()
}

// Close releases the redis connection.
func (c *UnreadCache) Close() error {
	if c == nil {
		return nil
	}
	return c.client.Close()
}
