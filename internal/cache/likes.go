package cache

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	// LikesCachePrefix is the key prefix for per-viewer liked-comment sets
	LikesCachePrefix = "likes:user:"

	// LikesCacheTTL is how long a viewer's liked set stays warm
	LikesCacheTTL = 24 * time.Hour

	// sentinelMember marks a warmed set so an empty liked set is
	// distinguishable from a missing key
	sentinelMember = "-"
)

// LikesCache tracks which comments a viewer has liked, so threads can stamp
// per-viewer like flags without a per-comment query. Backed by a Redis set;
// warmed from the database on miss.
type LikesCache interface {
	// Add records a like.
	Add(ctx context.Context, userID, commentID int64) error

	// Remove clears a like.
	Remove(ctx context.Context, userID, commentID int64) error

	// LikedSet reports, for each of commentIDs, whether the viewer liked it.
	// found=false means the set is cold and the caller should Warm it from
	// the database first.
	LikedSet(ctx context.Context, userID int64, commentIDs []int64) (liked map[int64]bool, found bool, err error)

	// Warm bulk-loads the viewer's liked comment ids. Safe to call with an
	// empty slice; the set is still marked warm.
	Warm(ctx context.Context, userID int64, commentIDs []int64) error
}

// RedisLikesCache implements LikesCache on Redis sets.
type RedisLikesCache struct {
	client *redis.Client
}

// NewLikesCache creates a LikesCache backed by Redis.
func NewLikesCache(client *redis.Client) LikesCache {
	return &RedisLikesCache{client: client}
}

func likesKey(userID int64) string {
	return fmt.Sprintf("%s%d", LikesCachePrefix, userID)
}

// Add records a like and refreshes the TTL.
func (c *RedisLikesCache) Add(ctx context.Context, userID, commentID int64) error {
	key := likesKey(userID)

	pipe := c.client.Pipeline()
	pipe.SAdd(ctx, key, strconv.FormatInt(commentID, 10))
	pipe.Expire(ctx, key, LikesCacheTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("likes cache add: %w", err)
	}
	return nil
}

// Remove clears a like from the set.
func (c *RedisLikesCache) Remove(ctx context.Context, userID, commentID int64) error {
	if err := c.client.SRem(ctx, likesKey(userID), strconv.FormatInt(commentID, 10)).Err(); err != nil {
		return fmt.Errorf("likes cache remove: %w", err)
	}
	return nil
}

// LikedSet answers membership for all commentIDs in one SMISMEMBER call.
func (c *RedisLikesCache) LikedSet(ctx context.Context, userID int64, commentIDs []int64) (map[int64]bool, bool, error) {
	key := likesKey(userID)

	exists, err := c.client.Exists(ctx, key).Result()
	if err != nil {
		return nil, false, fmt.Errorf("likes cache exists: %w", err)
	}
	if exists == 0 {
		return nil, false, nil
	}

	liked := make(map[int64]bool, len(commentIDs))
	if len(commentIDs) == 0 {
		return liked, true, nil
	}

	members := make([]interface{}, len(commentIDs))
	for i, id := range commentIDs {
		members[i] = strconv.FormatInt(id, 10)
	}
	results, err := c.client.SMIsMember(ctx, key, members...).Result()
	if err != nil {
		return nil, false, fmt.Errorf("likes cache membership: %w", err)
	}
	for i, id := range commentIDs {
		liked[id] = results[i]
	}
	return liked, true, nil
}

// Warm bulk-inserts the viewer's liked ids plus the warm sentinel, with a
// fresh TTL. Pipelined so cold starts stay one round-trip.
func (c *RedisLikesCache) Warm(ctx context.Context, userID int64, commentIDs []int64) error {
	key := likesKey(userID)
	startTime := time.Now()

	members := make([]interface{}, 0, len(commentIDs)+1)
	members = append(members, sentinelMember)
	for _, id := range commentIDs {
		members = append(members, strconv.FormatInt(id, 10))
	}

	pipe := c.client.Pipeline()
	pipe.SAdd(ctx, key, members...)
	pipe.Expire(ctx, key, LikesCacheTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("likes cache warm: %w", err)
	}

	log.Printf("[LikesCache] Warmed user=%d likes=%d duration=%v", userID, len(commentIDs), time.Since(startTime))
	return nil
}
