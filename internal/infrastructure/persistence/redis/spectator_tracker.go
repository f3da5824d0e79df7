// Package redis implements Redis caching, pub/sub, and spectator presence
// tracking.
package redis

import (
	"context"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/challengehub/challenge-hub/internal/domain/challenge"
)

// ══════════════════════════════════════════════════════════════════════════════
// SPECTATOR TRACKER
// ══════════════════════════════════════════════════════════════════════════════

// SpectatorTracker tracks who is currently watching a challenge.
//
// Layout:
//   - Sorted set "spectator:{challengeID}" maps userID -> last heartbeat
//     (unix seconds). Entries older than TTLSpectatorPresence are pruned
//     lazily on every read, so a vanished client stops counting without
//     an explicit leave.
type SpectatorTracker struct {
	cache *Cache

	// presenceTTL is how long a spectator counts without a heartbeat.
	presenceTTL time.Duration
}

// NewSpectatorTracker creates a SpectatorTracker.
func NewSpectatorTracker(cache *Cache) *SpectatorTracker {
	return &SpectatorTracker{
		cache:       cache,
		presenceTTL: TTLSpectatorPresence,
	}
}

func spectatorKey(challengeID string) string {
	return PrefixSpectator + challengeID
}

// Watch marks a user as watching a challenge. Calling it again acts as a
// heartbeat.
func (t *SpectatorTracker) Watch(ctx context.Context, challengeID string, userID challenge.UserID, now time.Time) error {
	key := spectatorKey(challengeID)

	pipe := t.cache.Client().Pipeline()
	pipe.ZAdd(ctx, key, redis.Z{Score: float64(now.Unix()), Member: string(userID)})
	pipe.Expire(ctx, key, t.presenceTTL*2)
	_, err := pipe.Exec(ctx)
	return err
}

// Leave removes a user from a challenge's spectator set.
func (t *SpectatorTracker) Leave(ctx context.Context, challengeID string, userID challenge.UserID) error {
	return t.cache.Client().ZRem(ctx, spectatorKey(challengeID), string(userID)).Err()
}

// Count returns the number of live spectators of a challenge.
func (t *SpectatorTracker) Count(ctx context.Context, challengeID string, now time.Time) (int64, error) {
	key := spectatorKey(challengeID)
	if err := t.prune(ctx, key, now); err != nil {
		return 0, err
	}
	return t.cache.Client().ZCard(ctx, key).Result()
}

// Watching returns the user IDs currently watching a challenge.
func (t *SpectatorTracker) Watching(ctx context.Context, challengeID string, now time.Time) ([]challenge.UserID, error) {
	key := spectatorKey(challengeID)
	if err := t.prune(ctx, key, now); err != nil {
		return nil, err
	}

	members, err := t.cache.Client().ZRange(ctx, key, 0, -1).Result()
	if err != nil {
		return nil, err
	}

	out := make([]challenge.UserID, 0, len(members))
	for _, m := range members {
		out = append(out, challenge.UserID(m))
	}
	return out, nil
}

// IsWatching reports whether a user is currently watching a challenge.
func (t *SpectatorTracker) IsWatching(ctx context.Context, challengeID string, userID challenge.UserID, now time.Time) (bool, error) {
	score, err := t.cache.Client().ZScore(ctx, spectatorKey(challengeID), string(userID)).Result()
	if err != nil {
		if err == redis.Nil {
			return false, nil
		}
		return false, err
	}
	return now.Unix()-int64(score) <= int64(t.presenceTTL.Seconds()), nil
}

// prune drops entries whose last heartbeat fell outside the presence TTL.
func (t *SpectatorTracker) prune(ctx context.Context, key string, now time.Time) error {
	cutoff := now.Add(-t.presenceTTL).Unix()
	return t.cache.Client().ZRemRangeByScore(ctx, key, "-inf", strconv.FormatInt(cutoff, 10)).Err()
}
