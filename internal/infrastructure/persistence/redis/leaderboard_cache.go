// Package redis implements Redis caching, pub/sub, and spectator presence
// tracking.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/challengehub/challenge-hub/internal/domain/challenge"
)

// ══════════════════════════════════════════════════════════════════════════════
// LEADERBOARD CACHE ERRORS
// ══════════════════════════════════════════════════════════════════════════════

var (
	// ErrLeaderboardEmpty is returned when the leaderboard has no entries.
	ErrLeaderboardEmpty = errors.New("leaderboard_cache: leaderboard is empty")

	// ErrUserNotRanked is returned when a user is not in the leaderboard.
	ErrUserNotRanked = errors.New("leaderboard_cache: user not in leaderboard")
)

// ══════════════════════════════════════════════════════════════════════════════
// LEADERBOARD CACHE
// ══════════════════════════════════════════════════════════════════════════════

// cachedEntry is the JSON shape stored in the info hash.
type cachedEntry struct {
	UserID               string    `json:"user_id"`
	Score                float64   `json:"score"`
	Rank                 int       `json:"rank"`
	CompletionPercentage float64   `json:"completion_percentage"`
	UpdatedAt            time.Time `json:"updated_at"`
}

// LeaderboardCache holds hot per-challenge leaderboards and the global
// trending set using Redis sorted sets.
//
// Layout:
//   - Sorted set "leaderboard:score:{challengeID}" maps userID -> score
//   - Hash "leaderboard:info:{challengeID}" maps userID -> entry JSON
//   - Sorted set "trending:challenges" maps challengeID -> trending score
//
// Rank lookups are O(log N), range reads O(log N + M). The cache is a
// projection of the repository's leaderboard snapshot; on any miss the
// caller falls back to the repository.
type LeaderboardCache struct {
	cache *Cache
}

// Key patterns for the leaderboard cache.
const (
	keyLeaderboardScore = "leaderboard:score:"
	keyLeaderboardInfo  = "leaderboard:info:"
	keyTrending         = "trending:challenges"
	keyTrendingInfo     = "trending:info"
)

// NewLeaderboardCache creates a LeaderboardCache on top of a Cache.
func NewLeaderboardCache(cache *Cache) *LeaderboardCache {
	return &LeaderboardCache{cache: cache}
}

// Rebuild replaces the cached leaderboard of a challenge with a fresh
// snapshot. The score set and info hash are swapped in one pipeline.
func (l *LeaderboardCache) Rebuild(ctx context.Context, challengeID string, entries []challenge.LeaderboardEntry) error {
	scoreKey := keyLeaderboardScore + challengeID
	infoKey := keyLeaderboardInfo + challengeID

	pipe := l.cache.Client().Pipeline()
	pipe.Del(ctx, scoreKey, infoKey)

	for _, e := range entries {
		data, err := json.Marshal(fromDomainEntry(e))
		if err != nil {
			return fmt.Errorf("%w: %v", ErrCacheSerialization, err)
		}
		pipe.ZAdd(ctx, scoreKey, redis.Z{Score: e.Score, Member: string(e.UserID)})
		pipe.HSet(ctx, infoKey, string(e.UserID), data)
	}

	pipe.Expire(ctx, scoreKey, TTLLeaderboardCache)
	pipe.Expire(ctx, infoKey, TTLLeaderboardCache)

	_, err := pipe.Exec(ctx)
	return err
}

// GetTop returns the highest-scored entries of a challenge.
func (l *LeaderboardCache) GetTop(ctx context.Context, challengeID string, count int) ([]challenge.LeaderboardEntry, error) {
	if count <= 0 {
		count = 10
	}

	scoreKey := keyLeaderboardScore + challengeID
	userIDs, err := l.cache.Client().ZRevRange(ctx, scoreKey, 0, int64(count-1)).Result()
	if err != nil {
		return nil, err
	}
	if len(userIDs) == 0 {
		return nil, ErrLeaderboardEmpty
	}

	return l.entriesFor(ctx, challengeID, userIDs)
}

// GetRank returns a user's 1-based rank within a challenge.
func (l *LeaderboardCache) GetRank(ctx context.Context, challengeID string, userID challenge.UserID) (int64, error) {
	scoreKey := keyLeaderboardScore + challengeID
	rank, err := l.cache.Client().ZRevRank(ctx, scoreKey, string(userID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, ErrUserNotRanked
		}
		return 0, err
	}
	return rank + 1, nil
}

// GetEntry returns one user's cached leaderboard entry.
func (l *LeaderboardCache) GetEntry(ctx context.Context, challengeID string, userID challenge.UserID) (*challenge.LeaderboardEntry, error) {
	infoKey := keyLeaderboardInfo + challengeID
	data, err := l.cache.Client().HGet(ctx, infoKey, string(userID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrUserNotRanked
		}
		return nil, err
	}

	var e cachedEntry
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCacheSerialization, err)
	}

	entry := toDomainEntry(e)
	return &entry, nil
}

// Invalidate drops the cached leaderboard of one challenge.
func (l *LeaderboardCache) Invalidate(ctx context.Context, challengeID string) error {
	return l.cache.Delete(ctx,
		keyLeaderboardScore+challengeID,
		keyLeaderboardInfo+challengeID,
	)
}

// ─────────────────────────────────────────────────────────────────────────────
// Trending
// ─────────────────────────────────────────────────────────────────────────────

// TrendingChallenge is the cached discovery projection of a challenge.
type TrendingChallenge struct {
	ChallengeID string  `json:"challenge_id"`
	Title       string  `json:"title"`
	Category    string  `json:"category"`
	Score       float64 `json:"score"`
}

// SetTrending replaces the trending set with freshly scored challenges.
// The scheduler refreshes this on an interval.
func (l *LeaderboardCache) SetTrending(ctx context.Context, entries []TrendingChallenge) error {
	pipe := l.cache.Client().Pipeline()
	pipe.Del(ctx, keyTrending, keyTrendingInfo)

	for _, e := range entries {
		data, err := json.Marshal(e)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrCacheSerialization, err)
		}
		pipe.ZAdd(ctx, keyTrending, redis.Z{Score: e.Score, Member: e.ChallengeID})
		pipe.HSet(ctx, keyTrendingInfo, e.ChallengeID, data)
	}

	pipe.Expire(ctx, keyTrending, TTLTrendingCache)
	pipe.Expire(ctx, keyTrendingInfo, TTLTrendingCache)

	_, err := pipe.Exec(ctx)
	return err
}

// GetTrending returns the top trending challenges, highest score first.
func (l *LeaderboardCache) GetTrending(ctx context.Context, limit int) ([]TrendingChallenge, error) {
	if limit <= 0 {
		limit = 10
	}

	ids, err := l.cache.Client().ZRevRange(ctx, keyTrending, 0, int64(limit-1)).Result()
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, ErrCacheMiss
	}

	raw, err := l.cache.Client().HMGet(ctx, keyTrendingInfo, ids...).Result()
	if err != nil {
		return nil, err
	}

	out := make([]TrendingChallenge, 0, len(ids))
	for _, v := range raw {
		s, ok := v.(string)
		if !ok {
			continue
		}
		var t TrendingChallenge
		if err := json.Unmarshal([]byte(s), &t); err != nil {
			continue
		}
		out = append(out, t)
	}
	return out, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Internals
// ─────────────────────────────────────────────────────────────────────────────

func (l *LeaderboardCache) entriesFor(ctx context.Context, challengeID string, userIDs []string) ([]challenge.LeaderboardEntry, error) {
	infoKey := keyLeaderboardInfo + challengeID
	raw, err := l.cache.Client().HMGet(ctx, infoKey, userIDs...).Result()
	if err != nil {
		return nil, err
	}

	out := make([]challenge.LeaderboardEntry, 0, len(userIDs))
	for _, v := range raw {
		s, ok := v.(string)
		if !ok {
			continue
		}
		var e cachedEntry
		if err := json.Unmarshal([]byte(s), &e); err != nil {
			continue
		}
		out = append(out, toDomainEntry(e))
	}
	return out, nil
}

func fromDomainEntry(e challenge.LeaderboardEntry) cachedEntry {
	return cachedEntry{
		UserID:               string(e.UserID),
		Score:                e.Score,
		Rank:                 e.Rank,
		CompletionPercentage: e.CompletionPercentage,
		UpdatedAt:            e.UpdatedAt,
	}
}

func toDomainEntry(e cachedEntry) challenge.LeaderboardEntry {
	return challenge.LeaderboardEntry{
		UserID:               challenge.UserID(e.UserID),
		Score:                e.Score,
		Rank:                 e.Rank,
		CompletionPercentage: e.CompletionPercentage,
		UpdatedAt:            e.UpdatedAt,
	}
}
