package service

import (
	"cmp"
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/challengehub/challenge-hub/internal/domain/challenge"
	"github.com/challengehub/challenge-hub/internal/domain/participant"
)

// ══════════════════════════════════════════════════════════════════════════════
// MATCHMAKING SERVICE
// Heuristic discovery: per-challenge match scores, preference scores derived
// from participation history, recommendations, search relevance, trending
// and similarity. All scores are additive heuristics capped to [0,100];
// none of them is a ranking guarantee.
// ══════════════════════════════════════════════════════════════════════════════

// MatchmakingService scores and recommends challenges for users.
type MatchmakingService struct {
	challenges   challenge.Repository
	participants participant.Repository
	log          *logrus.Entry
	clock        func() time.Time

	// historyDepth is how many recent participations feed the preference
	// profile.
	historyDepth int
}

// NewMatchmakingService creates a MatchmakingService.
func NewMatchmakingService(
	challenges challenge.Repository,
	participants participant.Repository,
	log *logrus.Entry,
) *MatchmakingService {
	return &MatchmakingService{
		challenges:   challenges,
		participants: participants,
		log:          log,
		clock:        func() time.Time { return time.Now().UTC() },
		historyDepth: 20,
	}
}

// WithClock overrides the time source for tests.
func (s *MatchmakingService) WithClock(clock func() time.Time) *MatchmakingService {
	s.clock = clock
	return s
}

// ─────────────────────────────────────────────────────────────────────────────
// Match score
// ─────────────────────────────────────────────────────────────────────────────

// MatchScore rates how attractive a challenge is for a prospective joiner,
// independent of the user's taste. Additive, capped at 100.
func (s *MatchmakingService) MatchScore(c *challenge.Challenge, userID challenge.UserID, now time.Time) float64 {
	score := 0.0

	if c.IsJoinable(now) && !c.HasParticipant(userID) {
		score += 20
	}

	switch c.Difficulty {
	case 3:
		score += 15
	case 2, 4:
		score += 10
	default:
		score += 5
	}

	remaining := c.TimeRemaining(now)
	switch {
	case remaining > 72*time.Hour:
		score += 15
	case remaining > 24*time.Hour:
		score += 10
	default:
		score += 5
	}

	ratio := c.FillRatio()
	switch {
	case ratio >= 0.3 && ratio <= 0.7:
		score += 10
	case ratio >= 0.1 && ratio <= 0.9:
		score += 5
	}

	if c.AllowCheering && c.AllowComments {
		score += 5
	}

	return capScore(score)
}

// ─────────────────────────────────────────────────────────────────────────────
// Preference profile
// ─────────────────────────────────────────────────────────────────────────────

// Preferences is a user's taste profile derived from participation history.
type Preferences struct {
	// TopTypes are the user's most-joined challenge types.
	TopTypes []challenge.Type

	// TopCategories are the user's most-joined categories.
	TopCategories []challenge.Category

	// PreferredDifficulty is the most common difficulty joined, 0 if unknown.
	PreferredDifficulty challenge.DifficultyLevel

	// AvgSocialScore is the user's mean social score across participations.
	AvgSocialScore float64
}

// PreferenceScore rates how well a challenge fits a taste profile.
// Additive, capped at 100.
func (s *MatchmakingService) PreferenceScore(c *challenge.Challenge, prefs Preferences) float64 {
	score := 0.0

	for _, t := range prefs.TopTypes {
		if t == c.Type {
			score += 30
			break
		}
	}
	for _, cat := range prefs.TopCategories {
		if cat == c.Category {
			score += 25
			break
		}
	}
	if prefs.PreferredDifficulty != 0 && prefs.PreferredDifficulty == c.Difficulty {
		score += 20
	}
	if prefs.AvgSocialScore > 10 && c.SocialFeaturesEnabled() {
		score += 15
	}

	return capScore(score)
}

// BuildPreferences derives a taste profile from the user's recent
// participations. A user with no history gets an empty profile; every
// preference component then contributes zero.
func (s *MatchmakingService) BuildPreferences(ctx context.Context, userID challenge.UserID) (Preferences, error) {
	history, err := s.participants.GetByUser(ctx, userID, s.historyDepth)
	if err != nil {
		return Preferences{}, fmt.Errorf("build preferences: %w", err)
	}
	if len(history) == 0 {
		return Preferences{}, nil
	}

	typeCounts := map[challenge.Type]int{}
	categoryCounts := map[challenge.Category]int{}
	difficultyCounts := map[challenge.DifficultyLevel]int{}
	socialTotal := 0.0

	for _, p := range history {
		socialTotal += p.SocialScore

		c, err := s.challenges.GetByID(ctx, p.ChallengeID)
		if err != nil {
			continue
		}
		typeCounts[c.Type]++
		categoryCounts[c.Category]++
		difficultyCounts[c.Difficulty]++
	}

	return Preferences{
		TopTypes:            topKeys(typeCounts, 2),
		TopCategories:       topKeys(categoryCounts, 3),
		PreferredDifficulty: mostCommon(difficultyCounts),
		AvgSocialScore:      socialTotal / float64(len(history)),
	}, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Recommendations
// ─────────────────────────────────────────────────────────────────────────────

// Recommendation is one scored suggestion.
type Recommendation struct {
	Challenge *challenge.Challenge

	// Score is the blended match/preference score.
	Score float64

	// Reasons are human-readable explanations of the match.
	Reasons []string
}

// Recommend scores every open, joinable public challenge for the user as
// 0.4*MatchScore + 0.6*PreferenceScore, sorted descending and truncated to
// limit.
func (s *MatchmakingService) Recommend(ctx context.Context, userID challenge.UserID, limit int) ([]Recommendation, error) {
	if limit <= 0 {
		limit = 10
	}
	now := s.clock()

	prefs, err := s.BuildPreferences(ctx, userID)
	if err != nil {
		return nil, err
	}

	open, err := s.challenges.GetOpenPublic(ctx, now, challenge.ListOptions{Limit: 200})
	if err != nil {
		return nil, fmt.Errorf("recommend: list open challenges: %w", err)
	}

	recs := make([]Recommendation, 0, len(open))
	for _, c := range open {
		if !c.IsJoinable(now) || c.HasParticipant(userID) {
			continue
		}

		match := s.MatchScore(c, userID, now)
		pref := s.PreferenceScore(c, prefs)
		blended := 0.4*match + 0.6*pref

		recs = append(recs, Recommendation{
			Challenge: c,
			Score:     blended,
			Reasons:   matchReasons(c, prefs, now),
		})
	}

	sort.SliceStable(recs, func(i, j int) bool {
		return recs[i].Score > recs[j].Score
	})
	if len(recs) > limit {
		recs = recs[:limit]
	}
	return recs, nil
}

func matchReasons(c *challenge.Challenge, prefs Preferences, now time.Time) []string {
	var reasons []string

	for _, t := range prefs.TopTypes {
		if t == c.Type {
			reasons = append(reasons, "Matches your preferred type")
			break
		}
	}
	for _, cat := range prefs.TopCategories {
		if cat == c.Category {
			reasons = append(reasons, "Matches your favorite category")
			break
		}
	}
	if prefs.PreferredDifficulty != 0 && prefs.PreferredDifficulty == c.Difficulty {
		reasons = append(reasons, "Matches your usual difficulty")
	}
	if prefs.AvgSocialScore > 10 && c.SocialFeaturesEnabled() {
		reasons = append(reasons, "Active social features like yours")
	}
	if c.TimeRemaining(now) > 72*time.Hour {
		reasons = append(reasons, "Plenty of time to compete")
	}
	if len(reasons) == 0 {
		reasons = append(reasons, "Popular right now")
	}
	return reasons
}

// ─────────────────────────────────────────────────────────────────────────────
// Search relevance, trending, similarity
// ─────────────────────────────────────────────────────────────────────────────

// SearchRelevance rates how well a challenge matches a free-text query.
// Weighted substring match; used purely for client-side result ordering.
func (s *MatchmakingService) SearchRelevance(c *challenge.Challenge, query string) float64 {
	query = strings.ToLower(strings.TrimSpace(query))
	if query == "" {
		return 0
	}

	score := 0.0
	if strings.Contains(strings.ToLower(c.Title), query) {
		score += 40
	}
	if strings.Contains(strings.ToLower(string(c.Category)), query) {
		score += 25
	}
	if strings.Contains(strings.ToLower(string(c.Type)), query) {
		score += 30
	}
	if strings.Contains(strings.ToLower(c.Description), query) {
		score += 20
	}
	for _, tag := range c.Tags {
		if strings.Contains(strings.ToLower(tag), query) {
			score += 15
		}
	}
	return score
}

// TrendingScore rates how "hot" a challenge currently is.
func (s *MatchmakingService) TrendingScore(c *challenge.Challenge, now time.Time) float64 {
	score := 0.0

	age := now.Sub(c.CreatedAt)
	switch {
	case age < 24*time.Hour:
		score += 20
	case age < 72*time.Hour:
		score += 10
	}

	score += c.FillRatio() * 30

	if c.IsPublic {
		score += 15
	}
	if c.SocialFeaturesEnabled() {
		score += 10
	}
	if c.Status == challenge.StatusActive {
		score += 25
	}

	return score
}

// SimilarityScore rates how alike two challenges are, for "more like this"
// suggestions.
func (s *MatchmakingService) SimilarityScore(a, b *challenge.Challenge) float64 {
	score := 0.0

	if a.Type == b.Type {
		score += 30
	}
	if a.Category == b.Category {
		score += 25
	}

	diffGap := int(a.Difficulty) - int(b.Difficulty)
	if diffGap < 0 {
		diffGap = -diffGap
	}
	switch diffGap {
	case 0:
		score += 20
	case 1:
		score += 10
	}

	da, db := a.Duration(), b.Duration()
	if da > 0 && db > 0 {
		ratio := float64(da) / float64(db)
		if ratio > 1 {
			ratio = 1 / ratio
		}
		score += ratio * 15
	}

	score += 3 * float64(sharedTags(a.Tags, b.Tags))

	return score
}

// ─────────────────────────────────────────────────────────────────────────────
// helpers
// ─────────────────────────────────────────────────────────────────────────────

func capScore(score float64) float64 {
	if score > 100 {
		return 100
	}
	if score < 0 {
		return 0
	}
	return score
}

func sharedTags(a, b []string) int {
	set := make(map[string]struct{}, len(a))
	for _, tag := range a {
		set[strings.ToLower(tag)] = struct{}{}
	}
	count := 0
	for _, tag := range b {
		if _, ok := set[strings.ToLower(tag)]; ok {
			count++
		}
	}
	return count
}

// topKeys returns the limit highest-count keys. Equal counts fall back to
// key order so the result is stable across runs despite map iteration.
func topKeys[K cmp.Ordered](counts map[K]int, limit int) []K {
	type kv struct {
		key   K
		count int
	}
	pairs := make([]kv, 0, len(counts))
	for k, v := range counts {
		pairs = append(pairs, kv{k, v})
	}
	sort.SliceStable(pairs, func(i, j int) bool {
		if pairs[i].count != pairs[j].count {
			return pairs[i].count > pairs[j].count
		}
		return pairs[i].key < pairs[j].key
	})
	if len(pairs) > limit {
		pairs = pairs[:limit]
	}
	keys := make([]K, len(pairs))
	for i, p := range pairs {
		keys[i] = p.key
	}
	return keys
}

// mostCommon has the same tie rule as topKeys: the smaller key wins.
func mostCommon[K cmp.Ordered](counts map[K]int) K {
	var best K
	bestCount := 0
	for k, v := range counts {
		if v > bestCount || (v == bestCount && bestCount > 0 && k < best) {
			best, bestCount = k, v
		}
	}
	return best
}
