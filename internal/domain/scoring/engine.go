// Package scoring implements the pure score computation for Challenge Hub:
// base score normalization, bonus and multiplier stacking, ranking with
// shared-rank ties, ELO-style rating deltas, and achievement thresholds.
// Everything here is a pure function over domain entities - no I/O, no clock
// other than what the caller passes in.
package scoring

import (
	"math"
	"sort"
	"time"

	"github.com/challengehub/challenge-hub/internal/domain/challenge"
	"github.com/challengehub/challenge-hub/internal/domain/participant"
)

// ══════════════════════════════════════════════════════════════════════════════
// SCORE BREAKDOWN
// ══════════════════════════════════════════════════════════════════════════════

// Bonus and multiplier names used in score breakdowns. Results persist these
// as map keys, so they are part of the stored vocabulary.
const (
	BonusSocial        = "social_engagement"
	BonusCompletion    = "completion"
	BonusTime          = "time"
	BonusConsistency   = "consistency"
	BonusDifficulty    = "difficulty"
	BonusCollaboration = "collaboration"

	MultiplierSocial     = "social"
	MultiplierDifficulty = "difficulty"
	MultiplierType       = "challenge_type"
	MultiplierStreak     = "streak"
)

// RawMetrics carries the raw inputs for one participant's score.
type RawMetrics struct {
	// PrimaryValue is the participant's value on the target metric.
	PrimaryValue float64

	// CompletedAt is when the participant finished, used by the time bonus.
	// Zero means not finished yet.
	CompletedAt time.Time

	// Now anchors duration-relative computations.
	Now time.Time
}

// Breakdown is the full explanation of a computed score.
type Breakdown struct {
	// BaseScore is the normalized raw value, clamped to >= 0.
	BaseScore float64

	// Bonuses maps bonus names to awarded points.
	Bonuses map[string]float64

	// Multipliers maps multiplier names to applied factors.
	Multipliers map[string]float64

	// FinalScore = max(0, (BaseScore + sum(Bonuses)) * product(Multipliers)).
	FinalScore float64
}

// BonusTotal returns the sum of all bonuses.
func (b Breakdown) BonusTotal() float64 {
	total := 0.0
	for _, v := range b.Bonuses {
		total += v
	}
	return total
}

// MultiplierProduct returns the product of all multipliers.
func (b Breakdown) MultiplierProduct() float64 {
	product := 1.0
	for _, v := range b.Multipliers {
		product *= v
	}
	return product
}

// ══════════════════════════════════════════════════════════════════════════════
// PARTICIPANT SCORE
// ══════════════════════════════════════════════════════════════════════════════

// CalculateParticipantScore computes one participant's final score and its
// breakdown for a challenge.
func CalculateParticipantScore(c *challenge.Challenge, p *participant.Participant, raw RawMetrics) (float64, Breakdown) {
	now := raw.Now
	if now.IsZero() {
		now = time.Now().UTC()
	}

	base := baseScore(raw.PrimaryValue, c.Rules.TargetValue)

	bonuses := map[string]float64{
		BonusSocial:      p.SocialScore * 0.5,
		BonusCompletion:  completionBonus(p.CompletionPercentage),
		BonusTime:        timeBonus(c, raw.CompletedAt),
		BonusConsistency: consistencyBonus(p.UpdatesPerDay(now)),
		BonusDifficulty:  DifficultyBonus(c.Difficulty),
	}
	if c.Type == challenge.TypeImpact && c.Rules.ScoringMethod == challenge.ScoringCollective {
		bonuses[BonusCollaboration] = p.SocialScore * 0.3
	}

	multipliers := map[string]float64{
		MultiplierSocial:     SocialMultiplier(p.EngagementLevel()),
		MultiplierDifficulty: c.Rules.DifficultyMultiplier,
		MultiplierType:       TypeMultiplier(c.Type),
		MultiplierStreak:     streakMultiplier(p.StreakDays),
	}

	breakdown := Breakdown{
		BaseScore:   base,
		Bonuses:     bonuses,
		Multipliers: multipliers,
	}
	final := (base + breakdown.BonusTotal()) * breakdown.MultiplierProduct()
	if final < 0 {
		final = 0
	}
	breakdown.FinalScore = final

	return final, breakdown
}

// baseScore normalizes the raw metric against the target: (value/target)*100
// when a target is set, the raw value otherwise. Never negative.
func baseScore(value, target float64) float64 {
	score := value
	if target > 0 {
		score = value / target * 100
	}
	if score < 0 {
		return 0
	}
	return score
}

// completionBonus rewards finishing: 25 points at 100%, 15 points at 75%.
func completionBonus(completionPct float64) float64 {
	switch {
	case completionPct >= 100:
		return 25
	case completionPct >= 75:
		return 15
	default:
		return 0
	}
}

// timeBonus rewards finishing early: 20 points within the first half of the
// challenge window, 10 within the first three quarters.
func timeBonus(c *challenge.Challenge, completedAt time.Time) float64 {
	if completedAt.IsZero() {
		return 0
	}
	total := c.Duration()
	if total <= 0 {
		return 0
	}

	elapsed := completedAt.Sub(c.StartDate)
	switch {
	case elapsed < 0:
		return 0
	case float64(elapsed) <= float64(total)*0.5:
		return 20
	case float64(elapsed) <= float64(total)*0.75:
		return 10
	default:
		return 0
	}
}

// consistencyBonus rewards regular progress updates.
func consistencyBonus(updatesPerDay float64) float64 {
	switch {
	case updatesPerDay >= 1.0:
		return 15
	case updatesPerDay >= 0.5:
		return 8
	default:
		return 0
	}
}

// DifficultyBonus is the fixed bonus table indexed by difficulty level.
func DifficultyBonus(level challenge.DifficultyLevel) float64 {
	switch level {
	case 1:
		return 0
	case 2:
		return 5
	case 3:
		return 10
	case 4:
		return 20
	case 5:
		return 30
	default:
		return 0
	}
}

// SocialMultiplier is the engagement-level multiplier table.
func SocialMultiplier(level participant.EngagementLevel) float64 {
	switch level {
	case participant.EngagementNone:
		return 1.0
	case participant.EngagementLow:
		return 1.1
	case participant.EngagementMedium:
		return 1.2
	case participant.EngagementHigh:
		return 1.3
	case participant.EngagementVeryHigh:
		return 1.5
	default:
		return 1.0
	}
}

// TypeMultiplier is the challenge-type multiplier table.
func TypeMultiplier(t challenge.Type) float64 {
	switch t {
	case challenge.TypeGaming:
		return 1.0
	case challenge.TypeSocialEngagement:
		return 1.2
	case challenge.TypeImpact:
		return 1.3
	default:
		return 1.0
	}
}

// streakMultiplier rewards sustained daily streaks.
func streakMultiplier(streakDays int) float64 {
	switch {
	case streakDays >= 7:
		return 1.2
	case streakDays >= 3:
		return 1.1
	default:
		return 1.0
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// RANKING
// ══════════════════════════════════════════════════════════════════════════════

// Scored pairs a participant with their computed score, ready for ranking.
type Scored struct {
	UserID challenge.UserID
	Score  float64
}

// Ranked is one entry of the final ranking.
type Ranked struct {
	UserID challenge.UserID
	Score  float64

	// Rank is 1-based; equal scores share a rank, and the next distinct
	// score takes its 1-based position.
	Rank int

	// TotalParticipants is the ranked field size.
	TotalParticipants int

	// CollectiveTotal carries the summed score for collective challenges.
	CollectiveTotal float64
}

// CalculateRankings orders scored participants according to the challenge's
// scoring method and assigns ranks.
//
//   - lowest: ascending by score (fastest / fewest wins)
//   - collective: everyone shares rank 1 if the summed score meets the
//     target, otherwise everyone shares the last rank
//   - highest / target: descending by score
func CalculateRankings(c *challenge.Challenge, scored []Scored) []Ranked {
	n := len(scored)
	if n == 0 {
		return []Ranked{}
	}

	if c.Rules.ScoringMethod == challenge.ScoringCollective {
		return rankCollective(c.Rules.TargetValue, scored)
	}

	ordered := make([]Scored, n)
	copy(ordered, scored)

	ascending := c.Rules.ScoringMethod == challenge.ScoringLowest
	sort.SliceStable(ordered, func(i, j int) bool {
		if ascending {
			return ordered[i].Score < ordered[j].Score
		}
		return ordered[i].Score > ordered[j].Score
	})

	ranked := make([]Ranked, n)
	for i, s := range ordered {
		rank := i + 1
		if i > 0 && s.Score == ordered[i-1].Score {
			rank = ranked[i-1].Rank
		}
		ranked[i] = Ranked{
			UserID:            s.UserID,
			Score:             s.Score,
			Rank:              rank,
			TotalParticipants: n,
		}
	}
	return ranked
}

func rankCollective(target float64, scored []Scored) []Ranked {
	n := len(scored)

	total := 0.0
	for _, s := range scored {
		total += s.Score
	}

	rank := n
	if total >= target {
		rank = 1
	}

	ranked := make([]Ranked, n)
	for i, s := range scored {
		ranked[i] = Ranked{
			UserID:            s.UserID,
			Score:             s.Score,
			Rank:              rank,
			TotalParticipants: n,
			CollectiveTotal:   total,
		}
	}
	return ranked
}

// ══════════════════════════════════════════════════════════════════════════════
// ELO RATING
// ══════════════════════════════════════════════════════════════════════════════

// CalculateEloDelta computes the rating change for one participant after a
// multi-player challenge, using the logistic expected-score formula against
// the average opponent rating. The actual score is the participant's
// normalized finishing position: 1 for first, 0 for last.
//
// K-factor is 32 for ratings below 1200 (provisional players move faster)
// and 16 otherwise. Returns 0 when there is no real competition: fewer than
// two participants or no opponent ratings.
func CalculateEloDelta(rating float64, opponentRatings []float64, rank, totalParticipants int) float64 {
	if totalParticipants < 2 || len(opponentRatings) == 0 {
		return 0
	}

	avgOpponent := 0.0
	for _, r := range opponentRatings {
		avgOpponent += r
	}
	avgOpponent /= float64(len(opponentRatings))

	expected := 1.0 / (1.0 + math.Pow(10, (avgOpponent-rating)/400))
	actual := float64(totalParticipants-rank) / float64(totalParticipants-1)

	k := 16.0
	if rating < 1200 {
		k = 32.0
	}

	return k * (actual - expected)
}

// ══════════════════════════════════════════════════════════════════════════════
// ACHIEVEMENT THRESHOLDS & LEADERBOARD MOVEMENT
// ══════════════════════════════════════════════════════════════════════════════

// Milestone names, ordered from easiest to hardest.
const (
	MilestoneBronze   = "bronze"
	MilestoneSilver   = "silver"
	MilestoneGold     = "gold"
	MilestonePlatinum = "platinum"
	MilestoneDiamond  = "diamond"
)

// AchievementThresholds returns the metric values at which each milestone is
// reached for a challenge. Diamond sits deliberately above the target to
// reward overachievers.
func AchievementThresholds(c *challenge.Challenge) map[string]float64 {
	target := c.Rules.TargetValue
	return map[string]float64{
		MilestoneBronze:   target * 0.25,
		MilestoneSilver:   target * 0.50,
		MilestoneGold:     target * 0.75,
		MilestonePlatinum: target,
		MilestoneDiamond:  target * 1.25,
	}
}

// MilestonesReached returns the milestones a metric value has crossed,
// ordered easiest first.
func MilestonesReached(c *challenge.Challenge, value float64) []string {
	thresholds := AchievementThresholds(c)
	ordered := []string{MilestoneBronze, MilestoneSilver, MilestoneGold, MilestonePlatinum, MilestoneDiamond}

	reached := make([]string, 0, len(ordered))
	for _, name := range ordered {
		if value >= thresholds[name] {
			reached = append(reached, name)
		}
	}
	return reached
}

// Movement classifies a leaderboard position change.
type Movement string

const (
	MovementNew    Movement = "new"
	MovementUp     Movement = "up"
	MovementDown   Movement = "down"
	MovementStable Movement = "stable"
)

// LeaderboardMovement classifies the change from prevRank to newRank and
// returns the percentile delta (positive = climbed). prevRank 0 means the
// participant was not on the board before.
func LeaderboardMovement(prevRank, newRank, total int) (Movement, float64) {
	if total <= 0 || newRank <= 0 {
		return MovementStable, 0
	}
	if prevRank <= 0 {
		return MovementNew, 0
	}

	delta := float64(prevRank-newRank) / float64(total) * 100
	switch {
	case newRank < prevRank:
		return MovementUp, delta
	case newRank > prevRank:
		return MovementDown, delta
	default:
		return MovementStable, 0
	}
}
