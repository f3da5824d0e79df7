package scoring

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/challengehub/challenge-hub/internal/domain/challenge"
	"github.com/challengehub/challenge-hub/internal/domain/participant"
)

func newTestChallenge(t *testing.T, typ challenge.Type, method challenge.ScoringMethod, difficulty challenge.DifficultyLevel) *challenge.Challenge {
	t.Helper()

	c, err := challenge.NewChallenge(challenge.NewChallengeParams{
		ID:         "ch-1",
		CreatorID:  "creator",
		Title:      "Test Challenge",
		Type:       typ,
		Category:   "speed_run",
		Difficulty: difficulty,
		Rules: challenge.Rules{
			TargetMetric:         "score",
			TargetValue:          100,
			MinParticipants:      2,
			MaxParticipants:      10,
			ScoringMethod:        method,
			DifficultyMultiplier: 1.0,
		},
		Rewards:  challenge.DefaultRewards(),
		Duration: 7 * 24 * time.Hour,
	})
	require.NoError(t, err)
	return c
}

func newTestParticipant(t *testing.T, userID challenge.UserID) *participant.Participant {
	t.Helper()

	p, err := participant.NewParticipant("p-"+string(userID), "ch-1", userID)
	require.NoError(t, err)
	return p
}

func TestCalculateParticipantScore_BonusSubtotal(t *testing.T) {
	// difficulty 3, social score 40, full completion, high engagement:
	// social(20) + completion(25) + difficulty(10) = 55, multiplied by the
	// 1.3 social multiplier only.
	c := newTestChallenge(t, challenge.TypeGaming, challenge.ScoringHighest, 3)
	p := newTestParticipant(t, "alice")
	p.SocialScore = 40
	p.CompletionPercentage = 100

	final, breakdown := CalculateParticipantScore(c, p, RawMetrics{
		PrimaryValue: 0,
		Now:          time.Now().UTC(),
	})

	assert.Equal(t, participant.EngagementHigh, p.EngagementLevel())
	assert.InDelta(t, 55.0, breakdown.BonusTotal(), 0.001)
	assert.InDelta(t, 20.0, breakdown.Bonuses[BonusSocial], 0.001)
	assert.InDelta(t, 25.0, breakdown.Bonuses[BonusCompletion], 0.001)
	assert.InDelta(t, 10.0, breakdown.Bonuses[BonusDifficulty], 0.001)
	assert.InDelta(t, 1.3, breakdown.Multipliers[MultiplierSocial], 0.001)
	assert.InDelta(t, 1.0, breakdown.Multipliers[MultiplierDifficulty], 0.001)
	assert.InDelta(t, 1.0, breakdown.Multipliers[MultiplierType], 0.001)
	assert.InDelta(t, 1.0, breakdown.Multipliers[MultiplierStreak], 0.001)
	assert.InDelta(t, 55.0*1.3, final, 0.001)
}

func TestCalculateParticipantScore_BaseNormalization(t *testing.T) {
	c := newTestChallenge(t, challenge.TypeGaming, challenge.ScoringHighest, 1)
	p := newTestParticipant(t, "bob")

	_, breakdown := CalculateParticipantScore(c, p, RawMetrics{PrimaryValue: 50})
	assert.InDelta(t, 50.0, breakdown.BaseScore, 0.001, "50/100 target = 50%")

	_, breakdown = CalculateParticipantScore(c, p, RawMetrics{PrimaryValue: -10})
	assert.Equal(t, 0.0, breakdown.BaseScore, "base score is clamped to >= 0")
}

func TestCalculateParticipantScore_CollaborationBonus(t *testing.T) {
	c := newTestChallenge(t, challenge.TypeImpact, challenge.ScoringCollective, 2)
	p := newTestParticipant(t, "carol")
	p.SocialScore = 10

	_, breakdown := CalculateParticipantScore(c, p, RawMetrics{PrimaryValue: 30})
	assert.InDelta(t, 3.0, breakdown.Bonuses[BonusCollaboration], 0.001)

	gaming := newTestChallenge(t, challenge.TypeGaming, challenge.ScoringHighest, 2)
	_, breakdown = CalculateParticipantScore(gaming, p, RawMetrics{PrimaryValue: 30})
	_, hasCollab := breakdown.Bonuses[BonusCollaboration]
	assert.False(t, hasCollab, "collaboration bonus only applies to collective impact challenges")
}

func TestCalculateParticipantScore_TimeBonus(t *testing.T) {
	c := newTestChallenge(t, challenge.TypeGaming, challenge.ScoringHighest, 1)
	p := newTestParticipant(t, "dave")

	early := c.StartDate.Add(c.Duration() / 4)
	_, breakdown := CalculateParticipantScore(c, p, RawMetrics{PrimaryValue: 10, CompletedAt: early})
	assert.InDelta(t, 20.0, breakdown.Bonuses[BonusTime], 0.001)

	mid := c.StartDate.Add(c.Duration() * 7 / 10)
	_, breakdown = CalculateParticipantScore(c, p, RawMetrics{PrimaryValue: 10, CompletedAt: mid})
	assert.InDelta(t, 10.0, breakdown.Bonuses[BonusTime], 0.001)

	late := c.StartDate.Add(c.Duration() * 9 / 10)
	_, breakdown = CalculateParticipantScore(c, p, RawMetrics{PrimaryValue: 10, CompletedAt: late})
	assert.InDelta(t, 0.0, breakdown.Bonuses[BonusTime], 0.001)
}

func TestCalculateRankings_HighestWithTies(t *testing.T) {
	// Two participants tied at 80 share rank 1; the third at 50 takes rank 3.
	c := newTestChallenge(t, challenge.TypeGaming, challenge.ScoringHighest, 1)

	ranked := CalculateRankings(c, []Scored{
		{UserID: "alice", Score: 80},
		{UserID: "bob", Score: 50},
		{UserID: "carol", Score: 80},
	})

	require.Len(t, ranked, 3)
	byUser := map[challenge.UserID]Ranked{}
	for _, r := range ranked {
		byUser[r.UserID] = r
		assert.Equal(t, 3, r.TotalParticipants)
	}
	assert.Equal(t, 1, byUser["alice"].Rank)
	assert.Equal(t, 1, byUser["carol"].Rank)
	assert.Equal(t, 3, byUser["bob"].Rank)
}

func TestCalculateRankings_RankingLaw(t *testing.T) {
	c := newTestChallenge(t, challenge.TypeGaming, challenge.ScoringHighest, 1)

	ranked := CalculateRankings(c, []Scored{
		{UserID: "a", Score: 10},
		{UserID: "b", Score: 90},
		{UserID: "c", Score: 40},
		{UserID: "d", Score: 90},
	})

	byUser := map[challenge.UserID]Ranked{}
	for _, r := range ranked {
		byUser[r.UserID] = r
	}
	// Higher score never ranks worse.
	for _, x := range ranked {
		for _, y := range ranked {
			if x.Score > y.Score {
				assert.LessOrEqual(t, x.Rank, y.Rank)
			}
			if x.Score == y.Score {
				assert.Equal(t, x.Rank, y.Rank)
			}
		}
	}
	assert.Equal(t, 1, byUser["b"].Rank)
	assert.Equal(t, 1, byUser["d"].Rank)
	assert.Equal(t, 3, byUser["c"].Rank)
	assert.Equal(t, 4, byUser["a"].Rank)
}

func TestCalculateRankings_Lowest(t *testing.T) {
	c := newTestChallenge(t, challenge.TypeGaming, challenge.ScoringLowest, 1)

	ranked := CalculateRankings(c, []Scored{
		{UserID: "slow", Score: 300},
		{UserID: "fast", Score: 120},
	})

	assert.Equal(t, challenge.UserID("fast"), ranked[0].UserID)
	assert.Equal(t, 1, ranked[0].Rank)
	assert.Equal(t, 2, ranked[1].Rank)
}

func TestCalculateRankings_Collective(t *testing.T) {
	c := newTestChallenge(t, challenge.TypeImpact, challenge.ScoringCollective, 1)

	// Sum 120 >= target 100: everyone is rank 1.
	ranked := CalculateRankings(c, []Scored{
		{UserID: "a", Score: 70},
		{UserID: "b", Score: 50},
	})
	for _, r := range ranked {
		assert.Equal(t, 1, r.Rank)
		assert.InDelta(t, 120.0, r.CollectiveTotal, 0.001)
	}

	// Sum 90 < target 100: everyone shares the last rank.
	ranked = CalculateRankings(c, []Scored{
		{UserID: "a", Score: 40},
		{UserID: "b", Score: 30},
		{UserID: "c", Score: 20},
	})
	for _, r := range ranked {
		assert.Equal(t, 3, r.Rank)
		assert.InDelta(t, 90.0, r.CollectiveTotal, 0.001)
	}
}

func TestCalculateEloDelta_UnderdogWin(t *testing.T) {
	delta := CalculateEloDelta(1000, []float64{1200}, 1, 2)
	assert.Greater(t, delta, 0.0, "underdog beating a stronger opponent gains rating")
	// Expected score ~0.24, actual 1.0, K=32.
	assert.InDelta(t, 24.3, delta, 0.5)
}

func TestCalculateEloDelta_Favorites(t *testing.T) {
	// Strong player finishing last loses rating, with the smaller K-factor.
	delta := CalculateEloDelta(1600, []float64{1200, 1300}, 3, 3)
	assert.Less(t, delta, 0.0)
	assert.GreaterOrEqual(t, delta, -16.0)
}

func TestCalculateEloDelta_Degenerate(t *testing.T) {
	assert.Equal(t, 0.0, CalculateEloDelta(1000, []float64{1200}, 1, 1))
	assert.Equal(t, 0.0, CalculateEloDelta(1000, nil, 1, 2))
}

func TestAchievementThresholds(t *testing.T) {
	c := newTestChallenge(t, challenge.TypeGaming, challenge.ScoringHighest, 1)

	thresholds := AchievementThresholds(c)
	assert.InDelta(t, 25.0, thresholds[MilestoneBronze], 0.001)
	assert.InDelta(t, 50.0, thresholds[MilestoneSilver], 0.001)
	assert.InDelta(t, 75.0, thresholds[MilestoneGold], 0.001)
	assert.InDelta(t, 100.0, thresholds[MilestonePlatinum], 0.001)
	assert.InDelta(t, 125.0, thresholds[MilestoneDiamond], 0.001)
}

func TestMilestonesReached(t *testing.T) {
	c := newTestChallenge(t, challenge.TypeGaming, challenge.ScoringHighest, 1)

	assert.Empty(t, MilestonesReached(c, 10))
	assert.Equal(t, []string{MilestoneBronze, MilestoneSilver}, MilestonesReached(c, 60))
	assert.Len(t, MilestonesReached(c, 130), 5)
}

func TestLeaderboardMovement(t *testing.T) {
	movement, _ := LeaderboardMovement(0, 3, 10)
	assert.Equal(t, MovementNew, movement)

	movement, delta := LeaderboardMovement(5, 2, 10)
	assert.Equal(t, MovementUp, movement)
	assert.InDelta(t, 30.0, delta, 0.001)

	movement, delta = LeaderboardMovement(2, 6, 10)
	assert.Equal(t, MovementDown, movement)
	assert.InDelta(t, -40.0, delta, 0.001)

	movement, _ = LeaderboardMovement(4, 4, 10)
	assert.Equal(t, MovementStable, movement)
}
