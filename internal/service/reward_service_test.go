package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/challengehub/challenge-hub/internal/domain/challenge"
	"github.com/challengehub/challenge-hub/internal/domain/participant"
	"github.com/challengehub/challenge-hub/internal/domain/shared"
)

func rewardFixture(t *testing.T) (*RewardService, *memParticipantRepo, *memResultRepo, *memBus) {
	t.Helper()
	participants := newMemParticipantRepo()
	results := newMemResultRepo()
	bus := newMemBus()
	return NewRewardService(participants, results, bus, testLogger()), participants, results, bus
}

func rewardChallenge(t *testing.T) *challenge.Challenge {
	t.Helper()
	c, err := challenge.NewChallenge(challenge.NewChallengeParams{
		ID:         "ch-1",
		CreatorID:  "creator",
		Title:      "Reading Sprint",
		Type:       challenge.TypeGaming,
		Category:   "reading",
		Difficulty: 3,
		Rules: challenge.Rules{
			TargetMetric:         "pages",
			TargetValue:          500,
			MinParticipants:      2,
			MaxParticipants:      10,
			ScoringMethod:        challenge.ScoringHighest,
			DifficultyMultiplier: 1.0,
		},
		Rewards:  challenge.DefaultRewards(),
		Duration: 48 * time.Hour,
		IsPublic: true,
	})
	require.NoError(t, err)
	return c
}

func rewardResult(t *testing.T, c *challenge.Challenge, userID challenge.UserID, baseScore, finalScore, socialScore float64, rank, total int) *participant.Result {
	t.Helper()
	res, err := participant.NewResult(participant.NewResultParams{
		ID:                "res-" + string(userID),
		ChallengeID:       c.ID,
		UserID:            userID,
		BaseScore:         baseScore,
		FinalScore:        finalScore,
		Rank:              rank,
		TotalParticipants: total,
		SocialScore:       socialScore,
	})
	require.NoError(t, err)
	return res
}

func TestCalculateGrant_Winner(t *testing.T) {
	svc, _, _, _ := rewardFixture(t)
	c := rewardChallenge(t)

	// Winner, 100% completion, social score 20, no friends brought in.
	res := rewardResult(t, c, "winner", 100, 180, 20, 1, 2)
	p, err := participant.NewParticipant("p-winner", c.ID, "winner")
	require.NoError(t, err)
	p.CompletionPercentage = 100
	p.BestRank = 1

	grants := svc.CalculateChallengeRewards(context.Background(), c, []*participant.Result{res},
		map[challenge.UserID]*participant.Participant{"winner": p})
	require.Len(t, grants, 1)
	g := grants[0]

	// 100 base x 1.2 social x 1.2 completion = 144, plus perfect_score (50)
	// and speed_demon (60).
	assert.Equal(t, 254, g.Credits)
	assert.ElementsMatch(t, g.Specials, []string{SpecialPerfectScore, SpecialSpeedDemon})
	assert.Contains(t, g.Badges, "challenge_winner")
	assert.Contains(t, g.Badges, BadgeCompletionist)
	assert.Contains(t, g.Badges, BadgeTopPerformer)
	assert.NotContains(t, g.Badges, BadgeSocialChampion)
}

func TestCalculateGrant_ParticipantWithSocialCap(t *testing.T) {
	svc, _, _, _ := rewardFixture(t)
	c := rewardChallenge(t)

	// Rank 4: not a winner and not a top performer. Social score 60 would
	// give a 1.6x multiplier but the default cap is 1.5.
	res := rewardResult(t, c, "runner", 50, 90, 60, 4, 6)
	p, err := participant.NewParticipant("p-runner", c.ID, "runner")
	require.NoError(t, err)
	p.CompletionPercentage = 50
	p.BestRank = 4
	p.SocialScore = 60
	p.FriendsJoined = 1

	g := svc.CalculateChallengeRewards(context.Background(), c, []*participant.Result{res},
		map[challenge.UserID]*participant.Participant{"runner": p})[0]

	// 25 x 1.5 = 37.5, +10 friend bonus, +40 social_leader = 87.5 -> 88.
	assert.Equal(t, 88, g.Credits)
	assert.Equal(t, []string{SpecialSocialLeader}, g.Specials)
	assert.Contains(t, g.Badges, "challenge_finisher")
	assert.Contains(t, g.Badges, BadgeSocialChampion)
	assert.NotContains(t, g.Badges, BadgeTopPerformer)
}

func TestCalculateGrant_UnderdogVictory(t *testing.T) {
	svc, _, results, _ := rewardFixture(t)
	c := rewardChallenge(t)

	// History: the user's best previous finish was rank 8.
	prev, err := participant.NewResult(participant.NewResultParams{
		ID: "res-old", ChallengeID: "older-challenge", UserID: "comeback",
		FinalScore: 40, Rank: 8, TotalParticipants: 10,
	})
	require.NoError(t, err)
	require.NoError(t, results.Create(context.Background(), prev))

	res := rewardResult(t, c, "comeback", 80, 120, 0, 1, 2)
	p, err := participant.NewParticipant("p-comeback", c.ID, "comeback")
	require.NoError(t, err)
	p.CompletionPercentage = 80

	g := svc.CalculateChallengeRewards(context.Background(), c, []*participant.Result{res},
		map[challenge.UserID]*participant.Participant{"comeback": p})[0]

	assert.Contains(t, g.Specials, SpecialUnderdogVictory)
	// No perfect score (base 80) and no speed demon (80% completion).
	assert.NotContains(t, g.Specials, SpecialPerfectScore)
	assert.NotContains(t, g.Specials, SpecialSpeedDemon)
	// 100 x 1.0 social + 75 underdog = 175.
	assert.Equal(t, 175, g.Credits)
}

func TestCalculateGrant_SpecialCreditOverride(t *testing.T) {
	svc, _, _, _ := rewardFixture(t)
	c := rewardChallenge(t)
	c.Rewards.SpecialRewards[SpecialPerfectScore] = 200

	res := rewardResult(t, c, "winner", 100, 150, 0, 1, 2)

	g := svc.CalculateChallengeRewards(context.Background(), c, []*participant.Result{res},
		map[challenge.UserID]*participant.Participant{})[0]

	// 100 base + 200 overridden perfect_score (no participant record, so no
	// completion bonus or speed demon).
	assert.Equal(t, 300, g.Credits)
}

func TestClaimRewards_OnlyOnce(t *testing.T) {
	// Drive a real completion through the manager, then claim twice.
	f := newManagerFixture(t)
	ctx := context.Background()

	created, err := f.manager.CreateChallenge(ctx, createCommand())
	require.NoError(t, err)
	id := created.Challenge.ID

	_, err = f.manager.Join(ctx, id, "user-a")
	require.NoError(t, err)
	_, err = f.manager.Start(ctx, id)
	require.NoError(t, err)
	_, err = f.manager.UpdateProgress(ctx, UpdateProgressCommand{
		ChallengeID: id, UserID: "user-a",
		Delta: map[string]float64{"steps": 10000},
	})
	require.NoError(t, err)
	completed, err := f.manager.Complete(ctx, id)
	require.NoError(t, err)
	require.True(t, completed.Success)

	svc := NewRewardService(f.participants, f.results, f.bus, testLogger())

	first, err := svc.ClaimRewards(ctx, completed.Challenge, "user-a")
	require.NoError(t, err)
	require.True(t, first.Success)
	assert.Positive(t, first.Grant.Credits)

	stored, err := f.participants.GetByChallengeAndUser(ctx, id, "user-a")
	require.NoError(t, err)
	assert.Equal(t, first.Grant.Credits, stored.CreditsEarned)

	second, err := svc.ClaimRewards(ctx, completed.Challenge, "user-a")
	require.NoError(t, err)
	assert.False(t, second.Success)
	assert.Equal(t, ReasonRewardsClaimed, second.Reason)

	// Stored credits are untouched by the failed claim.
	after, err := f.participants.GetByChallengeAndUser(ctx, id, "user-a")
	require.NoError(t, err)
	assert.Equal(t, first.Grant.Credits, after.CreditsEarned)

	assert.Contains(t, f.bus.typesSeen(), shared.EventRewardsClaimed)
	assert.Contains(t, f.bus.typesSeen(), shared.EventBadgeEarned)
}

func TestClaimRewards_RequiresCompletedChallenge(t *testing.T) {
	svc, _, _, _ := rewardFixture(t)
	c := rewardChallenge(t)

	res, err := svc.ClaimRewards(context.Background(), c, "anyone")
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Equal(t, ReasonNotOpen, res.Reason)
}
