package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/challengehub/challenge-hub/internal/domain/challenge"
)

func matchmakingFixture(t *testing.T) (*MatchmakingService, *managerFixture) {
	t.Helper()
	f := newManagerFixture(t)
	svc := NewMatchmakingService(f.challenges, f.participants, testLogger())
	return svc, f
}

func discoverable(t *testing.T, f *managerFixture, mutate func(cmd *CreateChallengeCommand)) *challenge.Challenge {
	t.Helper()
	cmd := createCommand()
	cmd.MaxParticipants = 10
	cmd.AllowSpectators = true
	if mutate != nil {
		mutate(&cmd)
	}
	res, err := f.manager.CreateChallenge(context.Background(), cmd)
	require.NoError(t, err)
	require.True(t, res.Success)
	return res.Challenge
}

func TestMatchScore_Components(t *testing.T) {
	svc, f := matchmakingFixture(t)
	now := time.Now().UTC()

	c := discoverable(t, f, nil)

	// Joinable (+20), difficulty 3 (+15), 72h remaining is the <=72h bucket
	// (+10 unless just under), fill 1/10 (+5... below 0.1 gives nothing),
	// social features (+5). Assert bounds rather than brittle sums.
	score := svc.MatchScore(c, "stranger", now)
	assert.Greater(t, score, 40.0)
	assert.LessOrEqual(t, score, 100.0)

	// A member scores strictly lower: the joinable bonus is gone.
	memberScore := svc.MatchScore(c, "creator", now)
	assert.Equal(t, score-20, memberScore)
}

func TestMatchScore_Bounds(t *testing.T) {
	svc, f := matchmakingFixture(t)
	now := time.Now().UTC()

	for difficulty := 1; difficulty <= 5; difficulty++ {
		c := discoverable(t, f, func(cmd *CreateChallengeCommand) {
			cmd.Difficulty = difficulty
			cmd.Duration = time.Duration(difficulty) * 30 * time.Hour
		})
		score := svc.MatchScore(c, "stranger", now)
		assert.GreaterOrEqual(t, score, 0.0)
		assert.LessOrEqual(t, score, 100.0)
	}
}

func TestPreferenceScore(t *testing.T) {
	svc, f := matchmakingFixture(t)

	c := discoverable(t, f, nil)

	prefs := Preferences{
		TopTypes:            []challenge.Type{challenge.TypeGaming},
		TopCategories:       []challenge.Category{"steps"},
		PreferredDifficulty: 3,
		AvgSocialScore:      25,
	}

	// Full alignment: 30 + 25 + 20 + 15 = 90.
	assert.InDelta(t, 90.0, svc.PreferenceScore(c, prefs), 0.001)

	// Empty profile contributes nothing.
	assert.Zero(t, svc.PreferenceScore(c, Preferences{}))

	// Bounded even with repeated matches in the profile lists.
	prefs.TopTypes = append(prefs.TopTypes, challenge.TypeGaming)
	assert.LessOrEqual(t, svc.PreferenceScore(c, prefs), 100.0)
}

func TestBuildPreferences(t *testing.T) {
	svc, f := matchmakingFixture(t)
	ctx := context.Background()

	// The user joined two gaming/steps challenges and one impact/trees one.
	for i := 0; i < 2; i++ {
		c := discoverable(t, f, func(cmd *CreateChallengeCommand) {
			cmd.CreatorID = fmt.Sprintf("other-%d", i)
		})
		_, err := f.manager.Join(ctx, c.ID, "user-a")
		require.NoError(t, err)
	}
	c := discoverable(t, f, func(cmd *CreateChallengeCommand) {
		cmd.CreatorID = "other-impact"
		cmd.Type = "impact"
		cmd.Category = "trees"
		cmd.Difficulty = 2
	})
	_, err := f.manager.Join(ctx, c.ID, "user-a")
	require.NoError(t, err)

	prefs, err := svc.BuildPreferences(ctx, "user-a")
	require.NoError(t, err)

	require.NotEmpty(t, prefs.TopTypes)
	assert.Equal(t, challenge.TypeGaming, prefs.TopTypes[0])
	assert.Contains(t, prefs.TopCategories, challenge.Category("steps"))
	assert.Equal(t, challenge.DifficultyLevel(3), prefs.PreferredDifficulty)
}

func TestBuildPreferences_NoHistory(t *testing.T) {
	svc, _ := matchmakingFixture(t)

	prefs, err := svc.BuildPreferences(context.Background(), "nobody")
	require.NoError(t, err)
	assert.Empty(t, prefs.TopTypes)
	assert.Zero(t, prefs.PreferredDifficulty)
}

func TestRecommend(t *testing.T) {
	svc, f := matchmakingFixture(t)
	ctx := context.Background()

	// History: user-a plays gaming/steps challenges.
	history := discoverable(t, f, func(cmd *CreateChallengeCommand) {
		cmd.CreatorID = "other-1"
	})
	_, err := f.manager.Join(ctx, history.ID, "user-a")
	require.NoError(t, err)

	// Candidates: one matching the profile, one not.
	matching := discoverable(t, f, func(cmd *CreateChallengeCommand) {
		cmd.CreatorID = "other-2"
		cmd.Title = "More Steps"
	})
	offProfile := discoverable(t, f, func(cmd *CreateChallengeCommand) {
		cmd.CreatorID = "other-3"
		cmd.Title = "Plant Trees"
		cmd.Type = "impact"
		cmd.Category = "trees"
		cmd.Difficulty = 1
	})

	recs, err := svc.Recommend(ctx, "user-a", 10)
	require.NoError(t, err)

	// The already-joined challenge is excluded.
	ids := make([]string, 0, len(recs))
	for _, r := range recs {
		ids = append(ids, r.Challenge.ID)
	}
	assert.NotContains(t, ids, history.ID)
	require.Contains(t, ids, matching.ID)
	require.Contains(t, ids, offProfile.ID)

	// Profile-matching challenge ranks first and explains why.
	assert.Equal(t, matching.ID, recs[0].Challenge.ID)
	assert.Contains(t, recs[0].Reasons, "Matches your preferred type")

	for i := 1; i < len(recs); i++ {
		assert.GreaterOrEqual(t, recs[i-1].Score, recs[i].Score)
	}
}

func TestRecommend_Limit(t *testing.T) {
	svc, f := matchmakingFixture(t)

	for i := 0; i < 5; i++ {
		discoverable(t, f, func(cmd *CreateChallengeCommand) {
			cmd.CreatorID = fmt.Sprintf("other-%d", i)
		})
	}

	recs, err := svc.Recommend(context.Background(), "user-a", 3)
	require.NoError(t, err)
	assert.Len(t, recs, 3)
}

func TestSearchRelevance(t *testing.T) {
	svc, f := matchmakingFixture(t)

	c := discoverable(t, f, func(cmd *CreateChallengeCommand) {
		cmd.Title = "Weekend Step Battle"
		cmd.Description = "Who walks the most steps wins"
		cmd.Tags = []string{"fitness", "steps"}
	})

	// "step" hits title (40), category (25), description (20), both tags
	// would need "step" as substring: "steps" tag matches (+15).
	assert.InDelta(t, 100.0, svc.SearchRelevance(c, "step"), 0.001)
	assert.Zero(t, svc.SearchRelevance(c, ""))
	assert.Zero(t, svc.SearchRelevance(c, "chess"))
	// Case-insensitive.
	assert.Equal(t, svc.SearchRelevance(c, "STEP"), svc.SearchRelevance(c, "step"))
}

func TestTrendingScore(t *testing.T) {
	svc, f := matchmakingFixture(t)
	now := time.Now().UTC()

	fresh := discoverable(t, f, nil)
	score := svc.TrendingScore(fresh, now)

	// New (+20), public (+15), social (+10), fill 1/10 (+3).
	assert.InDelta(t, 48.0, score, 0.001)

	// The same challenge three days later scores lower.
	assert.Less(t, svc.TrendingScore(fresh, now.Add(80*time.Hour)), score)
}

func TestSimilarityScore(t *testing.T) {
	svc, f := matchmakingFixture(t)

	a := discoverable(t, f, func(cmd *CreateChallengeCommand) {
		cmd.Tags = []string{"fitness", "steps"}
	})
	b := discoverable(t, f, func(cmd *CreateChallengeCommand) {
		cmd.CreatorID = "other"
		cmd.Tags = []string{"Steps", "outdoor"}
	})

	// Same type (30), category (25), difficulty (20), identical duration
	// (15), one shared tag case-insensitively (3).
	assert.InDelta(t, 93.0, svc.SimilarityScore(a, b), 0.001)

	// Symmetric.
	assert.Equal(t, svc.SimilarityScore(a, b), svc.SimilarityScore(b, a))
}

func TestTopKeys_StableOnTies(t *testing.T) {
	counts := map[challenge.Category]int{
		"yoga":    1,
		"steps":   1,
		"running": 1,
		"cycling": 2,
	}

	// Equal counts break ties by key, so repeated calls over the same map
	// never shuffle the selection.
	want := []challenge.Category{"cycling", "running", "steps"}
	for i := 0; i < 50; i++ {
		assert.Equal(t, want, topKeys(counts, 3))
	}
}
