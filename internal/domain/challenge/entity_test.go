package challenge

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validParams() NewChallengeParams {
	return NewChallengeParams{
		ID:         "ch-1",
		CreatorID:  "creator",
		Title:      "Weekend Speed Run",
		Type:       TypeGaming,
		Category:   "speed_run",
		Difficulty: 3,
		Rules: Rules{
			TargetMetric:         "completion_seconds",
			TargetValue:          3600,
			MinParticipants:      2,
			MaxParticipants:      4,
			ScoringMethod:        ScoringLowest,
			DifficultyMultiplier: 1.0,
		},
		Rewards:  DefaultRewards(),
		Duration: 48 * time.Hour,
	}
}

func TestNewChallenge_AutoEnrollsCreator(t *testing.T) {
	c, err := NewChallenge(validParams())
	require.NoError(t, err)

	assert.Equal(t, StatusOpen, c.Status)
	assert.Equal(t, 1, c.CurrentParticipants)
	assert.True(t, c.HasParticipant("creator"))
	assert.Len(t, c.ParticipantIDs, c.CurrentParticipants)
	assert.True(t, c.StartDate.Before(c.EndDate))
}

func TestNewChallenge_Validation(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*NewChallengeParams)
		wantErr error
	}{
		{"empty title", func(p *NewChallengeParams) { p.Title = "  " }, ErrEmptyTitle},
		{"missing creator", func(p *NewChallengeParams) { p.CreatorID = "" }, ErrInvalidCreator},
		{"bad type", func(p *NewChallengeParams) { p.Type = "esports" }, ErrInvalidType},
		{"bad difficulty", func(p *NewChallengeParams) { p.Difficulty = 6 }, ErrInvalidDifficulty},
		{"zero target", func(p *NewChallengeParams) { p.Rules.TargetValue = 0 }, ErrInvalidTargetValue},
		{"min below one", func(p *NewChallengeParams) { p.Rules.MinParticipants = 0 }, ErrInvalidParticipantBounds},
		{"max below min", func(p *NewChallengeParams) { p.Rules.MaxParticipants = 1 }, ErrInvalidParticipantBounds},
		{"bad multiplier", func(p *NewChallengeParams) { p.Rules.DifficultyMultiplier = 0.5 }, ErrInvalidDifficultyMultiplier},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			params := validParams()
			tt.mutate(&params)
			_, err := NewChallenge(params)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestChallenge_ParticipantInvariants(t *testing.T) {
	c, err := NewChallenge(validParams())
	require.NoError(t, err)
	now := time.Now().UTC()

	require.NoError(t, c.AddParticipant("alice", now))
	require.NoError(t, c.AddParticipant("bob", now))
	assert.Equal(t, len(c.ParticipantIDs), c.CurrentParticipants)

	// Duplicate join is rejected and the count stays consistent.
	assert.ErrorIs(t, c.AddParticipant("alice", now), ErrAlreadyParticipant)
	assert.Equal(t, 3, c.CurrentParticipants)

	// Fill the last slot, then the cap holds.
	require.NoError(t, c.AddParticipant("carol", now))
	assert.ErrorIs(t, c.AddParticipant("dave", now), ErrChallengeFull)
	assert.LessOrEqual(t, c.CurrentParticipants, c.MaxParticipants)
}

func TestChallenge_CreatorCannotBeRemoved(t *testing.T) {
	c, err := NewChallenge(validParams())
	require.NoError(t, err)
	now := time.Now().UTC()

	assert.Error(t, c.RemoveParticipant("creator", now))
	assert.True(t, c.HasParticipant("creator"))
}

func TestChallenge_InviteSkipsKnownUsers(t *testing.T) {
	c, err := NewChallenge(validParams())
	require.NoError(t, err)
	now := time.Now().UTC()
	require.NoError(t, c.AddParticipant("alice", now))

	invited, skipped := c.Invite([]UserID{"alice", "bob", "bob", "creator", "eve"}, now)
	assert.Equal(t, 2, invited)
	assert.Equal(t, 3, skipped)
	assert.True(t, c.IsInvited("bob"))
	assert.True(t, c.IsInvited("eve"))
}

func TestChallenge_JoinClearsInvite(t *testing.T) {
	c, err := NewChallenge(validParams())
	require.NoError(t, err)
	now := time.Now().UTC()

	c.Invite([]UserID{"bob"}, now)
	require.NoError(t, c.AddParticipant("bob", now))
	assert.False(t, c.IsInvited("bob"))
}

func TestChallenge_StatusTransitions(t *testing.T) {
	assert.True(t, StatusOpen.CanTransitionTo(StatusActive))
	assert.True(t, StatusOpen.CanTransitionTo(StatusCancelled))
	assert.True(t, StatusOpen.CanTransitionTo(StatusCompleted))
	assert.True(t, StatusActive.CanTransitionTo(StatusCompleted))
	assert.True(t, StatusActive.CanTransitionTo(StatusCancelled))

	assert.False(t, StatusActive.CanTransitionTo(StatusOpen))
	assert.False(t, StatusCompleted.CanTransitionTo(StatusActive))
	assert.False(t, StatusCompleted.CanTransitionTo(StatusCancelled))
	assert.False(t, StatusCancelled.CanTransitionTo(StatusActive))
}

func TestChallenge_StartRequiresMinParticipants(t *testing.T) {
	c, err := NewChallenge(validParams())
	require.NoError(t, err)
	now := time.Now().UTC()

	// Creator alone is below min_participants=2.
	assert.Error(t, c.Start(now))

	require.NoError(t, c.AddParticipant("alice", now))
	require.NoError(t, c.Start(now))
	assert.Equal(t, StatusActive, c.Status)
	assert.Equal(t, now, c.StartDate)
}

func TestChallenge_CompleteRecordsWinners(t *testing.T) {
	c, err := NewChallenge(validParams())
	require.NoError(t, err)
	now := time.Now().UTC()
	require.NoError(t, c.AddParticipant("alice", now))
	require.NoError(t, c.Start(now))

	assert.ErrorIs(t, c.Complete([]UserID{"stranger"}, now), ErrWinnersNotParticipants)

	require.NoError(t, c.Complete([]UserID{"alice"}, now))
	assert.Equal(t, StatusCompleted, c.Status)
	assert.Equal(t, []UserID{"alice"}, c.WinnerIDs)

	// Terminal: no further transitions.
	assert.ErrorIs(t, c.Cancel(now), ErrIllegalTransition)
	assert.ErrorIs(t, c.Complete(nil, now), ErrIllegalTransition)
}

func TestChallenge_LeaderboardUpsert(t *testing.T) {
	params := validParams()
	params.Rules.ScoringMethod = ScoringHighest
	c, err := NewChallenge(params)
	require.NoError(t, err)
	now := time.Now().UTC()

	c.UpsertLeaderboardEntry(LeaderboardEntry{UserID: "alice", Score: 40, UpdatedAt: now})
	c.UpsertLeaderboardEntry(LeaderboardEntry{UserID: "bob", Score: 70, UpdatedAt: now})
	c.UpsertLeaderboardEntry(LeaderboardEntry{UserID: "carol", Score: 70, UpdatedAt: now})

	assert.Equal(t, 1, c.LeaderboardRank("bob"))
	assert.Equal(t, 1, c.LeaderboardRank("carol"))
	assert.Equal(t, 3, c.LeaderboardRank("alice"))

	// Updating a score re-sorts the snapshot rather than appending.
	c.UpsertLeaderboardEntry(LeaderboardEntry{UserID: "alice", Score: 90, UpdatedAt: now})
	assert.Len(t, c.Leaderboard, 3)
	assert.Equal(t, 1, c.LeaderboardRank("alice"))
}

func TestLookupTemplate(t *testing.T) {
	tmpl, ok := LookupTemplate(TypeImpact, "donation_race")
	require.True(t, ok)
	assert.Equal(t, ScoringHighest, tmpl.Rules.ScoringMethod)
	assert.InDelta(t, 1.3, tmpl.Rewards.ImpactMultiplier, 0.001)

	_, ok = LookupTemplate(TypeGaming, "unknown_category")
	assert.False(t, ok)
}

func TestTemplate_ApplyOverrides(t *testing.T) {
	tmpl, ok := LookupTemplate(TypeGaming, "speed_run")
	require.True(t, ok)

	private := false
	params := tmpl.Apply("ch-9", "creator", TemplateOverrides{
		Title:           "Friday Night Run",
		TargetValue:     1800,
		MaxParticipants: 8,
		IsPublic:        &private,
	})

	assert.Equal(t, "Friday Night Run", params.Title)
	assert.InDelta(t, 1800.0, params.Rules.TargetValue, 0.001)
	assert.Equal(t, 8, params.Rules.MaxParticipants)
	assert.False(t, params.IsPublic)

	c, err := NewChallenge(params)
	require.NoError(t, err)
	assert.Equal(t, TypeGaming, c.Type)
}
