package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/challengehub/challenge-hub/internal/domain/challenge"
	"github.com/challengehub/challenge-hub/internal/domain/interaction"
	"github.com/challengehub/challenge-hub/internal/domain/shared"
)

type interactionFixture struct {
	*managerFixture
	interactions *memInteractionRepo
	svc          *InteractionService
	challengeID  string
}

// newInteractionFixture creates a cheer/comment-enabled challenge with the
// creator and user-a enrolled.
func newInteractionFixture(t *testing.T) *interactionFixture {
	t.Helper()
	f := newManagerFixture(t)
	interactions := newMemInteractionRepo()

	cmd := createCommand()
	cmd.MaxParticipants = 10
	cmd.AllowSpectators = true
	created, err := f.manager.CreateChallenge(context.Background(), cmd)
	require.NoError(t, err)
	_, err = f.manager.Join(context.Background(), created.Challenge.ID, "user-a")
	require.NoError(t, err)

	return &interactionFixture{
		managerFixture: f,
		interactions:   interactions,
		svc:            NewInteractionService(interactions, f.challenges, f.participants, f.bus, testLogger()),
		challengeID:    created.Challenge.ID,
	}
}

func TestInteract_CheerBumpsBothCounters(t *testing.T) {
	f := newInteractionFixture(t)
	ctx := context.Background()

	res, err := f.svc.Interact(ctx, InteractCommand{
		ChallengeID: f.challengeID,
		FromUserID:  "user-a",
		ToUserID:    "creator",
		Type:        "cheer",
		Emoji:       "🎉",
	})
	require.NoError(t, err)
	require.True(t, res.Success)
	assert.Equal(t, interaction.TypeCheer, res.Interaction.Type)

	giver, err := f.participants.GetByChallengeAndUser(ctx, f.challengeID, "user-a")
	require.NoError(t, err)
	assert.Equal(t, 1, giver.CheersGiven)

	receiver, err := f.participants.GetByChallengeAndUser(ctx, f.challengeID, "creator")
	require.NoError(t, err)
	assert.Equal(t, 1, receiver.CheersReceived)

	assert.Contains(t, f.bus.typesSeen(), shared.EventSocialCheer)
}

func TestInteract_SelfCheerCountsOnlyAsGiven(t *testing.T) {
	f := newInteractionFixture(t)
	ctx := context.Background()

	_, err := f.svc.Interact(ctx, InteractCommand{
		ChallengeID: f.challengeID,
		FromUserID:  "user-a",
		ToUserID:    "user-a",
		Type:        "cheer",
	})
	require.NoError(t, err)

	p, err := f.participants.GetByChallengeAndUser(ctx, f.challengeID, "user-a")
	require.NoError(t, err)
	assert.Equal(t, 1, p.CheersGiven)
	assert.Zero(t, p.CheersReceived)
}

func TestInteract_CommentRequiresContent(t *testing.T) {
	f := newInteractionFixture(t)

	res, err := f.svc.Interact(context.Background(), InteractCommand{
		ChallengeID: f.challengeID,
		FromUserID:  "user-a",
		Type:        "comment",
	})
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Equal(t, ReasonValidationFailed, res.Reason)
}

func TestInteract_DisabledFeature(t *testing.T) {
	f := newManagerFixture(t)
	interactions := newMemInteractionRepo()
	svc := NewInteractionService(interactions, f.challenges, f.participants, f.bus, testLogger())

	cmd := createCommand()
	cmd.AllowCheering = false
	created, err := f.manager.CreateChallenge(context.Background(), cmd)
	require.NoError(t, err)

	res, err := svc.Interact(context.Background(), InteractCommand{
		ChallengeID: created.Challenge.ID,
		FromUserID:  "creator",
		ToUserID:    "creator",
		Type:        "cheer",
	})
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Contains(t, res.Message, "disabled")
}

func TestInteract_NonParticipantCannotCheer(t *testing.T) {
	f := newInteractionFixture(t)

	res, err := f.svc.Interact(context.Background(), InteractCommand{
		ChallengeID: f.challengeID,
		FromUserID:  "stranger",
		ToUserID:    "creator",
		Type:        "cheer",
	})
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Equal(t, ReasonNotParticipant, res.Reason)
}

func TestInteract_SpectateOpenToAnyone(t *testing.T) {
	f := newInteractionFixture(t)

	res, err := f.svc.Interact(context.Background(), InteractCommand{
		ChallengeID: f.challengeID,
		FromUserID:  "stranger",
		Type:        "spectate",
	})
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, interaction.ContextGeneral, res.Interaction.Context)
}

type memPresence struct {
	watching map[string]map[challenge.UserID]struct{}
}

func newMemPresence() *memPresence {
	return &memPresence{watching: make(map[string]map[challenge.UserID]struct{})}
}

func (p *memPresence) Watch(_ context.Context, challengeID string, userID challenge.UserID, _ time.Time) error {
	if p.watching[challengeID] == nil {
		p.watching[challengeID] = make(map[challenge.UserID]struct{})
	}
	p.watching[challengeID][userID] = struct{}{}
	return nil
}

func (p *memPresence) Leave(_ context.Context, challengeID string, userID challenge.UserID) error {
	delete(p.watching[challengeID], userID)
	return nil
}

func (p *memPresence) Count(_ context.Context, challengeID string, _ time.Time) (int64, error) {
	return int64(len(p.watching[challengeID])), nil
}

func TestSpectatePresenceLifecycle(t *testing.T) {
	f := newInteractionFixture(t)
	presence := newMemPresence()
	f.svc.WithPresence(presence)
	ctx := context.Background()

	_, err := f.svc.Interact(ctx, InteractCommand{
		ChallengeID: f.challengeID,
		FromUserID:  "stranger",
		Type:        "spectate",
	})
	require.NoError(t, err)

	count, err := f.svc.SpectatorCount(ctx, f.challengeID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	require.NoError(t, f.svc.StopSpectating(ctx, f.challengeID, "stranger"))

	count, err = f.svc.SpectatorCount(ctx, f.challengeID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), count)
}

func TestLikeAndReply(t *testing.T) {
	f := newInteractionFixture(t)
	ctx := context.Background()

	created, err := f.svc.Interact(ctx, InteractCommand{
		ChallengeID: f.challengeID,
		FromUserID:  "user-a",
		Type:        "comment",
		Content:     "nice pace!",
	})
	require.NoError(t, err)
	require.True(t, created.Success)
	id := created.Interaction.ID

	liked, err := f.svc.Like(ctx, id, "creator")
	require.NoError(t, err)
	require.True(t, liked.Success)
	assert.Len(t, liked.Interaction.LikedBy, 1)

	// Liking twice is rejected, count unchanged.
	again, err := f.svc.Like(ctx, id, "creator")
	require.NoError(t, err)
	assert.False(t, again.Success)

	replied, err := f.svc.Reply(ctx, id, "creator", "thanks!")
	require.NoError(t, err)
	require.True(t, replied.Success)
	assert.Len(t, replied.Interaction.Replies, 1)
}

func TestDelete_AuthorOnly(t *testing.T) {
	f := newInteractionFixture(t)
	ctx := context.Background()

	created, err := f.svc.Interact(ctx, InteractCommand{
		ChallengeID: f.challengeID,
		FromUserID:  "user-a",
		Type:        "comment",
		Content:     "delete me",
	})
	require.NoError(t, err)
	id := created.Interaction.ID

	denied, err := f.svc.Delete(ctx, id, "creator")
	require.NoError(t, err)
	assert.False(t, denied.Success)
	assert.Equal(t, ReasonNotAuthor, denied.Reason)

	deleted, err := f.svc.Delete(ctx, id, "user-a")
	require.NoError(t, err)
	assert.True(t, deleted.Success)
}

func TestModerationHidesFromFeed(t *testing.T) {
	f := newInteractionFixture(t)
	ctx := context.Background()

	created, err := f.svc.Interact(ctx, InteractCommand{
		ChallengeID: f.challengeID,
		FromUserID:  "user-a",
		Type:        "comment",
		Content:     "borderline",
	})
	require.NoError(t, err)
	id := created.Interaction.ID

	feed, err := f.svc.Feed(ctx, f.challengeID, 50)
	require.NoError(t, err)
	require.Len(t, feed, 1)

	_, err = f.svc.Moderate(ctx, id, interaction.ModerationRejected)
	require.NoError(t, err)

	feed, err = f.svc.Feed(ctx, f.challengeID, 50)
	require.NoError(t, err)
	assert.Empty(t, feed)
}
