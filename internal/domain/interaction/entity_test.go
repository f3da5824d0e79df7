package interaction

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newComment(t *testing.T) *Interaction {
	t.Helper()
	i, err := NewInteraction(NewInteractionParams{
		ID:          "int-1",
		ChallengeID: "ch-1",
		FromUserID:  "alice",
		ToUserID:    "bob",
		Type:        TypeComment,
		Content:     "nice pace!",
	})
	require.NoError(t, err)
	return i
}

func TestNewInteraction_Validation(t *testing.T) {
	t.Run("comment needs content", func(t *testing.T) {
		_, err := NewInteraction(NewInteractionParams{
			ID: "int-1", ChallengeID: "ch-1",
			FromUserID: "alice", ToUserID: "bob",
			Type: TypeComment, Content: "   ",
		})
		assert.ErrorIs(t, err, ErrEmptyContent)
	})

	t.Run("comment is challenge-scoped, no target needed", func(t *testing.T) {
		i, err := NewInteraction(NewInteractionParams{
			ID: "int-1", ChallengeID: "ch-1",
			FromUserID: "alice",
			Type:       TypeComment, Content: "nice pace everyone",
		})
		require.NoError(t, err)
		assert.Empty(t, i.ToUserID)
	})

	t.Run("cheer needs target", func(t *testing.T) {
		_, err := NewInteraction(NewInteractionParams{
			ID: "int-1", ChallengeID: "ch-1",
			FromUserID: "alice",
			Type:       TypeCheer,
		})
		assert.ErrorIs(t, err, ErrInvalidUsers)
	})

	t.Run("spectate has no target", func(t *testing.T) {
		i, err := NewInteraction(NewInteractionParams{
			ID: "int-1", ChallengeID: "ch-1",
			FromUserID: "alice",
			Type:       TypeSpectate,
		})
		require.NoError(t, err)
		assert.Equal(t, ContextGeneral, i.Context)
	})

	t.Run("unknown type", func(t *testing.T) {
		_, err := NewInteraction(NewInteractionParams{
			ID: "int-1", ChallengeID: "ch-1",
			FromUserID: "alice", ToUserID: "bob",
			Type: "poke",
		})
		assert.ErrorIs(t, err, ErrInvalidType)
	})
}

func TestSoftDelete_AuthorOnly(t *testing.T) {
	i := newComment(t)
	now := time.Now().UTC()

	assert.ErrorIs(t, i.SoftDelete("bob", now), ErrNotAuthor)
	assert.True(t, i.IsVisible())

	require.NoError(t, i.SoftDelete("alice", now))
	assert.True(t, i.IsDeleted)
	assert.False(t, i.IsVisible())

	assert.ErrorIs(t, i.SoftDelete("alice", now), ErrAlreadyDeleted)
}

func TestAddLike_OncePerUser(t *testing.T) {
	i := newComment(t)
	now := time.Now().UTC()

	require.NoError(t, i.AddLike("carol", now))
	assert.ErrorIs(t, i.AddLike("carol", now), ErrAlreadyLiked)
	require.NoError(t, i.AddLike("dave", now))
	assert.Len(t, i.LikedBy, 2)
}

func TestAddReply(t *testing.T) {
	i := newComment(t)
	now := time.Now().UTC()

	require.NoError(t, i.AddReply("bob", "thanks!", now))
	assert.Error(t, i.AddReply("bob", "  ", now))
	assert.Len(t, i.Replies, 1)
	assert.Equal(t, "thanks!", i.Replies[0].Content)
}

func TestModeration(t *testing.T) {
	i := newComment(t)
	now := time.Now().UTC()

	i.Flag(now)
	assert.True(t, i.IsFlagged)
	assert.Equal(t, ModerationPending, i.ModerationStatus)
	assert.True(t, i.IsVisible(), "pending interactions stay visible")

	assert.Error(t, i.Moderate(ModerationPending, now))

	require.NoError(t, i.Moderate(ModerationRejected, now))
	assert.False(t, i.IsVisible())
}
