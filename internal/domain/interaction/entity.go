// Package interaction contains the domain model for social actions exchanged
// between users inside a challenge: cheers, comments, reactions, shares and
// spectating. Interactions reference their challenge by ID only.
package interaction

import (
	"errors"
	"strings"
	"time"

	"github.com/challengehub/challenge-hub/internal/domain/challenge"
)

// ══════════════════════════════════════════════════════════════════════════════
// ENUMS
// ══════════════════════════════════════════════════════════════════════════════

// Type is the kind of social action.
type Type string

const (
	// TypeCheer - lightweight encouragement, optionally with an emoji.
	TypeCheer Type = "cheer"
	// TypeComment - free-text message directed at a participant.
	TypeComment Type = "comment"
	// TypeReaction - emoji reaction to another interaction or update.
	TypeReaction Type = "reaction"
	// TypeShare - sharing the challenge outside the platform.
	TypeShare Type = "share"
	// TypeSpectate - watching a challenge without participating.
	TypeSpectate Type = "spectate"
)

// IsValid reports whether the type is one of the known variants.
func (t Type) IsValid() bool {
	switch t {
	case TypeCheer, TypeComment, TypeReaction, TypeShare, TypeSpectate:
		return true
	default:
		return false
	}
}

// String returns the string form of the type.
func (t Type) String() string {
	return string(t)
}

// ContextType describes what the interaction refers to.
type ContextType string

const (
	// ContextGeneral - not tied to a specific moment.
	ContextGeneral ContextType = "general"
	// ContextMilestone - reacting to a milestone being reached.
	ContextMilestone ContextType = "milestone"
	// ContextProgressUpdate - reacting to a progress update.
	ContextProgressUpdate ContextType = "progress_update"
	// ContextLeaderboard - reacting to a leaderboard change.
	ContextLeaderboard ContextType = "leaderboard"
)

// IsValid reports whether the context type is known.
func (c ContextType) IsValid() bool {
	switch c {
	case ContextGeneral, ContextMilestone, ContextProgressUpdate, ContextLeaderboard:
		return true
	default:
		return false
	}
}

// ModerationStatus is the moderation state of an interaction. Moderation
// actions are reserved for an external authority.
type ModerationStatus string

const (
	ModerationNone     ModerationStatus = "none"
	ModerationPending  ModerationStatus = "pending"
	ModerationApproved ModerationStatus = "approved"
	ModerationRejected ModerationStatus = "rejected"
)

// ══════════════════════════════════════════════════════════════════════════════
// DOMAIN ERRORS
// ══════════════════════════════════════════════════════════════════════════════

var (
	// ErrInvalidType - unknown interaction type.
	ErrInvalidType = errors.New("invalid interaction type")

	// ErrInvalidUsers - from/to user references are missing or identical.
	ErrInvalidUsers = errors.New("invalid interaction users")

	// ErrEmptyContent - comments require non-empty content.
	ErrEmptyContent = errors.New("comment content cannot be empty")

	// ErrNotAuthor - only the author may delete an interaction.
	ErrNotAuthor = errors.New("only the author can delete this interaction")

	// ErrAlreadyDeleted - the interaction is already soft-deleted.
	ErrAlreadyDeleted = errors.New("interaction already deleted")

	// ErrAlreadyLiked - the user already liked this interaction.
	ErrAlreadyLiked = errors.New("interaction already liked by user")
)

// ══════════════════════════════════════════════════════════════════════════════
// MAIN ENTITY: INTERACTION
// ══════════════════════════════════════════════════════════════════════════════

// Reply is a short response attached to an interaction.
type Reply struct {
	// UserID is the replying user.
	UserID challenge.UserID

	// Content is the reply text.
	Content string

	// CreatedAt is when the reply was posted.
	CreatedAt time.Time
}

// Interaction is a social action directed from one user to another within a
// challenge. Soft-deletable only by its author.
type Interaction struct {
	// ID is the unique identifier (UUID in string form).
	ID string

	// ChallengeID references the challenge by ID.
	ChallengeID string

	// FromUserID is the acting user.
	FromUserID challenge.UserID

	// ToUserID is the receiving user.
	ToUserID challenge.UserID

	// Type is the kind of action.
	Type Type

	// Emoji optionally carries the emoji for cheers and reactions.
	Emoji string

	// Content is the free-text body for comments.
	Content string

	// Context describes what the interaction refers to.
	Context ContextType

	// Engagement sub-objects.
	LikedBy []challenge.UserID
	Replies []Reply

	// Moderation state.
	IsDeleted        bool
	IsFlagged        bool
	ModerationStatus ModerationStatus

	// CreatedAt is when the interaction happened.
	CreatedAt time.Time

	// UpdatedAt is the last modification time.
	UpdatedAt time.Time
}

// NewInteractionParams contains the parameters for creating an interaction.
type NewInteractionParams struct {
	ID          string
	ChallengeID string
	FromUserID  challenge.UserID
	ToUserID    challenge.UserID
	Type        Type
	Emoji       string
	Content     string
	Context     ContextType
}

// NewInteraction creates an interaction with validation. Comments require
// content; cheering yourself is allowed (selfcare), sharing and spectating
// have no target user.
func NewInteraction(params NewInteractionParams) (*Interaction, error) {
	if params.ID == "" {
		return nil, errors.New("interaction id is required")
	}
	if params.ChallengeID == "" {
		return nil, errors.New("interaction challenge id is required")
	}
	if !params.Type.IsValid() {
		return nil, ErrInvalidType
	}
	if !params.FromUserID.IsValid() {
		return nil, ErrInvalidUsers
	}

	// Comments are challenge-scoped feed content; only direct reactions
	// require a target user.
	needsTarget := params.Type == TypeCheer || params.Type == TypeReaction
	if needsTarget && !params.ToUserID.IsValid() {
		return nil, ErrInvalidUsers
	}

	content := strings.TrimSpace(params.Content)
	if params.Type == TypeComment && content == "" {
		return nil, ErrEmptyContent
	}

	ctxType := params.Context
	if ctxType == "" {
		ctxType = ContextGeneral
	}
	if !ctxType.IsValid() {
		return nil, errors.New("invalid interaction context type")
	}

	now := time.Now().UTC()

	return &Interaction{
		ID:               params.ID,
		ChallengeID:      params.ChallengeID,
		FromUserID:       params.FromUserID,
		ToUserID:         params.ToUserID,
		Type:             params.Type,
		Emoji:            params.Emoji,
		Content:          content,
		Context:          ctxType,
		LikedBy:          []challenge.UserID{},
		Replies:          []Reply{},
		ModerationStatus: ModerationNone,
		CreatedAt:        now,
		UpdatedAt:        now,
	}, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// DOMAIN METHODS
// ══════════════════════════════════════════════════════════════════════════════

// SoftDelete marks the interaction deleted. Only the author may delete.
func (i *Interaction) SoftDelete(byUserID challenge.UserID, now time.Time) error {
	if byUserID != i.FromUserID {
		return ErrNotAuthor
	}
	if i.IsDeleted {
		return ErrAlreadyDeleted
	}

	i.IsDeleted = true
	i.UpdatedAt = now
	return nil
}

// Flag marks the interaction for moderation review.
func (i *Interaction) Flag(now time.Time) {
	i.IsFlagged = true
	if i.ModerationStatus == ModerationNone {
		i.ModerationStatus = ModerationPending
	}
	i.UpdatedAt = now
}

// Moderate applies a moderation decision. Reserved for an external moderation
// authority; the engine itself never calls this.
func (i *Interaction) Moderate(status ModerationStatus, now time.Time) error {
	if status != ModerationApproved && status != ModerationRejected {
		return errors.New("moderation decision must be approved or rejected")
	}

	i.ModerationStatus = status
	if status == ModerationRejected {
		i.IsDeleted = true
	}
	i.UpdatedAt = now
	return nil
}

// AddLike records a like once per user.
func (i *Interaction) AddLike(userID challenge.UserID, now time.Time) error {
	for _, id := range i.LikedBy {
		if id == userID {
			return ErrAlreadyLiked
		}
	}

	i.LikedBy = append(i.LikedBy, userID)
	i.UpdatedAt = now
	return nil
}

// AddReply appends a reply.
func (i *Interaction) AddReply(userID challenge.UserID, content string, now time.Time) error {
	content = strings.TrimSpace(content)
	if content == "" {
		return ErrEmptyContent
	}

	i.Replies = append(i.Replies, Reply{
		UserID:    userID,
		Content:   content,
		CreatedAt: now,
	})
	i.UpdatedAt = now
	return nil
}

// IsVisible reports whether the interaction should be shown to users.
func (i *Interaction) IsVisible() bool {
	return !i.IsDeleted && i.ModerationStatus != ModerationRejected
}
