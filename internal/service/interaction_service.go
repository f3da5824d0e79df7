package service

import (
	"context"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/challengehub/challenge-hub/internal/domain/challenge"
	"github.com/challengehub/challenge-hub/internal/domain/interaction"
	"github.com/challengehub/challenge-hub/internal/domain/participant"
	"github.com/challengehub/challenge-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// INTERACTION SERVICE
// Social features inside a challenge: cheers, comments, reactions, shares
// and spectating. Counter updates on the participants are atomic repository
// increments; the derived social score is recomputed on the next
// read-modify-write of the participant.
// ══════════════════════════════════════════════════════════════════════════════

// PresenceTracker records live spectator presence for a challenge. The
// redis SpectatorTracker satisfies it; nil disables presence tracking and
// spectate interactions are still recorded as regular interactions.
type PresenceTracker interface {
	Watch(ctx context.Context, challengeID string, userID challenge.UserID, now time.Time) error
	Leave(ctx context.Context, challengeID string, userID challenge.UserID) error
	Count(ctx context.Context, challengeID string, now time.Time) (int64, error)
}

// InteractionService handles social interactions.
type InteractionService struct {
	interactions interaction.Repository
	challenges   challenge.Repository
	participants participant.Repository
	events       shared.EventBus
	presence     PresenceTracker
	validate     *validator.Validate
	log          *logrus.Entry
	clock        func() time.Time
}

// NewInteractionService creates an InteractionService.
func NewInteractionService(
	interactions interaction.Repository,
	challenges challenge.Repository,
	participants participant.Repository,
	events shared.EventBus,
	log *logrus.Entry,
) *InteractionService {
	return &InteractionService{
		interactions: interactions,
		challenges:   challenges,
		participants: participants,
		events:       events,
		validate:     validator.New(),
		log:          log,
		clock:        func() time.Time { return time.Now().UTC() },
	}
}

// WithPresence attaches a spectator presence tracker.
func (s *InteractionService) WithPresence(tracker PresenceTracker) *InteractionService {
	s.presence = tracker
	return s
}

// WithClock overrides the time source for tests.
func (s *InteractionService) WithClock(clock func() time.Time) *InteractionService {
	s.clock = clock
	return s
}

// ─────────────────────────────────────────────────────────────────────────────
// Create
// ─────────────────────────────────────────────────────────────────────────────

// InteractCommand carries one social interaction.
type InteractCommand struct {
	ChallengeID string `validate:"required"`
	FromUserID  string `validate:"required"`
	ToUserID    string
	Type        string `validate:"required,oneof=cheer comment reaction share spectate"`
	Emoji       string `validate:"max=16"`
	Content     string `validate:"max=1000"`
	Context     string `validate:"omitempty,oneof=general milestone progress_update leaderboard"`
}

// InteractResult contains the stored interaction.
type InteractResult struct {
	Outcome
	Interaction *interaction.Interaction
}

// Interact records a social interaction, bumps the social counters on both
// sides and emits a social.<type> event. The sender must be a participant
// except for share and spectate, which anyone may do on a public challenge.
func (s *InteractionService) Interact(ctx context.Context, cmd InteractCommand) (*InteractResult, error) {
	if err := s.validate.Struct(cmd); err != nil {
		return &InteractResult{Outcome: Rejected(ReasonValidationFailed, err.Error())}, nil
	}

	c, err := s.challenges.GetByID(ctx, cmd.ChallengeID)
	if err != nil {
		if out, ok := outcomeFromDomainError(err); ok {
			return &InteractResult{Outcome: out}, nil
		}
		return nil, fmt.Errorf("interact: load challenge: %w", err)
	}

	kind := interaction.Type(cmd.Type)
	if out, ok := s.checkFeatureEnabled(c, kind); !ok {
		return &InteractResult{Outcome: out}, nil
	}

	requiresMembership := kind == interaction.TypeCheer || kind == interaction.TypeComment || kind == interaction.TypeReaction
	if requiresMembership && !c.HasParticipant(challenge.UserID(cmd.FromUserID)) {
		return &InteractResult{Outcome: Rejected(ReasonNotParticipant, shared.ErrNotAParticipant.Error())}, nil
	}

	inter, err := interaction.NewInteraction(interaction.NewInteractionParams{
		ID:          uuid.NewString(),
		ChallengeID: cmd.ChallengeID,
		FromUserID:  challenge.UserID(cmd.FromUserID),
		ToUserID:    challenge.UserID(cmd.ToUserID),
		Type:        kind,
		Emoji:       cmd.Emoji,
		Content:     cmd.Content,
		Context:     interaction.ContextType(cmd.Context),
	})
	if err != nil {
		return &InteractResult{Outcome: Rejected(ReasonValidationFailed, err.Error())}, nil
	}

	if err := s.interactions.Create(ctx, inter); err != nil {
		return nil, fmt.Errorf("interact: save: %w", err)
	}

	s.bumpSocialCounters(ctx, cmd.ChallengeID, kind, challenge.UserID(cmd.FromUserID), challenge.UserID(cmd.ToUserID))

	if kind == interaction.TypeSpectate && s.presence != nil {
		if err := s.presence.Watch(ctx, cmd.ChallengeID, challenge.UserID(cmd.FromUserID), s.clock()); err != nil {
			s.log.WithError(err).WithField("challenge_id", cmd.ChallengeID).Warn("spectator presence update failed")
		}
	}

	s.publish(ctx, shared.NewSocialInteractionEvent(
		cmd.ChallengeID, inter.ID, string(kind), cmd.FromUserID, cmd.ToUserID,
	))

	return &InteractResult{Outcome: OK(), Interaction: inter}, nil
}

// checkFeatureEnabled maps interaction types to the challenge's social
// feature switches.
func (s *InteractionService) checkFeatureEnabled(c *challenge.Challenge, kind interaction.Type) (Outcome, bool) {
	disabled := func() (Outcome, bool) {
		return Rejected(ReasonValidationFailed, shared.ErrInteractionDisabled.Error()), false
	}

	switch kind {
	case interaction.TypeCheer, interaction.TypeReaction:
		if !c.AllowCheering {
			return disabled()
		}
	case interaction.TypeComment:
		if !c.AllowComments {
			return disabled()
		}
	case interaction.TypeSpectate:
		if !c.AllowSpectators {
			return disabled()
		}
	}
	return OK(), true
}

// bumpSocialCounters increments the giver and receiver counters for cheer
// and comment interactions. Counter failures are logged, never fatal: the
// interaction itself is already recorded.
func (s *InteractionService) bumpSocialCounters(ctx context.Context, challengeID string, kind interaction.Type, from, to challenge.UserID) {
	var givenCounter, receivedCounter string
	switch kind {
	case interaction.TypeCheer, interaction.TypeReaction:
		givenCounter, receivedCounter = "cheers_given", "cheers_received"
	case interaction.TypeComment:
		givenCounter, receivedCounter = "comments_given", "comments_received"
	default:
		return
	}

	if p, err := s.participants.GetByChallengeAndUser(ctx, challengeID, from); err == nil {
		if err := s.participants.IncrementSocialCounter(ctx, p.ID, givenCounter); err != nil {
			s.log.WithError(err).WithField("participant_id", p.ID).Warn("social counter increment failed")
		}
	}
	if to == "" || to == from {
		return
	}
	if p, err := s.participants.GetByChallengeAndUser(ctx, challengeID, to); err == nil {
		if err := s.participants.IncrementSocialCounter(ctx, p.ID, receivedCounter); err != nil {
			s.log.WithError(err).WithField("participant_id", p.ID).Warn("social counter increment failed")
		}
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// Engagement on interactions
// ─────────────────────────────────────────────────────────────────────────────

// Like adds a one-per-user like to an interaction.
func (s *InteractionService) Like(ctx context.Context, interactionID, userID string) (*InteractResult, error) {
	inter, err := s.interactions.GetByID(ctx, interactionID)
	if err != nil {
		if out, ok := outcomeFromDomainError(err); ok {
			return &InteractResult{Outcome: out}, nil
		}
		return nil, fmt.Errorf("like: load interaction: %w", err)
	}

	if err := inter.AddLike(challenge.UserID(userID), s.clock()); err != nil {
		if out, ok := outcomeFromDomainError(err); ok {
			return &InteractResult{Outcome: out}, nil
		}
		return &InteractResult{Outcome: Rejected(ReasonConflict, err.Error())}, nil
	}

	if err := s.interactions.Update(ctx, inter); err != nil {
		return nil, fmt.Errorf("like: save: %w", err)
	}
	return &InteractResult{Outcome: OK(), Interaction: inter}, nil
}

// Reply appends a threaded reply to a comment.
func (s *InteractionService) Reply(ctx context.Context, interactionID, userID, content string) (*InteractResult, error) {
	inter, err := s.interactions.GetByID(ctx, interactionID)
	if err != nil {
		if out, ok := outcomeFromDomainError(err); ok {
			return &InteractResult{Outcome: out}, nil
		}
		return nil, fmt.Errorf("reply: load interaction: %w", err)
	}

	if err := inter.AddReply(challenge.UserID(userID), content, s.clock()); err != nil {
		return &InteractResult{Outcome: Rejected(ReasonValidationFailed, err.Error())}, nil
	}

	if err := s.interactions.Update(ctx, inter); err != nil {
		return nil, fmt.Errorf("reply: save: %w", err)
	}
	return &InteractResult{Outcome: OK(), Interaction: inter}, nil
}

// Delete soft-deletes an interaction. Author only.
func (s *InteractionService) Delete(ctx context.Context, interactionID, userID string) (*InteractResult, error) {
	inter, err := s.interactions.GetByID(ctx, interactionID)
	if err != nil {
		if out, ok := outcomeFromDomainError(err); ok {
			return &InteractResult{Outcome: out}, nil
		}
		return nil, fmt.Errorf("delete interaction: load: %w", err)
	}

	if err := inter.SoftDelete(challenge.UserID(userID), s.clock()); err != nil {
		if out, ok := outcomeFromDomainError(err); ok {
			return &InteractResult{Outcome: out}, nil
		}
		return &InteractResult{Outcome: Rejected(ReasonConflict, err.Error())}, nil
	}

	if err := s.interactions.Update(ctx, inter); err != nil {
		return nil, fmt.Errorf("delete interaction: save: %w", err)
	}
	return &InteractResult{Outcome: OK(), Interaction: inter}, nil
}

// Moderate applies an approve/reject decision to a flagged interaction.
func (s *InteractionService) Moderate(ctx context.Context, interactionID string, status interaction.ModerationStatus) (*InteractResult, error) {
	inter, err := s.interactions.GetByID(ctx, interactionID)
	if err != nil {
		if out, ok := outcomeFromDomainError(err); ok {
			return &InteractResult{Outcome: out}, nil
		}
		return nil, fmt.Errorf("moderate: load interaction: %w", err)
	}

	if err := inter.Moderate(status, s.clock()); err != nil {
		return &InteractResult{Outcome: Rejected(ReasonValidationFailed, err.Error())}, nil
	}

	if err := s.interactions.Update(ctx, inter); err != nil {
		return nil, fmt.Errorf("moderate: save: %w", err)
	}
	return &InteractResult{Outcome: OK(), Interaction: inter}, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Reads
// ─────────────────────────────────────────────────────────────────────────────

// Feed returns the visible interactions of a challenge, newest first.
func (s *InteractionService) Feed(ctx context.Context, challengeID string, limit int) ([]*interaction.Interaction, error) {
	if limit <= 0 {
		limit = 50
	}
	all, err := s.interactions.GetByChallenge(ctx, challengeID, limit)
	if err != nil {
		return nil, fmt.Errorf("feed: %w", err)
	}

	visible := make([]*interaction.Interaction, 0, len(all))
	for _, inter := range all {
		if inter.IsVisible() {
			visible = append(visible, inter)
		}
	}
	return visible, nil
}

// StopSpectating removes a user from the live spectator set. A no-op when
// no presence tracker is attached.
func (s *InteractionService) StopSpectating(ctx context.Context, challengeID, userID string) error {
	if s.presence == nil {
		return nil
	}
	return s.presence.Leave(ctx, challengeID, challenge.UserID(userID))
}

// SpectatorCount returns the number of live spectators. Zero when no
// presence tracker is attached.
func (s *InteractionService) SpectatorCount(ctx context.Context, challengeID string) (int64, error) {
	if s.presence == nil {
		return 0, nil
	}
	return s.presence.Count(ctx, challengeID, s.clock())
}

func (s *InteractionService) publish(ctx context.Context, event shared.Event) {
	if s.events == nil {
		return
	}
	if err := s.events.Publish(ctx, event); err != nil {
		s.log.WithError(err).WithField("event_type", event.EventType()).Warn("event publish failed")
	}
}
