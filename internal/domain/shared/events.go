// Package shared contains common domain types, errors, and events that are
// used across all domain packages.
package shared

import (
	"context"
	"time"
)

// EventType represents the type of domain event.
type EventType string

// Domain event types - these drive the outbound notification hooks.
// Each event represents something significant that happened in the domain.
const (
	// Challenge lifecycle events
	EventChallengeCreated    EventType = "challenge.created"
	EventChallengeStarted    EventType = "challenge.started"
	EventChallengeCompleted  EventType = "challenge.completed"
	EventChallengeCancelled  EventType = "challenge.cancelled"
	EventChallengeExpired    EventType = "challenge.expired"
	EventChallengeEndingSoon EventType = "challenge.ending_soon"

	// Membership events
	EventUserJoined    EventType = "challenge.user_joined"
	EventUserLeft      EventType = "challenge.user_left"
	EventUsersInvited  EventType = "challenge.users_invited"

	// Progress events
	EventProgressUpdated   EventType = "challenge.progress_updated"
	EventMilestoneReached  EventType = "challenge.milestone_reached"
	EventLeaderboardChange EventType = "leaderboard.change"

	// Social events
	EventSocialCheer    EventType = "social.cheer"
	EventSocialComment  EventType = "social.comment"
	EventSocialReaction EventType = "social.reaction"
	EventSocialShare    EventType = "social.share"
	EventSocialSpectate EventType = "social.spectate"

	// Reward events
	EventBadgeEarned    EventType = "reward.badge_earned"
	EventRewardsClaimed EventType = "reward.claimed"
)

// Event is the base interface for all domain events.
type Event interface {
	// EventType returns the type of the event.
	EventType() EventType

	// OccurredAt returns when the event occurred.
	OccurredAt() time.Time

	// AggregateID returns the ID of the aggregate that produced this event.
	AggregateID() string

	// Payload returns the event data as a map for serialization.
	Payload() map[string]interface{}
}

// EventHandler processes a single event. Handlers must be safe for
// concurrent use; the bus may invoke them from multiple goroutines.
type EventHandler func(ctx context.Context, event Event) error

// EventBus distributes domain events to subscribed handlers.
// Publishing is fire-and-forget from the caller's perspective: handler
// failures never propagate back into the operation that emitted the event.
type EventBus interface {
	// Publish delivers an event to all handlers subscribed to its type.
	Publish(ctx context.Context, event Event) error

	// Subscribe registers a handler for a specific event type.
	Subscribe(eventType EventType, handler EventHandler) error

	// SubscribeAll registers a handler for every event type.
	SubscribeAll(handler EventHandler) error

	// Close shuts the bus down and waits for in-flight handlers.
	Close() error
}

// BaseEvent provides common event functionality.
type BaseEvent struct {
	Type          EventType `json:"type"`
	Timestamp     time.Time `json:"timestamp"`
	AggregateId   string    `json:"aggregate_id"`
	Version       int       `json:"version"`
	CorrelationID string    `json:"correlation_id,omitempty"`
}

// EventType implements Event interface.
func (e BaseEvent) EventType() EventType {
	return e.Type
}

// OccurredAt implements Event interface.
func (e BaseEvent) OccurredAt() time.Time {
	return e.Timestamp
}

// AggregateID implements Event interface.
func (e BaseEvent) AggregateID() string {
	return e.AggregateId
}

// NewBaseEvent creates a new base event.
func NewBaseEvent(eventType EventType, aggregateID string) BaseEvent {
	return BaseEvent{
		Type:        eventType,
		Timestamp:   time.Now(),
		AggregateId: aggregateID,
		Version:     1,
	}
}

// WithCorrelationID sets the correlation ID for tracing.
func (e BaseEvent) WithCorrelationID(id string) BaseEvent {
	e.CorrelationID = id
	return e
}

// ═══════════════════════════════════════════════════════════════════════════
// Challenge Lifecycle Events
// ═══════════════════════════════════════════════════════════════════════════

// ChallengeCreatedEvent is emitted when a new challenge is created.
type ChallengeCreatedEvent struct {
	BaseEvent
	CreatorID     string `json:"creator_id"`
	Title         string `json:"title"`
	ChallengeType string `json:"challenge_type"`
	Category      string `json:"category"`
	IsPublic      bool   `json:"is_public"`
}

// Payload implements Event interface.
func (e ChallengeCreatedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"creator_id":     e.CreatorID,
		"title":          e.Title,
		"challenge_type": e.ChallengeType,
		"category":       e.Category,
		"is_public":      e.IsPublic,
	}
}

// NewChallengeCreatedEvent creates a new ChallengeCreatedEvent.
func NewChallengeCreatedEvent(challengeID, creatorID, title, challengeType, category string, isPublic bool) ChallengeCreatedEvent {
	return ChallengeCreatedEvent{
		BaseEvent:     NewBaseEvent(EventChallengeCreated, challengeID),
		CreatorID:     creatorID,
		Title:         title,
		ChallengeType: challengeType,
		Category:      category,
		IsPublic:      isPublic,
	}
}

// ChallengeStartedEvent is emitted when a challenge transitions to active.
type ChallengeStartedEvent struct {
	BaseEvent
	ParticipantIDs []string  `json:"participant_ids"`
	EndDate        time.Time `json:"end_date"`
}

// Payload implements Event interface.
func (e ChallengeStartedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"participant_ids": e.ParticipantIDs,
		"end_date":        e.EndDate,
	}
}

// NewChallengeStartedEvent creates a new ChallengeStartedEvent.
func NewChallengeStartedEvent(challengeID string, participantIDs []string, endDate time.Time) ChallengeStartedEvent {
	return ChallengeStartedEvent{
		BaseEvent:      NewBaseEvent(EventChallengeStarted, challengeID),
		ParticipantIDs: participantIDs,
		EndDate:        endDate,
	}
}

// ChallengeEndingSoonEvent is emitted by the reminder sweep when an active
// challenge approaches its end date. Emitted at most once per challenge.
type ChallengeEndingSoonEvent struct {
	BaseEvent
	ParticipantIDs []string  `json:"participant_ids"`
	EndDate        time.Time `json:"end_date"`
	Remaining      string    `json:"remaining"`
}

// Payload implements Event interface.
func (e ChallengeEndingSoonEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"participant_ids": e.ParticipantIDs,
		"end_date":        e.EndDate,
		"remaining":       e.Remaining,
	}
}

// NewChallengeEndingSoonEvent creates a new ChallengeEndingSoonEvent.
func NewChallengeEndingSoonEvent(challengeID string, participantIDs []string, endDate time.Time, remaining string) ChallengeEndingSoonEvent {
	return ChallengeEndingSoonEvent{
		BaseEvent:      NewBaseEvent(EventChallengeEndingSoon, challengeID),
		ParticipantIDs: participantIDs,
		EndDate:        endDate,
		Remaining:      remaining,
	}
}

// ChallengeCompletedEvent is emitted when a challenge finishes and results
// have been persisted.
type ChallengeCompletedEvent struct {
	BaseEvent
	WinnerIDs      []string `json:"winner_ids"`
	ParticipantIDs []string `json:"participant_ids"`
	CollectiveGoalMet bool  `json:"collective_goal_met"`
}

// Payload implements Event interface.
func (e ChallengeCompletedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"winner_ids":          e.WinnerIDs,
		"participant_ids":     e.ParticipantIDs,
		"collective_goal_met": e.CollectiveGoalMet,
	}
}

// NewChallengeCompletedEvent creates a new ChallengeCompletedEvent.
func NewChallengeCompletedEvent(challengeID string, winnerIDs, participantIDs []string, collectiveGoalMet bool) ChallengeCompletedEvent {
	return ChallengeCompletedEvent{
		BaseEvent:         NewBaseEvent(EventChallengeCompleted, challengeID),
		WinnerIDs:         winnerIDs,
		ParticipantIDs:    participantIDs,
		CollectiveGoalMet: collectiveGoalMet,
	}
}

// ChallengeCancelledEvent is emitted when a challenge is cancelled.
type ChallengeCancelledEvent struct {
	BaseEvent
	CancelledBy string `json:"cancelled_by"`
	Reason      string `json:"reason,omitempty"`
}

// Payload implements Event interface.
func (e ChallengeCancelledEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"cancelled_by": e.CancelledBy,
		"reason":       e.Reason,
	}
}

// NewChallengeCancelledEvent creates a new ChallengeCancelledEvent.
func NewChallengeCancelledEvent(challengeID, cancelledBy, reason string) ChallengeCancelledEvent {
	return ChallengeCancelledEvent{
		BaseEvent:   NewBaseEvent(EventChallengeCancelled, challengeID),
		CancelledBy: cancelledBy,
		Reason:      reason,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Membership Events
// ═══════════════════════════════════════════════════════════════════════════

// UserJoinedEvent is emitted when a user joins a challenge.
type UserJoinedEvent struct {
	BaseEvent
	UserID           string `json:"user_id"`
	ParticipantCount int    `json:"participant_count"`
}

// Payload implements Event interface.
func (e UserJoinedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"user_id":           e.UserID,
		"participant_count": e.ParticipantCount,
	}
}

// NewUserJoinedEvent creates a new UserJoinedEvent.
func NewUserJoinedEvent(challengeID, userID string, participantCount int) UserJoinedEvent {
	return UserJoinedEvent{
		BaseEvent:        NewBaseEvent(EventUserJoined, challengeID),
		UserID:           userID,
		ParticipantCount: participantCount,
	}
}

// UserLeftEvent is emitted when a user leaves a challenge.
type UserLeftEvent struct {
	BaseEvent
	UserID string `json:"user_id"`
}

// Payload implements Event interface.
func (e UserLeftEvent) Payload() map[string]interface{} {
	return map[string]interface{}{"user_id": e.UserID}
}

// NewUserLeftEvent creates a new UserLeftEvent.
func NewUserLeftEvent(challengeID, userID string) UserLeftEvent {
	return UserLeftEvent{
		BaseEvent: NewBaseEvent(EventUserLeft, challengeID),
		UserID:    userID,
	}
}

// UsersInvitedEvent is emitted when users are invited to a challenge.
type UsersInvitedEvent struct {
	BaseEvent
	InviterID  string   `json:"inviter_id"`
	InvitedIDs []string `json:"invited_ids"`
}

// Payload implements Event interface.
func (e UsersInvitedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"inviter_id":  e.InviterID,
		"invited_ids": e.InvitedIDs,
	}
}

// NewUsersInvitedEvent creates a new UsersInvitedEvent.
func NewUsersInvitedEvent(challengeID, inviterID string, invitedIDs []string) UsersInvitedEvent {
	return UsersInvitedEvent{
		BaseEvent:  NewBaseEvent(EventUsersInvited, challengeID),
		InviterID:  inviterID,
		InvitedIDs: invitedIDs,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Progress Events
// ═══════════════════════════════════════════════════════════════════════════

// MilestoneReachedEvent is emitted when a participant crosses an achievement
// threshold (bronze/silver/gold/platinum/diamond).
type MilestoneReachedEvent struct {
	BaseEvent
	UserID    string  `json:"user_id"`
	Milestone string  `json:"milestone"`
	Value     float64 `json:"value"`
}

// Payload implements Event interface.
func (e MilestoneReachedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"user_id":   e.UserID,
		"milestone": e.Milestone,
		"value":     e.Value,
	}
}

// NewMilestoneReachedEvent creates a new MilestoneReachedEvent.
func NewMilestoneReachedEvent(challengeID, userID, milestone string, value float64) MilestoneReachedEvent {
	return MilestoneReachedEvent{
		BaseEvent: NewBaseEvent(EventMilestoneReached, challengeID),
		UserID:    userID,
		Milestone: milestone,
		Value:     value,
	}
}

// LeaderboardChangeEvent is emitted when a progress update moves a
// participant on the challenge leaderboard.
type LeaderboardChangeEvent struct {
	BaseEvent
	UserID   string `json:"user_id"`
	PrevRank int    `json:"prev_rank"`
	NewRank  int    `json:"new_rank"`
	Movement string `json:"movement"` // new, up, down, stable
}

// Payload implements Event interface.
func (e LeaderboardChangeEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"user_id":   e.UserID,
		"prev_rank": e.PrevRank,
		"new_rank":  e.NewRank,
		"movement":  e.Movement,
	}
}

// NewLeaderboardChangeEvent creates a new LeaderboardChangeEvent.
func NewLeaderboardChangeEvent(challengeID, userID string, prevRank, newRank int, movement string) LeaderboardChangeEvent {
	return LeaderboardChangeEvent{
		BaseEvent: NewBaseEvent(EventLeaderboardChange, challengeID),
		UserID:    userID,
		PrevRank:  prevRank,
		NewRank:   newRank,
		Movement:  movement,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Social Events
// ═══════════════════════════════════════════════════════════════════════════

// SocialInteractionEvent is emitted for every social interaction
// (cheer, comment, reaction, share, spectate).
type SocialInteractionEvent struct {
	BaseEvent
	InteractionID   string `json:"interaction_id"`
	InteractionType string `json:"interaction_type"`
	FromUserID      string `json:"from_user_id"`
	ToUserID        string `json:"to_user_id"`
}

// Payload implements Event interface.
func (e SocialInteractionEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"interaction_id":   e.InteractionID,
		"interaction_type": e.InteractionType,
		"from_user_id":     e.FromUserID,
		"to_user_id":       e.ToUserID,
	}
}

// NewSocialInteractionEvent creates a new SocialInteractionEvent. The event
// type is derived from the interaction type ("social.<interaction_type>").
func NewSocialInteractionEvent(challengeID, interactionID, interactionType, fromUserID, toUserID string) SocialInteractionEvent {
	return SocialInteractionEvent{
		BaseEvent:       NewBaseEvent(EventType("social."+interactionType), challengeID),
		InteractionID:   interactionID,
		InteractionType: interactionType,
		FromUserID:      fromUserID,
		ToUserID:        toUserID,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Reward Events
// ═══════════════════════════════════════════════════════════════════════════

// BadgeEarnedEvent is emitted when a participant earns a badge.
type BadgeEarnedEvent struct {
	BaseEvent
	UserID string `json:"user_id"`
	Badge  string `json:"badge"`
}

// Payload implements Event interface.
func (e BadgeEarnedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"user_id": e.UserID,
		"badge":   e.Badge,
	}
}

// NewBadgeEarnedEvent creates a new BadgeEarnedEvent.
func NewBadgeEarnedEvent(challengeID, userID, badge string) BadgeEarnedEvent {
	return BadgeEarnedEvent{
		BaseEvent: NewBaseEvent(EventBadgeEarned, challengeID),
		UserID:    userID,
		Badge:     badge,
	}
}

// RewardsClaimedEvent is emitted when a participant claims their rewards.
type RewardsClaimedEvent struct {
	BaseEvent
	UserID        string `json:"user_id"`
	CreditsEarned int    `json:"credits_earned"`
	Badges        []string `json:"badges"`
}

// Payload implements Event interface.
func (e RewardsClaimedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"user_id":        e.UserID,
		"credits_earned": e.CreditsEarned,
		"badges":         e.Badges,
	}
}

// NewRewardsClaimedEvent creates a new RewardsClaimedEvent.
func NewRewardsClaimedEvent(challengeID, userID string, credits int, badges []string) RewardsClaimedEvent {
	return RewardsClaimedEvent{
		BaseEvent:     NewBaseEvent(EventRewardsClaimed, challengeID),
		UserID:        userID,
		CreditsEarned: credits,
		Badges:        badges,
	}
}
