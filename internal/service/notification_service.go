package service

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/challengehub/challenge-hub/internal/domain/shared"
	"github.com/challengehub/challenge-hub/pkg/retry"
)

// ══════════════════════════════════════════════════════════════════════════════
// NOTIFICATION SERVICE
// Bridges domain events to an external delivery sink. Strictly fire-and-
// forget: delivery failures are retried with backoff, then logged and
// dropped - they never propagate back into the operation that emitted the
// event.
// ══════════════════════════════════════════════════════════════════════════════

// Notification is one message for one recipient.
type Notification struct {
	// RecipientID is the user to deliver to. Empty means broadcast to the
	// challenge's audience; the sink decides what that means.
	RecipientID string

	// ChallengeID is the challenge the notification concerns.
	ChallengeID string

	// Kind is the originating event type.
	Kind shared.EventType

	// Title is a short headline.
	Title string

	// Body is the full message text.
	Body string

	// CreatedAt is when the notification was produced.
	CreatedAt time.Time
}

// Sender delivers notifications to users. Implementations wrap push
// providers, bots or websockets; failures should be returned, not hidden.
type Sender interface {
	Send(ctx context.Context, n Notification) error
}

// LogSender writes notifications to the log. The default sink for
// environments without a delivery provider.
type LogSender struct {
	log *logrus.Entry
}

// NewLogSender creates a LogSender.
func NewLogSender(log *logrus.Entry) *LogSender {
	return &LogSender{log: log}
}

// Send logs the notification.
func (s *LogSender) Send(_ context.Context, n Notification) error {
	s.log.WithFields(logrus.Fields{
		"recipient_id": n.RecipientID,
		"challenge_id": n.ChallengeID,
		"kind":         n.Kind,
	}).Info(n.Title)
	return nil
}

// NotificationService subscribes to the event bus and forwards
// notifications to the sender.
type NotificationService struct {
	sender  Sender
	retrier *retry.Retrier
	log     *logrus.Entry
	clock   func() time.Time
}

// NewNotificationService creates a NotificationService.
func NewNotificationService(sender Sender, log *logrus.Entry) *NotificationService {
	return &NotificationService{
		sender:  sender,
		retrier: retry.NotificationRetrier(),
		log:     log,
		clock:   func() time.Time { return time.Now().UTC() },
	}
}

// Register subscribes the service to every notification-bearing event type.
func (s *NotificationService) Register(bus shared.EventBus) error {
	types := []shared.EventType{
		shared.EventChallengeCreated,
		shared.EventChallengeStarted,
		shared.EventChallengeCompleted,
		shared.EventChallengeCancelled,
		shared.EventChallengeEndingSoon,
		shared.EventUserJoined,
		shared.EventUsersInvited,
		shared.EventMilestoneReached,
		shared.EventLeaderboardChange,
		shared.EventBadgeEarned,
		shared.EventRewardsClaimed,
		shared.EventSocialCheer,
		shared.EventSocialComment,
		shared.EventSocialReaction,
	}
	for _, t := range types {
		if err := bus.Subscribe(t, s.HandleEvent); err != nil {
			return fmt.Errorf("notification subscribe %s: %w", t, err)
		}
	}
	return nil
}

// HandleEvent converts an event into notifications and delivers them.
// Always returns nil: a notification that cannot be delivered is dropped,
// never bubbled up to the bus.
func (s *NotificationService) HandleEvent(ctx context.Context, event shared.Event) error {
	for _, n := range s.notificationsFor(event) {
		s.deliver(ctx, n)
	}
	return nil
}

func (s *NotificationService) deliver(ctx context.Context, n Notification) {
	err := s.retrier.Do(ctx, func(ctx context.Context) error {
		if err := s.sender.Send(ctx, n); err != nil {
			return retry.Retryable(err)
		}
		return nil
	})
	if err != nil {
		s.log.WithError(err).WithFields(logrus.Fields{
			"recipient_id": n.RecipientID,
			"kind":         n.Kind,
		}).Warn("notification dropped after retries")
	}
}

// notificationsFor maps one event to its notifications.
func (s *NotificationService) notificationsFor(event shared.Event) []Notification {
	now := s.clock()
	base := Notification{
		ChallengeID: event.AggregateID(),
		Kind:        event.EventType(),
		CreatedAt:   now,
	}

	switch e := event.(type) {
	case shared.ChallengeCreatedEvent:
		base.Title = "New challenge created"
		base.Body = fmt.Sprintf("%q is open for participants", e.Title)
		return []Notification{base}

	case shared.ChallengeStartedEvent:
		out := make([]Notification, 0, len(e.ParticipantIDs))
		for _, id := range e.ParticipantIDs {
			n := base
			n.RecipientID = id
			n.Title = "Challenge started"
			n.Body = "Your challenge is now live. Good luck!"
			out = append(out, n)
		}
		return out

	case shared.ChallengeCompletedEvent:
		out := make([]Notification, 0, len(e.ParticipantIDs))
		for _, id := range e.ParticipantIDs {
			n := base
			n.RecipientID = id
			n.Title = "Challenge completed"
			if contains(e.WinnerIDs, id) {
				n.Body = "Congratulations, you won! Claim your rewards."
			} else {
				n.Body = "The challenge has ended. Check the final standings."
			}
			out = append(out, n)
		}
		return out

	case shared.ChallengeCancelledEvent:
		base.Title = "Challenge cancelled"
		base.Body = e.Reason
		return []Notification{base}

	case shared.ChallengeEndingSoonEvent:
		out := make([]Notification, 0, len(e.ParticipantIDs))
		for _, id := range e.ParticipantIDs {
			n := base
			n.RecipientID = id
			n.Title = "Challenge ending soon"
			n.Body = fmt.Sprintf("Only %s left. Log your final progress!", e.Remaining)
			out = append(out, n)
		}
		return out

	case shared.UserJoinedEvent:
		base.Title = "New participant"
		base.Body = "Someone joined your challenge"
		return []Notification{base}

	case shared.UsersInvitedEvent:
		out := make([]Notification, 0, len(e.InvitedIDs))
		for _, id := range e.InvitedIDs {
			n := base
			n.RecipientID = id
			n.Title = "Challenge invitation"
			n.Body = "You have been invited to a challenge"
			out = append(out, n)
		}
		return out

	case shared.MilestoneReachedEvent:
		base.RecipientID = e.UserID
		base.Title = "Milestone reached"
		base.Body = fmt.Sprintf("You reached the %s milestone", e.Milestone)
		return []Notification{base}

	case shared.LeaderboardChangeEvent:
		base.RecipientID = e.UserID
		base.Title = "Leaderboard update"
		base.Body = fmt.Sprintf("You moved from rank %d to rank %d", e.PrevRank, e.NewRank)
		return []Notification{base}

	case shared.BadgeEarnedEvent:
		base.RecipientID = e.UserID
		base.Title = "Badge earned"
		base.Body = fmt.Sprintf("You earned the %q badge", e.Badge)
		return []Notification{base}

	case shared.RewardsClaimedEvent:
		base.RecipientID = e.UserID
		base.Title = "Rewards claimed"
		base.Body = fmt.Sprintf("%d credits added to your account", e.CreditsEarned)
		return []Notification{base}

	case shared.SocialInteractionEvent:
		if e.ToUserID == "" || e.ToUserID == e.FromUserID {
			return nil
		}
		base.RecipientID = e.ToUserID
		base.Title = "New " + e.InteractionType
		base.Body = "A participant sent you a " + e.InteractionType
		return []Notification{base}
	}

	return nil
}

func contains(values []string, v string) bool {
	for _, x := range values {
		if x == v {
			return true
		}
	}
	return false
}
