// Package participant contains the domain model for one user's membership in
// one challenge, and the finalized Result derived from it at completion time.
// A participant references its challenge by ID only - never embedded.
package participant

import (
	"errors"
	"fmt"
	"time"

	"github.com/challengehub/challenge-hub/internal/domain/challenge"
)

// ══════════════════════════════════════════════════════════════════════════════
// ENUMS
// ══════════════════════════════════════════════════════════════════════════════

// Status is the membership state of a participant. Transitions only ever go
// from active to a terminal state, never back.
type Status string

const (
	// StatusActive - participating and accepting progress updates.
	StatusActive Status = "active"
	// StatusCompleted - finished the challenge with a final score.
	StatusCompleted Status = "completed"
	// StatusQuit - left the challenge voluntarily.
	StatusQuit Status = "quit"
	// StatusDisqualified - removed for rule violations.
	StatusDisqualified Status = "disqualified"
)

// IsValid reports whether the status is one of the known variants.
func (s Status) IsValid() bool {
	switch s {
	case StatusActive, StatusCompleted, StatusQuit, StatusDisqualified:
		return true
	default:
		return false
	}
}

// IsFinal reports whether the status is terminal.
func (s Status) IsFinal() bool {
	return s != StatusActive
}

// EngagementLevel buckets a participant's social score. It feeds the social
// scoring multiplier and the social-champion badge.
type EngagementLevel string

const (
	EngagementNone     EngagementLevel = "none"
	EngagementLow      EngagementLevel = "low"
	EngagementMedium   EngagementLevel = "medium"
	EngagementHigh     EngagementLevel = "high"
	EngagementVeryHigh EngagementLevel = "very_high"
)

// EngagementFromSocialScore buckets a social score into an engagement level.
func EngagementFromSocialScore(score float64) EngagementLevel {
	switch {
	case score <= 0:
		return EngagementNone
	case score < 15:
		return EngagementLow
	case score < 30:
		return EngagementMedium
	case score < 60:
		return EngagementHigh
	default:
		return EngagementVeryHigh
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// DOMAIN ERRORS
// ══════════════════════════════════════════════════════════════════════════════

var (
	// ErrInvalidChallengeID - the challenge reference is missing.
	ErrInvalidChallengeID = errors.New("participant: challenge id is required")

	// ErrInvalidUserID - the user reference is missing.
	ErrInvalidUserID = errors.New("participant: user id is required")

	// ErrNotActive - the participant left, finished, or was disqualified.
	ErrNotActive = errors.New("participant is not active")

	// ErrAlreadyFinal - the participant already reached a terminal state.
	ErrAlreadyFinal = errors.New("participant status is already final")

	// ErrRewardsClaimed - rewards were already claimed once.
	ErrRewardsClaimed = errors.New("rewards already claimed")
)

// ══════════════════════════════════════════════════════════════════════════════
// MAIN ENTITY: PARTICIPANT
// ══════════════════════════════════════════════════════════════════════════════

// Participant is one user's membership and progress record within one
// challenge. Unique per (challenge, user) pair.
type Participant struct {
	// ID is the unique identifier (UUID in string form).
	ID string

	// ChallengeID references the challenge by ID.
	ChallengeID string

	// UserID is the participating user.
	UserID challenge.UserID

	// Status is the membership state.
	Status Status

	// JoinedAt is when the user joined.
	JoinedAt time.Time

	// CompletedAt is when the user finished (nil while active).
	CompletedAt *time.Time

	// Progress maps metric names to current values.
	Progress map[string]float64

	// UpdateCount is the number of progress updates submitted. Incremented
	// atomically at the repository layer, exactly once per update call.
	UpdateCount int

	// Social counters.
	CheersGiven      int
	CheersReceived   int
	CommentsGiven    int
	CommentsReceived int

	// SocialScore is derived from the social counters.
	SocialScore float64

	// Achievement counters.
	MilestonesReached []string
	AchievementCount  int
	StreakDays        int

	// Ranking state. BestRank only ever improves (decreases) once set;
	// FinalRank and FinalScore are stamped at completion.
	BestRank   int
	FinalRank  int
	FinalScore float64

	// CompletionPercentage is progress toward the target, in [0,100].
	CompletionPercentage float64

	// Reward-claim state. RewardsClaimed flips at most once, CAS-guarded at
	// the repository layer.
	CreditsEarned    int
	BadgesEarned     []string
	RewardsClaimed   bool
	RewardsClaimedAt *time.Time

	// Referral counters.
	FriendsInvited int
	FriendsJoined  int

	// CommunityImpact accumulates impact-challenge contributions.
	CommunityImpact float64

	// CreatedAt is when the record was created.
	CreatedAt time.Time

	// UpdatedAt is the last modification time.
	UpdatedAt time.Time
}

// NewParticipant creates an active participant for a (challenge, user) pair.
func NewParticipant(id, challengeID string, userID challenge.UserID) (*Participant, error) {
	if id == "" {
		return nil, errors.New("participant id is required")
	}
	if challengeID == "" {
		return nil, ErrInvalidChallengeID
	}
	if !userID.IsValid() {
		return nil, ErrInvalidUserID
	}

	now := time.Now().UTC()

	return &Participant{
		ID:                id,
		ChallengeID:       challengeID,
		UserID:            userID,
		Status:            StatusActive,
		JoinedAt:          now,
		Progress:          make(map[string]float64),
		MilestonesReached: []string{},
		BadgesEarned:      []string{},
		CreatedAt:         now,
		UpdatedAt:         now,
	}, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// DOMAIN METHODS (Business Logic)
// ══════════════════════════════════════════════════════════════════════════════

// ApplyProgress merges a progress delta into the progress map and recomputes
// the completion percentage against the target. Values accumulate; the
// repository layer is responsible for the atomic update-counter increment.
func (p *Participant) ApplyProgress(delta map[string]float64, targetMetric string, targetValue float64) error {
	if p.Status != StatusActive {
		return ErrNotActive
	}

	for metric, value := range delta {
		p.Progress[metric] += value
	}
	p.UpdateCount++

	if targetValue > 0 {
		pct := p.Progress[targetMetric] / targetValue * 100
		if pct > 100 {
			pct = 100
		}
		if pct < 0 {
			pct = 0
		}
		p.CompletionPercentage = pct
	}

	p.UpdatedAt = time.Now().UTC()
	return nil
}

// ProgressValue returns the current value of a metric.
func (p *Participant) ProgressValue(metric string) float64 {
	return p.Progress[metric]
}

// UpdatesPerDay returns the average number of progress updates per day since
// joining. Used by the consistency bonus.
func (p *Participant) UpdatesPerDay(now time.Time) float64 {
	days := now.Sub(p.JoinedAt).Hours() / 24
	if days < 1 {
		days = 1
	}
	return float64(p.UpdateCount) / days
}

// RecordRank updates the best rank, which only ever improves once set.
func (p *Participant) RecordRank(rank int) {
	if rank <= 0 {
		return
	}
	if p.BestRank == 0 || rank < p.BestRank {
		p.BestRank = rank
		p.UpdatedAt = time.Now().UTC()
	}
}

// MarkCompleted transitions the participant to completed with its final
// score and rank.
func (p *Participant) MarkCompleted(finalScore float64, finalRank int, now time.Time) error {
	if p.Status != StatusActive {
		return ErrAlreadyFinal
	}

	p.Status = StatusCompleted
	p.FinalScore = finalScore
	p.FinalRank = finalRank
	p.RecordRank(finalRank)
	completed := now
	p.CompletedAt = &completed
	p.UpdatedAt = now
	return nil
}

// Quit transitions the participant to quit.
func (p *Participant) Quit(now time.Time) error {
	if p.Status != StatusActive {
		return ErrAlreadyFinal
	}

	p.Status = StatusQuit
	p.UpdatedAt = now
	return nil
}

// Disqualify transitions the participant to disqualified.
func (p *Participant) Disqualify(now time.Time) error {
	if p.Status != StatusActive {
		return ErrAlreadyFinal
	}

	p.Status = StatusDisqualified
	p.UpdatedAt = now
	return nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Social engagement
// ─────────────────────────────────────────────────────────────────────────────

// RecordCheerGiven increments the cheers-given counter.
func (p *Participant) RecordCheerGiven() {
	p.CheersGiven++
	p.recalcSocialScore()
}

// RecordCheerReceived increments the cheers-received counter.
func (p *Participant) RecordCheerReceived() {
	p.CheersReceived++
	p.recalcSocialScore()
}

// RecordCommentGiven increments the comments-given counter.
func (p *Participant) RecordCommentGiven() {
	p.CommentsGiven++
	p.recalcSocialScore()
}

// RecordCommentReceived increments the comments-received counter.
func (p *Participant) RecordCommentReceived() {
	p.CommentsReceived++
	p.recalcSocialScore()
}

// Social score weights. Received interactions weigh heavier than given
// ones: the score measures how much the community engages with the
// participant, not just activity. Storage backends that recompute the
// score in place must use the same weights.
const (
	WeightCheerReceived   = 2.0
	WeightCommentReceived = 2.5
	WeightCheerGiven      = 1.0
	WeightCommentGiven    = 1.5
)

// recalcSocialScore derives the social score from the raw counters.
func (p *Participant) recalcSocialScore() {
	p.SocialScore = float64(p.CheersReceived)*WeightCheerReceived +
		float64(p.CommentsReceived)*WeightCommentReceived +
		float64(p.CheersGiven)*WeightCheerGiven +
		float64(p.CommentsGiven)*WeightCommentGiven
	p.UpdatedAt = time.Now().UTC()
}

// EngagementLevel returns the engagement bucket for the current social score.
func (p *Participant) EngagementLevel() EngagementLevel {
	return EngagementFromSocialScore(p.SocialScore)
}

// ─────────────────────────────────────────────────────────────────────────────
// Milestones, referrals, rewards
// ─────────────────────────────────────────────────────────────────────────────

// HasMilestone reports whether a milestone has already been reached.
func (p *Participant) HasMilestone(name string) bool {
	for _, m := range p.MilestonesReached {
		if m == name {
			return true
		}
	}
	return false
}

// ReachMilestone records a milestone once. Returns true the first time.
func (p *Participant) ReachMilestone(name string) bool {
	if p.HasMilestone(name) {
		return false
	}
	p.MilestonesReached = append(p.MilestonesReached, name)
	p.AchievementCount++
	p.UpdatedAt = time.Now().UTC()
	return true
}

// RecordInvite increments the friends-invited counter.
func (p *Participant) RecordInvite(count int) {
	if count <= 0 {
		return
	}
	p.FriendsInvited += count
	p.UpdatedAt = time.Now().UTC()
}

// RecordFriendJoined increments the friends-joined counter.
func (p *Participant) RecordFriendJoined() {
	p.FriendsJoined++
	p.UpdatedAt = time.Now().UTC()
}

// AddCommunityImpact accumulates impact contributions.
func (p *Participant) AddCommunityImpact(amount float64) {
	if amount <= 0 {
		return
	}
	p.CommunityImpact += amount
	p.UpdatedAt = time.Now().UTC()
}

// ClaimRewards records a one-time reward claim. A second claim fails with
// ErrRewardsClaimed and leaves the earned credits untouched. The repository
// layer enforces the same guard with a compare-and-swap for concurrent claims.
func (p *Participant) ClaimRewards(credits int, badges []string, now time.Time) error {
	if p.RewardsClaimed {
		return ErrRewardsClaimed
	}

	p.CreditsEarned = credits
	p.BadgesEarned = append(p.BadgesEarned, badges...)
	p.RewardsClaimed = true
	claimed := now
	p.RewardsClaimedAt = &claimed
	p.UpdatedAt = now
	return nil
}

// String returns a compact representation for logging.
func (p *Participant) String() string {
	return fmt.Sprintf(
		"Participant{Challenge: %s, User: %s, Status: %s, Updates: %d, Completion: %.1f%%}",
		p.ChallengeID, p.UserID, p.Status, p.UpdateCount, p.CompletionPercentage,
	)
}

// Clone creates a deep copy of the participant.
func (p *Participant) Clone() *Participant {
	if p == nil {
		return nil
	}

	clone := *p
	clone.Progress = make(map[string]float64, len(p.Progress))
	for k, v := range p.Progress {
		clone.Progress[k] = v
	}
	clone.MilestonesReached = append([]string(nil), p.MilestonesReached...)
	clone.BadgesEarned = append([]string(nil), p.BadgesEarned...)
	if p.CompletedAt != nil {
		t := *p.CompletedAt
		clone.CompletedAt = &t
	}
	if p.RewardsClaimedAt != nil {
		t := *p.RewardsClaimedAt
		clone.RewardsClaimedAt = &t
	}
	return &clone
}
