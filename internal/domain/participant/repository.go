package participant

import (
	"context"
	"time"

	"github.com/challengehub/challenge-hub/internal/domain/challenge"
)

// ══════════════════════════════════════════════════════════════════════════════
// REPOSITORY INTERFACES
// Persistence contracts for participants and results. Implementations live in
// infrastructure/persistence. The atomic operations carry the concurrency
// guarantees for progress counting and reward claiming.
// ══════════════════════════════════════════════════════════════════════════════

// Repository defines the persistence contract for participants.
type Repository interface {
	// ─────────────────────────────────────────────────────────────────────────
	// CRUD Operations
	// ─────────────────────────────────────────────────────────────────────────

	// Create stores a new participant.
	// Returns a wrapped ErrAlreadyExists for a duplicate (challenge, user) pair.
	Create(ctx context.Context, p *Participant) error

	// GetByID returns a participant by internal ID.
	GetByID(ctx context.Context, id string) (*Participant, error)

	// GetByChallengeAndUser returns the participant for a (challenge, user)
	// pair. Returns a wrapped ErrNotFound when the user never joined.
	GetByChallengeAndUser(ctx context.Context, challengeID string, userID challenge.UserID) (*Participant, error)

	// Update persists the full participant state.
	Update(ctx context.Context, p *Participant) error

	// Delete removes a participant record.
	Delete(ctx context.Context, id string) error

	// ─────────────────────────────────────────────────────────────────────────
	// Filtered Listings
	// ─────────────────────────────────────────────────────────────────────────

	// GetByChallenge returns every participant of a challenge.
	GetByChallenge(ctx context.Context, challengeID string) ([]*Participant, error)

	// GetActiveByChallenge returns the active participants of a challenge.
	GetActiveByChallenge(ctx context.Context, challengeID string) ([]*Participant, error)

	// GetByUser returns a user's participations across challenges, most
	// recent first. Matchmaking reads these for personalization.
	GetByUser(ctx context.Context, userID challenge.UserID, limit int) ([]*Participant, error)

	// CountByChallenge returns the number of participants of a challenge.
	CountByChallenge(ctx context.Context, challengeID string) (int, error)

	// ─────────────────────────────────────────────────────────────────────────
	// Atomic Operations
	// ─────────────────────────────────────────────────────────────────────────

	// IncrementUpdateCount atomically increments the progress-update counter.
	// Exactly one increment per progress update, even under concurrency.
	IncrementUpdateCount(ctx context.Context, id string) error

	// IncrementSocialCounter atomically bumps one of the social counters
	// ("cheers_given", "cheers_received", "comments_given",
	// "comments_received") and returns nothing; the derived social score is
	// recomputed by the caller on the next read-modify-write.
	IncrementSocialCounter(ctx context.Context, id string, counter string) error

	// ClaimRewards atomically flips the rewards-claimed flag and records the
	// payout, but only if the flag is not yet set (compare-and-swap).
	// A second claim returns a wrapped ErrAlreadyProcessed and leaves the
	// stored credits untouched.
	ClaimRewards(ctx context.Context, id string, credits int, badges []string, now time.Time) error
}

// ResultRepository defines the persistence contract for results.
type ResultRepository interface {
	// Create stores a result. Returns a wrapped ErrAlreadyExists when a
	// result for the (challenge, user) pair is already recorded - Complete
	// idempotence rests on this.
	Create(ctx context.Context, r *Result) error

	// GetByID returns a result by ID.
	GetByID(ctx context.Context, id string) (*Result, error)

	// GetByChallengeAndUser returns the result for a (challenge, user) pair.
	GetByChallengeAndUser(ctx context.Context, challengeID string, userID challenge.UserID) (*Result, error)

	// GetByChallenge returns all results of a challenge, ordered by rank.
	GetByChallenge(ctx context.Context, challengeID string) ([]*Result, error)

	// GetByUser returns a user's results across challenges, most recent first.
	GetByUser(ctx context.Context, userID challenge.UserID, limit int) ([]*Result, error)

	// Update persists verification / adjustment changes.
	Update(ctx context.Context, r *Result) error
}
