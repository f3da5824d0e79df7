package challenge

import (
	"context"
	"time"
)

// ══════════════════════════════════════════════════════════════════════════════
// REPOSITORY INTERFACE
// The persistence contract consumed by the services. Implementations live in
// infrastructure/persistence. The atomic operations below are the concurrency
// guarantees the lifecycle depends on - a read-then-write in two steps is not
// an acceptable implementation for any of them.
// ══════════════════════════════════════════════════════════════════════════════

// Repository defines the persistence contract for challenges.
type Repository interface {
	// ─────────────────────────────────────────────────────────────────────────
	// CRUD Operations
	// ─────────────────────────────────────────────────────────────────────────

	// Create stores a new challenge.
	// Returns a wrapped ErrAlreadyExists if the ID is taken.
	Create(ctx context.Context, c *Challenge) error

	// GetByID returns a challenge by ID.
	// Returns a wrapped ErrNotFound if the challenge does not exist.
	GetByID(ctx context.Context, id string) (*Challenge, error)

	// Update persists the full challenge state.
	Update(ctx context.Context, c *Challenge) error

	// Delete removes a challenge.
	Delete(ctx context.Context, id string) error

	// ─────────────────────────────────────────────────────────────────────────
	// Filtered Listings
	// ─────────────────────────────────────────────────────────────────────────

	// GetByCreator returns challenges created by a user.
	GetByCreator(ctx context.Context, creatorID UserID, opts ListOptions) ([]*Challenge, error)

	// GetByParticipant returns challenges a user participates in.
	GetByParticipant(ctx context.Context, userID UserID, opts ListOptions) ([]*Challenge, error)

	// GetByStatus returns challenges in a given lifecycle state.
	GetByStatus(ctx context.Context, status Status, opts ListOptions) ([]*Challenge, error)

	// GetByCategory returns challenges of a given category.
	GetByCategory(ctx context.Context, category Category, opts ListOptions) ([]*Challenge, error)

	// GetOpenPublic returns open, public, unexpired challenges for discovery.
	GetOpenPublic(ctx context.Context, now time.Time, opts ListOptions) ([]*Challenge, error)

	// Search returns challenges matching a free-text query against title,
	// description, category and tags.
	Search(ctx context.Context, query string, opts ListOptions) ([]*Challenge, error)

	// FindExpiredOpen returns open challenges whose end date has passed.
	// The sweep jobs use this to expire stale challenges.
	FindExpiredOpen(ctx context.Context, now time.Time) ([]*Challenge, error)

	// FindStartable returns open challenges that satisfy their minimum
	// participant bound and whose start window has been reached.
	FindStartable(ctx context.Context, now time.Time) ([]*Challenge, error)

	// ─────────────────────────────────────────────────────────────────────────
	// Atomic Operations
	// ─────────────────────────────────────────────────────────────────────────

	// AddParticipant atomically adds a user to the participant set and
	// increments the participant count, but only while the challenge is open,
	// unexpired, below its cap, and the user is not already enrolled.
	// Two concurrent calls for the last open slot must not both succeed.
	// Returns the domain conflict error describing why the add was rejected.
	AddParticipant(ctx context.Context, challengeID string, userID UserID, now time.Time) error

	// RemoveParticipant atomically removes a user from the participant set
	// and decrements the participant count.
	RemoveParticipant(ctx context.Context, challengeID string, userID UserID) error

	// TransitionStatus atomically moves the challenge from one status to
	// another. It succeeds at most once per (from, to) pair: completion and
	// cancellation rely on this to never run twice.
	TransitionStatus(ctx context.Context, challengeID string, from, to Status, now time.Time) error

	// UpdateLeaderboard replaces the stored leaderboard snapshot.
	UpdateLeaderboard(ctx context.Context, challengeID string, entries []LeaderboardEntry) error
}

// ListOptions contains pagination and ordering parameters for listings.
type ListOptions struct {
	// Offset is the pagination offset.
	Offset int

	// Limit is the maximum number of records (0 means the default).
	Limit int

	// SortBy is the field to sort by.
	SortBy string

	// SortDesc sorts in descending order.
	SortDesc bool
}

// DefaultListOptions returns the default listing parameters.
func DefaultListOptions() ListOptions {
	return ListOptions{
		Offset:   0,
		Limit:    50,
		SortBy:   "created_at",
		SortDesc: true,
	}
}
