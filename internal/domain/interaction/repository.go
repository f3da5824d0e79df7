package interaction

import (
	"context"

	"github.com/challengehub/challenge-hub/internal/domain/challenge"
)

// Repository defines the persistence contract for interactions.
type Repository interface {
	// Create stores a new interaction.
	Create(ctx context.Context, i *Interaction) error

	// GetByID returns an interaction by ID.
	// Returns a wrapped ErrNotFound if it does not exist.
	GetByID(ctx context.Context, id string) (*Interaction, error)

	// Update persists moderation / engagement changes.
	Update(ctx context.Context, i *Interaction) error

	// GetByChallenge returns visible interactions of a challenge, newest
	// first.
	GetByChallenge(ctx context.Context, challengeID string, limit int) ([]*Interaction, error)

	// GetByUser returns interactions sent by a user within a challenge.
	GetByUser(ctx context.Context, challengeID string, userID challenge.UserID) ([]*Interaction, error)

	// GetReceivedByUser returns interactions a user received within a
	// challenge.
	GetReceivedByUser(ctx context.Context, challengeID string, userID challenge.UserID) ([]*Interaction, error)

	// CountByChallengeAndType returns the number of visible interactions of
	// one type within a challenge. Trending scoring reads these.
	CountByChallengeAndType(ctx context.Context, challengeID string, t Type) (int, error)
}
