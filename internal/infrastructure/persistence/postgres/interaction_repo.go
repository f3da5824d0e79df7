package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/challengehub/challenge-hub/internal/domain/challenge"
	"github.com/challengehub/challenge-hub/internal/domain/interaction"
	"github.com/challengehub/challenge-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// INTERACTION REPOSITORY
// ══════════════════════════════════════════════════════════════════════════════

// InteractionRepository implements interaction.Repository for PostgreSQL.
type InteractionRepository struct {
	conn *Connection
}

// NewInteractionRepository creates an InteractionRepository.
func NewInteractionRepository(conn *Connection) *InteractionRepository {
	return &InteractionRepository{conn: conn}
}

const interactionColumns = `
	id, challenge_id, from_user_id, to_user_id, type, emoji, content,
	context, liked_by, replies, is_deleted, is_flagged, moderation_status,
	created_at, updated_at
`

// visibleClause filters out deleted and moderation-rejected interactions.
const visibleClause = `NOT is_deleted AND moderation_status != 'rejected'`

// Create stores a new interaction.
func (r *InteractionRepository) Create(ctx context.Context, i *interaction.Interaction) error {
	query := `
		INSERT INTO interactions (` + interactionColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
	`

	likedBy, err := json.Marshal(i.LikedBy)
	if err != nil {
		return fmt.Errorf("marshal liked_by: %w", err)
	}
	replies, err := json.Marshal(i.Replies)
	if err != nil {
		return fmt.Errorf("marshal replies: %w", err)
	}

	_, err = r.conn.Exec(ctx, query,
		i.ID, i.ChallengeID, string(i.FromUserID), string(i.ToUserID),
		string(i.Type), i.Emoji, i.Content, string(i.Context), likedBy,
		replies, i.IsDeleted, i.IsFlagged, string(i.ModerationStatus),
		i.CreatedAt, i.UpdatedAt,
	)
	if err != nil {
		if IsForeignKeyViolation(err) {
			return shared.ErrChallengeNotFound
		}
		return fmt.Errorf("create interaction: %w", err)
	}
	return nil
}

// GetByID returns an interaction by ID.
func (r *InteractionRepository) GetByID(ctx context.Context, id string) (*interaction.Interaction, error) {
	query := `SELECT ` + interactionColumns + ` FROM interactions WHERE id = $1`
	return scanInteraction(r.conn.QueryRow(ctx, query, id))
}

// Update persists moderation and engagement changes.
func (r *InteractionRepository) Update(ctx context.Context, i *interaction.Interaction) error {
	query := `
		UPDATE interactions SET
			liked_by = $2, replies = $3, is_deleted = $4, is_flagged = $5,
			moderation_status = $6, updated_at = $7
		WHERE id = $1
	`

	likedBy, err := json.Marshal(i.LikedBy)
	if err != nil {
		return fmt.Errorf("marshal liked_by: %w", err)
	}
	replies, err := json.Marshal(i.Replies)
	if err != nil {
		return fmt.Errorf("marshal replies: %w", err)
	}

	tag, err := r.conn.Exec(ctx, query,
		i.ID, likedBy, replies, i.IsDeleted, i.IsFlagged,
		string(i.ModerationStatus), time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("update interaction: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrInteractionNotFound
	}
	return nil
}

// GetByChallenge returns visible interactions of a challenge, newest first.
func (r *InteractionRepository) GetByChallenge(ctx context.Context, challengeID string, limit int) ([]*interaction.Interaction, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `
		SELECT ` + interactionColumns + `
		FROM interactions
		WHERE challenge_id = $1 AND ` + visibleClause + `
		ORDER BY created_at DESC
		LIMIT $2
	`
	rows, err := r.conn.Query(ctx, query, challengeID, limit)
	if err != nil {
		return nil, fmt.Errorf("list interactions: %w", err)
	}
	return collectInteractions(rows)
}

// GetByUser returns interactions sent by a user within a challenge.
func (r *InteractionRepository) GetByUser(ctx context.Context, challengeID string, userID challenge.UserID) ([]*interaction.Interaction, error) {
	query := `
		SELECT ` + interactionColumns + `
		FROM interactions
		WHERE challenge_id = $1 AND from_user_id = $2 AND ` + visibleClause + `
		ORDER BY created_at DESC
	`
	rows, err := r.conn.Query(ctx, query, challengeID, string(userID))
	if err != nil {
		return nil, fmt.Errorf("list sent interactions: %w", err)
	}
	return collectInteractions(rows)
}

// GetReceivedByUser returns interactions a user received within a challenge.
func (r *InteractionRepository) GetReceivedByUser(ctx context.Context, challengeID string, userID challenge.UserID) ([]*interaction.Interaction, error) {
	query := `
		SELECT ` + interactionColumns + `
		FROM interactions
		WHERE challenge_id = $1 AND to_user_id = $2 AND ` + visibleClause + `
		ORDER BY created_at DESC
	`
	rows, err := r.conn.Query(ctx, query, challengeID, string(userID))
	if err != nil {
		return nil, fmt.Errorf("list received interactions: %w", err)
	}
	return collectInteractions(rows)
}

// CountByChallengeAndType returns the number of visible interactions of one
// type within a challenge.
func (r *InteractionRepository) CountByChallengeAndType(ctx context.Context, challengeID string, t interaction.Type) (int, error) {
	query := `
		SELECT COUNT(*)
		FROM interactions
		WHERE challenge_id = $1 AND type = $2 AND ` + visibleClause

	var count int
	if err := r.conn.QueryRow(ctx, query, challengeID, string(t)).Scan(&count); err != nil {
		return 0, fmt.Errorf("count interactions: %w", err)
	}
	return count, nil
}

func scanInteraction(row pgx.Row) (*interaction.Interaction, error) {
	var (
		i           interaction.Interaction
		fromUser    string
		toUser      string
		typ         string
		ictx        string
		likedJSON   []byte
		repliesJSON []byte
		moderation  string
	)

	err := row.Scan(
		&i.ID, &i.ChallengeID, &fromUser, &toUser, &typ, &i.Emoji,
		&i.Content, &ictx, &likedJSON, &repliesJSON, &i.IsDeleted,
		&i.IsFlagged, &moderation, &i.CreatedAt, &i.UpdatedAt,
	)
	if err != nil {
		if IsNoRows(err) {
			return nil, shared.ErrInteractionNotFound
		}
		return nil, fmt.Errorf("scan interaction: %w", err)
	}

	i.FromUserID = challenge.UserID(fromUser)
	i.ToUserID = challenge.UserID(toUser)
	i.Type = interaction.Type(typ)
	i.Context = interaction.ContextType(ictx)
	i.ModerationStatus = interaction.ModerationStatus(moderation)

	if err := json.Unmarshal(likedJSON, &i.LikedBy); err != nil {
		return nil, fmt.Errorf("unmarshal liked_by: %w", err)
	}
	if err := json.Unmarshal(repliesJSON, &i.Replies); err != nil {
		return nil, fmt.Errorf("unmarshal replies: %w", err)
	}

	return &i, nil
}

func collectInteractions(rows pgx.Rows) ([]*interaction.Interaction, error) {
	defer rows.Close()

	var out []*interaction.Interaction
	for rows.Next() {
		i, err := scanInteraction(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, i)
	}
	return out, rows.Err()
}
