package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/challengehub/challenge-hub/internal/domain/challenge"
	"github.com/challengehub/challenge-hub/internal/domain/participant"
	"github.com/challengehub/challenge-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// RESULT REPOSITORY
// The UNIQUE(challenge_id, user_id) constraint is what makes challenge
// completion idempotent: the second writer gets ErrResultExists and skips.
// ══════════════════════════════════════════════════════════════════════════════

// ResultRepository implements participant.ResultRepository for PostgreSQL.
type ResultRepository struct {
	conn *Connection
}

// NewResultRepository creates a ResultRepository.
func NewResultRepository(conn *Connection) *ResultRepository {
	return &ResultRepository{conn: conn}
}

const resultColumns = `
	id, challenge_id, user_id, base_score, bonuses, penalties, multipliers,
	final_score, rank, total_participants, social_score, impact_score,
	collective_total, milestones, badges, records_broken, is_verified,
	verified_by, verified_at, disqualified, finalized, created_at, updated_at
`

// Create stores a result.
func (r *ResultRepository) Create(ctx context.Context, res *participant.Result) error {
	query := `
		INSERT INTO results (` + resultColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14,
				$15, $16, $17, $18, $19, $20, $21, $22, $23)
	`

	bonuses, err := json.Marshal(res.Bonuses)
	if err != nil {
		return fmt.Errorf("marshal bonuses: %w", err)
	}
	penalties, err := json.Marshal(res.Penalties)
	if err != nil {
		return fmt.Errorf("marshal penalties: %w", err)
	}
	multipliers, err := json.Marshal(res.Multipliers)
	if err != nil {
		return fmt.Errorf("marshal multipliers: %w", err)
	}
	milestones, err := json.Marshal(res.Milestones)
	if err != nil {
		return fmt.Errorf("marshal milestones: %w", err)
	}
	badges, err := json.Marshal(res.Badges)
	if err != nil {
		return fmt.Errorf("marshal badges: %w", err)
	}
	records, err := json.Marshal(res.RecordsBroken)
	if err != nil {
		return fmt.Errorf("marshal records: %w", err)
	}

	_, err = r.conn.Exec(ctx, query,
		res.ID, res.ChallengeID, string(res.UserID), res.BaseScore, bonuses,
		penalties, multipliers, res.FinalScore, res.Rank,
		res.TotalParticipants, res.SocialScore, res.ImpactScore,
		res.CollectiveTotal, milestones, badges, records, res.IsVerified,
		res.VerifiedBy, res.VerifiedAt, res.Disqualified, res.Finalized,
		res.CreatedAt, res.UpdatedAt,
	)
	if err != nil {
		if IsUniqueViolation(err) {
			return shared.ErrResultExists
		}
		if IsForeignKeyViolation(err) {
			return shared.ErrChallengeNotFound
		}
		return fmt.Errorf("create result: %w", err)
	}
	return nil
}

// GetByID returns a result by ID.
func (r *ResultRepository) GetByID(ctx context.Context, id string) (*participant.Result, error) {
	query := `SELECT ` + resultColumns + ` FROM results WHERE id = $1`
	return scanResult(r.conn.QueryRow(ctx, query, id))
}

// GetByChallengeAndUser returns the result for a (challenge, user) pair.
func (r *ResultRepository) GetByChallengeAndUser(ctx context.Context, challengeID string, userID challenge.UserID) (*participant.Result, error) {
	query := `SELECT ` + resultColumns + ` FROM results WHERE challenge_id = $1 AND user_id = $2`
	return scanResult(r.conn.QueryRow(ctx, query, challengeID, string(userID)))
}

// GetByChallenge returns all results of a challenge, ordered by rank.
func (r *ResultRepository) GetByChallenge(ctx context.Context, challengeID string) ([]*participant.Result, error) {
	query := `SELECT ` + resultColumns + ` FROM results WHERE challenge_id = $1 ORDER BY rank, user_id`
	rows, err := r.conn.Query(ctx, query, challengeID)
	if err != nil {
		return nil, fmt.Errorf("list results: %w", err)
	}
	return collectResults(rows)
}

// GetByUser returns a user's results across challenges, most recent first.
func (r *ResultRepository) GetByUser(ctx context.Context, userID challenge.UserID, limit int) ([]*participant.Result, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `SELECT ` + resultColumns + ` FROM results WHERE user_id = $1 ORDER BY created_at DESC LIMIT $2`
	rows, err := r.conn.Query(ctx, query, string(userID), limit)
	if err != nil {
		return nil, fmt.Errorf("list user results: %w", err)
	}
	return collectResults(rows)
}

// Update persists verification and adjustment changes.
func (r *ResultRepository) Update(ctx context.Context, res *participant.Result) error {
	query := `
		UPDATE results SET
			base_score = $2, bonuses = $3, penalties = $4, multipliers = $5,
			final_score = $6, is_verified = $7, verified_by = $8,
			verified_at = $9, disqualified = $10, finalized = $11,
			updated_at = $12
		WHERE id = $1
	`

	bonuses, err := json.Marshal(res.Bonuses)
	if err != nil {
		return fmt.Errorf("marshal bonuses: %w", err)
	}
	penalties, err := json.Marshal(res.Penalties)
	if err != nil {
		return fmt.Errorf("marshal penalties: %w", err)
	}
	multipliers, err := json.Marshal(res.Multipliers)
	if err != nil {
		return fmt.Errorf("marshal multipliers: %w", err)
	}

	tag, err := r.conn.Exec(ctx, query,
		res.ID, res.BaseScore, bonuses, penalties, multipliers,
		res.FinalScore, res.IsVerified, res.VerifiedBy, res.VerifiedAt,
		res.Disqualified, res.Finalized, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("update result: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrResultNotFound
	}
	return nil
}

func scanResult(row pgx.Row) (*participant.Result, error) {
	var (
		res             participant.Result
		userID          string
		bonusesJSON     []byte
		penaltiesJSON   []byte
		multipliersJSON []byte
		milestonesJSON  []byte
		badgesJSON      []byte
		recordsJSON     []byte
	)

	err := row.Scan(
		&res.ID, &res.ChallengeID, &userID, &res.BaseScore, &bonusesJSON,
		&penaltiesJSON, &multipliersJSON, &res.FinalScore, &res.Rank,
		&res.TotalParticipants, &res.SocialScore, &res.ImpactScore,
		&res.CollectiveTotal, &milestonesJSON, &badgesJSON, &recordsJSON,
		&res.IsVerified, &res.VerifiedBy, &res.VerifiedAt, &res.Disqualified,
		&res.Finalized, &res.CreatedAt, &res.UpdatedAt,
	)
	if err != nil {
		if IsNoRows(err) {
			return nil, shared.ErrResultNotFound
		}
		return nil, fmt.Errorf("scan result: %w", err)
	}

	res.UserID = challenge.UserID(userID)

	if err := json.Unmarshal(bonusesJSON, &res.Bonuses); err != nil {
		return nil, fmt.Errorf("unmarshal bonuses: %w", err)
	}
	if err := json.Unmarshal(penaltiesJSON, &res.Penalties); err != nil {
		return nil, fmt.Errorf("unmarshal penalties: %w", err)
	}
	if err := json.Unmarshal(multipliersJSON, &res.Multipliers); err != nil {
		return nil, fmt.Errorf("unmarshal multipliers: %w", err)
	}
	if err := json.Unmarshal(milestonesJSON, &res.Milestones); err != nil {
		return nil, fmt.Errorf("unmarshal milestones: %w", err)
	}
	if err := json.Unmarshal(badgesJSON, &res.Badges); err != nil {
		return nil, fmt.Errorf("unmarshal badges: %w", err)
	}
	if err := json.Unmarshal(recordsJSON, &res.RecordsBroken); err != nil {
		return nil, fmt.Errorf("unmarshal records: %w", err)
	}

	return &res, nil
}

func collectResults(rows pgx.Rows) ([]*participant.Result, error) {
	defer rows.Close()

	var out []*participant.Result
	for rows.Next() {
		res, err := scanResult(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, res)
	}
	return out, rows.Err()
}
