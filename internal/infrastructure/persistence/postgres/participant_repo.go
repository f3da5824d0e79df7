package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/challengehub/challenge-hub/internal/domain/challenge"
	"github.com/challengehub/challenge-hub/internal/domain/participant"
	"github.com/challengehub/challenge-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// PARTICIPANT REPOSITORY
// ══════════════════════════════════════════════════════════════════════════════

// ParticipantRepository implements participant.Repository for PostgreSQL.
type ParticipantRepository struct {
	conn *Connection
}

// NewParticipantRepository creates a ParticipantRepository.
func NewParticipantRepository(conn *Connection) *ParticipantRepository {
	return &ParticipantRepository{conn: conn}
}

const participantColumns = `
	id, challenge_id, user_id, status, joined_at, completed_at, progress,
	update_count, cheers_given, cheers_received, comments_given,
	comments_received, social_score, milestones_reached, achievement_count,
	streak_days, best_rank, final_rank, final_score, completion_percentage,
	credits_earned, badges_earned, rewards_claimed, rewards_claimed_at,
	friends_invited, friends_joined, community_impact, created_at, updated_at
`

// ─────────────────────────────────────────────────────────────────────────────
// CRUD Operations
// ─────────────────────────────────────────────────────────────────────────────

// Create stores a new participant. The UNIQUE(challenge_id, user_id)
// constraint backs join idempotence.
func (r *ParticipantRepository) Create(ctx context.Context, p *participant.Participant) error {
	query := `
		INSERT INTO participants (` + participantColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14,
				$15, $16, $17, $18, $19, $20, $21, $22, $23, $24, $25, $26,
				$27, $28, $29)
	`

	args, err := participantArgs(p)
	if err != nil {
		return err
	}

	if _, err := r.conn.Exec(ctx, query, args...); err != nil {
		if IsUniqueViolation(err) {
			return shared.ErrAlreadyJoined
		}
		if IsForeignKeyViolation(err) {
			return shared.ErrChallengeNotFound
		}
		return fmt.Errorf("create participant: %w", err)
	}
	return nil
}

// GetByID returns a participant by internal ID.
func (r *ParticipantRepository) GetByID(ctx context.Context, id string) (*participant.Participant, error) {
	query := `SELECT ` + participantColumns + ` FROM participants WHERE id = $1`
	return scanParticipant(r.conn.QueryRow(ctx, query, id))
}

// GetByChallengeAndUser returns the participant for a (challenge, user) pair.
func (r *ParticipantRepository) GetByChallengeAndUser(ctx context.Context, challengeID string, userID challenge.UserID) (*participant.Participant, error) {
	query := `SELECT ` + participantColumns + ` FROM participants WHERE challenge_id = $1 AND user_id = $2`
	return scanParticipant(r.conn.QueryRow(ctx, query, challengeID, string(userID)))
}

// Update persists the full participant state. The counters covered by the
// atomic operations are deliberately excluded so a stale in-memory copy
// cannot roll them back.
func (r *ParticipantRepository) Update(ctx context.Context, p *participant.Participant) error {
	query := `
		UPDATE participants SET
			status = $2, completed_at = $3, progress = $4, social_score = $5,
			milestones_reached = $6, achievement_count = $7, streak_days = $8,
			best_rank = $9, final_rank = $10, final_score = $11,
			completion_percentage = $12, friends_invited = $13,
			friends_joined = $14, community_impact = $15, updated_at = $16
		WHERE id = $1
	`

	progress, err := json.Marshal(p.Progress)
	if err != nil {
		return fmt.Errorf("marshal progress: %w", err)
	}
	milestones, err := json.Marshal(p.MilestonesReached)
	if err != nil {
		return fmt.Errorf("marshal milestones: %w", err)
	}

	tag, err := r.conn.Exec(ctx, query,
		p.ID, string(p.Status), p.CompletedAt, progress, p.SocialScore,
		milestones, p.AchievementCount, p.StreakDays, p.BestRank, p.FinalRank,
		p.FinalScore, p.CompletionPercentage, p.FriendsInvited,
		p.FriendsJoined, p.CommunityImpact, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("update participant: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotAParticipant
	}
	return nil
}

// Delete removes a participant record.
func (r *ParticipantRepository) Delete(ctx context.Context, id string) error {
	tag, err := r.conn.Exec(ctx, `DELETE FROM participants WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete participant: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotAParticipant
	}
	return nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Filtered Listings
// ─────────────────────────────────────────────────────────────────────────────

// GetByChallenge returns every participant of a challenge.
func (r *ParticipantRepository) GetByChallenge(ctx context.Context, challengeID string) ([]*participant.Participant, error) {
	query := `SELECT ` + participantColumns + ` FROM participants WHERE challenge_id = $1 ORDER BY joined_at`
	rows, err := r.conn.Query(ctx, query, challengeID)
	if err != nil {
		return nil, fmt.Errorf("list participants: %w", err)
	}
	return collectParticipants(rows)
}

// GetActiveByChallenge returns the active participants of a challenge.
func (r *ParticipantRepository) GetActiveByChallenge(ctx context.Context, challengeID string) ([]*participant.Participant, error) {
	query := `SELECT ` + participantColumns + ` FROM participants WHERE challenge_id = $1 AND status = 'active' ORDER BY joined_at`
	rows, err := r.conn.Query(ctx, query, challengeID)
	if err != nil {
		return nil, fmt.Errorf("list active participants: %w", err)
	}
	return collectParticipants(rows)
}

// GetByUser returns a user's participations, most recent first.
func (r *ParticipantRepository) GetByUser(ctx context.Context, userID challenge.UserID, limit int) ([]*participant.Participant, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `SELECT ` + participantColumns + ` FROM participants WHERE user_id = $1 ORDER BY created_at DESC LIMIT $2`
	rows, err := r.conn.Query(ctx, query, string(userID), limit)
	if err != nil {
		return nil, fmt.Errorf("list user participations: %w", err)
	}
	return collectParticipants(rows)
}

// CountByChallenge returns the number of participants of a challenge.
func (r *ParticipantRepository) CountByChallenge(ctx context.Context, challengeID string) (int, error) {
	var count int
	err := r.conn.QueryRow(ctx,
		`SELECT COUNT(*) FROM participants WHERE challenge_id = $1`, challengeID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count participants: %w", err)
	}
	return count, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Atomic Operations
// ─────────────────────────────────────────────────────────────────────────────

// IncrementUpdateCount bumps the progress-update counter in place.
func (r *ParticipantRepository) IncrementUpdateCount(ctx context.Context, id string) error {
	tag, err := r.conn.Exec(ctx,
		`UPDATE participants SET update_count = update_count + 1, updated_at = NOW() WHERE id = $1`,
		id,
	)
	if err != nil {
		return fmt.Errorf("increment update count: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotAParticipant
	}
	return nil
}

// socialColumns whitelists the counters IncrementSocialCounter may touch.
var socialColumns = map[string]string{
	"cheers_given":      "cheers_given",
	"cheers_received":   "cheers_received",
	"comments_given":    "comments_given",
	"comments_received": "comments_received",
}

// socialWeights pairs each counter column with its score weight, matching
// the participant entity's recalcSocialScore.
var socialWeights = []struct {
	column string
	weight float64
}{
	{"cheers_received", participant.WeightCheerReceived},
	{"comments_received", participant.WeightCommentReceived},
	{"cheers_given", participant.WeightCheerGiven},
	{"comments_given", participant.WeightCommentGiven},
}

// socialScoreExpr builds the SQL expression recomputing social_score from
// the counters after bumped has been incremented. SET expressions see the
// pre-update row, so the bumped column carries the + 1 inline.
func socialScoreExpr(bumped string) string {
	terms := make([]string, 0, len(socialWeights))
	for _, w := range socialWeights {
		expr := w.column
		if w.column == bumped {
			expr = "(" + w.column + " + 1)"
		}
		terms = append(terms, fmt.Sprintf("%s * %g", expr, w.weight))
	}
	return strings.Join(terms, " + ")
}

// IncrementSocialCounter bumps one social counter and recomputes the
// derived social score in the same statement, so readers never see the
// counters and the score out of sync.
func (r *ParticipantRepository) IncrementSocialCounter(ctx context.Context, id string, counter string) error {
	column, ok := socialColumns[counter]
	if !ok {
		return fmt.Errorf("unknown social counter %q", counter)
	}

	query := fmt.Sprintf(
		`UPDATE participants SET %s = %s + 1, social_score = %s, updated_at = NOW() WHERE id = $1`,
		column, column, socialScoreExpr(column),
	)
	tag, err := r.conn.Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("increment social counter: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotAParticipant
	}
	return nil
}

// ClaimRewards flips the claimed flag and records the payout in one
// compare-and-swap. A row that is already claimed does not match the WHERE
// clause, so a concurrent second claim loses cleanly.
func (r *ParticipantRepository) ClaimRewards(ctx context.Context, id string, credits int, badges []string, now time.Time) error {
	badgesJSON, err := json.Marshal(badges)
	if err != nil {
		return fmt.Errorf("marshal badges: %w", err)
	}

	query := `
		UPDATE participants SET
			rewards_claimed = TRUE,
			rewards_claimed_at = $4,
			credits_earned = $2,
			badges_earned = $3,
			updated_at = $4
		WHERE id = $1 AND NOT rewards_claimed
	`

	tag, err := r.conn.Exec(ctx, query, id, credits, badgesJSON, now)
	if err != nil {
		return fmt.Errorf("claim rewards: %w", err)
	}
	if tag.RowsAffected() == 0 {
		if _, err := r.GetByID(ctx, id); err != nil {
			return err
		}
		return shared.ErrRewardsAlreadyClaimed
	}
	return nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Internals
// ─────────────────────────────────────────────────────────────────────────────

func participantArgs(p *participant.Participant) ([]interface{}, error) {
	progress, err := json.Marshal(p.Progress)
	if err != nil {
		return nil, fmt.Errorf("marshal progress: %w", err)
	}
	milestones, err := json.Marshal(p.MilestonesReached)
	if err != nil {
		return nil, fmt.Errorf("marshal milestones: %w", err)
	}
	badges, err := json.Marshal(p.BadgesEarned)
	if err != nil {
		return nil, fmt.Errorf("marshal badges: %w", err)
	}

	return []interface{}{
		p.ID,
		p.ChallengeID,
		string(p.UserID),
		string(p.Status),
		p.JoinedAt,
		p.CompletedAt,
		progress,
		p.UpdateCount,
		p.CheersGiven,
		p.CheersReceived,
		p.CommentsGiven,
		p.CommentsReceived,
		p.SocialScore,
		milestones,
		p.AchievementCount,
		p.StreakDays,
		p.BestRank,
		p.FinalRank,
		p.FinalScore,
		p.CompletionPercentage,
		p.CreditsEarned,
		badges,
		p.RewardsClaimed,
		p.RewardsClaimedAt,
		p.FriendsInvited,
		p.FriendsJoined,
		p.CommunityImpact,
		p.CreatedAt,
		p.UpdatedAt,
	}, nil
}

func scanParticipant(row pgx.Row) (*participant.Participant, error) {
	var (
		p              participant.Participant
		userID         string
		status         string
		progressJSON   []byte
		milestonesJSON []byte
		badgesJSON     []byte
	)

	err := row.Scan(
		&p.ID, &p.ChallengeID, &userID, &status, &p.JoinedAt, &p.CompletedAt,
		&progressJSON, &p.UpdateCount, &p.CheersGiven, &p.CheersReceived,
		&p.CommentsGiven, &p.CommentsReceived, &p.SocialScore,
		&milestonesJSON, &p.AchievementCount, &p.StreakDays, &p.BestRank,
		&p.FinalRank, &p.FinalScore, &p.CompletionPercentage,
		&p.CreditsEarned, &badgesJSON, &p.RewardsClaimed, &p.RewardsClaimedAt,
		&p.FriendsInvited, &p.FriendsJoined, &p.CommunityImpact, &p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		if IsNoRows(err) {
			return nil, shared.ErrNotAParticipant
		}
		return nil, fmt.Errorf("scan participant: %w", err)
	}

	p.UserID = challenge.UserID(userID)
	p.Status = participant.Status(status)

	if err := json.Unmarshal(progressJSON, &p.Progress); err != nil {
		return nil, fmt.Errorf("unmarshal progress: %w", err)
	}
	if err := json.Unmarshal(milestonesJSON, &p.MilestonesReached); err != nil {
		return nil, fmt.Errorf("unmarshal milestones: %w", err)
	}
	if err := json.Unmarshal(badgesJSON, &p.BadgesEarned); err != nil {
		return nil, fmt.Errorf("unmarshal badges: %w", err)
	}

	return &p, nil
}

func collectParticipants(rows pgx.Rows) ([]*participant.Participant, error) {
	defer rows.Close()

	var out []*participant.Participant
	for rows.Next() {
		p, err := scanParticipant(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}
