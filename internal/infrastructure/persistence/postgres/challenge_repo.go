package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/challengehub/challenge-hub/internal/domain/challenge"
	"github.com/challengehub/challenge-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// CHALLENGE REPOSITORY
// ══════════════════════════════════════════════════════════════════════════════

// ChallengeRepository implements challenge.Repository for PostgreSQL.
type ChallengeRepository struct {
	conn *Connection
}

// NewChallengeRepository creates a ChallengeRepository.
func NewChallengeRepository(conn *Connection) *ChallengeRepository {
	return &ChallengeRepository{conn: conn}
}

const challengeColumns = `
	id, creator_id, title, description, type, category, difficulty, status,
	rules, rewards, participant_ids, invited_ids, max_participants,
	current_participants, is_public, friends_only, allow_cheering,
	allow_comments, allow_spectators, tags, leaderboard, winner_ids,
	completion_percentage, metadata, created_at, start_date, end_date, updated_at
`

// ─────────────────────────────────────────────────────────────────────────────
// CRUD Operations
// ─────────────────────────────────────────────────────────────────────────────

// Create stores a new challenge.
func (r *ChallengeRepository) Create(ctx context.Context, c *challenge.Challenge) error {
	query := `
		INSERT INTO challenges (` + challengeColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14,
				$15, $16, $17, $18, $19, $20, $21, $22, $23, $24, $25, $26, $27, $28)
	`

	args, err := challengeArgs(c)
	if err != nil {
		return err
	}

	if _, err := r.conn.Exec(ctx, query, args...); err != nil {
		if IsUniqueViolation(err) {
			return shared.ErrChallengeExists
		}
		return fmt.Errorf("create challenge: %w", err)
	}
	return nil
}

// GetByID returns a challenge by ID.
func (r *ChallengeRepository) GetByID(ctx context.Context, id string) (*challenge.Challenge, error) {
	query := `SELECT ` + challengeColumns + ` FROM challenges WHERE id = $1`
	return scanChallenge(r.conn.QueryRow(ctx, query, id))
}

// Update persists the full challenge state. The status column only ever
// moves forward: a stale in-memory copy cannot overwrite a final status.
func (r *ChallengeRepository) Update(ctx context.Context, c *challenge.Challenge) error {
	query := `
		UPDATE challenges SET
			title = $2, description = $3, type = $4, category = $5,
			difficulty = $6, status = $7, rules = $8, rewards = $9,
			participant_ids = $10, invited_ids = $11, max_participants = $12,
			current_participants = $13, is_public = $14, friends_only = $15,
			allow_cheering = $16, allow_comments = $17, allow_spectators = $18,
			tags = $19, leaderboard = $20, winner_ids = $21,
			completion_percentage = $22, metadata = $23, start_date = $24,
			end_date = $25, updated_at = $26
		WHERE id = $1
		  AND (status NOT IN ('completed', 'cancelled') OR status = $7)
	`

	args, err := challengeArgs(c)
	if err != nil {
		return err
	}
	// Insert arg order is [id, creator, title .. metadata, created_at,
	// start, end, updated]; the update skips creator_id and created_at.
	updateArgs := make([]interface{}, 0, 26)
	updateArgs = append(updateArgs, args[0])
	updateArgs = append(updateArgs, args[2:24]...)
	updateArgs = append(updateArgs, args[25], args[26], time.Now().UTC())

	tag, err := r.conn.Exec(ctx, query, updateArgs...)
	if err != nil {
		return fmt.Errorf("update challenge: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return r.classifyMiss(ctx, c.ID, nil)
	}
	return nil
}

// Delete removes a challenge.
func (r *ChallengeRepository) Delete(ctx context.Context, id string) error {
	tag, err := r.conn.Exec(ctx, `DELETE FROM challenges WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete challenge: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrChallengeNotFound
	}
	return nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Filtered Listings
// ─────────────────────────────────────────────────────────────────────────────

// GetByCreator returns challenges created by a user.
func (r *ChallengeRepository) GetByCreator(ctx context.Context, creatorID challenge.UserID, opts challenge.ListOptions) ([]*challenge.Challenge, error) {
	query := listQuery("creator_id = $3", opts)
	return r.queryChallenges(ctx, query, normalize(opts), string(creatorID))
}

// GetByParticipant returns challenges a user participates in.
func (r *ChallengeRepository) GetByParticipant(ctx context.Context, userID challenge.UserID, opts challenge.ListOptions) ([]*challenge.Challenge, error) {
	query := listQuery("participant_ids @> to_jsonb($3::text)", opts)
	return r.queryChallenges(ctx, query, normalize(opts), string(userID))
}

// GetByStatus returns challenges in a lifecycle state.
func (r *ChallengeRepository) GetByStatus(ctx context.Context, status challenge.Status, opts challenge.ListOptions) ([]*challenge.Challenge, error) {
	query := listQuery("status = $3", opts)
	return r.queryChallenges(ctx, query, normalize(opts), string(status))
}

// GetByCategory returns challenges of a category.
func (r *ChallengeRepository) GetByCategory(ctx context.Context, category challenge.Category, opts challenge.ListOptions) ([]*challenge.Challenge, error) {
	query := listQuery("category = $3", opts)
	return r.queryChallenges(ctx, query, normalize(opts), string(category))
}

// GetOpenPublic returns open, public, unexpired challenges for discovery.
func (r *ChallengeRepository) GetOpenPublic(ctx context.Context, now time.Time, opts challenge.ListOptions) ([]*challenge.Challenge, error) {
	query := listQuery("status = 'open' AND is_public AND end_date > $3", opts)
	return r.queryChallenges(ctx, query, normalize(opts), now)
}

// Search returns challenges matching a free-text query against title,
// description, category and tags.
func (r *ChallengeRepository) Search(ctx context.Context, text string, opts challenge.ListOptions) ([]*challenge.Challenge, error) {
	pattern := "%" + strings.ToLower(strings.TrimSpace(text)) + "%"
	query := listQuery(`(
		LOWER(title) LIKE $3
		OR LOWER(description) LIKE $3
		OR LOWER(category) LIKE $3
		OR EXISTS (
			SELECT 1 FROM jsonb_array_elements_text(tags) tag
			WHERE LOWER(tag) LIKE $3
		)
	)`, opts)
	return r.queryChallenges(ctx, query, normalize(opts), pattern)
}

// FindExpiredOpen returns open challenges whose end date has passed.
func (r *ChallengeRepository) FindExpiredOpen(ctx context.Context, now time.Time) ([]*challenge.Challenge, error) {
	query := `
		SELECT ` + challengeColumns + `
		FROM challenges
		WHERE status = 'open' AND end_date <= $1
		ORDER BY end_date
	`
	rows, err := r.conn.Query(ctx, query, now)
	if err != nil {
		return nil, fmt.Errorf("find expired open: %w", err)
	}
	return collectChallenges(rows)
}

// FindStartable returns open challenges satisfying their minimum
// participant bound with the start window reached.
func (r *ChallengeRepository) FindStartable(ctx context.Context, now time.Time) ([]*challenge.Challenge, error) {
	query := `
		SELECT ` + challengeColumns + `
		FROM challenges
		WHERE status = 'open'
		  AND end_date > $1
		  AND start_date <= $1
		  AND current_participants >= (rules->>'MinParticipants')::int
		ORDER BY created_at
	`
	rows, err := r.conn.Query(ctx, query, now)
	if err != nil {
		return nil, fmt.Errorf("find startable: %w", err)
	}
	return collectChallenges(rows)
}

// ─────────────────────────────────────────────────────────────────────────────
// Atomic Operations
// ─────────────────────────────────────────────────────────────────────────────

// AddParticipant reserves a slot in a single conditional update. The WHERE
// clause carries every join precondition, so two concurrent joins for the
// last slot cannot both match.
func (r *ChallengeRepository) AddParticipant(ctx context.Context, challengeID string, userID challenge.UserID, now time.Time) error {
	query := `
		UPDATE challenges SET
			participant_ids = participant_ids || to_jsonb($2::text),
			invited_ids = invited_ids - $2,
			current_participants = current_participants + 1,
			updated_at = $3
		WHERE id = $1
		  AND status = 'open'
		  AND end_date > $3
		  AND current_participants < max_participants
		  AND NOT participant_ids @> to_jsonb($2::text)
	`

	tag, err := r.conn.Exec(ctx, query, challengeID, string(userID), now)
	if err != nil {
		return fmt.Errorf("add participant: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return r.classifyMiss(ctx, challengeID, &joinMiss{userID: userID, now: now})
	}
	return nil
}

// RemoveParticipant removes a user from the participant set.
func (r *ChallengeRepository) RemoveParticipant(ctx context.Context, challengeID string, userID challenge.UserID) error {
	query := `
		UPDATE challenges SET
			participant_ids = participant_ids - $2,
			current_participants = current_participants - 1,
			updated_at = NOW()
		WHERE id = $1
		  AND participant_ids @> to_jsonb($2::text)
	`

	tag, err := r.conn.Exec(ctx, query, challengeID, string(userID))
	if err != nil {
		return fmt.Errorf("remove participant: %w", err)
	}
	if tag.RowsAffected() == 0 {
		if _, err := r.GetByID(ctx, challengeID); err != nil {
			return err
		}
		return shared.ErrNotAParticipant
	}
	return nil
}

// TransitionStatus flips the lifecycle state at most once per (from, to)
// pair. Losing the race surfaces as ErrChallengeFinalized.
func (r *ChallengeRepository) TransitionStatus(ctx context.Context, challengeID string, from, to challenge.Status, now time.Time) error {
	query := `
		UPDATE challenges SET
			status = $3,
			start_date = CASE WHEN $3 = 'active' THEN $4 ELSE start_date END,
			updated_at = $4
		WHERE id = $1 AND status = $2
	`

	tag, err := r.conn.Exec(ctx, query, challengeID, string(from), string(to), now)
	if err != nil {
		return fmt.Errorf("transition status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		if _, err := r.GetByID(ctx, challengeID); err != nil {
			return err
		}
		return shared.ErrChallengeFinalized
	}
	return nil
}

// UpdateLeaderboard replaces the stored leaderboard snapshot.
func (r *ChallengeRepository) UpdateLeaderboard(ctx context.Context, challengeID string, entries []challenge.LeaderboardEntry) error {
	data, err := json.Marshal(entries)
	if err != nil {
		return fmt.Errorf("marshal leaderboard: %w", err)
	}

	tag, err := r.conn.Exec(ctx,
		`UPDATE challenges SET leaderboard = $2, updated_at = NOW() WHERE id = $1`,
		challengeID, data,
	)
	if err != nil {
		return fmt.Errorf("update leaderboard: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrChallengeNotFound
	}
	return nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Internals
// ─────────────────────────────────────────────────────────────────────────────

// joinMiss carries the context needed to classify a failed join.
type joinMiss struct {
	userID challenge.UserID
	now    time.Time
}

// classifyMiss re-reads the row to turn a zero-row conditional update into
// the precise domain error. The update already failed atomically; this read
// is only for the error message.
func (r *ChallengeRepository) classifyMiss(ctx context.Context, challengeID string, join *joinMiss) error {
	c, err := r.GetByID(ctx, challengeID)
	if err != nil {
		return err
	}

	if join != nil {
		switch {
		case c.HasParticipant(join.userID):
			return shared.ErrAlreadyJoined
		case c.Status != challenge.StatusOpen:
			return shared.ErrChallengeNotOpen
		case c.IsExpired(join.now):
			return shared.ErrChallengeExpired
		case c.IsFull():
			return shared.ErrChallengeFull
		}
	}
	if c.Status.IsFinal() {
		return shared.ErrChallengeFinalized
	}
	return shared.ErrConcurrentModification
}

func challengeArgs(c *challenge.Challenge) ([]interface{}, error) {
	rules, err := json.Marshal(c.Rules)
	if err != nil {
		return nil, fmt.Errorf("marshal rules: %w", err)
	}
	rewards, err := json.Marshal(c.Rewards)
	if err != nil {
		return nil, fmt.Errorf("marshal rewards: %w", err)
	}
	participants, err := json.Marshal(c.ParticipantIDs)
	if err != nil {
		return nil, fmt.Errorf("marshal participants: %w", err)
	}
	invited, err := json.Marshal(c.InvitedIDs)
	if err != nil {
		return nil, fmt.Errorf("marshal invited: %w", err)
	}
	tags, err := json.Marshal(c.Tags)
	if err != nil {
		return nil, fmt.Errorf("marshal tags: %w", err)
	}
	leaderboard, err := json.Marshal(c.Leaderboard)
	if err != nil {
		return nil, fmt.Errorf("marshal leaderboard: %w", err)
	}
	winners, err := json.Marshal(c.WinnerIDs)
	if err != nil {
		return nil, fmt.Errorf("marshal winners: %w", err)
	}
	metadata, err := json.Marshal(c.Metadata)
	if err != nil {
		return nil, fmt.Errorf("marshal metadata: %w", err)
	}

	return []interface{}{
		c.ID,
		string(c.CreatorID),
		c.Title,
		c.Description,
		string(c.Type),
		string(c.Category),
		int(c.Difficulty),
		string(c.Status),
		rules,
		rewards,
		participants,
		invited,
		c.MaxParticipants,
		c.CurrentParticipants,
		c.IsPublic,
		c.FriendsOnly,
		c.AllowCheering,
		c.AllowComments,
		c.AllowSpectators,
		tags,
		leaderboard,
		winners,
		c.CompletionPercentage,
		metadata,
		c.CreatedAt,
		c.StartDate,
		c.EndDate,
		c.UpdatedAt,
	}, nil
}

func scanChallenge(row pgx.Row) (*challenge.Challenge, error) {
	var (
		c                challenge.Challenge
		creatorID        string
		typ              string
		category         string
		difficulty       int
		status           string
		rulesJSON        []byte
		rewardsJSON      []byte
		participantsJSON []byte
		invitedJSON      []byte
		tagsJSON         []byte
		leaderboardJSON  []byte
		winnersJSON      []byte
		metadataJSON     []byte
	)

	err := row.Scan(
		&c.ID, &creatorID, &c.Title, &c.Description, &typ, &category,
		&difficulty, &status, &rulesJSON, &rewardsJSON, &participantsJSON,
		&invitedJSON, &c.MaxParticipants, &c.CurrentParticipants, &c.IsPublic,
		&c.FriendsOnly, &c.AllowCheering, &c.AllowComments, &c.AllowSpectators,
		&tagsJSON, &leaderboardJSON, &winnersJSON, &c.CompletionPercentage,
		&metadataJSON, &c.CreatedAt, &c.StartDate, &c.EndDate, &c.UpdatedAt,
	)
	if err != nil {
		if IsNoRows(err) {
			return nil, shared.ErrChallengeNotFound
		}
		return nil, fmt.Errorf("scan challenge: %w", err)
	}

	c.CreatorID = challenge.UserID(creatorID)
	c.Type = challenge.Type(typ)
	c.Category = challenge.Category(category)
	c.Difficulty = challenge.DifficultyLevel(difficulty)
	c.Status = challenge.Status(status)

	if err := json.Unmarshal(rulesJSON, &c.Rules); err != nil {
		return nil, fmt.Errorf("unmarshal rules: %w", err)
	}
	if err := json.Unmarshal(rewardsJSON, &c.Rewards); err != nil {
		return nil, fmt.Errorf("unmarshal rewards: %w", err)
	}
	if err := json.Unmarshal(participantsJSON, &c.ParticipantIDs); err != nil {
		return nil, fmt.Errorf("unmarshal participants: %w", err)
	}
	if err := json.Unmarshal(invitedJSON, &c.InvitedIDs); err != nil {
		return nil, fmt.Errorf("unmarshal invited: %w", err)
	}
	if err := json.Unmarshal(tagsJSON, &c.Tags); err != nil {
		return nil, fmt.Errorf("unmarshal tags: %w", err)
	}
	if err := json.Unmarshal(leaderboardJSON, &c.Leaderboard); err != nil {
		return nil, fmt.Errorf("unmarshal leaderboard: %w", err)
	}
	if err := json.Unmarshal(winnersJSON, &c.WinnerIDs); err != nil {
		return nil, fmt.Errorf("unmarshal winners: %w", err)
	}
	if err := json.Unmarshal(metadataJSON, &c.Metadata); err != nil {
		return nil, fmt.Errorf("unmarshal metadata: %w", err)
	}

	return &c, nil
}

func (r *ChallengeRepository) queryChallenges(ctx context.Context, query string, opts challenge.ListOptions, extra ...interface{}) ([]*challenge.Challenge, error) {
	args := append([]interface{}{opts.Limit, opts.Offset}, extra...)
	rows, err := r.conn.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list challenges: %w", err)
	}
	return collectChallenges(rows)
}

func collectChallenges(rows pgx.Rows) ([]*challenge.Challenge, error) {
	defer rows.Close()

	var out []*challenge.Challenge
	for rows.Next() {
		c, err := scanChallenge(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func listQuery(where string, opts challenge.ListOptions) string {
	return fmt.Sprintf(
		`SELECT %s FROM challenges WHERE %s ORDER BY %s LIMIT $1 OFFSET $2`,
		challengeColumns, where, orderClause(opts),
	)
}

// orderClause whitelists sortable columns; anything else falls back to
// created_at to keep user input out of the SQL.
func orderClause(opts challenge.ListOptions) string {
	column := "created_at"
	switch opts.SortBy {
	case "created_at", "end_date", "start_date", "current_participants", "title":
		column = opts.SortBy
	}
	if opts.SortDesc {
		return column + " DESC"
	}
	return column + " ASC"
}

func normalize(opts challenge.ListOptions) challenge.ListOptions {
	if opts.Limit <= 0 {
		opts.Limit = challenge.DefaultListOptions().Limit
	}
	return opts
}
