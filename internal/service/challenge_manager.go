package service

import (
	"context"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/challengehub/challenge-hub/internal/domain/challenge"
	"github.com/challengehub/challenge-hub/internal/domain/participant"
	"github.com/challengehub/challenge-hub/internal/domain/scoring"
	"github.com/challengehub/challenge-hub/internal/domain/shared"
	"github.com/challengehub/challenge-hub/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// CHALLENGE MANAGER
// Orchestrates the challenge lifecycle: create, join, leave, invite, start,
// progress, complete, cancel, plus the sweep operations the scheduler drives.
// Every write goes through the repository's atomic operations; the manager
// never does read-then-write for anything concurrency-sensitive.
// ══════════════════════════════════════════════════════════════════════════════

// ChallengeManager is the lifecycle application service.
type ChallengeManager struct {
	challenges   challenge.Repository
	participants participant.Repository
	results      participant.ResultRepository
	events       shared.EventBus
	validate     *validator.Validate
	log          *logrus.Entry
	clock        func() time.Time
}

// NewChallengeManager creates a ChallengeManager.
func NewChallengeManager(
	challenges challenge.Repository,
	participants participant.Repository,
	results participant.ResultRepository,
	events shared.EventBus,
	log *logrus.Entry,
) *ChallengeManager {
	return &ChallengeManager{
		challenges:   challenges,
		participants: participants,
		results:      results,
		events:       events,
		validate:     validator.New(),
		log:          log,
		clock:        func() time.Time { return time.Now().UTC() },
	}
}

// WithClock overrides the time source. Tests use this for deterministic
// expiry and duration behavior.
func (m *ChallengeManager) WithClock(clock func() time.Time) *ChallengeManager {
	m.clock = clock
	return m
}

// ─────────────────────────────────────────────────────────────────────────────
// Create
// ─────────────────────────────────────────────────────────────────────────────

// CreateChallengeCommand contains the data to create a challenge.
type CreateChallengeCommand struct {
	CreatorID   string `validate:"required"`
	Title       string `validate:"required,max=200"`
	Description string `validate:"max=2000"`
	Type        string `validate:"required,oneof=gaming social_engagement impact"`
	Category    string `validate:"required,max=100"`
	Difficulty  int    `validate:"required,min=1,max=5"`

	TargetMetric         string  `validate:"required"`
	TargetValue          float64 `validate:"required,gt=0"`
	MinParticipants      int     `validate:"required,min=1"`
	MaxParticipants      int     `validate:"required,min=1"`
	ScoringMethod        string  `validate:"required,oneof=highest lowest target collective"`
	DifficultyMultiplier float64 `validate:"omitempty,gte=1"`

	Duration time.Duration `validate:"required,gt=0"`

	IsPublic        bool
	FriendsOnly     bool
	AllowCheering   bool
	AllowComments   bool
	AllowSpectators bool

	Rewards  *challenge.Rewards
	Tags     []string `validate:"max=10,dive,max=50"`
	Metadata map[string]string
}

// CreateChallengeResult contains the created challenge.
type CreateChallengeResult struct {
	Outcome
	Challenge *challenge.Challenge
}

// CreateChallenge validates the command, builds the challenge with the
// creator auto-enrolled, persists it and the creator's participant record,
// and emits challenge.created.
func (m *ChallengeManager) CreateChallenge(ctx context.Context, cmd CreateChallengeCommand) (*CreateChallengeResult, error) {
	if err := m.validate.Struct(cmd); err != nil {
		return &CreateChallengeResult{Outcome: Rejected(ReasonValidationFailed, err.Error())}, nil
	}

	rewards := challenge.DefaultRewards()
	if cmd.Rewards != nil {
		rewards = *cmd.Rewards
	}
	diffMult := cmd.DifficultyMultiplier
	if diffMult == 0 {
		diffMult = 1.0
	}

	c, err := challenge.NewChallenge(challenge.NewChallengeParams{
		ID:          uuid.NewString(),
		CreatorID:   challenge.UserID(cmd.CreatorID),
		Title:       cmd.Title,
		Description: cmd.Description,
		Type:        challenge.Type(cmd.Type),
		Category:    challenge.Category(cmd.Category),
		Difficulty:  challenge.DifficultyLevel(cmd.Difficulty),
		Rules: challenge.Rules{
			TargetMetric:         cmd.TargetMetric,
			TargetValue:          cmd.TargetValue,
			MinParticipants:      cmd.MinParticipants,
			MaxParticipants:      cmd.MaxParticipants,
			PublicJoin:           cmd.IsPublic,
			FriendsOnly:          cmd.FriendsOnly,
			ScoringMethod:        challenge.ScoringMethod(cmd.ScoringMethod),
			DifficultyMultiplier: diffMult,
		},
		Rewards:         rewards,
		Duration:        cmd.Duration,
		IsPublic:        cmd.IsPublic,
		FriendsOnly:     cmd.FriendsOnly,
		AllowCheering:   cmd.AllowCheering,
		AllowComments:   cmd.AllowComments,
		AllowSpectators: cmd.AllowSpectators,
		Tags:            cmd.Tags,
		Metadata:        cmd.Metadata,
	})
	if err != nil {
		return &CreateChallengeResult{Outcome: Rejected(ReasonValidationFailed, err.Error())}, nil
	}

	return m.persistNewChallenge(ctx, c)
}

// CreateFromTemplateCommand instantiates a challenge from the catalogue.
type CreateFromTemplateCommand struct {
	CreatorID string `validate:"required"`
	Type      string `validate:"required,oneof=gaming social_engagement impact"`
	Category  string `validate:"required"`

	Overrides challenge.TemplateOverrides
}

// CreateFromTemplate looks up the (type, category) template and creates a
// challenge from it with the caller's overrides applied.
func (m *ChallengeManager) CreateFromTemplate(ctx context.Context, cmd CreateFromTemplateCommand) (*CreateChallengeResult, error) {
	if err := m.validate.Struct(cmd); err != nil {
		return &CreateChallengeResult{Outcome: Rejected(ReasonValidationFailed, err.Error())}, nil
	}

	tmpl, ok := challenge.LookupTemplate(challenge.Type(cmd.Type), challenge.Category(cmd.Category))
	if !ok {
		return &CreateChallengeResult{Outcome: Rejected(ReasonNotFound, shared.ErrTemplateNotFound.Error())}, nil
	}

	params := tmpl.Apply(uuid.NewString(), challenge.UserID(cmd.CreatorID), cmd.Overrides)
	c, err := challenge.NewChallenge(params)
	if err != nil {
		return &CreateChallengeResult{Outcome: Rejected(ReasonValidationFailed, err.Error())}, nil
	}

	return m.persistNewChallenge(ctx, c)
}

func (m *ChallengeManager) persistNewChallenge(ctx context.Context, c *challenge.Challenge) (*CreateChallengeResult, error) {
	if err := m.challenges.Create(ctx, c); err != nil {
		return nil, fmt.Errorf("create challenge: %w", err)
	}

	creator, err := participant.NewParticipant(uuid.NewString(), c.ID, c.CreatorID)
	if err != nil {
		return nil, fmt.Errorf("create creator participant: %w", err)
	}
	if err := m.participants.Create(ctx, creator); err != nil {
		return nil, fmt.Errorf("create creator participant: %w", err)
	}

	m.publish(ctx, shared.NewChallengeCreatedEvent(
		c.ID, string(c.CreatorID), c.Title, string(c.Type), string(c.Category), c.IsPublic,
	))

	m.log.WithFields(logrus.Fields{
		"challenge_id": c.ID,
		"creator_id":   c.CreatorID,
		"type":         c.Type,
		"category":     c.Category,
	}).Info("challenge created")

	return &CreateChallengeResult{Outcome: OK(), Challenge: c}, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Join / Leave / Invite
// ─────────────────────────────────────────────────────────────────────────────

// JoinResult contains the join outcome and the participant record.
type JoinResult struct {
	Outcome
	Participant *participant.Participant
}

// Join enrolls a user. The slot reservation is a single atomic repository
// operation: two concurrent joins for the last slot cannot both succeed.
func (m *ChallengeManager) Join(ctx context.Context, challengeID, userID string) (*JoinResult, error) {
	now := m.clock()

	c, err := m.challenges.GetByID(ctx, challengeID)
	if err != nil {
		if out, ok := outcomeFromDomainError(err); ok {
			return &JoinResult{Outcome: out}, nil
		}
		return nil, fmt.Errorf("join: load challenge: %w", err)
	}

	// Fast precondition checks for clear reason codes. The authoritative
	// guard is the atomic AddParticipant below.
	switch {
	case c.Status != challenge.StatusOpen:
		return &JoinResult{Outcome: Rejected(ReasonNotOpen, shared.ErrChallengeNotOpen.Error())}, nil
	case c.IsExpired(now):
		return &JoinResult{Outcome: Rejected(ReasonExpired, shared.ErrChallengeExpired.Error())}, nil
	case c.HasParticipant(challenge.UserID(userID)):
		return &JoinResult{Outcome: Rejected(ReasonAlreadyJoined, shared.ErrAlreadyJoined.Error())}, nil
	}

	if err := m.challenges.AddParticipant(ctx, challengeID, challenge.UserID(userID), now); err != nil {
		if out, ok := outcomeFromDomainError(err); ok {
			return &JoinResult{Outcome: out}, nil
		}
		return nil, fmt.Errorf("join: reserve slot: %w", err)
	}

	p, err := participant.NewParticipant(uuid.NewString(), challengeID, challenge.UserID(userID))
	if err != nil {
		return nil, fmt.Errorf("join: build participant: %w", err)
	}
	if err := m.participants.Create(ctx, p); err != nil {
		return nil, fmt.Errorf("join: create participant: %w", err)
	}

	m.publish(ctx, shared.NewUserJoinedEvent(challengeID, userID, c.CurrentParticipants+1))

	m.log.WithFields(logrus.Fields{
		"challenge_id": challengeID,
		"user_id":      userID,
	}).Info("user joined challenge")

	return &JoinResult{Outcome: OK(), Participant: p}, nil
}

// LeaveResult contains the leave outcome.
type LeaveResult struct {
	Outcome
}

// Leave removes a user from an open or active challenge. The creator can
// never leave; participants with final status cannot leave twice.
func (m *ChallengeManager) Leave(ctx context.Context, challengeID, userID string) (*LeaveResult, error) {
	now := m.clock()

	c, err := m.challenges.GetByID(ctx, challengeID)
	if err != nil {
		if out, ok := outcomeFromDomainError(err); ok {
			return &LeaveResult{Outcome: out}, nil
		}
		return nil, fmt.Errorf("leave: load challenge: %w", err)
	}

	if challenge.UserID(userID) == c.CreatorID {
		return &LeaveResult{Outcome: Rejected(ReasonCreatorCannotLeave, shared.ErrCreatorCannotLeave.Error())}, nil
	}
	if c.Status.IsFinal() {
		return &LeaveResult{Outcome: Rejected(ReasonAlreadyCompleted, shared.ErrChallengeFinalized.Error())}, nil
	}
	if !c.HasParticipant(challenge.UserID(userID)) {
		return &LeaveResult{Outcome: Rejected(ReasonNotParticipant, shared.ErrNotAParticipant.Error())}, nil
	}

	if err := m.challenges.RemoveParticipant(ctx, challengeID, challenge.UserID(userID)); err != nil {
		if out, ok := outcomeFromDomainError(err); ok {
			return &LeaveResult{Outcome: out}, nil
		}
		return nil, fmt.Errorf("leave: remove participant: %w", err)
	}

	p, err := m.participants.GetByChallengeAndUser(ctx, challengeID, challenge.UserID(userID))
	if err == nil {
		if quitErr := p.Quit(now); quitErr == nil {
			if err := m.participants.Update(ctx, p); err != nil {
				return nil, fmt.Errorf("leave: update participant: %w", err)
			}
		}
	} else if !shared.IsNotFound(err) {
		return nil, fmt.Errorf("leave: load participant: %w", err)
	}

	m.publish(ctx, shared.NewUserLeftEvent(challengeID, userID))

	return &LeaveResult{Outcome: OK()}, nil
}

// InviteResult contains how many users were newly invited.
type InviteResult struct {
	Outcome
	Invited int
	Skipped int
}

// Invite adds users to the invited set. Only participants may invite, and
// users already enrolled or invited are skipped, not errors.
func (m *ChallengeManager) Invite(ctx context.Context, challengeID, inviterID string, userIDs []string) (*InviteResult, error) {
	now := m.clock()

	c, err := m.challenges.GetByID(ctx, challengeID)
	if err != nil {
		if out, ok := outcomeFromDomainError(err); ok {
			return &InviteResult{Outcome: out}, nil
		}
		return nil, fmt.Errorf("invite: load challenge: %w", err)
	}

	if !c.HasParticipant(challenge.UserID(inviterID)) {
		return &InviteResult{Outcome: Rejected(ReasonNotParticipant, shared.ErrNotAParticipant.Error())}, nil
	}
	if c.Status.IsFinal() {
		return &InviteResult{Outcome: Rejected(ReasonAlreadyCompleted, shared.ErrChallengeFinalized.Error())}, nil
	}

	ids := make([]challenge.UserID, len(userIDs))
	for i, id := range userIDs {
		ids[i] = challenge.UserID(id)
	}
	invited, skipped := c.Invite(ids, now)

	if invited > 0 {
		if err := m.challenges.Update(ctx, c); err != nil {
			return nil, fmt.Errorf("invite: update challenge: %w", err)
		}
		m.publish(ctx, shared.NewUsersInvitedEvent(challengeID, inviterID, userIDs))
	}

	return &InviteResult{Outcome: OK(), Invited: invited, Skipped: skipped}, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Start / Cancel
// ─────────────────────────────────────────────────────────────────────────────

// StartResult contains the start outcome.
type StartResult struct {
	Outcome
	Challenge *challenge.Challenge
}

// Start transitions an open challenge to active. The status flip is an
// atomic one-shot transition in the repository.
func (m *ChallengeManager) Start(ctx context.Context, challengeID string) (*StartResult, error) {
	now := m.clock()

	c, err := m.challenges.GetByID(ctx, challengeID)
	if err != nil {
		if out, ok := outcomeFromDomainError(err); ok {
			return &StartResult{Outcome: out}, nil
		}
		return nil, fmt.Errorf("start: load challenge: %w", err)
	}

	if err := c.Start(now); err != nil {
		if out, ok := outcomeFromDomainError(err); ok {
			return &StartResult{Outcome: out}, nil
		}
		return &StartResult{Outcome: Rejected(ReasonConflict, err.Error())}, nil
	}

	if err := m.challenges.TransitionStatus(ctx, challengeID, challenge.StatusOpen, challenge.StatusActive, now); err != nil {
		if out, ok := outcomeFromDomainError(err); ok {
			return &StartResult{Outcome: out}, nil
		}
		return nil, fmt.Errorf("start: transition: %w", err)
	}

	ids := make([]string, len(c.ParticipantIDs))
	for i, id := range c.ParticipantIDs {
		ids[i] = string(id)
	}
	m.publish(ctx, shared.NewChallengeStartedEvent(challengeID, ids, c.EndDate))

	m.log.WithField("challenge_id", challengeID).Info("challenge started")

	return &StartResult{Outcome: OK(), Challenge: c}, nil
}

// CancelResult contains the cancel outcome.
type CancelResult struct {
	Outcome
}

// Cancel transitions an open or active challenge to cancelled. Only the
// creator may cancel. No rewards are issued for cancelled challenges.
func (m *ChallengeManager) Cancel(ctx context.Context, challengeID, cancelledBy, reason string) (*CancelResult, error) {
	now := m.clock()

	c, err := m.challenges.GetByID(ctx, challengeID)
	if err != nil {
		if out, ok := outcomeFromDomainError(err); ok {
			return &CancelResult{Outcome: out}, nil
		}
		return nil, fmt.Errorf("cancel: load challenge: %w", err)
	}

	if c.CreatorID != challenge.UserID(cancelledBy) {
		return &CancelResult{Outcome: Rejected(ReasonNotCreator, shared.ErrNotChallengeCreator.Error())}, nil
	}

	if !c.Status.CanTransitionTo(challenge.StatusCancelled) {
		return &CancelResult{Outcome: Rejected(ReasonAlreadyCompleted, shared.ErrChallengeFinalized.Error())}, nil
	}

	if err := m.challenges.TransitionStatus(ctx, challengeID, c.Status, challenge.StatusCancelled, now); err != nil {
		if out, ok := outcomeFromDomainError(err); ok {
			return &CancelResult{Outcome: out}, nil
		}
		return nil, fmt.Errorf("cancel: transition: %w", err)
	}

	m.publish(ctx, shared.NewChallengeCancelledEvent(challengeID, cancelledBy, reason))

	m.log.WithFields(logrus.Fields{
		"challenge_id": challengeID,
		"cancelled_by": cancelledBy,
	}).Info("challenge cancelled")

	return &CancelResult{Outcome: OK()}, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Progress
// ─────────────────────────────────────────────────────────────────────────────

// UpdateProgressCommand carries a progress delta for one participant.
type UpdateProgressCommand struct {
	ChallengeID string             `validate:"required"`
	UserID      string             `validate:"required"`
	Delta       map[string]float64 `validate:"required,min=1"`
}

// UpdateProgressResult contains the updated progress state.
type UpdateProgressResult struct {
	Outcome
	Participant       *participant.Participant
	NewMilestones     []string
	Rank              int
	PreviousRank      int
	Movement          scoring.Movement
	CompletionPercent float64
}

// UpdateProgress applies a progress delta, refreshes the leaderboard
// snapshot, and emits milestone and leaderboard-change events. Concurrent
// updates from different participants are independent; the update counter
// is incremented atomically in the repository.
func (m *ChallengeManager) UpdateProgress(ctx context.Context, cmd UpdateProgressCommand) (*UpdateProgressResult, error) {
	if err := m.validate.Struct(cmd); err != nil {
		return &UpdateProgressResult{Outcome: Rejected(ReasonValidationFailed, err.Error())}, nil
	}
	now := m.clock()

	c, err := m.challenges.GetByID(ctx, cmd.ChallengeID)
	if err != nil {
		if out, ok := outcomeFromDomainError(err); ok {
			return &UpdateProgressResult{Outcome: out}, nil
		}
		return nil, fmt.Errorf("update progress: load challenge: %w", err)
	}
	if c.Status != challenge.StatusActive {
		return &UpdateProgressResult{Outcome: Rejected(ReasonNotOpen, "challenge is not active")}, nil
	}

	p, err := m.participants.GetByChallengeAndUser(ctx, cmd.ChallengeID, challenge.UserID(cmd.UserID))
	if err != nil {
		if shared.IsNotFound(err) {
			return &UpdateProgressResult{Outcome: Rejected(ReasonNotParticipant, shared.ErrNotAParticipant.Error())}, nil
		}
		return nil, fmt.Errorf("update progress: load participant: %w", err)
	}

	prevUpdate := p.UpdatedAt
	firstUpdate := p.UpdateCount == 0

	if err := p.ApplyProgress(cmd.Delta, c.Rules.TargetMetric, c.Rules.TargetValue); err != nil {
		if out, ok := outcomeFromDomainError(err); ok {
			return &UpdateProgressResult{Outcome: out}, nil
		}
		return &UpdateProgressResult{Outcome: Rejected(ReasonConflict, err.Error())}, nil
	}

	// Streaks advance one per consecutive UTC day with at least one update.
	switch {
	case firstUpdate:
		p.StreakDays = 1
	case timeutil.SameDay(prevUpdate, now):
		// Already counted today.
	case timeutil.ConsecutiveDays(prevUpdate, now):
		p.StreakDays++
	default:
		p.StreakDays = 1
	}

	// Milestones are recorded once each; newly crossed ones emit events.
	value := p.ProgressValue(c.Rules.TargetMetric)
	var newMilestones []string
	for _, name := range scoring.MilestonesReached(c, value) {
		if p.ReachMilestone(name) {
			newMilestones = append(newMilestones, name)
		}
	}

	if err := m.participants.Update(ctx, p); err != nil {
		return nil, fmt.Errorf("update progress: save participant: %w", err)
	}
	if err := m.participants.IncrementUpdateCount(ctx, p.ID); err != nil {
		return nil, fmt.Errorf("update progress: increment counter: %w", err)
	}

	prevRank := c.LeaderboardRank(challenge.UserID(cmd.UserID))
	score, _ := scoring.CalculateParticipantScore(c, p, scoring.RawMetrics{
		PrimaryValue: value,
		Now:          now,
	})
	c.UpsertLeaderboardEntry(challenge.LeaderboardEntry{
		UserID:               challenge.UserID(cmd.UserID),
		Score:                score,
		CompletionPercentage: p.CompletionPercentage,
		UpdatedAt:            now,
	})
	if err := m.challenges.UpdateLeaderboard(ctx, cmd.ChallengeID, c.Leaderboard); err != nil {
		return nil, fmt.Errorf("update progress: save leaderboard: %w", err)
	}

	newRank := c.LeaderboardRank(challenge.UserID(cmd.UserID))
	p.RecordRank(newRank)
	movement, _ := scoring.LeaderboardMovement(prevRank, newRank, len(c.Leaderboard))

	for _, milestone := range newMilestones {
		m.publish(ctx, shared.NewMilestoneReachedEvent(cmd.ChallengeID, cmd.UserID, milestone, value))
	}
	if movement == scoring.MovementUp || movement == scoring.MovementDown {
		m.publish(ctx, shared.NewLeaderboardChangeEvent(cmd.ChallengeID, cmd.UserID, prevRank, newRank, string(movement)))
	}

	return &UpdateProgressResult{
		Outcome:           OK(),
		Participant:       p,
		NewMilestones:     newMilestones,
		Rank:              newRank,
		PreviousRank:      prevRank,
		Movement:          movement,
		CompletionPercent: p.CompletionPercentage,
	}, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Complete
// ─────────────────────────────────────────────────────────────────────────────

// CompleteResult contains the computed rankings and winners.
type CompleteResult struct {
	Outcome
	Challenge *challenge.Challenge
	Rankings  []scoring.Ranked
	Results   []*participant.Result
	WinnerIDs []string
}

// Complete finalizes a challenge: scores every active participant, ranks
// them by the scoring method, persists one immutable Result per participant
// and transitions the challenge to completed. The status transition is the
// idempotence guard - a second Complete call is rejected before any result
// is recomputed.
func (m *ChallengeManager) Complete(ctx context.Context, challengeID string) (*CompleteResult, error) {
	now := m.clock()

	c, err := m.challenges.GetByID(ctx, challengeID)
	if err != nil {
		if out, ok := outcomeFromDomainError(err); ok {
			return &CompleteResult{Outcome: out}, nil
		}
		return nil, fmt.Errorf("complete: load challenge: %w", err)
	}

	if !c.Status.CanTransitionTo(challenge.StatusCompleted) {
		return &CompleteResult{Outcome: Rejected(ReasonAlreadyCompleted, shared.ErrChallengeFinalized.Error())}, nil
	}

	// The atomic transition runs first so a concurrent Complete loses the
	// race before computing anything.
	if err := m.challenges.TransitionStatus(ctx, challengeID, c.Status, challenge.StatusCompleted, now); err != nil {
		if out, ok := outcomeFromDomainError(err); ok {
			return &CompleteResult{Outcome: out}, nil
		}
		return nil, fmt.Errorf("complete: transition: %w", err)
	}

	active, err := m.participants.GetActiveByChallenge(ctx, challengeID)
	if err != nil {
		return nil, fmt.Errorf("complete: load participants: %w", err)
	}

	scored := make([]scoring.Scored, 0, len(active))
	byUser := make(map[challenge.UserID]*participant.Participant, len(active))
	breakdowns := make(map[challenge.UserID]scoring.Breakdown, len(active))
	for _, p := range active {
		score, breakdown := scoring.CalculateParticipantScore(c, p, scoring.RawMetrics{
			PrimaryValue: p.ProgressValue(c.Rules.TargetMetric),
			CompletedAt:  completedAtOf(p),
			Now:          now,
		})
		scored = append(scored, scoring.Scored{UserID: p.UserID, Score: score})
		byUser[p.UserID] = p
		breakdowns[p.UserID] = breakdown
	}

	rankings := scoring.CalculateRankings(c, scored)

	// For collective scoring everyone wins iff the summed score reaches the
	// target; rank alone cannot express a miss when there is exactly one
	// participant.
	collective := c.Rules.ScoringMethod == challenge.ScoringCollective
	collectiveGoalMet := false
	if collective && len(rankings) > 0 {
		collectiveGoalMet = rankings[0].CollectiveTotal >= c.Rules.TargetValue
	}

	var winners []string
	results := make([]*participant.Result, 0, len(rankings))
	for _, r := range rankings {
		p := byUser[r.UserID]
		breakdown := breakdowns[r.UserID]

		res, err := participant.NewResult(participant.NewResultParams{
			ID:                uuid.NewString(),
			ChallengeID:       challengeID,
			UserID:            r.UserID,
			BaseScore:         breakdown.BaseScore,
			Bonuses:           breakdown.Bonuses,
			Multipliers:       breakdown.Multipliers,
			FinalScore:        r.Score,
			Rank:              r.Rank,
			TotalParticipants: r.TotalParticipants,
			SocialScore:       p.SocialScore,
			ImpactScore:       p.CommunityImpact,
			CollectiveTotal:   r.CollectiveTotal,
			Milestones:        p.MilestonesReached,
		})
		if err != nil {
			return nil, fmt.Errorf("complete: build result: %w", err)
		}
		res.Finalize(now)

		if err := m.results.Create(ctx, res); err != nil {
			// An existing result means a concurrent Complete already wrote
			// this participant; keep the first computation.
			if shared.IsAlreadyExists(err) {
				continue
			}
			return nil, fmt.Errorf("complete: save result: %w", err)
		}
		results = append(results, res)

		if err := p.MarkCompleted(r.Score, r.Rank, now); err == nil {
			if err := m.participants.Update(ctx, p); err != nil {
				return nil, fmt.Errorf("complete: update participant: %w", err)
			}
		}

		isWinner := r.Rank == 1
		if collective {
			isWinner = collectiveGoalMet
		}
		if isWinner {
			winners = append(winners, string(r.UserID))
		}
	}

	winnerIDs := make([]challenge.UserID, len(winners))
	for i, w := range winners {
		winnerIDs[i] = challenge.UserID(w)
	}
	if err := c.Complete(winnerIDs, now); err != nil {
		return nil, fmt.Errorf("complete: record winners: %w", err)
	}
	if err := m.challenges.Update(ctx, c); err != nil {
		return nil, fmt.Errorf("complete: update challenge: %w", err)
	}

	participantIDs := make([]string, len(c.ParticipantIDs))
	for i, id := range c.ParticipantIDs {
		participantIDs[i] = string(id)
	}
	m.publish(ctx, shared.NewChallengeCompletedEvent(challengeID, winners, participantIDs, collectiveGoalMet))

	m.log.WithFields(logrus.Fields{
		"challenge_id": challengeID,
		"participants": len(rankings),
		"winners":      len(winners),
	}).Info("challenge completed")

	return &CompleteResult{
		Outcome:   OK(),
		Challenge: c,
		Rankings:  rankings,
		Results:   results,
		WinnerIDs: winners,
	}, nil
}

func completedAtOf(p *participant.Participant) time.Time {
	if p.CompletionPercentage >= 100 && p.CompletedAt != nil {
		return *p.CompletedAt
	}
	if p.CompletionPercentage >= 100 {
		return p.UpdatedAt
	}
	return time.Time{}
}

// ─────────────────────────────────────────────────────────────────────────────
// Sweeps (driven by the scheduler)
// ─────────────────────────────────────────────────────────────────────────────

// ExpireOpenChallenges cancels open challenges whose end date has passed.
// Returns how many were expired.
func (m *ChallengeManager) ExpireOpenChallenges(ctx context.Context) (int, error) {
	now := m.clock()

	expired, err := m.challenges.FindExpiredOpen(ctx, now)
	if err != nil {
		return 0, fmt.Errorf("expire sweep: %w", err)
	}

	count := 0
	for _, c := range expired {
		if err := m.challenges.TransitionStatus(ctx, c.ID, challenge.StatusOpen, challenge.StatusCancelled, now); err != nil {
			// Lost the race to another sweep or an explicit cancel; skip.
			if _, ok := outcomeFromDomainError(err); ok {
				continue
			}
			return count, fmt.Errorf("expire sweep: transition %s: %w", c.ID, err)
		}
		m.publish(ctx, shared.NewChallengeCancelledEvent(c.ID, "system", "expired before starting"))
		count++
	}

	if count > 0 {
		m.log.WithField("count", count).Info("expired open challenges")
	}
	return count, nil
}

// AutoStartChallenges starts open challenges that reached their minimum
// participant bound. Returns how many were started.
func (m *ChallengeManager) AutoStartChallenges(ctx context.Context) (int, error) {
	now := m.clock()

	startable, err := m.challenges.FindStartable(ctx, now)
	if err != nil {
		return 0, fmt.Errorf("auto-start sweep: %w", err)
	}

	count := 0
	for _, c := range startable {
		result, err := m.Start(ctx, c.ID)
		if err != nil {
			return count, err
		}
		if result.Success {
			count++
		}
	}

	if count > 0 {
		m.log.WithField("count", count).Info("auto-started challenges")
	}
	return count, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Reads
// ─────────────────────────────────────────────────────────────────────────────

// GetChallenge returns a challenge by ID.
func (m *ChallengeManager) GetChallenge(ctx context.Context, challengeID string) (*challenge.Challenge, error) {
	return m.challenges.GetByID(ctx, challengeID)
}

// ListByStatus returns challenges in a lifecycle state.
func (m *ChallengeManager) ListByStatus(ctx context.Context, status challenge.Status, opts challenge.ListOptions) ([]*challenge.Challenge, error) {
	return m.challenges.GetByStatus(ctx, status, opts)
}

// publish emits an event without letting handler or bus failures roll back
// the triggering state change.
func (m *ChallengeManager) publish(ctx context.Context, event shared.Event) {
	if m.events == nil {
		return
	}
	if err := m.events.Publish(ctx, event); err != nil {
		m.log.WithError(err).WithField("event_type", event.EventType()).Warn("event publish failed")
	}
}
