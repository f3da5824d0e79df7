// Package challenge contains the core domain model for Challenge Hub.
// A challenge is a time-boxed competitive or collaborative activity among
// users: gaming runs, social-engagement pushes, or charitable-impact races.
// This is the heart of the business logic - no external dependencies here.
package challenge

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ══════════════════════════════════════════════════════════════════════════════
// VALUE OBJECTS
// ══════════════════════════════════════════════════════════════════════════════

// UserID identifies a user. Users live in an external identity system; the
// engine only ever references them by ID.
type UserID string

// IsValid reports whether the user ID is non-empty.
func (u UserID) IsValid() bool {
	return strings.TrimSpace(string(u)) != ""
}

// String returns the string form of the user ID.
func (u UserID) String() string {
	return string(u)
}

// DifficultyLevel represents how hard a challenge is, from 1 (casual) to 5
// (extreme). It feeds both the scoring bonus table and matchmaking.
type DifficultyLevel int

// IsValid reports whether the level is within 1-5.
func (d DifficultyLevel) IsValid() bool {
	return d >= 1 && d <= 5
}

// Category is a free-form sub-type within a challenge type, e.g. "speed_run"
// or "donation_race". Categories drive template lookup and matchmaking.
type Category string

// IsValid reports whether the category is usable as a lookup key.
func (c Category) IsValid() bool {
	s := string(c)
	return len(s) >= 2 && len(s) <= 50 && !strings.ContainsAny(s, " \t\n\r")
}

// String returns the string form of the category.
func (c Category) String() string {
	return string(c)
}

// ══════════════════════════════════════════════════════════════════════════════
// ENUMS
// ══════════════════════════════════════════════════════════════════════════════

// Type determines the overall theme of a challenge. The type is closed:
// scoring and reward logic switch exhaustively over it.
type Type string

const (
	// TypeGaming - competitive gaming challenges (speed runs, high scores).
	TypeGaming Type = "gaming"
	// TypeSocialEngagement - challenges around community engagement.
	TypeSocialEngagement Type = "social_engagement"
	// TypeImpact - charitable-impact challenges (donation races, volunteering).
	TypeImpact Type = "impact"
)

// IsValid reports whether the type is one of the known variants.
func (t Type) IsValid() bool {
	switch t {
	case TypeGaming, TypeSocialEngagement, TypeImpact:
		return true
	default:
		return false
	}
}

// Status is the lifecycle state of a challenge. Transitions are monotone:
// once completed or cancelled, a challenge never changes state again.
type Status string

const (
	// StatusOpen - accepting participants, not yet started.
	StatusOpen Status = "open"
	// StatusActive - running; progress updates are accepted.
	StatusActive Status = "active"
	// StatusCompleted - finished; results are final.
	StatusCompleted Status = "completed"
	// StatusCancelled - aborted before completion.
	StatusCancelled Status = "cancelled"
)

// IsValid reports whether the status is one of the known variants.
func (s Status) IsValid() bool {
	switch s {
	case StatusOpen, StatusActive, StatusCompleted, StatusCancelled:
		return true
	default:
		return false
	}
}

// IsFinal reports whether the status is terminal.
func (s Status) IsFinal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// CanTransitionTo reports whether the lifecycle state machine allows moving
// from s to target. Open challenges may complete without ever starting.
func (s Status) CanTransitionTo(target Status) bool {
	switch s {
	case StatusOpen:
		return target == StatusActive || target == StatusCompleted || target == StatusCancelled
	case StatusActive:
		return target == StatusCompleted || target == StatusCancelled
	default:
		return false
	}
}

// ScoringMethod is the policy that determines how raw progress values are
// ranked when a challenge completes.
type ScoringMethod string

const (
	// ScoringHighest - the highest score wins.
	ScoringHighest ScoringMethod = "highest"
	// ScoringLowest - the lowest score wins (fastest time, fewest attempts).
	ScoringLowest ScoringMethod = "lowest"
	// ScoringTarget - first to reach the target; ranked like highest.
	ScoringTarget ScoringMethod = "target"
	// ScoringCollective - everyone wins or loses together against the target.
	ScoringCollective ScoringMethod = "collective"
)

// IsValid reports whether the scoring method is one of the known variants.
func (m ScoringMethod) IsValid() bool {
	switch m {
	case ScoringHighest, ScoringLowest, ScoringTarget, ScoringCollective:
		return true
	default:
		return false
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// EMBEDDED CONFIGURATION: RULES & REWARDS
// ══════════════════════════════════════════════════════════════════════════════

// Rules is the embedded competition configuration of a challenge.
type Rules struct {
	// TargetMetric is the name of the metric being competed on,
	// e.g. "distance_km", "donations_usd", "score".
	TargetMetric string

	// TargetValue is the goal value for the target metric.
	TargetValue float64

	// TimeLimit optionally caps how long a single attempt may take.
	// Zero means no per-attempt limit.
	TimeLimit time.Duration

	// MinParticipants is the minimum number of participants to start.
	MinParticipants int

	// MaxParticipants caps membership.
	MaxParticipants int

	// FriendsOnly restricts joining to the creator's friends.
	FriendsOnly bool

	// PublicJoin allows anyone to join without an invite.
	PublicJoin bool

	// ScoringMethod determines how final scores are ranked.
	ScoringMethod ScoringMethod

	// DifficultyMultiplier scales final scores. Always >= 1.0.
	DifficultyMultiplier float64
}

// Validate checks the rules for internal consistency.
func (r Rules) Validate() error {
	if r.TargetValue <= 0 {
		return ErrInvalidTargetValue
	}
	if r.MinParticipants < 1 {
		return ErrInvalidParticipantBounds
	}
	if r.MaxParticipants < r.MinParticipants {
		return ErrInvalidParticipantBounds
	}
	if !r.ScoringMethod.IsValid() {
		return ErrInvalidScoringMethod
	}
	if r.DifficultyMultiplier < 1.0 {
		return ErrInvalidDifficultyMultiplier
	}
	return nil
}

// Rewards is the embedded payout configuration of a challenge.
type Rewards struct {
	// WinnerCredits is the base credit payout for rank-1 finishers.
	WinnerCredits int

	// ParticipantCredits is the base credit payout for everyone else.
	ParticipantCredits int

	// WinnerBadges are granted to winners.
	WinnerBadges []string

	// ParticipantBadges are granted to every finisher.
	ParticipantBadges []string

	// SocialBonusMultiplier caps the social credit multiplier.
	SocialBonusMultiplier float64

	// ImpactMultiplier scales payouts for impact challenges.
	ImpactMultiplier float64

	// SpecialRewards maps a special-achievement name to its bonus credits.
	// Category-specific extras live here rather than in dedicated fields.
	SpecialRewards map[string]int
}

// Validate checks the rewards configuration.
func (r Rewards) Validate() error {
	if r.WinnerCredits < 0 || r.ParticipantCredits < 0 {
		return ErrInvalidRewardConfig
	}
	if r.SocialBonusMultiplier < 1.0 {
		return ErrInvalidRewardConfig
	}
	return nil
}

// DefaultRewards returns a sane baseline payout configuration.
func DefaultRewards() Rewards {
	return Rewards{
		WinnerCredits:         100,
		ParticipantCredits:    25,
		WinnerBadges:          []string{"challenge_winner"},
		ParticipantBadges:     []string{"challenge_finisher"},
		SocialBonusMultiplier: 1.5,
		ImpactMultiplier:      1.0,
		SpecialRewards:        map[string]int{},
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// LEADERBOARD SNAPSHOT
// The snapshot embedded in a challenge is a derived projection over the
// participant records - it is recomputed on progress updates, never treated
// as a second source of truth.
// ══════════════════════════════════════════════════════════════════════════════

// LeaderboardEntry is one participant's row in the challenge leaderboard.
type LeaderboardEntry struct {
	// UserID is the participant.
	UserID UserID

	// Score is the participant's current score on the target metric.
	Score float64

	// Rank is the 1-based position (ties share a rank).
	Rank int

	// CompletionPercentage is progress toward the target, clamped to [0,100].
	CompletionPercentage float64

	// UpdatedAt is when this entry was last recomputed.
	UpdatedAt time.Time
}

// ══════════════════════════════════════════════════════════════════════════════
// DOMAIN ERRORS
// ══════════════════════════════════════════════════════════════════════════════

var (
	// ErrEmptyTitle - a challenge needs a non-empty title.
	ErrEmptyTitle = errors.New("invalid challenge: title cannot be empty")

	// ErrInvalidCreator - the creator ID is missing or malformed.
	ErrInvalidCreator = errors.New("invalid challenge: creator id is required")

	// ErrInvalidType - unknown challenge type.
	ErrInvalidType = errors.New("invalid challenge type")

	// ErrInvalidDifficulty - difficulty must be 1-5.
	ErrInvalidDifficulty = errors.New("invalid difficulty: must be between 1 and 5")

	// ErrInvalidTargetValue - the rules target must be positive.
	ErrInvalidTargetValue = errors.New("invalid rules: target value must be positive")

	// ErrInvalidParticipantBounds - min/max participant bounds are inconsistent.
	ErrInvalidParticipantBounds = errors.New("invalid rules: participant bounds are inconsistent")

	// ErrInvalidScoringMethod - unknown scoring method.
	ErrInvalidScoringMethod = errors.New("invalid rules: unknown scoring method")

	// ErrInvalidDifficultyMultiplier - multiplier must be >= 1.0.
	ErrInvalidDifficultyMultiplier = errors.New("invalid rules: difficulty multiplier must be >= 1.0")

	// ErrInvalidRewardConfig - the rewards configuration is inconsistent.
	ErrInvalidRewardConfig = errors.New("invalid rewards configuration")

	// ErrInvalidDates - start date must precede end date.
	ErrInvalidDates = errors.New("invalid challenge: start date must be before end date")

	// ErrChallengeFull - the participant cap is reached.
	ErrChallengeFull = errors.New("challenge is full")

	// ErrAlreadyParticipant - the user is already in the participant set.
	ErrAlreadyParticipant = errors.New("user is already a participant")

	// ErrNotParticipant - the user is not in the participant set.
	ErrNotParticipant = errors.New("user is not a participant")

	// ErrIllegalTransition - the requested lifecycle transition is not allowed.
	ErrIllegalTransition = errors.New("illegal challenge status transition")

	// ErrWinnersNotParticipants - winner ids must be a subset of participants.
	ErrWinnersNotParticipants = errors.New("winner ids must be participants")
)

// ══════════════════════════════════════════════════════════════════════════════
// MAIN ENTITY: CHALLENGE
// ══════════════════════════════════════════════════════════════════════════════

// Challenge is a single competition instance. The challenge owns its
// participant-id and invited-id sets by value; Participant, Result and
// Interaction records reference the challenge by ID only.
type Challenge struct {
	// ID is the unique identifier (UUID in string form).
	ID string

	// CreatorID is the user who created the challenge. The creator is
	// auto-enrolled as the first participant and can never leave.
	CreatorID UserID

	// Title is the display name.
	Title string

	// Description is a free-form description.
	Description string

	// Type is the challenge theme.
	Type Type

	// Category is the free-form sub-type (e.g. "speed_run").
	Category Category

	// Difficulty is the difficulty level 1-5.
	Difficulty DifficultyLevel

	// Rules is the embedded competition configuration.
	Rules Rules

	// Rewards is the embedded payout configuration.
	Rewards Rewards

	// ParticipantIDs is the set of enrolled users (insertion order kept).
	ParticipantIDs []UserID

	// InvitedIDs is the set of users invited but not yet joined.
	InvitedIDs []UserID

	// MaxParticipants caps membership. Mirrors Rules.MaxParticipants.
	MaxParticipants int

	// CurrentParticipants is always kept equal to len(ParticipantIDs).
	CurrentParticipants int

	// Status is the lifecycle state.
	Status Status

	// IsPublic makes the challenge discoverable by everyone.
	IsPublic bool

	// FriendsOnly restricts discovery to the creator's friends.
	FriendsOnly bool

	// AllowCheering enables cheer interactions.
	AllowCheering bool

	// AllowComments enables comment interactions.
	AllowComments bool

	// AllowSpectators enables spectate interactions.
	AllowSpectators bool

	// Tags are free-form labels used by search and similarity scoring.
	Tags []string

	// Leaderboard is the derived score snapshot, recomputed on progress.
	Leaderboard []LeaderboardEntry

	// WinnerIDs holds every participant tied for rank 1 after completion.
	WinnerIDs []UserID

	// CompletionPercentage is the aggregate progress toward the target.
	CompletionPercentage float64

	// Metadata is a bounded extension map for category-specific data.
	Metadata map[string]string

	// CreatedAt is when the challenge was created.
	CreatedAt time.Time

	// StartDate is when the challenge became (or is scheduled to become) active.
	StartDate time.Time

	// EndDate is when the challenge closes.
	EndDate time.Time

	// UpdatedAt is the last modification time.
	UpdatedAt time.Time
}

// ══════════════════════════════════════════════════════════════════════════════
// FACTORY & VALIDATION
// ══════════════════════════════════════════════════════════════════════════════

// NewChallengeParams contains the parameters for creating a challenge.
type NewChallengeParams struct {
	ID          string
	CreatorID   UserID
	Title       string
	Description string
	Type        Type
	Category    Category
	Difficulty  DifficultyLevel
	Rules       Rules
	Rewards     Rewards
	Duration    time.Duration
	IsPublic    bool
	FriendsOnly bool
	AllowCheering   bool
	AllowComments   bool
	AllowSpectators bool
	Tags        []string
	Metadata    map[string]string
}

// NewChallenge creates a challenge with full validation. The creator is
// auto-enrolled as the first participant and the challenge opens immediately;
// EndDate is now + Duration.
func NewChallenge(params NewChallengeParams) (*Challenge, error) {
	if params.ID == "" {
		return nil, errors.New("challenge id is required")
	}
	if !params.CreatorID.IsValid() {
		return nil, ErrInvalidCreator
	}

	title := strings.TrimSpace(params.Title)
	if title == "" {
		return nil, ErrEmptyTitle
	}
	if !params.Type.IsValid() {
		return nil, ErrInvalidType
	}
	if !params.Difficulty.IsValid() {
		return nil, ErrInvalidDifficulty
	}
	if err := params.Rules.Validate(); err != nil {
		return nil, err
	}
	if err := params.Rewards.Validate(); err != nil {
		return nil, err
	}
	if params.Duration <= 0 {
		return nil, ErrInvalidDates
	}

	now := time.Now().UTC()

	c := &Challenge{
		ID:                  params.ID,
		CreatorID:           params.CreatorID,
		Title:               title,
		Description:         strings.TrimSpace(params.Description),
		Type:                params.Type,
		Category:            params.Category,
		Difficulty:          params.Difficulty,
		Rules:               params.Rules,
		Rewards:             params.Rewards,
		ParticipantIDs:      []UserID{params.CreatorID},
		InvitedIDs:          []UserID{},
		MaxParticipants:     params.Rules.MaxParticipants,
		CurrentParticipants: 1,
		Status:              StatusOpen,
		IsPublic:            params.IsPublic,
		FriendsOnly:         params.FriendsOnly,
		AllowCheering:       params.AllowCheering,
		AllowComments:       params.AllowComments,
		AllowSpectators:     params.AllowSpectators,
		Tags:                params.Tags,
		Leaderboard:         []LeaderboardEntry{},
		WinnerIDs:           []UserID{},
		Metadata:            params.Metadata,
		CreatedAt:           now,
		StartDate:           now,
		EndDate:             now.Add(params.Duration),
		UpdatedAt:           now,
	}

	return c, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// DOMAIN METHODS (Business Logic)
// ══════════════════════════════════════════════════════════════════════════════

// IsExpired reports whether the challenge end date has passed.
func (c *Challenge) IsExpired(now time.Time) bool {
	return now.After(c.EndDate)
}

// IsFull reports whether the participant cap is reached.
func (c *Challenge) IsFull() bool {
	return c.CurrentParticipants >= c.MaxParticipants
}

// IsJoinable reports whether a new participant could join right now.
func (c *Challenge) IsJoinable(now time.Time) bool {
	return c.Status == StatusOpen && !c.IsExpired(now) && !c.IsFull()
}

// HasParticipant reports whether the user is in the participant set.
func (c *Challenge) HasParticipant(userID UserID) bool {
	for _, id := range c.ParticipantIDs {
		if id == userID {
			return true
		}
	}
	return false
}

// IsInvited reports whether the user is in the invited set.
func (c *Challenge) IsInvited(userID UserID) bool {
	for _, id := range c.InvitedIDs {
		if id == userID {
			return true
		}
	}
	return false
}

// AddParticipant enrolls a user, keeping CurrentParticipants equal to the
// participant-set size and clearing the user from the invited set.
func (c *Challenge) AddParticipant(userID UserID, now time.Time) error {
	if c.Status != StatusOpen {
		return ErrIllegalTransition
	}
	if c.IsExpired(now) {
		return errors.New("challenge has expired")
	}
	if c.IsFull() {
		return ErrChallengeFull
	}
	if c.HasParticipant(userID) {
		return ErrAlreadyParticipant
	}

	c.ParticipantIDs = append(c.ParticipantIDs, userID)
	c.CurrentParticipants = len(c.ParticipantIDs)
	c.removeInvited(userID)
	c.UpdatedAt = now
	return nil
}

// RemoveParticipant removes a user from the participant set. The creator can
// never be removed.
func (c *Challenge) RemoveParticipant(userID UserID, now time.Time) error {
	if userID == c.CreatorID {
		return errors.New("creator cannot be removed")
	}
	if !c.HasParticipant(userID) {
		return ErrNotParticipant
	}

	filtered := c.ParticipantIDs[:0]
	for _, id := range c.ParticipantIDs {
		if id != userID {
			filtered = append(filtered, id)
		}
	}
	c.ParticipantIDs = filtered
	c.CurrentParticipants = len(c.ParticipantIDs)
	c.UpdatedAt = now
	return nil
}

// Invite adds users to the invited set, skipping users that are already
// participants or already invited. Returns how many were newly invited and
// how many were skipped.
func (c *Challenge) Invite(userIDs []UserID, now time.Time) (invited, skipped int) {
	for _, id := range userIDs {
		if !id.IsValid() || c.HasParticipant(id) || c.IsInvited(id) {
			skipped++
			continue
		}
		c.InvitedIDs = append(c.InvitedIDs, id)
		invited++
	}
	if invited > 0 {
		c.UpdatedAt = now
	}
	return invited, skipped
}

func (c *Challenge) removeInvited(userID UserID) {
	filtered := c.InvitedIDs[:0]
	for _, id := range c.InvitedIDs {
		if id != userID {
			filtered = append(filtered, id)
		}
	}
	c.InvitedIDs = filtered
}

// Start transitions the challenge to active and stamps the start date.
func (c *Challenge) Start(now time.Time) error {
	if !c.Status.CanTransitionTo(StatusActive) {
		return ErrIllegalTransition
	}
	if c.IsExpired(now) {
		return errors.New("challenge has expired")
	}
	if c.CurrentParticipants < c.Rules.MinParticipants {
		return fmt.Errorf("need at least %d participants to start", c.Rules.MinParticipants)
	}

	c.Status = StatusActive
	c.StartDate = now
	c.UpdatedAt = now
	return nil
}

// Complete transitions the challenge to completed and records the winners.
// Winner IDs must be a subset of the participant set.
func (c *Challenge) Complete(winnerIDs []UserID, now time.Time) error {
	if !c.Status.CanTransitionTo(StatusCompleted) {
		return ErrIllegalTransition
	}
	for _, id := range winnerIDs {
		if !c.HasParticipant(id) {
			return ErrWinnersNotParticipants
		}
	}

	c.Status = StatusCompleted
	c.WinnerIDs = winnerIDs
	c.UpdatedAt = now
	return nil
}

// Cancel transitions the challenge to cancelled.
func (c *Challenge) Cancel(now time.Time) error {
	if !c.Status.CanTransitionTo(StatusCancelled) {
		return ErrIllegalTransition
	}

	c.Status = StatusCancelled
	c.UpdatedAt = now
	return nil
}

// HasWinner reports whether the user is among the recorded winners.
func (c *Challenge) HasWinner(userID UserID) bool {
	for _, id := range c.WinnerIDs {
		if id == userID {
			return true
		}
	}
	return false
}

// Duration returns the total scheduled duration of the challenge.
func (c *Challenge) Duration() time.Duration {
	return c.EndDate.Sub(c.StartDate)
}

// TimeRemaining returns how long until the challenge closes (zero if past).
func (c *Challenge) TimeRemaining(now time.Time) time.Duration {
	if now.After(c.EndDate) {
		return 0
	}
	return c.EndDate.Sub(now)
}

// FillRatio returns how full the challenge is, in [0,1].
func (c *Challenge) FillRatio() float64 {
	if c.MaxParticipants == 0 {
		return 0
	}
	return float64(c.CurrentParticipants) / float64(c.MaxParticipants)
}

// SocialFeaturesEnabled reports whether both cheering and comments are on.
func (c *Challenge) SocialFeaturesEnabled() bool {
	return c.AllowCheering && c.AllowComments
}

// UpsertLeaderboardEntry replaces or appends the entry for a user and
// re-sorts the snapshot according to the scoring method. Ranks are assigned
// with ties sharing a rank and the next distinct score taking its 1-based
// position.
func (c *Challenge) UpsertLeaderboardEntry(entry LeaderboardEntry) {
	replaced := false
	for i := range c.Leaderboard {
		if c.Leaderboard[i].UserID == entry.UserID {
			c.Leaderboard[i] = entry
			replaced = true
			break
		}
	}
	if !replaced {
		c.Leaderboard = append(c.Leaderboard, entry)
	}

	ascending := c.Rules.ScoringMethod == ScoringLowest
	sortLeaderboard(c.Leaderboard, ascending)
	assignLeaderboardRanks(c.Leaderboard)
	c.UpdatedAt = time.Now().UTC()
}

// LeaderboardRank returns the current rank of a user in the snapshot,
// or 0 if the user has no entry yet.
func (c *Challenge) LeaderboardRank(userID UserID) int {
	for _, e := range c.Leaderboard {
		if e.UserID == userID {
			return e.Rank
		}
	}
	return 0
}

func sortLeaderboard(entries []LeaderboardEntry, ascending bool) {
	// Insertion sort: snapshots are small and nearly sorted after an upsert.
	for i := 1; i < len(entries); i++ {
		for j := i; j > 0; j-- {
			less := entries[j].Score > entries[j-1].Score
			if ascending {
				less = entries[j].Score < entries[j-1].Score
			}
			if !less {
				break
			}
			entries[j], entries[j-1] = entries[j-1], entries[j]
		}
	}
}

func assignLeaderboardRanks(entries []LeaderboardEntry) {
	for i := range entries {
		if i > 0 && entries[i].Score == entries[i-1].Score {
			entries[i].Rank = entries[i-1].Rank
			continue
		}
		entries[i].Rank = i + 1
	}
}

// String returns a compact representation for logging.
func (c *Challenge) String() string {
	return fmt.Sprintf(
		"Challenge{ID: %s, Title: %q, Type: %s, Status: %s, Participants: %d/%d}",
		c.ID, c.Title, c.Type, c.Status, c.CurrentParticipants, c.MaxParticipants,
	)
}

// Clone creates a deep copy of the challenge.
func (c *Challenge) Clone() *Challenge {
	if c == nil {
		return nil
	}

	clone := *c
	clone.ParticipantIDs = append([]UserID(nil), c.ParticipantIDs...)
	clone.InvitedIDs = append([]UserID(nil), c.InvitedIDs...)
	clone.WinnerIDs = append([]UserID(nil), c.WinnerIDs...)
	clone.Tags = append([]string(nil), c.Tags...)
	clone.Leaderboard = append([]LeaderboardEntry(nil), c.Leaderboard...)
	if c.Metadata != nil {
		clone.Metadata = make(map[string]string, len(c.Metadata))
		for k, v := range c.Metadata {
			clone.Metadata[k] = v
		}
	}
	if c.Rewards.SpecialRewards != nil {
		clone.Rewards.SpecialRewards = make(map[string]int, len(c.Rewards.SpecialRewards))
		for k, v := range c.Rewards.SpecialRewards {
			clone.Rewards.SpecialRewards[k] = v
		}
	}
	return &clone
}
