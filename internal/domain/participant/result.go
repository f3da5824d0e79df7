package participant

import (
	"errors"
	"time"

	"github.com/challengehub/challenge-hub/internal/domain/challenge"
)

// ══════════════════════════════════════════════════════════════════════════════
// RESULT
// A Result is the scored outcome of one participation, derived from a
// Participant at completion time. One Result per (challenge, user); created
// once, mutated only by verification, disqualification and score adjustments
// until it is finalized.
// ══════════════════════════════════════════════════════════════════════════════

var (
	// ErrResultFinalized - the result is locked against further changes.
	ErrResultFinalized = errors.New("result is finalized")

	// ErrAlreadyVerified - the result was already verified.
	ErrAlreadyVerified = errors.New("result is already verified")

	// ErrInvalidVerifier - verifier id is required.
	ErrInvalidVerifier = errors.New("verifier id is required")
)

// Result is the finalized, scored outcome of one Participant.
type Result struct {
	// ID is the unique identifier (UUID in string form).
	ID string

	// ChallengeID references the challenge by ID.
	ChallengeID string

	// UserID is the participant this result belongs to.
	UserID challenge.UserID

	// BaseScore is the normalized raw metric value before bonuses.
	BaseScore float64

	// Bonuses maps bonus names to awarded points.
	Bonuses map[string]float64

	// Penalties maps penalty names to deducted points.
	Penalties map[string]float64

	// Multipliers maps multiplier names to the applied factors.
	Multipliers map[string]float64

	// FinalScore is the fully computed score.
	FinalScore float64

	// Rank is the 1-based final rank (ties share a rank).
	Rank int

	// TotalParticipants is the ranked field size.
	TotalParticipants int

	// SocialScore is the participant's social sub-score at completion.
	SocialScore float64

	// ImpactScore is the participant's community-impact sub-score.
	ImpactScore float64

	// CollectiveTotal carries the summed team score for collective
	// challenges; zero otherwise.
	CollectiveTotal float64

	// Milestones reached during the challenge.
	Milestones []string

	// Badges earned from this result.
	Badges []string

	// RecordsBroken lists any records broken during the challenge.
	RecordsBroken []string

	// Verification state. Verification is reserved for an external authority.
	IsVerified bool
	VerifiedBy string
	VerifiedAt *time.Time

	// Disqualified marks the result as voided.
	Disqualified bool

	// Finalized locks the result against score adjustments.
	Finalized bool

	// CreatedAt is when the result was recorded.
	CreatedAt time.Time

	// UpdatedAt is the last modification time.
	UpdatedAt time.Time
}

// NewResultParams contains the parameters for recording a result.
type NewResultParams struct {
	ID                string
	ChallengeID       string
	UserID            challenge.UserID
	BaseScore         float64
	Bonuses           map[string]float64
	Penalties         map[string]float64
	Multipliers       map[string]float64
	FinalScore        float64
	Rank              int
	TotalParticipants int
	SocialScore       float64
	ImpactScore       float64
	CollectiveTotal   float64
	Milestones        []string
}

// NewResult records a result for a completed participation.
func NewResult(params NewResultParams) (*Result, error) {
	if params.ID == "" {
		return nil, errors.New("result id is required")
	}
	if params.ChallengeID == "" {
		return nil, ErrInvalidChallengeID
	}
	if !params.UserID.IsValid() {
		return nil, ErrInvalidUserID
	}
	if params.Rank < 1 {
		return nil, errors.New("result rank must be positive")
	}
	if params.TotalParticipants < params.Rank {
		return nil, errors.New("total participants cannot be below rank")
	}

	now := time.Now().UTC()

	r := &Result{
		ID:                params.ID,
		ChallengeID:       params.ChallengeID,
		UserID:            params.UserID,
		BaseScore:         params.BaseScore,
		Bonuses:           params.Bonuses,
		Penalties:         params.Penalties,
		Multipliers:       params.Multipliers,
		FinalScore:        params.FinalScore,
		Rank:              params.Rank,
		TotalParticipants: params.TotalParticipants,
		SocialScore:       params.SocialScore,
		ImpactScore:       params.ImpactScore,
		CollectiveTotal:   params.CollectiveTotal,
		Milestones:        params.Milestones,
		Badges:            []string{},
		RecordsBroken:     []string{},
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if r.Bonuses == nil {
		r.Bonuses = map[string]float64{}
	}
	if r.Penalties == nil {
		r.Penalties = map[string]float64{}
	}
	if r.Multipliers == nil {
		r.Multipliers = map[string]float64{}
	}
	if r.Milestones == nil {
		r.Milestones = []string{}
	}

	return r, nil
}

// IsWinner reports whether this result took first place.
func (r *Result) IsWinner() bool {
	return r.Rank == 1 && !r.Disqualified
}

// Verify marks the result as verified by an external authority.
func (r *Result) Verify(verifierID string, now time.Time) error {
	if r.IsVerified {
		return ErrAlreadyVerified
	}
	if r.Disqualified {
		return errors.New("cannot verify a disqualified result")
	}
	if verifierID == "" {
		return ErrInvalidVerifier
	}

	r.IsVerified = true
	r.VerifiedBy = verifierID
	verified := now
	r.VerifiedAt = &verified
	r.UpdatedAt = now
	return nil
}

// DisqualifyResult voids the result.
func (r *Result) DisqualifyResult(now time.Time) error {
	if r.Finalized {
		return ErrResultFinalized
	}

	r.Disqualified = true
	r.UpdatedAt = now
	return nil
}

// AdjustScore applies a named score adjustment before finalization.
// Positive deltas are recorded as bonuses, negative deltas as penalties.
func (r *Result) AdjustScore(name string, delta float64, now time.Time) error {
	if r.Finalized {
		return ErrResultFinalized
	}

	if delta >= 0 {
		r.Bonuses[name] += delta
	} else {
		r.Penalties[name] += -delta
	}
	r.FinalScore += delta
	if r.FinalScore < 0 {
		r.FinalScore = 0
	}
	r.UpdatedAt = now
	return nil
}

// Finalize locks the result against further adjustments.
func (r *Result) Finalize(now time.Time) {
	r.Finalized = true
	r.UpdatedAt = now
}
