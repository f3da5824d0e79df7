// Package service contains the application services orchestrating the
// challenge domain: lifecycle management, matchmaking, rewards and social
// interactions. Business-rule violations are recovered into structured
// outcomes; only infrastructure faults propagate as errors.
package service

import (
	"errors"

	"github.com/challengehub/challenge-hub/internal/domain/challenge"
	"github.com/challengehub/challenge-hub/internal/domain/interaction"
	"github.com/challengehub/challenge-hub/internal/domain/participant"
	"github.com/challengehub/challenge-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// OPERATION OUTCOME
// Every service operation returns (result, error). The error channel carries
// infrastructure faults only; expected business-rule violations come back as
// an unsuccessful Outcome with a machine-readable reason code and a
// human-readable message. Callers branch on the reason code, never on error
// string contents.
// ══════════════════════════════════════════════════════════════════════════════

// ReasonCode is a machine-readable classification of an operation outcome.
type ReasonCode string

const (
	// ReasonOK - the operation succeeded.
	ReasonOK ReasonCode = "ok"

	// ReasonValidationFailed - the input was rejected before any mutation.
	ReasonValidationFailed ReasonCode = "validation_failed"

	// ReasonNotFound - the referenced entity does not exist.
	ReasonNotFound ReasonCode = "not_found"

	// ReasonChallengeFull - the participant cap is reached.
	ReasonChallengeFull ReasonCode = "challenge_full"

	// ReasonNotOpen - the challenge is not accepting the requested action.
	ReasonNotOpen ReasonCode = "not_open"

	// ReasonExpired - the challenge end date has passed.
	ReasonExpired ReasonCode = "expired"

	// ReasonAlreadyJoined - the user is already a participant.
	ReasonAlreadyJoined ReasonCode = "already_joined"

	// ReasonNotParticipant - the user is not a participant.
	ReasonNotParticipant ReasonCode = "not_participant"

	// ReasonCreatorCannotLeave - the creator tried to leave their own challenge.
	ReasonCreatorCannotLeave ReasonCode = "creator_cannot_leave"

	// ReasonAlreadyCompleted - the challenge is already in a final state.
	ReasonAlreadyCompleted ReasonCode = "already_completed"

	// ReasonRewardsClaimed - the rewards were already claimed.
	ReasonRewardsClaimed ReasonCode = "rewards_claimed"

	// ReasonNotAuthor - the caller does not own the interaction.
	ReasonNotAuthor ReasonCode = "not_author"

	// ReasonNotCreator - the caller is not the challenge creator.
	ReasonNotCreator ReasonCode = "not_creator"

	// ReasonConflict - a generic state conflict not covered above.
	ReasonConflict ReasonCode = "conflict"
)

// Outcome is the structured result every operation embeds.
type Outcome struct {
	// Success indicates whether the operation applied its state change.
	Success bool

	// Reason classifies the outcome.
	Reason ReasonCode

	// Message is a human-readable explanation, safe to show to users.
	Message string
}

// OK returns a successful outcome.
func OK() Outcome {
	return Outcome{Success: true, Reason: ReasonOK}
}

// Rejected returns an unsuccessful outcome with a reason and message.
func Rejected(reason ReasonCode, message string) Outcome {
	return Outcome{Success: false, Reason: reason, Message: message}
}

// IsIdempotentRepeat reports whether the outcome describes an
// "already in target state" rejection that idempotent callers may treat
// as benign.
func (o Outcome) IsIdempotentRepeat() bool {
	switch o.Reason {
	case ReasonAlreadyJoined, ReasonAlreadyCompleted, ReasonRewardsClaimed:
		return true
	}
	return false
}

// outcomeFromDomainError maps a domain error to a rejected outcome.
// Returns ok=false when the error is not a recognized business-rule
// violation, in which case the caller should propagate it as-is.
func outcomeFromDomainError(err error) (Outcome, bool) {
	switch {
	case err == nil:
		return OK(), true
	case errors.Is(err, challenge.ErrNotParticipant),
		errors.Is(err, shared.ErrNotAParticipant),
		errors.Is(err, participant.ErrNotActive):
		return Rejected(ReasonNotParticipant, err.Error()), true
	case shared.IsNotFound(err):
		return Rejected(ReasonNotFound, err.Error()), true
	case errors.Is(err, challenge.ErrChallengeFull),
		errors.Is(err, shared.ErrChallengeFull):
		return Rejected(ReasonChallengeFull, err.Error()), true
	case errors.Is(err, challenge.ErrAlreadyParticipant),
		errors.Is(err, shared.ErrAlreadyJoined):
		return Rejected(ReasonAlreadyJoined, err.Error()), true
	case errors.Is(err, shared.ErrCreatorCannotLeave):
		return Rejected(ReasonCreatorCannotLeave, err.Error()), true
	case errors.Is(err, challenge.ErrIllegalTransition),
		errors.Is(err, shared.ErrChallengeFinalized),
		errors.Is(err, participant.ErrAlreadyFinal):
		return Rejected(ReasonAlreadyCompleted, err.Error()), true
	case errors.Is(err, shared.ErrChallengeNotOpen):
		return Rejected(ReasonNotOpen, err.Error()), true
	case errors.Is(err, shared.ErrChallengeExpired):
		return Rejected(ReasonExpired, err.Error()), true
	case errors.Is(err, participant.ErrRewardsClaimed),
		errors.Is(err, shared.ErrRewardsAlreadyClaimed):
		return Rejected(ReasonRewardsClaimed, err.Error()), true
	case errors.Is(err, interaction.ErrNotAuthor):
		return Rejected(ReasonNotAuthor, err.Error()), true
	case shared.IsValidation(err):
		return Rejected(ReasonValidationFailed, err.Error()), true
	case shared.IsConflict(err):
		return Rejected(ReasonConflict, err.Error()), true
	}
	return Outcome{}, false
}
