// Package shared contains common domain types, errors, and events that are
// used across all domain packages. This package has zero external dependencies.
package shared

import (
	"errors"
	"fmt"
)

// Base domain errors that can be used for error checking with errors.Is().
var (
	// Entity errors
	ErrNotFound      = errors.New("entity not found")
	ErrAlreadyExists = errors.New("entity already exists")
	ErrInvalidEntity = errors.New("invalid entity")

	// Validation errors
	ErrValidation      = errors.New("validation error")
	ErrInvalidID       = errors.New("invalid ID")
	ErrInvalidInput    = errors.New("invalid input")
	ErrEmptyValue      = errors.New("value cannot be empty")
	ErrNegativeValue   = errors.New("value cannot be negative")
	ErrValueOutOfRange = errors.New("value out of range")
	ErrInvalidFormat   = errors.New("invalid format")

	// State errors
	ErrInvalidState     = errors.New("invalid state")
	ErrStateTransition  = errors.New("invalid state transition")
	ErrAlreadyProcessed = errors.New("already processed")
	ErrExpired          = errors.New("expired")
	ErrConflict         = errors.New("state conflict")

	// Authorization errors
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")

	// Concurrency errors
	ErrConcurrentModification = errors.New("concurrent modification detected")
	ErrOptimisticLock         = errors.New("optimistic lock failure")

	// Infrastructure errors
	ErrStorage            = errors.New("storage error")
	ErrServiceUnavailable = errors.New("service unavailable")
	ErrTimeout            = errors.New("operation timeout")
)

// DomainError represents a domain-specific error with context.
type DomainError struct {
	Domain  string // e.g., "challenge", "participant", "interaction"
	Op      string // Operation that failed, e.g., "Join", "Complete"
	Kind    error  // Base error type for errors.Is() checking
	Message string // Human-readable message
	Err     error  // Underlying error (optional)
}

// Error implements the error interface.
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s.%s: %s: %v", e.Domain, e.Op, e.Message, e.Err)
	}
	return fmt.Sprintf("%s.%s: %s", e.Domain, e.Op, e.Message)
}

// Unwrap returns the underlying error for errors.Unwrap().
func (e *DomainError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return e.Kind
}

// Is implements errors.Is() matching.
func (e *DomainError) Is(target error) bool {
	if e.Kind != nil && errors.Is(e.Kind, target) {
		return true
	}
	if e.Err != nil && errors.Is(e.Err, target) {
		return true
	}
	return false
}

// NewDomainError creates a new domain error.
func NewDomainError(domain, op string, kind error, message string) *DomainError {
	return &DomainError{
		Domain:  domain,
		Op:      op,
		Kind:    kind,
		Message: message,
	}
}

// WrapError wraps an existing error with domain context.
func WrapError(domain, op string, kind error, message string, err error) *DomainError {
	return &DomainError{
		Domain:  domain,
		Op:      op,
		Kind:    kind,
		Message: message,
		Err:     err,
	}
}

// Challenge domain errors
var (
	ErrChallengeNotFound    = NewDomainError("challenge", "Find", ErrNotFound, "challenge not found")
	ErrChallengeExists      = NewDomainError("challenge", "Create", ErrAlreadyExists, "challenge already exists")
	ErrChallengeNotOpen     = NewDomainError("challenge", "Join", ErrInvalidState, "challenge is not open for joining")
	ErrChallengeFull        = NewDomainError("challenge", "Join", ErrConflict, "challenge has reached maximum participants")
	ErrChallengeExpired     = NewDomainError("challenge", "Join", ErrExpired, "challenge has expired")
	ErrChallengeFinalized   = NewDomainError("challenge", "Complete", ErrAlreadyProcessed, "challenge is already completed or cancelled")
	ErrNotChallengeCreator  = NewDomainError("challenge", "Cancel", ErrForbidden, "only the creator can cancel a challenge")
	ErrInvalidChallengeSpec = NewDomainError("challenge", "Validate", ErrValidation, "invalid challenge specification")
	ErrTemplateNotFound     = NewDomainError("challenge", "FromTemplate", ErrNotFound, "no template for challenge type and category")
)

// Participant domain errors
var (
	ErrParticipantNotFound   = NewDomainError("participant", "Find", ErrNotFound, "participant not found")
	ErrAlreadyJoined         = NewDomainError("participant", "Join", ErrAlreadyExists, "user already joined this challenge")
	ErrNotAParticipant       = NewDomainError("participant", "Find", ErrNotFound, "user is not a participant of this challenge")
	ErrCreatorCannotLeave    = NewDomainError("participant", "Leave", ErrForbidden, "challenge creator cannot leave")
	ErrParticipantInactive   = NewDomainError("participant", "Update", ErrInvalidState, "participant is no longer active")
	ErrRewardsAlreadyClaimed = NewDomainError("participant", "ClaimRewards", ErrAlreadyProcessed, "rewards already claimed")
)

// Result domain errors
var (
	ErrResultNotFound      = NewDomainError("result", "Find", ErrNotFound, "result not found")
	ErrResultExists        = NewDomainError("result", "Create", ErrAlreadyExists, "result already recorded for this participant")
	ErrResultFinalized     = NewDomainError("result", "Adjust", ErrInvalidState, "result is finalized and cannot be adjusted")
	ErrResultNotVerifiable = NewDomainError("result", "Verify", ErrInvalidState, "result cannot be verified in its current state")
)

// Interaction domain errors
var (
	ErrInteractionNotFound  = NewDomainError("interaction", "Find", ErrNotFound, "interaction not found")
	ErrNotInteractionAuthor = NewDomainError("interaction", "Delete", ErrForbidden, "only the author can delete an interaction")
	ErrInteractionDisabled  = NewDomainError("interaction", "Create", ErrForbidden, "social feature disabled for this challenge")
)

// IsNotFound checks if the error is a "not found" error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsAlreadyExists checks if the error is an "already exists" error.
func IsAlreadyExists(err error) bool {
	return errors.Is(err, ErrAlreadyExists)
}

// IsValidation checks if the error is a validation error.
func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrInvalidID) ||
		errors.Is(err, ErrInvalidInput) ||
		errors.Is(err, ErrEmptyValue) ||
		errors.Is(err, ErrNegativeValue) ||
		errors.Is(err, ErrValueOutOfRange)
}

// IsConflict checks if the error is a state-conflict error. Idempotent callers
// can treat repeated "already in target state" conflicts as benign.
func IsConflict(err error) bool {
	return errors.Is(err, ErrConflict) ||
		errors.Is(err, ErrAlreadyExists) ||
		errors.Is(err, ErrAlreadyProcessed) ||
		errors.Is(err, ErrStateTransition) ||
		errors.Is(err, ErrInvalidState)
}

// IsInfrastructure checks if the error is an infrastructure failure.
func IsInfrastructure(err error) bool {
	return errors.Is(err, ErrStorage) ||
		errors.Is(err, ErrServiceUnavailable) ||
		errors.Is(err, ErrTimeout)
}

// IsRetryable checks if the operation can be retried.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrServiceUnavailable) ||
		errors.Is(err, ErrTimeout) ||
		errors.Is(err, ErrConcurrentModification)
}
