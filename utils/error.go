package utils

import (
	"errors"
	"fmt"
)

var ErrorRecordNotFound = errors.New("record not found")

// ErrorKind buckets every rejected operation so the admin tool can render it
// without re-deriving state.
type ErrorKind string

const (
	ErrorKindValidation   ErrorKind = "validation"
	ErrorKindPrecondition ErrorKind = "precondition"
	ErrorKindConflict     ErrorKind = "conflict"
	ErrorKindImmutability ErrorKind = "immutability"
)

// DomainError carries a stable machine code plus the precondition or field
// that failed. Two DomainErrors with the same Code match under errors.Is.
type DomainError struct {
	Kind    ErrorKind
	Code    string
	Field   string
	Message string
}

func (e *DomainError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Code, e.Message, e.Field)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	return ok && t.Code == e.Code
}

// Retryable reports whether the caller may simply retry (lock contention,
// duplicate-key races); validation and precondition failures are not retryable.
func (e *DomainError) Retryable() bool {
	return e.Kind == ErrorKindConflict
}

var (
	ErrAlreadyFinalized = &DomainError{
		Kind: ErrorKindPrecondition, Code: "ranking_already_finalized",
		Field: "is_finalized", Message: "ranking is already finalized",
	}
	ErrRankingNotFinalized = &DomainError{
		Kind: ErrorKindPrecondition, Code: "ranking_not_finalized",
		Field: "is_finalized", Message: "ranking must be finalized first",
	}
	ErrInvalidRankingData = &DomainError{
		Kind: ErrorKindValidation, Code: "invalid_ranking_data",
		Field: "rank_position", Message: "positions must be a dense permutation of 1..N over items of this ranking",
	}
	ErrRankingModification = &DomainError{
		Kind: ErrorKindPrecondition, Code: "ranking_already_distributed",
		Field: "distribution_executed", Message: "distribution already executed for this ranking",
	}
	ErrDistributionNotExecuted = &DomainError{
		Kind: ErrorKindPrecondition, Code: "distribution_not_executed",
		Field: "distribution_executed", Message: "roster requires a distributed ranking",
	}
	ErrRosterAlreadyExists = &DomainError{
		Kind: ErrorKindConflict, Code: "roster_already_exists",
		Field: "scholarship_configuration_id,period_label", Message: "an active roster already exists for this configuration and period",
	}
	ErrRosterLocked = &DomainError{
		Kind: ErrorKindImmutability, Code: "roster_locked",
		Field: "status", Message: "roster is locked and immutable",
	}
	ErrRosterNotCompleted = &DomainError{
		Kind: ErrorKindPrecondition, Code: "roster_not_completed",
		Field: "status", Message: "only a completed roster can be locked",
	}
	ErrGenerationInProgress = &DomainError{
		Kind: ErrorKindConflict, Code: "roster_generation_in_progress",
		Field: "scholarship_configuration_id,period_label", Message: "another roster generation is running for this scope; retry",
	}
	ErrLockContention = &DomainError{
		Kind: ErrorKindConflict, Code: "ranking_lock_contention",
		Field: "ranking_id", Message: "another operation holds the ranking lock; retry",
	}
	ErrInvalidQuotaMatrix = &DomainError{
		Kind: ErrorKindValidation, Code: "invalid_quota_matrix",
		Field: "quota_matrix", Message: "quota matrix has empty codes or negative quotas",
	}
)

// ValidationErr builds a one-off validation error for a named field.
func ValidationErr(field, message string) *DomainError {
	return &DomainError{Kind: ErrorKindValidation, Code: "validation_failed", Field: field, Message: message}
}
