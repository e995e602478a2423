/*
errors.go - Centralized error types for the timesheet engine

PURPOSE:
  All error types in one place for consistency and discoverability.
  Domain packages wrap these errors with additional context.

ERROR CATEGORIES:
  1. Validation errors - Rejected operations (locked cycle, bad date, bad hours)
  2. Collaborator failures - Store or dispatch errors, propagated unchanged
  3. Record errors - Persisted data that fails schema validation on load

USAGE:
  if errors.Is(err, generic.ErrCycleLocked) {
      // cycle was already submitted
  }
*/
package generic

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrCycleNotFound is returned when no active cycle has the requested ID.
	ErrCycleNotFound = errors.New("cycle not found")

	// ErrCycleLocked is returned for any edit of a submitted cycle.
	ErrCycleLocked = errors.New("cycle is locked")

	// ErrDateOutsideCycle is returned when an hour entry targets a day
	// outside the cycle's interval.
	ErrDateOutsideCycle = errors.New("date outside cycle")

	// ErrInvalidHours is returned for hour values outside [0, 24].
	ErrInvalidHours = errors.New("hours must be between 0 and 24")

	// ErrEvidenceRequired is returned when submitting without attachments.
	ErrEvidenceRequired = errors.New("at least one evidence attachment required")

	// ErrEvidenceIndex is returned when removing an attachment that does not exist.
	ErrEvidenceIndex = errors.New("evidence index out of range")

	// ErrInvalidEvidence is returned for attachments with no name or no content.
	ErrInvalidEvidence = errors.New("invalid evidence")

	// ErrInvalidFrequency is returned for unknown recurrence names.
	ErrInvalidFrequency = errors.New("invalid frequency")

	// ErrInvalidPeriod is returned when a period is malformed (end before start).
	ErrInvalidPeriod = errors.New("invalid period: end before start")

	// ErrInvalidOwner is returned for owner IDs that cannot form a storage key.
	ErrInvalidOwner = errors.New("invalid owner id")

	// ErrNotConfigured is returned when an owner has no start date/frequency yet.
	ErrNotConfigured = errors.New("timesheet not configured")

	// ErrMalformedRecord is returned when persisted data fails validation.
	ErrMalformedRecord = errors.New("malformed record")

	// ErrDispatchFailed is returned when the submission dispatch collaborator fails.
	ErrDispatchFailed = errors.New("submission dispatch failed")

	// ErrStoreUnavailable is returned when the backing store cannot be read or written.
	ErrStoreUnavailable = errors.New("store unavailable")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// CycleError describes a rejected lifecycle operation.
type CycleError struct {
	CycleID string
	Op      string // "record_hours", "attach_evidence", "remove_evidence", "submit"
	Err     error
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("%s on cycle %s: %v", e.Op, e.CycleID, e.Err)
}

func (e *CycleError) Unwrap() error {
	return e.Err
}

// RecordError points at the persisted record that failed validation.
type RecordError struct {
	Key    string
	Index  int // -1 when the whole value is bad
	Reason string
}

func (e *RecordError) Error() string {
	if e.Index < 0 {
		return fmt.Sprintf("malformed record %s: %s", e.Key, e.Reason)
	}
	return fmt.Sprintf("malformed record %s[%d]: %s", e.Key, e.Index, e.Reason)
}

func (e *RecordError) Unwrap() error {
	return ErrMalformedRecord
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsValidation returns true if the error is a rejected operation caused by
// caller input rather than a failing collaborator.
func IsValidation(err error) bool {
	return errors.Is(err, ErrCycleLocked) ||
		errors.Is(err, ErrDateOutsideCycle) ||
		errors.Is(err, ErrInvalidHours) ||
		errors.Is(err, ErrEvidenceRequired) ||
		errors.Is(err, ErrEvidenceIndex) ||
		errors.Is(err, ErrInvalidEvidence) ||
		errors.Is(err, ErrInvalidFrequency) ||
		errors.Is(err, ErrInvalidPeriod) ||
		errors.Is(err, ErrInvalidOwner)
}

// IsNotFound returns true if the error indicates a missing resource.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrCycleNotFound) ||
		errors.Is(err, ErrNotConfigured)
}

// IsCollaboratorFailure returns true for store and dispatch failures.
func IsCollaboratorFailure(err error) bool {
	return errors.Is(err, ErrDispatchFailed) ||
		errors.Is(err, ErrStoreUnavailable)
}
