package services

import (
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"
)

// ErrNotFound is returned when a submission, reviewer, assignment or review
// does not exist (or is soft-deleted).
var ErrNotFound = errors.New("record not found")

// ValidationError rejects bad input with a field-level reason suitable for
// direct display.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// DuplicateAssignmentError is returned when an active assignment already
// exists for the (submission, reviewer) pair. Uniqueness is enforced by the
// database index, so concurrent creates surface here instead of crashing.
type DuplicateAssignmentError struct {
	SubmissionID int
	ReviewerID   int
}

func (e *DuplicateAssignmentError) Error() string {
	return fmt.Sprintf("reviewer %d already has an active assignment for submission %d",
		e.ReviewerID, e.SubmissionID)
}

// InvalidStateTransitionError rejects an illegal lifecycle change.
type InvalidStateTransitionError struct {
	Entity string
	From   string
	To     string
	Reason string
}

func (e *InvalidStateTransitionError) Error() string {
	msg := fmt.Sprintf("%s cannot transition from %s to %s", e.Entity, e.From, e.To)
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	return msg
}

// AlreadyExistsError is returned when creating an entity that already has an
// active counterpart, such as a second review draft for one assignment.
type AlreadyExistsError struct {
	Entity  string
	Message string
}

func (e *AlreadyExistsError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return e.Entity + " already exists"
}

// ConflictError is returned on stale optimistic-concurrency writes.
type ConflictError struct {
	Message string
}

func (e *ConflictError) Error() string {
	return e.Message
}

// IneligibleReviewerError is returned when assignment-time re-validation
// finds the reviewer ineligible. During suggestion the same condition is
// plain data on the Suggestion, not an error.
type IneligibleReviewerError struct {
	ReviewerID int
	Reasons    []string
}

func (e *IneligibleReviewerError) Error() string {
	return fmt.Sprintf("reviewer %d is not eligible: %s",
		e.ReviewerID, strings.Join(e.Reasons, "; "))
}

// isDuplicateKey reports whether err is a uniqueness violation. GORM
// translates MySQL error 1062 when TranslateError is enabled; the message
// check covers drivers that do not.
func isDuplicateKey(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	return strings.Contains(err.Error(), "Duplicate entry") ||
		strings.Contains(err.Error(), "1062")
}
