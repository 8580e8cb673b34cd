package models

import "time"

// Stored assignment statuses. Overdue is intentionally absent: it is derived
// from the deadline, never written.
const (
	AssignmentStatusAssigned   = "assigned"
	AssignmentStatusInProgress = "in_progress"
	AssignmentStatusCompleted  = "completed"
	AssignmentStatusCancelled  = "cancelled"

	// AssignmentStatusOverdue is a derived, read-only status.
	AssignmentStatusOverdue = "overdue"
)

// Assignment types.
const (
	AssignmentTypePrimary    = "primary"
	AssignmentTypeSecondary  = "secondary"
	AssignmentTypeAdditional = "additional"
)

// ReviewAssignment binds one reviewer to one submission with a deadline and
// a lifecycle status. Rows are never deleted, only cancelled.
//
// Active is 1 while the assignment is in a non-terminal state and NULL once
// completed or cancelled. MySQL ignores NULLs in unique indexes, so
// uq_active_assignment enforces at most one active assignment per
// (submission, reviewer) pair while allowing any number of terminal rows.
type ReviewAssignment struct {
	AssignmentID    int        `gorm:"primaryKey;column:assignment_id" json:"assignment_id"`
	SubmissionID    int        `gorm:"column:submission_id;uniqueIndex:uq_active_assignment" json:"submission_id"`
	ReviewerID      int        `gorm:"column:reviewer_id;uniqueIndex:uq_active_assignment" json:"reviewer_id"`
	AssignedBy      int        `gorm:"column:assigned_by" json:"assigned_by"`
	AssignmentType  string     `gorm:"column:assignment_type" json:"assignment_type"`
	SkillMatchScore *float64   `gorm:"column:skill_match_score" json:"skill_match_score,omitempty"`
	Deadline        time.Time  `gorm:"column:deadline" json:"deadline"`
	Status          string     `gorm:"column:status" json:"status"`
	Active          *int8      `gorm:"column:active;uniqueIndex:uq_active_assignment" json:"-"`
	Notes           *string    `gorm:"column:notes" json:"notes,omitempty"`
	AssignedAt      time.Time  `gorm:"column:assigned_at" json:"assigned_at"`
	StartedAt       *time.Time `gorm:"column:started_at" json:"started_at,omitempty"`
	CompletedAt     *time.Time `gorm:"column:completed_at" json:"completed_at,omitempty"`
	CancelledAt     *time.Time `gorm:"column:cancelled_at" json:"cancelled_at,omitempty"`

	// Relations
	Reviewer   *User       `gorm:"foreignKey:ReviewerID" json:"reviewer,omitempty"`
	Submission *Submission `gorm:"foreignKey:SubmissionID" json:"submission,omitempty"`
}

// TableName specifies the table name for ReviewAssignment.
func (ReviewAssignment) TableName() string {
	return "review_assignments"
}

// ActiveMarker is the value stored in the active column for non-terminal
// assignments.
func ActiveMarker() *int8 {
	v := int8(1)
	return &v
}

// IsTerminal reports whether the stored status allows no further transition.
func (a *ReviewAssignment) IsTerminal() bool {
	return a.Status == AssignmentStatusCompleted || a.Status == AssignmentStatusCancelled
}

// EffectiveStatus returns the status as seen by callers: the stored status,
// or overdue when the deadline has passed and the assignment is still open.
func (a *ReviewAssignment) EffectiveStatus(now time.Time) string {
	if !a.IsTerminal() && now.After(a.Deadline) {
		return AssignmentStatusOverdue
	}
	return a.Status
}

// CanTransitionTo reports whether target is a legal forward transition from
// the current stored status.
func (a *ReviewAssignment) CanTransitionTo(target string) bool {
	switch target {
	case AssignmentStatusInProgress:
		return a.Status == AssignmentStatusAssigned
	case AssignmentStatusCompleted:
		return a.Status == AssignmentStatusInProgress
	case AssignmentStatusCancelled:
		return a.Status == AssignmentStatusAssigned || a.Status == AssignmentStatusInProgress
	default:
		return false
	}
}

// ValidAssignmentType reports whether t is one of the known assignment types.
func ValidAssignmentType(t string) bool {
	switch t {
	case AssignmentTypePrimary, AssignmentTypeSecondary, AssignmentTypeAdditional:
		return true
	}
	return false
}
