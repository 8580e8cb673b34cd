package services

import (
	"context"
	"database/sql/driver"
	"errors"
	"regexp"
	"testing"
	"time"

	"thesis-review-api/models"
)

func assignmentRow(id, submissionID, reviewerID int64, status string, deadline time.Time) *queryStep {
	return &queryStep{
		kind:    kindQuery,
		pattern: regexp.MustCompile("SELECT \\* FROM `review_assignments` WHERE assignment_id = \\?"),
		columns: []string{"assignment_id", "submission_id", "reviewer_id", "status", "deadline", "active"},
		rows: [][]driver.Value{
			{id, submissionID, reviewerID, status, deadline, int64(1)},
		},
	}
}

func TestUpdateStatusAssignedToInProgress(t *testing.T) {
	deadline := time.Now().Add(72 * time.Hour)
	steps := []*queryStep{
		assignmentRow(1, 10, 5, models.AssignmentStatusAssigned, deadline),
		{
			kind:    kindExec,
			pattern: regexp.MustCompile("UPDATE `review_assignments` SET"),
		},
	}
	db, state, cleanup := newScriptedGormDB(t, steps)
	defer cleanup()

	svc := NewAssignmentService(db)
	assignment, err := svc.UpdateStatus(context.Background(), 1, models.AssignmentStatusInProgress)
	if err != nil {
		t.Fatalf("UpdateStatus returned error: %v", err)
	}
	if assignment.Status != models.AssignmentStatusInProgress {
		t.Fatalf("expected in_progress, got %s", assignment.Status)
	}
	if assignment.StartedAt == nil {
		t.Fatal("expected started_at to be set")
	}
	if err := state.verifyComplete(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestUpdateStatusRejectsSkippedTransition(t *testing.T) {
	deadline := time.Now().Add(72 * time.Hour)
	steps := []*queryStep{
		assignmentRow(1, 10, 5, models.AssignmentStatusAssigned, deadline),
	}
	db, state, cleanup := newScriptedGormDB(t, steps)
	defer cleanup()

	svc := NewAssignmentService(db)
	_, err := svc.UpdateStatus(context.Background(), 1, models.AssignmentStatusCompleted)

	var transitionErr *InvalidStateTransitionError
	if !errors.As(err, &transitionErr) {
		t.Fatalf("expected InvalidStateTransitionError, got %v", err)
	}
	if err := state.verifyComplete(); err != nil {
		t.Fatalf("no update must be issued on an illegal transition: %v", err)
	}
}

func TestUpdateStatusRejectsOverdueWithoutTouchingDB(t *testing.T) {
	db, state, cleanup := newScriptedGormDB(t, nil)
	defer cleanup()

	svc := NewAssignmentService(db)
	_, err := svc.UpdateStatus(context.Background(), 1, models.AssignmentStatusOverdue)

	var transitionErr *InvalidStateTransitionError
	if !errors.As(err, &transitionErr) {
		t.Fatalf("expected InvalidStateTransitionError, got %v", err)
	}
	if err := state.verifyComplete(); err != nil {
		t.Fatalf("overdue must be rejected before any query: %v", err)
	}
}

func TestCancelCompletedAssignmentFails(t *testing.T) {
	deadline := time.Now().Add(-time.Hour)
	steps := []*queryStep{
		assignmentRow(1, 10, 5, models.AssignmentStatusCompleted, deadline),
	}
	db, state, cleanup := newScriptedGormDB(t, steps)
	defer cleanup()

	svc := NewAssignmentService(db)
	_, err := svc.Cancel(context.Background(), 1)

	var transitionErr *InvalidStateTransitionError
	if !errors.As(err, &transitionErr) {
		t.Fatalf("expected InvalidStateTransitionError, got %v", err)
	}
	if err := state.verifyComplete(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestCancelOpenAssignment(t *testing.T) {
	deadline := time.Now().Add(72 * time.Hour)
	steps := []*queryStep{
		assignmentRow(1, 10, 5, models.AssignmentStatusInProgress, deadline),
		{
			kind:    kindExec,
			pattern: regexp.MustCompile("UPDATE `review_assignments` SET"),
		},
	}
	db, state, cleanup := newScriptedGormDB(t, steps)
	defer cleanup()

	svc := NewAssignmentService(db)
	assignment, err := svc.Cancel(context.Background(), 1)
	if err != nil {
		t.Fatalf("Cancel returned error: %v", err)
	}
	if assignment.Status != models.AssignmentStatusCancelled {
		t.Fatalf("expected cancelled, got %s", assignment.Status)
	}
	if assignment.Active != nil {
		t.Fatal("expected the active marker to be cleared")
	}
	if err := state.verifyComplete(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestCancelLosingRaceIsRejected(t *testing.T) {
	deadline := time.Now().Add(72 * time.Hour)
	steps := []*queryStep{
		assignmentRow(1, 10, 5, models.AssignmentStatusInProgress, deadline),
		{
			// The status read in the transaction is part of the WHERE clause;
			// a concurrent completion leaves zero rows to cancel.
			kind:    kindExec,
			pattern: regexp.MustCompile("UPDATE `review_assignments` SET .* WHERE assignment_id = \\? AND status = \\?"),
			result:  scriptedResult{rowsAffected: 0},
		},
	}
	db, state, cleanup := newScriptedGormDB(t, steps)
	defer cleanup()

	svc := NewAssignmentService(db)
	_, err := svc.Cancel(context.Background(), 1)

	var transitionErr *InvalidStateTransitionError
	if !errors.As(err, &transitionErr) {
		t.Fatalf("expected InvalidStateTransitionError when the row changed underneath, got %v", err)
	}
	if err := state.verifyComplete(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestUpdateStatusLosingRaceIsRejected(t *testing.T) {
	deadline := time.Now().Add(72 * time.Hour)
	steps := []*queryStep{
		assignmentRow(1, 10, 5, models.AssignmentStatusInProgress, deadline),
		{
			kind:    kindExec,
			pattern: regexp.MustCompile("UPDATE `review_assignments` SET .* WHERE assignment_id = \\? AND status = \\?"),
			result:  scriptedResult{rowsAffected: 0},
		},
	}
	db, state, cleanup := newScriptedGormDB(t, steps)
	defer cleanup()

	svc := NewAssignmentService(db)
	_, err := svc.UpdateStatus(context.Background(), 1, models.AssignmentStatusCompleted)

	var transitionErr *InvalidStateTransitionError
	if !errors.As(err, &transitionErr) {
		t.Fatalf("expected InvalidStateTransitionError when the row changed underneath, got %v", err)
	}
	if err := state.verifyComplete(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

// eligibleCreateSteps scripts the snapshot reads of assignment-time
// eligibility re-validation for one reviewer.
func eligibleCreateSteps(submissionID, reviewerID int64) []*queryStep {
	return []*queryStep{
		{
			kind:    kindQuery,
			pattern: regexp.MustCompile("SELECT \\* FROM `submissions` WHERE submission_id = \\?"),
			columns: []string{"submission_id", "title", "submitter_id", "supervisor_id"},
			rows:    [][]driver.Value{{submissionID, "Capstone thesis", int64(200), int64(100)}},
		},
		{
			kind:    kindQuery,
			pattern: regexp.MustCompile("SELECT \\* FROM `submission_skills`"),
			columns: []string{"submission_skill_id", "submission_id", "skill"},
			rows:    [][]driver.Value{{int64(1), submissionID, "go"}},
		},
		{
			kind:    kindQuery,
			pattern: regexp.MustCompile("SELECT \\* FROM `users` WHERE user_id = \\?"),
			columns: []string{"user_id", "user_fname", "role_id"},
			rows:    [][]driver.Value{{reviewerID, "Reviewer", int64(models.RoleReviewer)}},
		},
		{
			kind:    kindQuery,
			pattern: regexp.MustCompile("SELECT \\* FROM `reviewer_skills`"),
			columns: []string{"reviewer_skill_id", "user_id", "skill", "level"},
			rows:    [][]driver.Value{{int64(1), reviewerID, "go", int64(4)}},
		},
		{
			kind:    kindQuery,
			pattern: regexp.MustCompile("SELECT reviewer_id, COUNT\\(\\*\\) AS total FROM `review_assignments`"),
			columns: []string{"reviewer_id", "total"},
			rows:    [][]driver.Value{},
		},
		{
			kind:    kindQuery,
			pattern: regexp.MustCompile("SELECT \\* FROM `reviewer_stats`"),
			columns: []string{"user_id", "completed_assignments"},
			rows:    [][]driver.Value{},
		},
	}
}

func TestCreateMapsDuplicateKeyToDuplicateAssignment(t *testing.T) {
	steps := append(eligibleCreateSteps(10, 5), &queryStep{
		kind:    kindExec,
		pattern: regexp.MustCompile("INSERT INTO `review_assignments`"),
		err:     errors.New("Error 1062 (23000): Duplicate entry '10-5-1' for key 'uq_active_assignment'"),
	})
	db, state, cleanup := newScriptedGormDB(t, steps)
	defer cleanup()

	svc := NewAssignmentService(db)
	_, err := svc.Create(context.Background(), CreateAssignmentInput{
		SubmissionID:   10,
		ReviewerID:     5,
		AssignedBy:     7,
		AssignmentType: models.AssignmentTypePrimary,
		Deadline:       time.Now().Add(72 * time.Hour),
	})

	var duplicateErr *DuplicateAssignmentError
	if !errors.As(err, &duplicateErr) {
		t.Fatalf("expected DuplicateAssignmentError, got %v", err)
	}
	if duplicateErr.SubmissionID != 10 || duplicateErr.ReviewerID != 5 {
		t.Fatalf("unexpected error detail: %+v", duplicateErr)
	}
	if err := state.verifyComplete(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

// autoAssignPoolSteps scripts loading the submission context and a
// three-reviewer pool with descending skill levels, so the ranked order is
// reviewer 1, 2, 3.
func autoAssignPoolSteps() []*queryStep {
	return []*queryStep{
		{
			kind:    kindQuery,
			pattern: regexp.MustCompile("SELECT \\* FROM `submissions` WHERE submission_id = \\?"),
			columns: []string{"submission_id", "title", "submitter_id", "supervisor_id"},
			rows:    [][]driver.Value{{int64(10), "Capstone thesis", int64(200), int64(100)}},
		},
		{
			kind:    kindQuery,
			pattern: regexp.MustCompile("SELECT \\* FROM `submission_skills`"),
			columns: []string{"submission_skill_id", "submission_id", "skill"},
			rows:    [][]driver.Value{{int64(1), int64(10), "go"}},
		},
		{
			kind:    kindQuery,
			pattern: regexp.MustCompile("SELECT \\* FROM `users` WHERE role_id = \\?"),
			columns: []string{"user_id", "user_fname", "role_id"},
			rows: [][]driver.Value{
				{int64(1), "Anna", int64(models.RoleReviewer)},
				{int64(2), "Ben", int64(models.RoleReviewer)},
				{int64(3), "Cara", int64(models.RoleReviewer)},
			},
		},
		{
			kind:    kindQuery,
			pattern: regexp.MustCompile("SELECT \\* FROM `reviewer_skills`"),
			columns: []string{"reviewer_skill_id", "user_id", "skill", "level"},
			rows: [][]driver.Value{
				{int64(1), int64(1), "go", int64(4)},
				{int64(2), int64(2), "go", int64(3)},
				{int64(3), int64(3), "go", int64(2)},
			},
		},
		{
			kind:    kindQuery,
			pattern: regexp.MustCompile("SELECT reviewer_id, COUNT\\(\\*\\) AS total FROM `review_assignments`"),
			columns: []string{"reviewer_id", "total"},
			rows:    [][]driver.Value{},
		},
		{
			kind:    kindQuery,
			pattern: regexp.MustCompile("SELECT \\* FROM `reviewer_stats`"),
			columns: []string{"user_id", "completed_assignments"},
			rows:    [][]driver.Value{},
		},
	}
}

func TestAutoAssignCreatesRequiredCountInRankedOrder(t *testing.T) {
	steps := autoAssignPoolSteps()
	// Top two candidates are re-validated and inserted, in ranked order.
	for _, reviewerID := range []int64{1, 2} {
		steps = append(steps, eligibleCreateSteps(10, reviewerID)...)
		steps = append(steps, &queryStep{
			kind:    kindExec,
			pattern: regexp.MustCompile("INSERT INTO `review_assignments`"),
		})
	}
	db, state, cleanup := newScriptedGormDB(t, steps)
	defer cleanup()

	svc := NewAssignmentService(db)
	result, err := svc.AutoAssign(context.Background(), AutoAssignInput{
		SubmissionID:  10,
		AssignedBy:    7,
		MaxWorkload:   3,
		RequiredCount: 2,
		Deadline:      time.Now().Add(72 * time.Hour),
	})
	if err != nil {
		t.Fatalf("AutoAssign returned error: %v", err)
	}
	if len(result.Created) != 2 {
		t.Fatalf("expected exactly 2 assignments, got %d", len(result.Created))
	}
	if result.Created[0].ReviewerID != 1 || result.Created[1].ReviewerID != 2 {
		t.Fatalf("expected reviewers 1 and 2 in ranked order, got %d and %d",
			result.Created[0].ReviewerID, result.Created[1].ReviewerID)
	}
	if result.Created[0].AssignmentType != models.AssignmentTypePrimary ||
		result.Created[1].AssignmentType != models.AssignmentTypeSecondary {
		t.Fatalf("expected primary then secondary, got %s and %s",
			result.Created[0].AssignmentType, result.Created[1].AssignmentType)
	}
	if err := state.verifyComplete(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestCreateRejectsIneligibleReviewer(t *testing.T) {
	steps := eligibleCreateSteps(10, 5)
	// Same reviewer, but already at the workload cap.
	steps[4].rows = [][]driver.Value{{int64(5), int64(5)}}

	db, state, cleanup := newScriptedGormDB(t, steps)
	defer cleanup()

	svc := NewAssignmentService(db)
	_, err := svc.Create(context.Background(), CreateAssignmentInput{
		SubmissionID:   10,
		ReviewerID:     5,
		AssignedBy:     7,
		AssignmentType: models.AssignmentTypePrimary,
		Deadline:       time.Now().Add(72 * time.Hour),
		MaxWorkload:    5,
	})

	var ineligibleErr *IneligibleReviewerError
	if !errors.As(err, &ineligibleErr) {
		t.Fatalf("expected IneligibleReviewerError, got %v", err)
	}
	if len(ineligibleErr.Reasons) == 0 {
		t.Fatal("expected ineligibility reasons")
	}
	if err := state.verifyComplete(); err != nil {
		t.Fatalf("no insert may happen for an ineligible reviewer: %v", err)
	}
}
