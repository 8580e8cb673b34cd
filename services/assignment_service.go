package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"thesis-review-api/config"
	"thesis-review-api/models"
)

// AssignmentService owns assignment creation, status transitions,
// cancellation and batch assignment. Status changes are forward-only;
// overdue is derived from the deadline and never stored.
type AssignmentService struct {
	db       *gorm.DB
	matching *MatchingService
}

func NewAssignmentService(db *gorm.DB) *AssignmentService {
	return &AssignmentService{db: db, matching: NewMatchingService(db)}
}

// CreateAssignmentInput carries everything needed to bind one reviewer to
// one submission.
type CreateAssignmentInput struct {
	SubmissionID    int       `json:"submission_id"`
	ReviewerID      int       `json:"reviewer_id"`
	AssignedBy      int       `json:"-"`
	AssignmentType  string    `json:"assignment_type"`
	Deadline        time.Time `json:"deadline"`
	SkillMatchScore *float64  `json:"skill_match_score,omitempty"`
	Notes           *string   `json:"notes,omitempty"`
	MaxWorkload     int       `json:"max_workload,omitempty"`
}

// Create re-validates eligibility at call time (suggestions may be stale),
// then inserts the assignment. The unique index on the active
// (submission, reviewer) pair serializes concurrent creates; violations
// surface as DuplicateAssignmentError.
func (s *AssignmentService) Create(ctx context.Context, in CreateAssignmentInput) (*models.ReviewAssignment, error) {
	if err := validateCreateInput(in); err != nil {
		return nil, err
	}

	suggestion, err := s.matching.RankOne(ctx, in.SubmissionID, in.ReviewerID,
		MatchConstraints{MaxWorkload: in.MaxWorkload})
	if err != nil {
		return nil, err
	}
	if !suggestion.IsEligible {
		return nil, &IneligibleReviewerError{
			ReviewerID: in.ReviewerID,
			Reasons:    suggestion.IneligibilityReasons,
		}
	}

	skillScore := suggestion.SkillMatchScore
	if in.SkillMatchScore != nil {
		skillScore = *in.SkillMatchScore
	}

	now := time.Now()
	assignment := models.ReviewAssignment{
		SubmissionID:    in.SubmissionID,
		ReviewerID:      in.ReviewerID,
		AssignedBy:      in.AssignedBy,
		AssignmentType:  in.AssignmentType,
		SkillMatchScore: &skillScore,
		Deadline:        in.Deadline,
		Status:          models.AssignmentStatusAssigned,
		Active:          models.ActiveMarker(),
		Notes:           in.Notes,
		AssignedAt:      now,
	}

	if err := s.db.WithContext(ctx).Create(&assignment).Error; err != nil {
		if isDuplicateKey(err) {
			return nil, &DuplicateAssignmentError{
				SubmissionID: in.SubmissionID,
				ReviewerID:   in.ReviewerID,
			}
		}
		return nil, fmt.Errorf("failed to create assignment: %w", err)
	}
	return &assignment, nil
}

// BulkOutcome is the per-item result of a best-effort batch create.
type BulkOutcome struct {
	Index      int                      `json:"index"`
	Assignment *models.ReviewAssignment `json:"assignment,omitempty"`
	Error      string                   `json:"error,omitempty"`
	Ok         bool                     `json:"ok"`
}

// BulkCreate attempts every item independently. One failure never aborts the
// batch; callers always get the full outcome list.
func (s *AssignmentService) BulkCreate(ctx context.Context, items []CreateAssignmentInput) []BulkOutcome {
	outcomes := make([]BulkOutcome, 0, len(items))
	for i, item := range items {
		assignment, err := s.Create(ctx, item)
		outcome := BulkOutcome{Index: i, Ok: err == nil, Assignment: assignment}
		if err != nil {
			outcome.Error = err.Error()
		}
		outcomes = append(outcomes, outcome)
	}
	return outcomes
}

// AutoAssignInput drives unattended assignment of the best candidates.
type AutoAssignInput struct {
	SubmissionID              int
	AssignedBy                int
	MaxWorkload               int
	PrioritizeHighPerformance bool
	TopicSkillTags            []string
	RequiredCount             int
	Deadline                  time.Time
}

// SkippedCandidate records why an eligible-looking candidate was not
// assigned during auto-assignment.
type SkippedCandidate struct {
	ReviewerID int      `json:"reviewer_id"`
	Reasons    []string `json:"reasons"`
}

// AutoAssignResult reports both sides of a best-effort auto-assignment.
type AutoAssignResult struct {
	Created []*models.ReviewAssignment `json:"created"`
	Skipped []SkippedCandidate         `json:"skipped"`
}

// AutoAssign ranks the pool and assigns the top candidates in order until
// requiredCount assignments exist. Candidates that became ineligible between
// ranking and assignment are reported as skipped, never as a hard failure.
func (s *AssignmentService) AutoAssign(ctx context.Context, in AutoAssignInput) (*AutoAssignResult, error) {
	if in.RequiredCount <= 0 {
		return nil, &ValidationError{Field: "required_count", Message: "must be at least 1"}
	}
	if in.Deadline.IsZero() {
		return nil, &ValidationError{Field: "deadline", Message: "deadline is required"}
	}

	sub, err := s.matching.SubmissionContext(in.SubmissionID)
	if err != nil {
		return nil, err
	}
	if len(in.TopicSkillTags) > 0 {
		sub.RequiredSkills = in.TopicSkillTags
	}
	pool, err := s.matching.ReviewerPool(ctx)
	if err != nil {
		return nil, err
	}

	ranked := RankReviewers(ctx, config.Matching(), sub, pool, MatchConstraints{
		MaxWorkload:               in.MaxWorkload,
		PrioritizeHighPerformance: in.PrioritizeHighPerformance,
	})

	result := &AutoAssignResult{
		Created: []*models.ReviewAssignment{},
		Skipped: []SkippedCandidate{},
	}

	assignmentType := models.AssignmentTypePrimary
	for _, candidate := range ranked.Suggestions {
		if len(result.Created) >= in.RequiredCount {
			break
		}
		if !candidate.IsEligible {
			result.Skipped = append(result.Skipped, SkippedCandidate{
				ReviewerID: candidate.ReviewerID,
				Reasons:    candidate.IneligibilityReasons,
			})
			continue
		}

		score := candidate.SkillMatchScore
		assignment, err := s.Create(ctx, CreateAssignmentInput{
			SubmissionID:    in.SubmissionID,
			ReviewerID:      candidate.ReviewerID,
			AssignedBy:      in.AssignedBy,
			AssignmentType:  assignmentType,
			Deadline:        in.Deadline,
			SkillMatchScore: &score,
			MaxWorkload:     in.MaxWorkload,
		})
		if err != nil {
			result.Skipped = append(result.Skipped, SkippedCandidate{
				ReviewerID: candidate.ReviewerID,
				Reasons:    []string{err.Error()},
			})
			continue
		}
		result.Created = append(result.Created, assignment)
		assignmentType = models.AssignmentTypeSecondary
	}

	if len(result.Created) < in.RequiredCount {
		log := fmt.Sprintf("only %d of %d requested assignments could be created",
			len(result.Created), in.RequiredCount)
		result.Skipped = append(result.Skipped, SkippedCandidate{Reasons: []string{log}})
	}
	return result, nil
}

// UpdateStatus applies a legal forward transition: assigned to in_progress,
// or in_progress to completed. Requesting overdue is rejected; it is a
// derived view, not a stored state.
func (s *AssignmentService) UpdateStatus(ctx context.Context, assignmentID int, target string) (*models.ReviewAssignment, error) {
	if target == models.AssignmentStatusOverdue {
		return nil, &InvalidStateTransitionError{
			Entity: "assignment", To: target,
			Reason: "overdue is derived from the deadline and cannot be set",
		}
	}
	if target != models.AssignmentStatusInProgress && target != models.AssignmentStatusCompleted {
		return nil, &ValidationError{Field: "status",
			Message: fmt.Sprintf("unknown target status '%s'", target)}
	}

	var updated *models.ReviewAssignment
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		assignment, err := lockAssignment(tx, assignmentID)
		if err != nil {
			return err
		}
		if !assignment.CanTransitionTo(target) {
			return &InvalidStateTransitionError{
				Entity: "assignment",
				From:   assignment.Status,
				To:     target,
			}
		}

		now := time.Now()
		updates := map[string]interface{}{"status": target}
		switch target {
		case models.AssignmentStatusInProgress:
			updates["started_at"] = now
		case models.AssignmentStatusCompleted:
			updates["completed_at"] = now
			updates["active"] = nil
		}

		// The status read above is re-asserted in the WHERE clause so an
		// overlapping transaction that already moved the row cannot be
		// overwritten; zero affected rows means we lost that race.
		res := tx.Model(&models.ReviewAssignment{}).
			Where("assignment_id = ? AND status = ?", assignmentID, assignment.Status).
			Updates(updates)
		if res.Error != nil {
			return fmt.Errorf("failed to update assignment status: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return &InvalidStateTransitionError{
				Entity: "assignment",
				From:   assignment.Status,
				To:     target,
				Reason: "the assignment was changed by another session; reload and retry",
			}
		}

		assignment.Status = target
		switch target {
		case models.AssignmentStatusInProgress:
			assignment.StartedAt = &now
		case models.AssignmentStatusCompleted:
			assignment.CompletedAt = &now
			assignment.Active = nil
		}
		updated = assignment
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// Cancel moves an open assignment to the terminal cancelled state. Completed
// assignments cannot be cancelled.
func (s *AssignmentService) Cancel(ctx context.Context, assignmentID int) (*models.ReviewAssignment, error) {
	var updated *models.ReviewAssignment
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		assignment, err := lockAssignment(tx, assignmentID)
		if err != nil {
			return err
		}
		if !assignment.CanTransitionTo(models.AssignmentStatusCancelled) {
			return &InvalidStateTransitionError{
				Entity: "assignment",
				From:   assignment.Status,
				To:     models.AssignmentStatusCancelled,
			}
		}

		now := time.Now()
		res := tx.Model(&models.ReviewAssignment{}).
			Where("assignment_id = ? AND status = ?", assignmentID, assignment.Status).
			Updates(map[string]interface{}{
				"status":       models.AssignmentStatusCancelled,
				"cancelled_at": now,
				"active":       nil,
			})
		if res.Error != nil {
			return fmt.Errorf("failed to cancel assignment: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			// Somebody completed or cancelled the assignment after our read.
			return &InvalidStateTransitionError{
				Entity: "assignment",
				From:   assignment.Status,
				To:     models.AssignmentStatusCancelled,
				Reason: "the assignment was changed by another session; reload and retry",
			}
		}

		assignment.Status = models.AssignmentStatusCancelled
		assignment.CancelledAt = &now
		assignment.Active = nil
		updated = assignment
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// Get loads one assignment.
func (s *AssignmentService) Get(ctx context.Context, assignmentID int) (*models.ReviewAssignment, error) {
	var assignment models.ReviewAssignment
	err := s.db.WithContext(ctx).Preload("Reviewer").
		Where("assignment_id = ?", assignmentID).
		First(&assignment).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("assignment %d: %w", assignmentID, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to load assignment %d: %w", assignmentID, err)
	}
	return &assignment, nil
}

// ListBySubmission returns all assignments of a submission, newest first.
func (s *AssignmentService) ListBySubmission(ctx context.Context, submissionID int) ([]models.ReviewAssignment, error) {
	var assignments []models.ReviewAssignment
	err := s.db.WithContext(ctx).Preload("Reviewer").
		Where("submission_id = ?", submissionID).
		Order("assigned_at DESC").
		Find(&assignments).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list assignments for submission %d: %w", submissionID, err)
	}
	return assignments, nil
}

// ListByReviewer returns all assignments of a reviewer, newest first.
func (s *AssignmentService) ListByReviewer(ctx context.Context, reviewerID int) ([]models.ReviewAssignment, error) {
	var assignments []models.ReviewAssignment
	err := s.db.WithContext(ctx).Preload("Submission").
		Where("reviewer_id = ?", reviewerID).
		Order("assigned_at DESC").
		Find(&assignments).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list assignments for reviewer %d: %w", reviewerID, err)
	}
	return assignments, nil
}

func validateCreateInput(in CreateAssignmentInput) error {
	if in.SubmissionID <= 0 {
		return &ValidationError{Field: "submission_id", Message: "must be a positive id"}
	}
	if in.ReviewerID <= 0 {
		return &ValidationError{Field: "reviewer_id", Message: "must be a positive id"}
	}
	if !models.ValidAssignmentType(in.AssignmentType) {
		return &ValidationError{Field: "assignment_type",
			Message: fmt.Sprintf("unknown type '%s' (expected primary, secondary or additional)", in.AssignmentType)}
	}
	if in.Deadline.IsZero() {
		return &ValidationError{Field: "deadline", Message: "deadline is required"}
	}
	if in.SkillMatchScore != nil && (*in.SkillMatchScore < 0 || *in.SkillMatchScore > 1) {
		return &ValidationError{Field: "skill_match_score", Message: "must be between 0 and 1"}
	}
	return nil
}

func lockAssignment(tx *gorm.DB, assignmentID int) (*models.ReviewAssignment, error) {
	var assignment models.ReviewAssignment
	err := tx.Where("assignment_id = ?", assignmentID).First(&assignment).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("assignment %d: %w", assignmentID, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to load assignment %d: %w", assignmentID, err)
	}
	return &assignment, nil
}
