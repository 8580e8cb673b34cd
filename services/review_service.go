package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"thesis-review-api/models"
)

// ReviewService owns the draft, submit and withdraw lifecycle of reviews. The
// overall score is recomputed from criterion scores on every read and write;
// client-side previews are never authoritative.
type ReviewService struct {
	db *gorm.DB
}

func NewReviewService(db *gorm.DB) *ReviewService {
	return &ReviewService{db: db}
}

// ReviewWithScoring pairs a review with the freshly computed aggregation.
type ReviewWithScoring struct {
	Review   *models.Review `json:"review"`
	Warnings []string       `json:"warnings,omitempty"`
}

// CriterionScoreInput is one rubric score submitted by a reviewer.
type CriterionScoreInput struct {
	CriterionID int     `json:"criterion_id"`
	Score       float64 `json:"score"`
	Comment     *string `json:"comment,omitempty"`
}

// UpdateDraftInput carries a draft edit. ExpectedVersion, when set, enables
// the optimistic stale-write check.
type UpdateDraftInput struct {
	CriteriaScores   []CriterionScoreInput `json:"criteria_scores"`
	OverallComment   *string               `json:"overall_comment,omitempty"`
	Recommendation   *string               `json:"recommendation,omitempty"`
	TimeSpentMinutes *int                  `json:"time_spent_minutes,omitempty"`
	ExpectedVersion  *int                  `json:"expected_version,omitempty"`
}

// CreateDraft opens a review for an assignment. At most one non-discarded
// review may exist per assignment; a second create fails with AlreadyExists.
// Creating the draft also moves a freshly assigned assignment to
// in_progress, since the reviewer has evidently started.
func (s *ReviewService) CreateDraft(ctx context.Context, assignmentID, reviewerID int) (*models.Review, error) {
	var created *models.Review
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		assignment, err := lockAssignment(tx, assignmentID)
		if err != nil {
			return err
		}
		if reviewerID > 0 && assignment.ReviewerID != reviewerID {
			return fmt.Errorf("assignment %d does not belong to reviewer %d: %w",
				assignmentID, reviewerID, ErrNotFound)
		}
		if assignment.IsTerminal() {
			return &InvalidStateTransitionError{
				Entity: "review", From: assignment.Status, To: models.ReviewStatusDraft,
				Reason: "the assignment is no longer open",
			}
		}

		var existing int64
		err = tx.Model(&models.Review{}).
			Where("assignment_id = ? AND active = 1", assignmentID).
			Count(&existing).Error
		if err != nil {
			return fmt.Errorf("failed to check existing reviews: %w", err)
		}
		if existing > 0 {
			return &AlreadyExistsError{
				Entity:  "review",
				Message: fmt.Sprintf("an active review already exists for assignment %d", assignmentID),
			}
		}

		now := time.Now()
		review := models.Review{
			AssignmentID: assignmentID,
			Reference:    uuid.NewString(),
			Status:       models.ReviewStatusDraft,
			Active:       models.ActiveMarker(),
			Version:      1,
			CreateAt:     now,
			UpdateAt:     now,
		}
		if err := tx.Create(&review).Error; err != nil {
			if isDuplicateKey(err) {
				return &AlreadyExistsError{
					Entity:  "review",
					Message: fmt.Sprintf("an active review already exists for assignment %d", assignmentID),
				}
			}
			return fmt.Errorf("failed to create review draft: %w", err)
		}

		if assignment.Status == models.AssignmentStatusAssigned {
			if err := tx.Model(&models.ReviewAssignment{}).
				Where("assignment_id = ?", assignmentID).
				Updates(map[string]interface{}{
					"status":     models.AssignmentStatusInProgress,
					"started_at": now,
				}).Error; err != nil {
				return fmt.Errorf("failed to start assignment: %w", err)
			}
		}

		created = &review
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// UpdateDraft edits a draft. A non-nil CriteriaScores replaces the stored
// score set wholesale (an empty slice clears it); nil leaves the stored
// scores untouched so metadata-only edits are safe. Every score must lie
// within its criterion's range; the overall score is recomputed server-side,
// never taken from the client.
func (s *ReviewService) UpdateDraft(ctx context.Context, reviewID int, in UpdateDraftInput) (*ReviewWithScoring, error) {
	criteria, err := s.ActiveCriteria(ctx)
	if err != nil {
		return nil, err
	}
	if err := validateScores(criteria, in.CriteriaScores); err != nil {
		return nil, err
	}
	if in.Recommendation != nil && *in.Recommendation != "" && !models.ValidRecommendation(*in.Recommendation) {
		return nil, &ValidationError{Field: "recommendation",
			Message: fmt.Sprintf("unknown recommendation '%s'", *in.Recommendation)}
	}

	var out *ReviewWithScoring
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		review, err := lockReview(tx, reviewID)
		if err != nil {
			return err
		}
		if review.Status != models.ReviewStatusDraft {
			return &InvalidStateTransitionError{
				Entity: "review", From: review.Status, To: models.ReviewStatusDraft,
				Reason: "only drafts can be edited",
			}
		}
		if in.ExpectedVersion != nil && *in.ExpectedVersion != review.Version {
			return &ConflictError{Message: fmt.Sprintf(
				"review was modified by another session (expected version %d, current %d); reload and retry",
				*in.ExpectedVersion, review.Version)}
		}

		var scores []models.ReviewCriterionScore
		if in.CriteriaScores != nil {
			if err := tx.Where("review_id = ?", reviewID).
				Delete(&models.ReviewCriterionScore{}).Error; err != nil {
				return fmt.Errorf("failed to clear previous scores: %w", err)
			}

			scores = make([]models.ReviewCriterionScore, 0, len(in.CriteriaScores))
			for _, sc := range in.CriteriaScores {
				scores = append(scores, models.ReviewCriterionScore{
					ReviewID:    reviewID,
					CriterionID: sc.CriterionID,
					Score:       sc.Score,
					Comment:     sc.Comment,
				})
			}
			if len(scores) > 0 {
				if err := tx.Create(&scores).Error; err != nil {
					return fmt.Errorf("failed to save criterion scores: %w", err)
				}
			}
		} else {
			if err := tx.Where("review_id = ?", reviewID).Find(&scores).Error; err != nil {
				return fmt.Errorf("failed to load criterion scores: %w", err)
			}
		}

		aggregation := AggregateOverall(criteria, scores)

		now := time.Now()
		updates := map[string]interface{}{
			"overall_score": aggregation.Overall,
			"version":       review.Version + 1,
			"update_at":     now,
		}
		if in.OverallComment != nil {
			updates["overall_comment"] = *in.OverallComment
		}
		if in.Recommendation != nil {
			updates["recommendation"] = *in.Recommendation
		}
		if in.TimeSpentMinutes != nil {
			updates["time_spent_minutes"] = *in.TimeSpentMinutes
		}

		if err := guardedReviewUpdate(tx, reviewID, review.Version, updates); err != nil {
			return err
		}

		review.OverallScore = aggregation.Overall
		review.Version++
		review.UpdateAt = now
		if in.OverallComment != nil {
			review.OverallComment = in.OverallComment
		}
		if in.Recommendation != nil {
			review.Recommendation = in.Recommendation
		}
		if in.TimeSpentMinutes != nil {
			review.TimeSpentMinutes = in.TimeSpentMinutes
		}
		review.Scores = scores

		out = &ReviewWithScoring{Review: review, Warnings: aggregation.Warnings}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Submit freezes a draft. Every active criterion must carry a score and the
// recommendation must be set; the overall score is recomputed one final
// time before the transition.
func (s *ReviewService) Submit(ctx context.Context, reviewID int) (*ReviewWithScoring, error) {
	criteria, err := s.ActiveCriteria(ctx)
	if err != nil {
		return nil, err
	}

	var out *ReviewWithScoring
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		review, err := lockReview(tx, reviewID)
		if err != nil {
			return err
		}
		if review.Status != models.ReviewStatusDraft {
			return &InvalidStateTransitionError{
				Entity: "review", From: review.Status, To: models.ReviewStatusSubmitted,
			}
		}

		var scores []models.ReviewCriterionScore
		if err := tx.Where("review_id = ?", reviewID).Find(&scores).Error; err != nil {
			return fmt.Errorf("failed to load criterion scores: %w", err)
		}

		scored := make(map[int]bool, len(scores))
		for _, sc := range scores {
			scored[sc.CriterionID] = true
		}
		for _, crit := range criteria {
			if !scored[crit.CriterionID] {
				return &ValidationError{
					Field:   "criteria_scores",
					Message: fmt.Sprintf("criterion '%s' has no score", crit.CriterionName),
				}
			}
		}
		if review.Recommendation == nil || *review.Recommendation == "" {
			return &ValidationError{Field: "recommendation", Message: "a recommendation is required before submitting"}
		}

		aggregation := AggregateOverall(criteria, scores)

		now := time.Now()
		if err := guardedReviewUpdate(tx, reviewID, review.Version, map[string]interface{}{
			"status":        models.ReviewStatusSubmitted,
			"overall_score": aggregation.Overall,
			"submitted_at":  now,
			"version":       review.Version + 1,
			"update_at":     now,
		}); err != nil {
			return err
		}

		review.Status = models.ReviewStatusSubmitted
		review.OverallScore = aggregation.Overall
		review.SubmittedAt = &now
		review.Version++
		review.UpdateAt = now
		review.Scores = scores

		out = &ReviewWithScoring{Review: review, Warnings: aggregation.Warnings}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Withdraw resets a submitted review to an editable draft, or discards a
// draft outright. The same row is reused in both cases; a withdrawal never
// creates a second review for the assignment. A review whose assignment was
// already completed can no longer be withdrawn.
func (s *ReviewService) Withdraw(ctx context.Context, reviewID int) (*models.Review, error) {
	var out *models.Review
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		review, err := lockReview(tx, reviewID)
		if err != nil {
			return err
		}

		assignment, err := lockAssignment(tx, review.AssignmentID)
		if err != nil {
			return err
		}
		if assignment.Status == models.AssignmentStatusCompleted {
			return &InvalidStateTransitionError{
				Entity: "review", From: review.Status, To: models.ReviewStatusDraft,
				Reason: "the assignment has already been completed",
			}
		}

		now := time.Now()
		switch review.Status {
		case models.ReviewStatusSubmitted:
			if err := guardedReviewUpdate(tx, reviewID, review.Version, map[string]interface{}{
				"status":       models.ReviewStatusDraft,
				"submitted_at": nil,
				"version":      review.Version + 1,
				"update_at":    now,
			}); err != nil {
				return err
			}
			review.Status = models.ReviewStatusDraft
			review.SubmittedAt = nil

		case models.ReviewStatusDraft:
			if err := guardedReviewUpdate(tx, reviewID, review.Version, map[string]interface{}{
				"status":    models.ReviewStatusDiscarded,
				"active":    nil,
				"version":   review.Version + 1,
				"update_at": now,
			}); err != nil {
				return err
			}
			review.Status = models.ReviewStatusDiscarded
			review.Active = nil

		default:
			return &InvalidStateTransitionError{
				Entity: "review", From: review.Status, To: models.ReviewStatusDraft,
				Reason: "only draft or submitted reviews can be withdrawn",
			}
		}

		review.Version++
		review.UpdateAt = now
		out = review
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Get loads a review with its scores and recomputes the overall score so the
// returned value can never diverge from the aggregation function.
func (s *ReviewService) Get(ctx context.Context, reviewID int) (*ReviewWithScoring, error) {
	var review models.Review
	err := s.db.WithContext(ctx).Preload("Scores").
		Where("review_id = ?", reviewID).
		First(&review).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("review %d: %w", reviewID, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to load review %d: %w", reviewID, err)
	}

	criteria, err := s.ActiveCriteria(ctx)
	if err != nil {
		return nil, err
	}
	aggregation := AggregateOverall(criteria, review.Scores)
	review.OverallScore = aggregation.Overall

	return &ReviewWithScoring{Review: &review, Warnings: aggregation.Warnings}, nil
}

// QuickEntry previews the overall score for a qualitative bucket. The
// canonical aggregation always wins over the anchor: once criterion scores
// exist the reconciled value equals the computed one.
func (s *ReviewService) QuickEntry(ctx context.Context, reviewID int, bucket string) (float64, []string, error) {
	current, err := s.Get(ctx, reviewID)
	if err != nil {
		return 0, nil, err
	}
	criteria, err := s.ActiveCriteria(ctx)
	if err != nil {
		return 0, nil, err
	}
	aggregation := AggregateOverall(criteria, current.Review.Scores)
	value, err := ReconcileQuickEntry(bucket, aggregation)
	if err != nil {
		return 0, nil, err
	}
	return value, aggregation.Warnings, nil
}

// ActiveCriteria returns the current rubric in display order.
func (s *ReviewService) ActiveCriteria(ctx context.Context) ([]models.ReviewCriterion, error) {
	var criteria []models.ReviewCriterion
	err := s.db.WithContext(ctx).
		Where("delete_at IS NULL").
		Order("display_order ASC, criterion_id ASC").
		Find(&criteria).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load review criteria: %w", err)
	}
	return criteria, nil
}

func validateScores(criteria []models.ReviewCriterion, scores []CriterionScoreInput) error {
	byID := make(map[int]models.ReviewCriterion, len(criteria))
	for _, crit := range criteria {
		byID[crit.CriterionID] = crit
	}
	seen := make(map[int]bool, len(scores))
	for _, sc := range scores {
		crit, ok := byID[sc.CriterionID]
		if !ok {
			return &ValidationError{Field: "criteria_scores",
				Message: fmt.Sprintf("criterion %d does not exist or is inactive", sc.CriterionID)}
		}
		if seen[sc.CriterionID] {
			return &ValidationError{Field: "criteria_scores",
				Message: fmt.Sprintf("criterion '%s' is scored twice", crit.CriterionName)}
		}
		seen[sc.CriterionID] = true
		if sc.Score < 0 || sc.Score > crit.MaxScore {
			return &ValidationError{Field: "criteria_scores",
				Message: fmt.Sprintf("score for criterion '%s' must be between 0 and %g, got %g",
					crit.CriterionName, crit.MaxScore, sc.Score)}
		}
	}
	return nil
}

// guardedReviewUpdate writes the review row only if it still carries the
// version read in this transaction. Zero affected rows means a concurrent
// session moved the review first; the caller's transaction is rolled back
// with a ConflictError instead of silently overwriting the other write.
func guardedReviewUpdate(tx *gorm.DB, reviewID, version int, updates map[string]interface{}) error {
	res := tx.Model(&models.Review{}).
		Where("review_id = ? AND version = ?", reviewID, version).
		Updates(updates)
	if res.Error != nil {
		return fmt.Errorf("failed to update review %d: %w", reviewID, res.Error)
	}
	if res.RowsAffected == 0 {
		return &ConflictError{Message: fmt.Sprintf(
			"review %d was modified by another session; reload and retry", reviewID)}
	}
	return nil
}

func lockReview(tx *gorm.DB, reviewID int) (*models.Review, error) {
	var review models.Review
	err := tx.Where("review_id = ?", reviewID).First(&review).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("review %d: %w", reviewID, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to load review %d: %w", reviewID, err)
	}
	return &review, nil
}
