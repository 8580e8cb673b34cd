package services

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"thesis-review-api/config"
	"thesis-review-api/models"
)

// MatchingService loads the reviewer directory and submission catalog into
// snapshots and runs the matching engine over them. All reads happen once
// per call; nothing is fetched inside the scoring loop.
type MatchingService struct {
	db *gorm.DB
}

func NewMatchingService(db *gorm.DB) *MatchingService {
	return &MatchingService{db: db}
}

// Rank computes ranked suggestions for one submission.
func (s *MatchingService) Rank(ctx context.Context, submissionID int, cons MatchConstraints) (MatchResult, error) {
	sub, err := s.SubmissionContext(submissionID)
	if err != nil {
		return MatchResult{}, err
	}
	pool, err := s.ReviewerPool(ctx)
	if err != nil {
		return MatchResult{}, err
	}
	return RankReviewers(ctx, config.Matching(), sub, pool, cons), nil
}

// RankOne scores a single reviewer against a submission, used for
// assignment-time eligibility re-validation.
func (s *MatchingService) RankOne(ctx context.Context, submissionID, reviewerID int, cons MatchConstraints) (Suggestion, error) {
	sub, err := s.SubmissionContext(submissionID)
	if err != nil {
		return Suggestion{}, err
	}
	snapshot, err := s.reviewerSnapshot(reviewerID)
	if err != nil {
		return Suggestion{}, err
	}
	result := RankReviewers(ctx, config.Matching(), sub, []ReviewerSnapshot{snapshot}, cons)
	if len(result.Suggestions) == 0 {
		return Suggestion{}, fmt.Errorf("failed to score reviewer %d", reviewerID)
	}
	return result.Suggestions[0], nil
}

// SubmissionContext loads the submission's matching inputs.
func (s *MatchingService) SubmissionContext(submissionID int) (SubmissionContext, error) {
	var submission models.Submission
	err := s.db.Preload("Skills").
		Where("submission_id = ? AND delete_at IS NULL", submissionID).
		First(&submission).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return SubmissionContext{}, fmt.Errorf("submission %d: %w", submissionID, ErrNotFound)
		}
		return SubmissionContext{}, fmt.Errorf("failed to load submission %d: %w", submissionID, err)
	}
	return SubmissionContext{
		SubmissionID:   submission.SubmissionID,
		RequiredSkills: submission.SkillTags(),
		SupervisorID:   submission.SupervisorID,
		SubmitterID:    submission.SubmitterID,
	}, nil
}

// ReviewerPool snapshots every active reviewer with skills, workload count
// and performance history.
func (s *MatchingService) ReviewerPool(ctx context.Context) ([]ReviewerSnapshot, error) {
	var reviewers []models.User
	err := s.db.WithContext(ctx).
		Where("role_id = ? AND delete_at IS NULL", models.RoleReviewer).
		Order("user_id ASC").
		Find(&reviewers).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load reviewer directory: %w", err)
	}
	if len(reviewers) == 0 {
		return []ReviewerSnapshot{}, nil
	}

	ids := make([]int, 0, len(reviewers))
	for _, r := range reviewers {
		ids = append(ids, r.UserID)
	}

	skills, err := s.skillsByReviewer(ids)
	if err != nil {
		return nil, err
	}
	workloads, err := s.activeAssignmentCounts(ids)
	if err != nil {
		return nil, err
	}
	stats, err := s.statsByReviewer(ids)
	if err != nil {
		return nil, err
	}

	pool := make([]ReviewerSnapshot, 0, len(reviewers))
	for _, r := range reviewers {
		pool = append(pool, ReviewerSnapshot{
			ReviewerID:        r.UserID,
			Name:              r.FullName(),
			Skills:            skills[r.UserID],
			ActiveAssignments: workloads[r.UserID],
			Stats:             stats[r.UserID],
		})
	}
	return pool, nil
}

func (s *MatchingService) reviewerSnapshot(reviewerID int) (ReviewerSnapshot, error) {
	var reviewer models.User
	err := s.db.Where("user_id = ? AND role_id = ? AND delete_at IS NULL",
		reviewerID, models.RoleReviewer).First(&reviewer).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ReviewerSnapshot{}, fmt.Errorf("reviewer %d: %w", reviewerID, ErrNotFound)
		}
		return ReviewerSnapshot{}, fmt.Errorf("failed to load reviewer %d: %w", reviewerID, err)
	}

	skills, err := s.skillsByReviewer([]int{reviewerID})
	if err != nil {
		return ReviewerSnapshot{}, err
	}
	workloads, err := s.activeAssignmentCounts([]int{reviewerID})
	if err != nil {
		return ReviewerSnapshot{}, err
	}
	stats, err := s.statsByReviewer([]int{reviewerID})
	if err != nil {
		return ReviewerSnapshot{}, err
	}

	return ReviewerSnapshot{
		ReviewerID:        reviewer.UserID,
		Name:              reviewer.FullName(),
		Skills:            skills[reviewerID],
		ActiveAssignments: workloads[reviewerID],
		Stats:             stats[reviewerID],
	}, nil
}

func (s *MatchingService) skillsByReviewer(ids []int) (map[int]map[string]int, error) {
	var rows []models.ReviewerSkill
	if err := s.db.Where("user_id IN ?", ids).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to load reviewer skills: %w", err)
	}
	out := make(map[int]map[string]int, len(ids))
	for _, row := range rows {
		norm := NormalizeSkillTag(row.Skill)
		if norm == "" || row.Level <= 0 {
			continue
		}
		if out[row.UserID] == nil {
			out[row.UserID] = make(map[string]int)
		}
		// Keep the highest level when duplicates exist.
		if row.Level > out[row.UserID][norm] {
			out[row.UserID][norm] = row.Level
		}
	}
	return out, nil
}

func (s *MatchingService) activeAssignmentCounts(ids []int) (map[int]int, error) {
	type countRow struct {
		ReviewerID int `gorm:"column:reviewer_id"`
		Total      int `gorm:"column:total"`
	}
	var rows []countRow
	err := s.db.Model(&models.ReviewAssignment{}).
		Select("reviewer_id, COUNT(*) AS total").
		Where("reviewer_id IN ? AND active = 1", ids).
		Group("reviewer_id").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to count active assignments: %w", err)
	}
	out := make(map[int]int, len(rows))
	for _, row := range rows {
		out[row.ReviewerID] = row.Total
	}
	return out, nil
}

func (s *MatchingService) statsByReviewer(ids []int) (map[int]*models.ReviewerStats, error) {
	var rows []models.ReviewerStats
	if err := s.db.Where("user_id IN ?", ids).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to load reviewer stats: %w", err)
	}
	out := make(map[int]*models.ReviewerStats, len(rows))
	for i := range rows {
		out[rows[i].UserID] = &rows[i]
	}
	return out, nil
}
