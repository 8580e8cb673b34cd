package services

import (
	"context"
	"time"

	"gorm.io/gorm"

	"thesis-review-api/models"
)

// SuggestionService turns matching output into ranked suggestions and,
// optionally, assignments. Ranking and assignment are reported together so
// the caller can render both in one round trip.
type SuggestionService struct {
	matching    *MatchingService
	assignments *AssignmentService
}

func NewSuggestionService(db *gorm.DB) *SuggestionService {
	return &SuggestionService{
		matching:    NewMatchingService(db),
		assignments: NewAssignmentService(db),
	}
}

const defaultMaxSuggestions = 10

// SuggestOptions drives one suggestion call.
type SuggestOptions struct {
	MaxSuggestions int
	MinSkillScore  *float64
	MaxWorkload    int
	// IncludeExplanation adds a human-readable summary of the ranking.
	IncludeExplanation bool
	// AutoAssign persists the top RequiredCount eligible candidates.
	AutoAssign    bool
	RequiredCount int
	Deadline      *time.Time
	AssignedBy    int
}

// AssignmentFailure records one candidate that could not be assigned during
// an auto-assigning suggestion call. Candidates going stale between ranking
// and assignment is expected, not a hard failure.
type AssignmentFailure struct {
	ReviewerID int    `json:"reviewer_id"`
	Reason     string `json:"reason"`
}

// SuggestOutcome is the combined result of ranking plus any assignment side
// effects.
type SuggestOutcome struct {
	Suggestions      []Suggestion               `json:"suggestions"`
	Explanation      string                     `json:"explanation,omitempty"`
	Truncated        bool                       `json:"truncated,omitempty"`
	Assignments      []*models.ReviewAssignment `json:"assignments,omitempty"`
	AssignmentErrors []AssignmentFailure        `json:"assignment_errors,omitempty"`
}

// Suggest ranks reviewers for the submission and optionally assigns the top
// candidates. Per-candidate assignment failures are collected, never
// escalated to a failure of the whole call.
func (s *SuggestionService) Suggest(ctx context.Context, submissionID int, opts SuggestOptions) (*SuggestOutcome, error) {
	if opts.AutoAssign && (opts.Deadline == nil || opts.Deadline.IsZero()) {
		return nil, &ValidationError{Field: "deadline", Message: "a deadline is required when auto-assigning"}
	}
	if opts.AutoAssign && opts.RequiredCount <= 0 {
		return nil, &ValidationError{Field: "required_count", Message: "must be at least 1 when auto-assigning"}
	}

	result, err := s.matching.Rank(ctx, submissionID, MatchConstraints{
		MinSkillScore: opts.MinSkillScore,
		MaxWorkload:   opts.MaxWorkload,
	})
	if err != nil {
		return nil, err
	}

	limit := opts.MaxSuggestions
	if limit <= 0 {
		limit = defaultMaxSuggestions
	}
	suggestions := result.Suggestions
	if len(suggestions) > limit {
		suggestions = suggestions[:limit]
	}

	outcome := &SuggestOutcome{
		Suggestions: suggestions,
		Truncated:   result.Truncated,
	}
	if opts.IncludeExplanation || result.Truncated {
		outcome.Explanation = result.Explanation
	}

	if opts.AutoAssign {
		s.assignTop(ctx, submissionID, result.Suggestions, opts, outcome)
	}
	return outcome, nil
}

func (s *SuggestionService) assignTop(ctx context.Context, submissionID int, ranked []Suggestion, opts SuggestOptions, outcome *SuggestOutcome) {
	assignmentType := models.AssignmentTypePrimary
	for _, candidate := range ranked {
		if len(outcome.Assignments) >= opts.RequiredCount {
			break
		}
		if !candidate.IsEligible {
			continue
		}

		score := candidate.SkillMatchScore
		assignment, err := s.assignments.Create(ctx, CreateAssignmentInput{
			SubmissionID:    submissionID,
			ReviewerID:      candidate.ReviewerID,
			AssignedBy:      opts.AssignedBy,
			AssignmentType:  assignmentType,
			Deadline:        *opts.Deadline,
			SkillMatchScore: &score,
			MaxWorkload:     opts.MaxWorkload,
		})
		if err != nil {
			outcome.AssignmentErrors = append(outcome.AssignmentErrors, AssignmentFailure{
				ReviewerID: candidate.ReviewerID,
				Reason:     err.Error(),
			})
			continue
		}
		outcome.Assignments = append(outcome.Assignments, assignment)
		assignmentType = models.AssignmentTypeSecondary
	}
}
