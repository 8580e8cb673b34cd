package models

import "time"

// Review statuses. A discarded review no longer counts against the
// one-active-review-per-assignment rule.
const (
	ReviewStatusDraft     = "draft"
	ReviewStatusSubmitted = "submitted"
	ReviewStatusDiscarded = "discarded"
)

// Recommendation values accepted on submit.
const (
	RecommendationApprove       = "approve"
	RecommendationMinorRevision = "minor_revision"
	RecommendationMajorRevision = "major_revision"
	RecommendationReject        = "reject"
)

// Review is the working record of one reviewer's evaluation of one
// assignment. At most one non-discarded review exists per assignment,
// enforced by uq_active_review on (assignment_id, active) with active NULLed
// on discard.
type Review struct {
	ReviewID         int        `gorm:"primaryKey;column:review_id" json:"review_id"`
	AssignmentID     int        `gorm:"column:assignment_id;uniqueIndex:uq_active_review" json:"assignment_id"`
	Reference        string     `gorm:"column:reference" json:"reference"`
	Status           string     `gorm:"column:status" json:"status"`
	Active           *int8      `gorm:"column:active;uniqueIndex:uq_active_review" json:"-"`
	OverallScore     *float64   `gorm:"column:overall_score" json:"overall_score,omitempty"`
	OverallComment   *string    `gorm:"column:overall_comment" json:"overall_comment,omitempty"`
	Recommendation   *string    `gorm:"column:recommendation" json:"recommendation,omitempty"`
	TimeSpentMinutes *int       `gorm:"column:time_spent_minutes" json:"time_spent_minutes,omitempty"`
	Version          int        `gorm:"column:version" json:"version"`
	SubmittedAt      *time.Time `gorm:"column:submitted_at" json:"submitted_at,omitempty"`
	CreateAt         time.Time  `gorm:"column:create_at" json:"create_at"`
	UpdateAt         time.Time  `gorm:"column:update_at" json:"update_at"`

	// Relations
	Scores     []ReviewCriterionScore `gorm:"foreignKey:ReviewID" json:"criteria_scores,omitempty"`
	Assignment *ReviewAssignment      `gorm:"foreignKey:AssignmentID" json:"assignment,omitempty"`
}

// ReviewCriterion is one static rubric dimension. Read-only input to
// scoring; managed by portal administration outside this subsystem.
type ReviewCriterion struct {
	CriterionID   int        `gorm:"primaryKey;column:criterion_id" json:"criterion_id"`
	CriterionName string     `gorm:"column:criterion_name" json:"criterion_name"`
	Description   *string    `gorm:"column:description" json:"description,omitempty"`
	MaxScore      float64    `gorm:"column:max_score" json:"max_score"`
	Weight        float64    `gorm:"column:weight" json:"weight"`
	DisplayOrder  int        `gorm:"column:display_order" json:"display_order"`
	CreateAt      *time.Time `gorm:"column:create_at" json:"create_at"`
	UpdateAt      *time.Time `gorm:"column:update_at" json:"update_at"`
	DeleteAt      *time.Time `gorm:"column:delete_at" json:"delete_at,omitempty"`
}

// ReviewCriterionScore is one scored rubric dimension of a review.
type ReviewCriterionScore struct {
	ScoreID     int     `gorm:"primaryKey;column:score_id" json:"score_id"`
	ReviewID    int     `gorm:"column:review_id" json:"review_id"`
	CriterionID int     `gorm:"column:criterion_id" json:"criterion_id"`
	Score       float64 `gorm:"column:score" json:"score"`
	Comment     *string `gorm:"column:comment" json:"comment,omitempty"`
}

// TableName overrides
func (Review) TableName() string {
	return "reviews"
}

func (ReviewCriterion) TableName() string {
	return "review_criteria"
}

func (ReviewCriterionScore) TableName() string {
	return "review_criterion_scores"
}

// ValidRecommendation reports whether r is one of the accepted
// recommendation values.
func ValidRecommendation(r string) bool {
	switch r {
	case RecommendationApprove, RecommendationMinorRevision,
		RecommendationMajorRevision, RecommendationReject:
		return true
	}
	return false
}
