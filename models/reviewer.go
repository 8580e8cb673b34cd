package models

import "time"

// Proficiency levels for reviewer skills.
const (
	SkillLevelBeginner     = 1
	SkillLevelIntermediate = 2
	SkillLevelAdvanced     = 3
	SkillLevelExpert       = 4
)

// ReviewerSkill maps a reviewer to one skill with a proficiency level (1-4).
type ReviewerSkill struct {
	ReviewerSkillID int        `gorm:"primaryKey;column:reviewer_skill_id" json:"reviewer_skill_id"`
	UserID          int        `gorm:"column:user_id" json:"user_id"`
	Skill           string     `gorm:"column:skill" json:"skill"`
	Level           int        `gorm:"column:level" json:"level"`
	CreateAt        *time.Time `gorm:"column:create_at" json:"create_at"`
	UpdateAt        *time.Time `gorm:"column:update_at" json:"update_at"`
}

// ReviewerStats is the historical performance record of one reviewer.
// Metrics are nullable: a reviewer without history simply has no value, and
// the matching engine excludes missing metrics instead of treating them as
// zero.
type ReviewerStats struct {
	UserID               int        `gorm:"primaryKey;column:user_id" json:"user_id"`
	CompletedAssignments int        `gorm:"column:completed_assignments" json:"completed_assignments"`
	AverageScoreGiven    *float64   `gorm:"column:average_score_given" json:"average_score_given,omitempty"`
	OnTimeRate           *float64   `gorm:"column:on_time_rate" json:"on_time_rate,omitempty"`
	QualityRating        *float64   `gorm:"column:quality_rating" json:"quality_rating,omitempty"`
	UpdateAt             *time.Time `gorm:"column:update_at" json:"update_at"`
}

// TableName overrides
func (ReviewerSkill) TableName() string {
	return "reviewer_skills"
}

func (ReviewerStats) TableName() string {
	return "reviewer_stats"
}
