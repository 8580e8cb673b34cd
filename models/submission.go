package models

import "time"

// Submission represents a capstone submission under review. This subsystem
// treats submissions as read-only input; creation and editing live in the
// portal's CRUD layer.
type Submission struct {
	SubmissionID int        `gorm:"primaryKey;column:submission_id" json:"submission_id"`
	Title        string     `gorm:"column:title" json:"title"`
	Abstract     *string    `gorm:"column:abstract" json:"abstract,omitempty"`
	SubmitterID  int        `gorm:"column:submitter_id" json:"submitter_id"`
	SupervisorID int        `gorm:"column:supervisor_id" json:"supervisor_id"`
	SemesterID   *int       `gorm:"column:semester_id" json:"semester_id,omitempty"`
	SubmittedAt  *time.Time `gorm:"column:submitted_at" json:"submitted_at,omitempty"`
	CreateAt     time.Time  `gorm:"column:create_at" json:"create_at"`
	UpdateAt     time.Time  `gorm:"column:update_at" json:"update_at"`
	DeleteAt     *time.Time `gorm:"column:delete_at" json:"delete_at,omitempty"`

	// Relations
	Submitter  *User             `gorm:"foreignKey:SubmitterID" json:"submitter,omitempty"`
	Supervisor *User             `gorm:"foreignKey:SupervisorID" json:"supervisor,omitempty"`
	Skills     []SubmissionSkill `gorm:"foreignKey:SubmissionID" json:"skills,omitempty"`
}

// SubmissionSkill is one required skill tag of a submission.
type SubmissionSkill struct {
	SubmissionSkillID int    `gorm:"primaryKey;column:submission_skill_id" json:"submission_skill_id"`
	SubmissionID      int    `gorm:"column:submission_id" json:"submission_id"`
	Skill             string `gorm:"column:skill" json:"skill"`
}

// TableName overrides
func (Submission) TableName() string {
	return "submissions"
}

func (SubmissionSkill) TableName() string {
	return "submission_skills"
}

// SkillTags returns the submission's required skill tags as plain strings.
func (s *Submission) SkillTags() []string {
	tags := make([]string, 0, len(s.Skills))
	for _, sk := range s.Skills {
		if sk.Skill != "" {
			tags = append(tags, sk.Skill)
		}
	}
	return tags
}
