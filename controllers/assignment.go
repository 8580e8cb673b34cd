package controllers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"thesis-review-api/config"
	"thesis-review-api/models"
	"thesis-review-api/services"
	"thesis-review-api/utils"
)

type assignReviewerRequest struct {
	SubmissionID    int       `json:"submission_id" binding:"required"`
	ReviewerID      int       `json:"reviewer_id" binding:"required"`
	AssignmentType  string    `json:"assignment_type" binding:"required"`
	Deadline        time.Time `json:"deadline" binding:"required"`
	SkillMatchScore *float64  `json:"skill_match_score"`
	Notes           *string   `json:"notes"`
	MaxWorkload     int       `json:"max_workload"`
}

func (r assignReviewerRequest) toInput(assignedBy int) services.CreateAssignmentInput {
	if r.Notes != nil {
		clean := utils.SanitizeInput(*r.Notes)
		r.Notes = &clean
	}
	return services.CreateAssignmentInput{
		SubmissionID:    r.SubmissionID,
		ReviewerID:      r.ReviewerID,
		AssignedBy:      assignedBy,
		AssignmentType:  r.AssignmentType,
		Deadline:        r.Deadline,
		SkillMatchScore: r.SkillMatchScore,
		Notes:           r.Notes,
		MaxWorkload:     r.MaxWorkload,
	}
}

// assignmentView decorates an assignment with its derived effective status.
func assignmentView(a *models.ReviewAssignment, now time.Time) gin.H {
	return gin.H{
		"assignment":       a,
		"effective_status": a.EffectiveStatus(now),
	}
}

// AssignReviewer creates one assignment. Eligibility is re-validated at call
// time; a stale suggestion is never trusted.
func AssignReviewer(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	var req assignReviewerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body: " + err.Error()})
		return
	}

	svc := services.NewAssignmentService(config.DB)
	assignment, err := svc.Create(c.Request.Context(), req.toInput(userID))
	if err != nil {
		handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"success":    true,
		"assignment": assignment,
	})
}

// BulkAssignReviewers attempts each item independently and reports per-item
// outcomes; one failure never aborts the batch.
func BulkAssignReviewers(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	var req struct {
		Items []assignReviewerRequest `json:"items" binding:"required,min=1"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body: " + err.Error()})
		return
	}

	inputs := make([]services.CreateAssignmentInput, 0, len(req.Items))
	for _, item := range req.Items {
		inputs = append(inputs, item.toInput(userID))
	}

	svc := services.NewAssignmentService(config.DB)
	outcomes := svc.BulkCreate(c.Request.Context(), inputs)

	succeeded := 0
	for _, outcome := range outcomes {
		if outcome.Ok {
			succeeded++
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"success":   true,
		"results":   outcomes,
		"succeeded": succeeded,
		"failed":    len(outcomes) - succeeded,
	})
}

// AutoAssignReviewers assigns the top ranked eligible candidates for a
// submission.
func AutoAssignReviewers(c *gin.Context) {
	submissionID, ok := pathID(c, "id")
	if !ok {
		return
	}
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	var req struct {
		MaxWorkload               int       `json:"max_workload"`
		PrioritizeHighPerformance bool      `json:"prioritize_high_performance"`
		TopicSkillTags            []string  `json:"topic_skill_tags"`
		RequiredCount             int       `json:"required_count" binding:"required"`
		Deadline                  time.Time `json:"deadline" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body: " + err.Error()})
		return
	}

	svc := services.NewAssignmentService(config.DB)
	result, err := svc.AutoAssign(c.Request.Context(), services.AutoAssignInput{
		SubmissionID:              submissionID,
		AssignedBy:                userID,
		MaxWorkload:               req.MaxWorkload,
		PrioritizeHighPerformance: req.PrioritizeHighPerformance,
		TopicSkillTags:            req.TopicSkillTags,
		RequiredCount:             req.RequiredCount,
		Deadline:                  req.Deadline,
	})
	if err != nil {
		handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"created": result.Created,
		"skipped": result.Skipped,
	})
}

// UpdateAssignmentStatus applies a forward status transition.
func UpdateAssignmentStatus(c *gin.Context) {
	assignmentID, ok := pathID(c, "id")
	if !ok {
		return
	}

	var req struct {
		Status string `json:"status" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body: " + err.Error()})
		return
	}

	svc := services.NewAssignmentService(config.DB)
	assignment, err := svc.UpdateStatus(c.Request.Context(), assignmentID, req.Status)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":    true,
		"assignment": assignment,
	})
}

// CancelAssignment moves an open assignment to the terminal cancelled state.
func CancelAssignment(c *gin.Context) {
	assignmentID, ok := pathID(c, "id")
	if !ok {
		return
	}

	svc := services.NewAssignmentService(config.DB)
	assignment, err := svc.Cancel(c.Request.Context(), assignmentID)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":    true,
		"assignment": assignment,
	})
}

// GetAssignment returns one assignment with its derived status.
func GetAssignment(c *gin.Context) {
	assignmentID, ok := pathID(c, "id")
	if !ok {
		return
	}

	svc := services.NewAssignmentService(config.DB)
	assignment, err := svc.Get(c.Request.Context(), assignmentID)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	view := assignmentView(assignment, time.Now())
	view["success"] = true
	c.JSON(http.StatusOK, view)
}

// GetSubmissionAssignments lists all assignments of a submission.
func GetSubmissionAssignments(c *gin.Context) {
	submissionID, ok := pathID(c, "id")
	if !ok {
		return
	}

	svc := services.NewAssignmentService(config.DB)
	assignments, err := svc.ListBySubmission(c.Request.Context(), submissionID)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	now := time.Now()
	views := make([]gin.H, 0, len(assignments))
	for i := range assignments {
		views = append(views, assignmentView(&assignments[i], now))
	}

	c.JSON(http.StatusOK, gin.H{
		"success":     true,
		"assignments": views,
		"total":       len(views),
	})
}

// GetMyAssignments lists the authenticated reviewer's assignments.
func GetMyAssignments(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	svc := services.NewAssignmentService(config.DB)
	assignments, err := svc.ListByReviewer(c.Request.Context(), userID)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	now := time.Now()
	views := make([]gin.H, 0, len(assignments))
	for i := range assignments {
		views = append(views, assignmentView(&assignments[i], now))
	}

	c.JSON(http.StatusOK, gin.H{
		"success":     true,
		"assignments": views,
		"total":       len(views),
	})
}
