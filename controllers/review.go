package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"thesis-review-api/config"
	"thesis-review-api/models"
	"thesis-review-api/services"
)

// CreateDraftReview opens a review draft for an assignment. Reviewers may
// only open drafts on their own assignments; moderators may open any.
func CreateDraftReview(c *gin.Context) {
	assignmentID, ok := pathID(c, "id")
	if !ok {
		return
	}
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	reviewerID := userID
	if roleID, exists := c.Get("roleID"); exists {
		if role, isInt := roleID.(int); isInt && role == models.RoleModerator {
			reviewerID = 0 // skip ownership check
		}
	}

	svc := services.NewReviewService(config.DB)
	review, err := svc.CreateDraft(c.Request.Context(), assignmentID, reviewerID)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"success": true,
		"review":  review,
	})
}

// UpdateDraftReview replaces the draft's scores and metadata. The overall
// score in the response is recomputed server-side; client previews are never
// stored.
func UpdateDraftReview(c *gin.Context) {
	reviewID, ok := pathID(c, "id")
	if !ok {
		return
	}

	var req services.UpdateDraftInput
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body: " + err.Error()})
		return
	}

	svc := services.NewReviewService(config.DB)
	result, err := svc.UpdateDraft(c.Request.Context(), reviewID, req)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":  true,
		"review":   result.Review,
		"warnings": result.Warnings,
	})
}

// SubmitReview freezes a draft after validating completeness.
func SubmitReview(c *gin.Context) {
	reviewID, ok := pathID(c, "id")
	if !ok {
		return
	}

	svc := services.NewReviewService(config.DB)
	result, err := svc.Submit(c.Request.Context(), reviewID)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":  true,
		"review":   result.Review,
		"warnings": result.Warnings,
	})
}

// WithdrawReview reopens a submitted review as a draft, or discards a draft.
func WithdrawReview(c *gin.Context) {
	reviewID, ok := pathID(c, "id")
	if !ok {
		return
	}

	svc := services.NewReviewService(config.DB)
	review, err := svc.Withdraw(c.Request.Context(), reviewID)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"review":  review,
	})
}

// GetReview returns a review with a freshly recomputed overall score.
func GetReview(c *gin.Context) {
	reviewID, ok := pathID(c, "id")
	if !ok {
		return
	}

	svc := services.NewReviewService(config.DB)
	result, err := svc.Get(c.Request.Context(), reviewID)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":  true,
		"review":   result.Review,
		"warnings": result.Warnings,
	})
}

// QuickEntryPreview maps a qualitative bucket (excellent/good/acceptable/
// fail) to a numeric overall, reconciled against the canonical aggregation.
// The preview is never persisted.
func QuickEntryPreview(c *gin.Context) {
	reviewID, ok := pathID(c, "id")
	if !ok {
		return
	}

	var req struct {
		Bucket string `json:"bucket" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body: " + err.Error()})
		return
	}

	svc := services.NewReviewService(config.DB)
	value, warnings, err := svc.QuickEntry(c.Request.Context(), reviewID, req.Bucket)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":       true,
		"overall_score": value,
		"warnings":      warnings,
	})
}
