package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"thesis-review-api/config"
	"thesis-review-api/services"
)

// GetReviewCriteria returns the active rubric so the review form can render
// the scoring dimensions.
func GetReviewCriteria(c *gin.Context) {
	svc := services.NewReviewService(config.DB)
	criteria, err := svc.ActiveCriteria(c.Request.Context())
	if err != nil {
		handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":  true,
		"criteria": criteria,
		"total":    len(criteria),
	})
}
