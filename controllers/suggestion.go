package controllers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"thesis-review-api/config"
	"thesis-review-api/services"
)

// GetReviewerSuggestions ranks reviewers for a submission. With
// auto_assign=true the top candidates are assigned in the same call and the
// per-candidate outcomes are included in the response.
func GetReviewerSuggestions(c *gin.Context) {
	submissionID, ok := pathID(c, "id")
	if !ok {
		return
	}
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	opts := services.SuggestOptions{
		AssignedBy:         userID,
		IncludeExplanation: c.Query("explain") != "false",
	}

	if raw := c.Query("max"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "max must be a positive integer"})
			return
		}
		opts.MaxSuggestions = n
	}
	if raw := c.Query("min_skill_score"); raw != "" {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil || v < 0 || v > 1 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "min_skill_score must be between 0 and 1"})
			return
		}
		opts.MinSkillScore = &v
	}
	if raw := c.Query("max_workload"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "max_workload must be a positive integer"})
			return
		}
		opts.MaxWorkload = n
	}
	if raw := c.Query("auto_assign"); raw == "true" {
		opts.AutoAssign = true

		count := 1
		if rawCount := c.Query("required_count"); rawCount != "" {
			n, err := strconv.Atoi(rawCount)
			if err != nil || n <= 0 {
				c.JSON(http.StatusBadRequest, gin.H{"error": "required_count must be a positive integer"})
				return
			}
			count = n
		}
		opts.RequiredCount = count

		deadline, err := time.Parse(time.RFC3339, c.Query("deadline"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "deadline must be an RFC3339 timestamp when auto-assigning"})
			return
		}
		opts.Deadline = &deadline
	}

	svc := services.NewSuggestionService(config.DB)
	outcome, err := svc.Suggest(c.Request.Context(), submissionID, opts)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":           true,
		"suggestions":       outcome.Suggestions,
		"explanation":       outcome.Explanation,
		"truncated":         outcome.Truncated,
		"assignments":       outcome.Assignments,
		"assignment_errors": outcome.AssignmentErrors,
		"total":             len(outcome.Suggestions),
	})
}
