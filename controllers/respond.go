package controllers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"thesis-review-api/services"
)

// handleServiceError maps the services error taxonomy to HTTP responses.
// Every failure carries a reason suitable for direct display.
func handleServiceError(c *gin.Context, err error) {
	var validationErr *services.ValidationError
	var duplicateErr *services.DuplicateAssignmentError
	var transitionErr *services.InvalidStateTransitionError
	var existsErr *services.AlreadyExistsError
	var conflictErr *services.ConflictError
	var ineligibleErr *services.IneligibleReviewerError

	switch {
	case errors.Is(err, services.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.As(err, &validationErr):
		c.JSON(http.StatusBadRequest, gin.H{"error": validationErr.Error()})
	case errors.As(err, &duplicateErr):
		c.JSON(http.StatusConflict, gin.H{"error": duplicateErr.Error(), "code": "duplicate_assignment"})
	case errors.As(err, &transitionErr):
		c.JSON(http.StatusConflict, gin.H{"error": transitionErr.Error(), "code": "invalid_state_transition"})
	case errors.As(err, &existsErr):
		c.JSON(http.StatusConflict, gin.H{"error": existsErr.Error(), "code": "already_exists"})
	case errors.As(err, &conflictErr):
		c.JSON(http.StatusConflict, gin.H{"error": conflictErr.Error(), "code": "conflict"})
	case errors.As(err, &ineligibleErr):
		c.JSON(http.StatusUnprocessableEntity, gin.H{
			"error":   ineligibleErr.Error(),
			"code":    "ineligible_reviewer",
			"reasons": ineligibleErr.Reasons,
		})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
	}
}

// pathID parses a positive integer path parameter, responding with 400 on
// bad input.
func pathID(c *gin.Context, name string) (int, bool) {
	id, err := strconv.Atoi(c.Param(name))
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid " + name})
		return 0, false
	}
	return id, true
}

// currentUserID reads the authenticated user id set by the auth middleware.
func currentUserID(c *gin.Context) (int, bool) {
	value, exists := c.Get("userID")
	if !exists {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "User context missing"})
		return 0, false
	}
	userID, ok := value.(int)
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Invalid user context"})
		return 0, false
	}
	return userID, true
}
