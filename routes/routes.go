package routes

import (
	"github.com/gin-gonic/gin"

	"thesis-review-api/controllers"
	"thesis-review-api/middleware"
	"thesis-review-api/models"
)

func SetupRoutes(router *gin.Engine) {
	// API v1 group
	v1 := router.Group("/api/v1")
	{
		// Public routes
		public := v1.Group("")
		{
			// Authentication
			public.POST("/login", controllers.Login)

			// Health check
			public.GET("/health", func(c *gin.Context) {
				c.JSON(200, gin.H{
					"status":  "ok",
					"message": "Thesis Review API is running",
				})
			})
		}

		// Protected routes (require authentication)
		protected := v1.Group("")
		protected.Use(middleware.AuthMiddleware())
		{
			// User profile
			protected.GET("/profile", controllers.GetProfile)

			// Rubric definitions (all authenticated users)
			protected.GET("/review-criteria", controllers.GetReviewCriteria)

			// Reviewer matching and assignment (moderators only)
			submissions := protected.Group("/submissions")
			{
				submissions.GET("/:id/reviewer-suggestions",
					middleware.RequireRole(models.RoleModerator), controllers.GetReviewerSuggestions)
				submissions.POST("/:id/auto-assign",
					middleware.RequireRole(models.RoleModerator), controllers.AutoAssignReviewers)
				submissions.GET("/:id/assignments",
					middleware.RequireRole(models.RoleModerator), controllers.GetSubmissionAssignments)
			}

			assignments := protected.Group("/assignments")
			{
				assignments.POST("",
					middleware.RequireRole(models.RoleModerator), controllers.AssignReviewer)
				assignments.POST("/bulk",
					middleware.RequireRole(models.RoleModerator), controllers.BulkAssignReviewers)
				assignments.POST("/:id/cancel",
					middleware.RequireRole(models.RoleModerator), controllers.CancelAssignment)

				// Reviewers drive their own status changes and reviews
				assignments.GET("/:id", controllers.GetAssignment)
				assignments.PATCH("/:id/status",
					middleware.RequireRole(models.RoleReviewer, models.RoleModerator),
					controllers.UpdateAssignmentStatus)
				assignments.POST("/:id/review",
					middleware.RequireRole(models.RoleReviewer, models.RoleModerator),
					controllers.CreateDraftReview)
			}

			// Reviewer dashboard
			protected.GET("/reviewers/me/assignments",
				middleware.RequireRole(models.RoleReviewer), controllers.GetMyAssignments)

			// Review lifecycle
			reviews := protected.Group("/reviews")
			reviews.Use(middleware.RequireRole(models.RoleReviewer, models.RoleModerator))
			{
				reviews.GET("/:id", controllers.GetReview)
				reviews.PUT("/:id", controllers.UpdateDraftReview)
				reviews.POST("/:id/submit", controllers.SubmitReview)
				reviews.POST("/:id/withdraw", controllers.WithdrawReview)
				reviews.POST("/:id/quick-entry", controllers.QuickEntryPreview)
			}
		}
	}
}
