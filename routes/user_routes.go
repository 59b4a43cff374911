package routes

import (
	"aarohyatrika/internal/handlers"
	"aarohyatrika/internal/middleware"

	"github.com/gin-gonic/gin"
)

func SetupUserRoutes(r *gin.RouterGroup, userHandler *handlers.UserHandler, jwtSecret string) {
	users := r.Group("/users")
	users.Use(middleware.AuthRequired(jwtSecret))
	{
		users.GET("/profile", userHandler.GetProfile)
		users.PUT("/profile", userHandler.UpdateProfile)
		users.POST("/rate", userHandler.SubmitRating)
	}
}
