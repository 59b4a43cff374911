package routes

import (
	"aarohyatrika/internal/handlers"
	"aarohyatrika/internal/middleware"

	"github.com/gin-gonic/gin"
)

func SetupRideRoutes(r *gin.RouterGroup, rideHandler *handlers.RideHandler, jwtSecret string) {
	rides := r.Group("/rides")
	rides.Use(middleware.AuthRequired(jwtSecret))
	{
		// Queries open to both roles
		rides.GET("/history", rideHandler.RideHistory)
		rides.GET("/current", rideHandler.CurrentRide)
		rides.PUT("/:id/cancel", rideHandler.CancelRide)

		// Rider actions
		rides.POST("", middleware.RiderRequired(), rideHandler.CreateRide)
		rides.PUT("/:id/pay", middleware.RiderRequired(), rideHandler.PayRide)

		// Driver actions
		rides.GET("/requested", middleware.DriverRequired(), rideHandler.PendingRides)
		rides.PUT("/:id/accept", middleware.DriverRequired(), rideHandler.AcceptRide)
		rides.POST("/:id/start", middleware.DriverRequired(), rideHandler.StartRide)
		rides.PUT("/:id/end", middleware.DriverRequired(), rideHandler.EndRide)
	}
}
