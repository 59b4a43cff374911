package handlers

import (
	"aarohyatrika/internal/services"
	"aarohyatrika/internal/utils"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type RideHandler struct {
	rideService services.RideService
}

func NewRideHandler(rideService services.RideService) *RideHandler {
	return &RideHandler{rideService: rideService}
}

// CreateRide handles POST /rides: a rider requests an immediate or scheduled
// ride.
func (h *RideHandler) CreateRide(c *gin.Context) {
	var request services.RideRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		utils.BadRequestResponse(c, "Invalid request: "+err.Error())
		return
	}

	if details := utils.ValidateStruct(&request); details != nil {
		utils.ValidationErrorResponse(c, details)
		return
	}

	riderID, ok := contextUserID(c)
	if !ok {
		return
	}

	ride, err := h.rideService.RequestRide(c.Request.Context(), riderID, &request)
	if err != nil {
		utils.ServiceErrorResponse(c, err)
		return
	}

	utils.CreatedResponse(c, "Ride requested", ride)
}

// AcceptRide handles PUT /rides/:id/accept: the contended transition. A
// losing driver gets 409.
func (h *RideHandler) AcceptRide(c *gin.Context) {
	rideID, driverID, ok := ridePathAndUser(c)
	if !ok {
		return
	}

	ride, err := h.rideService.AcceptRide(c.Request.Context(), driverID, rideID)
	if err != nil {
		utils.ServiceErrorResponse(c, err)
		return
	}

	utils.SuccessResponse(c, "Ride accepted", ride)
}

type startRideRequest struct {
	OTP string `json:"otp" validate:"required,len=4,numeric"`
}

// StartRide handles POST /rides/:id/start: driver submits the rider's OTP.
func (h *RideHandler) StartRide(c *gin.Context) {
	rideID, driverID, ok := ridePathAndUser(c)
	if !ok {
		return
	}

	var request startRideRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		utils.BadRequestResponse(c, "Invalid request: "+err.Error())
		return
	}
	if details := utils.ValidateStruct(&request); details != nil {
		utils.ValidationErrorResponse(c, details)
		return
	}

	ride, err := h.rideService.StartRide(c.Request.Context(), driverID, rideID, request.OTP)
	if err != nil {
		utils.ServiceErrorResponse(c, err)
		return
	}

	utils.SuccessResponse(c, "Ride started", ride)
}

func (h *RideHandler) EndRide(c *gin.Context) {
	rideID, driverID, ok := ridePathAndUser(c)
	if !ok {
		return
	}

	ride, err := h.rideService.EndRide(c.Request.Context(), driverID, rideID)
	if err != nil {
		utils.ServiceErrorResponse(c, err)
		return
	}

	utils.SuccessResponse(c, "Ride completed", ride)
}

func (h *RideHandler) PayRide(c *gin.Context) {
	rideID, riderID, ok := ridePathAndUser(c)
	if !ok {
		return
	}

	ride, err := h.rideService.PayRide(c.Request.Context(), riderID, rideID)
	if err != nil {
		utils.ServiceErrorResponse(c, err)
		return
	}

	utils.SuccessResponse(c, "Payment successful", ride)
}

func (h *RideHandler) CancelRide(c *gin.Context) {
	rideID, userID, ok := ridePathAndUser(c)
	if !ok {
		return
	}

	ride, err := h.rideService.CancelRide(c.Request.Context(), userID, rideID)
	if err != nil {
		utils.ServiceErrorResponse(c, err)
		return
	}

	utils.SuccessResponse(c, "Ride cancelled", ride)
}

// CurrentRide handles GET /rides/current: the resynchronization query a
// freshly (re)connected client calls instead of trusting realtime history.
func (h *RideHandler) CurrentRide(c *gin.Context) {
	userID, ok := contextUserID(c)
	if !ok {
		return
	}

	ride, err := h.rideService.CurrentRide(c.Request.Context(), userID)
	if err != nil {
		utils.ServiceErrorResponse(c, err)
		return
	}

	utils.SuccessResponse(c, "Current ride", ride)
}

// PendingRides handles GET /rides/requested?zone=: requested rides in a
// zone, oldest first.
func (h *RideHandler) PendingRides(c *gin.Context) {
	rides, err := h.rideService.PendingRides(c.Request.Context(), c.Query("zone"))
	if err != nil {
		utils.ServiceErrorResponse(c, err)
		return
	}

	utils.SuccessResponse(c, "Pending rides", rides)
}

func (h *RideHandler) RideHistory(c *gin.Context) {
	userID, ok := contextUserID(c)
	if !ok {
		return
	}

	rides, err := h.rideService.RideHistory(c.Request.Context(), userID)
	if err != nil {
		utils.ServiceErrorResponse(c, err)
		return
	}

	utils.SuccessResponse(c, "Ride history", rides)
}

func contextUserID(c *gin.Context) (primitive.ObjectID, bool) {
	value, exists := c.Get(utils.ContextUserID)
	if !exists {
		utils.UnauthorizedResponse(c)
		return primitive.NilObjectID, false
	}

	userID, ok := value.(primitive.ObjectID)
	if !ok {
		utils.BadRequestResponse(c, "Invalid user ID")
		return primitive.NilObjectID, false
	}
	return userID, true
}

func ridePathAndUser(c *gin.Context) (rideID, userID primitive.ObjectID, ok bool) {
	rideID, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		utils.BadRequestResponse(c, "Invalid ride ID")
		return primitive.NilObjectID, primitive.NilObjectID, false
	}

	userID, ok = contextUserID(c)
	if !ok {
		return primitive.NilObjectID, primitive.NilObjectID, false
	}
	return rideID, userID, true
}
