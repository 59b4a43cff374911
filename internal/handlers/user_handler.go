package handlers

import (
	"aarohyatrika/internal/services"
	"aarohyatrika/internal/utils"

	"github.com/gin-gonic/gin"
)

type UserHandler struct {
	userService   services.UserService
	ratingService services.RatingService
}

func NewUserHandler(userService services.UserService, ratingService services.RatingService) *UserHandler {
	return &UserHandler{
		userService:   userService,
		ratingService: ratingService,
	}
}

func (h *UserHandler) GetProfile(c *gin.Context) {
	userID, ok := contextUserID(c)
	if !ok {
		return
	}

	user, err := h.userService.GetProfile(c.Request.Context(), userID)
	if err != nil {
		utils.ServiceErrorResponse(c, err)
		return
	}

	utils.SuccessResponse(c, "Profile", user)
}

func (h *UserHandler) UpdateProfile(c *gin.Context) {
	var request services.UpdateProfileRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		utils.BadRequestResponse(c, "Invalid request: "+err.Error())
		return
	}

	if details := utils.ValidateStruct(&request); details != nil {
		utils.ValidationErrorResponse(c, details)
		return
	}

	userID, ok := contextUserID(c)
	if !ok {
		return
	}

	user, err := h.userService.UpdateProfile(c.Request.Context(), userID, &request)
	if err != nil {
		utils.ServiceErrorResponse(c, err)
		return
	}

	utils.SuccessResponse(c, "Profile updated", user)
}

func (h *UserHandler) SubmitRating(c *gin.Context) {
	var request services.RatingRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		utils.BadRequestResponse(c, "Invalid request: "+err.Error())
		return
	}

	if details := utils.ValidateStruct(&request); details != nil {
		utils.ValidationErrorResponse(c, details)
		return
	}

	raterID, ok := contextUserID(c)
	if !ok {
		return
	}

	if err := h.ratingService.SubmitRating(c.Request.Context(), raterID, &request); err != nil {
		utils.ServiceErrorResponse(c, err)
		return
	}

	utils.CreatedResponse(c, "Rating submitted successfully", nil)
}
