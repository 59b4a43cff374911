package handlers

import (
	"aarohyatrika/internal/services"
	"aarohyatrika/internal/utils"

	"github.com/gin-gonic/gin"
)

type AuthHandler struct {
	authService services.AuthService
}

func NewAuthHandler(authService services.AuthService) *AuthHandler {
	return &AuthHandler{authService: authService}
}

func (h *AuthHandler) Register(c *gin.Context) {
	var request services.RegisterRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		utils.BadRequestResponse(c, "Invalid request: "+err.Error())
		return
	}

	if details := utils.ValidateStruct(&request); details != nil {
		utils.ValidationErrorResponse(c, details)
		return
	}

	response, err := h.authService.Register(c.Request.Context(), &request)
	if err != nil {
		utils.ServiceErrorResponse(c, err)
		return
	}

	utils.CreatedResponse(c, "User registered successfully", response)
}

func (h *AuthHandler) Login(c *gin.Context) {
	var request services.LoginRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		utils.BadRequestResponse(c, "Invalid request: "+err.Error())
		return
	}

	if details := utils.ValidateStruct(&request); details != nil {
		utils.ValidationErrorResponse(c, details)
		return
	}

	response, err := h.authService.Login(c.Request.Context(), &request)
	if err != nil {
		utils.ServiceErrorResponse(c, err)
		return
	}

	utils.SuccessResponse(c, "Login successful", response)
}
