package services

import (
	"context"
	"time"

	"aarohyatrika/internal/apperrors"
	"aarohyatrika/internal/models"
	"aarohyatrika/internal/repositories/interfaces"
	"aarohyatrika/internal/utils"
	"aarohyatrika/pkg/logger"

	"golang.org/x/crypto/bcrypt"
)

type AuthService interface {
	Register(ctx context.Context, request *RegisterRequest) (*AuthResponse, error)
	Login(ctx context.Context, request *LoginRequest) (*AuthResponse, error)
}

type RegisterRequest struct {
	Name              string `json:"name" validate:"required"`
	Email             string `json:"email" validate:"required,email"`
	Password          string `json:"password" validate:"required,min=6"`
	Role              string `json:"role" validate:"required,oneof=rider driver"`
	VehicleNumber     string `json:"vehicle_number"`
	VerificationProof string `json:"verification_proof"`
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type AuthResponse struct {
	User  models.PublicProfile `json:"user"`
	Token string               `json:"token"`
}

type authService struct {
	users      interfaces.UserRepository
	jwtSecret  string
	tokenTTL   time.Duration
	bcryptCost int
	logger     *logger.Logger
}

func NewAuthService(users interfaces.UserRepository, jwtSecret string, tokenTTL time.Duration, bcryptCost int, log *logger.Logger) AuthService {
	return &authService{
		users:      users,
		jwtSecret:  jwtSecret,
		tokenTTL:   tokenTTL,
		bcryptCost: bcryptCost,
		logger:     log,
	}
}

func (s *authService) Register(ctx context.Context, request *RegisterRequest) (*AuthResponse, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(request.Password), s.bcryptCost)
	if err != nil {
		return nil, err
	}

	role := models.UserRole(request.Role)
	vehicleNumber := ""
	if role == models.UserRoleDriver {
		vehicleNumber = request.VehicleNumber
	}

	user := &models.User{
		Name:              request.Name,
		Email:             request.Email,
		Password:          string(hash),
		Role:              role,
		VehicleNumber:     vehicleNumber,
		VerificationProof: request.VerificationProof,
		IsVerified:        request.VerificationProof != "",
		ProfilePhoto:      "/images/default-avatar.png",
		AverageRating:     5,
	}

	if err := s.users.Create(ctx, user); err != nil {
		return nil, err
	}

	s.logger.WithUserID(user.ID).WithField("role", user.Role).Info("user registered")
	return s.respondWithToken(user)
}

func (s *authService) Login(ctx context.Context, request *LoginRequest) (*AuthResponse, error) {
	user, err := s.users.GetByEmail(ctx, request.Email)
	if err != nil {
		// Same answer whether the account is missing or the password is
		// wrong.
		return nil, apperrors.ErrBadCredentials
	}

	if bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(request.Password)) != nil {
		return nil, apperrors.ErrBadCredentials
	}

	s.logger.WithUserID(user.ID).Info("user logged in")
	return s.respondWithToken(user)
}

func (s *authService) respondWithToken(user *models.User) (*AuthResponse, error) {
	token, err := utils.GenerateToken(user.ID, user.Role, s.jwtSecret, s.tokenTTL)
	if err != nil {
		return nil, err
	}
	return &AuthResponse{User: user.Public(), Token: token}, nil
}
