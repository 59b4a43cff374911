package services

import (
	"context"

	"aarohyatrika/internal/models"
	"aarohyatrika/internal/repositories/interfaces"
	"aarohyatrika/pkg/logger"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"golang.org/x/crypto/bcrypt"
)

type UserService interface {
	GetProfile(ctx context.Context, userID primitive.ObjectID) (*models.User, error)
	UpdateProfile(ctx context.Context, userID primitive.ObjectID, request *UpdateProfileRequest) (*models.User, error)
}

type UpdateProfileRequest struct {
	Name         string `json:"name"`
	Email        string `json:"email" validate:"omitempty,email"`
	ProfilePhoto string `json:"profile_photo"`
	Password     string `json:"password" validate:"omitempty,min=6"`
}

type userService struct {
	users      interfaces.UserRepository
	bcryptCost int
	logger     *logger.Logger
}

func NewUserService(users interfaces.UserRepository, bcryptCost int, log *logger.Logger) UserService {
	return &userService{
		users:      users,
		bcryptCost: bcryptCost,
		logger:     log,
	}
}

func (s *userService) GetProfile(ctx context.Context, userID primitive.ObjectID) (*models.User, error) {
	return s.users.GetByID(ctx, userID)
}

func (s *userService) UpdateProfile(ctx context.Context, userID primitive.ObjectID, request *UpdateProfileRequest) (*models.User, error) {
	updates := make(map[string]interface{})
	if request.Name != "" {
		updates["name"] = request.Name
	}
	if request.Email != "" {
		updates["email"] = request.Email
	}
	if request.ProfilePhoto != "" {
		updates["profile_photo"] = request.ProfilePhoto
	}
	if request.Password != "" {
		hash, err := bcrypt.GenerateFromPassword([]byte(request.Password), s.bcryptCost)
		if err != nil {
			return nil, err
		}
		updates["password"] = string(hash)
	}

	if len(updates) > 0 {
		if err := s.users.Update(ctx, userID, updates); err != nil {
			return nil, err
		}
		s.logger.WithUserID(userID).Info("profile updated")
	}

	return s.users.GetByID(ctx, userID)
}
