package services

import (
	"context"
	"fmt"

	"github.com/Dosada05/tombola/models"
	"github.com/Dosada05/tombola/repositories"
)

const defaultUsersPageSize = 50

type ListUsersFilter struct {
	Search string
	Role   *models.UserRole
	Limit  int
	Offset int
}

type UserService interface {
	GetProfile(ctx context.Context, actor models.Principal) (*models.User, error)
	// ListUsers is for admins picking owners and allowed users of a game.
	ListUsers(ctx context.Context, actor models.Principal, filter ListUsersFilter) ([]models.User, error)
}

type userService struct {
	userRepo repositories.UserRepository
}

func NewUserService(userRepo repositories.UserRepository) UserService {
	return &userService{userRepo: userRepo}
}

func (s *userService) GetProfile(ctx context.Context, actor models.Principal) (*models.User, error) {
	user, err := s.userRepo.GetByID(ctx, actor.UserID)
	if err != nil {
		return nil, translateRepoError(err)
	}
	user.PasswordHash = ""
	return user, nil
}

func (s *userService) ListUsers(ctx context.Context, actor models.Principal, filter ListUsersFilter) ([]models.User, error) {
	if !actor.IsAdmin() {
		return nil, ErrForbiddenOperation
	}
	if filter.Limit <= 0 {
		filter.Limit = defaultUsersPageSize
	}

	users, err := s.userRepo.List(ctx, repositories.ListUsersFilter{
		Search: filter.Search,
		Role:   filter.Role,
		Limit:  filter.Limit,
		Offset: filter.Offset,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	for i := range users {
		users[i].PasswordHash = ""
	}
	return users, nil
}
