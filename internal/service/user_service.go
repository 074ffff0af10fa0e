package service

import (
	"context"
	"strings"

	"inkwell/internal/models"
	"inkwell/internal/pagination"
	"inkwell/internal/repository"
	"inkwell/internal/repository/queries"

	"github.com/google/uuid"
)

type UserService struct {
	users repository.UserRepository
}

func NewUserService(users repository.UserRepository) *UserService {
	return &UserService{users: users}
}

// ListUsers pages accounts ordered by email, optionally filtered by role.
func (s *UserService) ListUsers(ctx context.Context, req pagination.Request, role, basePath string) (*pagination.Page[models.User], error) {
	r := models.UserRole(strings.ToLower(strings.TrimSpace(role)))
	if r != "" && !r.Valid() {
		return nil, models.NewValidationError("role must be one of: admin author reader")
	}
	q, err := queries.NormalizeTaxonomy(req, "")
	if err != nil {
		return nil, err
	}
	users, total, err := s.users.List(ctx, q, r)
	if err != nil {
		return nil, err
	}
	return pagination.MakePage(users, pagination.Meta{
		Page:     q.Page,
		PageSize: q.PageSize,
		Total:    total,
		Search:   q.Search,
		BasePath: basePath,
	}), nil
}

func (s *UserService) GetUser(ctx context.Context, id uuid.UUID) (*models.User, error) {
	return s.users.GetByID(ctx, id)
}

// Role returns the current role of a user. Sessions use it on every request.
func (s *UserService) Role(ctx context.Context, id uuid.UUID) (models.UserRole, error) {
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		return "", err
	}
	return user.Role, nil
}

// SetRole changes a user's role. Admins cannot change their own role and the
// last admin cannot be demoted.
func (s *UserService) SetRole(ctx context.Context, actor Actor, id uuid.UUID, role models.UserRole) (*models.User, error) {
	if !actor.IsAdmin() {
		return nil, models.NewForbiddenError("Admin access required")
	}
	if !role.Valid() {
		return nil, models.NewValidationError("role must be one of: admin author reader")
	}
	if id == actor.UserID {
		return nil, models.NewValidationError("You cannot change your own role")
	}
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if user.Role == role {
		return user, nil
	}
	if user.Role == models.RoleAdmin {
		admins, err := s.users.CountByRole(ctx, models.RoleAdmin)
		if err != nil {
			return nil, err
		}
		if admins <= 1 {
			return nil, models.NewConflictError("Cannot demote the last admin")
		}
	}
	if err := s.users.SetRole(ctx, id, role); err != nil {
		return nil, err
	}
	user.Role = role
	return user, nil
}
