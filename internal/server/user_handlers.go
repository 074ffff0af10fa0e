package server

import (
	"context"
	"errors"
	"time"

	"inkwell/internal/models"
	"inkwell/internal/pagination"

	"github.com/gofiber/fiber/v2"
)

// ListUsers handles GET /admin/users
// @Summary List accounts
// @Tags admin-users
// @Security BearerAuth
// @Produce json
// @Param page query int false "Page number"
// @Param pageSize query int false "Page size"
// @Param search query string false "Email or username search"
// @Param role query string false "admin, author or reader"
// @Success 200 {object} pagination.Page[models.User]
// @Router /admin/users [get]
func (s *Server) ListUsers(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), 5*time.Second)
	defer cancel()

	page, err := s.userService.ListUsers(ctx, pagination.FromQuery(c.Query), c.Query("role"), "/admin/users")
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return c.Status(fiber.StatusGatewayTimeout).JSON(models.ErrorResponse{Error: "Request timeout"})
		}
		return fail(c, err)
	}
	return c.JSON(page)
}

// GetUser handles GET /admin/users/:id
func (s *Server) GetUser(c *fiber.Ctx) error {
	id, err := parseUUIDParam(c, "id")
	if err != nil {
		return fail(c, err)
	}
	user, err := s.userService.GetUser(c.UserContext(), id)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(user)
}

// SetUserRole handles POST /admin/users/:id/role
// @Summary Change a user's role
// @Tags admin-users
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param id path string true "User ID"
// @Param request body object{role=string} true "admin, author or reader"
// @Success 200 {object} models.User
// @Failure 400 {object} models.ErrorResponse
// @Failure 409 {object} models.ErrorResponse
// @Router /admin/users/{id}/role [post]
func (s *Server) SetUserRole(c *fiber.Ctx) error {
	actor, err := currentActor(c)
	if err != nil {
		return fail(c, err)
	}
	id, err := parseUUIDParam(c, "id")
	if err != nil {
		return fail(c, err)
	}
	var req struct {
		Role models.UserRole `json:"role"`
	}
	if err := parseBody(c, &req); err != nil {
		return fail(c, err)
	}

	user, err := s.userService.SetRole(c.UserContext(), actor, id, req.Role)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(user)
}
