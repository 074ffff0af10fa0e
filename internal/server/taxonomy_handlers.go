package server

import (
	"context"
	"strings"

	"inkwell/internal/models"
	"inkwell/internal/pagination"
	"inkwell/internal/service"
	"inkwell/internal/validation"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

// checkSlug answers a slug availability query through check.
func checkSlug(c *fiber.Ctx, check func(ctx context.Context, slug string, excludeID *uuid.UUID) (bool, error)) error {
	slug := strings.TrimSpace(c.Query("slug"))
	if err := validation.ValidateSlug(slug); err != nil {
		return fail(c, models.NewValidationError(err.Error()))
	}
	excludeID, err := queryUUID(c, "excludeId")
	if err != nil {
		return fail(c, err)
	}
	ok, err := check(c.UserContext(), slug, excludeID)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{"slug": slug, "available": ok})
}

// ListCategories handles GET /admin/categories
// @Summary List categories
// @Tags admin-taxonomy
// @Security BearerAuth
// @Produce json
// @Param page query int false "Page number"
// @Param pageSize query int false "Page size (default 50)"
// @Param search query string false "Name search"
// @Param orderDirection query string false "asc or desc"
// @Success 200 {object} pagination.Page[models.Category]
// @Router /admin/categories [get]
func (s *Server) ListCategories(c *fiber.Ctx) error {
	page, err := s.categoryService.ListCategories(c.UserContext(),
		pagination.FromQuery(c.Query), c.Query("orderDirection"), "/admin/categories")
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(page)
}

// GetCategoryStats handles GET /admin/categories/stats
func (s *Server) GetCategoryStats(c *fiber.Ctx) error {
	stats, err := s.categoryService.Stats(c.UserContext())
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(stats)
}

// CheckCategorySlug handles GET /admin/categories/slug-available
func (s *Server) CheckCategorySlug(c *fiber.Ctx) error {
	return checkSlug(c, s.categoryService.IsSlugAvailable)
}

// GetCategory handles GET /admin/categories/:id (ID or slug)
func (s *Server) GetCategory(c *fiber.Ctx) error {
	category, err := s.categoryService.GetCategory(c.UserContext(), c.Params("id"))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(category)
}

// CreateCategory handles POST /admin/categories
// @Summary Create category
// @Tags admin-taxonomy
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param request body service.CategoryInput true "Category"
// @Success 201 {object} models.Category
// @Failure 409 {object} models.ErrorResponse
// @Router /admin/categories [post]
func (s *Server) CreateCategory(c *fiber.Ctx) error {
	var req service.CategoryInput
	if err := parseBody(c, &req); err != nil {
		return fail(c, err)
	}
	category, err := s.categoryService.CreateCategory(c.UserContext(), req)
	if err != nil {
		return fail(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(category)
}

// UpdateCategory handles PUT /admin/categories/:id
func (s *Server) UpdateCategory(c *fiber.Ctx) error {
	id, err := parseUUIDParam(c, "id")
	if err != nil {
		return fail(c, err)
	}
	var req service.CategoryInput
	if err := parseBody(c, &req); err != nil {
		return fail(c, err)
	}
	category, err := s.categoryService.UpdateCategory(c.UserContext(), id, req)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(category)
}

// DeleteCategory handles DELETE /admin/categories/:id. Posts of the
// category become uncategorized.
func (s *Server) DeleteCategory(c *fiber.Ctx) error {
	id, err := parseUUIDParam(c, "id")
	if err != nil {
		return fail(c, err)
	}
	if err := s.categoryService.DeleteCategory(c.UserContext(), id); err != nil {
		return fail(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// ListTags handles GET /admin/tags
// @Summary List tags
// @Tags admin-taxonomy
// @Security BearerAuth
// @Produce json
// @Param page query int false "Page number"
// @Param pageSize query int false "Page size (default 50)"
// @Param search query string false "Name search"
// @Param orderDirection query string false "asc or desc"
// @Success 200 {object} pagination.Page[models.Tag]
// @Router /admin/tags [get]
func (s *Server) ListTags(c *fiber.Ctx) error {
	page, err := s.tagService.ListTags(c.UserContext(),
		pagination.FromQuery(c.Query), c.Query("orderDirection"), "/admin/tags")
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(page)
}

// GetTagStats handles GET /admin/tags/stats
func (s *Server) GetTagStats(c *fiber.Ctx) error {
	stats, err := s.tagService.Stats(c.UserContext())
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(stats)
}

// CheckTagSlug handles GET /admin/tags/slug-available
func (s *Server) CheckTagSlug(c *fiber.Ctx) error {
	return checkSlug(c, s.tagService.IsSlugAvailable)
}

// GetTag handles GET /admin/tags/:id (ID or slug)
func (s *Server) GetTag(c *fiber.Ctx) error {
	tag, err := s.tagService.GetTag(c.UserContext(), c.Params("id"))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(tag)
}

// CreateTag handles POST /admin/tags
func (s *Server) CreateTag(c *fiber.Ctx) error {
	var req service.TagInput
	if err := parseBody(c, &req); err != nil {
		return fail(c, err)
	}
	tag, err := s.tagService.CreateTag(c.UserContext(), req)
	if err != nil {
		return fail(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(tag)
}

// UpdateTag handles PUT /admin/tags/:id
func (s *Server) UpdateTag(c *fiber.Ctx) error {
	id, err := parseUUIDParam(c, "id")
	if err != nil {
		return fail(c, err)
	}
	var req service.TagInput
	if err := parseBody(c, &req); err != nil {
		return fail(c, err)
	}
	tag, err := s.tagService.UpdateTag(c.UserContext(), id, req)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(tag)
}

// DeleteTag handles DELETE /admin/tags/:id
func (s *Server) DeleteTag(c *fiber.Ctx) error {
	id, err := parseUUIDParam(c, "id")
	if err != nil {
		return fail(c, err)
	}
	if err := s.tagService.DeleteTag(c.UserContext(), id); err != nil {
		return fail(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}
