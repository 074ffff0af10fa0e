package server

import (
	"strings"

	"inkwell/internal/models"
	"inkwell/internal/pagination"
	"inkwell/internal/repository/queries"
	"inkwell/internal/service"

	"github.com/gofiber/fiber/v2"
)

// ListAdminPosts handles GET /admin/posts
// @Summary List posts (admin)
// @Description Every composer filter is available; status defaults to all
// @Tags admin-posts
// @Security BearerAuth
// @Produce json
// @Param page query int false "Page number"
// @Param pageSize query int false "Page size (max 100)"
// @Param search query string false "Title search"
// @Param status query string false "all, draft or published"
// @Param authorId query string false "Author UUID"
// @Param categoryId query string false "Category UUID"
// @Param tagId query string false "Tag UUID"
// @Param isTop query bool false "Pinned posts only"
// @Param orderBy query string false "created_at, updated_at, published_at or title"
// @Param orderDirection query string false "asc or desc"
// @Success 200 {object} pagination.Page[models.Post]
// @Failure 400 {object} models.ErrorResponse
// @Router /admin/posts [get]
func (s *Server) ListAdminPosts(c *fiber.Ctx) error {
	params, err := postListParams(c)
	if err != nil {
		return fail(c, err)
	}

	page, err := s.postService.ListPosts(c.UserContext(), service.ListPostsInput{
		Params:   params,
		Defaults: queries.AdminDefaults,
		BasePath: "/admin/posts",
	})
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(page)
}

func postListParams(c *fiber.Ctx) (queries.PostListParams, error) {
	req := pagination.FromQuery(c.Query)
	params := queries.PostListParams{
		Page:           req.Page,
		PageSize:       req.PageSize,
		SearchTerm:     req.Search,
		Status:         c.Query("status"),
		OrderBy:        c.Query("orderBy"),
		OrderDirection: c.Query("orderDirection"),
	}

	var err error
	if params.AuthorID, err = queryUUID(c, "authorId"); err != nil {
		return params, err
	}
	if params.CategoryID, err = queryUUID(c, "categoryId"); err != nil {
		return params, err
	}
	if params.TagID, err = queryUUID(c, "tagId"); err != nil {
		return params, err
	}
	if params.IsTop, err = queryBool(c, "isTop"); err != nil {
		return params, err
	}
	return params, nil
}

// GetPostStats handles GET /admin/posts/stats. Authors see their own counts;
// admins may pass authorId.
// @Summary Post counts by status
// @Tags admin-posts
// @Security BearerAuth
// @Produce json
// @Param authorId query string false "Author UUID (admin only)"
// @Success 200 {object} models.AuthorPostStats
// @Router /admin/posts/stats [get]
func (s *Server) GetPostStats(c *fiber.Ctx) error {
	actor, err := currentActor(c)
	if err != nil {
		return fail(c, err)
	}
	authorID, err := queryUUID(c, "authorId")
	if err != nil {
		return fail(c, err)
	}
	stats, err := s.postService.GetAuthorPostStats(c.UserContext(), actor, authorID)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(stats)
}

// CheckPostSlug handles GET /admin/posts/slug-available?slug=...&excludeId=...
// @Summary Post slug availability
// @Tags admin-posts
// @Security BearerAuth
// @Produce json
// @Param slug query string true "Slug"
// @Param excludeId query string false "Post being edited"
// @Success 200 {object} object{slug=string,available=bool}
// @Router /admin/posts/slug-available [get]
func (s *Server) CheckPostSlug(c *fiber.Ctx) error {
	slug := strings.TrimSpace(c.Query("slug"))
	excludeID, err := queryUUID(c, "excludeId")
	if err != nil {
		return fail(c, err)
	}
	ok, err := s.postService.IsSlugAvailable(c.UserContext(), slug, excludeID)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{"slug": slug, "available": ok})
}

// GetTopPost handles GET /admin/posts/top
func (s *Server) GetTopPost(c *fiber.Ctx) error {
	post, err := s.postService.GetTopPost(c.UserContext())
	if err != nil {
		return fail(c, err)
	}
	if post == nil {
		return fail(c, models.NewNotFoundError("Pinned post", "top"))
	}
	return c.JSON(post)
}

// GetAdminPost handles GET /admin/posts/:id
// @Summary Get post (admin)
// @Tags admin-posts
// @Security BearerAuth
// @Produce json
// @Param id path string true "Post ID"
// @Success 200 {object} models.Post
// @Failure 404 {object} models.ErrorResponse
// @Router /admin/posts/{id} [get]
func (s *Server) GetAdminPost(c *fiber.Ctx) error {
	id, err := parseUUIDParam(c, "id")
	if err != nil {
		return fail(c, err)
	}
	post, err := s.postService.GetPostByID(c.UserContext(), id)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(post)
}

// GetPostTags handles GET /admin/posts/:id/tags
func (s *Server) GetPostTags(c *fiber.Ctx) error {
	id, err := parseUUIDParam(c, "id")
	if err != nil {
		return fail(c, err)
	}
	tags, err := s.postService.GetPostTags(c.UserContext(), id)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(tags)
}

// CreatePost handles POST /admin/posts
// @Summary Create post
// @Tags admin-posts
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param request body service.SavePostInput true "Post"
// @Success 201 {object} models.Post
// @Failure 400 {object} models.ErrorResponse
// @Failure 409 {object} models.ErrorResponse
// @Router /admin/posts [post]
func (s *Server) CreatePost(c *fiber.Ctx) error {
	actor, err := currentActor(c)
	if err != nil {
		return fail(c, err)
	}
	var req service.SavePostInput
	if err := parseBody(c, &req); err != nil {
		return fail(c, err)
	}

	post, err := s.postService.CreatePost(c.UserContext(), actor, req)
	if err != nil {
		return fail(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(post)
}

// UpdatePost handles PUT /admin/posts/:id. The body replaces the post,
// including its tag set.
// @Summary Replace post
// @Tags admin-posts
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param id path string true "Post ID"
// @Param request body service.SavePostInput true "Post"
// @Success 200 {object} models.Post
// @Failure 400 {object} models.ErrorResponse
// @Failure 403 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /admin/posts/{id} [put]
func (s *Server) UpdatePost(c *fiber.Ctx) error {
	actor, err := currentActor(c)
	if err != nil {
		return fail(c, err)
	}
	id, err := parseUUIDParam(c, "id")
	if err != nil {
		return fail(c, err)
	}
	var req service.SavePostInput
	if err := parseBody(c, &req); err != nil {
		return fail(c, err)
	}

	post, err := s.postService.UpdatePost(c.UserContext(), actor, id, req)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(post)
}

// UpdatePostStatus handles PATCH /admin/posts/:id/status
// @Summary Publish or unpublish
// @Tags admin-posts
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param id path string true "Post ID"
// @Param request body object{status=string} true "draft or published"
// @Success 200 {object} models.Post
// @Router /admin/posts/{id}/status [patch]
func (s *Server) UpdatePostStatus(c *fiber.Ctx) error {
	actor, err := currentActor(c)
	if err != nil {
		return fail(c, err)
	}
	id, err := parseUUIDParam(c, "id")
	if err != nil {
		return fail(c, err)
	}
	var req struct {
		Status models.PostStatus `json:"status"`
	}
	if err := parseBody(c, &req); err != nil {
		return fail(c, err)
	}

	post, err := s.postService.UpdatePostStatus(c.UserContext(), actor, id, req.Status)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(post)
}

// DeletePost handles DELETE /admin/posts/:id
// @Summary Delete post
// @Tags admin-posts
// @Security BearerAuth
// @Param id path string true "Post ID"
// @Success 204
// @Router /admin/posts/{id} [delete]
func (s *Server) DeletePost(c *fiber.Ctx) error {
	actor, err := currentActor(c)
	if err != nil {
		return fail(c, err)
	}
	id, err := parseUUIDParam(c, "id")
	if err != nil {
		return fail(c, err)
	}
	if err := s.postService.DeletePost(c.UserContext(), actor, id); err != nil {
		return fail(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}
