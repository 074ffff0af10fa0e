package server

import (
	"inkwell/internal/models"

	"github.com/gofiber/fiber/v2"
)

// GetHome handles GET /
// @Summary Home feed
// @Description Published posts with category and tag stats and the pinned post on page 1
// @Tags blog
// @Produce json
// @Param search query string false "Title search"
// @Param page query int false "Page number"
// @Success 200 {object} service.HomeFeed
// @Failure 400 {object} models.ErrorResponse
// @Router / [get]
func (s *Server) GetHome(c *fiber.Ctx) error {
	feed, err := s.feedService.Home(c.UserContext(), publicPageRequest(c))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(feed)
}

// GetArticle handles GET /blog/:id
// @Summary Article
// @Description Published post detail by ID or slug
// @Tags blog
// @Produce json
// @Param id path string true "Post ID or slug"
// @Success 200 {object} models.PostDetail
// @Failure 404 {object} models.ErrorResponse
// @Router /blog/{id} [get]
func (s *Server) GetArticle(c *fiber.Ctx) error {
	post, err := s.feedService.Article(c.UserContext(), c.Params("id"))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(post)
}

// GetCategoryFeed handles GET /blog/category/:id
// @Summary Category feed
// @Tags blog
// @Produce json
// @Param id path string true "Category ID or slug"
// @Param search query string false "Title search"
// @Param page query int false "Page number"
// @Success 200 {object} service.CategoryFeed
// @Failure 404 {object} models.ErrorResponse
// @Router /blog/category/{id} [get]
func (s *Server) GetCategoryFeed(c *fiber.Ctx) error {
	feed, err := s.feedService.Category(c.UserContext(), c.Params("id"), publicPageRequest(c))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(feed)
}

// GetTagFeed handles GET /blog/tag/:id
// @Summary Tag feed
// @Tags blog
// @Produce json
// @Param id path string true "Tag ID or slug"
// @Param search query string false "Title search"
// @Param page query int false "Page number"
// @Success 200 {object} service.TagFeed
// @Failure 404 {object} models.ErrorResponse
// @Router /blog/tag/{id} [get]
func (s *Server) GetTagFeed(c *fiber.Ctx) error {
	feed, err := s.feedService.Tag(c.UserContext(), c.Params("id"), publicPageRequest(c))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(feed)
}

// GetSitemap handles GET /sitemap.xml
func (s *Server) GetSitemap(c *fiber.Ctx) error {
	doc, err := s.sitemapService.Sitemap(c.UserContext())
	if err != nil {
		return fail(c, err)
	}
	c.Set(fiber.HeaderCacheControl, "public, max-age=900")
	c.Type("xml", "utf-8")
	return c.Send(doc)
}

// GetRobots handles GET /robots.txt
func (s *Server) GetRobots(c *fiber.Ctx) error {
	body, err := s.sitemapService.Robots(c.UserContext())
	if err != nil {
		return fail(c, err)
	}
	c.Type("txt", "utf-8")
	return c.SendString(body)
}

// ServeMedia handles GET /media/:name. Stored names are content hashes, so
// responses never change.
func (s *Server) ServeMedia(c *fiber.Ctx) error {
	path, err := s.mediaService.Open(c.Params("name"))
	if err != nil {
		return fail(c, err)
	}
	c.Set(fiber.HeaderCacheControl, "public, max-age=31536000, immutable")
	if err := c.SendFile(path); err != nil {
		return models.NewInternalError(err)
	}
	return nil
}
