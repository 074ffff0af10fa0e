package server

import (
	"inkwell/internal/middleware"
	"inkwell/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

// FeatureFlags is the configured and evaluated flag state for one user.
type FeatureFlags struct {
	Raw       map[string]string `json:"raw"`
	Evaluated map[string]bool   `json:"evaluated"`
}

// SettingsResponse is the admin settings document plus the flag snapshot.
type SettingsResponse struct {
	Settings     models.SiteSettings `json:"settings"`
	FeatureFlags FeatureFlags        `json:"feature_flags"`
}

func (s *Server) flagSnapshot(c *fiber.Ctx) FeatureFlags {
	userID := uuid.Nil
	if sess, ok := middleware.CurrentSession(c); ok {
		userID = sess.UserID
	}
	if s.featureFlags == nil {
		return FeatureFlags{Raw: map[string]string{}, Evaluated: map[string]bool{}}
	}
	return FeatureFlags{Raw: s.featureFlags.Raw(), Evaluated: s.featureFlags.Snapshot(userID)}
}

// GetSettings handles GET /admin/settings
// @Summary Site settings
// @Tags admin-settings
// @Security BearerAuth
// @Produce json
// @Success 200 {object} SettingsResponse
// @Router /admin/settings [get]
func (s *Server) GetSettings(c *fiber.Ctx) error {
	settings, err := s.settingsService.Get(c.UserContext())
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(SettingsResponse{Settings: settings, FeatureFlags: s.flagSnapshot(c)})
}

// UpdateSettings handles PUT /admin/settings. The body replaces the whole document.
// @Summary Replace site settings
// @Tags admin-settings
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param request body models.SiteSettings true "Settings"
// @Success 200 {object} SettingsResponse
// @Failure 400 {object} models.ErrorResponse
// @Router /admin/settings [put]
func (s *Server) UpdateSettings(c *fiber.Ctx) error {
	var req models.SiteSettings
	if err := parseBody(c, &req); err != nil {
		return fail(c, err)
	}
	saved, err := s.settingsService.Update(c.UserContext(), req)
	if err != nil {
		return fail(c, err)
	}
	if err := s.sitemapService.Refresh(c.UserContext()); err != nil {
		middleware.Logger.WarnContext(c.UserContext(), "sitemap refresh after settings update failed", "error", err)
	}
	return c.JSON(SettingsResponse{Settings: saved, FeatureFlags: s.flagSnapshot(c)})
}

// GetFeatureFlags returns configured feature flags and their state for the current user.
func (s *Server) GetFeatureFlags(c *fiber.Ctx) error {
	return c.JSON(s.flagSnapshot(c))
}
