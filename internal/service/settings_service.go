package service

import (
	"context"
	"strings"

	"inkwell/internal/cache"
	"inkwell/internal/models"
	"inkwell/internal/repository"
	"inkwell/internal/validation"
)

type SettingsService struct {
	settings repository.SettingsRepository
}

func NewSettingsService(settings repository.SettingsRepository) *SettingsService {
	return &SettingsService{settings: settings}
}

// Get returns the site settings, defaults included, through the cache.
func (s *SettingsService) Get(ctx context.Context) (models.SiteSettings, error) {
	var out models.SiteSettings
	err := cache.Aside(ctx, cache.SiteSettingsKey, &out, cache.SettingsTTL, func() error {
		var err error
		out, err = s.settings.Get(ctx)
		return err
	})
	if err != nil {
		return models.SiteSettings{}, err
	}
	if out.PostsPerPage <= 0 {
		out.PostsPerPage = models.DefaultPostsPerPage
	}
	return out, nil
}

// Update validates and stores the full settings document.
func (s *SettingsService) Update(ctx context.Context, in models.SiteSettings) (models.SiteSettings, error) {
	in.SiteName = strings.TrimSpace(in.SiteName)
	in.SiteURL = strings.TrimRight(strings.TrimSpace(in.SiteURL), "/")
	if in.PostsPerPage == 0 {
		in.PostsPerPage = models.DefaultPostsPerPage
	}
	if err := validation.Struct(in); err != nil {
		return models.SiteSettings{}, err
	}
	if err := s.settings.Save(ctx, in); err != nil {
		return models.SiteSettings{}, err
	}
	return in, nil
}
