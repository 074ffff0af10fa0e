package service

import (
	"context"
	"testing"

	"inkwell/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSitemap(f *fixture) *SitemapService {
	return NewSitemapService(f.postRepo, f.categoryRepo, f.tagRepo, f.settings, "https://blog.example.com/")
}

func TestSitemapService_Sitemap(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	author := f.user(t, "author@example.com", models.RoleAuthor)
	golang := f.category(t, "Go")
	f.publish(t, author, "Hello World", golang, "Tips")
	_, err := f.posts.CreatePost(ctx, author, SavePostInput{Title: "Secret Draft"})
	require.NoError(t, err)

	doc, err := newSitemap(f).Sitemap(ctx)
	require.NoError(t, err)
	body := string(doc)

	assert.Contains(t, body, `<?xml version="1.0" encoding="UTF-8"?>`)
	assert.Contains(t, body, `xmlns="http://www.sitemaps.org/schemas/sitemap/0.9"`)
	assert.Contains(t, body, "<loc>https://blog.example.com/</loc>")
	assert.Contains(t, body, "<loc>https://blog.example.com/blog/hello-world</loc>")
	assert.Contains(t, body, "<loc>https://blog.example.com/blog/category/go</loc>")
	assert.Contains(t, body, "<loc>https://blog.example.com/blog/tag/tips</loc>")
	assert.NotContains(t, body, "secret-draft")
	assert.Regexp(t, `<lastmod>\d{4}-\d{2}-\d{2}</lastmod>`, body)
}

func TestSitemapService_UsesSettingsSiteURL(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	settings := models.DefaultSiteSettings()
	settings.SiteURL = "https://www.example.org/"
	_, err := f.settings.Update(ctx, settings)
	require.NoError(t, err)

	doc, err := newSitemap(f).Sitemap(ctx)
	require.NoError(t, err)
	assert.Contains(t, string(doc), "<loc>https://www.example.org/</loc>")

	robots, err := newSitemap(f).Robots(ctx)
	require.NoError(t, err)
	assert.Contains(t, robots, "Sitemap: https://www.example.org/sitemap.xml")
}

func TestSitemapService_Disabled(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	settings := models.DefaultSiteSettings()
	settings.EnableSitemap = false
	_, err := f.settings.Update(ctx, settings)
	require.NoError(t, err)

	s := newSitemap(f)
	_, err = s.Sitemap(ctx)
	assert.True(t, models.IsCode(err, models.CodeNotFound))
	assert.NoError(t, s.Refresh(ctx))

	robots, err := s.Robots(ctx)
	require.NoError(t, err)
	assert.Contains(t, robots, "Disallow: /admin")
	assert.NotContains(t, robots, "Sitemap:")
}
