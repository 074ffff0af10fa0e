package service

import (
	"context"
	"encoding/xml"
	"fmt"
	"strings"
	"time"

	"inkwell/internal/cache"
	"inkwell/internal/models"
	"inkwell/internal/repository"
)

// SitemapPostLimit caps the posts listed in sitemap.xml.
const SitemapPostLimit = 5000

type sitemapURL struct {
	Loc        string `xml:"loc"`
	LastMod    string `xml:"lastmod,omitempty"`
	ChangeFreq string `xml:"changefreq,omitempty"`
	Priority   string `xml:"priority,omitempty"`
}

type urlSet struct {
	XMLName xml.Name     `xml:"urlset"`
	XMLNS   string       `xml:"xmlns,attr"`
	URLs    []sitemapURL `xml:"url"`
}

type SitemapService struct {
	posts      repository.PostRepository
	categories repository.CategoryRepository
	tags       repository.TagRepository
	settings   *SettingsService
	siteURL    string
}

func NewSitemapService(
	posts repository.PostRepository,
	categories repository.CategoryRepository,
	tags repository.TagRepository,
	settings *SettingsService,
	siteURL string,
) *SitemapService {
	return &SitemapService{
		posts:      posts,
		categories: categories,
		tags:       tags,
		settings:   settings,
		siteURL:    strings.TrimRight(siteURL, "/"),
	}
}

// Sitemap returns the cached sitemap.xml document. It is reported missing
// when the sitemap is disabled in the site settings.
func (s *SitemapService) Sitemap(ctx context.Context) ([]byte, error) {
	settings, err := s.settings.Get(ctx)
	if err != nil {
		return nil, err
	}
	if !settings.EnableSitemap {
		return nil, models.NewNotFoundError("Sitemap", "sitemap.xml")
	}

	var doc string
	err = cache.Aside(ctx, cache.SitemapKey, &doc, cache.SitemapTTL, func() error {
		out, err := s.build(ctx, s.baseURL(settings))
		if err != nil {
			return err
		}
		doc = string(out)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return []byte(doc), nil
}

// Refresh rebuilds the cached sitemap.
func (s *SitemapService) Refresh(ctx context.Context) error {
	cache.Invalidate(ctx, cache.SitemapKey)
	_, err := s.Sitemap(ctx)
	if models.IsCode(err, models.CodeNotFound) {
		return nil
	}
	return err
}

// Robots renders robots.txt pointing crawlers at the sitemap.
func (s *SitemapService) Robots(ctx context.Context) (string, error) {
	settings, err := s.settings.Get(ctx)
	if err != nil {
		return "", err
	}
	var b strings.Builder
	b.WriteString("User-agent: *\nAllow: /\nDisallow: /admin\nDisallow: /auth\n")
	if settings.EnableSitemap {
		fmt.Fprintf(&b, "Sitemap: %s/sitemap.xml\n", s.baseURL(settings))
	}
	return b.String(), nil
}

func (s *SitemapService) baseURL(settings models.SiteSettings) string {
	if settings.SiteURL != "" {
		return strings.TrimRight(settings.SiteURL, "/")
	}
	return s.siteURL
}

func (s *SitemapService) build(ctx context.Context, base string) ([]byte, error) {
	posts, err := s.posts.ListForSitemap(ctx, SitemapPostLimit)
	if err != nil {
		return nil, err
	}
	categories, err := s.categories.ListAll(ctx)
	if err != nil {
		return nil, err
	}
	tags, err := s.tags.ListAll(ctx)
	if err != nil {
		return nil, err
	}

	set := urlSet{XMLNS: "http://www.sitemaps.org/schemas/sitemap/0.9"}
	set.URLs = append(set.URLs, sitemapURL{Loc: base + "/", ChangeFreq: "daily", Priority: "1.0"})
	for _, p := range posts {
		set.URLs = append(set.URLs, sitemapURL{
			Loc:      base + "/blog/" + p.Slug,
			LastMod:  p.UpdatedAt.UTC().Format(time.DateOnly),
			Priority: "0.8",
		})
	}
	for _, c := range categories {
		set.URLs = append(set.URLs, sitemapURL{Loc: base + "/blog/category/" + c.Slug, ChangeFreq: "weekly", Priority: "0.5"})
	}
	for _, t := range tags {
		set.URLs = append(set.URLs, sitemapURL{Loc: base + "/blog/tag/" + t.Slug, ChangeFreq: "weekly", Priority: "0.4"})
	}

	out, err := xml.MarshalIndent(set, "", "  ")
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return append([]byte(xml.Header), out...), nil
}
