package seed

import (
	_ "embed"
	"fmt"

	"inkwell/internal/models"

	"gopkg.in/yaml.v3"
)

//go:embed fixtures.yaml
var defaultFixtures []byte

// Fixtures is the fixed part of the demo data set.
type Fixtures struct {
	Settings   *models.SiteSettings `yaml:"settings"`
	Categories []CategoryFixture    `yaml:"categories"`
	Tags       []string             `yaml:"tags"`
	Authors    []AuthorFixture      `yaml:"authors"`
}

// CategoryFixture describes one seeded category.
type CategoryFixture struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
}

// AuthorFixture describes one seeded staff account.
type AuthorFixture struct {
	Email    string          `yaml:"email"`
	Username string          `yaml:"username"`
	Role     models.UserRole `yaml:"role"`
}

// siteSettingsYAML mirrors models.SiteSettings with snake_case keys.
type siteSettingsYAML struct {
	SiteName          string `yaml:"site_name"`
	SiteDescription   string `yaml:"site_description"`
	SiteURL           string `yaml:"site_url"`
	SEOTitle          string `yaml:"seo_title"`
	SEODescription    string `yaml:"seo_description"`
	SEOKeywords       string `yaml:"seo_keywords"`
	AllowComments     bool   `yaml:"allow_comments"`
	CommentModeration bool   `yaml:"comment_moderation"`
	PostsPerPage      int    `yaml:"posts_per_page"`
	EnableRSS         bool   `yaml:"enable_rss"`
	EnableSitemap     bool   `yaml:"enable_sitemap"`
}

// LoadFixtures parses a fixtures document. Nil or empty data loads the
// embedded default set.
func LoadFixtures(data []byte) (*Fixtures, error) {
	if len(data) == 0 {
		data = defaultFixtures
	}

	var raw struct {
		Settings   *siteSettingsYAML `yaml:"settings"`
		Categories []CategoryFixture `yaml:"categories"`
		Tags       []string          `yaml:"tags"`
		Authors    []AuthorFixture   `yaml:"authors"`
	}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse fixtures: %w", err)
	}

	out := &Fixtures{Categories: raw.Categories, Tags: raw.Tags, Authors: raw.Authors}
	if s := raw.Settings; s != nil {
		out.Settings = &models.SiteSettings{
			SiteName:          s.SiteName,
			SiteDescription:   s.SiteDescription,
			SiteURL:           s.SiteURL,
			SEOTitle:          s.SEOTitle,
			SEODescription:    s.SEODescription,
			SEOKeywords:       s.SEOKeywords,
			AllowComments:     s.AllowComments,
			CommentModeration: s.CommentModeration,
			PostsPerPage:      s.PostsPerPage,
			EnableRSS:         s.EnableRSS,
			EnableSitemap:     s.EnableSitemap,
		}
	}

	for i, a := range out.Authors {
		if a.Email == "" {
			return nil, fmt.Errorf("author %d: email is required", i)
		}
		if a.Role == "" {
			out.Authors[i].Role = models.RoleAuthor
		} else if !a.Role.Valid() {
			return nil, fmt.Errorf("author %s: unknown role %q", a.Email, a.Role)
		}
	}
	for i, c := range out.Categories {
		if c.Name == "" {
			return nil, fmt.Errorf("category %d: name is required", i)
		}
	}
	return out, nil
}
