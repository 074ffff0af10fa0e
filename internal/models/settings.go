package models

import (
	"time"

	"gorm.io/datatypes"
)

// SiteSettingsKey is the row key holding the site-wide settings document.
const SiteSettingsKey = "site"

// DefaultPostsPerPage is the home feed page size when settings are absent.
const DefaultPostsPerPage = 10

// SiteSettings is the admin-editable site configuration.
type SiteSettings struct {
	SiteName          string `json:"site_name" validate:"max=120"`
	SiteDescription   string `json:"site_description" validate:"max=500"`
	SiteURL           string `json:"site_url" validate:"omitempty,url"`
	SiteLogo          string `json:"site_logo" validate:"max=512"`
	SiteFavicon       string `json:"site_favicon" validate:"max=512"`
	SEOTitle          string `json:"seo_title" validate:"max=120"`
	SEODescription    string `json:"seo_description" validate:"max=500"`
	SEOKeywords       string `json:"seo_keywords" validate:"max=500"`
	AllowComments     bool   `json:"allow_comments"`
	CommentModeration bool   `json:"comment_moderation"`
	PostsPerPage      int    `json:"posts_per_page" validate:"min=1,max=100"`
	EnableRSS         bool   `json:"enable_rss"`
	EnableSitemap     bool   `json:"enable_sitemap"`
}

// DefaultSiteSettings returns the settings used before an admin saves any.
func DefaultSiteSettings() SiteSettings {
	return SiteSettings{
		SiteName:          "Inkwell",
		SiteDescription:   "A blog",
		AllowComments:     true,
		CommentModeration: true,
		PostsPerPage:      DefaultPostsPerPage,
		EnableRSS:         true,
		EnableSitemap:     true,
	}
}

// SiteSetting stores a JSON settings document under a key.
type SiteSetting struct {
	Key       string                           `gorm:"size:64;primaryKey" json:"key"`
	Value     datatypes.JSONType[SiteSettings] `gorm:"not null" json:"value"`
	UpdatedAt time.Time                        `json:"updated_at"`
}

// TableName specifies the table name for GORM.
func (SiteSetting) TableName() string {
	return "site_settings"
}
