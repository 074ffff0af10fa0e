package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

const (
	// AnonymousAuthorName is shown when an author has neither username nor email.
	AnonymousAuthorName = "anonymous user"
	// UncategorizedName is shown for posts without a category.
	UncategorizedName = "uncategorized"
)

// AuthorSummary is the display form of a post author.
type AuthorSummary struct {
	ID     uuid.UUID `json:"id"`
	Name   string    `json:"name"`
	Avatar string    `json:"avatar"`
}

// CategorySummary is the display form of a post category.
type CategorySummary struct {
	ID   *uuid.UUID `json:"id,omitempty"`
	Name string     `json:"name"`
	Slug string     `json:"slug,omitempty"`
}

// TagSummary is the display form of a post tag.
type TagSummary struct {
	ID   uuid.UUID `json:"id"`
	Name string    `json:"name"`
	Slug string    `json:"slug"`
}

// PostDetail is a denormalized post for the article page.
type PostDetail struct {
	ID             uuid.UUID       `json:"id"`
	Title          string          `json:"title"`
	Slug           string          `json:"slug"`
	Content        datatypes.JSON  `json:"content" swaggertype:"object"`
	Excerpt        *string         `json:"excerpt"`
	FeaturedImage  *string         `json:"featured_image"`
	Status         PostStatus      `json:"status"`
	PublishedAt    *time.Time      `json:"published_at"`
	SEOKeywords    *string         `json:"seo_keywords"`
	SEODescription *string         `json:"seo_description"`
	AllowComment   bool            `json:"allow_comment"`
	IsTop          bool            `json:"is_top"`
	Author         AuthorSummary   `json:"author"`
	Category       CategorySummary `json:"category"`
	Tags           []TagSummary    `json:"tags"`
	Views          int             `json:"views"`
	Likes          int             `json:"likes"`
	CommentsCount  int             `json:"comments_count"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

// NewPostDetail flattens a post loaded with its author, category and tags.
// Missing relations are replaced with display placeholders and counters are zero.
func NewPostDetail(p *Post, defaultAvatar string) PostDetail {
	d := PostDetail{
		ID:             p.ID,
		Title:          p.Title,
		Slug:           p.Slug,
		Content:        p.Content,
		Excerpt:        p.Excerpt,
		FeaturedImage:  p.FeaturedImage,
		Status:         p.Status,
		PublishedAt:    p.PublishedAt,
		SEOKeywords:    p.SEOKeywords,
		SEODescription: p.SEODescription,
		AllowComment:   p.AllowComment,
		IsTop:          p.IsTop,
		Author: AuthorSummary{
			ID:     p.AuthorID,
			Name:   p.Author.DisplayName(),
			Avatar: defaultAvatar,
		},
		Category:  CategorySummary{Name: UncategorizedName},
		Tags:      make([]TagSummary, 0, len(p.Tags)),
		CreatedAt: p.CreatedAt,
		UpdatedAt: p.UpdatedAt,
	}

	if p.Author != nil && p.Author.AvatarURL != nil && *p.Author.AvatarURL != "" {
		d.Author.Avatar = *p.Author.AvatarURL
	}
	if p.Category != nil {
		id := p.Category.ID
		d.Category = CategorySummary{ID: &id, Name: p.Category.Name, Slug: p.Category.Slug}
	}
	for _, t := range p.Tags {
		d.Tags = append(d.Tags, TagSummary{ID: t.ID, Name: t.Name, Slug: t.Slug})
	}

	return d
}
