// Package models contains data structures for the blog's domain models.
package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// PostStatus is the publication state of a post.
type PostStatus string

const (
	// PostStatusDraft marks a post visible only in the admin console.
	PostStatusDraft PostStatus = "draft"
	// PostStatusPublished marks a post visible on the public blog.
	PostStatusPublished PostStatus = "published"
)

// Valid reports whether s is a known status.
func (s PostStatus) Valid() bool {
	return s == PostStatusDraft || s == PostStatusPublished
}

// Post represents a blog article.
type Post struct {
	ID             uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	Title          string         `gorm:"size:255;not null" json:"title"`
	Slug           string         `gorm:"size:255;not null;uniqueIndex" json:"slug"`
	Content        datatypes.JSON `gorm:"not null" json:"content" swaggertype:"object"`
	Excerpt        *string        `gorm:"type:text" json:"excerpt"`
	FeaturedImage  *string        `gorm:"size:512" json:"featured_image"`
	Status         PostStatus     `gorm:"type:varchar(20);not null;default:'draft';index" json:"status"`
	AuthorID       uuid.UUID      `gorm:"type:uuid;not null;index" json:"author_id"`
	Author         *User          `gorm:"foreignKey:AuthorID" json:"author,omitempty"`
	CategoryID     *uuid.UUID     `gorm:"type:uuid;index" json:"category_id"`
	Category       *Category      `gorm:"foreignKey:CategoryID;constraint:OnDelete:SET NULL" json:"category,omitempty"`
	Tags           []Tag          `gorm:"many2many:post_tags;constraint:OnDelete:CASCADE" json:"tags,omitempty"`
	PublishedAt    *time.Time     `gorm:"index" json:"published_at"`
	SEOKeywords    *string        `gorm:"size:512" json:"seo_keywords"`
	SEODescription *string        `gorm:"type:text" json:"seo_description"`
	AllowComment   bool           `gorm:"not null;default:true" json:"allow_comment"`
	IsTop          bool           `gorm:"not null;default:false;index" json:"is_top"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
}

// TableName specifies the table name for GORM.
func (Post) TableName() string {
	return "posts"
}

// BeforeCreate assigns an ID when none was provided.
func (p *Post) BeforeCreate(*gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}

// EnsurePublishedAt stamps PublishedAt the first time a post is published.
// An existing timestamp is never overwritten.
func (p *Post) EnsurePublishedAt(now time.Time) {
	if p.Status == PostStatusPublished && p.PublishedAt == nil {
		t := now.UTC()
		p.PublishedAt = &t
	}
}

// PostTag links a post to a tag. Rows are replaced wholesale per post.
type PostTag struct {
	PostID uuid.UUID `gorm:"type:uuid;primaryKey" json:"post_id"`
	TagID  uuid.UUID `gorm:"type:uuid;primaryKey;index" json:"tag_id"`
}

// TableName specifies the table name for GORM.
func (PostTag) TableName() string {
	return "post_tags"
}

// AuthorPostStats summarizes an author's posts by status.
type AuthorPostStats struct {
	Total     int64 `json:"total"`
	Published int64 `json:"published"`
	Draft     int64 `json:"draft"`
}
