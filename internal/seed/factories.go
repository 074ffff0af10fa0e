// Package seed fills a database with demo content for development and tests.
package seed

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"inkwell/internal/models"
	"inkwell/internal/service"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// Factory builds fake domain values. A Factory with the same seed produces
// the same sequence.
type Factory struct {
	faker   *gofakeit.Faker
	maxDays int
}

// NewFactory creates a Factory. A zero seed picks a random one.
func NewFactory(seed int64, maxDays int) *Factory {
	if maxDays <= 0 {
		maxDays = 90
	}
	return &Factory{faker: gofakeit.New(seed), maxDays: maxDays}
}

// User builds an unsaved, verified account with a unique email.
func (f *Factory) User(role models.UserRole, passwordHash string) *models.User {
	username := strings.ToLower(f.faker.Username()) + fmt.Sprintf("%d", f.faker.Number(100, 999))
	verified := f.PastTime()
	avatar := fmt.Sprintf("https://i.pravatar.cc/150?u=%s", f.faker.UUID())
	return &models.User{
		Email:           username + "@" + f.faker.DomainName(),
		Username:        &username,
		Password:        passwordHash,
		AvatarURL:       &avatar,
		Role:            role,
		EmailVerifiedAt: &verified,
	}
}

// PastTime returns a time within the last maxDays days.
func (f *Factory) PastTime() time.Time {
	back := time.Duration(f.faker.Number(0, f.maxDays*24*60)) * time.Minute
	return time.Now().Add(-back)
}

// Post builds the input for one post. Published posts need a category.
func (f *Factory) Post(categoryID *uuid.UUID, tags []string, published bool) service.SavePostInput {
	title := strings.TrimSuffix(f.faker.Sentence(f.faker.Number(3, 8)), ".")
	excerpt := f.faker.Sentence(20)
	image := fmt.Sprintf("https://picsum.photos/seed/%s/1200/630", f.faker.UUID())
	keywords := strings.Join(tags, ", ")
	status := models.PostStatusDraft
	if published && categoryID != nil {
		status = models.PostStatusPublished
	}
	return service.SavePostInput{
		Title:          title,
		Content:        f.Document(f.faker.Number(2, 6)),
		Excerpt:        &excerpt,
		FeaturedImage:  &image,
		Status:         status,
		CategoryID:     categoryID,
		Tags:           tags,
		SEOKeywords:    &keywords,
		SEODescription: &excerpt,
	}
}

// Document builds an editor document with the given number of paragraphs.
func (f *Factory) Document(paragraphs int) datatypes.JSON {
	type node struct {
		Type    string `json:"type"`
		Text    string `json:"text,omitempty"`
		Level   int    `json:"level,omitempty"`
		Content []node `json:"content,omitempty"`
	}
	doc := node{Type: "doc"}
	doc.Content = append(doc.Content, node{
		Type:    "heading",
		Level:   2,
		Content: []node{{Type: "text", Text: f.faker.HipsterSentence(4)}},
	})
	for i := 0; i < paragraphs; i++ {
		doc.Content = append(doc.Content, node{
			Type:    "paragraph",
			Content: []node{{Type: "text", Text: f.faker.Paragraph(1, 4, 12, " ")}},
		})
	}
	raw, _ := json.Marshal(doc)
	return datatypes.JSON(raw)
}

// PickTags returns up to n distinct names from pool.
func (f *Factory) PickTags(pool []string, n int) []string {
	if n > len(pool) {
		n = len(pool)
	}
	idx := make([]int, len(pool))
	for i := range idx {
		idx[i] = i
	}
	f.faker.ShuffleInts(idx)
	out := make([]string, 0, n)
	for _, i := range idx[:n] {
		out = append(out, pool[i])
	}
	return out
}

// Bool returns true with probability pct/100.
func (f *Factory) Bool(pct int) bool {
	return f.faker.Number(1, 100) <= pct
}

// Intn returns a value in [0, n).
func (f *Factory) Intn(n int) int {
	if n <= 1 {
		return 0
	}
	return f.faker.Number(0, n-1)
}
