package service

import (
	"context"
	"testing"

	"inkwell/internal/models"
	"inkwell/internal/pagination"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCategoryService_CRUD(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	desc := "  Systems programming  "
	c, err := f.categories.CreateCategory(ctx, CategoryInput{Name: "  Go Lang ", Description: &desc})
	require.NoError(t, err)
	assert.Equal(t, "Go Lang", c.Name)
	assert.Equal(t, "go-lang", c.Slug)
	require.NotNil(t, c.Description)
	assert.Equal(t, "Systems programming", *c.Description)

	bySlug, err := f.categories.GetCategory(ctx, "go-lang")
	require.NoError(t, err)
	assert.Equal(t, c.ID, bySlug.ID)
	byID, err := f.categories.GetCategory(ctx, c.ID.String())
	require.NoError(t, err)
	assert.Equal(t, "go-lang", byID.Slug)

	blank := " "
	updated, err := f.categories.UpdateCategory(ctx, c.ID, CategoryInput{Name: "Golang", Slug: "golang", Description: &blank})
	require.NoError(t, err)
	assert.Equal(t, "golang", updated.Slug)
	assert.Nil(t, updated.Description)

	ok, err := f.categories.IsSlugAvailable(ctx, "golang", &c.ID)
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = f.categories.IsSlugAvailable(ctx, "golang", nil)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, f.categories.DeleteCategory(ctx, c.ID))
	_, err = f.categories.GetCategory(ctx, "golang")
	assert.True(t, models.IsCode(err, models.CodeNotFound))
}

func TestCategoryService_Validation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	tests := []struct {
		name string
		in   CategoryInput
	}{
		{"missing name", CategoryInput{Name: "  "}},
		{"bad slug", CategoryInput{Name: "Go", Slug: "Not A Slug"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.categories.CreateCategory(ctx, tt.in)
			assert.True(t, models.IsCode(err, models.CodeValidation), "%v", err)
		})
	}
}

func TestCategoryService_ListCategories(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	for _, name := range []string{"Rust", "Go", "Python"} {
		f.category(t, name)
	}

	page, err := f.categories.ListCategories(ctx, pagination.Request{PageSize: 2}, "", "/admin/categories")
	require.NoError(t, err)
	require.Len(t, page.Data, 2)
	assert.Equal(t, "Go", page.Data[0].Name)
	assert.Equal(t, 2, page.TotalPages)

	desc, err := f.categories.ListCategories(ctx, pagination.Request{}, "desc", "/admin/categories")
	require.NoError(t, err)
	assert.Equal(t, "Rust", desc.Data[0].Name)

	_, err = f.categories.ListCategories(ctx, pagination.Request{}, "sideways", "/admin/categories")
	assert.True(t, models.IsCode(err, models.CodeValidation))
}

func TestSettingsService(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	got, err := f.settings.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, models.DefaultSiteSettings(), got)

	in := models.DefaultSiteSettings()
	in.SiteName = "  Field Notes "
	in.SiteURL = "https://notes.example.com/"
	in.PostsPerPage = 0
	saved, err := f.settings.Update(ctx, in)
	require.NoError(t, err)
	assert.Equal(t, "Field Notes", saved.SiteName)
	assert.Equal(t, "https://notes.example.com", saved.SiteURL)
	assert.Equal(t, models.DefaultPostsPerPage, saved.PostsPerPage)

	got, err = f.settings.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, saved, got)

	bad := models.DefaultSiteSettings()
	bad.PostsPerPage = 500
	_, err = f.settings.Update(ctx, bad)
	assert.True(t, models.IsCode(err, models.CodeValidation))
	bad = models.DefaultSiteSettings()
	bad.SiteURL = "not a url"
	_, err = f.settings.Update(ctx, bad)
	assert.True(t, models.IsCode(err, models.CodeValidation))
}
