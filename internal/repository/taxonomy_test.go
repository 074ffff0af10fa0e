package repository

import (
	"context"
	"testing"

	"inkwell/internal/models"
	"inkwell/internal/pagination"
	"inkwell/internal/repository/queries"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func taxonomyQuery(t *testing.T, req pagination.Request, dir string) queries.TaxonomyQuery {
	t.Helper()
	q, err := queries.NormalizeTaxonomy(req, dir)
	require.NoError(t, err)
	return q
}

func TestCategoryRepository_ListAndSearch(t *testing.T) {
	db := newTestDB(t)
	repo := NewCategoryRepository(db)
	ctx := context.Background()

	seedCategory(t, db, "Golang", "golang")
	seedCategory(t, db, "Rust", "rust")
	seedCategory(t, db, "Databases", "databases")
	seedCategory(t, db, "Go tooling", "go-tooling")

	all, count, err := repo.List(ctx, taxonomyQuery(t, pagination.Request{}, ""))
	require.NoError(t, err)
	assert.Equal(t, int64(4), count)
	require.Len(t, all, 4)
	assert.Equal(t, "Databases", all[0].Name)

	found, count, err := repo.List(ctx, taxonomyQuery(t, pagination.Request{Search: "GO"}, "desc"))
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)
	require.Len(t, found, 2)
	assert.Equal(t, "Golang", found[0].Name)

	paged, count, err := repo.List(ctx, taxonomyQuery(t, pagination.Request{Page: 2, PageSize: 3}, ""))
	require.NoError(t, err)
	assert.Equal(t, int64(4), count)
	assert.Len(t, paged, 1)
}

func TestCategoryRepository_DeleteDetachesPosts(t *testing.T) {
	db := newTestDB(t)
	repo := NewCategoryRepository(db)
	ctx := context.Background()
	author := seedUser(t, db, "a@example.com", models.RoleAuthor)
	cat := seedCategory(t, db, "News", "news")
	post := seedPost(t, db, author, postSeed{title: "Story", category: &cat})

	require.NoError(t, repo.Delete(ctx, cat.ID))

	reloaded, err := NewPostRepository(db).GetByID(ctx, post.ID)
	require.NoError(t, err)
	assert.Nil(t, reloaded.CategoryID)

	err = repo.Delete(ctx, cat.ID)
	assert.True(t, models.IsCode(err, models.CodeNotFound))
}

func TestCategoryRepository_DuplicateSlug(t *testing.T) {
	db := newTestDB(t)
	repo := NewCategoryRepository(db)
	require.NoError(t, repo.Create(context.Background(), &models.Category{Name: "A", Slug: "a"}))

	err := repo.Create(context.Background(), &models.Category{Name: "A again", Slug: "a"})
	assert.True(t, models.IsCode(err, models.CodeConflict))
}

func TestTaxonomyStatsCountPublishedOnly(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	author := seedUser(t, db, "a@example.com", models.RoleAuthor)
	news := seedCategory(t, db, "News", "news")
	seedCategory(t, db, "Empty", "empty")
	goTag := seedTag(t, db, "go", "go")
	seedTag(t, db, "unused", "unused")

	seedPost(t, db, author, postSeed{title: "p1", category: &news, tags: []models.Tag{goTag}})
	seedPost(t, db, author, postSeed{title: "p2", category: &news, tags: []models.Tag{goTag}})
	seedPost(t, db, author, postSeed{title: "d1", status: models.PostStatusDraft, category: &news, tags: []models.Tag{goTag}})

	catStats, err := NewCategoryRepository(db).Stats(ctx)
	require.NoError(t, err)
	require.Len(t, catStats, 2)
	assert.Equal(t, "Empty", catStats[0].Name)
	assert.Zero(t, catStats[0].PostCount)
	assert.Equal(t, int64(2), catStats[1].PostCount)

	tagStats, err := NewTagRepository(db).Stats(ctx)
	require.NoError(t, err)
	require.Len(t, tagStats, 2)
	assert.Equal(t, "go", tagStats[0].Name)
	assert.Equal(t, int64(2), tagStats[0].PostCount)
	assert.Zero(t, tagStats[1].PostCount)
}

func TestTagRepository_InsertIgnoringConflicts(t *testing.T) {
	db := newTestDB(t)
	repo := NewTagRepository(db)
	ctx := context.Background()
	seedTag(t, db, "go", "go")

	require.NoError(t, repo.InsertIgnoringConflicts(ctx, []models.Tag{
		{Name: "go", Slug: "go"},
		{Name: "rust", Slug: "rust"},
	}))

	tags, err := repo.FindByNames(ctx, []string{"go", "rust", "zig"})
	require.NoError(t, err)
	assert.Len(t, tags, 2)

	empty, err := repo.FindByNames(ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestTagRepository_SlugsLike(t *testing.T) {
	db := newTestDB(t)
	repo := NewTagRepository(db)
	seedTag(t, db, "Go", "go")
	seedTag(t, db, "Go!", "go-2")
	seedTag(t, db, "Gopher", "gopher")
	seedTag(t, db, "go_x", "go_x")

	slugs, err := repo.SlugsLike(context.Background(), "go")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"go", "go-2"}, slugs)
}

func TestTagRepository_DeleteRemovesAssociations(t *testing.T) {
	db := newTestDB(t)
	repo := NewTagRepository(db)
	ctx := context.Background()
	author := seedUser(t, db, "a@example.com", models.RoleAuthor)
	tag := seedTag(t, db, "go", "go")
	post := seedPost(t, db, author, postSeed{title: "p", tags: []models.Tag{tag}})

	require.NoError(t, repo.Delete(ctx, tag.ID))

	tags, err := NewPostRepository(db).GetPostTags(ctx, post.ID)
	require.NoError(t, err)
	assert.Empty(t, tags)

	_, err = repo.GetBySlug(ctx, "go")
	assert.True(t, models.IsCode(err, models.CodeNotFound))
}
