package repository

import (
	"context"
	"fmt"
	"math"
	"testing"
	"time"

	"inkwell/internal/models"
	"inkwell/internal/repository/queries"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustQuery(t *testing.T, p queries.PostListParams) queries.PostQuery {
	t.Helper()
	q, err := queries.Normalize(p, queries.AdminDefaults)
	require.NoError(t, err)
	return q
}

func titles(posts []models.Post) []string {
	out := make([]string, 0, len(posts))
	for _, p := range posts {
		out = append(out, p.Title)
	}
	return out
}

func TestPostRepository_ListPaging(t *testing.T) {
	db := newTestDB(t)
	repo := NewPostRepository(db)
	ctx := context.Background()
	author := seedUser(t, db, "a@example.com", models.RoleAuthor)

	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 25; i++ {
		seedPost(t, db, author, postSeed{title: fmt.Sprintf("Post %02d", i), createdAt: base.Add(time.Duration(i) * time.Hour)})
	}

	tests := []struct {
		page      int
		wantLen   int
		wantFirst string
	}{
		{1, 10, "Post 24"},
		{2, 10, "Post 14"},
		{3, 5, "Post 04"},
		{4, 0, ""},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("page %d", tt.page), func(t *testing.T) {
			page, err := repo.List(ctx, mustQuery(t, queries.PostListParams{Page: tt.page, PageSize: 10}))
			require.NoError(t, err)
			assert.Equal(t, int64(25), page.Count)
			require.Len(t, page.Posts, tt.wantLen)
			if tt.wantLen > 0 {
				assert.Equal(t, tt.wantFirst, page.Posts[0].Title)
			}
		})
	}
}

func TestPostRepository_ListPageFarPastEnd(t *testing.T) {
	db := newTestDB(t)
	repo := NewPostRepository(db)
	author := seedUser(t, db, "far@example.com", models.RoleAuthor)
	for i := 0; i < 3; i++ {
		seedPost(t, db, author, postSeed{title: fmt.Sprintf("Post %d", i), status: models.PostStatusPublished})
	}

	for _, page := range []int{4, 922337203685477582, math.MaxInt} {
		t.Run(fmt.Sprintf("page %d", page), func(t *testing.T) {
			q, err := queries.Normalize(queries.PostListParams{Page: page}, queries.FeedDefaults(10))
			require.NoError(t, err)
			res, err := repo.List(context.Background(), q)
			require.NoError(t, err)
			assert.Equal(t, int64(3), res.Count)
			assert.Empty(t, res.Posts)
		})
	}
}

func TestPostRepository_ListSearch(t *testing.T) {
	db := newTestDB(t)
	repo := NewPostRepository(db)
	ctx := context.Background()
	author := seedUser(t, db, "a@example.com", models.RoleAuthor)

	for _, title := range []string{"Intro to Go", "Go concurrency", "Rust basics", "100% coverage", "1000 ways"} {
		seedPost(t, db, author, postSeed{title: title})
	}

	page, err := repo.List(ctx, mustQuery(t, queries.PostListParams{SearchTerm: "Go", OrderBy: "title", OrderDirection: "asc"}))
	require.NoError(t, err)
	assert.Equal(t, []string{"Go concurrency", "Intro to Go"}, titles(page.Posts))
	assert.Equal(t, int64(2), page.Count)

	page, err = repo.List(ctx, mustQuery(t, queries.PostListParams{SearchTerm: "100%"}))
	require.NoError(t, err)
	assert.Equal(t, []string{"100% coverage"}, titles(page.Posts), "wildcards in the term match literally")

	blank, err := repo.List(ctx, mustQuery(t, queries.PostListParams{SearchTerm: "   "}))
	require.NoError(t, err)
	none, err := repo.List(ctx, mustQuery(t, queries.PostListParams{}))
	require.NoError(t, err)
	assert.Equal(t, none.Count, blank.Count)
	assert.Equal(t, titles(none.Posts), titles(blank.Posts))
}

func TestPostRepository_ListFilters(t *testing.T) {
	db := newTestDB(t)
	repo := NewPostRepository(db)
	ctx := context.Background()

	alice := seedUser(t, db, "alice@example.com", models.RoleAuthor)
	bob := seedUser(t, db, "bob@example.com", models.RoleAuthor)
	golang := seedCategory(t, db, "Golang", "golang")
	tagA := seedTag(t, db, "concurrency", "concurrency")
	tagB := seedTag(t, db, "testing", "testing")

	seedPost(t, db, alice, postSeed{title: "Channels", category: &golang, tags: []models.Tag{tagA}})
	seedPost(t, db, alice, postSeed{title: "Mutexes draft", status: models.PostStatusDraft, category: &golang, tags: []models.Tag{tagA, tagB}})
	seedPost(t, db, bob, postSeed{title: "Table tests", tags: []models.Tag{tagB}, top: true})
	seedPost(t, db, bob, postSeed{title: "Loose notes"})

	top := true
	tests := []struct {
		name   string
		params queries.PostListParams
		want   []string
	}{
		{"tag", queries.PostListParams{TagID: &tagA.ID}, []string{"Channels", "Mutexes draft"}},
		{"tag and status", queries.PostListParams{TagID: &tagA.ID, Status: "published"}, []string{"Channels"}},
		{"tag and author", queries.PostListParams{TagID: &tagB.ID, AuthorID: &bob.ID}, []string{"Table tests"}},
		{"category", queries.PostListParams{CategoryID: &golang.ID}, []string{"Channels", "Mutexes draft"}},
		{"draft", queries.PostListParams{Status: "draft"}, []string{"Mutexes draft"}},
		{"author", queries.PostListParams{AuthorID: &alice.ID}, []string{"Channels", "Mutexes draft"}},
		{"top", queries.PostListParams{IsTop: &top}, []string{"Table tests"}},
		{"tag and search", queries.PostListParams{TagID: &tagB.ID, SearchTerm: "TABLE"}, []string{"Table tests"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := tt.params
			p.OrderBy = "title"
			p.OrderDirection = "asc"
			page, err := repo.List(ctx, mustQuery(t, p))
			require.NoError(t, err)
			assert.Equal(t, tt.want, titles(page.Posts))
			assert.Equal(t, int64(len(tt.want)), page.Count)
		})
	}
}

func TestPostRepository_ListPreloadsCategory(t *testing.T) {
	db := newTestDB(t)
	repo := NewPostRepository(db)
	author := seedUser(t, db, "a@example.com", models.RoleAuthor)
	cat := seedCategory(t, db, "News", "news")
	tag := seedTag(t, db, "go", "go")
	seedPost(t, db, author, postSeed{title: "Hello", category: &cat, tags: []models.Tag{tag}})

	for _, p := range []queries.PostListParams{{}, {TagID: &tag.ID}} {
		page, err := repo.List(context.Background(), mustQuery(t, p))
		require.NoError(t, err)
		require.Len(t, page.Posts, 1)
		require.NotNil(t, page.Posts[0].Category)
		assert.Equal(t, "news", page.Posts[0].Category.Slug)
	}
}

func TestPostRepository_ListQueryShape(t *testing.T) {
	tagID := uuid.New()

	t.Run("tag filter joins from the association table", func(t *testing.T) {
		db, mock := setupMockDB(t)
		repo := NewPostRepository(db)

		mock.ExpectQuery(`SELECT count\(\*\) FROM "post_tags" INNER JOIN posts ON posts\.id = post_tags\.post_id WHERE post_tags\.tag_id = \$1 AND posts\.status = \$2`).
			WithArgs(tagID, "published").
			WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
		mock.ExpectQuery(`SELECT posts\.\* FROM "post_tags" INNER JOIN posts .* ORDER BY "posts"\."published_at" DESC,"posts"\."id" DESC LIMIT \$\d`).
			WillReturnRows(sqlmock.NewRows([]string{"id", "title", "slug", "status", "author_id", "category_id"}).
				AddRow(uuid.New(), "Tagged", "tagged", "published", uuid.New(), nil))

		q, err := queries.Normalize(queries.PostListParams{TagID: &tagID}, queries.FeedDefaults(12))
		require.NoError(t, err)
		page, err := repo.List(context.Background(), q)
		require.NoError(t, err)
		assert.Equal(t, int64(1), page.Count)
		assert.Len(t, page.Posts, 1)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("no tag filter queries posts directly", func(t *testing.T) {
		db, mock := setupMockDB(t)
		repo := NewPostRepository(db)

		mock.ExpectQuery(`^SELECT count\(\*\) FROM "posts" WHERE LOWER\(posts\.title\) LIKE \$1`).
			WithArgs("%go%").
			WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))

		page, err := repo.List(context.Background(), mustQuery(t, queries.PostListParams{SearchTerm: "Go"}))
		require.NoError(t, err)
		assert.Zero(t, page.Count)
		assert.NotNil(t, page.Posts)
		assert.Empty(t, page.Posts)
		assert.NoError(t, mock.ExpectationsWereMet(), "an empty count skips the row query")
	})
}

func TestPostRepository_CreateDuplicateSlug(t *testing.T) {
	db := newTestDB(t)
	author := seedUser(t, db, "a@example.com", models.RoleAuthor)
	seedPost(t, db, author, postSeed{title: "One", slug: "same"})

	dup := models.Post{Title: "Two", Slug: "same", Content: []byte(`{}`), Status: models.PostStatusDraft, AuthorID: author.ID}
	err := NewPostRepository(db).Create(context.Background(), &dup, nil)
	require.Error(t, err)
	assert.True(t, models.IsCode(err, models.CodeConflict))
}

func TestPostRepository_SetPostTags(t *testing.T) {
	db := newTestDB(t)
	repo := NewPostRepository(db)
	ctx := context.Background()
	author := seedUser(t, db, "a@example.com", models.RoleAuthor)
	a := seedTag(t, db, "alpha", "alpha")
	b := seedTag(t, db, "beta", "beta")
	c := seedTag(t, db, "gamma", "gamma")
	post := seedPost(t, db, author, postSeed{title: "Tagged", tags: []models.Tag{a, b}})

	require.NoError(t, repo.SetPostTags(ctx, post.ID, []uuid.UUID{c.ID, b.ID, c.ID}))
	tags, err := repo.GetPostTags(ctx, post.ID)
	require.NoError(t, err)
	require.Len(t, tags, 2)
	assert.Equal(t, "beta", tags[0].Name)
	assert.Equal(t, "gamma", tags[1].Name)

	require.NoError(t, repo.SetPostTags(ctx, post.ID, []uuid.UUID{}))
	tags, err = repo.GetPostTags(ctx, post.ID)
	require.NoError(t, err)
	assert.Empty(t, tags)
}

func TestPostRepository_UpdateStatusKeepsFirstPublishedAt(t *testing.T) {
	db := newTestDB(t)
	repo := NewPostRepository(db)
	ctx := context.Background()
	author := seedUser(t, db, "a@example.com", models.RoleAuthor)
	post := seedPost(t, db, author, postSeed{title: "Draft", status: models.PostStatusDraft})
	require.Nil(t, post.PublishedAt)

	first := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	published, err := repo.UpdateStatus(ctx, post.ID, models.PostStatusPublished, first)
	require.NoError(t, err)
	require.NotNil(t, published.PublishedAt)
	assert.True(t, published.PublishedAt.Equal(first))

	_, err = repo.UpdateStatus(ctx, post.ID, models.PostStatusDraft, first.Add(time.Hour))
	require.NoError(t, err)
	again, err := repo.UpdateStatus(ctx, post.ID, models.PostStatusPublished, first.Add(48*time.Hour))
	require.NoError(t, err)
	assert.True(t, again.PublishedAt.Equal(first))

	_, err = repo.UpdateStatus(ctx, uuid.New(), models.PostStatusPublished, first)
	assert.True(t, models.IsCode(err, models.CodeNotFound))
}

func TestPostRepository_DetailAndDelete(t *testing.T) {
	db := newTestDB(t)
	repo := NewPostRepository(db)
	ctx := context.Background()
	author := seedUser(t, db, "writer@example.com", models.RoleAuthor)
	cat := seedCategory(t, db, "News", "news")
	z := seedTag(t, db, "zeta", "zeta")
	a := seedTag(t, db, "alpha", "alpha")
	post := seedPost(t, db, author, postSeed{title: "Full", slug: "full", category: &cat, tags: []models.Tag{z, a}})

	detail, err := repo.GetDetailBySlug(ctx, "full")
	require.NoError(t, err)
	require.NotNil(t, detail.Author)
	assert.Equal(t, "writer@example.com", detail.Author.Email)
	require.NotNil(t, detail.Category)
	require.Len(t, detail.Tags, 2)
	assert.Equal(t, "alpha", detail.Tags[0].Name)

	require.NoError(t, repo.Delete(ctx, post.ID))
	_, err = repo.GetDetailByID(ctx, post.ID)
	assert.True(t, models.IsCode(err, models.CodeNotFound))

	var links int64
	require.NoError(t, db.Model(&models.PostTag{}).Where("post_id = ?", post.ID).Count(&links).Error)
	assert.Zero(t, links)

	err = repo.Delete(ctx, post.ID)
	assert.True(t, models.IsCode(err, models.CodeNotFound))
}

func TestPostRepository_StatsAndTop(t *testing.T) {
	db := newTestDB(t)
	repo := NewPostRepository(db)
	ctx := context.Background()
	alice := seedUser(t, db, "alice@example.com", models.RoleAuthor)
	bob := seedUser(t, db, "bob@example.com", models.RoleAuthor)

	top, err := repo.GetTopPost(ctx)
	require.NoError(t, err)
	assert.Nil(t, top)

	seedPost(t, db, alice, postSeed{title: "A1"})
	seedPost(t, db, alice, postSeed{title: "A2", status: models.PostStatusDraft, top: true})
	seedPost(t, db, bob, postSeed{title: "B1", top: true})

	stats, err := repo.AuthorStats(ctx, &alice.ID)
	require.NoError(t, err)
	assert.Equal(t, models.AuthorPostStats{Total: 2, Published: 1, Draft: 1}, *stats)

	all, err := repo.AuthorStats(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(3), all.Total)

	top, err = repo.GetTopPost(ctx)
	require.NoError(t, err)
	require.NotNil(t, top)
	assert.Equal(t, "B1", top.Title, "drafts are never the top post")

	entries, err := repo.ListForSitemap(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}

func TestPostRepository_IsSlugAvailable(t *testing.T) {
	db := newTestDB(t)
	repo := NewPostRepository(db)
	ctx := context.Background()
	author := seedUser(t, db, "a@example.com", models.RoleAuthor)
	post := seedPost(t, db, author, postSeed{title: "x", slug: "taken"})

	ok, err := repo.IsSlugAvailable(ctx, "taken", nil)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = repo.IsSlugAvailable(ctx, "taken", &post.ID)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repo.IsSlugAvailable(ctx, "free", nil)
	require.NoError(t, err)
	assert.True(t, ok)
}
