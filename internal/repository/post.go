package repository

import (
	"context"
	"errors"
	"time"

	"inkwell/internal/cache"
	"inkwell/internal/models"
	"inkwell/internal/observability"
	"inkwell/internal/repository/queries"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// PostPage is one page of bare posts plus the exact size of the filtered set.
type PostPage struct {
	Posts []models.Post
	Count int64
}

// SitemapEntry is the minimal projection of a published post for sitemap.xml.
type SitemapEntry struct {
	Slug      string
	UpdatedAt time.Time
}

// PostRepository defines the interface for post data operations
type PostRepository interface {
	List(ctx context.Context, q queries.PostQuery) (*PostPage, error)
	GetByID(ctx context.Context, id uuid.UUID) (*models.Post, error)
	GetBySlug(ctx context.Context, slug string) (*models.Post, error)
	GetDetailByID(ctx context.Context, id uuid.UUID) (*models.Post, error)
	GetDetailBySlug(ctx context.Context, slug string) (*models.Post, error)
	Create(ctx context.Context, post *models.Post, tagIDs []uuid.UUID) error
	Update(ctx context.Context, post *models.Post, tagIDs []uuid.UUID) error
	UpdateStatus(ctx context.Context, id uuid.UUID, status models.PostStatus, now time.Time) (*models.Post, error)
	Delete(ctx context.Context, id uuid.UUID) error
	SetPostTags(ctx context.Context, postID uuid.UUID, tagIDs []uuid.UUID) error
	GetPostTags(ctx context.Context, postID uuid.UUID) ([]models.Tag, error)
	IsSlugAvailable(ctx context.Context, slug string, excludeID *uuid.UUID) (bool, error)
	AuthorStats(ctx context.Context, authorID *uuid.UUID) (*models.AuthorPostStats, error)
	GetTopPost(ctx context.Context) (*models.Post, error)
	ListForSitemap(ctx context.Context, limit int) ([]SitemapEntry, error)
}

// postRepository implements PostRepository
type postRepository struct {
	db      *gorm.DB
	metrics *observability.DatabaseMetrics
	log     *observability.RepoLogger
}

// NewPostRepository creates a new post repository
func NewPostRepository(db *gorm.DB) PostRepository {
	return &postRepository{
		db:      db,
		metrics: observability.NewDatabaseMetrics("posts"),
		log:     observability.NewRepoLogger("posts"),
	}
}

// List runs one of two query shapes. With a tag filter the association table
// is the root and posts are inner joined; otherwise posts are queried directly.
// Both shapes share the filter set and return the exact filtered count.
func (r *postRepository) List(ctx context.Context, q queries.PostQuery) (page *PostPage, err error) {
	ctx, span := observability.GetTraceLayer().TraceRepositoryMethod(ctx, "List", "posts")
	defer func() { observability.EndSpan(span, err) }()
	defer r.metrics.TrackQuery("list")()

	db := readDB(r.db).WithContext(ctx)

	var base *gorm.DB
	if q.TagID != nil {
		base = db.Table("post_tags").
			Joins("INNER JOIN posts ON posts.id = post_tags.post_id").
			Where("post_tags.tag_id = ?", *q.TagID)
	} else {
		base = db.Model(&models.Post{})
	}
	base = applyPostFilters(base, q).Session(&gorm.Session{})

	var count int64
	if err := base.Count(&count).Error; err != nil {
		return nil, err
	}

	posts := make([]models.Post, 0, q.PageSize)
	lastPage := (count + int64(q.PageSize) - 1) / int64(q.PageSize)
	if count > 0 && int64(q.Page) <= lastPage {
		err := base.
			Select("posts.*").
			Preload("Category", func(tx *gorm.DB) *gorm.DB {
				return tx.Select("id", "name", "slug")
			}).
			Order(postOrder(q)).
			Offset(q.Offset()).
			Limit(q.PageSize).
			Find(&posts).Error
		if err != nil {
			return nil, err
		}
	}

	return &PostPage{Posts: posts, Count: count}, nil
}

func applyPostFilters(db *gorm.DB, q queries.PostQuery) *gorm.DB {
	if q.Status != queries.StatusAll {
		db = db.Where("posts.status = ?", string(q.Status))
	}
	if q.AuthorID != nil {
		db = db.Where("posts.author_id = ?", *q.AuthorID)
	}
	if q.CategoryID != nil {
		db = db.Where("posts.category_id = ?", *q.CategoryID)
	}
	if q.Search != "" {
		db = db.Where(titleLike, queries.LikePattern(q.Search))
	}
	if q.IsTop != nil {
		db = db.Where("posts.is_top = ?", *q.IsTop)
	}
	return db
}

// postOrder sorts by the requested column with posts.id as a stable tiebreak.
func postOrder(q queries.PostQuery) clause.OrderBy {
	desc := q.Direction == queries.Desc
	return clause.OrderBy{Columns: []clause.OrderByColumn{
		{Column: clause.Column{Table: "posts", Name: string(q.OrderBy)}, Desc: desc},
		{Column: clause.Column{Table: "posts", Name: "id"}, Desc: desc},
	}}
}

func (r *postRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Post, error) {
	var post models.Post
	err := readDB(r.db).WithContext(ctx).
		Preload("Category").
		Preload("Tags", orderTags).
		First(&post, "posts.id = ?", id).Error
	if err != nil {
		return nil, lookupError(err, "Post", id)
	}
	return &post, nil
}

func (r *postRepository) GetBySlug(ctx context.Context, slug string) (*models.Post, error) {
	var post models.Post
	err := readDB(r.db).WithContext(ctx).
		Preload("Category").
		Preload("Tags", orderTags).
		First(&post, "posts.slug = ?", slug).Error
	if err != nil {
		return nil, lookupError(err, "Post", slug)
	}
	return &post, nil
}

func (r *postRepository) GetDetailByID(ctx context.Context, id uuid.UUID) (*models.Post, error) {
	return r.detail(ctx, "GetDetailByID", "posts.id = ?", id)
}

func (r *postRepository) GetDetailBySlug(ctx context.Context, slug string) (*models.Post, error) {
	return r.detail(ctx, "GetDetailBySlug", "posts.slug = ?", slug)
}

func (r *postRepository) detail(ctx context.Context, method, cond string, arg interface{}) (post *models.Post, err error) {
	ctx, span := observability.GetTraceLayer().TraceRepositoryMethod(ctx, method, "posts")
	defer func() { observability.EndSpan(span, err) }()
	defer r.metrics.TrackQuery("detail")()

	var p models.Post
	err = readDB(r.db).WithContext(ctx).
		Preload("Author").
		Preload("Category").
		Preload("Tags", orderTags).
		First(&p, cond, arg).Error
	if err != nil {
		return nil, lookupError(err, "Post", arg)
	}
	return &p, nil
}

func orderTags(tx *gorm.DB) *gorm.DB {
	return tx.Order("tags.name ASC")
}

func (r *postRepository) Create(ctx context.Context, post *models.Post, tagIDs []uuid.UUID) error {
	defer r.metrics.TrackQuery("create")()

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit(clause.Associations).Create(post).Error; err != nil {
			return err
		}
		return replacePostTags(tx, post.ID, tagIDs)
	})
	if err != nil {
		r.log.LogError(ctx, err, "create")
		if isUniqueConstraintError(err) {
			return models.NewConflictError("Slug is already in use")
		}
		return models.NewInternalError(err)
	}

	r.log.LogCreate(ctx, map[string]any{"post_id": post.ID.String(), "status": string(post.Status)})
	cache.InvalidatePostLists(ctx)
	return nil
}

func (r *postRepository) Update(ctx context.Context, post *models.Post, tagIDs []uuid.UUID) error {
	defer r.metrics.TrackQuery("update")()

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Omit(clause.Associations).Save(post)
		if res.Error != nil {
			return res.Error
		}
		return replacePostTags(tx, post.ID, tagIDs)
	})
	if err != nil {
		r.log.LogError(ctx, err, "update")
		if isUniqueConstraintError(err) {
			return models.NewConflictError("Slug is already in use")
		}
		return models.NewInternalError(err)
	}

	r.log.LogUpdate(ctx, map[string]any{"post_id": post.ID.String(), "status": string(post.Status)})
	cache.InvalidatePost(ctx, post.ID, post.Slug)
	cache.InvalidatePostLists(ctx)
	return nil
}

// UpdateStatus changes the lifecycle status; publishing sets published_at only if absent.
func (r *postRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status models.PostStatus, now time.Time) (*models.Post, error) {
	defer r.metrics.TrackQuery("update_status")()

	var post models.Post
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&post, "id = ?", id).Error; err != nil {
			return err
		}
		post.Status = status
		post.EnsurePublishedAt(now)
		return tx.Model(&post).
			Select("status", "published_at", "updated_at").
			Updates(map[string]interface{}{
				"status":       post.Status,
				"published_at": post.PublishedAt,
				"updated_at":   now.UTC(),
			}).Error
	})
	if err != nil {
		return nil, lookupError(err, "Post", id)
	}

	r.log.LogUpdate(ctx, map[string]any{"post_id": id.String(), "status": string(status)})
	cache.InvalidatePost(ctx, id, post.Slug)
	cache.InvalidatePostLists(ctx)
	return &post, nil
}

// Delete hard deletes the post together with its tag associations.
func (r *postRepository) Delete(ctx context.Context, id uuid.UUID) error {
	defer r.metrics.TrackQuery("delete")()

	var slug string
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var post models.Post
		if err := tx.Select("id", "slug").First(&post, "id = ?", id).Error; err != nil {
			return err
		}
		slug = post.Slug
		if err := tx.Where("post_id = ?", id).Delete(&models.PostTag{}).Error; err != nil {
			return err
		}
		return tx.Delete(&models.Post{}, "id = ?", id).Error
	})
	if err != nil {
		return lookupError(err, "Post", id)
	}

	r.log.LogDelete(ctx, map[string]any{"post_id": id.String()})
	cache.InvalidatePost(ctx, id, slug)
	cache.InvalidatePostLists(ctx)
	return nil
}

// SetPostTags replaces the post's tag set: delete all, then insert the given IDs.
func (r *postRepository) SetPostTags(ctx context.Context, postID uuid.UUID, tagIDs []uuid.UUID) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return replacePostTags(tx, postID, tagIDs)
	})
	if err != nil {
		return models.NewInternalError(err)
	}
	cache.InvalidatePost(ctx, postID)
	cache.InvalidatePostLists(ctx)
	return nil
}

func replacePostTags(tx *gorm.DB, postID uuid.UUID, tagIDs []uuid.UUID) error {
	if err := tx.Where("post_id = ?", postID).Delete(&models.PostTag{}).Error; err != nil {
		return err
	}
	if len(tagIDs) == 0 {
		return nil
	}

	seen := make(map[uuid.UUID]struct{}, len(tagIDs))
	rows := make([]models.PostTag, 0, len(tagIDs))
	for _, id := range tagIDs {
		if _, dup := seen[id]; dup || id == uuid.Nil {
			continue
		}
		seen[id] = struct{}{}
		rows = append(rows, models.PostTag{PostID: postID, TagID: id})
	}
	if len(rows) == 0 {
		return nil
	}
	return tx.Create(&rows).Error
}

func (r *postRepository) GetPostTags(ctx context.Context, postID uuid.UUID) ([]models.Tag, error) {
	var tags []models.Tag
	err := readDB(r.db).WithContext(ctx).
		Joins("INNER JOIN post_tags ON post_tags.tag_id = tags.id").
		Where("post_tags.post_id = ?", postID).
		Order("tags.name ASC").
		Find(&tags).Error
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return tags, nil
}

func (r *postRepository) IsSlugAvailable(ctx context.Context, slug string, excludeID *uuid.UUID) (bool, error) {
	q := r.db.WithContext(ctx).Model(&models.Post{}).Where("slug = ?", slug)
	if excludeID != nil {
		q = q.Where("id <> ?", *excludeID)
	}
	var count int64
	if err := q.Count(&count).Error; err != nil {
		return false, models.NewInternalError(err)
	}
	return count == 0, nil
}

// AuthorStats counts posts per status; a nil author counts every post.
func (r *postRepository) AuthorStats(ctx context.Context, authorID *uuid.UUID) (*models.AuthorPostStats, error) {
	var rows []struct {
		Status models.PostStatus
		Total  int64
	}
	q := readDB(r.db).WithContext(ctx).Model(&models.Post{}).Select("status, COUNT(*) AS total").Group("status")
	if authorID != nil {
		q = q.Where("author_id = ?", *authorID)
	}
	if err := q.Scan(&rows).Error; err != nil {
		return nil, models.NewInternalError(err)
	}

	stats := &models.AuthorPostStats{}
	for _, row := range rows {
		stats.Total += row.Total
		switch row.Status {
		case models.PostStatusPublished:
			stats.Published = row.Total
		case models.PostStatusDraft:
			stats.Draft = row.Total
		}
	}
	return stats, nil
}

// GetTopPost returns the most recently published pinned post, or nil when none exists.
func (r *postRepository) GetTopPost(ctx context.Context) (*models.Post, error) {
	var post models.Post
	err := readDB(r.db).WithContext(ctx).
		Preload("Category", func(tx *gorm.DB) *gorm.DB {
			return tx.Select("id", "name", "slug")
		}).
		Where("status = ? AND is_top = ?", models.PostStatusPublished, true).
		Order("published_at DESC").
		Order("id DESC").
		First(&post).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return &post, nil
}

func (r *postRepository) ListForSitemap(ctx context.Context, limit int) ([]SitemapEntry, error) {
	var entries []SitemapEntry
	err := readDB(r.db).WithContext(ctx).
		Model(&models.Post{}).
		Select("slug", "updated_at").
		Where("status = ?", models.PostStatusPublished).
		Order("published_at DESC").
		Limit(limit).
		Scan(&entries).Error
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return entries, nil
}
