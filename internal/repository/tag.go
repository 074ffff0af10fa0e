package repository

import (
	"context"

	"inkwell/internal/cache"
	"inkwell/internal/models"
	"inkwell/internal/observability"
	"inkwell/internal/repository/queries"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// TagRepository defines persistence operations for tags.
type TagRepository interface {
	List(ctx context.Context, q queries.TaxonomyQuery) ([]models.Tag, int64, error)
	GetByID(ctx context.Context, id uuid.UUID) (*models.Tag, error)
	GetBySlug(ctx context.Context, slug string) (*models.Tag, error)
	FindByNames(ctx context.Context, names []string) ([]models.Tag, error)
	SlugsLike(ctx context.Context, base string) ([]string, error)
	InsertIgnoringConflicts(ctx context.Context, tags []models.Tag) error
	Create(ctx context.Context, tag *models.Tag) error
	Update(ctx context.Context, tag *models.Tag) error
	Delete(ctx context.Context, id uuid.UUID) error
	IsSlugAvailable(ctx context.Context, slug string, excludeID *uuid.UUID) (bool, error)
	Stats(ctx context.Context) ([]models.TaxonomyStat, error)
	ListAll(ctx context.Context) ([]models.Tag, error)
}

type tagRepository struct {
	db  *gorm.DB
	log *observability.RepoLogger
}

// NewTagRepository returns a new TagRepository implementation.
func NewTagRepository(db *gorm.DB) TagRepository {
	return &tagRepository{db: db, log: observability.NewRepoLogger("tags")}
}

func (r *tagRepository) List(ctx context.Context, q queries.TaxonomyQuery) ([]models.Tag, int64, error) {
	return listByName(ctx, readDB(r.db), &models.Tag{}, q)
}

func (r *tagRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Tag, error) {
	var tag models.Tag
	if err := readDB(r.db).WithContext(ctx).First(&tag, "id = ?", id).Error; err != nil {
		return nil, lookupError(err, "Tag", id)
	}
	return &tag, nil
}

func (r *tagRepository) GetBySlug(ctx context.Context, slug string) (*models.Tag, error) {
	var tag models.Tag
	if err := readDB(r.db).WithContext(ctx).First(&tag, "slug = ?", slug).Error; err != nil {
		return nil, lookupError(err, "Tag", slug)
	}
	return &tag, nil
}

// FindByNames matches names exactly. It reads from the primary so freshly
// inserted rows are visible to get-or-create.
func (r *tagRepository) FindByNames(ctx context.Context, names []string) ([]models.Tag, error) {
	if len(names) == 0 {
		return []models.Tag{}, nil
	}
	var tags []models.Tag
	if err := r.db.WithContext(ctx).Where("name IN ?", names).Find(&tags).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return tags, nil
}

// SlugsLike returns existing slugs equal to base or of the form base-N.
func (r *tagRepository) SlugsLike(ctx context.Context, base string) ([]string, error) {
	var slugs []string
	err := r.db.WithContext(ctx).
		Model(&models.Tag{}).
		Where(`slug = ? OR slug LIKE ? ESCAPE '\'`, base, queries.EscapeLike(base)+"-%").
		Pluck("slug", &slugs).Error
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return slugs, nil
}

// InsertIgnoringConflicts inserts tags with ON CONFLICT DO NOTHING so
// concurrent creators of the same name do not fail each other.
func (r *tagRepository) InsertIgnoringConflicts(ctx context.Context, tags []models.Tag) error {
	if len(tags) == 0 {
		return nil
	}
	if err := r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&tags).Error; err != nil {
		return models.NewInternalError(err)
	}
	r.log.LogCreate(ctx, map[string]any{"count": len(tags)})
	cache.InvalidateTaxonomy(ctx)
	return nil
}

func (r *tagRepository) Create(ctx context.Context, tag *models.Tag) error {
	if err := r.db.WithContext(ctx).Create(tag).Error; err != nil {
		if isUniqueConstraintError(err) {
			return models.NewConflictError("Tag name or slug is already in use")
		}
		return models.NewInternalError(err)
	}
	r.log.LogCreate(ctx, map[string]any{"tag_id": tag.ID.String()})
	cache.InvalidateTaxonomy(ctx)
	return nil
}

func (r *tagRepository) Update(ctx context.Context, tag *models.Tag) error {
	if err := r.db.WithContext(ctx).Save(tag).Error; err != nil {
		if isUniqueConstraintError(err) {
			return models.NewConflictError("Tag name or slug is already in use")
		}
		return models.NewInternalError(err)
	}
	r.log.LogUpdate(ctx, map[string]any{"tag_id": tag.ID.String()})
	cache.InvalidateTaxonomy(ctx)
	cache.InvalidatePostLists(ctx)
	return nil
}

// Delete removes the tag and every association row that references it.
func (r *tagRepository) Delete(ctx context.Context, id uuid.UUID) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("tag_id = ?", id).Delete(&models.PostTag{}).Error; err != nil {
			return err
		}
		res := tx.Delete(&models.Tag{}, "id = ?", id)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
	if err != nil {
		return lookupError(err, "Tag", id)
	}
	r.log.LogDelete(ctx, map[string]any{"tag_id": id.String()})
	cache.InvalidateTaxonomy(ctx)
	cache.InvalidatePostLists(ctx)
	return nil
}

func (r *tagRepository) IsSlugAvailable(ctx context.Context, slug string, excludeID *uuid.UUID) (bool, error) {
	var exclude interface{}
	if excludeID != nil {
		exclude = *excludeID
	}
	return slugAvailable(ctx, r.db, &models.Tag{}, slug, exclude)
}

// Stats counts published posts per tag, including unused tags.
func (r *tagRepository) Stats(ctx context.Context) ([]models.TaxonomyStat, error) {
	var stats []models.TaxonomyStat
	err := readDB(r.db).WithContext(ctx).
		Table("tags").
		Select("tags.id, tags.name, tags.slug, COUNT(posts.id) AS post_count").
		Joins("LEFT JOIN post_tags ON post_tags.tag_id = tags.id").
		Joins("LEFT JOIN posts ON posts.id = post_tags.post_id AND posts.status = ?", models.PostStatusPublished).
		Group("tags.id, tags.name, tags.slug").
		Order("tags.name ASC").
		Scan(&stats).Error
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return stats, nil
}

func (r *tagRepository) ListAll(ctx context.Context) ([]models.Tag, error) {
	var tags []models.Tag
	if err := readDB(r.db).WithContext(ctx).Order("name ASC").Find(&tags).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return tags, nil
}
