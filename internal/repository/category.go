package repository

import (
	"context"

	"inkwell/internal/cache"
	"inkwell/internal/models"
	"inkwell/internal/observability"
	"inkwell/internal/repository/queries"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// CategoryRepository defines persistence operations for categories.
type CategoryRepository interface {
	List(ctx context.Context, q queries.TaxonomyQuery) ([]models.Category, int64, error)
	GetByID(ctx context.Context, id uuid.UUID) (*models.Category, error)
	GetBySlug(ctx context.Context, slug string) (*models.Category, error)
	Create(ctx context.Context, category *models.Category) error
	Update(ctx context.Context, category *models.Category) error
	Delete(ctx context.Context, id uuid.UUID) error
	IsSlugAvailable(ctx context.Context, slug string, excludeID *uuid.UUID) (bool, error)
	Stats(ctx context.Context) ([]models.TaxonomyStat, error)
	ListAll(ctx context.Context) ([]models.Category, error)
}

type categoryRepository struct {
	db  *gorm.DB
	log *observability.RepoLogger
}

// NewCategoryRepository returns a new CategoryRepository implementation.
func NewCategoryRepository(db *gorm.DB) CategoryRepository {
	return &categoryRepository{db: db, log: observability.NewRepoLogger("categories")}
}

func (r *categoryRepository) List(ctx context.Context, q queries.TaxonomyQuery) ([]models.Category, int64, error) {
	return listByName(ctx, readDB(r.db), &models.Category{}, q)
}

func (r *categoryRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Category, error) {
	var category models.Category
	if err := readDB(r.db).WithContext(ctx).First(&category, "id = ?", id).Error; err != nil {
		return nil, lookupError(err, "Category", id)
	}
	return &category, nil
}

func (r *categoryRepository) GetBySlug(ctx context.Context, slug string) (*models.Category, error) {
	var category models.Category
	if err := readDB(r.db).WithContext(ctx).First(&category, "slug = ?", slug).Error; err != nil {
		return nil, lookupError(err, "Category", slug)
	}
	return &category, nil
}

func (r *categoryRepository) Create(ctx context.Context, category *models.Category) error {
	if err := r.db.WithContext(ctx).Create(category).Error; err != nil {
		if isUniqueConstraintError(err) {
			return models.NewConflictError("Category slug is already in use")
		}
		return models.NewInternalError(err)
	}
	r.log.LogCreate(ctx, map[string]any{"category_id": category.ID.String()})
	cache.InvalidateTaxonomy(ctx)
	return nil
}

func (r *categoryRepository) Update(ctx context.Context, category *models.Category) error {
	if err := r.db.WithContext(ctx).Save(category).Error; err != nil {
		if isUniqueConstraintError(err) {
			return models.NewConflictError("Category slug is already in use")
		}
		return models.NewInternalError(err)
	}
	r.log.LogUpdate(ctx, map[string]any{"category_id": category.ID.String()})
	cache.InvalidateTaxonomy(ctx)
	cache.InvalidatePostLists(ctx)
	return nil
}

// Delete removes the category; its posts keep existing without a category.
func (r *categoryRepository) Delete(ctx context.Context, id uuid.UUID) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.Post{}).Where("category_id = ?", id).Update("category_id", nil).Error; err != nil {
			return err
		}
		res := tx.Delete(&models.Category{}, "id = ?", id)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
	if err != nil {
		return lookupError(err, "Category", id)
	}
	r.log.LogDelete(ctx, map[string]any{"category_id": id.String()})
	cache.InvalidateTaxonomy(ctx)
	cache.InvalidatePostLists(ctx)
	return nil
}

func (r *categoryRepository) IsSlugAvailable(ctx context.Context, slug string, excludeID *uuid.UUID) (bool, error) {
	var exclude interface{}
	if excludeID != nil {
		exclude = *excludeID
	}
	return slugAvailable(ctx, r.db, &models.Category{}, slug, exclude)
}

// Stats counts published posts per category, including empty categories.
func (r *categoryRepository) Stats(ctx context.Context) ([]models.TaxonomyStat, error) {
	var stats []models.TaxonomyStat
	err := readDB(r.db).WithContext(ctx).
		Table("categories").
		Select("categories.id, categories.name, categories.slug, COUNT(posts.id) AS post_count").
		Joins("LEFT JOIN posts ON posts.category_id = categories.id AND posts.status = ?", models.PostStatusPublished).
		Group("categories.id, categories.name, categories.slug").
		Order("categories.name ASC").
		Scan(&stats).Error
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return stats, nil
}

func (r *categoryRepository) ListAll(ctx context.Context) ([]models.Category, error) {
	var categories []models.Category
	if err := readDB(r.db).WithContext(ctx).Order("name ASC").Find(&categories).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return categories, nil
}
