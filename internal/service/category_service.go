package service

import (
	"context"
	"strings"

	"inkwell/internal/cache"
	"inkwell/internal/models"
	"inkwell/internal/pagination"
	"inkwell/internal/repository"
	"inkwell/internal/repository/queries"
	"inkwell/internal/validation"

	"github.com/google/uuid"
)

// CategoryInput is the admin payload for creating or updating a category.
type CategoryInput struct {
	Name        string  `json:"name" validate:"required,max=100"`
	Slug        string  `json:"slug" validate:"omitempty,slug,max=120"`
	Description *string `json:"description" validate:"omitempty,max=1000"`
}

type CategoryService struct {
	categories repository.CategoryRepository
}

func NewCategoryService(categories repository.CategoryRepository) *CategoryService {
	return &CategoryService{categories: categories}
}

// ListCategories returns one page of categories ordered by name.
func (s *CategoryService) ListCategories(ctx context.Context, req pagination.Request, direction, basePath string) (*pagination.Page[models.Category], error) {
	q, err := queries.NormalizeTaxonomy(req, direction)
	if err != nil {
		return nil, err
	}
	categories, total, err := s.categories.List(ctx, q)
	if err != nil {
		return nil, err
	}
	return pagination.MakePage(categories, pagination.Meta{
		Page:     q.Page,
		PageSize: q.PageSize,
		Total:    total,
		Search:   q.Search,
		BasePath: basePath,
	}), nil
}

// GetCategory looks a category up by UUID or, failing that, by slug.
func (s *CategoryService) GetCategory(ctx context.Context, idOrSlug string) (*models.Category, error) {
	if id, err := uuid.Parse(idOrSlug); err == nil {
		return s.categories.GetByID(ctx, id)
	}
	return s.categories.GetBySlug(ctx, idOrSlug)
}

func (s *CategoryService) CreateCategory(ctx context.Context, in CategoryInput) (*models.Category, error) {
	in = normalizeCategoryInput(in)
	if err := validation.Struct(in); err != nil {
		return nil, err
	}
	category := &models.Category{Name: in.Name, Slug: in.Slug, Description: in.Description}
	if category.Slug == "" {
		category.Slug = TaxonomySlug(in.Name, "category")
	}
	if err := s.categories.Create(ctx, category); err != nil {
		return nil, err
	}
	return category, nil
}

func (s *CategoryService) UpdateCategory(ctx context.Context, id uuid.UUID, in CategoryInput) (*models.Category, error) {
	in = normalizeCategoryInput(in)
	if err := validation.Struct(in); err != nil {
		return nil, err
	}
	category, err := s.categories.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	category.Name = in.Name
	category.Description = in.Description
	if in.Slug != "" {
		category.Slug = in.Slug
	}
	if err := s.categories.Update(ctx, category); err != nil {
		return nil, err
	}
	return category, nil
}

func normalizeCategoryInput(in CategoryInput) CategoryInput {
	in.Name = strings.TrimSpace(in.Name)
	in.Slug = strings.TrimSpace(in.Slug)
	if in.Description != nil {
		d := strings.TrimSpace(*in.Description)
		if d == "" {
			in.Description = nil
		} else {
			in.Description = &d
		}
	}
	return in
}

// DeleteCategory removes the category; its posts become uncategorized.
func (s *CategoryService) DeleteCategory(ctx context.Context, id uuid.UUID) error {
	return s.categories.Delete(ctx, id)
}

func (s *CategoryService) IsSlugAvailable(ctx context.Context, slug string, excludeID *uuid.UUID) (bool, error) {
	return s.categories.IsSlugAvailable(ctx, slug, excludeID)
}

// Stats returns the published post count per category.
func (s *CategoryService) Stats(ctx context.Context) ([]models.TaxonomyStat, error) {
	var stats []models.TaxonomyStat
	err := cache.Aside(ctx, cache.CategoryStatsKey, &stats, cache.StatsTTL, func() error {
		var err error
		stats, err = s.categories.Stats(ctx)
		return err
	})
	if err != nil {
		return nil, err
	}
	return stats, nil
}

func (s *CategoryService) ListAll(ctx context.Context) ([]models.Category, error) {
	return s.categories.ListAll(ctx)
}
