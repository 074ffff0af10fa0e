package service

import (
	"context"
	"fmt"
	"strings"

	"inkwell/internal/cache"
	"inkwell/internal/models"
	"inkwell/internal/pagination"
	"inkwell/internal/repository"
	"inkwell/internal/repository/queries"
	"inkwell/internal/validation"

	"github.com/google/uuid"
)

// getOrCreateAttempts bounds retries when concurrent writers claim the same slug.
const getOrCreateAttempts = 3

// TagInput is the admin payload for creating or renaming a tag.
type TagInput struct {
	Name string `json:"name" validate:"required,max=100"`
	Slug string `json:"slug" validate:"omitempty,slug,max=120"`
}

// TagService manages tags and resolves tag names to rows.
type TagService struct {
	tags repository.TagRepository
}

// NewTagService creates a tag service.
func NewTagService(tags repository.TagRepository) *TagService {
	return &TagService{tags: tags}
}

// GetOrCreateByNames resolves names to tags, creating the missing ones.
// Names are trimmed, blanks dropped and duplicates collapsed. The result
// follows the order of first appearance in names.
func (s *TagService) GetOrCreateByNames(ctx context.Context, names []string) ([]models.Tag, error) {
	wanted := cleanTagNames(names)
	if len(wanted) == 0 {
		return []models.Tag{}, nil
	}
	for _, name := range wanted {
		if len(name) > 100 {
			return nil, models.NewValidationError(fmt.Sprintf("Tag %q is too long (max 100 characters)", name))
		}
	}

	byName := make(map[string]models.Tag, len(wanted))
	missing := wanted
	for attempt := 0; attempt < getOrCreateAttempts && len(missing) > 0; attempt++ {
		found, err := s.tags.FindByNames(ctx, missing)
		if err != nil {
			return nil, err
		}
		for _, t := range found {
			byName[t.Name] = t
		}
		missing = namesNotIn(missing, byName)
		if len(missing) == 0 {
			break
		}

		fresh, err := s.newTags(ctx, missing)
		if err != nil {
			return nil, err
		}
		if err := s.tags.InsertIgnoringConflicts(ctx, fresh); err != nil {
			return nil, err
		}
	}

	if len(missing) > 0 {
		found, err := s.tags.FindByNames(ctx, missing)
		if err != nil {
			return nil, err
		}
		for _, t := range found {
			byName[t.Name] = t
		}
		if still := namesNotIn(missing, byName); len(still) > 0 {
			return nil, models.NewInternalError(fmt.Errorf("could not create tags %v", still))
		}
	}

	out := make([]models.Tag, 0, len(wanted))
	for _, name := range wanted {
		out = append(out, byName[name])
	}
	return out, nil
}

// newTags builds rows for names with slugs that are free at the time of the call.
func (s *TagService) newTags(ctx context.Context, names []string) ([]models.Tag, error) {
	reserved := make(map[string]struct{})
	out := make([]models.Tag, 0, len(names))
	for _, name := range names {
		base := TaxonomySlug(name, "tag")
		existing, err := s.tags.SlugsLike(ctx, base)
		if err != nil {
			return nil, err
		}
		taken := make(map[string]struct{}, len(existing)+len(reserved))
		for _, slug := range existing {
			taken[slug] = struct{}{}
		}
		for slug := range reserved {
			taken[slug] = struct{}{}
		}
		slug := nextNumberedSlug(base, taken)
		reserved[slug] = struct{}{}
		out = append(out, models.Tag{ID: uuid.New(), Name: name, Slug: slug})
	}
	return out, nil
}

func cleanTagNames(names []string) []string {
	seen := make(map[string]struct{}, len(names))
	out := make([]string, 0, len(names))
	for _, n := range names {
		n = strings.TrimSpace(n)
		if n == "" {
			continue
		}
		if _, dup := seen[n]; dup {
			continue
		}
		seen[n] = struct{}{}
		out = append(out, n)
	}
	return out
}

func namesNotIn(names []string, have map[string]models.Tag) []string {
	var out []string
	for _, n := range names {
		if _, ok := have[n]; !ok {
			out = append(out, n)
		}
	}
	return out
}

// ListTags returns one page of tags ordered by name.
func (s *TagService) ListTags(ctx context.Context, req pagination.Request, direction, basePath string) (*pagination.Page[models.Tag], error) {
	q, err := queries.NormalizeTaxonomy(req, direction)
	if err != nil {
		return nil, err
	}
	tags, total, err := s.tags.List(ctx, q)
	if err != nil {
		return nil, err
	}
	return pagination.MakePage(tags, pagination.Meta{
		Page:     q.Page,
		PageSize: q.PageSize,
		Total:    total,
		Search:   q.Search,
		BasePath: basePath,
	}), nil
}

// GetTag looks a tag up by UUID or, failing that, by slug.
func (s *TagService) GetTag(ctx context.Context, idOrSlug string) (*models.Tag, error) {
	if id, err := uuid.Parse(idOrSlug); err == nil {
		return s.tags.GetByID(ctx, id)
	}
	return s.tags.GetBySlug(ctx, idOrSlug)
}

func (s *TagService) CreateTag(ctx context.Context, in TagInput) (*models.Tag, error) {
	in.Name = strings.TrimSpace(in.Name)
	if err := validation.Struct(in); err != nil {
		return nil, err
	}
	tag := &models.Tag{Name: in.Name, Slug: in.Slug}
	if tag.Slug == "" {
		tag.Slug = TaxonomySlug(in.Name, "tag")
	}
	if err := s.tags.Create(ctx, tag); err != nil {
		return nil, err
	}
	return tag, nil
}

func (s *TagService) UpdateTag(ctx context.Context, id uuid.UUID, in TagInput) (*models.Tag, error) {
	in.Name = strings.TrimSpace(in.Name)
	if err := validation.Struct(in); err != nil {
		return nil, err
	}
	tag, err := s.tags.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	tag.Name = in.Name
	if in.Slug != "" {
		tag.Slug = in.Slug
	}
	if err := s.tags.Update(ctx, tag); err != nil {
		return nil, err
	}
	return tag, nil
}

func (s *TagService) DeleteTag(ctx context.Context, id uuid.UUID) error {
	return s.tags.Delete(ctx, id)
}

func (s *TagService) IsSlugAvailable(ctx context.Context, slug string, excludeID *uuid.UUID) (bool, error) {
	return s.tags.IsSlugAvailable(ctx, slug, excludeID)
}

// Stats returns the published post count per tag.
func (s *TagService) Stats(ctx context.Context) ([]models.TaxonomyStat, error) {
	var stats []models.TaxonomyStat
	err := cache.Aside(ctx, cache.TagStatsKey, &stats, cache.StatsTTL, func() error {
		var err error
		stats, err = s.tags.Stats(ctx)
		return err
	})
	if err != nil {
		return nil, err
	}
	return stats, nil
}

func (s *TagService) ListAll(ctx context.Context) ([]models.Tag, error) {
	return s.tags.ListAll(ctx)
}
