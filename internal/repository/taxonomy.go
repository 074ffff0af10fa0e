package repository

import (
	"context"

	"inkwell/internal/models"
	"inkwell/internal/repository/queries"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const nameLike = `LOWER(name) LIKE ? ESCAPE '\'`

// listByName pages a taxonomy table ordered by name with an optional name filter.
func listByName[T any](ctx context.Context, db *gorm.DB, model *T, q queries.TaxonomyQuery) ([]T, int64, error) {
	base := db.WithContext(ctx).Model(model)
	if q.Search != "" {
		base = base.Where(nameLike, queries.LikePattern(q.Search))
	}
	base = base.Session(&gorm.Session{})

	var count int64
	if err := base.Count(&count).Error; err != nil {
		return nil, 0, models.NewInternalError(err)
	}

	items := make([]T, 0, q.PageSize)
	if count == 0 {
		return items, 0, nil
	}
	desc := q.Direction == queries.Desc
	err := base.
		Order(clause.OrderBy{Columns: []clause.OrderByColumn{
			{Column: clause.Column{Name: "name"}, Desc: desc},
			{Column: clause.Column{Name: "id"}, Desc: desc},
		}}).
		Offset(q.Offset()).
		Limit(q.PageSize).
		Find(&items).Error
	if err != nil {
		return nil, 0, models.NewInternalError(err)
	}
	return items, count, nil
}

func slugAvailable(ctx context.Context, db *gorm.DB, model interface{}, slug string, excludeID interface{}) (bool, error) {
	q := db.WithContext(ctx).Model(model).Where("slug = ?", slug)
	if excludeID != nil {
		q = q.Where("id <> ?", excludeID)
	}
	var count int64
	if err := q.Count(&count).Error; err != nil {
		return false, models.NewInternalError(err)
	}
	return count == 0, nil
}
