package repository

import (
	"context"
	"errors"

	"inkwell/internal/cache"
	"inkwell/internal/models"
	"inkwell/internal/observability"

	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// SettingsRepository reads and writes the site settings document.
type SettingsRepository interface {
	Get(ctx context.Context) (models.SiteSettings, error)
	Save(ctx context.Context, settings models.SiteSettings) error
}

type settingsRepository struct {
	db  *gorm.DB
	log *observability.RepoLogger
}

// NewSettingsRepository returns a new SettingsRepository implementation.
func NewSettingsRepository(db *gorm.DB) SettingsRepository {
	return &settingsRepository{db: db, log: observability.NewRepoLogger("site_settings")}
}

// Get returns the stored settings, or the defaults when none were saved.
func (r *settingsRepository) Get(ctx context.Context) (models.SiteSettings, error) {
	var row models.SiteSetting
	err := readDB(r.db).WithContext(ctx).Where(&models.SiteSetting{Key: models.SiteSettingsKey}).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.DefaultSiteSettings(), nil
	}
	if err != nil {
		return models.SiteSettings{}, models.NewInternalError(err)
	}
	return row.Value.Data(), nil
}

func (r *settingsRepository) Save(ctx context.Context, settings models.SiteSettings) error {
	row := models.SiteSetting{
		Key:   models.SiteSettingsKey,
		Value: datatypes.NewJSONType(settings),
	}
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(&row).Error
	if err != nil {
		return models.NewInternalError(err)
	}
	r.log.LogUpdate(ctx, map[string]any{"key": row.Key})
	cache.InvalidateSettings(ctx)
	return nil
}
