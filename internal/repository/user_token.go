package repository

import (
	"context"
	"time"

	"inkwell/internal/models"
	"inkwell/internal/observability"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// UserTokenRepository stores hashed single-use tokens for email flows.
type UserTokenRepository interface {
	Create(ctx context.Context, token *models.UserToken) error
	Consume(ctx context.Context, hash string, purpose models.TokenPurpose, now time.Time) (*models.UserToken, error)
	InvalidateForUser(ctx context.Context, userID uuid.UUID, purpose models.TokenPurpose, now time.Time) error
	PurgeExpired(ctx context.Context, before time.Time) (int64, error)
}

type userTokenRepository struct {
	db  *gorm.DB
	log *observability.RepoLogger
}

// NewUserTokenRepository returns a new UserTokenRepository implementation.
func NewUserTokenRepository(db *gorm.DB) UserTokenRepository {
	return &userTokenRepository{db: db, log: observability.NewRepoLogger("user_tokens")}
}

func (r *userTokenRepository) Create(ctx context.Context, token *models.UserToken) error {
	if err := r.db.WithContext(ctx).Create(token).Error; err != nil {
		return models.NewInternalError(err)
	}
	r.log.LogCreate(ctx, map[string]any{"user_id": token.UserID.String(), "purpose": string(token.Purpose)})
	return nil
}

// Consume marks a usable token as used and returns it. The update is
// conditional so a token can be redeemed once even under concurrent requests.
func (r *userTokenRepository) Consume(ctx context.Context, hash string, purpose models.TokenPurpose, now time.Time) (*models.UserToken, error) {
	var token models.UserToken
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("token_hash = ? AND purpose = ?", hash, purpose).First(&token).Error; err != nil {
			return err
		}
		if !token.Usable(now) {
			return gorm.ErrRecordNotFound
		}
		res := tx.Model(&models.UserToken{}).
			Where("id = ? AND used_at IS NULL", token.ID).
			Update("used_at", now.UTC())
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		used := now.UTC()
		token.UsedAt = &used
		return nil
	})
	if err != nil {
		return nil, lookupError(err, "Token", "")
	}
	return &token, nil
}

// InvalidateForUser marks every outstanding token of the purpose as used.
func (r *userTokenRepository) InvalidateForUser(ctx context.Context, userID uuid.UUID, purpose models.TokenPurpose, now time.Time) error {
	err := r.db.WithContext(ctx).
		Model(&models.UserToken{}).
		Where("user_id = ? AND purpose = ? AND used_at IS NULL", userID, purpose).
		Update("used_at", now.UTC()).Error
	if err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

func (r *userTokenRepository) PurgeExpired(ctx context.Context, before time.Time) (int64, error) {
	res := r.db.WithContext(ctx).Where("expires_at < ?", before.UTC()).Delete(&models.UserToken{})
	if res.Error != nil {
		return 0, models.NewInternalError(res.Error)
	}
	if res.RowsAffected > 0 {
		r.log.LogDelete(ctx, map[string]any{"purged": res.RowsAffected})
	}
	return res.RowsAffected, nil
}
