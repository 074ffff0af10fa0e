package repository

import (
	"context"
	"fmt"
	"testing"
	"time"

	"inkwell/internal/database"
	"inkwell/internal/models"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func setupMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	gormDB, err := gorm.Open(postgres.New(postgres.Config{
		Conn: db,
	}), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)

	return gormDB, mock
}

// newTestDB opens an isolated in-memory SQLite database with the full schema.
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_foreign_keys=on", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, database.Prepare(db))
	require.NoError(t, db.AutoMigrate(database.PersistentModels()...))
	return db
}

func seedUser(t *testing.T, db *gorm.DB, email string, role models.UserRole) models.User {
	t.Helper()
	user := models.User{Email: email, Password: "hash", Role: role}
	require.NoError(t, db.Create(&user).Error)
	return user
}

func seedCategory(t *testing.T, db *gorm.DB, name, slug string) models.Category {
	t.Helper()
	category := models.Category{Name: name, Slug: slug}
	require.NoError(t, db.Create(&category).Error)
	return category
}

func seedTag(t *testing.T, db *gorm.DB, name, slug string) models.Tag {
	t.Helper()
	tag := models.Tag{Name: name, Slug: slug}
	require.NoError(t, db.Create(&tag).Error)
	return tag
}

type postSeed struct {
	title     string
	slug      string
	status    models.PostStatus
	category  *models.Category
	tags      []models.Tag
	top       bool
	createdAt time.Time
}

func seedPost(t *testing.T, db *gorm.DB, author models.User, s postSeed) models.Post {
	t.Helper()

	if s.status == "" {
		s.status = models.PostStatusPublished
	}
	if s.slug == "" {
		s.slug = uuid.NewString()
	}
	if s.createdAt.IsZero() {
		s.createdAt = time.Now().UTC()
	}
	post := models.Post{
		Title:     s.title,
		Slug:      s.slug,
		Content:   datatypes.JSON(`{"blocks":[]}`),
		Status:    s.status,
		AuthorID:  author.ID,
		IsTop:     s.top,
		CreatedAt: s.createdAt,
	}
	if s.category != nil {
		post.CategoryID = &s.category.ID
	}
	post.EnsurePublishedAt(s.createdAt)

	tagIDs := make([]uuid.UUID, 0, len(s.tags))
	for _, tag := range s.tags {
		tagIDs = append(tagIDs, tag.ID)
	}
	require.NoError(t, NewPostRepository(db).Create(context.Background(), &post, tagIDs))
	return post
}
