package service

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"inkwell/internal/database"
	"inkwell/internal/mailer"
	"inkwell/internal/models"
	"inkwell/internal/repository"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const testAvatar = "https://cdn.example.com/avatar.png"

type fixture struct {
	db         *gorm.DB
	posts      *PostService
	tags       *TagService
	categories *CategoryService
	settings   *SettingsService
	feed       *FeedService
	users      *UserService

	postRepo     repository.PostRepository
	categoryRepo repository.CategoryRepository
	tagRepo      repository.TagRepository
	userRepo     repository.UserRepository
}

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

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := newTestDB(t)

	f := &fixture{
		db:           db,
		postRepo:     repository.NewPostRepository(db),
		categoryRepo: repository.NewCategoryRepository(db),
		tagRepo:      repository.NewTagRepository(db),
		userRepo:     repository.NewUserRepository(db),
	}
	f.tags = NewTagService(f.tagRepo)
	f.categories = NewCategoryService(f.categoryRepo)
	f.settings = NewSettingsService(repository.NewSettingsRepository(db))
	f.posts = NewPostService(f.postRepo, f.categoryRepo, f.tags, testAvatar)
	f.feed = NewFeedService(f.posts, f.categories, f.tags, f.settings)
	f.users = NewUserService(f.userRepo)
	return f
}

func (f *fixture) user(t *testing.T, email string, role models.UserRole) Actor {
	t.Helper()
	u := &models.User{Email: email, Password: "hash", Role: role}
	require.NoError(t, f.userRepo.Create(context.Background(), u))
	return Actor{UserID: u.ID, Role: u.Role}
}

func (f *fixture) category(t *testing.T, name string) *models.Category {
	t.Helper()
	c, err := f.categories.CreateCategory(context.Background(), CategoryInput{Name: name})
	require.NoError(t, err)
	return c
}

func (f *fixture) publish(t *testing.T, author Actor, title string, category *models.Category, tags ...string) *models.Post {
	t.Helper()
	p, err := f.posts.CreatePost(context.Background(), author, SavePostInput{
		Title:      title,
		Status:     models.PostStatusPublished,
		CategoryID: &category.ID,
		Tags:       tags,
	})
	require.NoError(t, err)
	return p
}

func tagNames(tags []models.Tag) []string {
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		out = append(out, t.Name)
	}
	return out
}

func postTitles(posts []models.Post) []string {
	out := make([]string, 0, len(posts))
	for _, p := range posts {
		out = append(out, p.Title)
	}
	return out
}

// fixedClock returns a clock starting at start that advances by step on every call.
func fixedClock(start time.Time, step time.Duration) func() time.Time {
	var mu sync.Mutex
	now := start
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		t := now
		now = now.Add(step)
		return t
	}
}

// outbox records mail instead of sending it.
type outbox struct {
	mu   sync.Mutex
	sent []mailer.Message
}

func (o *outbox) Send(_ context.Context, msg mailer.Message) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.sent = append(o.sent, msg)
	return nil
}

func (o *outbox) last(t *testing.T) mailer.Message {
	t.Helper()
	o.mu.Lock()
	defer o.mu.Unlock()
	require.NotEmpty(t, o.sent)
	return o.sent[len(o.sent)-1]
}
