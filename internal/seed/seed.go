package seed

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"inkwell/internal/models"
	"inkwell/internal/repository"
	"inkwell/internal/service"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// DefaultPassword is the password of every seeded account.
const DefaultPassword = "password123"

// Options configure a seeding run.
type Options struct {
	NumAuthors int
	NumReaders int
	NumPosts   int
	// PublishedPct is the share of posts that are published.
	PublishedPct int
	MaxDays      int
	// Seed makes the fake data reproducible; zero picks a random one.
	Seed int64
	// SkipBcrypt stores a cheap hash for fast local runs.
	SkipBcrypt bool
	// Fixtures overrides the embedded fixtures document.
	Fixtures []byte
}

// Result summarizes a seeding run.
type Result struct {
	Users      int
	Categories int
	Tags       int
	Posts      int
}

// Seeder writes demo content through the domain services so slugs, tag
// resolution and publish rules behave as in production.
type Seeder struct {
	db         *gorm.DB
	opts       Options
	factory    *Factory
	logger     *slog.Logger
	users      repository.UserRepository
	categories *service.CategoryService
	tags       *service.TagService
	posts      *service.PostService
	settings   *service.SettingsService
}

// NewSeeder creates a seeder bound to db.
func NewSeeder(db *gorm.DB, opts Options) *Seeder {
	if opts.PublishedPct <= 0 {
		opts.PublishedPct = 80
	}
	categoryRepo := repository.NewCategoryRepository(db)
	tags := service.NewTagService(repository.NewTagRepository(db))
	return &Seeder{
		db:         db,
		opts:       opts,
		factory:    NewFactory(opts.Seed, opts.MaxDays),
		logger:     slog.Default(),
		users:      repository.NewUserRepository(db),
		categories: service.NewCategoryService(categoryRepo),
		tags:       tags,
		posts:      service.NewPostService(repository.NewPostRepository(db), categoryRepo, tags, ""),
		settings:   service.NewSettingsService(repository.NewSettingsRepository(db)),
	}
}

// Run loads fixtures and fake content. Fixture rows that already exist are
// reused, so Run can be repeated.
func (s *Seeder) Run(ctx context.Context) (*Result, error) {
	fixtures, err := LoadFixtures(s.opts.Fixtures)
	if err != nil {
		return nil, err
	}
	hash, err := s.passwordHash()
	if err != nil {
		return nil, err
	}
	res := &Result{}

	if fixtures.Settings != nil {
		if _, err := s.settings.Update(ctx, *fixtures.Settings); err != nil {
			return nil, fmt.Errorf("seed settings: %w", err)
		}
	}

	categoryIDs := make([]uuid.UUID, 0, len(fixtures.Categories))
	for _, c := range fixtures.Categories {
		category, err := s.ensureCategory(ctx, c)
		if err != nil {
			return nil, err
		}
		categoryIDs = append(categoryIDs, category.ID)
		res.Categories++
	}

	if len(fixtures.Tags) > 0 {
		tags, err := s.tags.GetOrCreateByNames(ctx, fixtures.Tags)
		if err != nil {
			return nil, fmt.Errorf("seed tags: %w", err)
		}
		res.Tags = len(tags)
	}

	var staff []service.Actor
	for _, a := range fixtures.Authors {
		u, created, err := s.ensureUser(ctx, a, hash)
		if err != nil {
			return nil, err
		}
		if created {
			res.Users++
		}
		if u.Role.IsStaff() {
			staff = append(staff, service.Actor{UserID: u.ID, Role: u.Role})
		}
	}
	for i := 0; i < s.opts.NumAuthors; i++ {
		u := s.factory.User(models.RoleAuthor, hash)
		if err := s.users.Create(ctx, u); err != nil {
			return nil, fmt.Errorf("seed author: %w", err)
		}
		staff = append(staff, service.Actor{UserID: u.ID, Role: u.Role})
		res.Users++
	}
	for i := 0; i < s.opts.NumReaders; i++ {
		if err := s.users.Create(ctx, s.factory.User(models.RoleReader, hash)); err != nil {
			return nil, fmt.Errorf("seed reader: %w", err)
		}
		res.Users++
	}

	if s.opts.NumPosts > 0 && len(staff) == 0 {
		return nil, errors.New("seed posts: no staff accounts to author them")
	}
	for i := 0; i < s.opts.NumPosts; i++ {
		author := staff[s.factory.Intn(len(staff))]
		var categoryID *uuid.UUID
		if len(categoryIDs) > 0 {
			id := categoryIDs[s.factory.Intn(len(categoryIDs))]
			categoryID = &id
		}
		in := s.factory.Post(categoryID, s.factory.PickTags(fixtures.Tags, 1+s.factory.Intn(3)), s.factory.Bool(s.opts.PublishedPct))
		in.IsTop = i == 0
		if _, err := s.posts.CreatePost(ctx, author, in); err != nil {
			return nil, fmt.Errorf("seed post %q: %w", in.Title, err)
		}
		res.Posts++
	}

	s.logger.InfoContext(ctx, "seeding completed",
		slog.Int("users", res.Users),
		slog.Int("categories", res.Categories),
		slog.Int("tags", res.Tags),
		slog.Int("posts", res.Posts),
	)
	return res, nil
}

func (s *Seeder) passwordHash() (string, error) {
	cost := bcrypt.DefaultCost
	if s.opts.SkipBcrypt {
		cost = bcrypt.MinCost
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(DefaultPassword), cost)
	if err != nil {
		return "", fmt.Errorf("hash seed password: %w", err)
	}
	return string(hash), nil
}

func (s *Seeder) ensureCategory(ctx context.Context, c CategoryFixture) (*models.Category, error) {
	existing, err := s.categories.GetCategory(ctx, service.TaxonomySlug(c.Name, "category"))
	if err == nil {
		return existing, nil
	}
	if !models.IsCode(err, models.CodeNotFound) {
		return nil, err
	}
	in := service.CategoryInput{Name: c.Name}
	if c.Description != "" {
		in.Description = &c.Description
	}
	category, err := s.categories.CreateCategory(ctx, in)
	if err != nil {
		return nil, fmt.Errorf("seed category %s: %w", c.Name, err)
	}
	return category, nil
}

func (s *Seeder) ensureUser(ctx context.Context, a AuthorFixture, hash string) (*models.User, bool, error) {
	email := strings.ToLower(strings.TrimSpace(a.Email))
	existing, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		return nil, false, err
	}
	if existing != nil {
		return existing, false, nil
	}
	u := s.factory.User(a.Role, hash)
	u.Email = email
	if a.Username != "" {
		username := a.Username
		u.Username = &username
	}
	if err := s.users.Create(ctx, u); err != nil {
		return nil, false, fmt.Errorf("seed user %s: %w", email, err)
	}
	return u, true, nil
}

// ClearAll deletes all content and accounts, children first.
func (s *Seeder) ClearAll(ctx context.Context) error {
	tables := []any{
		&models.PostTag{},
		&models.Post{},
		&models.Tag{},
		&models.Category{},
		&models.UserToken{},
		&models.User{},
		&models.SiteSetting{},
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, table := range tables {
			if err := tx.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(table).Error; err != nil {
				return fmt.Errorf("clear %T: %w", table, err)
			}
		}
		return nil
	})
}
