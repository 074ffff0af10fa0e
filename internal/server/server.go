// Package server contains the HTTP and WebSocket handlers of the blog, the
// admin console and the auth API.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	_ "inkwell/docs" // swagger docs
	"inkwell/internal/cache"
	"inkwell/internal/config"
	"inkwell/internal/database"
	"inkwell/internal/featureflags"
	"inkwell/internal/mailer"
	"inkwell/internal/middleware"
	"inkwell/internal/models"
	"inkwell/internal/observability"
	"inkwell/internal/repository"
	"inkwell/internal/service"

	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/monitor"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/gofiber/swagger"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// Server holds all dependencies and provides handlers
type Server struct {
	config         *config.Config
	db             *gorm.DB
	redis          *redis.Client
	app            *fiber.App
	promMiddleware *fiberprometheus.FiberPrometheus
	featureFlags   *featureflags.Manager
	auth           *middleware.Authenticator

	userRepo     repository.UserRepository
	postRepo     repository.PostRepository
	categoryRepo repository.CategoryRepository
	tagRepo      repository.TagRepository

	postService     *service.PostService
	tagService      *service.TagService
	categoryService *service.CategoryService
	settingsService *service.SettingsService
	feedService     *service.FeedService
	authService     *service.AuthService
	userService     *service.UserService
	mediaService    *service.MediaService
	sitemapService  *service.SitemapService
}

// NewServer connects to the database and Redis and wires every service.
func NewServer(cfg *config.Config) (*Server, error) {
	db, err := database.Connect(cfg)
	if err != nil {
		return nil, fmt.Errorf("database connection failed: %w", err)
	}

	cache.InitRedis(cfg.RedisURL)
	return NewServerWithDeps(cfg, db, cache.GetClient())
}

// NewServerWithDeps creates a Server using already-initialized dependencies.
// Tests and the bootstrap layer use it after establishing DB and Redis.
func NewServerWithDeps(cfg *config.Config, db *gorm.DB, redisClient *redis.Client) (*Server, error) {
	if cfg == nil {
		return nil, errors.New("server: config is required")
	}
	if db == nil {
		return nil, errors.New("server: database is required")
	}

	s := &Server{
		config:         cfg,
		db:             db,
		redis:          redisClient,
		promMiddleware: middleware.InitMetrics("inkwell-api"),
		featureFlags:   featureflags.NewManager(cfg.FeatureFlags),
		userRepo:       repository.NewUserRepository(db),
		postRepo:       repository.NewPostRepository(db),
		categoryRepo:   repository.NewCategoryRepository(db),
		tagRepo:        repository.NewTagRepository(db),
	}

	s.tagService = service.NewTagService(s.tagRepo)
	s.categoryService = service.NewCategoryService(s.categoryRepo)
	s.settingsService = service.NewSettingsService(repository.NewSettingsRepository(db))
	s.postService = service.NewPostService(s.postRepo, s.categoryRepo, s.tagService, cfg.DefaultAvatarURL)
	s.feedService = service.NewFeedService(s.postService, s.categoryService, s.tagService, s.settingsService)
	s.userService = service.NewUserService(s.userRepo)
	s.mediaService = service.NewMediaService(cfg)
	s.sitemapService = service.NewSitemapService(s.postRepo, s.categoryRepo, s.tagRepo, s.settingsService, cfg.SiteURL)
	s.authService = service.NewAuthService(
		s.userRepo,
		repository.NewUserTokenRepository(db),
		mailer.New(cfg, middleware.Logger),
		service.AuthConfigFrom(cfg),
	)
	s.auth = &middleware.Authenticator{
		Secret:  cfg.JWTSecret,
		Revoked: cache.IsRevoked,
		Roles:   s.userService.Role,
	}

	return s, nil
}

// Sitemap exposes the sitemap service for the job scheduler.
func (s *Server) Sitemap() *service.SitemapService {
	return s.sitemapService
}

// App builds the Fiber application with middleware and routes installed.
func (s *Server) App() *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:      "Inkwell API",
		BodyLimit:    int(s.mediaService.MaxUploadSizeBytes()) + 1024*1024,
		ErrorHandler: s.errorHandler,
	})
	s.SetupMiddleware(app)
	s.SetupRoutes(app)
	return app
}

// SetupMiddleware configures middleware for the Fiber app
func (s *Server) SetupMiddleware(app *fiber.App) {
	app.Use(recover.New(recover.Config{EnableStackTrace: !s.config.IsProduction()}))
	app.Use(requestid.New())
	app.Use(middleware.ContextMiddleware())
	app.Use(middleware.TracingMiddleware())

	if s.promMiddleware != nil {
		app.Use(middleware.MetricsMiddleware(s.promMiddleware))
	}

	app.Use(helmet.New(helmet.Config{
		CrossOriginResourcePolicy: "cross-origin",
	}))
	app.Use(middleware.StructuredLogger())

	// CORS runs before anything that can short-circuit so error responses
	// still carry the headers.
	origins := s.config.AllowedOrigins
	if origins == "" {
		origins = "http://localhost:5173,http://localhost:3000,http://127.0.0.1:5173"
	}
	app.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, Upgrade, Connection, Sec-WebSocket-Key, Sec-WebSocket-Version",
		AllowMethods:     "GET,POST,PUT,PATCH,DELETE,OPTIONS",
		AllowCredentials: origins != "*",
		MaxAge:           86400,
	}))

	app.Use(compress.New(compress.Config{Level: compress.LevelBestSpeed}))

	app.Use(limiter.New(limiter.Config{
		Max:        300,
		Expiration: time.Minute,
		Next: func(c *fiber.Ctx) bool {
			return c.Method() == fiber.MethodOptions
		},
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(models.ErrorResponse{
				Error: "Too many requests, please try again later.",
			})
		},
	}))
}

// SetupRoutes configures all routes for the application
func (s *Server) SetupRoutes(app *fiber.App) {
	app.Get("/health/live", s.LivenessCheck)
	app.Get("/health/ready", s.ReadinessCheck)

	if s.promMiddleware != nil {
		s.promMiddleware.RegisterAt(app, "/metrics")
	}
	app.Get("/swagger/*", swagger.HandlerDefault)

	// SEO and media
	app.Get("/sitemap.xml", s.GetSitemap)
	app.Get("/robots.txt", s.GetRobots)
	app.Get("/media/:name", s.ServeMedia)

	// Public blog
	app.Get("/", s.GetHome)
	blog := app.Group("/blog")
	blog.Get("/category/:id", s.GetCategoryFeed)
	blog.Get("/tag/:id", s.GetTagFeed)
	blog.Get("/:id", s.GetArticle)

	app.Get("/ws/search", s.auth.Optional(), s.liveSearchGate, s.LiveSearchHandler())

	// Auth
	auth := app.Group("/auth")
	auth.Post("/signup", middleware.RateLimit(s.redis, 5, 10*time.Minute, "signup"), s.Signup)
	auth.Post("/verify", s.VerifyEmail)
	auth.Post("/resend-verification", middleware.RateLimit(s.redis, 3, 10*time.Minute, "resend_verification"), s.ResendVerification)
	auth.Post("/login", middleware.RateLimit(s.redis, 10, 5*time.Minute, "login"), s.Login)
	auth.Post("/refresh", middleware.RateLimit(s.redis, 30, 5*time.Minute, "refresh"), s.Refresh)
	auth.Post("/logout", s.auth.Required(), s.Logout)
	auth.Get("/me", s.auth.Required(), s.Me)
	auth.Post("/reset-password", middleware.RateLimit(s.redis, 3, 10*time.Minute, "reset_password"), s.RequestPasswordReset)
	auth.Post("/reset-password/confirm", middleware.RateLimit(s.redis, 10, 10*time.Minute, "reset_password_confirm"), s.ConfirmPasswordReset)
	auth.Put("/password", s.auth.Required(), s.ChangePassword)

	// Admin console; every route needs staff, some need admin.
	adminOnly := middleware.AdminRequired()
	admin := app.Group("/admin", s.auth.Required(), middleware.StaffRequired())

	posts := admin.Group("/posts")
	posts.Get("/", s.ListAdminPosts)
	posts.Get("/stats", s.GetPostStats)
	posts.Get("/slug-available", s.CheckPostSlug)
	posts.Get("/top", s.GetTopPost)
	posts.Post("/", s.CreatePost)
	// Specific /:id/:resource routes before the generic /:id routes
	posts.Get("/:id/tags", s.GetPostTags)
	posts.Patch("/:id/status", s.UpdatePostStatus)
	posts.Get("/:id", s.GetAdminPost)
	posts.Put("/:id", s.UpdatePost)
	posts.Delete("/:id", s.DeletePost)

	categories := admin.Group("/categories")
	categories.Get("/", s.ListCategories)
	categories.Get("/stats", s.GetCategoryStats)
	categories.Get("/slug-available", s.CheckCategorySlug)
	categories.Post("/", s.CreateCategory)
	categories.Get("/:id", s.GetCategory)
	categories.Put("/:id", s.UpdateCategory)
	categories.Delete("/:id", adminOnly, s.DeleteCategory)

	tags := admin.Group("/tags")
	tags.Get("/", s.ListTags)
	tags.Get("/stats", s.GetTagStats)
	tags.Get("/slug-available", s.CheckTagSlug)
	tags.Post("/", s.CreateTag)
	tags.Get("/:id", s.GetTag)
	tags.Put("/:id", s.UpdateTag)
	tags.Delete("/:id", adminOnly, s.DeleteTag)

	admin.Post("/media", middleware.RateLimit(s.redis, 30, time.Minute, "media_upload"), s.UploadMedia)

	admin.Get("/settings", adminOnly, s.GetSettings)
	admin.Put("/settings", adminOnly, s.UpdateSettings)
	admin.Get("/feature-flags", s.GetFeatureFlags)

	users := admin.Group("/users", adminOnly)
	users.Get("/", s.ListUsers)
	users.Get("/:id", s.GetUser)
	users.Post("/:id/role", s.SetUserRole)

	admin.Get("/monitor", adminOnly, monitor.New(monitor.Config{
		Title: "Inkwell Metrics Dashboard",
	}))
}

// LivenessCheck handles liveness probe requests
func (s *Server) LivenessCheck(c *fiber.Ctx) error {
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"status": "up",
		"time":   time.Now(),
	})
}

// ReadinessCheck handles readiness probe requests. Redis is optional: the
// service degrades to uncached reads without it.
func (s *Server) ReadinessCheck(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), 5*time.Second)
	defer cancel()

	dbStatus := "healthy"
	sqlDB, err := s.db.DB()
	if err != nil {
		dbStatus = "unhealthy"
	} else if err := sqlDB.PingContext(ctx); err != nil {
		dbStatus = "unhealthy"
	}

	redisStatus := "unavailable"
	if s.redis != nil {
		redisStatus = "healthy"
		if err := s.redis.Ping(ctx).Err(); err != nil {
			redisStatus = "unhealthy"
		}
	}

	status := fiber.StatusOK
	overallStatus := "healthy"
	switch {
	case dbStatus != "healthy":
		status = fiber.StatusServiceUnavailable
		overallStatus = "unhealthy"
	case redisStatus != "healthy":
		overallStatus = "degraded"
	}

	return c.Status(status).JSON(fiber.Map{
		"status": overallStatus,
		"checks": fiber.Map{
			"database": dbStatus,
			"redis":    redisStatus,
		},
		"time": time.Now(),
	})
}

// errorHandler answers errors that escaped a handler. 5xx responses are
// logged and reported; details never reach the client.
func (s *Server) errorHandler(c *fiber.Ctx, err error) error {
	var fe *fiber.Error
	if errors.As(err, &fe) && fe.Code < fiber.StatusInternalServerError {
		return c.Status(fe.Code).JSON(models.ErrorResponse{Error: fe.Message})
	}

	status := models.StatusFor(err)
	if status < fiber.StatusInternalServerError {
		return models.RespondWithError(c, status, err)
	}

	ctx := c.UserContext()
	middleware.Logger.ErrorContext(ctx, "unhandled error",
		slog.String("method", c.Method()),
		slog.String("path", c.Path()),
		slog.String("error", err.Error()),
	)
	tags := map[string]string{"method": c.Method(), "path": c.Path()}
	if rid, ok := c.Locals("requestid").(string); ok {
		tags["request_id"] = rid
	}
	observability.ReportError(ctx, err, tags)

	return models.RespondWithError(c, fiber.StatusInternalServerError, models.NewInternalError(err))
}

// Start starts the server
func (s *Server) Start() error {
	s.app = s.App()
	middleware.Logger.Info("server starting", slog.String("port", s.config.Port))
	return s.app.Listen(":" + s.config.Port)
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	var errs []error

	if s.app != nil {
		if err := s.app.ShutdownWithContext(ctx); err != nil {
			errs = append(errs, fmt.Errorf("shutdown http server: %w", err))
		}
	}

	if sqlDB, err := s.db.DB(); err == nil {
		if cerr := sqlDB.Close(); cerr != nil {
			errs = append(errs, fmt.Errorf("close sql db: %w", cerr))
		}
	}

	if s.redis != nil {
		if rerr := s.redis.Close(); rerr != nil {
			errs = append(errs, fmt.Errorf("close redis: %w", rerr))
		}
	}

	middleware.Logger.Info("server shutdown complete")
	return errors.Join(errs...)
}
