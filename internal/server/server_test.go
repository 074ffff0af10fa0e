package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"inkwell/internal/cache"
	"inkwell/internal/config"
	"inkwell/internal/database"
	"inkwell/internal/models"

	"github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const testPassword = "correct-horse-battery"

type testServer struct {
	t   *testing.T
	srv *Server
	app *fiber.App
	db  *gorm.DB
	cfg *config.Config
}

func newTestConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		Env:                   "test",
		Port:                  "0",
		SiteURL:               "https://blog.example.com",
		JWTSecret:             "test-secret-key-12345678901234567890123456789012",
		AccessTokenTTLMinutes: 15,
		RefreshTokenTTLHours:  24,
		AllowedOrigins:        "http://localhost:5173",
		FeatureFlags:          "live_search=on",
		DefaultAvatarURL:      "/static/default-avatar.png",
		UploadDir:             t.TempDir(),
		ImageMaxUploadSizeMB:  1,
		MailFrom:              "no-reply@blog.example.com",
	}
}

func newTestServer(t *testing.T) *testServer {
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

	cfg := newTestConfig(t)
	srv, err := NewServerWithDeps(cfg, db, nil)
	require.NoError(t, err)

	return &testServer{t: t, srv: srv, app: srv.App(), db: db, cfg: cfg}
}

// withRedis points the cache and revocation list at a miniredis instance.
func (ts *testServer) withRedis() *miniredis.Miniredis {
	ts.t.Helper()
	mr := miniredis.RunT(ts.t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	cache.SetClient(client)
	ts.t.Cleanup(func() {
		cache.SetClient(nil)
		_ = client.Close()
	})
	return mr
}

func (ts *testServer) createUser(email string, role models.UserRole) *models.User {
	ts.t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(testPassword), bcrypt.MinCost)
	require.NoError(ts.t, err)
	now := time.Now()
	u := &models.User{Email: email, Password: string(hash), Role: role, EmailVerifiedAt: &now}
	require.NoError(ts.t, ts.db.Create(u).Error)
	return u
}

func (ts *testServer) login(email string) LoginResponse {
	ts.t.Helper()
	resp := ts.do(http.MethodPost, "/auth/login", "", map[string]string{"email": email, "password": testPassword})
	require.Equal(ts.t, fiber.StatusOK, resp.StatusCode, readBody(ts.t, resp))
	var out LoginResponse
	decode(ts.t, resp, &out)
	require.NotNil(ts.t, out.TokenPair)
	return out
}

// tokenFor creates a verified user with role and returns an access token.
func (ts *testServer) tokenFor(email string, role models.UserRole) string {
	ts.t.Helper()
	ts.createUser(email, role)
	return ts.login(email).AccessToken
}

func (ts *testServer) do(method, path, token string, body any) *http.Response {
	ts.t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(ts.t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	}
	if token != "" {
		req.Header.Set(fiber.HeaderAuthorization, "Bearer "+token)
	}
	resp, err := ts.app.Test(req, -1)
	require.NoError(ts.t, err)
	ts.t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func decode(t *testing.T, resp *http.Response, dst any) {
	t.Helper()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(dst))
}

func readBody(t *testing.T, resp *http.Response) string {
	t.Helper()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return string(raw)
}

func TestHealthEndpoints(t *testing.T) {
	ts := newTestServer(t)

	resp := ts.do(http.MethodGet, "/health/live", "", nil)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	resp = ts.do(http.MethodGet, "/health/ready", "", nil)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	var body struct {
		Status string            `json:"status"`
		Checks map[string]string `json:"checks"`
	}
	decode(t, resp, &body)
	assert.Equal(t, "degraded", body.Status)
	assert.Equal(t, "healthy", body.Checks["database"])
	assert.Equal(t, "unavailable", body.Checks["redis"])
}

func TestReadinessCheck_DatabaseDown(t *testing.T) {
	ts := newTestServer(t)
	sqlDB, err := ts.db.DB()
	require.NoError(t, err)
	require.NoError(t, sqlDB.Close())

	resp := ts.do(http.MethodGet, "/health/ready", "", nil)
	assert.Equal(t, fiber.StatusServiceUnavailable, resp.StatusCode)
}

func TestPublicBlog(t *testing.T) {
	ts := newTestServer(t)
	token := ts.tokenFor("admin@example.com", models.RoleAdmin)

	resp := ts.do(http.MethodPost, "/admin/categories", token, map[string]string{"name": "Go Lang"})
	require.Equal(t, fiber.StatusCreated, resp.StatusCode, readBody(t, resp))
	var category models.Category
	decode(t, resp, &category)

	resp = ts.do(http.MethodPost, "/admin/posts", token, map[string]any{
		"title":       "Hello World",
		"status":      "published",
		"category_id": category.ID,
		"tags":        []string{"intro"},
		"is_top":      true,
	})
	require.Equal(t, fiber.StatusCreated, resp.StatusCode, readBody(t, resp))
	var created models.PostDetail
	decode(t, resp, &created)
	assert.Equal(t, "hello-world", created.Slug)

	resp = ts.do(http.MethodPost, "/admin/posts", token, map[string]any{"title": "Unfinished", "status": "draft"})
	require.Equal(t, fiber.StatusCreated, resp.StatusCode, readBody(t, resp))
	var draft models.PostDetail
	decode(t, resp, &draft)

	t.Run("home", func(t *testing.T) {
		resp := ts.do(http.MethodGet, "/", "", nil)
		require.Equal(t, fiber.StatusOK, resp.StatusCode)
		var feed struct {
			Posts struct {
				Data  []models.Post `json:"data"`
				Total int64         `json:"total"`
			} `json:"posts"`
			TopPost *models.Post `json:"top_post"`
		}
		decode(t, resp, &feed)
		assert.EqualValues(t, 1, feed.Posts.Total)
		require.NotNil(t, feed.TopPost)
		assert.Equal(t, created.ID, feed.TopPost.ID)
	})

	t.Run("article by slug", func(t *testing.T) {
		resp := ts.do(http.MethodGet, "/blog/hello-world", "", nil)
		require.Equal(t, fiber.StatusOK, resp.StatusCode)
		var detail models.PostDetail
		decode(t, resp, &detail)
		assert.Equal(t, created.ID, detail.ID)
		assert.Equal(t, "Go Lang", detail.Category.Name)
	})

	t.Run("draft is hidden", func(t *testing.T) {
		resp := ts.do(http.MethodGet, "/blog/"+draft.ID.String(), "", nil)
		assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
	})

	t.Run("category and tag feeds", func(t *testing.T) {
		resp := ts.do(http.MethodGet, "/blog/category/go-lang", "", nil)
		assert.Equal(t, fiber.StatusOK, resp.StatusCode)
		resp = ts.do(http.MethodGet, "/blog/tag/intro", "", nil)
		assert.Equal(t, fiber.StatusOK, resp.StatusCode)
		resp = ts.do(http.MethodGet, "/blog/tag/missing", "", nil)
		assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
	})

	t.Run("sitemap and robots", func(t *testing.T) {
		resp := ts.do(http.MethodGet, "/sitemap.xml", "", nil)
		require.Equal(t, fiber.StatusOK, resp.StatusCode)
		assert.Contains(t, resp.Header.Get(fiber.HeaderContentType), "xml")
		body := readBody(t, resp)
		assert.Contains(t, body, "https://blog.example.com/blog/hello-world")
		assert.NotContains(t, body, "unfinished")

		resp = ts.do(http.MethodGet, "/robots.txt", "", nil)
		require.Equal(t, fiber.StatusOK, resp.StatusCode)
		assert.Contains(t, readBody(t, resp), "Sitemap: https://blog.example.com/sitemap.xml")
	})
}

func TestAuthFlow(t *testing.T) {
	ts := newTestServer(t)
	mr := ts.withRedis()
	ts.createUser("reader@example.com", models.RoleReader)

	t.Run("bad password", func(t *testing.T) {
		resp := ts.do(http.MethodPost, "/auth/login", "", map[string]string{
			"email": "reader@example.com", "password": "nope-nope-nope",
		})
		assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
	})

	login := ts.login("reader@example.com")
	assert.Equal(t, models.RoleReader, login.User.Role)

	resp := ts.do(http.MethodGet, "/auth/me", login.AccessToken, nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	var me models.User
	decode(t, resp, &me)
	assert.Equal(t, "reader@example.com", me.Email)

	resp = ts.do(http.MethodPost, "/auth/refresh", "", map[string]string{"refresh_token": login.RefreshToken})
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	resp = ts.do(http.MethodPost, "/auth/logout", login.AccessToken, map[string]string{"refresh_token": login.RefreshToken})
	require.Equal(t, fiber.StatusNoContent, resp.StatusCode)
	assert.NotEmpty(t, mr.Keys())

	resp = ts.do(http.MethodGet, "/auth/me", login.AccessToken, nil)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
}

func TestSignup(t *testing.T) {
	ts := newTestServer(t)

	resp := ts.do(http.MethodPost, "/auth/signup", "", map[string]string{
		"email": "new@example.com", "password": testPassword,
	})
	require.Equal(t, fiber.StatusCreated, resp.StatusCode, readBody(t, resp))
	var user models.User
	decode(t, resp, &user)
	assert.Equal(t, models.RoleReader, user.Role)
	assert.Nil(t, user.EmailVerifiedAt)

	resp = ts.do(http.MethodPost, "/auth/login", "", map[string]string{
		"email": "new@example.com", "password": testPassword,
	})
	assert.Equal(t, fiber.StatusForbidden, resp.StatusCode)

	resp = ts.do(http.MethodPost, "/auth/signup", "", map[string]string{
		"email": "new@example.com", "password": testPassword,
	})
	assert.Equal(t, fiber.StatusConflict, resp.StatusCode)
}

func TestAdminAuthorization(t *testing.T) {
	ts := newTestServer(t)
	reader := ts.tokenFor("reader@example.com", models.RoleReader)
	author := ts.tokenFor("author@example.com", models.RoleAuthor)
	admin := ts.tokenFor("admin@example.com", models.RoleAdmin)

	tests := []struct {
		name   string
		method string
		path   string
		token  string
		want   int
	}{
		{"anonymous", http.MethodGet, "/admin/posts", "", fiber.StatusUnauthorized},
		{"malformed token", http.MethodGet, "/admin/posts", "garbage", fiber.StatusUnauthorized},
		{"reader", http.MethodGet, "/admin/posts", reader, fiber.StatusForbidden},
		{"author lists posts", http.MethodGet, "/admin/posts", author, fiber.StatusOK},
		{"author reads tags", http.MethodGet, "/admin/tags", author, fiber.StatusOK},
		{"author cannot read settings", http.MethodGet, "/admin/settings", author, fiber.StatusForbidden},
		{"author cannot list users", http.MethodGet, "/admin/users", author, fiber.StatusForbidden},
		{"admin reads settings", http.MethodGet, "/admin/settings", admin, fiber.StatusOK},
		{"admin lists users", http.MethodGet, "/admin/users", admin, fiber.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := ts.do(tt.method, tt.path, tt.token, nil)
			assert.Equal(t, tt.want, resp.StatusCode)
		})
	}
}

func TestAdminPosts(t *testing.T) {
	ts := newTestServer(t)
	author := ts.tokenFor("author@example.com", models.RoleAuthor)
	other := ts.tokenFor("other@example.com", models.RoleAuthor)

	resp := ts.do(http.MethodPost, "/admin/posts", author, map[string]any{"title": "Draft One"})
	require.Equal(t, fiber.StatusCreated, resp.StatusCode, readBody(t, resp))
	var post models.PostDetail
	decode(t, resp, &post)
	assert.Equal(t, models.PostStatusDraft, post.Status)
	path := "/admin/posts/" + post.ID.String()

	t.Run("slug availability", func(t *testing.T) {
		resp := ts.do(http.MethodGet, "/admin/posts/slug-available?slug=draft-one", author, nil)
		require.Equal(t, fiber.StatusOK, resp.StatusCode)
		var body struct {
			Available bool `json:"available"`
		}
		decode(t, resp, &body)
		assert.False(t, body.Available)

		resp = ts.do(http.MethodGet, "/admin/posts/slug-available?slug=draft-one&excludeId="+post.ID.String(), author, nil)
		require.Equal(t, fiber.StatusOK, resp.StatusCode)
		decode(t, resp, &body)
		assert.True(t, body.Available)

		resp = ts.do(http.MethodGet, "/admin/posts/slug-available?slug=Not%20A%20Slug", author, nil)
		assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	})

	t.Run("other author cannot edit", func(t *testing.T) {
		resp := ts.do(http.MethodPut, path, other, map[string]any{"title": "Hijacked"})
		assert.Equal(t, fiber.StatusForbidden, resp.StatusCode)
	})

	t.Run("update", func(t *testing.T) {
		resp := ts.do(http.MethodPut, path, author, map[string]any{"title": "Draft Two", "tags": []string{"go", " go ", ""}})
		require.Equal(t, fiber.StatusOK, resp.StatusCode, readBody(t, resp))

		resp = ts.do(http.MethodGet, path+"/tags", author, nil)
		require.Equal(t, fiber.StatusOK, resp.StatusCode)
		var tags []models.Tag
		decode(t, resp, &tags)
		require.Len(t, tags, 1)
		assert.Equal(t, "go", tags[0].Name)
	})

	t.Run("publishing without category fails", func(t *testing.T) {
		resp := ts.do(http.MethodPatch, path+"/status", author, map[string]string{"status": "published"})
		assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	})

	t.Run("invalid id", func(t *testing.T) {
		resp := ts.do(http.MethodGet, "/admin/posts/not-a-uuid", author, nil)
		assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
		var body models.ErrorResponse
		decode(t, resp, &body)
		assert.Equal(t, "Invalid ID", body.Error)
	})

	t.Run("no top post", func(t *testing.T) {
		resp := ts.do(http.MethodGet, "/admin/posts/top", author, nil)
		assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
	})

	t.Run("delete", func(t *testing.T) {
		resp := ts.do(http.MethodDelete, path, author, nil)
		assert.Equal(t, fiber.StatusNoContent, resp.StatusCode)
		resp = ts.do(http.MethodGet, path, author, nil)
		assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
	})
}

func TestTaxonomyDeleteIsAdminOnly(t *testing.T) {
	ts := newTestServer(t)
	author := ts.tokenFor("author@example.com", models.RoleAuthor)
	admin := ts.tokenFor("admin@example.com", models.RoleAdmin)

	resp := ts.do(http.MethodPost, "/admin/tags", author, map[string]string{"name": "Rust"})
	require.Equal(t, fiber.StatusCreated, resp.StatusCode, readBody(t, resp))
	var tag models.Tag
	decode(t, resp, &tag)

	resp = ts.do(http.MethodPost, "/admin/tags", author, map[string]string{"name": "rust"})
	assert.Equal(t, fiber.StatusConflict, resp.StatusCode)

	resp = ts.do(http.MethodDelete, "/admin/tags/"+tag.ID.String(), author, nil)
	assert.Equal(t, fiber.StatusForbidden, resp.StatusCode)

	resp = ts.do(http.MethodDelete, "/admin/tags/"+tag.ID.String(), admin, nil)
	assert.Equal(t, fiber.StatusNoContent, resp.StatusCode)
}

func TestSettingsEndpoints(t *testing.T) {
	ts := newTestServer(t)
	admin := ts.tokenFor("admin@example.com", models.RoleAdmin)

	resp := ts.do(http.MethodGet, "/admin/settings", admin, nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	var got SettingsResponse
	decode(t, resp, &got)
	assert.Equal(t, models.DefaultSiteSettings(), got.Settings)
	assert.True(t, got.FeatureFlags.Evaluated["live_search"])

	next := models.DefaultSiteSettings()
	next.SiteName = "  My Blog "
	next.PostsPerPage = 5
	next.EnableSitemap = false
	resp = ts.do(http.MethodPut, "/admin/settings", admin, next)
	require.Equal(t, fiber.StatusOK, resp.StatusCode, readBody(t, resp))
	decode(t, resp, &got)
	assert.Equal(t, "My Blog", got.Settings.SiteName)

	resp = ts.do(http.MethodGet, "/sitemap.xml", "", nil)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)

	next.PostsPerPage = 1000
	resp = ts.do(http.MethodPut, "/admin/settings", admin, next)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestUserRoles(t *testing.T) {
	ts := newTestServer(t)
	adminUser := ts.createUser("admin@example.com", models.RoleAdmin)
	admin := ts.login("admin@example.com").AccessToken
	reader := ts.createUser("reader@example.com", models.RoleReader)

	resp := ts.do(http.MethodPost, "/admin/users/"+reader.ID.String()+"/role", admin, map[string]string{"role": "author"})
	require.Equal(t, fiber.StatusOK, resp.StatusCode, readBody(t, resp))
	var updated models.User
	decode(t, resp, &updated)
	assert.Equal(t, models.RoleAuthor, updated.Role)

	resp = ts.do(http.MethodPost, "/admin/users/"+adminUser.ID.String()+"/role", admin, map[string]string{"role": "reader"})
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)

	resp = ts.do(http.MethodGet, "/admin/users?role=author", admin, nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	var page struct {
		Data []models.User `json:"data"`
	}
	decode(t, resp, &page)
	require.Len(t, page.Data, 1)
	assert.Equal(t, "reader@example.com", page.Data[0].Email)
}

func TestLiveSearchRequiresUpgrade(t *testing.T) {
	ts := newTestServer(t)
	resp := ts.do(http.MethodGet, "/ws/search", "", nil)
	assert.Equal(t, fiber.StatusUpgradeRequired, resp.StatusCode)
}

func TestLiveSearchDisabled(t *testing.T) {
	ts := newTestServer(t)
	ts.srv.featureFlags = nil

	req := httptest.NewRequest(http.MethodGet, "/ws/search", nil)
	req.Header.Set("Connection", "Upgrade")
	req.Header.Set("Upgrade", "websocket")
	resp, err := ts.app.Test(req, -1)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
}

func TestErrorHandler(t *testing.T) {
	ts := newTestServer(t)
	app := fiber.New(fiber.Config{ErrorHandler: ts.srv.errorHandler})
	app.Get("/fiber", func(*fiber.Ctx) error { return fiber.NewError(fiber.StatusTeapot, "short and stout") })
	app.Get("/app", func(*fiber.Ctx) error { return models.NewNotFoundError("Post", "x") })
	app.Get("/boom", func(*fiber.Ctx) error { return context.DeadlineExceeded })

	tests := []struct {
		path    string
		status  int
		message string
	}{
		{"/fiber", fiber.StatusTeapot, "short and stout"},
		{"/app", fiber.StatusNotFound, ""},
		{"/boom", fiber.StatusInternalServerError, ""},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			resp, err := app.Test(httptest.NewRequest(http.MethodGet, tt.path, nil))
			require.NoError(t, err)
			defer func() { _ = resp.Body.Close() }()
			assert.Equal(t, tt.status, resp.StatusCode)

			var body models.ErrorResponse
			decode(t, resp, &body)
			if tt.message != "" {
				assert.Equal(t, tt.message, body.Error)
			}
			assert.NotContains(t, body.Error, "deadline")
		})
	}
}

func TestNewServerWithDeps_RequiresDependencies(t *testing.T) {
	_, err := NewServerWithDeps(nil, nil, nil)
	assert.Error(t, err)
	_, err = NewServerWithDeps(newTestConfig(t), nil, nil)
	assert.Error(t, err)
}
