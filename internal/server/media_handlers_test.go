package server

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"testing"

	"inkwell/internal/models"
	"inkwell/internal/service"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func samplePNG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		img.Set(x, x%h, color.RGBA{R: 30, G: 120, B: 200, A: 255})
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func multipartImage(t *testing.T, field, filename, contentType string, content []byte) (*bytes.Buffer, string) {
	t.Helper()
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", `form-data; name="`+field+`"; filename="`+filename+`"`)
	h.Set("Content-Type", contentType)
	part, err := w.CreatePart(h)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, w.Close())
	return &body, w.FormDataContentType()
}

func (ts *testServer) upload(token, field, filename, contentType string, content []byte) *http.Response {
	ts.t.Helper()
	body, ct := multipartImage(ts.t, field, filename, contentType, content)
	req := httptest.NewRequest(http.MethodPost, "/admin/media", body)
	req.Header.Set(fiber.HeaderContentType, ct)
	if token != "" {
		req.Header.Set(fiber.HeaderAuthorization, "Bearer "+token)
	}
	resp, err := ts.app.Test(req, -1)
	require.NoError(ts.t, err)
	ts.t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func TestUploadMedia(t *testing.T) {
	ts := newTestServer(t)
	author := ts.tokenFor("author@example.com", models.RoleAuthor)
	reader := ts.tokenFor("reader@example.com", models.RoleReader)
	content := samplePNG(t, 64, 48)

	t.Run("stores and serves webp", func(t *testing.T) {
		resp := ts.upload(author, "image", "cover.png", "image/png", content)
		require.Equal(t, fiber.StatusCreated, resp.StatusCode, readBody(t, resp))
		var asset service.MediaAsset
		decode(t, resp, &asset)
		assert.Equal(t, 64, asset.Width)
		assert.Equal(t, 48, asset.Height)
		assert.True(t, strings.HasSuffix(asset.Name, ".webp"))
		assert.Equal(t, "https://blog.example.com/media/"+asset.Name, asset.URL)

		served := ts.do(http.MethodGet, "/media/"+asset.Name, "", nil)
		require.Equal(t, fiber.StatusOK, served.StatusCode)
		assert.Contains(t, served.Header.Get(fiber.HeaderCacheControl), "immutable")
		assert.NotEmpty(t, readBody(t, served))
	})

	t.Run("reader is rejected", func(t *testing.T) {
		resp := ts.upload(reader, "image", "cover.png", "image/png", content)
		assert.Equal(t, fiber.StatusForbidden, resp.StatusCode)
	})

	t.Run("missing field", func(t *testing.T) {
		resp := ts.upload(author, "file", "cover.png", "image/png", content)
		assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	})

	t.Run("not an image", func(t *testing.T) {
		resp := ts.upload(author, "image", "notes.txt", "text/plain", []byte("hello"))
		assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	})

	t.Run("unknown media name", func(t *testing.T) {
		resp := ts.do(http.MethodGet, "/media/../../etc/passwd", "", nil)
		assert.NotEqual(t, fiber.StatusOK, resp.StatusCode)
		resp = ts.do(http.MethodGet, "/media/"+strings.Repeat("a", 64)+".webp", "", nil)
		assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
	})
}
