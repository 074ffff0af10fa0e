package service

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"image"
	_ "image/gif"  // Register GIF decoder
	_ "image/jpeg" // Register JPEG decoder
	_ "image/png"  // Register PNG decoder
	"log/slog"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"inkwell/internal/config"
	"inkwell/internal/models"
	"inkwell/internal/observability"

	"github.com/chai2010/webp"
	xdraw "golang.org/x/image/draw"
	_ "golang.org/x/image/webp" // Register WebP decoder
)

const (
	DefaultUploadDir            = "uploads"
	DefaultImageMaxUploadSizeMB = 10
	MediaMaxDimension           = 1600
	WebPQuality                 = 80
	MediaPathPrefix             = "/media/"
)

var mediaNamePattern = regexp.MustCompile(`^[a-f0-9]{64}\.webp$`)

type UploadMediaInput struct {
	UploaderID  string
	Filename    string
	ContentType string
	Content     []byte
}

// MediaAsset describes a stored image.
type MediaAsset struct {
	Name   string `json:"name"`
	URL    string `json:"url"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
	Size   int64  `json:"size"`
}

// MediaService stores uploaded images as WebP files named by the SHA-256 of
// the uploaded bytes, so re-uploading an image returns the existing file.
type MediaService struct {
	uploadDir          string
	baseURL            string
	maxUploadSizeBytes int64
}

func NewMediaService(cfg *config.Config) *MediaService {
	uploadDir := DefaultUploadDir
	maxUploadSizeMB := DefaultImageMaxUploadSizeMB
	baseURL := ""

	if cfg != nil {
		if cfg.UploadDir != "" {
			uploadDir = cfg.UploadDir
		}
		if cfg.ImageMaxUploadSizeMB > 0 {
			maxUploadSizeMB = cfg.ImageMaxUploadSizeMB
		}
		baseURL = strings.TrimRight(cfg.MediaBaseURL, "/")
		if baseURL == "" {
			baseURL = strings.TrimRight(cfg.SiteURL, "/")
		}
	}

	return &MediaService{
		uploadDir:          uploadDir,
		baseURL:            baseURL,
		maxUploadSizeBytes: int64(maxUploadSizeMB) * 1024 * 1024,
	}
}

// UploadDir is the directory served under /media.
func (s *MediaService) UploadDir() string {
	return s.uploadDir
}

// MaxUploadSizeBytes is the largest accepted upload.
func (s *MediaService) MaxUploadSizeBytes() int64 {
	return s.maxUploadSizeBytes
}

// Upload validates, downscales and re-encodes an image, then stores it.
func (s *MediaService) Upload(ctx context.Context, in UploadMediaInput) (*MediaAsset, error) {
	if len(in.Content) == 0 {
		return nil, models.NewValidationError("No file uploaded")
	}
	if int64(len(in.Content)) > s.maxUploadSizeBytes {
		return nil, models.NewValidationError(fmt.Sprintf("File too large (max %dMB)", s.maxUploadSizeBytes/(1024*1024)))
	}

	detectedType := http.DetectContentType(in.Content)
	if !isAllowedImageMIME(detectedType) {
		return nil, models.NewValidationError("Invalid image type")
	}

	decoded, format, err := image.Decode(bytes.NewReader(in.Content))
	if err != nil {
		return nil, models.NewValidationError("Invalid image file")
	}
	if !isSupportedDecodedFormat(format) {
		return nil, models.NewValidationError("Unsupported image format")
	}
	if provided := normalizeContentType(in.ContentType); strings.HasPrefix(provided, "image/") && !isMatchingContentType(provided, decodedFormatToMime(format)) {
		return nil, models.NewValidationError("Image content type mismatch")
	}

	sum := sha256.Sum256(in.Content)
	name := hex.EncodeToString(sum[:]) + ".webp"
	path := filepath.Join(s.uploadDir, name)
	b := decoded.Bounds()
	w, h := fitSize(b.Dx(), b.Dy(), MediaMaxDimension, MediaMaxDimension)

	if info, statErr := os.Stat(path); statErr == nil {
		return &MediaAsset{Name: name, URL: s.URL(name), Width: w, Height: h, Size: info.Size()}, nil
	}

	encoded, err := encodeWebP(resizeToFit(decoded, MediaMaxDimension, MediaMaxDimension), WebPQuality)
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	if err := writeBytesToFile(path, encoded); err != nil {
		return nil, models.NewInternalError(err)
	}

	observability.GlobalLogger.InfoContext(ctx, "media stored",
		slog.String("name", name),
		slog.String("uploader_id", in.UploaderID),
		slog.String("source_format", format),
		slog.Int("bytes", len(encoded)),
	)
	return &MediaAsset{Name: name, URL: s.URL(name), Width: w, Height: h, Size: int64(len(encoded))}, nil
}

// URL is the public address of a stored file.
func (s *MediaService) URL(name string) string {
	return s.baseURL + MediaPathPrefix + name
}

// Open returns the path of a stored file after checking the name.
func (s *MediaService) Open(name string) (string, error) {
	if !mediaNamePattern.MatchString(name) {
		return "", models.NewNotFoundError("Media", name)
	}
	path := filepath.Join(s.uploadDir, name)
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", models.NewNotFoundError("Media", name)
		}
		return "", models.NewInternalError(err)
	}
	return path, nil
}

// fitSize scales w x h down to fit the box, keeping the aspect ratio.
func fitSize(w, h, maxWidth, maxHeight int) (int, int) {
	if w <= 0 || h <= 0 || (w <= maxWidth && h <= maxHeight) {
		return w, h
	}
	scale := min(float64(maxWidth)/float64(w), float64(maxHeight)/float64(h))
	return max(int(float64(w)*scale), 1), max(int(float64(h)*scale), 1)
}

func resizeToFit(src image.Image, maxWidth, maxHeight int) image.Image {
	bounds := src.Bounds()
	newW, newH := fitSize(bounds.Dx(), bounds.Dy(), maxWidth, maxHeight)
	if newW == bounds.Dx() && newH == bounds.Dy() {
		return src
	}
	dst := image.NewRGBA(image.Rect(0, 0, newW, newH))
	xdraw.CatmullRom.Scale(dst, dst.Bounds(), src, bounds, xdraw.Over, nil)
	return dst
}

func encodeWebP(img image.Image, quality int) ([]byte, error) {
	buf := bytes.NewBuffer(nil)
	if err := webp.Encode(buf, img, &webp.Options{Quality: float32(quality)}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func isAllowedImageMIME(contentType string) bool {
	switch normalizeContentType(contentType) {
	case "image/jpeg", "image/jpg", "image/png", "image/gif", "image/webp":
		return true
	default:
		return false
	}
}

func normalizeContentType(contentType string) string {
	if contentType == "" {
		return ""
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return strings.ToLower(strings.TrimSpace(contentType))
	}
	return strings.ToLower(strings.TrimSpace(mediaType))
}

func isMatchingContentType(provided, detected string) bool {
	p := normalizeContentType(provided)
	d := normalizeContentType(detected)
	if p == d {
		return true
	}
	return (p == "image/jpg" && d == "image/jpeg") || (p == "image/jpeg" && d == "image/jpg")
}

func isSupportedDecodedFormat(format string) bool {
	return decodedFormatToMime(format) != ""
}

func decodedFormatToMime(format string) string {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "jpeg", "jpg":
		return "image/jpeg"
	case "png":
		return "image/png"
	case "gif":
		return "image/gif"
	case "webp":
		return "image/webp"
	default:
		return ""
	}
}

func writeBytesToFile(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}
