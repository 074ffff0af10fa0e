package server

import (
	"io"

	"inkwell/internal/models"
	"inkwell/internal/observability"
	"inkwell/internal/service"

	"github.com/gofiber/fiber/v2"
)

// UploadMedia handles POST /admin/media (multipart field "image")
// @Summary Upload an image
// @Description Stores the image as WebP, downscaled to fit 1600px
// @Tags admin-media
// @Security BearerAuth
// @Accept multipart/form-data
// @Produce json
// @Param image formData file true "Image (JPEG, PNG, GIF or WebP)"
// @Success 201 {object} service.MediaAsset
// @Failure 400 {object} models.ErrorResponse
// @Router /admin/media [post]
func (s *Server) UploadMedia(c *fiber.Ctx) error {
	actor, err := currentActor(c)
	if err != nil {
		return fail(c, err)
	}
	file, err := c.FormFile("image")
	if err != nil {
		return fail(c, models.NewValidationError("No file uploaded"))
	}
	if file.Size > s.mediaService.MaxUploadSizeBytes() {
		return fail(c, models.NewValidationError("File too large"))
	}

	src, err := file.Open()
	if err != nil {
		return fail(c, models.NewValidationError("Unable to read uploaded file"))
	}
	defer func() { _ = src.Close() }()

	content, err := io.ReadAll(src)
	if err != nil {
		return fail(c, models.NewValidationError("Unable to read uploaded file"))
	}

	asset, err := s.mediaService.Upload(c.UserContext(), service.UploadMediaInput{
		UploaderID:  actor.UserID.String(),
		Filename:    file.Filename,
		ContentType: file.Header.Get(fiber.HeaderContentType),
		Content:     content,
	})
	if err != nil {
		return fail(c, err)
	}
	observability.MediaUploadBytes.Observe(float64(asset.Size))
	return c.Status(fiber.StatusCreated).JSON(asset)
}
