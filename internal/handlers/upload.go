package handlers

import (
	"errors"
	"io"
	"log"

	"github.com/gofiber/fiber/v2"

	"github.com/codebuildervaibhav/textor-gateway/internal/audio"
	"github.com/codebuildervaibhav/textor-gateway/internal/lifecycle"
	"github.com/codebuildervaibhav/textor-gateway/internal/types"
)

// UploadHandler accepts an audio file from the browser, normalizes it,
// and starts a submission.
type UploadHandler struct {
	normalizer *audio.Normalizer
	manager    *lifecycle.Manager
}

// NewUploadHandler creates a new upload handler.
func NewUploadHandler(normalizer *audio.Normalizer, manager *lifecycle.Manager) *UploadHandler {
	return &UploadHandler{
		normalizer: normalizer,
		manager:    manager,
	}
}

// Handle processes the upload request. Validation runs before any
// decoding or network work; the submission itself continues
// asynchronously and is observable over the events socket.
func (h *UploadHandler) Handle(c *fiber.Ctx) error {
	file, err := c.FormFile("file")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "No file uploaded",
			"code":  "ERR_NO_FILE",
		})
	}

	languageCode := c.FormValue("language_code")
	mimeType := file.Header.Get("Content-Type")

	if err := h.normalizer.ValidateUpload(mimeType, file.Size); err != nil {
		return respondError(c, err)
	}

	src, err := file.Open()
	if err != nil {
		log.Printf("Failed to open uploaded file: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to read uploaded file",
			"code":  "ERR_READ_FAILED",
		})
	}
	defer src.Close()

	data, err := io.ReadAll(src)
	if err != nil {
		log.Printf("Failed to read uploaded file: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to read uploaded file",
			"code":  "ERR_READ_FAILED",
		})
	}

	clip, err := h.normalizer.Normalize(data, mimeType)
	if err != nil {
		return respondError(c, err)
	}

	job := h.manager.Begin(clip.Data, clip.ContentType(), "recording.wav", languageCode)

	return c.JSON(fiber.Map{
		"job_id":           job.ID,
		"state":            h.manager.State(),
		"duration_seconds": clip.Duration().Seconds(),
	})
}

// respondError maps the error taxonomy onto HTTP responses.
func respondError(c *fiber.Ctx, err error) error {
	var (
		validationErr *types.ValidationError
		decodeErr     *types.DecodeError
		permissionErr *types.PermissionError
		rateLimitErr  *types.RateLimitError
		serverErr     *types.ServerError
		protocolErr   *types.ProtocolError
	)

	switch {
	case errors.As(err, &validationErr):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": validationErr.Message,
			"code":  "ERR_VALIDATION",
		})
	case errors.As(err, &decodeErr):
		return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{
			"error": decodeErr.Error(),
			"code":  "ERR_DECODE",
		})
	case errors.As(err, &permissionErr):
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
			"error": permissionErr.Message,
			"code":  "ERR_PERMISSION",
		})
	case errors.As(err, &rateLimitErr):
		return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
			"error": "Rate limit reached, wait a moment and try again",
			"code":  "ERR_RATE_LIMITED",
		})
	case errors.As(err, &serverErr):
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{
			"error": serverErr.Error(),
			"code":  "ERR_PROVIDER",
		})
	case errors.As(err, &protocolErr):
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{
			"error": protocolErr.Message,
			"code":  "ERR_PROTOCOL",
		})
	default:
		log.Printf("Unclassified handler error: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Internal error",
			"code":  "ERR_INTERNAL",
		})
	}
}
