package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/sentience/backend/internal/dashboard"
	"github.com/sentience/backend/internal/ingestion"
	"github.com/sentience/backend/internal/review"
	"github.com/sentience/backend/pkg/logger"
)

var errUploadTooLarge = errors.New("upload exceeds size limit")

// statusFor maps domain errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, review.ErrMissingColumn):
		return fiber.StatusUnprocessableEntity
	case errors.Is(err, errUploadTooLarge):
		return fiber.StatusRequestEntityTooLarge
	case errors.Is(err, ingestion.ErrEmptyInput),
		errors.Is(err, errInvalidParam),
		errors.Is(err, review.ErrInvalidGranularity),
		errors.Is(err, review.ErrInvalidLabel),
		errors.Is(err, review.ErrInvalidSortMode),
		errors.Is(err, dashboard.ErrInvalidNgramOrder),
		errors.Is(err, dashboard.ErrInvalidRange):
		return fiber.StatusBadRequest
	case errors.Is(err, dashboard.ErrImportInProgress):
		return fiber.StatusConflict
	case errors.Is(err, dashboard.ErrNoImporter):
		return fiber.StatusServiceUnavailable
	case errors.Is(err, ingestion.ErrClassifierResponse):
		return fiber.StatusBadGateway
	default:
		return fiber.StatusInternalServerError
	}
}

func respondError(c *fiber.Ctx, err error, msg string) error {
	status := statusFor(err)
	if status == fiber.StatusInternalServerError || status == fiber.StatusBadGateway {
		logger.Error(msg, zap.String("path", c.Path()), zap.Error(err))
		return c.Status(status).JSON(fiber.Map{
			"error": msg,
		})
	}
	return c.Status(status).JSON(fiber.Map{
		"error": err.Error(),
	})
}
