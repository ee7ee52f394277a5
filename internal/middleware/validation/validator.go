package validation

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

type Config struct {
	MaxParamLength      int
	MaxLocations        int
	AllowedContentTypes []string
	Logger              *zap.Logger
}

func Middleware(cfg Config) fiber.Handler {
	if cfg.MaxParamLength == 0 {
		cfg.MaxParamLength = 500
	}
	if cfg.MaxLocations == 0 {
		cfg.MaxLocations = 100
	}
	if len(cfg.AllowedContentTypes) == 0 {
		cfg.AllowedContentTypes = []string{"text/csv", "multipart/form-data", "application/octet-stream", "text/plain"}
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	return func(c *fiber.Ctx) error {
		if c.Method() == fiber.MethodPost || c.Method() == fiber.MethodPut {
			contentType := c.Get(fiber.HeaderContentType)
			if contentType != "" && !allowedType(contentType, cfg.AllowedContentTypes) {
				return c.Status(fiber.StatusUnsupportedMediaType).JSON(fiber.Map{
					"error": "Unsupported content type",
				})
			}
		}

		if err := checkQuery(c, cfg); err != nil {
			cfg.Logger.Warn("Rejected query parameters",
				zap.String("ip", c.IP()),
				zap.String("path", c.Path()),
				zap.Error(err),
			)
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": err.Error(),
			})
		}

		return c.Next()
	}
}

func allowedType(contentType string, allowed []string) bool {
	mediaType := strings.ToLower(strings.TrimSpace(strings.SplitN(contentType, ";", 2)[0]))
	for _, t := range allowed {
		if mediaType == t {
			return true
		}
	}
	return false
}

func checkQuery(c *fiber.Ctx, cfg Config) error {
	args := c.Context().QueryArgs()

	if n := len(args.PeekMulti("location")); n > cfg.MaxLocations {
		return fmt.Errorf("too many location parameters: %d > %d", n, cfg.MaxLocations)
	}

	var err error
	args.VisitAll(func(key, value []byte) {
		if err != nil {
			return
		}
		switch {
		case len(value) > cfg.MaxParamLength:
			err = fmt.Errorf("parameter %s exceeds maximum length", key)
		case !utf8.Valid(value):
			err = fmt.Errorf("parameter %s is not valid UTF-8", key)
		case hasControl(value):
			err = fmt.Errorf("parameter %s contains control characters", key)
		}
	})
	return err
}

func hasControl(b []byte) bool {
	for _, r := range string(b) {
		if unicode.IsControl(r) {
			return true
		}
	}
	return false
}
