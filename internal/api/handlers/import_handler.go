package handlers

import (
	"bytes"
	"io"
	"strings"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/sentience/backend/internal/dashboard"
	"github.com/sentience/backend/pkg/logger"
)

const defaultImportSource = "upload"

type ImportHandler struct {
	service  *dashboard.Service
	maxBytes int
}

// NewImportHandler accepts CSV uploads of at most maxBytes. Zero disables
// the size check.
func NewImportHandler(service *dashboard.Service, maxBytes int) *ImportHandler {
	return &ImportHandler{
		service:  service,
		maxBytes: maxBytes,
	}
}

// ImportReviews replaces the working set with the uploaded CSV. The file is
// read from the "file" form field for multipart requests and from the raw
// body otherwise.
func (h *ImportHandler) ImportReviews(c *fiber.Ctx) error {
	source, body, err := h.upload(c)
	if err != nil {
		logger.Warn("Failed to read upload", zap.Error(err))
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid upload",
		})
	}
	defer body.Close()

	if h.maxBytes > 0 {
		body = limitReader(body, h.maxBytes)
	}

	imp, err := h.service.Import(c.UserContext(), source, body)
	if err != nil {
		return respondError(c, err, "Failed to import reviews")
	}

	return c.JSON(fiber.Map{
		"message": "Reviews imported successfully",
		"import":  imp,
	})
}

func (h *ImportHandler) upload(c *fiber.Ctx) (string, io.ReadCloser, error) {
	if strings.HasPrefix(c.Get(fiber.HeaderContentType), fiber.MIMEMultipartForm) {
		fh, err := c.FormFile("file")
		if err != nil {
			return "", nil, err
		}
		f, err := fh.Open()
		if err != nil {
			return "", nil, err
		}
		return sourceName(c, fh.Filename), f, nil
	}
	return sourceName(c, ""), io.NopCloser(bytes.NewReader(c.Body())), nil
}

func sourceName(c *fiber.Ctx, filename string) string {
	if s := strings.TrimSpace(c.Query("source")); s != "" {
		return s
	}
	if filename != "" {
		return filename
	}
	return defaultImportSource
}

// limitedReader fails with errUploadTooLarge once more than its limit has
// been read.
type limitedReader struct {
	io.ReadCloser
	remaining int
}

func limitReader(rc io.ReadCloser, n int) io.ReadCloser {
	return &limitedReader{ReadCloser: rc, remaining: n}
}

func (l *limitedReader) Read(p []byte) (int, error) {
	if l.remaining <= 0 {
		// Read one more byte to tell an exact fit from an overflow.
		var extra [1]byte
		n, err := l.ReadCloser.Read(extra[:])
		if n > 0 {
			return 0, errUploadTooLarge
		}
		return 0, err
	}
	if len(p) > l.remaining {
		p = p[:l.remaining]
	}
	n, err := l.ReadCloser.Read(p)
	l.remaining -= n
	return n, err
}
