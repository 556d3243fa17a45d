package upload

import (
	"context"
	"errors"
	"io"
	"net/http"
	"path/filepath"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"

	"github.com/scholarsite/scholarsite/pkg/backend"
	"github.com/scholarsite/scholarsite/pkg/metrics"
)

const (
	msgNoFile          = "업로드할 파일을 선택해주세요."
	msgBadCategory     = "올바르지 않은 카테고리입니다."
	msgBadType         = "PNG, JPEG, GIF, WEBP 이미지만 업로드할 수 있습니다."
	msgTooLarge        = "파일 크기가 너무 큽니다."
	msgBadImage        = "이미지를 처리할 수 없습니다."
	msgBackendDown     = "이미지 서버에 연결할 수 없습니다."
	msgBackendDisabled = "이미지 서버가 설정되지 않았습니다."
)

// DefaultMaxBytes is the largest accepted file.
const DefaultMaxBytes = 10 << 20

// multipartSlack covers form boundaries and the category field.
const multipartSlack = 64 << 10

// Uploader forwards a file to the backend.
type Uploader interface {
	Upload(ctx context.Context, category, filename, contentType string, data []byte, authorization string) (*backend.UploadResult, error)
}

// Options tunes validation and resizing.
type Options struct {
	MaxBytes    int64
	MaxWidth    int // 0 disables resizing
	JPEGQuality int
}

// Handler serves POST /api/upload.
type Handler struct {
	up      Uploader
	opts    Options
	metrics *metrics.Registry
}

// NewHandler creates the upload handler. reg may be nil.
func NewHandler(up Uploader, opts Options, reg *metrics.Registry) *Handler {
	if opts.MaxBytes <= 0 {
		opts.MaxBytes = DefaultMaxBytes
	}
	if opts.JPEGQuality <= 0 {
		opts.JPEGQuality = 85
	}
	return &Handler{up: up, opts: opts, metrics: reg}
}

// Register mounts the handler on g; mw should include the admin guard.
func (h *Handler) Register(g *echo.Group, mw ...echo.MiddlewareFunc) {
	g.POST("", h.Upload, mw...)
}

type errorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

// Upload validates the multipart form, shrinks oversized images and relays
// the backend's answer verbatim.
func (h *Handler) Upload(c echo.Context) error {
	ctx := c.Request().Context()
	req := c.Request()
	req.Body = http.MaxBytesReader(c.Response(), req.Body, h.opts.MaxBytes+multipartSlack)

	fh, err := c.FormFile("file")
	if err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			return h.reject(c, "", http.StatusRequestEntityTooLarge, msgTooLarge)
		}
		return h.reject(c, "", http.StatusBadRequest, msgNoFile)
	}
	cat, err := ParseCategory(c.FormValue("category"))
	if err != nil {
		return h.reject(c, "", http.StatusBadRequest, msgBadCategory)
	}
	if fh.Size > h.opts.MaxBytes {
		return h.reject(c, cat.String(), http.StatusRequestEntityTooLarge, msgTooLarge)
	}

	f, err := fh.Open()
	if err != nil {
		return h.reject(c, cat.String(), http.StatusBadRequest, msgNoFile)
	}
	data, err := io.ReadAll(io.LimitReader(f, h.opts.MaxBytes+1))
	f.Close()
	if err != nil {
		return h.reject(c, cat.String(), http.StatusBadRequest, msgNoFile)
	}
	if int64(len(data)) > h.opts.MaxBytes {
		return h.reject(c, cat.String(), http.StatusRequestEntityTooLarge, msgTooLarge)
	}

	contentType, ok := sniff(data)
	if !ok {
		return h.reject(c, cat.String(), http.StatusBadRequest, msgBadType)
	}

	logger := log.Ctx(ctx).With().Str("category", cat.String()).Str("filename", fh.Filename).Logger()

	data, resized, err := shrink(data, contentType, h.opts.MaxWidth, h.opts.JPEGQuality)
	if err != nil {
		logger.Warn().Err(err).Msg("upload image unreadable")
		return h.reject(c, cat.String(), http.StatusBadRequest, msgBadImage)
	}

	res, err := h.up.Upload(ctx, cat.String(), filepath.Base(fh.Filename), contentType, data, req.Header.Get(echo.HeaderAuthorization))
	if err != nil {
		if errors.Is(err, backend.ErrNotConfigured) {
			return h.reject(c, cat.String(), http.StatusServiceUnavailable, msgBackendDisabled)
		}
		logger.Error().Err(err).Msg("upload forward failed")
		return h.reject(c, cat.String(), http.StatusBadGateway, msgBackendDown)
	}

	logger.Info().
		Int("backend_status", res.StatusCode).
		Int("bytes", len(data)).
		Bool("resized", resized).
		Msg("upload forwarded")
	h.count(ctx, cat.String(), strconv.Itoa(res.StatusCode))

	if len(res.Body) == 0 {
		return c.NoContent(res.StatusCode)
	}
	ct := res.ContentType
	if ct == "" {
		ct = echo.MIMEApplicationJSON
	}
	return c.Blob(res.StatusCode, ct, res.Body)
}

func (h *Handler) reject(c echo.Context, category string, status int, msg string) error {
	h.count(c.Request().Context(), category, strconv.Itoa(status))
	return c.JSON(status, errorResponse{Error: msg})
}

func (h *Handler) count(ctx context.Context, category, status string) {
	if category == "" {
		category = "unknown"
	}
	h.metrics.Inc(ctx, metrics.Uploads, map[string]string{"category": category, "status": status}, 1)
}
