package content

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/scholarsite/scholarsite/pkg/jobs"
)

const (
	msgMissingYearMonth = "연도와 월을 입력해주세요."
	msgInvalidYearMonth = "올바른 연도와 월을 입력해주세요."
	msgJobNotFound      = "작업을 찾을 수 없습니다."
	msgSubmitFailed     = "작업을 시작할 수 없습니다."
	msgUpdateDone       = "전체 데이터 업데이트가 완료되었습니다."
	msgStillRunning     = "작업이 계속 진행 중입니다."
)

// JobRunner is the subset of *jobs.Runner the handlers use.
type JobRunner interface {
	Submit(spec jobs.Spec) (string, error)
	Get(id string) (jobs.Snapshot, bool)
	List() []jobs.Snapshot
	Wait(ctx context.Context, id string) (jobs.Snapshot, error)
	Cancel(id string) error
}

// Handlers serves the Unfold Story generation, job and status routes.
type Handlers struct {
	runner   JobRunner
	pipeline Pipeline
	store    *StatusStore
}

// NewHandlers wires the runner, pipeline definition and status store.
func NewHandlers(runner JobRunner, pipeline Pipeline, store *StatusStore) *Handlers {
	return &Handlers{runner: runner, pipeline: pipeline, store: store}
}

// RegisterStory mounts the /api/unfold-story routes; mw guards the mutating ones.
func (h *Handlers) RegisterStory(g *echo.Group, mw ...echo.MiddlewareFunc) {
	g.POST("/generate", h.Generate, mw...)
	g.POST("/update", h.Update, mw...)
	g.GET("/status", h.Status)
}

// RegisterJobs mounts the /api/jobs routes.
func (h *Handlers) RegisterJobs(g *echo.Group, mw ...echo.MiddlewareFunc) {
	g.GET("", h.ListJobs, mw...)
	g.GET("/:id", h.GetJob, mw...)
	g.DELETE("/:id", h.CancelJob, mw...)
}

// flexInt accepts a JSON number or numeric string.
type flexInt struct {
	v   int
	set bool
}

func (f *flexInt) UnmarshalJSON(b []byte) error {
	b = bytes.Trim(b, `"`)
	if len(b) == 0 || string(b) == "null" {
		return nil
	}
	n, err := strconv.Atoi(string(b))
	if err != nil {
		return fmt.Errorf("not an integer: %s", b)
	}
	f.v, f.set = n, true
	return nil
}

type generateRequest struct {
	Year  flexInt `json:"year"`
	Month flexInt `json:"month"`
}

type response struct {
	Success bool              `json:"success"`
	Message string            `json:"message,omitempty"`
	Error   string            `json:"error,omitempty"`
	JobID   string            `json:"jobId,omitempty"`
	Status  jobs.State        `json:"status,omitempty"`
	Details map[string]string `json:"details,omitempty"`
}

// Generate handles POST /api/unfold-story/generate {year, month}.
func (h *Handlers) Generate(c echo.Context) error {
	var req generateRequest
	if err := json.NewDecoder(c.Request().Body).Decode(&req); err != nil {
		return c.JSON(http.StatusBadRequest, response{Error: msgMissingYearMonth})
	}
	if !req.Year.set || !req.Month.set {
		return c.JSON(http.StatusBadRequest, response{Error: msgMissingYearMonth})
	}
	ym := YearMonth{Year: req.Year.v, Month: req.Month.v}
	if !ym.Valid() {
		return c.JSON(http.StatusBadRequest, response{Error: msgInvalidYearMonth})
	}

	done := fmt.Sprintf("%d년 %d월 스토리 생성이 완료되었습니다.", ym.Year, ym.Month)
	return h.run(c, h.pipeline.GenerateMonth(ym), done)
}

// Update handles POST /api/unfold-story/update.
func (h *Handlers) Update(c echo.Context) error {
	return h.run(c, h.pipeline.UpdateAll(), msgUpdateDone)
}

// run submits spec and, unless the caller asked for async, waits for it.
// A caller that disconnects while waiting leaves the job running.
func (h *Handlers) run(c echo.Context, spec jobs.Spec, doneMsg string) error {
	ctx := c.Request().Context()
	logger := log.Ctx(ctx).With().Str("kind", spec.Kind).Str("key", spec.Key).Logger()

	id, err := h.runner.Submit(spec)
	if err != nil {
		logger.Error().Err(err).Msg("job submit failed")
		return c.JSON(http.StatusServiceUnavailable, response{Error: msgSubmitFailed})
	}
	logger = logger.With().Str("job_id", id).Logger()

	if async, _ := strconv.ParseBool(c.QueryParam("async")); async {
		return c.JSON(http.StatusAccepted, response{Success: true, JobID: id, Status: jobs.StateQueued})
	}

	extendWriteDeadline(c, spec, logger)
	snap, err := h.runner.Wait(ctx, id)
	if err != nil {
		logger.Warn().Err(err).Msg("client left before job finished")
		return c.JSON(http.StatusAccepted, response{Success: true, Message: msgStillRunning, JobID: id, Status: snap.State})
	}

	details := map[string]string{
		StageTransform: snap.Stdout(StageTransform),
		StageGenerate:  snap.Stdout(StageGenerate),
	}
	if snap.State != jobs.StateSucceeded {
		logger.Error().Str("state", string(snap.State)).Str("error", snap.Error).Msg("content generation failed")
		return c.JSON(http.StatusInternalServerError, response{Error: snap.Error, JobID: id, Status: snap.State, Details: details})
	}
	return c.JSON(http.StatusOK, response{Success: true, Message: doneMsg, JobID: id, Status: snap.State, Details: details})
}

// waitMargin covers queueing and process start-up on top of the stage timeouts.
const waitMargin = time.Minute

// extendWriteDeadline lets a synchronous request outlive the server's
// WriteTimeout for as long as the job's stages may run.
func extendWriteDeadline(c echo.Context, spec jobs.Spec, logger zerolog.Logger) {
	total := waitMargin
	for _, st := range spec.Stages {
		total += st.Timeout
	}
	rc := http.NewResponseController(c.Response().Writer)
	if err := rc.SetWriteDeadline(time.Now().Add(total)); err != nil && !errors.Is(err, http.ErrNotSupported) {
		logger.Warn().Err(err).Msg("could not extend write deadline")
	}
}

// Status handles GET /api/unfold-story/status?year=&month=.
func (h *Handlers) Status(c echo.Context) error {
	yq, mq := strings.TrimSpace(c.QueryParam("year")), strings.TrimSpace(c.QueryParam("month"))
	if yq == "" || mq == "" {
		return c.JSON(http.StatusBadRequest, response{Error: msgMissingYearMonth})
	}
	y, yerr := strconv.Atoi(yq)
	m, merr := strconv.Atoi(mq)
	ym := YearMonth{Year: y, Month: m}
	if yerr != nil || merr != nil || !ym.Valid() {
		return c.JSON(http.StatusBadRequest, response{Error: msgInvalidYearMonth})
	}

	data, found, err := h.store.Read(ym)
	if err != nil {
		log.Ctx(c.Request().Context()).Error().Err(err).Str("key", ym.String()).Msg("status read failed")
		return c.JSON(http.StatusInternalServerError, response{Error: err.Error()})
	}
	if !found {
		return c.JSON(http.StatusOK, map[string]string{"status": "idle"})
	}
	return c.JSONBlob(http.StatusOK, data)
}

// GetJob handles GET /api/jobs/:id.
func (h *Handlers) GetJob(c echo.Context) error {
	snap, ok := h.runner.Get(c.Param("id"))
	if !ok {
		return c.JSON(http.StatusNotFound, response{Error: msgJobNotFound})
	}
	return c.JSON(http.StatusOK, snap)
}

// ListJobs handles GET /api/jobs.
func (h *Handlers) ListJobs(c echo.Context) error {
	return c.JSON(http.StatusOK, h.runner.List())
}

// CancelJob handles DELETE /api/jobs/:id.
func (h *Handlers) CancelJob(c echo.Context) error {
	id := c.Param("id")
	if err := h.runner.Cancel(id); err != nil {
		if errors.Is(err, jobs.ErrNotFound) {
			return c.JSON(http.StatusNotFound, response{Error: msgJobNotFound})
		}
		return c.JSON(http.StatusInternalServerError, response{Error: err.Error()})
	}
	log.Ctx(c.Request().Context()).Info().Str("job_id", id).Msg("job cancel requested")
	return c.JSON(http.StatusAccepted, response{Success: true, JobID: id})
}
