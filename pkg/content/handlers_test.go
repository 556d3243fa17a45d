package content

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scholarsite/scholarsite/pkg/jobs"
)

// scriptExec answers each stage with canned output, recording what ran.
type scriptExec struct {
	mu     sync.Mutex
	stages []jobs.Stage
	fail   string // stage name that should fail
	block  chan struct{}
}

func (s *scriptExec) Run(ctx context.Context, st jobs.Stage) (string, string, error) {
	s.mu.Lock()
	s.stages = append(s.stages, st)
	s.mu.Unlock()

	if s.block != nil {
		select {
		case <-s.block:
		case <-ctx.Done():
			return "", "", ctx.Err()
		}
	}
	if st.Name == s.fail {
		return "", "Traceback: boom", errors.New(st.Name + " failed: exit status 1: boom")
	}
	return st.Name + " output\n", "", nil
}

func (s *scriptExec) Stages() []jobs.Stage {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]jobs.Stage(nil), s.stages...)
}

type fixture struct {
	e      *echo.Echo
	runner *jobs.Runner
	exec   *scriptExec
	store  *StatusStore
}

func newFixture(t *testing.T, exec *scriptExec) *fixture {
	t.Helper()
	store := NewStatusStore(t.TempDir())
	runner := jobs.NewRunner(exec, jobs.WithObserver(store.Observe))
	t.Cleanup(runner.Close)

	h := NewHandlers(runner, Pipeline{ScriptDir: "/opt/scripts"}, store)
	e := echo.New()
	h.RegisterStory(e.Group("/api/unfold-story"))
	h.RegisterJobs(e.Group("/api/jobs"))
	return &fixture{e: e, runner: runner, exec: exec, store: store}
}

func (f *fixture) do(method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	f.e.ServeHTTP(rec, req)
	return rec
}

type genResponse struct {
	Success bool              `json:"success"`
	Message string            `json:"message"`
	Error   string            `json:"error"`
	JobID   string            `json:"jobId"`
	Status  string            `json:"status"`
	Details map[string]string `json:"details"`
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) genResponse {
	t.Helper()
	var r genResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &r), rec.Body.String())
	return r
}

func TestGenerate_BothStagesSucceed(t *testing.T) {
	f := newFixture(t, &scriptExec{})

	rec := f.do(http.MethodPost, "/api/unfold-story/generate", `{"year":2023,"month":5}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	resp := decode(t, rec)
	assert.True(t, resp.Success)
	assert.Equal(t, "stage1 output\n", resp.Details["stage1"])
	assert.Equal(t, "stage2 output\n", resp.Details["stage2"])
	assert.NotEmpty(t, resp.JobID)

	stages := f.exec.Stages()
	require.Len(t, stages, 2)
	assert.Equal(t, TransformTimeout, stages[0].Timeout)
	assert.Equal(t, GenerateMonthTimeout, stages[1].Timeout)
	assert.Equal(t, []string{"/opt/scripts/transform_data.py", "--year", "2023", "--month", "5"}, stages[0].Args)
	assert.Equal(t, "python3", stages[1].Command)
}

// slowExec finishes each stage after delay.
type slowExec struct{ delay time.Duration }

func (s slowExec) Run(ctx context.Context, st jobs.Stage) (string, string, error) {
	select {
	case <-time.After(s.delay):
		return st.Name + " done", "", nil
	case <-ctx.Done():
		return "", "", ctx.Err()
	}
}

func TestGenerate_OutlivesServerWriteTimeout(t *testing.T) {
	store := NewStatusStore(t.TempDir())
	runner := jobs.NewRunner(slowExec{delay: 300 * time.Millisecond})
	t.Cleanup(runner.Close)

	e := echo.New()
	NewHandlers(runner, Pipeline{}, store).RegisterStory(e.Group("/api/unfold-story"))

	srv := httptest.NewUnstartedServer(e)
	srv.Config.WriteTimeout = 200 * time.Millisecond
	srv.Start()
	t.Cleanup(srv.Close)

	resp, err := srv.Client().Post(srv.URL+"/api/unfold-story/generate", echo.MIMEApplicationJSON,
		strings.NewReader(`{"year":2023,"month":5}`))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var r genResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&r))
	assert.True(t, r.Success)
	assert.Equal(t, "stage1 done", r.Details["stage1"])
	assert.Equal(t, "stage2 done", r.Details["stage2"])
}

func TestGenerate_AcceptsStringNumbers(t *testing.T) {
	f := newFixture(t, &scriptExec{})
	rec := f.do(http.MethodPost, "/api/unfold-story/generate", `{"year":"2023","month":"12"}`)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestGenerate_Validation(t *testing.T) {
	f := newFixture(t, &scriptExec{})

	for body, want := range map[string]string{
		``:                         msgMissingYearMonth,
		`{}`:                       msgMissingYearMonth,
		`{"year":2023}`:            msgMissingYearMonth,
		`{"year":2023,"month":13}`: msgInvalidYearMonth,
		`{"year":"abc","month":1}`: msgMissingYearMonth,
		`{"year":2023,"month":0}`:  msgInvalidYearMonth,
	} {
		rec := f.do(http.MethodPost, "/api/unfold-story/generate", body)
		assert.Equal(t, http.StatusBadRequest, rec.Code, body)
		assert.Equal(t, want, decode(t, rec).Error, body)
	}
	assert.Empty(t, f.exec.Stages())
}

func TestGenerate_StageFailure(t *testing.T) {
	f := newFixture(t, &scriptExec{fail: StageGenerate})

	rec := f.do(http.MethodPost, "/api/unfold-story/generate", `{"year":2023,"month":5}`)
	require.Equal(t, http.StatusInternalServerError, rec.Code)

	resp := decode(t, rec)
	assert.False(t, resp.Success)
	assert.Contains(t, resp.Error, "boom")
	assert.Equal(t, "stage1 output\n", resp.Details["stage1"])
	assert.Equal(t, "failed", resp.Status)
}

func TestGenerate_PersistsStatus(t *testing.T) {
	f := newFixture(t, &scriptExec{})

	rec := f.do(http.MethodGet, "/api/unfold-story/status?year=2023&month=5", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"idle"}`, rec.Body.String())

	require.Equal(t, http.StatusOK, f.do(http.MethodPost, "/api/unfold-story/generate", `{"year":2023,"month":5}`).Code)

	rec = f.do(http.MethodGet, "/api/unfold-story/status?year=2023&month=5", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var st Status
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &st))
	assert.Equal(t, "completed", st.Status)
}

func TestStatus_Validation(t *testing.T) {
	f := newFixture(t, &scriptExec{})
	for _, q := range []string{"", "?year=2023", "?year=x&month=1", "?year=2023&month=99"} {
		rec := f.do(http.MethodGet, "/api/unfold-story/status"+q, "")
		assert.Equal(t, http.StatusBadRequest, rec.Code, q)
	}
}

func TestUpdate_UsesLongTimeout(t *testing.T) {
	f := newFixture(t, &scriptExec{})

	rec := f.do(http.MethodPost, "/api/unfold-story/update", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, msgUpdateDone, decode(t, rec).Message)

	stages := f.exec.Stages()
	require.Len(t, stages, 2)
	assert.Equal(t, TransformTimeout, stages[0].Timeout)
	assert.Equal(t, GenerateAllTimeout, stages[1].Timeout)
	assert.Contains(t, stages[1].Args, "--all")
}

func TestAsyncSubmitPollAndCancel(t *testing.T) {
	exec := &scriptExec{block: make(chan struct{})}
	f := newFixture(t, exec)

	rec := f.do(http.MethodPost, "/api/unfold-story/generate?async=true", `{"year":2024,"month":1}`)
	require.Equal(t, http.StatusAccepted, rec.Code)
	id := decode(t, rec).JobID
	require.NotEmpty(t, id)

	rec = f.do(http.MethodGet, "/api/jobs/"+id, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var snap jobs.Snapshot
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &snap))
	assert.Equal(t, id, snap.ID)
	assert.False(t, snap.State.Terminal())

	rec = f.do(http.MethodDelete, "/api/jobs/"+id, "")
	require.Equal(t, http.StatusAccepted, rec.Code)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	final, err := f.runner.Wait(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, jobs.StateCanceled, final.State)

	rec = f.do(http.MethodGet, "/api/jobs", "")
	require.Equal(t, http.StatusOK, rec.Code)

	assert.Equal(t, http.StatusNotFound, f.do(http.MethodGet, "/api/jobs/nope", "").Code)
	assert.Equal(t, http.StatusNotFound, f.do(http.MethodDelete, "/api/jobs/nope", "").Code)
}

func TestParseYearMonth(t *testing.T) {
	ym, ok := ParseYearMonth("2023-05")
	require.True(t, ok)
	assert.Equal(t, YearMonth{2023, 5}, ym)
	assert.Equal(t, "2023-05", ym.String())

	_, ok = ParseYearMonth("")
	assert.False(t, ok)
	_, ok = ParseYearMonth("2023-13")
	assert.False(t, ok)
}

func TestStatusStore_RoundTrip(t *testing.T) {
	s := NewStatusStore(t.TempDir())
	ym := YearMonth{2023, 5}

	_, found, err := s.Read(ym)
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, s.Write(ym, Status{Status: "running", Stage: StageTransform}))
	data, found, err := s.Read(ym)
	require.NoError(t, err)
	require.True(t, found)

	var st Status
	require.NoError(t, json.Unmarshal(data, &st))
	assert.Equal(t, "running", st.Status)
	assert.Equal(t, StageTransform, st.Stage)
}

func TestPipeline_PassesEnvToStages(t *testing.T) {
	p := Pipeline{ScriptDir: "/opt/scripts", Env: []string{"DATA_DIR=/srv/data"}}

	for _, spec := range []jobs.Spec{p.GenerateMonth(YearMonth{2023, 5}), p.UpdateAll()} {
		require.Len(t, spec.Stages, 2)
		for _, st := range spec.Stages {
			assert.Equal(t, []string{"DATA_DIR=/srv/data"}, st.Env, st.Name)
			assert.Equal(t, "/opt/scripts", st.Dir)
		}
	}
}
