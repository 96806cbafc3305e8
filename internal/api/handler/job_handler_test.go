package handler_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/repwise/genjobs-be/internal/api/dto"
	"github.com/repwise/genjobs-be/internal/api/handler"
	"github.com/repwise/genjobs-be/internal/api/router"
	"github.com/repwise/genjobs-be/internal/jobs"
	"github.com/repwise/genjobs-be/internal/scheduler"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type submitCall struct {
	userID  string
	jobType string
	payload string
}

type fakeService struct {
	submitJob  *jobs.Job
	submitErr  error
	submitted  []submitCall
	retryErr   error
	retriedIDs []string
	getJob     *jobs.Job
	getErr     error
	listJobs   []jobs.Job
	listErr    error
	gotFilter  jobs.Filter
}

func (f *fakeService) Submit(ctx context.Context, userID, jobType, payload string) (*jobs.Job, error) {
	f.submitted = append(f.submitted, submitCall{userID: userID, jobType: jobType, payload: payload})
	return f.submitJob, f.submitErr
}

func (f *fakeService) Retry(ctx context.Context, jobID string) error {
	f.retriedIDs = append(f.retriedIDs, jobID)
	return f.retryErr
}

func (f *fakeService) GetByID(ctx context.Context, jobID string) (*jobs.Job, error) {
	return f.getJob, f.getErr
}

func (f *fakeService) List(ctx context.Context, filter jobs.Filter) ([]jobs.Job, error) {
	f.gotFilter = filter
	return f.listJobs, f.listErr
}

type fakeSweeper struct {
	report jobs.SweepReport
	err    error
}

func (f *fakeSweeper) Sweep(ctx context.Context) (jobs.SweepReport, error) {
	return f.report, f.err
}

type fakePinger struct {
	err error
}

func (f *fakePinger) HealthCheck(ctx context.Context) error {
	return f.err
}

func newTestRouter(deps *handler.Dependencies) *gin.Engine {
	if deps.Logger == nil {
		deps.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return router.SetupRouter(deps)
}

func doRequest(r *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func sampleJob() *jobs.Job {
	handle := "5bb2dd18-7a1e-4226-9a39-7e9d1bfa07c1"
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	return &jobs.Job{
		JobID:           "b7aa52b8-4f7e-4a7e-8bc6-661f3f1d8d5a",
		UserID:          "user-1",
		JobType:         "programme_generation",
		Payload:         `{"goal":"strength"}`,
		Status:          jobs.StatusProcessing,
		SchedulerHandle: &handle,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
}

func TestSubmitJob_Created(t *testing.T) {
	svc := &fakeService{submitJob: sampleJob()}
	r := newTestRouter(&handler.Dependencies{Service: svc})

	w := doRequest(r, http.MethodPost, "/api/v1/jobs",
		`{"user_id":"user-1","job_type":"programme_generation","payload":"{\"goal\":\"strength\"}"}`)

	require.Equal(t, http.StatusCreated, w.Code)

	var resp dto.JobDTO
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "b7aa52b8-4f7e-4a7e-8bc6-661f3f1d8d5a", resp.JobID)
	assert.Equal(t, jobs.StatusProcessing, resp.Status)
	assert.Equal(t, "5bb2dd18-7a1e-4226-9a39-7e9d1bfa07c1", resp.SchedulerHandle)

	require.Len(t, svc.submitted, 1)
	assert.Equal(t, "user-1", svc.submitted[0].userID)
	assert.Equal(t, "programme_generation", svc.submitted[0].jobType)
}

func TestSubmitJob_MissingFields(t *testing.T) {
	svc := &fakeService{}
	r := newTestRouter(&handler.Dependencies{Service: svc})

	w := doRequest(r, http.MethodPost, "/api/v1/jobs", `{"job_type":"programme_generation"}`)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Empty(t, svc.submitted)
}

func TestSubmitJob_DispatchFailureReturnsAccepted(t *testing.T) {
	parked := sampleJob()
	parked.Status = jobs.StatusPending
	parked.SchedulerHandle = nil

	svc := &fakeService{
		submitJob: parked,
		submitErr: scheduler.NewDispatchError(errors.New("rabbitmq down")),
	}
	r := newTestRouter(&handler.Dependencies{Service: svc})

	w := doRequest(r, http.MethodPost, "/api/v1/jobs",
		`{"user_id":"user-1","job_type":"programme_generation","payload":"{}"}`)

	require.Equal(t, http.StatusAccepted, w.Code)

	var resp dto.JobDTO
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, jobs.StatusPending, resp.Status)
	assert.Empty(t, resp.SchedulerHandle)
}

func TestSubmitJob_InternalError(t *testing.T) {
	svc := &fakeService{submitErr: errors.New("insert failed")}
	r := newTestRouter(&handler.Dependencies{Service: svc})

	w := doRequest(r, http.MethodPost, "/api/v1/jobs",
		`{"user_id":"user-1","job_type":"programme_generation","payload":"{}"}`)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestGetJob_OK(t *testing.T) {
	job := sampleJob()
	errMsg := "job timed out"
	job.Status = jobs.StatusFailed
	job.ErrorMessage = &errMsg

	svc := &fakeService{getJob: job}
	r := newTestRouter(&handler.Dependencies{Service: svc})

	w := doRequest(r, http.MethodGet, "/api/v1/jobs/"+job.JobID, "")

	require.Equal(t, http.StatusOK, w.Code)

	var resp dto.JobDTO
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, jobs.StatusFailed, resp.Status)
	assert.Equal(t, "job timed out", resp.ErrorMessage)
}

func TestGetJob_NotFound(t *testing.T) {
	svc := &fakeService{getErr: jobs.ErrJobNotFound}
	r := newTestRouter(&handler.Dependencies{Service: svc})

	w := doRequest(r, http.MethodGet, "/api/v1/jobs/b7aa52b8-4f7e-4a7e-8bc6-661f3f1d8d5a", "")

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestGetJob_InvalidUUID(t *testing.T) {
	svc := &fakeService{}
	r := newTestRouter(&handler.Dependencies{Service: svc})

	w := doRequest(r, http.MethodGet, "/api/v1/jobs/not-a-uuid", "")

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRetryJob_Accepted(t *testing.T) {
	svc := &fakeService{}
	r := newTestRouter(&handler.Dependencies{Service: svc})

	w := doRequest(r, http.MethodPost, "/api/v1/jobs/b7aa52b8-4f7e-4a7e-8bc6-661f3f1d8d5a/retry", "")

	require.Equal(t, http.StatusAccepted, w.Code)
	require.Len(t, svc.retriedIDs, 1)
	assert.Equal(t, "b7aa52b8-4f7e-4a7e-8bc6-661f3f1d8d5a", svc.retriedIDs[0])
}

func TestRetryJob_DispatchFailureStillAccepted(t *testing.T) {
	svc := &fakeService{retryErr: scheduler.NewDispatchError(errors.New("rabbitmq down"))}
	r := newTestRouter(&handler.Dependencies{Service: svc})

	w := doRequest(r, http.MethodPost, "/api/v1/jobs/b7aa52b8-4f7e-4a7e-8bc6-661f3f1d8d5a/retry", "")

	require.Equal(t, http.StatusAccepted, w.Code)

	var resp map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, jobs.StatusPending, resp["status"])
}

func TestRetryJob_InvalidUUID(t *testing.T) {
	svc := &fakeService{}
	r := newTestRouter(&handler.Dependencies{Service: svc})

	w := doRequest(r, http.MethodPost, "/api/v1/jobs/nope/retry", "")

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Empty(t, svc.retriedIDs)
}

func TestRetryJob_InternalError(t *testing.T) {
	svc := &fakeService{retryErr: errors.New("postgres down")}
	r := newTestRouter(&handler.Dependencies{Service: svc})

	w := doRequest(r, http.MethodPost, "/api/v1/jobs/b7aa52b8-4f7e-4a7e-8bc6-661f3f1d8d5a/retry", "")

	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestListJobs_PaginatesWithCursor(t *testing.T) {
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	page := make([]jobs.Job, 3)
	for i := range page {
		page[i] = *sampleJob()
		page[i].JobID = page[i].JobID[:35] + string(rune('a'+i))
		page[i].CreatedAt = base.Add(-time.Duration(i) * time.Minute)
	}

	svc := &fakeService{listJobs: page}
	r := newTestRouter(&handler.Dependencies{Service: svc})

	w := doRequest(r, http.MethodGet, "/api/v1/jobs?page_size=2&status=PROCESSING", "")

	require.Equal(t, http.StatusOK, w.Code)

	var resp dto.ListJobsResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Len(t, resp.Jobs, 2)
	assert.NotEmpty(t, resp.NextCursor)

	assert.Equal(t, 2, svc.gotFilter.PageSize)
	assert.Equal(t, "PROCESSING", svc.gotFilter.Status)

	// the cursor points at the last returned job
	cursor, err := handler.DecodeJobCursor(resp.NextCursor)
	require.NoError(t, err)
	assert.Equal(t, page[1].JobID, cursor.JobID)
	assert.Equal(t, page[1].CreatedAt.UnixNano(), cursor.CreatedAt.UnixNano())
}

func TestListJobs_NoNextCursorOnFinalPage(t *testing.T) {
	svc := &fakeService{listJobs: []jobs.Job{*sampleJob()}}
	r := newTestRouter(&handler.Dependencies{Service: svc})

	w := doRequest(r, http.MethodGet, "/api/v1/jobs?page_size=5", "")

	require.Equal(t, http.StatusOK, w.Code)

	var resp dto.ListJobsResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Len(t, resp.Jobs, 1)
	assert.Empty(t, resp.NextCursor)
}

func TestListJobs_ClampsPageSize(t *testing.T) {
	svc := &fakeService{}
	r := newTestRouter(&handler.Dependencies{Service: svc})

	w := doRequest(r, http.MethodGet, "/api/v1/jobs?page_size=1000", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 100, svc.gotFilter.PageSize)

	w = doRequest(r, http.MethodGet, "/api/v1/jobs", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 20, svc.gotFilter.PageSize)
}

func TestListJobs_InvalidCursor(t *testing.T) {
	svc := &fakeService{}
	r := newTestRouter(&handler.Dependencies{Service: svc})

	w := doRequest(r, http.MethodGet, "/api/v1/jobs?cursor=%21%21%21", "")

	assert.Equal(t, http.StatusBadRequest, w.Code)
}
