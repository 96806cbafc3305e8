package handler_test

import (
	"encoding/json"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/repwise/genjobs-be/internal/api/handler"
	"github.com/repwise/genjobs-be/internal/jobs"
)

func TestHealth_Healthy(t *testing.T) {
	r := newTestRouter(&handler.Dependencies{
		Service:  &fakeService{},
		Postgres: &fakePinger{},
		Redis:    &fakePinger{},
	})

	w := doRequest(r, http.MethodGet, "/health", "")

	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Status string            `json:"status"`
		Checks map[string]string `json:"checks"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "healthy", resp.Status)
	assert.Equal(t, "ok", resp.Checks["postgres"])
	assert.Equal(t, "ok", resp.Checks["redis"])
}

func TestHealth_UnhealthyWhenDependencyDown(t *testing.T) {
	r := newTestRouter(&handler.Dependencies{
		Service:  &fakeService{},
		Postgres: &fakePinger{err: errors.New("connection refused")},
		Redis:    &fakePinger{},
	})

	w := doRequest(r, http.MethodGet, "/health", "")

	require.Equal(t, http.StatusServiceUnavailable, w.Code)

	var resp struct {
		Status string            `json:"status"`
		Checks map[string]string `json:"checks"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "unhealthy", resp.Status)
	assert.Contains(t, resp.Checks["postgres"], "connection refused")
}

func TestHealth_SkipsUnconfiguredDependencies(t *testing.T) {
	r := newTestRouter(&handler.Dependencies{Service: &fakeService{}})

	w := doRequest(r, http.MethodGet, "/health", "")

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestTriggerSweep_ReturnsReport(t *testing.T) {
	sweeper := &fakeSweeper{
		report: jobs.SweepReport{Examined: 3, Repaired: 2, StillRunning: 1},
	}
	r := newTestRouter(&handler.Dependencies{
		Service: &fakeService{},
		Sweeper: sweeper,
	})

	w := doRequest(r, http.MethodPost, "/api/v1/admin/sweep", "")

	require.Equal(t, http.StatusOK, w.Code)

	var report jobs.SweepReport
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &report))
	assert.Equal(t, 3, report.Examined)
	assert.Equal(t, 2, report.Repaired)
	assert.Equal(t, 1, report.StillRunning)
}

func TestTriggerSweep_Failure(t *testing.T) {
	sweeper := &fakeSweeper{err: errors.New("listing stale jobs failed")}
	r := newTestRouter(&handler.Dependencies{
		Service: &fakeService{},
		Sweeper: sweeper,
	})

	w := doRequest(r, http.MethodPost, "/api/v1/admin/sweep", "")

	assert.Equal(t, http.StatusInternalServerError, w.Code)
}
