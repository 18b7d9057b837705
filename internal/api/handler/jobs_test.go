package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	mw "github.com/kiranshivaraju/jobstore/internal/api/middleware"
	"github.com/kiranshivaraju/jobstore/internal/jobs"
	"github.com/kiranshivaraju/jobstore/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- fake service ---

type fakeService struct {
	getFn    func(id uuid.UUID, fromDB bool) (*models.Job, string, error)
	searchFn func(c models.SearchCriteria, opts jobs.SearchOptions) (*models.SearchResult, error)
	createFn func(in *jobs.JobInput) (*models.Job, error)
	updateFn func(id uuid.UUID, in *jobs.JobInput, full bool) (*models.Job, error)
	deleteFn func(id uuid.UUID) error

	lastCaller models.Caller
}

func (f *fakeService) GetJob(_ context.Context, caller models.Caller, id uuid.UUID, fromDB bool) (*models.Job, string, error) {
	f.lastCaller = caller
	return f.getFn(id, fromDB)
}

func (f *fakeService) SearchJobs(_ context.Context, caller models.Caller, c models.SearchCriteria, opts jobs.SearchOptions) (*models.SearchResult, error) {
	f.lastCaller = caller
	return f.searchFn(c, opts)
}

func (f *fakeService) CreateJob(_ context.Context, caller models.Caller, in *jobs.JobInput) (*models.Job, error) {
	f.lastCaller = caller
	return f.createFn(in)
}

func (f *fakeService) UpdateJob(_ context.Context, caller models.Caller, id uuid.UUID, in *jobs.JobInput, full bool) (*models.Job, error) {
	f.lastCaller = caller
	return f.updateFn(id, in, full)
}

func (f *fakeService) DeleteJob(_ context.Context, caller models.Caller, id uuid.UUID) error {
	f.lastCaller = caller
	return f.deleteFn(id)
}

// --- helpers ---

var testCaller = models.Caller{UserID: "ext-1", Roles: []string{models.RoleAdministrator}}

func jobsRouter(svc JobService) http.Handler {
	h := NewJobs(svc)
	r := chi.NewRouter()
	r.Get("/api/v1/jobs", h.Search)
	r.Post("/api/v1/jobs", h.Create)
	r.Get("/api/v1/jobs/{jobID}", h.Get)
	r.Put("/api/v1/jobs/{jobID}", h.Replace)
	r.Patch("/api/v1/jobs/{jobID}", h.Patch)
	r.Delete("/api/v1/jobs/{jobID}", h.Delete)
	return r
}

func do(t *testing.T, svc JobService, caller *models.Caller, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	if caller != nil {
		req = req.WithContext(mw.SetCaller(req.Context(), *caller))
	}
	rec := httptest.NewRecorder()
	jobsRouter(svc).ServeHTTP(rec, req)
	return rec
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body), rec.Body.String())
	return body
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	errObj, ok := decodeEnvelope(t, rec)["error"].(map[string]any)
	require.True(t, ok, rec.Body.String())
	return errObj["code"].(string)
}

func sampleJob() *models.Job {
	return &models.Job{
		ID:           uuid.New(),
		ProjectID:    7,
		Title:        "Go engineer",
		NumPositions: 1,
		Status:       models.JobStatusSourcing,
		Skills:       []string{uuid.NewString()},
		CreatedBy:    "u-1",
		CreatedAt:    time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		UpdatedAt:    time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

// --- search tests ---

func TestSearch_ParsesQueryAndWritesMeta(t *testing.T) {
	jobA := sampleJob()
	jobID := uuid.New()
	var got models.SearchCriteria
	svc := &fakeService{searchFn: func(c models.SearchCriteria, opts jobs.SearchOptions) (*models.SearchResult, error) {
		got = c
		assert.False(t, opts.ReturnAll)
		return &models.SearchResult{Total: 31, Page: 2, PerPage: 10, Result: []*models.Job{jobA}, Source: models.SourceDB}, nil
	}}

	target := fmt.Sprintf("/api/v1/jobs?page=2&perPage=10&projectId=7&projectIds=1,2&projectIds=3&title=go&skill=%s&jobIds=%s&startDate=2026-05-01&sortBy=title&sortOrder=asc",
		jobA.Skills[0], jobID)
	rec := do(t, svc, &testCaller, http.MethodGet, target, "")

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, models.SourceDB, rec.Header().Get("X-Data-Source"))

	assert.Equal(t, 2, got.Page)
	assert.Equal(t, 10, got.PerPage)
	require.NotNil(t, got.ProjectID)
	assert.Equal(t, int64(7), *got.ProjectID)
	assert.Equal(t, []int64{1, 2, 3}, got.ProjectIDs)
	assert.Equal(t, []uuid.UUID{jobID}, got.JobIDs)
	assert.Equal(t, "go", got.Title)
	assert.Equal(t, "title", got.SortBy)
	assert.Equal(t, "asc", got.SortOrder)
	require.NotNil(t, got.StartDate)
	assert.Equal(t, time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC), *got.StartDate)

	body := decodeEnvelope(t, rec)
	assert.Len(t, body["data"], 1)
	meta := body["meta"].(map[string]any)
	assert.Equal(t, float64(31), meta["total"])
	assert.Equal(t, float64(2), meta["page"])
	assert.Equal(t, float64(10), meta["perPage"])
	assert.Equal(t, "db", meta["source"])
}

func TestSearch_EmptyResultIsArray(t *testing.T) {
	svc := &fakeService{searchFn: func(models.SearchCriteria, jobs.SearchOptions) (*models.SearchResult, error) {
		return &models.SearchResult{Page: 1, PerPage: 20, Result: []*models.Job{}, Source: models.SourceIndex}, nil
	}}

	rec := do(t, svc, &testCaller, http.MethodGet, "/api/v1/jobs", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, mustJSON(t, decodeEnvelope(t, rec)["data"]))
}

func TestSearch_InvalidQuery(t *testing.T) {
	svc := &fakeService{searchFn: func(models.SearchCriteria, jobs.SearchOptions) (*models.SearchResult, error) {
		t.Fatal("service must not be called")
		return nil, nil
	}}

	for _, q := range []string{"page=abc", "projectId=x", "jobIds=nope", "startDate=yesterday", "returnAll=maybe"} {
		t.Run(q, func(t *testing.T) {
			rec := do(t, svc, &testCaller, http.MethodGet, "/api/v1/jobs?"+q, "")
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, "INVALID_REQUEST", errorCode(t, rec))
		})
	}
}

func TestSearch_ReturnAllRequiresMachine(t *testing.T) {
	called := false
	svc := &fakeService{searchFn: func(_ models.SearchCriteria, opts jobs.SearchOptions) (*models.SearchResult, error) {
		called = true
		assert.True(t, opts.ReturnAll)
		return &models.SearchResult{Result: []*models.Job{}, Source: models.SourceIndex}, nil
	}}

	rec := do(t, svc, &testCaller, http.MethodGet, "/api/v1/jobs?returnAll=true", "")
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.False(t, called)

	machine := models.Caller{UserID: "sync", IsMachine: true}
	rec = do(t, svc, &machine, http.MethodGet, "/api/v1/jobs?returnAll=true", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, called)
}

func TestSearch_MissingCaller(t *testing.T) {
	rec := do(t, &fakeService{}, nil, http.MethodGet, "/api/v1/jobs", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

// --- get tests ---

func TestGet_ReturnsJobAndSource(t *testing.T) {
	job := sampleJob()
	svc := &fakeService{getFn: func(id uuid.UUID, fromDB bool) (*models.Job, string, error) {
		assert.Equal(t, job.ID, id)
		assert.True(t, fromDB)
		return job, models.SourceDB, nil
	}}

	rec := do(t, svc, &testCaller, http.MethodGet, "/api/v1/jobs/"+job.ID.String()+"?fromDb=true", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "db", rec.Header().Get("X-Data-Source"))

	data := decodeEnvelope(t, rec)["data"].(map[string]any)
	assert.Equal(t, job.ID.String(), data["id"])
	_, hasCandidates := data["candidates"]
	assert.False(t, hasCandidates)
	assert.Equal(t, testCaller.UserID, svc.lastCaller.UserID)
}

func TestGet_InvalidID(t *testing.T) {
	rec := do(t, &fakeService{}, &testCaller, http.MethodGet, "/api/v1/jobs/not-a-uuid", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGet_ErrorMapping(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"not found", jobs.ErrNotFound, http.StatusNotFound, "NOT_FOUND"},
		{"forbidden", fmt.Errorf("wrapped: %w", jobs.ErrForbidden), http.StatusForbidden, "FORBIDDEN"},
		{"validation", &jobs.ValidationError{Fields: []jobs.FieldError{{Field: "skill", Message: "bad"}}}, http.StatusBadRequest, "INVALID_REQUEST"},
		{"fatal", errors.New("db exploded"), http.StatusInternalServerError, "INTERNAL_ERROR"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &fakeService{getFn: func(uuid.UUID, bool) (*models.Job, string, error) {
				return nil, "", tt.err
			}}
			rec := do(t, svc, &testCaller, http.MethodGet, "/api/v1/jobs/"+uuid.NewString(), "")
			assert.Equal(t, tt.status, rec.Code)
			assert.Equal(t, tt.code, errorCode(t, rec))
		})
	}
}

// --- write tests ---

func TestCreate_Created(t *testing.T) {
	job := sampleJob()
	svc := &fakeService{createFn: func(in *jobs.JobInput) (*models.Job, error) {
		require.NotNil(t, in.Title)
		assert.Equal(t, "Go engineer", *in.Title)
		assert.Len(t, in.Skills, 1)
		return job, nil
	}}

	body := fmt.Sprintf(`{"projectId":7,"title":"Go engineer","numPositions":1,"skills":[%q]}`, job.Skills[0])
	rec := do(t, svc, &testCaller, http.MethodPost, "/api/v1/jobs", body)

	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, "/api/v1/jobs/"+job.ID.String(), rec.Header().Get("Location"))
	data := decodeEnvelope(t, rec)["data"].(map[string]any)
	assert.Equal(t, "sourcing", data["status"])
}

func TestCreate_InvalidJSON(t *testing.T) {
	rec := do(t, &fakeService{}, &testCaller, http.MethodPost, "/api/v1/jobs", `{"title":`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "INVALID_REQUEST", errorCode(t, rec))
}

func TestCreate_ValidationDetails(t *testing.T) {
	svc := &fakeService{createFn: func(*jobs.JobInput) (*models.Job, error) {
		return nil, &jobs.ValidationError{Fields: []jobs.FieldError{
			{Field: "title", Message: "is required"},
			{Field: "skills", Message: "is required"},
		}}
	}}

	rec := do(t, svc, &testCaller, http.MethodPost, "/api/v1/jobs", `{}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	errObj := decodeEnvelope(t, rec)["error"].(map[string]any)
	details := errObj["details"].([]any)
	require.Len(t, details, 2)
	assert.Equal(t, "title", details[0].(map[string]any)["field"])
}

func TestUpdate_PutAndPatch(t *testing.T) {
	job := sampleJob()
	var full []bool
	svc := &fakeService{updateFn: func(id uuid.UUID, in *jobs.JobInput, f bool) (*models.Job, error) {
		assert.Equal(t, job.ID, id)
		full = append(full, f)
		return job, nil
	}}

	rec := do(t, svc, &testCaller, http.MethodPut, "/api/v1/jobs/"+job.ID.String(), `{"title":"x"}`)
	assert.Equal(t, http.StatusOK, rec.Code)
	rec = do(t, svc, &testCaller, http.MethodPatch, "/api/v1/jobs/"+job.ID.String(), `{"title":"x"}`)
	assert.Equal(t, http.StatusOK, rec.Code)

	assert.Equal(t, []bool{true, false}, full)
}

func TestDelete(t *testing.T) {
	id := uuid.New()
	svc := &fakeService{deleteFn: func(got uuid.UUID) error {
		assert.Equal(t, id, got)
		return nil
	}}

	rec := do(t, svc, &testCaller, http.MethodDelete, "/api/v1/jobs/"+id.String(), "")
	assert.Equal(t, http.StatusNoContent, rec.Code)

	svc.deleteFn = func(uuid.UUID) error { return jobs.ErrForbidden }
	rec = do(t, svc, &testCaller, http.MethodDelete, "/api/v1/jobs/"+id.String(), "")
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func mustJSON(t *testing.T, v any) string {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return string(b)
}
