package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	mw "github.com/kiranshivaraju/jobstore/internal/api/middleware"
	"github.com/kiranshivaraju/jobstore/internal/api/response"
	"github.com/kiranshivaraju/jobstore/internal/jobs"
	"github.com/kiranshivaraju/jobstore/pkg/models"
)

// JobService defines the interface the job handlers depend on.
type JobService interface {
	GetJob(ctx context.Context, caller models.Caller, id uuid.UUID, fromDB bool) (*models.Job, string, error)
	SearchJobs(ctx context.Context, caller models.Caller, criteria models.SearchCriteria, opts jobs.SearchOptions) (*models.SearchResult, error)
	CreateJob(ctx context.Context, caller models.Caller, in *jobs.JobInput) (*models.Job, error)
	UpdateJob(ctx context.Context, caller models.Caller, id uuid.UUID, in *jobs.JobInput, fullReplace bool) (*models.Job, error)
	DeleteJob(ctx context.Context, caller models.Caller, id uuid.UUID) error
}

const maxBodyBytes = 1 << 20

// Jobs serves the /api/v1/jobs endpoints.
type Jobs struct {
	svc JobService
}

func NewJobs(svc JobService) *Jobs {
	return &Jobs{svc: svc}
}

// Search handles GET /api/v1/jobs.
func (h *Jobs) Search(w http.ResponseWriter, r *http.Request) {
	caller, ok := mw.GetCaller(r)
	if !ok {
		response.Error(w, http.StatusUnauthorized, "INVALID_TOKEN", "Missing caller", nil)
		return
	}

	criteria, opts, fields := parseSearchQuery(r.URL.Query())
	if len(fields) > 0 {
		response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid query parameters", fields)
		return
	}
	if opts.ReturnAll && !caller.IsMachine {
		response.Error(w, http.StatusForbidden, "FORBIDDEN", "returnAll is restricted to machine callers", nil)
		return
	}

	res, err := h.svc.SearchJobs(r.Context(), caller, criteria, opts)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	response.SetSource(w, res.Source)
	response.Collection(w, res.Result, response.PaginationMeta{
		Page:    res.Page,
		PerPage: res.PerPage,
		Total:   res.Total,
		Source:  res.Source,
	})
}

// Get handles GET /api/v1/jobs/{jobID}.
func (h *Jobs) Get(w http.ResponseWriter, r *http.Request) {
	caller, id, ok := callerAndID(w, r)
	if !ok {
		return
	}

	fromDB, err := parseBool(r.URL.Query().Get("fromDb"))
	if err != nil {
		response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "fromDb must be a boolean", nil)
		return
	}

	job, source, err := h.svc.GetJob(r.Context(), caller, id, fromDB)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	response.SetSource(w, source)
	response.JSON(w, job)
}

// Create handles POST /api/v1/jobs.
func (h *Jobs) Create(w http.ResponseWriter, r *http.Request) {
	caller, ok := mw.GetCaller(r)
	if !ok {
		response.Error(w, http.StatusUnauthorized, "INVALID_TOKEN", "Missing caller", nil)
		return
	}

	in, ok := decodeInput(w, r)
	if !ok {
		return
	}

	job, err := h.svc.CreateJob(r.Context(), caller, in)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	w.Header().Set("Location", "/api/v1/jobs/"+job.ID.String())
	response.Created(w, job)
}

// Replace handles PUT /api/v1/jobs/{jobID}.
func (h *Jobs) Replace(w http.ResponseWriter, r *http.Request) {
	h.update(w, r, true)
}

// Patch handles PATCH /api/v1/jobs/{jobID}.
func (h *Jobs) Patch(w http.ResponseWriter, r *http.Request) {
	h.update(w, r, false)
}

func (h *Jobs) update(w http.ResponseWriter, r *http.Request, fullReplace bool) {
	caller, id, ok := callerAndID(w, r)
	if !ok {
		return
	}

	in, ok := decodeInput(w, r)
	if !ok {
		return
	}

	job, err := h.svc.UpdateJob(r.Context(), caller, id, in, fullReplace)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	response.JSON(w, job)
}

// Delete handles DELETE /api/v1/jobs/{jobID}.
func (h *Jobs) Delete(w http.ResponseWriter, r *http.Request) {
	caller, id, ok := callerAndID(w, r)
	if !ok {
		return
	}

	if err := h.svc.DeleteJob(r.Context(), caller, id); err != nil {
		writeServiceError(w, r, err)
		return
	}

	response.NoContent(w)
}

func callerAndID(w http.ResponseWriter, r *http.Request) (models.Caller, uuid.UUID, bool) {
	caller, ok := mw.GetCaller(r)
	if !ok {
		response.Error(w, http.StatusUnauthorized, "INVALID_TOKEN", "Missing caller", nil)
		return models.Caller{}, uuid.Nil, false
	}

	id, err := uuid.Parse(chi.URLParam(r, "jobID"))
	if err != nil {
		response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "jobID must be a valid UUID", nil)
		return models.Caller{}, uuid.Nil, false
	}
	return caller, id, true
}

func decodeInput(w http.ResponseWriter, r *http.Request) (*jobs.JobInput, bool) {
	var in jobs.JobInput
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(&in); err != nil {
		response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid JSON body", err.Error())
		return nil, false
	}
	return &in, true
}

// writeServiceError maps service errors onto HTTP responses.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var verr *jobs.ValidationError
	switch {
	case errors.As(err, &verr):
		response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid job", verr.Fields)
	case errors.Is(err, jobs.ErrForbidden):
		response.Error(w, http.StatusForbidden, "FORBIDDEN", "Insufficient permissions", nil)
	case errors.Is(err, jobs.ErrNotFound):
		response.Error(w, http.StatusNotFound, "NOT_FOUND", "Job not found", nil)
	case errors.Is(err, jobs.ErrBadRequest):
		response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", err.Error(), nil)
	default:
		slog.Error("job request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR",
			"An unexpected error occurred", nil)
	}
}

func parseSearchQuery(q url.Values) (models.SearchCriteria, jobs.SearchOptions, []jobs.FieldError) {
	var (
		c      models.SearchCriteria
		opts   jobs.SearchOptions
		fields []jobs.FieldError
		err    error
	)
	bad := func(field, msg string) {
		fields = append(fields, jobs.FieldError{Field: field, Message: msg})
	}

	if c.Page, err = parseInt(q.Get("page")); err != nil {
		bad("page", "must be an integer")
	}
	if c.PerPage, err = parseInt(q.Get("perPage")); err != nil {
		bad("perPage", "must be an integer")
	}
	if opts.ReturnAll, err = parseBool(q.Get("returnAll")); err != nil {
		bad("returnAll", "must be a boolean")
	}

	c.SortBy = q.Get("sortBy")
	c.SortOrder = q.Get("sortOrder")
	c.ExternalID = q.Get("externalId")
	c.Title = q.Get("title")
	c.Description = q.Get("description")
	c.Status = q.Get("status")
	c.ResourceType = q.Get("resourceType")
	c.RateType = q.Get("rateType")
	c.Workload = q.Get("workload")
	c.Skill = q.Get("skill")
	c.Role = q.Get("role")

	if v := q.Get("projectId"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			bad("projectId", "must be an integer")
		} else {
			c.ProjectID = &id
		}
	}
	for _, v := range splitList(q, "projectIds") {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			bad("projectIds", "must be a list of integers")
			break
		}
		c.ProjectIDs = append(c.ProjectIDs, id)
	}
	for _, v := range splitList(q, "jobIds") {
		id, err := uuid.Parse(v)
		if err != nil {
			bad("jobIds", "must be a list of UUIDs")
			break
		}
		c.JobIDs = append(c.JobIDs, id)
	}
	if v := q.Get("startDate"); v != "" {
		d, err := parseDate(v)
		if err != nil {
			bad("startDate", "must be an RFC3339 timestamp or YYYY-MM-DD date")
		} else {
			c.StartDate = &d
		}
	}

	return c, opts, fields
}

// splitList accepts both repeated parameters and comma-separated values.
func splitList(q url.Values, key string) []string {
	var out []string
	for _, raw := range q[key] {
		for _, part := range strings.Split(raw, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

func parseInt(v string) (int, error) {
	if v == "" {
		return 0, nil
	}
	return strconv.Atoi(v)
}

func parseBool(v string) (bool, error) {
	if v == "" {
		return false, nil
	}
	return strconv.ParseBool(v)
}

func parseDate(v string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return t.UTC(), nil
	}
	return time.Parse(time.DateOnly, v)
}
