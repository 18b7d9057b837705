package jobs

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/kiranshivaraju/jobstore/internal/index"
	"github.com/kiranshivaraju/jobstore/internal/store"
	"github.com/kiranshivaraju/jobstore/pkg/esquery"
	"github.com/kiranshivaraju/jobstore/pkg/models"
)

const defaultPerPage = 20

// SearchOptions modifies how a search is paged.
type SearchOptions struct {
	// ReturnAll asks for a single page as large as the index result window.
	// Results beyond the window are truncated.
	ReturnAll bool
}

// GetJob reads a job, preferring the index. A document missing from the index is
// reported as not found; any other index failure is answered from the database.
// The second return value names the store that answered.
func (s *Service) GetJob(ctx context.Context, caller models.Caller, id uuid.UUID, fromDB bool) (*models.Job, string, error) {
	if !fromDB {
		job, err := s.getFromIndex(ctx, caller, id)
		switch {
		case err == nil:
			return job, models.SourceIndex, nil
		case errors.Is(err, errDegraded):
			s.logger.Warn("index read failed, falling back to database", "job_id", id, "error", err)
		default:
			return nil, "", err
		}
	}

	job, err := s.store.GetJob(ctx, id, true)
	if errors.Is(err, store.ErrNotFound) {
		return nil, "", ErrNotFound
	}
	if err != nil {
		return nil, "", fmt.Errorf("get job: %w", err)
	}
	if err := s.guard.CanView(ctx, caller, job.ProjectID); err != nil {
		return nil, "", err
	}
	return job, models.SourceDB, nil
}

func (s *Service) getFromIndex(ctx context.Context, caller models.Caller, id uuid.UUID) (*models.Job, error) {
	job, err := s.index.GetJob(ctx, id)
	if errors.Is(err, index.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errDegraded, err)
	}

	if err := s.guard.CanView(ctx, caller, job.ProjectID); err != nil {
		return nil, err
	}

	if err := s.attachIndexCandidates(ctx, []*models.Job{job}); err != nil {
		return nil, err
	}
	return job, nil
}

// SearchJobs runs a paged search. Callers without manage, machine or connect
// manager rights must scope the search to a project they belong to.
func (s *Service) SearchJobs(ctx context.Context, caller models.Caller, criteria models.SearchCriteria, opts SearchOptions) (*models.SearchResult, error) {
	if err := validateCriteria(criteria); err != nil {
		return nil, err
	}

	if !caller.IsPrivileged() && !caller.IsConnectManager() {
		if criteria.ProjectID == nil {
			return nil, fmt.Errorf("%w: projectId is required", ErrForbidden)
		}
		if err := s.guard.CanView(ctx, caller, *criteria.ProjectID); err != nil {
			return nil, err
		}
	}

	criteria = s.normalize(criteria, opts)

	res, err := s.searchIndex(ctx, criteria)
	switch {
	case err == nil:
		return res, nil
	case errors.Is(err, errDegraded):
		s.logger.Warn("index search failed, falling back to database", "error", err)
	default:
		return nil, err
	}

	return s.searchDB(ctx, criteria)
}

func (s *Service) searchIndex(ctx context.Context, c models.SearchCriteria) (*models.SearchResult, error) {
	res, err := s.index.SearchJobs(ctx, toIndexParams(c))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errDegraded, err)
	}

	if err := s.attachIndexCandidates(ctx, res.Jobs); err != nil {
		return nil, err
	}

	return &models.SearchResult{
		Total:   res.Total,
		Page:    c.Page,
		PerPage: c.PerPage,
		Result:  nonNil(res.Jobs),
		Source:  models.SourceIndex,
	}, nil
}

func (s *Service) searchDB(ctx context.Context, c models.SearchCriteria) (*models.SearchResult, error) {
	jobs, total, err := s.store.ListJobs(ctx, toStoreFilter(c))
	if err != nil {
		return nil, fmt.Errorf("search jobs: %w", err)
	}

	return &models.SearchResult{
		Total:   total,
		Page:    c.Page,
		PerPage: c.PerPage,
		Result:  nonNil(jobs),
		Source:  models.SourceDB,
	}, nil
}

func (s *Service) normalize(c models.SearchCriteria, opts SearchOptions) models.SearchCriteria {
	if c.Page < 1 {
		c.Page = 1
	}
	if c.PerPage <= 0 {
		c.PerPage = defaultPerPage
	}
	if c.PerPage > s.maxWindow {
		c.PerPage = s.maxWindow
	}
	if opts.ReturnAll {
		c.Page = 1
		c.PerPage = s.maxWindow
	}
	if c.SortBy == "" {
		c.SortBy = "id"
	}
	c.SortOrder = strings.ToLower(c.SortOrder)
	if c.SortOrder == "" {
		c.SortOrder = "desc"
	}
	c.Skill = strings.ToLower(c.Skill)
	c.Role = strings.ToLower(c.Role)
	return c
}

func validateCriteria(c models.SearchCriteria) error {
	var fields []FieldError
	if o := strings.ToLower(c.SortOrder); o != "" && o != "asc" && o != "desc" {
		fields = append(fields, FieldError{Field: "sortOrder", Message: "must be asc or desc"})
	}
	if c.Skill != "" {
		if msg := uuids([]string{c.Skill}); msg != "" {
			fields = append(fields, FieldError{Field: "skill", Message: msg})
		}
	}
	if c.Role != "" {
		if msg := uuids([]string{c.Role}); msg != "" {
			fields = append(fields, FieldError{Field: "role", Message: msg})
		}
	}
	if len(fields) > 0 {
		return &ValidationError{Fields: fields}
	}
	return nil
}

func toIndexParams(c models.SearchCriteria) esquery.JobSearchParams {
	jobIDs := make([]string, len(c.JobIDs))
	for i, id := range c.JobIDs {
		jobIDs[i] = id.String()
	}
	return esquery.JobSearchParams{
		Page:         c.Page,
		PerPage:      c.PerPage,
		SortBy:       c.SortBy,
		SortOrder:    c.SortOrder,
		ProjectID:    c.ProjectID,
		ProjectIDs:   c.ProjectIDs,
		ExternalID:   c.ExternalID,
		Title:        c.Title,
		Description:  c.Description,
		Status:       c.Status,
		ResourceType: c.ResourceType,
		RateType:     c.RateType,
		Workload:     c.Workload,
		StartDate:    c.StartDate,
		Skill:        c.Skill,
		Role:         c.Role,
		JobIDs:       jobIDs,
	}
}

func toStoreFilter(c models.SearchCriteria) store.JobFilter {
	return store.JobFilter{
		ProjectID:      c.ProjectID,
		ProjectIDs:     c.ProjectIDs,
		ExternalID:     c.ExternalID,
		Title:          c.Title,
		Description:    c.Description,
		Status:         c.Status,
		ResourceType:   c.ResourceType,
		RateType:       c.RateType,
		Workload:       c.Workload,
		StartDate:      c.StartDate,
		Skill:          c.Skill,
		Role:           c.Role,
		JobIDs:         c.JobIDs,
		SortBy:         c.SortBy,
		SortOrder:      c.SortOrder,
		Page:           c.Page,
		Limit:          c.PerPage,
		WithCandidates: true,
	}
}

func nonNil(jobs []*models.Job) []*models.Job {
	if jobs == nil {
		return []*models.Job{}
	}
	return jobs
}
