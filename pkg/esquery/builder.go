// Package esquery builds Elasticsearch query DSL bodies for job searches.
package esquery

import (
	"strings"
	"time"
)

// QueryBuilder constructs Elasticsearch search bodies.
// All methods are pure functions with no side effects.
// Zero value is ready to use.
type QueryBuilder struct{}

// JobSearchParams defines inputs for a job search against the index.
type JobSearchParams struct {
	Page      int
	PerPage   int
	SortBy    string
	SortOrder string

	ProjectID    *int64
	ProjectIDs   []int64
	ExternalID   string
	Title        string
	Description  string
	Status       string
	ResourceType string
	RateType     string
	Workload     string
	StartDate    *time.Time
	Skill        string
	Role         string
	JobIDs       []string
}

// BuildJobSearch returns the search body for p. Free-text fields are relevance
// matched, skill and role are exact collection membership, and the project id
// and job id sets are applied in filter context so they never affect scoring.
func (b QueryBuilder) BuildJobSearch(p JobSearchParams) map[string]any {
	page := p.Page
	if page < 1 {
		page = 1
	}
	size := p.PerPage
	if size < 0 {
		size = 0
	}

	return map[string]any{
		"from":  (page - 1) * size,
		"size":  size,
		"sort":  []any{b.buildSort(p.SortBy, p.SortOrder)},
		"query": b.buildQuery(p),
	}
}

// SortField maps a job attribute onto the index field used for sorting.
func (b QueryBuilder) SortField(key string) string {
	if key == "" || key == "id" {
		return "_id"
	}
	return key
}

func (b QueryBuilder) buildSort(key, order string) map[string]any {
	dir := "desc"
	if strings.EqualFold(order, "asc") {
		dir = "asc"
	}
	return map[string]any{b.SortField(key): map[string]any{"order": dir}}
}

func (b QueryBuilder) buildQuery(p JobSearchParams) map[string]any {
	var must, filter []any

	if p.Title != "" {
		must = append(must, match("title", p.Title))
	}
	if p.Description != "" {
		must = append(must, match("description", p.Description))
	}
	if p.ProjectID != nil {
		must = append(must, term("projectId", *p.ProjectID))
	}
	if p.ExternalID != "" {
		must = append(must, term("externalId", p.ExternalID))
	}
	if p.Status != "" {
		must = append(must, term("status", p.Status))
	}
	if p.ResourceType != "" {
		must = append(must, term("resourceType", p.ResourceType))
	}
	if p.RateType != "" {
		must = append(must, term("rateType", p.RateType))
	}
	if p.Workload != "" {
		must = append(must, term("workload", p.Workload))
	}
	if p.StartDate != nil {
		must = append(must, term("startDate", p.StartDate.UTC().Format(time.RFC3339)))
	}
	if p.Skill != "" {
		must = append(must, terms("skills", []string{p.Skill}))
	}
	if p.Role != "" {
		must = append(must, terms("roleIds", []string{p.Role}))
	}

	if len(p.ProjectIDs) > 0 {
		filter = append(filter, terms("projectId", p.ProjectIDs))
	}
	if len(p.JobIDs) > 0 {
		filter = append(filter, map[string]any{"ids": map[string]any{"values": p.JobIDs}})
	}

	if len(must) == 0 && len(filter) == 0 {
		return map[string]any{"match_all": map[string]any{}}
	}

	boolQuery := map[string]any{}
	if len(must) > 0 {
		boolQuery["must"] = must
	}
	if len(filter) > 0 {
		boolQuery["filter"] = filter
	}
	return map[string]any{"bool": boolQuery}
}

func match(field, value string) map[string]any {
	return map[string]any{"match": map[string]any{field: value}}
}

func term(field string, value any) map[string]any {
	return map[string]any{"term": map[string]any{field: value}}
}

func terms(field string, values any) map[string]any {
	return map[string]any{"terms": map[string]any{field: values}}
}

// BuildCandidateLookup returns the search body fetching candidates of the given jobs.
func (b QueryBuilder) BuildCandidateLookup(jobIDs []string, size int) map[string]any {
	return map[string]any{
		"size": size,
		"sort": []any{map[string]any{"createdAt": map[string]any{"order": "asc"}}},
		"query": map[string]any{"bool": map[string]any{
			"filter": []any{terms("jobId", jobIDs)},
		}},
	}
}
