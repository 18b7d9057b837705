package models

import (
	"time"

	"github.com/google/uuid"
)

// Data sources a read may be answered from.
const (
	SourceIndex = "index"
	SourceDB    = "db"
)

// SearchCriteria describes a job query. Nil/empty filters are ignored.
type SearchCriteria struct {
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
	JobIDs       []uuid.UUID
}

// SearchResult is one page of jobs, tagged with the store that answered it.
type SearchResult struct {
	Total   int    `json:"total"`
	Page    int    `json:"page"`
	PerPage int    `json:"perPage"`
	Result  []*Job `json:"result"`
	Source  string `json:"source"`
}
