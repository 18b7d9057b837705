package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/kiranshivaraju/jobstore/pkg/models"
)

var ErrNotFound = errors.New("resource not found")
var ErrDuplicateKey = errors.New("duplicate key violation")

// Store is the system of record. All relational reads and writes go through here.
type Store interface {
	Ping(ctx context.Context) error

	GetAPIKeyByPrefix(ctx context.Context, prefix string) ([]*models.APIKey, error)
	UpdateAPIKeyLastUsed(ctx context.Context, id uuid.UUID) error
	CreateAPIKey(ctx context.Context, key *models.APIKey) error

	CreateJob(ctx context.Context, job *models.Job) error
	GetJob(ctx context.Context, id uuid.UUID, withCandidates bool) (*models.Job, error)
	UpdateJob(ctx context.Context, job *models.Job) error
	DeleteJob(ctx context.Context, id uuid.UUID) error
	ListJobs(ctx context.Context, filter JobFilter) ([]*models.Job, int, error)

	FindExistingRoleIDs(ctx context.Context, ids []string) ([]string, error)
}

// JobFilter holds relational query criteria. Title and Description are substring
// matches, Skill and Role test membership in the job's collections, and every
// other set field is an exact-match conjunction.
type JobFilter struct {
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

	SortBy         string
	SortOrder      string
	Page           int
	Limit          int
	WithCandidates bool
}
