package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/kiranshivaraju/jobstore/pkg/models"
)

// PostgresStore implements the Store interface using pgx/v5.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgresStore.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

var _ Store = (*PostgresStore)(nil)

// Ping checks database connectivity.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// --- API Keys ---

func (s *PostgresStore) GetAPIKeyByPrefix(ctx context.Context, prefix string) ([]*models.APIKey, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, name, key_hash, key_prefix, user_id, roles, is_machine, last_used_at, deleted_at, created_at, updated_at
		 FROM api_keys WHERE key_prefix = $1 AND deleted_at IS NULL`, prefix)
	if err != nil {
		return nil, fmt.Errorf("get api key by prefix: %w", err)
	}
	defer rows.Close()

	var keys []*models.APIKey
	for rows.Next() {
		var k models.APIKey
		if err := rows.Scan(&k.ID, &k.Name, &k.KeyHash, &k.KeyPrefix, &k.UserID, &k.Roles, &k.IsMachine,
			&k.LastUsedAt, &k.DeletedAt, &k.CreatedAt, &k.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan api key: %w", err)
		}
		keys = append(keys, &k)
	}
	return keys, rows.Err()
}

func (s *PostgresStore) UpdateAPIKeyLastUsed(ctx context.Context, id uuid.UUID) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE api_keys SET last_used_at = NOW(), updated_at = NOW() WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("update api key last used: %w", err)
	}
	return nil
}

func (s *PostgresStore) CreateAPIKey(ctx context.Context, key *models.APIKey) error {
	roles := key.Roles
	if roles == nil {
		roles = []string{}
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO api_keys (id, name, key_hash, key_prefix, user_id, roles, is_machine, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		key.ID, key.Name, key.KeyHash, key.KeyPrefix, key.UserID, roles, key.IsMachine, key.CreatedAt, key.UpdatedAt)
	if err != nil {
		if isDuplicateKeyError(err) {
			return ErrDuplicateKey
		}
		return fmt.Errorf("create api key: %w", err)
	}
	return nil
}

// --- Jobs ---

// Skill and role ids travel as text arrays and are cast server-side, so callers
// keep plain string slices.
const jobColumns = `id, project_id, external_id, title, description, start_date, duration, num_positions,
	resource_type, rate_type, workload, min_salary, max_salary, hours_per_week,
	job_location, job_timezone, currency, status, skills::text[], role_ids::text[],
	is_application_page_active, created_by, updated_by, created_at, updated_at`

func scanJob(row pgx.Row) (*models.Job, error) {
	var j models.Job
	err := row.Scan(&j.ID, &j.ProjectID, &j.ExternalID, &j.Title, &j.Description, &j.StartDate,
		&j.Duration, &j.NumPositions, &j.ResourceType, &j.RateType, &j.Workload,
		&j.MinSalary, &j.MaxSalary, &j.HoursPerWeek, &j.JobLocation, &j.JobTimezone,
		&j.Currency, &j.Status, &j.Skills, &j.RoleIDs, &j.IsApplicationPageActive,
		&j.CreatedBy, &j.UpdatedBy, &j.CreatedAt, &j.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &j, nil
}

func (s *PostgresStore) CreateJob(ctx context.Context, job *models.Job) error {
	skills := job.Skills
	if skills == nil {
		skills = []string{}
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO jobs (id, project_id, external_id, title, description, start_date, duration, num_positions,
			resource_type, rate_type, workload, min_salary, max_salary, hours_per_week,
			job_location, job_timezone, currency, status, skills, role_ids,
			is_application_page_active, created_by, updated_by, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18,
			$19::text[]::uuid[], $20::text[]::uuid[], $21, $22, $23, $24, $25)`,
		job.ID, job.ProjectID, job.ExternalID, job.Title, job.Description, job.StartDate,
		job.Duration, job.NumPositions, job.ResourceType, job.RateType, job.Workload,
		job.MinSalary, job.MaxSalary, job.HoursPerWeek, job.JobLocation, job.JobTimezone,
		job.Currency, job.Status, skills, job.RoleIDs, job.IsApplicationPageActive,
		job.CreatedBy, job.UpdatedBy, job.CreatedAt, job.UpdatedAt)
	if err != nil {
		if isDuplicateKeyError(err) {
			return ErrDuplicateKey
		}
		return fmt.Errorf("create job: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetJob(ctx context.Context, id uuid.UUID, withCandidates bool) (*models.Job, error) {
	j, err := scanJob(s.pool.QueryRow(ctx, `SELECT `+jobColumns+` FROM jobs WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get job: %w", err)
	}

	if withCandidates {
		if err := s.attachCandidates(ctx, []*models.Job{j}); err != nil {
			return nil, err
		}
	}
	return j, nil
}

// UpdateJob overwrites every mutable column of the job. id, created_by and
// created_at never change.
func (s *PostgresStore) UpdateJob(ctx context.Context, job *models.Job) error {
	skills := job.Skills
	if skills == nil {
		skills = []string{}
	}
	tag, err := s.pool.Exec(ctx,
		`UPDATE jobs SET project_id = $2, external_id = $3, title = $4, description = $5, start_date = $6,
			duration = $7, num_positions = $8, resource_type = $9, rate_type = $10, workload = $11,
			min_salary = $12, max_salary = $13, hours_per_week = $14, job_location = $15,
			job_timezone = $16, currency = $17, status = $18, skills = $19::text[]::uuid[],
			role_ids = $20::text[]::uuid[], is_application_page_active = $21, updated_by = $22, updated_at = $23
		 WHERE id = $1`,
		job.ID, job.ProjectID, job.ExternalID, job.Title, job.Description, job.StartDate,
		job.Duration, job.NumPositions, job.ResourceType, job.RateType, job.Workload,
		job.MinSalary, job.MaxSalary, job.HoursPerWeek, job.JobLocation, job.JobTimezone,
		job.Currency, job.Status, skills, job.RoleIDs, job.IsApplicationPageActive,
		job.UpdatedBy, job.UpdatedAt)
	if err != nil {
		return fmt.Errorf("update job: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) DeleteJob(ctx context.Context, id uuid.UUID) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM jobs WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete job: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// sortColumns maps API sort keys onto columns. Anything else sorts by id.
var sortColumns = map[string]string{
	"id":           "id",
	"projectId":    "project_id",
	"title":        "title",
	"status":       "status",
	"startDate":    "start_date",
	"rateType":     "rate_type",
	"workload":     "workload",
	"numPositions": "num_positions",
	"createdAt":    "created_at",
	"updatedAt":    "updated_at",
}

// ListJobs runs the relational form of a job search and returns one page plus the
// number of rows matching the filter.
// likeEscaper escapes LIKE wildcards with Postgres's default escape character.
var likeEscaper = strings.NewReplacer(`\`, `\\`, "%", `\%`, "_", `\_`)

// containsPattern returns an ILIKE pattern matching v literally as a substring.
func containsPattern(v string) string {
	return "%" + likeEscaper.Replace(v) + "%"
}

func (s *PostgresStore) ListJobs(ctx context.Context, filter JobFilter) ([]*models.Job, int, error) {
	// Build WHERE clause dynamically
	conditions := []string{"TRUE"}
	args := []any{}
	argIdx := 1

	add := func(cond string, arg any) {
		conditions = append(conditions, fmt.Sprintf(cond, argIdx))
		args = append(args, arg)
		argIdx++
	}

	if filter.ProjectID != nil {
		add("project_id = $%d", *filter.ProjectID)
	}
	if len(filter.ProjectIDs) > 0 {
		add("project_id = ANY($%d)", filter.ProjectIDs)
	}
	if len(filter.JobIDs) > 0 {
		ids := make([]string, len(filter.JobIDs))
		for i, id := range filter.JobIDs {
			ids[i] = id.String()
		}
		add("id = ANY($%d::text[]::uuid[])", ids)
	}
	if filter.ExternalID != "" {
		add("external_id = $%d", filter.ExternalID)
	}
	if filter.Title != "" {
		add("title ILIKE $%d", containsPattern(filter.Title))
	}
	if filter.Description != "" {
		add("description ILIKE $%d", containsPattern(filter.Description))
	}
	if filter.Status != "" {
		add("status = $%d", filter.Status)
	}
	if filter.ResourceType != "" {
		add("resource_type = $%d", filter.ResourceType)
	}
	if filter.RateType != "" {
		add("rate_type = $%d", filter.RateType)
	}
	if filter.Workload != "" {
		add("workload = $%d", filter.Workload)
	}
	if filter.StartDate != nil {
		add("start_date = $%d", *filter.StartDate)
	}
	if filter.Skill != "" {
		add("$%d::text::uuid = ANY(skills)", filter.Skill)
	}
	if filter.Role != "" {
		add("$%d::text::uuid = ANY(role_ids)", filter.Role)
	}

	where := strings.Join(conditions, " AND ")

	// Count query
	var total int
	if err := s.pool.QueryRow(ctx, "SELECT COUNT(*) FROM jobs WHERE "+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count jobs: %w", err)
	}

	// Normalize pagination
	limit := filter.Limit
	if limit <= 0 {
		limit = 20
	}
	page := filter.Page
	if page <= 0 {
		page = 1
	}
	offset := (page - 1) * limit

	column, ok := sortColumns[filter.SortBy]
	if !ok {
		column = "id"
	}
	direction := "DESC"
	if strings.EqualFold(filter.SortOrder, "asc") {
		direction = "ASC"
	}
	order := column + " " + direction
	if column != "id" {
		order += ", id DESC"
	}

	dataQuery := fmt.Sprintf(`SELECT %s FROM jobs WHERE %s ORDER BY %s LIMIT $%d OFFSET $%d`,
		jobColumns, where, order, argIdx, argIdx+1)
	args = append(args, limit, offset)

	rows, err := s.pool.Query(ctx, dataQuery, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list jobs: %w", err)
	}
	defer rows.Close()

	var jobs []*models.Job
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan job: %w", err)
		}
		jobs = append(jobs, j)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("list jobs: %w", err)
	}

	if filter.WithCandidates {
		if err := s.attachCandidates(ctx, jobs); err != nil {
			return nil, 0, err
		}
	}
	return jobs, total, nil
}

// attachCandidates eager-loads candidates for all jobs in one query. Jobs without
// candidates keep a nil slice.
func (s *PostgresStore) attachCandidates(ctx context.Context, jobs []*models.Job) error {
	if len(jobs) == 0 {
		return nil
	}

	ids := make([]string, len(jobs))
	byID := make(map[uuid.UUID]*models.Job, len(jobs))
	for i, j := range jobs {
		ids[i] = j.ID.String()
		byID[j.ID] = j
	}

	rows, err := s.pool.Query(ctx,
		`SELECT id, job_id, user_id, status, external_id, resume, remark, created_by, updated_by, created_at, updated_at
		 FROM candidates WHERE job_id = ANY($1::text[]::uuid[]) ORDER BY created_at, id`, ids)
	if err != nil {
		return fmt.Errorf("list candidates: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var c models.Candidate
		if err := rows.Scan(&c.ID, &c.JobID, &c.UserID, &c.Status, &c.ExternalID, &c.Resume, &c.Remark,
			&c.CreatedBy, &c.UpdatedBy, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return fmt.Errorf("scan candidate: %w", err)
		}
		if j, ok := byID[c.JobID]; ok {
			j.Candidates = append(j.Candidates, c)
		}
	}
	return rows.Err()
}

// --- Roles ---

// FindExistingRoleIDs returns the subset of ids that exist in the roles table.
func (s *PostgresStore) FindExistingRoleIDs(ctx context.Context, ids []string) ([]string, error) {
	if len(ids) == 0 {
		return []string{}, nil
	}

	rows, err := s.pool.Query(ctx,
		`SELECT id::text FROM roles WHERE id::text = ANY($1::text[])`, ids)
	if err != nil {
		return nil, fmt.Errorf("find existing roles: %w", err)
	}
	defer rows.Close()

	found := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan role id: %w", err)
		}
		found = append(found, id)
	}
	return found, rows.Err()
}

// isDuplicateKeyError checks if a pgx error is a unique constraint violation.
func isDuplicateKeyError(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505" // unique_violation
	}
	return false
}
