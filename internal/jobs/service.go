// Package jobs implements job writes and the index-first read path with its
// database fallback.
package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/kiranshivaraju/jobstore/internal/access"
	"github.com/kiranshivaraju/jobstore/internal/events"
	"github.com/kiranshivaraju/jobstore/internal/index"
	"github.com/kiranshivaraju/jobstore/internal/store"
	"github.com/kiranshivaraju/jobstore/pkg/models"
	"golang.org/x/sync/errgroup"
)

// JobStore is the system of record as seen by the service.
type JobStore interface {
	CreateJob(ctx context.Context, job *models.Job) error
	GetJob(ctx context.Context, id uuid.UUID, withCandidates bool) (*models.Job, error)
	UpdateJob(ctx context.Context, job *models.Job) error
	DeleteJob(ctx context.Context, id uuid.UUID) error
	ListJobs(ctx context.Context, filter store.JobFilter) ([]*models.Job, int, error)
}

// RoleStore reports which role ids exist.
type RoleStore interface {
	FindExistingRoleIDs(ctx context.Context, ids []string) ([]string, error)
}

// SkillChecker reports whether a single skill id exists.
type SkillChecker interface {
	SkillExists(ctx context.Context, skillID string) (bool, error)
}

// Publisher emits change events. It must not block and never fails the caller.
type Publisher interface {
	Publish(topic string, key uuid.UUID, payload any)
}

// Deps holds the collaborators of a Service. All of them are shared, long-lived clients.
type Deps struct {
	Guard           *access.Guard
	Store           JobStore
	Roles           RoleStore
	Skills          SkillChecker
	Index           index.Client
	Events          Publisher
	MaxResultWindow int
	Logger          *slog.Logger
}

// Service orchestrates job reads and writes across the database and the search index.
type Service struct {
	guard     *access.Guard
	store     JobStore
	roles     RoleStore
	skills    SkillChecker
	index     index.Client
	events    Publisher
	maxWindow int
	logger    *slog.Logger
	now       func() time.Time
}

const defaultMaxResultWindow = 10000

// NewService creates a new Service.
func NewService(d Deps) *Service {
	logger := d.Logger
	if logger == nil {
		logger = slog.Default()
	}
	window := d.MaxResultWindow
	if window <= 0 {
		window = defaultMaxResultWindow
	}
	return &Service{
		guard:     d.Guard,
		store:     d.Store,
		roles:     d.Roles,
		skills:    d.Skills,
		index:     d.Index,
		events:    d.Events,
		maxWindow: window,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// CreateJob validates the input, mints an id, persists the job and publishes a
// create event once the row is written.
func (s *Service) CreateJob(ctx context.Context, caller models.Caller, in *JobInput) (*models.Job, error) {
	if err := ValidateInput(OpCreate, in); err != nil {
		return nil, err
	}
	if in.IsApplicationPageActive != nil {
		if err := s.guard.CanSetApplicationPage(caller); err != nil {
			return nil, err
		}
	}
	if err := s.guard.CanCreate(ctx, caller, *in.ProjectID); err != nil {
		return nil, err
	}

	skills := canonicalIDs(in.Skills)
	if err := s.checkSkills(ctx, skills); err != nil {
		return nil, err
	}
	roles, err := s.checkRoles(ctx, in.RoleIDs)
	if err != nil {
		return nil, err
	}

	actor, err := s.guard.ResolveActor(ctx, caller)
	if err != nil {
		return nil, err
	}

	now := s.now()
	job := &models.Job{
		ID:        uuid.New(),
		Status:    models.JobStatusSourcing,
		CreatedBy: actor,
		CreatedAt: now,
		UpdatedAt: now,
	}
	applyInput(job, in, true)
	job.Skills = skills
	job.RoleIDs = roles

	if err := s.store.CreateJob(ctx, job); err != nil {
		return nil, fmt.Errorf("create job: %w", err)
	}

	s.events.Publish(events.TopicJobCreate, job.ID, job)
	return job, nil
}

// UpdateJob applies in to the job. With fullReplace every field is taken from in;
// otherwise only present fields change. The prior state travels with the event.
func (s *Service) UpdateJob(ctx context.Context, caller models.Caller, id uuid.UUID, in *JobInput, fullReplace bool) (*models.Job, error) {
	op := OpPatch
	if fullReplace {
		op = OpReplace
	}
	if err := ValidateInput(op, in); err != nil {
		return nil, err
	}
	if in.IsApplicationPageActive != nil {
		if err := s.guard.CanSetApplicationPage(caller); err != nil {
			return nil, err
		}
	}

	current, err := s.store.GetJob(ctx, id, false)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load job: %w", err)
	}

	actor, err := s.guard.ResolveActor(ctx, caller)
	if err != nil {
		return nil, err
	}
	if err := s.guard.CanUpdate(caller, actor, current); err != nil {
		return nil, err
	}
	// Moving a job needs the same right as creating one in the target project.
	if in.ProjectID != nil && *in.ProjectID != current.ProjectID {
		if err := s.guard.CanCreate(ctx, caller, *in.ProjectID); err != nil {
			return nil, err
		}
	}

	skills := canonicalIDs(in.Skills)
	if in.Skills != nil {
		if err := s.checkSkills(ctx, skills); err != nil {
			return nil, err
		}
	}
	roles, err := s.checkRoles(ctx, in.RoleIDs)
	if err != nil {
		return nil, err
	}

	previous := current.Clone()
	updated := current

	applyInput(updated, in, fullReplace)
	if in.Skills != nil {
		updated.Skills = skills
	}
	if in.RoleIDs != nil || fullReplace {
		updated.RoleIDs = roles
	}
	if fullReplace && in.Status == nil {
		updated.Status = models.JobStatusSourcing
	}
	if updated.MinSalary != nil && updated.MaxSalary != nil && *updated.MinSalary > *updated.MaxSalary {
		return nil, invalid("maxSalary", "must not be less than minSalary")
	}
	updated.UpdatedBy = &actor
	updated.UpdatedAt = s.now()

	if err := s.store.UpdateJob(ctx, updated); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("update job: %w", err)
	}

	s.events.Publish(events.TopicJobUpdate, updated.ID, events.UpdatePayload{Job: updated, OldValue: previous})
	return updated, nil
}

// DeleteJob removes a job. Only privileged callers may delete, and the check
// happens before the database is touched.
func (s *Service) DeleteJob(ctx context.Context, caller models.Caller, id uuid.UUID) error {
	if err := s.guard.CanDelete(caller); err != nil {
		return err
	}

	job, err := s.store.GetJob(ctx, id, false)
	if errors.Is(err, store.ErrNotFound) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("load job: %w", err)
	}

	if err := s.store.DeleteJob(ctx, id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("delete job: %w", err)
	}

	s.events.Publish(events.TopicJobDelete, job.ID, job)
	return nil
}

// checkSkills verifies every skill with one concurrent lookup per id.
func (s *Service) checkSkills(ctx context.Context, skills []string) error {
	found := make([]bool, len(skills))

	g, gctx := errgroup.WithContext(ctx)
	for i, id := range skills {
		g.Go(func() error {
			ok, err := s.skills.SkillExists(gctx, id)
			if err != nil {
				return fmt.Errorf("check skill %s: %w", id, err)
			}
			found[i] = ok
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	var missing []string
	for i, ok := range found {
		if !ok {
			missing = append(missing, skills[i])
		}
	}
	if len(missing) > 0 {
		return invalid("skills", "unknown skill ids: "+strings.Join(missing, ", "))
	}
	return nil
}

// checkRoles de-duplicates role ids and verifies that all of them exist.
func (s *Service) checkRoles(ctx context.Context, roleIDs []string) ([]string, error) {
	roles := dedupe(canonicalIDs(roleIDs))
	if len(roles) == 0 {
		return roles, nil
	}

	existing, err := s.roles.FindExistingRoleIDs(ctx, roles)
	if err != nil {
		return nil, fmt.Errorf("check roles: %w", err)
	}

	var missing []string
	for _, id := range roles {
		if !slices.Contains(existing, id) {
			missing = append(missing, id)
		}
	}
	if len(missing) > 0 {
		return nil, invalid("roleIds", "unknown role ids: "+strings.Join(missing, ", "))
	}
	return roles, nil
}

// applyInput copies in onto job. With replace, absent optional fields are cleared;
// otherwise they are left untouched. Skills, roles, status defaults and audit
// fields are handled by the caller. isApplicationPageActive is only changed when present.
func applyInput(job *models.Job, in *JobInput, replace bool) {
	setInt64 := func(dst *int64, src *int64) {
		if src != nil {
			*dst = *src
		}
	}
	setInt := func(dst *int, src *int) {
		if src != nil {
			*dst = *src
		}
	}
	setString := func(dst *string, src *string) {
		if src != nil {
			*dst = strings.TrimSpace(*src)
		}
	}
	setOptional := func(dst **string, src *string) {
		if src != nil || replace {
			*dst = src
		}
	}
	setOptionalInt := func(dst **int, src *int) {
		if src != nil || replace {
			*dst = src
		}
	}

	setInt64(&job.ProjectID, in.ProjectID)
	setString(&job.Title, in.Title)
	setInt(&job.NumPositions, in.NumPositions)
	if in.Status != nil {
		job.Status = *in.Status
	}

	setOptional(&job.ExternalID, in.ExternalID)
	setOptional(&job.Description, in.Description)
	setOptional(&job.ResourceType, in.ResourceType)
	setOptional(&job.RateType, in.RateType)
	setOptional(&job.Workload, in.Workload)
	setOptional(&job.JobLocation, in.JobLocation)
	setOptional(&job.JobTimezone, in.JobTimezone)
	setOptional(&job.Currency, in.Currency)
	setOptionalInt(&job.Duration, in.Duration)
	setOptionalInt(&job.MinSalary, in.MinSalary)
	setOptionalInt(&job.MaxSalary, in.MaxSalary)
	setOptionalInt(&job.HoursPerWeek, in.HoursPerWeek)
	if in.StartDate != nil || replace {
		job.StartDate = in.StartDate
	}

	if in.IsApplicationPageActive != nil {
		job.IsApplicationPageActive = *in.IsApplicationPageActive
	}
}
