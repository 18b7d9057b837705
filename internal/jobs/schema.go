package jobs

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/kiranshivaraju/jobstore/pkg/models"
)

// Op identifies the write operation an input is validated for.
type Op uint8

const (
	OpCreate Op = 1 << iota
	OpPatch
	OpReplace
)

// JobInput is the body of create and update requests. A nil field is absent.
type JobInput struct {
	// ID is accepted for compatibility but never used: ids are minted on create
	// and immutable afterwards.
	ID *uuid.UUID `json:"id,omitempty"`

	ProjectID               *int64     `json:"projectId"`
	ExternalID              *string    `json:"externalId"`
	Title                   *string    `json:"title"`
	Description             *string    `json:"description"`
	StartDate               *time.Time `json:"startDate"`
	Duration                *int       `json:"duration"`
	NumPositions            *int       `json:"numPositions"`
	ResourceType            *string    `json:"resourceType"`
	RateType                *string    `json:"rateType"`
	Workload                *string    `json:"workload"`
	MinSalary               *int       `json:"minSalary"`
	MaxSalary               *int       `json:"maxSalary"`
	HoursPerWeek            *int       `json:"hoursPerWeek"`
	JobLocation             *string    `json:"jobLocation"`
	JobTimezone             *string    `json:"jobTimezone"`
	Currency                *string    `json:"currency"`
	Status                  *string    `json:"status"`
	Skills                  []string   `json:"skills"`
	RoleIDs                 []string   `json:"roleIds"`
	IsApplicationPageActive *bool      `json:"isApplicationPageActive"`
}

// fieldRule is one row of the job schema. check runs only when the field is present.
type fieldRule struct {
	name     string
	required Op
	present  func(*JobInput) bool
	check    func(*JobInput) string
}

const maxTitleLength = 255

var jobSchema = []fieldRule{
	{
		name:     "projectId",
		required: OpCreate | OpReplace,
		present:  func(in *JobInput) bool { return in.ProjectID != nil },
		check:    func(in *JobInput) string { return positive(int64(*in.ProjectID)) },
	},
	{
		name:     "title",
		required: OpCreate | OpReplace,
		present:  func(in *JobInput) bool { return in.Title != nil },
		check: func(in *JobInput) string {
			t := strings.TrimSpace(*in.Title)
			if t == "" {
				return "must not be empty"
			}
			if len(t) > maxTitleLength {
				return fmt.Sprintf("must be at most %d characters", maxTitleLength)
			}
			return ""
		},
	},
	{
		name:     "numPositions",
		required: OpCreate | OpReplace,
		present:  func(in *JobInput) bool { return in.NumPositions != nil },
		check:    func(in *JobInput) string { return positive(int64(*in.NumPositions)) },
	},
	{
		name:     "skills",
		required: OpCreate | OpReplace,
		present:  func(in *JobInput) bool { return in.Skills != nil },
		check: func(in *JobInput) string {
			if len(in.Skills) == 0 {
				return "must contain at least one skill id"
			}
			return uuids(in.Skills)
		},
	},
	{
		name:    "roleIds",
		present: func(in *JobInput) bool { return in.RoleIDs != nil },
		check:   func(in *JobInput) string { return uuids(in.RoleIDs) },
	},
	{
		name:    "status",
		present: func(in *JobInput) bool { return in.Status != nil },
		check:   func(in *JobInput) string { return oneOf(*in.Status, models.JobStatuses) },
	},
	{
		name:    "rateType",
		present: func(in *JobInput) bool { return in.RateType != nil },
		check:   func(in *JobInput) string { return oneOf(*in.RateType, models.RateTypes) },
	},
	{
		name:    "workload",
		present: func(in *JobInput) bool { return in.Workload != nil },
		check:   func(in *JobInput) string { return oneOf(*in.Workload, models.Workloads) },
	},
	{
		name:    "duration",
		present: func(in *JobInput) bool { return in.Duration != nil },
		check:   func(in *JobInput) string { return positive(int64(*in.Duration)) },
	},
	{
		name:    "minSalary",
		present: func(in *JobInput) bool { return in.MinSalary != nil },
		check:   func(in *JobInput) string { return nonNegative(*in.MinSalary) },
	},
	{
		name:    "maxSalary",
		present: func(in *JobInput) bool { return in.MaxSalary != nil },
		check: func(in *JobInput) string {
			if msg := nonNegative(*in.MaxSalary); msg != "" {
				return msg
			}
			if in.MinSalary != nil && *in.MinSalary > *in.MaxSalary {
				return "must not be less than minSalary"
			}
			return ""
		},
	},
	{
		name:    "hoursPerWeek",
		present: func(in *JobInput) bool { return in.HoursPerWeek != nil },
		check: func(in *JobInput) string {
			if *in.HoursPerWeek < 1 || *in.HoursPerWeek > 168 {
				return "must be between 1 and 168"
			}
			return ""
		},
	},
}

// ValidateInput checks in against the job schema for op and reports every
// failing field at once.
func ValidateInput(op Op, in *JobInput) error {
	if in == nil {
		return invalid("body", "is required")
	}

	var fields []FieldError
	for _, rule := range jobSchema {
		if !rule.present(in) {
			if rule.required&op != 0 {
				fields = append(fields, FieldError{Field: rule.name, Message: "is required"})
			}
			continue
		}
		if msg := rule.check(in); msg != "" {
			fields = append(fields, FieldError{Field: rule.name, Message: msg})
		}
	}

	if len(fields) > 0 {
		return &ValidationError{Fields: fields}
	}
	return nil
}

func positive(v int64) string {
	if v < 1 {
		return "must be at least 1"
	}
	return ""
}

func nonNegative(v int) string {
	if v < 0 {
		return "must not be negative"
	}
	return ""
}

func oneOf(v string, allowed []string) string {
	if slices.Contains(allowed, v) {
		return ""
	}
	return "must be one of " + strings.Join(allowed, ", ")
}

func uuids(ids []string) string {
	for _, id := range ids {
		if _, err := uuid.Parse(id); err != nil {
			return fmt.Sprintf("%q is not a valid id", id)
		}
	}
	return ""
}

// canonicalIDs lower-cases and normalizes ids that already passed validation.
func canonicalIDs(ids []string) []string {
	if ids == nil {
		return nil
	}
	out := make([]string, len(ids))
	for i, id := range ids {
		if u, err := uuid.Parse(id); err == nil {
			out[i] = u.String()
		} else {
			out[i] = id
		}
	}
	return out
}

// dedupe keeps the first occurrence of each id.
func dedupe(ids []string) []string {
	if ids == nil {
		return nil
	}
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
