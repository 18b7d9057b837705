// Package models contains shared data models used across the jobstore codebase.
package models

import (
	"time"

	"github.com/google/uuid"
)

const (
	JobStatusSourcing  = "sourcing"
	JobStatusInReview  = "in-review"
	JobStatusAssigned  = "assigned"
	JobStatusClosed    = "closed"
	JobStatusCancelled = "cancelled"
)

// JobStatuses lists every lifecycle status a job may hold.
var JobStatuses = []string{
	JobStatusSourcing,
	JobStatusInReview,
	JobStatusAssigned,
	JobStatusClosed,
	JobStatusCancelled,
}

// RateTypes lists the accepted compensation rate types.
var RateTypes = []string{"hourly", "daily", "weekly", "monthly", "annual"}

// Workloads lists the accepted workload classifications.
var Workloads = []string{"full-time", "fractional"}

// Job is a job posting. PostgreSQL holds the authoritative copy; the search index
// holds a projection with the same JSON shape.
type Job struct {
	ID                      uuid.UUID   `db:"id"                         json:"id"`
	ProjectID               int64       `db:"project_id"                 json:"projectId"`
	ExternalID              *string     `db:"external_id"                json:"externalId,omitempty"`
	Title                   string      `db:"title"                      json:"title"`
	Description             *string     `db:"description"                json:"description,omitempty"`
	StartDate               *time.Time  `db:"start_date"                 json:"startDate,omitempty"`
	Duration                *int        `db:"duration"                   json:"duration,omitempty"`
	NumPositions            int         `db:"num_positions"              json:"numPositions"`
	ResourceType            *string     `db:"resource_type"              json:"resourceType,omitempty"`
	RateType                *string     `db:"rate_type"                  json:"rateType,omitempty"`
	Workload                *string     `db:"workload"                   json:"workload,omitempty"`
	MinSalary               *int        `db:"min_salary"                 json:"minSalary,omitempty"`
	MaxSalary               *int        `db:"max_salary"                 json:"maxSalary,omitempty"`
	HoursPerWeek            *int        `db:"hours_per_week"             json:"hoursPerWeek,omitempty"`
	JobLocation             *string     `db:"job_location"               json:"jobLocation,omitempty"`
	JobTimezone             *string     `db:"job_timezone"               json:"jobTimezone,omitempty"`
	Currency                *string     `db:"currency"                   json:"currency,omitempty"`
	Status                  string      `db:"status"                     json:"status"`
	Skills                  []string    `db:"skills"                     json:"skills"`
	RoleIDs                 []string    `db:"role_ids"                   json:"roleIds,omitempty"`
	IsApplicationPageActive bool        `db:"is_application_page_active" json:"isApplicationPageActive"`
	CreatedBy               string      `db:"created_by"                 json:"createdBy"`
	UpdatedBy               *string     `db:"updated_by"                 json:"updatedBy,omitempty"`
	CreatedAt               time.Time   `db:"created_at"                 json:"createdAt"`
	UpdatedAt               time.Time   `db:"updated_at"                 json:"updatedAt"`
	Candidates              []Candidate `db:"-"                          json:"candidates,omitempty"`
}

// Clone returns a deep copy of the job, used to snapshot prior state before a mutation.
func (j *Job) Clone() *Job {
	if j == nil {
		return nil
	}
	c := *j
	c.ExternalID = clonePtr(j.ExternalID)
	c.Description = clonePtr(j.Description)
	c.StartDate = clonePtr(j.StartDate)
	c.Duration = clonePtr(j.Duration)
	c.ResourceType = clonePtr(j.ResourceType)
	c.RateType = clonePtr(j.RateType)
	c.Workload = clonePtr(j.Workload)
	c.MinSalary = clonePtr(j.MinSalary)
	c.MaxSalary = clonePtr(j.MaxSalary)
	c.HoursPerWeek = clonePtr(j.HoursPerWeek)
	c.JobLocation = clonePtr(j.JobLocation)
	c.JobTimezone = clonePtr(j.JobTimezone)
	c.Currency = clonePtr(j.Currency)
	c.UpdatedBy = clonePtr(j.UpdatedBy)
	if j.Skills != nil {
		c.Skills = append([]string(nil), j.Skills...)
	}
	if j.RoleIDs != nil {
		c.RoleIDs = append([]string(nil), j.RoleIDs...)
	}
	if j.Candidates != nil {
		c.Candidates = append([]Candidate(nil), j.Candidates...)
	}
	return &c
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
