package models

import (
	"time"

	"github.com/google/uuid"
)

// Candidate links a person to a job. Its lifecycle is owned elsewhere; jobstore only reads it.
type Candidate struct {
	ID         uuid.UUID `db:"id"          json:"id"`
	JobID      uuid.UUID `db:"job_id"      json:"jobId"`
	UserID     string    `db:"user_id"     json:"userId"`
	Status     string    `db:"status"      json:"status"`
	ExternalID *string   `db:"external_id" json:"externalId,omitempty"`
	Resume     *string   `db:"resume"      json:"resume,omitempty"`
	Remark     *string   `db:"remark"      json:"remark,omitempty"`
	CreatedBy  string    `db:"created_by"  json:"createdBy"`
	UpdatedBy  *string   `db:"updated_by"  json:"updatedBy,omitempty"`
	CreatedAt  time.Time `db:"created_at"  json:"createdAt"`
	UpdatedAt  time.Time `db:"updated_at"  json:"updatedAt"`
}
