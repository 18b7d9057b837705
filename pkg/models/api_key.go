package models

import (
	"time"

	"github.com/google/uuid"
)

// APIKey authenticates a caller at the HTTP edge. The key maps to a user identity
// (or a machine identity) and the roles used by permission checks.
// Raw keys are shown once at creation; only the bcrypt hash is stored.
type APIKey struct {
	ID         uuid.UUID  `db:"id"           json:"id"`
	Name       string     `db:"name"         json:"name"`
	KeyHash    string     `db:"key_hash"     json:"-"`
	KeyPrefix  string     `db:"key_prefix"   json:"key_prefix"`
	UserID     string     `db:"user_id"      json:"user_id"`
	Roles      []string   `db:"roles"        json:"roles"`
	IsMachine  bool       `db:"is_machine"   json:"is_machine"`
	LastUsedAt *time.Time `db:"last_used_at" json:"last_used_at,omitempty"`
	DeletedAt  *time.Time `db:"deleted_at"   json:"-"`
	CreatedAt  time.Time  `db:"created_at"   json:"created_at"`
	UpdatedAt  time.Time  `db:"updated_at"   json:"updated_at"`
}

// Caller returns the identity this key authenticates.
func (k *APIKey) Caller() Caller {
	return Caller{UserID: k.UserID, Roles: k.Roles, IsMachine: k.IsMachine}
}
