// Package access decides whether a caller may read or change jobs.
package access

import (
	"context"
	"errors"
	"fmt"

	"github.com/kiranshivaraju/jobstore/pkg/models"
)

var (
	// ErrForbidden is returned for every denied decision. It is never a not-found.
	ErrForbidden = errors.New("forbidden")
	// ErrUnknownUser is returned by identity resolvers when the external id maps to nobody.
	ErrUnknownUser = errors.New("unknown user")
)

// IdentityResolver maps an external user id onto the internal user id.
type IdentityResolver interface {
	ResolveUserID(ctx context.Context, externalID string) (string, error)
}

// MembershipChecker reports project membership.
type MembershipChecker interface {
	IsMember(ctx context.Context, userID string, projectID int64) (bool, error)
}

// Guard holds the permission rules. It keeps no state between calls.
type Guard struct {
	identity   IdentityResolver
	membership MembershipChecker
}

func NewGuard(identity IdentityResolver, membership MembershipChecker) *Guard {
	return &Guard{identity: identity, membership: membership}
}

// CanView allows managers, machines and connect managers outright. Anyone else
// must be a member of the project.
func (g *Guard) CanView(ctx context.Context, caller models.Caller, projectID int64) error {
	if caller.IsPrivileged() || caller.IsConnectManager() {
		return nil
	}

	member, err := g.membership.IsMember(ctx, caller.UserID, projectID)
	if err != nil {
		return fmt.Errorf("check project membership: %w", err)
	}
	if !member {
		return fmt.Errorf("%w: not a member of project %d", ErrForbidden, projectID)
	}
	return nil
}

// CanCreate follows the same membership rule as CanView.
func (g *Guard) CanCreate(ctx context.Context, caller models.Caller, projectID int64) error {
	return g.CanView(ctx, caller, projectID)
}

// CanUpdate allows privileged callers and the job's creator. actorID is the
// caller's internal id as returned by ResolveActor.
func (g *Guard) CanUpdate(caller models.Caller, actorID string, job *models.Job) error {
	if caller.IsPrivileged() {
		return nil
	}
	if actorID == "" || actorID != job.CreatedBy {
		return fmt.Errorf("%w: only the creator may update job %s", ErrForbidden, job.ID)
	}
	return nil
}

// CanDelete allows privileged callers only. Membership is not enough.
func (g *Guard) CanDelete(caller models.Caller) error {
	if caller.IsPrivileged() {
		return nil
	}
	return fmt.Errorf("%w: delete requires manage permission", ErrForbidden)
}

// CanSetApplicationPage allows machine callers only.
func (g *Guard) CanSetApplicationPage(caller models.Caller) error {
	if caller.IsMachine {
		return nil
	}
	return fmt.Errorf("%w: isApplicationPageActive can only be set by a machine caller", ErrForbidden)
}

// ResolveActor returns the internal id recorded in audit fields for the caller.
func (g *Guard) ResolveActor(ctx context.Context, caller models.Caller) (string, error) {
	if caller.IsMachine {
		return models.MachineAuditUserID, nil
	}

	userID, err := g.identity.ResolveUserID(ctx, caller.UserID)
	if errors.Is(err, ErrUnknownUser) {
		return "", fmt.Errorf("%w: unknown caller", ErrForbidden)
	}
	if err != nil {
		return "", fmt.Errorf("resolve caller: %w", err)
	}
	return userID, nil
}
