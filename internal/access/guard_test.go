package access_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/kiranshivaraju/jobstore/internal/access"
	"github.com/kiranshivaraju/jobstore/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- fakes ---

type fakeDirectory struct {
	users        map[string]string // external -> internal
	members      map[int64][]string
	memberErr    error
	resolveErr   error
	memberCalls  int
	resolveCalls int
}

func (f *fakeDirectory) ResolveUserID(_ context.Context, externalID string) (string, error) {
	f.resolveCalls++
	if f.resolveErr != nil {
		return "", f.resolveErr
	}
	id, ok := f.users[externalID]
	if !ok {
		return "", fmt.Errorf("%w: %s", access.ErrUnknownUser, externalID)
	}
	return id, nil
}

func (f *fakeDirectory) IsMember(_ context.Context, userID string, projectID int64) (bool, error) {
	f.memberCalls++
	if f.memberErr != nil {
		return false, f.memberErr
	}
	for _, m := range f.members[projectID] {
		if m == userID {
			return true, nil
		}
	}
	return false, nil
}

func newGuard() (*access.Guard, *fakeDirectory) {
	dir := &fakeDirectory{
		users:   map[string]string{"ext-alice": "alice", "ext-bob": "bob"},
		members: map[int64][]string{7: {"ext-alice"}},
	}
	return access.NewGuard(dir, dir), dir
}

var (
	manager    = models.Caller{UserID: "ext-mgr", Roles: []string{"Administrator"}}
	booking    = models.Caller{UserID: "ext-bm", Roles: []string{"bookingmanager"}}
	machine    = models.Caller{UserID: "svc", IsMachine: true}
	connect    = models.Caller{UserID: "ext-cm", Roles: []string{"connect manager"}}
	alice      = models.Caller{UserID: "ext-alice"}
	bob        = models.Caller{UserID: "ext-bob"}
	ctx        = context.Background()
	aliceJobID = uuid.New()
)

// --- CanView / CanCreate ---

func TestCanView_BypassRoles(t *testing.T) {
	for name, caller := range map[string]models.Caller{
		"manager": manager, "booking manager": booking, "machine": machine, "connect manager": connect,
	} {
		t.Run(name, func(t *testing.T) {
			g, dir := newGuard()
			assert.NoError(t, g.CanView(ctx, caller, 99))
			assert.NoError(t, g.CanCreate(ctx, caller, 99))
			assert.Zero(t, dir.memberCalls, "bypass must not consult membership")
		})
	}
}

func TestCanView_Member(t *testing.T) {
	g, dir := newGuard()
	assert.NoError(t, g.CanView(ctx, alice, 7))
	assert.Equal(t, 1, dir.memberCalls)
}

func TestCanView_NonMemberIsForbidden(t *testing.T) {
	g, _ := newGuard()
	err := g.CanView(ctx, bob, 7)
	assert.ErrorIs(t, err, access.ErrForbidden)

	err = g.CanCreate(ctx, alice, 8)
	assert.ErrorIs(t, err, access.ErrForbidden)
}

func TestCanView_MembershipLookupFails(t *testing.T) {
	g, dir := newGuard()
	dir.memberErr = errors.New("platform down")

	err := g.CanView(ctx, alice, 7)
	require.Error(t, err)
	assert.NotErrorIs(t, err, access.ErrForbidden)
}

// --- CanUpdate ---

func TestCanUpdate(t *testing.T) {
	job := &models.Job{ID: aliceJobID, ProjectID: 7, CreatedBy: "alice"}

	tests := []struct {
		name      string
		caller    models.Caller
		actor     string
		forbidden bool
	}{
		{"creator", alice, "alice", false},
		{"other user", bob, "bob", true},
		{"manager", manager, "mgr", false},
		{"machine", machine, models.MachineAuditUserID, false},
		{"connect manager is not the creator", connect, "cm", true},
		{"unresolved actor", alice, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g, dir := newGuard()
			err := g.CanUpdate(tt.caller, tt.actor, job)
			if tt.forbidden {
				assert.ErrorIs(t, err, access.ErrForbidden)
			} else {
				assert.NoError(t, err)
			}
			assert.Zero(t, dir.resolveCalls)
		})
	}
}

func TestCanUpdate_NoCreatorNeverMatches(t *testing.T) {
	g, _ := newGuard()
	assert.ErrorIs(t, g.CanUpdate(alice, "", &models.Job{}), access.ErrForbidden)
}

// --- CanDelete / CanSetApplicationPage ---

func TestCanDelete(t *testing.T) {
	g, _ := newGuard()

	assert.NoError(t, g.CanDelete(manager))
	assert.NoError(t, g.CanDelete(machine))
	assert.ErrorIs(t, g.CanDelete(alice), access.ErrForbidden)
	assert.ErrorIs(t, g.CanDelete(connect), access.ErrForbidden)
}

func TestCanSetApplicationPage(t *testing.T) {
	g, _ := newGuard()

	assert.NoError(t, g.CanSetApplicationPage(machine))
	assert.ErrorIs(t, g.CanSetApplicationPage(manager), access.ErrForbidden)
	assert.ErrorIs(t, g.CanSetApplicationPage(alice), access.ErrForbidden)
}

// --- ResolveActor ---

func TestResolveActor(t *testing.T) {
	g, dir := newGuard()

	id, err := g.ResolveActor(ctx, machine)
	require.NoError(t, err)
	assert.Equal(t, models.MachineAuditUserID, id)
	assert.Zero(t, dir.resolveCalls)

	id, err = g.ResolveActor(ctx, alice)
	require.NoError(t, err)
	assert.Equal(t, "alice", id)

	_, err = g.ResolveActor(ctx, models.Caller{UserID: "ext-ghost"})
	assert.ErrorIs(t, err, access.ErrForbidden)
}

func TestResolveActor_ResolverFailureIsNotForbidden(t *testing.T) {
	g, dir := newGuard()
	dir.resolveErr = errors.New("timeout")

	_, err := g.ResolveActor(ctx, alice)
	require.Error(t, err)
	assert.NotErrorIs(t, err, access.ErrForbidden)
}
