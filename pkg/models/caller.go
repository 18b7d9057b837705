package models

import "strings"

const (
	RoleAdministrator  = "administrator"
	RoleBookingManager = "bookingmanager"
	RoleConnectManager = "connect manager"
)

// MachineAuditUserID is recorded as creator/updater for writes made by machine callers.
const MachineAuditUserID = "00000000-0000-0000-0000-000000000000"

// Caller is the authenticated identity behind a request.
type Caller struct {
	UserID    string   // external user id, resolved to an internal id on demand
	Roles     []string
	IsMachine bool
}

// HasManagePermission reports whether the caller holds an elevated management role.
func (c Caller) HasManagePermission() bool {
	return c.hasRole(RoleAdministrator) || c.hasRole(RoleBookingManager)
}

func (c Caller) IsConnectManager() bool {
	return c.hasRole(RoleConnectManager)
}

// IsPrivileged reports whether the caller may mutate any job regardless of ownership.
func (c Caller) IsPrivileged() bool {
	return c.IsMachine || c.HasManagePermission()
}

func (c Caller) hasRole(role string) bool {
	for _, r := range c.Roles {
		if strings.EqualFold(strings.TrimSpace(r), role) {
			return true
		}
	}
	return false
}
