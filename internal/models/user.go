package models

import "time"

// Role is a closed enum; authorization is an explicit allow-list check per
// operation, never attribute probing.
type Role string

const (
	RoleRequester  Role = "requester"
	RoleManager    Role = "manager"
	RoleFleetAdmin Role = "fleet_admin"
	RoleDriver     Role = "driver"
	RoleAuditor    Role = "auditor"
)

func (r Role) Valid() bool {
	switch r {
	case RoleRequester, RoleManager, RoleFleetAdmin, RoleDriver, RoleAuditor:
		return true
	}
	return false
}

// CanApprove reports whether the role may record approval decisions.
func (r Role) CanApprove() bool {
	return r == RoleManager || r == RoleFleetAdmin
}

// CanAssign reports whether the role may create or update assignments.
func (r Role) CanAssign() bool {
	return r == RoleManager || r == RoleFleetAdmin
}

type User struct {
	ID         int64     `json:"id"`
	Name       string    `json:"name"`
	Email      string    `json:"email"`
	Department string    `json:"department"`
	Role       Role      `json:"role"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}
