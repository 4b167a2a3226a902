package domain

// Role is the permission level of a vault participant. Wire values match the
// contract enum.
type Role uint32

const (
	// RoleMember has read-only access.
	RoleMember Role = 0
	// RoleTreasurer may initiate and approve transfer proposals.
	RoleTreasurer Role = 1
	// RoleAdmin has full operational control, including the override power to
	// reject an approved proposal.
	RoleAdmin Role = 2
)

func (r Role) String() string {
	switch r {
	case RoleMember:
		return "member"
	case RoleTreasurer:
		return "treasurer"
	case RoleAdmin:
		return "admin"
	default:
		return "unknown"
	}
}

// CanPropose reports whether the role may initiate and approve proposals.
func (r Role) CanPropose() bool {
	return r == RoleTreasurer || r == RoleAdmin
}
