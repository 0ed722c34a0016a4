package models

import "time"

// GroupType categorizes what kind of household or circle a group models.
type GroupType string

const (
	GroupTypeCouples      GroupType = "couples"
	GroupTypeOrganization GroupType = "organization"
	GroupTypeFamily       GroupType = "family"
	GroupTypeFriends      GroupType = "friends"
	GroupTypeRoommates    GroupType = "roommates"
	GroupTypeOther        GroupType = "other"
)

// Valid reports whether t is one of the declared group types.
func (t GroupType) Valid() bool {
	switch t {
	case GroupTypeCouples, GroupTypeOrganization, GroupTypeFamily,
		GroupTypeFriends, GroupTypeRoommates, GroupTypeOther:
		return true
	}
	return false
}

// Group represents a shared-expense group. A group owns its members,
// expenses (and transitively splits) and settlements; it is deactivated
// rather than deleted while it still owns any of those.
type Group struct {
	// ID is the unique identifier for the group (UUID format).
	ID string `json:"group_id"`

	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Type        GroupType `json:"type"`
	ImageURL    string    `json:"image_url,omitempty"`

	// IsActive is false once the group has been archived.
	IsActive bool `json:"is_active"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// MemberRole is the role a user holds inside a group.
type MemberRole string

const (
	RoleAdmin  MemberRole = "admin"
	RoleMember MemberRole = "member"
)

// Valid reports whether r is a declared role.
func (r MemberRole) Valid() bool {
	return r == RoleAdmin || r == RoleMember
}

// Member is one user's membership in a group. Memberships are
// soft-deactivated on leave/removal so they can be reactivated later
// without duplicating rows.
type Member struct {
	// ID is the unique identifier for the membership (UUID format).
	ID string `json:"member_id"`

	GroupID string     `json:"group_id"`
	UserID  string     `json:"user_id"`
	Role    MemberRole `json:"role"`

	JoinedAt time.Time `json:"joined_at"`
	IsActive bool      `json:"is_active"`
}
