package models

import "github.com/google/uuid"

// Role is the authorization level attached to an identity.
type Role string

const (
	RolePlayer    Role = "player"
	RoleOrganizer Role = "organizer"
	RoleAdmin     Role = "admin"
)

// CanHost reports whether the role may create sessions.
func (r Role) CanHost() bool {
	return r == RoleOrganizer || r == RoleAdmin
}

// Identity is a verified user as reported by the identity provider.
type Identity struct {
	UserID uuid.UUID `json:"userId"`
	Role   Role      `json:"role"`
	Name   string    `json:"name"`
	Avatar string    `json:"avatar,omitempty"`
}
