// Package models defines server-side data models persisted in the database.
package models

// Role is the coarse permission class carried in an identity token.
type Role string

const (
	RoleLearner Role = "learner"
	RoleTutor   Role = "tutor"
	RoleAdmin   Role = "admin"
)

// Actor is an authenticated identity. It is owned by the identity provider
// and only referenced here.
type Actor struct {
	UserID string
	Role   Role
}

func (a Actor) IsAdmin() bool { return a.Role == RoleAdmin }
