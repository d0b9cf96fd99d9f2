// Package models defines data structures used across the application.
// File: models/official.go
package models

// ----------------------- identity model -----------------------

// Role is the authorization role of an authenticated actor.
type Role string

const (
	RoleAdmin     Role = "ADMIN"
	RoleOperator  Role = "OPERATOR"
	RoleJudge     Role = "JUDGE"
	RoleSpectator Role = "SPECTATOR"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleOperator, RoleJudge, RoleSpectator:
		return true
	}
	return false
}

// Actor is the already-authenticated identity issuing a command.
type Actor struct {
	ID   string `json:"id"`
	Role Role   `json:"role"`
}

// Official is a login entry for a competition official.
type Official struct {
	Username string `json:"username"`
	Password string `json:"password"` // bcrypt hash
	Role     Role   `json:"role"`
}

// ---------------------- credentials model ----------------------

// OfficialCreds holds the officials allowed to log in.
type OfficialCreds struct {
	Officials []Official `json:"officials"`
}
