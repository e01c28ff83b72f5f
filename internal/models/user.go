package models

// UserRole represents the available roles for the RBAC system.
type UserRole string

const (
	RoleSuperAdmin UserRole = "SUPERADMIN"
	RoleAdmin      UserRole = "ADMIN"
	RoleTeacher    UserRole = "TEACHER"
	RoleStudent    UserRole = "STUDENT"
)

// Actor is the caller identity resolved by the authorization collaborator.
type Actor struct {
	UserID    string
	Role      UserRole
	TeacherID *string
}
