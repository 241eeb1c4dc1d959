package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Role represents user roles in the system
type Role string

const (
	RoleAdmin      Role = "admin"
	RoleSupervisor Role = "supervisor"
	RoleOperator   Role = "operator"
	RoleDispatcher Role = "dispatcher"
	RoleDriver     Role = "driver"
	RoleAuditor    Role = "auditor"
)

// User represents a user in the system. For drivers, TruckAssigned holds
// the truck number of their current active dispatch, if any.
type User struct {
	ID            primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Name          string             `bson:"name" json:"name"`
	Email         string             `bson:"email" json:"email"`
	PasswordHash  string             `bson:"password_hash" json:"-"`
	Role          Role               `bson:"role" json:"role"`
	Phone         string             `bson:"phone,omitempty" json:"phone,omitempty"`
	TruckAssigned string             `bson:"truck_assigned,omitempty" json:"truck_assigned,omitempty"`
	IsActive      bool               `bson:"is_active" json:"is_active"`
	LastLogin     *time.Time         `bson:"last_login,omitempty" json:"last_login,omitempty"`
	CreatedAt     time.Time          `bson:"created_at" json:"created_at"`
	UpdatedAt     time.Time          `bson:"updated_at" json:"updated_at"`
}

// LoginRequest represents a login request
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// RegisterRequest represents a user registration request
type RegisterRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Phone    string `json:"phone"`
	Role     Role   `json:"role"`
}

// LoginResponse represents a successful login response
type LoginResponse struct {
	Token        string `json:"token"`
	RefreshToken string `json:"refresh_token"`
	User         User   `json:"user"`
}

// Claims represents JWT claims
type Claims struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
	Role   Role   `json:"role"`
	Exp    int64  `json:"exp"`
}

// IsValidRole checks if a role is valid
func IsValidRole(role Role) bool {
	switch role {
	case RoleAdmin, RoleSupervisor, RoleOperator, RoleDispatcher, RoleDriver, RoleAuditor:
		return true
	default:
		return false
	}
}

// HasPermission checks if a user has permission for a specific action
func (u *User) HasPermission(action string) bool {
	switch u.Role {
	case RoleAdmin:
		return true
	case RoleSupervisor:
		return action != "delete_user" && action != "manage_users"
	case RoleDispatcher:
		return action == "view_processes" || action == "create_process" ||
			action == "assign_driver" || action == "view_orders" ||
			action == "create_order" || action == "update_order"
	case RoleOperator:
		return action == "view_processes" || action == "complete_stage" ||
			action == "resolve_exception" || action == "view_exceptions"
	case RoleDriver:
		return action == "view_own_dispatches" || action == "complete_stage" ||
			action == "submit_proof"
	case RoleAuditor:
		return action == "view_processes" || action == "view_exceptions" ||
			action == "view_orders" || action == "view_reports"
	default:
		return false
	}
}
