package models

import "github.com/golang-jwt/jwt/v5"

// UserRole is the role carried by an access token.
type UserRole string

const (
	RoleSuperAdmin UserRole = "SUPERADMIN"
	RoleAdmin      UserRole = "ADMIN"
	RoleViewer     UserRole = "VIEWER"
)

// JWTClaims is the payload of access tokens issued by the identity provider.
// Only the subject and role are used for authorisation.
type JWTClaims struct {
	UserID string   `json:"user_id"`
	Role   UserRole `json:"role"`
	Email  string   `json:"email,omitempty"`
	jwt.RegisteredClaims
}

// Actor returns the best identifier for audit logs.
func (c *JWTClaims) Actor() string {
	if c == nil {
		return ""
	}
	if c.UserID != "" {
		return c.UserID
	}
	if c.Subject != "" {
		return c.Subject
	}
	return c.Email
}
