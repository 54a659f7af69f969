package models

import "github.com/golang-jwt/jwt/v5"

// Roles issued by the identity provider
const (
	RoleClient     = "client"
	RoleInstructor = "instructor"
	RoleAdmin      = "admin"
)

// ClientClaims are the claims of an identity-provider token. The subject
// is the client id.
type ClientClaims struct {
	jwt.RegisteredClaims
	Role        string   `json:"role"`
	Permissions []string `json:"permissions,omitempty"`
}

// ClientID returns the authenticated principal.
func (c *ClientClaims) ClientID() string {
	return c.Subject
}

// IsAdmin reports whether the token carries the admin role.
func (c *ClientClaims) IsAdmin() bool {
	return c.Role == RoleAdmin
}

// HasPermission checks explicit permissions first, then the role defaults.
func (c *ClientClaims) HasPermission(permission string) bool {
	for _, p := range c.Permissions {
		if p == permission {
			return true
		}
	}
	for _, p := range GetDefaultPermissions(c.Role) {
		if p == permission {
			return true
		}
	}
	return false
}
