package models

import "github.com/golang-jwt/jwt/v5"

// SessionClaims is the subset of the access token claims the client reads.
// The client never verifies signatures; it only inspects expiry and identity.
type SessionClaims struct {
	jwt.RegisteredClaims        // Standard JWT claims (sub, iss, aud, exp, iat, etc.)
	Email                string `json:"email"`
	Role                 string `json:"role"` // "authenticated" or "anon"
	SessionID            string `json:"session_id"`
}

// GetUserID returns the user ID from the JWT subject claim.
func (c *SessionClaims) GetUserID() string {
	return c.Subject
}
