package model

import "github.com/golang-jwt/jwt/v5"

// PlayerClaims are the claims of a token issued by the external auth provider.
// The subject is the user id.
type PlayerClaims struct {
	Email string `json:"email,omitempty"`
	jwt.RegisteredClaims
}

// UserID returns the token subject
func (c *PlayerClaims) UserID() string {
	return c.Subject
}
