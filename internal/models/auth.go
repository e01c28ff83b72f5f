package models

import "github.com/golang-jwt/jwt/v5"

// JWTClaims represents the JWT payload for access tokens issued by the identity service.
type JWTClaims struct {
	UserID    string   `json:"user_id"`
	Role      UserRole `json:"role"`
	Email     string   `json:"email"`
	TeacherID string   `json:"teacher_id,omitempty"`
	jwt.RegisteredClaims
}

// Actor converts the claims into the identity consumed by the engine.
func (c *JWTClaims) Actor() Actor {
	if c == nil {
		return Actor{}
	}
	actor := Actor{UserID: c.UserID, Role: c.Role}
	if c.TeacherID != "" {
		id := c.TeacherID
		actor.TeacherID = &id
	}
	return actor
}
