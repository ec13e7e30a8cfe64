package types

import "github.com/golang-jwt/jwt/v5"

// Claims is the JWT payload issued on successful authentication.
type Claims struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
	jwt.RegisteredClaims
}
