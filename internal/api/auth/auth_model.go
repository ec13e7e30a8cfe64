package auth

import (
	"encoding/base64"
	"time"

	"github.com/artisanhub/artisanhub-api/internal/types"
)

// SignupRequest represents the signup request body. Avatar rides inline as
// base64; password is optional (provider-only accounts may set one later).
type SignupRequest struct {
	DisplayName  string `json:"display_name"`
	Email        string `json:"email"`
	Password     string `json:"password,omitempty"`
	BusinessName string `json:"business_name,omitempty"`
	Category     string `json:"category,omitempty"`
	AvatarBase64 string `json:"avatar_base64,omitempty"`
}

// LoginRequest represents the login request body.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// SocialLoginRequest carries a provider name and the provider-issued ID token.
type SocialLoginRequest struct {
	Provider string `json:"provider"`
	IDToken  string `json:"id_token"`
}

// ClientAvatar is the redacted avatar view. Inline payloads are re-encoded
// to base64 for transport; external avatars expose the URL only.
type ClientAvatar struct {
	Kind string `json:"kind,omitempty"`
	Data string `json:"data,omitempty"`
	URL  string `json:"url,omitempty"`
}

// ClientUser is the public profile view of an identity. It never carries the
// credential hash.
type ClientUser struct {
	ID           string       `json:"id"`
	DisplayName  string       `json:"display_name"`
	Email        string       `json:"email"`
	BusinessName string       `json:"business_name"`
	Category     string       `json:"category"`
	Avatar       ClientAvatar `json:"avatar"`
	Provider     string       `json:"provider"`
	HasPassword  bool         `json:"has_password"`
	CreatedAt    time.Time    `json:"created_at"`
	UpdatedAt    time.Time    `json:"updated_at"`
}

// ToClient redacts an identity for transport.
func ToClient(u *types.User) ClientUser {
	avatar := ClientAvatar{Kind: string(u.Avatar.Kind)}
	switch u.Avatar.Kind {
	case types.AvatarInline:
		avatar.Data = base64.StdEncoding.EncodeToString(u.Avatar.Data)
	case types.AvatarExternal:
		avatar.URL = u.Avatar.URL
	}

	return ClientUser{
		ID:           u.ID.String(),
		DisplayName:  u.DisplayName,
		Email:        u.Email,
		BusinessName: u.BusinessName,
		Category:     u.Category,
		Avatar:       avatar,
		Provider:     u.Provider,
		HasPassword:  u.HasPassword(),
		CreatedAt:    u.CreatedAt,
		UpdatedAt:    u.UpdatedAt,
	}
}

// AuthResponse is returned by signup, login and social login.
type AuthResponse struct {
	Token string     `json:"token"`
	User  ClientUser `json:"user"`
}

// MeResponse is returned by the whoami endpoint.
type MeResponse struct {
	User ClientUser `json:"user"`
}
