package types

import (
	"time"

	"github.com/google/uuid"
)

// Auth providers recognized by the resolver. The set is extensible; adding a
// provider means registering a verifier for it in the auth package.
const (
	ProviderLocal  = "local"
	ProviderGoogle = "google"
	ProviderApple  = "apple"
)

// DefaultCategory is assigned to accounts that register without one.
const DefaultCategory = "General"

// AvatarKind discriminates how an avatar is stored.
type AvatarKind string

const (
	AvatarNone     AvatarKind = ""
	AvatarInline   AvatarKind = "inline"   // raw image bytes held in the row
	AvatarExternal AvatarKind = "external" // URL to externally hosted media
)

// Avatar is a tagged variant: either inline bytes or an external URL,
// never both. Kind tells which field is meaningful.
type Avatar struct {
	Kind AvatarKind `json:"kind"`
	Data []byte     `json:"-"`
	URL  string     `json:"url,omitempty"`
}

// Equal reports whether two avatars reference the same content.
func (a Avatar) Equal(b Avatar) bool {
	if a.Kind != b.Kind {
		return false
	}
	switch a.Kind {
	case AvatarInline:
		return string(a.Data) == string(b.Data)
	case AvatarExternal:
		return a.URL == b.URL
	}
	return true
}

// User represents one identity in the credential store.
type User struct {
	ID           uuid.UUID `json:"id"`
	Email        string    `json:"email"` // stored lowercase, unique
	DisplayName  string    `json:"display_name"`
	BusinessName string    `json:"business_name"`
	Category     string    `json:"category"`
	Avatar       Avatar    `json:"avatar"`
	PasswordHash string    `json:"-"` // empty for provider-only accounts
	Provider     string    `json:"provider"`
	ProviderID   string    `json:"provider_id,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// HasPassword reports whether the account can log in with a local password.
// Kept independent of Provider: an account created locally without a password
// behaves exactly like a provider-only one.
func (u *User) HasPassword() bool {
	return u.PasswordHash != ""
}
