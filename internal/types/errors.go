package types

import "errors"

// Sentinel errors shared across layers. Services return these (optionally
// wrapped with %w); the API boundary maps them to HTTP statuses and never
// forwards internal error text to clients.
var (
	ErrNotFound         = errors.New("requested item not found")
	ErrConflict         = errors.New("email already registered")
	ErrUnauthenticated  = errors.New("authentication required or invalid credentials")
	ErrMissingField     = errors.New("required field missing")
	ErrPayloadTooLarge  = errors.New("payload exceeds configured size limit")
	ErrInvalidEncoding  = errors.New("payload is not valid base64 data")
	ErrUnknownProvider  = errors.New("unknown auth provider")
	ErrAssertionInvalid = errors.New("provider token verification failed")
	ErrMissingEmail     = errors.New("provider token did not contain an email")
	ErrTokenInvalid     = errors.New("invalid token")
	ErrTokenExpired     = errors.New("token has expired")
	ErrStoreUnavailable = errors.New("storage unavailable")
)
