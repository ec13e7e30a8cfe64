package auth

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/markbates/goth"

	"github.com/artisanhub/artisanhub-api/config"
	"github.com/artisanhub/artisanhub-api/internal/types"
)

// AssertionVerifier validates a provider-issued identity assertion and
// returns the verified profile. Implementations check signature, issuer and
// audience; they make no auth decisions and touch no storage.
type AssertionVerifier interface {
	Verify(ctx context.Context, rawIDToken string) (goth.User, error)
}

// VerifierRegistry maps provider names to verifiers. It is assembled at
// startup and injected into the auth service, so tests can swap in stubs.
type VerifierRegistry map[string]AssertionVerifier

// NewVerifierRegistry wires verifiers for every provider with a configured
// client ID. Providers without one are simply absent and login attempts for
// them fail with an unknown-provider error.
func NewVerifierRegistry(ctx context.Context, cfg config.AuthConfig, logger *slog.Logger) VerifierRegistry {
	registry := VerifierRegistry{}

	if cfg.GoogleClientID != "" {
		v, err := NewOIDCVerifier(ctx, "https://accounts.google.com", cfg.GoogleClientID)
		if err != nil {
			logger.Warn("Google verifier unavailable", slog.Any("error", err))
		} else {
			registry[types.ProviderGoogle] = v
		}
	}

	if cfg.AppleClientID != "" {
		v, err := NewOIDCVerifier(ctx, "https://appleid.apple.com", cfg.AppleClientID)
		if err != nil {
			logger.Warn("Apple verifier unavailable", slog.Any("error", err))
		} else {
			registry[types.ProviderApple] = v
		}
	}

	return registry
}

// OIDCVerifier validates ID tokens against a provider's published keys via
// OIDC discovery.
type OIDCVerifier struct {
	verifier *oidc.IDTokenVerifier
}

func NewOIDCVerifier(ctx context.Context, issuerURL, clientID string) (*OIDCVerifier, error) {
	provider, err := oidc.NewProvider(ctx, issuerURL)
	if err != nil {
		return nil, fmt.Errorf("failed to init oidc provider %s: %w", issuerURL, err)
	}
	return &OIDCVerifier{
		verifier: provider.Verifier(&oidc.Config{ClientID: clientID}),
	}, nil
}

func (v *OIDCVerifier) Verify(ctx context.Context, rawIDToken string) (goth.User, error) {
	idToken, err := v.verifier.Verify(ctx, rawIDToken)
	if err != nil {
		return goth.User{}, fmt.Errorf("%w: %v", types.ErrAssertionInvalid, err)
	}

	var claims struct {
		Subject string `json:"sub"`
		Email   string `json:"email"`
		Name    string `json:"name"`
		Picture string `json:"picture"`
	}
	if err := idToken.Claims(&claims); err != nil {
		return goth.User{}, fmt.Errorf("%w: claims parse failed: %v", types.ErrAssertionInvalid, err)
	}
	if claims.Subject == "" {
		return goth.User{}, fmt.Errorf("%w: missing subject claim", types.ErrAssertionInvalid)
	}

	return goth.User{
		UserID:    claims.Subject,
		Email:     claims.Email,
		Name:      claims.Name,
		AvatarURL: claims.Picture,
	}, nil
}
