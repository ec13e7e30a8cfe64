package auth

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/markbates/goth"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"golang.org/x/crypto/bcrypt"

	"github.com/artisanhub/artisanhub-api/app/observability/metrics"
	"github.com/artisanhub/artisanhub-api/config"
	"github.com/artisanhub/artisanhub-api/internal/types"
)

// bcryptCost matches the cost the original accounts were hashed with.
const bcryptCost = 12

// dummyHash is compared against when login hits an unknown email, so both
// failure paths cost one bcrypt verification and stay indistinguishable.
var dummyHash, _ = bcrypt.GenerateFromPassword([]byte("enumeration-resistance"), bcryptCost)

// AuthService resolves credentials to identities and mints session tokens.
type AuthService interface {
	Register(ctx context.Context, req SignupRequest) (*types.User, string, error)
	Login(ctx context.Context, email, password string) (*types.User, string, error)
	SocialLogin(ctx context.Context, provider, idToken string) (*types.User, string, error)
	GetUserByID(ctx context.Context, userID string) (*types.User, error)
}

var _ AuthService = (*AuthServiceImpl)(nil)

type AuthServiceImpl struct {
	logger         *slog.Logger
	repo           UserRepo
	tokens         *TokenIssuer
	verifiers      VerifierRegistry
	maxAvatarBytes int
}

func NewAuthService(repo UserRepo, tokens *TokenIssuer, verifiers VerifierRegistry, cfg config.AuthConfig, logger *slog.Logger) *AuthServiceImpl {
	maxAvatar := cfg.MaxAvatarBytes
	if maxAvatar <= 0 {
		maxAvatar = 1 << 20
	}
	return &AuthServiceImpl{
		logger:         logger,
		repo:           repo,
		tokens:         tokens,
		verifiers:      verifiers,
		maxAvatarBytes: maxAvatar,
	}
}

// Register creates a local identity. All validation runs before any store
// mutation; the unique index stays the authority on duplicate emails.
func (s *AuthServiceImpl) Register(ctx context.Context, req SignupRequest) (*types.User, string, error) {
	defer s.observe(ctx, "register", time.Now())

	if strings.TrimSpace(req.DisplayName) == "" || strings.TrimSpace(req.Email) == "" {
		return nil, "", fmt.Errorf("%w: display_name and email are required", types.ErrMissingField)
	}

	avatar, err := s.decodeAvatar(req.AvatarBase64)
	if err != nil {
		return nil, "", err
	}

	email := strings.ToLower(strings.TrimSpace(req.Email))

	// Pre-check for a friendly error on the common path. The race between
	// two signups for one email is settled by the store, not by this check.
	if _, err := s.repo.GetUserByEmail(ctx, email); err == nil {
		return nil, "", types.ErrConflict
	} else if !errors.Is(err, types.ErrNotFound) {
		return nil, "", err
	}

	passwordHash := ""
	if req.Password != "" {
		hashed, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcryptCost)
		if err != nil {
			return nil, "", fmt.Errorf("failed to hash password: %w", err)
		}
		passwordHash = string(hashed)
	}

	displayName := strings.TrimSpace(req.DisplayName)
	businessName := strings.TrimSpace(req.BusinessName)
	if businessName == "" {
		businessName = displayName
	}
	category := strings.TrimSpace(req.Category)
	if category == "" {
		category = types.DefaultCategory
	}

	user := &types.User{
		Email:        email,
		DisplayName:  displayName,
		BusinessName: businessName,
		Category:     category,
		Avatar:       avatar,
		PasswordHash: passwordHash,
		Provider:     types.ProviderLocal,
	}

	created, err := s.repo.CreateUser(ctx, user)
	if err != nil {
		return nil, "", err
	}

	token, err := s.tokens.Issue(created.ID.String(), created.Email)
	if err != nil {
		return nil, "", err
	}

	metrics.Get().SignupRequestsTotal.Add(ctx, 1)
	s.logger.InfoContext(ctx, "User registered", slog.String("user_id", created.ID.String()))
	return created, token, nil
}

// Login authenticates a local credential. Unknown email, missing hash and
// wrong password all collapse into the same error so the response cannot be
// used to probe which emails exist.
func (s *AuthServiceImpl) Login(ctx context.Context, email, password string) (*types.User, string, error) {
	defer s.observe(ctx, "login", time.Now())

	user, err := s.repo.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, types.ErrNotFound) {
			_ = bcrypt.CompareHashAndPassword(dummyHash, []byte(password))
			metrics.Get().AuthFailuresTotal.Add(ctx, 1)
			return nil, "", types.ErrUnauthenticated
		}
		return nil, "", err
	}

	if !user.HasPassword() {
		_ = bcrypt.CompareHashAndPassword(dummyHash, []byte(password))
		metrics.Get().AuthFailuresTotal.Add(ctx, 1)
		return nil, "", types.ErrUnauthenticated
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		metrics.Get().AuthFailuresTotal.Add(ctx, 1)
		return nil, "", types.ErrUnauthenticated
	}

	token, err := s.tokens.Issue(user.ID.String(), user.Email)
	if err != nil {
		return nil, "", err
	}

	metrics.Get().LoginRequestsTotal.Add(ctx, 1)
	return user, token, nil
}

// SocialLogin verifies a provider assertion and finds or creates the matching
// identity. Repeated identical logins are idempotent: nothing is written
// unless a synced field actually changed.
func (s *AuthServiceImpl) SocialLogin(ctx context.Context, provider, idToken string) (*types.User, string, error) {
	defer s.observe(ctx, "social_login", time.Now())

	verifier, ok := s.verifiers[provider]
	if !ok {
		return nil, "", types.ErrUnknownProvider
	}

	profile, err := verifier.Verify(ctx, idToken)
	if err != nil {
		metrics.Get().AuthFailuresTotal.Add(ctx, 1)
		if errors.Is(err, types.ErrAssertionInvalid) {
			return nil, "", err
		}
		return nil, "", fmt.Errorf("%w: %v", types.ErrAssertionInvalid, err)
	}
	if profile.Email == "" {
		return nil, "", types.ErrMissingEmail
	}

	user, err := s.getOrCreateUserFromProvider(ctx, provider, profile)
	if err != nil {
		return nil, "", err
	}

	token, err := s.tokens.Issue(user.ID.String(), user.Email)
	if err != nil {
		return nil, "", err
	}

	metrics.Get().SocialLoginRequestsTotal.Add(ctx, 1)
	return user, token, nil
}

func (s *AuthServiceImpl) getOrCreateUserFromProvider(ctx context.Context, provider string, profile goth.User) (*types.User, error) {
	email := strings.ToLower(strings.TrimSpace(profile.Email))

	user, err := s.repo.GetUserByEmail(ctx, email)
	if err != nil {
		if !errors.Is(err, types.ErrNotFound) {
			return nil, err
		}

		displayName := profile.Name
		if displayName == "" {
			displayName = localPart(email)
		}
		avatar := types.Avatar{}
		if profile.AvatarURL != "" {
			avatar = types.Avatar{Kind: types.AvatarExternal, URL: profile.AvatarURL}
		}

		created, err := s.repo.CreateUser(ctx, &types.User{
			Email:        email,
			DisplayName:  displayName,
			BusinessName: displayName,
			Category:     types.DefaultCategory,
			Avatar:       avatar,
			Provider:     provider,
			ProviderID:   profile.UserID,
		})
		if err != nil {
			if errors.Is(err, types.ErrConflict) {
				// Lost a race against a concurrent first login; the row
				// exists now, load it and fall through to reconcile.
				return s.repo.GetUserByEmail(ctx, email)
			}
			return nil, err
		}
		return created, nil
	}

	// Reconcile provider linkage and avatar; write only on actual change.
	changed := false
	if user.Provider != provider {
		user.Provider = provider
		changed = true
	}
	if profile.UserID != "" && user.ProviderID != profile.UserID {
		user.ProviderID = profile.UserID
		changed = true
	}
	if profile.AvatarURL != "" {
		next := types.Avatar{Kind: types.AvatarExternal, URL: profile.AvatarURL}
		if !user.Avatar.Equal(next) {
			user.Avatar = next
			changed = true
		}
	}

	if changed {
		if err := s.repo.UpdateUser(ctx, user); err != nil {
			return nil, err
		}
	}
	return user, nil
}

func (s *AuthServiceImpl) GetUserByID(ctx context.Context, userID string) (*types.User, error) {
	return s.repo.GetUserByID(ctx, userID)
}

// decodeAvatar turns an optional base64 payload into an inline avatar,
// enforcing the configured byte ceiling before anything touches the store.
func (s *AuthServiceImpl) decodeAvatar(encoded string) (types.Avatar, error) {
	if encoded == "" {
		return types.Avatar{}, nil
	}

	// Tolerate data-URI prefixes from mobile clients.
	if idx := strings.Index(encoded, ","); idx != -1 && strings.HasPrefix(encoded, "data:") {
		encoded = encoded[idx+1:]
	}

	// Cheap upper bound first; decoding only shrinks the payload.
	if base64.StdEncoding.DecodedLen(len(encoded)) > s.maxAvatarBytes+2 {
		return types.Avatar{}, types.ErrPayloadTooLarge
	}

	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return types.Avatar{}, types.ErrInvalidEncoding
	}
	if len(data) > s.maxAvatarBytes {
		return types.Avatar{}, types.ErrPayloadTooLarge
	}

	return types.Avatar{Kind: types.AvatarInline, Data: data}, nil
}

func localPart(email string) string {
	if idx := strings.Index(email, "@"); idx > 0 {
		return email[:idx]
	}
	return email
}

func (s *AuthServiceImpl) observe(ctx context.Context, op string, start time.Time) {
	metrics.Get().AuthDurationSeconds.Record(ctx, time.Since(start).Seconds(),
		metric.WithAttributes(attribute.String("operation", op)))
}
