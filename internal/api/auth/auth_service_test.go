package auth

import (
	"context"
	"encoding/base64"
	"log/slog"
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/markbates/goth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/artisanhub/artisanhub-api/app/observability/metrics"
	"github.com/artisanhub/artisanhub-api/config"
	"github.com/artisanhub/artisanhub-api/internal/types"
)

func TestMain(m *testing.M) {
	metrics.InitAppMetrics()
	os.Exit(m.Run())
}

// MockUserRepo is a mock implementation of the UserRepo interface.
type MockUserRepo struct {
	mock.Mock
}

func (m *MockUserRepo) GetUserByEmail(ctx context.Context, email string) (*types.User, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*types.User), args.Error(1)
}

func (m *MockUserRepo) GetUserByID(ctx context.Context, userID string) (*types.User, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*types.User), args.Error(1)
}

func (m *MockUserRepo) CreateUser(ctx context.Context, user *types.User) (*types.User, error) {
	args := m.Called(ctx, user)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*types.User), args.Error(1)
}

func (m *MockUserRepo) UpdateUser(ctx context.Context, user *types.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

// stubVerifier returns a canned profile or error.
type stubVerifier struct {
	user goth.User
	err  error
}

func (s stubVerifier) Verify(ctx context.Context, rawIDToken string) (goth.User, error) {
	return s.user, s.err
}

func newTestService(repo UserRepo, verifiers VerifierRegistry) *AuthServiceImpl {
	tokens := NewTokenIssuer(testJWTConfig())
	return NewAuthService(repo, tokens, verifiers, config.AuthConfig{MaxAvatarBytes: 1 << 20}, slog.Default())
}

func TestRegister(t *testing.T) {
	ctx := context.Background()

	t.Run("Success", func(t *testing.T) {
		mockRepo := new(MockUserRepo)
		service := newTestService(mockRepo, nil)

		mockRepo.On("GetUserByEmail", ctx, "alice@x.com").Return(nil, types.ErrNotFound).Once()
		mockRepo.On("CreateUser", ctx, mock.AnythingOfType("*types.User")).
			Run(func(args mock.Arguments) {
				u := args.Get(1).(*types.User)
				assert.Equal(t, "alice@x.com", u.Email)
				assert.Equal(t, "Alice", u.DisplayName)
				assert.Equal(t, "Alice", u.BusinessName)
				assert.Equal(t, types.DefaultCategory, u.Category)
				assert.Equal(t, types.ProviderLocal, u.Provider)
				assert.NotEmpty(t, u.PasswordHash)
				assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte("pw123")))
			}).
			Return(&types.User{ID: uuid.New(), Email: "alice@x.com", DisplayName: "Alice"}, nil).Once()

		user, token, err := service.Register(ctx, SignupRequest{
			DisplayName: "Alice",
			Email:       "Alice@X.com",
			Password:    "pw123",
		})

		require.NoError(t, err)
		assert.NotEmpty(t, token)
		assert.Equal(t, "alice@x.com", user.Email)
		mockRepo.AssertExpectations(t)
	})

	t.Run("MissingFields", func(t *testing.T) {
		mockRepo := new(MockUserRepo)
		service := newTestService(mockRepo, nil)

		_, _, err := service.Register(ctx, SignupRequest{Email: "alice@x.com"})
		assert.ErrorIs(t, err, types.ErrMissingField)

		_, _, err = service.Register(ctx, SignupRequest{DisplayName: "Alice"})
		assert.ErrorIs(t, err, types.ErrMissingField)

		mockRepo.AssertNotCalled(t, "CreateUser")
	})

	t.Run("DuplicateEmail", func(t *testing.T) {
		mockRepo := new(MockUserRepo)
		service := newTestService(mockRepo, nil)

		existing := &types.User{ID: uuid.New(), Email: "alice@x.com"}
		mockRepo.On("GetUserByEmail", ctx, "alice@x.com").Return(existing, nil).Once()

		_, _, err := service.Register(ctx, SignupRequest{DisplayName: "Alice", Email: "ALICE@x.com"})
		assert.ErrorIs(t, err, types.ErrConflict)
		mockRepo.AssertNotCalled(t, "CreateUser")
	})

	t.Run("DuplicateEmailRace", func(t *testing.T) {
		// The pre-check missed a concurrent signup; the unique index wins.
		mockRepo := new(MockUserRepo)
		service := newTestService(mockRepo, nil)

		mockRepo.On("GetUserByEmail", ctx, "alice@x.com").Return(nil, types.ErrNotFound).Once()
		mockRepo.On("CreateUser", ctx, mock.AnythingOfType("*types.User")).Return(nil, types.ErrConflict).Once()

		_, _, err := service.Register(ctx, SignupRequest{DisplayName: "Alice", Email: "alice@x.com"})
		assert.ErrorIs(t, err, types.ErrConflict)
		mockRepo.AssertExpectations(t)
	})

	t.Run("NoPassword", func(t *testing.T) {
		mockRepo := new(MockUserRepo)
		service := newTestService(mockRepo, nil)

		mockRepo.On("GetUserByEmail", ctx, "bob@x.com").Return(nil, types.ErrNotFound).Once()
		mockRepo.On("CreateUser", ctx, mock.AnythingOfType("*types.User")).
			Run(func(args mock.Arguments) {
				u := args.Get(1).(*types.User)
				assert.Empty(t, u.PasswordHash)
			}).
			Return(&types.User{ID: uuid.New(), Email: "bob@x.com"}, nil).Once()

		_, _, err := service.Register(ctx, SignupRequest{DisplayName: "Bob", Email: "bob@x.com"})
		require.NoError(t, err)
		mockRepo.AssertExpectations(t)
	})

	t.Run("AvatarAtLimit", func(t *testing.T) {
		mockRepo := new(MockUserRepo)
		service := newTestService(mockRepo, nil)
		service.maxAvatarBytes = 64

		payload := base64.StdEncoding.EncodeToString(make([]byte, 64))
		mockRepo.On("GetUserByEmail", ctx, "alice@x.com").Return(nil, types.ErrNotFound).Once()
		mockRepo.On("CreateUser", ctx, mock.AnythingOfType("*types.User")).
			Run(func(args mock.Arguments) {
				u := args.Get(1).(*types.User)
				assert.Equal(t, types.AvatarInline, u.Avatar.Kind)
				assert.Len(t, u.Avatar.Data, 64)
			}).
			Return(&types.User{ID: uuid.New(), Email: "alice@x.com"}, nil).Once()

		_, _, err := service.Register(ctx, SignupRequest{
			DisplayName:  "Alice",
			Email:        "alice@x.com",
			AvatarBase64: payload,
		})
		require.NoError(t, err)
		mockRepo.AssertExpectations(t)
	})

	t.Run("AvatarTooLarge", func(t *testing.T) {
		mockRepo := new(MockUserRepo)
		service := newTestService(mockRepo, nil)
		service.maxAvatarBytes = 64

		payload := base64.StdEncoding.EncodeToString(make([]byte, 65))
		_, _, err := service.Register(ctx, SignupRequest{
			DisplayName:  "Alice",
			Email:        "alice@x.com",
			AvatarBase64: payload,
		})
		assert.ErrorIs(t, err, types.ErrPayloadTooLarge)
		mockRepo.AssertNotCalled(t, "CreateUser")
	})

	t.Run("AvatarBadEncoding", func(t *testing.T) {
		mockRepo := new(MockUserRepo)
		service := newTestService(mockRepo, nil)

		_, _, err := service.Register(ctx, SignupRequest{
			DisplayName:  "Alice",
			Email:        "alice@x.com",
			AvatarBase64: "this is not base64!!!",
		})
		assert.ErrorIs(t, err, types.ErrInvalidEncoding)
		mockRepo.AssertNotCalled(t, "CreateUser")
	})
}

func TestLogin(t *testing.T) {
	ctx := context.Background()
	hashed, _ := bcrypt.GenerateFromPassword([]byte("correct-password"), bcrypt.MinCost)

	t.Run("Success", func(t *testing.T) {
		mockRepo := new(MockUserRepo)
		service := newTestService(mockRepo, nil)

		user := &types.User{ID: uuid.New(), Email: "alice@x.com", PasswordHash: string(hashed)}
		mockRepo.On("GetUserByEmail", ctx, "alice@x.com").Return(user, nil).Once()

		got, token, err := service.Login(ctx, "alice@x.com", "correct-password")
		require.NoError(t, err)
		assert.NotEmpty(t, token)
		assert.Equal(t, user.ID, got.ID)
		mockRepo.AssertExpectations(t)
	})

	t.Run("WrongPassword", func(t *testing.T) {
		mockRepo := new(MockUserRepo)
		service := newTestService(mockRepo, nil)

		user := &types.User{ID: uuid.New(), Email: "alice@x.com", PasswordHash: string(hashed)}
		mockRepo.On("GetUserByEmail", ctx, "alice@x.com").Return(user, nil).Once()

		_, _, err := service.Login(ctx, "alice@x.com", "wrong-password")
		assert.ErrorIs(t, err, types.ErrUnauthenticated)
	})

	t.Run("UnknownEmailSameError", func(t *testing.T) {
		mockRepo := new(MockUserRepo)
		service := newTestService(mockRepo, nil)

		mockRepo.On("GetUserByEmail", ctx, "nobody@x.com").Return(nil, types.ErrNotFound).Once()

		_, _, err := service.Login(ctx, "nobody@x.com", "whatever")
		assert.ErrorIs(t, err, types.ErrUnauthenticated)
	})

	t.Run("PasswordlessAccount", func(t *testing.T) {
		mockRepo := new(MockUserRepo)
		service := newTestService(mockRepo, nil)

		user := &types.User{ID: uuid.New(), Email: "alice@x.com", Provider: types.ProviderGoogle}
		mockRepo.On("GetUserByEmail", ctx, "alice@x.com").Return(user, nil).Once()

		_, _, err := service.Login(ctx, "alice@x.com", "anything")
		assert.ErrorIs(t, err, types.ErrUnauthenticated)
	})
}

func TestSocialLogin(t *testing.T) {
	ctx := context.Background()

	profile := goth.User{
		UserID:    "google-sub-1",
		Email:     "Carol@X.com",
		Name:      "Carol Maker",
		AvatarURL: "https://lh3.example.com/photo.jpg",
	}

	t.Run("CreatesNewIdentity", func(t *testing.T) {
		mockRepo := new(MockUserRepo)
		service := newTestService(mockRepo, VerifierRegistry{
			types.ProviderGoogle: stubVerifier{user: profile},
		})

		mockRepo.On("GetUserByEmail", ctx, "carol@x.com").Return(nil, types.ErrNotFound).Once()
		mockRepo.On("CreateUser", ctx, mock.AnythingOfType("*types.User")).
			Run(func(args mock.Arguments) {
				u := args.Get(1).(*types.User)
				assert.Equal(t, "carol@x.com", u.Email)
				assert.Equal(t, "Carol Maker", u.DisplayName)
				assert.Equal(t, types.ProviderGoogle, u.Provider)
				assert.Equal(t, "google-sub-1", u.ProviderID)
				assert.Equal(t, types.AvatarExternal, u.Avatar.Kind)
				assert.Empty(t, u.PasswordHash)
			}).
			Return(&types.User{ID: uuid.New(), Email: "carol@x.com"}, nil).Once()

		_, token, err := service.SocialLogin(ctx, types.ProviderGoogle, "raw-id-token")
		require.NoError(t, err)
		assert.NotEmpty(t, token)
		mockRepo.AssertExpectations(t)
	})

	t.Run("IdempotentRepeatLogin", func(t *testing.T) {
		mockRepo := new(MockUserRepo)
		service := newTestService(mockRepo, VerifierRegistry{
			types.ProviderGoogle: stubVerifier{user: profile},
		})

		existing := &types.User{
			ID:         uuid.New(),
			Email:      "carol@x.com",
			Provider:   types.ProviderGoogle,
			ProviderID: "google-sub-1",
			Avatar:     types.Avatar{Kind: types.AvatarExternal, URL: "https://lh3.example.com/photo.jpg"},
		}
		mockRepo.On("GetUserByEmail", ctx, "carol@x.com").Return(existing, nil).Once()

		_, _, err := service.SocialLogin(ctx, types.ProviderGoogle, "raw-id-token")
		require.NoError(t, err)
		mockRepo.AssertNotCalled(t, "UpdateUser")
		mockRepo.AssertNotCalled(t, "CreateUser")
	})

	t.Run("ReconcilesChangedFields", func(t *testing.T) {
		mockRepo := new(MockUserRepo)
		service := newTestService(mockRepo, VerifierRegistry{
			types.ProviderGoogle: stubVerifier{user: profile},
		})

		// Local account logging in through Google for the first time.
		existing := &types.User{
			ID:           uuid.New(),
			Email:        "carol@x.com",
			Provider:     types.ProviderLocal,
			PasswordHash: "some-hash",
		}
		mockRepo.On("GetUserByEmail", ctx, "carol@x.com").Return(existing, nil).Once()
		mockRepo.On("UpdateUser", ctx, mock.AnythingOfType("*types.User")).
			Run(func(args mock.Arguments) {
				u := args.Get(1).(*types.User)
				assert.Equal(t, types.ProviderGoogle, u.Provider)
				assert.Equal(t, "google-sub-1", u.ProviderID)
				assert.Equal(t, types.AvatarExternal, u.Avatar.Kind)
				assert.Equal(t, "some-hash", u.PasswordHash) // password survives linking
			}).
			Return(nil).Once()

		_, _, err := service.SocialLogin(ctx, types.ProviderGoogle, "raw-id-token")
		require.NoError(t, err)
		mockRepo.AssertExpectations(t)
	})

	t.Run("UnknownProvider", func(t *testing.T) {
		mockRepo := new(MockUserRepo)
		service := newTestService(mockRepo, VerifierRegistry{})

		_, _, err := service.SocialLogin(ctx, "myspace", "raw-id-token")
		assert.ErrorIs(t, err, types.ErrUnknownProvider)
	})

	t.Run("InvalidAssertion", func(t *testing.T) {
		mockRepo := new(MockUserRepo)
		service := newTestService(mockRepo, VerifierRegistry{
			types.ProviderGoogle: stubVerifier{err: types.ErrAssertionInvalid},
		})

		_, _, err := service.SocialLogin(ctx, types.ProviderGoogle, "forged")
		assert.ErrorIs(t, err, types.ErrAssertionInvalid)
		mockRepo.AssertNotCalled(t, "GetUserByEmail")
	})

	t.Run("MissingEmail", func(t *testing.T) {
		mockRepo := new(MockUserRepo)
		service := newTestService(mockRepo, VerifierRegistry{
			types.ProviderApple: stubVerifier{user: goth.User{UserID: "apple-sub"}},
		})

		_, _, err := service.SocialLogin(ctx, types.ProviderApple, "raw-id-token")
		assert.ErrorIs(t, err, types.ErrMissingEmail)
	})

	t.Run("CreateRaceFallsBackToExisting", func(t *testing.T) {
		mockRepo := new(MockUserRepo)
		service := newTestService(mockRepo, VerifierRegistry{
			types.ProviderGoogle: stubVerifier{user: profile},
		})

		winner := &types.User{ID: uuid.New(), Email: "carol@x.com", Provider: types.ProviderGoogle, ProviderID: "google-sub-1",
			Avatar: types.Avatar{Kind: types.AvatarExternal, URL: profile.AvatarURL}}
		mockRepo.On("GetUserByEmail", ctx, "carol@x.com").Return(nil, types.ErrNotFound).Once()
		mockRepo.On("CreateUser", ctx, mock.AnythingOfType("*types.User")).Return(nil, types.ErrConflict).Once()
		mockRepo.On("GetUserByEmail", ctx, "carol@x.com").Return(winner, nil).Once()

		got, _, err := service.SocialLogin(ctx, types.ProviderGoogle, "raw-id-token")
		require.NoError(t, err)
		assert.Equal(t, winner.ID, got.ID)
		mockRepo.AssertExpectations(t)
	})
}
