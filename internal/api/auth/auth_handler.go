package auth

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/artisanhub/artisanhub-api/internal/api"
	"github.com/artisanhub/artisanhub-api/internal/types"
)

// AuthHandler is the request-facing surface: it validates input shape,
// drives the auth service and maps domain errors to transport statuses.
type AuthHandler struct {
	authService AuthService
	logger      *slog.Logger
}

func NewAuthHandler(authService AuthService, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{
		authService: authService,
		logger:      logger,
	}
}

// Signup handles POST /auth/signup.
func (h *AuthHandler) Signup(w http.ResponseWriter, r *http.Request) {
	var req SignupRequest
	if err := api.DecodeJSONBody(w, r, &req); err != nil {
		api.ErrorResponse(w, r, http.StatusBadRequest, err.Error())
		return
	}

	user, token, err := h.authService.Register(r.Context(), req)
	if err != nil {
		h.respondWithDomainError(w, r, err, "Signup failed")
		return
	}

	api.WriteJSONResponse(w, r, http.StatusCreated, AuthResponse{
		Token: token,
		User:  ToClient(user),
	})
}

// Login handles POST /auth/login.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := api.DecodeJSONBody(w, r, &req); err != nil {
		api.ErrorResponse(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if strings.TrimSpace(req.Email) == "" || req.Password == "" {
		api.ErrorResponse(w, r, http.StatusBadRequest, "email and password are required")
		return
	}

	user, token, err := h.authService.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		h.respondWithDomainError(w, r, err, "Login failed")
		return
	}

	api.WriteJSONResponse(w, r, http.StatusOK, AuthResponse{
		Token: token,
		User:  ToClient(user),
	})
}

// SocialLogin handles POST /auth/social.
func (h *AuthHandler) SocialLogin(w http.ResponseWriter, r *http.Request) {
	var req SocialLoginRequest
	if err := api.DecodeJSONBody(w, r, &req); err != nil {
		api.ErrorResponse(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if req.Provider == "" || req.IDToken == "" {
		api.ErrorResponse(w, r, http.StatusBadRequest, "provider and id_token are required")
		return
	}

	user, token, err := h.authService.SocialLogin(r.Context(), req.Provider, req.IDToken)
	if err != nil {
		h.respondWithDomainError(w, r, err, "Social login failed")
		return
	}

	api.WriteJSONResponse(w, r, http.StatusOK, AuthResponse{
		Token: token,
		User:  ToClient(user),
	})
}

// Me handles GET /auth/me. The session guard has already resolved the
// identity into the request context.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	user, ok := GetUserFromContext(r.Context())
	if !ok {
		api.ErrorResponse(w, r, http.StatusUnauthorized, types.ErrUnauthenticated.Error())
		return
	}
	api.WriteJSONResponse(w, r, http.StatusOK, MeResponse{User: ToClient(user)})
}

// respondWithDomainError maps resolver failures onto transport statuses.
// Internal failures are logged with detail but reported generically.
func (h *AuthHandler) respondWithDomainError(w http.ResponseWriter, r *http.Request, err error, logMsg string) {
	status := api.StatusForError(err)
	if status == http.StatusInternalServerError {
		h.logger.ErrorContext(r.Context(), logMsg, slog.Any("error", err))
	} else if errors.Is(err, types.ErrUnauthenticated) || errors.Is(err, types.ErrAssertionInvalid) {
		h.logger.WarnContext(r.Context(), logMsg)
	}
	api.ErrorResponse(w, r, status, api.MessageForError(err))
}
