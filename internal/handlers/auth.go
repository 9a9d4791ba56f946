package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/openblog/apiserver/internal/auth"
	"github.com/openblog/apiserver/internal/services"
	"github.com/openblog/apiserver/internal/store"
	"github.com/openblog/apiserver/types"
)

const signinFailedMessage = "The email and/or password are incorrect."

// AuthHandler provides signup, signin, and token verification endpoints.
type AuthHandler struct {
	users  *services.UserService
	tokens *auth.TokenIssuer
}

// NewAuthHandler constructs an AuthHandler with the provided dependencies.
func NewAuthHandler(users *services.UserService, tokens *auth.TokenIssuer) *AuthHandler {
	return &AuthHandler{
		users:  users,
		tokens: tokens,
	}
}

// AuthRouter registers auth routes on the given router.
func AuthRouter(
	r chi.Router,
	users *services.UserService,
	tokens *auth.TokenIssuer,
	requireAuth func(http.Handler) http.Handler,
) {
	handler := NewAuthHandler(users, tokens)

	r.Post("/signup", handler.Signup)
	r.Post("/signin", handler.Signin)
	r.With(requireAuth).Get("/verify_jwt", handler.VerifyToken)
	r.With(requireAuth).Get("/", handler.Secret)
}

// Signup creates a new user account. The password is hashed exactly once,
// before the record is persisted.
func (h *AuthHandler) Signup(w http.ResponseWriter, r *http.Request) {
	var req SignupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request.")
		return
	}

	email := strings.ToLower(strings.TrimSpace(req.Email))
	if email == "" || req.Password == "" {
		writeError(w, http.StatusUnprocessableEntity, "You must provide both email and password.")
		return
	}

	if _, err := h.users.GetByEmail(r.Context(), email); err == nil {
		writeError(w, http.StatusUnprocessableEntity, "This email is in use.")
		return
	} else if !errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusInternalServerError, "Failed to create user.")
		return
	}

	hashed, err := auth.HashPassword(req.Password)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to create user.")
		return
	}

	if _, err := h.users.Create(r.Context(), types.User{
		Email:        email,
		FirstName:    strings.TrimSpace(req.FirstName),
		LastName:     strings.TrimSpace(req.LastName),
		PasswordHash: hashed,
	}); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to create user.")
		return
	}

	writeJSON(w, http.StatusOK, MessageResponse{
		Message: "You have successfully signed up. You can sign in now.",
	})
}

// Signin verifies email/password credentials and returns a bearer token.
// Unknown email and wrong password produce the same generic failure so the
// response never reveals whether the account exists.
func (h *AuthHandler) Signin(w http.ResponseWriter, r *http.Request) {
	var req SigninRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request.")
		return
	}

	email := strings.ToLower(strings.TrimSpace(req.Email))
	if email == "" || req.Password == "" {
		writeError(w, http.StatusUnauthorized, signinFailedMessage)
		return
	}

	user, err := h.users.GetByEmail(r.Context(), email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusUnauthorized, signinFailedMessage)
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to authenticate.")
		return
	}

	match, err := auth.ComparePassword(user.PasswordHash, req.Password)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to authenticate.")
		return
	}
	if !match {
		writeError(w, http.StatusUnauthorized, signinFailedMessage)
		return
	}

	token, err := h.tokens.Issue(user.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to create token.")
		return
	}

	writeJSON(w, http.StatusOK, SigninResponse{
		Token:    token,
		Username: user.DisplayName(),
	})
}

// VerifyToken confirms the presented token resolves to a live account.
func (h *AuthHandler) VerifyToken(w http.ResponseWriter, r *http.Request) {
	user, ok := userFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, unauthorizedMessage)
		return
	}
	writeJSON(w, http.StatusOK, VerifyResponse{Username: user.DisplayName()})
}

// Secret is the authenticated ping the web client uses as a smoke test.
func (h *AuthHandler) Secret(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, MessageResponse{Message: "Super secret code is ABC123"})
}

type SignupRequest struct {
	Email     string `json:"email"`
	Password  string `json:"password"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
}

type SigninRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type SigninResponse struct {
	Token    string `json:"token"`
	Username string `json:"username"`
}

type VerifyResponse struct {
	Username string `json:"username"`
}
