package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/openblog/apiserver/internal/auth"
	"github.com/openblog/apiserver/internal/services"
	"github.com/openblog/apiserver/internal/store"
)

const unauthorizedMessage = "Unauthorized."

// RequireAuth enforces bearer-token authentication. It verifies the token,
// resolves the subject against the user store, and attaches the resolved
// user to the request context. Every failure short-circuits with a 401.
func RequireAuth(tokens *auth.TokenIssuer, users *services.UserService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenString, err := headerToken(r)
			if err != nil {
				writeError(w, http.StatusUnauthorized, unauthorizedMessage)
				return
			}

			userID, err := tokens.Verify(tokenString)
			if err != nil {
				writeError(w, http.StatusUnauthorized, unauthorizedMessage)
				return
			}

			user, err := users.GetByID(r.Context(), userID)
			if err != nil {
				if errors.Is(err, store.ErrNotFound) {
					writeError(w, http.StatusUnauthorized, unauthorizedMessage)
					return
				}
				writeError(w, http.StatusInternalServerError, "Failed to load user.")
				return
			}

			next.ServeHTTP(w, r.WithContext(withUser(r.Context(), user)))
		})
	}
}

// OptionalAuth resolves the requester's identity when a valid token is
// present and lets the request through anonymously otherwise. Used by
// endpoints that answer differently for owners but never reject outsiders.
func OptionalAuth(tokens *auth.TokenIssuer, users *services.UserService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenString, err := headerToken(r)
			if err != nil {
				next.ServeHTTP(w, r)
				return
			}

			userID, err := tokens.Verify(tokenString)
			if err != nil {
				next.ServeHTTP(w, r)
				return
			}

			user, err := users.GetByID(r.Context(), userID)
			if err != nil {
				next.ServeHTTP(w, r)
				return
			}

			next.ServeHTTP(w, r.WithContext(withUser(r.Context(), user)))
		})
	}
}

// headerToken extracts the bearer token from the Authorization header. The
// web client sends the raw token; a conventional "Bearer " prefix is also
// accepted.
func headerToken(r *http.Request) (string, error) {
	value := strings.TrimSpace(r.Header.Get("Authorization"))
	if value == "" {
		return "", errors.New("missing authorization")
	}
	if rest, found := strings.CutPrefix(value, "Bearer "); found {
		value = strings.TrimSpace(rest)
	}
	if value == "" {
		return "", errors.New("invalid authorization")
	}
	return value, nil
}
