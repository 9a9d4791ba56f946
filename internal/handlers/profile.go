package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/openblog/apiserver/internal/auth"
	"github.com/openblog/apiserver/internal/services"
	"github.com/openblog/apiserver/internal/storage"
	"github.com/openblog/apiserver/internal/store"
	"github.com/openblog/apiserver/types"
)

const maxAvatarBytes = 8 << 20

// ProfileHandler provides endpoints for the signed-in user's profile.
type ProfileHandler struct {
	users   *services.UserService
	fanout  *services.RenameFanout
	avatars *storage.Storage
}

// NewProfileHandler constructs a handler with the provided dependencies.
// avatars may be nil when no object storage is configured.
func NewProfileHandler(users *services.UserService, fanout *services.RenameFanout, avatars *storage.Storage) *ProfileHandler {
	return &ProfileHandler{
		users:   users,
		fanout:  fanout,
		avatars: avatars,
	}
}

// ProfileRouter registers profile routes on the given router.
func ProfileRouter(
	r chi.Router,
	users *services.UserService,
	fanout *services.RenameFanout,
	avatars *storage.Storage,
	requireAuth func(http.Handler) http.Handler,
) {
	handler := NewProfileHandler(users, fanout, avatars)

	r.With(requireAuth).Get("/profile", handler.FetchProfile)
	r.With(requireAuth).Put("/profile", handler.UpdateProfile)
	r.With(requireAuth).Put("/password", handler.ResetPassword)
	r.With(requireAuth).Post("/profile/avatar", handler.UploadAvatar)
	r.Get("/avatar/{userID}", handler.FetchAvatar)
}

// Profile is the user payload returned by profile endpoints. It carries no
// internal identifiers and never the password hash.
type Profile struct {
	Email       string `json:"email"`
	FirstName   string `json:"firstName"`
	LastName    string `json:"lastName"`
	Birthday    string `json:"birthday"`
	Sex         string `json:"sex"`
	Phone       string `json:"phone"`
	Address     string `json:"address"`
	Occupation  string `json:"occupation"`
	Description string `json:"description"`
}

type ProfileResponse struct {
	User Profile `json:"user"`
}

func profileFromUser(user types.User) Profile {
	return Profile{
		Email:       user.Email,
		FirstName:   user.FirstName,
		LastName:    user.LastName,
		Birthday:    user.Birthday,
		Sex:         user.Sex,
		Phone:       user.Phone,
		Address:     user.Address,
		Occupation:  user.Occupation,
		Description: user.Description,
	}
}

// FetchProfile returns the signed-in user's profile.
func (h *ProfileHandler) FetchProfile(w http.ResponseWriter, r *http.Request) {
	user, ok := userFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, unauthorizedMessage)
		return
	}
	writeJSON(w, http.StatusOK, ProfileResponse{User: profileFromUser(user)})
}

// UpdateProfile updates the signed-in user's name and profile fields and
// kicks off the best-effort rename fan-out to their posts and comments.
func (h *ProfileHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	user, ok := userFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, unauthorizedMessage)
		return
	}

	var req UpdateProfileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request.")
		return
	}

	user.FirstName = strings.TrimSpace(req.FirstName)
	user.LastName = strings.TrimSpace(req.LastName)
	user.Birthday = req.Birthday
	user.Sex = req.Sex
	user.Phone = req.Phone
	user.Address = req.Address
	user.Occupation = req.Occupation
	user.Description = req.Description

	updated, err := h.users.Update(r.Context(), user)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to update profile.")
		return
	}

	h.fanout.Propagate(r.Context(), updated.ID, updated.DisplayName())

	writeJSON(w, http.StatusOK, ProfileResponse{User: profileFromUser(updated)})
}

// ResetPassword changes the signed-in user's password after checking the
// old one. The new password must differ from the old.
func (h *ProfileHandler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	user, ok := userFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, unauthorizedMessage)
		return
	}

	var req ResetPasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request.")
		return
	}

	match, err := auth.ComparePassword(user.PasswordHash, req.OldPassword)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to update password.")
		return
	}
	if !match {
		writeError(w, http.StatusUnprocessableEntity, "Your old password is incorrect! Please try again.")
		return
	}

	if req.OldPassword == req.NewPassword {
		writeError(w, http.StatusUnprocessableEntity, "Your new password must be different from your old password!")
		return
	}

	hashed, err := auth.HashPassword(req.NewPassword)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to update password.")
		return
	}

	user.PasswordHash = hashed
	if _, err := h.users.Update(r.Context(), user); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to update password.")
		return
	}

	writeJSON(w, http.StatusOK, MessageResponse{
		Message: "You have successfully updated your password.",
	})
}

// UploadAvatar stores the signed-in user's avatar image in object storage.
func (h *ProfileHandler) UploadAvatar(w http.ResponseWriter, r *http.Request) {
	user, ok := userFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, unauthorizedMessage)
		return
	}
	if h.avatars == nil {
		writeError(w, http.StatusServiceUnavailable, "Avatar storage is not configured.")
		return
	}

	if err := r.ParseMultipartForm(maxAvatarBytes); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid multipart form.")
		return
	}

	file, header, err := r.FormFile("avatar")
	if err != nil {
		writeError(w, http.StatusBadRequest, "Avatar file is required.")
		return
	}
	defer file.Close()

	if header.Size > maxAvatarBytes {
		writeError(w, http.StatusBadRequest, "Avatar file too large.")
		return
	}

	contentType := header.Header.Get("Content-Type")
	key := fmt.Sprintf("avatars/%d", user.ID)
	if err := h.avatars.Put(r.Context(), key, file, header.Size, contentType); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to store avatar.")
		return
	}

	if user.AvatarKey != key {
		user.AvatarKey = key
		if _, err := h.users.Update(r.Context(), user); err != nil {
			writeError(w, http.StatusInternalServerError, "Failed to store avatar.")
			return
		}
	}

	writeJSON(w, http.StatusOK, MessageResponse{Message: "Avatar updated."})
}

// FetchAvatar streams a user's avatar image. Avatars are public.
func (h *ProfileHandler) FetchAvatar(w http.ResponseWriter, r *http.Request) {
	if h.avatars == nil {
		writeError(w, http.StatusServiceUnavailable, "Avatar storage is not configured.")
		return
	}

	userID, err := strconv.Atoi(chi.URLParam(r, "userID"))
	if err != nil || userID < 1 {
		writeError(w, http.StatusBadRequest, "Invalid user id.")
		return
	}

	user, err := h.users.GetByID(r.Context(), userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "User not found.")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to load avatar.")
		return
	}
	if user.AvatarKey == "" {
		writeError(w, http.StatusNotFound, "No avatar uploaded.")
		return
	}

	object, err := h.avatars.Get(r.Context(), user.AvatarKey)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load avatar.")
		return
	}
	defer object.Close()

	w.WriteHeader(http.StatusOK)
	_, _ = io.Copy(w, object)
}

type UpdateProfileRequest struct {
	FirstName   string `json:"firstName"`
	LastName    string `json:"lastName"`
	Birthday    string `json:"birthday"`
	Sex         string `json:"sex"`
	Phone       string `json:"phone"`
	Address     string `json:"address"`
	Occupation  string `json:"occupation"`
	Description string `json:"description"`
}

type ResetPasswordRequest struct {
	OldPassword string `json:"oldPassword"`
	NewPassword string `json:"newPassword"`
}
