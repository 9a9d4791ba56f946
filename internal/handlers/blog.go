package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/openblog/apiserver/internal/auth"
	"github.com/openblog/apiserver/internal/services"
	"github.com/openblog/apiserver/internal/store"
	"github.com/openblog/apiserver/types"
)

const (
	postNotFoundMessage = "The post with the given ID does not exist."
	notOwnerMessage     = "You have no authority to modify this post."
)

// BlogHandler provides HTTP handlers for posts and comments.
type BlogHandler struct {
	posts    *services.PostService
	comments *services.CommentService
}

// NewBlogHandler constructs a handler with the provided services.
func NewBlogHandler(posts *services.PostService, comments *services.CommentService) *BlogHandler {
	return &BlogHandler{
		posts:    posts,
		comments: comments,
	}
}

// BlogRouter registers post and comment routes on the given router.
func BlogRouter(
	r chi.Router,
	posts *services.PostService,
	comments *services.CommentService,
	requireAuth func(http.Handler) http.Handler,
	optionalAuth func(http.Handler) http.Handler,
) {
	handler := NewBlogHandler(posts, comments)

	r.Get("/posts", handler.FetchPosts)
	r.With(requireAuth).Post("/posts", handler.CreatePost)
	r.Get("/posts/{postID}", handler.FetchPost)
	r.With(requireAuth).Put("/posts/{postID}", handler.UpdatePost)
	r.With(requireAuth).Delete("/posts/{postID}", handler.DeletePost)
	r.With(optionalAuth).Get("/allow_edit_or_delete/{postID}", handler.AllowChange)
	r.With(requireAuth).Get("/my_posts", handler.FetchMyPosts)
	r.With(requireAuth).Post("/comments/{postID}", handler.CreateComment)
	r.Get("/comments/{postID}", handler.FetchComments)
}

// FetchPosts returns the most recent posts, newest first.
func (h *BlogHandler) FetchPosts(w http.ResponseWriter, r *http.Request) {
	posts, err := h.posts.List(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Could not retrieve posts.")
		return
	}
	writeJSON(w, http.StatusOK, posts)
}

// CreatePost publishes a new post authored by the signed-in user.
func (h *BlogHandler) CreatePost(w http.ResponseWriter, r *http.Request) {
	user, ok := userFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, unauthorizedMessage)
		return
	}

	req, err := decodePostRequest(r)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	created, err := h.posts.Create(r.Context(), types.Post{
		Title:      req.Title,
		Categories: parseCategories(req.Categories),
		Content:    req.Content,
		AuthorID:   user.ID,
		AuthorName: user.DisplayName(),
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to create post.")
		return
	}

	writeJSON(w, http.StatusOK, created)
}

// FetchPost returns a single post by ID.
func (h *BlogHandler) FetchPost(w http.ResponseWriter, r *http.Request) {
	id, err := parsePostID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	post, err := h.posts.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, postNotFoundMessage)
			return
		}
		writeError(w, http.StatusInternalServerError, "Could not retrieve the post.")
		return
	}

	writeJSON(w, http.StatusOK, post)
}

// UpdatePost edits a post. Only the author may modify it; everyone else is
// rejected and the post stays unchanged.
func (h *BlogHandler) UpdatePost(w http.ResponseWriter, r *http.Request) {
	user, ok := userFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, unauthorizedMessage)
		return
	}

	id, err := parsePostID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	post, err := h.posts.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, postNotFoundMessage)
			return
		}
		writeError(w, http.StatusInternalServerError, "Could not retrieve the post.")
		return
	}

	if !auth.Owns(post.AuthorID, user.ID) {
		writeError(w, http.StatusForbidden, notOwnerMessage)
		return
	}

	req, err := decodePostRequest(r)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	post.Title = req.Title
	post.Categories = parseCategories(req.Categories)
	post.Content = req.Content

	updated, err := h.posts.Update(r.Context(), post)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, postNotFoundMessage)
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to update post.")
		return
	}

	writeJSON(w, http.StatusOK, updated)
}

// DeletePost removes a post and its comments. Only the author may delete it.
func (h *BlogHandler) DeletePost(w http.ResponseWriter, r *http.Request) {
	user, ok := userFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, unauthorizedMessage)
		return
	}

	id, err := parsePostID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	post, err := h.posts.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, postNotFoundMessage)
			return
		}
		writeError(w, http.StatusInternalServerError, "Could not retrieve the post.")
		return
	}

	if !auth.Owns(post.AuthorID, user.ID) {
		writeError(w, http.StatusForbidden, notOwnerMessage)
		return
	}

	if err := h.posts.Delete(r.Context(), id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, postNotFoundMessage)
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to delete post.")
		return
	}

	writeJSON(w, http.StatusOK, MessageResponse{
		Message: "The post has been deleted successfully!",
	})
}

// AllowChange tells the client whether the requester may edit or delete the
// post. Anonymous and non-owner requesters get allowChange=false, never an
// error.
func (h *BlogHandler) AllowChange(w http.ResponseWriter, r *http.Request) {
	id, err := parsePostID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	userID := 0
	if user, ok := userFromContext(r.Context()); ok {
		userID = user.ID
	}

	allowed, err := h.posts.AllowChange(r.Context(), id, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, postNotFoundMessage)
			return
		}
		writeError(w, http.StatusInternalServerError, "Could not retrieve the post.")
		return
	}

	writeJSON(w, http.StatusOK, AllowChangeResponse{AllowChange: allowed})
}

// FetchMyPosts returns the signed-in user's posts, newest first.
func (h *BlogHandler) FetchMyPosts(w http.ResponseWriter, r *http.Request) {
	user, ok := userFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, unauthorizedMessage)
		return
	}

	posts, err := h.posts.ListByAuthor(r.Context(), user.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Could not retrieve posts.")
		return
	}
	writeJSON(w, http.StatusOK, posts)
}

// CreateComment attaches a comment to a post, stamped with the signed-in
// user's identity.
func (h *BlogHandler) CreateComment(w http.ResponseWriter, r *http.Request) {
	user, ok := userFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, unauthorizedMessage)
		return
	}

	postID, err := parsePostID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var req CommentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request.")
		return
	}
	if strings.TrimSpace(req.Content) == "" {
		writeError(w, http.StatusUnprocessableEntity, "Comment cannot be empty.")
		return
	}

	created, err := h.comments.Create(r.Context(), types.Comment{
		PostID:     postID,
		Content:    req.Content,
		AuthorID:   user.ID,
		AuthorName: user.DisplayName(),
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to create comment.")
		return
	}

	writeJSON(w, http.StatusOK, created)
}

// FetchComments returns a post's comments, oldest first.
func (h *BlogHandler) FetchComments(w http.ResponseWriter, r *http.Request) {
	postID, err := parsePostID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	comments, err := h.comments.ListByPost(r.Context(), postID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Could not retrieve comments.")
		return
	}
	writeJSON(w, http.StatusOK, comments)
}

type PostRequest struct {
	Title      string `json:"title"`
	Categories string `json:"categories"`
	Content    string `json:"content"`
}

type AllowChangeResponse struct {
	AllowChange bool `json:"allowChange"`
}

type CommentRequest struct {
	Content string `json:"content"`
}

func decodePostRequest(r *http.Request) (PostRequest, error) {
	var req PostRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return PostRequest{}, errors.New("Title, categories and content are all required.")
	}
	req.Title = strings.TrimSpace(req.Title)
	req.Content = strings.TrimSpace(req.Content)
	if req.Title == "" || strings.TrimSpace(req.Categories) == "" || req.Content == "" {
		return PostRequest{}, errors.New("Title, categories and content are all required.")
	}
	return req, nil
}

// parseCategories splits the comma-separated category field, trimming
// whitespace and dropping duplicates while keeping first-seen order.
func parseCategories(raw string) []string {
	parts := strings.Split(raw, ",")
	seen := make(map[string]struct{}, len(parts))
	categories := make([]string, 0, len(parts))
	for _, part := range parts {
		category := strings.TrimSpace(part)
		if category == "" {
			continue
		}
		if _, dup := seen[category]; dup {
			continue
		}
		seen[category] = struct{}{}
		categories = append(categories, category)
	}
	return categories
}

func parsePostID(r *http.Request) (int, error) {
	raw := chi.URLParam(r, "postID")
	id, err := strconv.Atoi(raw)
	if err != nil || id < 1 {
		return 0, errors.New("Invalid post id.")
	}
	return id, nil
}
