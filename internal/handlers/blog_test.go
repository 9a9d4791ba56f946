package handlers_test

import (
	"context"
	"net/http"
	"testing"

	"github.com/openblog/apiserver/internal/handlers"
	"github.com/openblog/apiserver/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func createPost(t *testing.T, env *testEnv, token, title, categories, content string) types.Post {
	t.Helper()
	resp := env.do(t, http.MethodPost, "/api/posts", token, map[string]string{
		"title":      title,
		"categories": categories,
		"content":    content,
	})
	require.Equal(t, http.StatusOK, resp.Code)
	return decodeBody[types.Post](t, resp)
}

func TestCreatePost(t *testing.T) {
	env := newTestEnv(t)
	user, token := env.signup(t, "a@x.com", "pw123", "A", "B")

	post := createPost(t, env, token, "Hello", "go, web, go", "First post.")
	assert.Equal(t, "Hello", post.Title)
	assert.Equal(t, []string{"go", "web"}, post.Categories)
	assert.Equal(t, user.ID, post.AuthorID)
	assert.Equal(t, "A B", post.AuthorName)
}

func TestCreatePostValidation(t *testing.T) {
	env := newTestEnv(t)
	_, token := env.signup(t, "a@x.com", "pw123", "A", "B")

	for _, payload := range []map[string]string{
		{"categories": "go", "content": "body"},
		{"title": "Hello", "content": "body"},
		{"title": "Hello", "categories": "go"},
	} {
		resp := env.do(t, http.MethodPost, "/api/posts", token, payload)
		require.Equal(t, http.StatusUnprocessableEntity, resp.Code)
		body := decodeBody[handlers.MessageResponse](t, resp)
		assert.Equal(t, "Title, categories and content are all required.", body.Message)
	}
}

func TestCreatePostRequiresAuth(t *testing.T) {
	env := newTestEnv(t)

	resp := env.do(t, http.MethodPost, "/api/posts", "", map[string]string{
		"title": "Hello", "categories": "go", "content": "body",
	})
	assert.Equal(t, http.StatusUnauthorized, resp.Code)
}

func TestFetchPostNotFound(t *testing.T) {
	env := newTestEnv(t)

	resp := env.do(t, http.MethodGet, "/api/posts/99", "", nil)
	require.Equal(t, http.StatusNotFound, resp.Code)
}

func TestUpdatePostOwnershipEnforced(t *testing.T) {
	env := newTestEnv(t)
	_, ownerToken := env.signup(t, "u1@x.com", "pw123", "U", "One")
	_, otherToken := env.signup(t, "u2@x.com", "pw456", "U", "Two")

	post := createPost(t, env, ownerToken, "Mine", "go", "Original content.")

	resp := env.do(t, http.MethodPut, "/api/posts/1", otherToken, map[string]string{
		"title": "Stolen", "categories": "go", "content": "Changed.",
	})
	require.Equal(t, http.StatusForbidden, resp.Code)
	body := decodeBody[handlers.MessageResponse](t, resp)
	assert.Equal(t, "You have no authority to modify this post.", body.Message)

	// The post is untouched.
	unchanged, err := env.posts.Get(context.Background(), post.ID)
	require.NoError(t, err)
	assert.Equal(t, "Mine", unchanged.Title)
	assert.Equal(t, "Original content.", unchanged.Content)

	// The owner can still edit.
	resp = env.do(t, http.MethodPut, "/api/posts/1", ownerToken, map[string]string{
		"title": "Mine v2", "categories": "go", "content": "Updated.",
	})
	require.Equal(t, http.StatusOK, resp.Code)
	updated := decodeBody[types.Post](t, resp)
	assert.Equal(t, "Mine v2", updated.Title)
}

func TestDeletePostOwnershipEnforced(t *testing.T) {
	env := newTestEnv(t)
	_, ownerToken := env.signup(t, "u1@x.com", "pw123", "U", "One")
	_, otherToken := env.signup(t, "u2@x.com", "pw456", "U", "Two")

	createPost(t, env, ownerToken, "Mine", "go", "Content.")

	resp := env.do(t, http.MethodDelete, "/api/posts/1", otherToken, nil)
	require.Equal(t, http.StatusForbidden, resp.Code)

	resp = env.do(t, http.MethodDelete, "/api/posts/1", ownerToken, nil)
	require.Equal(t, http.StatusOK, resp.Code)
	body := decodeBody[handlers.MessageResponse](t, resp)
	assert.Equal(t, "The post has been deleted successfully!", body.Message)
}

func TestDeletePostRemovesComments(t *testing.T) {
	env := newTestEnv(t)
	_, token := env.signup(t, "a@x.com", "pw123", "A", "B")

	post := createPost(t, env, token, "Hello", "go", "Content.")
	resp := env.do(t, http.MethodPost, "/api/comments/1", token, map[string]string{"content": "Nice."})
	require.Equal(t, http.StatusOK, resp.Code)

	resp = env.do(t, http.MethodDelete, "/api/posts/1", token, nil)
	require.Equal(t, http.StatusOK, resp.Code)

	comments, err := env.comments.ListByPost(context.Background(), post.ID, 100)
	require.NoError(t, err)
	assert.Empty(t, comments)
}

func TestAllowEditOrDelete(t *testing.T) {
	env := newTestEnv(t)
	_, ownerToken := env.signup(t, "u1@x.com", "pw123", "U", "One")
	_, otherToken := env.signup(t, "u2@x.com", "pw456", "U", "Two")

	createPost(t, env, ownerToken, "Mine", "go", "Content.")

	tests := []struct {
		name  string
		token string
		want  bool
	}{
		{"owner", ownerToken, true},
		{"different user", otherToken, false},
		{"anonymous", "", false},
		{"invalid token", "not.a.token", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := env.do(t, http.MethodGet, "/api/allow_edit_or_delete/1", tt.token, nil)
			require.Equal(t, http.StatusOK, resp.Code)
			body := decodeBody[handlers.AllowChangeResponse](t, resp)
			assert.Equal(t, tt.want, body.AllowChange)
		})
	}
}

func TestAllowEditOrDeleteMissingPost(t *testing.T) {
	env := newTestEnv(t)
	_, token := env.signup(t, "a@x.com", "pw123", "A", "B")

	resp := env.do(t, http.MethodGet, "/api/allow_edit_or_delete/42", token, nil)
	assert.Equal(t, http.StatusNotFound, resp.Code)
}

func TestFetchMyPosts(t *testing.T) {
	env := newTestEnv(t)
	_, token1 := env.signup(t, "u1@x.com", "pw123", "U", "One")
	_, token2 := env.signup(t, "u2@x.com", "pw456", "U", "Two")

	createPost(t, env, token1, "First", "go", "Content.")
	createPost(t, env, token2, "Second", "go", "Content.")
	createPost(t, env, token1, "Third", "go", "Content.")

	resp := env.do(t, http.MethodGet, "/api/my_posts", token1, nil)
	require.Equal(t, http.StatusOK, resp.Code)
	posts := decodeBody[[]types.Post](t, resp)
	require.Len(t, posts, 2)
	// Newest first.
	assert.Equal(t, "Third", posts[0].Title)
	assert.Equal(t, "First", posts[1].Title)
}

func TestComments(t *testing.T) {
	env := newTestEnv(t)
	user, token := env.signup(t, "a@x.com", "pw123", "A", "B")

	createPost(t, env, token, "Hello", "go", "Content.")

	resp := env.do(t, http.MethodPost, "/api/comments/1", token, map[string]string{"content": "First!"})
	require.Equal(t, http.StatusOK, resp.Code)
	comment := decodeBody[types.Comment](t, resp)
	assert.Equal(t, user.ID, comment.AuthorID)
	assert.Equal(t, "A B", comment.AuthorName)

	resp = env.do(t, http.MethodGet, "/api/comments/1", "", nil)
	require.Equal(t, http.StatusOK, resp.Code)
	comments := decodeBody[[]types.Comment](t, resp)
	require.Len(t, comments, 1)
	assert.Equal(t, "First!", comments[0].Content)
}

func TestCreateCommentValidation(t *testing.T) {
	env := newTestEnv(t)
	_, token := env.signup(t, "a@x.com", "pw123", "A", "B")
	createPost(t, env, token, "Hello", "go", "Content.")

	resp := env.do(t, http.MethodPost, "/api/comments/1", token, map[string]string{"content": "  "})
	require.Equal(t, http.StatusUnprocessableEntity, resp.Code)
	body := decodeBody[handlers.MessageResponse](t, resp)
	assert.Equal(t, "Comment cannot be empty.", body.Message)
}

func TestCreateCommentRequiresAuth(t *testing.T) {
	env := newTestEnv(t)
	_, token := env.signup(t, "a@x.com", "pw123", "A", "B")
	createPost(t, env, token, "Hello", "go", "Content.")

	resp := env.do(t, http.MethodPost, "/api/comments/1", "", map[string]string{"content": "Hi"})
	assert.Equal(t, http.StatusUnauthorized, resp.Code)
}
