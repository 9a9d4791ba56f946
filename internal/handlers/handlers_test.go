package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/openblog/apiserver/internal/auth"
	"github.com/openblog/apiserver/internal/handlers"
	"github.com/openblog/apiserver/internal/services"
	"github.com/openblog/apiserver/internal/store"
	"github.com/openblog/apiserver/types"
	"github.com/stretchr/testify/require"
)

const testSecret = "handlers-test-secret"

// memUserRepo is an in-memory services.UserRepository.
type memUserRepo struct {
	mu     sync.Mutex
	nextID int
	users  map[int]types.User
}

func newMemUserRepo() *memUserRepo {
	return &memUserRepo{nextID: 1, users: make(map[int]types.User)}
}

func (r *memUserRepo) GetByID(ctx context.Context, id int) (types.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	user, ok := r.users[id]
	if !ok {
		return types.User{}, store.ErrNotFound
	}
	return user, nil
}

func (r *memUserRepo) GetByEmail(ctx context.Context, email string) (types.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, user := range r.users {
		if user.Email == email {
			return user, nil
		}
	}
	return types.User{}, store.ErrNotFound
}

func (r *memUserRepo) Create(ctx context.Context, user types.User) (types.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	user.ID = r.nextID
	r.nextID++
	r.users[user.ID] = user
	return user, nil
}

func (r *memUserRepo) Update(ctx context.Context, user types.User) (types.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.users[user.ID]; !ok {
		return types.User{}, store.ErrNotFound
	}
	r.users[user.ID] = user
	return user, nil
}

// memPostRepo is an in-memory services.PostRepository that also satisfies
// services.AuthorNameUpdater.
type memPostRepo struct {
	mu     sync.Mutex
	nextID int
	posts  map[int]types.Post
}

func newMemPostRepo() *memPostRepo {
	return &memPostRepo{nextID: 1, posts: make(map[int]types.Post)}
}

func (r *memPostRepo) List(ctx context.Context, limit int) ([]types.Post, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	posts := make([]types.Post, 0, len(r.posts))
	for _, post := range r.posts {
		posts = append(posts, post)
	}
	sort.Slice(posts, func(i, j int) bool { return posts[i].ID > posts[j].ID })
	return posts, nil
}

func (r *memPostRepo) ListByAuthor(ctx context.Context, authorID, limit int) ([]types.Post, error) {
	all, _ := r.List(ctx, limit)
	posts := make([]types.Post, 0, len(all))
	for _, post := range all {
		if post.AuthorID == authorID {
			posts = append(posts, post)
		}
	}
	return posts, nil
}

func (r *memPostRepo) Get(ctx context.Context, id int) (types.Post, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	post, ok := r.posts[id]
	if !ok {
		return types.Post{}, store.ErrNotFound
	}
	return post, nil
}

func (r *memPostRepo) Create(ctx context.Context, post types.Post) (types.Post, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	post.ID = r.nextID
	r.nextID++
	r.posts[post.ID] = post
	return post, nil
}

func (r *memPostRepo) Update(ctx context.Context, post types.Post) (types.Post, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.posts[post.ID]; !ok {
		return types.Post{}, store.ErrNotFound
	}
	r.posts[post.ID] = post
	return post, nil
}

func (r *memPostRepo) Delete(ctx context.Context, id int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.posts[id]; !ok {
		return store.ErrNotFound
	}
	delete(r.posts, id)
	return nil
}

func (r *memPostRepo) UpdateAuthorName(ctx context.Context, authorID int, name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, post := range r.posts {
		if post.AuthorID == authorID {
			post.AuthorName = name
			r.posts[id] = post
		}
	}
	return nil
}

// memCommentRepo is an in-memory services.CommentRepository that also
// satisfies services.AuthorNameUpdater.
type memCommentRepo struct {
	mu       sync.Mutex
	nextID   int
	comments map[int]types.Comment
}

func newMemCommentRepo() *memCommentRepo {
	return &memCommentRepo{nextID: 1, comments: make(map[int]types.Comment)}
}

func (r *memCommentRepo) ListByPost(ctx context.Context, postID, limit int) ([]types.Comment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	comments := make([]types.Comment, 0, len(r.comments))
	for _, comment := range r.comments {
		if comment.PostID == postID {
			comments = append(comments, comment)
		}
	}
	sort.Slice(comments, func(i, j int) bool { return comments[i].ID < comments[j].ID })
	return comments, nil
}

func (r *memCommentRepo) Create(ctx context.Context, comment types.Comment) (types.Comment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	comment.ID = r.nextID
	r.nextID++
	r.comments[comment.ID] = comment
	return comment, nil
}

func (r *memCommentRepo) DeleteByPost(ctx context.Context, postID int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, comment := range r.comments {
		if comment.PostID == postID {
			delete(r.comments, id)
		}
	}
	return nil
}

func (r *memCommentRepo) UpdateAuthorName(ctx context.Context, authorID int, name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, comment := range r.comments {
		if comment.AuthorID == authorID {
			comment.AuthorName = name
			r.comments[id] = comment
		}
	}
	return nil
}

type testEnv struct {
	router   *chi.Mux
	users    *memUserRepo
	posts    *memPostRepo
	comments *memCommentRepo
	tokens   *auth.TokenIssuer
}

// newTestEnv wires the API routes the way internal/server does, backed by
// in-memory repositories, no broker, and no avatar storage.
func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	userRepo := newMemUserRepo()
	postRepo := newMemPostRepo()
	commentRepo := newMemCommentRepo()

	userService := services.NewUserService(userRepo)
	postService := services.NewPostService(postRepo, commentRepo)
	commentService := services.NewCommentService(commentRepo)
	fanout := services.NewRenameFanout(postRepo, commentRepo, nil)

	tokens := auth.NewTokenIssuer(testSecret)
	requireAuth := handlers.RequireAuth(tokens, userService)
	optionalAuth := handlers.OptionalAuth(tokens, userService)

	router := chi.NewRouter()
	router.Route("/api", func(r chi.Router) {
		handlers.AuthRouter(r, userService, tokens, requireAuth)
		handlers.ProfileRouter(r, userService, fanout, nil, requireAuth)
		handlers.BlogRouter(r, postService, commentService, requireAuth, optionalAuth)
	})

	return &testEnv{
		router:   router,
		users:    userRepo,
		posts:    postRepo,
		comments: commentRepo,
		tokens:   tokens,
	}
}

// do performs a JSON request against the test router. token may be empty.
func (e *testEnv) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", token)
	}

	recorder := httptest.NewRecorder()
	e.router.ServeHTTP(recorder, req)
	return recorder
}

func decodeBody[T any](t *testing.T, recorder *httptest.ResponseRecorder) T {
	t.Helper()
	var value T
	require.NoError(t, json.NewDecoder(recorder.Body).Decode(&value))
	return value
}

// signup registers a user and returns a valid token for them.
func (e *testEnv) signup(t *testing.T, email, password, firstName, lastName string) (types.User, string) {
	t.Helper()

	resp := e.do(t, http.MethodPost, "/api/signup", "", map[string]string{
		"email":     email,
		"password":  password,
		"firstName": firstName,
		"lastName":  lastName,
	})
	require.Equal(t, http.StatusOK, resp.Code)

	user, err := e.users.GetByEmail(context.Background(), strings.ToLower(email))
	require.NoError(t, err)

	token, err := e.tokens.Issue(user.ID)
	require.NoError(t, err)
	return user, token
}
