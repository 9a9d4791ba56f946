package services

import (
	"context"

	"github.com/openblog/apiserver/internal/auth"
	"github.com/openblog/apiserver/types"
)

// PostRepository defines persistence operations for posts.
type PostRepository interface {
	List(ctx context.Context, limit int) ([]types.Post, error)
	ListByAuthor(ctx context.Context, authorID, limit int) ([]types.Post, error)
	Get(ctx context.Context, id int) (types.Post, error)
	Create(ctx context.Context, post types.Post) (types.Post, error)
	Update(ctx context.Context, post types.Post) (types.Post, error)
	Delete(ctx context.Context, id int) error
}

const defaultListLimit = 100

// PostService encapsulates post use-cases.
type PostService struct {
	repo     PostRepository
	comments CommentRepository
}

func NewPostService(repo PostRepository, comments CommentRepository) *PostService {
	return &PostService{repo: repo, comments: comments}
}

func (s *PostService) List(ctx context.Context) ([]types.Post, error) {
	return s.repo.List(ctx, defaultListLimit)
}

func (s *PostService) ListByAuthor(ctx context.Context, authorID int) ([]types.Post, error) {
	return s.repo.ListByAuthor(ctx, authorID, defaultListLimit)
}

func (s *PostService) Get(ctx context.Context, id int) (types.Post, error) {
	return s.repo.Get(ctx, id)
}

func (s *PostService) Create(ctx context.Context, post types.Post) (types.Post, error) {
	return s.repo.Create(ctx, post)
}

func (s *PostService) Update(ctx context.Context, post types.Post) (types.Post, error) {
	return s.repo.Update(ctx, post)
}

// Delete removes a post together with its comments. The comment sweep runs
// first so a failed post delete never leaves orphaned comments behind.
func (s *PostService) Delete(ctx context.Context, id int) error {
	if err := s.comments.DeleteByPost(ctx, id); err != nil {
		return err
	}
	return s.repo.Delete(ctx, id)
}

// AllowChange reports whether the given user may edit or delete the post.
// A non-owner (including an unauthenticated requester) gets false, not an
// error.
func (s *PostService) AllowChange(ctx context.Context, postID, userID int) (bool, error) {
	post, err := s.repo.Get(ctx, postID)
	if err != nil {
		return false, err
	}
	return auth.Owns(post.AuthorID, userID), nil
}
