package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/openblog/apiserver/types"
)

// CommentRepository handles persistence for comments.
type CommentRepository struct {
	db *sql.DB
}

func NewCommentRepository(db *sql.DB) *CommentRepository {
	return &CommentRepository{db: db}
}

func (r *CommentRepository) ListByPost(ctx context.Context, postID, limit int) ([]types.Comment, error) {
	if limit < 1 {
		limit = 100
	}

	const query = `
		SELECT id, post_id, content, author_id, author_name, created_at
		FROM comments
		WHERE post_id = $1
		ORDER BY created_at ASC
		LIMIT $2`
	rows, err := r.db.QueryContext(ctx, query, postID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	comments := make([]types.Comment, 0, limit)
	for rows.Next() {
		var comment types.Comment
		if err := rows.Scan(
			&comment.ID,
			&comment.PostID,
			&comment.Content,
			&comment.AuthorID,
			&comment.AuthorName,
			&comment.CreatedAt,
		); err != nil {
			return nil, err
		}
		comments = append(comments, comment)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return comments, nil
}

func (r *CommentRepository) Create(ctx context.Context, comment types.Comment) (types.Comment, error) {
	comment.CreatedAt = time.Now()

	const query = `
		INSERT INTO comments (post_id, content, author_id, author_name, created_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id`
	if err := r.db.QueryRowContext(
		ctx,
		query,
		comment.PostID,
		comment.Content,
		comment.AuthorID,
		comment.AuthorName,
		comment.CreatedAt,
	).Scan(&comment.ID); err != nil {
		return types.Comment{}, err
	}
	return comment, nil
}

// DeleteByPost removes every comment attached to the given post.
func (r *CommentRepository) DeleteByPost(ctx context.Context, postID int) error {
	const query = `DELETE FROM comments WHERE post_id = $1`
	_, err := r.db.ExecContext(ctx, query, postID)
	return err
}

// UpdateAuthorName rewrites the denormalized author name on every comment by
// the given author. Used by the rename fan-out; best effort by design.
func (r *CommentRepository) UpdateAuthorName(ctx context.Context, authorID int, name string) error {
	const query = `UPDATE comments SET author_name = $1 WHERE author_id = $2`
	_, err := r.db.ExecContext(ctx, query, name, authorID)
	return err
}
