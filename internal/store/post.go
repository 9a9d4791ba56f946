package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/openblog/apiserver/types"
)

// PostRepository handles persistence for posts.
type PostRepository struct {
	db *sql.DB
}

func NewPostRepository(db *sql.DB) *PostRepository {
	return &PostRepository{db: db}
}

func (r *PostRepository) List(ctx context.Context, limit int) ([]types.Post, error) {
	if limit < 1 {
		limit = 100
	}

	const query = `
		SELECT id, title, categories, content, author_id, author_name, created_at
		FROM posts
		ORDER BY created_at DESC
		LIMIT $1`
	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectPosts(rows, limit)
}

func (r *PostRepository) ListByAuthor(ctx context.Context, authorID, limit int) ([]types.Post, error) {
	if limit < 1 {
		limit = 100
	}

	const query = `
		SELECT id, title, categories, content, author_id, author_name, created_at
		FROM posts
		WHERE author_id = $1
		ORDER BY created_at DESC
		LIMIT $2`
	rows, err := r.db.QueryContext(ctx, query, authorID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectPosts(rows, limit)
}

func collectPosts(rows *sql.Rows, limit int) ([]types.Post, error) {
	posts := make([]types.Post, 0, limit)
	for rows.Next() {
		var post types.Post
		var categoriesJSON []byte
		if err := rows.Scan(
			&post.ID,
			&post.Title,
			&categoriesJSON,
			&post.Content,
			&post.AuthorID,
			&post.AuthorName,
			&post.CreatedAt,
		); err != nil {
			return nil, err
		}
		_ = json.Unmarshal(categoriesJSON, &post.Categories)
		posts = append(posts, post)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return posts, nil
}

func (r *PostRepository) Get(ctx context.Context, id int) (types.Post, error) {
	const query = `
		SELECT id, title, categories, content, author_id, author_name, created_at
		FROM posts
		WHERE id = $1`
	var post types.Post
	var categoriesJSON []byte
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&post.ID,
		&post.Title,
		&categoriesJSON,
		&post.Content,
		&post.AuthorID,
		&post.AuthorName,
		&post.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.Post{}, ErrNotFound
		}
		return types.Post{}, err
	}
	_ = json.Unmarshal(categoriesJSON, &post.Categories)
	return post, nil
}

func (r *PostRepository) Create(ctx context.Context, post types.Post) (types.Post, error) {
	post.CreatedAt = time.Now()

	categoriesJSON, err := json.Marshal(post.Categories)
	if err != nil {
		return types.Post{}, err
	}

	const query = `
		INSERT INTO posts (title, categories, content, author_id, author_name, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id`
	if err := r.db.QueryRowContext(
		ctx,
		query,
		post.Title,
		categoriesJSON,
		post.Content,
		post.AuthorID,
		post.AuthorName,
		post.CreatedAt,
	).Scan(&post.ID); err != nil {
		return types.Post{}, err
	}
	return post, nil
}

func (r *PostRepository) Update(ctx context.Context, post types.Post) (types.Post, error) {
	categoriesJSON, err := json.Marshal(post.Categories)
	if err != nil {
		return types.Post{}, err
	}

	const query = `
		UPDATE posts
		SET title = $1,
			categories = $2,
			content = $3
		WHERE id = $4`
	result, err := r.db.ExecContext(ctx, query, post.Title, categoriesJSON, post.Content, post.ID)
	if err != nil {
		return types.Post{}, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return types.Post{}, err
	}
	if affected == 0 {
		return types.Post{}, ErrNotFound
	}
	return post, nil
}

func (r *PostRepository) Delete(ctx context.Context, id int) error {
	const query = `DELETE FROM posts WHERE id = $1`
	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// UpdateAuthorName rewrites the denormalized author name on every post by
// the given author. Used by the rename fan-out; best effort by design.
func (r *PostRepository) UpdateAuthorName(ctx context.Context, authorID int, name string) error {
	const query = `UPDATE posts SET author_name = $1 WHERE author_id = $2`
	_, err := r.db.ExecContext(ctx, query, name, authorID)
	return err
}
