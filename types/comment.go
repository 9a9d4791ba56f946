package types

import "time"

// Comment represents a reader comment attached to a post.
type Comment struct {
	// ID is the unique identifier of the comment.
	ID int `json:"id" db:"id"`

	// PostID references the post the comment belongs to.
	PostID int `json:"postId" db:"post_id"`

	// Content is the comment body.
	Content string `json:"content" db:"content"`

	// AuthorID references the user who wrote the comment. It never
	// changes after creation.
	AuthorID int `json:"authorId" db:"author_id"`

	// AuthorName is the author's display name, denormalized for reads.
	AuthorName string `json:"authorName" db:"author_name"`

	// CreatedAt is the timestamp when the comment was written.
	CreatedAt time.Time `json:"time" db:"created_at"`
}
