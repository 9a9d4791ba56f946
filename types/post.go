package types

import "time"

// Post represents a published blog entry.
type Post struct {
	// ID is the unique identifier of the post.
	ID int `json:"id" db:"id"`

	// Title is the headline of the post.
	Title string `json:"title" db:"title"`

	// Categories are the post's topic labels, deduplicated on creation.
	Categories []string `json:"categories" db:"categories"`

	// Content is the post body.
	Content string `json:"content" db:"content"`

	// AuthorID references the user who created the post. It never
	// changes after creation.
	AuthorID int `json:"authorId" db:"author_id"`

	// AuthorName is the author's display name, denormalized for reads.
	// It is rewritten in bulk when the author renames themselves.
	AuthorName string `json:"authorName" db:"author_name"`

	// CreatedAt is the timestamp when the post was published.
	CreatedAt time.Time `json:"time" db:"created_at"`
}
