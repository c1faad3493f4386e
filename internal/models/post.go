package models

import "time"

const (
	VisibilityPublic  = "public"
	VisibilityPrivate = "private"
)

// Post is a business-network feed post with its derived counters.
type Post struct {
	ID           int       `db:"id" json:"id"`
	AuthorID     int       `db:"author_id" json:"-"`
	AuthorName   string    `db:"author_name" json:"-"`
	Title        string    `db:"title" json:"title"`
	Content      string    `db:"content" json:"content"`
	Visibility   string    `db:"visibility" json:"visibility"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	LikeCount    int       `db:"like_count" json:"like_count"`
	CommentCount int       `db:"comment_count" json:"comment_count"`
}

// Author returns the summary of the post author.
func (p Post) Author() AccountSummary {
	return AccountSummary{ID: p.AuthorID, DisplayName: p.AuthorName}
}
