package repositories

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"social-service/internal/models"
)

var ErrPostNotFound = errors.New("post not found")

// PostRepository reads feed pages and post visibility state.
type PostRepository interface {
	ListFeedPage(ctx context.Context, query FeedQuery) ([]TieredPost, error)
	GetPost(ctx context.Context, postID int) (models.Post, error)
	HidePost(ctx context.Context, accountID, postID int) error
}

// FeedQuery selects one window of a feed. A nil ViewerID selects the chronological public feed;
// otherwise the id lists are the viewer's relation sets in tier order and OwnSince bounds the
// viewer's own pinned posts.
type FeedQuery struct {
	ViewerID               *int
	OwnSince               time.Time
	Following              []int
	FollowersOfFollowings  []int
	Followers              []int
	FollowingsOfFollowings []int
	Nearby                 []int
	Offset                 int
	Limit                  int
}

// TieredPost is a feed row with the tier it was placed in. Tier is 0 in the chronological feed.
type TieredPost struct {
	models.Post
	Tier int `db:"tier"`
}

// PostRepo is a sqlx implementation of PostRepository.
type PostRepo struct {
	db *sqlx.DB
}

// NewPostRepo constructs a PostRepo.
func NewPostRepo(db *sqlx.DB) *PostRepo {
	return &PostRepo{db: db}
}

const postColumns = `p.id, p.author_id, a.display_name AS author_name, p.title, p.content, p.visibility, p.created_at,
        (SELECT COUNT(*) FROM post_likes l WHERE l.post_id = p.id) AS like_count,
        (SELECT COUNT(*) FROM post_comments c WHERE c.post_id = p.id) AS comment_count`

// tierColumn mirrors feed.TierOf: the first matching rule wins.
const tierColumn = `CASE
            WHEN p.author_id = $1 AND p.created_at > $2 THEN 1
            WHEN p.author_id = ANY($3) THEN 2
            WHEN p.author_id = ANY($4) THEN 3
            WHEN p.author_id = ANY($5) THEN 4
            WHEN p.author_id = ANY($6) THEN 5
            WHEN p.author_id = ANY($7) THEN 6
            ELSE 7
        END AS tier`

// ListFeedPage returns one window of the feed over every eligible post. Flagged posts, posts of
// banned authors and, for an authenticated viewer, hidden posts and other people's private posts
// are excluded; everything else is ordered by (tier, created_at DESC, id DESC).
func (r *PostRepo) ListFeedPage(ctx context.Context, query FeedQuery) ([]TieredPost, error) {
	posts := []TieredPost{}
	if query.ViewerID == nil {
		err := r.db.SelectContext(ctx, &posts, `SELECT `+postColumns+`, 0 AS tier
        FROM posts p JOIN accounts a ON a.id = p.author_id
        WHERE p.is_flagged = FALSE AND a.is_banned = FALSE AND p.visibility = 'public'
        ORDER BY p.created_at DESC, p.id DESC
        OFFSET $1 LIMIT $2`, query.Offset, query.Limit)
		return posts, err
	}

	err := r.db.SelectContext(ctx, &posts, `SELECT `+postColumns+`, `+tierColumn+`
        FROM posts p JOIN accounts a ON a.id = p.author_id
        WHERE p.is_flagged = FALSE AND a.is_banned = FALSE
        AND (p.visibility = 'public' OR p.author_id = $1)
        AND NOT EXISTS (SELECT 1 FROM hidden_posts h WHERE h.post_id = p.id AND h.account_id = $1)
        ORDER BY tier, p.created_at DESC, p.id DESC
        OFFSET $8 LIMIT $9`,
		*query.ViewerID, query.OwnSince,
		pq.Array(nonNil(query.Following)), pq.Array(nonNil(query.FollowersOfFollowings)),
		pq.Array(nonNil(query.Followers)), pq.Array(nonNil(query.FollowingsOfFollowings)),
		pq.Array(nonNil(query.Nearby)),
		query.Offset, query.Limit)
	return posts, err
}

// nonNil keeps empty sets as '{}' rather than NULL.
func nonNil(ids []int) []int {
	if ids == nil {
		return []int{}
	}
	return ids
}

// GetPost fetches a single post.
func (r *PostRepo) GetPost(ctx context.Context, postID int) (models.Post, error) {
	var post models.Post
	err := r.db.GetContext(ctx, &post, `SELECT `+postColumns+`
        FROM posts p JOIN accounts a ON a.id = p.author_id WHERE p.id=$1`, postID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Post{}, ErrPostNotFound
	}
	return post, err
}

// HidePost excludes the post from the account's future feeds.
func (r *PostRepo) HidePost(ctx context.Context, accountID, postID int) error {
	_, err := r.db.ExecContext(ctx, `INSERT INTO hidden_posts (account_id, post_id) VALUES ($1, $2)
        ON CONFLICT (account_id, post_id) DO NOTHING`, accountID, postID)
	return err
}
