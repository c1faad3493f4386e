package repositories

import (
	"context"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

// FollowRepository answers follow-graph queries.
type FollowRepository interface {
	Follow(ctx context.Context, followerID, followingID int) (bool, error)
	Unfollow(ctx context.Context, followerID, followingID int) error
	FollowingIDs(ctx context.Context, accountID int) ([]int, error)
	FollowerIDs(ctx context.Context, accountID int) ([]int, error)
	FollowersOf(ctx context.Context, accountIDs []int) ([]int, error)
	FollowingsOf(ctx context.Context, accountIDs []int) ([]int, error)
	ListFollowing(ctx context.Context, accountID, offset, limit int) ([]int, error)
	ListFollowers(ctx context.Context, accountID, offset, limit int) ([]int, error)
}

// FollowRepo is a sqlx implementation of FollowRepository.
type FollowRepo struct {
	db *sqlx.DB
}

// NewFollowRepo constructs a FollowRepo.
func NewFollowRepo(db *sqlx.DB) *FollowRepo {
	return &FollowRepo{db: db}
}

// Follow creates the edge and reports whether it was new. Duplicate follows are a no-op.
func (r *FollowRepo) Follow(ctx context.Context, followerID, followingID int) (bool, error) {
	res, err := r.db.ExecContext(ctx, `INSERT INTO follows (follower_id, following_id) VALUES ($1, $2)
        ON CONFLICT (follower_id, following_id) DO NOTHING`, followerID, followingID)
	if err != nil {
		return false, err
	}
	count, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// Unfollow removes the edge if present.
func (r *FollowRepo) Unfollow(ctx context.Context, followerID, followingID int) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM follows WHERE follower_id=$1 AND following_id=$2`, followerID, followingID)
	return err
}

// FollowingIDs returns every account accountID follows.
func (r *FollowRepo) FollowingIDs(ctx context.Context, accountID int) ([]int, error) {
	var ids []int
	err := r.db.SelectContext(ctx, &ids, `SELECT following_id FROM follows WHERE follower_id=$1`, accountID)
	return ids, err
}

// FollowerIDs returns every account following accountID.
func (r *FollowRepo) FollowerIDs(ctx context.Context, accountID int) ([]int, error) {
	var ids []int
	err := r.db.SelectContext(ctx, &ids, `SELECT follower_id FROM follows WHERE following_id=$1`, accountID)
	return ids, err
}

// FollowersOf returns the distinct followers of any of accountIDs.
func (r *FollowRepo) FollowersOf(ctx context.Context, accountIDs []int) ([]int, error) {
	if len(accountIDs) == 0 {
		return nil, nil
	}
	var ids []int
	err := r.db.SelectContext(ctx, &ids, `SELECT DISTINCT follower_id FROM follows WHERE following_id = ANY($1)`, pq.Array(accountIDs))
	return ids, err
}

// FollowingsOf returns the distinct accounts followed by any of accountIDs.
func (r *FollowRepo) FollowingsOf(ctx context.Context, accountIDs []int) ([]int, error) {
	if len(accountIDs) == 0 {
		return nil, nil
	}
	var ids []int
	err := r.db.SelectContext(ctx, &ids, `SELECT DISTINCT following_id FROM follows WHERE follower_id = ANY($1)`, pq.Array(accountIDs))
	return ids, err
}

// ListFollowing pages through the accounts accountID follows, newest edge first.
func (r *FollowRepo) ListFollowing(ctx context.Context, accountID, offset, limit int) ([]int, error) {
	ids := []int{}
	err := r.db.SelectContext(ctx, &ids, `SELECT following_id FROM follows WHERE follower_id=$1
        ORDER BY created_at DESC, following_id DESC OFFSET $2 LIMIT $3`, accountID, offset, limit)
	return ids, err
}

// ListFollowers pages through the followers of accountID, newest edge first.
func (r *FollowRepo) ListFollowers(ctx context.Context, accountID, offset, limit int) ([]int, error) {
	ids := []int{}
	err := r.db.SelectContext(ctx, &ids, `SELECT follower_id FROM follows WHERE following_id=$1
        ORDER BY created_at DESC, follower_id DESC OFFSET $2 LIMIT $3`, accountID, offset, limit)
	return ids, err
}
