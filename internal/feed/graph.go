package feed

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/jmoiron/sqlx/types"
	"go.uber.org/zap"

	"social-service/internal/models"
	"social-service/internal/repositories"
)

var ErrFollowSelf = errors.New("cannot follow yourself")

const (
	defaultListLimit = 50
	maxListLimit     = 200
)

// Notifier persists and fans out notifications.
type Notifier interface {
	Notify(ctx context.Context, n models.Notification) (models.Notification, error)
}

// RelationInvalidator drops cached relation sets.
type RelationInvalidator interface {
	InvalidateRelations(ctx context.Context, viewerIDs ...int)
}

// GraphConfig wires a Graph.
type GraphConfig struct {
	Follows     repositories.FollowRepository
	Accounts    repositories.AccountRepository
	Invalidator RelationInvalidator
	Notifier    Notifier
	Logger      *zap.Logger
}

// Graph mutates and lists the follow graph.
type Graph struct {
	follows     repositories.FollowRepository
	accounts    repositories.AccountRepository
	invalidator RelationInvalidator
	notifier    Notifier
	logger      *zap.Logger
}

// NewGraph constructs a Graph.
func NewGraph(cfg GraphConfig) *Graph {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Graph{
		follows:     cfg.Follows,
		accounts:    cfg.Accounts,
		invalidator: cfg.Invalidator,
		notifier:    cfg.Notifier,
		logger:      logger,
	}
}

// Follow adds followerID -> followingID. It reports whether the edge is new; only a new
// edge notifies the followed account.
func (g *Graph) Follow(ctx context.Context, followerID, followingID int) (bool, error) {
	if followerID == followingID {
		return false, ErrFollowSelf
	}
	if _, err := g.accounts.GetAccount(ctx, followingID); err != nil {
		return false, err
	}

	created, err := g.follows.Follow(ctx, followerID, followingID)
	if err != nil {
		return false, err
	}
	g.invalidate(ctx, followerID, followingID)
	if created {
		g.notifyFollow(ctx, followerID, followingID)
	}
	return created, nil
}

// Unfollow removes followerID -> followingID if present.
func (g *Graph) Unfollow(ctx context.Context, followerID, followingID int) error {
	if followerID == followingID {
		return ErrFollowSelf
	}
	if err := g.follows.Unfollow(ctx, followerID, followingID); err != nil {
		return err
	}
	g.invalidate(ctx, followerID, followingID)
	return nil
}

// Following lists the accounts accountID follows.
func (g *Graph) Following(ctx context.Context, accountID, offset, limit int) ([]int, error) {
	if _, err := g.accounts.GetAccount(ctx, accountID); err != nil {
		return nil, err
	}
	offset, limit = listWindow(offset, limit)
	return g.follows.ListFollowing(ctx, accountID, offset, limit)
}

// Followers lists the accounts following accountID.
func (g *Graph) Followers(ctx context.Context, accountID, offset, limit int) ([]int, error) {
	if _, err := g.accounts.GetAccount(ctx, accountID); err != nil {
		return nil, err
	}
	offset, limit = listWindow(offset, limit)
	return g.follows.ListFollowers(ctx, accountID, offset, limit)
}

func listWindow(offset, limit int) (int, int) {
	if offset < 0 {
		offset = 0
	}
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	return offset, limit
}

func (g *Graph) invalidate(ctx context.Context, ids ...int) {
	if g.invalidator != nil {
		g.invalidator.InvalidateRelations(ctx, ids...)
	}
}

func (g *Graph) notifyFollow(ctx context.Context, followerID, followingID int) {
	if g.notifier == nil {
		return
	}
	payload, err := json.Marshal(map[string]int{"follower_id": followerID})
	if err != nil {
		return
	}
	recipient := followingID
	if _, err := g.notifier.Notify(ctx, models.Notification{
		RecipientID: &recipient,
		ActorID:     followerID,
		Type:        models.NotificationFollow,
		Title:       "New follower",
		Payload:     types.JSONText(payload),
	}); err != nil {
		g.logger.Warn("follow notification failed", zap.Int("follower_id", followerID), zap.Int("following_id", followingID), zap.Error(err))
	}
}
