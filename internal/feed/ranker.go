package feed

import (
	"sort"
	"time"

	"social-service/internal/models"
)

// Tier is the priority bucket of a post relative to a viewer. Lower tiers come first.
type Tier int

const (
	TierOwnRecent Tier = iota + 1
	TierFollowing
	TierFollowersOfFollowings
	TierFollowers
	TierFollowingsOfFollowings
	TierNearby
	TierOther
)

// OwnPostWindow is how long the viewer's own post stays pinned to the top tier.
const OwnPostWindow = 24 * time.Hour

// RankedPost is a post with the tier it was placed in.
type RankedPost struct {
	models.Post
	Tier Tier
}

// TierOf classifies a post for the viewer described by sets. The first matching rule wins.
func TierOf(post models.Post, sets RelationSets, now time.Time) Tier {
	switch {
	case post.AuthorID == sets.ViewerID && now.Sub(post.CreatedAt) < OwnPostWindow:
		return TierOwnRecent
	case sets.Following.Has(post.AuthorID):
		return TierFollowing
	case sets.FollowersOfFollowings.Has(post.AuthorID):
		return TierFollowersOfFollowings
	case sets.Followers.Has(post.AuthorID):
		return TierFollowers
	case sets.FollowingsOfFollowings.Has(post.AuthorID):
		return TierFollowingsOfFollowings
	case sets.Nearby.Has(post.AuthorID):
		return TierNearby
	default:
		return TierOther
	}
}

// Rank orders posts by tier, then newest first, then highest id first. The order is total,
// so equal inputs always produce equal output.
func Rank(posts []models.Post, sets RelationSets, now time.Time) []RankedPost {
	ranked := make([]RankedPost, len(posts))
	for i, post := range posts {
		ranked[i] = RankedPost{Post: post, Tier: TierOf(post, sets, now)}
	}
	sort.Slice(ranked, func(i, j int) bool {
		a, b := ranked[i], ranked[j]
		if a.Tier != b.Tier {
			return a.Tier < b.Tier
		}
		return newerFirst(a.Post, b.Post)
	})
	return ranked
}

func newerFirst(a, b models.Post) bool {
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.After(b.CreatedAt)
	}
	return a.ID > b.ID
}
