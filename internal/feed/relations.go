package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"social-service/internal/repositories"
)

// IDSet is a set of account ids. It serializes as a sorted JSON array.
type IDSet map[int]struct{}

// NewIDSet builds a set from ids.
func NewIDSet(ids ...int) IDSet {
	set := make(IDSet, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set
}

// Has reports membership. A nil set contains nothing.
func (s IDSet) Has(id int) bool {
	_, ok := s[id]
	return ok
}

// Slice returns the members in ascending order.
func (s IDSet) Slice() []int {
	ids := make([]int, 0, len(s))
	for id := range s {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

func (s IDSet) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Slice())
}

func (s *IDSet) UnmarshalJSON(data []byte) error {
	var ids []int
	if err := json.Unmarshal(data, &ids); err != nil {
		return err
	}
	*s = NewIDSet(ids...)
	return nil
}

// RelationSets holds the membership sets the ranker needs for one viewer. The viewer is
// never a member of any set.
type RelationSets struct {
	ViewerID               int   `json:"viewer_id"`
	Following              IDSet `json:"following"`
	FollowersOfFollowings  IDSet `json:"followers_of_followings"`
	Followers              IDSet `json:"followers"`
	FollowingsOfFollowings IDSet `json:"followings_of_followings"`
	Nearby                 IDSet `json:"nearby"`
}

func (r *RelationSets) excludeViewer() {
	for _, set := range []IDSet{r.Following, r.FollowersOfFollowings, r.Followers, r.FollowingsOfFollowings, r.Nearby} {
		delete(set, r.ViewerID)
	}
}

// RelationLoader computes relation sets from the follow graph and account locations.
type RelationLoader struct {
	follows  repositories.FollowRepository
	accounts repositories.AccountRepository
}

// NewRelationLoader constructs a RelationLoader.
func NewRelationLoader(follows repositories.FollowRepository, accounts repositories.AccountRepository) *RelationLoader {
	return &RelationLoader{follows: follows, accounts: accounts}
}

// Load computes the five membership sets of viewerID.
func (l *RelationLoader) Load(ctx context.Context, viewerID int) (RelationSets, error) {
	viewer, err := l.accounts.GetAccount(ctx, viewerID)
	if err != nil {
		return RelationSets{}, fmt.Errorf("load viewer: %w", err)
	}

	following, err := l.follows.FollowingIDs(ctx, viewerID)
	if err != nil {
		return RelationSets{}, fmt.Errorf("load following: %w", err)
	}
	followers, err := l.follows.FollowerIDs(ctx, viewerID)
	if err != nil {
		return RelationSets{}, fmt.Errorf("load followers: %w", err)
	}
	followersOfFollowings, err := l.follows.FollowersOf(ctx, following)
	if err != nil {
		return RelationSets{}, fmt.Errorf("load followers of followings: %w", err)
	}
	followingsOfFollowings, err := l.follows.FollowingsOf(ctx, following)
	if err != nil {
		return RelationSets{}, fmt.Errorf("load followings of followings: %w", err)
	}
	nearby, err := l.accounts.NearbyAccountIDs(ctx, viewer.City, viewer.State)
	if err != nil {
		return RelationSets{}, fmt.Errorf("load nearby: %w", err)
	}

	sets := RelationSets{
		ViewerID:               viewerID,
		Following:              NewIDSet(following...),
		FollowersOfFollowings:  NewIDSet(followersOfFollowings...),
		Followers:              NewIDSet(followers...),
		FollowingsOfFollowings: NewIDSet(followingsOfFollowings...),
		Nearby:                 NewIDSet(nearby...),
	}
	sets.excludeViewer()
	return sets, nil
}
