package feed

import (
	"context"
	"errors"
	"math"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"social-service/internal/mocks"
	"social-service/internal/models"
	"social-service/internal/repositories"
)

func newTestService(t *testing.T, posts repositories.PostRepository, follows *mocks.FollowRepositoryMock, accounts *mocks.AccountRepositoryMock, cache RelationCache) *Service {
	t.Helper()
	svc, err := NewService(ServiceConfig{
		Posts:     posts,
		Relations: NewRelationLoader(follows, accounts),
		Cache:     cache,
		Clock:     func() time.Time { return baseNow },
	})
	require.NoError(t, err)
	return svc
}

func TestRelationLoaderExcludesViewer(t *testing.T) {
	follows := new(mocks.FollowRepositoryMock)
	accounts := new(mocks.AccountRepositoryMock)
	ctx := context.Background()

	accounts.On("GetAccount", ctx, 1).Return(models.Account{ID: 1, City: "Dhaka", State: "Dhaka"}, nil)
	accounts.On("NearbyAccountIDs", ctx, "Dhaka", "Dhaka").Return([]int{1, 3}, nil)
	follows.On("FollowingIDs", ctx, 1).Return([]int{2}, nil)
	follows.On("FollowerIDs", ctx, 1).Return([]int{2}, nil)
	follows.On("FollowersOf", ctx, []int{2}).Return([]int{1, 5}, nil)
	follows.On("FollowingsOf", ctx, []int{2}).Return([]int{1, 6}, nil)

	sets, err := NewRelationLoader(follows, accounts).Load(ctx, 1)
	require.NoError(t, err)

	for _, set := range []IDSet{sets.Following, sets.FollowersOfFollowings, sets.Followers, sets.FollowingsOfFollowings, sets.Nearby} {
		assert.False(t, set.Has(1))
	}
	assert.True(t, sets.FollowersOfFollowings.Has(5))
	assert.True(t, sets.FollowingsOfFollowings.Has(6))
	assert.True(t, sets.Nearby.Has(3))
}

// rankedPostStore serves feed windows from memory with the pure ranker, the same contract the
// SQL tier projection implements.
type rankedPostStore struct {
	mocks.PostRepositoryMock
	posts   []models.Post
	queries []repositories.FeedQuery
}

func (s *rankedPostStore) ListFeedPage(_ context.Context, q repositories.FeedQuery) ([]repositories.TieredPost, error) {
	s.queries = append(s.queries, q)
	var ranked []RankedPost
	if q.ViewerID == nil {
		for _, p := range s.posts {
			ranked = append(ranked, RankedPost{Post: p})
		}
		sort.Slice(ranked, func(i, j int) bool { return newerFirst(ranked[i].Post, ranked[j].Post) })
	} else {
		sets := RelationSets{
			ViewerID:               *q.ViewerID,
			Following:              NewIDSet(q.Following...),
			FollowersOfFollowings:  NewIDSet(q.FollowersOfFollowings...),
			Followers:              NewIDSet(q.Followers...),
			FollowingsOfFollowings: NewIDSet(q.FollowingsOfFollowings...),
			Nearby:                 NewIDSet(q.Nearby...),
		}
		ranked = Rank(s.posts, sets, q.OwnSince.Add(OwnPostWindow))
	}
	rows := []repositories.TieredPost{}
	for i := q.Offset; i < len(ranked) && len(rows) < q.Limit; i++ {
		rows = append(rows, repositories.TieredPost{Post: ranked[i].Post, Tier: int(ranked[i].Tier)})
	}
	return rows, nil
}

func expectRelations(follows *mocks.FollowRepositoryMock, accounts *mocks.AccountRepositoryMock, viewer int, following []int) {
	accounts.On("GetAccount", mock.Anything, viewer).Return(models.Account{ID: viewer, City: "Dhaka"}, nil).Once()
	accounts.On("NearbyAccountIDs", mock.Anything, "Dhaka", "").Return([]int{3}, nil).Once()
	follows.On("FollowingIDs", mock.Anything, viewer).Return(following, nil).Once()
	follows.On("FollowerIDs", mock.Anything, viewer).Return([]int{}, nil).Once()
	follows.On("FollowersOf", mock.Anything, following).Return([]int{}, nil).Once()
	follows.On("FollowingsOf", mock.Anything, following).Return([]int{}, nil).Once()
}

func TestFeedRanksAndCachesRelations(t *testing.T) {
	store := &rankedPostStore{posts: []models.Post{
		post(3, 4, time.Minute),
		post(2, 3, time.Hour),
		post(1, 2, time.Hour),
	}}
	follows := new(mocks.FollowRepositoryMock)
	accounts := new(mocks.AccountRepositoryMock)
	cache := NewMemoryRelationCache(time.Minute, func() time.Time { return baseNow })
	svc := newTestService(t, store, follows, accounts, cache)
	ctx := context.Background()
	viewer := 1
	expectRelations(follows, accounts, viewer, []int{2})

	page, err := svc.Feed(ctx, &viewer, Page{Number: 1, Size: 2})
	require.NoError(t, err)
	require.Len(t, page.Items, 2)
	assert.Equal(t, 1, page.Items[0].ID)
	assert.Equal(t, TierFollowing, page.Items[0].Tier)
	assert.Equal(t, 2, page.Items[1].ID)
	assert.Equal(t, TierNearby, page.Items[1].Tier)
	assert.True(t, page.HasMore)

	page, err = svc.Feed(ctx, &viewer, Page{Number: 2, Size: 2})
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.Equal(t, 3, page.Items[0].ID)
	assert.False(t, page.HasMore)

	require.Len(t, store.queries, 2)
	first := store.queries[0]
	assert.Equal(t, []int{2}, first.Following)
	assert.Equal(t, []int{3}, first.Nearby)
	assert.Equal(t, baseNow.Add(-OwnPostWindow), first.OwnSince)
	assert.Equal(t, 0, first.Offset)
	assert.Equal(t, 3, first.Limit)
	assert.Equal(t, 2, store.queries[1].Offset)

	follows.AssertExpectations(t)
	accounts.AssertExpectations(t)
}

func TestFeedReachesFollowedPostOlderThanManyStrangerPosts(t *testing.T) {
	const followed, strangers = 2, 600
	store := &rankedPostStore{}
	for i := 1; i <= strangers; i++ {
		store.posts = append(store.posts, post(i, 1000+i, time.Duration(i)*time.Minute))
	}
	store.posts = append(store.posts, post(5000, followed, 30*24*time.Hour))

	follows := new(mocks.FollowRepositoryMock)
	accounts := new(mocks.AccountRepositoryMock)
	svc := newTestService(t, store, follows, accounts, NewMemoryRelationCache(time.Minute, func() time.Time { return baseNow }))
	viewer := 1
	expectRelations(follows, accounts, viewer, []int{followed})

	page, err := svc.Feed(context.Background(), &viewer, Page{Number: 1, Size: 100})
	require.NoError(t, err)
	require.NotEmpty(t, page.Items)
	assert.Equal(t, 5000, page.Items[0].ID)
	assert.Equal(t, TierFollowing, page.Items[0].Tier)

	seen := map[int]bool{}
	for number := 1; ; number++ {
		page, err := svc.Feed(context.Background(), &viewer, Page{Number: number, Size: 100})
		require.NoError(t, err)
		for _, item := range page.Items {
			require.False(t, seen[item.ID], "post %d served twice", item.ID)
			seen[item.ID] = true
		}
		if !page.HasMore {
			break
		}
	}
	assert.Len(t, seen, strangers+1)
}

func TestFeedForAnonymousViewerIsChronological(t *testing.T) {
	store := &rankedPostStore{posts: []models.Post{
		post(1, 2, time.Hour),
		post(2, 3, time.Minute),
	}}
	svc := newTestService(t, store, new(mocks.FollowRepositoryMock), new(mocks.AccountRepositoryMock), nil)

	page, err := svc.Feed(context.Background(), nil, Page{})
	require.NoError(t, err)
	require.Len(t, page.Items, 2)
	assert.Equal(t, 2, page.Items[0].ID)
	assert.Equal(t, Tier(0), page.Items[0].Tier)
	assert.Equal(t, 20, page.PageSize)
	require.Len(t, store.queries, 1)
	assert.Nil(t, store.queries[0].ViewerID)
	assert.Equal(t, 21, store.queries[0].Limit)
}

func TestFeedHugePageNumberIsEmpty(t *testing.T) {
	posts := new(mocks.PostRepositoryMock)
	svc := newTestService(t, posts, new(mocks.FollowRepositoryMock), new(mocks.AccountRepositoryMock), nil)

	page, err := svc.Feed(context.Background(), nil, svc.PageFor(math.MaxInt/50, 100, ""))
	require.NoError(t, err)
	assert.Empty(t, page.Items)
	assert.False(t, page.HasMore)
	assert.Equal(t, math.MaxInt/50, page.Page)
	posts.AssertNotCalled(t, "ListFeedPage", mock.Anything, mock.Anything)

	_, ok := Page{Number: math.MaxInt, Size: 2}.offset()
	assert.False(t, ok)
	offset, ok := Page{Number: 3, Size: 20}.offset()
	assert.True(t, ok)
	assert.Equal(t, 40, offset)
}

func TestFeedStoreError(t *testing.T) {
	posts := new(mocks.PostRepositoryMock)
	svc := newTestService(t, posts, new(mocks.FollowRepositoryMock), new(mocks.AccountRepositoryMock), nil)
	posts.On("ListFeedPage", mock.Anything, mock.Anything).Return(nil, errors.New("db down"))

	_, err := svc.Feed(context.Background(), nil, Page{})
	assert.EqualError(t, err, "db down")
}

func TestFeedUnknownViewer(t *testing.T) {
	posts := new(mocks.PostRepositoryMock)
	accounts := new(mocks.AccountRepositoryMock)
	svc := newTestService(t, posts, new(mocks.FollowRepositoryMock), accounts, nil)
	viewer := 9

	accounts.On("GetAccount", mock.Anything, 9).Return(nil, repositories.ErrAccountNotFound)

	_, err := svc.Feed(context.Background(), &viewer, Page{})
	assert.ErrorIs(t, err, ErrUnknownViewer)
	posts.AssertNotCalled(t, "ListFeedPage", mock.Anything, mock.Anything)
}

func TestPageFor(t *testing.T) {
	svc := newTestService(t, new(mocks.PostRepositoryMock), new(mocks.FollowRepositoryMock), new(mocks.AccountRepositoryMock), nil)

	assert.Equal(t, Page{Number: 1, Size: 20}, svc.PageFor(0, 0, ""))
	assert.Equal(t, Page{Number: 1, Size: 10}, svc.PageFor(1, 0, "Mobile"))
	assert.Equal(t, Page{Number: 3, Size: 100}, svc.PageFor(3, 500, "mobile"))
	assert.Equal(t, Page{Number: 2, Size: 15}, svc.PageFor(2, 15, "desktop"))
}

func TestToItemsHidesTierByDefault(t *testing.T) {
	page := FeedPage{Items: []RankedPost{{Post: models.Post{ID: 1, AuthorID: 2, AuthorName: "Rahim"}, Tier: TierFollowing}}}

	items := page.ToItems(false)
	assert.Equal(t, Tier(0), items[0].Tier)
	assert.Equal(t, models.AccountSummary{ID: 2, DisplayName: "Rahim"}, items[0].Author)
	assert.Equal(t, TierFollowing, page.ToItems(true)[0].Tier)
}
