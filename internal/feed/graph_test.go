package feed

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"social-service/internal/mocks"
	"social-service/internal/models"
	"social-service/internal/repositories"
)

type recordingInvalidator struct{ ids []int }

func (r *recordingInvalidator) InvalidateRelations(_ context.Context, ids ...int) {
	r.ids = append(r.ids, ids...)
}

type recordingNotifier struct{ sent []models.Notification }

func (r *recordingNotifier) Notify(_ context.Context, n models.Notification) (models.Notification, error) {
	r.sent = append(r.sent, n)
	return n, nil
}

func newTestGraph() (*Graph, *mocks.FollowRepositoryMock, *mocks.AccountRepositoryMock, *recordingInvalidator, *recordingNotifier) {
	follows := new(mocks.FollowRepositoryMock)
	accounts := new(mocks.AccountRepositoryMock)
	invalidator := &recordingInvalidator{}
	notifier := &recordingNotifier{}
	graph := NewGraph(GraphConfig{Follows: follows, Accounts: accounts, Invalidator: invalidator, Notifier: notifier})
	return graph, follows, accounts, invalidator, notifier
}

func TestGraphFollowNotifiesOnlyNewEdges(t *testing.T) {
	graph, follows, accounts, invalidator, notifier := newTestGraph()
	accounts.On("GetAccount", mock.Anything, 2).Return(models.Account{ID: 2}, nil)
	follows.On("Follow", mock.Anything, 1, 2).Return(true, nil).Once()
	follows.On("Follow", mock.Anything, 1, 2).Return(false, nil).Once()

	created, err := graph.Follow(context.Background(), 1, 2)
	require.NoError(t, err)
	assert.True(t, created)

	created, err = graph.Follow(context.Background(), 1, 2)
	require.NoError(t, err)
	assert.False(t, created)

	require.Len(t, notifier.sent, 1)
	assert.Equal(t, models.NotificationFollow, notifier.sent[0].Type)
	assert.Equal(t, 2, *notifier.sent[0].RecipientID)
	assert.Equal(t, 1, notifier.sent[0].ActorID)
	assert.Equal(t, []int{1, 2, 1, 2}, invalidator.ids)
}

func TestGraphRejectsSelfFollow(t *testing.T) {
	graph, follows, _, _, notifier := newTestGraph()

	_, err := graph.Follow(context.Background(), 4, 4)
	assert.True(t, errors.Is(err, ErrFollowSelf))
	assert.True(t, errors.Is(graph.Unfollow(context.Background(), 4, 4), ErrFollowSelf))
	follows.AssertNotCalled(t, "Follow", mock.Anything, mock.Anything, mock.Anything)
	assert.Empty(t, notifier.sent)
}

func TestGraphFollowUnknownAccount(t *testing.T) {
	graph, follows, accounts, invalidator, _ := newTestGraph()
	accounts.On("GetAccount", mock.Anything, 9).Return(nil, repositories.ErrAccountNotFound)

	_, err := graph.Follow(context.Background(), 1, 9)
	assert.True(t, errors.Is(err, repositories.ErrAccountNotFound))
	follows.AssertNotCalled(t, "Follow", mock.Anything, mock.Anything, mock.Anything)
	assert.Empty(t, invalidator.ids)
}

func TestGraphUnfollowInvalidatesBothEnds(t *testing.T) {
	graph, follows, _, invalidator, _ := newTestGraph()
	follows.On("Unfollow", mock.Anything, 1, 2).Return(nil)

	require.NoError(t, graph.Unfollow(context.Background(), 1, 2))
	assert.Equal(t, []int{1, 2}, invalidator.ids)
}

func TestGraphListsClampWindow(t *testing.T) {
	graph, follows, accounts, _, _ := newTestGraph()
	accounts.On("GetAccount", mock.Anything, 3).Return(models.Account{ID: 3}, nil)
	follows.On("ListFollowing", mock.Anything, 3, 0, maxListLimit).Return([]int{4, 5}, nil)
	follows.On("ListFollowers", mock.Anything, 3, 10, defaultListLimit).Return([]int{6}, nil)

	following, err := graph.Following(context.Background(), 3, -5, 10000)
	require.NoError(t, err)
	assert.Equal(t, []int{4, 5}, following)

	followers, err := graph.Followers(context.Background(), 3, 10, 0)
	require.NoError(t, err)
	assert.Equal(t, []int{6}, followers)
}
