package friends

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/nhle/socialterm/internal/api"
	"github.com/nhle/socialterm/internal/api/mock_api"
	"github.com/nhle/socialterm/internal/model"
)

var ctx = context.Background()

type fixture struct {
	*Store
	gw *mock_api.MockGateway
}

func newFixture(t *testing.T) *fixture {
	ctrl := gomock.NewController(t)
	gw := mock_api.NewMockGateway(ctrl)
	return &fixture{Store: New(gw), gw: gw}
}

func returnUsers(users ...model.User) func(context.Context, string, any, ...api.RequestOption) error {
	return func(_ context.Context, _ string, result any, _ ...api.RequestOption) error {
		*result.(*[]model.User) = users
		return nil
	}
}

func returnRequests(reqs ...model.FriendRequest) func(context.Context, string, any, ...api.RequestOption) error {
	return func(_ context.Context, _ string, result any, _ ...api.RequestOption) error {
		*result.(*[]model.FriendRequest) = reqs
		return nil
	}
}

func TestStore_FetchFriends(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		fx := newFixture(t)
		fx.gw.EXPECT().Get(ctx, "/friends", gomock.Any()).DoAndReturn(returnUsers(model.User{ID: "u2", Username: "bob"}))

		assert.Equal(t, api.OK, fx.FetchFriends(ctx))
		assert.Len(t, fx.Friends(), 1)
		assert.Empty(t, fx.Err())
		assert.False(t, fx.Loading())
	})
	t.Run("fallback message", func(t *testing.T) {
		fx := newFixture(t)
		fx.gw.EXPECT().Get(ctx, "/friends", gomock.Any()).Return(&api.ResponseError{StatusCode: 500})

		res := fx.FetchFriends(ctx)
		assert.Equal(t, "Failed to fetch friends", res.Message)
		assert.Equal(t, "Failed to fetch friends", fx.Err())
	})
	t.Run("server message", func(t *testing.T) {
		fx := newFixture(t)
		fx.gw.EXPECT().Get(ctx, "/friends", gomock.Any()).Return(&api.ResponseError{StatusCode: 403, ServerMessage: "Token expired"})

		assert.Equal(t, "Token expired", fx.FetchFriends(ctx).Message)
	})
}

func TestStore_Accept(t *testing.T) {
	t.Run("refreshes both lists", func(t *testing.T) {
		fx := newFixture(t)
		gomock.InOrder(
			fx.gw.EXPECT().Put(ctx, "/friends/accept/f1", nil, nil).Return(nil),
			fx.gw.EXPECT().Get(ctx, "/friends/requests", gomock.Any()).DoAndReturn(returnRequests()),
			fx.gw.EXPECT().Get(ctx, "/friends", gomock.Any()).DoAndReturn(returnUsers(model.User{ID: "u2"})),
		)

		assert.Equal(t, api.OK, fx.Accept(ctx, "f1"))
		assert.Len(t, fx.Friends(), 1)
		assert.Empty(t, fx.Pending())
	})
	t.Run("failure does not refresh", func(t *testing.T) {
		fx := newFixture(t)
		fx.gw.EXPECT().Put(ctx, "/friends/accept/f1", nil, nil).Return(&api.ResponseError{StatusCode: 400, ServerMessage: "nope"})

		assert.Equal(t, api.Result{Message: "Failed to accept request"}, fx.Accept(ctx, "f1"))
	})
}

func TestStore_Reject(t *testing.T) {
	fx := newFixture(t)
	gomock.InOrder(
		fx.gw.EXPECT().Delete(ctx, "/friends/reject/f1", nil).Return(nil),
		fx.gw.EXPECT().Get(ctx, "/friends/requests", gomock.Any()).DoAndReturn(returnRequests(model.FriendRequest{ID: "f2"})),
	)

	assert.Equal(t, api.OK, fx.Reject(ctx, "f1"))
	require.Len(t, fx.Pending(), 1)
	assert.Equal(t, "f2", fx.Pending()[0].ID)

	fx.gw.EXPECT().Delete(ctx, "/friends/reject/f2", nil).Return(errors.New("x"))
	assert.Equal(t, api.Result{Message: "Failed to reject request"}, fx.Reject(ctx, "f2"))
}

func TestStore_SendRequest(t *testing.T) {
	fx := newFixture(t)
	fx.gw.EXPECT().Post(ctx, "/friends/request/u2", nil, nil).Return(nil)
	assert.Equal(t, api.OK, fx.SendRequest(ctx, "u2"))

	fx.gw.EXPECT().Post(ctx, "/friends/request/u3", nil, nil).Return(&api.NoResponseError{Err: errors.New("refused")})
	assert.Equal(t, api.Result{Message: "Failed to send request"}, fx.SendRequest(ctx, "u3"))
}

func TestStore_Search(t *testing.T) {
	fx := newFixture(t)

	assert.Equal(t, []model.User{}, fx.Search(ctx, "  "))

	fx.gw.EXPECT().Get(ctx, "/users/search", gomock.Any(), gomock.Any()).DoAndReturn(returnUsers(model.User{Username: "ann"}))
	assert.Len(t, fx.Search(ctx, "an"), 1)

	fx.gw.EXPECT().Get(ctx, "/users/search", gomock.Any(), gomock.Any()).Return(errors.New("x"))
	assert.Equal(t, []model.User{}, fx.Search(ctx, "an"))
}
