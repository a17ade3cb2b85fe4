package service_test

import (
	"context"
	"errors"
	"testing"

	"github.com/cwrk-planet/messaging-service/internal/domain"
	"github.com/cwrk-planet/messaging-service/internal/memstore"
	"github.com/cwrk-planet/messaging-service/internal/service"
	"github.com/cwrk-planet/messaging-service/pkg/errs"

	"github.com/samber/lo"
	"github.com/stretchr/testify/require"
)

type failingFollows struct{}

func (failingFollows) FollowingIDs(context.Context, string) ([]string, error) {
	return nil, errors.New("timeout")
}

func TestSidebarService_List(t *testing.T) {
	ctx := t.Context()
	store := memstore.New()
	store.AddUser(domain.User{ID: "alice", Name: "Alice"})
	store.AddUser(domain.User{ID: "bob", Name: "Bob", Avatar: lo.ToPtr("https://cdn/bob.png")})
	store.AddUser(domain.User{ID: "carol", Name: "Carol"})
	store.Follow("alice", "carol")

	_, err := store.Append(ctx, "bob", "alice", "hey")
	require.NoError(t, err)
	_, err = store.Append(ctx, "bob", "alice", "you there?")
	require.NoError(t, err)
	_, err = store.Append(ctx, "alice", "carol", "hi")
	require.NoError(t, err)

	svc := service.NewSidebarService(store, store, store)
	got, err := svc.List(ctx, "alice")
	require.NoError(t, err)

	byID := lo.KeyBy(got, func(u domain.SidebarUser) string { return u.ID })
	require.Len(t, byID, 2)
	require.NotContains(t, byID, "alice")

	require.EqualValues(t, 2, byID["bob"].UnreadCount)
	require.False(t, byID["bob"].IsFollowing)
	require.Equal(t, "https://cdn/bob.png", *byID["bob"].Avatar)

	require.Zero(t, byID["carol"].UnreadCount)
	require.True(t, byID["carol"].IsFollowing)
}

func TestSidebarService_ListFailsOnAnySource(t *testing.T) {
	store := memstore.New()
	store.AddUser(domain.User{ID: "bob", Name: "Bob"})

	svc := service.NewSidebarService(store, failingFollows{}, store)
	_, err := svc.List(t.Context(), "alice")
	require.ErrorIs(t, err, errs.ErrPersistence)
}
