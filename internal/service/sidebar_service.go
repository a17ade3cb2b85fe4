package service

import (
	"context"
	"fmt"

	"github.com/cwrk-planet/messaging-service/internal/domain"
	"github.com/cwrk-planet/messaging-service/pkg/errs"

	"github.com/samber/lo"
	"golang.org/x/sync/errgroup"
)

// Directory resolves user identities. Storage of users lives elsewhere.
type Directory interface {
	Lookup(ctx context.Context, userID string) (*domain.User, error)
	ListExcept(ctx context.Context, userID string) ([]domain.User, error)
}

type FollowRelation interface {
	FollowingIDs(ctx context.Context, followerID string) ([]string, error)
}

type UnreadCounter interface {
	UnreadCountsBySender(ctx context.Context, receiverID string) (map[string]int64, error)
}

// SidebarService joins the directory with follow state and unread counts.
type SidebarService struct {
	directory Directory
	follows   FollowRelation
	unread    UnreadCounter
}

func NewSidebarService(dir Directory, follows FollowRelation, unread UnreadCounter) *SidebarService {
	return &SidebarService{directory: dir, follows: follows, unread: unread}
}

// List returns every other user with isFollowing and unreadCount for userID.
func (s *SidebarService) List(ctx context.Context, userID string) ([]domain.SidebarUser, error) {
	var (
		users     []domain.User
		following []string
		counts    map[string]int64
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		users, err = s.directory.ListExcept(gctx, userID)
		return wrapOp("list users", err)
	})
	g.Go(func() (err error) {
		following, err = s.follows.FollowingIDs(gctx, userID)
		return wrapOp("list following", err)
	})
	g.Go(func() (err error) {
		counts, err = s.unread.UnreadCountsBySender(gctx, userID)
		return wrapOp("unread counts", err)
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	followSet := lo.Keyify(following)
	out := make([]domain.SidebarUser, 0, len(users))
	for _, u := range users {
		if u.ID == userID {
			continue
		}
		_, isFollowing := followSet[u.ID]
		out = append(out, domain.SidebarUser{
			ID:          u.ID,
			Name:        u.Name,
			Avatar:      u.Avatar,
			IsFollowing: isFollowing,
			UnreadCount: counts[u.ID],
		})
	}
	return out, nil
}

func wrapOp(op string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %s: %w", errs.ErrPersistence, op, err)
}
