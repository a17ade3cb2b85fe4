package postgres

import (
	"context"
	"errors"

	"github.com/cwrk-planet/messaging-service/internal/domain"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// UserRepository is the read side of the user directory plus the follow
// relation the sidebar needs.
type UserRepository struct {
	db *pgxpool.Pool
}

func NewUserRepository(db *pgxpool.Pool) *UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) Lookup(ctx context.Context, userID string) (*domain.User, error) {
	var u domain.User
	err := r.db.QueryRow(ctx, qUserByID, userID).Scan(&u.ID, &u.Name, &u.Avatar)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *UserRepository) ListExcept(ctx context.Context, userID string) ([]domain.User, error) {
	rows, err := r.db.Query(ctx, qUsersExcept, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]domain.User, 0, 16)
	for rows.Next() {
		var u domain.User
		if err := rows.Scan(&u.ID, &u.Name, &u.Avatar); err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

// Upsert is used by seeding and tests; profile editing lives elsewhere.
func (r *UserRepository) Upsert(ctx context.Context, u domain.User) error {
	_, err := r.db.Exec(ctx, qUpsertUser, u.ID, u.Name, u.Avatar)
	return err
}

func (r *UserRepository) FollowingIDs(ctx context.Context, followerID string) ([]string, error) {
	rows, err := r.db.Query(ctx, qFollowingIDs, followerID)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowTo[string])
}

func (r *UserRepository) Follow(ctx context.Context, followerID, followingID string) error {
	_, err := r.db.Exec(ctx, qFollow, followerID, followingID)
	return err
}
