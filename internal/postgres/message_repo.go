package postgres

import (
	"context"

	"github.com/cwrk-planet/messaging-service/internal/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type MessageRepository struct {
	db *pgxpool.Pool
}

func NewMessageRepository(db *pgxpool.Pool) *MessageRepository {
	return &MessageRepository{db: db}
}

func (r *MessageRepository) Append(ctx context.Context, senderID, receiverID, text string) (*domain.Message, error) {
	row := r.db.QueryRow(ctx, qInsertMessage, uuid.NewString(), senderID, receiverID, text)

	var m domain.Message
	if err := row.Scan(&m.ID, &m.SenderID, &m.ReceiverID, &m.Text, &m.Read, &m.CreatedAt, &m.UpdatedAt); err != nil {
		return nil, err
	}
	return &m, nil
}

// Conversation returns both directions between userID and peerID, oldest first.
func (r *MessageRepository) Conversation(ctx context.Context, userID, peerID string) ([]domain.Message, error) {
	rows, err := r.db.Query(ctx, qConversation, userID, peerID)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowToStructByNameLax[domain.Message])
}

// MarkRead flips every unread message addressed to receiverID.
func (r *MessageRepository) MarkRead(ctx context.Context, receiverID string) (int64, error) {
	cmd, err := r.db.Exec(ctx, qMarkRead, receiverID)
	if err != nil {
		return 0, err
	}
	return cmd.RowsAffected(), nil
}

func (r *MessageRepository) UnreadCountsBySender(ctx context.Context, receiverID string) (map[string]int64, error) {
	rows, err := r.db.Query(ctx, qUnreadCounts, receiverID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string]int64)
	for rows.Next() {
		var (
			sender string
			n      int64
		)
		if err := rows.Scan(&sender, &n); err != nil {
			return nil, err
		}
		out[sender] = n
	}
	return out, rows.Err()
}
