package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/cwrk-planet/messaging-service/internal/domain"
	"github.com/cwrk-planet/messaging-service/internal/metrics"
	"github.com/cwrk-planet/messaging-service/pkg/errs"
	"github.com/cwrk-planet/messaging-service/pkg/logger"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const defaultMaxMessageLength = 4000

// MessageStore persists direct messages and answers read/unread queries.
type MessageStore interface {
	Append(ctx context.Context, senderID, receiverID, text string) (*domain.Message, error)
	Conversation(ctx context.Context, userID, peerID string) ([]domain.Message, error)
	MarkRead(ctx context.Context, receiverID string) (int64, error)
	UnreadCountsBySender(ctx context.Context, receiverID string) (map[string]int64, error)
}

type PresenceLookup interface {
	Lookup(userID string) (connID string, ok bool)
}

// Pusher writes one event to one live connection.
type Pusher interface {
	Push(connID, event string, payload any) error
}

// ChatService persists messages and then pushes them to whoever is online.
// Pushes are best-effort: an offline or failing peer never fails a call.
type ChatService struct {
	store    MessageStore
	presence PresenceLookup
	pusher   Pusher
	metrics  *metrics.Metrics
	tracer   trace.Tracer

	maxMessageLength int
}

func NewChatService(store MessageStore, presence PresenceLookup, pusher Pusher, m *metrics.Metrics) *ChatService {
	return &ChatService{
		store:            store,
		presence:         presence,
		pusher:           pusher,
		metrics:          m,
		tracer:           otel.Tracer("messaging-service/service"),
		maxMessageLength: defaultMaxMessageLength,
	}
}

func (s *ChatService) SetMaxMessageLength(n int) {
	if n > 0 {
		s.maxMessageLength = n
	}
}

// SendMessage stores the message, then pushes newMessage and
// unreadCountUpdate to the receiver and a newMessage echo to the sender.
func (s *ChatService) SendMessage(ctx context.Context, senderID, receiverID, text string) (*domain.Message, error) {
	ctx, span := s.tracer.Start(ctx, "ChatService.SendMessage", trace.WithAttributes(
		attribute.String("sender_id", senderID),
		attribute.String("receiver_id", receiverID),
	))
	defer span.End()

	receiverID = strings.TrimSpace(receiverID)
	if receiverID == "" {
		return nil, fmt.Errorf("%w: %w", errs.ErrInvalidInput, domain.ErrMissingPeer)
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, fmt.Errorf("%w: %w", errs.ErrInvalidInput, domain.ErrEmptyMessage)
	}
	if utf8.RuneCountInString(text) > s.maxMessageLength {
		return nil, fmt.Errorf("%w: %w", errs.ErrInvalidInput, domain.ErrMessageTooLong)
	}

	start := time.Now()
	msg, err := s.store.Append(ctx, senderID, receiverID, text)
	s.metrics.StoreOp("append", time.Since(start).Seconds(), err)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "append failed")
		return nil, persistenceErr("append message", err)
	}

	// the message is durable from here on; delivery can only be skipped
	s.pushTo(ctx, receiverID,
		outbound{domain.EventNewMessage, *msg},
		outbound{domain.EventUnreadCountUpdate, domain.UnreadCountPayload{From: senderID}},
	)
	s.pushTo(ctx, senderID, outbound{domain.EventNewMessage, *msg})

	return msg, nil
}

// MarkRead flips every unread message addressed to receiverID and tells the
// receiver's own socket so its other views can clear their badges.
func (s *ChatService) MarkRead(ctx context.Context, receiverID string) (int64, error) {
	ctx, span := s.tracer.Start(ctx, "ChatService.MarkRead", trace.WithAttributes(
		attribute.String("receiver_id", receiverID),
	))
	defer span.End()

	start := time.Now()
	n, err := s.store.MarkRead(ctx, receiverID)
	s.metrics.StoreOp("mark_read", time.Since(start).Seconds(), err)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "mark read failed")
		return 0, persistenceErr("mark read", err)
	}
	span.SetAttributes(attribute.Int64("marked", n))

	s.pushTo(ctx, receiverID, outbound{domain.EventMessageRead, receiverID})

	return n, nil
}

// Conversation returns both directions between userID and peerID, oldest first.
func (s *ChatService) Conversation(ctx context.Context, userID, peerID string) ([]domain.Message, error) {
	peerID = strings.TrimSpace(peerID)
	if peerID == "" {
		return nil, fmt.Errorf("%w: %w", errs.ErrInvalidInput, domain.ErrMissingPeer)
	}

	start := time.Now()
	msgs, err := s.store.Conversation(ctx, userID, peerID)
	s.metrics.StoreOp("conversation", time.Since(start).Seconds(), err)
	if err != nil {
		return nil, persistenceErr("conversation", err)
	}
	if msgs == nil {
		msgs = []domain.Message{}
	}
	return msgs, nil
}

type outbound struct {
	event   string
	payload any
}

func (s *ChatService) pushTo(ctx context.Context, userID string, events ...outbound) {
	connID, ok := s.presence.Lookup(userID)
	if !ok {
		for _, e := range events {
			s.metrics.Push(e.event, metrics.OutcomeOffline)
		}
		return
	}

	for _, e := range events {
		if err := s.pusher.Push(connID, e.event, e.payload); err != nil {
			s.metrics.Push(e.event, metrics.OutcomeFailed)
			logger.FromCtx(ctx).Debug("push failed",
				slog.String("event", e.event),
				slog.String("user", userID),
				slog.String("conn", connID),
				slog.Any("err", err))
			continue
		}
		s.metrics.Push(e.event, metrics.OutcomeDelivered)
	}
}

func persistenceErr(op string, err error) error {
	if errors.Is(err, errs.ErrInvalidInput) {
		return err
	}
	return fmt.Errorf("%w: %s: %w", errs.ErrPersistence, op, err)
}
