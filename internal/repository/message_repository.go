package repository

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/pesio-ai/campustrade-client/internal/logger"
)

type MessageRepository struct {
	client *Client
	log    *logger.Logger
}

func NewMessageRepository(client *Client, log *logger.Logger) *MessageRepository {
	return &MessageRepository{
		client: client,
		log:    log,
	}
}

// Send sends a direct message
func (r *MessageRepository) Send(ctx context.Context, req *SendMessageRequest) (*Message, error) {
	msg := &Message{}
	if err := r.client.Do(ctx, http.MethodPost, "/api/messages", nil, req, msg); err != nil {
		return nil, fmt.Errorf("failed to send message: %w", err)
	}
	return msg, nil
}

// Conversations lists the current user's threads
func (r *MessageRepository) Conversations(ctx context.Context) ([]Conversation, error) {
	return fetchList[Conversation](ctx, r.client, "/api/messages/conversations", nil, "conversations")
}

// Conversation returns the messages exchanged with userID
func (r *MessageRepository) Conversation(ctx context.Context, userID string) ([]Message, error) {
	return fetchList[Message](ctx, r.client, "/api/messages/conversation/"+url.PathEscape(userID), nil, "messages")
}

// UnreadCount returns the authoritative unread message count
func (r *MessageRepository) UnreadCount(ctx context.Context) (int, error) {
	var resp struct {
		UnreadCount int `json:"unreadCount"`
	}
	if err := r.client.Do(ctx, http.MethodGet, "/api/messages/unread-count", nil, nil, &resp); err != nil {
		return 0, fmt.Errorf("failed to get unread count: %w", err)
	}
	return resp.UnreadCount, nil
}

// MarkAsRead marks one message as read
func (r *MessageRepository) MarkAsRead(ctx context.Context, messageID string) error {
	path := "/api/messages/" + url.PathEscape(messageID) + "/read"
	if err := r.client.Do(ctx, http.MethodPut, path, nil, nil, nil); err != nil {
		return fmt.Errorf("failed to mark message as read: %w", err)
	}
	return nil
}
