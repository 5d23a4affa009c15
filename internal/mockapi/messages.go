package mockapi

import (
	"encoding/json"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/pesio-ai/campustrade-client/internal/repository"
)

func (s *Server) sendMessage(c *gin.Context) {
	var req repository.SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Content) == "" || req.ReceiverID == "" {
		fail(c, http.StatusBadRequest, "Receiver and content are required")
		return
	}

	msg, status, errMsg := s.storeMessage(c.GetString(ctxUserID), req)
	if status != 0 {
		fail(c, status, errMsg)
		return
	}
	c.JSON(http.StatusCreated, msg)
}

// storeMessage persists a message and pushes it to the receiver
func (s *Server) storeMessage(senderID string, req repository.SendMessageRequest) (repository.Message, int, string) {
	st := s.state
	st.mu.Lock()

	sender, ok := st.users[senderID]
	if !ok {
		st.mu.Unlock()
		return repository.Message{}, http.StatusUnauthorized, "Not authorized"
	}
	receiver, ok := st.users[req.ReceiverID]
	if !ok {
		st.mu.Unlock()
		return repository.Message{}, http.StatusNotFound, "Receiver not found"
	}
	if receiver.ID == sender.ID {
		st.mu.Unlock()
		return repository.Message{}, http.StatusBadRequest, "You cannot message yourself"
	}

	msg := &repository.Message{
		ID:        st.newID(),
		Sender:    sender.ref(),
		Receiver:  receiver.ref(),
		Content:   strings.TrimSpace(req.Content),
		CreatedAt: time.Now().UTC(),
	}
	if req.ListingID != "" {
		if l, ok := st.listings[req.ListingID]; ok {
			msg.Listing = &repository.Ref{ID: l.ID, Title: l.Title, Price: l.Price}
		}
	}
	st.messages[msg.ID] = msg
	snapshot := *msg
	st.mu.Unlock()

	s.hub.SendToUser(snapshot.Receiver.ID, "newMessage", snapshot)
	return snapshot, 0, ""
}

func (s *Server) conversations(c *gin.Context) {
	userID := c.GetString(ctxUserID)

	st := s.state
	st.mu.Lock()
	byUser := make(map[string]*repository.Conversation)
	for _, m := range st.messages {
		var other repository.Ref
		switch userID {
		case m.Sender.ID:
			other = m.Receiver
		case m.Receiver.ID:
			other = m.Sender
		default:
			continue
		}

		conv, ok := byUser[other.ID]
		if !ok {
			conv = &repository.Conversation{UserID: other.ID, UserName: other.Name, UserEmail: other.Email}
			byUser[other.ID] = conv
		}
		if m.CreatedAt.After(conv.LastMessageTime) || conv.LastMessage == "" {
			conv.LastMessage = m.Content
			conv.LastMessageTime = m.CreatedAt
		}
		if m.Receiver.ID == userID && !m.IsRead {
			conv.UnreadCount++
		}
	}
	st.mu.Unlock()

	out := make([]repository.Conversation, 0, len(byUser))
	for _, conv := range byUser {
		out = append(out, *conv)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].LastMessageTime.After(out[j].LastMessageTime) })
	c.JSON(http.StatusOK, out)
}

func (s *Server) conversation(c *gin.Context) {
	userID := c.GetString(ctxUserID)
	otherID := c.Param("userId")

	st := s.state
	st.mu.Lock()
	thread := []repository.Message{}
	for _, m := range st.messages {
		if (m.Sender.ID == userID && m.Receiver.ID == otherID) || (m.Sender.ID == otherID && m.Receiver.ID == userID) {
			thread = append(thread, *m)
		}
	}
	st.mu.Unlock()

	sort.SliceStable(thread, func(i, j int) bool { return thread[i].ID < thread[j].ID })
	c.JSON(http.StatusOK, thread)
}

func (s *Server) unreadCount(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"unreadCount": s.unreadFor(c.GetString(ctxUserID))})
}

func (s *Server) unreadFor(userID string) int {
	st := s.state
	st.mu.Lock()
	defer st.mu.Unlock()

	n := 0
	for _, m := range st.messages {
		if m.Receiver.ID == userID && !m.IsRead {
			n++
		}
	}
	return n
}

func (s *Server) markAsRead(c *gin.Context) {
	status, msg := s.markRead(c.GetString(ctxUserID), c.Param("id"))
	if status != 0 {
		fail(c, status, msg)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Message marked as read"})
}

func (s *Server) markRead(userID, messageID string) (int, string) {
	st := s.state
	st.mu.Lock()
	defer st.mu.Unlock()

	m, ok := st.messages[messageID]
	if !ok {
		return http.StatusNotFound, "Message not found"
	}
	if m.Receiver.ID != userID {
		return http.StatusForbidden, "Not authorized"
	}
	m.IsRead = true
	return 0, ""
}

// handleSocketFrame serves client to server realtime events
func (s *Server) handleSocketFrame(userID, messageType string, data json.RawMessage) {
	switch messageType {
	case "sendMessage":
		var req repository.SendMessageRequest
		if err := json.Unmarshal(data, &req); err != nil || strings.TrimSpace(req.Content) == "" {
			return
		}
		s.state.mu.Lock()
		u := s.state.users[userID]
		verified := u != nil && u.IsVerified
		s.state.mu.Unlock()
		if !verified {
			return
		}
		if _, status, msg := s.storeMessage(userID, req); status != 0 {
			s.log.Warn().Str("user_id", userID).Int("status", status).Msg(msg)
		}

	case "markAsRead":
		var req struct {
			MessageID string `json:"messageId"`
		}
		if err := json.Unmarshal(data, &req); err == nil {
			s.markRead(userID, req.MessageID)
		}

	case "typing":
		var req struct {
			ReceiverID string `json:"receiverId"`
		}
		if err := json.Unmarshal(data, &req); err == nil && req.ReceiverID != "" {
			s.hub.SendToUser(req.ReceiverID, "typing", gin.H{"userId": userID})
		}

	case "transactionUpdate":
		var req struct {
			TransactionID string `json:"transactionId"`
		}
		if err := json.Unmarshal(data, &req); err != nil {
			return
		}
		s.state.mu.Lock()
		tx, ok := s.state.transactions[req.TransactionID]
		var other string
		if ok {
			other = tx.Buyer.ID
			if other == userID {
				other = tx.Seller.ID
			}
		}
		s.state.mu.Unlock()
		if other != "" {
			s.hub.SendToUser(other, "notification", repository.Notification{
				Type:      "transaction",
				Message:   "A transaction you are part of was updated",
				CreatedAt: time.Now().UTC(),
			})
		}

	default:
		s.log.Debug().Str("type", messageType).Msg("Ignoring realtime event")
	}
}
