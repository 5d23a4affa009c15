package mockapi

import (
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/pesio-ai/campustrade-client/internal/repository"
)

func (s *Server) myTransactions(c *gin.Context) {
	userID := c.GetString(ctxUserID)

	st := s.state
	st.mu.Lock()
	mine := []repository.Transaction{}
	for _, tx := range st.transactions {
		if tx.Buyer.ID == userID || tx.Seller.ID == userID {
			mine = append(mine, *tx)
		}
	}
	st.mu.Unlock()

	sort.SliceStable(mine, func(i, j int) bool { return mine[i].ID > mine[j].ID })
	c.JSON(http.StatusOK, mine)
}

func (s *Server) getTransaction(c *gin.Context) {
	userID := c.GetString(ctxUserID)

	st := s.state
	st.mu.Lock()
	defer st.mu.Unlock()

	tx, ok := st.transactions[c.Param("id")]
	if !ok {
		fail(c, http.StatusNotFound, "Transaction not found")
		return
	}
	if tx.Buyer.ID != userID && tx.Seller.ID != userID && !st.isAdmin(userID) {
		fail(c, http.StatusForbidden, "Not authorized to view this transaction")
		return
	}
	c.JSON(http.StatusOK, tx)
}

// updateTransactionStatus is the seller's "mark as sold"
func (s *Server) updateTransactionStatus(c *gin.Context) {
	var req struct {
		Status repository.TransactionStatus `json:"status"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || req.Status != repository.TransactionCompleted {
		fail(c, http.StatusBadRequest, "Only Completed can be set through this endpoint")
		return
	}

	s.transition(c, func(tx *repository.Transaction, userID string) (int, string) {
		if tx.Seller.ID != userID {
			return http.StatusForbidden, "Only the seller can mark this as sold"
		}
		return 0, ""
	}, repository.TransactionCompleted, "")
}

// completeTransaction is the buyer's "confirm receipt"
func (s *Server) completeTransaction(c *gin.Context) {
	s.transition(c, func(tx *repository.Transaction, userID string) (int, string) {
		if tx.Buyer.ID != userID {
			return http.StatusForbidden, "Only the buyer can confirm receipt"
		}
		return 0, ""
	}, repository.TransactionCompleted, "")
}

func (s *Server) cancelTransaction(c *gin.Context) {
	var req struct {
		Reason string `json:"reason"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Reason) == "" {
		fail(c, http.StatusBadRequest, "A cancellation reason is required")
		return
	}

	s.transition(c, func(tx *repository.Transaction, userID string) (int, string) {
		if tx.Buyer.ID != userID && tx.Seller.ID != userID {
			return http.StatusForbidden, "Only the buyer or seller can cancel"
		}
		return 0, ""
	}, repository.TransactionCancelled, strings.TrimSpace(req.Reason))
}

type partyCheck func(tx *repository.Transaction, userID string) (status int, message string)

func (s *Server) transition(c *gin.Context, allowed partyCheck, to repository.TransactionStatus, reason string) {
	userID := c.GetString(ctxUserID)

	st := s.state
	st.mu.Lock()

	tx, ok := st.transactions[c.Param("id")]
	if !ok {
		st.mu.Unlock()
		fail(c, http.StatusNotFound, "Transaction not found")
		return
	}
	if status, msg := allowed(tx, userID); status != 0 {
		st.mu.Unlock()
		fail(c, status, msg)
		return
	}
	if tx.Status != repository.TransactionReserved {
		st.mu.Unlock()
		fail(c, http.StatusConflict, "Transaction is already "+strings.ToLower(string(tx.Status)))
		return
	}

	now := time.Now().UTC()
	tx.Status = to
	tx.UpdatedAt = now
	switch to {
	case repository.TransactionCompleted:
		tx.CompletedAt = &now
		st.setListingStatus(tx.Listing.ID, repository.ListingSold)
	case repository.TransactionCancelled:
		tx.CancelledAt = &now
		tx.CancellationReason = reason
		st.setListingStatus(tx.Listing.ID, repository.ListingAvailable)
	}
	snapshot := *tx
	st.mu.Unlock()

	other := snapshot.Buyer.ID
	if other == userID {
		other = snapshot.Seller.ID
	}
	s.hub.SendToUser(other, "notification", repository.Notification{
		Type:      "transaction",
		Message:   "Transaction for " + snapshot.Listing.Title + " is now " + string(to),
		CreatedAt: now,
	})

	s.log.Info().
		Str("transaction_id", snapshot.ID).
		Str("status", string(to)).
		Str("user_id", userID).
		Msg("Transaction updated")
	c.JSON(http.StatusOK, snapshot)
}
