package mockapi

import (
	"net/http"
	"sort"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/pesio-ai/campustrade-client/internal/repository"
)

func (s *Server) adminUsers(c *gin.Context) {
	status := c.Query("status")
	role := c.Query("role")
	search := strings.ToLower(strings.TrimSpace(c.Query("search")))

	st := s.state
	st.mu.Lock()
	out := []repository.UserSummary{}
	for _, u := range st.users {
		if status != "" && u.Status != status {
			continue
		}
		if role != "" && u.Role != role {
			continue
		}
		if search != "" && !strings.Contains(strings.ToLower(u.Name+" "+u.Email), search) {
			continue
		}
		out = append(out, u.summary())
	}
	st.mu.Unlock()

	sort.SliceStable(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	c.JSON(http.StatusOK, gin.H{"users": out, "total": len(out)})
}

func (s *Server) adminUpdateUserStatus(c *gin.Context) {
	var update repository.StatusUpdate
	if err := c.ShouldBindJSON(&update); err != nil {
		fail(c, http.StatusBadRequest, "Invalid request body")
		return
	}
	switch update.Status {
	case repository.AccountActive, repository.AccountSuspended, repository.AccountBanned:
	default:
		fail(c, http.StatusBadRequest, "Invalid account status")
		return
	}

	id := c.Param("id")
	if id == c.GetString(ctxUserID) {
		fail(c, http.StatusBadRequest, "You cannot change your own status")
		return
	}

	st := s.state
	st.mu.Lock()
	u, ok := st.users[id]
	if !ok {
		st.mu.Unlock()
		fail(c, http.StatusNotFound, "User not found")
		return
	}
	u.Status = update.Status
	summary := u.summary()
	st.mu.Unlock()

	if update.Status != repository.AccountActive {
		s.Revoke(id)
	}
	s.log.Info().Str("user_id", id).Str("status", update.Status).Str("reason", update.Reason).Msg("User status changed")
	c.JSON(http.StatusOK, summary)
}

func (s *Server) adminListings(c *gin.Context) {
	status := repository.ListingStatus(c.Query("status"))
	search := strings.ToLower(strings.TrimSpace(c.Query("search")))

	st := s.state
	st.mu.Lock()
	out := []repository.Listing{}
	for _, l := range st.listings {
		if status != "" && l.Status != status {
			continue
		}
		if search != "" && !strings.Contains(strings.ToLower(l.Title), search) {
			continue
		}
		out = append(out, *l)
	}
	st.mu.Unlock()

	sortedListings(out, "")
	c.JSON(http.StatusOK, gin.H{"listings": out, "total": len(out)})
}

func (s *Server) adminUpdateListingStatus(c *gin.Context) {
	var update repository.StatusUpdate
	if err := c.ShouldBindJSON(&update); err != nil {
		fail(c, http.StatusBadRequest, "Invalid request body")
		return
	}

	next := repository.ListingStatus(update.Status)
	switch next {
	case repository.ListingAvailable, repository.ListingHidden, repository.ListingRemoved:
	default:
		fail(c, http.StatusBadRequest, "Invalid listing status")
		return
	}

	st := s.state
	st.mu.Lock()
	defer st.mu.Unlock()

	l, ok := st.listings[c.Param("id")]
	if !ok {
		fail(c, http.StatusNotFound, "Listing not found")
		return
	}
	if next == repository.ListingAvailable && st.activeTransactionFor(l.ID) != nil {
		fail(c, http.StatusConflict, "Listing has an active transaction")
		return
	}

	st.setListingStatus(l.ID, next)
	c.JSON(http.StatusOK, l)
}

func (s *Server) adminTransactions(c *gin.Context) {
	status := repository.TransactionStatus(c.Query("status"))

	st := s.state
	st.mu.Lock()
	out := []repository.Transaction{}
	for _, tx := range st.transactions {
		if status != "" && tx.Status != status {
			continue
		}
		out = append(out, *tx)
	}
	st.mu.Unlock()

	sort.SliceStable(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	c.JSON(http.StatusOK, gin.H{"transactions": out, "total": len(out)})
}

func (s *Server) adminStats(c *gin.Context) {
	st := s.state
	st.mu.Lock()
	defer st.mu.Unlock()

	var stats repository.AdminStats
	for _, u := range st.users {
		stats.TotalUsers++
		if u.IsVerified {
			stats.VerifiedUsers++
		}
	}
	for _, l := range st.listings {
		stats.TotalListings++
		if l.Status == repository.ListingAvailable {
			stats.AvailableListings++
		}
	}
	for _, tx := range st.transactions {
		stats.TotalTransactions++
		if tx.Status == repository.TransactionCompleted {
			stats.CompletedTransactions++
		}
	}
	for _, r := range st.reports {
		if r.Status == repository.ReportPending {
			stats.PendingReports++
		}
	}
	wrapped(c, http.StatusOK, "", stats)
}

func (s *Server) adminReports(c *gin.Context) {
	status := c.Query("status")
	s.listReports(c, func(r *repository.Report) bool { return status == "" || r.Status == status })
}
