package mockapi

import (
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/pesio-ai/campustrade-client/internal/repository"
)

func (s *Server) createReview(c *gin.Context) {
	var input repository.ReviewInput
	if err := c.ShouldBindJSON(&input); err != nil {
		fail(c, http.StatusBadRequest, "Invalid request body")
		return
	}
	if input.Rating < 1 || input.Rating > 5 {
		fail(c, http.StatusBadRequest, "Rating must be between 1 and 5")
		return
	}

	userID := c.GetString(ctxUserID)

	st := s.state
	st.mu.Lock()
	defer st.mu.Unlock()

	tx, ok := st.transactions[input.TransactionID]
	if !ok {
		fail(c, http.StatusNotFound, "Transaction not found")
		return
	}
	if tx.Buyer.ID != userID && tx.Seller.ID != userID {
		fail(c, http.StatusForbidden, "Only transaction parties can leave a review")
		return
	}
	if tx.Status != repository.TransactionCompleted {
		fail(c, http.StatusConflict, "Only completed transactions can be reviewed")
		return
	}

	reviewee := tx.Seller
	if tx.Seller.ID == userID {
		reviewee = tx.Buyer
	}
	if input.RevieweeID != "" && input.RevieweeID != reviewee.ID {
		fail(c, http.StatusBadRequest, "Reviewee must be the other party")
		return
	}
	for _, r := range st.reviews {
		if r.Transaction.ID == tx.ID && r.Reviewer.ID == userID {
			fail(c, http.StatusConflict, "You already reviewed this transaction")
			return
		}
	}

	review := &repository.Review{
		ID:          st.newID(),
		Reviewer:    st.users[userID].ref(),
		Reviewee:    reviewee,
		Transaction: repository.Ref{ID: tx.ID},
		Listing:     tx.Listing,
		Rating:      input.Rating,
		Comment:     strings.TrimSpace(input.Comment),
		CreatedAt:   time.Now().UTC(),
	}
	st.reviews[review.ID] = review
	c.JSON(http.StatusCreated, review)
}

func (s *Server) userReviews(c *gin.Context) {
	id := c.Param("id")
	s.listReviews(c, func(r *repository.Review) bool { return r.Reviewee.ID == id })
}

func (s *Server) listingReviews(c *gin.Context) {
	id := c.Param("id")
	s.listReviews(c, func(r *repository.Review) bool { return r.Listing.ID == id })
}

func (s *Server) listReviews(c *gin.Context, match func(*repository.Review) bool) {
	st := s.state
	st.mu.Lock()
	out := []repository.Review{}
	for _, r := range st.reviews {
		if match(r) {
			out = append(out, *r)
		}
	}
	st.mu.Unlock()

	sort.SliceStable(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	c.JSON(http.StatusOK, out)
}

func (s *Server) createReport(c *gin.Context) {
	var input repository.ReportInput
	if err := c.ShouldBindJSON(&input); err != nil || strings.TrimSpace(input.Reason) == "" {
		fail(c, http.StatusBadRequest, "A reason is required")
		return
	}

	userID := c.GetString(ctxUserID)

	st := s.state
	st.mu.Lock()
	defer st.mu.Unlock()

	report := &repository.Report{
		ID:          st.newID(),
		Reporter:    st.users[userID].ref(),
		Reason:      strings.TrimSpace(input.Reason),
		Description: strings.TrimSpace(input.Description),
		Status:      repository.ReportPending,
		CreatedAt:   time.Now().UTC(),
	}

	switch {
	case input.ListingID != "":
		l, ok := st.listings[input.ListingID]
		if !ok {
			fail(c, http.StatusNotFound, "Listing not found")
			return
		}
		report.Listing = &repository.Ref{ID: l.ID, Title: l.Title, Price: l.Price}
		report.ReportedUser = l.Seller
	case input.ReportedUserID != "":
		u, ok := st.users[input.ReportedUserID]
		if !ok {
			fail(c, http.StatusNotFound, "User not found")
			return
		}
		report.ReportedUser = u.ref()
	default:
		fail(c, http.StatusBadRequest, "A listing or user to report is required")
		return
	}

	if report.ReportedUser.ID == userID {
		fail(c, http.StatusBadRequest, "You cannot report yourself")
		return
	}

	st.reports[report.ID] = report
	c.JSON(http.StatusCreated, report)
}

func (s *Server) myReports(c *gin.Context) {
	userID := c.GetString(ctxUserID)
	s.listReports(c, func(r *repository.Report) bool { return r.Reporter.ID == userID })
}

func (s *Server) listReports(c *gin.Context, match func(*repository.Report) bool) {
	st := s.state
	st.mu.Lock()
	out := []repository.Report{}
	for _, r := range st.reports {
		if match(r) {
			out = append(out, *r)
		}
	}
	st.mu.Unlock()

	sort.SliceStable(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	c.JSON(http.StatusOK, out)
}

func (s *Server) updateReport(c *gin.Context) {
	var update repository.StatusUpdate
	if err := c.ShouldBindJSON(&update); err != nil {
		fail(c, http.StatusBadRequest, "Invalid request body")
		return
	}
	switch update.Status {
	case repository.ReportPending, repository.ReportReviewed, repository.ReportResolved, repository.ReportDismissed:
	default:
		fail(c, http.StatusBadRequest, "Invalid report status")
		return
	}

	st := s.state
	st.mu.Lock()
	defer st.mu.Unlock()

	r, ok := st.reports[c.Param("id")]
	if !ok {
		fail(c, http.StatusNotFound, "Report not found")
		return
	}
	r.Status = update.Status
	r.AdminNotes = update.AdminNotes
	c.JSON(http.StatusOK, r)
}
