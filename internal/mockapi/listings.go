package mockapi

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/pesio-ai/campustrade-client/internal/repository"
)

const defaultPageSize = 12

func (s *Server) listListings(c *gin.Context) {
	status := repository.ListingStatus(c.DefaultQuery("status", string(repository.ListingAvailable)))
	q := strings.ToLower(strings.TrimSpace(c.Query("q")))
	minPrice, hasMin := queryFloat(c, "minPrice")
	maxPrice, hasMax := queryFloat(c, "maxPrice")

	st := s.state
	st.mu.Lock()
	matches := make([]repository.Listing, 0, len(st.listings))
	for _, l := range st.listings {
		if l.Status != status || l.Status == repository.ListingHidden || l.Status == repository.ListingRemoved {
			continue
		}
		if !matchesFold(l.Category, c.Query("category")) ||
			!matchesFold(l.Subcategory, c.Query("subcategory")) ||
			!matchesFold(l.Condition, c.Query("condition")) ||
			!matchesFold(l.Location, c.Query("location")) {
			continue
		}
		if q != "" && !strings.Contains(strings.ToLower(l.Title+" "+l.Description), q) {
			continue
		}
		if hasMin && l.Price < minPrice {
			continue
		}
		if hasMax && l.Price > maxPrice {
			continue
		}
		matches = append(matches, *l)
	}
	st.mu.Unlock()

	sortedListings(matches, c.Query("sort"))

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(defaultPageSize)))
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = defaultPageSize
	}

	total := len(matches)
	pages := (total + limit - 1) / limit
	start := (page - 1) * limit
	if start > total {
		start = total
	}
	end := start + limit
	if end > total {
		end = total
	}

	c.JSON(http.StatusOK, gin.H{
		"listings": matches[start:end],
		"total":    total,
		"page":     page,
		"pages":    pages,
	})
}

func (s *Server) myListings(c *gin.Context) {
	userID := c.GetString(ctxUserID)

	st := s.state
	st.mu.Lock()
	mine := []repository.Listing{}
	for _, l := range st.listings {
		if l.Seller.ID == userID && l.Status != repository.ListingRemoved {
			mine = append(mine, *l)
		}
	}
	st.mu.Unlock()

	sortedListings(mine, "")
	c.JSON(http.StatusOK, gin.H{"listings": mine})
}

func (s *Server) getListing(c *gin.Context) {
	userID := c.GetString(ctxUserID)

	st := s.state
	st.mu.Lock()
	defer st.mu.Unlock()

	l, ok := st.listings[c.Param("id")]
	if !ok {
		fail(c, http.StatusNotFound, "Listing not found")
		return
	}

	hidden := l.Status == repository.ListingHidden || l.Status == repository.ListingRemoved
	if hidden && l.Seller.ID != userID && !st.isAdmin(userID) {
		fail(c, http.StatusNotFound, "Listing not found")
		return
	}

	if l.Seller.ID != userID {
		l.Views++
	}
	c.JSON(http.StatusOK, l)
}

func (s *Server) createListing(c *gin.Context) {
	var input repository.ListingInput
	if err := c.ShouldBindJSON(&input); err != nil {
		fail(c, http.StatusBadRequest, "Invalid request body")
		return
	}
	if msg := checkListingInput(&input); msg != "" {
		fail(c, http.StatusBadRequest, msg)
		return
	}

	st := s.state
	st.mu.Lock()
	defer st.mu.Unlock()

	seller := st.users[c.GetString(ctxUserID)]
	now := time.Now().UTC()
	l := &repository.Listing{
		ID:        st.newID(),
		Seller:    seller.ref(),
		Status:    repository.ListingAvailable,
		CreatedAt: now,
		UpdatedAt: now,
	}
	applyListingInput(l, &input)
	st.listings[l.ID] = l

	s.log.Info().Str("listing_id", l.ID).Str("seller_id", seller.ID).Msg("Listing created")
	c.JSON(http.StatusCreated, l)
}

func (s *Server) updateListing(c *gin.Context) {
	var input repository.ListingInput
	if err := c.ShouldBindJSON(&input); err != nil {
		fail(c, http.StatusBadRequest, "Invalid request body")
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
	if l.Seller.ID != c.GetString(ctxUserID) {
		fail(c, http.StatusForbidden, "Not authorized to update this listing")
		return
	}
	if l.Status != repository.ListingAvailable {
		fail(c, http.StatusConflict, "Only available listings can be edited")
		return
	}
	if len(input.Images) == 0 {
		input.Images = l.Images
	}
	if msg := checkListingInput(&input); msg != "" {
		fail(c, http.StatusBadRequest, msg)
		return
	}

	applyListingInput(l, &input)
	l.UpdatedAt = time.Now().UTC()
	c.JSON(http.StatusOK, l)
}

func (s *Server) deleteListing(c *gin.Context) {
	userID := c.GetString(ctxUserID)

	st := s.state
	st.mu.Lock()
	defer st.mu.Unlock()

	l, ok := st.listings[c.Param("id")]
	if !ok {
		fail(c, http.StatusNotFound, "Listing not found")
		return
	}
	if l.Seller.ID != userID && !st.isAdmin(userID) {
		fail(c, http.StatusForbidden, "Not authorized to delete this listing")
		return
	}
	if st.activeTransactionFor(l.ID) != nil {
		fail(c, http.StatusConflict, "Listing has an active transaction")
		return
	}

	delete(st.listings, l.ID)
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Listing removed"})
}

func (s *Server) reserveListing(c *gin.Context) {
	userID := c.GetString(ctxUserID)

	st := s.state
	st.mu.Lock()

	l, ok := st.listings[c.Param("id")]
	if !ok {
		st.mu.Unlock()
		fail(c, http.StatusNotFound, "Listing not found")
		return
	}
	if l.Seller.ID == userID {
		st.mu.Unlock()
		fail(c, http.StatusForbidden, "You cannot reserve your own listing")
		return
	}
	if l.Status != repository.ListingAvailable || st.activeTransactionFor(l.ID) != nil {
		st.mu.Unlock()
		fail(c, http.StatusConflict, "Listing is not available")
		return
	}

	buyer := st.users[userID]
	now := time.Now().UTC()
	tx := &repository.Transaction{
		ID:        st.newID(),
		Listing:   repository.Ref{ID: l.ID, Title: l.Title, Price: l.Price},
		Buyer:     buyer.ref(),
		Seller:    l.Seller,
		Amount:    l.Price,
		Status:    repository.TransactionReserved,
		CreatedAt: now,
		UpdatedAt: now,
	}
	st.transactions[tx.ID] = tx
	l.Status = repository.ListingReserved
	l.UpdatedAt = now
	snapshot := *tx
	sellerID := l.Seller.ID
	title := l.Title
	st.mu.Unlock()

	s.log.Info().Str("listing_id", l.ID).Str("transaction_id", tx.ID).Msg("Listing reserved")
	s.hub.SendToUser(sellerID, "notification", repository.Notification{
		Type:      "reservation",
		Message:   buyer.Name + " reserved " + title,
		CreatedAt: now,
	})
	c.JSON(http.StatusCreated, gin.H{"message": "Listing reserved", "transaction": snapshot})
}

func checkListingInput(in *repository.ListingInput) string {
	switch {
	case len(strings.TrimSpace(in.Title)) < 3:
		return "Title must be at least 3 characters"
	case strings.TrimSpace(in.Description) == "":
		return "Description is required"
	case in.Price <= 0:
		return "Price must be greater than 0"
	case in.Category != repository.CategoryGoods && in.Category != repository.CategoryServices && in.Category != repository.CategoryRentals:
		return "Invalid category"
	case len(in.Images) == 0:
		return "At least one image is required"
	}
	return ""
}

func applyListingInput(l *repository.Listing, in *repository.ListingInput) {
	l.Title = strings.TrimSpace(in.Title)
	l.Description = strings.TrimSpace(in.Description)
	l.Price = in.Price
	l.Category = in.Category
	l.Subcategory = in.Subcategory
	l.Location = in.Location
	l.SpecificLocation = in.SpecificLocation
	l.Condition = in.Condition
	l.ServiceType = in.ServiceType
	l.RentalPeriod = in.RentalPeriod
	l.Images = append([]string(nil), in.Images...)
}

func matchesFold(value, filter string) bool {
	return filter == "" || strings.EqualFold(value, filter)
}

func queryFloat(c *gin.Context, key string) (float64, bool) {
	raw := c.Query(key)
	if raw == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// isAdmin must be called with mu held
func (s *state) isAdmin(userID string) bool {
	u, ok := s.users[userID]
	return ok && u.Role == repository.RoleAdmin
}
