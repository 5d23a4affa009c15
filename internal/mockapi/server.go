// Package mockapi is an in-memory stand-in for the CampusTrade REST and
// WebSocket API. It enforces the server-side marketplace rules so the
// client can be developed and tested without the real backend.
package mockapi

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/pesio-ai/campustrade-client/internal/logger"
	"github.com/pesio-ai/campustrade-client/internal/repository"
	jwtpkg "github.com/pesio-ai/campustrade-client/pkg/jwt"
)

// SeedPassword is the password of every seeded account
const SeedPassword = "campus123"

// Seeded account emails
const (
	AdminEmail      = "admin@campus.edu"
	SellerEmail     = "seller@campus.edu"
	BuyerEmail      = "buyer@campus.edu"
	UnverifiedEmail = "unverified@campus.edu"
)

var errSessionRevoked = errors.New("session revoked")

// Options configures the mock API
type Options struct {
	JWTSecret string
	TokenTTL  time.Duration
	Seed      bool
}

// Server is the mock API
type Server struct {
	state  *state
	issuer *jwtpkg.Issuer
	hub    *Hub
	engine *gin.Engine
	log    *logger.Logger

	sessions map[string]string // token id -> user id, guarded by state.mu

	reqMu    sync.Mutex
	requests []string
}

// New builds the mock API and, when opts.Seed is set, the demo data set
func New(opts Options, log *logger.Logger) (*Server, error) {
	if opts.JWTSecret == "" {
		opts.JWTSecret = "dev_secret"
	}
	if opts.TokenTTL <= 0 {
		opts.TokenTTL = 24 * time.Hour
	}

	s := &Server{
		state:    newState(),
		issuer:   jwtpkg.NewIssuer(opts.JWTSecret, opts.TokenTTL),
		log:      log,
		sessions: make(map[string]string),
	}
	s.hub = NewHub(s.authenticateToken, log)
	s.hub.SetMessageHandler(s.handleSocketFrame)

	if opts.Seed {
		if err := s.seed(); err != nil {
			return nil, fmt.Errorf("failed to seed mock data: %w", err)
		}
	}

	s.engine = s.routes()
	return s, nil
}

// Handler returns the HTTP handler serving the API and the /ws endpoint
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Close drops all realtime connections
func (s *Server) Close() {
	s.hub.Close()
}

func (s *Server) routes() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), s.requestLogger())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "healthy", "service": "campustrade-mockapi"})
	})
	r.GET("/ws", func(c *gin.Context) {
		s.hub.ServeWS(c.Writer, c.Request)
	})

	api := r.Group("/api")

	auth := api.Group("/auth")
	{
		auth.POST("/login", s.login)
		auth.POST("/register", s.register)
		auth.GET("/verify/:code", s.verifyEmail)
		auth.POST("/resend-verification", s.resendVerification)
		auth.POST("/forgot-password", s.forgotPassword)
		auth.POST("/reset/:token", s.resetPassword)
		auth.GET("/profile", s.authRequired(), s.getProfile)
		auth.PUT("/profile", s.authRequired(), s.updateProfile)
	}

	listings := api.Group("/listings")
	{
		listings.GET("", s.listListings)
		listings.GET("/search", s.listListings)
		listings.GET("/my-listings", s.authRequired(), s.myListings)
		listings.GET("/:id", s.optionalAuth(), s.getListing)
		listings.POST("", s.authRequired(), s.verifiedRequired(), s.createListing)
		listings.PUT("/:id", s.authRequired(), s.updateListing)
		listings.DELETE("/:id", s.authRequired(), s.deleteListing)
		listings.POST("/:id/reserve", s.authRequired(), s.verifiedRequired(), s.reserveListing)
	}

	transactions := api.Group("/transactions", s.authRequired())
	{
		transactions.GET("/my-transactions", s.myTransactions)
		transactions.GET("/:id", s.getTransaction)
		transactions.PUT("/:id/status", s.updateTransactionStatus)
		transactions.PUT("/:id/complete", s.completeTransaction)
		transactions.PUT("/:id/cancel", s.cancelTransaction)
	}

	messages := api.Group("/messages", s.authRequired())
	{
		messages.POST("", s.verifiedRequired(), s.sendMessage)
		messages.GET("/conversations", s.conversations)
		messages.GET("/conversation/:userId", s.conversation)
		messages.GET("/unread-count", s.unreadCount)
		messages.PUT("/:id/read", s.markAsRead)
	}

	reviews := api.Group("/reviews")
	{
		reviews.POST("", s.authRequired(), s.createReview)
		reviews.GET("/user/:id", s.userReviews)
		reviews.GET("/listing/:id", s.listingReviews)
	}

	reports := api.Group("/reports", s.authRequired())
	{
		reports.POST("", s.createReport)
		reports.GET("", s.myReports)
		reports.PUT("/:id", s.adminRequired(), s.updateReport)
	}

	admin := api.Group("/admin", s.authRequired(), s.adminRequired())
	{
		admin.GET("/users", s.adminUsers)
		admin.PUT("/users/:id/status", s.adminUpdateUserStatus)
		admin.GET("/listings", s.adminListings)
		admin.PUT("/listings/:id/status", s.adminUpdateListingStatus)
		admin.GET("/transactions", s.adminTransactions)
		admin.GET("/stats", s.adminStats)
		admin.GET("/reports", s.adminReports)
	}

	return r
}

func (s *Server) seed() error {
	st := s.state
	st.mu.Lock()
	defer st.mu.Unlock()

	admin, err := st.addUser("Campus Admin", AdminEmail, SeedPassword, repository.RoleAdmin, true)
	if err != nil {
		return err
	}
	admin.Department = "Administration"

	seller, err := st.addUser("Selam Tesfaye", SellerEmail, SeedPassword, repository.RoleUser, true)
	if err != nil {
		return err
	}
	seller.Department = "Computer Science"
	seller.PhoneNumber = "0911223344"

	buyer, err := st.addUser("Dawit Bekele", BuyerEmail, SeedPassword, repository.RoleUser, true)
	if err != nil {
		return err
	}
	buyer.Department = "Mechanical Engineering"
	buyer.PhoneNumber = "0922334455"

	unverified, err := st.addUser("Hana Girma", UnverifiedEmail, SeedPassword, repository.RoleUser, false)
	if err != nil {
		return err
	}
	st.issueVerification(unverified.ID)

	now := time.Now().UTC()
	for _, l := range []repository.Listing{
		{
			Title:            "Calculus Early Transcendentals",
			Description:      "8th edition, a few highlighted pages",
			Price:            450,
			Category:         repository.CategoryGoods,
			Subcategory:      "Books",
			Condition:        "Good",
			Location:         "Main Campus",
			SpecificLocation: "Library entrance",
			Images:           []string{"https://images.campustrade.test/calculus.jpg"},
		},
		{
			Title:            "Python Tutoring",
			Description:      "One hour sessions for first year students",
			Price:            200,
			Category:         repository.CategoryServices,
			Subcategory:      "Tutoring",
			ServiceType:      "Academic",
			Location:         "Main Campus",
			SpecificLocation: "CS lab 2",
			Images:           []string{"https://images.campustrade.test/tutoring.jpg"},
		},
	} {
		l := l
		l.ID = st.newID()
		l.Seller = seller.ref()
		l.Status = repository.ListingAvailable
		l.CreatedAt = now
		l.UpdatedAt = now
		st.listings[l.ID] = &l
	}

	s.log.Info().Int("users", len(st.users)).Int("listings", len(st.listings)).Msg("Seeded mock data")
	return nil
}

// issueToken must be called with state.mu held
func (s *Server) issueToken(u *user) (string, error) {
	token, err := s.issuer.Issue(u.ID, u.Email, u.Role)
	if err != nil {
		return "", err
	}
	claims, err := jwtpkg.Inspect(token)
	if err != nil {
		return "", err
	}
	s.sessions[claims.ID] = u.ID
	return token, nil
}

// authenticateToken validates a bearer token and returns its user id
func (s *Server) authenticateToken(token string) (string, error) {
	claims, err := s.issuer.Validate(token)
	if err != nil {
		return "", err
	}

	s.state.mu.Lock()
	defer s.state.mu.Unlock()
	userID, ok := s.sessions[claims.ID]
	if !ok || userID != claims.UserID {
		return "", errSessionRevoked
	}
	u, ok := s.state.users[userID]
	if !ok || u.Status != repository.AccountActive {
		return "", errSessionRevoked
	}
	return userID, nil
}

// Revoke invalidates every token issued to userID and drops its realtime connections
func (s *Server) Revoke(userID string) {
	s.state.mu.Lock()
	for id, uid := range s.sessions {
		if uid == userID {
			delete(s.sessions, id)
		}
	}
	s.state.mu.Unlock()

	s.hub.DisconnectUser(userID)
}

// UserID returns the id of the account registered under email
func (s *Server) UserID(email string) string {
	s.state.mu.Lock()
	defer s.state.mu.Unlock()
	if u := s.state.userByEmail(email); u != nil {
		return u.ID
	}
	return ""
}

// VerificationCode returns a pending verification code for email
func (s *Server) VerificationCode(email string) (string, bool) {
	return s.pendingToken(email, s.state.verifications)
}

// ResetToken returns a pending password reset token for email
func (s *Server) ResetToken(email string) (string, bool) {
	return s.pendingToken(email, s.state.resets)
}

func (s *Server) pendingToken(email string, tokens map[string]expiringToken) (string, bool) {
	s.state.mu.Lock()
	defer s.state.mu.Unlock()

	u := s.state.userByEmail(email)
	if u == nil {
		return "", false
	}
	for code, t := range tokens {
		if t.userID == u.ID && time.Now().Before(t.expiresAt) {
			return code, true
		}
	}
	return "", false
}

// ExpireVerification makes every pending verification code of email expired
func (s *Server) ExpireVerification(email string) {
	s.state.mu.Lock()
	defer s.state.mu.Unlock()

	u := s.state.userByEmail(email)
	if u == nil {
		return
	}
	for code, t := range s.state.verifications {
		if t.userID == u.ID {
			t.expiresAt = time.Now().Add(-time.Minute)
			s.state.verifications[code] = t
		}
	}
}

// TransactionCount returns how many transactions exist for a listing
func (s *Server) TransactionCount(listingID string) int {
	s.state.mu.Lock()
	defer s.state.mu.Unlock()

	n := 0
	for _, tx := range s.state.transactions {
		if tx.Listing.ID == listingID {
			n++
		}
	}
	return n
}

// RequestCount returns how many requests matched method and path exactly
func (s *Server) RequestCount(method, path string) int {
	s.reqMu.Lock()
	defer s.reqMu.Unlock()

	key := method + " " + path
	n := 0
	for _, r := range s.requests {
		if r == key {
			n++
		}
	}
	return n
}

// TotalRequests returns the number of API requests served
func (s *Server) TotalRequests() int {
	s.reqMu.Lock()
	defer s.reqMu.Unlock()
	return len(s.requests)
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		s.reqMu.Lock()
		s.requests = append(s.requests, c.Request.Method+" "+c.Request.URL.Path)
		s.reqMu.Unlock()

		c.Next()

		s.log.Info().
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Str("request_id", c.GetHeader("X-Request-ID")).
			Dur("duration", time.Since(start)).
			Msg("Request handled")
	}
}

const (
	ctxUserID = "user_id"
)

func (s *Server) authRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		token := strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
		if header == "" || token == "" {
			fail(c, http.StatusUnauthorized, "Not authorized, no token")
			return
		}

		userID, err := s.authenticateToken(token)
		if err != nil {
			fail(c, http.StatusUnauthorized, "Not authorized, token failed")
			return
		}

		c.Set(ctxUserID, userID)
		c.Next()
	}
}

// optionalAuth identifies the caller when a valid token is present
func (s *Server) optionalAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := strings.TrimSpace(strings.TrimPrefix(c.GetHeader("Authorization"), "Bearer "))
		if token != "" {
			if userID, err := s.authenticateToken(token); err == nil {
				c.Set(ctxUserID, userID)
			}
		}
		c.Next()
	}
}

func (s *Server) verifiedRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		s.state.mu.Lock()
		u := s.state.users[c.GetString(ctxUserID)]
		verified := u != nil && u.IsVerified
		s.state.mu.Unlock()

		if !verified {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"success": false,
				"message": "Please verify your email first",
				"code":    repository.CodeEmailNotVerified,
			})
			return
		}
		c.Next()
	}
}

func (s *Server) adminRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		s.state.mu.Lock()
		u := s.state.users[c.GetString(ctxUserID)]
		admin := u != nil && u.Role == repository.RoleAdmin
		s.state.mu.Unlock()

		if !admin {
			fail(c, http.StatusForbidden, "Admin access required")
			return
		}
		c.Next()
	}
}

func fail(c *gin.Context, status int, message string) {
	c.AbortWithStatusJSON(status, gin.H{"success": false, "message": message})
}

func wrapped(c *gin.Context, status int, message string, data any) {
	c.JSON(status, gin.H{"success": true, "message": message, "data": data})
}
