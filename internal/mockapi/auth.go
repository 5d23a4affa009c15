package mockapi

import (
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/pesio-ai/campustrade-client/internal/repository"
	"golang.org/x/crypto/bcrypt"
)

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (s *Server) login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Email == "" || req.Password == "" {
		fail(c, http.StatusBadRequest, "Email and password are required")
		return
	}

	st := s.state
	st.mu.Lock()
	defer st.mu.Unlock()

	u := st.userByEmail(req.Email)
	if u == nil || bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(req.Password)) != nil {
		fail(c, http.StatusUnauthorized, "Invalid email or password")
		return
	}
	if !u.IsVerified {
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
			"success": false,
			"message": "Please verify your email before logging in",
			"code":    repository.CodeEmailNotVerified,
		})
		return
	}
	if u.Status != repository.AccountActive {
		fail(c, http.StatusForbidden, "Your account is "+u.Status)
		return
	}

	token, err := s.issueToken(u)
	if err != nil {
		s.log.Error().Err(err).Str("user_id", u.ID).Msg("Failed to issue token")
		fail(c, http.StatusInternalServerError, "Login failed")
		return
	}

	s.log.Info().Str("user_id", u.ID).Msg("User logged in")
	wrapped(c, http.StatusOK, "Login successful", repository.Session{
		ID:          u.ID,
		Name:        u.Name,
		Email:       u.Email,
		Role:        u.Role,
		IsVerified:  u.IsVerified,
		Token:       token,
		Department:  u.Department,
		PhoneNumber: u.PhoneNumber,
		StudentID:   u.StudentID,
	})
}

func (s *Server) register(c *gin.Context) {
	var req repository.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "Invalid request body")
		return
	}
	if strings.TrimSpace(req.Name) == "" || !emailPattern.MatchString(req.Email) || len(req.Password) < 6 {
		fail(c, http.StatusBadRequest, "Name, a valid email and a password of at least 6 characters are required")
		return
	}

	st := s.state
	st.mu.Lock()
	defer st.mu.Unlock()

	if st.userByEmail(req.Email) != nil {
		fail(c, http.StatusBadRequest, "User already exists")
		return
	}

	u, err := st.addUser(strings.TrimSpace(req.Name), req.Email, req.Password, repository.RoleUser, false)
	if err != nil {
		s.log.Error().Err(err).Msg("Failed to hash password")
		fail(c, http.StatusInternalServerError, "Registration failed")
		return
	}
	u.Department = req.Department
	u.PhoneNumber = req.PhoneNumber
	u.StudentID = req.StudentID

	code := st.issueVerification(u.ID)
	s.log.Info().Str("user_id", u.ID).Msg("User registered")

	wrapped(c, http.StatusCreated,
		"Registration successful! Please check your email to verify your account.",
		gin.H{"verificationLink": "/verify-email/" + code})
}

func (s *Server) verifyEmail(c *gin.Context) {
	code := c.Param("code")

	st := s.state
	st.mu.Lock()
	defer st.mu.Unlock()

	t, ok := st.verifications[code]
	if !ok {
		fail(c, http.StatusBadRequest, "Invalid verification code")
		return
	}
	if time.Now().After(t.expiresAt) {
		fail(c, http.StatusBadRequest, "Verification code has expired")
		return
	}

	delete(st.verifications, code)
	if u, ok := st.users[t.userID]; ok {
		u.IsVerified = true
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Email verified successfully"})
}

type emailRequest struct {
	Email string `json:"email"`
}

func (s *Server) resendVerification(c *gin.Context) {
	var req emailRequest
	if err := c.ShouldBindJSON(&req); err != nil || !emailPattern.MatchString(req.Email) {
		fail(c, http.StatusBadRequest, "A valid email is required")
		return
	}

	st := s.state
	st.mu.Lock()
	defer st.mu.Unlock()

	u := st.userByEmail(req.Email)
	if u != nil && u.IsVerified {
		fail(c, http.StatusBadRequest, "Email is already verified")
		return
	}
	if u != nil {
		st.issueVerification(u.ID)
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "If the account exists, a new verification email has been sent"})
}

func (s *Server) forgotPassword(c *gin.Context) {
	var req emailRequest
	if err := c.ShouldBindJSON(&req); err != nil || !emailPattern.MatchString(req.Email) {
		fail(c, http.StatusBadRequest, "A valid email is required")
		return
	}

	st := s.state
	st.mu.Lock()
	defer st.mu.Unlock()

	if u := st.userByEmail(req.Email); u != nil {
		st.resets[st.newID()] = expiringToken{userID: u.ID, expiresAt: time.Now().Add(resetTTL)}
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "If the account exists, a reset link has been sent"})
}

func (s *Server) resetPassword(c *gin.Context) {
	var req struct {
		Password string `json:"password"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || len(req.Password) < 6 {
		fail(c, http.StatusBadRequest, "Password must be at least 6 characters")
		return
	}

	st := s.state
	st.mu.Lock()
	defer st.mu.Unlock()

	token := c.Param("token")
	t, ok := st.resets[token]
	if !ok || time.Now().After(t.expiresAt) {
		fail(c, http.StatusBadRequest, "Invalid or expired reset token")
		return
	}

	u, ok := st.users[t.userID]
	if !ok {
		fail(c, http.StatusBadRequest, "Invalid or expired reset token")
		return
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.MinCost)
	if err != nil {
		fail(c, http.StatusInternalServerError, "Password reset failed")
		return
	}
	u.PasswordHash = string(hash)
	delete(st.resets, token)

	// existing sessions do not survive a password change
	for id, uid := range s.sessions {
		if uid == u.ID {
			delete(s.sessions, id)
		}
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Password has been reset"})
}

func (s *Server) getProfile(c *gin.Context) {
	st := s.state
	st.mu.Lock()
	defer st.mu.Unlock()

	u, ok := st.users[c.GetString(ctxUserID)]
	if !ok {
		fail(c, http.StatusNotFound, "User not found")
		return
	}
	c.JSON(http.StatusOK, u.profile())
}

func (s *Server) updateProfile(c *gin.Context) {
	var req struct {
		Name        *string `json:"name"`
		PhoneNumber *string `json:"phoneNumber"`
		Department  *string `json:"department"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "Invalid request body")
		return
	}

	st := s.state
	st.mu.Lock()
	defer st.mu.Unlock()

	u, ok := st.users[c.GetString(ctxUserID)]
	if !ok {
		fail(c, http.StatusNotFound, "User not found")
		return
	}
	if req.Name != nil {
		if strings.TrimSpace(*req.Name) == "" {
			fail(c, http.StatusBadRequest, "Name cannot be empty")
			return
		}
		u.Name = strings.TrimSpace(*req.Name)
	}
	if req.PhoneNumber != nil {
		u.PhoneNumber = *req.PhoneNumber
	}
	if req.Department != nil {
		u.Department = *req.Department
	}

	// keep denormalised seller refs in sync
	for _, l := range st.listings {
		if l.Seller.ID == u.ID {
			l.Seller = u.ref()
		}
	}
	c.JSON(http.StatusOK, u.profile())
}
