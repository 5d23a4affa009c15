package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/pesio-ai/campustrade-client/internal/apperrors"
	"github.com/pesio-ai/campustrade-client/internal/logger"
	"github.com/pesio-ai/campustrade-client/internal/repository"
)

// SessionListener is told about every session change. It receives a copy
// of the new session, or nil once the actor is signed out.
type SessionListener func(session *repository.Session)

// SessionService owns the current actor's session: it restores it from
// local storage, replaces it on login and drops it on logout or when the
// API rejects its token.
type SessionService struct {
	client      *repository.Client
	authRepo    *repository.AuthRepository
	sessionRepo *repository.SessionRepository
	log         *logger.Logger

	mu        sync.RWMutex
	session   *repository.Session
	nextID    int
	listeners map[int]SessionListener
}

func NewSessionService(
	client *repository.Client,
	authRepo *repository.AuthRepository,
	sessionRepo *repository.SessionRepository,
	log *logger.Logger,
) *SessionService {
	return &SessionService{
		client:      client,
		authRepo:    authRepo,
		sessionRepo: sessionRepo,
		log:         log,
		listeners:   make(map[int]SessionListener),
	}
}

// RegisterResult tells a newly registered user how to verify their email
type RegisterResult struct {
	Message          string
	VerificationLink string
}

// Init restores the persisted session and hooks the API client to it.
// A missing or unreadable record leaves the actor signed out; no network
// call is made.
func (s *SessionService) Init(ctx context.Context) error {
	s.client.SetTokenSource(s.Token)
	s.client.OnUnauthorized(s.handleUnauthorized)

	session, err := s.sessionRepo.Load(ctx)
	switch {
	case err == nil:
	case errors.Is(err, repository.ErrSessionNotFound):
		s.log.Debug().Msg("No stored session")
		return nil
	case errors.Is(err, repository.ErrCorruptSession):
		s.log.Warn().Err(err).Msg("Discarding unreadable session record")
		if clearErr := s.sessionRepo.Clear(ctx); clearErr != nil {
			s.log.Error().Err(clearErr).Msg("Failed to discard session record")
		}
		return nil
	default:
		return fmt.Errorf("failed to restore session: %w", err)
	}

	if !session.IsAuthenticated() {
		s.log.Warn().Msg("Stored session has an empty token, discarding")
		if clearErr := s.sessionRepo.Clear(ctx); clearErr != nil {
			s.log.Error().Err(clearErr).Msg("Failed to discard session record")
		}
		return nil
	}

	s.replace(session)
	s.log.Info().Str("user_id", session.ID).Msg("Session restored")
	return nil
}

// Teardown detaches the service from the API client and drops all listeners.
// The persisted record is left in place.
func (s *SessionService) Teardown() {
	s.client.SetTokenSource(nil)
	s.client.OnUnauthorized(nil)

	s.mu.Lock()
	s.listeners = make(map[int]SessionListener)
	s.mu.Unlock()
}

// Current returns a copy of the session, or nil when signed out
func (s *SessionService) Current() *repository.Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return copySession(s.session)
}

func (s *SessionService) IsAuthenticated() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.session.IsAuthenticated()
}

func (s *SessionService) IsVerified() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.session.IsAuthenticated() && s.session.IsVerified
}

func (s *SessionService) IsAdmin() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.session.IsAuthenticated() && s.session.Role == repository.RoleAdmin
}

// Token returns the bearer token, or "" when signed out
func (s *SessionService) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.session == nil {
		return ""
	}
	return strings.TrimSpace(s.session.Token)
}

// Subscribe registers fn for session changes and returns its unsubscribe func
func (s *SessionService) Subscribe(fn SessionListener) func() {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextID
	s.nextID++
	s.listeners[id] = fn

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.listeners, id)
	}
}

// Login exchanges credentials for a session. A failed login leaves any
// existing session untouched.
func (s *SessionService) Login(ctx context.Context, email, password string) (*repository.Session, error) {
	email = strings.TrimSpace(email)
	if err := validateLogin(email, password); err != nil {
		return nil, err
	}

	s.log.Info().Str("email", email).Msg("Login attempt")

	session, err := s.authRepo.Login(ctx, email, password)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		s.log.Warn().Err(err).Str("email", email).Msg("Login failed")
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if err := s.sessionRepo.Save(ctx, session); err != nil {
		s.log.Error().Err(err).Str("user_id", session.ID).Msg("Failed to persist session")
	}
	s.replace(session)

	s.log.Info().Str("user_id", session.ID).Str("role", session.Role).Msg("Login successful")
	return copySession(session), nil
}

// Register creates an account. It never signs the user in; the result
// directs them to verify their email first.
func (s *SessionService) Register(ctx context.Context, in *RegisterInput) (*RegisterResult, error) {
	if err := ValidateRegistration(in); err != nil {
		return nil, err
	}

	req := &repository.RegisterRequest{
		Name:        strings.TrimSpace(in.Name),
		Email:       strings.TrimSpace(in.Email),
		Password:    in.Password,
		PhoneNumber: in.PhoneNumber,
		Department:  strings.TrimSpace(in.Department),
		StudentID:   strings.TrimSpace(in.StudentID),
	}

	resp, err := s.authRepo.Register(ctx, req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		s.log.Warn().Err(err).Str("email", req.Email).Msg("Registration failed")
		return nil, err
	}

	msg := resp.Message
	if msg == "" {
		msg = "Registration successful. Please check your email to verify your account."
	}

	s.log.Info().Str("email", req.Email).Msg("Account registered")
	return &RegisterResult{Message: msg, VerificationLink: resp.VerificationLink}, nil
}

// Logout removes the session from memory and from local storage
func (s *SessionService) Logout(ctx context.Context) error {
	err := s.sessionRepo.Clear(ctx)
	s.replace(nil)

	s.log.Info().Msg("Logged out")
	if err != nil {
		return fmt.Errorf("failed to remove stored session: %w", err)
	}
	return nil
}

// VerifyEmail submits a verification code. On success the current session,
// if any, is marked verified.
func (s *SessionService) VerifyEmail(ctx context.Context, code string) (string, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return "", apperrors.Validation(map[string]string{"code": "Verification code is required"})
	}

	msg, err := s.authRepo.VerifyEmail(ctx, code)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", ctxErr
		}
		s.log.Warn().Err(err).Msg("Email verification failed")
		return "", err
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	if updated := s.mutate(func(cur *repository.Session) bool {
		if cur.IsVerified {
			return false
		}
		cur.IsVerified = true
		return true
	}); updated != nil {
		s.persist(ctx, updated)
		s.log.Info().Str("user_id", updated.ID).Msg("Email verified")
	}

	if msg == "" {
		msg = "Email verified successfully"
	}
	return msg, nil
}

// UpdateProfile sends the editable profile fields and merges the result into
// the session. Email is never sent and never changed.
func (s *SessionService) UpdateProfile(ctx context.Context, update repository.ProfileUpdate) (*repository.Session, error) {
	before := s.Current()
	if !before.IsAuthenticated() {
		return nil, apperrors.Unauthenticated("")
	}

	errs := fieldErrors{}
	if update.Name != nil {
		trimmed := strings.TrimSpace(*update.Name)
		update.Name = &trimmed
		if trimmed == "" {
			errs.add("name", "Name is required")
		}
	}
	if update.PhoneNumber != nil {
		if msg := ValidatePhone(*update.PhoneNumber); msg != "" {
			errs.add("phoneNumber", msg)
		}
	}
	if update.Department != nil && strings.TrimSpace(*update.Department) == "" {
		errs.add("department", "Department is required")
	}
	if err := errs.err(); err != nil {
		return nil, err
	}

	profile, err := s.authRepo.UpdateProfile(ctx, &update)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		s.log.Warn().Err(err).Str("user_id", before.ID).Msg("Profile update failed")
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	updated := s.mutateIfSame(before, func(cur *repository.Session) bool {
		cur.Name = pick(profile.Name, update.Name, cur.Name)
		cur.PhoneNumber = pick(profile.PhoneNumber, update.PhoneNumber, cur.PhoneNumber)
		cur.Department = pick(profile.Department, update.Department, cur.Department)
		return true
	})
	if updated == nil {
		s.log.Info().Str("user_id", before.ID).Msg("Session changed during profile update, not merging")
		return s.Current(), nil
	}

	s.persist(ctx, updated)
	s.log.Info().Str("user_id", updated.ID).Msg("Profile updated")
	return updated, nil
}

// RefreshProfile reloads the identity from the API and merges it
func (s *SessionService) RefreshProfile(ctx context.Context) (*repository.Session, error) {
	before := s.Current()
	if !before.IsAuthenticated() {
		return nil, apperrors.Unauthenticated("")
	}

	profile, err := s.authRepo.GetProfile(ctx)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	updated := s.mutateIfSame(before, func(cur *repository.Session) bool {
		cur.Name = pick(profile.Name, nil, cur.Name)
		cur.PhoneNumber = pick(profile.PhoneNumber, nil, cur.PhoneNumber)
		cur.Department = pick(profile.Department, nil, cur.Department)
		cur.StudentID = pick(profile.StudentID, nil, cur.StudentID)
		if profile.Role != "" {
			cur.Role = profile.Role
		}
		if profile.IsVerified != nil {
			cur.IsVerified = *profile.IsVerified
		}
		return true
	})
	if updated == nil {
		return s.Current(), nil
	}

	s.persist(ctx, updated)
	return updated, nil
}

// ResendVerification asks the API to send a new verification email
func (s *SessionService) ResendVerification(ctx context.Context, email string) (string, error) {
	email = strings.TrimSpace(email)
	if msg := ValidateEmail(email); msg != "" {
		return "", apperrors.Validation(map[string]string{"email": msg})
	}
	return s.authRepo.ResendVerification(ctx, email)
}

// ForgotPassword requests a password reset email
func (s *SessionService) ForgotPassword(ctx context.Context, email string) (string, error) {
	email = strings.TrimSpace(email)
	if msg := ValidateEmail(email); msg != "" {
		return "", apperrors.Validation(map[string]string{"email": msg})
	}
	return s.authRepo.ForgotPassword(ctx, email)
}

// ResetPassword sets a new password with a reset token
func (s *SessionService) ResetPassword(ctx context.Context, token, password, confirm string) (string, error) {
	errs := fieldErrors{}
	if strings.TrimSpace(token) == "" {
		errs.add("token", "Reset token is required")
	}
	if msg := ValidatePassword(password); msg != "" {
		errs.add("password", msg)
	}
	if password != confirm {
		errs.add("confirmPassword", "Passwords do not match")
	}
	if err := errs.err(); err != nil {
		return "", err
	}
	return s.authRepo.ResetPassword(ctx, strings.TrimSpace(token), password)
}

// handleUnauthorized drops the session when the API rejected its token.
// A 401 for a token that has since been replaced is ignored.
func (s *SessionService) handleUnauthorized(token string) {
	s.mu.RLock()
	current := s.session
	s.mu.RUnlock()
	if current == nil || strings.TrimSpace(current.Token) != token {
		return
	}

	s.log.Warn().Str("user_id", current.ID).Msg("Session rejected by server, signing out")
	if err := s.sessionRepo.Clear(context.Background()); err != nil {
		s.log.Error().Err(err).Msg("Failed to remove stored session")
	}
	s.replace(nil)
}

// replace installs session (nil signs out) and notifies listeners
func (s *SessionService) replace(session *repository.Session) {
	s.mu.Lock()
	s.session = copySession(session)
	listeners := s.snapshotListeners()
	s.mu.Unlock()

	notify(listeners, session)
}

// mutate applies fn to the current session under the lock. It returns a
// copy of the result when fn reported a change, nil otherwise.
func (s *SessionService) mutate(fn func(cur *repository.Session) bool) *repository.Session {
	return s.mutateIfSame(nil, fn)
}

// mutateIfSame is mutate guarded by identity: when before is non-nil the
// change only applies if the session still has the same id and token
func (s *SessionService) mutateIfSame(before *repository.Session, fn func(cur *repository.Session) bool) *repository.Session {
	s.mu.Lock()
	cur := s.session
	if cur == nil {
		s.mu.Unlock()
		return nil
	}
	if before != nil && (cur.ID != before.ID || cur.Token != before.Token) {
		s.mu.Unlock()
		return nil
	}
	if !fn(cur) {
		s.mu.Unlock()
		return nil
	}
	updated := copySession(cur)
	listeners := s.snapshotListeners()
	s.mu.Unlock()

	notify(listeners, updated)
	return copySession(updated)
}

func (s *SessionService) persist(ctx context.Context, session *repository.Session) {
	if err := s.sessionRepo.Save(context.WithoutCancel(ctx), session); err != nil {
		s.log.Error().Err(err).Str("user_id", session.ID).Msg("Failed to persist session")
	}
}

// snapshotListeners must be called with mu held
func (s *SessionService) snapshotListeners() []SessionListener {
	out := make([]SessionListener, 0, len(s.listeners))
	for _, fn := range s.listeners {
		out = append(out, fn)
	}
	return out
}

func notify(listeners []SessionListener, session *repository.Session) {
	for _, fn := range listeners {
		fn(copySession(session))
	}
}

func copySession(s *repository.Session) *repository.Session {
	if s == nil {
		return nil
	}
	c := *s
	return &c
}

// pick prefers the server's value, then what was sent, then the current one
func pick(fromServer string, sent *string, current string) string {
	if fromServer != "" {
		return fromServer
	}
	if sent != nil {
		return *sent
	}
	return current
}
