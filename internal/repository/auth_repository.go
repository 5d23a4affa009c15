package repository

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/pesio-ai/campustrade-client/internal/apperrors"
	"github.com/pesio-ai/campustrade-client/internal/logger"
)

type AuthRepository struct {
	client *Client
	log    *logger.Logger
}

func NewAuthRepository(client *Client, log *logger.Logger) *AuthRepository {
	return &AuthRepository{
		client: client,
		log:    log,
	}
}

// statusBody is the {success, message} acknowledgement most auth endpoints return
type statusBody struct {
	Success *bool  `json:"success"`
	Message string `json:"message"`
}

func (statusBody) readsEnvelope() {}

func (b statusBody) err() error {
	if b.Success != nil && !*b.Success {
		return apperrors.Unknown(b.Message, http.StatusOK)
	}
	return nil
}

// Login exchanges credentials for an identity and token
func (r *AuthRepository) Login(ctx context.Context, email, password string) (*Session, error) {
	body := map[string]string{"email": email, "password": password}

	session := &Session{}
	if err := r.client.DoPublic(ctx, http.MethodPost, "/api/auth/login", nil, body, session); err != nil {
		return nil, err
	}
	if !session.IsAuthenticated() {
		return nil, apperrors.Server("Login response did not include a token", http.StatusOK)
	}
	return session, nil
}

// Register creates a new, unverified account
func (r *AuthRepository) Register(ctx context.Context, req *RegisterRequest) (*RegisterResponse, error) {
	var resp struct {
		statusBody
		VerificationLink string `json:"verificationLink"`
		Data             struct {
			VerificationLink string `json:"verificationLink"`
		} `json:"data"`
	}
	if err := r.client.DoPublic(ctx, http.MethodPost, "/api/auth/register", nil, req, &resp); err != nil {
		return nil, err
	}
	if err := resp.err(); err != nil {
		return nil, err
	}
	link := resp.VerificationLink
	if link == "" {
		link = resp.Data.VerificationLink
	}
	return &RegisterResponse{Message: resp.Message, VerificationLink: link}, nil
}

// VerifyEmail submits a verification code
func (r *AuthRepository) VerifyEmail(ctx context.Context, code string) (string, error) {
	var resp statusBody
	path := "/api/auth/verify/" + url.PathEscape(code)
	if err := r.client.Do(ctx, http.MethodGet, path, nil, nil, &resp); err != nil {
		return "", err
	}
	if err := resp.err(); err != nil {
		return "", err
	}
	return resp.Message, nil
}

// GetProfile fetches the current user's profile
func (r *AuthRepository) GetProfile(ctx context.Context) (*Profile, error) {
	profile := &Profile{}
	if err := r.client.Do(ctx, http.MethodGet, "/api/auth/profile", nil, nil, profile); err != nil {
		return nil, fmt.Errorf("failed to get profile: %w", err)
	}
	return profile, nil
}

// UpdateProfile sends the editable profile fields
func (r *AuthRepository) UpdateProfile(ctx context.Context, update *ProfileUpdate) (*Profile, error) {
	profile := &Profile{}
	if err := r.client.Do(ctx, http.MethodPut, "/api/auth/profile", nil, update, profile); err != nil {
		return nil, fmt.Errorf("failed to update profile: %w", err)
	}
	return profile, nil
}

// ResendVerification asks for a new verification email
func (r *AuthRepository) ResendVerification(ctx context.Context, email string) (string, error) {
	return r.post(ctx, "/api/auth/resend-verification", map[string]string{"email": email})
}

// ForgotPassword requests a password reset link
func (r *AuthRepository) ForgotPassword(ctx context.Context, email string) (string, error) {
	return r.post(ctx, "/api/auth/forgot-password", map[string]string{"email": email})
}

// ResetPassword sets a new password using a reset token
func (r *AuthRepository) ResetPassword(ctx context.Context, token, password string) (string, error) {
	return r.post(ctx, "/api/auth/reset/"+url.PathEscape(token), map[string]string{"password": password})
}

func (r *AuthRepository) post(ctx context.Context, path string, body any) (string, error) {
	var resp statusBody
	if err := r.client.DoPublic(ctx, http.MethodPost, path, nil, body, &resp); err != nil {
		return "", err
	}
	if err := resp.err(); err != nil {
		return "", err
	}
	return resp.Message, nil
}
