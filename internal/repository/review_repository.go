package repository

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/pesio-ai/campustrade-client/internal/logger"
)

type ReviewRepository struct {
	client *Client
	log    *logger.Logger
}

func NewReviewRepository(client *Client, log *logger.Logger) *ReviewRepository {
	return &ReviewRepository{
		client: client,
		log:    log,
	}
}

// Create leaves a review on a completed transaction
func (r *ReviewRepository) Create(ctx context.Context, input *ReviewInput) (*Review, error) {
	review := &Review{}
	if err := r.client.Do(ctx, http.MethodPost, "/api/reviews", nil, input, review); err != nil {
		return nil, fmt.Errorf("failed to create review: %w", err)
	}
	return review, nil
}

// ForUser returns reviews received by userID
func (r *ReviewRepository) ForUser(ctx context.Context, userID string) ([]Review, error) {
	return fetchList[Review](ctx, r.client, "/api/reviews/user/"+url.PathEscape(userID), nil, "reviews")
}

// ForListing returns reviews attached to a listing
func (r *ReviewRepository) ForListing(ctx context.Context, listingID string) ([]Review, error) {
	return fetchList[Review](ctx, r.client, "/api/reviews/listing/"+url.PathEscape(listingID), nil, "reviews")
}

type ReportRepository struct {
	client *Client
	log    *logger.Logger
}

func NewReportRepository(client *Client, log *logger.Logger) *ReportRepository {
	return &ReportRepository{
		client: client,
		log:    log,
	}
}

// Create files a report
func (r *ReportRepository) Create(ctx context.Context, input *ReportInput) (*Report, error) {
	report := &Report{}
	if err := r.client.Do(ctx, http.MethodPost, "/api/reports", nil, input, report); err != nil {
		return nil, fmt.Errorf("failed to create report: %w", err)
	}
	return report, nil
}

// Mine returns reports filed by the current user
func (r *ReportRepository) Mine(ctx context.Context) ([]Report, error) {
	return fetchList[Report](ctx, r.client, "/api/reports", nil, "reports")
}

// UpdateStatus resolves or dismisses a report (admin)
func (r *ReportRepository) UpdateStatus(ctx context.Context, id string, update *StatusUpdate) error {
	if err := r.client.Do(ctx, http.MethodPut, "/api/reports/"+url.PathEscape(id), nil, update, nil); err != nil {
		return fmt.Errorf("failed to update report: %w", err)
	}
	return nil
}
