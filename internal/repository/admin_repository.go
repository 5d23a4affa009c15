package repository

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/pesio-ai/campustrade-client/internal/logger"
)

// AdminFilters narrows admin list endpoints
type AdminFilters struct {
	Status string
	Search string
	Role   string
}

func (f AdminFilters) values() url.Values {
	v := url.Values{}
	if f.Status != "" {
		v.Set("status", f.Status)
	}
	if f.Search != "" {
		v.Set("search", f.Search)
	}
	if f.Role != "" {
		v.Set("role", f.Role)
	}
	return v
}

type AdminRepository struct {
	client *Client
	log    *logger.Logger
}

func NewAdminRepository(client *Client, log *logger.Logger) *AdminRepository {
	return &AdminRepository{
		client: client,
		log:    log,
	}
}

// Users lists accounts
func (r *AdminRepository) Users(ctx context.Context, filters AdminFilters) ([]UserSummary, error) {
	return fetchList[UserSummary](ctx, r.client, "/api/admin/users", filters.values(), "users")
}

// UpdateUserStatus activates, suspends or bans an account
func (r *AdminRepository) UpdateUserStatus(ctx context.Context, id string, update *StatusUpdate) error {
	path := "/api/admin/users/" + url.PathEscape(id) + "/status"
	if err := r.client.Do(ctx, http.MethodPut, path, nil, update, nil); err != nil {
		return fmt.Errorf("failed to update user status: %w", err)
	}
	return nil
}

// Listings lists listings in every status
func (r *AdminRepository) Listings(ctx context.Context, filters AdminFilters) ([]Listing, error) {
	return fetchList[Listing](ctx, r.client, "/api/admin/listings", filters.values(), "listings")
}

// UpdateListingStatus hides, removes or restores a listing
func (r *AdminRepository) UpdateListingStatus(ctx context.Context, id string, update *StatusUpdate) error {
	path := "/api/admin/listings/" + url.PathEscape(id) + "/status"
	if err := r.client.Do(ctx, http.MethodPut, path, nil, update, nil); err != nil {
		return fmt.Errorf("failed to update listing status: %w", err)
	}
	return nil
}

// Transactions lists every transaction
func (r *AdminRepository) Transactions(ctx context.Context, filters AdminFilters) ([]Transaction, error) {
	return fetchList[Transaction](ctx, r.client, "/api/admin/transactions", filters.values(), "transactions")
}

// Reports lists reports
func (r *AdminRepository) Reports(ctx context.Context, filters AdminFilters) ([]Report, error) {
	return fetchList[Report](ctx, r.client, "/api/admin/reports", filters.values(), "reports")
}

// Stats returns dashboard counters
func (r *AdminRepository) Stats(ctx context.Context) (*AdminStats, error) {
	stats := &AdminStats{}
	if err := r.client.Do(ctx, http.MethodGet, "/api/admin/stats", nil, nil, stats); err != nil {
		return nil, fmt.Errorf("failed to get stats: %w", err)
	}
	return stats, nil
}
