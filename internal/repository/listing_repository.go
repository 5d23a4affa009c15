package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/pesio-ai/campustrade-client/internal/logger"
)

type ListingRepository struct {
	client *Client
	log    *logger.Logger
}

func NewListingRepository(client *Client, log *logger.Logger) *ListingRepository {
	return &ListingRepository{
		client: client,
		log:    log,
	}
}

// List returns marketplace listings matching filters (Available by default)
func (r *ListingRepository) List(ctx context.Context, filters ListingFilters) (*ListingPage, error) {
	return r.page(ctx, "/api/listings", filters.Values())
}

// Search runs a free-text search
func (r *ListingRepository) Search(ctx context.Context, filters ListingFilters) (*ListingPage, error) {
	return r.page(ctx, "/api/listings/search", filters.Values())
}

// Mine returns the current user's listings in every status
func (r *ListingRepository) Mine(ctx context.Context) ([]Listing, error) {
	page, err := r.page(ctx, "/api/listings/my-listings", nil)
	if err != nil {
		return nil, err
	}
	return page.Listings, nil
}

// GetByID retrieves a listing by ID
func (r *ListingRepository) GetByID(ctx context.Context, id string) (*Listing, error) {
	listing := &Listing{}
	if err := r.client.Do(ctx, http.MethodGet, listingPath(id), nil, nil, listing); err != nil {
		return nil, fmt.Errorf("failed to get listing: %w", err)
	}
	return listing, nil
}

// Create creates a new listing
func (r *ListingRepository) Create(ctx context.Context, input *ListingInput) (*Listing, error) {
	listing := &Listing{}
	if err := r.client.Do(ctx, http.MethodPost, "/api/listings", nil, input, listing); err != nil {
		return nil, fmt.Errorf("failed to create listing: %w", err)
	}
	return listing, nil
}

// Update replaces a listing's editable fields
func (r *ListingRepository) Update(ctx context.Context, id string, input *ListingInput) error {
	if err := r.client.Do(ctx, http.MethodPut, listingPath(id), nil, input, nil); err != nil {
		return fmt.Errorf("failed to update listing: %w", err)
	}
	return nil
}

// Delete deletes a listing
func (r *ListingRepository) Delete(ctx context.Context, id string) error {
	if err := r.client.Do(ctx, http.MethodDelete, listingPath(id), nil, nil, nil); err != nil {
		return fmt.Errorf("failed to delete listing: %w", err)
	}
	return nil
}

// Reserve asks the server to reserve a listing for the current user.
// The server creates the transaction; the returned id may be empty when
// the server does not echo it.
func (r *ListingRepository) Reserve(ctx context.Context, id string) (string, error) {
	var raw json.RawMessage
	if err := r.client.Do(ctx, http.MethodPost, listingPath(id)+"/reserve", nil, nil, &raw); err != nil {
		return "", fmt.Errorf("failed to reserve listing: %w", err)
	}

	var resp struct {
		ID          string `json:"_id"`
		Transaction Ref    `json:"transaction"`
	}
	if err := json.Unmarshal(raw, &resp); err != nil {
		r.log.Debug().Err(err).Str("listing_id", id).Msg("Reserve response carried no transaction")
		return "", nil
	}
	if resp.Transaction.ID != "" {
		return resp.Transaction.ID, nil
	}
	return resp.ID, nil
}

func (r *ListingRepository) page(ctx context.Context, path string, query url.Values) (*ListingPage, error) {
	var raw json.RawMessage
	if err := r.client.Do(ctx, http.MethodGet, path, query, nil, &raw); err != nil {
		return nil, fmt.Errorf("failed to list listings: %w", err)
	}

	page := &ListingPage{}
	if err := decodeList(raw, "listings", &page.Listings); err != nil {
		return nil, err
	}
	// pagination metadata is optional
	_ = json.Unmarshal(raw, &struct {
		Total *int `json:"total"`
		Page  *int `json:"page"`
		Pages *int `json:"pages"`
	}{&page.Total, &page.Page, &page.Pages})

	if page.Total == 0 {
		page.Total = len(page.Listings)
	}
	return page, nil
}

func listingPath(id string) string {
	return "/api/listings/" + url.PathEscape(id)
}
