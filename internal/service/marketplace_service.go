package service

import (
	"context"
	"strings"

	"github.com/pesio-ai/campustrade-client/internal/apperrors"
	"github.com/pesio-ai/campustrade-client/internal/logger"
	"github.com/pesio-ai/campustrade-client/internal/repository"
)

// MarketplaceService serves the read side of the marketplace
type MarketplaceService struct {
	session      *SessionService
	listings     *repository.ListingRepository
	transactions *repository.TransactionRepository
	reviews      *repository.ReviewRepository
	reports      *repository.ReportRepository
	log          *logger.Logger
}

func NewMarketplaceService(
	session *SessionService,
	listings *repository.ListingRepository,
	transactions *repository.TransactionRepository,
	reviews *repository.ReviewRepository,
	reports *repository.ReportRepository,
	log *logger.Logger,
) *MarketplaceService {
	return &MarketplaceService{
		session:      session,
		listings:     listings,
		transactions: transactions,
		reviews:      reviews,
		reports:      reports,
		log:          log,
	}
}

// Listings browses the marketplace; only Available listings unless filtered otherwise
func (s *MarketplaceService) Listings(ctx context.Context, filters repository.ListingFilters) (*repository.ListingPage, error) {
	return s.listings.List(ctx, filters)
}

// Search runs a text search; an empty query falls back to browsing
func (s *MarketplaceService) Search(ctx context.Context, filters repository.ListingFilters) (*repository.ListingPage, error) {
	filters.Query = strings.TrimSpace(filters.Query)
	if filters.Query == "" {
		return s.listings.List(ctx, filters)
	}
	return s.listings.Search(ctx, filters)
}

func (s *MarketplaceService) Listing(ctx context.Context, id string) (*repository.Listing, error) {
	if strings.TrimSpace(id) == "" {
		return nil, apperrors.Validation(map[string]string{"id": "Listing id is required"})
	}
	return s.listings.GetByID(ctx, id)
}

// MyListings returns the current actor's own listings
func (s *MarketplaceService) MyListings(ctx context.Context) ([]repository.Listing, error) {
	if !s.session.IsAuthenticated() {
		return nil, apperrors.Unauthenticated("")
	}
	return s.listings.Mine(ctx)
}

// Transactions returns every transaction the current actor is a party to
func (s *MarketplaceService) Transactions(ctx context.Context) ([]repository.Transaction, error) {
	if !s.session.IsAuthenticated() {
		return nil, apperrors.Unauthenticated("")
	}
	return s.transactions.Mine(ctx)
}

func (s *MarketplaceService) Transaction(ctx context.Context, id string) (*repository.Transaction, error) {
	if !s.session.IsAuthenticated() {
		return nil, apperrors.Unauthenticated("")
	}
	if strings.TrimSpace(id) == "" {
		return nil, apperrors.Validation(map[string]string{"id": "Transaction id is required"})
	}
	return s.transactions.GetByID(ctx, id)
}

// TransactionStats summarises the actor's transactions
func (s *MarketplaceService) TransactionStats(ctx context.Context) (*repository.TransactionStats, error) {
	txs, err := s.Transactions(ctx)
	if err != nil {
		return nil, err
	}
	stats := ComputeTransactionStats(txs)
	return &stats, nil
}

// ComputeTransactionStats counts transactions by status and sums their amounts
func ComputeTransactionStats(txs []repository.Transaction) repository.TransactionStats {
	var stats repository.TransactionStats
	for _, tx := range txs {
		stats.Total++
		stats.TotalAmount += tx.Amount
		switch tx.Status {
		case repository.TransactionCompleted:
			stats.Completed++
		case repository.TransactionReserved:
			stats.Reserved++
		case repository.TransactionCancelled:
			stats.Cancelled++
		}
	}
	return stats
}

// ReviewsForUser lists the reviews a user has received
func (s *MarketplaceService) ReviewsForUser(ctx context.Context, userID string) ([]repository.Review, error) {
	return s.reviews.ForUser(ctx, userID)
}

// ReviewsForListing lists the reviews left on a listing's transactions
func (s *MarketplaceService) ReviewsForListing(ctx context.Context, listingID string) ([]repository.Review, error) {
	return s.reviews.ForListing(ctx, listingID)
}

// MyReports lists reports filed by the current actor
func (s *MarketplaceService) MyReports(ctx context.Context) ([]repository.Report, error) {
	if !s.session.IsAuthenticated() {
		return nil, apperrors.Unauthenticated("")
	}
	return s.reports.Mine(ctx)
}
