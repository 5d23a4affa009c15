package service

import (
	"context"
	"testing"

	"github.com/pesio-ai/campustrade-client/internal/apperrors"
	"github.com/pesio-ai/campustrade-client/internal/mockapi"
	"github.com/pesio-ai/campustrade-client/internal/repository"
)

func TestComputeTransactionStats(t *testing.T) {
	tests := []struct {
		name string
		txs  []repository.Transaction
		want repository.TransactionStats
	}{
		{"empty", nil, repository.TransactionStats{}},
		{
			name: "mixed",
			txs: []repository.Transaction{
				{Status: repository.TransactionCompleted, Amount: 450},
				{Status: repository.TransactionReserved, Amount: 200},
				{Status: repository.TransactionCancelled, Amount: 100},
				{Status: repository.TransactionInitiated, Amount: 50},
			},
			want: repository.TransactionStats{Total: 4, Completed: 1, Reserved: 1, Cancelled: 1, TotalAmount: 800},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ComputeTransactionStats(tt.txs); got != tt.want {
				t.Errorf("ComputeTransactionStats() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestMarketplaceBrowse(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	page, err := h.market.Listings(ctx, repository.ListingFilters{Category: repository.CategoryServices})
	if err != nil {
		t.Fatalf("Listings() error = %v", err)
	}
	if len(page.Listings) != 1 || page.Listings[0].Title != "Python Tutoring" {
		t.Errorf("Listings(Services) = %+v", page.Listings)
	}

	found, err := h.market.Search(ctx, repository.ListingFilters{Query: "calculus"})
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(found.Listings) != 1 {
		t.Errorf("Search(calculus) = %d listings, want 1", len(found.Listings))
	}

	all, err := h.market.Search(ctx, repository.ListingFilters{Query: "  "})
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(all.Listings) != 2 {
		t.Errorf("Search(blank) = %d listings, want 2", len(all.Listings))
	}
	if got := h.api.RequestCount("GET", "/api/listings/search"); got != 1 {
		t.Errorf("search requests = %d, want 1", got)
	}

	_, err = h.market.Listing(ctx, " ")
	wantKind(t, err, apperrors.KindValidation)
}

func TestMarketplaceRequiresSession(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.market.MyListings(ctx)
	wantKind(t, err, apperrors.KindUnauthenticated)
	_, err = h.market.Transactions(ctx)
	wantKind(t, err, apperrors.KindUnauthenticated)
	_, err = h.market.TransactionStats(ctx)
	wantKind(t, err, apperrors.KindUnauthenticated)
	_, err = h.market.MyReports(ctx)
	wantKind(t, err, apperrors.KindUnauthenticated)

	if got := h.api.TotalRequests(); got != 0 {
		t.Errorf("requests = %d, want 0", got)
	}
}

func TestMarketplaceTransactions(t *testing.T) {
	buyer, seller, tx := reserved(t)
	ctx := context.Background()

	for _, h := range []*harness{buyer, seller} {
		stats, err := h.market.TransactionStats(ctx)
		if err != nil {
			t.Fatalf("TransactionStats() error = %v", err)
		}
		want := repository.TransactionStats{Total: 1, Reserved: 1, TotalAmount: 450}
		if *stats != want {
			t.Errorf("TransactionStats() = %+v, want %+v", *stats, want)
		}

		got, err := h.market.Transaction(ctx, tx.ID)
		if err != nil {
			t.Fatalf("Transaction() error = %v", err)
		}
		if got.ID != tx.ID {
			t.Errorf("Transaction() = %s, want %s", got.ID, tx.ID)
		}
	}

	mine, err := seller.market.MyListings(ctx)
	if err != nil {
		t.Fatalf("MyListings() error = %v", err)
	}
	if len(mine) != 2 {
		t.Errorf("MyListings() = %d listings, want 2", len(mine))
	}

	outsider := newHarnessFor(t, buyer.api, buyer.baseURL)
	outsider.login(t, mockapi.AdminEmail)
	txs, err := outsider.market.Transactions(ctx)
	if err != nil {
		t.Fatalf("Transactions() error = %v", err)
	}
	if len(txs) != 0 {
		t.Errorf("Transactions() for a non-party = %d, want 0", len(txs))
	}
}
