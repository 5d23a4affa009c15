package service

import (
	"bytes"
	"context"
	"testing"

	"github.com/pesio-ai/campustrade-client/internal/apperrors"
	"github.com/pesio-ai/campustrade-client/internal/export"
	"github.com/pesio-ai/campustrade-client/internal/mockapi"
	"github.com/pesio-ai/campustrade-client/internal/repository"
)

func TestAdminRequiresAdmin(t *testing.T) {
	tests := []struct {
		name  string
		email string
		want  apperrors.Kind
	}{
		{"signed out", "", apperrors.KindUnauthenticated},
		{"regular user", mockapi.BuyerEmail, apperrors.KindForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			if tt.email != "" {
				h.login(t, tt.email)
			}
			ctx := context.Background()
			before := h.api.TotalRequests()

			_, err := h.admin.Users(ctx, repository.AdminFilters{})
			wantKind(t, err, tt.want)
			_, err = h.admin.Stats(ctx)
			wantKind(t, err, tt.want)
			err = h.admin.SetUserStatus(ctx, "u1", repository.AccountBanned, "spam")
			wantKind(t, err, tt.want)
			err = h.admin.Export(ctx, &bytes.Buffer{})
			wantKind(t, err, tt.want)

			if got := h.api.TotalRequests(); got != before {
				t.Errorf("requests = %d, want 0", got-before)
			}
		})
	}
}

func TestAdminUserModeration(t *testing.T) {
	admin := newHarness(t)
	admin.login(t, mockapi.AdminEmail)
	buyer := newHarnessFor(t, admin.api, admin.baseURL)
	buyer.login(t, mockapi.BuyerEmail)
	ctx := context.Background()
	buyerID := admin.api.UserID(mockapi.BuyerEmail)

	err := admin.admin.SetUserStatus(ctx, buyerID, repository.AccountSuspended, " ")
	wantKind(t, err, apperrors.KindValidation)
	err = admin.admin.SetUserStatus(ctx, buyerID, "frozen", "x")
	wantKind(t, err, apperrors.KindValidation)

	if err := admin.admin.SetUserStatus(ctx, buyerID, repository.AccountSuspended, "Spam listings"); err != nil {
		t.Fatalf("SetUserStatus() error = %v", err)
	}

	suspended, err := admin.admin.Users(ctx, repository.AdminFilters{Status: repository.AccountSuspended})
	if err != nil {
		t.Fatalf("Users() error = %v", err)
	}
	if len(suspended) != 1 || suspended[0].ID != buyerID {
		t.Errorf("Users(suspended) = %+v, want the buyer", suspended)
	}

	// the suspended buyer's next call is rejected and signs them out
	_, err = buyer.market.Transactions(ctx)
	wantKind(t, err, apperrors.KindUnauthenticated)
	if buyer.session.Current() != nil {
		t.Error("suspended buyer still signed in")
	}
}

func TestAdminListingModeration(t *testing.T) {
	admin := newHarness(t)
	admin.login(t, mockapi.AdminEmail)
	ctx := context.Background()
	l := admin.listing(t, "Python")

	err := admin.admin.SetListingStatus(ctx, l.ID, repository.ListingSold, "")
	wantKind(t, err, apperrors.KindValidation)

	if err := admin.admin.SetListingStatus(ctx, l.ID, repository.ListingHidden, "Off topic"); err != nil {
		t.Fatalf("SetListingStatus() error = %v", err)
	}

	hidden, err := admin.admin.Listings(ctx, repository.AdminFilters{Status: string(repository.ListingHidden)})
	if err != nil {
		t.Fatalf("Listings() error = %v", err)
	}
	if len(hidden) != 1 || hidden[0].ID != l.ID {
		t.Errorf("Listings(Hidden) = %+v, want the tutoring listing", hidden)
	}

	// hidden listings are not visible to other actors
	visitor := newHarnessFor(t, admin.api, admin.baseURL)
	_, err = visitor.market.Listing(ctx, l.ID)
	wantKind(t, err, apperrors.KindNotFound)
}

func TestAdminReportsAndExport(t *testing.T) {
	buyer := newHarness(t)
	buyer.login(t, mockapi.BuyerEmail)
	admin := newHarnessFor(t, buyer.api, buyer.baseURL)
	admin.login(t, mockapi.AdminEmail)
	ctx := context.Background()

	report, err := buyer.workflow.ReportListing(ctx, buyer.listing(t, "Calculus"), "Scam", "")
	if err != nil {
		t.Fatalf("ReportListing() error = %v", err)
	}

	stats, err := admin.admin.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats() error = %v", err)
	}
	if stats.TotalUsers != 4 || stats.PendingReports != 1 || stats.TotalListings != 2 {
		t.Errorf("Stats() = %+v", stats)
	}

	err = admin.admin.ResolveReport(ctx, report.ID, "closed", "")
	wantKind(t, err, apperrors.KindValidation)
	if err := admin.admin.ResolveReport(ctx, report.ID, repository.ReportResolved, "Seller warned"); err != nil {
		t.Fatalf("ResolveReport() error = %v", err)
	}

	resolved, err := admin.admin.Reports(ctx, repository.AdminFilters{Status: repository.ReportResolved})
	if err != nil {
		t.Fatalf("Reports() error = %v", err)
	}
	if len(resolved) != 1 || resolved[0].AdminNotes != "Seller warned" {
		t.Errorf("Reports(resolved) = %+v", resolved)
	}

	var buf bytes.Buffer
	if err := admin.admin.Export(ctx, &buf); err != nil {
		t.Fatalf("Export() error = %v", err)
	}

	tests := []struct {
		sheet string
		rows  int
	}{
		{export.SheetUsers, 4},
		{export.SheetListings, 2},
		{export.SheetReports, 1},
	}
	for _, tt := range tests {
		rows, err := export.ReadSheet(bytes.NewReader(buf.Bytes()), tt.sheet)
		if err != nil {
			t.Fatalf("ReadSheet(%s) error = %v", tt.sheet, err)
		}
		if got := len(rows) - 1; got != tt.rows {
			t.Errorf("ReadSheet(%s) data rows = %d, want %d", tt.sheet, got, tt.rows)
		}
	}
}
