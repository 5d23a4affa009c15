package service

import (
	"context"
	"sync"
	"testing"

	"github.com/pesio-ai/campustrade-client/internal/apperrors"
	"github.com/pesio-ai/campustrade-client/internal/mockapi"
	"github.com/pesio-ai/campustrade-client/internal/repository"
)

func TestReserve(t *testing.T) {
	buyer, _, tx := reserved(t)

	if tx.Status != repository.TransactionReserved {
		t.Errorf("Transaction.Status = %s, want Reserved", tx.Status)
	}
	if tx.Buyer.ID != buyer.session.Current().ID {
		t.Errorf("Transaction.Buyer = %s, want current actor", tx.Buyer.ID)
	}

	l, err := buyer.market.Listing(context.Background(), tx.Listing.ID)
	if err != nil {
		t.Fatalf("Listing() error = %v", err)
	}
	if l.Status != repository.ListingReserved {
		t.Errorf("Listing.Status = %s, want Reserved", l.Status)
	}
	if st, _ := buyer.phases.last(l.ID); st.Phase != PhaseSucceeded || st.Action != ActionReserve {
		t.Errorf("tracker state = %+v, want reserve succeeded", st)
	}
}

func TestReserveTwiceSequentially(t *testing.T) {
	h := newHarness(t)
	h.login(t, mockapi.BuyerEmail)
	ctx := context.Background()

	stale := h.listing(t, "Calculus")
	res, err := h.workflow.Reserve(ctx, stale)
	if err != nil {
		t.Fatalf("Reserve() error = %v", err)
	}

	// the reloaded listing is rejected locally
	before := h.api.TotalRequests()
	_, err = h.workflow.Reserve(ctx, res.Listing)
	wantKind(t, err, apperrors.KindInvalidState)
	if got := h.api.TotalRequests(); got != before {
		t.Errorf("requests after local rejection = %d, want %d", got, before)
	}

	// the stale copy gets through locally and is rejected by the server
	_, err = h.workflow.Reserve(ctx, stale)
	wantKind(t, err, apperrors.KindInvalidState)

	if n := h.api.TransactionCount(stale.ID); n != 1 {
		t.Errorf("TransactionCount() = %d, want 1", n)
	}
}

func TestReserveConcurrent(t *testing.T) {
	h := newHarness(t)
	h.login(t, mockapi.BuyerEmail)
	l := h.listing(t, "Calculus")

	const attempts = 4
	errs := make([]error, attempts)
	var wg sync.WaitGroup
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = h.workflow.Reserve(context.Background(), l)
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		switch {
		case err == nil:
			succeeded++
		case apperrors.KindOf(err) != apperrors.KindInvalidState:
			t.Errorf("Reserve() error = %v, want InvalidState", err)
		}
	}
	if succeeded != 1 {
		t.Errorf("successful reservations = %d, want 1", succeeded)
	}
	if n := h.api.TransactionCount(l.ID); n != 1 {
		t.Errorf("TransactionCount() = %d, want 1", n)
	}
}

func TestReserveDeniedLocally(t *testing.T) {
	tests := []struct {
		name  string
		setup func(t *testing.T, h *harness)
		want  apperrors.Kind
	}{
		{
			name:  "signed out",
			setup: func(*testing.T, *harness) {},
			want:  apperrors.KindUnauthenticated,
		},
		{
			name:  "own listing",
			setup: func(t *testing.T, h *harness) { h.login(t, mockapi.SellerEmail) },
			want:  apperrors.KindForbidden,
		},
		{
			name: "unverified",
			setup: func(t *testing.T, h *harness) {
				h.restore(t, &repository.Session{ID: h.api.UserID(mockapi.UnverifiedEmail), Token: "not-checked"})
			},
			want: apperrors.KindUnverified,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			l := h.listing(t, "Calculus")
			tt.setup(t, h)

			before := h.api.TotalRequests()
			_, err := h.workflow.Reserve(context.Background(), l)
			wantKind(t, err, tt.want)

			if got := h.api.TotalRequests(); got != before {
				t.Errorf("requests = %d, want %d", got-before, 0)
			}
			if n := h.api.TransactionCount(l.ID); n != 0 {
				t.Errorf("TransactionCount() = %d, want 0", n)
			}
		})
	}
}

func TestTransactionLifecycle(t *testing.T) {
	tests := []struct {
		name        string
		act         func(buyer, seller *harness, tx *repository.Transaction) (*repository.Transaction, error)
		wantTx      repository.TransactionStatus
		wantListing repository.ListingStatus
	}{
		{
			name: "seller marks as sold",
			act: func(_, seller *harness, tx *repository.Transaction) (*repository.Transaction, error) {
				return seller.workflow.MarkAsSold(context.Background(), tx)
			},
			wantTx:      repository.TransactionCompleted,
			wantListing: repository.ListingSold,
		},
		{
			name: "buyer confirms receipt",
			act: func(buyer, _ *harness, tx *repository.Transaction) (*repository.Transaction, error) {
				return buyer.workflow.ConfirmReceipt(context.Background(), tx)
			},
			wantTx:      repository.TransactionCompleted,
			wantListing: repository.ListingSold,
		},
		{
			name: "buyer cancels",
			act: func(buyer, _ *harness, tx *repository.Transaction) (*repository.Transaction, error) {
				return buyer.workflow.Cancel(context.Background(), tx, "Changed my mind")
			},
			wantTx:      repository.TransactionCancelled,
			wantListing: repository.ListingAvailable,
		},
		{
			name: "seller cancels",
			act: func(_, seller *harness, tx *repository.Transaction) (*repository.Transaction, error) {
				return seller.workflow.Cancel(context.Background(), tx, "  No longer selling ")
			},
			wantTx:      repository.TransactionCancelled,
			wantListing: repository.ListingAvailable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buyer, seller, tx := reserved(t)

			updated, err := tt.act(buyer, seller, tx)
			if err != nil {
				t.Fatalf("action error = %v", err)
			}
			if updated == nil || updated.Status != tt.wantTx {
				t.Fatalf("Transaction = %+v, want status %s", updated, tt.wantTx)
			}
			if tt.wantTx == repository.TransactionCancelled && updated.CancellationReason == "" {
				t.Error("CancellationReason is empty")
			}

			l, err := buyer.market.Listing(context.Background(), tx.Listing.ID)
			if err != nil {
				t.Fatalf("Listing() error = %v", err)
			}
			if l.Status != tt.wantListing {
				t.Errorf("Listing.Status = %s, want %s", l.Status, tt.wantListing)
			}

			// the old copy still says Reserved; the server refuses a second transition
			_, err = buyer.workflow.Cancel(context.Background(), tx, "again")
			wantKind(t, err, apperrors.KindInvalidState)
		})
	}
}

func TestCancelRequiresReason(t *testing.T) {
	buyer, _, tx := reserved(t)

	for _, reason := range []string{"", "   ", "\t\n"} {
		before := buyer.api.TotalRequests()
		_, err := buyer.workflow.Cancel(context.Background(), tx, reason)
		wantKind(t, err, apperrors.KindValidation)
		if got := buyer.api.TotalRequests(); got != before {
			t.Errorf("Cancel(%q) issued %d requests, want 0", reason, got-before)
		}
	}
}

func TestTransactionActionsDeniedLocally(t *testing.T) {
	buyer, seller, tx := reserved(t)
	ctx := context.Background()

	stranger := newHarnessFor(t, buyer.api, buyer.baseURL)
	stranger.login(t, mockapi.AdminEmail)

	before := buyer.api.TotalRequests()

	_, err := buyer.workflow.MarkAsSold(ctx, tx)
	wantKind(t, err, apperrors.KindForbidden)
	_, err = seller.workflow.ConfirmReceipt(ctx, tx)
	wantKind(t, err, apperrors.KindForbidden)
	_, err = stranger.workflow.Cancel(ctx, tx, "spam")
	wantKind(t, err, apperrors.KindForbidden)
	_, err = buyer.workflow.LeaveReview(ctx, tx, 5, "early")
	wantKind(t, err, apperrors.KindInvalidState)

	if got := buyer.api.TotalRequests(); got != before {
		t.Errorf("requests = %d, want 0", got-before)
	}
}

func TestListingEditAndDelete(t *testing.T) {
	h := newHarness(t)
	h.login(t, mockapi.SellerEmail)
	ctx := context.Background()

	created, err := h.workflow.CreateListing(ctx, validGoods())
	if err != nil {
		t.Fatalf("CreateListing() error = %v", err)
	}
	if created.ID == "" || created.Status != repository.ListingAvailable {
		t.Fatalf("CreateListing() = %+v, want an available listing", created)
	}

	input := validGoods()
	input.Title = "Desk lamp with bulb"
	input.Price = 180
	input.Images = nil

	edited, err := h.workflow.Edit(ctx, created, input)
	if err != nil {
		t.Fatalf("Edit() error = %v", err)
	}
	if edited.Title != input.Title || edited.Price != 180 {
		t.Errorf("Edit() = %q %v, want %q 180", edited.Title, edited.Price, input.Title)
	}
	if len(edited.Images) == 0 {
		t.Error("Edit() dropped the existing images")
	}

	if err := h.workflow.Delete(ctx, edited); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	_, err = h.market.Listing(ctx, edited.ID)
	wantKind(t, err, apperrors.KindNotFound)
}

func TestCreateListingValidation(t *testing.T) {
	h := newHarness(t)
	h.login(t, mockapi.SellerEmail)

	in := validGoods()
	in.Title = "ab"
	in.Images = nil

	before := h.api.TotalRequests()
	_, err := h.workflow.CreateListing(context.Background(), in)
	wantKind(t, err, apperrors.KindValidation)
	if got := h.api.TotalRequests(); got != before {
		t.Errorf("requests = %d, want 0", got-before)
	}
	if st, ok := h.phases.last(newListingKey); ok {
		t.Errorf("tracker state = %+v, want untouched", st)
	}
}

func TestEditDeniedForReservedListing(t *testing.T) {
	buyer, seller, tx := reserved(t)

	l, err := seller.market.Listing(context.Background(), tx.Listing.ID)
	if err != nil {
		t.Fatalf("Listing() error = %v", err)
	}

	before := buyer.api.TotalRequests()
	_, err = seller.workflow.Edit(context.Background(), l, validGoods())
	wantKind(t, err, apperrors.KindInvalidState)
	err = buyer.workflow.Delete(context.Background(), l)
	wantKind(t, err, apperrors.KindForbidden)
	if got := buyer.api.TotalRequests(); got != before {
		t.Errorf("requests = %d, want 0", got-before)
	}
}

func TestMessageSeller(t *testing.T) {
	h := newHarness(t)
	l := h.listing(t, "Python")
	ctx := context.Background()

	h.restore(t, &repository.Session{ID: h.api.UserID(mockapi.UnverifiedEmail), Token: "not-checked"})
	_, err := h.workflow.MessageSeller(ctx, l, "hello")
	wantKind(t, err, apperrors.KindUnverified)
	if got := h.api.RequestCount("POST", "/api/messages"); got != 0 {
		t.Errorf("message requests = %d, want 0", got)
	}

	h.login(t, mockapi.BuyerEmail)
	_, err = h.workflow.MessageSeller(ctx, l, "   ")
	wantKind(t, err, apperrors.KindValidation)

	msg, err := h.workflow.MessageSeller(ctx, l, " Is Thursday fine? ")
	if err != nil {
		t.Fatalf("MessageSeller() error = %v", err)
	}
	if msg.Content != "Is Thursday fine?" || msg.Receiver.ID != l.Seller.ID {
		t.Errorf("MessageSeller() = %+v", msg)
	}
}

func TestLeaveReview(t *testing.T) {
	buyer, seller, tx := reserved(t)
	ctx := context.Background()

	done, err := buyer.workflow.ConfirmReceipt(ctx, tx)
	if err != nil {
		t.Fatalf("ConfirmReceipt() error = %v", err)
	}

	_, err = buyer.workflow.LeaveReview(ctx, done, 6, "")
	wantKind(t, err, apperrors.KindValidation)

	review, err := buyer.workflow.LeaveReview(ctx, done, 5, "Smooth handover")
	if err != nil {
		t.Fatalf("LeaveReview() error = %v", err)
	}
	if review.Reviewee.ID != seller.session.Current().ID {
		t.Errorf("Reviewee = %s, want the seller", review.Reviewee.ID)
	}

	_, err = buyer.workflow.LeaveReview(ctx, done, 4, "twice")
	wantKind(t, err, apperrors.KindInvalidState)

	reviews, err := seller.market.ReviewsForUser(ctx, seller.session.Current().ID)
	if err != nil {
		t.Fatalf("ReviewsForUser() error = %v", err)
	}
	if len(reviews) != 1 || reviews[0].Rating != 5 {
		t.Errorf("ReviewsForUser() = %+v, want one 5 star review", reviews)
	}
}

func TestReportListing(t *testing.T) {
	h := newHarness(t)
	h.login(t, mockapi.BuyerEmail)
	l := h.listing(t, "Calculus")
	ctx := context.Background()

	_, err := h.workflow.ReportListing(ctx, l, " ", "")
	wantKind(t, err, apperrors.KindValidation)

	report, err := h.workflow.ReportListing(ctx, l, "Misleading", "Wrong edition")
	if err != nil {
		t.Fatalf("ReportListing() error = %v", err)
	}
	if report.Status != repository.ReportPending || report.ReportedUser.ID != l.Seller.ID {
		t.Errorf("ReportListing() = %+v", report)
	}

	mine, err := h.market.MyReports(ctx)
	if err != nil {
		t.Fatalf("MyReports() error = %v", err)
	}
	if len(mine) != 1 || mine[0].ID != report.ID {
		t.Errorf("MyReports() = %+v, want the new report", mine)
	}
}
