package service

import (
	"testing"

	"github.com/pesio-ai/campustrade-client/internal/apperrors"
	"github.com/pesio-ai/campustrade-client/internal/repository"
)

var (
	seller     = &repository.Session{ID: "seller", IsVerified: true, Token: "t-seller"}
	buyer      = &repository.Session{ID: "buyer", IsVerified: true, Token: "t-buyer"}
	stranger   = &repository.Session{ID: "stranger", IsVerified: true, Token: "t-stranger"}
	admin      = &repository.Session{ID: "admin", Role: repository.RoleAdmin, IsVerified: true, Token: "t-admin"}
	unverified = &repository.Session{ID: "newbie", Token: "t-newbie"}
	signedOut  = &repository.Session{ID: "seller"}
)

func listingWith(status repository.ListingStatus) *repository.Listing {
	return &repository.Listing{ID: "l1", Seller: repository.Ref{ID: "seller"}, Status: status}
}

func txWith(status repository.TransactionStatus) *repository.Transaction {
	return &repository.Transaction{
		ID:     "t1",
		Buyer:  repository.Ref{ID: "buyer"},
		Seller: repository.Ref{ID: "seller"},
		Status: status,
	}
}

func kindOrNone(err error) apperrors.Kind {
	if err == nil {
		return ""
	}
	return apperrors.KindOf(err)
}

func TestCanReserve(t *testing.T) {
	tests := []struct {
		name    string
		actor   *repository.Session
		listing *repository.Listing
		want    apperrors.Kind
	}{
		{"verified buyer", buyer, listingWith(repository.ListingAvailable), ""},
		{"nil actor", nil, listingWith(repository.ListingAvailable), apperrors.KindUnauthenticated},
		{"no token", signedOut, listingWith(repository.ListingAvailable), apperrors.KindUnauthenticated},
		{"unverified", unverified, listingWith(repository.ListingAvailable), apperrors.KindUnverified},
		{"own listing", seller, listingWith(repository.ListingAvailable), apperrors.KindForbidden},
		{"reserved", buyer, listingWith(repository.ListingReserved), apperrors.KindInvalidState},
		{"sold", buyer, listingWith(repository.ListingSold), apperrors.KindInvalidState},
		{"hidden", buyer, listingWith(repository.ListingHidden), apperrors.KindInvalidState},
		{"removed", buyer, listingWith(repository.ListingRemoved), apperrors.KindInvalidState},
		{"unverified checked before own listing", &repository.Session{ID: "seller", Token: "t"}, listingWith(repository.ListingAvailable), apperrors.KindUnverified},
		{"own listing checked before status", seller, listingWith(repository.ListingSold), apperrors.KindForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := kindOrNone(CanReserve(tt.actor, tt.listing)); got != tt.want {
				t.Errorf("CanReserve() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestCanEditAndDeleteOnlyOwner(t *testing.T) {
	actors := []*repository.Session{seller, buyer, stranger, admin, unverified, signedOut, nil}
	statuses := []repository.ListingStatus{
		repository.ListingAvailable, repository.ListingReserved, repository.ListingSold,
		repository.ListingHidden, repository.ListingRemoved,
	}

	for _, actor := range actors {
		for _, status := range statuses {
			l := listingWith(status)
			owner := actor != nil && actor.Token != "" && actor.ID == l.Seller.ID

			if got := CanDelete(actor, l) == nil; got != owner {
				t.Errorf("CanDelete(%v, %s) allowed = %v, want %v", actor, status, got, owner)
			}
			wantEdit := owner && status == repository.ListingAvailable
			if got := CanEdit(actor, l) == nil; got != wantEdit {
				t.Errorf("CanEdit(%v, %s) allowed = %v, want %v", actor, status, got, wantEdit)
			}
		}
	}
}

func TestCanEditRejectsEmptySellerID(t *testing.T) {
	actor := &repository.Session{Token: "t"}
	l := &repository.Listing{Status: repository.ListingAvailable}

	if err := CanEdit(actor, l); err == nil {
		t.Error("CanEdit() with empty ids = nil, want Forbidden")
	}
}

func TestCanMessageSeller(t *testing.T) {
	tests := []struct {
		name  string
		actor *repository.Session
		want  apperrors.Kind
	}{
		{"buyer", buyer, ""},
		{"signed out", signedOut, apperrors.KindUnauthenticated},
		{"unverified", unverified, apperrors.KindUnverified},
		{"seller", seller, apperrors.KindForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := kindOrNone(CanMessageSeller(tt.actor, listingWith(repository.ListingSold))); got != tt.want {
				t.Errorf("CanMessageSeller() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestTransactionPermissions(t *testing.T) {
	statuses := []repository.TransactionStatus{
		repository.TransactionInitiated, repository.TransactionPending, repository.TransactionReserved,
		repository.TransactionCompleted, repository.TransactionCancelled,
	}
	actors := []*repository.Session{seller, buyer, stranger, admin, unverified, signedOut, nil}

	for _, status := range statuses {
		for _, actor := range actors {
			tx := txWith(status)
			signedIn := actor != nil && actor.Token != ""
			isBuyer := signedIn && actor.ID == "buyer"
			isSeller := signedIn && actor.ID == "seller"
			reserved := status == repository.TransactionReserved

			checks := []struct {
				name string
				got  bool
				want bool
			}{
				{"CanCancel", CanCancel(actor, tx) == nil, (isBuyer || isSeller) && reserved},
				{"CanMarkAsSold", CanMarkAsSold(actor, tx) == nil, isSeller && reserved},
				{"CanConfirmReceipt", CanConfirmReceipt(actor, tx) == nil, isBuyer && reserved},
				{"CanReview", CanReview(actor, tx) == nil, (isBuyer || isSeller) && status == repository.TransactionCompleted},
			}
			for _, c := range checks {
				if c.got != c.want {
					t.Errorf("%s(%v, %s) allowed = %v, want %v", c.name, actor, status, c.got, c.want)
				}
			}
		}
	}
}

func TestCanReportAndCreate(t *testing.T) {
	l := listingWith(repository.ListingAvailable)

	if err := CanReport(buyer, l); err != nil {
		t.Errorf("CanReport(buyer) = %v, want nil", err)
	}
	if err := CanReport(unverified, l); err != nil {
		t.Errorf("CanReport(unverified) = %v, want nil", err)
	}
	if got := kindOrNone(CanReport(seller, l)); got != apperrors.KindForbidden {
		t.Errorf("CanReport(seller) = %q, want Forbidden", got)
	}
	if got := kindOrNone(CanCreateListing(unverified)); got != apperrors.KindUnverified {
		t.Errorf("CanCreateListing(unverified) = %q, want Unverified", got)
	}
	if err := CanCreateListing(seller); err != nil {
		t.Errorf("CanCreateListing(seller) = %v, want nil", err)
	}
}

func TestActionSets(t *testing.T) {
	l := listingWith(repository.ListingAvailable)

	if got, want := ListingActionsFor(buyer, l), (ListingActions{Reserve: true, MessageSeller: true, Report: true}); got != want {
		t.Errorf("ListingActionsFor(buyer) = %+v, want %+v", got, want)
	}
	if got, want := ListingActionsFor(seller, l), (ListingActions{Edit: true, Delete: true}); got != want {
		t.Errorf("ListingActionsFor(seller) = %+v, want %+v", got, want)
	}
	if got := ListingActionsFor(nil, l); got != (ListingActions{}) {
		t.Errorf("ListingActionsFor(nil) = %+v, want none", got)
	}

	tx := txWith(repository.TransactionReserved)
	if got, want := TransactionActionsFor(seller, tx), (TransactionActions{MarkAsSold: true, Cancel: true}); got != want {
		t.Errorf("TransactionActionsFor(seller) = %+v, want %+v", got, want)
	}
	if got, want := TransactionActionsFor(buyer, tx), (TransactionActions{ConfirmReceipt: true, Cancel: true}); got != want {
		t.Errorf("TransactionActionsFor(buyer) = %+v, want %+v", got, want)
	}
	if got := TransactionActionsFor(stranger, tx); got != (TransactionActions{}) {
		t.Errorf("TransactionActionsFor(stranger) = %+v, want none", got)
	}
}
