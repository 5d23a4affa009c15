package service

import (
	"github.com/pesio-ai/campustrade-client/internal/apperrors"
	"github.com/pesio-ai/campustrade-client/internal/repository"
)

// Permission checks are pure functions of the actor and the last-known
// entity. Each returns nil when the action is allowed.

func requireVerified(actor *repository.Session) error {
	if !actor.IsAuthenticated() {
		return apperrors.Unauthenticated("")
	}
	if !actor.IsVerified {
		return apperrors.Unverified("")
	}
	return nil
}

func isOwner(actor *repository.Session, l *repository.Listing) bool {
	return actor.IsAuthenticated() && actor.ID != "" && actor.ID == l.Seller.ID
}

// CanReserve checks, in order: signed in, verified, not the seller, available
func CanReserve(actor *repository.Session, l *repository.Listing) error {
	if err := requireVerified(actor); err != nil {
		return err
	}
	if isOwner(actor, l) {
		return apperrors.Forbidden("You cannot reserve your own listing")
	}
	if l.Status != repository.ListingAvailable {
		return apperrors.InvalidState("This listing is no longer available")
	}
	return nil
}

func CanEdit(actor *repository.Session, l *repository.Listing) error {
	if !actor.IsAuthenticated() {
		return apperrors.Unauthenticated("")
	}
	if !isOwner(actor, l) {
		return apperrors.Forbidden("Only the seller can edit this listing")
	}
	if l.Status != repository.ListingAvailable {
		return apperrors.InvalidState("Only available listings can be edited")
	}
	return nil
}

func CanDelete(actor *repository.Session, l *repository.Listing) error {
	if !actor.IsAuthenticated() {
		return apperrors.Unauthenticated("")
	}
	if !isOwner(actor, l) {
		return apperrors.Forbidden("Only the seller can delete this listing")
	}
	return nil
}

func CanMessageSeller(actor *repository.Session, l *repository.Listing) error {
	if err := requireVerified(actor); err != nil {
		return err
	}
	if isOwner(actor, l) {
		return apperrors.Forbidden("You cannot message yourself")
	}
	return nil
}

// CanReport allows any signed-in actor other than the seller
func CanReport(actor *repository.Session, l *repository.Listing) error {
	if !actor.IsAuthenticated() {
		return apperrors.Unauthenticated("")
	}
	if isOwner(actor, l) {
		return apperrors.Forbidden("You cannot report your own listing")
	}
	return nil
}

func CanCreateListing(actor *repository.Session) error {
	return requireVerified(actor)
}

func isBuyer(actor *repository.Session, tx *repository.Transaction) bool {
	return actor.IsAuthenticated() && actor.ID != "" && actor.ID == tx.Buyer.ID
}

func isSeller(actor *repository.Session, tx *repository.Transaction) bool {
	return actor.IsAuthenticated() && actor.ID != "" && actor.ID == tx.Seller.ID
}

func requireReserved(tx *repository.Transaction) error {
	if tx.Status != repository.TransactionReserved {
		return apperrors.InvalidState("This transaction is already " + string(tx.Status))
	}
	return nil
}

func CanMarkAsSold(actor *repository.Session, tx *repository.Transaction) error {
	if !actor.IsAuthenticated() {
		return apperrors.Unauthenticated("")
	}
	if !isSeller(actor, tx) {
		return apperrors.Forbidden("Only the seller can mark this as sold")
	}
	return requireReserved(tx)
}

func CanConfirmReceipt(actor *repository.Session, tx *repository.Transaction) error {
	if !actor.IsAuthenticated() {
		return apperrors.Unauthenticated("")
	}
	if !isBuyer(actor, tx) {
		return apperrors.Forbidden("Only the buyer can confirm receipt")
	}
	return requireReserved(tx)
}

func CanCancel(actor *repository.Session, tx *repository.Transaction) error {
	if !actor.IsAuthenticated() {
		return apperrors.Unauthenticated("")
	}
	if !isBuyer(actor, tx) && !isSeller(actor, tx) {
		return apperrors.Forbidden("Only the buyer or seller can cancel")
	}
	return requireReserved(tx)
}

// CanReview allows either party once the transaction is completed
func CanReview(actor *repository.Session, tx *repository.Transaction) error {
	if !actor.IsAuthenticated() {
		return apperrors.Unauthenticated("")
	}
	if !isBuyer(actor, tx) && !isSeller(actor, tx) {
		return apperrors.Forbidden("Only the buyer or seller can leave a review")
	}
	if tx.Status != repository.TransactionCompleted {
		return apperrors.InvalidState("Only completed transactions can be reviewed")
	}
	return nil
}

// ListingActions is the permission set of an actor on a listing
type ListingActions struct {
	Reserve       bool
	Edit          bool
	Delete        bool
	MessageSeller bool
	Report        bool
}

func ListingActionsFor(actor *repository.Session, l *repository.Listing) ListingActions {
	return ListingActions{
		Reserve:       CanReserve(actor, l) == nil,
		Edit:          CanEdit(actor, l) == nil,
		Delete:        CanDelete(actor, l) == nil,
		MessageSeller: CanMessageSeller(actor, l) == nil,
		Report:        CanReport(actor, l) == nil,
	}
}

// TransactionActions is the permission set of an actor on a transaction
type TransactionActions struct {
	MarkAsSold     bool
	ConfirmReceipt bool
	Cancel         bool
	Review         bool
}

func TransactionActionsFor(actor *repository.Session, tx *repository.Transaction) TransactionActions {
	return TransactionActions{
		MarkAsSold:     CanMarkAsSold(actor, tx) == nil,
		ConfirmReceipt: CanConfirmReceipt(actor, tx) == nil,
		Cancel:         CanCancel(actor, tx) == nil,
		Review:         CanReview(actor, tx) == nil,
	}
}
