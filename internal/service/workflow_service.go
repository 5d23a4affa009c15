package service

import (
	"context"
	"strings"

	"github.com/pesio-ai/campustrade-client/internal/apperrors"
	"github.com/pesio-ai/campustrade-client/internal/logger"
	"github.com/pesio-ai/campustrade-client/internal/repository"
)

// Workflow action names as recorded by the tracker
const (
	ActionReserve        = "reserve"
	ActionEdit           = "edit"
	ActionDelete         = "delete"
	ActionMessageSeller  = "message-seller"
	ActionMarkAsSold     = "mark-as-sold"
	ActionConfirmReceipt = "confirm-receipt"
	ActionCancel         = "cancel"
	ActionCreateListing  = "create-listing"
	ActionReview         = "review"
	ActionReport         = "report"
)

// newListingKey tracks a listing that has no id yet
const newListingKey = "listing:new"

// WorkflowService runs the marketplace actions. Every action checks the
// actor's permission against the entity it was given, validates its input,
// sends exactly one mutating request and then reloads the entity from the
// server. Nothing is changed locally ahead of the server.
type WorkflowService struct {
	session      *SessionService
	listings     *repository.ListingRepository
	transactions *repository.TransactionRepository
	messages     *repository.MessageRepository
	reviews      *repository.ReviewRepository
	reports      *repository.ReportRepository
	tracker      *Tracker
	log          *logger.Logger
}

func NewWorkflowService(
	session *SessionService,
	listings *repository.ListingRepository,
	transactions *repository.TransactionRepository,
	messages *repository.MessageRepository,
	reviews *repository.ReviewRepository,
	reports *repository.ReportRepository,
	tracker *Tracker,
	log *logger.Logger,
) *WorkflowService {
	return &WorkflowService{
		session:      session,
		listings:     listings,
		transactions: transactions,
		messages:     messages,
		reviews:      reviews,
		reports:      reports,
		tracker:      tracker,
		log:          log,
	}
}

// Tracker exposes the pending-state tracker so front ends can show progress
func (s *WorkflowService) Tracker() *Tracker {
	return s.tracker
}

// ListingActions returns what the current actor may do with l
func (s *WorkflowService) ListingActions(l *repository.Listing) ListingActions {
	return ListingActionsFor(s.session.Current(), l)
}

// TransactionActions returns what the current actor may do with tx
func (s *WorkflowService) TransactionActions(tx *repository.Transaction) TransactionActions {
	return TransactionActionsFor(s.session.Current(), tx)
}

// ReserveResult is the state after a successful reservation. Listing or
// Transaction is nil when the reload after the reservation failed.
type ReserveResult struct {
	Listing     *repository.Listing
	Transaction *repository.Transaction
}

// Reserve reserves l for the current actor
func (s *WorkflowService) Reserve(ctx context.Context, l *repository.Listing) (*ReserveResult, error) {
	actor := s.session.Current()
	if err := CanReserve(actor, l); err != nil {
		return nil, err
	}

	result := &ReserveResult{}
	err := s.tracker.Track(l.ID, ActionReserve, func() error {
		txID, err := s.listings.Reserve(ctx, l.ID)
		if err != nil {
			return err
		}

		s.log.Info().Str("listing_id", l.ID).Str("transaction_id", txID).Str("user_id", actor.ID).Msg("Listing reserved")

		result.Listing = s.reloadListing(ctx, l.ID)
		if txID != "" {
			result.Transaction = s.reloadTransaction(ctx, txID)
		}
		return nil
	})
	if err != nil {
		s.log.Warn().Err(err).Str("listing_id", l.ID).Msg("Reservation failed")
		return nil, err
	}
	return result, nil
}

// Edit replaces the editable fields of l
func (s *WorkflowService) Edit(ctx context.Context, l *repository.Listing, input *repository.ListingInput) (*repository.Listing, error) {
	if err := CanEdit(s.session.Current(), l); err != nil {
		return nil, err
	}
	if err := ValidateListingInput(input, false); err != nil {
		return nil, err
	}

	var updated *repository.Listing
	err := s.tracker.Track(l.ID, ActionEdit, func() error {
		if err := s.listings.Update(ctx, l.ID, input); err != nil {
			return err
		}
		updated = s.reloadListing(ctx, l.ID)
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info().Str("listing_id", l.ID).Msg("Listing updated")
	return updated, nil
}

// Delete removes l
func (s *WorkflowService) Delete(ctx context.Context, l *repository.Listing) error {
	if err := CanDelete(s.session.Current(), l); err != nil {
		return err
	}

	err := s.tracker.Track(l.ID, ActionDelete, func() error {
		return s.listings.Delete(ctx, l.ID)
	})
	if err != nil {
		return err
	}

	s.log.Info().Str("listing_id", l.ID).Msg("Listing deleted")
	return nil
}

// MessageSeller sends content to the seller of l
func (s *WorkflowService) MessageSeller(ctx context.Context, l *repository.Listing, content string) (*repository.Message, error) {
	if err := CanMessageSeller(s.session.Current(), l); err != nil {
		return nil, err
	}
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, apperrors.Validation(map[string]string{"content": "Message cannot be empty"})
	}

	var msg *repository.Message
	err := s.tracker.Track(l.ID, ActionMessageSeller, func() error {
		var err error
		msg, err = s.messages.Send(ctx, &repository.SendMessageRequest{
			ReceiverID: l.Seller.ID,
			Content:    content,
			ListingID:  l.ID,
		})
		return err
	})
	if err != nil {
		return nil, err
	}
	return msg, nil
}

// MarkAsSold completes tx from the seller's side
func (s *WorkflowService) MarkAsSold(ctx context.Context, tx *repository.Transaction) (*repository.Transaction, error) {
	if err := CanMarkAsSold(s.session.Current(), tx); err != nil {
		return nil, err
	}
	return s.transition(ctx, tx, ActionMarkAsSold, func() error {
		return s.transactions.UpdateStatus(ctx, tx.ID, repository.TransactionCompleted)
	})
}

// ConfirmReceipt completes tx from the buyer's side
func (s *WorkflowService) ConfirmReceipt(ctx context.Context, tx *repository.Transaction) (*repository.Transaction, error) {
	if err := CanConfirmReceipt(s.session.Current(), tx); err != nil {
		return nil, err
	}
	return s.transition(ctx, tx, ActionConfirmReceipt, func() error {
		return s.transactions.Complete(ctx, tx.ID)
	})
}

// Cancel cancels tx. The reason must not be blank.
func (s *WorkflowService) Cancel(ctx context.Context, tx *repository.Transaction, reason string) (*repository.Transaction, error) {
	if err := CanCancel(s.session.Current(), tx); err != nil {
		return nil, err
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, apperrors.Validation(map[string]string{"reason": "Please provide a cancellation reason"})
	}
	return s.transition(ctx, tx, ActionCancel, func() error {
		return s.transactions.Cancel(ctx, tx.ID, reason)
	})
}

func (s *WorkflowService) transition(ctx context.Context, tx *repository.Transaction, action string, mutate func() error) (*repository.Transaction, error) {
	var updated *repository.Transaction
	err := s.tracker.Track(tx.ID, action, func() error {
		if err := mutate(); err != nil {
			return err
		}
		updated = s.reloadTransaction(ctx, tx.ID)
		return nil
	})
	if err != nil {
		s.log.Warn().Err(err).Str("transaction_id", tx.ID).Str("action", action).Msg("Transaction update failed")
		return nil, err
	}

	s.log.Info().Str("transaction_id", tx.ID).Str("action", action).Msg("Transaction updated")
	return updated, nil
}

// CreateListing publishes a new listing for the current actor
func (s *WorkflowService) CreateListing(ctx context.Context, input *repository.ListingInput) (*repository.Listing, error) {
	if err := CanCreateListing(s.session.Current()); err != nil {
		return nil, err
	}
	if err := ValidateListingInput(input, true); err != nil {
		return nil, err
	}

	var created *repository.Listing
	err := s.tracker.Track(newListingKey, ActionCreateListing, func() error {
		l, err := s.listings.Create(ctx, input)
		if err != nil {
			return err
		}
		created = l
		if l.ID != "" {
			if fresh := s.reloadListing(ctx, l.ID); fresh != nil {
				created = fresh
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info().Str("listing_id", created.ID).Msg("Listing created")
	return created, nil
}

// LeaveReview rates the other party of a completed transaction
func (s *WorkflowService) LeaveReview(ctx context.Context, tx *repository.Transaction, rating int, comment string) (*repository.Review, error) {
	actor := s.session.Current()
	if err := CanReview(actor, tx); err != nil {
		return nil, err
	}
	if err := ValidateReview(rating); err != nil {
		return nil, err
	}

	reviewee := tx.Seller.ID
	if actor.ID == tx.Seller.ID {
		reviewee = tx.Buyer.ID
	}

	var review *repository.Review
	err := s.tracker.Track(tx.ID, ActionReview, func() error {
		var err error
		review, err = s.reviews.Create(ctx, &repository.ReviewInput{
			TransactionID: tx.ID,
			RevieweeID:    reviewee,
			ListingID:     tx.Listing.ID,
			Rating:        rating,
			Comment:       strings.TrimSpace(comment),
		})
		return err
	})
	if err != nil {
		return nil, err
	}
	return review, nil
}

// ReportListing files a report against l and its seller
func (s *WorkflowService) ReportListing(ctx context.Context, l *repository.Listing, reason, description string) (*repository.Report, error) {
	if err := CanReport(s.session.Current(), l); err != nil {
		return nil, err
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, apperrors.Validation(map[string]string{"reason": "Please select a reason"})
	}

	var report *repository.Report
	err := s.tracker.Track(l.ID, ActionReport, func() error {
		var err error
		report, err = s.reports.Create(ctx, &repository.ReportInput{
			ListingID:      l.ID,
			ReportedUserID: l.Seller.ID,
			Reason:         reason,
			Description:    strings.TrimSpace(description),
		})
		return err
	})
	if err != nil {
		return nil, err
	}
	return report, nil
}

// reloadListing fetches the authoritative copy after a mutation. The
// mutation already happened, so a failed reload is logged, not returned.
func (s *WorkflowService) reloadListing(ctx context.Context, id string) *repository.Listing {
	l, err := s.listings.GetByID(ctx, id)
	if err != nil {
		s.log.Warn().Err(err).Str("listing_id", id).Msg("Failed to reload listing")
		return nil
	}
	return l
}

func (s *WorkflowService) reloadTransaction(ctx context.Context, id string) *repository.Transaction {
	tx, err := s.transactions.GetByID(ctx, id)
	if err != nil {
		s.log.Warn().Err(err).Str("transaction_id", id).Msg("Failed to reload transaction")
		return nil
	}
	return tx
}
