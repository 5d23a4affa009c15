package repository

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/pesio-ai/campustrade-client/internal/logger"
)

type TransactionRepository struct {
	client *Client
	log    *logger.Logger
}

func NewTransactionRepository(client *Client, log *logger.Logger) *TransactionRepository {
	return &TransactionRepository{
		client: client,
		log:    log,
	}
}

// Mine returns every transaction the current user is a party to
func (r *TransactionRepository) Mine(ctx context.Context) ([]Transaction, error) {
	return fetchList[Transaction](ctx, r.client, "/api/transactions/my-transactions", nil, "transactions")
}

// GetByID retrieves a transaction by ID
func (r *TransactionRepository) GetByID(ctx context.Context, id string) (*Transaction, error) {
	tx := &Transaction{}
	if err := r.client.Do(ctx, http.MethodGet, transactionPath(id), nil, nil, tx); err != nil {
		return nil, fmt.Errorf("failed to get transaction: %w", err)
	}
	return tx, nil
}

// UpdateStatus moves a transaction to status (used by the seller to mark as sold)
func (r *TransactionRepository) UpdateStatus(ctx context.Context, id string, status TransactionStatus) error {
	body := map[string]string{"status": string(status)}
	if err := r.client.Do(ctx, http.MethodPut, transactionPath(id)+"/status", nil, body, nil); err != nil {
		return fmt.Errorf("failed to update transaction status: %w", err)
	}
	return nil
}

// Complete confirms receipt (buyer)
func (r *TransactionRepository) Complete(ctx context.Context, id string) error {
	if err := r.client.Do(ctx, http.MethodPut, transactionPath(id)+"/complete", nil, nil, nil); err != nil {
		return fmt.Errorf("failed to complete transaction: %w", err)
	}
	return nil
}

// Cancel cancels a transaction with a reason
func (r *TransactionRepository) Cancel(ctx context.Context, id, reason string) error {
	body := map[string]string{"reason": reason}
	if err := r.client.Do(ctx, http.MethodPut, transactionPath(id)+"/cancel", nil, body, nil); err != nil {
		return fmt.Errorf("failed to cancel transaction: %w", err)
	}
	return nil
}

func transactionPath(id string) string {
	return "/api/transactions/" + url.PathEscape(id)
}
