package handler

import (
	"context"
	"fmt"
	"strings"

	"github.com/pesio-ai/campustrade-client/internal/repository"
	"github.com/pesio-ai/campustrade-client/internal/service"
)

func (h *CLIHandler) transactions(ctx context.Context, args []string) error {
	return subcommand(ctx, "tx", args, map[string]command{
		"list":    h.listTransactions,
		"show":    h.showTransaction,
		"stats":   h.transactionStats,
		"sold":    h.markAsSold,
		"confirm": h.confirmReceipt,
		"cancel":  h.cancelTransaction,
		"review":  h.reviewTransaction,
	})
}

func (h *CLIHandler) listTransactions(ctx context.Context, _ []string) error {
	txs, err := h.market.Transactions(ctx)
	if err != nil {
		return err
	}
	if len(txs) == 0 {
		fmt.Fprintln(h.out, "No transactions yet")
		return nil
	}

	self := h.session.Current()
	w := h.table()
	fmt.Fprintln(w, "ID\tLISTING\tAMOUNT\tSTATUS\tROLE\tWITH\tDATE")
	for _, tx := range txs {
		role, other := "buyer", tx.Seller
		if self != nil && tx.Seller.ID == self.ID {
			role, other = "seller", tx.Buyer
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			tx.ID, orDash(tx.Listing.Title), FormatPrice(tx.Amount), tx.Status, role, other.DisplayName(), FormatDate(tx.CreatedAt))
	}
	w.Flush()
	return nil
}

func (h *CLIHandler) showTransaction(ctx context.Context, args []string) error {
	id, err := oneArg(h.flags("tx show"), args, "tx show <id>")
	if err != nil {
		return err
	}
	tx, err := h.market.Transaction(ctx, id)
	if err != nil {
		return err
	}
	h.printTransaction(tx)
	return nil
}

func (h *CLIHandler) printTransaction(tx *repository.Transaction) {
	w := h.table()
	fmt.Fprintf(w, "ID:\t%s\n", tx.ID)
	fmt.Fprintf(w, "Listing:\t%s\n", orDash(tx.Listing.Title))
	fmt.Fprintf(w, "Amount:\t%s\n", FormatPrice(tx.Amount))
	fmt.Fprintf(w, "Status:\t%s\n", tx.Status)
	fmt.Fprintf(w, "Buyer:\t%s\n", tx.Buyer.DisplayName())
	fmt.Fprintf(w, "Seller:\t%s\n", tx.Seller.DisplayName())
	fmt.Fprintf(w, "Created:\t%s\n", FormatDate(tx.CreatedAt))
	if tx.CompletedAt != nil {
		fmt.Fprintf(w, "Completed:\t%s\n", FormatDate(*tx.CompletedAt))
	}
	if tx.CancelledAt != nil {
		fmt.Fprintf(w, "Cancelled:\t%s\n", FormatDate(*tx.CancelledAt))
		fmt.Fprintf(w, "Reason:\t%s\n", orDash(tx.CancellationReason))
	}
	w.Flush()

	if actions := transactionActionNames(h.workflow.TransactionActions(tx)); len(actions) > 0 {
		fmt.Fprintf(h.out, "\nAvailable actions: %s\n", strings.Join(actions, ", "))
	}
}

func transactionActionNames(a service.TransactionActions) []string {
	var names []string
	for _, c := range []struct {
		ok   bool
		name string
	}{
		{a.MarkAsSold, "sold"},
		{a.ConfirmReceipt, "confirm"},
		{a.Cancel, "cancel"},
		{a.Review, "review"},
	} {
		if c.ok {
			names = append(names, c.name)
		}
	}
	return names
}

func (h *CLIHandler) transactionStats(ctx context.Context, _ []string) error {
	stats, err := h.market.TransactionStats(ctx)
	if err != nil {
		return err
	}

	w := h.table()
	fmt.Fprintf(w, "Total:\t%d\n", stats.Total)
	fmt.Fprintf(w, "Reserved:\t%d\n", stats.Reserved)
	fmt.Fprintf(w, "Completed:\t%d\n", stats.Completed)
	fmt.Fprintf(w, "Cancelled:\t%d\n", stats.Cancelled)
	fmt.Fprintf(w, "Total amount:\t%s\n", FormatPrice(stats.TotalAmount))
	w.Flush()
	return nil
}

// transition loads the transaction named by args and applies act to it
func (h *CLIHandler) transition(
	ctx context.Context,
	name string,
	args []string,
	act func(tx *repository.Transaction) (*repository.Transaction, error),
) error {
	id, err := oneArg(h.flags("tx "+name), args, "tx "+name+" <id>")
	if err != nil {
		return err
	}
	return h.applyTransition(ctx, id, act)
}

func (h *CLIHandler) applyTransition(ctx context.Context, id string, act func(tx *repository.Transaction) (*repository.Transaction, error)) error {
	tx, err := h.market.Transaction(ctx, id)
	if err != nil {
		return err
	}

	stop := h.showProgress()
	updated, err := act(tx)
	stop()
	if err != nil {
		return err
	}
	if updated == nil {
		fmt.Fprintln(h.out, "Transaction updated")
		return nil
	}
	fmt.Fprintf(h.out, "Transaction %s is now %s\n", updated.ID, updated.Status)
	return nil
}

func (h *CLIHandler) markAsSold(ctx context.Context, args []string) error {
	return h.transition(ctx, "sold", args, func(tx *repository.Transaction) (*repository.Transaction, error) {
		return h.workflow.MarkAsSold(ctx, tx)
	})
}

func (h *CLIHandler) confirmReceipt(ctx context.Context, args []string) error {
	return h.transition(ctx, "confirm", args, func(tx *repository.Transaction) (*repository.Transaction, error) {
		return h.workflow.ConfirmReceipt(ctx, tx)
	})
}

func (h *CLIHandler) cancelTransaction(ctx context.Context, args []string) error {
	fs := h.flags("tx cancel")
	reason := fs.String("reason", "", "why the transaction is cancelled")
	id, err := oneArg(fs, args, "tx cancel <id> -reason <text>")
	if err != nil {
		return err
	}
	return h.applyTransition(ctx, id, func(tx *repository.Transaction) (*repository.Transaction, error) {
		return h.workflow.Cancel(ctx, tx, *reason)
	})
}

func (h *CLIHandler) reviewTransaction(ctx context.Context, args []string) error {
	fs := h.flags("tx review")
	rating := fs.Int("rating", 0, "rating from 1 to 5")
	comment := fs.String("comment", "", "comment")
	id, err := oneArg(fs, args, "tx review <id> -rating <1-5> [-comment <text>]")
	if err != nil {
		return err
	}

	tx, err := h.market.Transaction(ctx, id)
	if err != nil {
		return err
	}
	review, err := h.workflow.LeaveReview(ctx, tx, *rating, *comment)
	if err != nil {
		return err
	}
	fmt.Fprintf(h.out, "Review submitted: %d/5 for %s\n", review.Rating, review.Reviewee.DisplayName())
	return nil
}
