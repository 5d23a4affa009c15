package handler

import (
	"context"
	"fmt"
	"os"

	"github.com/pesio-ai/campustrade-client/internal/repository"
)

func (h *CLIHandler) adminCommands(ctx context.Context, args []string) error {
	return subcommand(ctx, "admin", args, map[string]command{
		"users":          h.adminUsers,
		"user-status":    h.adminUserStatus,
		"listings":       h.adminListings,
		"listing-status": h.adminListingStatus,
		"reports":        h.adminReports,
		"report-status":  h.adminReportStatus,
		"transactions":   h.adminTransactions,
		"stats":          h.adminStats,
		"export":         h.adminExport,
	})
}

func (h *CLIHandler) adminUsers(ctx context.Context, args []string) error {
	fs := h.flags("admin users")
	var filters repository.AdminFilters
	fs.StringVar(&filters.Status, "status", "", "active, suspended or banned")
	fs.StringVar(&filters.Role, "role", "", "user or admin")
	fs.StringVar(&filters.Search, "search", "", "name or email")
	if _, err := parse(fs, args); err != nil {
		return err
	}

	users, err := h.admin.Users(ctx, filters)
	if err != nil {
		return err
	}
	if len(users) == 0 {
		fmt.Fprintln(h.out, "No users found")
		return nil
	}

	w := h.table()
	fmt.Fprintln(w, "ID\tNAME\tEMAIL\tROLE\tSTATUS\tVERIFIED\tJOINED")
	for _, u := range users {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			u.ID, u.Name, u.Email, u.Role, u.Status, yesNo(u.IsVerified), FormatDate(u.CreatedAt))
	}
	w.Flush()
	return nil
}

func (h *CLIHandler) adminUserStatus(ctx context.Context, args []string) error {
	fs := h.flags("admin user-status")
	reason := fs.String("reason", "", "reason (required to suspend or ban)")
	pos, err := parse(fs, args)
	if err != nil {
		return err
	}
	if len(pos) != 2 {
		return usageError("admin user-status <user-id> <active|suspended|banned> [-reason <text>]")
	}

	if err := h.admin.SetUserStatus(ctx, pos[0], pos[1], *reason); err != nil {
		return err
	}
	fmt.Fprintf(h.out, "User %s is now %s\n", pos[0], pos[1])
	return nil
}

func (h *CLIHandler) adminListings(ctx context.Context, args []string) error {
	fs := h.flags("admin listings")
	var filters repository.AdminFilters
	fs.StringVar(&filters.Status, "status", "", "listing status")
	fs.StringVar(&filters.Search, "search", "", "title")
	if _, err := parse(fs, args); err != nil {
		return err
	}

	listings, err := h.admin.Listings(ctx, filters)
	if err != nil {
		return err
	}
	h.printListings(listings)
	return nil
}

func (h *CLIHandler) adminListingStatus(ctx context.Context, args []string) error {
	fs := h.flags("admin listing-status")
	reason := fs.String("reason", "", "reason shown to the seller")
	pos, err := parse(fs, args)
	if err != nil {
		return err
	}
	if len(pos) != 2 {
		return usageError("admin listing-status <listing-id> <Available|Hidden|Removed> [-reason <text>]")
	}

	if err := h.admin.SetListingStatus(ctx, pos[0], repository.ListingStatus(pos[1]), *reason); err != nil {
		return err
	}
	fmt.Fprintf(h.out, "Listing %s is now %s\n", pos[0], pos[1])
	return nil
}

func (h *CLIHandler) adminTransactions(ctx context.Context, args []string) error {
	fs := h.flags("admin transactions")
	var filters repository.AdminFilters
	fs.StringVar(&filters.Status, "status", "", "Reserved, Completed or Cancelled")
	if _, err := parse(fs, args); err != nil {
		return err
	}

	txs, err := h.admin.Transactions(ctx, filters)
	if err != nil {
		return err
	}
	if len(txs) == 0 {
		fmt.Fprintln(h.out, "No transactions found")
		return nil
	}

	var total float64
	w := h.table()
	fmt.Fprintln(w, "ID\tLISTING\tAMOUNT\tSTATUS\tBUYER\tSELLER\tDATE")
	for _, tx := range txs {
		total += tx.Amount
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			tx.ID, orDash(tx.Listing.Title), FormatPrice(tx.Amount), tx.Status,
			tx.Buyer.DisplayName(), tx.Seller.DisplayName(), FormatDate(tx.CreatedAt))
	}
	w.Flush()
	fmt.Fprintf(h.out, "Transactions: %d, total %s\n", len(txs), FormatPrice(total))
	return nil
}

func (h *CLIHandler) adminReports(ctx context.Context, args []string) error {
	fs := h.flags("admin reports")
	var filters repository.AdminFilters
	fs.StringVar(&filters.Status, "status", "", "pending, reviewed, resolved or dismissed")
	if _, err := parse(fs, args); err != nil {
		return err
	}

	reports, err := h.admin.Reports(ctx, filters)
	if err != nil {
		return err
	}
	if len(reports) == 0 {
		fmt.Fprintln(h.out, "No reports found")
		return nil
	}

	w := h.table()
	fmt.Fprintln(w, "ID\tREASON\tSTATUS\tREPORTER\tREPORTED\tLISTING\tDATE")
	for _, r := range reports {
		listing := emptyValue
		if r.Listing != nil {
			listing = orDash(r.Listing.Title)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			r.ID, r.Reason, r.Status, r.Reporter.DisplayName(), r.ReportedUser.DisplayName(), listing, FormatDate(r.CreatedAt))
	}
	w.Flush()
	return nil
}

func (h *CLIHandler) adminReportStatus(ctx context.Context, args []string) error {
	fs := h.flags("admin report-status")
	notes := fs.String("notes", "", "admin notes")
	pos, err := parse(fs, args)
	if err != nil {
		return err
	}
	if len(pos) != 2 {
		return usageError("admin report-status <report-id> <pending|reviewed|resolved|dismissed> [-notes <text>]")
	}

	if err := h.admin.ResolveReport(ctx, pos[0], pos[1], *notes); err != nil {
		return err
	}
	fmt.Fprintf(h.out, "Report %s is now %s\n", pos[0], pos[1])
	return nil
}

func (h *CLIHandler) adminStats(ctx context.Context, _ []string) error {
	stats, err := h.admin.Stats(ctx)
	if err != nil {
		return err
	}

	w := h.table()
	fmt.Fprintf(w, "Users:\t%d (%d verified)\n", stats.TotalUsers, stats.VerifiedUsers)
	fmt.Fprintf(w, "Listings:\t%d (%d available)\n", stats.TotalListings, stats.AvailableListings)
	fmt.Fprintf(w, "Transactions:\t%d (%d completed)\n", stats.TotalTransactions, stats.CompletedTransactions)
	fmt.Fprintf(w, "Pending reports:\t%d\n", stats.PendingReports)
	w.Flush()
	return nil
}

func (h *CLIHandler) adminExport(ctx context.Context, args []string) error {
	fs := h.flags("admin export")
	path := fs.String("out", "campustrade-export.xlsx", "output file")
	if _, err := parse(fs, args); err != nil {
		return err
	}

	f, err := os.Create(*path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", *path, err)
	}

	if err := h.admin.Export(ctx, f); err != nil {
		f.Close()
		os.Remove(*path)
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to write %s: %w", *path, err)
	}

	fmt.Fprintf(h.out, "Export written to %s\n", *path)
	return nil
}
