package service

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/pesio-ai/campustrade-client/internal/apperrors"
	"github.com/pesio-ai/campustrade-client/internal/export"
	"github.com/pesio-ai/campustrade-client/internal/logger"
	"github.com/pesio-ai/campustrade-client/internal/repository"
	"golang.org/x/sync/errgroup"
)

// AdminService is the moderation surface. Every call is refused locally
// unless the current actor is an admin.
type AdminService struct {
	session *SessionService
	admin   *repository.AdminRepository
	reports *repository.ReportRepository
	log     *logger.Logger
}

func NewAdminService(
	session *SessionService,
	admin *repository.AdminRepository,
	reports *repository.ReportRepository,
	log *logger.Logger,
) *AdminService {
	return &AdminService{
		session: session,
		admin:   admin,
		reports: reports,
		log:     log,
	}
}

func (s *AdminService) requireAdmin() error {
	actor := s.session.Current()
	if !actor.IsAuthenticated() {
		return apperrors.Unauthenticated("")
	}
	if actor.Role != repository.RoleAdmin {
		return apperrors.Forbidden("Admin access required")
	}
	return nil
}

func (s *AdminService) Users(ctx context.Context, filters repository.AdminFilters) ([]repository.UserSummary, error) {
	if err := s.requireAdmin(); err != nil {
		return nil, err
	}
	return s.admin.Users(ctx, filters)
}

// SetUserStatus activates, suspends or bans an account. Suspending or
// banning requires a reason.
func (s *AdminService) SetUserStatus(ctx context.Context, userID, status, reason string) error {
	if err := s.requireAdmin(); err != nil {
		return err
	}

	errs := fieldErrors{}
	switch status {
	case repository.AccountActive:
	case repository.AccountSuspended, repository.AccountBanned:
		if strings.TrimSpace(reason) == "" {
			errs.add("reason", "Please provide a reason")
		}
	default:
		errs.add("status", "Status must be active, suspended or banned")
	}
	if err := errs.err(); err != nil {
		return err
	}

	if err := s.admin.UpdateUserStatus(ctx, userID, &repository.StatusUpdate{Status: status, Reason: strings.TrimSpace(reason)}); err != nil {
		return err
	}
	s.log.Info().Str("user_id", userID).Str("status", status).Msg("User status updated")
	return nil
}

func (s *AdminService) Listings(ctx context.Context, filters repository.AdminFilters) ([]repository.Listing, error) {
	if err := s.requireAdmin(); err != nil {
		return nil, err
	}
	return s.admin.Listings(ctx, filters)
}

// SetListingStatus hides, removes or restores a listing
func (s *AdminService) SetListingStatus(ctx context.Context, listingID string, status repository.ListingStatus, reason string) error {
	if err := s.requireAdmin(); err != nil {
		return err
	}
	switch status {
	case repository.ListingAvailable, repository.ListingHidden, repository.ListingRemoved:
	default:
		return apperrors.Validation(map[string]string{"status": "Status must be Available, Hidden or Removed"})
	}

	if err := s.admin.UpdateListingStatus(ctx, listingID, &repository.StatusUpdate{Status: string(status), Reason: strings.TrimSpace(reason)}); err != nil {
		return err
	}
	s.log.Info().Str("listing_id", listingID).Str("status", string(status)).Msg("Listing status updated")
	return nil
}

func (s *AdminService) Transactions(ctx context.Context, filters repository.AdminFilters) ([]repository.Transaction, error) {
	if err := s.requireAdmin(); err != nil {
		return nil, err
	}
	return s.admin.Transactions(ctx, filters)
}

func (s *AdminService) Stats(ctx context.Context) (*repository.AdminStats, error) {
	if err := s.requireAdmin(); err != nil {
		return nil, err
	}
	return s.admin.Stats(ctx)
}

func (s *AdminService) Reports(ctx context.Context, filters repository.AdminFilters) ([]repository.Report, error) {
	if err := s.requireAdmin(); err != nil {
		return nil, err
	}
	return s.admin.Reports(ctx, filters)
}

// ResolveReport moves a report to status with optional admin notes
func (s *AdminService) ResolveReport(ctx context.Context, reportID, status, notes string) error {
	if err := s.requireAdmin(); err != nil {
		return err
	}
	switch status {
	case repository.ReportPending, repository.ReportReviewed, repository.ReportResolved, repository.ReportDismissed:
	default:
		return apperrors.Validation(map[string]string{"status": "Status must be pending, reviewed, resolved or dismissed"})
	}

	if err := s.reports.UpdateStatus(ctx, reportID, &repository.StatusUpdate{Status: status, AdminNotes: strings.TrimSpace(notes)}); err != nil {
		return err
	}
	s.log.Info().Str("report_id", reportID).Str("status", status).Msg("Report updated")
	return nil
}

// Export writes users, listings and reports to w as an XLSX workbook
func (s *AdminService) Export(ctx context.Context, w io.Writer) error {
	if err := s.requireAdmin(); err != nil {
		return err
	}

	var (
		users    []repository.UserSummary
		listings []repository.Listing
		reports  []repository.Report
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		users, err = s.admin.Users(gctx, repository.AdminFilters{})
		return err
	})
	g.Go(func() (err error) {
		listings, err = s.admin.Listings(gctx, repository.AdminFilters{})
		return err
	})
	g.Go(func() (err error) {
		reports, err = s.admin.Reports(gctx, repository.AdminFilters{})
		return err
	})
	if err := g.Wait(); err != nil {
		return err
	}

	if err := export.Write(w, &export.Dataset{Users: users, Listings: listings, Reports: reports}); err != nil {
		return fmt.Errorf("failed to export: %w", err)
	}
	s.log.Info().
		Int("users", len(users)).
		Int("listings", len(listings)).
		Int("reports", len(reports)).
		Msg("Admin export written")
	return nil
}
