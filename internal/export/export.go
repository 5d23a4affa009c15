// Package export writes the admin moderation data to an XLSX workbook.
package export

import (
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/pesio-ai/campustrade-client/internal/repository"
	"github.com/xuri/excelize/v2"
)

// Sheet names, in workbook order
const (
	SheetUsers    = "Users"
	SheetListings = "Listings"
	SheetReports  = "Reports"
)

// Dataset is everything an admin export contains
type Dataset struct {
	Users    []repository.UserSummary
	Listings []repository.Listing
	Reports  []repository.Report
}

var (
	userHeader    = []any{"ID", "Name", "Email", "Role", "Status", "Verified", "Department", "Joined"}
	listingHeader = []any{"ID", "Title", "Category", "Subcategory", "Price (ETB)", "Status", "Seller", "Seller Email", "Created"}
	reportHeader  = []any{"ID", "Reason", "Status", "Reporter", "Reported User", "Listing", "Description", "Admin Notes", "Created"}
)

// Write renders d as a workbook with one sheet per entity kind
func Write(w io.Writer, d *Dataset) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SheetUsers); err != nil {
		return fmt.Errorf("failed to name sheet: %w", err)
	}
	for _, name := range []string{SheetListings, SheetReports} {
		if _, err := f.NewSheet(name); err != nil {
			return fmt.Errorf("failed to create sheet %s: %w", name, err)
		}
	}

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("failed to create header style: %w", err)
	}

	users := make([][]any, 0, len(d.Users))
	for _, u := range d.Users {
		users = append(users, []any{
			u.ID, u.Name, u.Email, u.Role, u.Status,
			strconv.FormatBool(u.IsVerified), u.Department, formatTime(u.CreatedAt),
		})
	}

	listings := make([][]any, 0, len(d.Listings))
	for _, l := range d.Listings {
		listings = append(listings, []any{
			l.ID, l.Title, l.Category, l.Subcategory, l.Price, string(l.Status),
			l.Seller.Name, l.Seller.Email, formatTime(l.CreatedAt),
		})
	}

	reports := make([][]any, 0, len(d.Reports))
	for _, r := range d.Reports {
		listing := ""
		if r.Listing != nil {
			listing = r.Listing.Title
			if listing == "" {
				listing = r.Listing.ID
			}
		}
		reports = append(reports, []any{
			r.ID, r.Reason, r.Status, refLabel(r.Reporter), refLabel(r.ReportedUser),
			listing, r.Description, r.AdminNotes, formatTime(r.CreatedAt),
		})
	}

	sheets := []struct {
		name   string
		header []any
		rows   [][]any
	}{
		{SheetUsers, userHeader, users},
		{SheetListings, listingHeader, listings},
		{SheetReports, reportHeader, reports},
	}
	for _, sh := range sheets {
		if err := writeSheet(f, sh.name, sh.header, sh.rows, bold); err != nil {
			return err
		}
	}

	f.SetActiveSheet(0)
	if err := f.Write(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}

func writeSheet(f *excelize.File, sheet string, header []any, rows [][]any, headerStyle int) error {
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return fmt.Errorf("failed to write %s header: %w", sheet, err)
	}
	if err := f.SetRowStyle(sheet, 1, 1, headerStyle); err != nil {
		return fmt.Errorf("failed to style %s header: %w", sheet, err)
	}

	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("failed to write %s row %d: %w", sheet, i+1, err)
		}
	}

	last, err := excelize.ColumnNumberToName(len(header))
	if err != nil {
		return err
	}
	return f.SetColWidth(sheet, "A", last, 20)
}

// ReadSheet returns the rows of one sheet, header included
func ReadSheet(r io.Reader, sheet string) ([][]string, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("invalid workbook: %w", err)
	}
	defer f.Close()

	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %s: %w", sheet, err)
	}
	return rows, nil
}

func refLabel(r repository.Ref) string {
	switch {
	case r.Email != "":
		return r.Email
	case r.Name != "":
		return r.Name
	}
	return r.ID
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.DateOnly)
}
