package handler

import (
	"context"
	"flag"
	"fmt"
	"strconv"
	"strings"

	"github.com/pesio-ai/campustrade-client/internal/repository"
	"github.com/pesio-ai/campustrade-client/internal/service"
)

func (h *CLIHandler) listings(ctx context.Context, args []string) error {
	return subcommand(ctx, "listings", args, map[string]command{
		"list":    h.listListings,
		"search":  h.searchListings,
		"show":    h.showListing,
		"mine":    h.myListings,
		"create":  h.createListing,
		"edit":    h.editListing,
		"delete":  h.deleteListing,
		"reserve": h.reserveListing,
		"report":  h.reportListing,
	})
}

// bindFilters registers the marketplace filter flags on fs
func bindFilters(fs *flag.FlagSet, f *repository.ListingFilters) {
	fs.StringVar(&f.Query, "q", "", "text to search for")
	fs.StringVar(&f.Category, "category", "", "Goods, Services or Rentals")
	fs.StringVar(&f.Subcategory, "subcategory", "", "subcategory")
	fs.StringVar(&f.Condition, "condition", "", "item condition")
	fs.StringVar(&f.Location, "location", "", "campus location")
	fs.StringVar(&f.Sort, "sort", "", "newest, oldest, price-asc or price-desc")
	fs.IntVar(&f.Page, "page", 0, "result page")
	fs.IntVar(&f.Limit, "limit", 0, "results per page")
	fs.Func("min", "minimum price", func(s string) error {
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return err
		}
		f.MinPrice = &v
		return nil
	})
	fs.Func("max", "maximum price", func(s string) error {
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return err
		}
		f.MaxPrice = &v
		return nil
	})
}

func (h *CLIHandler) listListings(ctx context.Context, args []string) error {
	fs := h.flags("listings list")
	var filters repository.ListingFilters
	bindFilters(fs, &filters)
	if _, err := parse(fs, args); err != nil {
		return err
	}

	page, err := h.market.Listings(ctx, filters)
	if err != nil {
		return err
	}
	h.printListingPage(page)
	return nil
}

func (h *CLIHandler) searchListings(ctx context.Context, args []string) error {
	fs := h.flags("listings search")
	var filters repository.ListingFilters
	bindFilters(fs, &filters)
	pos, err := parse(fs, args)
	if err != nil {
		return err
	}
	if len(pos) > 0 {
		filters.Query = strings.Join(pos, " ")
	}

	page, err := h.market.Search(ctx, filters)
	if err != nil {
		return err
	}
	h.printListingPage(page)
	return nil
}

func (h *CLIHandler) showListing(ctx context.Context, args []string) error {
	id, err := oneArg(h.flags("listings show"), args, "listings show <id>")
	if err != nil {
		return err
	}

	l, err := h.market.Listing(ctx, id)
	if err != nil {
		return err
	}

	w := h.table()
	fmt.Fprintf(w, "ID:\t%s\n", l.ID)
	fmt.Fprintf(w, "Title:\t%s\n", l.Title)
	fmt.Fprintf(w, "Price:\t%s\n", FormatPrice(l.Price))
	fmt.Fprintf(w, "Status:\t%s\n", l.Status)
	fmt.Fprintf(w, "Category:\t%s / %s\n", l.Category, orDash(l.Subcategory))
	switch l.Category {
	case repository.CategoryGoods:
		fmt.Fprintf(w, "Condition:\t%s\n", orDash(l.Condition))
	case repository.CategoryServices:
		fmt.Fprintf(w, "Service type:\t%s\n", orDash(l.ServiceType))
	case repository.CategoryRentals:
		start, end := emptyValue, emptyValue
		if l.RentalPeriod != nil {
			start, end = orDash(l.RentalPeriod.Start), orDash(l.RentalPeriod.End)
		}
		fmt.Fprintf(w, "Rental period:\t%s to %s\n", start, end)
	}
	fmt.Fprintf(w, "Location:\t%s\n", orDash(strings.TrimSpace(l.Location+" "+l.SpecificLocation)))
	fmt.Fprintf(w, "Seller:\t%s\n", l.Seller.DisplayName())
	fmt.Fprintf(w, "Views:\t%d\n", l.Views)
	fmt.Fprintf(w, "Listed:\t%s\n", FormatDate(l.CreatedAt))
	fmt.Fprintf(w, "Images:\t%d\n", len(l.Images))
	w.Flush()

	fmt.Fprintf(h.out, "\n%s\n", orDash(l.Description))
	if actions := listingActionNames(h.workflow.ListingActions(l)); len(actions) > 0 {
		fmt.Fprintf(h.out, "\nAvailable actions: %s\n", strings.Join(actions, ", "))
	}
	return nil
}

func listingActionNames(a service.ListingActions) []string {
	var names []string
	for _, c := range []struct {
		ok   bool
		name string
	}{
		{a.Reserve, "reserve"},
		{a.MessageSeller, "message seller"},
		{a.Edit, "edit"},
		{a.Delete, "delete"},
		{a.Report, "report"},
	} {
		if c.ok {
			names = append(names, c.name)
		}
	}
	return names
}

func (h *CLIHandler) myListings(ctx context.Context, _ []string) error {
	listings, err := h.market.MyListings(ctx)
	if err != nil {
		return err
	}
	h.printListings(listings)
	return nil
}

// bindListingInput registers the listing form flags, defaulting to in's values
func bindListingInput(fs *flag.FlagSet, in *repository.ListingInput, images *stringList, rental *repository.RentalPeriod) {
	fs.StringVar(&in.Title, "title", in.Title, "title")
	fs.StringVar(&in.Description, "description", in.Description, "description")
	fs.Float64Var(&in.Price, "price", in.Price, "price in ETB")
	fs.StringVar(&in.Category, "category", in.Category, "Goods, Services or Rentals")
	fs.StringVar(&in.Subcategory, "subcategory", in.Subcategory, "subcategory")
	fs.StringVar(&in.Location, "location", in.Location, "campus")
	fs.StringVar(&in.SpecificLocation, "meet", in.SpecificLocation, "meeting point")
	fs.StringVar(&in.Condition, "condition", in.Condition, "condition (Goods)")
	fs.StringVar(&in.ServiceType, "service-type", in.ServiceType, "service type (Services)")
	fs.StringVar(&rental.Start, "rental-start", rental.Start, "rental start date YYYY-MM-DD (Rentals)")
	fs.StringVar(&rental.End, "rental-end", rental.End, "rental end date YYYY-MM-DD (Rentals)")
	fs.Var(images, "image", "image URL (repeatable)")
}

func (h *CLIHandler) createListing(ctx context.Context, args []string) error {
	fs := h.flags("listings create")
	in := &repository.ListingInput{}
	var images stringList
	rental := &repository.RentalPeriod{}
	bindListingInput(fs, in, &images, rental)
	if _, err := parse(fs, args); err != nil {
		return err
	}
	in.Images = images
	if in.Category == repository.CategoryRentals {
		in.RentalPeriod = rental
	}

	l, err := h.workflow.CreateListing(ctx, in)
	if err != nil {
		return err
	}
	fmt.Fprintf(h.out, "Listing created: %s (%s)\n", l.Title, l.ID)
	return nil
}

func (h *CLIHandler) editListing(ctx context.Context, args []string) error {
	if len(args) == 0 || strings.HasPrefix(args[0], "-") {
		return usageError("listings edit <id> [-title ...] [-price ...]")
	}

	l, err := h.market.Listing(ctx, args[0])
	if err != nil {
		return err
	}

	in := &repository.ListingInput{
		Title:            l.Title,
		Description:      l.Description,
		Price:            l.Price,
		Category:         l.Category,
		Subcategory:      l.Subcategory,
		Location:         l.Location,
		SpecificLocation: l.SpecificLocation,
		Condition:        l.Condition,
		ServiceType:      l.ServiceType,
	}
	rental := &repository.RentalPeriod{}
	if l.RentalPeriod != nil {
		*rental = *l.RentalPeriod
	}
	var images stringList

	fs := h.flags("listings edit")
	bindListingInput(fs, in, &images, rental)
	if _, err := parse(fs, args[1:]); err != nil {
		return err
	}
	if len(images) > 0 {
		in.Images = images
	}
	if in.Category == repository.CategoryRentals {
		in.RentalPeriod = rental
	}

	updated, err := h.workflow.Edit(ctx, l, in)
	if err != nil {
		return err
	}
	if updated == nil {
		fmt.Fprintln(h.out, "Listing updated")
		return nil
	}
	fmt.Fprintf(h.out, "Listing updated: %s, %s\n", updated.Title, FormatPrice(updated.Price))
	return nil
}

func (h *CLIHandler) deleteListing(ctx context.Context, args []string) error {
	id, err := oneArg(h.flags("listings delete"), args, "listings delete <id>")
	if err != nil {
		return err
	}
	l, err := h.market.Listing(ctx, id)
	if err != nil {
		return err
	}
	if err := h.workflow.Delete(ctx, l); err != nil {
		return err
	}
	fmt.Fprintf(h.out, "Listing deleted: %s\n", l.Title)
	return nil
}

func (h *CLIHandler) reserveListing(ctx context.Context, args []string) error {
	id, err := oneArg(h.flags("listings reserve"), args, "listings reserve <id>")
	if err != nil {
		return err
	}
	l, err := h.market.Listing(ctx, id)
	if err != nil {
		return err
	}

	stop := h.showProgress()
	res, err := h.workflow.Reserve(ctx, l)
	stop()
	if err != nil {
		return err
	}

	fmt.Fprintf(h.out, "Reserved %s for %s\n", l.Title, FormatPrice(l.Price))
	if res.Transaction != nil {
		fmt.Fprintf(h.out, "Transaction: %s\n", res.Transaction.ID)
	}
	fmt.Fprintln(h.out, "Contact the seller to arrange the handover.")
	return nil
}

func (h *CLIHandler) reportListing(ctx context.Context, args []string) error {
	fs := h.flags("listings report")
	reason := fs.String("reason", "", "why the listing is reported")
	description := fs.String("description", "", "details")
	id, err := oneArg(fs, args, "listings report <id> -reason <reason> [-description <text>]")
	if err != nil {
		return err
	}
	l, err := h.market.Listing(ctx, id)
	if err != nil {
		return err
	}

	report, err := h.workflow.ReportListing(ctx, l, *reason, *description)
	if err != nil {
		return err
	}
	fmt.Fprintf(h.out, "Report submitted (%s). An admin will review it.\n", report.ID)
	return nil
}

func (h *CLIHandler) printListingPage(page *repository.ListingPage) {
	h.printListings(page.Listings)
	if page.Pages > 1 {
		fmt.Fprintf(h.out, "Page %d of %d (%d listings)\n", page.Page, page.Pages, page.Total)
	}
}

func (h *CLIHandler) printListings(listings []repository.Listing) {
	if len(listings) == 0 {
		fmt.Fprintln(h.out, "No listings found")
		return
	}

	w := h.table()
	fmt.Fprintln(w, "ID\tTITLE\tPRICE\tCATEGORY\tSTATUS\tSELLER")
	for _, l := range listings {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
			l.ID, l.Title, FormatPrice(l.Price), l.Category, l.Status, l.Seller.DisplayName())
	}
	w.Flush()
}
