package service

import (
	"regexp"
	"strings"
	"time"

	"github.com/pesio-ai/campustrade-client/internal/apperrors"
	"github.com/pesio-ai/campustrade-client/internal/repository"
)

var (
	emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
	phonePattern = regexp.MustCompile(`^(\+251|0)[79]\d{8}$`)
	hasLetter    = regexp.MustCompile(`[A-Za-z]`)
	hasDigit     = regexp.MustCompile(`\d`)
)

// MinPasswordLength is the shortest password accepted at registration and reset
const MinPasswordLength = 6

// fieldErrors collects per-field messages; the first message for a field wins
type fieldErrors map[string]string

func (f fieldErrors) add(field, msg string) {
	if _, ok := f[field]; !ok {
		f[field] = msg
	}
}

func (f fieldErrors) err() error {
	if len(f) == 0 {
		return nil
	}
	return apperrors.Validation(f)
}

// ValidateEmail returns the user-facing message for a bad email, or ""
func ValidateEmail(email string) string {
	email = strings.TrimSpace(email)
	switch {
	case email == "":
		return "Email is required"
	case !emailPattern.MatchString(email):
		return "Please enter a valid email address"
	}
	return ""
}

// ValidatePassword returns the user-facing message for a weak password, or ""
func ValidatePassword(password string) string {
	switch {
	case password == "":
		return "Password is required"
	case len(password) < MinPasswordLength:
		return "Password must be at least 6 characters"
	case !hasLetter.MatchString(password) || !hasDigit.MatchString(password):
		return "Password must contain at least one letter and one number"
	}
	return ""
}

// ValidatePhone accepts an empty number or an Ethiopian mobile number
func ValidatePhone(phone string) string {
	if phone != "" && !phonePattern.MatchString(phone) {
		return "Please enter a valid Ethiopian phone number"
	}
	return ""
}

// RegisterInput is the registration form
type RegisterInput struct {
	Name            string
	Email           string
	Password        string
	ConfirmPassword string
	PhoneNumber     string
	Department      string
	StudentID       string
}

// ValidateRegistration checks the registration form
func ValidateRegistration(in *RegisterInput) error {
	errs := fieldErrors{}

	name := strings.TrimSpace(in.Name)
	if name == "" {
		errs.add("name", "Name is required")
	} else if len(name) < 2 {
		errs.add("name", "Name must be at least 2 characters")
	}
	if msg := ValidateEmail(in.Email); msg != "" {
		errs.add("email", msg)
	}
	if msg := ValidatePassword(in.Password); msg != "" {
		errs.add("password", msg)
	}
	if in.Password != in.ConfirmPassword {
		errs.add("confirmPassword", "Passwords do not match")
	}
	if strings.TrimSpace(in.Department) == "" {
		errs.add("department", "Department is required")
	}
	if strings.TrimSpace(in.StudentID) == "" {
		errs.add("studentID", "Student ID is required")
	}
	if msg := ValidatePhone(in.PhoneNumber); msg != "" {
		errs.add("phoneNumber", msg)
	}

	return errs.err()
}

func validateLogin(email, password string) error {
	errs := fieldErrors{}
	if msg := ValidateEmail(email); msg != "" {
		errs.add("email", msg)
	}
	if password == "" {
		errs.add("password", "Password is required")
	}
	return errs.err()
}

// ValidateListingInput checks the listing form. Images are only required
// when creating; an edit keeps the existing ones.
func ValidateListingInput(in *repository.ListingInput, creating bool) error {
	errs := fieldErrors{}

	title := strings.TrimSpace(in.Title)
	if title == "" {
		errs.add("title", "Title is required")
	} else if len(title) < 3 {
		errs.add("title", "Title must be at least 3 characters")
	}
	if strings.TrimSpace(in.Description) == "" {
		errs.add("description", "Description is required")
	}
	if in.Price <= 0 {
		errs.add("price", "Valid price is required")
	}
	if strings.TrimSpace(in.Subcategory) == "" {
		errs.add("subcategory", "Subcategory is required")
	}
	if strings.TrimSpace(in.SpecificLocation) == "" {
		errs.add("specificLocation", "Please specify meeting location")
	}

	switch in.Category {
	case repository.CategoryGoods:
		if strings.TrimSpace(in.Condition) == "" {
			errs.add("condition", "Condition is required for goods")
		}
	case repository.CategoryServices:
		if strings.TrimSpace(in.ServiceType) == "" {
			errs.add("serviceType", "Service type is required")
		}
	case repository.CategoryRentals:
		validateRentalPeriod(in.RentalPeriod, errs)
	default:
		errs.add("category", "Category is required")
	}

	if creating && len(in.Images) == 0 {
		errs.add("images", "At least one image is required")
	}

	return errs.err()
}

func validateRentalPeriod(p *repository.RentalPeriod, errs fieldErrors) {
	if p == nil {
		p = &repository.RentalPeriod{}
	}
	if p.Start == "" {
		errs.add("rentalStart", "Start date is required")
	}
	if p.End == "" {
		errs.add("rentalEnd", "End date is required")
	}
	if p.Start == "" || p.End == "" {
		return
	}

	start, err := parseDate(p.Start)
	if err != nil {
		errs.add("rentalStart", "Start date is invalid")
		return
	}
	end, err := parseDate(p.End)
	if err != nil {
		errs.add("rentalEnd", "End date is invalid")
		return
	}
	if !end.After(start) {
		errs.add("rentalEnd", "End date must be after start date")
	}
}

func parseDate(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	return time.Parse(time.DateOnly, s)
}

// ValidateReview checks a review before it is sent
func ValidateReview(rating int) error {
	if rating < 1 || rating > 5 {
		return apperrors.Validation(map[string]string{"rating": "Rating must be between 1 and 5"})
	}
	return nil
}
