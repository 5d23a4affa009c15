package service

import (
	"errors"
	"testing"

	"github.com/pesio-ai/campustrade-client/internal/apperrors"
	"github.com/pesio-ai/campustrade-client/internal/repository"
)

func TestValidateEmail(t *testing.T) {
	tests := []struct {
		email string
		valid bool
	}{
		{"abebe@campus.edu", true},
		{"  abebe@campus.edu ", true},
		{"", false},
		{"abebe", false},
		{"abebe@campus", false},
		{"a b@campus.edu", false},
	}

	for _, tt := range tests {
		t.Run(tt.email, func(t *testing.T) {
			if got := ValidateEmail(tt.email) == ""; got != tt.valid {
				t.Errorf("ValidateEmail(%q) valid = %v, want %v", tt.email, got, tt.valid)
			}
		})
	}
}

func TestValidatePassword(t *testing.T) {
	tests := []struct {
		password string
		want     string
	}{
		{"abc123", ""},
		{"", "Password is required"},
		{"ab1", "Password must be at least 6 characters"},
		{"abcdefg", "Password must contain at least one letter and one number"},
		{"1234567", "Password must contain at least one letter and one number"},
	}

	for _, tt := range tests {
		t.Run(tt.password, func(t *testing.T) {
			if got := ValidatePassword(tt.password); got != tt.want {
				t.Errorf("ValidatePassword(%q) = %q, want %q", tt.password, got, tt.want)
			}
		})
	}
}

func TestValidatePhone(t *testing.T) {
	tests := []struct {
		phone string
		valid bool
	}{
		{"", true},
		{"0912345678", true},
		{"0712345678", true},
		{"+251912345678", true},
		{"0812345678", false},
		{"091234567", false},
		{"+1 555 0100", false},
	}

	for _, tt := range tests {
		t.Run(tt.phone, func(t *testing.T) {
			if got := ValidatePhone(tt.phone) == ""; got != tt.valid {
				t.Errorf("ValidatePhone(%q) valid = %v, want %v", tt.phone, got, tt.valid)
			}
		})
	}
}

func validGoods() *repository.ListingInput {
	return &repository.ListingInput{
		Title:            "Desk lamp",
		Description:      "Works fine",
		Price:            150,
		Category:         repository.CategoryGoods,
		Subcategory:      "Furniture",
		SpecificLocation: "Dorm block 4",
		Condition:        "Good",
		Images:           []string{"https://img.test/lamp.jpg"},
	}
}

func TestValidateListingInput(t *testing.T) {
	tests := []struct {
		name       string
		mutate     func(in *repository.ListingInput)
		creating   bool
		wantFields []string
	}{
		{"valid goods", func(*repository.ListingInput) {}, true, nil},
		{"short title", func(in *repository.ListingInput) { in.Title = "ab" }, true, []string{"title"}},
		{"zero price", func(in *repository.ListingInput) { in.Price = 0 }, true, []string{"price"}},
		{"goods without condition", func(in *repository.ListingInput) { in.Condition = "" }, true, []string{"condition"}},
		{"no images on create", func(in *repository.ListingInput) { in.Images = nil }, true, []string{"images"}},
		{"no images on edit", func(in *repository.ListingInput) { in.Images = nil }, false, nil},
		{"services without type", func(in *repository.ListingInput) {
			in.Category = repository.CategoryServices
			in.Condition = ""
		}, true, []string{"serviceType"}},
		{"rental without dates", func(in *repository.ListingInput) {
			in.Category = repository.CategoryRentals
		}, true, []string{"rentalStart", "rentalEnd"}},
		{"rental ending before start", func(in *repository.ListingInput) {
			in.Category = repository.CategoryRentals
			in.RentalPeriod = &repository.RentalPeriod{Start: "2025-06-10", End: "2025-06-01"}
		}, true, []string{"rentalEnd"}},
		{"rental same day", func(in *repository.ListingInput) {
			in.Category = repository.CategoryRentals
			in.RentalPeriod = &repository.RentalPeriod{Start: "2025-06-10", End: "2025-06-10"}
		}, true, []string{"rentalEnd"}},
		{"valid rental with timestamps", func(in *repository.ListingInput) {
			in.Category = repository.CategoryRentals
			in.RentalPeriod = &repository.RentalPeriod{Start: "2025-06-10T08:00:00Z", End: "2025-06-12"}
		}, true, nil},
		{"everything missing", func(in *repository.ListingInput) {
			*in = repository.ListingInput{Category: repository.CategoryGoods}
		}, true, []string{"title", "description", "price", "subcategory", "specificLocation", "condition", "images"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := validGoods()
			tt.mutate(in)

			err := ValidateListingInput(in, tt.creating)
			if len(tt.wantFields) == 0 {
				if err != nil {
					t.Fatalf("ValidateListingInput() error = %v, want nil", err)
				}
				return
			}

			var appErr *apperrors.Error
			if !errors.As(err, &appErr) || appErr.Kind != apperrors.KindValidation {
				t.Fatalf("ValidateListingInput() error = %v, want validation error", err)
			}
			if len(appErr.Fields) != len(tt.wantFields) {
				t.Errorf("Fields = %v, want %v", appErr.Fields, tt.wantFields)
			}
			for _, f := range tt.wantFields {
				if appErr.Fields[f] == "" {
					t.Errorf("Fields[%s] missing in %v", f, appErr.Fields)
				}
			}
		})
	}
}
