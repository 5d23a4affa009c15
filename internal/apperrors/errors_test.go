package apperrors

import (
	"errors"
	"fmt"
	"testing"
)

func TestIsMatchesByKind(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		target error
		want   bool
	}{
		{"same kind", Forbidden("cannot reserve own listing"), ErrForbidden, true},
		{"different kind", Forbidden("nope"), ErrInvalidState, false},
		{"wrapped", fmt.Errorf("reserve: %w", InvalidState("")), ErrInvalidState, true},
		{"plain error", errors.New("boom"), ErrNetwork, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := errors.Is(tt.err, tt.target); got != tt.want {
				t.Errorf("errors.Is() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestToResult(t *testing.T) {
	if r := ToResult(nil); !r.Success {
		t.Error("ToResult(nil) should be a success")
	}

	r := ToResult(Unverified(""))
	if r.Success || r.Kind != KindUnverified {
		t.Errorf("ToResult() = %+v, want Unverified failure", r)
	}
	if r.Reason == "" {
		t.Error("ToResult() reason should default to a human readable message")
	}

	// raw transport errors are never shown to the actor
	r = ToResult(errors.New("dial tcp 127.0.0.1:5000: connection refused"))
	if r.Kind != KindUnknown || r.Reason != "Something went wrong" {
		t.Errorf("ToResult() = %+v, want generic unknown failure", r)
	}

	r = ToResult(Network(errors.New("dial tcp: refused")))
	if r.Reason != "Network error, please try again" {
		t.Errorf("ToResult() reason = %q, should hide the transport error", r.Reason)
	}
}

func TestValidationMessageIsStable(t *testing.T) {
	err := Validation(map[string]string{
		"title": "Title is required",
		"price": "Valid price is required",
	})

	if err.Message != "Valid price is required; Title is required" {
		t.Errorf("Validation() message = %q", err.Message)
	}
	if KindOf(err) != KindValidation {
		t.Errorf("KindOf() = %v, want %v", KindOf(err), KindValidation)
	}
}

func TestUnknownKeepsServerMessage(t *testing.T) {
	err := Unknown("Listing price is locked", 400)
	if err.Error() != "Listing price is locked" {
		t.Errorf("Unknown() message = %q", err.Error())
	}

	err = Unknown("", 418)
	if err.Error() != "Request failed (status 418)" {
		t.Errorf("Unknown() default message = %q", err.Error())
	}
}
