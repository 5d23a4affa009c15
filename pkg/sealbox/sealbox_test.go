package sealbox

import (
	"errors"
	"strings"
	"testing"
)

// small parameters keep the tests fast
var testParams = &Params{Memory: 8 * 1024, Iterations: 1, Parallelism: 1, SaltLength: 16}

func TestSeal(t *testing.T) {
	tests := []struct {
		name      string
		plaintext string
		params    *Params
	}{
		{"seal with test params", `{"token":"abc"}`, testParams},
		{"seal empty record", "", testParams},
		{"seal with custom salt", "record", &Params{Memory: 8 * 1024, Iterations: 2, Parallelism: 1, SaltLength: 32}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			box, err := Seal([]byte(tt.plaintext), "passphrase", tt.params)
			if err != nil {
				t.Fatalf("Seal() error = %v", err)
			}
			if !strings.HasPrefix(box, "$sealbox$v=19$") {
				t.Errorf("Seal() invalid format: %s", box)
			}
			if !IsSealed([]byte(box)) {
				t.Error("IsSealed() = false for a sealed box")
			}
			if strings.Contains(box, tt.plaintext) && tt.plaintext != "" {
				t.Error("Seal() output contains the plaintext")
			}
		})
	}
}

func TestOpen(t *testing.T) {
	box, err := Seal([]byte(`{"token":"abc"}`), "correct horse", testParams)
	if err != nil {
		t.Fatalf("Failed to seal: %v", err)
	}

	tests := []struct {
		name       string
		box        string
		passphrase string
		want       string
		wantErr    error
	}{
		{"open with correct passphrase", box, "correct horse", `{"token":"abc"}`, nil},
		{"open with wrong passphrase", box, "battery staple", "", ErrDecrypt},
		{"open garbage", "not-a-box", "correct horse", "", ErrInvalidBox},
		{"open wrong version", strings.Replace(box, "v=19", "v=16", 1), "correct horse", "", ErrIncompatibleVersion},
		{"open truncated", box[:len(box)-20], "correct horse", "", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Open(tt.box, tt.passphrase)
			if tt.name == "open truncated" {
				if err == nil {
					t.Error("Open() should fail on a truncated box")
				}
				return
			}
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("Open() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Open() error = %v", err)
			}
			if string(got) != tt.want {
				t.Errorf("Open() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestSealUsesFreshSalt(t *testing.T) {
	a, err := Seal([]byte("same"), "pass", testParams)
	if err != nil {
		t.Fatalf("Seal() error = %v", err)
	}
	b, err := Seal([]byte("same"), "pass", testParams)
	if err != nil {
		t.Fatalf("Seal() error = %v", err)
	}
	if a == b {
		t.Error("Seal() should produce different boxes for the same input")
	}
}

func TestIsSealed(t *testing.T) {
	if IsSealed([]byte(`{"token":"abc"}`)) {
		t.Error("IsSealed() = true for plain JSON")
	}
}
