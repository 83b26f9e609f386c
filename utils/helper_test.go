package utils

import (
	"errors"
	"testing"
)

func TestFormatE164(t *testing.T) {
	got, err := FormatE164("(650) 253-0000", "US")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "+16502530000" {
		t.Fatalf("expected +16502530000, got %s", got)
	}
	got, err = FormatE164("+1 650 253 0000", "MM")
	if err != nil || got != "+16502530000" {
		t.Fatalf("international form should ignore region: %s %v", got, err)
	}
	if _, err := FormatE164("123", "US"); err == nil {
		t.Fatalf("expected error for short number")
	}
	if err := ValidatePhoneNumber("not a phone", "US"); err == nil {
		t.Fatalf("expected error for garbage input")
	}
}

func TestProcessValidationErrors_NonValidatorError(t *testing.T) {
	out := ProcessValidationErrors(errors.New("unexpected EOF"))
	if out["body"] != "unexpected EOF" {
		t.Fatalf("expected body error, got %v", out)
	}
}
