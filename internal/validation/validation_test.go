package validation

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestValidEmail(t *testing.T) {
	cases := map[string]bool{
		"alice@example.com":   true,
		"a.b+c@mail.bank.org": true,
		"alice@example":       false,
		"alice example@x.io":  false,
		"@example.com":        false,
		"":                    false,
	}
	for email, want := range cases {
		if got := ValidEmail(email); got != want {
			t.Errorf("ValidEmail(%q) = %v, want %v", email, got, want)
		}
	}
}

func TestNormalizeEmail(t *testing.T) {
	if got := NormalizeEmail("  Alice@Example.COM "); got != "alice@example.com" {
		t.Fatalf("unexpected normalized email %q", got)
	}
}

func TestPositiveAmount(t *testing.T) {
	valid := []string{"0.01", "1", "150.00", "12.50", "1.2300", "9999999999999999.99", "1e3"}
	for _, s := range valid {
		if err := PositiveAmount(decimal.RequireFromString(s)); err != nil {
			t.Errorf("expected %s to be valid: %v", s, err)
		}
	}
	invalid := []string{"0", "-5", "0.001", "1.234", "10000000000000000", "1e17"}
	for _, s := range invalid {
		if err := PositiveAmount(decimal.RequireFromString(s)); err == nil {
			t.Errorf("expected %s to be rejected", s)
		}
	}
}

func TestErrorsErr(t *testing.T) {
	var errs Errors
	if errs.Err() != nil {
		t.Fatalf("expected nil error for empty set")
	}
	errs.Add("email", "email is required")
	err := errs.Err()
	var fieldErrs Errors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) != 1 {
		t.Fatalf("expected field errors, got %v", err)
	}
}

func TestPositiveAmountRejectsExtremeExponentsQuickly(t *testing.T) {
	cases := []string{"1e-20000000", "1e20000000", "123456789e-45", "5e19"}
	for _, s := range cases {
		amount := decimal.RequireFromString(s)
		start := time.Now()
		err := PositiveAmount(amount)
		if err == nil {
			t.Errorf("expected %s to be rejected", s)
		}
		if elapsed := time.Since(start); elapsed > 100*time.Millisecond {
			t.Errorf("validating %s took %s", s, elapsed)
		}
	}
}
