package validation

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

// MaxAmountScale is the number of fractional digits accepted for money amounts.
const MaxAmountScale = 2

// MaxAmount is the largest value a balance column can hold.
var MaxAmount = decimal.RequireFromString("9999999999999999.99")

// Bounds on the decimal representation. Trailing zeros within them are still
// accepted ("1.2300" is 1.23); anything outside is rejected without arithmetic.
const (
	maxAmountExponent  = 18
	minAmountExponent  = -40
	maxCoefficientBits = 192
)

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// FieldError describes a single rejected request field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Errors collects field errors found while validating a request.
type Errors []FieldError

func (e Errors) Error() string {
	if len(e) == 0 {
		return "invalid request"
	}
	parts := make([]string, 0, len(e))
	for _, fe := range e {
		parts = append(parts, fe.Field+": "+fe.Message)
	}
	return "invalid request: " + strings.Join(parts, "; ")
}

// Add appends a field error.
func (e *Errors) Add(field, message string) {
	*e = append(*e, FieldError{Field: field, Message: message})
}

// Err returns nil when no field errors were collected.
func (e Errors) Err() error {
	if len(e) == 0 {
		return nil
	}
	return e
}

// NormalizeEmail trims and lower-cases an address for storage and lookup.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// ValidEmail reports whether the address has the user@host.tld shape.
func ValidEmail(email string) bool {
	return emailPattern.MatchString(email)
}

// PositiveAmount checks that amount is strictly positive, carries no more than
// MaxAmountScale fractional digits and fits the NUMERIC(18,2) balance column. The
// exponent and coefficient size are bounded before any rescaling happens.
func PositiveAmount(amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return fmt.Errorf("amount must be positive")
	}
	exp := amount.Exponent()
	if exp > maxAmountExponent || amount.Coefficient().BitLen() > maxCoefficientBits {
		return fmt.Errorf("amount must not exceed %s", MaxAmount.StringFixed(MaxAmountScale))
	}
	if exp < minAmountExponent {
		return fmt.Errorf("amount supports at most %d decimal places", MaxAmountScale)
	}
	if exp < -MaxAmountScale && !amount.Equal(amount.Round(MaxAmountScale)) {
		return fmt.Errorf("amount supports at most %d decimal places", MaxAmountScale)
	}
	if amount.GreaterThan(MaxAmount) {
		return fmt.Errorf("amount must not exceed %s", MaxAmount.StringFixed(MaxAmountScale))
	}
	return nil
}
