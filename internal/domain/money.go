package domain

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// ParseRentValue normalizes a currency amount as users type it into the chat
// form. Accepts Brazilian formatting ("R$ 4.500,00", thousands dots, comma
// decimals) as well as plain decimal strings ("4500.00").
func ParseRentValue(raw string) (decimal.Decimal, error) {
	cleaned := strings.TrimSpace(raw)
	cleaned = strings.TrimPrefix(cleaned, "R$")
	cleaned = strings.TrimSpace(cleaned)
	if cleaned == "" {
		return decimal.Zero, fmt.Errorf("empty currency value")
	}
	if strings.Contains(cleaned, ",") {
		cleaned = strings.ReplaceAll(cleaned, ".", "")
		cleaned = strings.ReplaceAll(cleaned, ",", ".")
	}
	value, err := decimal.NewFromString(cleaned)
	if err != nil {
		return decimal.Zero, fmt.Errorf("parse currency %q: %w", raw, err)
	}
	if value.IsNegative() {
		return decimal.Zero, fmt.Errorf("negative currency value %q", raw)
	}
	return value, nil
}
