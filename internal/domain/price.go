package domain

import (
	"regexp"
	"strconv"
	"strings"
)

// MaxPrice is the largest price a NUMERIC(12,2) column holds
const MaxPrice = 9999999999.99

var plainDecimal = regexp.MustCompile(`^-?[0-9]+(\.[0-9]+)?$`)

// ParsePrice parses a plain decimal price; anything else is a validation error
func ParsePrice(text string) (float64, error) {
	text = strings.TrimSpace(text)
	if !plainDecimal.MatchString(text) {
		return 0, NewValidationError("price", "price must be a number, e.g. 39.90")
	}
	price, err := strconv.ParseFloat(text, 64)
	if err != nil {
		return 0, NewValidationError("price", "price must be a number, e.g. 39.90")
	}
	if price < 0 {
		return 0, NewValidationError("price", "price cannot be negative")
	}
	if price > MaxPrice {
		return 0, NewValidationError("price", "price is too large, the maximum is "+FormatPrice(MaxPrice))
	}
	return price, nil
}

// FormatPrice renders a price for display
func FormatPrice(price float64) string {
	return "₪" + strconv.FormatFloat(price, 'f', 2, 64)
}
