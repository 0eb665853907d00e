package router

import (
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// stringPtr returns a trimmed pointer or nil when the input is empty.
func stringPtr(value string) *string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

// uuidPtr renders a UUID as a string pointer, treating the zero value as absent.
func uuidPtr(id uuid.UUID) *string {
	if id == uuid.Nil {
		return nil
	}
	value := id.String()
	return &value
}

// priceCents converts a decimal price into whole cents.
func priceCents(price *decimal.Decimal) *int64 {
	if price == nil {
		return nil
	}
	cents := price.Mul(decimal.NewFromInt(100)).Round(0).IntPart()
	return &cents
}
