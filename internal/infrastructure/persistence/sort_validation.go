package persistence

import (
	"strings"
)

// MovementSortFields whitelists the ledger columns callers may sort by.
// Anything else falls back to the default so user input never reaches the
// ORDER BY clause unchecked.
var MovementSortFields = map[string]bool{
	"occurred_at":   true,
	"created_at":    true,
	"quantity":      true,
	"movement_type": true,
}

// BatchSortFields whitelists the batch columns callers may sort by
var BatchSortFields = map[string]bool{
	"received_at": true,
	"created_at":  true,
	"expiry_date": true,
	"remaining":   true,
}

// ValidateSortOrder normalizes a sort direction to ASC or DESC,
// defaulting to DESC.
func ValidateSortOrder(orderDir string) string {
	if strings.EqualFold(strings.TrimSpace(orderDir), "ASC") {
		return "ASC"
	}
	return "DESC"
}

// ValidateSortField checks a sort field against a whitelist and returns
// defaultField when the input is empty or not allowed.
func ValidateSortField(sortField string, allowedFields map[string]bool, defaultField string) string {
	trimmed := strings.TrimSpace(sortField)
	if trimmed == "" || !allowedFields[trimmed] {
		return defaultField
	}
	return trimmed
}
