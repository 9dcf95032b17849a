package persistence

import (
	"strings"
)

// ValidateSortOrder normalizes a requested direction to ASC or DESC.
// Anything other than asc, in any case, sorts newest first.
func ValidateSortOrder(orderDir string) string {
	if strings.EqualFold(strings.TrimSpace(orderDir), "ASC") {
		return "ASC"
	}
	return "DESC"
}
