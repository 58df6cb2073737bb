package pager

import "errors"

// AllowedPageSizes is the fixed set of selectable page sizes.
var AllowedPageSizes = [...]int{10, 20, 30, 40, 50}

// DefaultPageSize is used when a view does not ask for a size.
const DefaultPageSize = 10

var (
	// ErrInvalidPageSize is returned for sizes outside AllowedPageSizes. State
	// is left untouched.
	ErrInvalidPageSize = errors.New("page size must be one of 10, 20, 30, 40, 50")
	// ErrSuperseded is returned to a caller whose fetch completed after a newer
	// request was issued; its result was discarded.
	ErrSuperseded = errors.New("fetch superseded by a newer request")
)

// ValidPageSize reports whether n is one of AllowedPageSizes.
func ValidPageSize(n int) bool {
	for _, s := range AllowedPageSizes {
		if s == n {
			return true
		}
	}
	return false
}
