package store

import (
	"strings"

	"github.com/google/uuid"
)

// idLength is the number of hex characters kept from the UUID.
// 12 characters (48 bits) keeps ids short enough for logs while making
// within-thread collisions practically impossible.
const idLength = 12

// NewID mints an identifier of the form "<prefix>_<12 hex chars>".
// Both backends use it so id shape stays stable across store swaps.
func NewID(prefix string) string {
	hex := strings.ReplaceAll(uuid.NewString(), "-", "")
	return prefix + "_" + hex[:idLength]
}
