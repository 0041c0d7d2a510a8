package ids

import (
	"strings"

	"github.com/google/uuid"
)

// New returns prefix followed by the first 8 hex characters of a random UUID, upper-cased.
func New(prefix string) string {
	return prefix + strings.ToUpper(uuid.NewString()[:8])
}
