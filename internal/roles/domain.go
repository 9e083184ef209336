// Package roles manages the role catalog backing the implication graph.
package roles

import (
	"strings"
	"time"

	"golang.org/x/text/unicode/norm"
)

// Role represents a catalog entry. Key is the stable identifier used in
// implication edges and assignments; Name is the display label.
type Role struct {
	ID        int64     `json:"id"`
	Key       string    `json:"key"`
	Name      string    `json:"name"`
	Partition string    `json:"partition,omitempty"`
	Implies   []string  `json:"implies"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NormalizeKey canonicalizes a role key: NFC form, trimmed, lowercase.
// Keys arrive from migrations, the API and CSV imports; without a single
// canonical form the same role can exist twice under lookalike spellings.
func NormalizeKey(key string) string {
	return strings.ToLower(strings.TrimSpace(norm.NFC.String(key)))
}
