// Package accounts manages user accounts and their direct role assignments.
package accounts

import "time"

// Account represents a platform user whose role assignments are checked for
// partition conflicts. Roles holds directly assigned role keys only; implied
// roles are derived by the graph core at check time.
type Account struct {
	ID        int64     `json:"id"`
	Login     string    `json:"login"`
	Name      string    `json:"name"`
	Active    bool      `json:"active"`
	Roles     []string  `json:"roles"`
	CreatedAt time.Time `json:"created_at"`
}
