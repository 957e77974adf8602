package auth

import "time"

// User represents an authenticated user account. Every user belongs to
// exactly one store; the store scope travels with the session principal.
type User struct {
	ID           int64
	StoreID      int64
	Email        string
	PasswordHash string
	IsActive     bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
