// Package auth registers users and checks their credentials. Passwords are
// only ever stored as bcrypt hashes.
package auth

import "context"

// Store persists password hashes by username. Get returns core.ErrNotFound
// for unknown users; Put overwrites any existing entry.
type Store interface {
	Get(ctx context.Context, username string) (string, error)
	Put(ctx context.Context, username, hash string) error
}
