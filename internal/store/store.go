package store

import (
	"context"
	"time"
)

// Account is a registered participant. Username is unique and
// case-sensitive; PasswordHash is a bcrypt hash of the credential.
type Account struct {
	Username     string
	PasswordHash string
	CreatedAt    time.Time
}

// Store is the persistence contract the server depends on: the full
// account set is loaded once at startup and written back on shutdown.
// A save must never leave a partially written set visible to a later
// load.
type Store interface {
	LoadAccounts(ctx context.Context) ([]Account, error)
	SaveAccounts(ctx context.Context, accounts []Account) error
	Close() error
}
