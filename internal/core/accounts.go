package core

import (
	"strings"
	"sync"
	"time"

	"github.com/avdeyev/scenesync-server/internal/auth"
	"github.com/avdeyev/scenesync-server/internal/store"
)

// AccountRegistry holds all registered accounts and tracks which
// connection, if any, holds each account active. One mutex covers every
// check-then-act sequence so two connections cannot register the same
// username or activate the same account concurrently.
type AccountRegistry struct {
	mu           sync.Mutex
	accounts     map[string]store.Account
	activeByUser map[string]string // username -> connection id
	activeByConn map[string]string // connection id -> username
}

// NewAccountRegistry constructs a registry seeded with the persisted
// account set.
func NewAccountRegistry(accounts []store.Account) *AccountRegistry {
	r := &AccountRegistry{
		accounts:     make(map[string]store.Account, len(accounts)),
		activeByUser: make(map[string]string),
		activeByConn: make(map[string]string),
	}
	for _, acc := range accounts {
		r.accounts[acc.Username] = acc
	}
	return r
}

// IsRegistered reports whether the username exists, regardless of
// credential.
func (r *AccountRegistry) IsRegistered(username string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.accounts[username]
	return ok
}

// Register creates an account with a hashed credential. Fails with
// ErrDuplicateAccount if the username is taken and ErrInvalidUsername if
// it fails validation.
func (r *AccountRegistry) Register(username, password string) error {
	username = strings.TrimSpace(username)
	if len(username) < 3 || len(username) > 32 {
		return ErrInvalidUsername
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.accounts[username]; ok {
		return ErrDuplicateAccount
	}
	r.accounts[username] = store.Account{
		Username:     username,
		PasswordHash: hash,
		CreatedAt:    time.Now(),
	}
	return nil
}

// Authenticate reports whether the username exists and the credential
// matches. Unknown username and wrong credential are indistinguishable
// to the caller.
func (r *AccountRegistry) Authenticate(username, password string) bool {
	r.mu.Lock()
	acc, ok := r.accounts[username]
	r.mu.Unlock()
	if !ok {
		return false
	}
	return auth.ComparePassword(acc.PasswordHash, password) == nil
}

// Activate binds the account to connID. Fails with
// ErrAccountAlreadyActive if any connection (including connID itself)
// already holds it.
func (r *AccountRegistry) Activate(connID, username string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, active := r.activeByUser[username]; active {
		return ErrAccountAlreadyActive
	}
	r.activeByUser[username] = connID
	r.activeByConn[connID] = username
	return nil
}

// Deactivate releases whatever account connID holds. Idempotent:
// deactivating a connection with no active account is a no-op.
func (r *AccountRegistry) Deactivate(connID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	username, ok := r.activeByConn[connID]
	if !ok {
		return
	}
	delete(r.activeByConn, connID)
	delete(r.activeByUser, username)
}

// ActiveUser returns the username held active by connID, if any.
func (r *AccountRegistry) ActiveUser(connID string) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	username, ok := r.activeByConn[connID]
	return username, ok
}

// IsActive reports whether any connection holds the account active.
func (r *AccountRegistry) IsActive(username string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.activeByUser[username]
	return ok
}

// Snapshot returns a copy of all registered accounts for persistence.
func (r *AccountRegistry) Snapshot() []store.Account {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]store.Account, 0, len(r.accounts))
	for _, acc := range r.accounts {
		out = append(out, acc)
	}
	return out
}
