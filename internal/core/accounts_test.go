package core

import (
	"errors"
	"fmt"
	"sync"
	"testing"
)

func TestRegisterRejectsDuplicate(t *testing.T) {
	r := NewAccountRegistry(nil)

	if err := r.Register("alice", "pw1"); err != nil {
		t.Fatalf("first register failed: %v", err)
	}
	if err := r.Register("alice", "other-pw"); !errors.Is(err, ErrDuplicateAccount) {
		t.Fatalf("expected ErrDuplicateAccount, got %v", err)
	}
}

func TestRegisterValidatesUsername(t *testing.T) {
	r := NewAccountRegistry(nil)

	if err := r.Register("ab", "pw1"); !errors.Is(err, ErrInvalidUsername) {
		t.Fatalf("expected ErrInvalidUsername, got %v", err)
	}
	// Validated after trimming whitespace.
	if err := r.Register(" ab ", "pw1"); !errors.Is(err, ErrInvalidUsername) {
		t.Fatalf("expected ErrInvalidUsername, got %v", err)
	}
}

func TestAuthenticateDoesNotDistinguishFailures(t *testing.T) {
	r := NewAccountRegistry(nil)
	if err := r.Register("alice", "pw1"); err != nil {
		t.Fatalf("register failed: %v", err)
	}

	if !r.Authenticate("alice", "pw1") {
		t.Fatalf("expected correct credential to authenticate")
	}
	if r.Authenticate("alice", "wrong") {
		t.Fatalf("wrong credential authenticated")
	}
	if r.Authenticate("nobody", "pw1") {
		t.Fatalf("unknown username authenticated")
	}
}

func TestActivateAllowsOneConnectionPerAccount(t *testing.T) {
	r := NewAccountRegistry(nil)
	if err := r.Register("alice", "pw1"); err != nil {
		t.Fatalf("register failed: %v", err)
	}

	if err := r.Activate("c1", "alice"); err != nil {
		t.Fatalf("first activate failed: %v", err)
	}
	if err := r.Activate("c2", "alice"); !errors.Is(err, ErrAccountAlreadyActive) {
		t.Fatalf("expected ErrAccountAlreadyActive, got %v", err)
	}

	r.Deactivate("c1")
	if err := r.Activate("c2", "alice"); err != nil {
		t.Fatalf("activate after deactivate failed: %v", err)
	}
}

func TestDeactivateIsIdempotent(t *testing.T) {
	r := NewAccountRegistry(nil)
	if err := r.Register("alice", "pw1"); err != nil {
		t.Fatalf("register failed: %v", err)
	}
	if err := r.Activate("c1", "alice"); err != nil {
		t.Fatalf("activate failed: %v", err)
	}

	r.Deactivate("c1")
	r.Deactivate("c1")
	r.Deactivate("never-connected")

	if r.IsActive("alice") {
		t.Fatalf("account still active after deactivation")
	}
}

func TestSnapshotRoundTripsThroughConstructor(t *testing.T) {
	r := NewAccountRegistry(nil)
	if err := r.Register("alice", "pw1"); err != nil {
		t.Fatalf("register failed: %v", err)
	}
	if err := r.Register("bob", "pw2"); err != nil {
		t.Fatalf("register failed: %v", err)
	}

	restored := NewAccountRegistry(r.Snapshot())
	if !restored.IsRegistered("alice") || !restored.IsRegistered("bob") {
		t.Fatalf("accounts lost in snapshot round trip")
	}
	if !restored.Authenticate("alice", "pw1") {
		t.Fatalf("restored account does not authenticate")
	}
}

func TestConcurrentRegisterSameUsernameHasOneWinner(t *testing.T) {
	r := NewAccountRegistry(nil)

	const workers = 8
	errs := make(chan error, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- r.Register("alice", "pw1")
		}()
	}
	wg.Wait()
	close(errs)

	var won, lost int
	for err := range errs {
		switch {
		case err == nil:
			won++
		case errors.Is(err, ErrDuplicateAccount):
			lost++
		default:
			t.Errorf("unexpected register error: %v", err)
		}
	}
	if won != 1 || lost != workers-1 {
		t.Fatalf("expected 1 winner and %d duplicates, got %d/%d", workers-1, won, lost)
	}
}

func TestConcurrentActivateSameAccountHasOneWinner(t *testing.T) {
	r := NewAccountRegistry(nil)
	if err := r.Register("alice", "pw1"); err != nil {
		t.Fatalf("register failed: %v", err)
	}

	const workers = 8
	errs := make(chan error, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		connID := fmt.Sprintf("c%d", i)
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- r.Activate(connID, "alice")
		}()
	}
	wg.Wait()
	close(errs)

	var won, lost int
	for err := range errs {
		switch {
		case err == nil:
			won++
		case errors.Is(err, ErrAccountAlreadyActive):
			lost++
		default:
			t.Errorf("unexpected activate error: %v", err)
		}
	}
	if won != 1 || lost != workers-1 {
		t.Fatalf("expected 1 winner and %d rejections, got %d/%d", workers-1, won, lost)
	}
}
