package service

import (
	"testing"
	"time"

	"blog-platform/internal/domain"
)

func TestLockoutPolicy_LocksAtThreshold(t *testing.T) {
	p := DefaultLockoutPolicy()
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	var u domain.User

	for i := 1; i < 5; i++ {
		p.RegisterFailure(&u, now)
		if p.State(u, now) != LockStateOpen {
			t.Fatalf("expected open after %d failures", i)
		}
		if u.LoginAttempts != i {
			t.Fatalf("expected %d attempts, got %d", i, u.LoginAttempts)
		}
	}

	p.RegisterFailure(&u, now)
	if p.State(u, now) != LockStateLocked {
		t.Fatalf("expected locked after 5 failures")
	}
	if !u.LockUntil.Equal(now.Add(2 * time.Hour)) {
		t.Fatalf("expected lock for 2h, got %v", u.LockUntil)
	}

	// Mientras sigue bloqueado no se extiende la ventana.
	later := now.Add(time.Hour)
	p.RegisterFailure(&u, later)
	if !u.LockUntil.Equal(now.Add(2 * time.Hour)) {
		t.Fatalf("expected lock window unchanged, got %v", u.LockUntil)
	}
}

func TestLockoutPolicy_ExpiredLockResets(t *testing.T) {
	p := LockoutPolicy{MaxAttempts: 3, LockDuration: time.Minute}
	now := time.Now().UTC()
	past := now.Add(-time.Second)
	u := domain.User{LoginAttempts: 3, LockUntil: &past}

	if p.State(u, now) != LockStateOpen {
		t.Fatalf("expected elapsed lock to read as open")
	}
	p.RegisterFailure(&u, now)
	if u.LoginAttempts != 1 || u.LockUntil != nil {
		t.Fatalf("expected reset to 1 attempt without lock, got %d %v", u.LoginAttempts, u.LockUntil)
	}
}

func TestLockoutPolicy_SuccessClears(t *testing.T) {
	p := DefaultLockoutPolicy()
	until := time.Now().Add(time.Hour)
	u := domain.User{LoginAttempts: 4, LockUntil: &until}
	p.RegisterSuccess(&u)
	if u.LoginAttempts != 0 || u.LockUntil != nil {
		t.Fatalf("expected counters cleared")
	}
}

func TestLockoutPolicy_ZeroValueUsesDefaults(t *testing.T) {
	var p LockoutPolicy
	now := time.Now().UTC()
	var u domain.User
	for i := 0; i < 5; i++ {
		p.RegisterFailure(&u, now)
	}
	if !u.IsLocked(now) {
		t.Fatalf("expected default threshold of 5")
	}
}
