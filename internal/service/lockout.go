package service

import (
	"time"

	"blog-platform/internal/domain"
)

type LockState string

const (
	LockStateOpen   LockState = "open"
	LockStateLocked LockState = "locked"
)

// LockoutPolicy aplica el bloqueo temporal por intentos fallidos.
type LockoutPolicy struct {
	MaxAttempts  int
	LockDuration time.Duration
}

func DefaultLockoutPolicy() LockoutPolicy {
	return LockoutPolicy{MaxAttempts: 5, LockDuration: 2 * time.Hour}
}

func (p LockoutPolicy) normalized() LockoutPolicy {
	def := DefaultLockoutPolicy()
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = def.MaxAttempts
	}
	if p.LockDuration <= 0 {
		p.LockDuration = def.LockDuration
	}
	return p
}

func (p LockoutPolicy) State(u domain.User, now time.Time) LockState {
	if u.IsLocked(now) {
		return LockStateLocked
	}
	return LockStateOpen
}

// RegisterFailure cuenta un login fallido. Un bloqueo ya vencido se limpia
// y el conteo reinicia en 1 en lugar de seguir sumando.
func (p LockoutPolicy) RegisterFailure(u *domain.User, now time.Time) {
	p = p.normalized()
	if u.LockUntil != nil && !u.LockUntil.After(now) {
		u.LoginAttempts = 1
		u.LockUntil = nil
		return
	}
	u.LoginAttempts++
	if u.LoginAttempts >= p.MaxAttempts && !u.IsLocked(now) {
		until := now.Add(p.LockDuration)
		u.LockUntil = &until
	}
}

func (p LockoutPolicy) RegisterSuccess(u *domain.User) {
	u.LoginAttempts = 0
	u.LockUntil = nil
}
