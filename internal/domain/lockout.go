package domain

import "time"

const (
	DefaultMaxLoginAttempts = 5
	DefaultLockDuration     = 2 * time.Hour
)

// LoginState is the failed-attempt bookkeeping stored on every account.
type LoginState struct {
	Attempts  int
	LockUntil *time.Time
}

// LockoutPolicy decides how failed logins lock an account.
type LockoutPolicy struct {
	MaxAttempts  int
	LockDuration time.Duration
}

// DefaultLockoutPolicy locks for two hours after five failures.
func DefaultLockoutPolicy() LockoutPolicy {
	return LockoutPolicy{MaxAttempts: DefaultMaxLoginAttempts, LockDuration: DefaultLockDuration}
}

// IsLocked reports whether the state blocks authentication at now.
func (p LockoutPolicy) IsLocked(s LoginState, now time.Time) bool {
	return s.LockUntil != nil && now.Before(*s.LockUntil)
}

// Expired reports whether a lock was set and has since elapsed.
func (p LockoutPolicy) Expired(s LoginState, now time.Time) bool {
	return s.LockUntil != nil && !now.Before(*s.LockUntil)
}

// RegisterFailure returns the state after one more failed attempt.
// An elapsed lock is cleared lazily here and the counter restarts at one.
func (p LockoutPolicy) RegisterFailure(s LoginState, now time.Time) LoginState {
	if p.Expired(s, now) {
		return LoginState{Attempts: 1}
	}
	next := LoginState{Attempts: s.Attempts + 1, LockUntil: s.LockUntil}
	if next.LockUntil == nil && next.Attempts >= p.MaxAttempts {
		until := now.Add(p.LockDuration)
		next.LockUntil = &until
	}
	return next
}

// RegisterSuccess returns the cleared state.
func (p LockoutPolicy) RegisterSuccess() LoginState {
	return LoginState{}
}

// Remaining returns how many failures are left before a lock.
func (p LockoutPolicy) Remaining(s LoginState) int {
	if left := p.MaxAttempts - s.Attempts; left > 0 {
		return left
	}
	return 0
}
