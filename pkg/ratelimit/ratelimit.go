package ratelimit

import (
	"github.com/threefoldtech/vaultbridge/pkg"
)

// DayStart returns the unix timestamp of the UTC midnight at or before now
func DayStart(now int64) int64 {
	return now - now%pkg.SecondsPerDay
}

// ShouldReset reports whether now lies in a later day than the one marked
func ShouldReset(now, marker int64) bool {
	return DayStart(now) > marker
}

// ValidateNonce accepts n only in (last, last+maxGap]
func ValidateNonce(n, last, maxGap uint64) error {
	if n <= last {
		return pkg.ErrInvalidNonce
	}
	if n-last > maxGap {
		return pkg.ErrNonceTooHigh
	}
	return nil
}

// Limiter enforces volume, frequency and pending caps. Every method works on the
// values it is given and leaves persisting them to the caller.
type Limiter struct {
	userDailyLimit    uint64
	globalDailyLimit  uint64
	minTxInterval     int64
	maxNonceGap       uint64
	maxPendingPerUser uint32
	maxPendingGlobal  uint32
	unlockWindow      int64
	unlockWindowCap   uint64
}

func New(limits pkg.LimitsConfig, cfg pkg.RateLimitConfig) *Limiter {
	return &Limiter{
		userDailyLimit:    limits.UserDailyLimit,
		globalDailyLimit:  limits.GlobalDailyLimit,
		minTxInterval:     cfg.MinTxInterval,
		maxNonceGap:       cfg.MaxNonceGap,
		maxPendingPerUser: cfg.MaxPendingPerUser,
		maxPendingGlobal:  cfg.MaxPendingGlobal,
		unlockWindow:      cfg.UnlockWindow,
		unlockWindowCap:   cfg.UnlockWindowCap,
	}
}

func (l *Limiter) ValidateNonce(n, last uint64) error {
	return ValidateNonce(n, last, l.maxNonceGap)
}

// ResetDaily zeroes the daily counters once a day boundary has been crossed
func (l *Limiter) ResetDaily(state *pkg.BridgeState, window *pkg.RateWindow, now int64) {
	if ShouldReset(now, state.DailyResetMarker) {
		state.DailyVolume = 0
		state.DailyResetMarker = DayStart(now)
	}
	if ShouldReset(now, window.WindowStart) {
		window.DailyVolume = 0
		window.WindowStart = DayStart(now)
	}
}

// CheckVolume fails when amount would push the user or the bridge over its daily cap
func (l *Limiter) CheckVolume(state *pkg.BridgeState, window *pkg.RateWindow, amount uint64) error {
	user, err := pkg.AddU64(window.DailyVolume, amount)
	if err != nil {
		return err
	}
	if l.userDailyLimit > 0 && user > l.userDailyLimit {
		return pkg.ErrDailyLimitExceeded
	}
	global, err := pkg.AddU64(state.DailyVolume, amount)
	if err != nil {
		return err
	}
	if l.globalDailyLimit > 0 && global > l.globalDailyLimit {
		return pkg.ErrDailyLimitExceeded
	}
	return nil
}

// CheckInterval enforces the minimum delay between two transfers of a user
func (l *Limiter) CheckInterval(window *pkg.RateWindow, now int64) error {
	if l.minTxInterval > 0 && window.LastTx != 0 && now-window.LastTx < l.minTxInterval {
		return pkg.ErrTransferTooFrequent
	}
	return nil
}

// CheckPending bounds the number of outstanding locks
func (l *Limiter) CheckPending(state *pkg.BridgeState, window *pkg.RateWindow) error {
	if l.maxPendingPerUser > 0 && window.Pending >= l.maxPendingPerUser {
		return pkg.ErrTooManyPending
	}
	if l.maxPendingGlobal > 0 && state.Pending >= l.maxPendingGlobal {
		return pkg.ErrTooManyPending
	}
	return nil
}

// RecordLock accounts a lock of amount at now
func (l *Limiter) RecordLock(state *pkg.BridgeState, window *pkg.RateWindow, amount uint64, now int64) error {
	user, err := pkg.AddU64(window.DailyVolume, amount)
	if err != nil {
		return err
	}
	global, err := pkg.AddU64(state.DailyVolume, amount)
	if err != nil {
		return err
	}
	window.DailyVolume = user
	state.DailyVolume = global
	window.LastTx = now
	window.Pending++
	state.Pending++
	return nil
}

// ReleasePending drops a lock from the outstanding counters, never below zero
func (l *Limiter) ReleasePending(state *pkg.BridgeState, window *pkg.RateWindow) {
	if window != nil && window.Pending > 0 {
		window.Pending--
	}
	if state.Pending > 0 {
		state.Pending--
	}
}

// CheckUnlock rolls the unlock window when it elapsed and fails when amount
// does not fit in what is left of it
func (l *Limiter) CheckUnlock(state *pkg.BridgeState, amount uint64, now int64) error {
	if l.unlockWindow > 0 && now-state.UnlockWindowStart >= l.unlockWindow {
		state.UnlockWindowVolume = 0
		state.UnlockWindowStart = now
	}
	total, err := pkg.AddU64(state.UnlockWindowVolume, amount)
	if err != nil {
		return err
	}
	if l.unlockWindowCap > 0 && total > l.unlockWindowCap {
		return pkg.ErrRateLimitExceeded
	}
	return nil
}

func (l *Limiter) RecordUnlock(state *pkg.BridgeState, amount uint64) error {
	total, err := pkg.AddU64(state.UnlockWindowVolume, amount)
	if err != nil {
		return err
	}
	state.UnlockWindowVolume = total
	return nil
}
