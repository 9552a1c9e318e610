package ratelimit

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/threefoldtech/vaultbridge/pkg"
)

func testLimiter() *Limiter {
	cfg := pkg.DefaultConfig()
	cfg.Limits.UserDailyLimit = 10_000
	cfg.Limits.GlobalDailyLimit = 15_000
	cfg.RateLimit.MinTxInterval = 60
	cfg.RateLimit.MaxPendingPerUser = 2
	cfg.RateLimit.MaxPendingGlobal = 3
	cfg.RateLimit.UnlockWindow = 3600
	cfg.RateLimit.UnlockWindowCap = 5_000
	return New(cfg.Limits, cfg.RateLimit)
}

func TestValidateNonce(t *testing.T) {
	require := require.New(t)

	require.ErrorIs(ValidateNonce(5, 5, 1000), pkg.ErrInvalidNonce)
	require.ErrorIs(ValidateNonce(4, 5, 1000), pkg.ErrInvalidNonce)
	require.NoError(ValidateNonce(6, 5, 1000))
	require.NoError(ValidateNonce(1005, 5, 1000))
	require.ErrorIs(ValidateNonce(1006, 5, 1000), pkg.ErrNonceTooHigh)
	require.NoError(ValidateNonce(1, 0, 1))

	require.NoError(testLimiter().ValidateNonce(1000, 0))
	require.ErrorIs(testLimiter().ValidateNonce(1001, 0), pkg.ErrNonceTooHigh)
}

func TestDailyReset(t *testing.T) {
	require := require.New(t)
	l := testLimiter()
	state := &pkg.BridgeState{DailyVolume: 9_000}
	window := &pkg.RateWindow{DailyVolume: 9_000}

	l.ResetDaily(state, window, pkg.SecondsPerDay-1)
	require.EqualValues(9_000, state.DailyVolume)
	require.EqualValues(9_000, window.DailyVolume)

	l.ResetDaily(state, window, pkg.SecondsPerDay+5)
	require.EqualValues(0, state.DailyVolume)
	require.EqualValues(0, window.DailyVolume)
	require.EqualValues(pkg.SecondsPerDay, state.DailyResetMarker)

	// a second call on the same day keeps what was accumulated since the reset
	state.DailyVolume = 100
	l.ResetDaily(state, window, 2*pkg.SecondsPerDay-1)
	require.EqualValues(100, state.DailyVolume)
}

func TestCheckVolume(t *testing.T) {
	require := require.New(t)
	l := testLimiter()
	state := &pkg.BridgeState{}
	window := &pkg.RateWindow{}

	require.NoError(l.CheckVolume(state, window, 10_000))
	require.ErrorIs(l.CheckVolume(state, window, 10_001), pkg.ErrDailyLimitExceeded)

	state.DailyVolume = 10_000
	require.ErrorIs(l.CheckVolume(state, window, 5_001), pkg.ErrDailyLimitExceeded)

	window.DailyVolume = ^uint64(0)
	require.ErrorIs(l.CheckVolume(state, window, 1), pkg.ErrArithmeticOverflow)
}

func TestCheckInterval(t *testing.T) {
	require := require.New(t)
	l := testLimiter()
	window := &pkg.RateWindow{}

	require.NoError(l.CheckInterval(window, 10))
	window.LastTx = 100
	require.ErrorIs(l.CheckInterval(window, 159), pkg.ErrTransferTooFrequent)
	require.NoError(l.CheckInterval(window, 160))
}

func TestPendingCaps(t *testing.T) {
	require := require.New(t)
	l := testLimiter()
	state := &pkg.BridgeState{}
	alice := &pkg.RateWindow{User: "alice"}
	bob := &pkg.RateWindow{User: "bob"}

	require.NoError(l.RecordLock(state, alice, 10, 1))
	require.NoError(l.RecordLock(state, alice, 10, 2))
	require.ErrorIs(l.CheckPending(state, alice), pkg.ErrTooManyPending)

	require.NoError(l.CheckPending(state, bob))
	require.NoError(l.RecordLock(state, bob, 10, 3))
	require.ErrorIs(l.CheckPending(state, &pkg.RateWindow{}), pkg.ErrTooManyPending)

	l.ReleasePending(state, alice)
	require.EqualValues(1, alice.Pending)
	require.EqualValues(2, state.Pending)
	require.EqualValues(20, alice.DailyVolume)
	require.EqualValues(30, state.DailyVolume)

	empty := &pkg.BridgeState{}
	l.ReleasePending(empty, &pkg.RateWindow{})
	require.EqualValues(0, empty.Pending)
}

func TestUnlockWindow(t *testing.T) {
	require := require.New(t)
	l := testLimiter()
	state := &pkg.BridgeState{}

	require.NoError(l.CheckUnlock(state, 4_000, 3600))
	require.NoError(l.RecordUnlock(state, 4_000))
	require.ErrorIs(l.CheckUnlock(state, 1_001, 3700), pkg.ErrRateLimitExceeded)
	require.NoError(l.CheckUnlock(state, 1_000, 3700))

	require.NoError(l.CheckUnlock(state, 5_000, 7200))
	require.EqualValues(0, state.UnlockWindowVolume)
	require.EqualValues(7200, state.UnlockWindowStart)
}
