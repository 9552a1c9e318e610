package timelock

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/threefoldtech/vaultbridge/pkg"
)

func testPolicy() Policy {
	return NewPolicy(pkg.DefaultConfig().Timelock, 300)
}

func TestSelect(t *testing.T) {
	require := require.New(t)
	p := testPolicy()

	require.Equal(pkg.TimelockStandard, p.Select(99_999_999, false))
	require.Equal(pkg.TimelockLarge, p.Select(100_000_000, false))
	require.Equal(pkg.TimelockLarge, p.Select(500_000_000, false))
	require.Equal(pkg.TimelockEmergency, p.Select(1, true))
	require.Equal(pkg.TimelockEmergency, p.Select(500_000_000, true))
}

func TestRequiredDelay(t *testing.T) {
	require := require.New(t)
	p := testPolicy()

	require.EqualValues(300, p.RequiredDelay(pkg.TimelockStandard))
	require.EqualValues(3600, p.RequiredDelay(pkg.TimelockLarge))
	require.EqualValues(86400, p.RequiredDelay(pkg.TimelockEmergency))

	p.MinLockDuration = 7200
	require.EqualValues(7200, p.RequiredDelay(pkg.TimelockStandard))
	require.EqualValues(86400, p.RequiredDelay(pkg.TimelockEmergency))
}

func TestCheck(t *testing.T) {
	require := require.New(t)
	p := testPolicy()

	require.ErrorIs(p.Check(pkg.TimelockStandard, 0, 299, 0), pkg.ErrTimelockNotExpired)
	require.NoError(p.Check(pkg.TimelockStandard, 0, 300, 0))
	require.NoError(p.Check(pkg.TimelockStandard, 0, 1_000_000, 0))

	require.NoError(p.Check(pkg.TimelockStandard, 0, 600, 600))
	require.ErrorIs(p.Check(pkg.TimelockStandard, 0, 601, 600), pkg.ErrUnlockWindowExpired)
}
