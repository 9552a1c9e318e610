package fees

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/threefoldtech/vaultbridge/pkg"
)

func testCalculator(mutate func(*pkg.Config)) *Calculator {
	cfg := pkg.DefaultConfig()
	if mutate != nil {
		mutate(&cfg)
	}
	return NewCalculator(cfg.Fees, cfg.Timelock.LargeThreshold, NewStaticPolicy(cfg))
}

func TestFee(t *testing.T) {
	require := require.New(t)

	fee, err := Fee(1_000_000, 50)
	require.NoError(err)
	require.EqualValues(5_000, fee)

	fee, err = Fee(1_000_000, 0)
	require.NoError(err)
	require.EqualValues(0, fee)

	fee, err = Fee(9_999, 1)
	require.NoError(err)
	require.EqualValues(0, fee)

	fee, err = Fee(^uint64(0), 200)
	require.NoError(err)
	require.EqualValues(^uint64(0)/10000*200+(^uint64(0)%10000)*200/10000, fee)

	_, err = Fee(^uint64(0), 20_000)
	require.ErrorIs(err, pkg.ErrArithmeticOverflow)
}

func TestTiers(t *testing.T) {
	require := require.New(t)
	c := testCalculator(nil)

	require.EqualValues(10, c.Bps(1_000_000, pkg.TimelockStandard))
	require.EqualValues(5, c.Bps(100_000_000, pkg.TimelockLarge))
	require.EqualValues(100, c.Bps(100_000_000, pkg.TimelockEmergency))

	capped := testCalculator(func(cfg *pkg.Config) {
		cfg.Fees.EmergencyBps = 500
	})
	require.EqualValues(200, capped.Bps(1, pkg.TimelockEmergency))
}

func TestLockFeeAdjustments(t *testing.T) {
	require := require.New(t)
	c := testCalculator(func(cfg *pkg.Config) {
		cfg.Fees.VerifiedDiscountBps = 5000
		cfg.Fees.VerifiedUsers = []string{"verified"}
	})

	// bsc has a neutral multiplier
	fee, err := c.LockFee("user", 1_000_000, 56, pkg.TimelockStandard)
	require.NoError(err)
	require.EqualValues(1_000, fee)

	// ethereum costs 1.5x
	fee, err = c.LockFee("user", 1_000_000, 1, pkg.TimelockStandard)
	require.NoError(err)
	require.EqualValues(1_500, fee)

	fee, err = c.LockFee("verified", 1_000_000, 56, pkg.TimelockStandard)
	require.NoError(err)
	require.EqualValues(500, fee)

	fee, err = c.LockFee("user", 1_000_000, 999, pkg.TimelockStandard)
	require.NoError(err)
	require.EqualValues(1_000, fee)
}

func TestFeeBounds(t *testing.T) {
	require := require.New(t)
	c := testCalculator(func(cfg *pkg.Config) {
		cfg.Fees.MinFee = 100
		cfg.Fees.MaxFee = 2_000
	})

	fee, err := c.LockFee("user", 1_000, 56, pkg.TimelockStandard)
	require.NoError(err)
	require.EqualValues(100, fee)

	fee, err = c.LockFee("user", 99_000_000, 56, pkg.TimelockStandard)
	require.NoError(err)
	require.EqualValues(2_000, fee)

	fee, err = c.UnlockFee(50, pkg.TimelockStandard)
	require.NoError(err)
	require.EqualValues(50, fee)
}

func TestSplit(t *testing.T) {
	require := require.New(t)

	shares := Split(10_000, 50, 30)
	require.Equal(pkg.FeeShares{Validators: 5_000, Protocol: 3_000, Treasury: 2_000}, shares)

	shares = Split(7, 50, 30)
	require.Equal(pkg.FeeShares{Validators: 3, Protocol: 2, Treasury: 2}, shares)

	sum, err := AddShares(shares, shares)
	require.NoError(err)
	require.EqualValues(6, sum.Validators)

	_, err = AddShares(pkg.FeeShares{Treasury: ^uint64(0)}, shares)
	require.ErrorIs(err, pkg.ErrArithmeticOverflow)
}
