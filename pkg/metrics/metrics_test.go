package metrics

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
	"github.com/threefoldtech/vaultbridge/pkg"
)

func TestObserveState(t *testing.T) {
	require := require.New(t)

	ObserveState(&pkg.BridgeState{TotalLocked: 1500, Pending: 3, Paused: true})
	require.Equal(1500.0, testutil.ToFloat64(TotalLocked))
	require.Equal(3.0, testutil.ToFloat64(PendingLocks))
	require.Equal(1.0, testutil.ToFloat64(Paused))

	ObserveState(&pkg.BridgeState{})
	require.Equal(0.0, testutil.ToFloat64(Paused))
}

func TestReject(t *testing.T) {
	require := require.New(t)

	before := testutil.ToFloat64(RejectionsTotal.WithLabelValues("lock", "capacity"))
	Reject("lock", errors.Wrap(pkg.ErrDailyLimitExceeded, "user alice"))
	require.Equal(before+1, testutil.ToFloat64(RejectionsTotal.WithLabelValues("lock", "capacity")))

	before = testutil.ToFloat64(RejectionsTotal.WithLabelValues("lock", "internal"))
	Reject("lock", errors.New("disk full"))
	require.Equal(before+1, testutil.ToFloat64(RejectionsTotal.WithLabelValues("lock", "internal")))
}
