package timelock

import (
	"github.com/threefoldtech/vaultbridge/pkg"
)

// Policy maps a transfer to the delay it must be held for before it can be unlocked
type Policy struct {
	Standard       int64
	Large          int64
	Emergency      int64
	LargeThreshold uint64
	// floor applied to every kind
	MinLockDuration int64
}

func NewPolicy(cfg pkg.TimelockConfig, minLockDuration int64) Policy {
	return Policy{
		Standard:        cfg.Standard,
		Large:           cfg.Large,
		Emergency:       cfg.Emergency,
		LargeThreshold:  cfg.LargeThreshold,
		MinLockDuration: minLockDuration,
	}
}

// Select picks the kind for a transfer, suspicion wins over size
func (p Policy) Select(amount uint64, suspicious bool) pkg.TimelockKind {
	switch {
	case suspicious:
		return pkg.TimelockEmergency
	case amount >= p.LargeThreshold:
		return pkg.TimelockLarge
	default:
		return pkg.TimelockStandard
	}
}

// Duration of a kind in seconds
func (p Policy) Duration(kind pkg.TimelockKind) int64 {
	switch kind {
	case pkg.TimelockLarge:
		return p.Large
	case pkg.TimelockEmergency:
		return p.Emergency
	default:
		return p.Standard
	}
}

// RequiredDelay is the longer of the kind duration and the minimum lock duration
func (p Policy) RequiredDelay(kind pkg.TimelockKind) int64 {
	d := p.Duration(kind)
	if p.MinLockDuration > d {
		return p.MinLockDuration
	}
	return d
}

// Check fails unless lockedAt is at least the required delay before now,
// and at most maxWindow before now when maxWindow is set
func (p Policy) Check(kind pkg.TimelockKind, lockedAt, now, maxWindow int64) error {
	elapsed := now - lockedAt
	if elapsed < p.RequiredDelay(kind) {
		return pkg.ErrTimelockNotExpired
	}
	if maxWindow > 0 && elapsed > maxWindow {
		return pkg.ErrUnlockWindowExpired
	}
	return nil
}
