package fees

import (
	"github.com/holiman/uint256"
	"github.com/threefoldtech/vaultbridge/pkg"
)

// Fee is floor(amount * bps / 10000), computed without intermediate overflow
func Fee(amount, bps uint64) (uint64, error) {
	return mulDiv(amount, bps, pkg.FeeDenominator)
}

func mulDiv(a, b, d uint64) (uint64, error) {
	r := new(uint256.Int).Mul(uint256.NewInt(a), uint256.NewInt(b))
	r.Div(r, uint256.NewInt(d))
	if !r.IsUint64() {
		return 0, pkg.ErrArithmeticOverflow
	}
	return r.Uint64(), nil
}

// Policy supplies chain and user specific fee adjustments
type Policy interface {
	// Multiplier of the chain, with pkg.MultiplierPrecision
	Multiplier(chainID uint64) uint64
	// Bounds of a single fee, a zero max means unbounded
	Bounds() (min, max uint64)
	IsVerified(user string) bool
}

// StaticPolicy serves the fee adjustments of the configuration
type StaticPolicy struct {
	multipliers map[uint64]uint64
	min, max    uint64
	verified    map[string]bool
}

func NewStaticPolicy(cfg pkg.Config) *StaticPolicy {
	p := &StaticPolicy{
		multipliers: make(map[uint64]uint64, len(cfg.Chains)),
		min:         cfg.Fees.MinFee,
		max:         cfg.Fees.MaxFee,
		verified:    make(map[string]bool, len(cfg.Fees.VerifiedUsers)),
	}
	for _, chain := range cfg.Chains {
		p.multipliers[chain.ID] = chain.FeeMultiplier
	}
	for _, user := range cfg.Fees.VerifiedUsers {
		p.verified[user] = true
	}
	return p
}

// Multiplier of a chain, neutral for chains it does not know
func (p *StaticPolicy) Multiplier(chainID uint64) uint64 {
	m, ok := p.multipliers[chainID]
	if !ok {
		return pkg.MultiplierPrecision
	}
	return m
}

func (p *StaticPolicy) Bounds() (uint64, uint64) {
	return p.min, p.max
}

func (p *StaticPolicy) IsVerified(user string) bool {
	return p.verified[user]
}

// Calculator applies the tiered fee schedule
type Calculator struct {
	cfg            pkg.FeeConfig
	largeThreshold uint64
	policy         Policy
}

func NewCalculator(cfg pkg.FeeConfig, largeThreshold uint64, policy Policy) *Calculator {
	return &Calculator{cfg: cfg, largeThreshold: largeThreshold, policy: policy}
}

// Bps returns the tier rate for a transfer, never above the configured cap
func (c *Calculator) Bps(amount uint64, kind pkg.TimelockKind) uint64 {
	bps := c.cfg.BaseBps
	switch {
	case kind == pkg.TimelockEmergency:
		bps = c.cfg.EmergencyBps
	case amount >= c.largeThreshold:
		bps = c.cfg.LargeBps
	}
	if bps > c.cfg.MaxBps {
		bps = c.cfg.MaxBps
	}
	return bps
}

// LockFee is the fee charged on top of a lock of amount towards destination
func (c *Calculator) LockFee(user string, amount, destination uint64, kind pkg.TimelockKind) (uint64, error) {
	bps, err := mulDiv(c.Bps(amount, kind), c.policy.Multiplier(destination), pkg.MultiplierPrecision)
	if err != nil {
		return 0, err
	}
	if bps > c.cfg.MaxBps {
		bps = c.cfg.MaxBps
	}
	fee, err := Fee(amount, bps)
	if err != nil {
		return 0, err
	}
	if c.cfg.VerifiedDiscountBps > 0 && c.policy.IsVerified(user) {
		discount, err := Fee(fee, c.cfg.VerifiedDiscountBps)
		if err != nil {
			return 0, err
		}
		fee -= discount
	}
	return c.clamp(fee), nil
}

// UnlockFee is withheld from the amount paid out on unlock
func (c *Calculator) UnlockFee(amount uint64, kind pkg.TimelockKind) (uint64, error) {
	fee, err := Fee(amount, c.Bps(amount, kind))
	if err != nil {
		return 0, err
	}
	fee = c.clamp(fee)
	if fee > amount {
		fee = amount
	}
	return fee, nil
}

func (c *Calculator) clamp(fee uint64) uint64 {
	min, max := c.policy.Bounds()
	if fee < min {
		fee = min
	}
	if max > 0 && fee > max {
		fee = max
	}
	return fee
}

// Split divides a collected fee between validators, protocol and treasury.
// Rounding leftovers go to the treasury.
func (c *Calculator) Split(fee uint64) pkg.FeeShares {
	return Split(fee, c.cfg.ValidatorShare, c.cfg.ProtocolShare)
}

// Split with validator and protocol shares in percent, the treasury gets the rest
func Split(fee, validatorShare, protocolShare uint64) pkg.FeeShares {
	validators, _ := mulDiv(fee, validatorShare, 100)
	protocol, _ := mulDiv(fee, protocolShare, 100)
	return pkg.FeeShares{
		Validators: validators,
		Protocol:   protocol,
		Treasury:   fee - validators - protocol,
	}
}

// AddShares accumulates b into a with overflow checks
func AddShares(a, b pkg.FeeShares) (pkg.FeeShares, error) {
	var out pkg.FeeShares
	var err error
	if out.Validators, err = pkg.AddU64(a.Validators, b.Validators); err != nil {
		return a, err
	}
	if out.Protocol, err = pkg.AddU64(a.Protocol, b.Protocol); err != nil {
		return a, err
	}
	if out.Treasury, err = pkg.AddU64(a.Treasury, b.Treasury); err != nil {
		return a, err
	}
	return out, nil
}
