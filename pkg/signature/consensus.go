package signature

import (
	"context"
	"sort"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/threefoldtech/vaultbridge/pkg"
)

// RequiredApprovals is ceil(total * thresholdPct / 100). An empty set can never
// approve anything.
func RequiredApprovals(total uint32, thresholdPct uint64) (uint32, error) {
	if thresholdPct == 0 || thresholdPct > 100 {
		return 0, pkg.ErrInvalidThreshold
	}
	if total == 0 {
		return 0, pkg.ErrNoValidators
	}
	return uint32((uint64(total)*thresholdPct + 99) / 100), nil
}

// IsConsensusMet reports whether approvals out of total reach thresholdPct percent
func IsConsensusMet(approvals, total uint32, thresholdPct uint64) (bool, error) {
	required, err := RequiredApprovals(total, thresholdPct)
	if err != nil {
		return false, err
	}
	return approvals >= required, nil
}

// RequiredWeight is ceil(totalWeight * thresholdPct / 100), computed without overflow
func RequiredWeight(totalWeight, thresholdPct uint64) (*uint256.Int, error) {
	if thresholdPct == 0 || thresholdPct > 100 {
		return nil, pkg.ErrInvalidThreshold
	}
	if totalWeight == 0 {
		return nil, pkg.ErrNoValidators
	}
	required := new(uint256.Int).Mul(uint256.NewInt(totalWeight), uint256.NewInt(thresholdPct))
	required.AddUint64(required, 99)
	required.Div(required, uint256.NewInt(100))
	return required, nil
}

// IsWeightedConsensusMet is IsConsensusMet over validator weights, same rounding
func IsWeightedConsensusMet(weight, totalWeight, thresholdPct uint64) (bool, error) {
	required, err := RequiredWeight(totalWeight, thresholdPct)
	if err != nil {
		return false, err
	}
	return uint256.NewInt(weight).Cmp(required) >= 0, nil
}

// Met reports whether tally reaches the threshold of the set, by weight for a
// weighted set and by number of validators otherwise
func (s *ValidatorSet) Met(tally Tally) (bool, error) {
	if s.Weighted {
		return IsWeightedConsensusMet(tally.Weight, s.TotalWeight, s.ThresholdPct)
	}
	return IsConsensusMet(tally.Count, uint32(s.Len()), s.ThresholdPct)
}

// Required is the least number of validators that can reach the threshold of
// the set. For a weighted set those are the heaviest ones.
func (s *ValidatorSet) Required() (uint32, error) {
	if !s.Weighted {
		return RequiredApprovals(uint32(s.Len()), s.ThresholdPct)
	}
	required, err := RequiredWeight(s.TotalWeight, s.ThresholdPct)
	if err != nil {
		return 0, err
	}
	weights := make([]uint64, 0, s.Len())
	for _, v := range s.validators {
		weights = append(weights, v.Weight)
	}
	sort.Slice(weights, func(i, j int) bool { return weights[i] > weights[j] })

	sum := new(uint256.Int)
	for i, w := range weights {
		sum.AddUint64(sum, w)
		if sum.Cmp(required) >= 0 {
			return uint32(i + 1), nil
		}
	}
	return uint32(len(weights)), nil
}

// Engine checks signature sets against the validators of a provider
type Engine struct {
	provider ValidatorSetProvider
}

func NewEngine(provider ValidatorSetProvider) *Engine {
	return &Engine{provider: provider}
}

// Required returns the number of distinct validators needed by the current set
func (e *Engine) Required(ctx context.Context) (uint32, error) {
	set, err := e.provider.ValidatorSet(ctx)
	if err != nil {
		return 0, err
	}
	return set.Required()
}

// Count tallies signatures over hash against the current set and reports
// whether they reach its threshold
func (e *Engine) Count(ctx context.Context, hash common.Hash, signatures []pkg.ValidatorSignature) (Tally, bool, error) {
	set, err := e.provider.ValidatorSet(ctx)
	if err != nil {
		return Tally{}, false, err
	}
	tally := VerifyValidatorSignatures(hash, signatures, set)
	met, err := set.Met(tally)
	if err != nil {
		return tally, false, err
	}
	return tally, met, nil
}

// Check is Count failing with ErrInsufficientSignatures when the threshold is not reached
func (e *Engine) Check(ctx context.Context, hash common.Hash, signatures []pkg.ValidatorSignature) (Tally, error) {
	tally, met, err := e.Count(ctx, hash, signatures)
	if err != nil {
		return tally, err
	}
	if !met {
		return tally, pkg.ErrInsufficientSignatures
	}
	return tally, nil
}

// Validate verifies a single signature against the current set
func (e *Engine) Validate(ctx context.Context, hash common.Hash, sig pkg.ValidatorSignature) error {
	set, err := e.provider.ValidatorSet(ctx)
	if err != nil {
		return err
	}
	validator, ok := set.Get(sig.Validator)
	if !ok {
		return pkg.ErrUnknownValidator
	}
	valid, err := VerifySignature(hash, sig.Signature, sig.RecoveryID, validator.PublicKey)
	if err != nil {
		return err
	}
	if !valid {
		return pkg.ErrInvalidSignature
	}
	return nil
}
