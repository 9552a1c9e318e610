package signature

import (
	"context"
	"crypto/ecdsa"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/pkg/errors"
	"github.com/threefoldtech/vaultbridge/pkg"
)

// Validator is a member of the validator set, identified by its address
type Validator struct {
	ID        common.Address
	PublicKey *ecdsa.PublicKey
	Weight    uint64
}

// ValidatorSet is a bounded set of validators for one epoch
type ValidatorSet struct {
	Epoch        uint64
	ThresholdPct uint64
	TotalWeight  uint64
	// consensus counts validator weights instead of validators
	Weighted bool

	validators []Validator
	index      map[common.Address]int
}

// NewValidatorSet builds a set, validators without a weight count as weight 1
func NewValidatorSet(epoch, thresholdPct uint64, validators []Validator) (*ValidatorSet, error) {
	if thresholdPct == 0 || thresholdPct > 100 {
		return nil, pkg.ErrInvalidThreshold
	}
	if len(validators) == 0 {
		return nil, pkg.ErrNoValidators
	}
	if len(validators) > pkg.MaxValidators {
		return nil, pkg.ErrTooManyValidators
	}
	set := &ValidatorSet{
		Epoch:        epoch,
		ThresholdPct: thresholdPct,
		validators:   make([]Validator, 0, len(validators)),
		index:        make(map[common.Address]int, len(validators)),
	}
	for _, v := range validators {
		if v.PublicKey == nil {
			return nil, errors.New("validator without public key")
		}
		v.ID = crypto.PubkeyToAddress(*v.PublicKey)
		if _, ok := set.index[v.ID]; ok {
			return nil, errors.Errorf("validator %s listed twice", v.ID.Hex())
		}
		if v.Weight == 0 {
			v.Weight = 1
		}
		total, err := pkg.AddU64(set.TotalWeight, v.Weight)
		if err != nil {
			return nil, err
		}
		set.TotalWeight = total
		set.index[v.ID] = len(set.validators)
		set.validators = append(set.validators, v)
	}
	return set, nil
}

// ValidatorSetFromConfig parses hex encoded public keys from the configuration
func ValidatorSetFromConfig(cfg pkg.ConsensusConfig) (*ValidatorSet, error) {
	validators := make([]Validator, 0, len(cfg.Validators))
	for i, vc := range cfg.Validators {
		pub, err := ParsePublicKey(vc.PublicKey)
		if err != nil {
			return nil, errors.Wrapf(err, "validator %d", i)
		}
		validators = append(validators, Validator{PublicKey: pub, Weight: vc.Weight})
	}
	set, err := NewValidatorSet(cfg.Epoch, cfg.ThresholdPct, validators)
	if err != nil {
		return nil, err
	}
	set.Weighted = cfg.Weighted
	return set, nil
}

// ParsePublicKey decodes a compressed or uncompressed secp256k1 key
func ParsePublicKey(hexKey string) (*ecdsa.PublicKey, error) {
	raw := common.FromHex(hexKey)
	switch len(raw) {
	case 33:
		return crypto.DecompressPubkey(raw)
	case 65:
		return crypto.UnmarshalPubkey(raw)
	default:
		return nil, errors.Errorf("invalid public key length %d", len(raw))
	}
}

func (s *ValidatorSet) Get(id common.Address) (Validator, bool) {
	i, ok := s.index[id]
	if !ok {
		return Validator{}, false
	}
	return s.validators[i], true
}

func (s *ValidatorSet) Len() int {
	return len(s.validators)
}

func (s *ValidatorSet) Validators() []Validator {
	return append([]Validator(nil), s.validators...)
}

// ValidatorSetProvider supplies the validators currently authorized to approve unlocks
type ValidatorSetProvider interface {
	ValidatorSet(ctx context.Context) (*ValidatorSet, error)
}

// StaticProvider always returns the same set
type StaticProvider struct {
	set *ValidatorSet
}

func NewStaticProvider(set *ValidatorSet) *StaticProvider {
	return &StaticProvider{set: set}
}

func (p *StaticProvider) ValidatorSet(ctx context.Context) (*ValidatorSet, error) {
	return p.set, nil
}
