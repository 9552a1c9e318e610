package chains

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
	"github.com/threefoldtech/vaultbridge/pkg"
)

// Family decides how recipients on a chain are validated
type Family string

const (
	FamilyEVM       Family = "evm"
	FamilyStellar   Family = "stellar"
	FamilySubstrate Family = "substrate"
	FamilyOpaque    Family = "opaque"
)

// Chain is a chain the bridge can send to
type Chain struct {
	ID            uint64
	Name          string
	Family        Family
	FeeMultiplier uint64
}

// Registry holds the supported destination chains
type Registry struct {
	self   uint64
	chains map[uint64]Chain
}

// NewRegistry builds the registry of the bridge running on chain self
func NewRegistry(self uint64, configs []pkg.ChainConfig) (*Registry, error) {
	r := &Registry{
		self:   self,
		chains: make(map[uint64]Chain, len(configs)),
	}
	for _, cfg := range configs {
		family := Family(cfg.Family)
		switch family {
		case FamilyEVM, FamilyStellar, FamilySubstrate, FamilyOpaque:
		default:
			return nil, errors.Errorf("chain %d has unknown family %q", cfg.ID, cfg.Family)
		}
		r.chains[cfg.ID] = Chain{
			ID:            cfg.ID,
			Name:          cfg.Name,
			Family:        family,
			FeeMultiplier: cfg.FeeMultiplier,
		}
	}
	return r, nil
}

func (r *Registry) Get(id uint64) (Chain, bool) {
	c, ok := r.chains[id]
	return c, ok
}

// IsSupported reports whether transfers to id are allowed, never to the bridge's own chain
func (r *Registry) IsSupported(id uint64) bool {
	if id == r.self {
		return false
	}
	_, ok := r.chains[id]
	return ok
}

// ValidateRecipient checks recipient against the length bound and the address
// format of the destination chain
func (r *Registry) ValidateRecipient(id uint64, recipient string, maxLength int) error {
	if len(recipient) == 0 || len(recipient) > maxLength {
		return pkg.ErrInvalidRecipient
	}
	chain, ok := r.chains[id]
	if !ok {
		return pkg.ErrUnsupportedChain
	}
	var err error
	switch chain.Family {
	case FamilyEVM:
		if !common.IsHexAddress(recipient) {
			err = errors.Errorf("%s is not a valid hex address", recipient)
		}
	case FamilyStellar:
		_, err = StellarPublicKey(recipient)
	case FamilySubstrate:
		_, err = SubstratePublicKey(recipient)
	}
	if err != nil {
		return errors.Wrap(pkg.ErrInvalidRecipient, err.Error())
	}
	return nil
}
