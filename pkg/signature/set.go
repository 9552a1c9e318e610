package signature

import (
	"bytes"
	"sort"

	"github.com/ethereum/go-ethereum/common"
	"github.com/threefoldtech/vaultbridge/pkg"
)

// Set accumulates signatures across calls, at most one per validator
type Set struct {
	limit int
	sigs  map[common.Address]pkg.ValidatorSignature
}

// NewSet starts from existing signatures, which are copied
func NewSet(existing map[common.Address]pkg.ValidatorSignature, limit int) *Set {
	sigs := make(map[common.Address]pkg.ValidatorSignature, len(existing))
	for k, v := range existing {
		sigs[k] = v
	}
	return &Set{limit: limit, sigs: sigs}
}

// Add inserts sig unless its validator already signed or the set is full
func (s *Set) Add(sig pkg.ValidatorSignature) error {
	if _, ok := s.sigs[sig.Validator]; ok {
		return pkg.ErrDuplicateSignature
	}
	if len(s.sigs) >= s.limit {
		return pkg.ErrTooManyValidators
	}
	s.sigs[sig.Validator] = sig
	return nil
}

func (s *Set) Len() int {
	return len(s.sigs)
}

func (s *Set) Map() map[common.Address]pkg.ValidatorSignature {
	return s.sigs
}

// Signatures returns the signatures ordered by validator address
func (s *Set) Signatures() []pkg.ValidatorSignature {
	out := make([]pkg.ValidatorSignature, 0, len(s.sigs))
	for _, sig := range s.sigs {
		out = append(out, sig)
	}
	sort.Slice(out, func(i, j int) bool {
		return bytes.Compare(out[i].Validator[:], out[j].Validator[:]) < 0
	})
	return out
}
