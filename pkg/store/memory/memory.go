package memory

import (
	"sort"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/threefoldtech/vaultbridge/pkg"
	"github.com/threefoldtech/vaultbridge/pkg/store"
)

// Store is an in-memory store, values are copied in and out
type Store struct {
	mu       sync.RWMutex
	state    *pkg.BridgeState
	locks    map[common.Hash]*pkg.LockRecord
	nonces   map[uint64]common.Hash
	balances map[string]uint64
	windows  map[string]*pkg.RateWindow
}

func New() *Store {
	return &Store{
		locks:    make(map[common.Hash]*pkg.LockRecord),
		nonces:   make(map[uint64]common.Hash),
		balances: make(map[string]uint64),
		windows:  make(map[string]*pkg.RateWindow),
	}
}

func (s *Store) State() (*pkg.BridgeState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.state == nil {
		return nil, store.ErrNotFound
	}
	return s.state.Clone(), nil
}

func (s *Store) Lock(txHash common.Hash) (*pkg.LockRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.locks[txHash]
	if !ok {
		return nil, store.ErrNotFound
	}
	return rec.Clone(), nil
}

func (s *Store) LockByNonce(nonce uint64) (*pkg.LockRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	hash, ok := s.nonces[nonce]
	if !ok {
		return nil, store.ErrNotFound
	}
	return s.locks[hash].Clone(), nil
}

func (s *Store) Locks() ([]*pkg.LockRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*pkg.LockRecord, 0, len(s.locks))
	for _, rec := range s.locks {
		out = append(out, rec.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Nonce < out[j].Nonce })
	return out, nil
}

func (s *Store) Balance(account string) (uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.balances[account], nil
}

func (s *Store) RateWindow(user string) (*pkg.RateWindow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	w, ok := s.windows[user]
	if !ok {
		return &pkg.RateWindow{User: user}, nil
	}
	c := *w
	return &c, nil
}

func (s *Store) Commit(cs store.Changeset) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var current uint64
	if s.state != nil {
		current = s.state.Version
	}
	if cs.Version != current {
		return store.ErrVersionConflict
	}

	if cs.State != nil {
		s.state = cs.State.Clone()
	} else if s.state == nil {
		s.state = &pkg.BridgeState{}
	}
	s.state.Version = cs.Version + 1

	for _, rec := range cs.Locks {
		s.locks[rec.TxHash] = rec.Clone()
		s.nonces[rec.Nonce] = rec.TxHash
	}
	for account, balance := range cs.Balances {
		s.balances[account] = balance
	}
	for _, w := range cs.Windows {
		c := *w
		s.windows[w.User] = &c
	}
	return nil
}

func (s *Store) Close() error {
	return nil
}
