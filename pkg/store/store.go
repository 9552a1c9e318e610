package store

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/threefoldtech/vaultbridge/pkg"
)

var (
	// ErrNotFound is returned if an object is not found
	ErrNotFound = fmt.Errorf("object not found")
	// ErrVersionConflict is returned when the state changed since it was read
	ErrVersionConflict = fmt.Errorf("state version conflict")
)

// Changeset is everything an operation writes, applied all at once or not at all
type Changeset struct {
	// version of the state the changes were computed from
	Version uint64
	State   *pkg.BridgeState
	Locks   []*pkg.LockRecord
	// new balances by account
	Balances map[string]uint64
	Windows  []*pkg.RateWindow
}

// Store is the persistent account store of the bridge
type Store interface {
	// State returns ErrNotFound before the first commit
	State() (*pkg.BridgeState, error)
	Lock(txHash common.Hash) (*pkg.LockRecord, error)
	LockByNonce(nonce uint64) (*pkg.LockRecord, error)
	// Locks lists every record ordered by nonce
	Locks() ([]*pkg.LockRecord, error)
	// Balance of an unknown account is zero
	Balance(account string) (uint64, error)
	// RateWindow of an unknown user is an empty window
	RateWindow(user string) (*pkg.RateWindow, error)
	// Commit fails with ErrVersionConflict unless cs.Version is the stored version,
	// the stored version becomes cs.Version+1
	Commit(cs Changeset) error
	Close() error
}

// NewChangeset starts a changeset on top of state
func NewChangeset(state *pkg.BridgeState) *Changeset {
	return &Changeset{
		Version:  state.Version,
		State:    state.Clone(),
		Balances: make(map[string]uint64),
	}
}

// PutLock adds or replaces rec in the changeset
func (cs *Changeset) PutLock(rec *pkg.LockRecord) {
	for i, r := range cs.Locks {
		if r.TxHash == rec.TxHash {
			cs.Locks[i] = rec
			return
		}
	}
	cs.Locks = append(cs.Locks, rec)
}

// PutWindow adds or replaces w in the changeset
func (cs *Changeset) PutWindow(w *pkg.RateWindow) {
	for i, existing := range cs.Windows {
		if existing.User == w.User {
			cs.Windows[i] = w
			return
		}
	}
	cs.Windows = append(cs.Windows, w)
}

func (cs *Changeset) balance(s Store, account string) (uint64, error) {
	if b, ok := cs.Balances[account]; ok {
		return b, nil
	}
	return s.Balance(account)
}

// Transfer moves amount between accounts on top of the balances held by s
func (cs *Changeset) Transfer(s Store, from, to string, amount uint64) error {
	if amount == 0 || from == to {
		return nil
	}
	src, err := cs.balance(s, from)
	if err != nil {
		return err
	}
	src, err = pkg.SubU64(src, amount)
	if err != nil {
		return pkg.ErrInsufficientBalance
	}
	cs.Balances[from] = src
	dst, err := cs.balance(s, to)
	if err != nil {
		return err
	}
	dst, err = pkg.AddU64(dst, amount)
	if err != nil {
		return err
	}
	cs.Balances[to] = dst
	return nil
}

// Credit adds amount to account, used by the host to fund accounts
func (cs *Changeset) Credit(s Store, account string, amount uint64) error {
	b, err := cs.balance(s, account)
	if err != nil {
		return err
	}
	b, err = pkg.AddU64(b, amount)
	if err != nil {
		return err
	}
	cs.Balances[account] = b
	return nil
}
