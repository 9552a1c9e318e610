package disk

import (
	"encoding/binary"
	"encoding/json"
	"sync"

	"github.com/cockroachdb/pebble"
	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
	"github.com/threefoldtech/vaultbridge/pkg"
	"github.com/threefoldtech/vaultbridge/pkg/store"
)

var (
	stateKey      = []byte("s/state")
	lockPrefix    = []byte("l/")
	noncePrefix   = []byte("n/")
	balancePrefix = []byte("b/")
	windowPrefix  = []byte("r/")
)

// Store persists bridge state in a pebble database. Values are json encoded,
// every commit is a single synced batch.
type Store struct {
	db *pebble.DB
	// serializes commits so the version check and the write are atomic
	mu sync.Mutex
}

// Open opens or creates the database at path
func Open(path string, opts *pebble.Options) (*Store, error) {
	db, err := pebble.Open(path, opts)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open store at %s", path)
	}
	return &Store{db: db}, nil
}

func key(prefix []byte, suffix []byte) []byte {
	k := make([]byte, 0, len(prefix)+len(suffix))
	k = append(k, prefix...)
	return append(k, suffix...)
}

func nonceKey(nonce uint64) []byte {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], nonce)
	return key(noncePrefix, b[:])
}

func (s *Store) get(k []byte, v interface{}) error {
	data, closer, err := s.db.Get(k)
	if errors.Is(err, pebble.ErrNotFound) {
		return store.ErrNotFound
	} else if err != nil {
		return errors.Wrapf(err, "failed to read %s", k)
	}
	defer closer.Close()
	if err := json.Unmarshal(data, v); err != nil {
		return errors.Wrapf(err, "failed to decode %s", k)
	}
	return nil
}

func (s *Store) State() (*pkg.BridgeState, error) {
	var state pkg.BridgeState
	if err := s.get(stateKey, &state); err != nil {
		return nil, err
	}
	return &state, nil
}

func (s *Store) Lock(txHash common.Hash) (*pkg.LockRecord, error) {
	var rec pkg.LockRecord
	if err := s.get(key(lockPrefix, txHash[:]), &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

func (s *Store) LockByNonce(nonce uint64) (*pkg.LockRecord, error) {
	data, closer, err := s.db.Get(nonceKey(nonce))
	if errors.Is(err, pebble.ErrNotFound) {
		return nil, store.ErrNotFound
	} else if err != nil {
		return nil, errors.Wrapf(err, "failed to read nonce %d", nonce)
	}
	hash := common.BytesToHash(data)
	closer.Close()
	return s.Lock(hash)
}

// Locks walks the nonce index so records come out in nonce order
func (s *Store) Locks() ([]*pkg.LockRecord, error) {
	iter, err := s.db.NewIter(&pebble.IterOptions{
		LowerBound: noncePrefix,
		UpperBound: []byte("n0"),
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to iterate locks")
	}
	defer iter.Close()

	var out []*pkg.LockRecord
	for iter.First(); iter.Valid(); iter.Next() {
		rec, err := s.Lock(common.BytesToHash(iter.Value()))
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}

func (s *Store) Balance(account string) (uint64, error) {
	data, closer, err := s.db.Get(key(balancePrefix, []byte(account)))
	if errors.Is(err, pebble.ErrNotFound) {
		return 0, nil
	} else if err != nil {
		return 0, errors.Wrapf(err, "failed to read balance of %s", account)
	}
	defer closer.Close()
	if len(data) != 8 {
		return 0, errors.Errorf("corrupted balance of %s", account)
	}
	return binary.BigEndian.Uint64(data), nil
}

func (s *Store) RateWindow(user string) (*pkg.RateWindow, error) {
	var w pkg.RateWindow
	err := s.get(key(windowPrefix, []byte(user)), &w)
	if errors.Is(err, store.ErrNotFound) {
		return &pkg.RateWindow{User: user}, nil
	} else if err != nil {
		return nil, err
	}
	return &w, nil
}

func (s *Store) Commit(cs store.Changeset) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var current uint64
	state, err := s.State()
	switch {
	case err == nil:
		current = state.Version
	case errors.Is(err, store.ErrNotFound):
		state = &pkg.BridgeState{}
	default:
		return err
	}
	if cs.Version != current {
		return store.ErrVersionConflict
	}
	if cs.State != nil {
		state = cs.State.Clone()
	}
	state.Version = cs.Version + 1

	batch := s.db.NewBatch()
	defer batch.Close()

	if err := setJSON(batch, stateKey, state); err != nil {
		return err
	}
	for _, rec := range cs.Locks {
		if err := setJSON(batch, key(lockPrefix, rec.TxHash[:]), rec); err != nil {
			return err
		}
		if err := batch.Set(nonceKey(rec.Nonce), rec.TxHash[:], nil); err != nil {
			return errors.Wrap(err, "failed to index lock")
		}
	}
	for account, balance := range cs.Balances {
		var b [8]byte
		binary.BigEndian.PutUint64(b[:], balance)
		if err := batch.Set(key(balancePrefix, []byte(account)), b[:], nil); err != nil {
			return errors.Wrap(err, "failed to write balance")
		}
	}
	for _, w := range cs.Windows {
		if err := setJSON(batch, key(windowPrefix, []byte(w.User)), w); err != nil {
			return err
		}
	}
	return errors.Wrap(batch.Commit(pebble.Sync), "failed to commit batch")
}

func setJSON(batch *pebble.Batch, k []byte, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return errors.Wrapf(err, "failed to encode %s", k)
	}
	return errors.Wrapf(batch.Set(k, data, nil), "failed to write %s", k)
}

func (s *Store) Close() error {
	return s.db.Close()
}
