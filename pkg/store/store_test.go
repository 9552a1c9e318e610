package store_test

import (
	"testing"

	"github.com/cockroachdb/pebble"
	"github.com/cockroachdb/pebble/vfs"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/require"
	"github.com/threefoldtech/vaultbridge/pkg"
	"github.com/threefoldtech/vaultbridge/pkg/store"
	"github.com/threefoldtech/vaultbridge/pkg/store/disk"
	"github.com/threefoldtech/vaultbridge/pkg/store/memory"
)

func stores(t *testing.T) map[string]store.Store {
	db, err := disk.Open("bridge", &pebble.Options{FS: vfs.NewMem()})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return map[string]store.Store{
		"memory": memory.New(),
		"disk":   db,
	}
}

func record(nonce uint64) *pkg.LockRecord {
	hash := crypto.Keccak256Hash([]byte{byte(nonce)})
	return &pkg.LockRecord{
		TxHash:    hash,
		User:      "alice",
		Amount:    1000 * nonce,
		Nonce:     nonce,
		Recipient: "0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed",
		Proof:     []common.Hash{hash},
		Signatures: map[common.Address]pkg.ValidatorSignature{
			common.HexToAddress("0x01"): {Signature: []byte{1, 2, 3}, RecoveryID: 1},
		},
	}
}

func TestStore(t *testing.T) {
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			require := require.New(t)

			_, err := s.State()
			require.ErrorIs(err, store.ErrNotFound)
			_, err = s.Lock(common.Hash{})
			require.ErrorIs(err, store.ErrNotFound)

			balance, err := s.Balance("nobody")
			require.NoError(err)
			require.Zero(balance)

			window, err := s.RateWindow("alice")
			require.NoError(err)
			require.Equal("alice", window.User)

			cs := store.NewChangeset(&pkg.BridgeState{ChainID: 101, Active: true})
			require.NoError(cs.Credit(s, "alice", 5000))
			require.NoError(cs.Transfer(s, "alice", "vault", 2000))
			require.ErrorIs(cs.Transfer(s, "alice", "vault", 3001), pkg.ErrInsufficientBalance)
			cs.PutLock(record(2))
			cs.PutLock(record(1))
			cs.PutWindow(&pkg.RateWindow{User: "alice", Pending: 2})
			require.NoError(s.Commit(*cs))

			state, err := s.State()
			require.NoError(err)
			require.EqualValues(1, state.Version)
			require.True(state.Active)

			balance, err = s.Balance("alice")
			require.NoError(err)
			require.EqualValues(3000, balance)
			balance, err = s.Balance("vault")
			require.NoError(err)
			require.EqualValues(2000, balance)

			rec, err := s.Lock(record(1).TxHash)
			require.NoError(err)
			require.Equal(record(1), rec)

			rec, err = s.LockByNonce(2)
			require.NoError(err)
			require.Equal(record(2).TxHash, rec.TxHash)

			all, err := s.Locks()
			require.NoError(err)
			require.Len(all, 2)
			require.EqualValues(1, all[0].Nonce)
			require.EqualValues(2, all[1].Nonce)

			window, err = s.RateWindow("alice")
			require.NoError(err)
			require.EqualValues(2, window.Pending)
		})
	}
}

func TestStoreVersionConflict(t *testing.T) {
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			require := require.New(t)

			first := store.NewChangeset(&pkg.BridgeState{})
			second := store.NewChangeset(&pkg.BridgeState{})
			second.PutLock(record(1))

			require.NoError(s.Commit(*first))
			require.ErrorIs(s.Commit(*second), store.ErrVersionConflict)

			_, err := s.Lock(record(1).TxHash)
			require.ErrorIs(err, store.ErrNotFound)

			state, err := s.State()
			require.NoError(err)
			retry := store.NewChangeset(state)
			retry.PutLock(record(1))
			require.NoError(s.Commit(*retry))

			state, err = s.State()
			require.NoError(err)
			require.EqualValues(2, state.Version)
		})
	}
}

func TestStoreReturnsCopies(t *testing.T) {
	s := memory.New()
	require := require.New(t)

	cs := store.NewChangeset(&pkg.BridgeState{})
	cs.PutLock(record(1))
	require.NoError(s.Commit(*cs))

	rec, err := s.Lock(record(1).TxHash)
	require.NoError(err)
	rec.Processed = true
	rec.Proof[0] = common.Hash{}

	again, err := s.Lock(record(1).TxHash)
	require.NoError(err)
	require.False(again.Processed)
	require.Equal(record(1).Proof, again.Proof)
}
