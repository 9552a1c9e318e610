package bridge

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/threefoldtech/vaultbridge/pkg"
	"github.com/threefoldtech/vaultbridge/pkg/merkle"
	"github.com/threefoldtech/vaultbridge/pkg/store"
)

// PublishBatch commits the given locks into a new merkle tree whose root
// replaces the bridge root. Every lock of the batch gets its proof attached.
func (bridge *Bridge) PublishBatch(ctx context.Context, admin string, txHashes []common.Hash) (common.Hash, error) {
	bridge.mut.Lock()
	defer bridge.mut.Unlock()

	root, err := bridge.publishBatch(admin, txHashes)
	if err != nil {
		return common.Hash{}, reject("publish_batch", err)
	}
	log.Info().Str("root", root.Hex()).Int("leaves", len(txHashes)).Msg("batch published")
	return root, nil
}

func (bridge *Bridge) publishBatch(admin string, txHashes []common.Hash) (common.Hash, error) {
	if err := bridge.authorize(admin); err != nil {
		return common.Hash{}, err
	}
	state, err := bridge.store.State()
	if err != nil {
		return common.Hash{}, err
	}
	if err := operational(state); err != nil {
		return common.Hash{}, err
	}
	if len(txHashes) == 0 {
		return common.Hash{}, pkg.ErrEmptyLeaves
	}

	records := make([]*pkg.LockRecord, 0, len(txHashes))
	leaves := make([]common.Hash, 0, len(txHashes))
	for _, txHash := range txHashes {
		rec, err := bridge.getLock(txHash)
		if err != nil {
			return common.Hash{}, err
		}
		if rec.Processed {
			return common.Hash{}, errors.Wrapf(pkg.ErrAlreadyProcessed, "lock %s", txHash.Hex())
		}
		if rec.Status.IsTerminal() {
			return common.Hash{}, errors.Wrapf(pkg.ErrInvalidTransition, "lock %s is %s", txHash.Hex(), rec.Status)
		}
		records = append(records, rec)
		leaves = append(leaves, merkle.LeafHash(rec.TxHash, rec.SourceChain, rec.Amount, rec.Recipient, rec.DestinationChain))
	}

	tree, err := merkle.NewTree(leaves)
	if err != nil {
		return common.Hash{}, err
	}
	root := tree.Root()

	cs := store.NewChangeset(state)
	for i, rec := range records {
		proof, err := tree.Proof(i)
		if err != nil {
			return common.Hash{}, err
		}
		rec.MerkleRoot = root
		rec.Proof = proof
		rec.LeafIndex = uint64(i)
		cs.PutLock(rec)
	}
	cs.State.MerkleRoot = root
	if err := bridge.commit(cs); err != nil {
		return common.Hash{}, err
	}
	return root, nil
}

// SetMerkleRoot replaces the bridge root with one computed elsewhere
func (bridge *Bridge) SetMerkleRoot(ctx context.Context, admin string, root common.Hash) error {
	bridge.mut.Lock()
	defer bridge.mut.Unlock()

	if err := bridge.authorize(admin); err != nil {
		return reject("set_merkle_root", err)
	}
	state, err := bridge.store.State()
	if err != nil {
		return err
	}
	cs := store.NewChangeset(state)
	cs.State.MerkleRoot = root
	if err := bridge.commit(cs); err != nil {
		return reject("set_merkle_root", err)
	}
	log.Info().Str("root", root.Hex()).Msg("merkle root updated")
	return nil
}
