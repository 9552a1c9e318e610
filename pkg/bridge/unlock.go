package bridge

import (
	"context"
	"strconv"

	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog/log"
	"github.com/threefoldtech/vaultbridge/pkg"
	"github.com/threefoldtech/vaultbridge/pkg/events"
	"github.com/threefoldtech/vaultbridge/pkg/merkle"
	"github.com/threefoldtech/vaultbridge/pkg/metrics"
	"github.com/threefoldtech/vaultbridge/pkg/signature"
	"github.com/threefoldtech/vaultbridge/pkg/store"
)

type UnlockRequest struct {
	TxHash      common.Hash
	Amount      uint64
	Proof       [][]byte
	LeafIndex   uint64
	SourceChain uint64
	Recipient   string
	// signatures over the unlock message, added to the ones already
	// accumulated on the record
	Signatures []pkg.ValidatorSignature
}

// Unlock releases a locked amount, minus the unlock fee, to the recipient once
// the timelock passed, the lock is proven part of the published batch and
// enough validators approved it
func (bridge *Bridge) Unlock(ctx context.Context, req UnlockRequest) (*pkg.LockRecord, error) {
	bridge.mut.Lock()
	defer bridge.mut.Unlock()

	rec, fee, err := bridge.unlock(ctx, req)
	if err != nil {
		return nil, reject("unlock", err)
	}

	log.Info().Str("tx", rec.TxHash.Hex()).Str("recipient", req.Recipient).Uint64("amount", rec.UnlockedAmount).Uint64("fee", fee).Msg("tokens unlocked")
	metrics.UnlocksTotal.WithLabelValues(strconv.FormatUint(req.SourceChain, 10)).Inc()
	bridge.emit(ctx, events.UnlockEvent{
		TxHash:        rec.TxHash,
		SourceChainID: req.SourceChain,
		Recipient:     req.Recipient,
		UnlockAmount:  rec.UnlockedAmount,
		BridgeFee:     fee,
		Timestamp:     rec.UnlockedAt,
		MerkleRoot:    rec.MerkleRoot,
		LeafIndex:     rec.LeafIndex,
	})
	return rec, nil
}

func (bridge *Bridge) unlock(ctx context.Context, req UnlockRequest) (*pkg.LockRecord, uint64, error) {
	now := bridge.now()
	state, err := bridge.store.State()
	if err != nil {
		return nil, 0, err
	}
	if err := operational(state); err != nil {
		return nil, 0, err
	}
	rec, err := bridge.getLock(req.TxHash)
	if err != nil {
		return nil, 0, err
	}

	if rec.Processed {
		return nil, 0, pkg.ErrAlreadyProcessed
	}
	if rec.Status != pkg.StatusPending && rec.Status != pkg.StatusValidated {
		return nil, 0, pkg.ErrInvalidTransition
	}
	if req.Amount != rec.Amount {
		return nil, 0, pkg.ErrAmountMismatch
	}
	if err := bridge.timelocks.Check(rec.Timelock, rec.LockedAt, now, bridge.config.Limits.MaxUnlockWindow); err != nil {
		return nil, 0, err
	}

	proof, err := merkle.ParseProof(req.Proof)
	if err != nil {
		return nil, 0, err
	}
	leaf := merkle.LeafHash(req.TxHash, req.SourceChain, req.Amount, req.Recipient, rec.DestinationChain)
	if !merkle.VerifyProof(leaf, proof, state.MerkleRoot) {
		return nil, 0, pkg.ErrInvalidMerkleProof
	}

	message := signature.MessageHash(bridge.config.MessagePrefix, req.TxHash, req.Recipient, req.Amount, req.SourceChain)
	accumulated := signature.NewSet(rec.Signatures, pkg.MaxValidators).Signatures()
	tally, err := bridge.consensus.Check(ctx, message, append(accumulated, req.Signatures...))
	if err != nil {
		return nil, 0, err
	}

	cs := store.NewChangeset(state)
	st := cs.State
	if err := bridge.limiter.CheckUnlock(st, req.Amount, now); err != nil {
		return nil, 0, err
	}

	fee, err := bridge.fees.UnlockFee(req.Amount, rec.Timelock)
	if err != nil {
		return nil, 0, err
	}
	net, err := pkg.SubU64(req.Amount, fee)
	if err != nil {
		return nil, 0, err
	}
	if err := cs.Transfer(bridge.store, bridge.config.Vault, req.Recipient, net); err != nil {
		return nil, 0, err
	}

	if rec.Status == pkg.StatusPending {
		if err := rec.Apply(pkg.EventValidate); err != nil {
			return nil, 0, err
		}
	}
	if err := rec.Apply(pkg.EventExecute); err != nil {
		return nil, 0, err
	}
	if err := rec.Apply(pkg.EventComplete); err != nil {
		return nil, 0, err
	}
	rec.Processed = true
	rec.UnlockedAt = now
	rec.UnlockedAmount = net
	rec.Signatures = approvals(tally)
	rec.Confirmations = tally.Count
	rec.MerkleRoot = state.MerkleRoot
	rec.Proof = proof
	rec.LeafIndex = req.LeafIndex

	if st.TotalUnlocked, err = pkg.AddU64(st.TotalUnlocked, req.Amount); err != nil {
		return nil, 0, err
	}
	if err := bridge.collectFee(st, fee); err != nil {
		return nil, 0, err
	}
	if err := bridge.limiter.RecordUnlock(st, req.Amount); err != nil {
		return nil, 0, err
	}
	window, err := bridge.store.RateWindow(rec.User)
	if err != nil {
		return nil, 0, err
	}
	bridge.limiter.ReleasePending(st, window)

	cs.PutLock(rec)
	cs.PutWindow(window)
	if err := bridge.commit(cs); err != nil {
		return nil, 0, err
	}
	return rec, fee, nil
}

// approvals keeps the signatures that carried the unlock. Stored ones from
// validators that left the set are dropped.
func approvals(tally signature.Tally) map[common.Address]pkg.ValidatorSignature {
	out := make(map[common.Address]pkg.ValidatorSignature, len(tally.Signatures))
	for _, sig := range tally.Signatures {
		out[sig.Validator] = sig
	}
	return out
}
