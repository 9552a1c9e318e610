package bridge

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog/log"
	"github.com/threefoldtech/vaultbridge/pkg"
	"github.com/threefoldtech/vaultbridge/pkg/metrics"
	"github.com/threefoldtech/vaultbridge/pkg/signature"
	"github.com/threefoldtech/vaultbridge/pkg/store"
)

// SubmitSignature adds the signature of a validator over the unlock message of
// a lock. The lock becomes validated once enough distinct validators signed.
func (bridge *Bridge) SubmitSignature(ctx context.Context, txHash common.Hash, sig pkg.ValidatorSignature) (*pkg.LockRecord, error) {
	bridge.mut.Lock()
	defer bridge.mut.Unlock()

	rec, err := bridge.submitSignature(ctx, txHash, sig)
	if err != nil {
		return nil, reject("submit_signature", err)
	}
	metrics.SignaturesAccepted.Inc()
	log.Info().Str("tx", txHash.Hex()).Str("validator", sig.Validator.Hex()).Uint32("confirmations", rec.Confirmations).Msg("signature accepted")
	return rec, nil
}

func (bridge *Bridge) submitSignature(ctx context.Context, txHash common.Hash, sig pkg.ValidatorSignature) (*pkg.LockRecord, error) {
	state, err := bridge.store.State()
	if err != nil {
		return nil, err
	}
	if err := operational(state); err != nil {
		return nil, err
	}
	rec, err := bridge.getLock(txHash)
	if err != nil {
		return nil, err
	}
	if rec.Processed {
		return nil, pkg.ErrAlreadyProcessed
	}
	if rec.Status != pkg.StatusPending && rec.Status != pkg.StatusValidated {
		return nil, pkg.ErrInvalidTransition
	}

	message := signature.MessageHash(bridge.config.MessagePrefix, rec.TxHash, rec.Recipient, rec.Amount, rec.SourceChain)
	if err := bridge.consensus.Validate(ctx, message, sig); err != nil {
		return nil, err
	}
	set := signature.NewSet(rec.Signatures, pkg.MaxValidators)
	if err := set.Add(sig); err != nil {
		return nil, err
	}
	rec.Signatures = set.Map()

	// only validators of the current set count
	tally, met, err := bridge.consensus.Count(ctx, message, set.Signatures())
	if err != nil {
		return nil, err
	}
	rec.Confirmations = tally.Count
	if met && rec.Status == pkg.StatusPending {
		if err := rec.Apply(pkg.EventValidate); err != nil {
			return nil, err
		}
	}

	cs := store.NewChangeset(state)
	cs.PutLock(rec)
	if err := bridge.commit(cs); err != nil {
		return nil, err
	}
	return rec, nil
}
