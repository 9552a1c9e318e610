package bridge

import (
	"context"
	"strconv"

	"github.com/rs/zerolog/log"
	"github.com/threefoldtech/vaultbridge/pkg"
	"github.com/threefoldtech/vaultbridge/pkg/events"
	"github.com/threefoldtech/vaultbridge/pkg/fees"
	"github.com/threefoldtech/vaultbridge/pkg/merkle"
	"github.com/threefoldtech/vaultbridge/pkg/metrics"
	"github.com/threefoldtech/vaultbridge/pkg/store"
)

type LockRequest struct {
	User             string
	Amount           uint64
	DestinationChain uint64
	Recipient        string
	// replay nonce of the user, zero takes the next one
	Nonce uint64
}

// Lock escrows amount plus fee from the user into the vault and records a
// pending transfer towards the destination chain
func (bridge *Bridge) Lock(ctx context.Context, req LockRequest) (*pkg.LockRecord, error) {
	bridge.mut.Lock()
	defer bridge.mut.Unlock()

	rec, err := bridge.lock(ctx, req)
	if err != nil {
		return nil, reject("lock", err)
	}

	log.Info().Str("tx", rec.TxHash.Hex()).Str("user", rec.User).Uint64("amount", rec.Amount).Uint64("fee", rec.Fee).Msg("tokens locked")
	metrics.LocksTotal.WithLabelValues(strconv.FormatUint(rec.DestinationChain, 10)).Inc()
	metrics.LockedAmount.Add(float64(rec.Amount))
	bridge.emit(ctx, events.LockEvent{
		User:             rec.User,
		Amount:           rec.Amount,
		Fee:              rec.Fee,
		DestinationChain: rec.DestinationChain,
		Recipient:        rec.Recipient,
		TransactionID:    rec.TxHash,
		Nonce:            rec.Nonce,
		Timestamp:        rec.LockedAt,
	})
	return rec, nil
}

func (bridge *Bridge) lock(ctx context.Context, req LockRequest) (*pkg.LockRecord, error) {
	now := bridge.now()
	state, err := bridge.store.State()
	if err != nil {
		return nil, err
	}
	if err := operational(state); err != nil {
		return nil, err
	}

	limits := bridge.config.Limits
	if req.Amount < limits.MinLockAmount {
		return nil, pkg.ErrAmountTooSmall
	}
	if req.Amount > limits.MaxLockAmount {
		return nil, pkg.ErrAmountTooLarge
	}

	kind := bridge.timelocks.Select(req.Amount, false)
	fee, err := bridge.fees.LockFee(req.User, req.Amount, req.DestinationChain, kind)
	if err != nil {
		return nil, err
	}
	total, err := pkg.AddU64(req.Amount, fee)
	if err != nil {
		return nil, err
	}
	balance, err := bridge.store.Balance(req.User)
	if err != nil {
		return nil, err
	}
	if balance < total {
		return nil, pkg.ErrInsufficientBalance
	}

	if !bridge.registry.IsSupported(req.DestinationChain) {
		return nil, pkg.ErrUnsupportedChain
	}
	if err := bridge.registry.ValidateRecipient(req.DestinationChain, req.Recipient, limits.MaxRecipientLength); err != nil {
		return nil, err
	}

	cs := store.NewChangeset(state)
	st := cs.State
	window, err := bridge.store.RateWindow(req.User)
	if err != nil {
		return nil, err
	}
	bridge.limiter.ResetDaily(st, window, now)
	if err := bridge.limiter.CheckVolume(st, window, req.Amount); err != nil {
		return nil, err
	}
	if err := bridge.limiter.CheckInterval(window, now); err != nil {
		return nil, err
	}
	if err := bridge.limiter.CheckPending(st, window); err != nil {
		return nil, err
	}

	userNonce := req.Nonce
	if userNonce == 0 {
		userNonce = window.LastNonce + 1
	}
	if err := bridge.limiter.ValidateNonce(userNonce, window.LastNonce); err != nil {
		return nil, err
	}

	nonce, err := pkg.AddU64(st.LastNonce, 1)
	if err != nil {
		return nil, err
	}
	required, err := bridge.consensus.Required(ctx)
	if err != nil {
		return nil, err
	}

	rec := &pkg.LockRecord{
		TxHash:                merkle.TransactionHash(st.ChainID, req.DestinationChain, req.User, req.Amount, req.Recipient, nonce, now),
		User:                  req.User,
		Amount:                req.Amount,
		Fee:                   fee,
		SourceChain:           st.ChainID,
		DestinationChain:      req.DestinationChain,
		Recipient:             req.Recipient,
		Nonce:                 nonce,
		UserNonce:             userNonce,
		LockedAt:              now,
		Status:                pkg.StatusPending,
		Timelock:              kind,
		RequiredConfirmations: required,
	}

	if err := cs.Transfer(bridge.store, req.User, bridge.config.Vault, total); err != nil {
		return nil, err
	}
	if st.TotalLocked, err = pkg.AddU64(st.TotalLocked, req.Amount); err != nil {
		return nil, err
	}
	if err := bridge.collectFee(st, fee); err != nil {
		return nil, err
	}
	if st.TxCount, err = pkg.AddU64(st.TxCount, 1); err != nil {
		return nil, err
	}
	st.LastNonce = nonce
	if err := bridge.limiter.RecordLock(st, window, req.Amount, now); err != nil {
		return nil, err
	}
	window.LastNonce = userNonce

	cs.PutLock(rec)
	cs.PutWindow(window)
	if err := bridge.commit(cs); err != nil {
		return nil, err
	}
	return rec, nil
}

// collectFee adds fee to the collected total and its split
func (bridge *Bridge) collectFee(st *pkg.BridgeState, fee uint64) error {
	collected, err := pkg.AddU64(st.FeesCollected, fee)
	if err != nil {
		return err
	}
	shares, err := fees.AddShares(st.FeeShares, bridge.fees.Split(fee))
	if err != nil {
		return err
	}
	st.FeesCollected = collected
	st.FeeShares = shares
	return nil
}
