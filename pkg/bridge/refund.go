package bridge

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog/log"
	"github.com/threefoldtech/vaultbridge/pkg"
	"github.com/threefoldtech/vaultbridge/pkg/events"
	"github.com/threefoldtech/vaultbridge/pkg/store"
)

// Cancel lets the owner of a lock take it back before it was released
func (bridge *Bridge) Cancel(ctx context.Context, user string, txHash common.Hash) (*pkg.LockRecord, error) {
	return bridge.refund(ctx, "cancel", txHash, pkg.EventCancel, func(state *pkg.BridgeState, rec *pkg.LockRecord) error {
		if err := operational(state); err != nil {
			return err
		}
		if rec.User != user {
			return pkg.ErrUnauthorized
		}
		if rec.Status != pkg.StatusPending && rec.Status != pkg.StatusValidated {
			return pkg.ErrInvalidTransition
		}
		return nil
	})
}

// Fail marks a lock as failed on behalf of the admin
func (bridge *Bridge) Fail(ctx context.Context, admin string, txHash common.Hash) (*pkg.LockRecord, error) {
	return bridge.refund(ctx, "fail", txHash, pkg.EventFail, func(state *pkg.BridgeState, rec *pkg.LockRecord) error {
		return bridge.authorize(admin)
	})
}

// Expire refunds a lock that stayed unreleased for longer than the expiry age.
// Anyone can call it.
func (bridge *Bridge) Expire(ctx context.Context, txHash common.Hash) (*pkg.LockRecord, error) {
	return bridge.refund(ctx, "expire", txHash, pkg.EventExpire, func(state *pkg.BridgeState, rec *pkg.LockRecord) error {
		if err := operational(state); err != nil {
			return err
		}
		age := bridge.config.Limits.ExpiryAge
		if age <= 0 || bridge.now()-rec.LockedAt < age {
			return pkg.ErrLockNotExpired
		}
		return nil
	})
}

// refund moves a lock to a terminal status and returns its amount from the
// vault to the user. The fee stays collected.
func (bridge *Bridge) refund(ctx context.Context, operation string, txHash common.Hash, ev pkg.Event, check func(*pkg.BridgeState, *pkg.LockRecord) error) (*pkg.LockRecord, error) {
	bridge.mut.Lock()
	defer bridge.mut.Unlock()

	rec, from, err := bridge.applyRefund(txHash, ev, check)
	if err != nil {
		return nil, reject(operation, err)
	}

	log.Info().Str("tx", txHash.Hex()).Str("from", from.String()).Str("to", rec.Status.String()).Uint64("refunded", rec.Amount).Msg("lock refunded")
	bridge.emit(ctx, events.StatusEvent{
		TxHash:    rec.TxHash,
		From:      from,
		To:        rec.Status,
		Refunded:  rec.Amount,
		Timestamp: bridge.now(),
	})
	return rec, nil
}

func (bridge *Bridge) applyRefund(txHash common.Hash, ev pkg.Event, check func(*pkg.BridgeState, *pkg.LockRecord) error) (*pkg.LockRecord, pkg.Status, error) {
	state, err := bridge.store.State()
	if err != nil {
		return nil, 0, err
	}
	rec, err := bridge.getLock(txHash)
	if err != nil {
		return nil, 0, err
	}
	if rec.Processed {
		return nil, 0, pkg.ErrAlreadyProcessed
	}
	if err := check(state, rec); err != nil {
		return nil, 0, err
	}

	from := rec.Status
	if err := rec.Apply(ev); err != nil {
		return nil, 0, err
	}

	cs := store.NewChangeset(state)
	st := cs.State
	if err := cs.Transfer(bridge.store, bridge.config.Vault, rec.User, rec.Amount); err != nil {
		return nil, 0, err
	}
	if st.TotalLocked, err = pkg.SubU64(st.TotalLocked, rec.Amount); err != nil {
		return nil, 0, err
	}
	// emergency locks never entered the pending counters
	if from == pkg.StatusPending || from == pkg.StatusValidated {
		window, err := bridge.store.RateWindow(rec.User)
		if err != nil {
			return nil, 0, err
		}
		bridge.limiter.ReleasePending(st, window)
		cs.PutWindow(window)
	}

	cs.PutLock(rec)
	if err := bridge.commit(cs); err != nil {
		return nil, 0, err
	}
	return rec, from, nil
}
