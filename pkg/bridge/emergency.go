package bridge

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
	"github.com/rs/zerolog/log"
	"github.com/threefoldtech/vaultbridge/pkg"
	"github.com/threefoldtech/vaultbridge/pkg/events"
	"github.com/threefoldtech/vaultbridge/pkg/merkle"
	"github.com/threefoldtech/vaultbridge/pkg/metrics"
	"github.com/threefoldtech/vaultbridge/pkg/store"
)

type EmergencyLockRequest struct {
	Admin string
	// current TOTP code of the emergency secret
	Code             string
	User             string
	Amount           uint64
	DestinationChain uint64
	Recipient        string
}

// EmergencyLock escrows funds without fee and with minimal validation. It is
// only available to the admin, with emergency mode switched on and a valid
// one time code.
func (bridge *Bridge) EmergencyLock(ctx context.Context, req EmergencyLockRequest) (*pkg.LockRecord, error) {
	bridge.mut.Lock()
	defer bridge.mut.Unlock()

	rec, err := bridge.emergencyLock(req)
	if err != nil {
		return nil, reject("emergency_lock", err)
	}

	log.Warn().Str("tx", rec.TxHash.Hex()).Str("user", rec.User).Uint64("amount", rec.Amount).Str("admin", req.Admin).Msg("emergency lock")
	metrics.EmergencyLocksTotal.Inc()
	bridge.emit(ctx, events.EmergencyLockEvent{
		User:             rec.User,
		Amount:           rec.Amount,
		DestinationChain: rec.DestinationChain,
		Recipient:        rec.Recipient,
		TransactionID:    rec.TxHash,
		Admin:            req.Admin,
		Timestamp:        rec.LockedAt,
	})
	return rec, nil
}

func (bridge *Bridge) emergencyLock(req EmergencyLockRequest) (*pkg.LockRecord, error) {
	if err := bridge.authorize(req.Admin); err != nil {
		return nil, err
	}
	state, err := bridge.store.State()
	if err != nil {
		return nil, err
	}
	if err := operational(state); err != nil {
		return nil, err
	}
	if !bridge.config.Emergency.Enabled || !state.EmergencyMode {
		return nil, pkg.ErrEmergencyModeDisabled
	}
	if !bridge.validCode(req.Code) {
		return nil, pkg.ErrInvalidEmergencyCode
	}
	if req.Amount == 0 {
		return nil, pkg.ErrInvalidAmount
	}

	now := bridge.now()
	cs := store.NewChangeset(state)
	st := cs.State
	nonce, err := pkg.AddU64(st.LastNonce, 1)
	if err != nil {
		return nil, err
	}
	rec := &pkg.LockRecord{
		TxHash:           merkle.TransactionHash(st.ChainID, req.DestinationChain, req.User, req.Amount, req.Recipient, nonce, now),
		User:             req.User,
		Amount:           req.Amount,
		SourceChain:      st.ChainID,
		DestinationChain: req.DestinationChain,
		Recipient:        req.Recipient,
		Nonce:            nonce,
		LockedAt:         now,
		Status:           pkg.StatusEmergencyLocked,
		Timelock:         pkg.TimelockEmergency,
	}

	if err := cs.Transfer(bridge.store, req.User, bridge.config.Vault, req.Amount); err != nil {
		return nil, err
	}
	if st.TotalLocked, err = pkg.AddU64(st.TotalLocked, req.Amount); err != nil {
		return nil, err
	}
	if st.TxCount, err = pkg.AddU64(st.TxCount, 1); err != nil {
		return nil, err
	}
	st.LastNonce = nonce

	cs.PutLock(rec)
	if err := bridge.commit(cs); err != nil {
		return nil, err
	}
	return rec, nil
}

// validCode checks code against the emergency secret at the bridge clock,
// accepting the previous and next 30s step
func (bridge *Bridge) validCode(code string) bool {
	valid, err := totp.ValidateCustom(code, bridge.config.Emergency.TOTPSecret, bridge.clock.Now(), totp.ValidateOpts{
		Period:    30,
		Skew:      1,
		Digits:    otp.DigitsSix,
		Algorithm: otp.AlgorithmSHA1,
	})
	if err != nil {
		log.Debug().Err(err).Msg("emergency code rejected")
		return false
	}
	return valid
}

// SetEmergencyMode switches the emergency path on or off
func (bridge *Bridge) SetEmergencyMode(ctx context.Context, admin string, enabled bool) error {
	return bridge.updateFlags("set_emergency_mode", admin, func(st *pkg.BridgeState) {
		st.EmergencyMode = enabled
	})
}

// Pause stops every protocol operation until Resume
func (bridge *Bridge) Pause(ctx context.Context, admin string) error {
	return bridge.updateFlags("pause", admin, func(st *pkg.BridgeState) {
		st.Paused = true
	})
}

func (bridge *Bridge) Resume(ctx context.Context, admin string) error {
	return bridge.updateFlags("resume", admin, func(st *pkg.BridgeState) {
		st.Paused = false
	})
}

func (bridge *Bridge) updateFlags(operation, admin string, update func(st *pkg.BridgeState)) error {
	bridge.mut.Lock()
	defer bridge.mut.Unlock()

	if err := bridge.authorize(admin); err != nil {
		return reject(operation, err)
	}
	state, err := bridge.store.State()
	if err != nil {
		return err
	}
	cs := store.NewChangeset(state)
	update(cs.State)
	if err := bridge.commit(cs); err != nil {
		return reject(operation, err)
	}
	log.Info().Str("operation", operation).Bool("paused", cs.State.Paused).Bool("emergency", cs.State.EmergencyMode).Msg("bridge flags updated")
	return nil
}

// FlagSuspicious forces the emergency timelock on a lock that was not released yet
func (bridge *Bridge) FlagSuspicious(ctx context.Context, admin string, txHash common.Hash) error {
	bridge.mut.Lock()
	defer bridge.mut.Unlock()

	if err := bridge.flagSuspicious(admin, txHash); err != nil {
		return reject("flag_suspicious", err)
	}
	log.Warn().Str("tx", txHash.Hex()).Msg("lock flagged as suspicious")
	return nil
}

func (bridge *Bridge) flagSuspicious(admin string, txHash common.Hash) error {
	if err := bridge.authorize(admin); err != nil {
		return err
	}
	state, err := bridge.store.State()
	if err != nil {
		return err
	}
	rec, err := bridge.getLock(txHash)
	if err != nil {
		return err
	}
	if rec.Processed {
		return pkg.ErrAlreadyProcessed
	}
	if rec.Status.IsTerminal() {
		return pkg.ErrInvalidTransition
	}
	rec.Suspicious = true
	rec.Timelock = bridge.timelocks.Select(rec.Amount, true)

	cs := store.NewChangeset(state)
	cs.PutLock(rec)
	return bridge.commit(cs)
}
