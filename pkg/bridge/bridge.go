package bridge

import (
	"context"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/threefoldtech/vaultbridge/pkg"
	"github.com/threefoldtech/vaultbridge/pkg/chains"
	"github.com/threefoldtech/vaultbridge/pkg/events"
	"github.com/threefoldtech/vaultbridge/pkg/fees"
	"github.com/threefoldtech/vaultbridge/pkg/metrics"
	"github.com/threefoldtech/vaultbridge/pkg/ratelimit"
	"github.com/threefoldtech/vaultbridge/pkg/signature"
	"github.com/threefoldtech/vaultbridge/pkg/store"
	"github.com/threefoldtech/vaultbridge/pkg/timelock"
)

// Clock supplies the timestamp every time based rule is evaluated against
type Clock interface {
	Now() time.Time
}

type SystemClock struct{}

func (SystemClock) Now() time.Time {
	return time.Now()
}

// Bridge runs the lock / unlock protocol on top of a store. Every operation
// runs under the bridge mutex and commits all its changes at once.
type Bridge struct {
	mut        sync.Mutex
	config     *pkg.Config
	store      store.Store
	validators signature.ValidatorSetProvider
	consensus  *signature.Engine
	fees       *fees.Calculator
	limiter    *ratelimit.Limiter
	timelocks  timelock.Policy
	registry   *chains.Registry
	emitter    events.Emitter
	clock      Clock
}

type Option func(*Bridge)

func WithClock(clock Clock) Option {
	return func(b *Bridge) { b.clock = clock }
}

func WithEmitter(emitter events.Emitter) Option {
	return func(b *Bridge) { b.emitter = emitter }
}

func WithValidatorSetProvider(provider signature.ValidatorSetProvider) Option {
	return func(b *Bridge) { b.validators = provider }
}

func WithFeePolicy(policy fees.Policy) Option {
	return func(b *Bridge) {
		b.fees = fees.NewCalculator(b.config.Fees, b.config.Timelock.LargeThreshold, policy)
	}
}

func NewBridge(ctx context.Context, cfg pkg.Config, st store.Store, opts ...Option) (*Bridge, error) {
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid configuration")
	}

	registry, err := chains.NewRegistry(cfg.ChainID, cfg.Chains)
	if err != nil {
		return nil, err
	}

	bridge := &Bridge{
		config:    &cfg,
		store:     st,
		fees:      fees.NewCalculator(cfg.Fees, cfg.Timelock.LargeThreshold, fees.NewStaticPolicy(cfg)),
		limiter:   ratelimit.New(cfg.Limits, cfg.RateLimit),
		timelocks: timelock.NewPolicy(cfg.Timelock, cfg.Limits.MinLockDuration),
		registry:  registry,
		emitter:   events.Log{},
		clock:     SystemClock{},
	}
	for _, opt := range opts {
		opt(bridge)
	}

	if bridge.validators == nil {
		set, err := signature.ValidatorSetFromConfig(cfg.Consensus)
		if err != nil {
			return nil, errors.Wrap(err, "failed to load validator set")
		}
		bridge.validators = signature.NewStaticProvider(set)
	}
	bridge.consensus = signature.NewEngine(bridge.validators)

	if err := bridge.initState(ctx); err != nil {
		return nil, err
	}
	return bridge, nil
}

// initState writes the initial bridge state on first start
func (bridge *Bridge) initState(ctx context.Context) error {
	state, err := bridge.store.State()
	if err == nil {
		if state.ChainID != bridge.config.ChainID {
			return errors.Errorf("store belongs to chain %d, configured for chain %d", state.ChainID, bridge.config.ChainID)
		}
		log.Info().Uint64("version", state.Version).Msg("loaded bridge state")
		metrics.ObserveState(state)
		return nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return err
	}

	set, err := bridge.validators.ValidatorSet(ctx)
	if err != nil {
		return err
	}
	cs := store.NewChangeset(&pkg.BridgeState{})
	cs.State.ChainID = bridge.config.ChainID
	cs.State.Active = true
	cs.State.ValidatorCount = uint32(set.Len())
	if err := bridge.store.Commit(*cs); err != nil {
		return errors.Wrap(err, "failed to initialize bridge state")
	}
	log.Info().Uint64("chain", bridge.config.ChainID).Int("validators", set.Len()).Msg("initialized bridge state")
	return nil
}

func (bridge *Bridge) now() int64 {
	return bridge.clock.Now().Unix()
}

// operational fails when the bridge does not accept protocol calls
func operational(state *pkg.BridgeState) error {
	if !state.Active {
		return pkg.ErrBridgeInactive
	}
	if state.Paused {
		return pkg.ErrBridgePaused
	}
	return nil
}

func (bridge *Bridge) authorize(admin string) error {
	if bridge.config.Admin == "" || admin != bridge.config.Admin {
		return pkg.ErrUnauthorized
	}
	return nil
}

func (bridge *Bridge) getLock(txHash common.Hash) (*pkg.LockRecord, error) {
	rec, err := bridge.store.Lock(txHash)
	if errors.Is(err, store.ErrNotFound) {
		return nil, pkg.ErrTransactionUnknown
	}
	return rec, err
}

// commit writes cs and refreshes the state gauges
func (bridge *Bridge) commit(cs *store.Changeset) error {
	if err := bridge.store.Commit(*cs); err != nil {
		return errors.Wrap(err, "failed to commit changes")
	}
	metrics.ObserveState(cs.State)
	return nil
}

// emit publishes committed events, a failure does not undo the operation
func (bridge *Bridge) emit(ctx context.Context, event events.Event) {
	if err := bridge.emitter.Emit(ctx, event); err != nil {
		log.Err(err).Str("subject", event.Subject()).Msg("failed to emit event")
	}
}

// reject records a failed operation
func reject(operation string, err error) error {
	metrics.Reject(operation, err)
	log.Error().Err(err).Str("operation", operation).Msg("operation rejected")
	return err
}

// State returns the current bridge state
func (bridge *Bridge) State(ctx context.Context) (*pkg.BridgeState, error) {
	return bridge.store.State()
}

// GetLock returns the record of a lock
func (bridge *Bridge) GetLock(ctx context.Context, txHash common.Hash) (*pkg.LockRecord, error) {
	return bridge.getLock(txHash)
}

func (bridge *Bridge) Balance(ctx context.Context, account string) (uint64, error) {
	return bridge.store.Balance(account)
}

// Deposit credits an account, it is how the host ledger funds users
func (bridge *Bridge) Deposit(ctx context.Context, account string, amount uint64) error {
	bridge.mut.Lock()
	defer bridge.mut.Unlock()

	state, err := bridge.store.State()
	if err != nil {
		return err
	}
	cs := store.NewChangeset(state)
	if err := cs.Credit(bridge.store, account, amount); err != nil {
		return err
	}
	return bridge.commit(cs)
}

func (bridge *Bridge) Close() error {
	bridge.mut.Lock()
	defer bridge.mut.Unlock()
	return bridge.store.Close()
}
