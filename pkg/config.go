package pkg

import (
	"os"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

const (
	MaxValidators       = 21
	SecondsPerDay       = 86400
	FeeDenominator      = 10000
	MultiplierPrecision = 1000
)

// Config is the bridge configuration, usually loaded from a yaml file
type Config struct {
	ChainID uint64 `yaml:"chain_id"`
	// account allowed to run admin operations
	Admin string `yaml:"admin"`
	// account holding locked funds
	Vault string `yaml:"vault"`
	// prefix of the message validators sign for an unlock
	MessagePrefix string `yaml:"message_prefix"`

	Limits    LimitsConfig    `yaml:"limits"`
	Fees      FeeConfig       `yaml:"fees"`
	Timelock  TimelockConfig  `yaml:"timelock"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	Consensus ConsensusConfig `yaml:"consensus"`
	Chains    []ChainConfig   `yaml:"chains"`
	Emergency EmergencyConfig `yaml:"emergency"`

	Store   StoreConfig   `yaml:"store"`
	NATS    NATSConfig    `yaml:"nats"`
	Metrics MetricsConfig `yaml:"metrics"`
}

type LimitsConfig struct {
	MinLockAmount      uint64 `yaml:"min_lock_amount"`
	MaxLockAmount      uint64 `yaml:"max_lock_amount"`
	UserDailyLimit     uint64 `yaml:"user_daily_limit"`
	GlobalDailyLimit   uint64 `yaml:"global_daily_limit"`
	MaxRecipientLength int    `yaml:"max_recipient_length"`
	// seconds a lock is held at least, regardless of its timelock
	MinLockDuration int64 `yaml:"min_lock_duration"`
	// seconds after which an unlock is refused, 0 disables the window
	MaxUnlockWindow int64 `yaml:"max_unlock_window"`
	// seconds after which an unprocessed lock can be expired
	ExpiryAge int64 `yaml:"expiry_age"`
}

type FeeConfig struct {
	BaseBps             uint64   `yaml:"base_bps"`
	LargeBps            uint64   `yaml:"large_bps"`
	EmergencyBps        uint64   `yaml:"emergency_bps"`
	MaxBps              uint64   `yaml:"max_bps"`
	VerifiedDiscountBps uint64   `yaml:"verified_discount_bps"`
	MinFee              uint64   `yaml:"min_fee"`
	MaxFee              uint64   `yaml:"max_fee"`
	ValidatorShare      uint64   `yaml:"validator_share"`
	ProtocolShare       uint64   `yaml:"protocol_share"`
	TreasuryShare       uint64   `yaml:"treasury_share"`
	VerifiedUsers       []string `yaml:"verified_users"`
}

type TimelockConfig struct {
	Standard       int64  `yaml:"standard"`
	Large          int64  `yaml:"large"`
	Emergency      int64  `yaml:"emergency"`
	LargeThreshold uint64 `yaml:"large_threshold"`
}

type RateLimitConfig struct {
	MinTxInterval     int64  `yaml:"min_tx_interval"`
	MaxNonceGap       uint64 `yaml:"max_nonce_gap"`
	MaxPendingPerUser uint32 `yaml:"max_pending_per_user"`
	MaxPendingGlobal  uint32 `yaml:"max_pending_global"`
	UnlockWindow      int64  `yaml:"unlock_window"`
	UnlockWindowCap   uint64 `yaml:"unlock_window_cap"`
}

type ConsensusConfig struct {
	ThresholdPct uint64            `yaml:"threshold_pct"`
	Epoch        uint64            `yaml:"epoch"`
	Validators   []ValidatorConfig `yaml:"validators"`
	// threshold applies to the summed validator weights
	Weighted bool `yaml:"weighted"`
}

type ValidatorConfig struct {
	// hex encoded secp256k1 public key, compressed or not
	PublicKey string `yaml:"public_key"`
	Weight    uint64 `yaml:"weight"`
}

type ChainConfig struct {
	ID   uint64 `yaml:"id"`
	Name string `yaml:"name"`
	// one of evm, stellar, substrate, opaque
	Family string `yaml:"family"`
	// fee multiplier with MultiplierPrecision, 1000 is neutral
	FeeMultiplier uint64 `yaml:"fee_multiplier"`
}

type EmergencyConfig struct {
	Enabled    bool   `yaml:"enabled"`
	TOTPSecret string `yaml:"totp_secret"`
}

type StoreConfig struct {
	Path string `yaml:"path"`
}

type NATSConfig struct {
	URL           string `yaml:"url"`
	SubjectPrefix string `yaml:"subject_prefix"`
}

type MetricsConfig struct {
	Address string `yaml:"address"`
}

// DefaultConfig returns the production defaults of the bridge
func DefaultConfig() Config {
	return Config{
		ChainID:       101,
		Vault:         "vault",
		MessagePrefix: "FINOVA",
		Limits: LimitsConfig{
			MinLockAmount:      1000,
			MaxLockAmount:      1_000_000_000_000,
			UserDailyLimit:     10_000_000_000,
			GlobalDailyLimit:   100_000_000_000,
			MaxRecipientLength: 64,
			MinLockDuration:    300,
			ExpiryAge:          7 * SecondsPerDay,
		},
		Fees: FeeConfig{
			BaseBps:        10,
			LargeBps:       5,
			EmergencyBps:   100,
			MaxBps:         200,
			ValidatorShare: 50,
			ProtocolShare:  30,
			TreasuryShare:  20,
		},
		Timelock: TimelockConfig{
			Standard:       300,
			Large:          3600,
			Emergency:      SecondsPerDay,
			LargeThreshold: 100_000_000,
		},
		RateLimit: RateLimitConfig{
			MaxNonceGap:       1000,
			MaxPendingPerUser: 5,
			MaxPendingGlobal:  1000,
			UnlockWindow:      3600,
			UnlockWindowCap:   100_000_000_000,
		},
		Consensus: ConsensusConfig{
			ThresholdPct: 67,
		},
		Chains: []ChainConfig{
			{ID: 101, Name: "solana", Family: "opaque", FeeMultiplier: 1000},
			{ID: 1, Name: "ethereum", Family: "evm", FeeMultiplier: 1500},
			{ID: 56, Name: "bsc", Family: "evm", FeeMultiplier: 1000},
			{ID: 137, Name: "polygon", Family: "evm", FeeMultiplier: 1000},
			{ID: 43114, Name: "avalanche", Family: "evm", FeeMultiplier: 1000},
			{ID: 42161, Name: "arbitrum", Family: "evm", FeeMultiplier: 1000},
		},
		NATS: NATSConfig{
			SubjectPrefix: "bridge",
		},
		Metrics: MetricsConfig{
			Address: ":9100",
		},
	}
}

// LoadConfig reads a yaml file on top of DefaultConfig
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, errors.Wrapf(err, "failed to read config file %s", path)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, errors.Wrapf(err, "failed to parse config file %s", path)
	}
	return cfg, cfg.Validate()
}

// Validate checks the configuration for values the bridge cannot run with
func (c *Config) Validate() error {
	if c.Vault == "" {
		return errors.New("vault account is required")
	}
	if c.Limits.MinLockAmount == 0 || c.Limits.MinLockAmount > c.Limits.MaxLockAmount {
		return errors.Errorf("invalid lock amount bounds [%d, %d]", c.Limits.MinLockAmount, c.Limits.MaxLockAmount)
	}
	if c.Limits.MaxRecipientLength <= 0 {
		return errors.New("max recipient length must be positive")
	}
	for _, bps := range []uint64{c.Fees.BaseBps, c.Fees.LargeBps, c.Fees.EmergencyBps} {
		if bps > c.Fees.MaxBps {
			return errors.Errorf("fee of %d bps exceeds the maximum of %d bps", bps, c.Fees.MaxBps)
		}
	}
	if c.Fees.MaxBps > FeeDenominator || c.Fees.VerifiedDiscountBps > FeeDenominator {
		return errors.New("fee basis points out of range")
	}
	if c.Fees.MaxFee != 0 && c.Fees.MinFee > c.Fees.MaxFee {
		return errors.Errorf("min fee %d above max fee %d", c.Fees.MinFee, c.Fees.MaxFee)
	}
	if c.Fees.ValidatorShare+c.Fees.ProtocolShare+c.Fees.TreasuryShare != 100 {
		return errors.New("fee shares must add up to 100")
	}
	if c.Consensus.ThresholdPct == 0 || c.Consensus.ThresholdPct > 100 {
		return ErrInvalidThreshold
	}
	if len(c.Consensus.Validators) > MaxValidators {
		return ErrTooManyValidators
	}
	if len(c.Consensus.Validators) == 0 {
		return ErrNoValidators
	}
	if c.RateLimit.MaxNonceGap == 0 {
		return errors.New("max nonce gap must be positive")
	}
	seen := make(map[uint64]bool, len(c.Chains))
	for _, chain := range c.Chains {
		if seen[chain.ID] {
			return errors.Errorf("chain %d configured twice", chain.ID)
		}
		seen[chain.ID] = true
		if chain.FeeMultiplier == 0 {
			return errors.Errorf("chain %d has no fee multiplier", chain.ID)
		}
	}
	if c.Emergency.Enabled && c.Emergency.TOTPSecret == "" {
		return errors.New("emergency path needs a totp secret")
	}
	return nil
}
