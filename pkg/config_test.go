package pkg

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// validConfig is DefaultConfig with a single validator
func validConfig() Config {
	cfg := DefaultConfig()
	cfg.Consensus.Validators = []ValidatorConfig{{PublicKey: "0x0279be667ef9dcbbac55a06295ce870b07029bfcdb2dce28d959f2815b16f81798"}}
	return cfg
}

func TestDefaultConfigNeedsValidators(t *testing.T) {
	cfg := DefaultConfig()
	require.ErrorIs(t, cfg.Validate(), ErrNoValidators)

	cfg = validConfig()
	require.NoError(t, cfg.Validate())
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
		err    error
	}{
		{"threshold zero", func(c *Config) { c.Consensus.ThresholdPct = 0 }, ErrInvalidThreshold},
		{"threshold above 100", func(c *Config) { c.Consensus.ThresholdPct = 101 }, ErrInvalidThreshold},
		{"too many validators", func(c *Config) { c.Consensus.Validators = make([]ValidatorConfig, MaxValidators+1) }, ErrTooManyValidators},
		{"no validators", func(c *Config) { c.Consensus.Validators = nil }, ErrNoValidators},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			cfg := validConfig()
			c.mutate(&cfg)
			require.ErrorIs(t, cfg.Validate(), c.err)
		})
	}

	invalid := []func(*Config){
		func(c *Config) { c.Vault = "" },
		func(c *Config) { c.Limits.MinLockAmount = c.Limits.MaxLockAmount + 1 },
		func(c *Config) { c.Fees.BaseBps = c.Fees.MaxBps + 1 },
		func(c *Config) { c.Fees.TreasuryShare = 0 },
		func(c *Config) { c.RateLimit.MaxNonceGap = 0 },
		func(c *Config) { c.Chains = append(c.Chains, c.Chains[0]) },
		func(c *Config) { c.Emergency.Enabled = true },
	}
	for _, mutate := range invalid {
		cfg := validConfig()
		mutate(&cfg)
		require.Error(t, cfg.Validate())
	}
}

func TestLoadConfig(t *testing.T) {
	require := require.New(t)
	path := filepath.Join(t.TempDir(), "config.yaml")
	err := os.WriteFile(path, []byte(`
admin: ops
fees:
  base_bps: 20
consensus:
  threshold_pct: 75
  weighted: true
  validators:
    - public_key: "0x0279be667ef9dcbbac55a06295ce870b07029bfcdb2dce28d959f2815b16f81798"
      weight: 3
`), 0o600)
	require.NoError(err)

	cfg, err := LoadConfig(path)
	require.NoError(err)
	require.Equal("ops", cfg.Admin)
	require.EqualValues(20, cfg.Fees.BaseBps)
	require.EqualValues(75, cfg.Consensus.ThresholdPct)
	require.True(cfg.Consensus.Weighted)
	require.Len(cfg.Consensus.Validators, 1)
	require.EqualValues(3, cfg.Consensus.Validators[0].Weight)
	// untouched values keep their defaults
	require.EqualValues(5, cfg.Fees.LargeBps)
	require.Equal("vault", cfg.Vault)

	_, err = LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(err)
}
