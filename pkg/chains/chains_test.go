package chains

import (
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/threefoldtech/vaultbridge/pkg"
)

const (
	stellarAccount   = "GBOVQKJYHXRR3DX6NOX2RRYFRCUMSADGDESTDNBDS6CDVLGVESRTAC47"
	substrateAccount = "5GrwvaEF5zXb26Fz9rcQpDWS57CtERHpNehXCPcNoHGKutQY"
	evmAccount       = "0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed"
)

func testRegistry(t *testing.T) *Registry {
	cfg := pkg.DefaultConfig()
	cfg.Chains = append(cfg.Chains,
		pkg.ChainConfig{ID: 148, Name: "stellar", Family: "stellar", FeeMultiplier: 1000},
		pkg.ChainConfig{ID: 42, Name: "tfchain", Family: "substrate", FeeMultiplier: 1000},
	)
	r, err := NewRegistry(cfg.ChainID, cfg.Chains)
	require.NoError(t, err)
	return r
}

func TestIsSupported(t *testing.T) {
	require := require.New(t)
	r := testRegistry(t)

	require.True(r.IsSupported(1))
	require.True(r.IsSupported(42161))
	require.True(r.IsSupported(148))
	require.False(r.IsSupported(101), "own chain is not a destination")
	require.False(r.IsSupported(7))

	chain, ok := r.Get(56)
	require.True(ok)
	require.Equal(FamilyEVM, chain.Family)
}

func TestUnknownFamily(t *testing.T) {
	_, err := NewRegistry(101, []pkg.ChainConfig{{ID: 5, Family: "cosmos", FeeMultiplier: 1000}})
	require.Error(t, err)
}

func TestValidateRecipient(t *testing.T) {
	require := require.New(t)
	r := testRegistry(t)

	require.NoError(r.ValidateRecipient(1, evmAccount, 64))
	require.ErrorIs(r.ValidateRecipient(1, "0x1234", 64), pkg.ErrInvalidRecipient)

	require.NoError(r.ValidateRecipient(148, stellarAccount, 64))
	require.ErrorIs(r.ValidateRecipient(148, evmAccount, 64), pkg.ErrInvalidRecipient)

	require.NoError(r.ValidateRecipient(42, substrateAccount, 64))
	require.ErrorIs(r.ValidateRecipient(42, stellarAccount, 64), pkg.ErrInvalidRecipient)

	require.NoError(r.ValidateRecipient(101, "anything-goes", 64))

	require.ErrorIs(r.ValidateRecipient(1, "", 64), pkg.ErrInvalidRecipient)
	require.ErrorIs(r.ValidateRecipient(1, evmAccount, 10), pkg.ErrInvalidRecipient)
	require.ErrorIs(r.ValidateRecipient(7, evmAccount, 64), pkg.ErrUnsupportedChain)
}

func TestStellarPublicKey(t *testing.T) {
	require := require.New(t)

	key, err := StellarPublicKey(stellarAccount)
	require.NoError(err)
	require.Len(key, 32)

	_, err = StellarPublicKey("SBOVQKJYHXRR3DX6NOX2RRYFRCUMSADGDESTDNBDS6CDVLGVESRTAC47")
	require.Error(err)
}

func TestSubstratePublicKey(t *testing.T) {
	require := require.New(t)

	key, err := SubstratePublicKey(substrateAccount)
	require.NoError(err)
	require.Equal("d43593c715fdd31c61141abd04a99fd6822c8558854ccde39a5684e7a56da27d", hex.EncodeToString(key))

	_, err = SubstratePublicKey("not-an-address")
	require.Error(err)

	// last character changed, breaks the checksum
	_, err = SubstratePublicKey("5GrwvaEF5zXb26Fz9rcQpDWS57CtERHpNehXCPcNoHGKutQZ")
	require.Error(err)

	_, err = SubstratePublicKey(stellarAccount)
	require.Error(err)
}
