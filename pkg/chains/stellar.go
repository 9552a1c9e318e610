package chains

import (
	"fmt"

	"github.com/libp2p/go-libp2p-core/crypto"
	"github.com/stellar/go/strkey"
)

// StellarPublicKey returns the raw ed25519 key behind a Stellar account address
func StellarPublicKey(address string) ([]byte, error) {
	versionbyte, pubkeydata, err := strkey.DecodeAny(address)
	if err != nil {
		return nil, err
	}
	if versionbyte != strkey.VersionByteAccountID {
		return nil, fmt.Errorf("%s is not a valid Stellar address", address)
	}
	pubkey, err := crypto.UnmarshalEd25519PublicKey(pubkeydata)
	if err != nil {
		return nil, err
	}

	return pubkey.Raw()
}
