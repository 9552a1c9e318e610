package chains

import (
	"github.com/decred/base58"
	"github.com/pkg/errors"
	"github.com/vedhavyas/go-subkey"
)

const (
	substrateAccountIDLength = 32
	ss58ChecksumLength       = 2
)

// SubstratePublicKey decodes an SS58 address with a single byte network prefix
// into its account id. The checksum is verified by encoding the account id
// again for the decoded network.
func SubstratePublicKey(address string) ([]byte, error) {
	raw := base58.Decode(address)
	if len(raw) != 1+substrateAccountIDLength+ss58ChecksumLength {
		return nil, errors.Errorf("%s is not a valid substrate account address", address)
	}
	network := raw[0]
	accountID := append([]byte(nil), raw[1:1+substrateAccountIDLength]...)

	expected, err := subkey.SS58Address(accountID, network)
	if err != nil {
		return nil, errors.Wrap(err, "failed to encode ss58 address")
	}
	if expected != address {
		return nil, errors.Errorf("%s has an invalid checksum", address)
	}
	return accountID, nil
}
