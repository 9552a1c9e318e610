package signature

import (
	"bytes"
	"crypto/ecdsa"
	"encoding/binary"
	"math"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/pkg/errors"
	"github.com/threefoldtech/vaultbridge/pkg"
)

// SignatureLength is the length of a signature without its recovery id
const SignatureLength = 64

// MessageHash builds the message validators sign to approve an unlock
func MessageHash(prefix string, txHash common.Hash, recipient string, amount uint64, sourceChain uint64) common.Hash {
	var amt, src [8]byte
	binary.BigEndian.PutUint64(amt[:], amount)
	binary.BigEndian.PutUint64(src[:], sourceChain)
	return crypto.Keccak256Hash([]byte(prefix+"_UNLOCK:"), txHash[:], []byte(recipient), amt[:], src[:])
}

// Sign produces a validator signature over hash
func Sign(hash common.Hash, key *ecdsa.PrivateKey, timestamp int64) (pkg.ValidatorSignature, error) {
	sig, err := crypto.Sign(hash[:], key)
	if err != nil {
		return pkg.ValidatorSignature{}, errors.Wrap(err, "failed to sign message")
	}
	return pkg.ValidatorSignature{
		Validator:  crypto.PubkeyToAddress(key.PublicKey),
		Signature:  sig[:SignatureLength],
		RecoveryID: sig[SignatureLength],
		Timestamp:  timestamp,
	}, nil
}

// Recover returns the uncompressed public key that produced sig over hash.
// Recovery ids 27 and 28 are accepted as 0 and 1.
func Recover(hash common.Hash, sig []byte, recoveryID uint8) ([]byte, error) {
	if len(sig) != SignatureLength {
		return nil, pkg.ErrInvalidSignature
	}
	if recoveryID >= 27 {
		recoveryID -= 27
	}
	if recoveryID > 1 {
		return nil, pkg.ErrInvalidSignature
	}
	full := make([]byte, SignatureLength+1)
	copy(full, sig)
	full[SignatureLength] = recoveryID

	pub, err := crypto.Ecrecover(hash[:], full)
	if err != nil {
		return nil, errors.Wrap(pkg.ErrInvalidSignature, err.Error())
	}
	return pub, nil
}

// VerifySignature reports whether sig over hash was produced by expected
func VerifySignature(hash common.Hash, sig []byte, recoveryID uint8, expected *ecdsa.PublicKey) (bool, error) {
	if expected == nil {
		return false, pkg.ErrInvalidSignature
	}
	pub, err := Recover(hash, sig, recoveryID)
	if err != nil {
		return false, err
	}
	return bytes.Equal(pub, crypto.FromECDSAPub(expected)), nil
}

// Tally is the outcome of counting validator signatures
type Tally struct {
	Count   uint32
	Weight  uint64
	Signers []common.Address
	// the signatures that were counted, in Signers order
	Signatures []pkg.ValidatorSignature
}

// VerifyValidatorSignatures counts the distinct validators of set with a valid
// signature over hash. Unknown signers, bad signatures and repeats are skipped.
func VerifyValidatorSignatures(hash common.Hash, signatures []pkg.ValidatorSignature, set *ValidatorSet) Tally {
	var tally Tally
	counted := make(map[common.Address]bool, len(signatures))
	for _, sig := range signatures {
		if counted[sig.Validator] {
			continue
		}
		validator, ok := set.Get(sig.Validator)
		if !ok {
			continue
		}
		valid, err := VerifySignature(hash, sig.Signature, sig.RecoveryID, validator.PublicKey)
		if err != nil || !valid {
			continue
		}
		counted[sig.Validator] = true
		tally.Signers = append(tally.Signers, sig.Validator)
		tally.Signatures = append(tally.Signatures, sig)
		if tally.Count < math.MaxUint32 {
			tally.Count++
		}
		if w, err := pkg.AddU64(tally.Weight, validator.Weight); err == nil {
			tally.Weight = w
		} else {
			tally.Weight = math.MaxUint64
		}
	}
	return tally
}
