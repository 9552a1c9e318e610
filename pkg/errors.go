package pkg

import (
	"fmt"

	"github.com/pkg/errors"
)

// Kind groups errors so clients can branch on the class of failure
type Kind uint8

const (
	KindValidation Kind = iota + 1
	KindReplay
	KindProof
	KindConsensus
	KindTiming
	KindCapacity
	KindOperational
	KindArithmetic
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindReplay:
		return "replay"
	case KindProof:
		return "proof"
	case KindConsensus:
		return "consensus"
	case KindTiming:
		return "timing"
	case KindCapacity:
		return "capacity"
	case KindOperational:
		return "operational"
	case KindArithmetic:
		return "arithmetic"
	default:
		return "unknown"
	}
}

// Error is a bridge error with a stable numeric code
type Error struct {
	Code uint32
	Kind Kind
	msg  string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s (code %d)", e.msg, e.Code)
}

func newError(code uint32, kind Kind, msg string) *Error {
	return &Error{Code: code, Kind: kind, msg: msg}
}

// codes are part of the public interface, never renumber them
var (
	ErrInvalidAmount          = newError(6000, KindValidation, "invalid amount")
	ErrAmountTooSmall         = newError(6001, KindValidation, "amount below minimum lock amount")
	ErrAmountTooLarge         = newError(6002, KindValidation, "amount above maximum lock amount")
	ErrInsufficientBalance    = newError(6003, KindValidation, "insufficient balance")
	ErrUnsupportedChain       = newError(6004, KindValidation, "destination chain not supported")
	ErrInvalidRecipient       = newError(6005, KindValidation, "invalid recipient address")
	ErrAmountMismatch         = newError(6006, KindValidation, "unlock amount does not match locked amount")
	ErrUnauthorized           = newError(6007, KindValidation, "caller is not authorized")
	ErrInvalidTransition      = newError(6008, KindValidation, "invalid lock status transition")
	ErrTransactionUnknown     = newError(6009, KindValidation, "lock record not found")
	ErrInvalidEmergencyCode   = newError(6010, KindValidation, "invalid emergency code")
	ErrAlreadyProcessed       = newError(6020, KindReplay, "transaction already processed")
	ErrInvalidNonce           = newError(6021, KindReplay, "invalid nonce")
	ErrNonceTooHigh           = newError(6022, KindReplay, "nonce too far ahead")
	ErrDuplicateSignature     = newError(6023, KindReplay, "validator already signed")
	ErrInvalidMerkleProof     = newError(6030, KindProof, "invalid merkle proof")
	ErrInvalidProofElement    = newError(6031, KindProof, "invalid proof element")
	ErrTransactionNotFound    = newError(6032, KindProof, "transaction not found in leaves")
	ErrEmptyLeaves            = newError(6033, KindProof, "no leaves to build a tree from")
	ErrInsufficientSignatures = newError(6040, KindConsensus, "insufficient validator signatures")
	ErrInvalidSignature       = newError(6041, KindConsensus, "invalid signature")
	ErrInvalidThreshold       = newError(6042, KindConsensus, "invalid consensus threshold")
	ErrTooManyValidators      = newError(6043, KindConsensus, "validator set too large")
	ErrUnknownValidator       = newError(6044, KindConsensus, "signer is not in the validator set")
	ErrNoValidators           = newError(6045, KindConsensus, "validator set is empty")
	ErrTimelockNotExpired     = newError(6050, KindTiming, "timelock not expired")
	ErrUnlockWindowExpired    = newError(6051, KindTiming, "unlock window expired")
	ErrLockNotExpired         = newError(6052, KindTiming, "lock has not reached its expiry age")
	ErrDailyLimitExceeded     = newError(6060, KindCapacity, "daily limit exceeded")
	ErrRateLimitExceeded      = newError(6061, KindCapacity, "rate limit exceeded")
	ErrTooManyPending         = newError(6062, KindCapacity, "too many pending transactions")
	ErrTransferTooFrequent    = newError(6063, KindCapacity, "transfers too frequent")
	ErrBridgeInactive         = newError(6070, KindOperational, "bridge is not active")
	ErrBridgePaused           = newError(6071, KindOperational, "bridge is paused")
	ErrEmergencyModeDisabled  = newError(6072, KindOperational, "emergency mode is not enabled")
	ErrArithmeticOverflow     = newError(6080, KindArithmetic, "arithmetic overflow")
	ErrArithmeticUnderflow    = newError(6081, KindArithmetic, "arithmetic underflow")
)

// CodeOf returns the code of the bridge error wrapped by err
func CodeOf(err error) (uint32, bool) {
	var e *Error
	if !errors.As(err, &e) {
		return 0, false
	}
	return e.Code, true
}

// KindOf returns the kind of the bridge error wrapped by err, 0 when there is none
func KindOf(err error) Kind {
	var e *Error
	if !errors.As(err, &e) {
		return 0
	}
	return e.Kind
}
