package pkg

import (
	"math/bits"

	"github.com/ethereum/go-ethereum/common"
)

// Status is the lifecycle state of a lock record
type Status uint8

const (
	StatusPending Status = iota
	StatusValidated
	StatusExecuting
	StatusCompleted
	StatusFailed
	StatusCancelled
	StatusExpired
	StatusEmergencyLocked
)

func (s Status) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusValidated:
		return "validated"
	case StatusExecuting:
		return "executing"
	case StatusCompleted:
		return "completed"
	case StatusFailed:
		return "failed"
	case StatusCancelled:
		return "cancelled"
	case StatusExpired:
		return "expired"
	case StatusEmergencyLocked:
		return "emergency_locked"
	default:
		return "unknown"
	}
}

// IsTerminal reports whether no further transition is possible from s
func (s Status) IsTerminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusCancelled, StatusExpired:
		return true
	}
	return false
}

// Event drives a lock record from one status to the next
type Event uint8

const (
	EventValidate Event = iota
	EventExecute
	EventComplete
	EventFail
	EventCancel
	EventExpire
)

func (e Event) String() string {
	switch e {
	case EventValidate:
		return "validate"
	case EventExecute:
		return "execute"
	case EventComplete:
		return "complete"
	case EventFail:
		return "fail"
	case EventCancel:
		return "cancel"
	case EventExpire:
		return "expire"
	default:
		return "unknown"
	}
}

var transitions = map[Status]map[Event]Status{
	StatusPending: {
		EventValidate: StatusValidated,
		EventFail:     StatusFailed,
		EventCancel:   StatusCancelled,
		EventExpire:   StatusExpired,
	},
	StatusValidated: {
		EventExecute: StatusExecuting,
		EventFail:    StatusFailed,
		EventCancel:  StatusCancelled,
		EventExpire:  StatusExpired,
	},
	StatusExecuting: {
		EventComplete: StatusCompleted,
		EventFail:     StatusFailed,
	},
	StatusEmergencyLocked: {
		EventFail:   StatusFailed,
		EventCancel: StatusCancelled,
	},
}

// Transition returns the status reached by applying ev to current.
// Every status change of a lock record goes through here.
func Transition(current Status, ev Event) (Status, error) {
	next, ok := transitions[current][ev]
	if !ok {
		return current, ErrInvalidTransition
	}
	return next, nil
}

// TimelockKind selects the holding delay applied to a lock
type TimelockKind uint8

const (
	TimelockStandard TimelockKind = iota
	TimelockLarge
	TimelockEmergency
)

func (k TimelockKind) String() string {
	switch k {
	case TimelockStandard:
		return "standard"
	case TimelockLarge:
		return "large"
	case TimelockEmergency:
		return "emergency"
	default:
		return "unknown"
	}
}

// ValidatorSignature is a recoverable signature of a validator over an unlock message
type ValidatorSignature struct {
	Validator  common.Address `json:"validator"`
	Signature  []byte         `json:"signature"`
	RecoveryID uint8          `json:"recovery_id"`
	Timestamp  int64          `json:"timestamp"`
}

// LockRecord is the audit record of a single lock, it is never deleted
type LockRecord struct {
	TxHash           common.Hash  `json:"tx_hash"`
	User             string       `json:"user"`
	Amount           uint64       `json:"amount"`
	Fee              uint64       `json:"fee"`
	SourceChain      uint64       `json:"source_chain"`
	DestinationChain uint64       `json:"destination_chain"`
	Recipient        string       `json:"recipient"`
	Nonce            uint64       `json:"nonce"`
	UserNonce        uint64       `json:"user_nonce"`
	LockedAt         int64        `json:"locked_at"`
	UnlockedAt       int64        `json:"unlocked_at"`
	Status           Status       `json:"status"`
	Timelock         TimelockKind `json:"timelock"`
	Suspicious       bool         `json:"suspicious"`

	MerkleRoot common.Hash   `json:"merkle_root"`
	Proof      []common.Hash `json:"proof"`
	LeafIndex  uint64        `json:"leaf_index"`

	Signatures            map[common.Address]ValidatorSignature `json:"signatures"`
	RequiredConfirmations uint32                                `json:"required_confirmations"`
	Confirmations         uint32                                `json:"confirmations"`

	Processed      bool   `json:"processed"`
	UnlockedAmount uint64 `json:"unlocked_amount"`
}

// Clone returns a deep copy of the record
func (r *LockRecord) Clone() *LockRecord {
	c := *r
	if r.Proof != nil {
		c.Proof = append([]common.Hash(nil), r.Proof...)
	}
	if r.Signatures != nil {
		c.Signatures = make(map[common.Address]ValidatorSignature, len(r.Signatures))
		for k, v := range r.Signatures {
			v.Signature = append([]byte(nil), v.Signature...)
			c.Signatures[k] = v
		}
	}
	return &c
}

// Apply moves the record to the status reached by ev
func (r *LockRecord) Apply(ev Event) error {
	next, err := Transition(r.Status, ev)
	if err != nil {
		return err
	}
	r.Status = next
	return nil
}

// RateWindow tracks a user's transfer activity for rate limiting and replay protection
type RateWindow struct {
	User        string `json:"user"`
	LastTx      int64  `json:"last_tx"`
	DailyVolume uint64 `json:"daily_volume"`
	WindowStart int64  `json:"window_start"`
	LastNonce   uint64 `json:"last_nonce"`
	Pending     uint32 `json:"pending"`
}

// FeeShares accumulates the split of collected fees
type FeeShares struct {
	Validators uint64 `json:"validators"`
	Protocol   uint64 `json:"protocol"`
	Treasury   uint64 `json:"treasury"`
}

// BridgeState is the singleton aggregate of the bridge. Version increases by one
// with every committed change.
type BridgeState struct {
	Version       uint64 `json:"version"`
	ChainID       uint64 `json:"chain_id"`
	Active        bool   `json:"active"`
	Paused        bool   `json:"paused"`
	EmergencyMode bool   `json:"emergency_mode"`

	TotalLocked   uint64    `json:"total_locked"`
	TotalUnlocked uint64    `json:"total_unlocked"`
	FeesCollected uint64    `json:"fees_collected"`
	FeeShares     FeeShares `json:"fee_shares"`
	TxCount       uint64    `json:"tx_count"`

	ValidatorCount uint32      `json:"validator_count"`
	MerkleRoot     common.Hash `json:"merkle_root"`
	LastNonce      uint64      `json:"last_nonce"`

	DailyVolume        uint64 `json:"daily_volume"`
	DailyResetMarker   int64  `json:"daily_reset_marker"`
	UnlockWindowVolume uint64 `json:"unlock_window_volume"`
	UnlockWindowStart  int64  `json:"unlock_window_start"`
	Pending            uint32 `json:"pending"`
}

// Clone returns a copy of the state
func (s *BridgeState) Clone() *BridgeState {
	c := *s
	return &c
}

// AddU64 returns a+b or ErrArithmeticOverflow
func AddU64(a, b uint64) (uint64, error) {
	sum, carry := bits.Add64(a, b, 0)
	if carry != 0 {
		return 0, ErrArithmeticOverflow
	}
	return sum, nil
}

// SubU64 returns a-b or ErrArithmeticUnderflow
func SubU64(a, b uint64) (uint64, error) {
	diff, borrow := bits.Sub64(a, b, 0)
	if borrow != 0 {
		return 0, ErrArithmeticUnderflow
	}
	return diff, nil
}
