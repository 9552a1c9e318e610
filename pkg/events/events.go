package events

import (
	"encoding/json"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
	"github.com/threefoldtech/vaultbridge/pkg"
)

const (
	SubjectLock          = "lock"
	SubjectUnlock        = "unlock"
	SubjectEmergencyLock = "emergency_lock"
	SubjectStatus        = "status"
)

// ErrUnknownSubject is returned when decoding a message of an unknown subject
var ErrUnknownSubject = errors.New("unknown event subject")

// Event is something the bridge publishes for off-chain indexers
type Event interface {
	Subject() string
}

type LockEvent struct {
	User             string      `json:"user"`
	Amount           uint64      `json:"amount"`
	Fee              uint64      `json:"fee"`
	DestinationChain uint64      `json:"destination_chain"`
	Recipient        string      `json:"recipient"`
	TransactionID    common.Hash `json:"transaction_id"`
	Nonce            uint64      `json:"nonce"`
	Timestamp        int64       `json:"timestamp"`
}

func (LockEvent) Subject() string { return SubjectLock }

type UnlockEvent struct {
	TxHash        common.Hash `json:"tx_hash"`
	SourceChainID uint64      `json:"source_chain_id"`
	Recipient     string      `json:"recipient"`
	UnlockAmount  uint64      `json:"unlock_amount"`
	BridgeFee     uint64      `json:"bridge_fee"`
	Timestamp     int64       `json:"timestamp"`
	MerkleRoot    common.Hash `json:"merkle_root"`
	LeafIndex     uint64      `json:"leaf_index"`
}

func (UnlockEvent) Subject() string { return SubjectUnlock }

type EmergencyLockEvent struct {
	User             string      `json:"user"`
	Amount           uint64      `json:"amount"`
	DestinationChain uint64      `json:"destination_chain"`
	Recipient        string      `json:"recipient"`
	TransactionID    common.Hash `json:"transaction_id"`
	Admin            string      `json:"admin"`
	Timestamp        int64       `json:"timestamp"`
}

func (EmergencyLockEvent) Subject() string { return SubjectEmergencyLock }

// StatusEvent reports a lock record leaving one status for another
type StatusEvent struct {
	TxHash    common.Hash `json:"tx_hash"`
	From      pkg.Status  `json:"from"`
	To        pkg.Status  `json:"to"`
	Refunded  uint64      `json:"refunded"`
	Timestamp int64       `json:"timestamp"`
}

func (StatusEvent) Subject() string { return SubjectStatus }

// Decode parses a payload published under subject, any prefix before the last
// dot is ignored
func Decode(subject string, data []byte) (Event, error) {
	if i := strings.LastIndex(subject, "."); i >= 0 {
		subject = subject[i+1:]
	}
	var (
		event Event
		err   error
	)
	switch subject {
	case SubjectLock:
		var e LockEvent
		err = json.Unmarshal(data, &e)
		event = e
	case SubjectUnlock:
		var e UnlockEvent
		err = json.Unmarshal(data, &e)
		event = e
	case SubjectEmergencyLock:
		var e EmergencyLockEvent
		err = json.Unmarshal(data, &e)
		event = e
	case SubjectStatus:
		var e StatusEvent
		err = json.Unmarshal(data, &e)
		event = e
	default:
		return nil, errors.Wrap(ErrUnknownSubject, subject)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "failed to decode %s event", subject)
	}
	return event, nil
}
