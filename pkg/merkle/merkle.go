package merkle

import (
	"bytes"
	"encoding/binary"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/threefoldtech/vaultbridge/pkg"
)

// HashPair hashes two nodes, smaller operand first, so the result does not
// depend on the order they are given in
func HashPair(a, b common.Hash) common.Hash {
	if bytes.Compare(a[:], b[:]) > 0 {
		a, b = b, a
	}
	return crypto.Keccak256Hash(a[:], b[:])
}

// BuildRoot computes the root of the tree over leaves. Odd levels duplicate their last node.
func BuildRoot(leaves []common.Hash) (common.Hash, error) {
	if len(leaves) == 0 {
		return common.Hash{}, pkg.ErrEmptyLeaves
	}
	level := leaves
	for len(level) > 1 {
		level = nextLevel(level)
	}
	return level[0], nil
}

func nextLevel(level []common.Hash) []common.Hash {
	next := make([]common.Hash, 0, (len(level)+1)/2)
	for i := 0; i < len(level); i += 2 {
		left := level[i]
		right := left
		if i+1 < len(level) {
			right = level[i+1]
		}
		next = append(next, HashPair(left, right))
	}
	return next
}

// GenerateProof returns the sibling path of target, first occurrence wins
func GenerateProof(target common.Hash, leaves []common.Hash) ([]common.Hash, error) {
	for i, leaf := range leaves {
		if leaf == target {
			tree, err := NewTree(leaves)
			if err != nil {
				return nil, err
			}
			return tree.Proof(i)
		}
	}
	return nil, pkg.ErrTransactionNotFound
}

// VerifyProof folds proof into leaf and compares the result with root.
// An empty proof holds only for a single-leaf tree.
func VerifyProof(leaf common.Hash, proof []common.Hash, root common.Hash) bool {
	computed := leaf
	for _, sibling := range proof {
		computed = HashPair(computed, sibling)
	}
	return computed == root
}

// VerifyRawProof is VerifyProof for proofs received as raw bytes
func VerifyRawProof(leaf common.Hash, proof [][]byte, root common.Hash) (bool, error) {
	hashes, err := ParseProof(proof)
	if err != nil {
		return false, err
	}
	return VerifyProof(leaf, hashes, root), nil
}

// ParseProof converts raw proof elements, each must be exactly one hash long
func ParseProof(proof [][]byte) ([]common.Hash, error) {
	hashes := make([]common.Hash, len(proof))
	for i, element := range proof {
		if len(element) != common.HashLength {
			return nil, pkg.ErrInvalidProofElement
		}
		hashes[i] = common.BytesToHash(element)
	}
	return hashes, nil
}

// Tree keeps every level so proofs for a whole batch need a single build
type Tree struct {
	levels [][]common.Hash
}

func NewTree(leaves []common.Hash) (*Tree, error) {
	if len(leaves) == 0 {
		return nil, pkg.ErrEmptyLeaves
	}
	level := append([]common.Hash(nil), leaves...)
	levels := [][]common.Hash{level}
	for len(level) > 1 {
		level = nextLevel(level)
		levels = append(levels, level)
	}
	return &Tree{levels: levels}, nil
}

func (t *Tree) Root() common.Hash {
	return t.levels[len(t.levels)-1][0]
}

func (t *Tree) Len() int {
	return len(t.levels[0])
}

// Proof returns the sibling path of the leaf at index
func (t *Tree) Proof(index int) ([]common.Hash, error) {
	if index < 0 || index >= t.Len() {
		return nil, pkg.ErrTransactionNotFound
	}
	proof := make([]common.Hash, 0, len(t.levels)-1)
	for _, level := range t.levels[:len(t.levels)-1] {
		sibling := index ^ 1
		if sibling < len(level) {
			proof = append(proof, level[sibling])
		} else {
			proof = append(proof, level[index])
		}
		index /= 2
	}
	return proof, nil
}

// LeafHash is the leaf committed for a lock:
// keccak(txHash || sourceChain || amount || recipient || destinationChain)
func LeafHash(txHash common.Hash, sourceChain, amount uint64, recipient string, destinationChain uint64) common.Hash {
	var src, amt, dst [8]byte
	binary.BigEndian.PutUint64(src[:], sourceChain)
	binary.BigEndian.PutUint64(amt[:], amount)
	binary.BigEndian.PutUint64(dst[:], destinationChain)
	return crypto.Keccak256Hash(txHash[:], src[:], amt[:], []byte(recipient), dst[:])
}

// TransactionHash identifies a lock across chains
func TransactionHash(sourceChain, destinationChain uint64, user string, amount uint64, recipient string, nonce uint64, timestamp int64) common.Hash {
	var buf [40]byte
	binary.BigEndian.PutUint64(buf[0:], sourceChain)
	binary.BigEndian.PutUint64(buf[8:], destinationChain)
	binary.BigEndian.PutUint64(buf[16:], amount)
	binary.BigEndian.PutUint64(buf[24:], nonce)
	binary.BigEndian.PutUint64(buf[32:], uint64(timestamp))
	return crypto.Keccak256Hash(buf[:16], []byte(user), buf[16:24], []byte(recipient), buf[24:])
}
