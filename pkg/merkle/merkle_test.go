package merkle

import (
	"fmt"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/require"
	"github.com/threefoldtech/vaultbridge/pkg"
)

func leaves(n int) []common.Hash {
	out := make([]common.Hash, n)
	for i := range out {
		out[i] = crypto.Keccak256Hash([]byte(fmt.Sprintf("tx-%d", i)))
	}
	return out
}

func TestHashPairIsOrderIndependent(t *testing.T) {
	require := require.New(t)
	a := crypto.Keccak256Hash([]byte("a"))
	b := crypto.Keccak256Hash([]byte("b"))

	require.Equal(HashPair(a, b), HashPair(b, a))
	require.NotEqual(HashPair(a, b), HashPair(a, a))
}

func TestBuildRoot(t *testing.T) {
	require := require.New(t)

	_, err := BuildRoot(nil)
	require.ErrorIs(err, pkg.ErrEmptyLeaves)

	single := leaves(1)
	root, err := BuildRoot(single)
	require.NoError(err)
	require.Equal(single[0], root)

	three := leaves(3)
	root, err = BuildRoot(three)
	require.NoError(err)
	expected := HashPair(HashPair(three[0], three[1]), HashPair(three[2], three[2]))
	require.Equal(expected, root)
}

func TestBuildRootIsDeterministic(t *testing.T) {
	require := require.New(t)
	set := leaves(9)

	first, err := BuildRoot(set)
	require.NoError(err)
	second, err := BuildRoot(set)
	require.NoError(err)
	require.Equal(first, second)

	swapped := append([]common.Hash(nil), set...)
	swapped[0], swapped[5] = swapped[5], swapped[0]
	third, err := BuildRoot(swapped)
	require.NoError(err)
	require.NotEqual(first, third)
}

func TestProofRoundTrip(t *testing.T) {
	for n := 1; n <= 17; n++ {
		t.Run(fmt.Sprintf("leaves=%d", n), func(t *testing.T) {
			require := require.New(t)
			set := leaves(n)
			root, err := BuildRoot(set)
			require.NoError(err)

			for _, leaf := range set {
				proof, err := GenerateProof(leaf, set)
				require.NoError(err)
				require.True(VerifyProof(leaf, proof, root))
			}
		})
	}
}

func TestTreeMatchesBuildRoot(t *testing.T) {
	require := require.New(t)
	set := leaves(6)

	tree, err := NewTree(set)
	require.NoError(err)
	root, err := BuildRoot(set)
	require.NoError(err)
	require.Equal(root, tree.Root())
	require.Equal(6, tree.Len())

	_, err = tree.Proof(6)
	require.ErrorIs(err, pkg.ErrTransactionNotFound)
}

func TestGenerateProofMissingLeaf(t *testing.T) {
	require := require.New(t)

	_, err := GenerateProof(crypto.Keccak256Hash([]byte("absent")), leaves(4))
	require.ErrorIs(err, pkg.ErrTransactionNotFound)
}

func TestVerifyProofRejectsTampering(t *testing.T) {
	require := require.New(t)
	set := leaves(5)
	root, err := BuildRoot(set)
	require.NoError(err)

	proof, err := GenerateProof(set[2], set)
	require.NoError(err)
	require.False(VerifyProof(set[3], proof, root))

	proof[0][0] ^= 0xff
	require.False(VerifyProof(set[2], proof, root))
}

func TestEmptyProof(t *testing.T) {
	require := require.New(t)
	leaf := leaves(1)[0]

	require.True(VerifyProof(leaf, nil, leaf))
	require.False(VerifyProof(leaf, nil, crypto.Keccak256Hash(leaf[:])))
}

func TestVerifyRawProof(t *testing.T) {
	require := require.New(t)
	set := leaves(4)
	root, err := BuildRoot(set)
	require.NoError(err)
	proof, err := GenerateProof(set[1], set)
	require.NoError(err)

	raw := make([][]byte, len(proof))
	for i, p := range proof {
		raw[i] = p.Bytes()
	}
	ok, err := VerifyRawProof(set[1], raw, root)
	require.NoError(err)
	require.True(ok)

	raw[1] = raw[1][:31]
	_, err = VerifyRawProof(set[1], raw, root)
	require.ErrorIs(err, pkg.ErrInvalidProofElement)
}

func TestLeafHashCoversEveryField(t *testing.T) {
	require := require.New(t)
	tx := crypto.Keccak256Hash([]byte("tx"))
	base := LeafHash(tx, 101, 1000, "0xabc", 1)

	require.Equal(base, LeafHash(tx, 101, 1000, "0xabc", 1))
	require.NotEqual(base, LeafHash(tx, 102, 1000, "0xabc", 1))
	require.NotEqual(base, LeafHash(tx, 101, 1001, "0xabc", 1))
	require.NotEqual(base, LeafHash(tx, 101, 1000, "0xabd", 1))
	require.NotEqual(base, LeafHash(tx, 101, 1000, "0xabc", 56))
}

func TestTransactionHashIsUniquePerNonce(t *testing.T) {
	require := require.New(t)

	first := TransactionHash(101, 1, "alice", 1000, "0xabc", 1, 0)
	require.Equal(first, TransactionHash(101, 1, "alice", 1000, "0xabc", 1, 0))
	require.NotEqual(first, TransactionHash(101, 1, "alice", 1000, "0xabc", 2, 0))
	require.NotEqual(first, TransactionHash(101, 1, "alicf", 1000, "0xabc", 1, 0))
}
